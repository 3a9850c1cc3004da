// Package cli implements authctl, the operator command-line tool of gophauth.
//
// Every auth operation is available as a subcommand that runs directly
// against the credential store:
//
//	authctl [global flags] register -u alice -e alice@x.com
//	authctl login -e alice@x.com
//	authctl refresh -token <refresh token>
//	authctl sessions -user 1
//
// Global flags are the server configuration flags (-d, -s, -c, ...).
// Passwords are always read from the terminal without echo. Raw refresh
// tokens are printed once and never stored by the tool.
package cli
