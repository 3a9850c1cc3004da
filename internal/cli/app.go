package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

// Auth is the part of services.AuthService the tool drives.
type Auth interface {
	Register(ctx context.Context, userName, email, password string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password, userAgent string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken, userAgent string) (*services.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID int64) error
	ListSessions(ctx context.Context, userID int64) ([]models.SessionSummary, error)
	RevokeSession(ctx context.Context, sessionID, requestingUserID int64) error
	ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error
	ChangeEmail(ctx context.Context, userID int64, currentPassword, newEmail string) error
	GetAccount(ctx context.Context, userID int64) (*models.User, error)
	DeleteAccount(ctx context.Context, adminID, userID int64) error
}

// userAgent is the client descriptor stored with sessions opened by the tool.
const userAgent = "authctl"

type command struct {
	usage string
	run   func(a *App, ctx context.Context, fs *flag.FlagSet, args []string) error
}

var commands = map[string]command{
	"register":   {usage: "register -u <username> -e <email>", run: (*App).register},
	"login":      {usage: "login -e <email>", run: (*App).login},
	"refresh":    {usage: "refresh -token <refresh token>", run: (*App).refresh},
	"logout":     {usage: "logout -token <refresh token>", run: (*App).logout},
	"logout-all": {usage: "logout-all -user <id>", run: (*App).logoutAll},
	"sessions":   {usage: "sessions -user <id>", run: (*App).sessions},
	"revoke":     {usage: "revoke -user <id> -id <session id>", run: (*App).revoke},
	"passwd":     {usage: "passwd -user <id>", run: (*App).passwd},
	"email":      {usage: "email -user <id> -e <new email>", run: (*App).email},
	"account":    {usage: "account -user <id>", run: (*App).account},
	"delete":     {usage: "delete -admin <id> -user <id>", run: (*App).delete},
	"migrate":    {usage: "migrate", run: (*App).migrate},
}

// App runs one authctl subcommand.
type App struct {
	auth     Auth
	migrator func(ctx context.Context) error
	out      io.Writer
	errOut   io.Writer
	closer   func() error
}

// NewApp connects to the store described by c.
func NewApp(c *config.Config) (*App, error) {
	srv, err := server.NewApp(c)
	if err != nil {
		return nil, err
	}
	return &App{
		auth:     srv.Auth(),
		migrator: srv.Migrate,
		out:      os.Stdout,
		errOut:   os.Stderr,
		closer:   srv.Close,
	}, nil
}

// Close releases the store connection.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

// Run executes the subcommand in args (without the global flags) and returns
// the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		a.usage()
		return 2
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintln(a.errOut, "Unknown command:", args[0])
		a.usage()
		return 2
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	if err := cmd.run(a, ctx, fs, args[1:]); err != nil {
		a.printError(err)
		return 1
	}
	return 0
}

func (a *App) usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(a.errOut, "Usage: authctl [global flags] <command> [flags]")
	fmt.Fprintln(a.errOut, "Commands:")
	for _, name := range names {
		fmt.Fprintln(a.errOut, "  "+commands[name].usage)
	}
}

func (a *App) printError(err error) {
	var locked *common.AccountLockedError
	switch {
	case errors.As(err, &locked):
		fmt.Fprintf(a.errOut, "error: account locked, retry in %d seconds\n", locked.RemainingSeconds())
	case common.Kind(err) == common.KindInternal && !errors.Is(err, common.ErrorInternal):
		// flag and usage errors
		fmt.Fprintln(a.errOut, "error:", err)
	default:
		fmt.Fprintf(a.errOut, "error (%s): %v\n", common.Kind(err), err)
	}
}

// SplitArgs separates the global configuration flags from the subcommand and
// its flags. Every global flag takes a value.
func SplitArgs(args []string) (global, rest []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return args[:i], args[i+1:]
		}
		if !strings.HasPrefix(arg, "-") {
			return args[:i], args[i:]
		}
		if !strings.Contains(arg, "=") {
			i++
		}
	}
	return args, nil
}
