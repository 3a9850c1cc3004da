package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-a string   gRPC bind address (empty disables)
//	-m string   metrics bind address (empty disables)
//	-s string   access token HMAC secret
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-n int      failed logins before lockout
//	-w int      lockout window, minutes
//	-l int      minimum password length
//	-v string   log level
//
// Only these flags are looked at, so subcommand flags of the CLI pass through.
// A malformed value panics.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-d", "-a", "-m", "-s", "-t", "-r", "-n", "-w", "-l", "-v"})

	fs := flag.NewFlagSet("gophauth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.GRPCAddr, "a", config.GRPCAddr, "gRPC address")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessMinutes := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshMinutes := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	lockoutMinutes := fs.Int("w", int(config.LockoutDuration.Minutes()), "lockout window (in minutes)")

	fs.IntVar(&config.MaxFailedLogins, "n", config.MaxFailedLogins, "failed logins before lockout")
	fs.IntVar(&config.MinPasswordLength, "l", config.MinPasswordLength, "minimum password length")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Minutes granularity: only overwrite when the flag was given, so
	// sub-minute values from JSON or env survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessMinutes) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshMinutes) * time.Minute
		case "w":
			config.LockoutDuration = time.Duration(*lockoutMinutes) * time.Minute
		}
	})
}
