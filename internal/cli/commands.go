package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

var errUsage = errors.New("missing required flags")

func required(fs *flag.FlagSet, args []string, names ...string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, n := range names {
		if !set[n] {
			return fmt.Errorf("%w: -%s", errUsage, n)
		}
	}
	return nil
}

func (a *App) register(ctx context.Context, fs *flag.FlagSet, args []string) error {
	userName := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	if err := required(fs, args, "u", "e"); err != nil {
		return err
	}

	password, err := GetPassword("Enter password", a.out)
	if err != nil {
		return err
	}

	res, err := a.auth.Register(ctx, *userName, *email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered user %d (%s)", res.User.ID, res.User.UserName)
	if res.User.IsAdmin {
		fmt.Fprint(a.out, " as admin")
	}
	fmt.Fprintln(a.out)
	a.printTokens(res)
	return nil
}

func (a *App) login(ctx context.Context, fs *flag.FlagSet, args []string) error {
	email := fs.String("e", "", "email")
	if err := required(fs, args, "e"); err != nil {
		return err
	}

	password, err := GetPassword("Enter password", a.out)
	if err != nil {
		return err
	}

	res, err := a.auth.Login(ctx, *email, password, userAgent)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s (user %d)\n", res.User.UserName, res.User.ID)
	a.printTokens(res)
	return nil
}

func (a *App) refresh(ctx context.Context, fs *flag.FlagSet, args []string) error {
	token := fs.String("token", "", "refresh token")
	if err := required(fs, args, "token"); err != nil {
		return err
	}

	res, err := a.auth.Refresh(ctx, *token, userAgent)
	if err != nil {
		return err
	}
	a.printTokens(res)
	return nil
}

func (a *App) logout(ctx context.Context, fs *flag.FlagSet, args []string) error {
	token := fs.String("token", "", "refresh token")
	if err := required(fs, args, "token"); err != nil {
		return err
	}
	if err := a.auth.Logout(ctx, *token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) logoutAll(ctx context.Context, fs *flag.FlagSet, args []string) error {
	userID := fs.Int64("user", 0, "user id")
	if err := required(fs, args, "user"); err != nil {
		return err
	}
	if err := a.auth.LogoutAll(ctx, *userID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "All sessions revoked")
	return nil
}

func (a *App) sessions(ctx context.Context, fs *flag.FlagSet, args []string) error {
	userID := fs.Int64("user", 0, "user id")
	if err := required(fs, args, "user"); err != nil {
		return err
	}

	sessions, err := a.auth.ListSessions(ctx, *userID)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(a.out, "No active sessions")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCLIENT\tCREATED\tEXPIRES")
	for _, s := range sessions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, s.UserAgent, s.CreatedAt.Format(time.RFC3339), s.ExpiresAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (a *App) revoke(ctx context.Context, fs *flag.FlagSet, args []string) error {
	userID := fs.Int64("user", 0, "user id")
	sessionID := fs.Int64("id", 0, "session id")
	if err := required(fs, args, "user", "id"); err != nil {
		return err
	}
	if err := a.auth.RevokeSession(ctx, *sessionID, *userID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Session %d revoked\n", *sessionID)
	return nil
}

func (a *App) passwd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	userID := fs.Int64("user", 0, "user id")
	if err := required(fs, args, "user"); err != nil {
		return err
	}

	current, err := GetPassword("Current password", a.out)
	if err != nil {
		return err
	}
	next, err := GetPassword("New password", a.out)
	if err != nil {
		return err
	}
	confirm, err := GetPassword("Repeat new password", a.out)
	if err != nil {
		return err
	}
	if next != confirm {
		return errors.New("passwords do not match")
	}

	if err := a.auth.ChangePassword(ctx, *userID, current, next); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed")
	return nil
}

func (a *App) email(ctx context.Context, fs *flag.FlagSet, args []string) error {
	userID := fs.Int64("user", 0, "user id")
	email := fs.String("e", "", "new email")
	if err := required(fs, args, "user", "e"); err != nil {
		return err
	}

	current, err := GetPassword("Current password", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.ChangeEmail(ctx, *userID, current, *email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Email changed")
	return nil
}

func (a *App) account(ctx context.Context, fs *flag.FlagSet, args []string) error {
	userID := fs.Int64("user", 0, "user id")
	if err := required(fs, args, "user"); err != nil {
		return err
	}

	u, err := a.auth.GetAccount(ctx, *userID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ID:       %d\n", u.ID)
	fmt.Fprintf(a.out, "Username: %s\n", u.UserName)
	fmt.Fprintf(a.out, "Email:    %s\n", u.Email)
	fmt.Fprintf(a.out, "Admin:    %t\n", u.IsAdmin)
	fmt.Fprintf(a.out, "Failed:   %d\n", u.FailedLoginAttempts)
	if u.LockedUntil != nil {
		fmt.Fprintf(a.out, "Locked:   until %s\n", u.LockedUntil.Format(time.RFC3339))
	}
	return nil
}

func (a *App) delete(ctx context.Context, fs *flag.FlagSet, args []string) error {
	adminID := fs.Int64("admin", 0, "requesting admin id")
	userID := fs.Int64("user", 0, "user id to delete")
	if err := required(fs, args, "admin", "user"); err != nil {
		return err
	}
	if err := a.auth.DeleteAccount(ctx, *adminID, *userID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User %d deleted\n", *userID)
	return nil
}

func (a *App) migrate(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.migrator(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Migrations applied")
	return nil
}

func (a *App) printTokens(res *services.AuthResult) {
	fmt.Fprintf(a.out, "Access token (expires %s):\n%s\n", res.AccessToken.ExpiresAt.Format(time.RFC3339), res.AccessToken.Token)
	if res.RefreshToken != "" {
		fmt.Fprintf(a.out, "Refresh token (shown once):\n%s\n", res.RefreshToken)
	}
}
