package cli

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tadalive/internal/identity"
	"github.com/Makepad-fr/tadalive/internal/ui"
)

func newAuthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage local accounts and the session",
	}

	cmd.AddCommand(newAuthRegisterCmd(app))
	cmd.AddCommand(newAuthLoginCmd(app))
	cmd.AddCommand(newAuthLogoutCmd(app))
	cmd.AddCommand(newAuthStatusCmd(app))
	cmd.AddCommand(newAuthWhoamiCmd(app))
	cmd.AddCommand(newAuthPasswdCmd(app))

	return cmd
}

// authError maps input problems to usage errors.
func authError(err error) error {
	if errors.Is(err, identity.ErrWeakPassword) || errors.Is(err, identity.ErrInvalidEmail) {
		return usageError(err)
	}
	return err
}

func newAuthRegisterCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account and sign in (password is read from stdin)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pw, err := app.readLine("Password: ")
			if err != nil {
				return err
			}
			auth := app.identity()
			acct, err := auth.Register(ctx, args[0], pw)
			if err != nil {
				return authError(err)
			}
			if _, err := auth.SignIn(ctx, acct.Email, pw); err != nil {
				return err
			}
			app.logger.Info("account registered", "email", acct.Email)
			app.ok("registered and signed in as " + acct.Email)
			return nil
		},
	}
}

func newAuthLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in (password is read from stdin)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := app.readLine("Password: ")
			if err != nil {
				return err
			}
			ti, err := app.identity().SignIn(cmd.Context(), args[0], pw)
			if err != nil {
				return authError(err)
			}
			app.ok("signed in as " + ti.Email)
			return nil
		},
	}
}

func newAuthLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.identity().SignOut(cmd.Context()); err != nil {
				return err
			}
			app.ok("signed out")
			return nil
		},
	}
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is active (exit 1 when signed out)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ti, err := app.identity().Current(cmd.Context())
			if err != nil {
				return err
			}
			if ti == nil {
				return identity.ErrNotSignedIn
			}
			who := ti.Email
			if who == "" {
				who = "token from " + identity.EnvToken
			}
			app.ok(fmt.Sprintf("signed in (%s, source: %s)", who, ti.Source))
			return nil
		},
	}
}

func newAuthWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print details of the active session",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ti, err := app.ensureAuth(cmd.Context(), app.identity())
			if err != nil {
				return err
			}
			t := ui.Current()
			lines := []string{t.Title.Render("Session")}
			if ti.Email != "" {
				lines = append(lines, "email:   "+ti.Email)
			}
			lines = append(lines, "source:  "+ti.Source)
			if !ti.CreatedAt.IsZero() {
				lines = append(lines, "since:   "+ti.CreatedAt.Local().Format(time.RFC3339))
			}
			if ti.ExpiresAt != nil {
				lines = append(lines, "expires: "+ti.ExpiresAt.Local().Format(time.RFC3339))
			}
			if claims, err := identity.Claims(ti.Token); err == nil {
				keys := make([]string, 0, len(claims))
				for k := range claims {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				lines = append(lines, "", t.Accent.Render("Claims"))
				for _, k := range keys {
					lines = append(lines, fmt.Sprintf("%s: %v", k, claims[k]))
				}
			}
			fmt.Fprintln(app.stdout, ui.Panel(lines))
			return nil
		},
	}
}

func newAuthPasswdCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the password (current, new and confirmation read from stdin)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cur, err := app.readLine("Current password: ")
			if err != nil {
				return err
			}
			next, err := app.readLine("New password: ")
			if err != nil {
				return err
			}
			confirm, err := app.readLine("Confirm new password: ")
			if err != nil {
				return err
			}
			if next != confirm {
				return usagef("passwords do not match")
			}
			if err := app.identity().ChangePassword(cmd.Context(), cur, next); err != nil {
				return authError(err)
			}
			app.ok("password changed")
			return nil
		},
	}
}
