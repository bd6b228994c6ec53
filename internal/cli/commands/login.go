package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bookshare-dev/bookshare/internal/auth"
	"github.com/bookshare-dev/bookshare/internal/cli/prompt"
	"github.com/bookshare-dev/bookshare/internal/forms"
)

// NewLoginCmd creates the login command
func NewLoginCmd(deps DepsFunc) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the book-sharing service",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return err
			}
			return runLogin(cmd, d, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set BOOKSHARE_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set BOOKSHARE_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, d *Deps, email, password string) error {
	// Environment variables are useful for scripts
	email = firstNonEmpty(email, os.Getenv("BOOKSHARE_EMAIL"))
	password = firstNonEmpty(password, os.Getenv("BOOKSHARE_PASSWORD"))

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or BOOKSHARE_EMAIL env var)")
	}

	if password == "" {
		p, err := d.Prompt.Password("Password")
		if errors.Is(err, prompt.ErrNotInteractive) {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or BOOKSHARE_PASSWORD env var)")
		}
		if err != nil {
			return err
		}
		password = p
	}

	form := forms.Login{Email: email, Password: password}
	if err := d.Forms.Check(&form); err != nil {
		return apiError("login", err)
	}

	fmt.Fprintf(d.Out, "Logging in as %s...\n", form.Email)

	sess, err := d.Auth.Login(cmd.Context(), form.Email, form.Password)
	if err != nil && !sess.Authenticated() {
		return apiError("login", err)
	}
	if err != nil {
		fmt.Fprintf(d.Out, "Warning: %v\n", err)
	}

	fmt.Fprintln(d.Out, "✓ Login successful!")
	fmt.Fprintf(d.Out, "  User: %s\n", sess.Identity())
	if d.Auth.Role() == auth.RoleAdmin {
		fmt.Fprintln(d.Out, "  Role: Admin")
	}
	fmt.Fprintf(d.Out, "  Home: %s\n", d.Gate.LoginDestination(sess))

	return nil
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd(deps DepsFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return err
			}

			if !d.Auth.Session().Authenticated() {
				fmt.Fprintln(d.Out, "Not logged in.")
				return nil
			}
			if err := d.Auth.Logout(); err != nil {
				return fmt.Errorf("failed to remove stored session: %w", err)
			}
			fmt.Fprintln(d.Out, "✓ Logged out")
			return nil
		},
	}
}

// NewStatusCmd creates the status command
func NewStatusCmd(deps DepsFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is logged in",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return err
			}

			sess := d.Auth.Session()
			if !sess.Authenticated() {
				fmt.Fprintln(d.Out, "Not logged in.")
				return nil
			}

			fmt.Fprintf(d.Out, "Logged in as %s\n", sess.Identity())
			fmt.Fprintf(d.Out, "  Role:   %s\n", d.Auth.Role())
			fmt.Fprintf(d.Out, "  State:  %s\n", d.Gate.State())
			fmt.Fprintf(d.Out, "  Server: %s\n", d.Config.Server.BaseURL)
			return nil
		},
	}
}
