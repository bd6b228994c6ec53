package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bookshare-dev/bookshare/internal/gate"
)

// NewDashCmd creates the dash command
func NewDashCmd(deps DepsFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dash [path]",
		Short: "Show the page a path leads to",
		Long: `Show what navigating to a path shows for the current session.

Examples:
  $ bookshare dash                    # your dashboard
  $ bookshare dash /admin-dashboard   # the admin view, for admins`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return err
			}

			path := gate.PathRoot
			if len(args) > 0 {
				path = args[0]
			}
			return runDash(cmd, d, path)
		},
	}

	return cmd
}

func runDash(cmd *cobra.Command, d *Deps, path string) error {
	decision := d.Gate.Resolve(path)
	if decision.Redirected() {
		fmt.Fprintf(d.Out, "%s requires login; redirected to %s\n", decision.Path, decision.Redirect)
		fmt.Fprintln(d.Out, "Log in with: bookshare login --email <email>")
		return nil
	}

	switch decision.View {
	case gate.ViewDashboard:
		fmt.Fprintln(d.Out, "Book Sharing Dashboard")
		fmt.Fprintf(d.Out, "Signed in as %s\n\n", decision.Session.Identity())
		return runNearby(cmd.Context(), d, printBookCards)
	case gate.ViewAdmin:
		fmt.Fprintln(d.Out, "Admin Dashboard")
		fmt.Fprintf(d.Out, "Signed in as %s\n", decision.Session.Identity())
	case gate.ViewLogin:
		fmt.Fprintln(d.Out, "Login: bookshare login --email <email>")
	case gate.ViewRegister:
		fmt.Fprintln(d.Out, "Register: bookshare register --help")
	default:
		fmt.Fprintf(d.Out, "404 Page not found: %s\n", decision.Path)
	}

	return nil
}
