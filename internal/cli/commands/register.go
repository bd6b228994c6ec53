package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bookshare-dev/bookshare/internal/forms"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(deps DepsFunc) *cobra.Command {
	var form forms.Register

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account on the book-sharing service.

Your location is used to find books shared near you.

Example:
  $ bookshare register --name "Jane Doe" --email jane@example.com \
      --password secret1 --password-confirmation secret1 \
      --latitude 23.8103 --longitude 90.4125`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return err
			}

			if form.PasswordConfirmation == "" && !cmd.Flags().Changed("password-confirmation") {
				form.PasswordConfirmation = form.Password
			}

			if err := d.Forms.Check(&form); err != nil {
				return apiError("registration", err)
			}
			req, err := form.Request()
			if err != nil {
				return apiError("registration", err)
			}

			if err := d.Auth.Register(cmd.Context(), req); err != nil {
				return apiError("registration", err)
			}

			fmt.Fprintf(d.Out, "✓ Account created for %s\n", req.Email)
			fmt.Fprintf(d.Out, "  Location: %s, %s\n",
				strconv.FormatFloat(req.Latitude, 'f', -1, 64),
				strconv.FormatFloat(req.Longitude, 'f', -1, 64))
			fmt.Fprintln(d.Out, "\nLog in with: bookshare login --email", req.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&form.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&form.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&form.Password, "password", "", "Password (at least 6 characters)")
	cmd.Flags().StringVar(&form.PasswordConfirmation, "password-confirmation", "", "Repeat the password (defaults to --password)")
	cmd.Flags().StringVar(&form.Latitude, "latitude", "", "Latitude of your location")
	cmd.Flags().StringVar(&form.Longitude, "longitude", "", "Longitude of your location")

	return cmd
}
