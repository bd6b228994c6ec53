package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bookshare-dev/bookshare/internal/web"
)

// NewWebCmd creates the web command
func NewWebCmd(deps DepsFunc, version string) *cobra.Command {
	var (
		address   string
		noBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Open the web UI in your browser",
		Long: `Serve the web UI locally and open it in your browser.

The web UI shares its session with the CLI. Stop it with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return err
			}

			webCfg := d.Config.Web
			if address != "" {
				webCfg.Address = address
			}

			srv, err := web.New(webCfg, web.Deps{Auth: d.Auth, Books: d.Books, Gate: d.Gate}, d.Logger, version)
			if err != nil {
				return err
			}

			return srv.Run(cmd.Context(), func(url string) {
				fmt.Fprintf(d.Out, "Web UI running at %s\n", url)
				if noBrowser || d.OpenBrowser == nil {
					return
				}
				if err := d.OpenBrowser(url); err != nil {
					fmt.Fprintf(d.Out, "Failed to open browser: %v\nPlease visit: %s\n", err, url)
				}
			})
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open a browser")

	return cmd
}
