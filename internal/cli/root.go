package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/bookshare-dev/bookshare/internal/app"
	"github.com/bookshare-dev/bookshare/internal/cli/commands"
	"github.com/bookshare-dev/bookshare/internal/cli/prompt"
	"github.com/bookshare-dev/bookshare/internal/config"
	"github.com/bookshare-dev/bookshare/internal/forms"
	"github.com/bookshare-dev/bookshare/internal/logger"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree. build is called at most once, by the first
// command that needs the client stack.
func NewRootCmd(build commands.DepsFunc) *cobra.Command {
	var (
		once sync.Once
		deps *commands.Deps
		err  error
	)
	lazy := func() (*commands.Deps, error) {
		once.Do(func() {
			deps, err = build()
		})
		return deps, err
	}

	rootCmd := &cobra.Command{
		Use:   "bookshare",
		Short: "BookShare - share books with people nearby",
		Long: `BookShare CLI - find books shared near you and share your own.

The CLI and the local web UI ('bookshare web') share one login session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bookshare version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewLoginCmd(lazy))
	rootCmd.AddCommand(commands.NewRegisterCmd(lazy))
	rootCmd.AddCommand(commands.NewLogoutCmd(lazy))
	rootCmd.AddCommand(commands.NewStatusCmd(lazy))
	rootCmd.AddCommand(commands.NewDashCmd(lazy))
	rootCmd.AddCommand(commands.NewBooksCmd(lazy))
	rootCmd.AddCommand(commands.NewWebCmd(lazy, version))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	var a *app.App

	rootCmd := NewRootCmd(func() (*commands.Deps, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}

		logger.Init(cfg.Logging.Level, cfg.Logging.Format)

		a, err = app.New(cfg, logger.GetLogger())
		if err != nil {
			return nil, err
		}

		return NewDeps(a, os.Stdout), nil
	})

	err := rootCmd.Execute()

	if a != nil {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn().Err(closeErr).Msg("Failed to close session storage")
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewDeps adapts an app to the command dependencies
func NewDeps(a *app.App, out io.Writer) *commands.Deps {
	return &commands.Deps{
		Config:      a.Config,
		Logger:      a.Logger,
		Auth:        a.Auth,
		Books:       a.API,
		Gate:        a.Gate,
		Forms:       forms.NewValidator(),
		Prompt:      prompt.NewTerminal(),
		Out:         out,
		OpenBrowser: commands.OpenBrowser,
	}
}
