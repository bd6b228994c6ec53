package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/bookshare-dev/bookshare/internal/api"
	"github.com/bookshare-dev/bookshare/internal/cli/prompt"
	"github.com/bookshare-dev/bookshare/internal/forms"
	"github.com/bookshare-dev/bookshare/internal/gate"
	"github.com/bookshare-dev/bookshare/internal/pipeline"
)

// NewBooksCmd creates the books command group
func NewBooksCmd(deps DepsFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Find and share books",
	}

	cmd.AddCommand(newNearbyCmd(deps))
	cmd.AddCommand(newShareCmd(deps))

	return cmd
}

func newNearbyCmd(deps DepsFunc) *cobra.Command {
	var watch string

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List books shared near you",
		Long: `List books shared near you.

With --watch the list is fetched again on a cron schedule until interrupted.

Examples:
  $ bookshare books nearby
  $ bookshare books nearby --watch "*/5 * * * *"
  $ bookshare books nearby --watch "@every 30s"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return err
			}
			if err := requireLogin(d); err != nil {
				return err
			}

			if watch == "" {
				return runNearby(cmd.Context(), d, printBooks)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watchNearby(ctx, d, watch)
		},
	}

	cmd.Flags().StringVar(&watch, "watch", "", "Cron schedule to refresh the list on")

	return cmd
}

func runNearby(ctx context.Context, d *Deps, render func(io.Writer, []api.Book)) error {
	scope := pipeline.NewScope(ctx)
	defer scope.Close()

	var (
		books []api.Book
		err   error
	)
	delivered := pipeline.Run(scope, d.Books.NearbyBooks, func(b []api.Book, fetchErr error) {
		books, err = b, fetchErr
	})
	if !delivered {
		return context.Canceled
	}

	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return apiError("fetch nearby books", err)
		}
		return errors.New(api.MessageOf(err, "Failed to fetch nearby books"))
	}

	render(d.Out, books)
	return nil
}

// watchNearby fetches once, then on every tick of schedule until ctx ends or the
// session is rejected
func watchNearby(ctx context.Context, d *Deps, schedule string) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	refresh := func() {
		if err := runNearby(ctx, d, printBooks); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if d.Gate.State() == gate.Unauthenticated {
				cancel(err)
				return
			}
			fmt.Fprintf(d.Out, "Error: %v\n", err)
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() {
		fmt.Fprintln(d.Out)
		refresh()
	}); err != nil {
		return fmt.Errorf("invalid --watch schedule %q: %w", schedule, err)
	}

	d.Logger.Debug().Str("schedule", schedule).Msg("Watching nearby books")

	refresh()
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	// Interrupts and deadlines end the watch quietly; a rejected session does not
	if cause := context.Cause(ctx); !errors.Is(cause, ctx.Err()) {
		return cause
	}
	return nil
}

func newShareCmd(deps DepsFunc) *cobra.Command {
	var form forms.ShareBook

	cmd := &cobra.Command{
		Use:   "share",
		Short: "Share a book with people near you",
		Long: `Share a book with people near you.

Missing fields are asked for interactively.

Example:
  $ bookshare books share --title Dune --author "Frank Herbert" --description "Desert planet epic"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return err
			}
			if err := requireLogin(d); err != nil {
				return err
			}
			return runShare(cmd.Context(), d, form)
		},
	}

	cmd.Flags().StringVar(&form.Title, "title", "", "Book title")
	cmd.Flags().StringVar(&form.Author, "author", "", "Author")
	cmd.Flags().StringVar(&form.Description, "description", "", "Short description")

	return cmd
}

func runShare(ctx context.Context, d *Deps, form forms.ShareBook) error {
	fields := []struct {
		label string
		value *string
	}{
		{"Book Title", &form.Title},
		{"Author", &form.Author},
		{"Description", &form.Description},
	}

	for _, f := range fields {
		if *f.value != "" || !d.Prompt.Interactive() {
			continue
		}
		v, err := d.Prompt.Ask(f.label)
		if err != nil && !errors.Is(err, prompt.ErrNotInteractive) {
			return err
		}
		*f.value = v
	}

	if err := d.Forms.Check(&form); err != nil {
		return apiError("share", err)
	}

	if err := d.Books.ShareBook(ctx, form.Request()); err != nil {
		return apiError("share", err)
	}

	fmt.Fprintln(d.Out, "Book shared successfully! 📚")
	return nil
}
