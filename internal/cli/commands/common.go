package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/bookshare-dev/bookshare/internal/api"
	"github.com/bookshare-dev/bookshare/internal/auth"
	"github.com/bookshare-dev/bookshare/internal/cli/prompt"
	"github.com/bookshare-dev/bookshare/internal/config"
	"github.com/bookshare-dev/bookshare/internal/forms"
	"github.com/bookshare-dev/bookshare/internal/gate"
)

// Books is the part of the API the book commands call
type Books interface {
	ShareBook(ctx context.Context, req api.ShareBookRequest) error
	NearbyBooks(ctx context.Context) ([]api.Book, error)
}

// Deps is everything a command may need. Commands receive it lazily so that
// commands like version run without configuration.
type Deps struct {
	Config *config.Config
	Logger zerolog.Logger

	Auth   *auth.Service
	Books  Books
	Gate   *gate.Gate
	Forms  *forms.Validator
	Prompt prompt.Prompter

	Out         io.Writer
	OpenBrowser func(url string) error
}

// DepsFunc returns the command dependencies, building them on first use
type DepsFunc func() (*Deps, error)

var errNotLoggedIn = errors.New("not logged in. Run 'bookshare login' first")

// requireLogin fails unless there is a session
func requireLogin(d *Deps) error {
	if d.Gate.State() == gate.Unauthenticated {
		return errNotLoggedIn
	}
	return nil
}

// apiError turns API and form failures into a message for the terminal
func apiError(op string, err error) error {
	var fieldErrs forms.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fmt.Errorf("%s failed: %s", op, fieldErrs.Error())
	}
	if fe := forms.FromAPI(err); fe != nil {
		return fmt.Errorf("%s failed: %s", op, fe.Error())
	}
	if errors.Is(err, api.ErrUnauthorized) {
		return fmt.Errorf("%s failed: session expired or was rejected. Run 'bookshare login' again", op)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

// printBooks renders books as a table, or the empty-list message
func printBooks(out io.Writer, books []api.Book) {
	if len(books) == 0 {
		fmt.Fprintln(out, "No books found nearby")
		fmt.Fprintln(out, "\nBe the first to share a book with: bookshare books share")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tAUTHOR\tOWNER\tDISTANCE")
	fmt.Fprintln(w, "─────\t──────\t─────\t────────")

	for _, book := range books {
		owner := ""
		if book.User != nil {
			owner = book.User.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", book.Title, book.Author, owner, formatDistance(book.DistanceKM))
	}

	w.Flush()
	fmt.Fprintf(out, "\n%d %s nearby\n", len(books), plural(len(books), "book", "books"))
}

// printBookCards renders books the way the web dashboard cards show them
func printBookCards(out io.Writer, books []api.Book) {
	if len(books) == 0 {
		printBooks(out, books)
		return
	}

	for _, book := range books {
		fmt.Fprintf(out, "📖 %s\n", book.Title)
		fmt.Fprintf(out, "   by %s\n", book.Author)
		if book.Description != "" {
			fmt.Fprintf(out, "   %s\n", book.Description)
		}

		var meta []string
		if book.User != nil && book.User.Name != "" {
			meta = append(meta, book.User.Name)
		}
		if distance := formatDistance(book.DistanceKM); distance != "" {
			meta = append(meta, distance)
		}
		if len(meta) > 0 {
			fmt.Fprintf(out, "   %s\n", strings.Join(meta, " · "))
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "%d %s nearby\n", len(books), plural(len(books), "book", "books"))
}

func formatDistance(km *float64) string {
	if km == nil {
		return ""
	}
	return fmt.Sprintf("%.1f km", *km)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// firstNonEmpty returns the first value that is not blank
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// OpenBrowser opens the URL in the default browser
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
