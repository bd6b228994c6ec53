// Package prompt asks the user for values the command line did not supply
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when a value is missing and stdin is not a terminal
var ErrNotInteractive = errors.New("stdin is not a terminal")

// Prompter reads values from the user
type Prompter interface {
	// Interactive reports whether prompting is possible
	Interactive() bool
	// Ask reads a required line of text
	Ask(label string) (string, error)
	// Password reads a secret without echoing it
	Password(label string) (string, error)
}

// Terminal prompts on the controlling terminal
type Terminal struct {
	in  *os.File
	out io.Writer
}

// NewTerminal returns a prompter over stdin and stderr
func NewTerminal() *Terminal {
	return &Terminal{in: os.Stdin, out: os.Stderr}
}

func (t *Terminal) Interactive() bool {
	return term.IsTerminal(int(t.in.Fd()))
}

func (t *Terminal) Ask(label string) (string, error) {
	if !t.Interactive() {
		return "", ErrNotInteractive
	}

	templates := &promptui.PromptTemplates{
		Prompt:  "{{ . }}: ",
		Valid:   "{{ . | green }}: ",
		Invalid: "{{ . | red }}: ",
		Success: "{{ . | bold }}: ",
	}

	p := promptui.Prompt{
		Label:     label,
		Templates: templates,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("%s is required", label)
			}
			return nil
		},
	}

	value, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("input cancelled: %w", err)
	}
	return strings.TrimSpace(value), nil
}

func (t *Terminal) Password(label string) (string, error) {
	if !t.Interactive() {
		return "", ErrNotInteractive
	}

	fmt.Fprintf(t.out, "%s: ", label)
	bytePassword, err := term.ReadPassword(int(t.in.Fd()))
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

// Scripted answers prompts from a fixed set of values. Labels without an answer fail;
// a nil Answers map behaves like a non-interactive terminal.
type Scripted struct {
	Answers map[string]string
	Asked   []string
}

func (s *Scripted) Interactive() bool {
	return s.Answers != nil
}

func (s *Scripted) Ask(label string) (string, error) {
	if s.Answers == nil {
		return "", ErrNotInteractive
	}
	s.Asked = append(s.Asked, label)
	if v, ok := s.Answers[label]; ok {
		return v, nil
	}
	return "", fmt.Errorf("no answer for %q", label)
}

func (s *Scripted) Password(label string) (string, error) {
	return s.Ask(label)
}
