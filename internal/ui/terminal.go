package ui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kamusis/cubepub/internal/publish"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

// Prompter reads one line of input. *liner.State satisfies it.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// Terminal asks publish questions on the controlling terminal.
type Terminal struct {
	in  Prompter
	out io.Writer

	line *liner.State
}

var _ publish.UserConfirmation = (*Terminal)(nil)

// NewTerminal returns a Terminal that prompts with liner and writes to out.
// Call Close to restore the terminal mode.
func NewTerminal(out io.Writer) *Terminal {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return &Terminal{in: line, out: out, line: line}
}

// NewScriptedTerminal returns a Terminal reading answers from in.
func NewScriptedTerminal(in Prompter, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

func (t *Terminal) Close() {
	if t.line != nil {
		t.line.Close()
	}
}

// Confirm asks a yes/no question. Anything but an explicit yes, including
// an aborted prompt, is a no.
func (t *Terminal) Confirm(title, message string) bool {
	fmt.Fprintf(t.out, "%s: %s\n", title, message)
	answer, err := t.in.Prompt("Continue? [y/N] ")
	if err != nil {
		if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
			fmt.Fprintf(t.out, "%v\n", err)
		}
		return false
	}
	answer = strings.TrimSpace(answer)
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
}

// Notify prints a one-line outcome prefixed by its severity.
func (t *Terminal) Notify(title, message string, severity publish.Severity) {
	fmt.Fprintf(t.out, "[%s] %s: %s\n", strings.ToUpper(severity.String()), title, message)
}

// PromptLine asks for a free-text value, returning def on empty input.
func (t *Terminal) PromptLine(label, def string) (string, error) {
	prompt := label + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, def)
	}
	v, err := t.in.Prompt(prompt)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	return v, nil
}

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return isTTY(os.Stdin) && isTTY(os.Stdout)
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
