package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// PromptPassword prompts for a password with hidden input
func PromptPassword(out io.Writer, label string) (string, error) {
	if label == "" {
		label = "Password"
	}
	fmt.Fprintf(out, "%s: ", label)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return string(password), nil
}
