package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

func (a *App) prompt(label string) (string, error) {
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo on a terminal and falls back to a plain
// line otherwise (pipes, tests).
func (a *App) promptPassword(label string) (string, error) {
	if a.passwordFD < 0 {
		return a.prompt(label)
	}
	fmt.Fprintf(a.out, "%s: ", label)
	pw, err := readPassword(a.passwordFD)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// newPassword asks twice and insists both entries agree.
func (a *App) newPassword() (string, error) {
	pw, err := a.promptPassword("Password")
	if err != nil {
		return "", err
	}
	confirm, err := a.promptPassword("Confirm password")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}

// required prompts for label unless value is already set.
func (a *App) required(value, label string) (string, error) {
	if value = strings.TrimSpace(value); value != "" {
		return value, nil
	}
	v, err := a.prompt(label)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return v, nil
}
