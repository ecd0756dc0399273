package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

var stdin = bufio.NewReader(os.Stdin)

// readSecret returns the value of envVar when set. Otherwise it prompts on stderr,
// hiding the input when stdin is a terminal.
func readSecret(prompt, envVar string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return string(b), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readNewSecret prompts twice and requires both answers to match.
func readNewSecret(prompt, envVar string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	first, err := readSecret(prompt, envVar)
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("empty input")
	}
	second, err := readSecret("Repeat: ", envVar)
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("inputs do not match")
	}
	return first, nil
}
