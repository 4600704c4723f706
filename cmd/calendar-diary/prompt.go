package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword prompts on out and reads one line from in. A terminal
// gets no echo; piped input is read as plain text.
func readPassword(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "WebDAV password: ")

	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}

		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return "", errors.New("no password given")
	}

	return strings.TrimSpace(scanner.Text()), nil
}
