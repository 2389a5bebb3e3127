package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// PasswordEnvVar supplies the known password for -password without a prompt.
const PasswordEnvVar = "ODFBRUTE_PASSWORD"

func getPassword(prompt string) (string, error) {
	if env := os.Getenv(PasswordEnvVar); env != "" {
		return env, nil
	}
	return readPassword(prompt)
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		tty, err := os.Open("/dev/tty")
		if err != nil {
			return "", fmt.Errorf("stdin is not a terminal; set %s", PasswordEnvVar)
		}
		defer tty.Close()
		fd = int(tty.Fd())
	}

	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
