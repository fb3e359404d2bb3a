// internal/cli/passphrase.go
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tamzrod/status-broker/internal/auth"
	"github.com/tamzrod/status-broker/internal/config"
)

// terminalPassword reads without echo from a terminal and falls back to
// plain line reads for pipes.
func terminalPassword(in io.Reader) func() ([]byte, error) {
	var lines *bufio.Reader
	return func() ([]byte, error) {
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return term.ReadPassword(int(f.Fd()))
		}
		if lines == nil {
			lines = bufio.NewReader(in)
		}
		line, err := lines.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, err
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}
}

// resetPassphrase prompts twice and stores the new hash.
func resetPassphrase(cmd *cobra.Command, cfg *config.Config, env Env) error {
	if env.Geteuid() != 0 {
		return auth.ErrPermission
	}

	out := cmd.OutOrStdout()

	fmt.Fprint(out, "New passphrase: ")
	first, err := env.ReadPassword()
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("cli: read passphrase: %w", err)
	}

	fmt.Fprint(out, "Retype passphrase: ")
	second, err := env.ReadPassword()
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("cli: read passphrase: %w", err)
	}

	if string(first) != string(second) {
		return errors.New("cli: passphrases do not match")
	}

	store := auth.NewStore(cfg.Auth.File, cfg.Daemon.PIDFile, cfg.Auth.Cost)
	store.Geteuid = env.Geteuid
	if err := store.Reset(string(first)); err != nil {
		return err
	}

	fmt.Fprintf(out, "Passphrase updated (%s)\n", cfg.Auth.File)
	return nil
}
