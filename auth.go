package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tonimelisma/cdse-get/internal/auth"
	"github.com/tonimelisma/cdse-get/internal/config"
	"github.com/tonimelisma/cdse-get/internal/credfile"
)

var flagLoginNoCheck bool

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save client credentials for later commands",
		Long: `Save an OAuth client ID and secret to the credential file (mode 0600).

Values come from --client-id/--client-secret, then CDSE_CLIENT_ID and
CDSE_CLIENT_SECRET, and are prompted for on stdin when still missing. The
credentials are checked against the token endpoint before saving unless
--no-check is given.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().BoolVar(&flagLoginNoCheck, "no-check", false, "save without requesting a token first")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove saved client credentials",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	path := config.DefaultCredentialPath()
	if path == "" {
		return errors.New("cannot determine credential file location")
	}

	cred := auth.Credential{ClientID: flagClientID, ClientSecret: flagClientSecret}
	cred = cred.Merge(auth.CredentialFromEnv())

	cred, err := promptMissing(cmd.InOrStdin(), cmd.ErrOrStderr(), cred)
	if err != nil {
		return err
	}

	if err := cred.Validate(); err != nil {
		return err
	}

	if !flagLoginNoCheck {
		session, err := auth.NewSession(cred, auth.Options{
			TokenURL:     resolvedCfg.Auth.TokenURL,
			Timeout:      resolvedCfg.Auth.TokenTimeoutDuration(),
			SafetyMargin: resolvedCfg.Auth.SafetyMarginDuration(),
		}, logger)
		if err != nil {
			return err
		}

		if _, err := session.Acquire(cmd.Context()); err != nil {
			return fmt.Errorf("checking credentials: %w", err)
		}

		logger.Debug("credentials accepted", slog.Time("token_expiry", session.Expiry()))
	}

	if err := credfile.Save(path, cred); err != nil {
		return err
	}

	logger.Info("login successful", slog.String("credential", cred.String()))
	statusf("Credentials saved to %s\n", path)

	return nil
}

// Terminal hooks for the secret prompt. Tests replace them.
var (
	stdinIsTerminal = func(fd uintptr) bool { return isatty.IsTerminal(fd) }
	readPassword    = term.ReadPassword
)

// promptMissing asks for whichever half of cred is still empty, one line
// each. When in is a terminal the secret is read without echo.
func promptMissing(in io.Reader, out io.Writer, cred auth.Credential) (auth.Credential, error) {
	if cred.ClientID != "" && cred.ClientSecret != "" {
		return cred, nil
	}

	scanner := bufio.NewScanner(in)

	read := func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("reading input: %w", err)
			}

			return "", nil
		}

		return strings.TrimSpace(scanner.Text()), nil
	}

	var err error

	if cred.ClientID == "" {
		if cred.ClientID, err = read("Client ID: "); err != nil {
			return cred, err
		}
	}

	if cred.ClientSecret == "" {
		if f, ok := in.(*os.File); ok && stdinIsTerminal(f.Fd()) {
			cred.ClientSecret, err = readMasked(f, out, "Client secret: ")
		} else {
			cred.ClientSecret, err = read("Client secret: ")
		}

		if err != nil {
			return cred, err
		}
	}

	return cred, nil
}

func readMasked(f *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)

	secret, err := readPassword(int(f.Fd()))
	// The terminal swallowed the newline along with the echo.
	fmt.Fprintln(out)

	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}

	return strings.TrimSpace(string(secret)), nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	path := config.DefaultCredentialPath()

	removed, err := credfile.Remove(path)
	if err != nil {
		return err
	}

	if !removed {
		statusf("No saved credentials.\n")
		return nil
	}

	logger.Info("logout successful", slog.String("path", path))
	statusf("Removed %s\n", path)

	return nil
}
