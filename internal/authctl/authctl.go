// Package authctl implements the operator CLI for the auth service.
package authctl

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/quickauth/auth-service/handlers"
	"github.com/quickauth/auth-service/internal/config"
	"github.com/quickauth/auth-service/pkg/sessionclient"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

const usage = `usage: authctl <command> [flags]

commands:
  secret   print a random AUTH_SECRET
  routes   list the auth routes the service answers
  session  show (or end) the session for a token
`

// Run executes args (without the program name) and returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return ExitUsage
	}

	var err error
	switch args[0] {
	case "secret":
		err = runSecret(args[1:], stdout, stderr, nil)
	case "routes":
		err = runRoutes(args[1:], stdout, stderr)
	case "session":
		err = runSession(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return ExitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return ExitUsage
	}

	var ue usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, flag.ErrHelp):
		return ExitOK
	case errors.As(err, &ue):
		fmt.Fprintf(stderr, "authctl %s: %v\n", args[0], err)
		return ExitUsage
	default:
		fmt.Fprintf(stderr, "authctl %s: %v\n", args[0], err)
		return ExitFailure
	}
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{err}
	}
	if fs.NArg() > 0 {
		return usageError{fmt.Errorf("unexpected arguments: %v", fs.Args())}
	}
	return nil
}

// SecretConfig holds flags for the secret command.
type SecretConfig struct {
	Bytes int
}

func runSecret(args []string, out, stderr io.Writer, reader io.Reader) error {
	cfg := SecretConfig{Bytes: 32}
	fs := newFlagSet("secret", stderr)
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes")
	if err := parse(fs, args); err != nil {
		return err
	}
	if cfg.Bytes < 32 {
		return usageError{errors.New("bytes must be at least 32")}
	}
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	_, err := fmt.Fprintf(out, "AUTH_SECRET=%s\n", base64.StdEncoding.EncodeToString(buf))
	return err
}

func runRoutes(args []string, out, stderr io.Writer) error {
	var basePath, baseURL string
	if cfg, err := config.LoadConfig(); err == nil {
		basePath, baseURL = cfg.Auth.BasePath, cfg.Auth.BaseURL
	}
	fs := newFlagSet("routes", stderr)
	fs.StringVar(&basePath, "base-path", basePath, "auth route prefix")
	fs.StringVar(&baseURL, "base-url", baseURL, "public base url")
	if err := parse(fs, args); err != nil {
		return err
	}
	if basePath == "" {
		basePath = "/api/auth"
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range handlers.Routes(basePath) {
		fmt.Fprintf(tw, "%s\t%s%s\t%s\n", r.Method, baseURL, r.Path, r.Summary)
	}
	return tw.Flush()
}

func runSession(ctx context.Context, args []string, out, stderr io.Writer) error {
	var (
		base, token, basePath string
		signOut               bool
		timeout               time.Duration
	)
	fs := newFlagSet("session", stderr)
	fs.StringVar(&base, "base", "http://localhost:3000", "auth service base url")
	fs.StringVar(&basePath, "base-path", "/api/auth", "auth route prefix")
	fs.StringVar(&token, "token", "", "session token (sent as a bearer credential)")
	fs.BoolVar(&signOut, "sign-out", false, "revoke the session after showing it")
	fs.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	if err := parse(fs, args); err != nil {
		return err
	}
	if token == "" {
		return usageError{errors.New("-token is required")}
	}

	r, err := sessionclient.New(base, sessionclient.WithToken(token), sessionclient.WithBasePath(basePath))
	if err != nil {
		return usageError{err}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st, err := r.Refresh(ctx)
	if err != nil {
		return err
	}
	if st.Status != sessionclient.Authenticated {
		fmt.Fprintln(out, "status: unauthenticated")
		return nil
	}
	fmt.Fprintf(out, "status: %s\nuser: %s <%s> (%s)\nexpires: %s\n",
		st.Status, st.User.Name, st.User.Email, st.User.ID, st.ExpiresAt.Format(time.RFC3339))

	if signOut {
		if err := r.SignOut(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "signed out")
	}
	return nil
}
