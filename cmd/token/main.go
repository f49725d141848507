// Package main implements the token command, which signs bearer tokens the
// API server accepts. It exists for local development and smoke tests; real
// deployments receive tokens from their identity provider.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pkordes/triptales/internal/middleware"
)

func main() {
	// A missing .env is fine; JWT_SECRET may come from the environment.
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <owner-id>",
		Short: "Sign an HS256 bearer token for an account id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			auth := middleware.NewAuthenticator(secret, slog.New(slog.DiscardHandler))
			tok, err := auth.Issue(args[0], ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, err = fmt.Fprintln(out, tok)
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HS256 signing secret (default $JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
