// Package cli implements questctl, an operator tool that works directly on the
// configured store without going through the HTTP API.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/questkeep/questkeep/internal/config"
	"github.com/questkeep/questkeep/internal/factory"
)

// Opener builds the application the commands operate on
type Opener func(ctx context.Context) (*factory.App, error)

// DefaultOpener loads configuration from the environment and connects to the configured backend
func DefaultOpener(ctx context.Context) (*factory.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return factory.New(ctx, cfg, logger, factory.Options{})
}

type state struct {
	open   Opener
	app    *factory.App
	output string
}

func (s *state) out(cmd *cobra.Command) *Output {
	return NewOutput(s.output, cmd.OutOrStdout())
}

// NewRootCmd creates the root command
func NewRootCmd(open Opener) *cobra.Command {
	s := &state{open: open, output: "text"}

	rootCmd := &cobra.Command{
		Use:   "questctl",
		Short: "Operator tool for PIN lockouts and castle layouts",
		Long: `questctl inspects and repairs questkeep state directly in the configured
key-value backend (memory, redis or postgres, selected by KV_BACKEND).

It can show and clear PIN lockouts, produce PIN digests for seeding, and
inspect or dry-run castle placements.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			s.app = app
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if s.app != nil {
				s.app.Close()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&s.output, "output", "o", s.output, "Output format: text, json")

	rootCmd.AddCommand(newPinCmd(s))
	rootCmd.AddCommand(newCastleCmd(s))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd(DefaultOpener).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
