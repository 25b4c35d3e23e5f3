package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/questkeep/questkeep/internal/models"
)

func newCastleCmd(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "castle",
		Short: "Castle layout commands",
	}

	cmd.AddCommand(newCastleCatalogCmd(s))
	cmd.AddCommand(newCastleLayoutCmd(s))
	cmd.AddCommand(newCastleCheckCmd(s))

	return cmd
}

func newCastleCatalogCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the building catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.out(cmd).Print(s.app.Catalog.Types())
			return nil
		},
	}
}

func newCastleLayoutCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "layout <sessionID>",
		Short: "Show the buildings placed in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			placed, err := s.app.CastleService.Layout(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			s.out(cmd).Print(placed)
			return nil
		},
	}
}

func newCastleCheckCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "check <sessionID> <buildingTypeID> <x> <y>",
		Short: "Dry-run a placement against a session's layout",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("x must be an integer: %w", err)
			}
			y, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("y must be an integer: %w", err)
			}

			err = s.app.CastleService.Check(cmd.Context(), args[0], args[1], x, y)
			if errors.Is(err, models.ErrInfrastructure) {
				return err
			}

			result := CheckResult{Allowed: err == nil}
			if err != nil {
				result.Reason = err.Error()
			}
			s.out(cmd).Print(result)
			return nil
		},
	}
}
