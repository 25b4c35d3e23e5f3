package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	pkgauth "github.com/questkeep/questkeep/pkg/auth"
)

func newPinCmd(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "PIN lockout commands",
	}

	cmd.AddCommand(newPinStatusCmd(s))
	cmd.AddCommand(newPinUnlockCmd(s))
	cmd.AddCommand(newPinHashCmd(s))

	return cmd
}

func newPinStatusCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "status <userID>",
		Short: "Show whether a user is locked out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := s.app.PinGuard.CheckStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			s.out(cmd).Print(PinStatusResult{UserID: args[0], PinStatus: status})
			return nil
		},
	}
}

func newPinUnlockCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <userID>",
		Short: "Clear a user's failed attempts and any lockout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.app.PinGuard.Reset(cmd.Context(), args[0]); err != nil {
				return err
			}

			s.out(cmd).PrintMessage(fmt.Sprintf("Unlocked %s", args[0]))
			return nil
		},
	}
}

func newPinHashCmd(s *state) *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "hash <pin>",
		Short: "Produce a salted PIN digest for seeding credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pkgauth.ValidatePIN(args[0]); err != nil {
				return err
			}

			hasher, err := pkgauth.HasherFor(algorithm)
			if err != nil {
				return err
			}

			salt, err := pkgauth.GenerateSalt()
			if err != nil {
				return err
			}

			digest, err := hasher.Hash(args[0], salt)
			if err != nil {
				return err
			}

			s.out(cmd).Print(HashResult{Algorithm: hasher.Algorithm(), Salt: salt, PINHash: digest})
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", pkgauth.AlgorithmArgon2id, "Hash algorithm: argon2id, bcrypt")
	return cmd
}
