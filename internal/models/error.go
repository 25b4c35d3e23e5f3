package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInfrastructure = errors.New("infrastructure failure")

	// PIN guard errors
	ErrInvalidPIN          = fmt.Errorf("%w: pin must be exactly 4 digits", ErrInvalidInput)
	ErrWrongPIN            = errors.New("incorrect pin")
	ErrLocked              = errors.New("pin entry is temporarily locked")
	ErrCredentialNotFound  = fmt.Errorf("%w: no pin credential enrolled", ErrNotFound)
	ErrInvalidRecovery     = errors.New("invalid recovery code")
	ErrRecoveryUnavailable = errors.New("pin recovery is not configured")
	ErrRecoveryLocked      = fmt.Errorf("%w: too many recovery attempts", ErrLocked)

	// Placement errors
	ErrUnknownBuildingType = fmt.Errorf("%w: unknown building type", ErrNotFound)
	ErrBuildingNotFound    = fmt.Errorf("%w: building not found", ErrNotFound)
	ErrInvalidCoordinates  = fmt.Errorf("%w: coordinates must be non-negative", ErrInvalidInput)
	ErrOutOfBounds         = errors.New("placement exceeds grid bounds")
	ErrOverlap             = errors.New("placement overlaps an existing building")
)

// PinError is the structured rejection returned by PIN authentication.
// It unwraps to its Kind so callers can match with errors.Is.
type PinError struct {
	Kind              error
	AttemptsRemaining int
	RemainingSeconds  int
}

func (e *PinError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrLocked):
		return fmt.Sprintf("%s: retry in %ds", e.Kind, e.RemainingSeconds)
	case errors.Is(e.Kind, ErrWrongPIN):
		return fmt.Sprintf("%s: %d attempts remaining", e.Kind, e.AttemptsRemaining)
	default:
		return e.Kind.Error()
	}
}

func (e *PinError) Unwrap() error {
	return e.Kind
}

// Infrastructure marks err as a collaborator failure (storage, hashing, broker)
func Infrastructure(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrInfrastructure, err)
}
