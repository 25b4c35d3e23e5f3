package repositories

import (
	"context"
	"time"
)

// KVStore is the persistence collaborator shared by the PIN and castle repositories.
// Get returns models.ErrNotFound for a missing or expired key. A ttl of zero
// means the value never expires. Backend failures wrap models.ErrInfrastructure.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

const (
	attemptKeyPrefix         = "pin:attempts:"
	credentialKeyPrefix      = "pin:credential:"
	recoveryKeyPrefix        = "pin:recovery:"
	recoveryAttemptKeyPrefix = "pin:recovery-attempts:"
	layoutKeyPrefix          = "castle:layout:"
)

// AttemptKey returns the key holding a user's attempt record
func AttemptKey(userID string) string {
	return attemptKeyPrefix + userID
}

// RecoveryAttemptKey returns the key holding a user's failed recovery codes
func RecoveryAttemptKey(userID string) string {
	return recoveryAttemptKeyPrefix + userID
}

func credentialKey(userID string) string {
	return credentialKeyPrefix + userID
}

func recoveryKey(userID string) string {
	return recoveryKeyPrefix + userID
}

func layoutKey(sessionID string) string {
	return layoutKeyPrefix + sessionID
}
