package models

import "time"

// Credential is a user's parent-mode PIN, stored only as a salted digest
type Credential struct {
	UserID        string    `json:"user_id"`
	PINHash       string    `json:"pin_hash"`
	Salt          string    `json:"salt"`
	HashAlgorithm string    `json:"hash_algorithm"`
	ContactEmail  string    `json:"contact_email,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AttemptRecord tracks failed PIN entries for a single user identity
type AttemptRecord struct {
	UserID       string     `json:"user_id"`
	FailedCount  int        `json:"failed_count"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
	LockoutCount int        `json:"lockout_count"` // lockouts since last success, drives escalation
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsLocked reports whether the record is locked at the given instant.
// An elapsed lock is treated as unlocked even before it is cleared in storage.
func (r *AttemptRecord) IsLocked(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// LockExpired reports whether the record carries a lock that has already elapsed
func (r *AttemptRecord) LockExpired(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && !now.Before(*r.LockedUntil)
}

// PinStatus is the read-only view of an AttemptRecord
type PinStatus struct {
	Blocked           bool `json:"blocked"`
	RemainingSeconds  int  `json:"remaining_seconds"`
	AttemptsRemaining int  `json:"attempts_remaining"`
}

// FailureResult is returned after a wrong PIN has been recorded
type FailureResult struct {
	Locked            bool `json:"locked"`
	AttemptsRemaining int  `json:"attempts_remaining"`
	LockoutSeconds    int  `json:"lockout_seconds"`
}

// LockoutEvent is emitted when a user crosses the failure threshold
type LockoutEvent struct {
	UserID         string    `json:"user_id"`
	ContactEmail   string    `json:"contact_email,omitempty"`
	FailedAttempts int       `json:"failed_attempts"`
	LockoutCount   int       `json:"lockout_count"`
	LockedUntil    time.Time `json:"locked_until"`
}

// RecoverySecret is the encrypted TOTP secret used to reset a forgotten PIN
type RecoverySecret struct {
	UserID          string    `json:"user_id"`
	EncryptedSecret []byte    `json:"encrypted_secret"`
	Nonce           []byte    `json:"nonce"`
	LastUsedStep    int64     `json:"last_used_step,omitempty"` // TOTP step of the last accepted code
	CreatedAt       time.Time `json:"created_at"`
}
