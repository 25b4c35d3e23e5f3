package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/questkeep/questkeep/internal/auth"
	"github.com/questkeep/questkeep/internal/clock"
	"github.com/questkeep/questkeep/internal/models"
	pkgauth "github.com/questkeep/questkeep/pkg/auth"
	pkglogger "github.com/questkeep/questkeep/pkg/logger"
)

// notifyTimeout bounds lockout delivery, which runs while the user's lock is held
const notifyTimeout = 5 * time.Second

// AttemptRepository defines the persistence operations for PIN attempt records
type AttemptRepository interface {
	Get(ctx context.Context, userID string) (*models.AttemptRecord, error)
	Save(ctx context.Context, record *models.AttemptRecord, ttl time.Duration) error
	Delete(ctx context.Context, userID string) error
}

// CredentialReader loads the stored PIN credential for a user
type CredentialReader interface {
	Get(ctx context.Context, userID string) (*models.Credential, error)
}

// LockoutNotifier is told when a user crosses the failure threshold
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, event models.LockoutEvent) error
}

// PinGuardConfig holds the lockout policy
type PinGuardConfig struct {
	MaxFailedAttempts  int
	LockoutDuration    time.Duration
	LockoutMultiplier  float64       // > 1 enables escalation: duration * multiplier^lockoutCount
	MaxLockoutDuration time.Duration // cap for escalated lockouts
	EscalationWindow   time.Duration // how long lockoutCount survives after a lock
}

// DefaultPinGuardConfig returns the fixed five attempts / five minutes policy
func DefaultPinGuardConfig() PinGuardConfig {
	return PinGuardConfig{
		MaxFailedAttempts:  5,
		LockoutDuration:    5 * time.Minute,
		LockoutMultiplier:  1,
		MaxLockoutDuration: time.Hour,
		EscalationWindow:   24 * time.Hour,
	}
}

func (c PinGuardConfig) escalates() bool {
	return c.LockoutMultiplier > 1
}

// PinGuard implements the rate-limited PIN gate in front of parent mode
type PinGuard struct {
	attempts    AttemptRepository
	credentials CredentialReader
	notifier    LockoutNotifier
	delay       *auth.FailureDelay
	config      PinGuardConfig
	clock       clock.Clock
	locks       *keyedMutex
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewPinGuard creates a new PinGuard. notifier and delay may be nil.
func NewPinGuard(
	attempts AttemptRepository,
	credentials CredentialReader,
	notifier LockoutNotifier,
	delay *auth.FailureDelay,
	config PinGuardConfig,
	clk clock.Clock,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *PinGuard {
	if auditLogger == nil {
		auditLogger = pkglogger.NewAuditLogger(logger)
	}
	return &PinGuard{
		attempts:    attempts,
		credentials: credentials,
		notifier:    notifier,
		delay:       delay,
		config:      config,
		clock:       clk,
		locks:       newKeyedMutex(),
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Verify compares candidate with a stored argon2id digest in constant time.
// It performs no bookkeeping.
func (g *PinGuard) Verify(candidate, storedHash, salt string) (bool, error) {
	return g.verifyWith(pkgauth.Argon2idHasher{}, candidate, storedHash, salt)
}

// VerifyCredential compares candidate against cred using the algorithm recorded on it
func (g *PinGuard) VerifyCredential(candidate string, cred *models.Credential) (bool, error) {
	hasher, err := pkgauth.HasherFor(cred.HashAlgorithm)
	if err != nil {
		return false, models.Infrastructure("verify pin", err)
	}
	return g.verifyWith(hasher, candidate, cred.PINHash, cred.Salt)
}

func (g *PinGuard) verifyWith(hasher pkgauth.PINHasher, candidate, storedHash, salt string) (bool, error) {
	if err := pkgauth.ValidatePIN(candidate); err != nil {
		return false, models.ErrInvalidPIN
	}

	ok, err := hasher.Compare(candidate, salt, storedHash)
	if err != nil {
		// never reported as a wrong PIN
		return false, models.Infrastructure("verify pin", err)
	}
	return ok, nil
}

// CheckStatus reports whether userID may enter a PIN. An elapsed lock reads as
// unlocked with the full attempt budget.
func (g *PinGuard) CheckStatus(ctx context.Context, userID string) (models.PinStatus, error) {
	record, err := g.load(ctx, userID)
	if err != nil {
		return models.PinStatus{}, err
	}
	return g.status(record, g.clock.Now()), nil
}

func (g *PinGuard) status(record *models.AttemptRecord, now time.Time) models.PinStatus {
	maxAttempts := g.config.MaxFailedAttempts

	switch {
	case record == nil || record.LockExpired(now):
		return models.PinStatus{AttemptsRemaining: maxAttempts}
	case record.IsLocked(now):
		return models.PinStatus{
			Blocked:          true,
			RemainingSeconds: ceilSeconds(record.LockedUntil.Sub(now)),
		}
	default:
		remaining := maxAttempts - record.FailedCount
		if remaining < 0 {
			remaining = 0
		}
		return models.PinStatus{AttemptsRemaining: remaining}
	}
}

// RecordFailure counts one wrong PIN and locks the user at the threshold.
// While locked nothing is consumed and the current lock is reported.
func (g *PinGuard) RecordFailure(ctx context.Context, userID string) (models.FailureResult, error) {
	unlock := g.locks.Lock(userID)
	defer unlock()

	return g.recordFailure(ctx, userID, "")
}

func (g *PinGuard) recordFailure(ctx context.Context, userID, contactEmail string) (models.FailureResult, error) {
	record, err := g.load(ctx, userID)
	if err != nil {
		return models.FailureResult{}, err
	}

	now := g.clock.Now()
	if record == nil {
		record = &models.AttemptRecord{UserID: userID}
	}

	if record.IsLocked(now) {
		return models.FailureResult{
			Locked:         true,
			LockoutSeconds: ceilSeconds(record.LockedUntil.Sub(now)),
		}, nil
	}

	if record.LockExpired(now) {
		record.FailedCount = 0
		record.LockedUntil = nil
	}

	record.FailedCount++
	record.UpdatedAt = now

	if record.FailedCount < g.config.MaxFailedAttempts {
		if err := g.save(ctx, record, g.unlockedTTL(record)); err != nil {
			return models.FailureResult{}, err
		}
		return models.FailureResult{AttemptsRemaining: g.config.MaxFailedAttempts - record.FailedCount}, nil
	}

	duration := g.lockoutDuration(record.LockoutCount)
	lockedUntil := now.Add(duration)
	record.LockedUntil = &lockedUntil
	record.LockoutCount++

	if err := g.save(ctx, record, duration+g.config.EscalationWindow); err != nil {
		return models.FailureResult{}, err
	}

	g.logger.Warn("pin entry locked",
		slog.String("user_id", userID),
		slog.Int("lockout_count", record.LockoutCount),
		slog.Duration("lockout_duration", duration))
	g.auditLogger.LogLockout(ctx, userID, record.LockoutCount, lockedUntil)
	g.notifyLockout(ctx, record, contactEmail)

	return models.FailureResult{
		Locked:         true,
		LockoutSeconds: ceilSeconds(duration),
	}, nil
}

// Reset clears the attempt record after a correct PIN
func (g *PinGuard) Reset(ctx context.Context, userID string) error {
	unlock := g.locks.Lock(userID)
	defer unlock()

	return g.reset(ctx, userID)
}

func (g *PinGuard) reset(ctx context.Context, userID string) error {
	if err := g.attempts.Delete(ctx, userID); err != nil {
		return asInfrastructure("reset pin attempts", err)
	}
	return nil
}

// Authenticate runs one PIN entry end to end: format check, lock check,
// credential lookup, verification and bookkeeping. Wrong and locked outcomes
// are returned as *models.PinError.
func (g *PinGuard) Authenticate(ctx context.Context, userID, candidate, ipAddress string) error {
	start := time.Now()

	if err := pkgauth.ValidatePIN(candidate); err != nil {
		return models.ErrInvalidPIN
	}

	err := g.authenticate(ctx, userID, candidate, ipAddress)

	if errors.Is(err, models.ErrWrongPIN) || errors.Is(err, models.ErrLocked) {
		g.delay.WaitFrom(start)
	}
	return err
}

func (g *PinGuard) authenticate(ctx context.Context, userID, candidate, ipAddress string) error {
	unlock := g.locks.Lock(userID)
	defer unlock()

	record, err := g.load(ctx, userID)
	if err != nil {
		return err
	}

	if status := g.status(record, g.clock.Now()); status.Blocked {
		g.auditLogger.LogPinAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventPinBlocked,
			UserID:        userID,
			IPAddress:     ipAddress,
			FailureReason: "locked",
		})
		return &models.PinError{Kind: models.ErrLocked, RemainingSeconds: status.RemainingSeconds}
	}

	cred, err := g.credentials.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrCredentialNotFound
		}
		return asInfrastructure("load pin credential", err)
	}

	ok, err := g.VerifyCredential(candidate, cred)
	if err != nil {
		g.logger.Error("pin verification unavailable", slog.String("user_id", userID), slog.Any("error", err))
		return err
	}

	if !ok {
		result, err := g.recordFailure(ctx, userID, cred.ContactEmail)
		if err != nil {
			return err
		}

		g.auditLogger.LogPinAttempt(ctx, pkglogger.AuditEvent{
			EventType:         pkglogger.EventPinRejected,
			UserID:            userID,
			IPAddress:         ipAddress,
			FailureReason:     "wrong_pin",
			AttemptsRemaining: result.AttemptsRemaining,
		})

		if result.Locked {
			return &models.PinError{Kind: models.ErrLocked, RemainingSeconds: result.LockoutSeconds}
		}
		return &models.PinError{Kind: models.ErrWrongPIN, AttemptsRemaining: result.AttemptsRemaining}
	}

	if err := g.reset(ctx, userID); err != nil {
		return err
	}

	g.auditLogger.LogPinAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPinVerified,
		UserID:    userID,
		IPAddress: ipAddress,
		Success:   true,
	})
	return nil
}

// lockoutDuration returns base * multiplier^previousLockouts, capped, when escalation is on
func (g *PinGuard) lockoutDuration(previousLockouts int) time.Duration {
	base := g.config.LockoutDuration
	if !g.config.escalates() || previousLockouts == 0 {
		return base
	}

	scaled := float64(base) * math.Pow(g.config.LockoutMultiplier, float64(previousLockouts))
	if limit := g.config.MaxLockoutDuration; limit > 0 && (scaled > float64(limit) || math.IsInf(scaled, 1)) {
		return limit
	}
	return time.Duration(scaled)
}

// unlockedTTL keeps records with failures forever, except that under escalation a
// record only carrying lockout history decays after the escalation window
func (g *PinGuard) unlockedTTL(record *models.AttemptRecord) time.Duration {
	if g.config.escalates() && record.LockoutCount > 0 {
		return g.config.EscalationWindow
	}
	return 0
}

func (g *PinGuard) load(ctx context.Context, userID string) (*models.AttemptRecord, error) {
	record, err := g.attempts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, asInfrastructure("load pin attempts", err)
	}
	return record, nil
}

func (g *PinGuard) save(ctx context.Context, record *models.AttemptRecord, ttl time.Duration) error {
	if err := g.attempts.Save(ctx, record, ttl); err != nil {
		return asInfrastructure("save pin attempts", err)
	}
	return nil
}

func (g *PinGuard) notifyLockout(ctx context.Context, record *models.AttemptRecord, contactEmail string) {
	if g.notifier == nil {
		return
	}

	// The lockout is already stored; a client hanging up must not cancel the email
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if contactEmail == "" {
		if cred, err := g.credentials.Get(ctx, record.UserID); err == nil {
			contactEmail = cred.ContactEmail
		}
	}

	event := models.LockoutEvent{
		UserID:         record.UserID,
		ContactEmail:   contactEmail,
		FailedAttempts: record.FailedCount,
		LockoutCount:   record.LockoutCount,
		LockedUntil:    *record.LockedUntil,
	}
	if err := g.notifier.NotifyLockout(ctx, event); err != nil {
		g.logger.Error("failed to send lockout notification",
			slog.String("user_id", record.UserID),
			slog.Any("error", err))
	}
}

// ceilSeconds rounds a positive duration up to whole seconds
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func asInfrastructure(op string, err error) error {
	if errors.Is(err, models.ErrInfrastructure) {
		return err
	}
	return models.Infrastructure(op, err)
}
