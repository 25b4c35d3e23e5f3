package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/questkeep/questkeep/internal/auth"
	"github.com/questkeep/questkeep/internal/clock"
	"github.com/questkeep/questkeep/internal/models"
	pkgauth "github.com/questkeep/questkeep/pkg/auth"
	pkglogger "github.com/questkeep/questkeep/pkg/logger"
)

// CredentialStore persists PIN credentials
type CredentialStore interface {
	CredentialReader
	Create(ctx context.Context, cred *models.Credential) error
	Save(ctx context.Context, cred *models.Credential) error
}

// RecoveryStore persists encrypted recovery secrets
type RecoveryStore interface {
	Get(ctx context.Context, userID string) (*models.RecoverySecret, error)
	Save(ctx context.Context, secret *models.RecoverySecret) error
}

// AttemptResetter clears a user's failed attempts
type AttemptResetter interface {
	Reset(ctx context.Context, userID string) error
}

// CredentialServiceConfig bounds guessing of recovery codes per user
type CredentialServiceConfig struct {
	MaxRecoveryAttempts int           // failed codes allowed inside RecoveryLockout
	RecoveryLockout     time.Duration // failure window, and lock length once exceeded
}

// DefaultCredentialServiceConfig allows five wrong codes per fifteen minutes
func DefaultCredentialServiceConfig() CredentialServiceConfig {
	return CredentialServiceConfig{
		MaxRecoveryAttempts: 5,
		RecoveryLockout:     15 * time.Minute,
	}
}

// CredentialService manages the lifecycle of PIN credentials: enrolment from the
// sync layer, changes made in parent mode, and authenticator-based recovery.
type CredentialService struct {
	credentials      CredentialStore
	recovery         RecoveryStore
	recoveryAttempts AttemptRepository
	recoveryMgr      *auth.RecoveryManager
	resetter         AttemptResetter
	hasher           pkgauth.PINHasher
	config           CredentialServiceConfig
	clock            clock.Clock
	locks       *keyedMutex
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewCredentialService creates a new CredentialService. recoveryMgr may be nil,
// in which case recovery is unavailable. Zero config fields take the defaults.
func NewCredentialService(
	credentials CredentialStore,
	recovery RecoveryStore,
	recoveryAttempts AttemptRepository,
	recoveryMgr *auth.RecoveryManager,
	resetter AttemptResetter,
	hasher pkgauth.PINHasher,
	config CredentialServiceConfig,
	clk clock.Clock,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *CredentialService {
	if auditLogger == nil {
		auditLogger = pkglogger.NewAuditLogger(logger)
	}
	defaults := DefaultCredentialServiceConfig()
	if config.MaxRecoveryAttempts <= 0 {
		config.MaxRecoveryAttempts = defaults.MaxRecoveryAttempts
	}
	if config.RecoveryLockout <= 0 {
		config.RecoveryLockout = defaults.RecoveryLockout
	}
	return &CredentialService{
		credentials:      credentials,
		recovery:         recovery,
		recoveryAttempts: recoveryAttempts,
		recoveryMgr:      recoveryMgr,
		resetter:         resetter,
		hasher:           hasher,
		config:           config,
		clock:            clk,
		locks:       newKeyedMutex(),
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Enroll creates the first credential for userID. It fails with
// models.ErrConflict when one already exists.
func (s *CredentialService) Enroll(ctx context.Context, userID, pin, contactEmail, ipAddress string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cred, err := s.newCredential(userID, pin, contactEmail)
	if err != nil {
		return err
	}

	if err := s.credentials.Create(ctx, cred); err != nil {
		s.auditLogger.LogCredentialChange(ctx, pkglogger.EventCredentialEnroll, userID, ipAddress, false)
		if errors.Is(err, models.ErrConflict) {
			return err
		}
		return asInfrastructure("create pin credential", err)
	}

	s.auditLogger.LogCredentialChange(ctx, pkglogger.EventCredentialEnroll, userID, ipAddress, true)
	return nil
}

// ChangePIN replaces the PIN of an enrolled user. Callers must already hold parent mode.
func (s *CredentialService) ChangePIN(ctx context.Context, userID, newPIN, ipAddress string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.replacePIN(ctx, userID, newPIN, ipAddress, pkglogger.EventCredentialChange)
}

// EnrollRecovery issues a new authenticator secret for userID, replacing any previous one
func (s *CredentialService) EnrollRecovery(ctx context.Context, userID, accountName, ipAddress string) (*auth.RecoveryEnrollment, error) {
	if s.recoveryMgr == nil {
		return nil, models.ErrRecoveryUnavailable
	}

	if _, err := s.credentials.Get(ctx, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrCredentialNotFound
		}
		return nil, asInfrastructure("load pin credential", err)
	}

	if accountName == "" {
		accountName = userID
	}
	enrollment, err := s.recoveryMgr.Enroll(accountName)
	if err != nil {
		return nil, models.Infrastructure("enroll recovery", err)
	}

	secret := &models.RecoverySecret{
		UserID:          userID,
		EncryptedSecret: enrollment.EncryptedSecret,
		Nonce:           enrollment.Nonce,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.recovery.Save(ctx, secret); err != nil {
		return nil, asInfrastructure("save recovery secret", err)
	}

	s.auditLogger.LogCredentialChange(ctx, pkglogger.EventRecoveryEnrolled, userID, ipAddress, true)
	return enrollment, nil
}

// Recover replaces a forgotten PIN after a valid authenticator code and clears
// any lockout on the user. Wrong or replayed codes count against a per-user
// budget; once it is spent Recover answers with a locked *models.PinError
// until the window passes.
func (s *CredentialService) Recover(ctx context.Context, userID, code, newPIN, ipAddress string) error {
	if s.recoveryMgr == nil {
		return models.ErrRecoveryUnavailable
	}
	if err := pkgauth.ValidatePIN(newPIN); err != nil {
		return models.ErrInvalidPIN
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.clock.Now()
	record, err := s.loadRecoveryAttempts(ctx, userID)
	if err != nil {
		return err
	}
	if record.IsLocked(now) {
		s.auditLogger.LogCredentialChange(ctx, pkglogger.EventRecoveryRejected, userID, ipAddress, false)
		return &models.PinError{Kind: models.ErrRecoveryLocked, RemainingSeconds: ceilSeconds(record.LockedUntil.Sub(now))}
	}

	secret, err := s.recovery.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.rejectRecovery(ctx, record, userID, ipAddress)
		}
		return asInfrastructure("load recovery secret", err)
	}

	step, valid, err := s.recoveryMgr.Validate(secret.EncryptedSecret, secret.Nonce, code, secret.LastUsedStep)
	if err != nil {
		return models.Infrastructure("validate recovery code", err)
	}
	if !valid {
		return s.rejectRecovery(ctx, record, userID, ipAddress)
	}

	// burn the code before anything else can fail
	secret.LastUsedStep = step
	if err := s.recovery.Save(ctx, secret); err != nil {
		return asInfrastructure("save recovery secret", err)
	}

	if err := s.replacePIN(ctx, userID, newPIN, ipAddress, pkglogger.EventRecoveryCompleted); err != nil {
		return err
	}

	if err := s.recoveryAttempts.Delete(ctx, userID); err != nil {
		return asInfrastructure("reset recovery attempts", err)
	}
	return s.resetter.Reset(ctx, userID)
}

func (s *CredentialService) loadRecoveryAttempts(ctx context.Context, userID string) (*models.AttemptRecord, error) {
	record, err := s.recoveryAttempts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, asInfrastructure("load recovery attempts", err)
	}
	return record, nil
}

// rejectRecovery counts one bad code. The attempt that spends the budget is
// reported as locked.
func (s *CredentialService) rejectRecovery(ctx context.Context, record *models.AttemptRecord, userID, ipAddress string) error {
	s.auditLogger.LogCredentialChange(ctx, pkglogger.EventRecoveryRejected, userID, ipAddress, false)

	now := s.clock.Now()
	if record == nil || record.LockExpired(now) {
		record = &models.AttemptRecord{UserID: userID}
	}
	record.FailedCount++
	record.UpdatedAt = now

	locked := record.FailedCount >= s.config.MaxRecoveryAttempts
	if locked {
		lockedUntil := now.Add(s.config.RecoveryLockout)
		record.LockedUntil = &lockedUntil
		record.LockoutCount++
	}

	if err := s.recoveryAttempts.Save(ctx, record, s.config.RecoveryLockout); err != nil {
		return asInfrastructure("save recovery attempts", err)
	}

	if locked {
		s.logger.Warn("pin recovery locked",
			slog.String("user_id", userID),
			slog.Int("failed_codes", record.FailedCount))
		return &models.PinError{Kind: models.ErrRecoveryLocked, RemainingSeconds: ceilSeconds(s.config.RecoveryLockout)}
	}
	return models.ErrInvalidRecovery
}

func (s *CredentialService) replacePIN(ctx context.Context, userID, newPIN, ipAddress, event string) error {
	existing, err := s.credentials.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrCredentialNotFound
		}
		return asInfrastructure("load pin credential", err)
	}

	cred, err := s.newCredential(userID, newPIN, existing.ContactEmail)
	if err != nil {
		return err
	}

	if err := s.credentials.Save(ctx, cred); err != nil {
		s.auditLogger.LogCredentialChange(ctx, event, userID, ipAddress, false)
		return asInfrastructure("save pin credential", err)
	}

	s.auditLogger.LogCredentialChange(ctx, event, userID, ipAddress, true)
	return nil
}

func (s *CredentialService) newCredential(userID, pin, contactEmail string) (*models.Credential, error) {
	if err := pkgauth.ValidatePIN(pin); err != nil {
		return nil, models.ErrInvalidPIN
	}

	salt, err := pkgauth.GenerateSalt()
	if err != nil {
		return nil, models.Infrastructure("generate pin salt", err)
	}

	digest, err := s.hasher.Hash(pin, salt)
	if err != nil {
		return nil, models.Infrastructure("hash pin", err)
	}

	return &models.Credential{
		UserID:        userID,
		PINHash:       digest,
		Salt:          salt,
		HashAlgorithm: s.hasher.Algorithm(),
		ContactEmail:  contactEmail,
		UpdatedAt:     s.clock.Now(),
	}, nil
}
