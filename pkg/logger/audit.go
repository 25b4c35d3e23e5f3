package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventPinVerified       = "pin_verified"
	EventPinRejected       = "pin_rejected"
	EventPinLocked         = "pin_locked"
	EventPinBlocked        = "pin_blocked" // attempt refused while already locked
	EventPinReset          = "pin_reset"
	EventCredentialEnroll  = "credential_enrolled"
	EventCredentialChange  = "credential_changed"
	EventRecoveryEnrolled  = "recovery_enrolled"
	EventRecoveryCompleted = "recovery_completed"
	EventRecoveryRejected  = "recovery_rejected"
)

// AuditEvent represents a PIN security event
type AuditEvent struct {
	EventType         string
	UserID            string
	IPAddress         string
	Success           bool
	FailureReason     string
	AttemptsRemaining int
	Metadata          map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogPinAttempt logs a PIN entry and its outcome
func (al *AuditLogger) LogPinAttempt(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "pin"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("user_id", event.UserID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	if !event.Success {
		attrs = append(attrs, slog.Int("attempts_remaining", event.AttemptsRemaining))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.log(ctx, event.Success, attrs)
}

// LogLockout logs a user entering the locked state
func (al *AuditLogger) LogLockout(ctx context.Context, userID string, lockoutCount int, lockedUntil time.Time) {
	al.logger.LogAttrs(ctx, slog.LevelWarn, "audit",
		slog.String("audit_type", "pin"),
		slog.String("event_type", EventPinLocked),
		slog.String("user_id", userID),
		slog.Int("lockout_count", lockoutCount),
		slog.String("locked_until", lockedUntil.UTC().Format(time.RFC3339)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}

// LogCredentialChange logs enrolment, change and recovery of PIN credentials
func (al *AuditLogger) LogCredentialChange(ctx context.Context, eventType, userID, ipAddress string, success bool) {
	attrs := []slog.Attr{
		slog.String("audit_type", "credential"),
		slog.String("event_type", eventType),
		slog.Bool("success", success),
		slog.String("user_id", userID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	al.log(ctx, success, attrs)
}

// LogCastleAction logs castle layout mutations
func (al *AuditLogger) LogCastleAction(ctx context.Context, eventType, sessionID string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "castle"),
		slog.String("event_type", eventType),
		slog.String("session_id", sessionID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

func (al *AuditLogger) log(ctx context.Context, success bool, attrs []slog.Attr) {
	if success {
		al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(ctx, slog.LevelWarn, "audit", attrs...)
	}
}
