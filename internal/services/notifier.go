package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/questkeep/questkeep/internal/events"
	"github.com/questkeep/questkeep/internal/models"
)

// LogNotifier only records lockouts in the service log
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyLockout(ctx context.Context, event models.LockoutEvent) error {
	n.logger.InfoContext(ctx, "pin lockout",
		slog.String("user_id", event.UserID),
		slog.Int("lockout_count", event.LockoutCount),
		slog.Time("locked_until", event.LockedUntil))
	return nil
}

// EmailNotifier emails the parent's contact address. Users without one are skipped.
type EmailNotifier struct {
	email EmailService
}

// NewEmailNotifier creates a new EmailNotifier
func NewEmailNotifier(email EmailService) *EmailNotifier {
	return &EmailNotifier{email: email}
}

func (n *EmailNotifier) NotifyLockout(ctx context.Context, event models.LockoutEvent) error {
	if event.ContactEmail == "" {
		return nil
	}
	return n.email.SendLockoutAlert(ctx, event.ContactEmail, event)
}

// EventNotifier publishes lockouts for the push notification layer
type EventNotifier struct {
	publisher events.Publisher
}

// NewEventNotifier creates a new EventNotifier
func NewEventNotifier(publisher events.Publisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) NotifyLockout(ctx context.Context, event models.LockoutEvent) error {
	// contact details stay out of the broker
	event.ContactEmail = ""
	return n.publisher.Publish(ctx, events.RoutingPinLocked, event)
}

// MultiNotifier fans a lockout out to every notifier and joins their errors
type MultiNotifier []LockoutNotifier

func (m MultiNotifier) NotifyLockout(ctx context.Context, event models.LockoutEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyLockout(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
