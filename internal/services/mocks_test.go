package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/questkeep/questkeep/internal/clock"
	"github.com/questkeep/questkeep/internal/models"
	"github.com/questkeep/questkeep/internal/repositories"
	pkgauth "github.com/questkeep/questkeep/pkg/auth"
)

var errBackendDown = errors.New("connection refused")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClock() *clock.MockClock {
	return clock.NewMock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

// MockAttemptRepository implements AttemptRepository for testing
type MockAttemptRepository struct {
	GetFunc    func(ctx context.Context, userID string) (*models.AttemptRecord, error)
	SaveFunc   func(ctx context.Context, record *models.AttemptRecord, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, userID string) error
}

func (m *MockAttemptRepository) Get(ctx context.Context, userID string) (*models.AttemptRecord, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockAttemptRepository) Save(ctx context.Context, record *models.AttemptRecord, ttl time.Duration) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, record, ttl)
	}
	return nil
}

func (m *MockAttemptRepository) Delete(ctx context.Context, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

// MockCredentialRepository implements CredentialReader and CredentialStore for testing
type MockCredentialRepository struct {
	mu       sync.Mutex
	getCalls int

	GetFunc    func(ctx context.Context, userID string) (*models.Credential, error)
	CreateFunc func(ctx context.Context, cred *models.Credential) error
	SaveFunc   func(ctx context.Context, cred *models.Credential) error
}

func (m *MockCredentialRepository) Get(ctx context.Context, userID string) (*models.Credential, error) {
	m.mu.Lock()
	m.getCalls++
	m.mu.Unlock()
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return nil, models.ErrCredentialNotFound
}

func (m *MockCredentialRepository) Create(ctx context.Context, cred *models.Credential) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, cred)
	}
	return nil
}

func (m *MockCredentialRepository) Save(ctx context.Context, cred *models.Credential) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, cred)
	}
	return nil
}

func (m *MockCredentialRepository) GetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

// MockLockoutNotifier records lockout events
type MockLockoutNotifier struct {
	mu     sync.Mutex
	Events []models.LockoutEvent
	Err    error
	// OnNotify, when set, sees the context each delivery runs under
	OnNotify func(ctx context.Context)
}

func (m *MockLockoutNotifier) NotifyLockout(ctx context.Context, event models.LockoutEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OnNotify != nil {
		m.OnNotify(ctx)
	}
	m.Events = append(m.Events, event)
	return m.Err
}

// newTestCredential hashes pin with argon2id for userID
func newTestCredential(userID, pin string) *models.Credential {
	salt, err := pkgauth.GenerateSalt()
	if err != nil {
		panic(err)
	}
	digest, err := pkgauth.Argon2idHasher{}.Hash(pin, salt)
	if err != nil {
		panic(err)
	}
	return &models.Credential{
		UserID:        userID,
		PINHash:       digest,
		Salt:          salt,
		HashAlgorithm: pkgauth.AlgorithmArgon2id,
		ContactEmail:  "parent@example.com",
	}
}

// newMemoryPinGuard wires a PinGuard over an in-memory store
func newMemoryPinGuard(config PinGuardConfig, creds CredentialReader, notifier LockoutNotifier) (*PinGuard, *repositories.AttemptRepository, *clock.MockClock) {
	clk := testClock()
	attempts := repositories.NewAttemptRepository(repositories.NewMemoryStore(clk))
	if creds == nil {
		creds = &MockCredentialRepository{}
	}
	guard := NewPinGuard(attempts, creds, notifier, nil, config, clk, testLogger(), nil)
	return guard, attempts, clk
}
