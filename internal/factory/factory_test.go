package factory

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questkeep/questkeep/internal/clock"
	"github.com/questkeep/questkeep/internal/config"
	"github.com/questkeep/questkeep/internal/models"
	"github.com/questkeep/questkeep/internal/repositories"
)

func testConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Backend: config.StoreMemory},
		Pin: config.PinConfig{
			MaxFailedAttempts:  5,
			LockoutDuration:    5 * time.Minute,
			LockoutMultiplier:  1,
			MaxLockoutDuration: time.Hour,
			EscalationWindow:   24 * time.Hour,
			HashAlgorithm:      "argon2id",
		},
		Auth: config.AuthConfig{
			ParentTokenSecret: "factory-test-secret-value-0123456789",
			ParentTokenExpiry: 10 * time.Minute,
		},
		Castle: config.CastleConfig{GridSize: 10, TileSize: 48},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_MemoryBackend(t *testing.T) {
	app, err := New(context.Background(), testConfig(), testLogger(), Options{Notifications: true})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, config.StoreMemory, app.Backend)
	assert.NotNil(t, app.PinGuard)
	assert.NotNil(t, app.CredentialService)
	assert.NotNil(t, app.CastleService)
	assert.NotNil(t, app.TokenManager)
	assert.NoError(t, app.Store.Ping(context.Background()))
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "etcd"

	_, err := New(context.Background(), cfg, testLogger(), Options{})
	assert.Error(t, err)
}

func TestNew_RejectsUnknownHashAlgorithm(t *testing.T) {
	cfg := testConfig()
	cfg.Pin.HashAlgorithm = "md5"

	_, err := New(context.Background(), cfg, testLogger(), Options{})
	assert.Error(t, err)
}

func TestNewWithStore_ServicesShareTheStore(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := repositories.NewMemoryStore(clk)
	app, err := NewWithStore(testConfig(), store, clk, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, app.CredentialService.Enroll(ctx, "parent-1", "1234", "", ""))
	require.NoError(t, app.PinGuard.Authenticate(ctx, "parent-1", "1234", ""))

	err = app.PinGuard.Authenticate(ctx, "parent-1", "9999", "")
	assert.ErrorIs(t, err, models.ErrWrongPIN)

	_, err = store.Get(ctx, repositories.AttemptKey("parent-1"))
	assert.NoError(t, err, "failure recorded in the shared store")
}

func TestNewWithStore_RecoveryEnabledByKey(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.RecoveryKey = []byte("0123456789abcdef0123456789abcdef")
	clk := clock.NewMock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	app, err := NewWithStore(cfg, repositories.NewMemoryStore(clk), clk, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, app.CredentialService.Enroll(ctx, "parent-1", "1234", "", ""))
	enrollment, err := app.CredentialService.EnrollRecovery(ctx, "parent-1", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Secret)
}
