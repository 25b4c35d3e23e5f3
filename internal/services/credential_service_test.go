package services

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questkeep/questkeep/internal/auth"
	"github.com/questkeep/questkeep/internal/clock"
	"github.com/questkeep/questkeep/internal/models"
	"github.com/questkeep/questkeep/internal/repositories"
	pkgauth "github.com/questkeep/questkeep/pkg/auth"
)

type credentialFixture struct {
	service     *CredentialService
	guard       *PinGuard
	credentials *repositories.CredentialRepository
	store       *repositories.MemoryStore
	clock       *clock.MockClock
}

func newCredentialFixture(t *testing.T, withRecovery bool) credentialFixture {
	t.Helper()
	clk := testClock()
	store := repositories.NewMemoryStore(clk)
	credentials := repositories.NewCredentialRepository(store)
	guard := NewPinGuard(repositories.NewAttemptRepository(store), credentials, nil, nil,
		DefaultPinGuardConfig(), clk, testLogger(), nil)

	var rm *auth.RecoveryManager
	if withRecovery {
		var err error
		rm, err = auth.NewRecoveryManager([]byte("0123456789abcdef0123456789abcdef"), "QuestKeep", clk)
		require.NoError(t, err)
	}

	service := NewCredentialService(credentials, repositories.NewRecoveryRepository(store),
		repositories.NewRecoveryAttemptRepository(store), rm, guard, pkgauth.Argon2idHasher{},
		DefaultCredentialServiceConfig(), clk, testLogger(), nil)

	return credentialFixture{service: service, guard: guard, credentials: credentials, store: store, clock: clk}
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestCredentialService_Enroll(t *testing.T) {
	f := newCredentialFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.service.Enroll(ctx, "parent-1", "1234", "parent@example.com", ""))

	cred, err := f.credentials.Get(ctx, "parent-1")
	require.NoError(t, err)
	assert.Equal(t, pkgauth.AlgorithmArgon2id, cred.HashAlgorithm)
	assert.NotContains(t, cred.PINHash, "1234")
	assert.NotEmpty(t, cred.Salt)
	assert.Equal(t, "parent@example.com", cred.ContactEmail)

	require.NoError(t, f.guard.Authenticate(ctx, "parent-1", "1234", ""))
}

func TestCredentialService_EnrollTwiceConflicts(t *testing.T) {
	f := newCredentialFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.service.Enroll(ctx, "parent-1", "1234", "", ""))
	assert.ErrorIs(t, f.service.Enroll(ctx, "parent-1", "5678", "", ""), models.ErrConflict)
}

func TestCredentialService_EnrollRejectsBadPIN(t *testing.T) {
	f := newCredentialFixture(t, false)

	err := f.service.Enroll(context.Background(), "parent-1", "12", "", "")
	assert.ErrorIs(t, err, models.ErrInvalidPIN)
}

func TestCredentialService_ChangePIN(t *testing.T) {
	f := newCredentialFixture(t, false)
	ctx := context.Background()

	assert.ErrorIs(t, f.service.ChangePIN(ctx, "parent-1", "1111", ""), models.ErrCredentialNotFound)

	require.NoError(t, f.service.Enroll(ctx, "parent-1", "1234", "parent@example.com", ""))
	require.NoError(t, f.service.ChangePIN(ctx, "parent-1", "9876", ""))

	assert.ErrorIs(t, f.guard.Authenticate(ctx, "parent-1", "1234", ""), models.ErrWrongPIN)
	require.NoError(t, f.guard.Authenticate(ctx, "parent-1", "9876", ""))

	cred, err := f.credentials.Get(ctx, "parent-1")
	require.NoError(t, err)
	assert.Equal(t, "parent@example.com", cred.ContactEmail, "contact is kept across changes")
}

func TestCredentialService_RecoveryUnavailable(t *testing.T) {
	f := newCredentialFixture(t, false)
	ctx := context.Background()

	_, err := f.service.EnrollRecovery(ctx, "parent-1", "", "")
	assert.ErrorIs(t, err, models.ErrRecoveryUnavailable)
	assert.ErrorIs(t, f.service.Recover(ctx, "parent-1", "123456", "1111", ""), models.ErrRecoveryUnavailable)
}

func TestCredentialService_RecoverUnlocksLockedUser(t *testing.T) {
	f := newCredentialFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.service.Enroll(ctx, "parent-1", "1234", "", ""))
	enrollment, err := f.service.EnrollRecovery(ctx, "parent-1", "parent@example.com", "")
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.QRCodeDataURL)

	for i := 0; i < 5; i++ {
		_ = f.guard.Authenticate(ctx, "parent-1", "0000", "")
	}
	status, err := f.guard.CheckStatus(ctx, "parent-1")
	require.NoError(t, err)
	require.True(t, status.Blocked)

	assert.ErrorIs(t, f.service.Recover(ctx, "parent-1", "000000", "4321", ""), models.ErrInvalidRecovery)

	code := totpCode(t, enrollment.Secret, f.clock.Now())
	require.NoError(t, f.service.Recover(ctx, "parent-1", code, "4321", ""))

	status, err = f.guard.CheckStatus(ctx, "parent-1")
	require.NoError(t, err)
	assert.False(t, status.Blocked)
	assert.Equal(t, 5, status.AttemptsRemaining)

	require.NoError(t, f.guard.Authenticate(ctx, "parent-1", "4321", ""))
}

func TestCredentialService_RecoverWithoutEnrollment(t *testing.T) {
	f := newCredentialFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.service.Enroll(ctx, "parent-1", "1234", "", ""))

	assert.ErrorIs(t, f.service.Recover(ctx, "parent-1", "123456", "4321", ""), models.ErrInvalidRecovery)
	assert.ErrorIs(t, f.service.Recover(ctx, "parent-1", "123456", "43", ""), models.ErrInvalidPIN)
}

func TestCredentialService_EnrollRecoveryRequiresCredential(t *testing.T) {
	f := newCredentialFixture(t, true)

	_, err := f.service.EnrollRecovery(context.Background(), "parent-1", "", "")
	assert.ErrorIs(t, err, models.ErrCredentialNotFound)
}

func TestCredentialService_StorageFailure(t *testing.T) {
	creds := &MockCredentialRepository{
		CreateFunc: func(ctx context.Context, cred *models.Credential) error {
			return errBackendDown
		},
	}
	service := NewCredentialService(creds, nil, nil, nil, nil, pkgauth.Argon2idHasher{},
		CredentialServiceConfig{}, testClock(), testLogger(), nil)

	err := service.Enroll(context.Background(), "parent-1", "1234", "", "")
	assert.ErrorIs(t, err, models.ErrInfrastructure)
}

func TestCredentialService_RecoveryCodeWorksOnce(t *testing.T) {
	f := newCredentialFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.service.Enroll(ctx, "parent-1", "1234", "", ""))
	enrollment, err := f.service.EnrollRecovery(ctx, "parent-1", "", "")
	require.NoError(t, err)

	code := totpCode(t, enrollment.Secret, f.clock.Now())
	require.NoError(t, f.service.Recover(ctx, "parent-1", code, "4321", ""))

	err = f.service.Recover(ctx, "parent-1", code, "9999", "")
	assert.ErrorIs(t, err, models.ErrInvalidRecovery)
	require.NoError(t, f.guard.Authenticate(ctx, "parent-1", "4321", ""), "replayed code must not change the PIN")

	f.clock.Advance(30 * time.Second)
	next := totpCode(t, enrollment.Secret, f.clock.Now())
	assert.NoError(t, f.service.Recover(ctx, "parent-1", next, "9999", ""))
}

func TestCredentialService_RecoveryLocksAfterRepeatedBadCodes(t *testing.T) {
	f := newCredentialFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.service.Enroll(ctx, "parent-1", "1234", "", ""))
	enrollment, err := f.service.EnrollRecovery(ctx, "parent-1", "", "")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, f.service.Recover(ctx, "parent-1", "000000", "4321", ""), models.ErrInvalidRecovery)
	}

	err = f.service.Recover(ctx, "parent-1", "000000", "4321", "")
	var pinErr *models.PinError
	require.ErrorAs(t, err, &pinErr)
	assert.ErrorIs(t, err, models.ErrRecoveryLocked)
	assert.ErrorIs(t, err, models.ErrLocked)
	assert.Equal(t, 900, pinErr.RemainingSeconds)

	// a valid code is refused while the budget is spent
	code := totpCode(t, enrollment.Secret, f.clock.Now())
	err = f.service.Recover(ctx, "parent-1", code, "4321", "")
	assert.ErrorIs(t, err, models.ErrRecoveryLocked)
	require.NoError(t, f.guard.Authenticate(ctx, "parent-1", "1234", ""), "pin unchanged while locked")

	// other users are unaffected
	require.NoError(t, f.service.Enroll(ctx, "parent-2", "1234", "", ""))
	assert.ErrorIs(t, f.service.Recover(ctx, "parent-2", "000000", "4321", ""), models.ErrInvalidRecovery)

	f.clock.Advance(15 * time.Minute)
	code = totpCode(t, enrollment.Secret, f.clock.Now())
	require.NoError(t, f.service.Recover(ctx, "parent-1", code, "4321", ""))

	_, err = repositories.NewRecoveryAttemptRepository(f.store).Get(ctx, "parent-1")
	assert.ErrorIs(t, err, models.ErrNotFound, "success clears the failure record")
}

func TestCredentialService_RecoveryFailuresDecay(t *testing.T) {
	f := newCredentialFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.service.Enroll(ctx, "parent-1", "1234", "", ""))
	_, err := f.service.EnrollRecovery(ctx, "parent-1", "", "")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_ = f.service.Recover(ctx, "parent-1", "000000", "4321", "")
	}
	f.clock.Advance(15*time.Minute + time.Second)

	assert.ErrorIs(t, f.service.Recover(ctx, "parent-1", "000000", "4321", ""), models.ErrInvalidRecovery)
}
