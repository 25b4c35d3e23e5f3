package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questkeep/questkeep/internal/auth"
	"github.com/questkeep/questkeep/internal/clock"
	"github.com/questkeep/questkeep/internal/models"
)

const testSecret = "test-secret-32-characters-long!!"

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	clk := clock.NewMock(time.Now())
	tm := auth.NewTokenManager(testSecret, 15*time.Minute, clk)

	token, expiresAt, err := tm.GenerateParentToken("parent-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, clk.Now().Add(15*time.Minute), expiresAt)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "parent-1", claims.UserID)
	assert.Equal(t, auth.ScopeParentMode, claims.Scope)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RejectsExpiredToken(t *testing.T) {
	clk := clock.NewMock(time.Now())
	tm := auth.NewTokenManager(testSecret, time.Minute, clk)

	token, _, err := tm.GenerateParentToken("parent-1")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)

	_, err = tm.ValidateToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_RejectsForeignSignature(t *testing.T) {
	clk := clock.NewMock(time.Now())
	issuer := auth.NewTokenManager("another-secret-32-characters-long", time.Minute, clk)
	verifier := auth.NewTokenManager(testSecret, time.Minute, clk)

	token, _, err := issuer.GenerateParentToken("parent-1")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Minute, clock.New())

	_, err := tm.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
