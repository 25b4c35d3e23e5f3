package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/questkeep/questkeep/internal/clock"
	"github.com/questkeep/questkeep/internal/models"
)

// ScopeParentMode is the only scope a PIN verification can grant
const ScopeParentMode = "parent_mode"

// ParentModeClaims are carried by the token issued after a successful PIN entry
type ParentModeClaims struct {
	UserID string `json:"user_id"`
	Scope  string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates parent-mode tokens
type TokenManager struct {
	secret []byte
	expiry time.Duration
	clock  clock.Clock
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, expiry time.Duration, clk clock.Clock) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
		clock:  clk,
	}
}

// GenerateParentToken creates a short-lived parent-mode token for userID
func (tm *TokenManager) GenerateParentToken(userID string) (string, time.Time, error) {
	now := tm.clock.Now()
	expiresAt := now.Add(tm.expiry)

	claims := &ParentModeClaims{
		UserID: userID,
		Scope:  ScopeParentMode,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign parent token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken verifies a token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*ParentModeClaims, error) {
	claims := &ParentModeClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	if !token.Valid || claims.Scope != ScopeParentMode || claims.UserID == "" {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
