package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/questkeep/questkeep/internal/auth"
	"github.com/questkeep/questkeep/internal/models"
	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithChiRouteContext adds chi URL parameters to a request for testing
//
// Example usage:
//
//	req := httptest.NewRequest("GET", "/pin/status/parent-1", nil)
//	req = WithChiRouteContext(req, map[string]string{
//	    "userID": "parent-1",
//	})
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response and returns it
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockPinGuard implements PinGuardInterface for testing
type MockPinGuard struct {
	AuthenticateFunc func(ctx context.Context, userID, candidate, ipAddress string) error
	CheckStatusFunc  func(ctx context.Context, userID string) (models.PinStatus, error)
}

func (m *MockPinGuard) Authenticate(ctx context.Context, userID, candidate, ipAddress string) error {
	if m.AuthenticateFunc == nil {
		return &models.PinError{Kind: models.ErrWrongPIN, AttemptsRemaining: 4}
	}
	return m.AuthenticateFunc(ctx, userID, candidate, ipAddress)
}

func (m *MockPinGuard) CheckStatus(ctx context.Context, userID string) (models.PinStatus, error) {
	if m.CheckStatusFunc == nil {
		return models.PinStatus{AttemptsRemaining: 5}, nil
	}
	return m.CheckStatusFunc(ctx, userID)
}

// MockTokenIssuer implements ParentTokenIssuer for testing
type MockTokenIssuer struct {
	Token     string
	ExpiresAt time.Time
	Err       error
}

func (m *MockTokenIssuer) GenerateParentToken(userID string) (string, time.Time, error) {
	return m.Token, m.ExpiresAt, m.Err
}

// MockCredentialService implements CredentialServiceInterface for testing
type MockCredentialService struct {
	EnrollFunc         func(ctx context.Context, userID, pin, contactEmail, ipAddress string) error
	ChangePINFunc      func(ctx context.Context, userID, newPIN, ipAddress string) error
	EnrollRecoveryFunc func(ctx context.Context, userID, accountName, ipAddress string) (*auth.RecoveryEnrollment, error)
	RecoverFunc        func(ctx context.Context, userID, code, newPIN, ipAddress string) error
}

func (m *MockCredentialService) Enroll(ctx context.Context, userID, pin, contactEmail, ipAddress string) error {
	if m.EnrollFunc == nil {
		return nil
	}
	return m.EnrollFunc(ctx, userID, pin, contactEmail, ipAddress)
}

func (m *MockCredentialService) ChangePIN(ctx context.Context, userID, newPIN, ipAddress string) error {
	if m.ChangePINFunc == nil {
		return nil
	}
	return m.ChangePINFunc(ctx, userID, newPIN, ipAddress)
}

func (m *MockCredentialService) EnrollRecovery(ctx context.Context, userID, accountName, ipAddress string) (*auth.RecoveryEnrollment, error) {
	if m.EnrollRecoveryFunc == nil {
		return nil, models.ErrRecoveryUnavailable
	}
	return m.EnrollRecoveryFunc(ctx, userID, accountName, ipAddress)
}

func (m *MockCredentialService) Recover(ctx context.Context, userID, code, newPIN, ipAddress string) error {
	if m.RecoverFunc == nil {
		return models.ErrInvalidRecovery
	}
	return m.RecoverFunc(ctx, userID, code, newPIN, ipAddress)
}

// MockCastleService implements CastleServiceInterface for testing
type MockCastleService struct {
	LayoutFunc  func(ctx context.Context, sessionID string) ([]models.PlacedBuilding, error)
	CheckFunc   func(ctx context.Context, sessionID, buildingTypeID string, x, y int) error
	PlaceFunc   func(ctx context.Context, sessionID, buildingTypeID string, x, y int) (*models.PlacedBuilding, error)
	UpgradeFunc func(ctx context.Context, sessionID, buildingID string) (*models.PlacedBuilding, error)
}

func (m *MockCastleService) Layout(ctx context.Context, sessionID string) ([]models.PlacedBuilding, error) {
	if m.LayoutFunc == nil {
		return []models.PlacedBuilding{}, nil
	}
	return m.LayoutFunc(ctx, sessionID)
}

func (m *MockCastleService) Check(ctx context.Context, sessionID, buildingTypeID string, x, y int) error {
	if m.CheckFunc == nil {
		return nil
	}
	return m.CheckFunc(ctx, sessionID, buildingTypeID, x, y)
}

func (m *MockCastleService) Place(ctx context.Context, sessionID, buildingTypeID string, x, y int) (*models.PlacedBuilding, error) {
	if m.PlaceFunc == nil {
		return nil, models.ErrOverlap
	}
	return m.PlaceFunc(ctx, sessionID, buildingTypeID, x, y)
}

func (m *MockCastleService) Upgrade(ctx context.Context, sessionID, buildingID string) (*models.PlacedBuilding, error) {
	if m.UpgradeFunc == nil {
		return nil, models.ErrBuildingNotFound
	}
	return m.UpgradeFunc(ctx, sessionID, buildingID)
}

// MockPinger implements Pinger for testing
type MockPinger struct {
	Err error
}

func (m *MockPinger) Ping(context.Context) error {
	return m.Err
}
