package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/questkeep/questkeep/internal/auth"
	"github.com/questkeep/questkeep/internal/handlers"
	"github.com/questkeep/questkeep/internal/models"
)

func TestEnroll_Success(t *testing.T) {
	var gotEmail string
	svc := &handlers.MockCredentialService{
		EnrollFunc: func(ctx context.Context, userID, pin, contactEmail, ipAddress string) error {
			gotEmail = contactEmail
			return nil
		},
	}
	handler := handlers.NewCredentialHandler(svc, nil, discardLogger())

	req := handlers.NewTestRequest(t, "POST", "/pin/credentials", handlers.EnrollRequest{
		UserID:       "parent-1",
		PIN:          "1234",
		ContactEmail: "parent@example.com",
	})
	w := httptest.NewRecorder()
	handler.Enroll(w, req)

	handlers.AssertJSONResponse(t, w, http.StatusCreated, nil)
	assert.Equal(t, "parent@example.com", gotEmail)
}

func TestEnroll_Conflict(t *testing.T) {
	svc := &handlers.MockCredentialService{
		EnrollFunc: func(ctx context.Context, userID, pin, contactEmail, ipAddress string) error {
			return models.ErrConflict
		},
	}
	handler := handlers.NewCredentialHandler(svc, nil, discardLogger())

	req := handlers.NewTestRequest(t, "POST", "/pin/credentials", handlers.EnrollRequest{UserID: "parent-1", PIN: "1234"})
	w := httptest.NewRecorder()
	handler.Enroll(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusConflict, "conflict")
}

func TestEnroll_Validation(t *testing.T) {
	handler := handlers.NewCredentialHandler(&handlers.MockCredentialService{}, nil, discardLogger())

	req := handlers.NewTestRequest(t, "POST", "/pin/credentials", handlers.EnrollRequest{UserID: "parent-1", PIN: "1234", ContactEmail: "not-an-email"})
	w := httptest.NewRecorder()
	handler.Enroll(w, req)
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")

	req = handlers.NewTestRequest(t, "POST", "/pin/credentials", handlers.EnrollRequest{UserID: "parent-1", PIN: "12"})
	w = httptest.NewRecorder()
	handler.Enroll(w, req)
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "invalid_pin")
}

func TestChangePIN(t *testing.T) {
	var gotUser, gotPIN string
	svc := &handlers.MockCredentialService{
		ChangePINFunc: func(ctx context.Context, userID, newPIN, ipAddress string) error {
			gotUser, gotPIN = userID, newPIN
			return nil
		},
	}
	handler := handlers.NewCredentialHandler(svc, nil, discardLogger())

	req := handlers.NewTestRequest(t, "PUT", "/pin/credentials/parent-1", handlers.ChangePINRequest{NewPIN: "9876"})
	req = handlers.WithChiRouteContext(req, map[string]string{"userID": "parent-1"})
	w := httptest.NewRecorder()
	handler.ChangePIN(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "parent-1", gotUser)
	assert.Equal(t, "9876", gotPIN)
}

func TestChangePIN_NotEnrolled(t *testing.T) {
	svc := &handlers.MockCredentialService{
		ChangePINFunc: func(ctx context.Context, userID, newPIN, ipAddress string) error {
			return models.ErrCredentialNotFound
		},
	}
	handler := handlers.NewCredentialHandler(svc, nil, discardLogger())

	req := handlers.NewTestRequest(t, "PUT", "/pin/credentials/parent-1", handlers.ChangePINRequest{NewPIN: "9876"})
	req = handlers.WithChiRouteContext(req, map[string]string{"userID": "parent-1"})
	w := httptest.NewRecorder()
	handler.ChangePIN(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "credential_not_found")
}

func TestEnrollRecovery(t *testing.T) {
	svc := &handlers.MockCredentialService{
		EnrollRecoveryFunc: func(ctx context.Context, userID, accountName, ipAddress string) (*auth.RecoveryEnrollment, error) {
			assert.Equal(t, "parent-1", userID)
			return &auth.RecoveryEnrollment{
				Secret:          "JBSWY3DPEHPK3PXP",
				ProvisioningURL: "otpauth://totp/QuestKeep:parent-1?secret=JBSWY3DPEHPK3PXP",
				QRCodeDataURL:   "data:image/png;base64,AAAA",
				EncryptedSecret: []byte("ciphertext"),
			}, nil
		},
	}
	handler := handlers.NewCredentialHandler(svc, nil, discardLogger())

	req := httptest.NewRequest("POST", "/pin/recovery/parent-1/enroll", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"userID": "parent-1"})
	w := httptest.NewRecorder()
	handler.EnrollRecovery(w, req)

	var resp handlers.EnrollRecoveryResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", resp.Secret)
	assert.Contains(t, resp.QRCode, "data:image/png;base64,")
	assert.NotContains(t, w.Body.String(), "ciphertext")
}

func TestEnrollRecovery_NotConfigured(t *testing.T) {
	handler := handlers.NewCredentialHandler(&handlers.MockCredentialService{}, nil, discardLogger())

	req := httptest.NewRequest("POST", "/pin/recovery/parent-1/enroll", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"userID": "parent-1"})
	w := httptest.NewRecorder()
	handler.EnrollRecovery(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotImplemented, "recovery_unavailable")
}

func TestRecover(t *testing.T) {
	tests := []struct {
		name       string
		body       handlers.RecoverRequest
		err        error
		wantStatus int
		wantCode   string
	}{
		{"success", handlers.RecoverRequest{Code: "123456", NewPIN: "4321"}, nil, http.StatusNoContent, ""},
		{"bad code", handlers.RecoverRequest{Code: "123456", NewPIN: "4321"}, models.ErrInvalidRecovery, http.StatusUnauthorized, "invalid_recovery"},
		{"too many codes", handlers.RecoverRequest{Code: "123456", NewPIN: "4321"}, &models.PinError{Kind: models.ErrRecoveryLocked, RemainingSeconds: 900}, http.StatusLocked, "locked"},
		{"malformed code", handlers.RecoverRequest{Code: "12", NewPIN: "4321"}, nil, http.StatusBadRequest, "bad_request"},
		{"malformed pin", handlers.RecoverRequest{Code: "123456", NewPIN: "43"}, nil, http.StatusBadRequest, "invalid_pin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &handlers.MockCredentialService{
				RecoverFunc: func(ctx context.Context, userID, code, newPIN, ipAddress string) error {
					return tt.err
				},
			}
			handler := handlers.NewCredentialHandler(svc, nil, discardLogger())

			req := handlers.NewTestRequest(t, "POST", "/pin/recovery/parent-1", tt.body)
			req = handlers.WithChiRouteContext(req, map[string]string{"userID": "parent-1"})
			w := httptest.NewRecorder()
			handler.Recover(w, req)

			if tt.wantCode == "" {
				assert.Equal(t, tt.wantStatus, w.Code)
				return
			}
			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}
