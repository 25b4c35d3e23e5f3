package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/questkeep/questkeep/internal/auth"
	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

// CredentialServiceInterface defines the credential lifecycle operations
type CredentialServiceInterface interface {
	Enroll(ctx context.Context, userID, pin, contactEmail, ipAddress string) error
	ChangePIN(ctx context.Context, userID, newPIN, ipAddress string) error
	EnrollRecovery(ctx context.Context, userID, accountName, ipAddress string) (*auth.RecoveryEnrollment, error)
	Recover(ctx context.Context, userID, code, newPIN, ipAddress string) error
}

// CredentialHandler handles PIN enrolment, change and recovery
type CredentialHandler struct {
	service    CredentialServiceInterface
	ipResolver *pkghttp.ClientIPResolver
	logger     *slog.Logger
}

// NewCredentialHandler creates a new CredentialHandler
func NewCredentialHandler(service CredentialServiceInterface, ipResolver *pkghttp.ClientIPResolver, logger *slog.Logger) *CredentialHandler {
	return &CredentialHandler{
		service:    service,
		ipResolver: ipResolver,
		logger:     logger,
	}
}

// EnrollRequest is sent by the sync layer when a parent first sets a PIN
type EnrollRequest struct {
	UserID       string `json:"user_id" validate:"required,max=128"`
	PIN          string `json:"pin" validate:"required,len=4,numeric"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
}

// ChangePINRequest replaces the PIN while in parent mode
type ChangePINRequest struct {
	NewPIN string `json:"new_pin" validate:"required,len=4,numeric"`
}

// EnrollRecoveryRequest sets up authenticator-based recovery
type EnrollRecoveryRequest struct {
	AccountName string `json:"account_name" validate:"omitempty,max=128"`
}

// EnrollRecoveryResponse carries the secret once; it is never readable again
type EnrollRecoveryResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURL string `json:"provisioning_url"`
	QRCode          string `json:"qr_code"`
}

// RecoverRequest replaces a forgotten PIN with an authenticator code
type RecoverRequest struct {
	Code   string `json:"code" validate:"required,len=6,numeric"`
	NewPIN string `json:"new_pin" validate:"required,len=4,numeric"`
}

// Enroll handles first-time PIN setup
// @Summary Enroll a PIN credential
// @Accept json
// @Param request body EnrollRequest true "Enrollment"
// @Success 201
// @Failure 409 {object} ErrorResponse
// @Router /pin/credentials [post]
func (h *CredentialHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.Enroll(r.Context(), req.UserID, req.PIN, req.ContactEmail, h.ipResolver.ClientIP(r)); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]string{"user_id": req.UserID})
}

// ChangePIN handles a PIN change. The route requires parent mode.
// @Router /pin/credentials/{userID} [put]
func (h *CredentialHandler) ChangePIN(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req ChangePINRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.ChangePIN(r.Context(), userID, req.NewPIN, h.ipResolver.ClientIP(r)); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EnrollRecovery issues a recovery secret. The route requires parent mode.
// @Router /pin/recovery/{userID}/enroll [post]
func (h *CredentialHandler) EnrollRecovery(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req EnrollRecoveryRequest
	if r.ContentLength != 0 {
		if err := pkghttp.DecodeJSON(r, &req); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid request body")
			return
		}
		if err := ValidateRequest(req); err != nil {
			writeValidationError(w, err)
			return
		}
	}

	enrollment, err := h.service.EnrollRecovery(r.Context(), userID, req.AccountName, h.ipResolver.ClientIP(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, EnrollRecoveryResponse{
		Secret:          enrollment.Secret,
		ProvisioningURL: enrollment.ProvisioningURL,
		QRCode:          enrollment.QRCodeDataURL,
	})
}

// Recover resets a forgotten PIN
// @Router /pin/recovery/{userID} [post]
func (h *CredentialHandler) Recover(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req RecoverRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.Recover(r.Context(), userID, req.Code, req.NewPIN, h.ipResolver.ClientIP(r)); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
