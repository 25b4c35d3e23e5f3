package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/questkeep/questkeep/internal/models"
	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

// PinGuardInterface defines the PIN checks the handler depends on
type PinGuardInterface interface {
	Authenticate(ctx context.Context, userID, candidate, ipAddress string) error
	CheckStatus(ctx context.Context, userID string) (models.PinStatus, error)
}

// ParentTokenIssuer issues the parent-mode token handed out after a correct PIN
type ParentTokenIssuer interface {
	GenerateParentToken(userID string) (string, time.Time, error)
}

// PinHandler handles PIN entry and lockout status requests
type PinHandler struct {
	guard      PinGuardInterface
	tokens     ParentTokenIssuer
	ipResolver *pkghttp.ClientIPResolver
	logger     *slog.Logger
}

// NewPinHandler creates a new PinHandler
func NewPinHandler(guard PinGuardInterface, tokens ParentTokenIssuer, ipResolver *pkghttp.ClientIPResolver, logger *slog.Logger) *PinHandler {
	return &PinHandler{
		guard:      guard,
		tokens:     tokens,
		ipResolver: ipResolver,
		logger:     logger,
	}
}

// VerifyPinRequest represents the request body for PIN entry
type VerifyPinRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	PIN    string `json:"pin" validate:"required,len=4,numeric"`
}

// VerifyPinResponse is returned after a correct PIN
type VerifyPinResponse struct {
	Verified    bool      `json:"verified"`
	ParentToken string    `json:"parent_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Verify handles a PIN entry
// @Summary Verify parent PIN
// @Accept json
// @Param request body VerifyPinRequest true "PIN entry"
// @Produce json
// @Success 200 {object} VerifyPinResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /pin/verify [post]
func (h *PinHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyPinRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		writeValidationError(w, err)
		return
	}

	ip := h.ipResolver.ClientIP(r)
	if err := h.guard.Authenticate(r.Context(), req.UserID, req.PIN, ip); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	token, expiresAt, err := h.tokens.GenerateParentToken(req.UserID)
	if err != nil {
		h.logger.Error("failed to issue parent token", slog.String("user_id", req.UserID), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to start parent mode")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, VerifyPinResponse{
		Verified:    true,
		ParentToken: token,
		ExpiresAt:   expiresAt,
	})
}

// Status reports whether a user is currently locked out
// @Summary PIN lockout status
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} models.PinStatus
// @Router /pin/status/{userID} [get]
func (h *PinHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "User ID is required")
		return
	}

	status, err := h.guard.CheckStatus(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}
