package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/questkeep/questkeep/internal/models"
	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

// CastleServiceInterface defines the castle layout operations
type CastleServiceInterface interface {
	Layout(ctx context.Context, sessionID string) ([]models.PlacedBuilding, error)
	Check(ctx context.Context, sessionID, buildingTypeID string, x, y int) error
	Place(ctx context.Context, sessionID, buildingTypeID string, x, y int) (*models.PlacedBuilding, error)
	Upgrade(ctx context.Context, sessionID, buildingID string) (*models.PlacedBuilding, error)
}

// CatalogResponse describes the grid and every building the player can place
type CatalogResponse struct {
	GridSize  int                   `json:"grid_size"`
	TileSize  int                   `json:"tile_size"`
	Buildings []models.BuildingType `json:"buildings"`
}

// CastleHandler handles castle building placement
type CastleHandler struct {
	service CastleServiceInterface
	catalog CatalogResponse
	logger  *slog.Logger
}

// NewCastleHandler creates a new CastleHandler
func NewCastleHandler(service CastleServiceInterface, catalog CatalogResponse, logger *slog.Logger) *CastleHandler {
	return &CastleHandler{
		service: service,
		catalog: catalog,
		logger:  logger,
	}
}

// PlacementRequest names a building type and its top-left cell. Coordinates are
// pointers so a missing value is rejected rather than read as zero.
type PlacementRequest struct {
	BuildingTypeID string `json:"building_type_id" validate:"required,max=64"`
	X              *int   `json:"x" validate:"required"`
	Y              *int   `json:"y" validate:"required"`
}

// CheckResponse is the result of a dry-run placement
type CheckResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// LayoutResponse lists the buildings of a session
type LayoutResponse struct {
	SessionID string                  `json:"session_id"`
	Buildings []models.PlacedBuilding `json:"buildings"`
}

// Catalog returns the grid dimensions and building catalog
// @Router /castle/catalog [get]
func (h *CastleHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.catalog)
}

// Layout returns the buildings placed in a session
// @Router /castle/{sessionID}/buildings [get]
func (h *CastleHandler) Layout(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	placed, err := h.service.Layout(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LayoutResponse{SessionID: sessionID, Buildings: placed})
}

// Check reports whether a building could be placed without placing it.
// Rule violations are a normal 200 answer; only malformed input and backend failures are errors.
// @Router /castle/{sessionID}/buildings/check [post]
func (h *CastleHandler) Check(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePlacement(w, r)
	if !ok {
		return
	}

	err := h.service.Check(r.Context(), chi.URLParam(r, "sessionID"), req.BuildingTypeID, *req.X, *req.Y)
	if err == nil {
		pkghttp.WriteJSON(w, http.StatusOK, CheckResponse{Allowed: true})
		return
	}

	reason := placementReason(err)
	if reason == "" {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, CheckResponse{Allowed: false, Reason: reason})
}

// Place validates and stores a new building
// @Router /castle/{sessionID}/buildings [post]
func (h *CastleHandler) Place(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePlacement(w, r)
	if !ok {
		return
	}

	building, err := h.service.Place(r.Context(), chi.URLParam(r, "sessionID"), req.BuildingTypeID, *req.X, *req.Y)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, building)
}

// Upgrade raises a building's level by one
// @Router /castle/{sessionID}/buildings/{buildingID}/upgrade [post]
func (h *CastleHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	building, err := h.service.Upgrade(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "buildingID"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, building)
}

func (h *CastleHandler) decodePlacement(w http.ResponseWriter, r *http.Request) (PlacementRequest, bool) {
	var req PlacementRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return req, false
	}
	if err := ValidateRequest(req); err != nil {
		writeValidationError(w, err)
		return req, false
	}
	return req, true
}
