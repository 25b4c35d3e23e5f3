package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/questkeep/questkeep/internal/models"
	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

// writeServiceError maps a service error to its HTTP status and error code.
// Infrastructure is checked first so a wrapped backend error never leaks as a domain outcome.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var pinErr *models.PinError

	switch {
	case errors.Is(err, models.ErrInfrastructure):
		if logger != nil {
			logger.Error("backend unavailable", slog.Any("error", err))
		}
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
	case errors.As(err, &pinErr) && errors.Is(pinErr.Kind, models.ErrLocked):
		pkghttp.WriteLocked(w, pinErr.RemainingSeconds)
	case errors.As(err, &pinErr) && errors.Is(pinErr.Kind, models.ErrWrongPIN):
		pkghttp.WriteWrongPIN(w, pinErr.AttemptsRemaining)
	case errors.Is(err, models.ErrInvalidPIN):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_pin", "PIN must be exactly 4 digits")
	case errors.Is(err, models.ErrInvalidCoordinates):
		pkghttp.WriteUnprocessable(w, "invalid_coordinates", "Coordinates must be non-negative")
	case errors.Is(err, models.ErrOutOfBounds):
		pkghttp.WriteUnprocessable(w, "out_of_bounds", "Building does not fit inside the grid")
	case errors.Is(err, models.ErrOverlap):
		pkghttp.WriteError(w, http.StatusConflict, "overlap", "Building overlaps an existing building")
	case errors.Is(err, models.ErrUnknownBuildingType):
		pkghttp.WriteError(w, http.StatusNotFound, "unknown_building_type", "Unknown building type")
	case errors.Is(err, models.ErrCredentialNotFound):
		pkghttp.WriteError(w, http.StatusNotFound, "credential_not_found", "No PIN has been set up for this user")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "A PIN is already set up for this user")
	case errors.Is(err, models.ErrInvalidRecovery):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_recovery", "Recovery code is not valid")
	case errors.Is(err, models.ErrRecoveryUnavailable):
		pkghttp.WriteError(w, http.StatusNotImplemented, "recovery_unavailable", "PIN recovery is not configured")
	case errors.Is(err, models.ErrInvalidInput):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Unauthorized")
	default:
		if logger != nil {
			logger.Error("unhandled service error", slog.Any("error", err))
		}
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// placementReason is the machine-readable reason a placement check failed
func placementReason(err error) string {
	switch {
	case errors.Is(err, models.ErrUnknownBuildingType):
		return "unknown_building_type"
	case errors.Is(err, models.ErrInvalidCoordinates):
		return "invalid_coordinates"
	case errors.Is(err, models.ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, models.ErrOverlap):
		return "overlap"
	default:
		return ""
	}
}
