package services

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/questkeep/questkeep/internal/clock"
	"github.com/questkeep/questkeep/internal/models"
	pkglogger "github.com/questkeep/questkeep/pkg/logger"
)

// LayoutRepository persists the buildings of each castle session
type LayoutRepository interface {
	Get(ctx context.Context, sessionID string) ([]models.PlacedBuilding, error)
	Save(ctx context.Context, sessionID string, placed []models.PlacedBuilding) error
}

// CastleService applies placement and upgrade actions to stored castle layouts
type CastleService struct {
	grid        *Grid
	layouts     LayoutRepository
	clock       clock.Clock
	locks       *keyedMutex
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewCastleService creates a new CastleService
func NewCastleService(grid *Grid, layouts LayoutRepository, clk clock.Clock, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *CastleService {
	if auditLogger == nil {
		auditLogger = pkglogger.NewAuditLogger(logger)
	}
	return &CastleService{
		grid:        grid,
		layouts:     layouts,
		clock:       clk,
		locks:       newKeyedMutex(),
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Grid returns the validator used by the service
func (s *CastleService) Grid() *Grid {
	return s.grid
}

// Layout returns the buildings placed in a session
func (s *CastleService) Layout(ctx context.Context, sessionID string) ([]models.PlacedBuilding, error) {
	placed, err := s.layouts.Get(ctx, sessionID)
	if err != nil {
		return nil, asInfrastructure("load castle layout", err)
	}
	return placed, nil
}

// Check validates a placement against the stored layout without changing it
func (s *CastleService) Check(ctx context.Context, sessionID, buildingTypeID string, x, y int) error {
	placed, err := s.Layout(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.grid.Validate(placed, buildingTypeID, x, y)
}

// Place validates and stores a new level 1 building
func (s *CastleService) Place(ctx context.Context, sessionID, buildingTypeID string, x, y int) (*models.PlacedBuilding, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	placed, err := s.Layout(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	next, building, err := s.grid.Place(placed, buildingTypeID, x, y, s.clock.Now())
	if err != nil {
		s.logger.Debug("placement rejected",
			slog.String("session_id", sessionID),
			slog.String("building_type_id", buildingTypeID),
			slog.Int("x", x),
			slog.Int("y", y),
			slog.Any("reason", err))
		return nil, err
	}

	if err := s.layouts.Save(ctx, sessionID, next); err != nil {
		return nil, asInfrastructure("save castle layout", err)
	}

	s.auditLogger.LogCastleAction(ctx, "building_placed", sessionID, map[string]string{
		"building_id":      building.ID,
		"building_type_id": buildingTypeID,
		"x":                strconv.Itoa(x),
		"y":                strconv.Itoa(y),
	})
	return &building, nil
}

// Upgrade raises a placed building's level by one, in place
func (s *CastleService) Upgrade(ctx context.Context, sessionID, buildingID string) (*models.PlacedBuilding, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	placed, err := s.Layout(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range placed {
		if placed[i].ID == buildingID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, models.ErrBuildingNotFound
	}

	placed[idx].Level++
	if err := s.layouts.Save(ctx, sessionID, placed); err != nil {
		return nil, asInfrastructure("save castle layout", err)
	}

	upgraded := placed[idx]
	s.auditLogger.LogCastleAction(ctx, "building_upgraded", sessionID, map[string]string{
		"building_id": buildingID,
		"level":       strconv.Itoa(upgraded.Level),
	})
	return &upgraded, nil
}
