package database

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/questkeep/questkeep/internal/models"
)

// MapPostgresError translates pgx errors into model sentinels. Anything not
// recognised is reported as an infrastructure failure.
func MapPostgresError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23502", "22001": // not_null_violation, string_data_right_truncation
			return models.ErrInvalidInput
		}
	}

	return models.Infrastructure(op, err)
}
