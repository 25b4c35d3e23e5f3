package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"

	"github.com/pressly/goose/v3"

	"github.com/questkeep/questkeep/migrations"
)

// Migrate applies goose commands ("up", "down", "status", ...) using the embedded migrations
func Migrate(ctx context.Context, db *sql.DB, command string, verbose bool, args ...string) error {
	goose.SetBaseFS(migrations.FS)
	if !verbose {
		goose.SetLogger(log.New(io.Discard, "", 0))
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	return nil
}
