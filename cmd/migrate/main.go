package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/questkeep/questkeep/internal/config"
	"github.com/questkeep/questkeep/internal/database"
)

func main() {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "migrate [up|down|status|version|redo|reset] [args...]",
		Short: "Apply kv_entries schema migrations",
		Long:  "Runs goose against the database named by DB_* environment variables. Defaults to up.",
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) > 0 {
				command, args = args[0], args[1:]
			}
			return run(cmd.Context(), command, verbose, args)
		},
		SilenceUsage: true,
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print goose output")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, verbose bool, args []string) error {
	dbCfg := config.LoadDatabase()

	db, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach database: %w", err)
	}

	if err := database.Migrate(ctx, db, command, verbose, args...); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "migration %s complete\n", command)
	return nil
}
