package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

// SentinelTable is checked before migrating; when it exists the schema is assumed current.
const SentinelTable = "public.asset_events"

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_asset_events",
		SQL: `CREATE TABLE IF NOT EXISTS asset_events (
  id            UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  filename      TEXT        NOT NULL,
  action        TEXT        NOT NULL CHECK (action IN ('upload', 'delete')),
  original_name TEXT        NOT NULL DEFAULT '',
  size          BIGINT      NOT NULL DEFAULT 0 CHECK (size >= 0),
  content_type  TEXT        NOT NULL DEFAULT '',
  request_id    TEXT        NOT NULL DEFAULT '',
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_asset_events_filename",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_asset_events_filename ON asset_events (filename);`,
	},
	{
		Name: "create_index_asset_events_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_asset_events_created_at ON asset_events (created_at);`,
	},
}

// EnsureMigrated checks if the audit table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *slog.Logger, dbHost string) error {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "database"), slog.String("db_host", dbHost))
	start := time.Now()

	log.Info("db_migration_check", slog.String("status", "starting"))

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", SentinelTable).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			slog.String("status", "error"),
			slog.String("error_message", fmt.Sprintf("failed to check sentinel table: %v", err)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			slog.String("status", "success"),
			slog.String("reason", "schema already exists"),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", slog.String("status", "in_progress"), slog.Int("steps", len(steps)))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				slog.String("status", "error"),
				slog.String("migration_step", step.Name),
				slog.String("error_message", err.Error()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Debug("db_migration_step",
			slog.String("status", "success"),
			slog.String("migration_step", step.Name),
			slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		slog.String("status", "success"),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
