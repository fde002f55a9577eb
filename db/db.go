package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"go.uber.org/zap"

	"github.com/padraicbc/racetime/config"
	"github.com/padraicbc/racetime/models"
)

// Setup opens a PostgreSQL connection using the provided config.
func Setup(ctx context.Context, cfg *config.Config) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN())))
	db := bun.NewDB(sqldb, pgdialect.New())

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return db, nil
}

// CreateTables creates all tables and the uniqueness rules the timing core
// relies on.
func CreateTables(ctx context.Context, db *bun.DB) error {
	tables := []any{
		(*models.User)(nil),
		(*models.Race)(nil),
		(*models.Checkpoint)(nil),
		(*models.Wave)(nil),
		(*models.Tag)(nil),
		(*models.Runner)(nil),
		(*models.Time)(nil),
		(*models.Result)(nil),
	}

	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", model, err)
		}
	}

	constraints := []string{
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'times_no_dupes') THEN ALTER TABLE times ADD CONSTRAINT times_no_dupes UNIQUE (checkpoint_id, tag_num, tag_color); END IF; END $$`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'tags_no_dupes') THEN ALTER TABLE tags ADD CONSTRAINT tags_no_dupes UNIQUE (num, color); END IF; END $$`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'results_no_dupes') THEN ALTER TABLE results ADD CONSTRAINT results_no_dupes UNIQUE (tag_num, tag_color); END IF; END $$`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'waves_no_dupes') THEN ALTER TABLE waves ADD CONSTRAINT waves_no_dupes UNIQUE (type, num, date); END IF; END $$`,
		`ALTER TABLE races ADD COLUMN IF NOT EXISTS tags_color text[]`,
		`CREATE UNIQUE INDEX IF NOT EXISTS races_singleton ON races ((true))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS runners_tag_unique ON runners (tag_num, tag_color) WHERE tag_num > 0`,
		`CREATE INDEX IF NOT EXISTS results_date_finish ON results (date, finish_time)`,
	}
	for _, stmt := range constraints {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			zap.L().Warn("constraint", zap.String("stmt", stmt), zap.Error(err))
		}
	}

	return nil
}
