package pgrepo

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-gate-pass/secrets/pgrepo/migrations"
)

const tableSchemaMigrations = "schema_migrations"

// RunMigrations applies every embedded migration not yet recorded in schema_migrations. Each file
// runs in its own transaction together with its bookkeeping row.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+tableSchemaMigrations+` (
  id TEXT PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return errors.Wrap(err, "RunMigrations create "+tableSchemaMigrations)
	}

	files, err := migrationFiles()
	if err != nil {
		return err
	}
	for _, name := range files {
		if err := applyMigration(ctx, pool, name); err != nil {
			return err
		}
	}
	return nil
}

func migrationFiles() ([]string, error) {
	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		return nil, errors.Wrap(err, "RunMigrations read embedded files")
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, name string) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO `+tableSchemaMigrations+` (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, name)
		if err != nil {
			return errors.Wrapf(err, "migration %s record", name)
		}
		if tag.RowsAffected() == 0 {
			return nil // already applied
		}

		body, err := migrations.Files.ReadFile(name)
		if err != nil {
			return errors.Wrapf(err, "migration %s read", name)
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			return errors.Wrapf(err, "migration %s", name)
		}
		log.Info().Str("migration", name).Msg("migration applied")
		return nil
	})
}
