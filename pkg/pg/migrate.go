package pg

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// logger is satisfied by *slog.Logger.
type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
}

// Migrate applies every pending goose migration found at the root of
// migrations. It works for any database/sql handle whose dialect goose
// supports, so the same SQL files serve Postgres and SQLite.
func Migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, migrations fs.FS, log logger) error {
	if migrations == nil {
		return errors.Join(ErrFailedToApplyMigrations, ErrMigrationsNotProvided)
	}

	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if log != nil {
		for _, r := range results {
			log.InfoContext(ctx, "migration applied",
				"version", r.Source.Version,
				"duration", r.Duration,
			)
		}
	}
	return nil
}
