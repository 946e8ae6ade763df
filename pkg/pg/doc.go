// Package pg connects to PostgreSQL with pgx/v5 and applies goose
// migrations.
//
//	pool, err := pg.Connect(ctx, cfg)
//	db := pg.OpenDB(pool)
//	err = pg.Migrate(ctx, db, goose.DialectPostgres, migrationsFS, log)
//
// Migrate accepts any database/sql handle, so the alert ledger applies the
// same migration set to SQLite in development and tests.
package pg
