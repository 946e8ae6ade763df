package sqlstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	t.Parallel()

	pg := &Store{dialect: Postgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))

	lite := &Store{dialect: SQLite}
	assert.Equal(t, "SELECT 1 WHERE a = ?", lite.rebind("SELECT 1 WHERE a = ?"))
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.False(t, isUniqueViolation(nil))
	assert.True(t, isUniqueViolation(fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: delivery_attempts.alert_id, delivery_attempts.seq (2067)")))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("database is locked")))
}
