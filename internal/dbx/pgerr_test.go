package dbx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("db error: %w", &pgconn.PgError{Code: "23505", ConstraintName: "transactions_dedup_key"})

	name, ok := UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "transactions_dedup_key", name)

	_, ok = UniqueViolation(errors.New("plain"))
	assert.False(t, ok)

	_, ok = UniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)
}

func TestForeignKeyViolation(t *testing.T) {
	assert.True(t, ForeignKeyViolation(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "23503"})))
	assert.False(t, ForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, ForeignKeyViolation(nil))
}
