package dialect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Aliases(t *testing.T) {
	assert.Equal(t, NameSQLite, New("sqlite3").Name())
	assert.Equal(t, NamePostgres, New("pgx").Name())
	assert.Equal(t, NamePostgres, New(" PostgreSQL ").Name())
	assert.Equal(t, NameUnknown, New("oracle").Name())
}

func TestRebind_Postgres(t *testing.T) {
	d := New("postgres")
	got := d.Rebind(`SELECT * FROM t WHERE a = ? AND b IN (?, ?)`)
	assert.Equal(t, `SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)`, got)
}

func TestRebind_NoChangeForSQLite(t *testing.T) {
	orig := "DELETE FROM t WHERE id = ? AND name = ?"
	for _, d := range []Dialect{New("sqlite"), New("unknown")} {
		assert.Equal(t, orig, d.Rebind(orig))
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"public"."adverts"`, New("pgx").QuoteIdentifier("public.adverts"))
	assert.Equal(t, `"entityType"`, New("sqlite").QuoteIdentifier("entityType"))
	assert.Equal(t, "entityType", New("").QuoteIdentifier("entityType"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, New("sqlite").IsUniqueViolation(errors.New("UNIQUE constraint failed: users.id")))
	assert.True(t, New("pgx").IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "users_pkey"`)))
	assert.False(t, New("sqlite").IsUniqueViolation(errors.New("no such table")))
	assert.False(t, New("sqlite").IsUniqueViolation(nil))
}
