package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	core "polyrepo/data/db"
	"polyrepo/data/db/dialect"
)

type insertBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect

	table     string
	columns   []string
	rows      [][]any
	returning string
}

func (b *insertBuilder) Columns(cols ...string) IInsertBuilder {
	b.columns = cols
	return b
}

func (b *insertBuilder) Values(vals ...any) IInsertBuilder {
	if len(vals) > 0 {
		b.rows = append(b.rows, vals)
	}
	return b
}

func (b *insertBuilder) Returning(col string) IInsertBuilder {
	b.returning = col
	return b
}

func (b *insertBuilder) Build() (string, []any, error) {
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("sql: insert into %s without columns", b.table)
	}
	if len(b.rows) == 0 {
		return "", nil, fmt.Errorf("sql: insert into %s without rows", b.table)
	}
	table, err := quoteTable(b.dialect, b.table)
	if err != nil {
		return "", nil, err
	}

	quoted := make([]string, len(b.columns))
	for i, col := range b.columns {
		if !IsSafeIdentifier(col) {
			return "", nil, fmt.Errorf("sql: unsafe column name %q", col)
		}
		quoted[i] = b.dialect.QuoteIdentifier(col)
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(") VALUES ")

	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(b.columns)), ", ") + ")"
	args := make([]any, 0, len(b.rows)*len(b.columns))
	for i, row := range b.rows {
		if len(row) != len(b.columns) {
			return "", nil, fmt.Errorf("sql: insert row %d has %d values for %d columns", i, len(row), len(b.columns))
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(rowPlaceholder)
		args = append(args, row...)
	}

	if b.returning != "" && b.dialect.Name() == dialect.NamePostgres {
		if !IsSafeIdentifier(b.returning) {
			return "", nil, fmt.Errorf("sql: unsafe column name %q", b.returning)
		}
		sb.WriteString(" RETURNING ")
		sb.WriteString(b.dialect.QuoteIdentifier(b.returning))
	}
	return sb.String(), args, nil
}

func (b *insertBuilder) Exec(ctx context.Context) (sql.Result, error) {
	q, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	return b.db.Exec(ctx, q, args...)
}

func (b *insertBuilder) QueryRow(ctx context.Context) (core.IRow, error) {
	q, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	return b.db.QueryRow(ctx, q, args...), nil
}
