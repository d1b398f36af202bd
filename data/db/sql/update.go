package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	core "polyrepo/data/db"
	"polyrepo/data/db/dialect"
)

type updateBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect

	table   string
	setCols []string
	setArgs []any
	where   whereClause
}

func (b *updateBuilder) Set(col string, val any) IUpdateBuilder {
	if col != "" {
		b.setCols = append(b.setCols, col)
		b.setArgs = append(b.setArgs, val)
	}
	return b
}

func (b *updateBuilder) Where(cond string, args ...any) IUpdateBuilder {
	b.where.add(cond, args...)
	return b
}

func (b *updateBuilder) Build() (string, []any, error) {
	if len(b.setCols) == 0 {
		return "", nil, fmt.Errorf("sql: update %s without columns", b.table)
	}
	table, err := quoteTable(b.dialect, b.table)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(table)
	sb.WriteString(" SET ")
	for i, col := range b.setCols {
		if !IsSafeIdentifier(col) {
			return "", nil, fmt.Errorf("sql: unsafe column name %q", col)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.dialect.QuoteIdentifier(col))
		sb.WriteString(" = ?")
	}

	args := append([]any(nil), b.setArgs...)
	args = append(args, b.where.write(&sb)...)
	return sb.String(), args, nil
}

func (b *updateBuilder) Exec(ctx context.Context) (sql.Result, error) {
	q, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	return b.db.Exec(ctx, q, args...)
}
