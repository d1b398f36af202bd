package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	core "polyrepo/data/db"
	"polyrepo/data/db/dialect"
)

type deleteBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect

	table string
	where whereClause
}

func (b *deleteBuilder) Where(cond string, args ...any) IDeleteBuilder {
	b.where.add(cond, args...)
	return b
}

// Build 不允许无条件删除整表
func (b *deleteBuilder) Build() (string, []any, error) {
	if len(b.where.exprs) == 0 {
		return "", nil, fmt.Errorf("sql: delete from %s without where is not allowed", b.table)
	}
	table, err := quoteTable(b.dialect, b.table)
	if err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(table)
	args := append([]any(nil), b.where.write(&sb)...)
	return sb.String(), args, nil
}

func (b *deleteBuilder) Exec(ctx context.Context) (sql.Result, error) {
	q, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	return b.db.Exec(ctx, q, args...)
}
