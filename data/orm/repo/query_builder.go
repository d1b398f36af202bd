package repo

import (
	"context"
	"fmt"

	"polyrepo/data/db/dialect"
	dbsql "polyrepo/data/db/sql"
	"polyrepo/data/orm"
	"polyrepo/errors"
	"polyrepo/polymorphic"
)

type queryBuilder struct {
	ctx     context.Context
	model   orm.IModel
	dialect dialect.Dialect
	opts    []orm.QueryOption
	err     error
}

func newQueryBuilder(model orm.IModel, d dialect.Dialect, ctx context.Context) *queryBuilder {
	return &queryBuilder{
		ctx:     ctx,
		model:   model,
		dialect: d,
	}
}

func (q *queryBuilder) Where(expr string, args ...any) *queryBuilder {
	q.opts = append(q.opts, orm.WithWhere(expr, args...))
	return q
}

// Criteria 将条件逐列转换为 WHERE：In 展开为 IN (...)，nil 为 IS NULL，其余为等值。
// 列按名称排序，保证生成的 SQL 稳定。
func (q *queryBuilder) Criteria(c polymorphic.Criteria) *queryBuilder {
	for _, col := range c.Columns() {
		if !q.isAllowedField(col) {
			q.err = errors.NewError(errors.ErrCodeInvalidInput,
				fmt.Sprintf("column %q is not queryable on %s", col, q.model.Table()))
			return q
		}
		quoted := q.dialect.QuoteIdentifier(col)
		switch v := c[col].(type) {
		case polymorphic.In:
			expr, args := dbsql.In(quoted, []any(v))
			q = q.Where(expr, args...)
		case nil:
			q = q.Where(quoted + " IS NULL")
		default:
			q = q.Where(quoted+" = ?", v)
		}
	}
	return q
}

func (q *queryBuilder) Order(column string, desc bool) *queryBuilder {
	q.opts = append(q.opts, orm.WithOrderBy(column, desc))
	return q
}

func (q *queryBuilder) Limit(limit int) *queryBuilder {
	q.opts = append(q.opts, orm.WithLimit(limit))
	return q
}

func (q *queryBuilder) Offset(offset int) *queryBuilder {
	q.opts = append(q.opts, orm.WithOffset(offset))
	return q
}

func (q *queryBuilder) First(dest any) error {
	if q.err != nil {
		return q.err
	}
	return q.model.First(q.ctx, dest, q.opts...)
}

func (q *queryBuilder) Find(dest any) error {
	if q.err != nil {
		return q.err
	}
	return q.model.Find(q.ctx, dest, q.opts...)
}

func (q *queryBuilder) Count() (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	return q.model.Count(q.ctx, q.opts...)
}

func (q *queryBuilder) Delete() (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	return q.model.Delete(q.ctx, q.opts...)
}
