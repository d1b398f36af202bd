// Package repo 基于 data/orm 的通用 SQL 仓储，实现 polymorphic.BaseRepository。
package repo

import (
	"context"
	"fmt"

	"polyrepo/data/db/dialect"
	"polyrepo/data/orm"
	"polyrepo/errors"
)

// table 单表的读写核心，泛型与动态仓储共用
type table struct {
	orm     orm.IOrm
	model   orm.IModel
	dialect dialect.Dialect
}

func newTable(o orm.IOrm, meta *orm.ModelMeta) (*table, error) {
	if o == nil {
		return nil, errors.NewError(errors.ErrCodeConfiguration, "orm cannot be nil")
	}
	m, err := o.Model(meta)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeConfiguration, "invalid model")
	}
	return &table{
		orm:     o,
		model:   m,
		dialect: dialect.FromDatabase(o.Database()),
	}, nil
}

func (t *table) query(ctx context.Context) *queryBuilder {
	return newQueryBuilder(t.model, t.dialect, ctx)
}

// Repo 通用 SQL 仓储，T 为实体指针类型，如 *Advert。
//
// 列名与条件中的列名一致，通过结构体标签（gorm column / db / json）映射。
type Repo[T any] struct {
	*table
}

// NewRepo 创建 T 的仓储，tableName 为空时尝试调用 T 的 TableName()
func NewRepo[T any](o orm.IOrm, tableName string) (*Repo[T], error) {
	t, err := newTable(o, &orm.ModelMeta{Model: new(T), Table: tableName})
	if err != nil {
		return nil, err
	}
	return &Repo[T]{table: t}, nil
}

// MustRepo 同 NewRepo，失败时 panic，用于启动期装配
func MustRepo[T any](o orm.IOrm, tableName string) *Repo[T] {
	r, err := NewRepo[T](o, tableName)
	if err != nil {
		panic(fmt.Sprintf("repo: %v", err))
	}
	return r
}

// Model 暴露底层模型
func (r *Repo[T]) Model() orm.IModel { return r.model }

// Orm 返回绑定的 ORM 引擎
func (r *Repo[T]) Orm() orm.IOrm { return r.orm }
