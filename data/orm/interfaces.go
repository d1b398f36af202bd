// Package orm 定义 ORM 适配器契约，具体实现以适配器形式注入（见 data/orm/basic）。
package orm

import (
	"context"

	"polyrepo/data/db"
)

// IOrm 表示 ORM 适配器入口。
type IOrm interface {
	// Capabilities 返回适配器支持的能力集合。
	Capabilities() Capabilities
	// Model 返回指定模型的操作入口。
	Model(meta *ModelMeta) (IModel, error)
	// Begin 开启事务会话。
	Begin(ctx context.Context) (IOrmSession, error)
	// Database 返回适配器绑定的通用数据库。
	Database() db.IDatabase
}

// IOrmSession 表示事务会话。
type IOrmSession interface {
	IOrm
	Commit() error
	Rollback() error
}

// IModel 封装模型级别的基础操作。
//
// dest 支持 *T、*[]T 与 *[]*T。
type IModel interface {
	Meta() *ModelMeta
	Table() string

	First(ctx context.Context, dest any, opts ...QueryOption) error
	Find(ctx context.Context, dest any, opts ...QueryOption) error
	Count(ctx context.Context, opts ...QueryOption) (int64, error)

	// Create 插入记录；单条插入且自增主键为零值时回写生成的主键。
	Create(ctx context.Context, entities ...any) error
	// Update 按条件以实体的全部非自增列更新。
	Update(ctx context.Context, entity any, opts ...QueryOption) (int64, error)
	// Save 插入或更新：主键为零值或按主键更新未命中时插入。
	Save(ctx context.Context, entity any) error
	Delete(ctx context.Context, opts ...QueryOption) (int64, error)
}
