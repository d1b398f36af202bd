// Package db 提供通用的数据库抽象接口
//
// 设计目标：
// 1. 隔离具体的驱动（sqlite、pgx 等），仓储只依赖 IDatabase
// 2. 支持事务操作
// 3. 便于单元测试（sqlmock）
package db

import (
	"context"
	"database/sql"
)

// IDatabase 通用数据库接口
type IDatabase interface {
	Query(ctx context.Context, query string, args ...any) (IRows, error)
	QueryRow(ctx context.Context, query string, args ...any) IRow
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)

	Begin(ctx context.Context) (ITransaction, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (ITransaction, error)

	Ping(ctx context.Context) error
	Close() error

	// Raw 获取原始连接（用于特殊场景）
	Raw() any
}

// IDialectNameProvider 可选接口：提供底层数据库方言名称
//
// 实现方应返回诸如 "sqlite"、"postgres"、"pgx" 等 driver/dialect 名，
// 供 SQL 构建器推断方言能力（占位符、引号、唯一键错误识别）。
type IDialectNameProvider interface {
	GetDialectName() string
}

// ITransaction 事务接口
type ITransaction interface {
	IDatabase

	Commit() error
	Rollback() error
}

// IRows 查询结果集接口
type IRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
	Columns() ([]string, error)
}

// IRow 单行结果接口
type IRow interface {
	Scan(dest ...any) error
}

// DBConfig 数据库配置
type DBConfig struct {
	Driver   string `mapstructure:"driver"`   // sqlite, pgx, postgres ...
	Database string `mapstructure:"database"` // DSN 或文件路径，sqlite 可用 ":memory:"

	// 连接池配置
	MaxOpenConns    int `mapstructure:"max_open_conns"`
	MaxIdleConns    int `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`  // 秒
	ConnMaxIdleTime int `mapstructure:"conn_max_idle_time"` // 秒
}
