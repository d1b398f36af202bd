package main

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"polyrepo/cache"
	"polyrepo/codegen/snowflake"
	"polyrepo/config"
	basicdb "polyrepo/data/db/basic"
	"polyrepo/data/db/dialect"
	"polyrepo/data/orm"
	basicorm "polyrepo/data/orm/basic"
	"polyrepo/data/orm/repo"
	"polyrepo/data/store/cached"
	"polyrepo/data/store/memory"
	"polyrepo/data/store/redisstore"
	"polyrepo/logging"
	"polyrepo/polymorphic"
	"polyrepo/retry"
)

var schemas = map[dialect.Name][]string{
	dialect.NameSQLite: {
		`CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)`,
		`CREATE TABLE IF NOT EXISTS merchants (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)`,
		`CREATE TABLE IF NOT EXISTS adverts (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT, "entityId" INTEGER, "entityType" TEXT)`,
	},
	dialect.NamePostgres: {
		`CREATE TABLE IF NOT EXISTS users (id BIGSERIAL PRIMARY KEY, name TEXT)`,
		`CREATE TABLE IF NOT EXISTS merchants (id BIGSERIAL PRIMARY KEY, name TEXT)`,
		`CREATE TABLE IF NOT EXISTS adverts (id BIGSERIAL PRIMARY KEY, title TEXT, "entityId" BIGINT, "entityType" TEXT)`,
	},
}

// backend 为配置的存储创建默认仓储工厂，close 释放连接
type backend struct {
	factory polymorphic.RepositoryFactory
	close   func() error

	// orm 仅 SQL 后端非空
	orm orm.IOrm
}

func openBackend(ctx context.Context, cfg *config.Config, logger logging.Logger) (*backend, error) {
	if err := snowflake.SetDefault(cfg.IDs.DatacenterID, cfg.IDs.WorkerID); err != nil {
		return nil, err
	}

	var b *backend
	switch cfg.Backend {
	case config.BackendSQLite, config.BackendPostgres:
		dbCfg := cfg.Database
		if cfg.Backend == config.BackendPostgres && dialect.New(dbCfg.Driver).Name() != dialect.NamePostgres {
			dbCfg.Driver = "pgx"
		}
		var db *basicdb.DB
		err := retry.Do(ctx, connectRetry(ctx, logger, "database"), func(ctx context.Context) error {
			var err error
			db, err = basicdb.New(dbCfg)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		for _, stmt := range schemas[dialect.New(dbCfg.Driver).Name()] {
			if _, err := db.Exec(ctx, stmt); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("create schema: %w", err)
			}
		}
		o := basicorm.New(db)
		b = &backend{factory: repo.Factory(o, tableName), close: db.Close, orm: o}
	case config.BackendMemory:
		b = &backend{factory: memory.Factory(), close: func() error { return nil }}
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		err := retry.Do(ctx, connectRetry(ctx, logger, "redis"), func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b = &backend{
			factory: redisstore.Factory(client, redisstore.WithPrefix(cfg.Redis.Prefix), redisstore.WithLogger(logger)),
			close:   client.Close,
		}
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}

	if cfg.Cache.MaxSize > 0 {
		b.factory = cached.Wrap(b.factory, cache.Config{MaxSize: cfg.Cache.MaxSize, TTL: cfg.Cache.TTL})
	}
	logger.Info(ctx, "backend ready", logging.String("backend", cfg.Backend))
	return b, nil
}

// newLogger 构建 zap 日志并设为全局 Logger，返回的函数在退出前刷新缓冲
func newLogger(cfg config.LogConfig) (logging.Logger, func(), error) {
	zl, err := logging.NewZapLoggerFromConfig(logging.ParseLevel(cfg.Level), cfg.Development)
	if err != nil {
		return nil, nil, err
	}
	logging.SetLogger(zl)
	return zl, func() { _ = zl.Sync() }, nil
}

func connectRetry(ctx context.Context, logger logging.Logger, target string) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.OnRetry = func(attempt int, err error) {
		logger.Warn(ctx, "connect failed, retrying",
			logging.String("target", target), logging.Int("attempt", attempt), logging.Error(err))
	}
	return cfg
}
