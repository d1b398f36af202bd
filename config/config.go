// Package config 加载 polyrepo 的运行配置：polyrepo.yaml 与 POLYREPO_* 环境变量。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	core "polyrepo/data/db"
)

// 支持的存储后端
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

type Config struct {
	Backend  string        `mapstructure:"backend"`
	Database core.DBConfig `mapstructure:"database"`
	Redis    RedisConfig   `mapstructure:"redis"`
	Cache    CacheConfig   `mapstructure:"cache"`
	IDs      IDConfig      `mapstructure:"ids"`
	Log      LogConfig     `mapstructure:"log"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// CacheConfig 查询结果缓存，MaxSize 为 0 时不启用
type CacheConfig struct {
	MaxSize int           `mapstructure:"max_size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// IDConfig 雪花主键的节点标识
type IDConfig struct {
	DatacenterID int64 `mapstructure:"datacenter_id"`
	WorkerID     int64 `mapstructure:"worker_id"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.database", ":memory:")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.conn_max_idle_time", 0)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "polyrepo")
	v.SetDefault("cache.max_size", 0)
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("ids.datacenter_id", 1)
	v.SetDefault("ids.worker_id", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load 读取配置。path 为空时在当前目录查找 polyrepo.yaml，文件不存在时使用默认值。
// 环境变量以 POLYREPO_ 为前缀，层级以下划线连接，例如 POLYREPO_DATABASE_DRIVER。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("polyrepo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("POLYREPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendPostgres, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("backend must be one of sqlite, postgres, memory, redis, got: %q", c.Backend)
	}
	if (c.Backend == BackendSQLite || c.Backend == BackendPostgres) && c.Database.Database == "" {
		return fmt.Errorf("database.database is required for backend %s", c.Backend)
	}
	if c.Backend == BackendRedis && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for backend redis")
	}
	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cache.max_size must not be negative, got: %d", c.Cache.MaxSize)
	}
	return nil
}
