// Package redisstore 以 Redis 哈希保存实体的仓储，实现 polymorphic.Repository。
//
// 每行一个哈希 <prefix>:<model>:row:<key>，另以集合 <prefix>:<model>:ids 记录全部主键。
// 条件不下推，读取全部行后在内存中过滤，适合行数有限的类型。
package redisstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"

	"polyrepo/data/store"
	"polyrepo/errors"
	"polyrepo/logging"
	"polyrepo/polymorphic"
)

const DefaultPrefix = "polyrepo"

type Store struct {
	client redis.UniversalClient
	model  *polymorphic.Model
	gen    store.KeyGenerator
	prefix string
	logger logging.Logger
}

type Option func(*Store)

// WithPrefix 设置键前缀，默认 "polyrepo"
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithKeyGenerator 默认使用雪花算法
func WithKeyGenerator(gen store.KeyGenerator) Option {
	return func(s *Store) { s.gen = gen }
}

func WithLogger(logger logging.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func New(client redis.UniversalClient, model *polymorphic.Model, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.NewError(errors.ErrCodeConfiguration, "redis client is required")
	}
	if model == nil {
		return nil, errors.NewError(errors.ErrCodeConfiguration, "model is required")
	}
	s := &Store{
		client: client,
		model:  model,
		gen:    store.Snowflake(nil),
		prefix: DefaultPrefix,
		logger: logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Factory 返回 Locator 的默认工厂，所有类型共享同一客户端
func Factory(client redis.UniversalClient, opts ...Option) polymorphic.RepositoryFactory {
	return func(model *polymorphic.Model) (polymorphic.Repository, error) {
		return New(client, model, opts...)
	}
}

func (s *Store) idsKey() string {
	return s.prefix + ":" + s.model.Name() + ":ids"
}

func (s *Store) rowKey(key string) string {
	return s.prefix + ":" + s.model.Name() + ":row:" + key
}

func (s *Store) FindAny(ctx context.Context, criteria polymorphic.Criteria) ([]any, error) {
	_, rows, err := s.scan(ctx, criteria)
	return rows, err
}

func (s *Store) FindOneAny(ctx context.Context, criteria polymorphic.Criteria) (any, error) {
	_, rows, err := s.scan(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewError(errors.ErrCodeNotFound, "record not found")
	}
	return rows[0], nil
}

// scan 读取全部行并按条件过滤，返回命中行的主键与实体
func (s *Store) scan(ctx context.Context, criteria polymorphic.Criteria) ([]string, []any, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.ErrCodeDatabase, "redis: list ids")
	}
	sortKeys(ids)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.rowKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, nil, errors.WrapError(err, errors.ErrCodeDatabase, "redis: load rows")
		}
	}

	var (
		keys []string
		out  []any
	)
	for i, cmd := range cmds {
		hash := cmd.Val()
		// 集合中残留的主键
		if len(hash) == 0 {
			s.logger.Warn(ctx, "redis row missing for id",
				logging.String("model", s.model.Name()), logging.String("id", ids[i]))
			continue
		}
		ent, err := s.model.Load(s.decode(hash))
		if err != nil {
			return nil, nil, err
		}
		if store.Match(s.model, ent, criteria) {
			keys = append(keys, ids[i])
			out = append(out, ent)
		}
	}
	return keys, out, nil
}

// decode 空串视为未设置，交由列定义写入零值
func (s *Store) decode(hash map[string]string) map[string]any {
	row := make(map[string]any, len(hash))
	for _, col := range s.model.Columns() {
		v, ok := hash[col]
		if !ok || v == "" {
			row[col] = nil
			continue
		}
		row[col] = v
	}
	return row
}

func (s *Store) SaveAny(ctx context.Context, entities ...any) error {
	type pending struct {
		key    string
		fields map[string]any
	}
	rows := make([]pending, 0, len(entities))
	for _, e := range entities {
		if reflect.TypeOf(e) != s.model.Type() {
			return errors.NewError(errors.ErrCodeInvalidInput,
				fmt.Sprintf("cannot save %T in store of %s", e, s.model.Name()))
		}
		key, err := store.AssignKey(ctx, s.model, s.gen, e)
		if err != nil {
			return err
		}
		fields := make(map[string]any)
		for col, v := range s.model.Snapshot(e) {
			if v == nil {
				fields[col] = ""
				continue
			}
			str, err := cast.ToStringE(v)
			if err != nil {
				return errors.WrapError(err, errors.ErrCodeInvalidInput,
					fmt.Sprintf("column %s of %s is not storable", col, s.model.Name()))
			}
			fields[col] = str
		}
		rows = append(rows, pending{key: polymorphic.KeyString(key), fields: fields})
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range rows {
			pipe.Del(ctx, s.rowKey(r.key))
			pipe.HSet(ctx, s.rowKey(r.key), r.fields)
			pipe.SAdd(ctx, s.idsKey(), r.key)
		}
		return nil
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeDatabase, "redis: save rows")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, criteria polymorphic.Criteria) error {
	if len(criteria) == 0 {
		return errors.NewError(errors.ErrCodeInvalidInput, "delete requires at least one condition")
	}
	keys, _, err := s.scan(ctx, criteria)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		members := make([]any, len(keys))
		for i, k := range keys {
			pipe.Del(ctx, s.rowKey(k))
			members[i] = k
		}
		pipe.SRem(ctx, s.idsKey(), members...)
		return nil
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeDatabase, "redis: delete rows")
	}
	return nil
}

// sortKeys 整数主键按数值排序，其余按字典序
func sortKeys(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.ParseInt(ids[i], 10, 64)
		b, errB := strconv.ParseInt(ids[j], 10, 64)
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
}
