// Package store 提供不依赖 SQL 的基础仓储公共部件：主键生成与类型还原。
//
// memory 与 redisstore 以 polymorphic.Model 的列定义读写实体，
// 条件在内存中按 polymorphic.Criteria.Matches 判定。
package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"polyrepo/codegen/snowflake"
	"polyrepo/polymorphic"
)

// KeyGenerator 为尚无主键的实体生成主键
type KeyGenerator interface {
	NextKey(ctx context.Context) (any, error)
}

// KeyFunc 函数形式的 KeyGenerator
type KeyFunc func(ctx context.Context) (any, error)

func (f KeyFunc) NextKey(ctx context.Context) (any, error) { return f(ctx) }

// Sequence 进程内自增序列，从 1 开始
func Sequence() KeyGenerator {
	var n atomic.Int64
	return KeyFunc(func(context.Context) (any, error) {
		return n.Add(1), nil
	})
}

// Snowflake 使用雪花算法生成 int64 主键，gen 为 nil 时使用默认生成器
func Snowflake(gen *snowflake.Generator) KeyGenerator {
	return KeyFunc(func(context.Context) (any, error) {
		if gen == nil {
			return snowflake.NextID()
		}
		return gen.NextID()
	})
}

// UUID 生成字符串主键
func UUID() KeyGenerator {
	return KeyFunc(func(context.Context) (any, error) {
		return uuid.NewString(), nil
	})
}

// AssignKey 主键为零值时生成并写入，返回最终主键
func AssignKey(ctx context.Context, model *polymorphic.Model, gen KeyGenerator, entity any) (any, error) {
	key := model.Key(entity)
	if !polymorphic.IsZeroKey(key) {
		return key, nil
	}
	next, err := gen.NextKey(ctx)
	if err != nil {
		return nil, err
	}
	if err := model.Set(entity, model.KeyColumn(), next); err != nil {
		return nil, err
	}
	return model.Key(entity), nil
}

// Match 按模型列判定实体是否满足条件
func Match(model *polymorphic.Model, entity any, criteria polymorphic.Criteria) bool {
	return criteria.Matches(func(col string) (any, bool) {
		return model.Get(entity, col)
	})
}

// Typed 将类型擦除的仓储还原为 BaseRepository[T]
func Typed[T any](repo polymorphic.Repository) polymorphic.BaseRepository[T] {
	return typed[T]{repo: repo}
}

type typed[T any] struct {
	repo polymorphic.Repository
}

func (t typed[T]) Find(ctx context.Context, criteria polymorphic.Criteria) ([]T, error) {
	rows, err := t.repo.FindAny(ctx, criteria)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, ok := r.(T)
		if !ok {
			return nil, fmt.Errorf("store: row is %T, want %T", r, *new(T))
		}
		out = append(out, v)
	}
	return out, nil
}

func (t typed[T]) FindOne(ctx context.Context, criteria polymorphic.Criteria) (T, error) {
	var zero T
	row, err := t.repo.FindOneAny(ctx, criteria)
	if err != nil {
		return zero, err
	}
	v, ok := row.(T)
	if !ok {
		return zero, fmt.Errorf("store: row is %T, want %T", row, zero)
	}
	return v, nil
}

func (t typed[T]) Save(ctx context.Context, entities ...T) error {
	items := make([]any, len(entities))
	for i, e := range entities {
		items[i] = e
	}
	return t.repo.SaveAny(ctx, items...)
}

func (t typed[T]) Delete(ctx context.Context, criteria polymorphic.Criteria) error {
	return t.repo.Delete(ctx, criteria)
}
