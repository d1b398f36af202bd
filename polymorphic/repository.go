package polymorphic

import (
	"context"
	"fmt"
)

// BaseRepository 单一实体类型的基础仓储，由存储层实现。
//
// Save 为插入或更新，生成的主键写回实体；FindOne 无结果时返回 NotFound 错误。
type BaseRepository[T any] interface {
	Find(ctx context.Context, criteria Criteria) ([]T, error)
	FindOne(ctx context.Context, criteria Criteria) (T, error)
	Save(ctx context.Context, entities ...T) error
	Delete(ctx context.Context, criteria Criteria) error
}

// Repository 类型擦除后的仓储句柄，供 Locator 按判别值解析
type Repository interface {
	FindAny(ctx context.Context, criteria Criteria) ([]any, error)
	FindOneAny(ctx context.Context, criteria Criteria) (any, error)
	SaveAny(ctx context.Context, entities ...any) error
	Delete(ctx context.Context, criteria Criteria) error
}

// Erase 将 BaseRepository[T] 适配为 Repository
func Erase[T any](base BaseRepository[T]) Repository {
	return erased[T]{base: base}
}

type erased[T any] struct {
	base BaseRepository[T]
}

func (e erased[T]) FindAny(ctx context.Context, criteria Criteria) ([]any, error) {
	rows, err := e.base.Find(ctx, criteria)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (e erased[T]) FindOneAny(ctx context.Context, criteria Criteria) (any, error) {
	return e.base.FindOne(ctx, criteria)
}

func (e erased[T]) SaveAny(ctx context.Context, entities ...any) error {
	typed := make([]T, len(entities))
	for i, v := range entities {
		t, ok := v.(T)
		if !ok {
			return fmt.Errorf("polymorphic: cannot save %T with repository of %s", v, typeName[T]())
		}
		typed[i] = t
	}
	return e.base.Save(ctx, typed...)
}

func (e erased[T]) Delete(ctx context.Context, criteria Criteria) error {
	return e.base.Delete(ctx, criteria)
}
