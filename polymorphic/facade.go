package polymorphic

import (
	"context"
	"reflect"

	"polyrepo/errors"
	"polyrepo/logging"
)

// Repo 对外的读写入口：读取后回填关联，写入前完成外键与级联处理。
// T 未注册或没有关联时所有操作直接透传给 base。
type Repo[T any] struct {
	engine *Engine
	base   BaseRepository[T]
	erased Repository
	model  *Model
}

// NewRepo 为 T 创建 Repo，模型按 T 的类型从 Registry 查找
func NewRepo[T any](engine *Engine, base BaseRepository[T]) *Repo[T] {
	return &Repo[T]{
		engine: engine,
		base:   base,
		erased: Erase(base),
		model:  engine.modelFor(reflect.TypeOf((*T)(nil)).Elem()),
	}
}

// Model 返回 T 的模型，未注册时为 nil
func (r *Repo[T]) Model() *Model { return r.model }

// Base 返回底层仓储
func (r *Repo[T]) Base() BaseRepository[T] { return r.base }

// Create 以模型构造函数创建新实体，并复制 like 的列值与关联字段
func (r *Repo[T]) Create(like T) T {
	if r.model == nil {
		return like
	}
	out, ok := r.model.New().(T)
	if !ok {
		return like
	}
	for col, v := range r.model.Snapshot(like) {
		if err := r.model.Set(out, col, v); err != nil {
			r.engine.logger.Warn(context.Background(), "create: column not copied",
				logging.String("model", r.model.name), logging.String("column", col), logging.Error(err))
		}
	}
	for _, a := range r.model.associations {
		vals, err := a.Values(like)
		if err == nil && len(vals) > 0 {
			err = a.Assign(out, vals)
		}
		if err != nil {
			r.engine.logger.Warn(context.Background(), "create: association not copied",
				logging.String("association", a.String()), logging.Error(err))
		}
	}
	return out
}

// CreateMany 对每个元素调用 Create
func (r *Repo[T]) CreateMany(likes []T) []T {
	out := make([]T, len(likes))
	for i, l := range likes {
		out[i] = r.Create(l)
	}
	return out
}

// Find 查询并回填 Eager 关联
func (r *Repo[T]) Find(ctx context.Context, criteria Criteria) ([]T, error) {
	rows, err := r.base.Find(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, rows, r.eagerProps()); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOne 查询单条并回填 Eager 关联，无结果时返回 ErrCodeNotFound
func (r *Repo[T]) FindOne(ctx context.Context, criteria Criteria) (T, error) {
	var zero T
	row, err := r.base.FindOne(ctx, criteria)
	if err != nil {
		return zero, errors.Normalize(err)
	}
	if isNilValue(row) {
		return zero, errors.NewError(errors.ErrCodeNotFound, "record not found")
	}
	if err := r.hydrate(ctx, []T{row}, r.eagerProps()); err != nil {
		return zero, err
	}
	return row, nil
}

// Save 保存单个实体
func (r *Repo[T]) Save(ctx context.Context, entity T, opts ...SaveOption) error {
	return r.SaveMany(ctx, []T{entity}, opts...)
}

// SaveMany 保存一批实体
func (r *Repo[T]) SaveMany(ctx context.Context, entities []T, opts ...SaveOption) error {
	if len(entities) == 0 {
		return nil
	}
	if r.model == nil {
		return r.base.Save(ctx, entities...)
	}
	return r.engine.PrepareAndSave(ctx, r.model, toAny(entities), r.erased, opts...)
}

// Delete 按条件删除，不级联
func (r *Repo[T]) Delete(ctx context.Context, criteria Criteria) error {
	return r.base.Delete(ctx, criteria)
}

// HydrateOne 回填全部关联，用于从其他途径获得的实体
func (r *Repo[T]) HydrateOne(ctx context.Context, entity T) (T, error) {
	if err := r.hydrate(ctx, []T{entity}, nil); err != nil {
		var zero T
		return zero, err
	}
	return entity, nil
}

// HydrateMany 批量回填全部关联
func (r *Repo[T]) HydrateMany(ctx context.Context, entities []T) ([]T, error) {
	if err := r.hydrate(ctx, entities, nil); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *Repo[T]) hydrate(ctx context.Context, rows []T, props []string) error {
	if r.model == nil || len(rows) == 0 || len(r.model.associations) == 0 {
		return nil
	}
	// 仅 Eager 且没有 Eager 关联时 props 为非 nil 空切片
	if props != nil && len(props) == 0 {
		return nil
	}
	return r.engine.HydrateMany(ctx, r.model, toAny(rows), props...)
}

func (r *Repo[T]) eagerProps() []string {
	if r.model == nil {
		return nil
	}
	props := make([]string, 0, len(r.model.associations))
	for _, a := range r.model.associations {
		if a.Eager {
			props = append(props, a.PropertyKey)
		}
	}
	return props
}

func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}
