package repo

import (
	"context"

	"polyrepo/data/orm"
	"polyrepo/errors"
	"polyrepo/polymorphic"
)

// Save 插入或更新；自增主键为零值时插入并回写生成的主键。
// 多条记录在适配器支持事务时于同一事务内写入。
func (r *Repo[T]) Save(ctx context.Context, entities ...T) error {
	items := make([]any, len(entities))
	for i := range entities {
		items[i] = entities[i]
	}
	return r.saveAll(ctx, items)
}

// Delete 按条件删除，不级联
func (r *Repo[T]) Delete(ctx context.Context, criteria polymorphic.Criteria) error {
	return r.deleteWhere(ctx, criteria)
}

func (t *table) saveAll(ctx context.Context, entities []any) error {
	switch {
	case len(entities) == 0:
		return nil
	case len(entities) == 1 || !t.orm.Capabilities().Supports(orm.CapabilityTransaction):
		for _, e := range entities {
			if err := t.model.Save(ctx, e); err != nil {
				return t.wrap(ctx, err, "save "+t.model.Table())
			}
		}
		return nil
	}

	session, err := t.orm.Begin(ctx)
	if err != nil {
		return t.wrap(ctx, err, "begin")
	}
	m, err := session.Model(t.model.Meta())
	if err != nil {
		_ = session.Rollback()
		return errors.WrapError(err, errors.ErrCodeConfiguration, "invalid model")
	}
	for _, e := range entities {
		if err := m.Save(ctx, e); err != nil {
			_ = session.Rollback()
			return t.wrap(ctx, err, "save "+t.model.Table())
		}
	}
	if err := session.Commit(); err != nil {
		return t.wrap(ctx, err, "commit")
	}
	return nil
}

func (t *table) deleteWhere(ctx context.Context, criteria polymorphic.Criteria) error {
	if len(criteria) == 0 {
		return errors.NewError(errors.ErrCodeInvalidInput, "delete requires at least one condition")
	}
	if _, err := t.query(ctx).Criteria(criteria).Delete(); err != nil {
		return t.wrap(ctx, err, "delete "+t.model.Table())
	}
	return nil
}
