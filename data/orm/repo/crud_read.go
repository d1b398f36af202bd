package repo

import (
	"context"

	"polyrepo/errors"
	"polyrepo/polymorphic"
)

// Find 按条件查询
func (r *Repo[T]) Find(ctx context.Context, criteria polymorphic.Criteria) ([]T, error) {
	var entities []T
	if err := r.query(ctx).Criteria(criteria).Find(&entities); err != nil {
		return nil, r.wrap(ctx, err, "find "+r.model.Table())
	}
	return entities, nil
}

// FindOne 查询首条，无结果时返回 ErrCodeNotFound
func (r *Repo[T]) FindOne(ctx context.Context, criteria polymorphic.Criteria) (T, error) {
	var entity T
	if err := r.query(ctx).Criteria(criteria).First(&entity); err != nil {
		var zero T
		return zero, r.wrap(ctx, err, "find one "+r.model.Table())
	}
	return entity, nil
}

// Count 统计满足条件的记录数
func (r *Repo[T]) Count(ctx context.Context, criteria polymorphic.Criteria) (int64, error) {
	count, err := r.query(ctx).Criteria(criteria).Count()
	if err != nil {
		return 0, r.wrap(ctx, err, "count "+r.model.Table())
	}
	return count, nil
}

// Exists 判断是否存在满足条件的记录
func (r *Repo[T]) Exists(ctx context.Context, criteria polymorphic.Criteria) (bool, error) {
	count, err := r.Count(ctx, criteria)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// wrap 已规范化的错误原样返回，其余按数据库错误包装
func (t *table) wrap(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(errors.IError); ok {
		return err
	}
	if t.dialect.IsUniqueViolation(err) {
		return errors.WrapError(err, errors.ErrCodeConflict, operation+": duplicate key")
	}
	return errors.WrapDatabaseError(ctx, err, operation)
}
