// Package cached 为 polymorphic.Repository 提供读穿缓存装饰器。
//
// 查询结果以行快照缓存，每次命中都重新构造实体，调用方对实体的修改
// （包括关联回填）不会污染缓存。任何写操作清空该类型的全部缓存，
// 写入前已开始的查询结果不会写回缓存。
package cached

import (
	"context"
	"sort"
	"strings"

	"polyrepo/cache"
	"polyrepo/errors"
	"polyrepo/logging"
	"polyrepo/polymorphic"
)

type Repository struct {
	inner  polymorphic.Repository
	model  *polymorphic.Model
	rows   *cache.Cache[string, []map[string]any]
	logger logging.Logger
}

func New(inner polymorphic.Repository, model *polymorphic.Model, config cache.Config) *Repository {
	if config.Name == "" {
		config.Name = model.Name()
	}
	return &Repository{
		inner:  inner,
		model:  model,
		rows:   cache.New[string, []map[string]any](config),
		logger: logging.GetLogger().WithFields(logging.String("cache", config.Name)),
	}
}

// Wrap 装饰仓储工厂，使 Locator 创建的每个默认仓储都带缓存
func Wrap(factory polymorphic.RepositoryFactory, config cache.Config) polymorphic.RepositoryFactory {
	return func(model *polymorphic.Model) (polymorphic.Repository, error) {
		inner, err := factory(model)
		if err != nil {
			return nil, err
		}
		cfg := config
		cfg.Name = model.Name()
		return New(inner, model, cfg), nil
	}
}

func (r *Repository) FindAny(ctx context.Context, criteria polymorphic.Criteria) ([]any, error) {
	snaps, err := r.rows.GetOrLoad(cacheKey(criteria), func() ([]map[string]any, error) {
		r.logger.Debug(ctx, "cache miss", logging.String("criteria", cacheKey(criteria)))
		rows, err := r.inner.FindAny(ctx, criteria)
		if err != nil {
			return nil, err
		}
		snaps := make([]map[string]any, len(rows))
		for i, row := range rows {
			snaps[i] = r.model.Snapshot(row)
		}
		return snaps, nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]any, len(snaps))
	for i, s := range snaps {
		ent, err := r.model.Load(s)
		if err != nil {
			return nil, err
		}
		out[i] = ent
	}
	return out, nil
}

func (r *Repository) FindOneAny(ctx context.Context, criteria polymorphic.Criteria) (any, error) {
	rows, err := r.FindAny(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewError(errors.ErrCodeNotFound, "record not found")
	}
	return rows[0], nil
}

func (r *Repository) SaveAny(ctx context.Context, entities ...any) error {
	defer r.rows.Clear()
	return r.inner.SaveAny(ctx, entities...)
}

func (r *Repository) Delete(ctx context.Context, criteria polymorphic.Criteria) error {
	defer r.rows.Clear()
	return r.inner.Delete(ctx, criteria)
}

// Stats 返回缓存统计
func (r *Repository) Stats() cache.Stats { return r.rows.Stats() }

// cacheKey 条件的规范形式：列按字典序，In 的值按规范化后的字符串排序
func cacheKey(c polymorphic.Criteria) string {
	var sb strings.Builder
	for i, col := range c.Columns() {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(col)
		switch v := c[col].(type) {
		case polymorphic.In:
			keys := make([]string, len(v))
			for j, k := range v {
				keys[j] = polymorphic.KeyString(k)
			}
			sort.Strings(keys)
			sb.WriteString(" in (")
			sb.WriteString(strings.Join(keys, ","))
			sb.WriteByte(')')
		case nil:
			sb.WriteString(" is null")
		default:
			sb.WriteByte('=')
			sb.WriteString(polymorphic.KeyString(v))
		}
	}
	return sb.String()
}
