package polymorphic

import (
	"context"

	"golang.org/x/sync/errgroup"

	"polyrepo/logging"
)

// lookup 一次批量查询：某个关联在某个目标类型上的全部键
type lookup struct {
	assoc    *Association
	target   *Model
	criteria Criteria
	// groupColumn 目标行上用于分组的列
	groupColumn string
	rows        []any
}

// HydrateOne 回填单个实体的关联，props 为空时处理全部关联
func (e *Engine) HydrateOne(ctx context.Context, model *Model, entity any, props ...string) error {
	return e.HydrateMany(ctx, model, []any{entity}, props...)
}

// HydrateMany 批量回填关联。
//
// 每个 (关联, 目标类型) 只发起一次查询，查询并发执行；
// 全部查询成功后才开始赋值，任一失败则不修改任何字段。
// 集合关联无结果时赋空集合，单值关联无结果时赋零值（nil）。
func (e *Engine) HydrateMany(ctx context.Context, model *Model, entities []any, props ...string) error {
	if model == nil || len(entities) == 0 {
		return nil
	}
	assocs := selectAssociations(model, props)
	if len(assocs) == 0 {
		return nil
	}

	var lookups []*lookup
	for _, a := range assocs {
		var (
			ls  []*lookup
			err error
		)
		if a.Direction == Children {
			ls, err = e.childLookups(model, a, entities)
		} else {
			ls, err = e.parentLookups(ctx, model, a, entities)
		}
		if err != nil {
			return err
		}
		lookups = append(lookups, ls...)
	}

	if err := e.runLookups(ctx, lookups); err != nil {
		return err
	}

	groups := make(map[*Association]map[string][]any, len(assocs))
	for _, l := range lookups {
		g := groups[l.assoc]
		if g == nil {
			g = make(map[string][]any)
			groups[l.assoc] = g
		}
		for _, row := range l.rows {
			key, _ := l.target.Get(row, l.groupColumn)
			k := groupKey(l.groupDiscriminator(row), key)
			g[k] = append(g[k], row)
		}
	}

	// 先校验全部赋值，任何类型不匹配都不留下部分回填的实体
	for _, ent := range entities {
		for _, a := range assocs {
			if err := a.CheckAssign(ent, groups[a][ownerGroupKey(model, a, ent)]); err != nil {
				return configError(model.name, "association %q: %v", a.PropertyKey, err)
			}
		}
	}
	for _, ent := range entities {
		for _, a := range assocs {
			if err := a.Assign(ent, groups[a][ownerGroupKey(model, a, ent)]); err != nil {
				return err
			}
		}
	}
	return nil
}

// groupDiscriminator Children 行按所有者判别值分组，Parent 行按自身判别值分组
func (l *lookup) groupDiscriminator(row any) string {
	if l.assoc.Direction == Children {
		t, _ := l.target.Get(row, l.assoc.TypeColumn)
		return KeyString(t)
	}
	return l.target.name
}

// ownerGroupKey 所有者一侧用于取回分组结果的键，无法关联时返回空串
func ownerGroupKey(model *Model, a *Association, ent any) string {
	if a.Direction == Children {
		key, _ := model.Get(ent, a.PrimaryColumn)
		if IsZeroKey(key) {
			return ""
		}
		return groupKey(model.name, key)
	}
	disc, _ := model.Get(ent, a.TypeColumn)
	fk, _ := model.Get(ent, a.IDColumn)
	if IsZeroKey(disc) || IsZeroKey(fk) {
		return ""
	}
	return groupKey(KeyString(disc), fk)
}

func selectAssociations(model *Model, props []string) []*Association {
	if len(props) == 0 {
		return model.associations
	}
	want := make(map[string]bool, len(props))
	for _, p := range props {
		want[p] = true
	}
	out := make([]*Association, 0, len(props))
	for _, a := range model.associations {
		if want[a.PropertyKey] {
			out = append(out, a)
		}
	}
	return out
}

func (e *Engine) childLookups(model *Model, a *Association, entities []any) ([]*lookup, error) {
	keys := distinctValues(entities, func(ent any) any {
		k, _ := model.Get(ent, a.PrimaryColumn)
		return k
	})
	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]*lookup, 0, len(a.TargetTypes))
	for _, t := range a.TargetTypes {
		target, ok := e.registry.Model(t)
		if !ok {
			return nil, repositoryNotFound(t)
		}
		out = append(out, &lookup{
			assoc:  a,
			target: target,
			criteria: Criteria{
				a.IDColumn:   In(keys),
				a.TypeColumn: model.name,
			},
			groupColumn: a.IDColumn,
		})
	}
	return out, nil
}

func (e *Engine) parentLookups(ctx context.Context, model *Model, a *Association, entities []any) ([]*lookup, error) {
	var order []string
	byType := make(map[string][]any)
	seen := make(map[string]bool)
	skipped := make(map[string]bool)

	for _, ent := range entities {
		discVal, _ := model.Get(ent, a.TypeColumn)
		fk, _ := model.Get(ent, a.IDColumn)
		if IsZeroKey(discVal) || IsZeroKey(fk) {
			continue
		}
		disc := KeyString(discVal)
		if !a.Allows(disc) {
			if !skipped[disc] {
				skipped[disc] = true
				e.logger.Warn(ctx, "discriminator outside declared targets, skipped",
					logging.String("association", a.String()),
					logging.String("discriminator", disc))
			}
			continue
		}
		if _, ok := byType[disc]; !ok {
			order = append(order, disc)
		}
		k := groupKey(disc, fk)
		if !seen[k] {
			seen[k] = true
			byType[disc] = append(byType[disc], fk)
		}
	}

	out := make([]*lookup, 0, len(order))
	for _, disc := range order {
		target, ok := e.registry.Model(disc)
		if !ok {
			return nil, repositoryNotFound(disc)
		}
		out = append(out, &lookup{
			assoc:       a,
			target:      target,
			criteria:    Criteria{a.PrimaryColumn: In(byType[disc])},
			groupColumn: a.PrimaryColumn,
		})
	}
	return out, nil
}

// runLookups 并发执行查询，结果写入各自的 lookup，首个错误取消其余查询
func (e *Engine) runLookups(ctx context.Context, lookups []*lookup) error {
	if len(lookups) == 0 {
		return nil
	}
	// 先解析全部仓储，装配错误不发起任何查询
	repos := make([]Repository, len(lookups))
	for i, l := range lookups {
		repo, err := e.locator.Locate(l.target.name)
		if err != nil {
			return err
		}
		repos[i] = repo
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, l := range lookups {
		i, l := i, l
		g.Go(func() error {
			e.logger.Debug(gctx, "batched lookup",
				logging.String("association", l.assoc.String()),
				logging.String("target", l.target.name),
				logging.Int("keys", criteriaKeyCount(l.criteria)))
			rows, err := repos[i].FindAny(gctx, l.criteria)
			if err != nil {
				return err
			}
			l.rows = rows
			return nil
		})
	}
	return g.Wait()
}

func criteriaKeyCount(c Criteria) int {
	for _, v := range c {
		if in, ok := v.(In); ok {
			return len(in)
		}
	}
	return 0
}

// distinctValues 按 KeyString 去重并忽略零值
func distinctValues(entities []any, get func(any) any) []any {
	seen := make(map[string]bool, len(entities))
	out := make([]any, 0, len(entities))
	for _, ent := range entities {
		v := get(ent)
		if IsZeroKey(v) {
			continue
		}
		k := KeyString(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
