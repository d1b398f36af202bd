package polymorphic

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"polyrepo/errors"
	"polyrepo/logging"
)

type saveOptions struct {
	skipCascade            bool
	skipDeleteBeforeUpdate bool
}

// SaveOption 调整单次保存的行为
type SaveOption func(*saveOptions)

// SkipCascade 本次保存不级联保存父引用与子集合
func SkipCascade() SaveOption {
	return func(o *saveOptions) { o.skipCascade = true }
}

// SkipDeleteBeforeUpdate 本次保存不清除旧关联
func SkipDeleteBeforeUpdate() SaveOption {
	return func(o *saveOptions) { o.skipDeleteBeforeUpdate = true }
}

// PrepareAndSave 保存一批同类型实体。
//
// 顺序：
//  1. 无关联的模型直接交给 base 保存
//  2. 由内存中的父引用回填 (IDColumn, TypeColumn)，显式设置的外键不覆盖；
//     例外：带 DeleteBeforeUpdate 的父关联以内存中的引用替换已存的外键
//  3. DeleteBeforeUpdate 的子集合：并发删除旧子行并全部等待完成
//  4. base 保存
//  5. 级联保存内存中的子实体
//
// 任一步失败直接返回，不做回滚。
func (e *Engine) PrepareAndSave(ctx context.Context, model *Model, entities []any, base Repository, opts ...SaveOption) error {
	if len(entities) == 0 {
		return nil
	}
	if model == nil || len(model.associations) == 0 {
		return base.SaveAny(ctx, entities...)
	}

	var so saveOptions
	for _, opt := range opts {
		opt(&so)
	}

	for _, a := range model.associations {
		if a.Direction != Parent {
			continue
		}
		for _, ent := range entities {
			if err := e.stampParent(ctx, model, a, ent, so); err != nil {
				return err
			}
		}
	}

	if !so.skipDeleteBeforeUpdate {
		if err := e.deleteBeforeUpdate(ctx, model, entities); err != nil {
			return err
		}
	}

	if err := base.SaveAny(ctx, entities...); err != nil {
		return err
	}

	if so.skipCascade {
		return nil
	}
	return e.cascadeChildren(ctx, model, entities)
}

// stampParent 将内存中的父引用写入外键列
func (e *Engine) stampParent(ctx context.Context, model *Model, a *Association, ent any, so saveOptions) error {
	refs, err := a.Values(ent)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}
	ref := refs[0]

	fk, _ := model.Get(ent, a.IDColumn)
	if !IsZeroKey(fk) && !a.DeleteBeforeUpdate {
		return nil
	}

	refModel, ok := e.registry.ModelOf(ref)
	if !ok {
		return configError(model.name, "association %q references unregistered type %T", a.PropertyKey, ref)
	}
	if !a.Allows(refModel.name) {
		return configError(model.name, "association %q does not accept %s", a.PropertyKey, refModel.name)
	}

	key, _ := refModel.Get(ref, a.PrimaryColumn)
	if IsZeroKey(key) && a.Cascade && !so.skipCascade {
		repo, err := e.locator.Locate(refModel.name)
		if err != nil {
			return err
		}
		if err := repo.SaveAny(ctx, ref); err != nil {
			return err
		}
		key, _ = refModel.Get(ref, a.PrimaryColumn)
	}
	if IsZeroKey(key) {
		return errors.NewError(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s: referenced %s has no key; save it first or enable cascade", a, refModel.name))
	}

	if err := model.Set(ent, a.IDColumn, key); err != nil {
		return err
	}
	return model.Set(ent, a.TypeColumn, refModel.name)
}

// deleteBeforeUpdate 每个 (关联, 目标类型) 一次删除，并发执行并等待全部完成
func (e *Engine) deleteBeforeUpdate(ctx context.Context, model *Model, entities []any) error {
	type job struct {
		assoc    *Association
		target   string
		criteria Criteria
		repo     Repository
	}
	var jobs []job
	for _, a := range model.associations {
		if a.Direction != Children || !a.DeleteBeforeUpdate {
			continue
		}
		keys := distinctValues(entities, func(ent any) any {
			k, _ := model.Get(ent, a.PrimaryColumn)
			return k
		})
		// 新实体尚无主键，没有旧关联可删
		if len(keys) == 0 {
			continue
		}
		for _, t := range a.TargetTypes {
			repo, err := e.locator.Locate(t)
			if err != nil {
				return err
			}
			jobs = append(jobs, job{
				assoc:  a,
				target: t,
				criteria: Criteria{
					a.TypeColumn: model.name,
					a.IDColumn:   In(keys),
				},
				repo: repo,
			})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			e.logger.Debug(gctx, "delete before update",
				logging.String("association", j.assoc.String()),
				logging.String("target", j.target))
			return j.repo.Delete(gctx, j.criteria)
		})
	}
	return g.Wait()
}

// cascadeChildren 为子实体回填所有者的键与判别值，按子类型分组保存
func (e *Engine) cascadeChildren(ctx context.Context, model *Model, entities []any) error {
	var order []string
	byType := make(map[string][]any)
	for _, a := range model.associations {
		if a.Direction != Children || !a.Cascade {
			continue
		}
		for _, ent := range entities {
			children, err := a.Values(ent)
			if err != nil {
				return err
			}
			if len(children) == 0 {
				continue
			}
			ownerKey, _ := model.Get(ent, a.PrimaryColumn)
			if IsZeroKey(ownerKey) {
				return errors.NewError(errors.ErrCodeInvalidInput,
					fmt.Sprintf("%s: owner has no key after save", a))
			}
			for _, child := range children {
				childModel, ok := e.registry.ModelOf(child)
				if !ok || !a.Allows(childModel.name) {
					return configError(model.name, "association %q does not accept %T", a.PropertyKey, child)
				}
				if err := childModel.Set(child, a.IDColumn, ownerKey); err != nil {
					return err
				}
				if err := childModel.Set(child, a.TypeColumn, model.name); err != nil {
					return err
				}
				if _, ok := byType[childModel.name]; !ok {
					order = append(order, childModel.name)
				}
				byType[childModel.name] = append(byType[childModel.name], child)
			}
		}
	}
	if len(order) == 0 {
		return nil
	}

	repos := make([]Repository, len(order))
	for i, t := range order {
		repo, err := e.locator.Locate(t)
		if err != nil {
			return err
		}
		repos[i] = repo
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range order {
		i, t := i, t
		g.Go(func() error {
			return repos[i].SaveAny(gctx, byType[t]...)
		})
	}
	return g.Wait()
}
