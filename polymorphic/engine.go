// Package polymorphic 解析多态关联：一对 (entityId, entityType) 列可以引用多张表中的任意一行。
//
// 读取时 Engine 按 (关联, 目标类型) 批量查询并回填字段；
// 写入时按顺序完成外键回填、旧关联清除、主体保存与子集合级联。
// 所有实际读写都委托给通过 Locator 解析的仓储。
package polymorphic

import (
	"reflect"

	"polyrepo/logging"
)

// Engine 组合 Registry 与 Locator，提供 Hydrate 与 PrepareAndSave
type Engine struct {
	registry *Registry
	locator  *Locator
	logger   logging.Logger
}

// EngineOption 配置 Engine
type EngineOption func(*Engine)

func WithLogger(logger logging.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(registry *Registry, locator *Locator, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		locator:  locator,
		logger:   logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithFields(logging.String("component", "polymorphic.engine"))
	return e
}

func (e *Engine) Registry() *Registry { return e.registry }
func (e *Engine) Locator() *Locator   { return e.locator }

// modelFor 按静态类型查找模型，未注册时返回 nil
func (e *Engine) modelFor(t reflect.Type) *Model {
	return e.registry.byType[t]
}
