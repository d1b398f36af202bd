package polymorphic

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"polyrepo/errors"
	"polyrepo/logging"
)

// Registry 判别值 -> 模型 的进程级映射。
//
// 启动阶段通过 Register 填充，Freeze 完成跨模型校验后只读；
// 冻结后的读取无锁，Register 与读取不应并发。
type Registry struct {
	mu     sync.Mutex
	frozen atomic.Bool

	byName map[string]*Model
	byType map[reflect.Type]*Model
	logger logging.Logger
}

// RegistryOption 配置 Registry
type RegistryOption func(*Registry)

// WithRegistryLogger 设置日志，默认使用全局 Logger
func WithRegistryLogger(l logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byName: make(map[string]*Model),
		byType: make(map[reflect.Type]*Model),
		logger: logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithFields(logging.String("component", "polymorphic.registry"))
	return r
}

// Register 校验并注册模型。
// 同一判别值重复注册时后者覆盖前者并记录警告。
func (r *Registry) Register(defs ...ModelDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return errors.NewError(errors.ErrCodeConfiguration, "registry is frozen")
	}

	built := make([]*Model, 0, len(defs))
	for _, d := range defs {
		m, err := d.build()
		if err != nil {
			return err
		}
		built = append(built, m)
	}

	for _, m := range built {
		if prev, ok := r.byName[m.name]; ok {
			r.logger.Warn(context.Background(), "model re-registered, last registration wins",
				logging.String("model", m.name))
			delete(r.byType, prev.typ)
		}
		if other, ok := r.byType[m.typ]; ok && other.name != m.name {
			return ambiguity(m.name, "type %s already registered as %q", m.typ, other.name)
		}
		r.byName[m.name] = m
		r.byType[m.typ] = m
	}
	return nil
}

// Freeze 执行跨模型校验并冻结注册表
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return nil
	}

	for _, m := range r.byName {
		for _, a := range m.associations {
			if err := r.validate(m, a); err != nil {
				return err
			}
		}
	}
	r.frozen.Store(true)
	r.logger.Debug(context.Background(), "registry frozen", logging.Int("models", len(r.byName)))
	return nil
}

func (r *Registry) validate(m *Model, a *Association) error {
	for _, t := range a.TargetTypes {
		target, ok := r.byName[t]
		if !ok {
			return configError(m.name, "association %q targets unregistered type %q", a.PropertyKey, t)
		}
		switch a.Direction {
		case Children:
			if !target.HasColumn(a.IDColumn) || !target.HasColumn(a.TypeColumn) {
				return configError(m.name, "association %q: target %s needs columns %s and %s",
					a.PropertyKey, t, a.IDColumn, a.TypeColumn)
			}
		case Parent:
			if !target.HasColumn(a.PrimaryColumn) {
				return configError(m.name, "association %q: target %s has no column %q",
					a.PropertyKey, t, a.PrimaryColumn)
			}
		}
	}
	return nil
}

// Frozen 是否已冻结
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// Model 按判别值查找模型
func (r *Registry) Model(name string) (*Model, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// ModelOf 按实体的动态类型查找模型
func (r *Registry) ModelOf(entity any) (*Model, bool) {
	if entity == nil {
		return nil, false
	}
	m, ok := r.byType[reflect.TypeOf(entity)]
	return m, ok
}

// DescriptorsFor 返回模型的关联描述，未知或非多态类型返回空
func (r *Registry) DescriptorsFor(entityType string) []*Association {
	if m, ok := r.byName[entityType]; ok {
		return m.associations
	}
	return nil
}

// Models 按判别值排序返回全部模型
func (r *Registry) Models() []*Model {
	out := make([]*Model, 0, len(r.byName))
	for _, m := range r.byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
