package polymorphic

import (
	"fmt"
	"reflect"

	"github.com/spf13/cast"
)

type column struct {
	name string
	get  func(entity any) (any, bool)
	set  func(entity any, value any) error
}

// Model 描述一个实体类型：显式判别值、构造函数、主键列、列访问器与多态关联
type Model struct {
	name      string
	typ       reflect.Type
	keyColumn string
	newFn     func() any

	columns      map[string]*column
	columnOrder  []string
	associations []*Association
}

func (m *Model) Name() string       { return m.name }
func (m *Model) Type() reflect.Type { return m.typ }
func (m *Model) KeyColumn() string  { return m.keyColumn }
func (m *Model) New() any           { return m.newFn() }
func (m *Model) Columns() []string  { return append([]string(nil), m.columnOrder...) }

func (m *Model) HasColumn(c string) bool {
	_, ok := m.columns[c]
	return ok
}

// Associations 返回声明顺序的关联描述，调用方不得修改
func (m *Model) Associations() []*Association { return m.associations }

// Association 按属性名查找关联
func (m *Model) Association(prop string) (*Association, bool) {
	for _, a := range m.associations {
		if a.PropertyKey == prop {
			return a, true
		}
	}
	return nil, false
}

// Get 读取列值，列不存在或实体类型不符时 ok 为 false
func (m *Model) Get(entity any, col string) (any, bool) {
	c, ok := m.columns[col]
	if !ok {
		return nil, false
	}
	return c.get(entity)
}

// Set 写入列值
func (m *Model) Set(entity any, col string, value any) error {
	c, ok := m.columns[col]
	if !ok {
		return fmt.Errorf("polymorphic: model %s has no column %q", m.name, col)
	}
	return c.set(entity, value)
}

// Key 返回实体主键
func (m *Model) Key(entity any) any {
	v, _ := m.Get(entity, m.keyColumn)
	return v
}

// Snapshot 按列导出实体，供键值类存储保存行
func (m *Model) Snapshot(entity any) map[string]any {
	row := make(map[string]any, len(m.columnOrder))
	for _, name := range m.columnOrder {
		if v, ok := m.columns[name].get(entity); ok {
			row[name] = v
		}
	}
	return row
}

// Load 用行数据构造新实体，未知列被忽略
func (m *Model) Load(row map[string]any) (any, error) {
	entity := m.newFn()
	for name, v := range row {
		c, ok := m.columns[name]
		if !ok {
			continue
		}
		if err := c.set(entity, v); err != nil {
			return nil, fmt.Errorf("polymorphic: model %s column %s: %w", m.name, name, err)
		}
	}
	return entity, nil
}

// ModelDefinition 可注册到 Registry 的模型声明
type ModelDefinition interface {
	build() (*Model, error)
}

// ModelBuilder 以类型安全的方式声明模型
//
//	polymorphic.NewModel("Advert", func() *Advert { return &Advert{} }).
//		Int64Column("id", func(a *Advert) *int64 { return &a.ID }).
//		Parent("owner", polymorphic.One(...), polymorphic.WithTargets("User", "Merchant"))
type ModelBuilder[T any] struct {
	m   *Model
	err error
}

// NewModel 开始声明判别值为 name 的模型，T 通常为结构体指针
func NewModel[T any](name string, newFn func() T) *ModelBuilder[T] {
	return &ModelBuilder[T]{m: &Model{
		name:      name,
		typ:       reflect.TypeOf((*T)(nil)).Elem(),
		keyColumn: DefaultPrimaryColumn,
		newFn:     func() any { return newFn() },
		columns:   make(map[string]*column),
	}}
}

// Key 设置主键列，默认 "id"
func (b *ModelBuilder[T]) Key(col string) *ModelBuilder[T] {
	b.m.keyColumn = col
	return b
}

// Column 注册任意类型的列
func (b *ModelBuilder[T]) Column(name string, get func(T) any, set func(T, any) error) *ModelBuilder[T] {
	if _, dup := b.m.columns[name]; dup && b.err == nil {
		b.err = configError(b.m.name, "column %q declared twice", name)
	}
	b.m.columns[name] = &column{
		name: name,
		get: func(entity any) (any, bool) {
			t, ok := entity.(T)
			if !ok {
				return nil, false
			}
			return get(t), true
		},
		set: func(entity any, value any) error {
			t, ok := entity.(T)
			if !ok {
				return fmt.Errorf("polymorphic: entity %T is not %s", entity, typeName[T]())
			}
			return set(t, value)
		},
	}
	b.m.columnOrder = append(b.m.columnOrder, name)
	return b
}

// Int64Column 注册 int64 列，写入时经 cast 转换，nil 写为 0
func (b *ModelBuilder[T]) Int64Column(name string, field func(T) *int64) *ModelBuilder[T] {
	return b.Column(name,
		func(t T) any { return *field(t) },
		func(t T, v any) error {
			if v == nil {
				*field(t) = 0
				return nil
			}
			n, err := cast.ToInt64E(v)
			if err != nil {
				return err
			}
			*field(t) = n
			return nil
		})
}

// StringColumn 注册 string 列，写入时经 cast 转换，nil 写为空串
func (b *ModelBuilder[T]) StringColumn(name string, field func(T) *string) *ModelBuilder[T] {
	return b.Column(name,
		func(t T) any { return *field(t) },
		func(t T, v any) error {
			if v == nil {
				*field(t) = ""
				return nil
			}
			s, err := cast.ToStringE(v)
			if err != nil {
				return err
			}
			*field(t) = s
			return nil
		})
}

// Parent 声明本实体引用的单个多态目标
func (b *ModelBuilder[T]) Parent(prop string, acc Accessor, opts ...AssociationOption) *ModelBuilder[T] {
	return b.associate(newAssociation(prop, Parent, acc, opts))
}

// Children 声明引用本实体的多态子集合
func (b *ModelBuilder[T]) Children(prop string, acc Accessor, opts ...AssociationOption) *ModelBuilder[T] {
	return b.associate(newAssociation(prop, Children, acc, opts))
}

func (b *ModelBuilder[T]) associate(a *Association) *ModelBuilder[T] {
	a.owner = b.m
	b.m.associations = append(b.m.associations, a)
	return b
}

// build 完成单模型内的校验
func (b *ModelBuilder[T]) build() (*Model, error) {
	if b.err != nil {
		return nil, b.err
	}
	m := b.m
	if m.name == "" {
		return nil, configError("<unnamed>", "discriminator must not be empty")
	}
	if !m.HasColumn(m.keyColumn) {
		return nil, configError(m.name, "key column %q has no accessor", m.keyColumn)
	}

	props := make(map[string]bool, len(m.associations))
	parentPairs := make(map[[2]string]string)
	for _, a := range m.associations {
		if a.PropertyKey == "" {
			return nil, configError(m.name, "association without property key")
		}
		if props[a.PropertyKey] {
			return nil, ambiguity(m.name, "property %q declared twice", a.PropertyKey)
		}
		props[a.PropertyKey] = true
		if a.accessor.get == nil || a.accessor.set == nil {
			return nil, configError(m.name, "association %q has no accessor", a.PropertyKey)
		}

		switch a.Direction {
		case Parent:
			pair := [2]string{a.TypeColumn, a.IDColumn}
			if other, dup := parentPairs[pair]; dup {
				return nil, ambiguity(m.name, "parent associations %q and %q share columns (%s, %s)",
					other, a.PropertyKey, a.TypeColumn, a.IDColumn)
			}
			parentPairs[pair] = a.PropertyKey
			if !m.HasColumn(a.TypeColumn) || !m.HasColumn(a.IDColumn) {
				return nil, ambiguity(m.name, "parent association %q needs columns %s and %s",
					a.PropertyKey, a.TypeColumn, a.IDColumn)
			}
		case Children:
			if len(a.TargetTypes) == 0 {
				return nil, configError(m.name, "children association %q declares no target types", a.PropertyKey)
			}
			if !m.HasColumn(a.PrimaryColumn) {
				return nil, configError(m.name, "children association %q: owner has no column %q",
					a.PropertyKey, a.PrimaryColumn)
			}
		default:
			return nil, configError(m.name, "association %q has invalid direction", a.PropertyKey)
		}
	}
	return m, nil
}
