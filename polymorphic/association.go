package polymorphic

import (
	"fmt"
	"reflect"
)

// Direction 关联方向
type Direction int

const (
	// Parent 本实体通过 (IDColumn, TypeColumn) 引用另一张表中的一行
	Parent Direction = iota + 1
	// Children 其他表中的行通过 (IDColumn, TypeColumn) 引用本实体
	Children
)

func (d Direction) String() string {
	switch d {
	case Parent:
		return "parent"
	case Children:
		return "children"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// 默认列名
const (
	DefaultPrimaryColumn = "id"
	DefaultTypeColumn    = "entityType"
	DefaultIDColumn      = "entityId"
)

// Accessor 读写实体上的关联字段，由 One 或 Many 构造
type Accessor struct {
	many bool
	get  func(owner any) ([]any, error)
	set  func(owner any, values []any) error
	// check 只做类型校验，不修改实体
	check func(owner any, values []any) error
}

// One 声明单值关联字段
func One[O, V any](get func(O) V, set func(O, V)) Accessor {
	convert := func(owner any, values []any) (o O, v V, err error) {
		o, ok := owner.(O)
		if !ok {
			return o, v, fmt.Errorf("polymorphic: owner %T is not %s", owner, typeName[O]())
		}
		if len(values) > 0 {
			tv, ok := values[0].(V)
			if !ok {
				return o, v, fmt.Errorf("polymorphic: value %T is not assignable to %s", values[0], typeName[V]())
			}
			v = tv
		}
		return o, v, nil
	}
	return Accessor{
		get: func(owner any) ([]any, error) {
			o, ok := owner.(O)
			if !ok {
				return nil, fmt.Errorf("polymorphic: owner %T is not %s", owner, typeName[O]())
			}
			v := get(o)
			if isNilValue(v) {
				return nil, nil
			}
			return []any{v}, nil
		},
		set: func(owner any, values []any) error {
			o, v, err := convert(owner, values)
			if err != nil {
				return err
			}
			set(o, v)
			return nil
		},
		check: func(owner any, values []any) error {
			_, _, err := convert(owner, values)
			return err
		},
	}
}

// Many 声明集合关联字段，赋值时空集合为非 nil 的空切片
func Many[O, V any](get func(O) []V, set func(O, []V)) Accessor {
	convert := func(owner any, values []any) (O, []V, error) {
		o, ok := owner.(O)
		if !ok {
			return o, nil, fmt.Errorf("polymorphic: owner %T is not %s", owner, typeName[O]())
		}
		items := make([]V, 0, len(values))
		for _, v := range values {
			tv, ok := v.(V)
			if !ok {
				return o, nil, fmt.Errorf("polymorphic: value %T is not assignable to %s", v, typeName[V]())
			}
			items = append(items, tv)
		}
		return o, items, nil
	}
	return Accessor{
		many: true,
		get: func(owner any) ([]any, error) {
			o, ok := owner.(O)
			if !ok {
				return nil, fmt.Errorf("polymorphic: owner %T is not %s", owner, typeName[O]())
			}
			items := get(o)
			out := make([]any, 0, len(items))
			for _, it := range items {
				if !isNilValue(it) {
					out = append(out, it)
				}
			}
			return out, nil
		},
		set: func(owner any, values []any) error {
			o, items, err := convert(owner, values)
			if err != nil {
				return err
			}
			set(o, items)
			return nil
		},
		check: func(owner any, values []any) error {
			_, _, err := convert(owner, values)
			return err
		},
	}
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}

// Association 描述一个多态关联字段。注册后只读。
type Association struct {
	PropertyKey string
	Direction   Direction
	// TargetTypes Children 为所有可能引用本实体的类型；
	// Parent 为允许的目标集合，为空时按存储的判别值动态决定
	TargetTypes []string
	HasMany     bool

	// PrimaryColumn 被引用一侧的主键列：Parent 为目标的主键，Children 为本实体的主键
	PrimaryColumn string
	// TypeColumn/IDColumn 位于保存引用的一侧
	TypeColumn string
	IDColumn   string

	Eager              bool
	Cascade            bool
	DeleteBeforeUpdate bool

	accessor Accessor
	owner    *Model
}

// AssociationOption 配置 Association
type AssociationOption func(*Association)

// WithTargets 设置目标类型（按判别值）
func WithTargets(types ...string) AssociationOption {
	return func(a *Association) {
		a.TargetTypes = append(a.TargetTypes, types...)
	}
}

func WithPrimaryColumn(col string) AssociationOption {
	return func(a *Association) { a.PrimaryColumn = col }
}

func WithTypeColumn(col string) AssociationOption {
	return func(a *Association) { a.TypeColumn = col }
}

func WithIDColumn(col string) AssociationOption {
	return func(a *Association) { a.IDColumn = col }
}

// WithEager 控制 Find/FindOne 时是否自动加载
func WithEager(eager bool) AssociationOption {
	return func(a *Association) { a.Eager = eager }
}

func WithCascade(cascade bool) AssociationOption {
	return func(a *Association) { a.Cascade = cascade }
}

// WithDeleteBeforeUpdate 保存前清除旧的关联状态，实现整体替换
func WithDeleteBeforeUpdate() AssociationOption {
	return func(a *Association) { a.DeleteBeforeUpdate = true }
}

func newAssociation(prop string, dir Direction, acc Accessor, opts []AssociationOption) *Association {
	a := &Association{
		PropertyKey:   prop,
		Direction:     dir,
		HasMany:       acc.many,
		PrimaryColumn: DefaultPrimaryColumn,
		TypeColumn:    DefaultTypeColumn,
		IDColumn:      DefaultIDColumn,
		Eager:         true,
		Cascade:       true,
		accessor:      acc,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Owner 返回声明该关联的模型
func (a *Association) Owner() *Model { return a.owner }

// Values 读取实体上当前的关联值，nil 项被忽略
func (a *Association) Values(entity any) ([]any, error) {
	return a.accessor.get(entity)
}

// Assign 写入关联值；单值关联取第一个，空时写入零值
func (a *Association) Assign(entity any, values []any) error {
	return a.accessor.set(entity, values)
}

// CheckAssign 校验 Assign 能否成功，不修改实体
func (a *Association) CheckAssign(entity any, values []any) error {
	return a.accessor.check(entity, values)
}

// Allows 判断判别值是否在声明的目标集合内，集合为空时全部允许
func (a *Association) Allows(discriminator string) bool {
	if len(a.TargetTypes) == 0 {
		return true
	}
	for _, t := range a.TargetTypes {
		if t == discriminator {
			return true
		}
	}
	return false
}

func (a *Association) String() string {
	owner := "?"
	if a.owner != nil {
		owner = a.owner.name
	}
	return fmt.Sprintf("%s.%s(%s)", owner, a.PropertyKey, a.Direction)
}
