package repo

import (
	"context"
	"fmt"
	"reflect"

	"polyrepo/data/orm"
	"polyrepo/errors"
	"polyrepo/polymorphic"
)

// Dynamic 按运行时类型读写的仓储，直接实现 polymorphic.Repository。
// 供 Locator 的默认工厂为未显式登记的实体类型创建仓储。
type Dynamic struct {
	*table
	typ reflect.Type
}

// NewDynamic 为模型创建仓储，模型类型须为结构体指针
func NewDynamic(o orm.IOrm, model *polymorphic.Model, tableName string) (*Dynamic, error) {
	if model == nil {
		return nil, errors.NewError(errors.ErrCodeConfiguration, "model cannot be nil")
	}
	typ := model.Type()
	if typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, errors.NewError(errors.ErrCodeConfiguration,
			"dynamic repository requires a struct pointer type, got "+typ.String())
	}
	t, err := newTable(o, &orm.ModelMeta{Model: model.New(), Table: tableName})
	if err != nil {
		return nil, err
	}
	return &Dynamic{table: t, typ: typ}, nil
}

func (d *Dynamic) FindAny(ctx context.Context, criteria polymorphic.Criteria) ([]any, error) {
	slice := reflect.New(reflect.SliceOf(d.typ))
	if err := d.query(ctx).Criteria(criteria).Find(slice.Interface()); err != nil {
		return nil, d.wrap(ctx, err, "find "+d.model.Table())
	}
	rows := slice.Elem()
	out := make([]any, rows.Len())
	for i := range out {
		out[i] = rows.Index(i).Interface()
	}
	return out, nil
}

func (d *Dynamic) FindOneAny(ctx context.Context, criteria polymorphic.Criteria) (any, error) {
	ptr := reflect.New(d.typ)
	if err := d.query(ctx).Criteria(criteria).First(ptr.Interface()); err != nil {
		return nil, d.wrap(ctx, err, "find one "+d.model.Table())
	}
	return ptr.Elem().Interface(), nil
}

func (d *Dynamic) SaveAny(ctx context.Context, entities ...any) error {
	for _, e := range entities {
		if reflect.TypeOf(e) != d.typ {
			return errors.NewError(errors.ErrCodeInvalidInput,
				fmt.Sprintf("cannot save %T with repository of %s", e, d.typ))
		}
	}
	return d.saveAll(ctx, entities)
}

func (d *Dynamic) Delete(ctx context.Context, criteria polymorphic.Criteria) error {
	return d.deleteWhere(ctx, criteria)
}

// TableNamer 由模型名得出表名
type TableNamer func(model *polymorphic.Model) string

// Factory 返回 Locator 的默认仓储工厂。
// namer 为 nil 时优先使用实体的 TableName()，否则以模型名作表名。
func Factory(o orm.IOrm, namer TableNamer) polymorphic.RepositoryFactory {
	if namer == nil {
		namer = defaultTableName
	}
	return func(model *polymorphic.Model) (polymorphic.Repository, error) {
		return NewDynamic(o, model, namer(model))
	}
}

func defaultTableName(model *polymorphic.Model) string {
	if tn, ok := model.New().(interface{ TableName() string }); ok {
		return tn.TableName()
	}
	return model.Name()
}
