// Package basic 是基于 data/db + data/db/sql 的轻量 IOrm 实现。
//
// 不依赖具体 ORM 引擎，按结构体标签（gorm column / db / json）推断列，
// 覆盖基础仓储需要的查询与增删改。
package basic

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	dbcore "polyrepo/data/db"
	"polyrepo/data/db/dialect"
	dbsql "polyrepo/data/db/sql"
	"polyrepo/data/orm"
)

// Orm 实现 orm.IOrm
type Orm struct {
	db   dbcore.IDatabase
	sql  dbsql.ISql
	caps orm.Capabilities

	mu        sync.RWMutex
	structMap map[reflect.Type]*structMeta
}

// New 创建一个基于指定 IDatabase 的 Orm 适配器。
func New(db dbcore.IDatabase) *Orm {
	return &Orm{
		db:  db,
		sql: dbsql.New(db),
		caps: orm.NewCapabilities(
			orm.CapabilityBasicCRUD,
			orm.CapabilityQuery,
			orm.CapabilityBatchWrite,
			orm.CapabilityTransaction,
		),
		structMap: make(map[reflect.Type]*structMeta),
	}
}

func (o *Orm) Capabilities() orm.Capabilities { return o.caps }
func (o *Orm) Database() dbcore.IDatabase     { return o.db }

// Model 返回模型级操作入口，表名缺省时尝试调用模型的 TableName()。
func (o *Orm) Model(meta *orm.ModelMeta) (orm.IModel, error) {
	if meta == nil {
		return nil, fmt.Errorf("basic.Orm: ModelMeta cannot be nil")
	}
	table := meta.Table
	if table == "" {
		table, _ = tryGetTableName(meta.Model)
	}
	if !dbsql.IsSafeIdentifier(table) {
		return nil, fmt.Errorf("basic.Orm: invalid table name %q", table)
	}
	return &model{orm: o, meta: meta, table: table}, nil
}

// Begin 开启事务会话，会话内的模型共享同一事务。
func (o *Orm) Begin(ctx context.Context) (orm.IOrmSession, error) {
	tx, err := o.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &session{Orm: New(tx), tx: tx}, nil
}

type session struct {
	*Orm
	tx dbcore.ITransaction
}

func (s *session) Commit() error   { return s.tx.Commit() }
func (s *session) Rollback() error { return s.tx.Rollback() }

type model struct {
	orm   *Orm
	meta  *orm.ModelMeta
	table string
}

func (m *model) Meta() *orm.ModelMeta { return m.meta }
func (m *model) Table() string        { return m.table }

func (m *model) selectBuilder(qo orm.QueryOptions) dbsql.ISelectBuilder {
	b := m.orm.sql.Select(qo.Select...).From(m.table)
	for _, w := range qo.Where {
		b = b.Where(w.Expr, w.Args...)
	}
	if len(qo.OrderBy) > 0 {
		b = b.OrderBy(m.buildOrderByExpr(qo.OrderBy))
	}
	if qo.Limit > 0 {
		b = b.Limit(qo.Limit)
	}
	if qo.Offset > 0 {
		b = b.Offset(qo.Offset)
	}
	return b
}

// First 查询单条记录，无结果时返回 orm.ErrNotFound。
func (m *model) First(ctx context.Context, dest any, opts ...orm.QueryOption) error {
	qo := orm.CollectQueryOptions(opts...)
	qo.Limit = 1

	rows, err := m.selectBuilder(qo).Query(ctx)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return orm.ErrNotFound
	}
	return m.orm.scanRowsIntoDest(rows, dest)
}

// Find 查询多条记录。
func (m *model) Find(ctx context.Context, dest any, opts ...orm.QueryOption) error {
	rows, err := m.selectBuilder(orm.CollectQueryOptions(opts...)).Query(ctx)
	if err != nil {
		return err
	}
	defer rows.Close()
	return m.orm.scanRowsIntoDest(rows, dest)
}

// Count 统计数量（只使用 Where）。
func (m *model) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	qo := orm.CollectQueryOptions(opts...)
	b := m.orm.sql.Select("COUNT(*)").From(m.table)
	for _, w := range qo.Where {
		b = b.Where(w.Expr, w.Args...)
	}
	rows, err := b.Query(ctx)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}

// Create 插入记录。
//
// 主键为零值的整型自增主键不参与 INSERT，逐条插入并回写数据库生成的主键；
// 其余实体合并为一条批量 INSERT。
func (m *model) Create(ctx context.Context, entities ...any) error {
	if len(entities) == 0 {
		return nil
	}
	sm := m.orm.structMetaForValue(entities[0])
	if sm == nil {
		return fmt.Errorf("basic.Model.Create: unsupported entity type %T", entities[0])
	}
	pk := sm.primaryKey(m.meta)

	var batch dbsql.IInsertBuilder
	for _, e := range entities {
		val, err := structValue(e)
		if err != nil {
			return fmt.Errorf("basic.Model.Create: %w", err)
		}
		if pk != nil && pk.generated(val) {
			if err := m.insertGenerated(ctx, sm, pk, val); err != nil {
				return err
			}
			continue
		}
		if batch == nil {
			batch = m.orm.sql.InsertInto(m.table).Columns(sm.columns(nil)...)
		}
		batch = batch.Values(sm.values(val, nil)...)
	}
	if batch == nil {
		return nil
	}
	_, err := batch.Exec(ctx)
	return err
}

func (m *model) insertGenerated(ctx context.Context, sm *structMeta, pk *fieldInfo, val reflect.Value) error {
	b := m.orm.sql.InsertInto(m.table).
		Columns(sm.columns(pk)...).
		Values(sm.values(val, pk)...).
		Returning(pk.Column)

	fv := fieldByIndexSafe(val, pk.Index)
	if m.orm.sql.Dialect().Name() == dialect.NamePostgres {
		row, err := b.QueryRow(ctx)
		if err != nil {
			return err
		}
		var id any
		if err := row.Scan(&id); err != nil {
			return err
		}
		return assignValue(fv, id)
	}

	res, err := b.Exec(ctx)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("basic.Model.Create: read generated key: %w", err)
	}
	return assignValue(fv, id)
}

// Update 以实体的全部非主键列更新匹配条件的记录，返回受影响行数。
func (m *model) Update(ctx context.Context, entity any, opts ...orm.QueryOption) (int64, error) {
	val, err := structValue(entity)
	if err != nil {
		return 0, fmt.Errorf("basic.Model.Update: %w", err)
	}
	sm := m.orm.structMetaForValue(entity)
	pk := sm.primaryKey(m.meta)

	qo := orm.CollectQueryOptions(opts...)
	if len(qo.Where) == 0 {
		return 0, fmt.Errorf("basic.Model.Update: update without where is not allowed")
	}

	b := m.orm.sql.Update(m.table)
	for _, fi := range sm.fields {
		if pk != nil && fi.Column == pk.Column {
			continue
		}
		if fv := fieldByIndexSafe(val, fi.Index); fv.IsValid() {
			b = b.Set(fi.Column, fv.Interface())
		}
	}
	for _, w := range qo.Where {
		b = b.Where(w.Expr, w.Args...)
	}

	res, err := b.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Save 主键为零值时插入，否则按主键更新，未命中任何行时插入。
func (m *model) Save(ctx context.Context, entity any) error {
	val, err := structValue(entity)
	if err != nil {
		return fmt.Errorf("basic.Model.Save: %w", err)
	}
	sm := m.orm.structMetaForValue(entity)
	pk := sm.primaryKey(m.meta)
	if pk == nil || pk.generated(val) {
		return m.Create(ctx, entity)
	}
	fv := fieldByIndexSafe(val, pk.Index)
	if !fv.IsValid() || fv.IsZero() {
		return m.Create(ctx, entity)
	}

	n, err := m.Update(ctx, entity, orm.WithWhere(m.orm.sql.Dialect().QuoteIdentifier(pk.Column)+" = ?", fv.Interface()))
	if err != nil {
		return err
	}
	if n == 0 {
		return m.Create(ctx, entity)
	}
	return nil
}

// Delete 根据 QueryOptions 删除记录，返回受影响行数。
func (m *model) Delete(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	qo := orm.CollectQueryOptions(opts...)
	b := m.orm.sql.DeleteFrom(m.table)
	for _, w := range qo.Where {
		b = b.Where(w.Expr, w.Args...)
	}
	res, err := b.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m *model) buildOrderByExpr(orders []orm.OrderBy) string {
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		if !dbsql.IsSafeIdentifier(o.Column) {
			continue
		}
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		parts = append(parts, m.orm.sql.Dialect().QuoteIdentifier(o.Column)+dir)
	}
	return strings.Join(parts, ", ")
}

// tryGetTableName 尝试从模型实例上调用 TableName()。
func tryGetTableName(model any) (string, bool) {
	if model == nil {
		return "", false
	}
	if m, ok := model.(interface{ TableName() string }); ok {
		return m.TableName(), true
	}
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if m, ok := reflect.New(t).Interface().(interface{ TableName() string }); ok {
		return m.TableName(), true
	}
	return "", false
}
