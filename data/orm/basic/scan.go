package basic

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/spf13/cast"

	dbcore "polyrepo/data/db"
	"polyrepo/data/orm"
)

type fieldInfo struct {
	Column     string
	Index      []int
	PrimaryKey bool
	Kind       reflect.Kind
}

// generated 判断该主键是否应由数据库生成：整型且为零值
func (f *fieldInfo) generated(val reflect.Value) bool {
	switch f.Kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fv := fieldByIndexSafe(val, f.Index)
		return fv.IsValid() && fv.IsZero()
	default:
		return false
	}
}

type structMeta struct {
	typ          reflect.Type
	fields       []fieldInfo
	columnToInfo map[string]fieldInfo
}

// primaryKey 依次按 ModelMeta 声明、primaryKey 标签、"id" 列确定主键字段
func (sm *structMeta) primaryKey(meta *orm.ModelMeta) *fieldInfo {
	if sm == nil {
		return nil
	}
	if meta != nil && len(meta.Fields) > 0 {
		if fi, ok := sm.columnToInfo[meta.PrimaryKey()]; ok {
			return &fi
		}
	}
	for i := range sm.fields {
		if sm.fields[i].PrimaryKey {
			return &sm.fields[i]
		}
	}
	if fi, ok := sm.columnToInfo["id"]; ok {
		return &fi
	}
	return nil
}

// columns 返回列名，skip 非 nil 时排除该列
func (sm *structMeta) columns(skip *fieldInfo) []string {
	cols := make([]string, 0, len(sm.fields))
	for _, f := range sm.fields {
		if skip != nil && f.Column == skip.Column {
			continue
		}
		cols = append(cols, f.Column)
	}
	return cols
}

func (sm *structMeta) values(val reflect.Value, skip *fieldInfo) []any {
	vals := make([]any, 0, len(sm.fields))
	for _, f := range sm.fields {
		if skip != nil && f.Column == skip.Column {
			continue
		}
		fv := fieldByIndexSafe(val, f.Index)
		if !fv.IsValid() {
			vals = append(vals, nil)
			continue
		}
		vals = append(vals, fv.Interface())
	}
	return vals
}

func structValue(entity any) (reflect.Value, error) {
	val := reflect.ValueOf(entity)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return reflect.Value{}, fmt.Errorf("entity is a nil pointer")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("entity must be struct or *struct, got %T", entity)
	}
	return val, nil
}

// structMetaForValue 构建或获取指定值类型的 structMeta。
func (o *Orm) structMetaForValue(v any) *structMeta {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	return o.structMetaForType(t)
}

func (o *Orm) structMetaForType(t reflect.Type) *structMeta {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	o.mu.RLock()
	sm, ok := o.structMap[t]
	o.mu.RUnlock()
	if ok {
		return sm
	}

	sm = buildStructMeta(t)
	o.mu.Lock()
	o.structMap[t] = sm
	o.mu.Unlock()
	return sm
}

func buildStructMeta(t reflect.Type) *structMeta {
	sm := &structMeta{typ: t, columnToInfo: make(map[string]fieldInfo)}

	var walk func(reflect.Type, []int)
	walk = func(cur reflect.Type, prefix []int) {
		for i := 0; i < cur.NumField(); i++ {
			f := cur.Field(i)
			if f.PkgPath != "" {
				continue
			}
			index := append(append([]int(nil), prefix...), i)

			// 内嵌结构体递归展开
			if f.Anonymous && f.Type.Kind() == reflect.Struct && !isTimeType(f.Type) {
				walk(f.Type, index)
				continue
			}
			col, pk, skip := parseColumnTag(f)
			// 关联字段（切片、结构体指针、接口）不是列
			if skip || !isScalarDBField(f.Type) {
				continue
			}
			if col == "" {
				col = toSnakeCase(f.Name)
			}

			kind := f.Type.Kind()
			if kind == reflect.Ptr {
				kind = f.Type.Elem().Kind()
			}
			info := fieldInfo{Column: col, Index: index, PrimaryKey: pk, Kind: kind}
			sm.fields = append(sm.fields, info)
			sm.columnToInfo[col] = info
		}
	}

	walk(t, nil)
	return sm
}

func isScalarDBField(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if isTimeType(t) {
		return true
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func isTimeType(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.PkgPath() == "time" && t.Name() == "Time"
}

// parseColumnTag 解析 gorm:"column:x;primaryKey"、db:"x"、json:"x"；
// db:"-" 表示不映射。
func parseColumnTag(f reflect.StructField) (column string, primaryKey, skip bool) {
	if gormTag := f.Tag.Get("gorm"); gormTag != "" {
		for _, part := range strings.Split(gormTag, ";") {
			part = strings.TrimSpace(part)
			switch {
			case strings.HasPrefix(part, "column:"):
				column = strings.TrimPrefix(part, "column:")
			case strings.EqualFold(part, "primaryKey"), strings.EqualFold(part, "primary_key"):
				primaryKey = true
			case part == "-":
				skip = true
			}
		}
	}
	if column == "" {
		if dbTag := f.Tag.Get("db"); dbTag != "" {
			if dbTag == "-" {
				return "", false, true
			}
			column = strings.Split(dbTag, ",")[0]
		} else if jsonTag := f.Tag.Get("json"); jsonTag != "" && jsonTag != "-" {
			column = strings.Split(jsonTag, ",")[0]
		}
	}
	return column, primaryKey, skip
}

// toSnakeCase 连续大写视为一个词：EntityID -> entity_id，HTTPServer -> http_server
func toSnakeCase(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// scanRowsIntoDest 将 rows 扫描到 dest 中。
// 支持 *T（调用方已 Next 一行）、*[]T 与 *[]*T。
func (o *Orm) scanRowsIntoDest(rows dbcore.IRows, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("basic.scanRowsIntoDest: dest must be non-nil pointer")
	}
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	elem := rv.Elem()
	switch elem.Kind() {
	case reflect.Slice:
		itemType := elem.Type().Elem()
		isPtr := itemType.Kind() == reflect.Ptr
		structType := itemType
		if isPtr {
			structType = itemType.Elem()
		}
		sm := o.structMetaForType(structType)
		if sm == nil {
			return fmt.Errorf("basic.scanRowsIntoDest: unsupported slice element %s", itemType)
		}
		for rows.Next() {
			ptr := reflect.New(structType)
			if err := scanOneRow(rows, cols, ptr.Elem(), sm); err != nil {
				return err
			}
			if isPtr {
				elem.Set(reflect.Append(elem, ptr))
			} else {
				elem.Set(reflect.Append(elem, ptr.Elem()))
			}
		}
		return rows.Err()
	case reflect.Struct:
		return scanOneRow(rows, cols, elem, o.structMetaForType(elem.Type()))
	case reflect.Ptr:
		// **T：按需分配
		if elem.IsNil() {
			elem.Set(reflect.New(elem.Type().Elem()))
		}
		target := elem.Elem()
		if target.Kind() != reflect.Struct {
			return fmt.Errorf("basic.scanRowsIntoDest: unsupported dest %T", dest)
		}
		return scanOneRow(rows, cols, target, o.structMetaForType(target.Type()))
	default:
		return fmt.Errorf("basic.scanRowsIntoDest: unsupported dest element kind %s", elem.Kind())
	}
}

// scanOneRow 先扫描到 any，再按字段类型转换，容忍 NULL 与驱动返回类型差异
func scanOneRow(rows dbcore.IRows, cols []string, v reflect.Value, sm *structMeta) error {
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return err
	}
	for i, col := range cols {
		fi, ok := sm.columnToInfo[col]
		if !ok {
			continue
		}
		fv := fieldByIndexSafe(v, fi.Index)
		if !fv.IsValid() || !fv.CanSet() {
			continue
		}
		if err := assignValue(fv, raw[i]); err != nil {
			return fmt.Errorf("basic: column %s: %w", col, err)
		}
	}
	return nil
}

// assignValue 借助 cast 将驱动值写入字段
func assignValue(fv reflect.Value, raw any) error {
	if raw == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	if fv.Kind() == reflect.Ptr {
		ptr := reflect.New(fv.Type().Elem())
		if err := assignValue(ptr.Elem(), raw); err != nil {
			return err
		}
		fv.Set(ptr)
		return nil
	}
	if isTimeType(fv.Type()) {
		t, err := cast.ToTimeE(raw)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return err
		}
		fv.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(raw)
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	default:
		rv := reflect.ValueOf(raw)
		if !rv.Type().ConvertibleTo(fv.Type()) {
			return fmt.Errorf("cannot assign %T to %s", raw, fv.Type())
		}
		fv.Set(rv.Convert(fv.Type()))
	}
	return nil
}

func fieldByIndexSafe(v reflect.Value, index []int) reflect.Value {
	for _, i := range index {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct || i < 0 || i >= v.NumField() {
			return reflect.Value{}
		}
		v = v.Field(i)
	}
	return v
}
