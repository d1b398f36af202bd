package polymorphic

import (
	"reflect"
	"sort"

	"github.com/spf13/cast"
)

// Criteria 是传给基础仓储的过滤条件，各项之间为 AND。
//
// 值的含义：
//   - In：任一匹配，空 In 不匹配任何行
//   - nil：列为 NULL（或零值，取决于存储）
//   - 其他：相等
type Criteria map[string]any

// In 表示"任一匹配"条件
type In []any

// Columns 返回按字典序排列的列名，保证生成的语句稳定
func (c Criteria) Columns() []string {
	cols := make([]string, 0, len(c))
	for k := range c {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Matches 在内存中判定一行是否满足条件，get 返回列值及列是否存在。
// 供不支持查询下推的存储使用。
func (c Criteria) Matches(get func(column string) (any, bool)) bool {
	for col, want := range c {
		got, ok := get(col)
		if !ok {
			return false
		}
		switch w := want.(type) {
		case In:
			if !containsKey(w, got) {
				return false
			}
		case nil:
			if !IsZeroKey(got) {
				return false
			}
		default:
			if KeyString(got) != KeyString(w) {
				return false
			}
		}
	}
	return true
}

func containsKey(values In, got any) bool {
	k := KeyString(got)
	for _, v := range values {
		if KeyString(v) == k {
			return true
		}
	}
	return false
}

// KeyString 将主键/外键值规范化为字符串，使 int、int64、驱动返回值可比较
func KeyString(v any) string {
	return cast.ToString(v)
}

// IsZeroKey 判断键值是否未设置：nil、零值或空字符串
func IsZeroKey(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return IsZeroKey(rv.Elem().Interface())
	default:
		return rv.IsZero()
	}
}

func groupKey(discriminator string, key any) string {
	return discriminator + ":" + KeyString(key)
}
