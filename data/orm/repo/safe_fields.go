package repo

import dbsql "polyrepo/data/db/sql"

// isAllowedField 检查列名是否同时满足安全标识符与模型元数据中的字段集合。
//
// 模型未声明 Fields 时，只要名称语法安全即视为允许。
func (q *queryBuilder) isAllowedField(field string) bool {
	if !dbsql.IsSafeIdentifier(field) {
		return false
	}
	if q.model == nil {
		return true
	}
	meta := q.model.Meta()
	if meta == nil || len(meta.Fields) == 0 {
		return true
	}
	for _, f := range meta.Fields {
		if f.Column == field || f.Name == field {
			return true
		}
	}
	return false
}
