package sql

import "strings"

// whereClause 以 AND 连接的条件列表，select/update/delete 共用
type whereClause struct {
	exprs []string
	args  []any
}

func (w *whereClause) add(cond string, args ...any) {
	if cond == "" {
		return
	}
	w.exprs = append(w.exprs, cond)
	w.args = append(w.args, args...)
}

func (w *whereClause) write(sb *strings.Builder) []any {
	if len(w.exprs) == 0 {
		return nil
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(w.exprs, " AND "))
	return w.args
}

// In 生成 `col IN (?, ?, ...)` 条件及对应参数。
//
// values 为空时返回恒假条件 "1 = 0"，保证"任一匹配"在空集合上不命中任何行。
// col 应为已转义的列名。
func In(col string, values []any) (string, []any) {
	if len(values) == 0 {
		return "1 = 0", nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	args := make([]any, len(values))
	copy(args, values)
	return col + " IN (" + placeholders + ")", args
}
