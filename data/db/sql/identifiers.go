package sql

import "strings"

// IsSafeIdentifier 判断标识符是否可以安全拼接进 SQL。
//
// 允许 foo、bar_1 以及 schema.table 形式；每段首字符为字母或下划线，
// 其余为字母、数字或下划线。
func IsSafeIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			ch := part[i]
			letter := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
			if i == 0 && !letter {
				return false
			}
			if !letter && !(ch >= '0' && ch <= '9') {
				return false
			}
		}
	}
	return true
}
