package errors

import (
	"database/sql"
	stdErrors "errors"

	"polyrepo/data/orm"
)

// Normalize 将数据访问层的常见"裸"错误规范化为 AppError。
//
// 注意：
//   - 已经是 IError 的错误原样返回；
//   - 未识别的错误保持原样，交由调用方决定是否 Wrap。
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(IError); ok {
		return err
	}
	if stdErrors.Is(err, orm.ErrNotFound) || stdErrors.Is(err, sql.ErrNoRows) {
		return WrapError(err, ErrCodeNotFound, "record not found")
	}
	if stdErrors.Is(err, orm.ErrUnsupported) {
		return WrapError(err, ErrCodeInvalidInput, "operation not supported by adapter")
	}
	return err
}
