package errors

import (
	"context"
	"fmt"
	"runtime"

	"polyrepo/logging"
)

// WrapWithLog 包装错误并记录警告日志
// 用于需要在边界处立即留痕的错误（例如装配错误）
func WrapWithLog(ctx context.Context, err error, code ErrorCode, msg string, fields ...logging.Field) error {
	if err == nil {
		return nil
	}

	_, file, line, _ := runtime.Caller(1)
	wrapped := WrapError(err, code, msg)

	allFields := append([]logging.Field{
		logging.Error(err),
		logging.String("error_code", string(code)),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)),
	}, fields...)
	logging.GetLogger().Warn(ctx, msg, allFields...)

	return wrapped
}

// WrapDatabaseError 包装数据库错误
// 已经规范化为 NotFound 的错误保持 NotFound 语义，其余统一为 DATABASE_ERROR
func WrapDatabaseError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	err = Normalize(err)
	if IsNotFound(err) {
		return WrapError(err, ErrCodeNotFound, operation)
	}
	return WrapWithLog(ctx, err, ErrCodeDatabase,
		fmt.Sprintf("database operation failed: %s", operation),
		logging.String("operation", operation),
	)
}
