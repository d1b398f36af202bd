package polymorphic

import (
	"fmt"

	"polyrepo/errors"
)

var (
	// ErrRepositoryNotFound 目标类型没有可解析的仓储，属于装配缺陷，不应重试
	ErrRepositoryNotFound = errors.NewError(errors.ErrCodeRepositoryNotFound, "repository not found")
	// ErrConfigurationAmbiguity 同一模型上的关联配置相互冲突
	ErrConfigurationAmbiguity = errors.NewError(errors.ErrCodeConfigurationAmbiguity, "ambiguous association configuration")
	// ErrConfiguration 其他配置错误（缺少目标类型、未注册的模型等）
	ErrConfiguration = errors.NewError(errors.ErrCodeConfiguration, "invalid association configuration")
)

func repositoryNotFound(entityType string) error {
	return errors.NewError(errors.ErrCodeRepositoryNotFound,
		fmt.Sprintf("no repository registered for %q", entityType)).
		WithContext("entity_type", entityType)
}

func ambiguity(model, format string, args ...any) error {
	return errors.NewError(errors.ErrCodeConfigurationAmbiguity,
		fmt.Sprintf("model %s: ", model)+fmt.Sprintf(format, args...)).
		WithContext("model", model)
}

func configError(model, format string, args ...any) error {
	return errors.NewError(errors.ErrCodeConfiguration,
		fmt.Sprintf("model %s: ", model)+fmt.Sprintf(format, args...)).
		WithContext("model", model)
}
