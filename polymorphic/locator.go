package polymorphic

import (
	"context"
	"fmt"

	"polyrepo/di"
	"polyrepo/errors"
	"polyrepo/logging"
)

// RepositoryFactory 默认仓储工厂，例如按表名创建通用 SQL 仓储
type RepositoryFactory func(model *Model) (Repository, error)

// Locator 将判别值解析为仓储。
//
// 解析顺序：显式注册（实例或延迟工厂）-> 默认工厂 -> RepositoryNotFound。
type Locator struct {
	registry  *Registry
	container *di.BasicContainer
	fallback  RepositoryFactory
	logger    logging.Logger
}

// LocatorOption 配置 Locator
type LocatorOption func(*Locator)

// WithDefault 设置默认工厂，结果按类型缓存
func WithDefault(factory RepositoryFactory) LocatorOption {
	return func(l *Locator) { l.fallback = factory }
}

func WithLocatorLogger(logger logging.Logger) LocatorOption {
	return func(l *Locator) { l.logger = logger }
}

func NewLocator(registry *Registry, opts ...LocatorOption) *Locator {
	l := &Locator{
		registry:  registry,
		container: di.NewBasic(),
		logger:    logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func serviceName(entityType string) string {
	return "repository:" + entityType
}

// Register 为判别值登记仓储实例
func (l *Locator) Register(entityType string, repo Repository) error {
	if repo == nil {
		return errors.NewError(errors.ErrCodeInvalidInput, "repository cannot be nil")
	}
	return l.container.RegisterInstance(serviceName(entityType), repo)
}

// Provide 登记延迟构造的仓储，首次 Locate 时创建
func (l *Locator) Provide(entityType string, factory func() (Repository, error)) error {
	if factory == nil {
		return errors.NewError(errors.ErrCodeInvalidInput, "factory cannot be nil")
	}
	return l.container.RegisterSingleton(serviceName(entityType), factory)
}

// Locate 解析仓储，失败时返回 ErrCodeRepositoryNotFound
func (l *Locator) Locate(entityType string) (Repository, error) {
	name := serviceName(entityType)
	if !l.container.IsRegistered(name) && l.fallback != nil {
		if err := l.provideDefault(entityType); err != nil {
			return nil, err
		}
	}
	if !l.container.IsRegistered(name) {
		return nil, repositoryNotFound(entityType)
	}

	inst, err := l.container.Resolve(name)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeRepositoryNotFound,
			fmt.Sprintf("repository for %q could not be created", entityType))
	}
	repo, ok := inst.(Repository)
	if !ok {
		return nil, errors.NewError(errors.ErrCodeConfiguration,
			fmt.Sprintf("service for %q is %T, not a Repository", entityType, inst))
	}
	return repo, nil
}

func (l *Locator) provideDefault(entityType string) error {
	model, ok := l.registry.Model(entityType)
	if !ok {
		return repositoryNotFound(entityType)
	}
	err := l.container.RegisterSingleton(serviceName(entityType), func() (Repository, error) {
		l.logger.Debug(context.Background(), "creating default repository",
			logging.String("entity_type", entityType))
		return l.fallback(model)
	})
	// 并发 Locate 时另一方已登记
	if errors.IsErrorCode(err, errors.ErrCodeConflict) {
		return nil
	}
	return err
}
