// Package di 提供按名称注册的最简依赖注入容器。
//
// 推荐在启动阶段构造容器并显式传递，不提供全局容器。
package di

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"polyrepo/errors"
)

// IContainer 依赖注入容器接口
type IContainer interface {
	// RegisterSingleton 注册工厂，首次 Resolve 时创建并缓存
	RegisterSingleton(name string, factory any) error
	// RegisterInstance 注册已构造好的实例
	RegisterInstance(name string, instance any) error
	Resolve(name string) (any, error)
	IsRegistered(name string) bool
	GetRegisteredNames() []string
	Clear()
}

// BasicContainer 一个最简 IContainer 实现
//
// 工厂支持 func() T、func() (T, error)，以及参数可按类型名解析的函数。
type BasicContainer struct {
	services  map[string]any
	instances map[string]any
	mutex     sync.RWMutex
	creating  sync.Mutex
}

// NewBasic 创建最简容器
func NewBasic() *BasicContainer {
	return &BasicContainer{
		services:  make(map[string]any),
		instances: make(map[string]any),
	}
}

func (c *BasicContainer) RegisterSingleton(name string, factory any) error {
	if factory == nil {
		return errors.NewError(errors.ErrCodeInvalidInput, "factory cannot be nil")
	}
	if reflect.TypeOf(factory).Kind() != reflect.Func {
		return errors.NewError(errors.ErrCodeInvalidInput, "factory must be a function")
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, exists := c.services[name]; exists {
		return errors.NewError(errors.ErrCodeConflict, fmt.Sprintf("service %s already registered", name))
	}
	c.services[name] = factory
	return nil
}

func (c *BasicContainer) RegisterInstance(name string, instance any) error {
	if instance == nil {
		return errors.NewError(errors.ErrCodeInvalidInput, "instance cannot be nil")
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, exists := c.services[name]; exists {
		return errors.NewError(errors.ErrCodeConflict, fmt.Sprintf("service %s already registered", name))
	}
	c.instances[name] = instance
	c.services[name] = instance
	return nil
}

// Resolve 解析服务，单例工厂只会被调用一次；工厂失败时不缓存，下次重试
func (c *BasicContainer) Resolve(name string) (any, error) {
	c.mutex.RLock()
	factory, exists := c.services[name]
	inst, built := c.instances[name]
	c.mutex.RUnlock()
	if !exists {
		return nil, errors.NewError(errors.ErrCodeNotFound, fmt.Sprintf("service %s not registered", name))
	}
	if built {
		return inst, nil
	}

	c.creating.Lock()
	defer c.creating.Unlock()

	c.mutex.RLock()
	inst, built = c.instances[name]
	c.mutex.RUnlock()
	if built {
		return inst, nil
	}

	inst, err := c.createInstance(factory)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInternal, fmt.Sprintf("failed to create service %s", name))
	}
	c.mutex.Lock()
	c.instances[name] = inst
	c.mutex.Unlock()
	return inst, nil
}

func (c *BasicContainer) IsRegistered(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, ok := c.services[name]
	return ok
}

// GetRegisteredNames 按字典序返回全部服务名
func (c *BasicContainer) GetRegisteredNames() []string {
	c.mutex.RLock()
	names := make([]string, 0, len(c.services))
	for k := range c.services {
		names = append(names, k)
	}
	c.mutex.RUnlock()
	sort.Strings(names)
	return names
}

func (c *BasicContainer) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.services = make(map[string]any)
	c.instances = make(map[string]any)
}

// createInstance 在 creating 锁内调用，参数解析不可递归进入同一工厂
func (c *BasicContainer) createInstance(factory any) (any, error) {
	fv := reflect.ValueOf(factory)
	ft := fv.Type()
	args := make([]reflect.Value, ft.NumIn())
	for i := 0; i < ft.NumIn(); i++ {
		inst, err := c.resolveParameter(ft.In(i))
		if err != nil {
			return nil, err
		}
		args[i] = reflect.ValueOf(inst)
	}
	results := fv.Call(args)
	if len(results) == 0 {
		return nil, errors.NewError(errors.ErrCodeInternal, "factory function has no return value")
	}
	if len(results) == 2 && !results[1].IsNil() {
		if err, ok := results[1].Interface().(error); ok {
			return nil, err
		}
	}
	return results[0].Interface(), nil
}

// resolveParameter 只解析已构造的实例，按完整类型名、指针元素类型名依次查找
func (c *BasicContainer) resolveParameter(paramType reflect.Type) (any, error) {
	names := []string{paramType.String()}
	if paramType.Kind() == reflect.Ptr {
		names = append(names, paramType.Elem().String())
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, n := range names {
		if inst, ok := c.instances[n]; ok {
			return inst, nil
		}
	}
	return nil, errors.NewError(errors.ErrCodeNotFound, fmt.Sprintf("cannot resolve parameter type: %s", paramType))
}
