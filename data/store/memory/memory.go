// Package memory 以行快照保存实体的内存仓储，实现 polymorphic.Repository。
// 适合测试与演示；行按插入顺序返回。
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"polyrepo/data/store"
	"polyrepo/errors"
	"polyrepo/polymorphic"
)

const maxKeyAttempts = 1 << 16

type Store struct {
	mu    sync.RWMutex
	model *polymorphic.Model
	gen   store.KeyGenerator
	rows  map[string]map[string]any
	order []string
}

type Option func(*Store)

// WithKeyGenerator 替换默认的自增序列，字符串主键的模型应使用 store.UUID()
func WithKeyGenerator(gen store.KeyGenerator) Option {
	return func(s *Store) { s.gen = gen }
}

func New(model *polymorphic.Model, opts ...Option) *Store {
	s := &Store{
		model: model,
		gen:   store.Sequence(),
		rows:  make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Factory 返回 Locator 的默认工厂，每个类型一个 Store
func Factory(opts ...Option) polymorphic.RepositoryFactory {
	return func(model *polymorphic.Model) (polymorphic.Repository, error) {
		return New(model, opts...), nil
	}
}

func (s *Store) FindAny(ctx context.Context, criteria polymorphic.Criteria) ([]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []any
	for _, k := range s.order {
		ent, err := s.model.Load(s.rows[k])
		if err != nil {
			return nil, err
		}
		if store.Match(s.model, ent, criteria) {
			out = append(out, ent)
		}
	}
	return out, nil
}

func (s *Store) FindOneAny(ctx context.Context, criteria polymorphic.Criteria) (any, error) {
	rows, err := s.FindAny(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewError(errors.ErrCodeNotFound, "record not found")
	}
	return rows[0], nil
}

// SaveAny 主键为零值时生成主键，已存在的行整行覆盖
func (s *Store) SaveAny(ctx context.Context, entities ...any) error {
	for _, e := range entities {
		if reflect.TypeOf(e) != s.model.Type() {
			return errors.NewError(errors.ErrCodeInvalidInput,
				fmt.Sprintf("cannot save %T in store of %s", e, s.model.Name()))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		key := s.model.Key(e)
		if polymorphic.IsZeroKey(key) {
			var err error
			if key, err = s.freeKey(ctx); err != nil {
				return err
			}
			if err := s.model.Set(e, s.model.KeyColumn(), key); err != nil {
				return err
			}
			key = s.model.Key(e)
		}
		k := polymorphic.KeyString(key)
		if _, exists := s.rows[k]; !exists {
			s.order = append(s.order, k)
		}
		s.rows[k] = s.model.Snapshot(e)
	}
	return nil
}

// freeKey 跳过调用方显式使用过的主键，调用方持有写锁
func (s *Store) freeKey(ctx context.Context) (any, error) {
	for i := 0; i < maxKeyAttempts; i++ {
		key, err := s.gen.NextKey(ctx)
		if err != nil {
			return nil, err
		}
		if _, taken := s.rows[polymorphic.KeyString(key)]; !taken {
			return key, nil
		}
	}
	return nil, errors.NewError(errors.ErrCodeConflict,
		fmt.Sprintf("no free key for %s after %d attempts", s.model.Name(), maxKeyAttempts))
}

func (s *Store) Delete(ctx context.Context, criteria polymorphic.Criteria) error {
	if len(criteria) == 0 {
		return errors.NewError(errors.ErrCodeInvalidInput, "delete requires at least one condition")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, k := range s.order {
		ent, err := s.model.Load(s.rows[k])
		if err != nil {
			return err
		}
		if store.Match(s.model, ent, criteria) {
			delete(s.rows, k)
			continue
		}
		kept = append(kept, k)
	}
	s.order = kept
	return nil
}

// Len 当前行数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
