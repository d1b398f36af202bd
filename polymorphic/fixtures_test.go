package polymorphic

import (
	"context"
	"sync"

	"polyrepo/errors"
	"polyrepo/logging"
)

type User struct {
	ID      int64
	Name    string
	Adverts []*Advert
}

type Merchant struct {
	ID             int64
	Name           string
	Adverts        []*Advert
	CreatedAdverts []*Advert
}

type Admin struct {
	AdminID int64
	Adverts []*Advert
}

type Advert struct {
	ID          int64
	Title       string
	EntityID    int64
	EntityType  string
	CreatorID   int64
	CreatorType string

	Owner   any
	Creator *Merchant
}

// Plain 没有任何关联
type Plain struct {
	ID   int64
	Note string
}

func userModel(opts ...AssociationOption) *ModelBuilder[*User] {
	return NewModel("User", func() *User { return &User{} }).
		Int64Column("id", func(u *User) *int64 { return &u.ID }).
		StringColumn("name", func(u *User) *string { return &u.Name }).
		Children("adverts", Many(
			func(u *User) []*Advert { return u.Adverts },
			func(u *User, v []*Advert) { u.Adverts = v },
		), append([]AssociationOption{WithTargets("Advert")}, opts...)...)
}

func merchantModel() *ModelBuilder[*Merchant] {
	return NewModel("Merchant", func() *Merchant { return &Merchant{} }).
		Int64Column("id", func(m *Merchant) *int64 { return &m.ID }).
		StringColumn("name", func(m *Merchant) *string { return &m.Name }).
		Children("adverts", Many(
			func(m *Merchant) []*Advert { return m.Adverts },
			func(m *Merchant, v []*Advert) { m.Adverts = v },
		), WithTargets("Advert")).
		Children("createdAdverts", Many(
			func(m *Merchant) []*Advert { return m.CreatedAdverts },
			func(m *Merchant, v []*Advert) { m.CreatedAdverts = v },
		), WithTargets("Advert"), WithTypeColumn("creatorType"), WithIDColumn("creatorId"), WithEager(false))
}

func adminModel() *ModelBuilder[*Admin] {
	return NewModel("Admin", func() *Admin { return &Admin{} }).
		Key("admin_id").
		Int64Column("admin_id", func(a *Admin) *int64 { return &a.AdminID }).
		Children("adverts", Many(
			func(a *Admin) []*Advert { return a.Adverts },
			func(a *Admin, v []*Advert) { a.Adverts = v },
		), WithTargets("Advert"), WithPrimaryColumn("admin_id"))
}

func advertModel(ownerOpts ...AssociationOption) *ModelBuilder[*Advert] {
	return NewModel("Advert", func() *Advert { return &Advert{} }).
		Int64Column("id", func(a *Advert) *int64 { return &a.ID }).
		StringColumn("title", func(a *Advert) *string { return &a.Title }).
		Int64Column("entityId", func(a *Advert) *int64 { return &a.EntityID }).
		StringColumn("entityType", func(a *Advert) *string { return &a.EntityType }).
		Int64Column("creatorId", func(a *Advert) *int64 { return &a.CreatorID }).
		StringColumn("creatorType", func(a *Advert) *string { return &a.CreatorType }).
		Parent("owner", One(
			func(a *Advert) any { return a.Owner },
			func(a *Advert, v any) { a.Owner = v },
		), append([]AssociationOption{WithTargets("User", "Merchant")}, ownerOpts...)...).
		Parent("creator", One(
			func(a *Advert) *Merchant { return a.Creator },
			func(a *Advert, v *Merchant) { a.Creator = v },
		), WithTargets("Merchant"), WithTypeColumn("creatorType"), WithIDColumn("creatorId"))
}

func plainModel() *ModelBuilder[*Plain] {
	return NewModel("Plain", func() *Plain { return &Plain{} }).
		Int64Column("id", func(p *Plain) *int64 { return &p.ID }).
		StringColumn("note", func(p *Plain) *string { return &p.Note })
}

// eventLog 记录跨仓储的调用顺序
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeStore 以行快照保存实体的内存仓储，记录每次调用
type fakeStore struct {
	mu     sync.Mutex
	model  *Model
	rows   []map[string]any
	nextID int64
	log    *eventLog

	finds   []Criteria
	deletes []Criteria
	saves   int
	findErr error
}

func newFakeStore(m *Model, log *eventLog) *fakeStore {
	return &fakeStore{model: m, log: log}
}

func (s *fakeStore) match(row map[string]any, c Criteria) bool {
	return c.Matches(func(col string) (any, bool) {
		v, ok := row[col]
		return v, ok
	})
}

func (s *fakeStore) FindAny(ctx context.Context, c Criteria) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds = append(s.finds, c)
	if s.log != nil {
		s.log.add("find:" + s.model.Name())
	}
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []any
	for _, row := range s.rows {
		if s.match(row, c) {
			e, err := s.model.Load(row)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) FindOneAny(ctx context.Context, c Criteria) (any, error) {
	rows, err := s.FindAny(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewError(errors.ErrCodeNotFound, "record not found")
	}
	return rows[0], nil
}

func (s *fakeStore) SaveAny(ctx context.Context, entities ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.log != nil {
		s.log.add("save:" + s.model.Name())
	}
	key := s.model.KeyColumn()
	for _, e := range entities {
		if IsZeroKey(s.model.Key(e)) {
			s.nextID++
			if err := s.model.Set(e, key, s.nextID); err != nil {
				return err
			}
		}
		snap := s.model.Snapshot(e)
		replaced := false
		for i, row := range s.rows {
			if KeyString(row[key]) == KeyString(snap[key]) {
				s.rows[i] = snap
				replaced = true
				break
			}
		}
		if !replaced {
			s.rows = append(s.rows, snap)
		}
	}
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, c Criteria) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, c)
	if s.log != nil {
		s.log.add("delete:" + s.model.Name())
	}
	kept := s.rows[:0]
	for _, row := range s.rows {
		if !s.match(row, c) {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

func (s *fakeStore) findCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finds)
}

// typedStore 将 fakeStore 暴露为 BaseRepository[T]
type typedStore[T any] struct{ *fakeStore }

func (t typedStore[T]) Find(ctx context.Context, c Criteria) ([]T, error) {
	rows, err := t.FindAny(ctx, c)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.(T)
	}
	return out, nil
}

func (t typedStore[T]) FindOne(ctx context.Context, c Criteria) (T, error) {
	row, err := t.FindOneAny(ctx, c)
	if err != nil {
		var zero T
		return zero, err
	}
	return row.(T), nil
}

func (t typedStore[T]) Save(ctx context.Context, entities ...T) error {
	return t.SaveAny(ctx, toAny(entities)...)
}

// fixture 注册全部模型并为每个类型登记 fakeStore
type fixture struct {
	registry *Registry
	locator  *Locator
	engine   *Engine
	log      *eventLog
	stores   map[string]*fakeStore
}

func newFixture(t interface {
	Helper()
	Fatalf(string, ...any)
}, defs ...ModelDefinition) *fixture {
	t.Helper()
	if len(defs) == 0 {
		defs = []ModelDefinition{userModel(), merchantModel(), adminModel(), advertModel(), plainModel()}
	}
	reg := NewRegistry()
	if err := reg.Register(defs...); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	f := &fixture{
		registry: reg,
		locator:  NewLocator(reg),
		log:      &eventLog{},
		stores:   make(map[string]*fakeStore),
	}
	for _, m := range reg.Models() {
		s := newFakeStore(m, f.log)
		f.stores[m.Name()] = s
		if err := f.locator.Register(m.Name(), s); err != nil {
			t.Fatalf("locator: %v", err)
		}
	}
	f.engine = NewEngine(reg, f.locator)
	return f
}

func (f *fixture) store(name string) *fakeStore { return f.stores[name] }

func (f *fixture) model(name string) *Model {
	m, _ := f.registry.Model(name)
	return m
}

func seed(s *fakeStore, entities ...any) {
	if err := s.SaveAny(context.Background(), entities...); err != nil {
		panic(err)
	}
	// 种子数据不计入调用统计
	s.saves = 0
	if s.log != nil {
		s.log.mu.Lock()
		s.log.events = nil
		s.log.mu.Unlock()
	}
}

// recordingLogger 记录 Warn 消息
type recordingLogger struct {
	logging.NoopLogger
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(ctx context.Context, msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) WithFields(fields ...logging.Field) logging.Logger { return l }
