package cached

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyrepo/cache"
	"polyrepo/data/store"
	"polyrepo/data/store/memory"
	"polyrepo/polymorphic"
)

type Advert struct {
	ID         int64
	Title      string
	EntityID   int64
	EntityType string
	Owner      any
}

// counting 记录穿透到底层仓储的查询次数
type counting struct {
	polymorphic.Repository
	finds int
}

func (c *counting) FindAny(ctx context.Context, criteria polymorphic.Criteria) ([]any, error) {
	c.finds++
	return c.Repository.FindAny(ctx, criteria)
}

func advertModel(t *testing.T) *polymorphic.Model {
	t.Helper()
	reg := polymorphic.NewRegistry()
	require.NoError(t, reg.Register(
		polymorphic.NewModel("Advert", func() *Advert { return &Advert{} }).
			Int64Column("id", func(a *Advert) *int64 { return &a.ID }).
			StringColumn("title", func(a *Advert) *string { return &a.Title }).
			Int64Column("entityId", func(a *Advert) *int64 { return &a.EntityID }).
			StringColumn("entityType", func(a *Advert) *string { return &a.EntityType }),
	))
	m, _ := reg.Model("Advert")
	return m
}

func TestRepository_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	m := advertModel(t)
	inner := &counting{Repository: memory.New(m)}
	r := New(inner, m, cache.Config{MaxSize: 10})
	adverts := store.Typed[*Advert](r)

	require.NoError(t, adverts.Save(ctx, &Advert{Title: "a", EntityID: 3, EntityType: "User"}))

	c1 := polymorphic.Criteria{"entityId": polymorphic.In{int64(3), int64(4)}, "entityType": "User"}
	c2 := polymorphic.Criteria{"entityType": "User", "entityId": polymorphic.In{4, "3"}}
	first, err := adverts.Find(ctx, c1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	first[0].Owner = "mutated"
	first[0].Title = "mutated"
	second, err := adverts.Find(ctx, c2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, inner.finds, "equivalent criteria share one entry")
	assert.Equal(t, "a", second[0].Title)
	assert.Nil(t, second[0].Owner)
	assert.NotSame(t, first[0], second[0])

	require.NoError(t, adverts.Save(ctx, &Advert{Title: "b", EntityID: 4, EntityType: "User"}))
	third, err := adverts.Find(ctx, c1)
	require.NoError(t, err)
	assert.Len(t, third, 2)
	assert.Equal(t, 2, inner.finds)

	require.NoError(t, adverts.Delete(ctx, polymorphic.Criteria{"title": "a"}))
	one, err := adverts.FindOne(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, "b", one.Title)
	assert.Equal(t, 3, inner.finds)

	assert.Equal(t, int64(1), r.Stats().Hits)
}

// pausing 第一次查询读完底层数据后暂停，直到 release 关闭
type pausing struct {
	polymorphic.Repository
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausing) FindAny(ctx context.Context, criteria polymorphic.Criteria) ([]any, error) {
	rows, err := p.Repository.FindAny(ctx, criteria)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return rows, err
}

func TestRepository_WriteDuringLoadIsNotMasked(t *testing.T) {
	ctx := context.Background()
	m := advertModel(t)
	inner := &pausing{Repository: memory.New(m), read: make(chan struct{}), release: make(chan struct{})}
	r := New(inner, m, cache.Config{MaxSize: 10})
	users := polymorphic.Criteria{"entityType": "User"}

	loaded := make(chan []any, 1)
	go func() {
		rows, _ := r.FindAny(ctx, users)
		loaded <- rows
	}()

	<-inner.read
	require.NoError(t, r.SaveAny(ctx, &Advert{Title: "new", EntityID: 1, EntityType: "User"}))
	close(inner.release)
	assert.Empty(t, <-loaded)

	rows, err := r.FindAny(ctx, users)
	require.NoError(t, err)
	require.Len(t, rows, 1, "a completed save is visible to later reads")
	assert.Equal(t, "new", rows[0].(*Advert).Title)
}

func TestWrapFactory(t *testing.T) {
	m := advertModel(t)
	f := Wrap(memory.Factory(), cache.Config{MaxSize: 5})
	repo, err := f(m)
	require.NoError(t, err)
	assert.IsType(t, &Repository{}, repo)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "a is null&b=1&c in (1,2)",
		cacheKey(polymorphic.Criteria{"c": polymorphic.In{2, int64(1)}, "b": "1", "a": nil}))
	assert.Equal(t, "", cacheKey(polymorphic.Criteria{}))
}
