package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetDelete(t *testing.T) {
	c := New[string, int](Config{Name: "test", MaxSize: 10, TTL: time.Minute})

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Size())

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	_, ok = c.Get("a")
	assert.False(t, ok)
}

// TestCache_LRUEviction 访问过的条目不会被优先驱逐
func TestCache_LRUEviction(t *testing.T) {
	c := New[int, string](Config{MaxSize: 3})
	c.Set(1, "one")
	c.Set(2, "two")
	c.Set(3, "three")

	_, ok := c.Get(1)
	require.True(t, ok)
	c.Set(4, "four")

	_, ok = c.Get(2)
	assert.False(t, ok)
	for _, k := range []int{1, 3, 4} {
		_, ok := c.Get(k)
		assert.True(t, ok, "key %d", k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_TTL(t *testing.T) {
	c := New[string, int](Config{MaxSize: 10, TTL: 50 * time.Millisecond})
	c.Set("k", 1)
	c.Set("other", 2)

	time.Sleep(80 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())

	s := c.Stats()
	assert.Equal(t, int64(2), s.Expires)
	assert.Equal(t, int64(1), s.Misses)
}

func TestCache_HitRateAndString(t *testing.T) {
	c := New[int, int](Config{Name: "rows", MaxSize: 5})
	assert.Equal(t, 0.0, c.HitRate())

	c.Set(1, 1)
	for i := 0; i < 3; i++ {
		c.Get(1)
	}
	c.Get(2)
	assert.InDelta(t, 0.75, c.HitRate(), 0.001)
	assert.Contains(t, c.String(), "Cache[rows]")
}

func TestCache_OnEvict(t *testing.T) {
	var evicted []int
	c := New[int, string](Config{
		MaxSize: 2,
		OnEvict: func(key, value any) { evicted = append(evicted, key.(int)) },
	})
	c.Set(1, "one")
	c.Set(2, "two")
	c.Set(3, "three")
	c.Delete(2)
	c.Clear()

	assert.Equal(t, []int{1, 2, 3}, evicted)
	assert.Equal(t, 0, c.Size())
}

func TestCache_GetOrLoad(t *testing.T) {
	c := New[string, []int](Config{MaxSize: 10})
	var calls atomic.Int32
	release := make(chan struct{})
	load := func() ([]int, error) {
		calls.Add(1)
		<-release
		return []int{1, 2}, nil
	}

	var wg sync.WaitGroup
	results := make([][]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrLoad("q", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2), "concurrent loads collapse")
	for _, r := range results {
		assert.Equal(t, []int{1, 2}, r)
	}

	v, err := c.GetOrLoad("q", func() ([]int, error) { return nil, errors.New("not called") })
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v)

	_, err = c.GetOrLoad("bad", func() ([]int, error) { return nil, errors.New("boom") })
	assert.EqualError(t, err, "boom")
	_, ok := c.Get("bad")
	assert.False(t, ok, "errors are not cached")
}

func TestCache_GetOrLoadDiscardsResultAfterClear(t *testing.T) {
	c := New[string, int](Config{MaxSize: 10})
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan int, 1)
	go func() {
		v, _ := c.GetOrLoad("k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- v
	}()

	<-started
	c.Clear()
	// 失效后的调用不加入旧的加载
	v, err := c.GetOrLoad("k", func() (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	close(release)
	assert.Equal(t, 1, <-done)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, got, "pre-clear load must not overwrite")
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int, int](Config{MaxSize: 1000})
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Set(g*100+i, i)
				c.Get(g*100 + i)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 1000, c.Size())
}

func BenchmarkCache_Get(b *testing.B) {
	c := New[int, int](Config{MaxSize: 10000})
	for i := 0; i < 10000; i++ {
		c.Set(i, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(i % 10000)
	}
}
