package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyrepo/codegen/snowflake"
	"polyrepo/polymorphic"
)

type item struct {
	ID   int64
	Name string
}

func itemModel(t *testing.T) *polymorphic.Model {
	t.Helper()
	reg := polymorphic.NewRegistry()
	require.NoError(t, reg.Register(
		polymorphic.NewModel("Item", func() *item { return &item{} }).
			Int64Column("id", func(i *item) *int64 { return &i.ID }).
			StringColumn("name", func(i *item) *string { return &i.Name }),
	))
	m, ok := reg.Model("Item")
	require.True(t, ok)
	return m
}

func TestSequence(t *testing.T) {
	ctx := context.Background()
	gen := Sequence()
	a, _ := gen.NextKey(ctx)
	b, _ := gen.NextKey(ctx)
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)
}

func TestSnowflakeAndUUID(t *testing.T) {
	ctx := context.Background()
	g, err := snowflake.NewGenerator(2, 3)
	require.NoError(t, err)

	k1, err := Snowflake(g).NextKey(ctx)
	require.NoError(t, err)
	k2, err := Snowflake(nil).NextKey(ctx)
	require.NoError(t, err)
	assert.Greater(t, k1.(int64), int64(0))
	assert.Greater(t, k2.(int64), int64(0))

	u, err := UUID().NextKey(ctx)
	require.NoError(t, err)
	assert.Len(t, u.(string), 36)
}

func TestAssignKey(t *testing.T) {
	ctx := context.Background()
	m := itemModel(t)

	it := &item{}
	key, err := AssignKey(ctx, m, Sequence(), it)
	require.NoError(t, err)
	assert.Equal(t, int64(1), key)
	assert.Equal(t, int64(1), it.ID)

	kept := &item{ID: 9}
	key, err = AssignKey(ctx, m, Sequence(), kept)
	require.NoError(t, err)
	assert.Equal(t, int64(9), key, "existing key kept")
}

func TestMatch(t *testing.T) {
	m := itemModel(t)
	it := &item{ID: 3, Name: "x"}
	assert.True(t, Match(m, it, polymorphic.Criteria{"id": "3"}))
	assert.True(t, Match(m, it, polymorphic.Criteria{"id": polymorphic.In{1, 3}}))
	assert.False(t, Match(m, it, polymorphic.Criteria{"name": nil}))
	assert.False(t, Match(m, it, polymorphic.Criteria{"missing": 1}))
}
