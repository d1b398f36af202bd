package polymorphic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCriteria_Matches(t *testing.T) {
	row := map[string]any{"id": int64(3), "entityType": "User", "entityId": int64(0)}
	get := func(col string) (any, bool) {
		v, ok := row[col]
		return v, ok
	}

	assert.True(t, Criteria{}.Matches(get))
	assert.True(t, Criteria{"id": 3}.Matches(get), "int and int64 compare equal")
	assert.True(t, Criteria{"id": "3"}.Matches(get))
	assert.True(t, Criteria{"id": In{1, 2, 3}, "entityType": "User"}.Matches(get))
	assert.False(t, Criteria{"id": In{1, 2}}.Matches(get))
	assert.False(t, Criteria{"id": In{}}.Matches(get), "empty In matches nothing")
	assert.True(t, Criteria{"entityId": nil}.Matches(get))
	assert.False(t, Criteria{"id": nil}.Matches(get))
	assert.False(t, Criteria{"missing": 1}.Matches(get))
}

func TestCriteria_Columns(t *testing.T) {
	assert.Equal(t, []string{"entityId", "entityType", "id"},
		Criteria{"id": 1, "entityType": "A", "entityId": 2}.Columns())
}

func TestIsZeroKey(t *testing.T) {
	var nilPtr *int64
	one := int64(1)
	assert.True(t, IsZeroKey(nil))
	assert.True(t, IsZeroKey(0))
	assert.True(t, IsZeroKey(int64(0)))
	assert.True(t, IsZeroKey(""))
	assert.True(t, IsZeroKey(nilPtr))
	assert.False(t, IsZeroKey(&one))
	assert.False(t, IsZeroKey("a"))
	assert.False(t, IsZeroKey(int64(7)))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "7", KeyString(7))
	assert.Equal(t, "7", KeyString(int64(7)))
	assert.Equal(t, "7", KeyString(uint8(7)))
	assert.Equal(t, "abc", KeyString([]byte("abc")))
	assert.Equal(t, "User:7", groupKey("User", int64(7)))
}

func TestAccessor_One(t *testing.T) {
	acc := One(func(a *Advert) *Merchant { return a.Creator }, func(a *Advert, v *Merchant) { a.Creator = v })
	a := &Advert{}

	vals, err := acc.get(a)
	assert.NoError(t, err)
	assert.Empty(t, vals, "typed nil pointer is absent")

	m := &Merchant{ID: 1}
	assert.NoError(t, acc.set(a, []any{m, &Merchant{ID: 2}}))
	assert.Same(t, m, a.Creator)

	assert.NoError(t, acc.set(a, nil))
	assert.Nil(t, a.Creator)

	assert.Error(t, acc.set(a, []any{&User{}}))
	assert.Error(t, acc.set(&User{}, nil))
}

func TestAccessor_Many(t *testing.T) {
	acc := Many(func(u *User) []*Advert { return u.Adverts }, func(u *User, v []*Advert) { u.Adverts = v })
	u := &User{}

	assert.NoError(t, acc.set(u, nil))
	assert.NotNil(t, u.Adverts)
	assert.Len(t, u.Adverts, 0)

	u.Adverts = []*Advert{{ID: 1}, nil, {ID: 2}}
	vals, err := acc.get(u)
	assert.NoError(t, err)
	assert.Len(t, vals, 2)
	assert.True(t, acc.many)
}
