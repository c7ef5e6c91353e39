package relay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecencyCache_FIFOEviction(t *testing.T) {
	const capacity = 5
	c := NewRecencyCache(capacity)

	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("m%d", i)
		ids = append(ids, id)
		c.Insert(id)
	}

	want := ids[len(ids)-capacity:]
	assert.Equal(t, want, c.Snapshot())
	assert.Equal(t, capacity, c.Len())

	for _, id := range ids[:len(ids)-capacity] {
		assert.False(t, c.Contains(id), id)
	}
	for _, id := range want {
		assert.True(t, c.Contains(id), id)
	}
}

func TestRecencyCache_ReadsDoNotRefresh(t *testing.T) {
	c := NewRecencyCache(2)
	c.Insert("a")
	c.Insert("b")

	assert.True(t, c.Contains("a"))
	c.Insert("c")

	assert.False(t, c.Contains("a"))
	assert.Equal(t, []string{"b", "c"}, c.Snapshot())
}

func TestRecencyCache_Duplicates(t *testing.T) {
	c := NewRecencyCache(3)
	c.Insert("a")
	c.Insert("a")
	c.Insert("b")
	assert.Equal(t, []string{"a", "a", "b"}, c.Snapshot())

	// evicting one copy of "a" keeps the other one visible
	c.Insert("c")
	assert.True(t, c.Contains("a"))

	c.Insert("d")
	assert.False(t, c.Contains("a"))
	assert.Equal(t, []string{"b", "c", "d"}, c.Snapshot())
}

func TestRecencyCache_Capacity(t *testing.T) {
	assert.Equal(t, 1, NewRecencyCache(0).Capacity())
	assert.Equal(t, 2000, NewRecencyCache(2000).Capacity())

	c := NewRecencyCache(1)
	c.Insert("x")
	c.Insert("y")
	assert.Equal(t, []string{"y"}, c.Snapshot())
	assert.Empty(t, NewRecencyCache(3).Snapshot())
}
