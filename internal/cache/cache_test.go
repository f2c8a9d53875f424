package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSet(t *testing.T) {
	c := New[string](Config{MaxSize: 4, TTL: time.Minute})

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v")
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
	assert.Equal(t, 1, c.Len())
}

func TestEvictsOldestWhenFull(t *testing.T) {
	c := New[int](Config{MaxSize: 2, TTL: time.Minute})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestEntriesExpire(t *testing.T) {
	c := New[int](Config{MaxSize: 4, TTL: 10 * time.Millisecond})
	c.Set("k", 1)
	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestPurge(t *testing.T) {
	c := New[int](Config{MaxSize: 4, TTL: time.Minute})
	c.Set("k", 1)
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "what is 2+2", NormalizeKey("  What   is 2+2 "))
	assert.Equal(t, NormalizeKey("Hello World"), NormalizeKey("hello    world"))
}
