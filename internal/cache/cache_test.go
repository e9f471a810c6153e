package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newFakeNow() *fakeNow {
	return &fakeNow{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestCache_GetPut(t *testing.T) {
	c := New[string, int]()

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCache_Expiry(t *testing.T) {
	clock := newFakeNow()
	c := New[string, int](WithTTL(time.Minute), WithNow(clock.now))

	c.Put("a", 1)
	clock.advance(59 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok)

	clock.advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry must expire exactly at TTL")
	assert.Equal(t, 0, c.Len(), "expired entry removed on access")
}

func TestCache_CapacityEvictsEarliestExpiry(t *testing.T) {
	clock := newFakeNow()
	c := New[string, int](WithCapacity(3), WithNow(clock.now))

	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), i)
		clock.advance(time.Second)
	}
	c.Put("k3", 3)

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("k0")
	assert.False(t, ok, "earliest expiry evicted")
	_, ok = c.Get("k3")
	assert.True(t, ok)
}

func TestCache_CapacityPurgesExpiredFirst(t *testing.T) {
	clock := newFakeNow()
	c := New[string, int](WithCapacity(2), WithTTL(10*time.Second), WithNow(clock.now))

	c.Put("old", 0)
	clock.advance(5 * time.Second)
	c.Put("young", 1)
	clock.advance(6 * time.Second) // "old" expired
	c.Put("new", 2)

	_, ok := c.Get("young")
	assert.True(t, ok)
	_, ok = c.Get("new")
	assert.True(t, ok)
}

func TestCache_NeverExceedsCapacity(t *testing.T) {
	c := New[int, int](WithCapacity(100))
	for i := 0; i < 150; i++ {
		c.Put(i, i)
		assert.LessOrEqual(t, c.Len(), 100)
	}
	assert.Equal(t, 100, c.Capacity())
}

func TestCache_OverwriteDoesNotEvict(t *testing.T) {
	c := New[string, int](WithCapacity(2))
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 3)

	assert.Equal(t, 2, c.Len())
	v, _ := c.Get("a")
	assert.Equal(t, 3, v)
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New[string, int]()
	c.Put("a", 1)
	c.Put("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_DeleteFunc(t *testing.T) {
	c := New[string, int]()
	c.Put("a/1", 1)
	c.Put("a/2", 2)
	c.Put("b/1", 3)

	c.DeleteFunc(func(k string) bool { return k[0] == 'a' })

	assert.Equal(t, 1, c.Len())
	v, ok := c.Get("b/1")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int, int](WithCapacity(50))
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Put(g*1000+i, i)
				c.Get(g*1000 + i)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
