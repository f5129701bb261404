package checkpoint

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_PutGet(t *testing.T) {
	a := NewArena()
	h1 := a.Put("first")
	h2 := a.Put(42)

	assert.Less(t, h1, h2)
	assert.Equal(t, 2, a.Len())

	v, err := a.Get(h1)
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	// Get does not consume.
	v, err = a.Get(h1)
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestArena_Release(t *testing.T) {
	a := NewArena()
	h := a.Put(1)
	require.NoError(t, a.Release(h))

	_, err := a.Get(h)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.ErrorIs(t, a.Release(h), ErrUnknownHandle)
}

func TestArena_ResetKeepsHandlesMonotonic(t *testing.T) {
	a := NewArena()
	old := a.Put("step 1")
	a.Reset()
	assert.Equal(t, 0, a.Len())

	_, err := a.Get(old)
	assert.ErrorIs(t, err, ErrUnknownHandle)

	fresh := a.Put("step 2")
	assert.Greater(t, fresh, old)
}

func TestArena_Concurrent(t *testing.T) {
	a := NewArena()
	var wg sync.WaitGroup
	handles := make([]Handle, 64)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = a.Put(i)
		}(i)
	}
	wg.Wait()

	seen := make(map[Handle]bool)
	for i, h := range handles {
		assert.False(t, seen[h], "handle reused")
		seen[h] = true
		v, err := a.Get(h)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}
