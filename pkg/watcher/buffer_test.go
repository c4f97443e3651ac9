package watcher

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalescingBufferPut(t *testing.T) {
	b := newCoalescingBuffer()

	assert.True(t, b.put(pendingChange{Path: "/d/a.txt", Kind: KindModified}))
	assert.False(t, b.put(pendingChange{Path: "/d/a.txt", Kind: KindModified}))
	assert.False(t, b.put(pendingChange{Path: "/d/a.txt", Kind: KindModified}))
	assert.Equal(t, 1, b.len())

	// Same path, different kind is a different key.
	assert.True(t, b.put(pendingChange{Path: "/d/a.txt", Kind: KindDeleted}))
	assert.Equal(t, 2, b.len())
}

func TestCoalescingBufferFirstArrivalOrder(t *testing.T) {
	b := newCoalescingBuffer()

	b.put(pendingChange{Path: "/d/a", Kind: KindCreated})
	b.put(pendingChange{Path: "/d/b", Kind: KindModified})
	b.put(pendingChange{Path: "/d/a", Kind: KindDeleted})
	b.put(pendingChange{Path: "/d/b", Kind: KindModified})
	b.put(pendingChange{Path: "/d/a", Kind: KindCreated})

	batch, overflowed := b.drain()
	require.Len(t, batch, 3)
	assert.False(t, overflowed)

	assert.Equal(t, []pendingChange{
		{Path: "/d/a", Kind: KindCreated},
		{Path: "/d/b", Kind: KindModified},
		{Path: "/d/a", Kind: KindDeleted},
	}, batch)
}

func TestCoalescingBufferDrain(t *testing.T) {
	b := newCoalescingBuffer()

	batch, overflowed := b.drain()
	assert.Empty(t, batch)
	assert.False(t, overflowed)

	b.put(pendingChange{Path: "/d/a", Kind: KindCreated})
	b.markOverflow()

	batch, overflowed = b.drain()
	assert.Len(t, batch, 1)
	assert.True(t, overflowed)

	// Drain leaves an empty buffer and clears the flag.
	assert.Equal(t, 0, b.len())
	batch, overflowed = b.drain()
	assert.Empty(t, batch)
	assert.False(t, overflowed)

	// Keys are fresh after a drain.
	assert.True(t, b.put(pendingChange{Path: "/d/a", Kind: KindCreated}))
}

func TestCoalescingBufferConcurrentPut(t *testing.T) {
	b := newCoalescingBuffer()

	const (
		writers = 8
		paths   = 50
	)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < paths; j++ {
				b.put(pendingChange{Path: fmt.Sprintf("/d/%d", j), Kind: KindModified})
			}
		}()
	}
	wg.Wait()

	batch, _ := b.drain()
	assert.Len(t, batch, paths)
}
