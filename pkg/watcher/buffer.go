package watcher

import "sync"

// pendingChange is a raw notification waiting for dispatch.
type pendingChange struct {
	Path string
	Kind Kind
}

type pendingKey struct {
	path string
	kind Kind
}

// coalescingBuffer collects pending changes keyed by (path, kind).
//
// Entries keep the position of the first notification for their key, so a
// drained batch is in first-arrival order.
type coalescingBuffer struct {
	mu         sync.Mutex
	index      map[pendingKey]int
	order      []pendingChange
	overflowed bool
}

func newCoalescingBuffer() *coalescingBuffer {
	return &coalescingBuffer{
		index: make(map[pendingKey]int),
	}
}

// put stores c, replacing an entry with the same key.
// Returns false when the notification was coalesced into an existing entry.
func (b *coalescingBuffer) put(c pendingChange) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := pendingKey{path: c.Path, kind: c.Kind}
	if i, exists := b.index[key]; exists {
		b.order[i] = c
		return false
	}

	b.index[key] = len(b.order)
	b.order = append(b.order, c)
	return true
}

// markOverflow records that notifications were lost since the last drain.
func (b *coalescingBuffer) markOverflow() {
	b.mu.Lock()
	b.overflowed = true
	b.mu.Unlock()
}

// drain swaps out the buffer contents and the overflow flag.
// The returned batch is owned by the caller.
func (b *coalescingBuffer) drain() ([]pendingChange, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch, overflowed := b.order, b.overflowed
	b.order = nil
	b.index = make(map[pendingKey]int, len(batch))
	b.overflowed = false

	return batch, overflowed
}

func (b *coalescingBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.order)
}
