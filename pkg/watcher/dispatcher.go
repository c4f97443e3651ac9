package watcher

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// batchHandler processes a drained batch on the dispatcher goroutine.
type batchHandler interface {
	handle(c pendingChange)
	finishCycle(overflowed bool)
}

// dispatcher is the single debounce loop. Every signal re-arms one timer,
// so at most one dispatch cycle exists at any time and it always runs on
// the dispatcher goroutine.
type dispatcher struct {
	quiet   time.Duration
	buffer  *coalescingBuffer
	handler batchHandler
	cycles  *atomic.Uint64

	signal   chan struct{}
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once

	// gid identifies the dispatcher goroutine so that stop can tell a
	// call from inside a callback.
	gid atomic.Uint64

	// abandon makes the running cycle skip its remaining entries.
	abandon atomic.Bool
}

func newDispatcher(quiet time.Duration, buffer *coalescingBuffer, handler batchHandler, cycles *atomic.Uint64) *dispatcher {
	return &dispatcher{
		quiet:   quiet,
		buffer:  buffer,
		handler: handler,
		cycles:  cycles,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

// notify reports new input. It never blocks.
func (d *dispatcher) notify() {
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// run is the dispatcher loop.
func (d *dispatcher) run() {
	defer close(d.exited)
	d.gid.Store(goroutineID())

	timer := time.NewTimer(d.quiet)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case <-d.done:
			timer.Stop()
			return

		case <-d.signal:
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(d.quiet)
			armed = true

		case <-timer.C:
			armed = false

			select {
			case <-d.done:
				return
			default:
			}

			d.flush()
		}
	}
}

// flush drains the buffer and hands each entry to the handler.
func (d *dispatcher) flush() {
	batch, overflowed := d.buffer.drain()
	if len(batch) == 0 && !overflowed {
		return
	}
	d.cycles.Add(1)

	for _, c := range batch {
		if d.abandon.Load() {
			return
		}
		d.handler.handle(c)
	}

	if !d.abandon.Load() {
		d.handler.finishCycle(overflowed)
	}
}

// stop ends the loop and waits for it, including a cycle in flight.
// Called from the dispatcher goroutine itself it only abandons the rest of
// the current cycle.
func (d *dispatcher) stop() {
	d.stopOnce.Do(func() {
		close(d.done)
	})

	if d.gid.Load() == goroutineID() {
		d.abandon.Store(true)
		return
	}
	<-d.exited
}

// goroutineID parses the current goroutine id from the runtime stack header
// ("goroutine 42 [running]:").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	header := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(header, ' '); i > 0 {
		header = header[:i]
	}

	id, err := strconv.ParseUint(string(header), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
