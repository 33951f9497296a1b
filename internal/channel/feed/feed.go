package feed

import (
	"context"
	"sync"
	"time"

	"pairflow/logger"
)

// Item is one slot on a feed: either a decoded event or the error that
// ended the producer. An item with Err set is always the last one sent.
type Item[T any] struct {
	Event T
	Err   error
}

type Stats struct {
	Sent     int64
	Received int64
	// Blocked counts sends that found the buffer full and had to wait.
	Blocked int64
}

// Feed is an ordered, buffered hand-off between one producer and one
// consumer. Sends block when the buffer is full; nothing is dropped.
type Feed[T any] struct {
	C chan Item[T]

	name       string
	stats      Stats
	statsMutex sync.RWMutex
	closeOnce  sync.Once
	log        *logger.Log
}

func New[T any](name string, bufferSize int) *Feed[T] {
	log := logger.GetLogger()
	f := &Feed[T]{
		C:    make(chan Item[T], bufferSize),
		name: name,
		log:  log,
	}

	log.WithComponent("feed").WithFields(logger.Fields{
		"feed":        name,
		"buffer_size": bufferSize,
	}).Debug("feed initialized")

	return f
}

func (f *Feed[T]) Name() string { return f.name }

// Send delivers item, waiting for buffer space if needed. It returns false
// only when ctx is cancelled first.
func (f *Feed[T]) Send(ctx context.Context, item Item[T]) bool {
	select {
	case f.C <- item:
		f.incrementSent(false)
		return true
	default:
	}

	start := time.Now()
	select {
	case f.C <- item:
		f.incrementSent(true)
		if waited := time.Since(start); waited > time.Second {
			f.log.WithComponent("feed").WithFields(logger.Fields{
				"feed":      f.name,
				"waited_ms": waited.Milliseconds(),
			}).Debug("slow consumer")
		}
		return true
	case <-ctx.Done():
		return false
	}
}

// SendEvent is Send for a successfully decoded event.
func (f *Feed[T]) SendEvent(ctx context.Context, ev T) bool {
	return f.Send(ctx, Item[T]{Event: ev})
}

// Receive blocks for the next item. ok is false once the feed is closed
// and drained.
func (f *Feed[T]) Receive() (Item[T], bool) {
	item, ok := <-f.C
	if ok {
		f.statsMutex.Lock()
		f.stats.Received++
		f.statsMutex.Unlock()
	}
	return item, ok
}

// Close is safe to call more than once; only the producer may call it.
func (f *Feed[T]) Close() {
	f.closeOnce.Do(func() {
		close(f.C)
		f.log.WithComponent("feed").WithFields(logger.Fields{"feed": f.name}).Debug("feed closed")
	})
}

func (f *Feed[T]) Len() int { return len(f.C) }

func (f *Feed[T]) Cap() int { return cap(f.C) }

func (f *Feed[T]) incrementSent(blocked bool) {
	f.statsMutex.Lock()
	f.stats.Sent++
	if blocked {
		f.stats.Blocked++
	}
	f.statsMutex.Unlock()
	logger.RecordChannelMessage(f.name, 1)
}

func (f *Feed[T]) GetStats() Stats {
	f.statsMutex.RLock()
	defer f.statsMutex.RUnlock()
	return f.stats
}
