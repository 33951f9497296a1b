package reader

import (
	"context"

	"pairflow/internal/channel/feed"
	"pairflow/logger"
)

// Pump copies src onto f in order until src is exhausted, src fails or ctx
// is cancelled, then closes f. A read error is delivered as the final item.
func Pump[T any](ctx context.Context, src Source[T], f *feed.Feed[T]) {
	defer f.Close()
	log := logger.GetLogger().WithComponent("pump").WithFields(logger.Fields{"feed": f.Name()})

	for {
		ev, ok := src.Peek()
		if !ok {
			log.Debug("source exhausted")
			return
		}
		if !f.SendEvent(ctx, ev) {
			log.Debug("pump cancelled")
			return
		}
		if err := src.Advance(); err != nil {
			f.Send(ctx, feed.Item[T]{Err: err})
			return
		}
	}
}

// ChannelSource consumes a feed filled by Pump. It holds one event ahead so
// Peek never blocks.
type ChannelSource[T any] struct {
	feed *feed.Feed[T]
	head T
	ok   bool
}

// NewChannelSource waits for the first item on f.
func NewChannelSource[T any](f *feed.Feed[T]) (*ChannelSource[T], error) {
	c := &ChannelSource[T]{feed: f}
	if err := c.next(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ChannelSource[T]) Peek() (T, bool) {
	return c.head, c.ok
}

func (c *ChannelSource[T]) Advance() error {
	if !c.ok {
		return nil
	}
	return c.next()
}

func (c *ChannelSource[T]) next() error {
	var zero T
	item, open := c.feed.Receive()
	switch {
	case !open:
		c.head, c.ok = zero, false
		return nil
	case item.Err != nil:
		c.head, c.ok = zero, false
		return item.Err
	default:
		c.head, c.ok = item.Event, true
		return nil
	}
}
