// Package dispatcher merges the quote and trade feeds into one chronological
// stream and routes each event to the instrument registry.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"pairflow/internal/registry"
	"pairflow/logger"
	"pairflow/models"
)

// State is the merge state after the last step.
type State int

const (
	BothAvailable State = iota
	TradeOnly
	Done
)

func (s State) String() string {
	switch s {
	case BothAvailable:
		return "both_available"
	case TradeOnly:
		return "trade_only"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Sink receives closed pairs in the order they are produced.
type Sink interface {
	Emit(ctx context.Context, pair models.ClosedPair) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, pair models.ClosedPair) error

func (f SinkFunc) Emit(ctx context.Context, pair models.ClosedPair) error { return f(ctx, pair) }

// Stats counts what a run applied.
type Stats struct {
	QuotesApplied int64
	TradesApplied int64
	PairsEmitted  int64
}

type Dispatcher struct {
	registry *registry.Registry
	sink     Sink
	state    State
	stats    Stats
	log      *logger.Log
}

func New(reg *registry.Registry, sink Sink) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		sink:     sink,
		state:    BothAvailable,
		log:      logger.GetLogger(),
	}
}

func (d *Dispatcher) State() State { return d.state }

func (d *Dispatcher) Stats() Stats { return d.stats }

// Step applies at most one event. Quotes win ties so a trade sees the quote
// stamped with its own time. Once the trade feed ends the dispatcher is Done
// and trailing quotes are left unread.
func (d *Dispatcher) Step(ctx context.Context, quotes Cursor[models.QuoteEvent], trades Cursor[models.TradeEvent]) (State, error) {
	if d.state == Done {
		return Done, nil
	}

	trade, ok := trades.Peek()
	if !ok {
		d.state = Done
		return Done, nil
	}

	quote, hasQuote := quotes.Peek()
	if !hasQuote {
		d.state = TradeOnly
	}

	if !hasQuote || trade.Time < quote.Time {
		for _, pair := range d.registry.ApplyTrade(trade) {
			if err := d.sink.Emit(ctx, pair); err != nil {
				return d.state, fmt.Errorf("emit pair for %s at %d: %w", pair.Symbol, pair.CloseTime, err)
			}
			d.stats.PairsEmitted++
		}
		d.stats.TradesApplied++
		if err := trades.Advance(); err != nil {
			return d.state, fmt.Errorf("advance trades: %w", err)
		}
		return d.state, nil
	}

	d.registry.ApplyQuote(quote)
	d.stats.QuotesApplied++
	if err := quotes.Advance(); err != nil {
		return d.state, fmt.Errorf("advance quotes: %w", err)
	}
	return d.state, nil
}

// Run steps until the trade feed is exhausted, the context is cancelled or a
// source or sink fails.
func (d *Dispatcher) Run(ctx context.Context, quotes Cursor[models.QuoteEvent], trades Cursor[models.TradeEvent]) (Stats, error) {
	log := d.log.WithComponent("dispatcher")
	log.Info("starting merge")
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warn("merge interrupted")
			return d.stats, err
		}
		state, err := d.Step(ctx, quotes, trades)
		if err != nil {
			log.WithError(err).Error("merge failed")
			return d.stats, err
		}
		if state == Done {
			break
		}
	}

	logger.LogPerformanceEntry(log, "dispatcher", "merge", time.Since(start), logger.Fields{
		"quotes_applied": d.stats.QuotesApplied,
		"trades_applied": d.stats.TradesApplied,
		"pairs_emitted":  d.stats.PairsEmitted,
		"instruments":    d.registry.Len(),
	})
	return d.stats, nil
}
