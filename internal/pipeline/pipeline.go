// Package pipeline wires the readers, the merge dispatcher, the batcher and
// the writers into a single run over one pair of input feeds.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	appconfig "pairflow/config"
	"pairflow/internal/channel"
	"pairflow/internal/dispatcher"
	"pairflow/internal/ledger"
	"pairflow/internal/metrics"
	"pairflow/internal/registry"
	"pairflow/internal/storage"
	"pairflow/logger"
	"pairflow/models"
	"pairflow/processor"
	"pairflow/reader"
)

var errPairFeedClosed = errors.New("pair feed closed")

// Deps are the external collaborators of a run. Objects may be nil when
// neither input lives on S3.
type Deps struct {
	Objects storage.ObjectAPI
	Writers []processor.BatchWriter
}

// Position is the end-of-run state of one instrument.
type Position struct {
	Symbol      string
	Pairs       int64
	RealizedPnL float64
	// Net is positive long, negative short.
	Net      int64
	OpenLots []ledger.OpenLot
}

type Summary struct {
	RunID          string
	QuotesApplied  int64
	TradesApplied  int64
	PairsEmitted   int64
	QuotesRead     int64
	TradesRead     int64
	QuotesSkipped  int64
	TradesSkipped  int64
	BatchesWritten int64
	Duration       time.Duration
	Positions      []Position
}

// OpenPositions returns the instruments that still hold open lots.
func (s *Summary) OpenPositions() []Position {
	var out []Position
	for _, p := range s.Positions {
		if len(p.OpenLots) > 0 {
			out = append(out, p)
		}
	}
	return out
}

type tally struct {
	pairs int64
	pnl   decimal.Decimal
}

// Run merges the configured quote and trade inputs, hands every closed pair
// to the writers and returns once all of them have been written.
func Run(ctx context.Context, cfg *appconfig.Config, deps Deps) (*Summary, error) {
	if cfg.Input.Quotes == "" || cfg.Input.Trades == "" {
		return nil, fmt.Errorf("%w: both input.quotes and input.trades are required", appconfig.ErrInvalidConfig)
	}

	runID := uuid.New().String()
	log := logger.GetLogger().WithComponent("pipeline").WithFields(logger.Fields{"run_id": runID})
	start := time.Now()

	quoteSrc, err := reader.OpenQuotes(ctx, cfg.Input.Quotes, deps.Objects, reader.OptionsFor(reader.FeedQuotes, cfg.Input))
	if err != nil {
		return nil, fmt.Errorf("quotes: %w", err)
	}
	defer quoteSrc.Close()

	tradeSrc, err := reader.OpenTrades(ctx, cfg.Input.Trades, deps.Objects, reader.OptionsFor(reader.FeedTrades, cfg.Input))
	if err != nil {
		return nil, fmt.Errorf("trades: %w", err)
	}
	defer tradeSrc.Close()

	chans := channel.NewChannels(cfg.Channels.EventBuffer, cfg.Channels.PairBuffer)
	defer chans.Close()
	defer metrics.Subscribe(metrics.RunGauge)()

	reportCtx, stopReport := context.WithCancel(ctx)
	defer stopReport()
	if interval := cfg.Metrics.ReportInterval; interval > 0 {
		chans.StartMetricsReporting(reportCtx, interval)
		metrics.StartChannelSizeMetrics(reportCtx, chans, interval)
	}

	reg := registry.New()
	tallies := make(map[string]*tally)
	sink := dispatcher.SinkFunc(func(ctx context.Context, p models.ClosedPair) error {
		if !chans.Pairs.SendEvent(ctx, p) {
			if err := ctx.Err(); err != nil {
				return err
			}
			return errPairFeedClosed
		}
		t, ok := tallies[p.Symbol]
		if !ok {
			t = &tally{}
			tallies[p.Symbol] = t
		}
		t.pairs++
		t.pnl = t.pnl.Add(decimal.NewFromFloat(p.PnL))
		metrics.ObservePair(p.Symbol, p.PnL)
		logger.IncrementPairsEmitted(1)
		return nil
	})

	log.WithFields(logger.Fields{
		"quotes": cfg.Input.Quotes,
		"trades": cfg.Input.Trades,
	}).Info("run starting")

	g, gctx := errgroup.WithContext(ctx)

	batcher := processor.NewBatcher(cfg, runID, chans.Pairs, deps.Writers...)
	if err := batcher.Start(gctx); err != nil {
		return nil, err
	}
	g.Go(batcher.Wait)

	var stats dispatcher.Stats
	g.Go(func() error {
		defer chans.Pairs.Close()

		// The dispatcher stops at the end of the trade feed, possibly with
		// quotes still unread; cancelling releases a pump blocked on send.
		pumpCtx, stopPumps := context.WithCancel(gctx)
		var pumps sync.WaitGroup
		defer func() {
			stopPumps()
			pumps.Wait()
		}()

		pumps.Add(2)
		go func() {
			defer pumps.Done()
			reader.Pump[models.QuoteEvent](pumpCtx, quoteSrc, chans.Quotes)
		}()
		go func() {
			defer pumps.Done()
			reader.Pump[models.TradeEvent](pumpCtx, tradeSrc, chans.Trades)
		}()

		quotes, err := reader.NewChannelSource(chans.Quotes)
		if err != nil {
			return fmt.Errorf("quotes: %w", err)
		}
		trades, err := reader.NewChannelSource(chans.Trades)
		if err != nil {
			return fmt.Errorf("trades: %w", err)
		}

		stats, err = dispatcher.New(reg, sink).Run(gctx, quotes, trades)
		return err
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("run failed")
		return nil, err
	}

	summary := &Summary{
		RunID:         runID,
		QuotesApplied: stats.QuotesApplied,
		TradesApplied: stats.TradesApplied,
		PairsEmitted:  stats.PairsEmitted,
		QuotesRead:    quoteSrc.Decoded(),
		TradesRead:    tradeSrc.Decoded(),
		QuotesSkipped: quoteSrc.Skipped(),
		TradesSkipped: tradeSrc.Skipped(),
		Duration:      time.Since(start),
	}
	_, summary.BatchesWritten, _ = batcher.Stats()
	for _, symbol := range reg.Symbols() {
		inst, _ := reg.Lookup(symbol)
		pos := Position{
			Symbol:   symbol,
			Net:      inst.Ledger.Position(),
			OpenLots: inst.Ledger.OpenLots(),
		}
		if t, ok := tallies[symbol]; ok {
			pos.Pairs = t.pairs
			pos.RealizedPnL = t.pnl.Round(2).InexactFloat64()
		}
		summary.Positions = append(summary.Positions, pos)
	}

	Report(logger.GetLogger(), summary)
	return summary, nil
}
