package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	appconfig "pairflow/config"
	"pairflow/internal/channel/feed"
	"pairflow/internal/metrics"
	"pairflow/logger"
	"pairflow/models"
)

// BatchWriter persists one batch of pairs. Batches arrive in sequence order.
type BatchWriter interface {
	Name() string
	WriteBatch(ctx context.Context, batch models.PairBatch) error
}

// Batcher numbers closed pairs in emission order, groups them into batches
// of processor.batch_size and hands every batch to each writer in turn.
type Batcher struct {
	batchSize int
	runID     string
	pairs     *feed.Feed[models.ClosedPair]
	writers   []BatchWriter

	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	err     error
	log     *logger.Log

	seq     int64
	current []models.SequencedPair

	// Metrics
	pairsProcessed   int64
	batchesProcessed int64
	errorsCount      int64
}

func NewBatcher(cfg *appconfig.Config, runID string, pairs *feed.Feed[models.ClosedPair], writers ...BatchWriter) *Batcher {
	log := logger.GetLogger()

	size := cfg.Processor.BatchSize
	if size < 1 {
		size = 1
	}

	b := &Batcher{
		batchSize: size,
		runID:     runID,
		pairs:     pairs,
		writers:   writers,
		log:       log,
		current:   make([]models.SequencedPair, 0, size),
	}

	names := make([]string, 0, len(writers))
	for _, w := range writers {
		names = append(names, w.Name())
	}
	log.WithComponent("batcher").WithFields(logger.Fields{
		"batch_size": size,
		"run_id":     runID,
		"writers":    names,
	}).Info("batcher initialized")

	return b
}

// Start consumes the pair feed on a background goroutine. Wait returns
// once the feed is closed and drained.
func (b *Batcher) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("batcher already running")
	}
	b.running = true
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := b.Run(ctx)
		b.mu.Lock()
		b.err = err
		b.running = false
		b.mu.Unlock()
	}()
	return nil
}

// Wait blocks until the goroutine started by Start returns and reports
// its error.
func (b *Batcher) Wait() error {
	b.wg.Wait()
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

// Run consumes the pair feed until it is closed, flushing the final
// partial batch. A writer error stops the run.
func (b *Batcher) Run(ctx context.Context) error {
	log := b.log.WithComponent("batcher")
	log.Info("starting batcher")

	for {
		item, ok := b.pairs.Receive()
		if !ok {
			if err := b.flush(ctx, "drain"); err != nil {
				return err
			}
			log.WithFields(logger.Fields{
				"pairs_processed":   b.pairsProcessed,
				"batches_processed": b.batchesProcessed,
			}).Info("pair feed closed, batcher stopping")
			return nil
		}

		b.seq++
		b.current = append(b.current, models.SequencedPair{Seq: b.seq, ClosedPair: item.Event})
		b.pairsProcessed++

		if len(b.current) >= b.batchSize {
			if err := b.flush(ctx, "size"); err != nil {
				return err
			}
		}
	}
}

func (b *Batcher) flush(ctx context.Context, reason string) error {
	if len(b.current) == 0 {
		return nil
	}

	entries := make([]models.SequencedPair, len(b.current))
	copy(entries, b.current)
	b.current = b.current[:0]

	batch := models.PairBatch{
		BatchID:     uuid.New().String(),
		RunID:       b.runID,
		Entries:     entries,
		RecordCount: len(entries),
		ProcessedAt: time.Now().UTC(),
	}

	log := b.log.WithComponent("batcher").WithFields(logger.Fields{
		"batch_id":     batch.BatchID,
		"record_count": batch.RecordCount,
		"first_seq":    entries[0].Seq,
		"reason":       reason,
	})

	for _, w := range b.writers {
		start := time.Now()
		if err := w.WriteBatch(ctx, batch); err != nil {
			b.errorsCount++
			log.WithError(err).WithFields(logger.Fields{"writer": w.Name()}).Error("failed to write batch")
			return fmt.Errorf("writer %s: batch %s: %w", w.Name(), batch.BatchID, err)
		}
		logger.IncrementRowsWritten(w.Name(), batch.RecordCount)
		metrics.AddRowsWritten(w.Name(), batch.RecordCount)
		logger.LogPerformanceEntry(log, "batcher", "write_batch", time.Since(start), logger.Fields{
			"writer": w.Name(),
		})
		logger.LogDataFlowEntry(log, "batcher", w.Name(), batch.RecordCount, "closed_pairs")
	}

	b.batchesProcessed++
	return nil
}

// Stats returns pairs and batches processed and writer errors.
func (b *Batcher) Stats() (pairs, batches, errors int64) {
	return b.pairsProcessed, b.batchesProcessed, b.errorsCount
}
