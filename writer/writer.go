// Package writer persists closed pairs. Every writer receives the same
// batches in sequence order.
package writer

import (
	"context"
	"errors"
	"fmt"
	"io"

	appconfig "pairflow/config"
	"pairflow/internal/metrics"
	"pairflow/internal/storage"
	"pairflow/logger"
	"pairflow/models"
)

type Writer interface {
	Name() string
	WriteBatch(ctx context.Context, batch models.PairBatch) error
	Close(ctx context.Context) error
}

// Build constructs every writer enabled in cfg. stdout receives CSV rows
// when writer.csv.output is "stdout". objects may be nil when S3 is
// disabled.
func Build(ctx context.Context, cfg *appconfig.Config, stdout io.Writer, objects storage.ObjectAPI) ([]Writer, error) {
	var writers []Writer

	fail := func(err error) ([]Writer, error) {
		_ = CloseAll(ctx, writers)
		return nil, err
	}

	if cfg.Writer.CSV.Enabled {
		w, err := NewCSVWriter(cfg.Writer.CSV, stdout)
		if err != nil {
			return fail(fmt.Errorf("csv writer: %w", err))
		}
		writers = append(writers, w)
	}

	if cfg.Writer.Parquet.Enabled {
		w, err := NewParquetWriter(cfg, objects)
		if err != nil {
			return fail(fmt.Errorf("parquet writer: %w", err))
		}
		writers = append(writers, w)
	}

	if cfg.Storage.Kafka.Enabled {
		w, err := NewKafkaWriter(cfg.Storage.Kafka)
		if err != nil {
			return fail(fmt.Errorf("kafka writer: %w", err))
		}
		writers = append(writers, w)
	}

	if cfg.Storage.Postgres.Enabled {
		w, err := NewPostgresWriter(ctx, cfg.Storage.Postgres)
		if err != nil {
			return fail(fmt.Errorf("postgres writer: %w", err))
		}
		writers = append(writers, w)
	}

	if len(writers) == 0 {
		logger.GetLogger().WithComponent("writer").Warn("no writers enabled; pairs will be counted but not stored")
	}
	return writers, nil
}

// CloseAll closes every writer and joins their errors.
func CloseAll(ctx context.Context, writers []Writer) error {
	var errs []error
	for _, w := range writers {
		if err := w.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// stats tracks what a writer has accepted so it can be reported on close.
type stats struct {
	batches int64
	rows    int64
	bytes   int64
	errors  int64
}

func (s *stats) report(component string) {
	metrics.ReportWriter(logger.GetLogger(), component, metrics.WriterStats{
		BatchesWritten: s.batches,
		RowsWritten:    s.rows,
		BytesWritten:   s.bytes,
		ErrorsCount:    s.errors,
	})
}
