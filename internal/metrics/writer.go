package metrics

import "pairflow/logger"

// WriterStats holds metrics for writer components.
type WriterStats struct {
	BatchesWritten int64
	RowsWritten    int64
	BytesWritten   int64
	ErrorsCount    int64
}

// ReportWriter emits common writer metrics using the provided logger and component name.
func ReportWriter(log *logger.Log, component string, stats WriterStats) {
	errorRate := float64(0)
	if stats.BatchesWritten+stats.ErrorsCount > 0 {
		errorRate = float64(stats.ErrorsCount) / float64(stats.BatchesWritten+stats.ErrorsCount)
	}

	fields := logger.Fields{"sink": component}
	EmitMetric(log, component, "batches_written", stats.BatchesWritten, "counter", fields)
	EmitMetric(log, component, "rows_written", stats.RowsWritten, "counter", fields)
	EmitMetric(log, component, "bytes_written", stats.BytesWritten, "counter", fields)
	EmitMetric(log, component, "error_rate", errorRate, "gauge", fields)

	entry := log.WithComponent(component).WithFields(logger.Fields{
		"batches_written": stats.BatchesWritten,
		"rows_written":    stats.RowsWritten,
		"bytes_written":   stats.BytesWritten,
		"errors_count":    stats.ErrorsCount,
		"error_rate":      errorRate,
	})

	if stats.ErrorsCount > 0 {
		entry.Warn(component + " metrics")
		return
	}

	entry.Info(component + " metrics")
}
