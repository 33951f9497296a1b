package pipeline

import (
	"pairflow/internal/metrics"
	"pairflow/logger"
)

// Report logs the run totals and every instrument left with open lots, and
// emits them as metrics. Open lots are never written as pairs.
func Report(log *logger.Log, s *Summary) {
	entry := log.WithComponent("pipeline").WithFields(logger.Fields{"run_id": s.RunID})

	metrics.EmitMetric(log, "pipeline", "quotes_applied", s.QuotesApplied, "counter", nil)
	metrics.EmitMetric(log, "pipeline", "trades_applied", s.TradesApplied, "counter", nil)
	metrics.EmitMetric(log, "pipeline", "pairs_emitted", s.PairsEmitted, "counter", nil)
	metrics.EmitMetric(log, "pipeline", "batches_written", s.BatchesWritten, "counter", nil)

	open := s.OpenPositions()
	for _, p := range s.Positions {
		metrics.EmitMetric(log, "pipeline", "realized_pnl", p.RealizedPnL, "gauge", logger.Fields{"symbol": p.Symbol})
	}

	for _, p := range open {
		var qty int64
		for _, lot := range p.OpenLots {
			qty += lot.Quantity
		}
		oldest := p.OpenLots[0]
		entry.WithFields(logger.Fields{
			"symbol":        p.Symbol,
			"net_position":  p.Net,
			"open_lots":     len(p.OpenLots),
			"open_quantity": qty,
			"side":          oldest.Side.String(),
			"oldest_time":   oldest.Time,
			"oldest_price":  oldest.Price,
			"realized_pnl":  p.RealizedPnL,
		}).Info("open position")
		metrics.EmitMetric(log, "pipeline", "open_position", p.Net, "gauge", logger.Fields{"symbol": p.Symbol})
	}

	logger.LogPerformanceEntry(entry, "pipeline", "run", s.Duration, logger.Fields{
		"quotes_applied": s.QuotesApplied,
		"trades_applied": s.TradesApplied,
		"pairs_emitted":  s.PairsEmitted,
		"batches":        s.BatchesWritten,
		"quotes_read":    s.QuotesRead,
		"trades_read":    s.TradesRead,
		"quotes_skipped": s.QuotesSkipped,
		"trades_skipped": s.TradesSkipped,
		"instruments":    len(s.Positions),
		"open_positions": len(open),
	})
}
