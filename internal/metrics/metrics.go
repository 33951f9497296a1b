// Package metrics registers the pipeline counters on a private Prometheus
// registry:
//
//	pairflow_events_total{feed}
//	pairflow_decode_errors_total{feed}
//	pairflow_pairs_total{symbol}
//	pairflow_realized_pnl{symbol}
//	pairflow_feed_depth{feed}
//	pairflow_rows_written_total{sink}
//	pairflow_run_value{component,metric,symbol}
//
// plus go_* and process_* collectors. Serve exposes them on /metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pairflow/logger"
)

var (
	once         sync.Once
	registry     *prometheus.Registry
	events       *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	pairs        *prometheus.CounterVec
	realizedPnL  *prometheus.GaugeVec
	feedDepth    *prometheus.GaugeVec
	rowsWritten  *prometheus.CounterVec
	runValue     *prometheus.GaugeVec
)

// Init registers the collectors. It is safe to call more than once.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		events = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairflow_events_total",
				Help: "Events decoded from each input feed",
			},
			[]string{"feed"},
		)
		decodeErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairflow_decode_errors_total",
				Help: "Input lines rejected by the decoder",
			},
			[]string{"feed"},
		)
		pairs = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairflow_pairs_total",
				Help: "Closed pairs emitted per instrument",
			},
			[]string{"symbol"},
		)
		realizedPnL = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairflow_realized_pnl",
				Help: "Cumulative realized pnl per instrument",
			},
			[]string{"symbol"},
		)
		feedDepth = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairflow_feed_depth",
				Help: "Items buffered in each internal feed",
			},
			[]string{"feed"},
		)
		rowsWritten = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairflow_rows_written_total",
				Help: "Pair rows accepted by each writer",
			},
			[]string{"sink"},
		)

		runValue = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairflow_run_value",
				Help: "Last value of each metric emitted at the end of a run",
			},
			[]string{"component", "metric", "symbol"},
		)

		registry.MustRegister(events, decodeErrors, pairs, realizedPnL, feedDepth, rowsWritten, runValue)
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Registry returns the private registry, initialising it if needed.
func Registry() *prometheus.Registry {
	Init()
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr
// disables the endpoint.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	log := logger.GetLogger().WithComponent("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.WithFields(logger.Fields{"addr": addr}).Info("serving prometheus metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
}

func IncrementEvents(feed string) {
	Init()
	events.WithLabelValues(feed).Inc()
}

func IncrementDecodeErrors(feed string) {
	Init()
	decodeErrors.WithLabelValues(feed).Inc()
}

// ObservePair records one emitted pair and adds its pnl to the running
// total for the instrument.
func ObservePair(symbol string, pnl float64) {
	Init()
	pairs.WithLabelValues(symbol).Inc()
	realizedPnL.WithLabelValues(symbol).Add(pnl)
}

func SetFeedDepth(feed string, depth int) {
	Init()
	feedDepth.WithLabelValues(feed).Set(float64(depth))
}

func AddRowsWritten(sink string, n int) {
	Init()
	rowsWritten.WithLabelValues(sink).Add(float64(n))
}
