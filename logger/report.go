package logger

import (
	"context"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	warnCount    int64
	errorCount   int64
	quotesRead   int64
	tradesRead   int64
	decodeErrors int64
	pairsEmitted int64
	rowsWritten  sync.Map // map[string]*int64, keyed by sink name
	channels     sync.Map // map[string]*channelStat
)

// Counters is a point-in-time copy of the run counters.
type Counters struct {
	Warns        int64
	Errors       int64
	QuotesRead   int64
	TradesRead   int64
	DecodeErrors int64
	PairsEmitted int64
	RowsWritten  map[string]int64
}

func recordWarn(component string) {
	if component != "" {
		atomic.AddInt64(&warnCount, 1)
	}
}

func recordError(component string) {
	if component != "" {
		atomic.AddInt64(&errorCount, 1)
	}
}

func IncrementQuoteRead(size int) {
	atomic.AddInt64(&quotesRead, 1)
	recordChannel("quotes_in", size)
}

func IncrementTradeRead(size int) {
	atomic.AddInt64(&tradesRead, 1)
	recordChannel("trades_in", size)
}

func IncrementDecodeError() {
	atomic.AddInt64(&decodeErrors, 1)
}

func IncrementPairsEmitted(n int) {
	atomic.AddInt64(&pairsEmitted, int64(n))
}

// IncrementRowsWritten adds n rows to the named sink's counter.
func IncrementRowsWritten(sink string, n int) {
	v, _ := rowsWritten.LoadOrStore(sink, new(int64))
	atomic.AddInt64(v.(*int64), int64(n))
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// Snapshot returns the current counter values.
func Snapshot() Counters {
	c := Counters{
		Warns:        atomic.LoadInt64(&warnCount),
		Errors:       atomic.LoadInt64(&errorCount),
		QuotesRead:   atomic.LoadInt64(&quotesRead),
		TradesRead:   atomic.LoadInt64(&tradesRead),
		DecodeErrors: atomic.LoadInt64(&decodeErrors),
		PairsEmitted: atomic.LoadInt64(&pairsEmitted),
		RowsWritten:  map[string]int64{},
	}
	rowsWritten.Range(func(k, v any) bool {
		c.RowsWritten[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	return c
}

// ResetCounters zeroes every run counter. Used between runs in tests.
func ResetCounters() {
	for _, p := range []*int64{&warnCount, &errorCount, &quotesRead, &tradesRead, &decodeErrors, &pairsEmitted} {
		atomic.StoreInt64(p, 0)
	}
	rowsWritten.Range(func(k, _ any) bool {
		rowsWritten.Delete(k)
		return true
	})
	channels.Range(func(k, _ any) bool {
		channels.Delete(k)
		return true
	})
}

// StartReport begins periodic logging of process and channel statistics
// until ctx is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				LogReport(ctx, log)
			}
		}
	}()
}

// LogReport logs the counters with host and process statistics and
// publishes them to CloudWatch when a client is configured.
func LogReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	var memUsedMB float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsedMB = float64(vm.Used) / 1024 / 1024
	}

	var rssMB float64
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil && info != nil {
			rssMB = float64(info.RSS) / 1024 / 1024
		}
	}

	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		cs := v.(*channelStat)
		channelData[k.(string)] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	c := Snapshot()
	log.WithComponent("report").WithFields(Fields{
		"warns":         c.Warns,
		"errors":        c.Errors,
		"quotes_read":   c.QuotesRead,
		"trades_read":   c.TradesRead,
		"decode_errors": c.DecodeErrors,
		"pairs_emitted": c.PairsEmitted,
		"rows_written":  c.RowsWritten,
		"goroutines":    runtime.NumGoroutine(),
		"cpu_percent":   cpuPct,
		"memory_mb":     int64(memUsedMB),
		"rss_mb":        int64(rssMB),
		"channels":      channelData,
	}).Info("runtime report")

	data := []cwtypes.MetricDatum{
		countDatum("QuotesRead", c.QuotesRead),
		countDatum("TradesRead", c.TradesRead),
		countDatum("DecodeErrors", c.DecodeErrors),
		countDatum("PairsEmitted", c.PairsEmitted),
		countDatum("Warns", c.Warns),
		countDatum("Errors", c.Errors),
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(rssMB)},
	}

	sinks := make([]string, 0, len(c.RowsWritten))
	for name := range c.RowsWritten {
		sinks = append(sinks, name)
	}
	sort.Strings(sinks)
	for _, name := range sinks {
		d := countDatum("RowsWritten", c.RowsWritten[name])
		d.Dimensions = []cwtypes.Dimension{{Name: aws.String("Sink"), Value: aws.String(name)}}
		data = append(data, d)
	}

	publishMetrics(ctx, data)
}

func countDatum(name string, v int64) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Unit:       cwtypes.StandardUnitCount,
		Value:      aws.Float64(float64(v)),
	}
}
