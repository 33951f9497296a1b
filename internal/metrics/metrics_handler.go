package metrics

import (
	"sync"
	"time"

	"pairflow/logger"
)

// Sample is one numeric value emitted through EmitMetric.
type Sample struct {
	At        time.Time
	Component string
	Name      string
	Type      string
	Value     float64
	// Labels holds the string valued fields, e.g. symbol or sink.
	Labels map[string]string
}

// Observer receives every numeric sample. It runs on the emitting goroutine.
type Observer func(Sample)

var (
	observersMu sync.RWMutex
	observers   = make(map[uint64]Observer)
	observerSeq uint64
)

// Subscribe adds o to the observers and returns the function removing it.
func Subscribe(o Observer) (cancel func()) {
	if o == nil {
		return func() {}
	}

	observersMu.Lock()
	observerSeq++
	id := observerSeq
	observers[id] = o
	observersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			observersMu.Lock()
			delete(observers, id)
			observersMu.Unlock()
		})
	}
}

// EmitMetric logs the metric, publishes numeric values to CloudWatch when a
// client is configured and passes them to every observer. fields is not
// modified.
func EmitMetric(log *logger.Log, component string, metric string, value interface{}, metricType string, fields logger.Fields) {
	if metric == "" {
		return
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	logged := make(logger.Fields, len(fields))
	labels := make(map[string]string)
	for k, v := range fields {
		logged[k] = v
		if s, ok := v.(string); ok {
			labels[k] = s
		}
	}
	log.WithComponent(component).LogMetric(component, metric, value, metricType, logged)

	v, ok := numeric(value)
	if !ok {
		return
	}
	notify(Sample{
		At:        time.Now(),
		Component: component,
		Name:      metric,
		Type:      metricType,
		Value:     v,
		Labels:    labels,
	})
}

func notify(s Sample) {
	observersMu.RLock()
	list := make([]Observer, 0, len(observers))
	for _, o := range observers {
		list = append(list, o)
	}
	observersMu.RUnlock()

	for _, o := range list {
		o(s)
	}
}

// RunGauge mirrors a sample into pairflow_run_value so end-of-run figures
// are scrapeable alongside the live counters.
func RunGauge(s Sample) {
	Init()
	runValue.WithLabelValues(s.Component, s.Name, s.Labels["symbol"]).Set(s.Value)
}

func numeric(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
