// Package logger is the structured JSON logger shared by every component,
// plus the run counters and the optional CloudWatch sink behind it.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type Fields map[string]interface{}

type Log struct {
	*logrus.Logger
}

// Entry counts warnings and errors per component before passing them on.
type Entry struct {
	*logrus.Entry
}

// Options mirrors the logging section of the config file.
type Options struct {
	// Level is a logrus level name or "report", which logs at info.
	Level  string
	Format string
	// Output is stderr, stdout or a file path. MaxAge > 0 rotates the file
	// and keeps that many days of it.
	Output string
	MaxAge int
}

var globalLogger = Logger()

// Logger builds a JSON logger writing to stderr at LOG_LEVEL, or info when
// that is unset or unknown. Stdout is left to the result rows.
func Logger() *Log {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetReportCaller(true)
	l.SetFormatter(jsonFormatter())
	l.AddHook(callerHook{})

	l.SetLevel(logrus.InfoLevel)
	if lvl, err := parseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		l.SetLevel(lvl)
	}
	return &Log{Logger: l}
}

func GetLogger() *Log {
	return globalLogger
}

// Configure applies opts. LOG_LEVEL, when set, wins over opts.Level.
func (l *Log) Configure(opts Options) error {
	level := opts.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}

	formatter, err := formatterFor(opts.Format)
	if err != nil {
		return err
	}

	out, err := openOutput(opts.Output, opts.MaxAge)
	if err != nil {
		return err
	}

	l.SetLevel(lvl)
	l.SetFormatter(formatter)
	l.SetOutput(out)
	l.SetReportCaller(true)
	return nil
}

func parseLevel(name string) (logrus.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "report" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return lvl, nil
}

func formatterFor(format string) (logrus.Formatter, error) {
	switch format {
	case "", "json":
		return jsonFormatter(), nil
	case "text":
		return &logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: shortCaller,
		}, nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func openOutput(output string, maxAge int) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}

	if maxAge > 0 {
		return &lumberjack.Logger{
			Filename: output,
			MaxAge:   maxAge,
			MaxSize:  100,
			Compress: true,
		}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", output, err)
	}
	return f, nil
}

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
		CallerPrettyfier: shortCaller,
	}
}

// shortCaller renders the caller as file.go:line without the function.
func shortCaller(f *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}

func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField("component", component)}
}

func (l *Log) WithFields(fields Fields) *Entry {
	return &Entry{Entry: l.Logger.WithFields(logrus.Fields(fields))}
}

func (l *Log) WithError(err error) *Entry {
	return &Entry{Entry: l.Logger.WithError(err)}
}

func (e *Entry) WithComponent(component string) *Entry {
	return &Entry{Entry: e.Entry.WithField("component", component)}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(logrus.Fields(fields))}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}

// WithEnv adds the current value of each named environment variable.
func (e *Entry) WithEnv(names ...string) *Entry {
	fields := make(Fields, len(names))
	for _, name := range names {
		fields[name] = os.Getenv(name)
	}
	return e.WithFields(fields)
}

func (e *Entry) Warn(args ...interface{}) {
	recordWarn(e.component())
	e.Entry.Warn(args...)
}

func (e *Entry) Error(args ...interface{}) {
	recordError(e.component())
	e.Entry.Error(args...)
}

func (e *Entry) component() string {
	c, _ := e.Entry.Data["component"].(string)
	return c
}

// LogMetric writes one "metric" line and hands numeric values to CloudWatch.
// fields is modified.
func (e *Entry) LogMetric(component string, metric string, value interface{}, metricType string, fields Fields) {
	if fields == nil {
		fields = make(Fields)
	}
	if metricType == "" {
		metricType = "counter"
	}
	fields["metric"] = metric
	fields["value"] = value
	fields["metric_type"] = metricType
	e.WithComponent(component).WithFields(fields).Info("metric")

	if v, ok := toFloat(value); ok {
		publishValue(context.Background(), component, metric, metricType, v, fields)
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// LogPerformanceEntry logs how long operation took, in milliseconds.
func LogPerformanceEntry(entry *Entry, component string, operation string, duration time.Duration, fields Fields) {
	if fields == nil {
		fields = make(Fields)
	}
	fields["duration_ms"] = float64(duration.Nanoseconds()) / 1e6
	fields["operation"] = operation

	entry.WithFields(fields).WithComponent(component).Info("performance metric")
}

// LogDataFlowEntry logs a debug line for records moved from source to destination.
func LogDataFlowEntry(entry *Entry, source string, destination string, recordCount int, dataType string) {
	entry.WithFields(Fields{
		"source":       source,
		"destination":  destination,
		"record_count": recordCount,
		"data_type":    dataType,
		"flow_type":    "data_flow",
	}).Debug("data flow metric")
}
