package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure(Options{Level: "invalid", Format: "json", Output: "stderr"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure(Options{Level: "info", Format: "xml", Output: "stderr"}); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "pairflow.log")
	log := Logger()
	if err := log.Configure(Options{Level: "debug", Format: "json", Output: path}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	log.WithComponent("test").Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte(`"message":"hello"`)) {
		t.Fatalf("log line not written: %s", data)
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithComponent("test").WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestLogPerformanceEntryFields(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)

	LogPerformanceEntry(log.WithComponent("x"), "dispatcher", "run", 0, Fields{"pairs": 3})

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["component"] != "dispatcher" || line["operation"] != "run" {
		t.Fatalf("unexpected fields: %v", line)
	}
	if line["pairs"] != float64(3) {
		t.Fatalf("expected pairs=3, got %v", line["pairs"])
	}
}

func TestCountersSnapshot(t *testing.T) {
	ResetCounters()
	t.Cleanup(ResetCounters)

	IncrementQuoteRead(10)
	IncrementQuoteRead(10)
	IncrementTradeRead(12)
	IncrementDecodeError()
	IncrementPairsEmitted(4)
	IncrementRowsWritten("csv", 4)
	IncrementRowsWritten("csv", 1)

	c := Snapshot()
	if c.QuotesRead != 2 || c.TradesRead != 1 || c.DecodeErrors != 1 || c.PairsEmitted != 4 {
		t.Fatalf("unexpected counters: %+v", c)
	}
	if c.RowsWritten["csv"] != 5 {
		t.Fatalf("expected 5 csv rows, got %d", c.RowsWritten["csv"])
	}
}

func TestConfigureReportLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure(Options{Level: "Report", Format: "text"}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("report should log at info, got %s", log.GetLevel())
	}
}

func TestConfigureKeepsSettingsOnError(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	log.SetLevel(logrus.WarnLevel)
	if err := log.Configure(Options{Level: "debug", Format: "xml"}); err == nil {
		t.Fatalf("expected error for invalid format")
	}
	if log.GetLevel() != logrus.WarnLevel {
		t.Fatalf("level changed by a failed configure: %s", log.GetLevel())
	}
}

func TestWarnCountsComponentEntries(t *testing.T) {
	ResetCounters()
	t.Cleanup(ResetCounters)

	log := Logger()
	log.SetOutput(io.Discard)
	log.WithComponent("reader").Warn("skipped line")
	log.WithFields(Fields{"line": 3}).Warn("no component")
	log.WithComponent("writer").Error("failed")

	c := Snapshot()
	if c.Warns != 1 || c.Errors != 1 {
		t.Fatalf("expected 1 warn and 1 error, got %+v", c)
	}
}

func TestCallerSkipsLoggingFrames(t *testing.T) {
	if loggerPackage != "pairflow/logger" {
		t.Fatalf("unexpected logger package %q", loggerPackage)
	}
	cases := map[string]bool{
		"github.com/sirupsen/logrus.(*Entry).Log":           true,
		"pairflow/logger.(*Entry).Warn":                     true,
		"pairflow/logger.LogPerformanceEntry":               true,
		"pairflow/processor.(*Batcher).flush":               false,
		"pairflow/internal/pipeline.Run.func2":              false,
		"pairflow/internal/channel/feed.(*Feed[...]).Close": false,
	}
	for fn, want := range cases {
		if got := loggingFrame(fn); got != want {
			t.Errorf("loggingFrame(%q) = %v, want %v", fn, got, want)
		}
	}
}
