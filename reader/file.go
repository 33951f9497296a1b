package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"pairflow/config"
	"pairflow/internal/decode"
	"pairflow/internal/metrics"
	"pairflow/internal/storage"
	"pairflow/logger"
	"pairflow/models"
)

const (
	FeedQuotes = "quotes"
	FeedTrades = "trades"
)

type Options struct {
	// Feed names the input in logs and metrics.
	Feed      string
	HasHeader bool
	// OnError is config.OnErrorSkip or config.OnErrorFail.
	OnError string
}

// OptionsFor builds reader options for one feed from the input config.
func OptionsFor(feed string, cfg config.InputConfig) Options {
	return Options{Feed: feed, HasHeader: cfg.HasHeader, OnError: cfg.OnError}
}

// DecodeFunc turns one record into an event.
type DecodeFunc[T any] func(fields []string) (T, error)

// Source is an ordered event stream that can be inspected before it is
// consumed.
type Source[T any] interface {
	Peek() (T, bool)
	Advance() error
}

// FileSource decodes a CSV stream one record ahead of its consumer. Blank
// lines are ignored. A record that fails to decode is either logged and
// skipped or returned as an error from Advance, depending on Options.OnError.
type FileSource[T any] struct {
	name   string
	opts   Options
	decode DecodeFunc[T]
	csv    *csv.Reader
	closer io.Closer

	head T
	ok   bool

	decoded int64
	skipped int64
	log     *logger.Entry
}

// NewFileSource reads the optional header and the first event from r. If
// r is an io.Closer it is closed by Close.
func NewFileSource[T any](name string, r io.Reader, opts Options, decodeFn DecodeFunc[T]) (*FileSource[T], error) {
	if opts.OnError == "" {
		opts.OnError = config.OnErrorSkip
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	s := &FileSource[T]{
		name:   name,
		opts:   opts,
		decode: decodeFn,
		csv:    cr,
		log: logger.GetLogger().WithComponent("file_source").WithFields(logger.Fields{
			"feed":   opts.Feed,
			"source": name,
		}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}

	if opts.HasHeader {
		if _, err := cr.Read(); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header of %s: %w", name, err)
		}
	}

	if err := s.next(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens a local path or an s3://bucket/key object. objects may be nil
// when only local paths are used.
func Open[T any](ctx context.Context, path string, objects storage.ObjectAPI, opts Options, decodeFn DecodeFunc[T]) (*FileSource[T], error) {
	rc, err := openPath(ctx, path, objects)
	if err != nil {
		return nil, err
	}
	src, err := NewFileSource(path, rc, opts, decodeFn)
	if err != nil {
		rc.Close()
		return nil, err
	}
	src.log.Info("input opened")
	return src, nil
}

func OpenQuotes(ctx context.Context, path string, objects storage.ObjectAPI, opts Options) (*FileSource[models.QuoteEvent], error) {
	return Open(ctx, path, objects, opts, decode.Quote)
}

func OpenTrades(ctx context.Context, path string, objects storage.ObjectAPI, opts Options) (*FileSource[models.TradeEvent], error) {
	return Open(ctx, path, objects, opts, decode.Trade)
}

func openPath(ctx context.Context, path string, objects storage.ObjectAPI) (io.ReadCloser, error) {
	if config.UsesS3(path) {
		return openObject(ctx, path, objects)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func (s *FileSource[T]) Peek() (T, bool) {
	return s.head, s.ok
}

func (s *FileSource[T]) Advance() error {
	if !s.ok {
		return nil
	}
	return s.next()
}

// Decoded is the number of events handed out so far, including the one
// currently held by Peek.
func (s *FileSource[T]) Decoded() int64 { return s.decoded }

// Skipped is the number of records dropped under the skip policy.
func (s *FileSource[T]) Skipped() int64 { return s.skipped }

func (s *FileSource[T]) Close() error {
	s.ok = false
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

func (s *FileSource[T]) next() error {
	var zero T
	for {
		rec, err := s.csv.Read()
		if errors.Is(err, io.EOF) {
			s.head, s.ok = zero, false
			s.log.WithFields(logger.Fields{
				"decoded": s.decoded,
				"skipped": s.skipped,
			}).Debug("input exhausted")
			return nil
		}

		var line int
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				s.head, s.ok = zero, false
				return fmt.Errorf("read %s: %w", s.name, err)
			}
			line = pe.StartLine
			err = fmt.Errorf("%w: %v", decode.ErrMalformedEvent, pe.Err)
		} else {
			line, _ = s.csv.FieldPos(0)
			var ev T
			if ev, err = s.decode(rec); err == nil {
				s.head, s.ok = ev, true
				s.decoded++
				s.recordRead(len(rec))
				return nil
			}
		}

		metrics.IncrementDecodeErrors(s.opts.Feed)
		logger.IncrementDecodeError()

		if s.opts.OnError == config.OnErrorFail {
			s.head, s.ok = zero, false
			return fmt.Errorf("%s line %d: %w", s.name, line, err)
		}
		s.skipped++
		s.log.WithError(err).WithFields(logger.Fields{"line": line}).Warn("skipping malformed line")
	}
}

func (s *FileSource[T]) recordRead(fields int) {
	metrics.IncrementEvents(s.opts.Feed)
	switch s.opts.Feed {
	case FeedQuotes:
		logger.IncrementQuoteRead(fields)
	case FeedTrades:
		logger.IncrementTradeRead(fields)
	}
}
