package reader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"pairflow/config"
	"pairflow/internal/decode"
	"pairflow/models"
)

func drainTrades(t *testing.T, src Source[models.TradeEvent]) []models.TradeEvent {
	t.Helper()
	var out []models.TradeEvent
	for {
		ev, ok := src.Peek()
		if !ok {
			return out
		}
		out = append(out, ev)
		if err := src.Advance(); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
}

func TestFileSourceDecodesInOrder(t *testing.T) {
	in := "1,ABC,B,10.00,100\n\n2,ABC,S,10.05,50\n"
	src, err := NewFileSource("trades", strings.NewReader(in), Options{Feed: FeedTrades}, decode.Trade)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}

	got := drainTrades(t, src)
	if len(got) != 2 || got[0].Time != 1 || got[1].Side != models.Sell {
		t.Fatalf("unexpected events: %+v", got)
	}
	if src.Decoded() != 2 {
		t.Fatalf("expected 2 decoded, got %d", src.Decoded())
	}
}

func TestFileSourceSkipsHeader(t *testing.T) {
	in := "TIME,SYMBOL,BID,ASK\n1,ABC,10.00,10.10\n"
	src, err := NewFileSource("quotes", strings.NewReader(in), Options{Feed: FeedQuotes, HasHeader: true}, decode.Quote)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	q, ok := src.Peek()
	if !ok || q.Symbol != "ABC" || q.Ask != 10.10 {
		t.Fatalf("unexpected first quote: %+v ok=%v", q, ok)
	}
}

func TestFileSourceEmptyInput(t *testing.T) {
	src, err := NewFileSource("quotes", strings.NewReader(""), Options{HasHeader: true}, decode.Quote)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	if _, ok := src.Peek(); ok {
		t.Fatalf("expected exhausted source")
	}
	if err := src.Advance(); err != nil {
		t.Fatalf("advance past end: %v", err)
	}
}

func TestFileSourceSkipPolicy(t *testing.T) {
	in := "1,ABC,B,10,100\n2,ABC,X,10,5\n3,ABC,10,11\n4,ABC,S,11,100\n"
	src, err := NewFileSource("trades", strings.NewReader(in), Options{OnError: config.OnErrorSkip}, decode.Trade)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}

	got := drainTrades(t, src)
	if len(got) != 2 || got[1].Time != 4 {
		t.Fatalf("unexpected events: %+v", got)
	}
	if src.Skipped() != 2 {
		t.Fatalf("expected 2 skipped, got %d", src.Skipped())
	}
}

func TestFileSourceFailPolicy(t *testing.T) {
	in := "1,ABC,B,10,100\n2,ABC,B,10,-5\n3,ABC,S,11,100\n"
	src, err := NewFileSource("trades.csv", strings.NewReader(in), Options{OnError: config.OnErrorFail}, decode.Trade)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}

	err = src.Advance()
	if !errors.Is(err, decode.ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error should name the line: %v", err)
	}
	if _, ok := src.Peek(); ok {
		t.Fatalf("source should stop after a fatal decode error")
	}
}

func TestFileSourceFailsOnFirstLine(t *testing.T) {
	_, err := NewFileSource("quotes", strings.NewReader("1,ABC,B,10,1\n"), Options{OnError: config.OnErrorFail}, decode.Quote)
	if !errors.Is(err, decode.ErrUnknownRecord) {
		t.Fatalf("expected ErrUnknownRecord, got %v", err)
	}
}

func TestOpenLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.csv")
	if err := os.WriteFile(path, []byte("1,ABC,10,11\n2,XYZ,20,21\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src, err := OpenQuotes(context.Background(), path, nil, Options{Feed: FeedQuotes})
	if err != nil {
		t.Fatalf("OpenQuotes: %v", err)
	}
	defer src.Close()

	if q, _ := src.Peek(); q.Symbol != "ABC" {
		t.Fatalf("unexpected first quote: %+v", q)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := OpenTrades(context.Background(), filepath.Join(t.TempDir(), "none.csv"), nil, Options{}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

type fakeObjects struct {
	bucket, key string
	body        string
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = aws.ToString(in.Bucket), aws.ToString(in.Key)
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func (f *fakeObjects) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, errors.New("not implemented")
}

func TestOpenS3Object(t *testing.T) {
	objects := &fakeObjects{body: "5,ABC,S,9.5,10\n"}
	src, err := OpenTrades(context.Background(), "s3://feeds/day1/trades.csv", objects, Options{Feed: FeedTrades})
	if err != nil {
		t.Fatalf("OpenTrades: %v", err)
	}
	if objects.bucket != "feeds" || objects.key != "day1/trades.csv" {
		t.Fatalf("unexpected object request: %s/%s", objects.bucket, objects.key)
	}
	if tr, _ := src.Peek(); tr.Time != 5 || tr.Quantity != 10 {
		t.Fatalf("unexpected trade: %+v", tr)
	}
}

func TestOpenS3WithoutClient(t *testing.T) {
	if _, err := OpenTrades(context.Background(), "s3://feeds/trades.csv", nil, Options{}); !errors.Is(err, errNoObjectStore) {
		t.Fatalf("expected errNoObjectStore, got %v", err)
	}
}
