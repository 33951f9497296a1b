package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "pairflow/config"
	"pairflow/internal/storage"
	"pairflow/logger"
	"pairflow/models"
)

// PairRecord is the parquet row layout of a closed pair.
type PairRecord struct {
	RunID          string  `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	BatchID        string  `parquet:"name=batch_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Seq            int64   `parquet:"name=seq, type=INT64"`
	OpenTime       int64   `parquet:"name=open_time, type=INT64"`
	CloseTime      int64   `parquet:"name=close_time, type=INT64"`
	Symbol         string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Quantity       int64   `parquet:"name=quantity, type=INT64"`
	PnL            float64 `parquet:"name=pnl, type=DOUBLE"`
	OpenSide       string  `parquet:"name=open_side, type=BYTE_ARRAY, convertedtype=UTF8"`
	CloseSide      string  `parquet:"name=close_side, type=BYTE_ARRAY, convertedtype=UTF8"`
	OpenPrice      float64 `parquet:"name=open_price, type=DOUBLE"`
	ClosePrice     float64 `parquet:"name=close_price, type=DOUBLE"`
	OpenBid        float64 `parquet:"name=open_bid, type=DOUBLE"`
	CloseBid       float64 `parquet:"name=close_bid, type=DOUBLE"`
	OpenAsk        float64 `parquet:"name=open_ask, type=DOUBLE"`
	CloseAsk       float64 `parquet:"name=close_ask, type=DOUBLE"`
	OpenLiquidity  string  `parquet:"name=open_liquidity, type=BYTE_ARRAY, convertedtype=UTF8"`
	CloseLiquidity string  `parquet:"name=close_liquidity, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toRecord(batch models.PairBatch, e models.SequencedPair) PairRecord {
	return PairRecord{
		RunID:          batch.RunID,
		BatchID:        batch.BatchID,
		Seq:            e.Seq,
		OpenTime:       e.OpenTime,
		CloseTime:      e.CloseTime,
		Symbol:         e.Symbol,
		Quantity:       e.Quantity,
		PnL:            e.PnL,
		OpenSide:       e.OpenSide.String(),
		CloseSide:      e.CloseSide.String(),
		OpenPrice:      e.OpenPrice,
		ClosePrice:     e.ClosePrice,
		OpenBid:        e.OpenBid,
		CloseBid:       e.CloseBid,
		OpenAsk:        e.OpenAsk,
		CloseAsk:       e.CloseAsk,
		OpenLiquidity:  string(e.OpenLiquidity),
		CloseLiquidity: string(e.CloseLiquidity),
	}
}

// memoryFileWriter implements ParquetFile interface for in-memory writing
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{
		buffer: &bytes.Buffer{},
	}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

// Seek only reports the write position; the parquet writer never rewinds.
func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

// ParquetWriter writes one parquet file per symbol per batch, either to a
// local directory or to S3, under symbol=<symbol>/date=<date>/ partitions.
type ParquetWriter struct {
	objects     storage.ObjectAPI
	bucket      string
	directory   string
	prefix      string
	timeFormat  string
	compression string
	version     string
	log         *logger.Log
	stats       stats
}

func NewParquetWriter(cfg *appconfig.Config, objects storage.ObjectAPI) (*ParquetWriter, error) {
	w := &ParquetWriter{
		directory:   cfg.Writer.Parquet.Directory,
		prefix:      strings.Trim(cfg.Writer.Parquet.Prefix, "/"),
		timeFormat:  cfg.Writer.Partitioning.TimeFormat,
		compression: strings.ToLower(cfg.Writer.Parquet.Compression),
		version:     cfg.Pairflow.Version,
		log:         logger.GetLogger(),
	}
	if w.timeFormat == "" {
		w.timeFormat = "2006-01-02"
	}

	if cfg.Storage.S3.Enabled {
		if objects == nil {
			return nil, fmt.Errorf("s3 enabled but no client supplied")
		}
		w.objects = objects
		w.bucket = storage.NormalizeBucketName(cfg.Storage.S3.Bucket)
	} else if err := os.MkdirAll(w.directory, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", w.directory, err)
	}

	w.log.WithComponent("parquet_writer").WithFields(logger.Fields{
		"bucket":      w.bucket,
		"directory":   w.directory,
		"prefix":      w.prefix,
		"compression": w.compression,
	}).Info("parquet writer initialized")

	return w, nil
}

func (w *ParquetWriter) Name() string { return "parquet" }

func (w *ParquetWriter) WriteBatch(ctx context.Context, batch models.PairBatch) error {
	if batch.RecordCount == 0 {
		return nil
	}

	for _, symbol := range symbolsOf(batch) {
		records := make([]PairRecord, 0, len(batch.Entries))
		for _, e := range batch.Entries {
			if e.Symbol == symbol {
				records = append(records, toRecord(batch, e))
			}
		}

		key := w.generateKey(batch, symbol)
		log := w.log.WithComponent("parquet_writer").WithFields(logger.Fields{
			"batch_id": batch.BatchID,
			"symbol":   symbol,
			"key":      key,
			"records":  len(records),
		})

		var size int64
		var err error
		if w.objects != nil {
			size, err = w.upload(ctx, key, records)
		} else {
			size, err = w.writeLocal(filepath.Join(w.directory, filepath.FromSlash(key)), records)
		}
		if err != nil {
			w.stats.errors++
			log.WithError(err).Error("failed to write parquet file")
			return err
		}

		w.stats.bytes += size
		log.WithFields(logger.Fields{"file_size": size}).Debug("parquet file written")
	}

	w.stats.batches++
	w.stats.rows += int64(batch.RecordCount)
	return nil
}

func (w *ParquetWriter) Close(context.Context) error {
	w.stats.report("parquet_writer")
	return nil
}

func symbolsOf(batch models.PairBatch) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, e := range batch.Entries {
		if _, ok := seen[e.Symbol]; !ok {
			seen[e.Symbol] = struct{}{}
			out = append(out, e.Symbol)
		}
	}
	sort.Strings(out)
	return out
}

// generateKey builds <prefix>/symbol=<symbol>/date=<date>/pairs_<run>_<batch>.parquet.
func (w *ParquetWriter) generateKey(batch models.PairBatch, symbol string) string {
	var parts []string
	if w.prefix != "" {
		parts = append(parts, w.prefix)
	}
	parts = append(parts,
		fmt.Sprintf("symbol=%s", symbol),
		fmt.Sprintf("date=%s", batch.ProcessedAt.UTC().Format(w.timeFormat)),
		fmt.Sprintf("pairs_%s_%s.parquet", batch.RunID, batch.BatchID),
	)
	return path.Join(parts...)
}

func (w *ParquetWriter) codec() parquet.CompressionCodec {
	switch w.compression {
	case "snappy", "":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	case "zstd":
		return parquet.CompressionCodec_ZSTD
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

func (w *ParquetWriter) encode(pf source.ParquetFile, records []PairRecord) error {
	pw, err := pqwriter.NewParquetWriter(pf, new(PairRecord), 1)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = w.codec()

	for _, r := range records {
		if err := pw.Write(r); err != nil {
			pw.WriteStop()
			return fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return nil
}

func (w *ParquetWriter) writeLocal(name string, records []PairRecord) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return 0, fmt.Errorf("create partition directory: %w", err)
	}

	fw, err := local.NewLocalFileWriter(name)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", name, err)
	}
	if err := w.encode(fw, records); err != nil {
		fw.Close()
		return 0, err
	}
	if err := fw.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", name, err)
	}

	info, err := os.Stat(name)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (w *ParquetWriter) upload(ctx context.Context, key string, records []PairRecord) (int64, error) {
	fw := newMemoryFileWriter()
	if err := w.encode(fw, records); err != nil {
		return 0, err
	}
	data := fw.Bytes()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":     "parquet",
			"compression":      w.compression,
			"pairflow-version": w.version,
		},
	}

	if _, err := w.objects.PutObject(context.WithoutCancel(ctx), input); err != nil {
		return 0, fmt.Errorf("failed to upload to S3 bucket %s: %w", w.bucket, err)
	}
	return int64(len(data)), nil
}
