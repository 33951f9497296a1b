package writer

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	appconfig "pairflow/config"
	"pairflow/models"
)

// Header is the fixed column order of the pair output.
var Header = []string{
	"OPEN_TIME", "CLOSE_TIME", "SYMBOL", "QUANTITY", "PNL",
	"OPEN_SIDE", "CLOSE_SIDE", "OPEN_PRICE", "CLOSE_PRICE",
	"OPEN_BID", "CLOSE_BID", "OPEN_ASK", "CLOSE_ASK",
	"OPEN_LIQUIDITY", "CLOSE_LIQUIDITY",
}

// FormatRow renders p in Header order with prices and pnl to two decimals.
func FormatRow(p models.ClosedPair) []string {
	return []string{
		strconv.FormatInt(p.OpenTime, 10),
		strconv.FormatInt(p.CloseTime, 10),
		p.Symbol,
		strconv.FormatInt(p.Quantity, 10),
		money(p.PnL),
		p.OpenSide.String(),
		p.CloseSide.String(),
		money(p.OpenPrice),
		money(p.ClosePrice),
		money(p.OpenBid),
		money(p.CloseBid),
		money(p.OpenAsk),
		money(p.CloseAsk),
		string(p.OpenLiquidity),
		string(p.CloseLiquidity),
	}
}

func money(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// CSVWriter streams pairs as CSV rows to stdout or a file. The header is
// written on construction so an empty run still yields a valid file.
type CSVWriter struct {
	out   *csv.Writer
	buf   *bufio.Writer
	file  *os.File
	stats stats
}

func NewCSVWriter(cfg appconfig.CSVConfig, stdout io.Writer) (*CSVWriter, error) {
	var dst io.Writer
	var file *os.File

	switch cfg.Output {
	case "", "stdout":
		if stdout == nil {
			stdout = os.Stdout
		}
		dst = stdout
	default:
		f, err := os.Create(cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", cfg.Output, err)
		}
		file, dst = f, f
	}

	buf := bufio.NewWriter(dst)
	w := &CSVWriter{out: csv.NewWriter(buf), buf: buf, file: file}
	if err := w.out.Write(Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

func (w *CSVWriter) Name() string { return "csv" }

func (w *CSVWriter) WriteBatch(_ context.Context, batch models.PairBatch) error {
	for _, e := range batch.Entries {
		if err := w.out.Write(FormatRow(e.ClosedPair)); err != nil {
			w.stats.errors++
			return fmt.Errorf("write row %d: %w", e.Seq, err)
		}
	}
	w.out.Flush()
	if err := w.out.Error(); err != nil {
		w.stats.errors++
		return err
	}
	w.stats.batches++
	w.stats.rows += int64(len(batch.Entries))
	return nil
}

func (w *CSVWriter) Close(context.Context) error {
	w.out.Flush()
	err := w.out.Error()
	if ferr := w.buf.Flush(); err == nil {
		err = ferr
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	w.stats.report("csv_writer")
	return err
}
