package writer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	appconfig "pairflow/config"
	"pairflow/logger"
	"pairflow/models"
)

var pairColumns = []string{
	"run_id", "batch_id", "seq",
	"open_time", "close_time", "symbol", "quantity", "pnl",
	"open_side", "close_side", "open_price", "close_price",
	"open_bid", "close_bid", "open_ask", "close_ask",
	"open_liquidity", "close_liquidity",
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id          TEXT             NOT NULL,
	batch_id        TEXT             NOT NULL,
	seq             BIGINT           NOT NULL,
	open_time       BIGINT           NOT NULL,
	close_time      BIGINT           NOT NULL,
	symbol          TEXT             NOT NULL,
	quantity        BIGINT           NOT NULL,
	pnl             DOUBLE PRECISION NOT NULL,
	open_side       CHAR(1)          NOT NULL,
	close_side      CHAR(1)          NOT NULL,
	open_price      DOUBLE PRECISION NOT NULL,
	close_price     DOUBLE PRECISION NOT NULL,
	open_bid        DOUBLE PRECISION NOT NULL,
	close_bid       DOUBLE PRECISION NOT NULL,
	open_ask        DOUBLE PRECISION NOT NULL,
	close_ask       DOUBLE PRECISION NOT NULL,
	open_liquidity  TEXT             NOT NULL,
	close_liquidity TEXT             NOT NULL,
	PRIMARY KEY (run_id, seq)
)`, pq.QuoteIdentifier(table))
}

func pairValues(batch models.PairBatch, e models.SequencedPair) []any {
	return []any{
		batch.RunID, batch.BatchID, e.Seq,
		e.OpenTime, e.CloseTime, e.Symbol, e.Quantity, e.PnL,
		e.OpenSide.String(), e.CloseSide.String(), e.OpenPrice, e.ClosePrice,
		e.OpenBid, e.CloseBid, e.OpenAsk, e.CloseAsk,
		string(e.OpenLiquidity), string(e.CloseLiquidity),
	}
}

// PostgresWriter bulk loads each batch with COPY inside one transaction.
type PostgresWriter struct {
	db    *sql.DB
	table string
	log   *logger.Log
	stats stats
}

func NewPostgresWriter(ctx context.Context, cfg appconfig.PostgresConfig) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", cfg.ConnStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	w := &PostgresWriter{db: db, table: cfg.Table, log: logger.GetLogger()}
	if err := w.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	w.log.WithComponent("postgres_writer").WithFields(logger.Fields{"table": cfg.Table}).Info("postgres writer initialized")
	return w, nil
}

func (w *PostgresWriter) ensureSchema(ctx context.Context) error {
	if _, err := w.db.ExecContext(ctx, createTableSQL(w.table)); err != nil {
		return fmt.Errorf("create table %s: %w", w.table, err)
	}
	return nil
}

func (w *PostgresWriter) Name() string { return "postgres" }

// executeWithTransaction commits when fn succeeds and rolls back otherwise.
func (w *PostgresWriter) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}
	return nil
}

func (w *PostgresWriter) WriteBatch(ctx context.Context, batch models.PairBatch) error {
	if len(batch.Entries) == 0 {
		return nil
	}

	err := w.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn(w.table, pairColumns...))
		if err != nil {
			return fmt.Errorf("failed to prepare copy: %w", err)
		}
		defer stmt.Close()

		for _, e := range batch.Entries {
			if _, err := stmt.ExecContext(ctx, pairValues(batch, e)...); err != nil {
				return fmt.Errorf("failed to copy pair %d: %w", e.Seq, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to flush copy: %w", err)
		}
		return nil
	})
	if err != nil {
		w.stats.errors++
		w.log.WithComponent("postgres_writer").WithError(err).WithFields(logger.Fields{
			"batch_id": batch.BatchID,
		}).Error("failed to store batch")
		return err
	}

	w.stats.batches++
	w.stats.rows += int64(len(batch.Entries))
	return nil
}

func (w *PostgresWriter) Close(context.Context) error {
	w.stats.report("postgres_writer")
	return w.db.Close()
}
