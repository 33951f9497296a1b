package models

import "time"

// ClosedPair is emitted once per (partial or full) offset of an open lot.
// Open* fields come from the lot, Close* fields from the offsetting fill.
type ClosedPair struct {
	OpenTime       int64     `json:"open_time"`
	CloseTime      int64     `json:"close_time"`
	Symbol         string    `json:"symbol"`
	Quantity       int64     `json:"quantity"`
	PnL            float64   `json:"pnl"`
	OpenSide       Side      `json:"open_side"`
	CloseSide      Side      `json:"close_side"`
	OpenPrice      float64   `json:"open_price"`
	ClosePrice     float64   `json:"close_price"`
	OpenBid        float64   `json:"open_bid"`
	CloseBid       float64   `json:"close_bid"`
	OpenAsk        float64   `json:"open_ask"`
	CloseAsk       float64   `json:"close_ask"`
	OpenLiquidity  Liquidity `json:"open_liquidity"`
	CloseLiquidity Liquidity `json:"close_liquidity"`
}

// SequencedPair carries the position of a pair in the overall output stream.
type SequencedPair struct {
	Seq int64 `json:"seq"`
	ClosedPair
}

// PairBatch groups consecutive pairs for the writers.
type PairBatch struct {
	BatchID     string          `json:"batch_id"`
	RunID       string          `json:"run_id"`
	Entries     []SequencedPair `json:"entries"`
	RecordCount int             `json:"record_count"`
	ProcessedAt time.Time       `json:"processed_at"`
}
