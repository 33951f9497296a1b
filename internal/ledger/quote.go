package ledger

// QuoteState holds the latest best bid/ask seen for one instrument.
type QuoteState struct {
	Bid float64
	Ask float64
}

// Update replaces the current quote. No validation, no history.
func (q *QuoteState) Update(bid, ask float64) {
	q.Bid = bid
	q.Ask = ask
}
