// Package ledger implements the per-instrument FIFO position matcher.
//
// A Ledger keeps open lots that all share one side. A fill on that side (or on
// an empty ledger) appends a lot; a fill on the other side consumes lots from
// the front, emitting one ClosedPair per lot touched, and any leftover opens a
// fresh lot on the fill's side.
package ledger

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"pairflow/models"
)

// Ledger is not safe for concurrent use; each instrument is owned by one goroutine.
type Ledger struct {
	symbol string
	quote  *QuoteState
	lots   lotQueue
}

// New returns an empty ledger that classifies fills against quote.
func New(symbol string, quote *QuoteState) *Ledger {
	if quote == nil {
		quote = &QuoteState{}
	}
	return &Ledger{symbol: symbol, quote: quote}
}

func (l *Ledger) Symbol() string { return l.symbol }

// ApplyFill settles one fill and returns the pairs it closed, oldest lot first.
// A zero quantity is a no-op.
func (l *Ledger) ApplyFill(time int64, side models.Side, price float64, quantity int64) []models.ClosedPair {
	if quantity <= 0 {
		return nil
	}

	bid, ask := l.quote.Bid, l.quote.Ask
	fill := OpenLot{
		Time:      time,
		Price:     price,
		Quantity:  quantity,
		Side:      side,
		Bid:       bid,
		Ask:       ask,
		Liquidity: Classify(side, price, bid, ask),
	}

	if l.lots.Len() == 0 || l.lots.Front().Side == side {
		l.lots.PushBack(fill)
		return nil
	}

	var pairs []models.ClosedPair
	remaining := quantity
	for remaining > 0 && l.lots.Len() > 0 {
		lot := l.lots.Front()
		matched := min(lot.Quantity, remaining)
		pairs = append(pairs, l.pair(*lot, fill, matched))

		lot.Quantity -= matched
		if lot.Quantity == 0 {
			l.lots.PopFront()
		}
		remaining -= matched
	}

	// The fill over-closed the position: the rest opens on the fill's side
	// with the fill's own quote snapshot and liquidity.
	if remaining > 0 {
		fill.Quantity = remaining
		l.lots.PushBack(fill)
	}
	return pairs
}

func (l *Ledger) pair(open, closing OpenLot, quantity int64) models.ClosedPair {
	return models.ClosedPair{
		OpenTime:       open.Time,
		CloseTime:      closing.Time,
		Symbol:         l.symbol,
		Quantity:       quantity,
		PnL:            RealizedPnL(open.Side, open.Price, closing.Price, quantity),
		OpenSide:       open.Side,
		CloseSide:      closing.Side,
		OpenPrice:      open.Price,
		ClosePrice:     closing.Price,
		OpenBid:        open.Bid,
		CloseBid:       closing.Bid,
		OpenAsk:        open.Ask,
		CloseAsk:       closing.Ask,
		OpenLiquidity:  open.Liquidity,
		CloseLiquidity: closing.Liquidity,
	}
}

// RealizedPnL is quantity * round(close-open, 2), signed against the side that
// opened the position. The difference is taken in float64 and rounded from its
// exact binary value, ties to even, so 10.065-10.06 (0.00499...) rounds to 0.
// Never returns negative zero.
func RealizedPnL(openSide models.Side, openPrice, closePrice float64, quantity int64) float64 {
	pnl := roundCents(closePrice - openPrice).Mul(decimal.NewFromInt(quantity))
	if openSide == models.Sell {
		pnl = pnl.Neg()
	}
	v := pnl.InexactFloat64()
	if v == 0 {
		return 0
	}
	return v
}

// roundCents rounds v to two decimals. A float64 m*2^e has at most 53-e
// fractional decimal digits, so formatting with that many is exact.
func roundCents(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	_, exp := math.Frexp(v)
	exact, err := decimal.NewFromString(strconv.FormatFloat(v, 'f', max(0, 53-exp), 64))
	if err != nil {
		return decimal.NewFromFloat(v).RoundBank(2)
	}
	return exact.RoundBank(2)
}

// OpenLots returns a copy of the open lots, oldest first.
func (l *Ledger) OpenLots() []OpenLot {
	return l.lots.Snapshot()
}

// Position is the signed open quantity: positive long, negative short.
func (l *Ledger) Position() int64 {
	var net int64
	for _, lot := range l.lots.Snapshot() {
		if lot.Side == models.Sell {
			net -= lot.Quantity
		} else {
			net += lot.Quantity
		}
	}
	return net
}
