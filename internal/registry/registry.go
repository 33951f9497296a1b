// Package registry maps instrument symbols to their quote state and ledger.
package registry

import (
	"sort"

	"pairflow/internal/ledger"
	"pairflow/models"
)

// Instrument bundles the state owned for one symbol.
type Instrument struct {
	Symbol string
	Quote  *ledger.QuoteState
	Ledger *ledger.Ledger
}

// Registry lazily creates an Instrument the first time a symbol is seen on
// either feed. It is not safe for concurrent use.
type Registry struct {
	instruments map[string]*Instrument
}

func New() *Registry {
	return &Registry{instruments: make(map[string]*Instrument)}
}

// Get returns the instrument for symbol, creating a zero-valued one if needed.
func (r *Registry) Get(symbol string) *Instrument {
	if inst, ok := r.instruments[symbol]; ok {
		return inst
	}
	quote := &ledger.QuoteState{}
	inst := &Instrument{
		Symbol: symbol,
		Quote:  quote,
		Ledger: ledger.New(symbol, quote),
	}
	r.instruments[symbol] = inst
	return inst
}

// Lookup returns the instrument without creating it.
func (r *Registry) Lookup(symbol string) (*Instrument, bool) {
	inst, ok := r.instruments[symbol]
	return inst, ok
}

// ApplyQuote routes a quote update to its instrument.
func (r *Registry) ApplyQuote(q models.QuoteEvent) {
	r.Get(q.Symbol).Quote.Update(q.Bid, q.Ask)
}

// ApplyTrade routes a fill to its instrument's ledger.
func (r *Registry) ApplyTrade(t models.TradeEvent) []models.ClosedPair {
	return r.Get(t.Symbol).Ledger.ApplyFill(t.Time, t.Side, t.Price, t.Quantity)
}

func (r *Registry) Len() int { return len(r.instruments) }

// Symbols returns every known symbol in lexical order.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.instruments))
	for s := range r.instruments {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
