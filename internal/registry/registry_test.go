package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairflow/models"
)

func TestGetCreatesZeroValuedInstrument(t *testing.T) {
	r := New()
	_, ok := r.Lookup("ABC")
	require.False(t, ok)

	inst := r.Get("ABC")
	require.NotNil(t, inst)
	assert.Equal(t, 0.0, inst.Quote.Bid)
	assert.Equal(t, 0.0, inst.Quote.Ask)
	assert.Empty(t, inst.Ledger.OpenLots())
	assert.Same(t, inst, r.Get("ABC"))
	assert.Equal(t, 1, r.Len())
}

func TestQuoteAndTradeShareInstrumentState(t *testing.T) {
	r := New()
	r.ApplyQuote(models.QuoteEvent{Time: 1, Symbol: "ABC", Bid: 10.07, Ask: 10.08})
	r.ApplyTrade(models.TradeEvent{Time: 2, Symbol: "ABC", Side: models.Buy, Price: 10.06, Quantity: 10})

	lots := r.Get("ABC").Ledger.OpenLots()
	require.Len(t, lots, 1)
	assert.Equal(t, 10.07, lots[0].Bid)
	assert.Equal(t, models.Passive, lots[0].Liquidity)
}

func TestInstrumentsAreIsolated(t *testing.T) {
	r := New()
	r.ApplyTrade(models.TradeEvent{Time: 1, Symbol: "AAA", Side: models.Buy, Price: 1, Quantity: 10})
	pairs := r.ApplyTrade(models.TradeEvent{Time: 2, Symbol: "BBB", Side: models.Sell, Price: 1, Quantity: 10})
	assert.Empty(t, pairs)

	r.ApplyQuote(models.QuoteEvent{Time: 3, Symbol: "CCC", Bid: 1, Ask: 2})
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, r.Symbols())
	assert.Equal(t, 0.0, r.Get("AAA").Quote.Bid)
}
