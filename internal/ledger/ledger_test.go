package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairflow/models"
)

func quantities(pairs []models.ClosedPair) []int64 {
	out := make([]int64, len(pairs))
	for i, p := range pairs {
		out[i] = p.Quantity
	}
	return out
}

func TestApplyFillZeroQuantityIsNoop(t *testing.T) {
	q := &QuoteState{}
	q.Update(10.06, 10.07)
	l := New("ABC", q)

	require.Empty(t, l.ApplyFill(2, models.Buy, 10.06, 0))
	require.Empty(t, l.OpenLots())

	l.ApplyFill(3, models.Buy, 10.06, 100)
	before := l.OpenLots()
	require.Empty(t, l.ApplyFill(4, models.Sell, 10.10, 0))
	assert.Equal(t, before, l.OpenLots())
}

func TestApplyFillExtendsSameSide(t *testing.T) {
	l := New("ABC", &QuoteState{Bid: 9.99, Ask: 10.01})
	assert.Empty(t, l.ApplyFill(1, models.Sell, 10.00, 10))
	assert.Empty(t, l.ApplyFill(2, models.Sell, 10.02, 20))

	lots := l.OpenLots()
	require.Len(t, lots, 2)
	assert.Equal(t, int64(1), lots[0].Time)
	assert.Equal(t, int64(2), lots[1].Time)
	assert.Equal(t, int64(-30), l.Position())
}

func TestApplyFillFIFOOrder(t *testing.T) {
	l := New("XYZ", &QuoteState{})
	for i := int64(1); i <= 5; i++ {
		l.ApplyFill(i, models.Buy, 100+float64(i), 10*i)
	}

	pairs := l.ApplyFill(10, models.Sell, 110, 35)
	require.Len(t, pairs, 3)
	assert.Equal(t, []int64{10, 20, 5}, quantities(pairs))
	assert.Equal(t, []int64{1, 2, 3}, []int64{pairs[0].OpenTime, pairs[1].OpenTime, pairs[2].OpenTime})

	pairs = l.ApplyFill(11, models.Sell, 110, 200)
	assert.Equal(t, []int64{25, 40, 50}, quantities(pairs))
	assert.Equal(t, int64(3), pairs[0].OpenTime)

	// 150 opened, 150 matched; the 85 left over reverses into a short.
	lots := l.OpenLots()
	require.Len(t, lots, 1)
	assert.Equal(t, models.Sell, lots[0].Side)
	assert.Equal(t, int64(85), lots[0].Quantity)
	assert.Equal(t, int64(11), lots[0].Time)
}

func TestApplyFillConservation(t *testing.T) {
	l := New("XYZ", &QuoteState{Bid: 1, Ask: 2})
	fills := []struct {
		side models.Side
		qty  int64
	}{
		{models.Buy, 100}, {models.Buy, 50}, {models.Sell, 30}, {models.Sell, 200},
		{models.Sell, 10}, {models.Buy, 40}, {models.Buy, 300}, {models.Sell, 1},
	}

	opened := map[models.Side]int64{}
	matched := map[models.Side]int64{}
	for i, f := range fills {
		var front models.Side
		if lots := l.OpenLots(); len(lots) > 0 {
			front = lots[0].Side
		}
		pairs := l.ApplyFill(int64(i), f.side, 1.5, f.qty)
		var closed int64
		for _, p := range pairs {
			require.Equal(t, front, p.OpenSide)
			matched[p.OpenSide] += p.Quantity
			closed += p.Quantity
		}
		opened[f.side] += f.qty - closed

		var remaining = map[models.Side]int64{}
		for _, lot := range l.OpenLots() {
			remaining[lot.Side] += lot.Quantity
		}
		for _, side := range []models.Side{models.Buy, models.Sell} {
			assert.Equal(t, opened[side], remaining[side]+matched[side], "side %s after fill %d", side, i)
		}
	}
}

func TestApplyFillSingleSideInvariant(t *testing.T) {
	l := New("XYZ", &QuoteState{})
	seq := []struct {
		side models.Side
		qty  int64
	}{
		{models.Buy, 5}, {models.Sell, 7}, {models.Sell, 3}, {models.Buy, 20}, {models.Buy, 1}, {models.Sell, 16},
	}
	for i, f := range seq {
		l.ApplyFill(int64(i), f.side, 1, f.qty)
		lots := l.OpenLots()
		for _, lot := range lots {
			require.Equal(t, lots[0].Side, lot.Side)
			require.Positive(t, lot.Quantity)
		}
	}
	assert.Empty(t, l.OpenLots())
	assert.Zero(t, l.Position())
}

func TestApplyFillPnLSignConvention(t *testing.T) {
	long := New("L", &QuoteState{})
	long.ApplyFill(1, models.Buy, 10.00, 100)
	pairs := long.ApplyFill(2, models.Sell, 10.25, 100)
	require.Len(t, pairs, 1)
	assert.Equal(t, 25.0, pairs[0].PnL)

	short := New("S", &QuoteState{})
	short.ApplyFill(1, models.Sell, 10.00, 100)
	pairs = short.ApplyFill(2, models.Buy, 10.25, 100)
	require.Len(t, pairs, 1)
	assert.Equal(t, -25.0, pairs[0].PnL)

	flat := New("F", &QuoteState{})
	flat.ApplyFill(1, models.Sell, 10.06, 150)
	pairs = flat.ApplyFill(2, models.Buy, 10.06, 150)
	require.Len(t, pairs, 1)
	assert.False(t, math.Signbit(pairs[0].PnL), "pnl must not be negative zero")
}

func TestRealizedPnLRoundsPriceDifference(t *testing.T) {
	// 10.07 - 10.06 is 0.010000000000000009 in binary floating point.
	assert.Equal(t, 3.0, RealizedPnL(models.Buy, 10.06, 10.07, 300))
	assert.Equal(t, -3.0, RealizedPnL(models.Sell, 10.06, 10.07, 300))
	assert.Equal(t, 0.0, RealizedPnL(models.Buy, 10.061, 10.062, 1000))

	// Sub-cent prices round the float difference, not the decimal one.
	// 10.065-10.06 is 0.004999... and 1.015-1.0 is 0.014999...
	assert.Equal(t, 0.0, RealizedPnL(models.Buy, 10.06, 10.065, 100))
	assert.Equal(t, 1.0, RealizedPnL(models.Buy, 1.0, 1.015, 100))
	assert.Equal(t, -1.0, RealizedPnL(models.Sell, 1.0, 1.015, 100))

	// 0.125 is exact in binary, so the tie goes to the even cent.
	assert.Equal(t, 12.0, RealizedPnL(models.Buy, 0, 0.125, 100))
	assert.Equal(t, 38.0, RealizedPnL(models.Buy, 0, 0.375, 100))
}

func TestApplyFillFreezesQuoteAtEntry(t *testing.T) {
	q := &QuoteState{}
	q.Update(10.07, 10.08)
	l := New("ABC", q)
	l.ApplyFill(3, models.Buy, 10.06, 200)

	q.Update(1, 2)
	pairs := l.ApplyFill(4, models.Sell, 1.5, 200)
	require.Len(t, pairs, 1)
	p := pairs[0]
	assert.Equal(t, 10.07, p.OpenBid)
	assert.Equal(t, 10.08, p.OpenAsk)
	assert.Equal(t, models.Passive, p.OpenLiquidity)
	assert.Equal(t, 1.0, p.CloseBid)
	assert.Equal(t, 2.0, p.CloseAsk)
	assert.Equal(t, models.NotApplicable, p.CloseLiquidity)
}

// Replays the carry-over scenario: two opening buys, then sells and a buy that
// each consume the queue front to back and reverse the position twice.
func TestApplyFillCarryOverScenario(t *testing.T) {
	q := &QuoteState{}
	l := New("ABC", q)
	var pairs []models.ClosedPair

	q.Update(10.06, 10.07)
	pairs = append(pairs, l.ApplyFill(2, models.Buy, 10.06, 0)...)
	require.Empty(t, l.OpenLots())

	q.Update(10.07, 10.08)
	pairs = append(pairs, l.ApplyFill(3, models.Buy, 10.06, 200)...)
	q.Update(10.05, 10.06)
	pairs = append(pairs, l.ApplyFill(4, models.Buy, 10.06, 300)...)

	lots := l.OpenLots()
	require.Len(t, lots, 2)
	assert.Equal(t, models.Passive, lots[0].Liquidity)
	assert.Equal(t, models.Aggressive, lots[1].Liquidity)

	pairs = append(pairs, l.ApplyFill(5, models.Sell, 10.06, 300)...)
	pairs = append(pairs, l.ApplyFill(6, models.Sell, 10.06, 350)...)

	lots = l.OpenLots()
	require.Len(t, lots, 1)
	assert.Equal(t, OpenLot{Time: 6, Price: 10.06, Quantity: 150, Side: models.Sell, Bid: 10.05, Ask: 10.06, Liquidity: models.Passive}, lots[0])

	pairs = append(pairs, l.ApplyFill(7, models.Buy, 10.06, 400)...)

	require.Len(t, pairs, 4)
	assert.Equal(t, []int64{200, 100, 200, 150}, quantities(pairs))
	assert.Equal(t, []int64{3, 4, 4, 6}, []int64{pairs[0].OpenTime, pairs[1].OpenTime, pairs[2].OpenTime, pairs[3].OpenTime})
	assert.Equal(t, []int64{5, 5, 6, 7}, []int64{pairs[0].CloseTime, pairs[1].CloseTime, pairs[2].CloseTime, pairs[3].CloseTime})

	assert.Equal(t, models.ClosedPair{
		OpenTime: 6, CloseTime: 7, Symbol: "ABC", Quantity: 150, PnL: 0,
		OpenSide: models.Sell, CloseSide: models.Buy,
		OpenPrice: 10.06, ClosePrice: 10.06,
		OpenBid: 10.05, CloseBid: 10.05, OpenAsk: 10.06, CloseAsk: 10.06,
		OpenLiquidity: models.Passive, CloseLiquidity: models.Aggressive,
	}, pairs[3])
	for _, p := range pairs {
		assert.False(t, math.Signbit(p.PnL))
	}

	lots = l.OpenLots()
	require.Len(t, lots, 1)
	assert.Equal(t, models.Buy, lots[0].Side)
	assert.Equal(t, int64(250), lots[0].Quantity)
	assert.Equal(t, int64(250), l.Position())
}
