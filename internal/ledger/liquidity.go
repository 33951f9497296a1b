package ledger

import "pairflow/models"

// Classify decides whether a fill rested in the book or crossed the spread,
// using the quote in effect before the fill is applied. Passive is checked
// first, so a locked quote (bid == ask) at the fill price reads as passive.
func Classify(side models.Side, price, bid, ask float64) models.Liquidity {
	switch {
	case (side == models.Buy && price <= bid) || (side == models.Sell && price >= ask):
		return models.Passive
	case (side == models.Sell && price <= bid) || (side == models.Buy && price >= ask):
		return models.Aggressive
	default:
		return models.NotApplicable
	}
}
