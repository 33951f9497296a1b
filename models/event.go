package models

import "fmt"

// Side is the direction of a fill as it appears on the trade feed.
type Side byte

const (
	Buy  Side = 'B'
	Sell Side = 'S'
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "B"
	case Sell:
		return "S"
	default:
		return fmt.Sprintf("Side(%d)", byte(s))
	}
}

// ParseSide accepts the single letter codes used on the trade feed.
func ParseSide(raw string) (Side, error) {
	switch raw {
	case "B":
		return Buy, nil
	case "S":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", raw)
	}
}

// MarshalText keeps JSON payloads readable ("B"/"S" rather than a byte).
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Liquidity classifies a fill against the quote prevailing when it arrived.
type Liquidity string

const (
	Passive       Liquidity = "P"
	Aggressive    Liquidity = "A"
	NotApplicable Liquidity = "n/a"
)

// QuoteEvent is a best bid/ask update for one instrument.
type QuoteEvent struct {
	Time   int64   `json:"time"`
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// TradeEvent is a single fill for one instrument.
type TradeEvent struct {
	Time     int64   `json:"time"`
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}
