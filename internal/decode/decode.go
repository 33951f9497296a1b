// Package decode turns raw feed records into typed events. A record that
// fails to decode is reported with an error and never yields a zero event.
package decode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pairflow/models"
)

var (
	// ErrUnknownRecord is returned when a record has neither the quote nor
	// the trade field count, or has the other feed's field count.
	ErrUnknownRecord = errors.New("unknown record type")
	// ErrMalformedEvent is returned when a record has the right shape but a
	// field cannot be parsed.
	ErrMalformedEvent = errors.New("malformed event")
)

const (
	QuoteFields = 4
	TradeFields = 5
)

// Kind is the record type inferred from the field count.
type Kind int

const (
	KindUnknown Kind = iota
	KindQuote
	KindTrade
)

func (k Kind) String() string {
	switch k {
	case KindQuote:
		return "quote"
	case KindTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// KindOf classifies a record by its number of fields.
func KindOf(fields []string) Kind {
	switch len(fields) {
	case QuoteFields:
		return KindQuote
	case TradeFields:
		return KindTrade
	default:
		return KindUnknown
	}
}

// Quote decodes time,symbol,bid,ask.
func Quote(fields []string) (models.QuoteEvent, error) {
	if k := KindOf(fields); k != KindQuote {
		return models.QuoteEvent{}, fmt.Errorf("%w: expected quote with %d fields, got %d (%s)", ErrUnknownRecord, QuoteFields, len(fields), k)
	}

	t, err := parseTime(fields[0])
	if err != nil {
		return models.QuoteEvent{}, err
	}
	symbol, err := parseSymbol(fields[1])
	if err != nil {
		return models.QuoteEvent{}, err
	}
	bid, err := parsePrice("bid", fields[2])
	if err != nil {
		return models.QuoteEvent{}, err
	}
	ask, err := parsePrice("ask", fields[3])
	if err != nil {
		return models.QuoteEvent{}, err
	}

	return models.QuoteEvent{Time: t, Symbol: symbol, Bid: bid, Ask: ask}, nil
}

// Trade decodes time,symbol,side,price,quantity.
func Trade(fields []string) (models.TradeEvent, error) {
	if k := KindOf(fields); k != KindTrade {
		return models.TradeEvent{}, fmt.Errorf("%w: expected trade with %d fields, got %d (%s)", ErrUnknownRecord, TradeFields, len(fields), k)
	}

	t, err := parseTime(fields[0])
	if err != nil {
		return models.TradeEvent{}, err
	}
	symbol, err := parseSymbol(fields[1])
	if err != nil {
		return models.TradeEvent{}, err
	}
	side, err := models.ParseSide(fields[2])
	if err != nil {
		return models.TradeEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	price, err := parsePrice("price", fields[3])
	if err != nil {
		return models.TradeEvent{}, err
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
	if err != nil {
		return models.TradeEvent{}, fmt.Errorf("%w: quantity %q: %v", ErrMalformedEvent, fields[4], err)
	}
	if qty < 0 {
		return models.TradeEvent{}, fmt.Errorf("%w: negative quantity %d", ErrMalformedEvent, qty)
	}

	return models.TradeEvent{Time: t, Symbol: symbol, Side: side, Price: price, Quantity: qty}, nil
}

func parseTime(raw string) (int64, error) {
	t, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q: %v", ErrMalformedEvent, raw, err)
	}
	return t, nil
}

// parseSymbol keeps the field as written; " ABC" and "ABC" are different
// instruments.
func parseSymbol(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty symbol", ErrMalformedEvent)
	}
	return raw, nil
}

func parsePrice(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrMalformedEvent, field, raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s %q is not finite", ErrMalformedEvent, field, raw)
	}
	return v, nil
}
