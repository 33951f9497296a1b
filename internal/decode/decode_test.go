package decode

import (
	"errors"
	"strings"
	"testing"

	"pairflow/models"
)

func splitLine(line string) []string {
	return strings.Split(strings.TrimRight(line, "\r\n"), ",")
}

func TestQuote(t *testing.T) {
	q, err := Quote(splitLine("2,ABC,10.05,10.10\n"))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	want := models.QuoteEvent{Time: 2, Symbol: "ABC", Bid: 10.05, Ask: 10.10}
	if q != want {
		t.Fatalf("got %+v, want %+v", q, want)
	}
}

func TestTrade(t *testing.T) {
	tr, err := Trade(splitLine("3,ABC,S,10.00,150\r\n"))
	if err != nil {
		t.Fatalf("Trade: %v", err)
	}
	want := models.TradeEvent{Time: 3, Symbol: "ABC", Side: models.Sell, Price: 10.00, Quantity: 150}
	if tr != want {
		t.Fatalf("got %+v, want %+v", tr, want)
	}
}

func TestZeroQuantityIsValid(t *testing.T) {
	tr, err := Trade(splitLine("1,ABC,B,10,0"))
	if err != nil {
		t.Fatalf("Trade: %v", err)
	}
	if tr.Quantity != 0 {
		t.Fatalf("expected zero quantity, got %d", tr.Quantity)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		trade bool
		want  error
	}{
		{"quote on trade feed", "1,ABC,10,11", true, ErrUnknownRecord},
		{"trade on quote feed", "1,ABC,B,10,5", false, ErrUnknownRecord},
		{"too few fields", "1,ABC", true, ErrUnknownRecord},
		{"too many fields", "1,ABC,B,10,5,6", true, ErrUnknownRecord},
		{"bad time", "x,ABC,B,10,5", true, ErrMalformedEvent},
		{"fractional time", "1.5,ABC,10,11", false, ErrMalformedEvent},
		{"bad side", "1,ABC,X,10,5", true, ErrMalformedEvent},
		{"lowercase side", "1,ABC,b,10,5", true, ErrMalformedEvent},
		{"bad price", "1,ABC,B,ten,5", true, ErrMalformedEvent},
		{"fractional quantity", "1,ABC,B,10,5.5", true, ErrMalformedEvent},
		{"negative quantity", "1,ABC,B,10,-5", true, ErrMalformedEvent},
		{"empty symbol", "1,,10,11", false, ErrMalformedEvent},
		{"padded side", "1,ABC, B,10,5", true, ErrMalformedEvent},
		{"nan price", "1,ABC,B,NaN,5", true, ErrMalformedEvent},
		{"infinite bid", "1,ABC,+Inf,11", false, ErrMalformedEvent},
		{"bad ask", "1,ABC,10,", false, ErrMalformedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.trade {
				var ev models.TradeEvent
				ev, err = Trade(splitLine(tt.line))
				if ev != (models.TradeEvent{}) {
					t.Fatalf("failed decode returned a non-zero event: %+v", ev)
				}
			} else {
				_, err = Quote(splitLine(tt.line))
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(splitLine("1,A,1,2")) != KindQuote {
		t.Fatal("expected quote")
	}
	if KindOf(splitLine("1,A,B,1,2")) != KindTrade {
		t.Fatal("expected trade")
	}
	if KindOf(splitLine("")) != KindUnknown {
		t.Fatal("expected unknown")
	}
}

func TestSymbolIsNotTrimmed(t *testing.T) {
	q, err := Quote(splitLine("1, ABC,10,11"))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Symbol != " ABC" {
		t.Fatalf("expected symbol %q, got %q", " ABC", q.Symbol)
	}

	q, err = Quote(splitLine("1, ,10,11"))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Symbol != " " {
		t.Fatalf("expected blank symbol kept, got %q", q.Symbol)
	}
}

func TestNumericFieldsTolerateSpaces(t *testing.T) {
	tr, err := Trade(splitLine(" 3,ABC,S, 10.00 , 150"))
	if err != nil {
		t.Fatalf("Trade: %v", err)
	}
	want := models.TradeEvent{Time: 3, Symbol: "ABC", Side: models.Sell, Price: 10.00, Quantity: 150}
	if tr != want {
		t.Fatalf("got %+v, want %+v", tr, want)
	}
}
