package statement

import (
	"strings"
	"testing"
)

const verticalPositionsText = `Activity Statement
Account: U7654321
July 1, 2025 - July 31, 2025
Base Currency: USD
Open Positions
Symbol
Quantity
Mult
Cost Price
Cost Basis
Close Price
Value
Unrealized P/L
Code
IWDA
100
1
76.61
7661.03
105.5250
10552.50
2891.47
SY
VWRL
50
1
90.00
4500.00
100.00
5000.00
500.00
SY
Notes
`

func TestParsePDFText_VerticalLayout(t *testing.T) {
	svc := newTestService()

	result := svc.ParsePDFText(verticalPositionsText)

	if len(result.Holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %d: %+v", len(result.Holdings), result.Holdings)
	}

	iwda := result.Holdings[0]
	if iwda.Symbol != "IWDA" {
		t.Errorf("expected symbol IWDA, got %q", iwda.Symbol)
	}
	if iwda.Quantity != 100 {
		t.Errorf("expected quantity 100, got %v", iwda.Quantity)
	}
	if iwda.Price != 105.5250 {
		t.Errorf("expected price 105.5250, got %v", iwda.Price)
	}
	if iwda.Value != 10552.50 {
		t.Errorf("expected value 10552.50, got %v", iwda.Value)
	}

	if result.Holdings[1].Symbol != "VWRL" {
		t.Errorf("expected second symbol VWRL, got %q", result.Holdings[1].Symbol)
	}
}

func TestParsePDFText_Metadata(t *testing.T) {
	svc := newTestService()

	result := svc.ParsePDFText(`Account: U7654321
January 1, 2025 - January 31, 2025
Base Currency: EUR
Ending Cash: 1,234.56
`)

	if result.AccountID != "U7654321" {
		t.Errorf("expected account U7654321, got %q", result.AccountID)
	}
	if got := result.StatementDate.Format("2006-01-02"); got != "2025-01-31" {
		t.Errorf("expected date 2025-01-31, got %s", got)
	}
	if result.BaseCurrency != "EUR" {
		t.Errorf("expected base currency EUR, got %q", result.BaseCurrency)
	}
	if result.Cash != 1234.56 {
		t.Errorf("expected cash 1234.56, got %v", result.Cash)
	}
}

// A corrupted row loses at most itself: the cursor advances a full row and
// resynchronizes on the next symbol anchor.
func TestParsePDFText_CorruptedRowResync(t *testing.T) {
	svc := newTestService()

	corrupted := strings.Replace(verticalPositionsText,
		"VWRL\n",
		"BROKN\n100\n1\nxx\n7661.03\n105.52\n10552.50\n2891.47\nSY\nVWRL\n", 1)

	result := svc.ParsePDFText(corrupted)

	if len(result.Holdings) != 2 {
		t.Fatalf("expected 2 holdings after skipping corrupted row, got %d: %+v",
			len(result.Holdings), result.Holdings)
	}
	if result.Holdings[0].Symbol != "IWDA" || result.Holdings[1].Symbol != "VWRL" {
		t.Errorf("expected IWDA and VWRL to survive, got %+v", result.Holdings)
	}
}

func TestParsePDFText_HorizontalLayout(t *testing.T) {
	svc := newTestService()

	result := svc.ParsePDFText(`Open Positions
Symbol Quantity Mult Cost Price Cost Basis Close Price Value Unrealized P/L
VTI 100 1 200.00 20000.00 220.00 22000.00 2000.00
BND 50 1 70.00 3500.00 72.50 3625.00 125.00
Notes
`)

	if len(result.Holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %d: %+v", len(result.Holdings), result.Holdings)
	}
	if result.Holdings[0].Symbol != "VTI" || result.Holdings[0].Price != 220.00 {
		t.Errorf("unexpected first holding: %+v", result.Holdings[0])
	}
	if result.Holdings[0].Value != 22000.00 {
		t.Errorf("expected value 22000, got %v", result.Holdings[0].Value)
	}
}

func TestParsePDFText_MarkToMarketFallback(t *testing.T) {
	svc := newTestService()

	result := svc.ParsePDFText(`Account: U1
Mark-to-Market Performance Summary
Symbol Prior Quantity Current Quantity Prior Price Current Price
VTI 0 100 210.00 220.00
BND 10 50 70.00 72.50
Realized & Unrealized Performance Summary
`)

	if len(result.Holdings) != 2 {
		t.Fatalf("expected 2 holdings from mark-to-market fallback, got %d", len(result.Holdings))
	}
	vti := result.Holdings[0]
	if vti.Symbol != "VTI" || vti.Quantity != 100 || vti.Price != 220.00 {
		t.Errorf("unexpected holding: %+v", vti)
	}
	if vti.Value != 22000.00 {
		t.Errorf("expected derived value 22000, got %v", vti.Value)
	}
}

func TestParsePDFText_NoPositionsSection(t *testing.T) {
	svc := newTestService()

	result := svc.ParsePDFText("Account: U1\nJust a cover page with no positions.\n")

	if len(result.Holdings) != 0 {
		t.Fatalf("expected zero holdings, got %d", len(result.Holdings))
	}
	if result.AccountID != "U1" {
		t.Errorf("metadata should still parse, got account %q", result.AccountID)
	}
}

func TestParsePDFText_Idempotent(t *testing.T) {
	svc := newTestService()

	first := svc.ParsePDFText(verticalPositionsText)
	second := svc.ParsePDFText(verticalPositionsText)

	if len(first.Holdings) != len(second.Holdings) {
		t.Fatalf("holding counts differ: %d vs %d", len(first.Holdings), len(second.Holdings))
	}
	for i := range first.Holdings {
		if first.Holdings[i] != second.Holdings[i] {
			t.Errorf("holding %d differs: %+v vs %+v", i, first.Holdings[i], second.Holdings[i])
		}
	}
}

func TestRecoverSymbol(t *testing.T) {
	tests := []struct {
		input        string
		wantCurrency string
		wantSymbol   string
	}{
		{"IWDA", "", "IWDA"},
		{"StocksUSDVTI", "USD", "VTI"},
		{"EURIWDA", "EUR", "IWDA"},
		{"StocksVWRL", "", "VWRL"},
		{"10552.50", "", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		currency, symbol := recoverSymbol(tt.input)
		if currency != tt.wantCurrency || symbol != tt.wantSymbol {
			t.Errorf("recoverSymbol(%q) = (%q, %q), want (%q, %q)",
				tt.input, currency, symbol, tt.wantCurrency, tt.wantSymbol)
		}
	}
}
