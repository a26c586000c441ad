package allocation

import (
	"testing"

	"github.com/bobmcallan/tiller/internal/common"
	"github.com/bobmcallan/tiller/internal/models"
)

func newTestService() *Service {
	return NewService(common.NewSilentLogger())
}

func holding(symbol string, assetType models.AssetType, category string) *models.Holding {
	return &models.Holding{
		AccountID:     "U1",
		Symbol:        symbol,
		AssetType:     assetType,
		AssetCategory: category,
		ValueUSD:      1000,
	}
}

func TestMatchHoldings_SymbolBeatsCategory(t *testing.T) {
	svc := newTestService()

	targets := []*models.TargetAllocation{
		{ID: "t_cat", AssetType: models.AssetTypeStock, AssetCategory: "World stock market", TargetPct: 23},
		{ID: "t_vti", AssetType: models.AssetTypeStock, AssetCategory: "World stock market", Symbol: "VTI", TargetPct: 38},
	}
	holdings := []*models.Holding{holding("VTI", models.AssetTypeStock, "World stock market")}

	result := svc.MatchHoldings(holdings, targets)

	if len(result.Matched) != 1 {
		t.Fatalf("expected 1 matched, got %d", len(result.Matched))
	}
	m := result.Matched[0]
	if m.MatchType != models.MatchTypeExactSymbol {
		t.Errorf("expected match type %q, got %q", models.MatchTypeExactSymbol, m.MatchType)
	}
	if m.TargetID != "t_vti" {
		t.Errorf("expected target t_vti, got %q", m.TargetID)
	}
}

func TestMatchHoldings_CategoryFallback(t *testing.T) {
	svc := newTestService()

	targets := []*models.TargetAllocation{
		{ID: "t_vti", AssetType: models.AssetTypeStock, Symbol: "VTI", TargetPct: 38},
		{ID: "t_cat", AssetType: models.AssetTypeStock, AssetCategory: "World stock market", TargetPct: 23},
	}
	holdings := []*models.Holding{holding("VXUS", models.AssetTypeStock, "World stock market")}

	result := svc.MatchHoldings(holdings, targets)

	if len(result.Matched) != 1 {
		t.Fatalf("expected 1 matched, got %d: unmatched=%+v", len(result.Matched), result.Unmatched)
	}
	m := result.Matched[0]
	if m.MatchType != models.MatchTypeCategory {
		t.Errorf("expected match type %q, got %q", models.MatchTypeCategory, m.MatchType)
	}
	if m.TargetID != "t_cat" {
		t.Errorf("expected target t_cat, got %q", m.TargetID)
	}
	if m.Holding.AssetType != models.AssetTypeStock {
		t.Errorf("expected holding retagged as Stock, got %s", m.Holding.AssetType)
	}
}

func TestMatchHoldings_ISINMatch(t *testing.T) {
	svc := newTestService()

	targets := []*models.TargetAllocation{
		{ID: "t_iwda", AssetType: models.AssetTypeStock, Symbol: "IWDA", ISIN: "IE00B4L5Y983", TargetPct: 40},
	}
	h := holding("SWDA", models.AssetTypeUnknown, "")
	h.ISIN = "ie00b4l5y983"

	result := svc.MatchHoldings([]*models.Holding{h}, targets)

	if len(result.Matched) != 1 {
		t.Fatalf("expected 1 matched, got %d", len(result.Matched))
	}
	if result.Matched[0].MatchType != models.MatchTypeExactISIN {
		t.Errorf("expected match type %q, got %q", models.MatchTypeExactISIN, result.Matched[0].MatchType)
	}
}

func TestMatchHoldings_AlternativeSymbol(t *testing.T) {
	svc := newTestService()

	targets := []*models.TargetAllocation{
		{ID: "t_vwra", AssetType: models.AssetTypeStock, Symbol: "VWRA", AltSymbols: []string{"VWRD", "VWRL"}, TargetPct: 60},
	}
	result := svc.MatchHoldings([]*models.Holding{holding("vwrd", models.AssetTypeUnknown, "")}, targets)

	if len(result.Matched) != 1 {
		t.Fatalf("expected 1 matched, got %d", len(result.Matched))
	}
	if result.Matched[0].TargetID != "t_vwra" {
		t.Errorf("expected target t_vwra, got %q", result.Matched[0].TargetID)
	}
}

func TestMatchHoldings_FirstCategoryTargetWins(t *testing.T) {
	svc := newTestService()

	targets := []*models.TargetAllocation{
		{ID: "t_first", AssetType: models.AssetTypeBond, AssetCategory: "Global bonds", TargetPct: 10, Bucket: "short"},
		{ID: "t_second", AssetType: models.AssetTypeBond, AssetCategory: "Global bonds", TargetPct: 5, Bucket: "long"},
	}
	result := svc.MatchHoldings([]*models.Holding{holding("AGGG", models.AssetTypeBond, "Global bonds")}, targets)

	if len(result.Matched) != 1 {
		t.Fatalf("expected 1 matched, got %d", len(result.Matched))
	}
	if result.Matched[0].TargetID != "t_first" {
		t.Errorf("expected first category target to win, got %q", result.Matched[0].TargetID)
	}
}

func TestMatchHoldings_RetagOverridesClassification(t *testing.T) {
	svc := newTestService()

	targets := []*models.TargetAllocation{
		{ID: "t_bnd", AssetType: models.AssetTypeBond, AssetCategory: "US bonds", Symbol: "BND", TargetPct: 20},
	}
	h := holding("BND", models.AssetTypeUnknown, "")

	svc.MatchHoldings([]*models.Holding{h}, targets)

	if h.AssetType != models.AssetTypeBond {
		t.Errorf("expected asset type Bond after retag, got %s", h.AssetType)
	}
	if h.AssetCategory != "US bonds" {
		t.Errorf("expected category 'US bonds' after retag, got %q", h.AssetCategory)
	}
}

func TestMatchHoldings_UnmatchedSuggestions(t *testing.T) {
	svc := newTestService()

	targets := []*models.TargetAllocation{
		{ID: "t_vti", AssetType: models.AssetTypeStock, Symbol: "VTI", TargetPct: 38},
		{ID: "t_vt", AssetType: models.AssetTypeStock, Symbol: "VT", TargetPct: 10},
		{ID: "t_bnd", AssetType: models.AssetTypeBond, Symbol: "BND", TargetPct: 20},
	}
	// VTIP contains VTI and VT but matches neither exactly.
	result := svc.MatchHoldings([]*models.Holding{holding("VTIP", models.AssetTypeUnknown, "")}, targets)

	if len(result.Unmatched) != 1 {
		t.Fatalf("expected 1 unmatched, got %d", len(result.Unmatched))
	}
	u := result.Unmatched[0]
	if len(u.Suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d: %+v", len(u.Suggestions), u.Suggestions)
	}
	// Equal containment scores: input order breaks the tie.
	if u.Suggestions[0].TargetID != "t_vti" || u.Suggestions[1].TargetID != "t_vt" {
		t.Errorf("unexpected suggestion order: %+v", u.Suggestions)
	}
	if u.InferredAssetType != models.AssetTypeBond {
		t.Errorf("expected inferred type Bond for VTIP (TIP substring), got %s", u.InferredAssetType)
	}
}

func TestMatchHoldings_NoTargets(t *testing.T) {
	svc := newTestService()

	result := svc.MatchHoldings([]*models.Holding{holding("VTI", models.AssetTypeUnknown, "")}, nil)

	if len(result.Matched) != 0 || len(result.Unmatched) != 1 {
		t.Fatalf("expected everything unmatched, got %+v", result)
	}
	if result.Unmatched[0].InferredAssetType != models.AssetTypeStock {
		t.Errorf("expected Stock default, got %s", result.Unmatched[0].InferredAssetType)
	}
}

func TestInferAssetType(t *testing.T) {
	tests := []struct {
		symbol   string
		category string
		want     models.AssetType
	}{
		{"IBIT", "", models.AssetTypeStock},
		{"BTCW", "", models.AssetTypeCrypto},
		{"COIN", "", models.AssetTypeCrypto},
		{"BND", "", models.AssetTypeBond},
		{"XYZ", "Global bonds", models.AssetTypeBond},
		{"VNQ", "", models.AssetTypeREIT},
		{"XYZ", "Real estate", models.AssetTypeREIT},
		{"GLD", "", models.AssetTypeCommodity},
		{"SGOV", "", models.AssetTypeCash},
		{"XYZ", "Money market fund", models.AssetTypeCash},
		{"VTI", "", models.AssetTypeStock},
		{"", "", models.AssetTypeStock},
	}

	for _, tt := range tests {
		if got := InferAssetType(tt.symbol, tt.category); got != tt.want {
			t.Errorf("InferAssetType(%q, %q) = %s, want %s", tt.symbol, tt.category, got, tt.want)
		}
	}
}
