package models

import (
	"strings"
	"time"
)

// TargetAllocation is a user-declared desired percentage of total portfolio
// value for a ticker or an asset category. A target with no symbol and no
// alternative symbols is a category-level target: it acts as a fallback
// bucket for any holding of that asset type + category not claimed by a
// ticker-level target.
type TargetAllocation struct {
	ID            string    `json:"id"`
	AssetType     AssetType `json:"asset_type"`
	AssetCategory string    `json:"asset_category,omitempty"`
	Symbol        string    `json:"symbol,omitempty"`
	AltSymbols    []string  `json:"alt_symbols,omitempty"`
	ISIN          string    `json:"isin,omitempty"`
	Name          string    `json:"name,omitempty"`
	TargetPct     float64   `json:"target_pct"`
	Bucket        string    `json:"bucket,omitempty"` // time-horizon tag, informational only
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsCategoryLevel reports whether the target applies to a whole asset
// type + category rather than a specific ticker.
func (t *TargetAllocation) IsCategoryLevel() bool {
	return strings.TrimSpace(t.Symbol) == "" && len(t.AltSymbols) == 0
}

// CategoryKey returns the normalized lookup key for category-level matching.
func (t *TargetAllocation) CategoryKey() string {
	return CategoryKey(t.AssetType, t.AssetCategory)
}

// UniqueKey returns the identity key that must be distinct across the
// target set. Distinctness on this tuple is what lets multiple category
// buckets coexist with ticker-level overrides.
func (t *TargetAllocation) UniqueKey() string {
	return strings.Join([]string{
		strings.ToUpper(string(t.AssetType)),
		strings.ToUpper(strings.TrimSpace(t.AssetCategory)),
		strings.ToUpper(strings.TrimSpace(t.Symbol)),
		strings.ToUpper(strings.TrimSpace(t.ISIN)),
		strings.ToUpper(strings.TrimSpace(t.Bucket)),
	}, "|")
}

// CategoryKey builds the normalized "TYPE|CATEGORY" lookup key.
func CategoryKey(assetType AssetType, assetCategory string) string {
	return strings.ToUpper(strings.TrimSpace(string(assetType))) + "|" +
		strings.ToUpper(strings.TrimSpace(assetCategory))
}

// SymbolMapping is a per-account override that redirects a holding symbol
// to a target's symbol for allocation-aggregation purposes. Used only by
// the rebalancing engine, not by the matcher.
type SymbolMapping struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	HoldingSymbol string    `json:"holding_symbol"`
	TargetSymbol  string    `json:"target_symbol"`
	MatchType     string    `json:"match_type"` // "exact" or "same_basket"
	CreatedAt     time.Time `json:"created_at"`
}

const (
	MappingMatchExact      = "exact"       // same ISIN/ticker identity
	MappingMatchSameBasket = "same_basket" // different instrument, same category bucket
)

// TargetImport is the result of parsing a target allocation file. Rows that
// fail validation are excluded and reported in Errors; the batch still
// returns every row that did validate — partial success, not all-or-nothing.
type TargetImport struct {
	Targets  []*TargetAllocation `json:"targets"`
	Warnings []string            `json:"warnings"`
	Errors   []string            `json:"errors"`
}

// TargetHistoryEntry is one archived target row. The entire prior target
// set is written to history, tagged with a replacement batch, before it is
// superseded — old percentages are retrievable, never silently discarded.
type TargetHistoryEntry struct {
	BatchID    string           `json:"batch_id"`
	ArchivedAt time.Time        `json:"archived_at"`
	Target     TargetAllocation `json:"target"`
}
