// Package models defines data structures for Tiller
package models

import (
	"strings"
	"time"
)

// AssetType categorizes a holding. Assigned during matching against user
// targets, never by the statement parser.
type AssetType string

const (
	AssetTypeStock     AssetType = "Stock"
	AssetTypeBond      AssetType = "Bond"
	AssetTypeCash      AssetType = "Cash"
	AssetTypeCommodity AssetType = "Commodity"
	AssetTypeREIT      AssetType = "REIT"
	AssetTypeCrypto    AssetType = "Crypto"
	AssetTypeUnknown   AssetType = "Unknown"
)

// Holding represents a single position in an account as of a statement date.
// Exactly one row exists per (account, symbol, statement date); re-uploading
// a statement for the same date replaces all rows for that account+date.
type Holding struct {
	AccountID     string    `json:"account_id"`
	Symbol        string    `json:"symbol"`
	ISIN          string    `json:"isin,omitempty"`
	Name          string    `json:"name,omitempty"`
	AssetType     AssetType `json:"asset_type"`
	AssetCategory string    `json:"asset_category,omitempty"`
	Quantity      float64   `json:"quantity"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	ValueUSD      float64   `json:"value_usd"`
	ValueBase     float64   `json:"value_base"`
	StatementDate time.Time `json:"statement_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// NormalizedSymbol returns the upper-cased, trimmed symbol used for matching.
// The stored symbol keeps its original casing.
func (h *Holding) NormalizedSymbol() string {
	return strings.ToUpper(strings.TrimSpace(h.Symbol))
}

// IsCash reports whether the holding is the cash pseudo-position, which is
// excluded from rebalancing entirely.
func (h *Holding) IsCash() bool {
	return strings.EqualFold(strings.TrimSpace(h.Symbol), "CASH")
}

// DateKey returns the statement date formatted as a storage key.
func (h *Holding) DateKey() string {
	return h.StatementDate.Format("2006-01-02")
}
