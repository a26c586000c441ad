package models

import "time"

// ParsedHolding is a single position recovered from a brokerage statement.
// Asset type is deliberately left unset — it is resolved later by the
// matcher against user targets.
type ParsedHolding struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
}

// ParsedStatement is the normalized output of the statement parser.
type ParsedStatement struct {
	AccountID     string          `json:"account_id"`
	StatementDate time.Time       `json:"statement_date"`
	BaseCurrency  string          `json:"base_currency"`
	Holdings      []ParsedHolding `json:"holdings"`
	Cash          float64         `json:"cash"`
	TotalValue    float64         `json:"total_value"`
}

// HoldingCount returns the number of parsed holdings. Zero holdings means
// the statement had no recognizable positions section — a reportable
// condition for the caller, not a parse error.
func (s *ParsedStatement) HoldingCount() int {
	return len(s.Holdings)
}
