package models

import "time"

// Asset status classifications for the rebalancing plan. Ordering is the
// display priority: buys first, then sells, then balanced positions.
const (
	StatusNeedsBuy  = "needs_buy"
	StatusNeedsSell = "needs_sell"
	StatusBalanced  = "balanced"
)

// Rebalance action kinds.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// RebalanceAction is a single buy/sell suggestion. Deviation is reported
// as a positive magnitude: the size of the under-allocation for buys, of
// the over-allocation for sells.
type RebalanceAction struct {
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Amount     float64 `json:"amount"`
	Quantity   float64 `json:"quantity,omitempty"`
	CurrentPct float64 `json:"current_pct"`
	TargetPct  float64 `json:"target_pct"`
	Deviation  float64 `json:"deviation"`
}

// AssetStatus is the per-symbol allocation status, including balanced
// positions. Deviation = current % − target %.
type AssetStatus struct {
	Symbol       string  `json:"symbol"`
	Status       string  `json:"status"`
	CurrentPct   float64 `json:"current_pct"`
	TargetPct    float64 `json:"target_pct"`
	Deviation    float64 `json:"deviation"`
	CurrentValue float64 `json:"current_value"`
	TargetValue  float64 `json:"target_value"`
	HasTarget    bool    `json:"has_target"`
}

// RebalancingPlan is the derived trade plan. It is computed on demand and
// never persisted.
type RebalancingPlan struct {
	Actions       []RebalanceAction `json:"actions"`
	AllAssets     []AssetStatus     `json:"all_assets"`
	TotalBuy      float64           `json:"total_buy"`
	TotalSell     float64           `json:"total_sell"`
	NetCashNeeded float64           `json:"net_cash_needed"`
	TotalValue    float64           `json:"total_value"`
	Tolerance     float64           `json:"tolerance"`
	GeneratedAt   time.Time         `json:"generated_at"`
}
