package models

// Match types recorded on a matched holding.
const (
	MatchTypeExactSymbol = "exact_symbol"
	MatchTypeExactISIN   = "exact_isin"
	MatchTypeCategory    = "category"
)

// MatchedHolding is a holding successfully assigned to a target. The
// target's asset type and category override the holding's own.
type MatchedHolding struct {
	Holding   *Holding `json:"holding"`
	TargetID  string   `json:"target_id"`
	MatchType string   `json:"match_type"`
}

// TargetSuggestion is a ranked candidate target for an unmatched holding.
type TargetSuggestion struct {
	TargetID  string  `json:"target_id"`
	Symbol    string  `json:"symbol,omitempty"`
	AssetType string  `json:"asset_type"`
	Score     float64 `json:"score"`
}

// UnmatchedHolding is a holding no target claimed, with ranked suggestions
// and a heuristic asset type inferred from symbol/category substrings.
type UnmatchedHolding struct {
	Holding           *Holding           `json:"holding"`
	Suggestions       []TargetSuggestion `json:"suggestions,omitempty"`
	InferredAssetType AssetType          `json:"inferred_asset_type"`
}

// MatchResult is the output of matching parsed holdings against the
// target allocation set.
type MatchResult struct {
	Matched   []MatchedHolding   `json:"matched"`
	Unmatched []UnmatchedHolding `json:"unmatched"`
}
