// Package allocation matches holdings against the target allocation set.
package allocation

import (
	"sort"
	"strings"

	"github.com/bobmcallan/tiller/internal/common"
	"github.com/bobmcallan/tiller/internal/interfaces"
	"github.com/bobmcallan/tiller/internal/models"
)

const maxSuggestions = 5

// Suggestion scores for unmatched holdings.
const (
	scoreSymbolEqual    = 100.0
	scoreSymbolContains = 50.0
	scoreISINEqual      = 100.0
	scoreCategoryEqual  = 30.0
)

// Service implements AllocationService
type Service struct {
	logger *common.Logger
}

// NewService creates a new allocation matcher
func NewService(logger *common.Logger) *Service {
	return &Service{logger: logger}
}

// lookup holds the three index structures built from the target set.
type lookup struct {
	bySymbol map[string]*models.TargetAllocation
	byISIN   map[string]*models.TargetAllocation
	// byCategory preserves target input order so the first category target
	// for a key wins deterministically.
	byCategory map[string][]*models.TargetAllocation
}

func buildLookup(targets []*models.TargetAllocation) *lookup {
	l := &lookup{
		bySymbol:   make(map[string]*models.TargetAllocation),
		byISIN:     make(map[string]*models.TargetAllocation),
		byCategory: make(map[string][]*models.TargetAllocation),
	}

	for _, t := range targets {
		if sym := strings.ToUpper(strings.TrimSpace(t.Symbol)); sym != "" {
			if _, exists := l.bySymbol[sym]; !exists {
				l.bySymbol[sym] = t
			}
		}
		for _, alt := range t.AltSymbols {
			if sym := strings.ToUpper(strings.TrimSpace(alt)); sym != "" {
				if _, exists := l.bySymbol[sym]; !exists {
					l.bySymbol[sym] = t
				}
			}
		}
		if isin := strings.ToUpper(strings.TrimSpace(t.ISIN)); isin != "" {
			if _, exists := l.byISIN[isin]; !exists {
				l.byISIN[isin] = t
			}
		}
		if t.IsCategoryLevel() {
			key := t.CategoryKey()
			l.byCategory[key] = append(l.byCategory[key], t)
		}
	}

	return l
}

// MatchHoldings assigns each holding to a target by symbol, by ISIN, or by
// category fallback — strict first-match-wins priority. Matched holdings
// are re-tagged with the target's asset type and category; unmatched
// holdings receive ranked suggestions and a heuristic inferred asset type.
func (s *Service) MatchHoldings(holdings []*models.Holding, targets []*models.TargetAllocation) *models.MatchResult {
	l := buildLookup(targets)
	result := &models.MatchResult{}

	for _, h := range holdings {
		if t, ok := l.bySymbol[h.NormalizedSymbol()]; ok {
			retag(h, t)
			result.Matched = append(result.Matched, models.MatchedHolding{
				Holding:   h,
				TargetID:  t.ID,
				MatchType: models.MatchTypeExactSymbol,
			})
			continue
		}

		if isin := strings.ToUpper(strings.TrimSpace(h.ISIN)); isin != "" {
			if t, ok := l.byISIN[isin]; ok {
				retag(h, t)
				result.Matched = append(result.Matched, models.MatchedHolding{
					Holding:   h,
					TargetID:  t.ID,
					MatchType: models.MatchTypeExactISIN,
				})
				continue
			}
		}

		if list := l.byCategory[models.CategoryKey(h.AssetType, h.AssetCategory)]; len(list) > 0 {
			t := list[0]
			retag(h, t)
			result.Matched = append(result.Matched, models.MatchedHolding{
				Holding:   h,
				TargetID:  t.ID,
				MatchType: models.MatchTypeCategory,
			})
			continue
		}

		inferred := InferAssetType(h.Symbol, h.AssetCategory)
		h.AssetType = inferred
		result.Unmatched = append(result.Unmatched, models.UnmatchedHolding{
			Holding:           h,
			Suggestions:       suggestTargets(h, targets),
			InferredAssetType: inferred,
		})
	}

	s.logger.Debug().
		Int("matched", len(result.Matched)).
		Int("unmatched", len(result.Unmatched)).
		Msg("Matched holdings against targets")

	return result
}

// retag applies the target's classification to the holding. The target's
// category overrides the holding's own when present.
func retag(h *models.Holding, t *models.TargetAllocation) {
	h.AssetType = t.AssetType
	if t.AssetCategory != "" {
		h.AssetCategory = t.AssetCategory
	}
}

// suggestTargets scores every target against an unmatched holding and
// returns the top candidates, descending by score, ties broken by target
// input order.
func suggestTargets(h *models.Holding, targets []*models.TargetAllocation) []models.TargetSuggestion {
	sym := h.NormalizedSymbol()
	isin := strings.ToUpper(strings.TrimSpace(h.ISIN))
	category := strings.ToLower(strings.TrimSpace(h.AssetCategory))

	type scored struct {
		index int
		sugg  models.TargetSuggestion
	}
	var candidates []scored

	for i, t := range targets {
		score := symbolScore(sym, t)
		if isin != "" && isin == strings.ToUpper(strings.TrimSpace(t.ISIN)) {
			// ISIN equality stacks with the symbol score.
			score += scoreISINEqual
		}
		if category != "" && category == strings.ToLower(strings.TrimSpace(t.AssetCategory)) {
			score += scoreCategoryEqual
		}
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{
			index: i,
			sugg: models.TargetSuggestion{
				TargetID:  t.ID,
				Symbol:    t.Symbol,
				AssetType: string(t.AssetType),
				Score:     score,
			},
		})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].sugg.Score != candidates[b].sugg.Score {
			return candidates[a].sugg.Score > candidates[b].sugg.Score
		}
		return candidates[a].index < candidates[b].index
	})

	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	suggestions := make([]models.TargetSuggestion, 0, len(candidates))
	for _, c := range candidates {
		suggestions = append(suggestions, c.sugg)
	}
	return suggestions
}

// symbolScore compares the holding symbol against the target's primary and
// alternative tickers: equality scores highest, containment in either
// direction scores half.
func symbolScore(sym string, t *models.TargetAllocation) float64 {
	if sym == "" {
		return 0
	}
	best := 0.0
	candidates := append([]string{t.Symbol}, t.AltSymbols...)
	for _, c := range candidates {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		switch {
		case c == sym:
			return scoreSymbolEqual
		case strings.Contains(c, sym) || strings.Contains(sym, c):
			if scoreSymbolContains > best {
				best = scoreSymbolContains
			}
		}
	}
	return best
}

// Compile-time check
var _ interfaces.AllocationService = (*Service)(nil)
