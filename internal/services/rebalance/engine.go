// Package rebalance computes deviation-driven trade plans from holdings
// and target allocations.
package rebalance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/tiller/internal/common"
	"github.com/bobmcallan/tiller/internal/interfaces"
	"github.com/bobmcallan/tiller/internal/models"
)

// Service implements RebalanceService
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates a new rebalancing service
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

// position accumulates the current allocation of one effective symbol.
// Cross-listed share classes mapped to the same target symbol sum here.
// currentPct is derived once from the summed value, never accumulated
// per holding, so the inclusive tolerance edge is not lost to
// floating-point noise.
type position struct {
	effectiveSymbol string
	currentValue    float64
	currentPct      float64
	price           float64
	// originalSymbols preserves every contributing holding symbol, in
	// input order, for the target-resolution fallback.
	originalSymbols []string
	assetType       models.AssetType
	assetCategory   string
}

// pctEpsilon absorbs float64 representation error when a deviation is
// compared against the tolerance band. The boundary is inclusive: a
// deviation mathematically equal to the tolerance is balanced.
const pctEpsilon = 1e-9

// statusRank orders plan output: buys first, then sells, then balanced.
var statusRank = map[string]int{
	models.StatusNeedsBuy:  0,
	models.StatusNeedsSell: 1,
	models.StatusBalanced:  2,
}

// CalculatePlan computes per-asset current vs. target allocation, status
// within the tolerance band, and the buy/sell actions needed to converge.
// Holdings with symbol "CASH" are excluded entirely. A non-positive total
// value yields an empty plan.
func (s *Service) CalculatePlan(holdings []*models.Holding, targets []*models.TargetAllocation,
	totalValue, tolerance float64, mappings []*models.SymbolMapping) *models.RebalancingPlan {

	plan := &models.RebalancingPlan{
		TotalValue:  totalValue,
		Tolerance:   tolerance,
		GeneratedAt: time.Now(),
	}
	if totalValue <= 0 {
		return plan
	}

	tickerPct, hasTicker := buildTickerTargets(targets)
	categoryPct, hasCategory := buildCategoryTargets(targets)
	overrides := buildOverrides(mappings)

	// Aggregate current allocation per effective symbol, preserving
	// first-seen order so output is deterministic.
	positions := make(map[string]*position)
	var order []string
	for _, h := range holdings {
		if h.IsCash() {
			continue
		}
		sym := h.NormalizedSymbol()
		eff := sym
		if mapped, ok := overrides[sym]; ok {
			eff = mapped
		}
		p, exists := positions[eff]
		if !exists {
			p = &position{
				effectiveSymbol: eff,
				assetType:       h.AssetType,
				assetCategory:   h.AssetCategory,
			}
			positions[eff] = p
			order = append(order, eff)
		}
		p.currentValue += h.ValueUSD
		if p.price == 0 {
			p.price = h.Price
		}
		p.originalSymbols = append(p.originalSymbols, sym)
	}

	for _, eff := range order {
		p := positions[eff]
		p.currentPct = p.currentValue * 100 / totalValue

		// Target resolution precedence: effective symbol, then any
		// original holding symbol, then category, then none.
		targetPct := 0.0
		hasAnyTarget := false
		if pct, ok := tickerPct[eff]; ok && hasTicker {
			targetPct = pct
			hasAnyTarget = true
		} else {
			for _, orig := range p.originalSymbols {
				if pct, ok := tickerPct[orig]; ok {
					targetPct = pct
					hasAnyTarget = true
					break
				}
			}
		}
		if !hasAnyTarget && hasCategory {
			if pct, ok := categoryPct[models.CategoryKey(p.assetType, p.assetCategory)]; ok {
				targetPct = pct
				hasAnyTarget = true
			}
		}

		deviation := p.currentPct - targetPct
		targetValue := targetPct / 100 * totalValue

		var status string
		switch {
		case !hasAnyTarget && p.currentPct > 0:
			// Truly unmapped positions are flagged for a full exit
			// regardless of tolerance.
			status = models.StatusNeedsSell
		case targetPct == 0 && p.currentPct == 0:
			status = models.StatusBalanced
		case math.Abs(deviation) <= tolerance+pctEpsilon:
			status = models.StatusBalanced
		case deviation < 0:
			status = models.StatusNeedsBuy
		default:
			status = models.StatusNeedsSell
		}

		plan.AllAssets = append(plan.AllAssets, models.AssetStatus{
			Symbol:       eff,
			Status:       status,
			CurrentPct:   p.currentPct,
			TargetPct:    targetPct,
			Deviation:    deviation,
			CurrentValue: p.currentValue,
			TargetValue:  targetValue,
			HasTarget:    hasAnyTarget,
		})

		if status == models.StatusBalanced {
			continue
		}

		action := buildAction(p, targetValue, deviation, hasAnyTarget)
		if action != nil {
			plan.Actions = append(plan.Actions, *action)
			if action.Action == models.ActionBuy {
				plan.TotalBuy += action.Amount
			} else {
				plan.TotalSell += action.Amount
			}
		}
	}

	plan.NetCashNeeded = plan.TotalBuy - plan.TotalSell

	sort.SliceStable(plan.Actions, func(i, j int) bool {
		return plan.Actions[i].Deviation > plan.Actions[j].Deviation
	})
	sort.SliceStable(plan.AllAssets, func(i, j int) bool {
		ri, rj := statusRank[plan.AllAssets[i].Status], statusRank[plan.AllAssets[j].Status]
		if ri != rj {
			return ri < rj
		}
		return math.Abs(plan.AllAssets[i].Deviation) > math.Abs(plan.AllAssets[j].Deviation)
	})

	s.logger.Debug().
		Int("assets", len(plan.AllAssets)).
		Int("actions", len(plan.Actions)).
		Float64("net_cash", plan.NetCashNeeded).
		Msg("Calculated rebalancing plan")

	return plan
}

// buildAction emits the trade for a non-balanced position. Deviation is
// normalized to a positive magnitude: under-allocation for buys,
// over-allocation for sells.
func buildAction(p *position, targetValue, deviation float64, hasAnyTarget bool) *models.RebalanceAction {
	targetPct := p.currentPct - deviation

	if !hasAnyTarget && p.currentValue > 0 {
		// Full exit.
		return &models.RebalanceAction{
			Symbol:     p.effectiveSymbol,
			Action:     models.ActionSell,
			Amount:     p.currentValue,
			Quantity:   quantityFor(p.currentValue, p.price),
			CurrentPct: p.currentPct,
			TargetPct:  targetPct,
			Deviation:  p.currentPct,
		}
	}

	delta := targetValue - p.currentValue
	if delta > 0 {
		return &models.RebalanceAction{
			Symbol:     p.effectiveSymbol,
			Action:     models.ActionBuy,
			Amount:     delta,
			Quantity:   quantityFor(delta, p.price),
			CurrentPct: p.currentPct,
			TargetPct:  targetPct,
			Deviation:  math.Abs(deviation),
		}
	}
	return &models.RebalanceAction{
		Symbol:     p.effectiveSymbol,
		Action:     models.ActionSell,
		Amount:     -delta,
		Quantity:   quantityFor(-delta, p.price),
		CurrentPct: p.currentPct,
		TargetPct:  targetPct,
		Deviation:  math.Abs(deviation),
	}
}

func quantityFor(amount, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return amount / price
}

// buildTickerTargets maps every target symbol — primary and alternatives —
// to the target's percentage. Alternatives share the primary's percentage.
func buildTickerTargets(targets []*models.TargetAllocation) (map[string]float64, bool) {
	m := make(map[string]float64)
	for _, t := range targets {
		if sym := strings.ToUpper(strings.TrimSpace(t.Symbol)); sym != "" {
			if _, exists := m[sym]; !exists {
				m[sym] = t.TargetPct
			}
		}
		for _, alt := range t.AltSymbols {
			if sym := strings.ToUpper(strings.TrimSpace(alt)); sym != "" {
				if _, exists := m[sym]; !exists {
					m[sym] = t.TargetPct
				}
			}
		}
	}
	return m, len(m) > 0
}

// buildCategoryTargets maps category keys to percentages for symbol-less
// targets; the first target for a key wins, matching the matcher's
// insertion-order tie-break.
func buildCategoryTargets(targets []*models.TargetAllocation) (map[string]float64, bool) {
	m := make(map[string]float64)
	for _, t := range targets {
		if !t.IsCategoryLevel() {
			continue
		}
		key := t.CategoryKey()
		if _, exists := m[key]; !exists {
			m[key] = t.TargetPct
		}
	}
	return m, len(m) > 0
}

// buildOverrides maps holding symbols to their mapped target symbols.
func buildOverrides(mappings []*models.SymbolMapping) map[string]string {
	m := make(map[string]string)
	for _, sm := range mappings {
		from := strings.ToUpper(strings.TrimSpace(sm.HoldingSymbol))
		to := strings.ToUpper(strings.TrimSpace(sm.TargetSymbol))
		if from != "" && to != "" {
			m[from] = to
		}
	}
	return m
}

// PlanForAccount loads the account's holdings snapshot, the target set,
// and the account's symbol mappings, then computes the plan. Total value
// is the sum of USD values over the non-cash holdings.
func (s *Service) PlanForAccount(ctx context.Context, accountID string, asOf time.Time, tolerance float64) (*models.RebalancingPlan, error) {
	var holdings []*models.Holding
	var err error
	if asOf.IsZero() {
		holdings, err = s.storage.HoldingStore().GetLatest(ctx, accountID)
	} else {
		holdings, err = s.storage.HoldingStore().GetForDate(ctx, accountID, asOf)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	targets, err := s.storage.TargetStore().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}

	mappings, err := s.storage.MappingStore().ListForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load symbol mappings: %w", err)
	}

	totalValue := 0.0
	for _, h := range holdings {
		if h.IsCash() {
			continue
		}
		totalValue += h.ValueUSD
	}

	return s.CalculatePlan(holdings, targets, totalValue, tolerance, mappings), nil
}

// Compile-time check
var _ interfaces.RebalanceService = (*Service)(nil)
