package rebalance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tiller/internal/common"
	"github.com/bobmcallan/tiller/internal/models"
)

func newTestService() *Service {
	return NewService(nil, common.NewSilentLogger())
}

func holding(symbol string, valueUSD, price float64) *models.Holding {
	return &models.Holding{
		Symbol:   symbol,
		Quantity: valueUSD / price,
		Price:    price,
		ValueUSD: valueUSD,
	}
}

func tickerTarget(symbol string, pct float64) *models.TargetAllocation {
	return &models.TargetAllocation{Symbol: symbol, TargetPct: pct, AssetType: models.AssetTypeStock}
}

func TestCalculatePlanEmptyForZeroValue(t *testing.T) {
	svc := newTestService()

	plan := svc.CalculatePlan(nil, nil, 0, 5.0, nil)
	require.NotNil(t, plan)
	assert.Empty(t, plan.Actions)
	assert.Empty(t, plan.AllAssets)
	assert.Zero(t, plan.NetCashNeeded)

	plan = svc.CalculatePlan([]*models.Holding{holding("VTI", 100, 10)}, nil, -50, 5.0, nil)
	assert.Empty(t, plan.AllAssets)
}

func TestCalculatePlanBuyAndSell(t *testing.T) {
	svc := newTestService()

	holdings := []*models.Holding{
		holding("VTI", 7000, 250), // 70%, target 50 -> sell
		holding("BND", 3000, 75),  // 30%, target 50 -> buy
	}
	targets := []*models.TargetAllocation{
		tickerTarget("VTI", 50),
		tickerTarget("BND", 50),
	}

	plan := svc.CalculatePlan(holdings, targets, 10000, 1.0, nil)
	require.Len(t, plan.Actions, 2)
	require.Len(t, plan.AllAssets, 2)

	bySymbol := map[string]models.RebalanceAction{}
	for _, a := range plan.Actions {
		bySymbol[a.Symbol] = a
	}

	sell := bySymbol["VTI"]
	assert.Equal(t, models.ActionSell, sell.Action)
	assert.InDelta(t, 2000, sell.Amount, 0.001)
	assert.InDelta(t, 8, sell.Quantity, 0.001)
	assert.InDelta(t, 20, sell.Deviation, 0.001)

	buy := bySymbol["BND"]
	assert.Equal(t, models.ActionBuy, buy.Action)
	assert.InDelta(t, 2000, buy.Amount, 0.001)
	assert.InDelta(t, 20, buy.Deviation, 0.001)

	assert.InDelta(t, 2000, plan.TotalBuy, 0.001)
	assert.InDelta(t, 2000, plan.TotalSell, 0.001)
	assert.InDelta(t, 0, plan.NetCashNeeded, 0.001)
}

func TestCalculatePlanNetCashConservation(t *testing.T) {
	svc := newTestService()

	holdings := []*models.Holding{
		holding("VTI", 6000, 200),
		holding("BND", 1000, 50),
		holding("GLD", 3000, 150),
	}
	targets := []*models.TargetAllocation{
		tickerTarget("VTI", 40),
		tickerTarget("BND", 40),
		tickerTarget("GLD", 20),
	}

	plan := svc.CalculatePlan(holdings, targets, 10000, 1.0, nil)

	var buy, sell float64
	for _, a := range plan.Actions {
		switch a.Action {
		case models.ActionBuy:
			buy += a.Amount
		case models.ActionSell:
			sell += a.Amount
		}
	}
	assert.InDelta(t, buy, plan.TotalBuy, 0.001)
	assert.InDelta(t, sell, plan.TotalSell, 0.001)
	assert.InDelta(t, buy-sell, plan.NetCashNeeded, 0.001)
}

func TestCalculatePlanCashExcluded(t *testing.T) {
	svc := newTestService()

	holdings := []*models.Holding{
		holding("VTI", 5000, 250),
		holding("CASH", 5000, 1),
	}
	targets := []*models.TargetAllocation{tickerTarget("VTI", 100)}

	plan := svc.CalculatePlan(holdings, targets, 5000, 1.0, nil)
	require.Len(t, plan.AllAssets, 1)
	assert.Equal(t, "VTI", plan.AllAssets[0].Symbol)
	assert.Equal(t, models.StatusBalanced, plan.AllAssets[0].Status)
	assert.Empty(t, plan.Actions)
}

func TestCalculatePlanToleranceInclusive(t *testing.T) {
	svc := newTestService()

	// 55% current vs 50% target with 5% tolerance: deviation equals the
	// band edge, so the position is balanced.
	holdings := []*models.Holding{
		holding("VTI", 5500, 100),
		holding("BND", 4500, 100),
	}
	targets := []*models.TargetAllocation{
		tickerTarget("VTI", 50),
		tickerTarget("BND", 50),
	}

	plan := svc.CalculatePlan(holdings, targets, 10000, 5.0, nil)
	for _, a := range plan.AllAssets {
		assert.Equal(t, models.StatusBalanced, a.Status, a.Symbol)
	}
	assert.Empty(t, plan.Actions)

	// Just outside the band flips to actionable.
	plan = svc.CalculatePlan(holdings, targets, 10000, 4.9, nil)
	assert.Len(t, plan.Actions, 2)
}

func TestCalculatePlanToleranceEdgeAfterAggregation(t *testing.T) {
	svc := newTestService()

	// Three lots of one fund summing to the band edge. The percentage is
	// derived from the summed value, so per-lot rounding cannot push the
	// deviation past the tolerance.
	holdings := []*models.Holding{
		holding("VTI", 550, 100),
		holding("VTI", 1650, 100),
		holding("VTI", 3300, 100),
		holding("BND", 4500, 100),
	}
	targets := []*models.TargetAllocation{
		tickerTarget("VTI", 50),
		tickerTarget("BND", 50),
	}

	plan := svc.CalculatePlan(holdings, targets, 10000, 5.0, nil)
	require.Len(t, plan.AllAssets, 2)
	for _, a := range plan.AllAssets {
		assert.Equal(t, models.StatusBalanced, a.Status, a.Symbol)
		if a.Symbol == "VTI" {
			assert.Equal(t, 55.0, a.CurrentPct)
			assert.Equal(t, 5.0, a.Deviation)
		}
	}
	assert.Empty(t, plan.Actions)
}

func TestCalculatePlanMappingAggregation(t *testing.T) {
	svc := newTestService()

	// Two share classes of the same fund mapped onto one target symbol.
	holdings := []*models.Holding{
		holding("VWRD", 3000, 100),
		holding("VWRL", 3000, 100),
		holding("BND", 4000, 80),
	}
	targets := []*models.TargetAllocation{
		tickerTarget("VWRA", 60),
		tickerTarget("BND", 40),
	}
	mappings := []*models.SymbolMapping{
		{HoldingSymbol: "VWRD", TargetSymbol: "VWRA", MatchType: models.MappingMatchSameBasket},
		{HoldingSymbol: "VWRL", TargetSymbol: "VWRA", MatchType: models.MappingMatchSameBasket},
	}

	plan := svc.CalculatePlan(holdings, targets, 10000, 1.0, mappings)
	require.Len(t, plan.AllAssets, 2)

	var vwra *models.AssetStatus
	for i := range plan.AllAssets {
		if plan.AllAssets[i].Symbol == "VWRA" {
			vwra = &plan.AllAssets[i]
		}
	}
	require.NotNil(t, vwra, "mapped classes should aggregate under the target symbol")
	assert.InDelta(t, 60, vwra.CurrentPct, 0.001)
	assert.InDelta(t, 6000, vwra.CurrentValue, 0.001)
	assert.Equal(t, models.StatusBalanced, vwra.Status)
	assert.Empty(t, plan.Actions)
}

func TestCalculatePlanAlternativeTickers(t *testing.T) {
	svc := newTestService()

	holdings := []*models.Holding{
		holding("VWRD", 5000, 100),
		holding("BND", 5000, 80),
	}
	targets := []*models.TargetAllocation{
		{Symbol: "VWRA", AltSymbols: []string{"VWRD", "VWRL"}, TargetPct: 50, AssetType: models.AssetTypeStock},
		tickerTarget("BND", 50),
	}

	plan := svc.CalculatePlan(holdings, targets, 10000, 1.0, nil)
	for _, a := range plan.AllAssets {
		assert.True(t, a.HasTarget, a.Symbol)
		assert.Equal(t, models.StatusBalanced, a.Status, a.Symbol)
	}
}

func TestCalculatePlanCategoryFallback(t *testing.T) {
	svc := newTestService()

	holdings := []*models.Holding{
		{Symbol: "AGGH", Quantity: 100, Price: 40, ValueUSD: 4000,
			AssetType: models.AssetTypeBond, AssetCategory: "Global Bonds"},
		holding("VTI", 6000, 250),
	}
	targets := []*models.TargetAllocation{
		tickerTarget("VTI", 60),
		{AssetType: models.AssetTypeBond, AssetCategory: "Global Bonds", TargetPct: 40},
	}

	plan := svc.CalculatePlan(holdings, targets, 10000, 1.0, nil)
	for _, a := range plan.AllAssets {
		assert.True(t, a.HasTarget, a.Symbol)
		assert.Equal(t, models.StatusBalanced, a.Status, a.Symbol)
	}
}

func TestCalculatePlanUnmappedForcedSell(t *testing.T) {
	svc := newTestService()

	holdings := []*models.Holding{
		holding("VTI", 9700, 250),
		holding("MEME", 300, 30),
	}
	targets := []*models.TargetAllocation{tickerTarget("VTI", 100)}

	// Deviation of MEME (3%) is inside the tolerance band, but an asset
	// with no target anywhere is still a full exit.
	plan := svc.CalculatePlan(holdings, targets, 10000, 5.0, nil)

	var memeStatus *models.AssetStatus
	for i := range plan.AllAssets {
		if plan.AllAssets[i].Symbol == "MEME" {
			memeStatus = &plan.AllAssets[i]
		}
	}
	require.NotNil(t, memeStatus)
	assert.False(t, memeStatus.HasTarget)
	assert.Equal(t, models.StatusNeedsSell, memeStatus.Status)

	require.Len(t, plan.Actions, 1)
	action := plan.Actions[0]
	assert.Equal(t, "MEME", action.Symbol)
	assert.Equal(t, models.ActionSell, action.Action)
	assert.InDelta(t, 300, action.Amount, 0.001)
	assert.InDelta(t, 10, action.Quantity, 0.001)
	assert.InDelta(t, 3, action.Deviation, 0.001)
}

func TestCalculatePlanOrdering(t *testing.T) {
	svc := newTestService()

	holdings := []*models.Holding{
		holding("AAA", 1000, 10), // 10%, target 40 -> dev 30
		holding("BBB", 4000, 10), // 40%, target 30 -> dev 10
		holding("CCC", 5000, 10), // 50%, target 30 -> dev 20
	}
	targets := []*models.TargetAllocation{
		tickerTarget("AAA", 40),
		tickerTarget("BBB", 30),
		tickerTarget("CCC", 30),
	}

	plan := svc.CalculatePlan(holdings, targets, 10000, 1.0, nil)
	require.Len(t, plan.Actions, 3)
	assert.Equal(t, "AAA", plan.Actions[0].Symbol)
	assert.Equal(t, "CCC", plan.Actions[1].Symbol)
	assert.Equal(t, "BBB", plan.Actions[2].Symbol)

	// AllAssets: buys before sells before balanced, then by magnitude.
	require.Len(t, plan.AllAssets, 3)
	assert.Equal(t, models.StatusNeedsBuy, plan.AllAssets[0].Status)
	for i := 1; i < len(plan.AllAssets); i++ {
		ri := statusRank[plan.AllAssets[i-1].Status]
		rj := statusRank[plan.AllAssets[i].Status]
		assert.LessOrEqual(t, ri, rj)
		if ri == rj {
			assert.GreaterOrEqual(t,
				math.Abs(plan.AllAssets[i-1].Deviation),
				math.Abs(plan.AllAssets[i].Deviation))
		}
	}
}

func TestCalculatePlanZeroPriceQuantity(t *testing.T) {
	svc := newTestService()

	holdings := []*models.Holding{
		{Symbol: "VTI", ValueUSD: 3000},
		{Symbol: "BND", ValueUSD: 7000, Price: 80},
	}
	targets := []*models.TargetAllocation{
		tickerTarget("VTI", 50),
		tickerTarget("BND", 50),
	}

	plan := svc.CalculatePlan(holdings, targets, 10000, 1.0, nil)
	require.Len(t, plan.Actions, 2)
	for _, a := range plan.Actions {
		if a.Symbol == "VTI" {
			assert.Zero(t, a.Quantity, "no price means no share count")
		}
	}
}

func TestRenderDeviationChart(t *testing.T) {
	svc := newTestService()

	holdings := []*models.Holding{
		holding("VTI", 7000, 250),
		holding("BND", 3000, 75),
	}
	targets := []*models.TargetAllocation{
		tickerTarget("VTI", 50),
		tickerTarget("BND", 50),
	}
	plan := svc.CalculatePlan(holdings, targets, 10000, 1.0, nil)

	png, err := svc.RenderDeviationChart(plan)
	require.NoError(t, err)
	assert.Greater(t, len(png), 100)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])

	_, err = svc.RenderDeviationChart(&models.RebalancingPlan{})
	assert.Error(t, err)
}
