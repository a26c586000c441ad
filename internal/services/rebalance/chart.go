package rebalance

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/tiller/internal/models"
)

// RenderDeviationChart renders a PNG bar chart of per-asset deviation from
// target allocation. Over-allocated assets draw red, under-allocated green,
// balanced gray. Returns raw PNG bytes.
func (s *Service) RenderDeviationChart(plan *models.RebalancingPlan) ([]byte, error) {
	if len(plan.AllAssets) == 0 {
		return nil, fmt.Errorf("plan has no assets to chart")
	}

	bars := make([]chart.Value, 0, len(plan.AllAssets))
	for _, a := range plan.AllAssets {
		bars = append(bars, chart.Value{
			Label: a.Symbol,
			Value: a.Deviation,
			Style: chart.Style{
				FillColor:   deviationColor(a),
				StrokeColor: deviationColor(a),
			},
		})
	}

	graph := chart.BarChart{
		Title:    "Allocation Deviation (%)",
		Width:    900,
		Height:   400,
		BarWidth: 40,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.1f%%", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

func deviationColor(a models.AssetStatus) drawing.Color {
	switch a.Status {
	case models.StatusNeedsSell:
		return drawing.ColorFromHex("dc2626") // red-600
	case models.StatusNeedsBuy:
		return drawing.ColorFromHex("16a34a") // green-600
	default:
		return drawing.ColorFromHex("9ca3af") // gray-400
	}
}
