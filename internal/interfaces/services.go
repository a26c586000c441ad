package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/tiller/internal/models"
)

// StatementService parses brokerage statements and runs the ingestion
// pipeline: parse, value in USD and base currency, match against targets,
// and replace the stored holdings for the account+date.
type StatementService interface {
	// ParseCSV parses an activity-statement CSV export.
	ParseCSV(csvText string) (*models.ParsedStatement, error)

	// ParsePDF extracts text from PDF bytes and parses it.
	ParsePDF(pdfBytes []byte) (*models.ParsedStatement, error)

	// ParsePDFText parses already-extracted statement text. A statement
	// with no recognizable positions section yields zero holdings, not an
	// error.
	ParsePDFText(text string) *models.ParsedStatement

	// Ingest runs the full pipeline on raw statement bytes and persists
	// the resulting holdings. Returns the match result for reporting.
	Ingest(ctx context.Context, data []byte, format string) (*models.ParsedStatement, *models.MatchResult, error)
}

// AllocationService matches holdings against the target allocation set.
type AllocationService interface {
	MatchHoldings(holdings []*models.Holding, targets []*models.TargetAllocation) *models.MatchResult
}

// RebalanceService computes deviation-driven trade plans.
type RebalanceService interface {
	// CalculatePlan computes the plan over the given inputs. Tolerance is
	// a deviation band in percentage points.
	CalculatePlan(holdings []*models.Holding, targets []*models.TargetAllocation,
		totalValue, tolerance float64, mappings []*models.SymbolMapping) *models.RebalancingPlan

	// PlanForAccount loads the latest holdings, targets, and mappings for
	// an account and computes the plan.
	PlanForAccount(ctx context.Context, accountID string, asOf time.Time, tolerance float64) (*models.RebalancingPlan, error)

	// RenderDeviationChart renders a per-asset deviation bar chart as PNG.
	RenderDeviationChart(plan *models.RebalancingPlan) ([]byte, error)
}

// TargetService manages import and replacement of the target set.
type TargetService interface {
	ParseCSV(text string) *models.TargetImport
	ParseExcel(data []byte, sheetName string) (*models.TargetImport, error)

	// EnrichNames fills missing instrument names via the lookup client,
	// with bounded concurrency; each lookup is independently best-effort.
	EnrichNames(ctx context.Context, targets []*models.TargetAllocation)

	// Commit archives the prior target set and stores the new one.
	Commit(ctx context.Context, targets []*models.TargetAllocation) (string, error)
}
