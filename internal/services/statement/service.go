// Package statement parses brokerage statements and runs the holdings
// ingestion pipeline.
package statement

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/tiller/internal/common"
	"github.com/bobmcallan/tiller/internal/interfaces"
	"github.com/bobmcallan/tiller/internal/models"
)

// Service implements StatementService
type Service struct {
	storage interfaces.StorageManager
	rates   interfaces.RateClient
	matcher interfaces.AllocationService
	logger  *common.Logger
}

// NewService creates a new statement service
func NewService(
	storage interfaces.StorageManager,
	rates interfaces.RateClient,
	matcher interfaces.AllocationService,
	logger *common.Logger,
) *Service {
	return &Service{
		storage: storage,
		rates:   rates,
		matcher: matcher,
		logger:  logger,
	}
}

// Ingest parses raw statement bytes, values the holdings in USD and the
// account's base currency, matches them against the stored target set, and
// replaces the persisted holdings for the account+date.
func (s *Service) Ingest(ctx context.Context, data []byte, format string) (*models.ParsedStatement, *models.MatchResult, error) {
	parsed, err := s.parse(data, format)
	if err != nil {
		return nil, nil, err
	}

	if len(parsed.Holdings) == 0 {
		// Reportable, not fatal: the statement had no recognizable
		// positions. Nothing is persisted.
		s.logger.Warn().Str("account", parsed.AccountID).Msg("Statement yielded no holdings")
		return parsed, &models.MatchResult{}, nil
	}

	if parsed.AccountID == "" {
		return parsed, nil, fmt.Errorf("statement has no account id")
	}

	holdings, err := s.valueHoldings(ctx, parsed)
	if err != nil {
		return parsed, nil, err
	}

	targets, err := s.storage.TargetStore().List(ctx)
	if err != nil {
		return parsed, nil, fmt.Errorf("failed to load targets: %w", err)
	}

	match := s.matcher.MatchHoldings(holdings, targets)

	if err := s.storage.HoldingStore().ReplaceForDate(ctx, parsed.AccountID, parsed.StatementDate, holdings); err != nil {
		return parsed, match, fmt.Errorf("failed to store holdings: %w", err)
	}

	s.logger.Info().
		Str("account", parsed.AccountID).
		Str("date", parsed.StatementDate.Format("2006-01-02")).
		Int("holdings", len(holdings)).
		Int("matched", len(match.Matched)).
		Int("unmatched", len(match.Unmatched)).
		Msg("Statement ingested")

	return parsed, match, nil
}

// parse dispatches on the declared format, sniffing PDF bytes when the
// format is unspecified.
func (s *Service) parse(data []byte, format string) (*models.ParsedStatement, error) {
	switch strings.ToLower(format) {
	case "csv":
		return s.ParseCSV(string(data))
	case "pdf":
		return s.ParsePDF(data)
	case "":
		if bytes.HasPrefix(data, []byte("%PDF")) {
			return s.ParsePDF(data)
		}
		return s.ParseCSV(string(data))
	default:
		return nil, fmt.Errorf("unsupported statement format %q", format)
	}
}

// valueHoldings converts parsed holdings into persistable records valued
// in USD and the statement's base currency, one rate lookup per distinct
// currency. Rate failures degrade to 1.0 rather than failing the batch.
func (s *Service) valueHoldings(ctx context.Context, parsed *models.ParsedStatement) ([]*models.Holding, error) {
	base := parsed.BaseCurrency
	if base == "" {
		base = "USD"
	}

	toUSD := map[string]float64{}
	toBase := map[string]float64{}
	rate := func(cache map[string]float64, from, to string) float64 {
		if from == to {
			return 1.0
		}
		if r, ok := cache[from]; ok {
			return r
		}
		if s.rates == nil {
			s.logger.Warn().Str("from", from).Str("to", to).Msg("No rate client configured, using 1.0")
			cache[from] = 1.0
			return 1.0
		}
		r, err := s.rates.GetExchangeRate(ctx, from, to)
		if err != nil || r <= 0 {
			s.logger.Warn().Str("from", from).Str("to", to).Err(err).Msg("Exchange rate lookup failed, using 1.0")
			r = 1.0
		}
		cache[from] = r
		return r
	}

	now := time.Now()
	holdings := make([]*models.Holding, 0, len(parsed.Holdings)+1)
	for _, ph := range parsed.Holdings {
		cur := ph.Currency
		if cur == "" {
			cur = base
		}
		holdings = append(holdings, &models.Holding{
			AccountID:     parsed.AccountID,
			Symbol:        ph.Symbol,
			AssetType:     models.AssetTypeUnknown,
			Quantity:      ph.Quantity,
			Price:         ph.Price,
			Currency:      cur,
			ValueUSD:      ph.Value * rate(toUSD, cur, "USD"),
			ValueBase:     ph.Value * rate(toBase, cur, base),
			StatementDate: parsed.StatementDate,
			CreatedAt:     now,
		})
	}

	if parsed.Cash != 0 {
		holdings = append(holdings, &models.Holding{
			AccountID:     parsed.AccountID,
			Symbol:        "CASH",
			AssetType:     models.AssetTypeCash,
			Quantity:      parsed.Cash,
			Price:         1.0,
			Currency:      base,
			ValueUSD:      parsed.Cash * rate(toUSD, base, "USD"),
			ValueBase:     parsed.Cash,
			StatementDate: parsed.StatementDate,
			CreatedAt:     now,
		})
	}

	return holdings, nil
}

// Compile-time check
var _ interfaces.StatementService = (*Service)(nil)
