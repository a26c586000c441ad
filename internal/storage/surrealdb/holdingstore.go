package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/tiller/internal/common"
	"github.com/bobmcallan/tiller/internal/interfaces"
	"github.com/bobmcallan/tiller/internal/models"
)

const dateKeyLayout = "2006-01-02"

// holdingSelectFields lists the fields selected from the holdings table.
const holdingSelectFields = `account_id, symbol, isin, name, asset_type, asset_category,
	quantity, price, currency, value_usd, value_base, statement_date, created_at`

// HoldingStore implements interfaces.HoldingStore using SurrealDB.
type HoldingStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewHoldingStore creates a new HoldingStore.
func NewHoldingStore(db *surrealdb.DB, logger *common.Logger) *HoldingStore {
	return &HoldingStore{db: db, logger: logger}
}

// ReplaceForDate deletes any existing holdings for the account+date and
// inserts the new set in one transaction, so a re-upload can never leave a
// partially replaced snapshot behind.
func (s *HoldingStore) ReplaceForDate(ctx context.Context, accountID string, date time.Time, holdings []*models.Holding) error {
	dateKey := date.Format(dateKeyLayout)
	now := time.Now()

	rows := make([]map[string]any, 0, len(holdings))
	for _, h := range holdings {
		if h.CreatedAt.IsZero() {
			h.CreatedAt = now
		}
		rows = append(rows, map[string]any{
			"account_id":     accountID,
			"date_key":       dateKey,
			"symbol":         h.Symbol,
			"isin":           h.ISIN,
			"name":           h.Name,
			"asset_type":     h.AssetType,
			"asset_category": h.AssetCategory,
			"quantity":       h.Quantity,
			"price":          h.Price,
			"currency":       h.Currency,
			"value_usd":      h.ValueUSD,
			"value_base":     h.ValueBase,
			"statement_date": h.StatementDate,
			"created_at":     h.CreatedAt,
		})
	}

	sql := `BEGIN TRANSACTION;
		DELETE holdings WHERE account_id = $account_id AND date_key = $date_key;
		INSERT INTO holdings $rows;
		COMMIT TRANSACTION`
	vars := map[string]any{
		"account_id": accountID,
		"date_key":   dateKey,
		"rows":       rows,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to replace holdings for %s/%s: %w", accountID, dateKey, err)
	}

	s.logger.Info().
		Str("account", accountID).
		Str("date", dateKey).
		Int("holdings", len(holdings)).
		Msg("Replaced holdings snapshot")

	return nil
}

// GetForDate returns the holdings snapshot for an account+date.
func (s *HoldingStore) GetForDate(ctx context.Context, accountID string, date time.Time) ([]*models.Holding, error) {
	sql := "SELECT " + holdingSelectFields + " FROM holdings WHERE account_id = $account_id AND date_key = $date_key ORDER BY symbol ASC"
	vars := map[string]any{
		"account_id": accountID,
		"date_key":   date.Format(dateKeyLayout),
	}

	results, err := surrealdb.Query[[]models.Holding](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}

	return collectHoldings(results), nil
}

// GetLatest returns the most recent snapshot for an account. An account
// with no stored holdings yields an empty list, not an error.
func (s *HoldingStore) GetLatest(ctx context.Context, accountID string) ([]*models.Holding, error) {
	dates, err := s.ListDates(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}
	return s.GetForDate(ctx, accountID, dates[0])
}

// ListDates returns the statement dates available for an account, newest
// first.
func (s *HoldingStore) ListDates(ctx context.Context, accountID string) ([]time.Time, error) {
	type dateRow struct {
		DateKey string `json:"date_key"`
	}
	sql := "SELECT date_key FROM holdings WHERE account_id = $account_id GROUP BY date_key ORDER BY date_key DESC"
	vars := map[string]any{"account_id": accountID}

	results, err := surrealdb.Query[[]dateRow](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list statement dates: %w", err)
	}

	var dates []time.Time
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			d, perr := time.Parse(dateKeyLayout, r.DateKey)
			if perr != nil {
				continue
			}
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// ListAccounts returns all account ids with stored holdings.
func (s *HoldingStore) ListAccounts(ctx context.Context) ([]string, error) {
	type accountRow struct {
		AccountID string `json:"account_id"`
	}
	sql := "SELECT account_id FROM holdings GROUP BY account_id ORDER BY account_id ASC"

	results, err := surrealdb.Query[[]accountRow](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	var accounts []string
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			accounts = append(accounts, r.AccountID)
		}
	}
	return accounts, nil
}

func collectHoldings(results *[]surrealdb.QueryResult[[]models.Holding]) []*models.Holding {
	holdings := make([]*models.Holding, 0)
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			holdings = append(holdings, &(*results)[0].Result[i])
		}
	}
	return holdings
}

// Compile-time check
var _ interfaces.HoldingStore = (*HoldingStore)(nil)
