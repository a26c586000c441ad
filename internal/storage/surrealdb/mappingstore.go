package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/tiller/internal/common"
	"github.com/bobmcallan/tiller/internal/interfaces"
	"github.com/bobmcallan/tiller/internal/models"
)

// mappingSelectFields lists the fields selected from the symbol_mapping
// table, aliasing mapping_id to id for struct mapping.
const mappingSelectFields = `mapping_id as id, account_id, holding_symbol, target_symbol,
	match_type, created_at`

// MappingStore implements interfaces.MappingStore using SurrealDB.
type MappingStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewMappingStore creates a new MappingStore.
func NewMappingStore(db *surrealdb.DB, logger *common.Logger) *MappingStore {
	return &MappingStore{db: db, logger: logger}
}

func (s *MappingStore) ListForAccount(ctx context.Context, accountID string) ([]*models.SymbolMapping, error) {
	sql := "SELECT " + mappingSelectFields + " FROM symbol_mapping WHERE account_id = $account_id ORDER BY holding_symbol ASC"
	vars := map[string]any{"account_id": accountID}

	results, err := surrealdb.Query[[]models.SymbolMapping](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbol mappings: %w", err)
	}

	mappings := make([]*models.SymbolMapping, 0)
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			mappings = append(mappings, &(*results)[0].Result[i])
		}
	}
	return mappings, nil
}

func (s *MappingStore) Save(ctx context.Context, mapping *models.SymbolMapping) error {
	if mapping.ID == "" {
		mapping.ID = fmt.Sprintf("map_%s", uuid.New().String()[:8])
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now()
	}
	if mapping.MatchType == "" {
		mapping.MatchType = models.MappingMatchExact
	}

	sql := `UPSERT $rid SET
		mapping_id = $mapping_id, account_id = $account_id,
		holding_symbol = $holding_symbol, target_symbol = $target_symbol,
		match_type = $match_type, created_at = $created_at`
	vars := map[string]any{
		"rid":            surrealmodels.NewRecordID("symbol_mapping", mapping.ID),
		"mapping_id":     mapping.ID,
		"account_id":     mapping.AccountID,
		"holding_symbol": mapping.HoldingSymbol,
		"target_symbol":  mapping.TargetSymbol,
		"match_type":     mapping.MatchType,
		"created_at":     mapping.CreatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save symbol mapping: %w", err)
	}
	return nil
}

func (s *MappingStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.SymbolMapping](ctx, s.db, surrealmodels.NewRecordID("symbol_mapping", id))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete symbol mapping: %w", err)
	}
	return nil
}

// Compile-time check
var _ interfaces.MappingStore = (*MappingStore)(nil)
