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

// targetSelectFields lists the fields selected from the targets table,
// aliasing target_id to id for struct mapping.
const targetSelectFields = `target_id as id, asset_type, asset_category, symbol, alt_symbols,
	isin, name, target_pct, bucket, created_at, updated_at`

// TargetStore implements interfaces.TargetStore using SurrealDB.
//
// Rows carry a position field recording their ordinal within the committed
// set. List returns targets in that order, which downstream matching uses
// as the tie-break between equally specific targets.
type TargetStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewTargetStore creates a new TargetStore.
func NewTargetStore(db *surrealdb.DB, logger *common.Logger) *TargetStore {
	return &TargetStore{db: db, logger: logger}
}

func (s *TargetStore) List(ctx context.Context) ([]*models.TargetAllocation, error) {
	sql := "SELECT " + targetSelectFields + " FROM targets ORDER BY position ASC, created_at ASC"

	results, err := surrealdb.Query[[]models.TargetAllocation](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	targets := make([]*models.TargetAllocation, 0)
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			targets = append(targets, &(*results)[0].Result[i])
		}
	}
	return targets, nil
}

func (s *TargetStore) Get(ctx context.Context, id string) (*models.TargetAllocation, error) {
	sql := "SELECT " + targetSelectFields + " FROM $rid"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID("targets", id),
	}

	results, err := surrealdb.Query[[]models.TargetAllocation](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get target: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

func (s *TargetStore) Save(ctx context.Context, target *models.TargetAllocation) error {
	if target.ID == "" {
		target.ID = fmt.Sprintf("tgt_%s", uuid.New().String()[:8])
	}
	now := time.Now()
	if target.CreatedAt.IsZero() {
		target.CreatedAt = now
	}
	target.UpdatedAt = now

	// Manually added targets go after any committed set.
	count, err := s.count(ctx)
	if err != nil {
		return err
	}

	sql := `UPSERT $rid SET
		target_id = $target_id, asset_type = $asset_type, asset_category = $asset_category,
		symbol = $symbol, alt_symbols = $alt_symbols, isin = $isin, name = $name,
		target_pct = $target_pct, bucket = $bucket, position = $position,
		created_at = $created_at, updated_at = $updated_at`
	vars := map[string]any{
		"rid":            surrealmodels.NewRecordID("targets", target.ID),
		"target_id":      target.ID,
		"asset_type":     target.AssetType,
		"asset_category": target.AssetCategory,
		"symbol":         target.Symbol,
		"alt_symbols":    target.AltSymbols,
		"isin":           target.ISIN,
		"name":           target.Name,
		"target_pct":     target.TargetPct,
		"bucket":         target.Bucket,
		"position":       count,
		"created_at":     target.CreatedAt,
		"updated_at":     target.UpdatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save target: %w", err)
	}
	return nil
}

func (s *TargetStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.TargetAllocation](ctx, s.db, surrealmodels.NewRecordID("targets", id))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete target: %w", err)
	}
	return nil
}

// ReplaceAll archives the current set to target_history under a fresh
// batch id, deletes it, and inserts the new set — all in one transaction.
// The archive happens before the delete so a prior set is never lost.
func (s *TargetStore) ReplaceAll(ctx context.Context, targets []*models.TargetAllocation) (string, error) {
	batchID := uuid.New().String()
	now := time.Now()

	rows := make([]map[string]any, 0, len(targets))
	for i, t := range targets {
		if t.ID == "" {
			t.ID = fmt.Sprintf("tgt_%s", uuid.New().String()[:8])
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
		rows = append(rows, map[string]any{
			"target_id":      t.ID,
			"asset_type":     t.AssetType,
			"asset_category": t.AssetCategory,
			"symbol":         t.Symbol,
			"alt_symbols":    t.AltSymbols,
			"isin":           t.ISIN,
			"name":           t.Name,
			"target_pct":     t.TargetPct,
			"bucket":         t.Bucket,
			"position":       i,
			"created_at":     t.CreatedAt,
			"updated_at":     t.UpdatedAt,
		})
	}

	sql := `BEGIN TRANSACTION;
		FOR $t IN (SELECT ` + targetSelectFields + ` FROM targets ORDER BY position ASC) {
			CREATE target_history CONTENT { batch_id: $batch_id, archived_at: $archived_at, target: $t };
		};
		DELETE targets;
		INSERT INTO targets $rows;
		COMMIT TRANSACTION`
	vars := map[string]any{
		"batch_id":    batchID,
		"archived_at": now,
		"rows":        rows,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return "", fmt.Errorf("failed to replace target set: %w", err)
	}

	s.logger.Info().
		Str("batch", batchID).
		Int("targets", len(targets)).
		Msg("Replaced target set")

	return batchID, nil
}

// History returns archived target rows, newest batch first.
func (s *TargetStore) History(ctx context.Context) ([]*models.TargetHistoryEntry, error) {
	sql := "SELECT batch_id, archived_at, target FROM target_history ORDER BY archived_at DESC, batch_id DESC"

	results, err := surrealdb.Query[[]models.TargetHistoryEntry](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list target history: %w", err)
	}

	entries := make([]*models.TargetHistoryEntry, 0)
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			entries = append(entries, &(*results)[0].Result[i])
		}
	}
	return entries, nil
}

func (s *TargetStore) count(ctx context.Context) (int, error) {
	type countResult struct {
		Cnt int `json:"cnt"`
	}
	sql := "SELECT count() AS cnt FROM targets GROUP ALL"
	results, err := surrealdb.Query[[]countResult](ctx, s.db, sql, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count targets: %w", err)
	}
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return (*results)[0].Result[0].Cnt, nil
	}
	return 0, nil
}

// Compile-time check
var _ interfaces.TargetStore = (*TargetStore)(nil)
