// Package interfaces defines service contracts for Tiller
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/tiller/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	HoldingStore() HoldingStore
	TargetStore() TargetStore
	MappingStore() MappingStore

	// Lifecycle
	Close() error
}

// HoldingStore persists holdings snapshots. A statement upload replaces all
// holdings for the account+date atomically — all-or-nothing from the
// caller's perspective.
type HoldingStore interface {
	// ReplaceForDate deletes any existing holdings for the account+date and
	// inserts the given set in a single transaction.
	ReplaceForDate(ctx context.Context, accountID string, date time.Time, holdings []*models.Holding) error

	// GetForDate returns the holdings snapshot for an account+date.
	GetForDate(ctx context.Context, accountID string, date time.Time) ([]*models.Holding, error)

	// GetLatest returns the most recent snapshot for an account.
	GetLatest(ctx context.Context, accountID string) ([]*models.Holding, error)

	// ListDates returns the statement dates available for an account,
	// newest first.
	ListDates(ctx context.Context, accountID string) ([]time.Time, error)

	// ListAccounts returns all account ids with stored holdings.
	ListAccounts(ctx context.Context) ([]string, error)
}

// TargetStore persists the target allocation set. Bulk replacement archives
// the entire prior set to an append-only history log before deletion — old
// percentages are never silently discarded.
type TargetStore interface {
	List(ctx context.Context) ([]*models.TargetAllocation, error)
	Get(ctx context.Context, id string) (*models.TargetAllocation, error)
	Save(ctx context.Context, target *models.TargetAllocation) error
	Delete(ctx context.Context, id string) error

	// ReplaceAll archives the current set, then replaces it with targets,
	// atomically. Returns the history batch id of the archived set.
	ReplaceAll(ctx context.Context, targets []*models.TargetAllocation) (string, error)

	// History returns archived target rows, newest batch first.
	History(ctx context.Context) ([]*models.TargetHistoryEntry, error)
}

// MappingStore persists per-account symbol mapping overrides.
type MappingStore interface {
	ListForAccount(ctx context.Context, accountID string) ([]*models.SymbolMapping, error)
	Save(ctx context.Context, mapping *models.SymbolMapping) error
	Delete(ctx context.Context, id string) error
}
