package target

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/tiller/internal/common"
	"github.com/bobmcallan/tiller/internal/interfaces"
	"github.com/bobmcallan/tiller/internal/models"
)

const (
	// lookupWorkers bounds concurrent name lookups against the external
	// search API.
	lookupWorkers = 4
	lookupTimeout = 5 * time.Second
)

// Service imports, enriches, and commits target allocation sets.
type Service struct {
	storage interfaces.StorageManager
	lookup  interfaces.LookupClient
	logger  *common.Logger
}

// NewService creates a new target import service. The lookup client may
// be nil; EnrichNames becomes a no-op.
func NewService(storage interfaces.StorageManager, lookup interfaces.LookupClient, logger *common.Logger) *Service {
	return &Service{storage: storage, lookup: lookup, logger: logger}
}

// EnrichNames fills in missing instrument names by ticker, falling back
// to ISIN. Lookups run in a bounded worker pool with a per-call timeout;
// a failed lookup leaves the name empty and never aborts the batch.
func (s *Service) EnrichNames(ctx context.Context, targets []*models.TargetAllocation) {
	if s.lookup == nil {
		return
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, lookupWorkers)
	for _, t := range targets {
		if t.Name != "" || (t.Symbol == "" && t.ISIN == "") {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(t *models.TargetAllocation) {
			defer wg.Done()
			defer func() { <-sem }()
			t.Name = s.lookupName(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (s *Service) lookupName(ctx context.Context, t *models.TargetAllocation) string {
	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	if t.Symbol != "" {
		name, err := s.lookup.LookupNameFromTicker(lookupCtx, t.Symbol)
		if err == nil && name != "" {
			return name
		}
		if err != nil {
			s.logger.Debug().Err(err).Str("symbol", t.Symbol).Msg("Ticker name lookup failed")
		}
	}
	if t.ISIN != "" {
		name, err := s.lookup.LookupNameFromISIN(lookupCtx, t.ISIN)
		if err == nil && name != "" {
			return name
		}
		if err != nil {
			s.logger.Debug().Err(err).Str("isin", t.ISIN).Msg("ISIN name lookup failed")
		}
	}
	return ""
}

// Commit replaces the entire target set. The prior set is archived to
// the history log before deletion; the returned batch id identifies the
// archived set.
func (s *Service) Commit(ctx context.Context, targets []*models.TargetAllocation) (string, error) {
	batchID, err := s.storage.TargetStore().ReplaceAll(ctx, targets)
	if err != nil {
		return "", fmt.Errorf("failed to replace target set: %w", err)
	}

	s.logger.Info().
		Int("targets", len(targets)).
		Str("archived_batch", batchID).
		Msg("Committed target set")

	return batchID, nil
}

// Compile-time check
var _ interfaces.TargetService = (*Service)(nil)
