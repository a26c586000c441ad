package surrealdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tiller/internal/models"
)

func testHolding(accountID, symbol string, value float64, date time.Time) *models.Holding {
	return &models.Holding{
		AccountID:     accountID,
		Symbol:        symbol,
		AssetType:     models.AssetTypeStock,
		Quantity:      10,
		Price:         value / 10,
		Currency:      "USD",
		ValueUSD:      value,
		ValueBase:     value,
		StatementDate: date,
	}
}

func TestHoldingStore_ReplaceAndGet(t *testing.T) {
	db := testDB(t)
	store := NewHoldingStore(db, testLogger())
	ctx := context.Background()

	date := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	holdings := []*models.Holding{
		testHolding("U1234567", "VTI", 5000, date),
		testHolding("U1234567", "BND", 3000, date),
	}

	require.NoError(t, store.ReplaceForDate(ctx, "U1234567", date, holdings))

	got, err := store.GetForDate(ctx, "U1234567", date)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BND", got[0].Symbol)
	assert.Equal(t, "VTI", got[1].Symbol)
	assert.InDelta(t, 5000, got[1].ValueUSD, 0.001)
}

func TestHoldingStore_ReplaceIsIdempotent(t *testing.T) {
	db := testDB(t)
	store := NewHoldingStore(db, testLogger())
	ctx := context.Background()

	date := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	first := []*models.Holding{
		testHolding("U1234567", "VTI", 5000, date),
		testHolding("U1234567", "BND", 3000, date),
		testHolding("U1234567", "GLD", 1000, date),
	}
	require.NoError(t, store.ReplaceForDate(ctx, "U1234567", date, first))

	// A re-upload with a smaller set must fully supersede the old rows.
	second := []*models.Holding{
		testHolding("U1234567", "VTI", 5200, date),
	}
	require.NoError(t, store.ReplaceForDate(ctx, "U1234567", date, second))

	got, err := store.GetForDate(ctx, "U1234567", date)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "VTI", got[0].Symbol)
	assert.InDelta(t, 5200, got[0].ValueUSD, 0.001)
}

func TestHoldingStore_ReplaceScopedToAccountAndDate(t *testing.T) {
	db := testDB(t)
	store := NewHoldingStore(db, testLogger())
	ctx := context.Background()

	july := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	august := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.ReplaceForDate(ctx, "U1", july, []*models.Holding{testHolding("U1", "VTI", 1000, july)}))
	require.NoError(t, store.ReplaceForDate(ctx, "U2", july, []*models.Holding{testHolding("U2", "BND", 2000, july)}))
	require.NoError(t, store.ReplaceForDate(ctx, "U1", august, []*models.Holding{testHolding("U1", "VTI", 1100, august)}))

	// Replacing U1/July must not touch U2/July or U1/August.
	require.NoError(t, store.ReplaceForDate(ctx, "U1", july, []*models.Holding{testHolding("U1", "GLD", 500, july)}))

	u1July, err := store.GetForDate(ctx, "U1", july)
	require.NoError(t, err)
	require.Len(t, u1July, 1)
	assert.Equal(t, "GLD", u1July[0].Symbol)

	u2July, err := store.GetForDate(ctx, "U2", july)
	require.NoError(t, err)
	require.Len(t, u2July, 1)
	assert.Equal(t, "BND", u2July[0].Symbol)

	u1August, err := store.GetForDate(ctx, "U1", august)
	require.NoError(t, err)
	require.Len(t, u1August, 1)
	assert.Equal(t, "VTI", u1August[0].Symbol)
}

func TestHoldingStore_GetLatest(t *testing.T) {
	db := testDB(t)
	store := NewHoldingStore(db, testLogger())
	ctx := context.Background()

	june := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	july := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.ReplaceForDate(ctx, "U1", june, []*models.Holding{testHolding("U1", "VTI", 900, june)}))
	require.NoError(t, store.ReplaceForDate(ctx, "U1", july, []*models.Holding{testHolding("U1", "VTI", 1000, july)}))

	latest, err := store.GetLatest(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.InDelta(t, 1000, latest[0].ValueUSD, 0.001)

	empty, err := store.GetLatest(ctx, "NOSUCH")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHoldingStore_ListDatesAndAccounts(t *testing.T) {
	db := testDB(t)
	store := NewHoldingStore(db, testLogger())
	ctx := context.Background()

	june := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	july := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.ReplaceForDate(ctx, "U1", june, []*models.Holding{testHolding("U1", "VTI", 900, june)}))
	require.NoError(t, store.ReplaceForDate(ctx, "U1", july, []*models.Holding{testHolding("U1", "VTI", 1000, july)}))
	require.NoError(t, store.ReplaceForDate(ctx, "U2", july, []*models.Holding{testHolding("U2", "BND", 500, july)}))

	dates, err := store.ListDates(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.True(t, dates[0].After(dates[1]), "dates should be newest first")

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, accounts)
}
