package service

import (
	"testing"

	"rifa-service/config"
	"rifa-service/internal/apperr"
	"rifa-service/internal/models"
	"rifa-service/internal/numberspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBounds() bounds {
	return bounds{min: 2, max: 5}
}

func TestNormalizeRequestedNumbers(t *testing.T) {
	rng := numberspace.Range{Start: 1, End: 1000, Total: 1000}

	numbers, err := normalizeRequestedNumbers([]int64{7, 3, 7, 500}, rng, testBounds())
	require.NoError(t, err)

	// Deduped and sorted.
	assert.Equal(t, []int64{3, 7, 500}, numbers)
}

func TestNormalizeRequestedNumbersOutOfRange(t *testing.T) {
	rng := numberspace.Range{Start: 1, End: 100, Total: 100}

	_, err := normalizeRequestedNumbers([]int64{1, 101}, rng, testBounds())

	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestNormalizeRequestedNumbersEmpty(t *testing.T) {
	rng := numberspace.Range{Start: 1, End: 100, Total: 100}

	_, err := normalizeRequestedNumbers(nil, rng, testBounds())

	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestNormalizeRequestedNumbersBelowMinimum(t *testing.T) {
	rng := numberspace.Range{Start: 1, End: 100, Total: 100}

	// Duplicates collapse before the minimum check.
	_, err := normalizeRequestedNumbers([]int64{5, 5, 5}, rng, testBounds())

	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestNormalizeRequestedNumbersAboveMaximum(t *testing.T) {
	rng := numberspace.Range{Start: 1, End: 100, Total: 100}

	_, err := normalizeRequestedNumbers([]int64{1, 2, 3, 4, 5, 6}, rng, testBounds())

	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestPurchaseBoundsCampaignWins(t *testing.T) {
	business := config.BusinessConfig{MinPurchaseQuantity: 10, MaxPurchaseQuantity: 300}
	campaign := &models.Campaign{MinPurchaseQuantity: 5, MaxPurchaseQuantity: 50}

	b := purchaseBounds(campaign, business)

	assert.Equal(t, 5, b.min)
	assert.Equal(t, 50, b.max)
}

func TestPurchaseBoundsFallsBackToConfig(t *testing.T) {
	business := config.BusinessConfig{MinPurchaseQuantity: 10, MaxPurchaseQuantity: 300}
	campaign := &models.Campaign{}

	b := purchaseBounds(campaign, business)

	assert.Equal(t, 10, b.min)
	assert.Equal(t, 300, b.max)
}

func TestReserveConcurrency(t *testing.T) {
	// Exercising the transaction under contention needs a real database.
	t.Skip("Integration test - requires database")
}
