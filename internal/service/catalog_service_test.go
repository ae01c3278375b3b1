package service

import (
	"testing"

	"rifa-service/internal/numberspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampWindow(t *testing.T) {
	rng := numberspace.Range{Start: 1, End: 100, Total: 100}

	start, end := clampWindow(rng, 1, 60)
	assert.Equal(t, int64(1), start)
	assert.Equal(t, int64(60), end)

	// Start before the range clamps up.
	start, end = clampWindow(rng, -5, 60)
	assert.Equal(t, int64(1), start)
	assert.Equal(t, int64(60), end)

	// Page overrunning the range clamps the end.
	start, end = clampWindow(rng, 80, 60)
	assert.Equal(t, int64(80), start)
	assert.Equal(t, int64(100), end)

	// Start beyond the range collapses to the last number.
	start, end = clampWindow(rng, 500, 60)
	assert.Equal(t, int64(100), start)
	assert.Equal(t, int64(100), end)
}

func TestWindowCursors(t *testing.T) {
	rng := numberspace.Range{Start: 1, End: 100, Total: 100}

	prev, next := windowCursors(rng, 1, 60, 60)
	assert.Nil(t, prev)
	require.NotNil(t, next)
	assert.Equal(t, int64(61), *next)

	prev, next = windowCursors(rng, 61, 100, 60)
	require.NotNil(t, prev)
	assert.Equal(t, int64(1), *prev)
	assert.Nil(t, next)

	// Previous never steps before the range start.
	prev, _ = windowCursors(rng, 31, 90, 60)
	require.NotNil(t, prev)
	assert.Equal(t, int64(1), *prev)
}

func TestRandomBatchSize(t *testing.T) {
	assert.Equal(t, int64(40), randomBatchSize(1))
	assert.Equal(t, int64(40), randomBatchSize(10))
	assert.Equal(t, int64(80), randomBatchSize(20))
	assert.Equal(t, int64(200), randomBatchSize(100))
	assert.Equal(t, int64(200), randomBatchSize(1000))
}
