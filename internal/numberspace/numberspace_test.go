package numberspace

import (
	"database/sql"
	"testing"
	"time"

	"rifa-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestResolveRangeExplicitEnd(t *testing.T) {
	c := &models.Campaign{
		NumberStart:  1,
		NumberEnd:    sql.NullInt64{Int64: 100000, Valid: true},
		TotalNumbers: sql.NullInt64{Int64: 50, Valid: true},
	}

	r := ResolveRange(c, 3450000)

	// number_end wins over total_numbers
	assert.Equal(t, int64(1), r.Start)
	assert.Equal(t, int64(100000), r.End)
	assert.Equal(t, int64(100000), r.Total)
}

func TestResolveRangeFromTotal(t *testing.T) {
	c := &models.Campaign{
		NumberStart:  100,
		TotalNumbers: sql.NullInt64{Int64: 50, Valid: true},
	}

	r := ResolveRange(c, 3450000)

	assert.Equal(t, int64(100), r.Start)
	assert.Equal(t, int64(149), r.End)
	assert.Equal(t, int64(50), r.Total)
}

func TestResolveRangePlatformDefault(t *testing.T) {
	c := &models.Campaign{}

	r := ResolveRange(c, 3450000)

	assert.Equal(t, int64(1), r.Start)
	assert.Equal(t, int64(3450000), r.End)
	assert.Equal(t, int64(3450000), r.Total)
}

func TestResolveRangeInvertedClampsTotal(t *testing.T) {
	c := &models.Campaign{
		NumberStart: 500,
		NumberEnd:   sql.NullInt64{Int64: 10, Valid: true},
	}

	r := ResolveRange(c, 3450000)

	assert.Equal(t, int64(0), r.Total)
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: 10, End: 20, Total: 11}

	assert.True(t, r.Contains(10))
	assert.True(t, r.Contains(20))
	assert.False(t, r.Contains(9))
	assert.False(t, r.Contains(21))
}

func TestDeriveNilRecordIsAvailable(t *testing.T) {
	v := Derive(nil, time.Now())
	assert.Equal(t, models.NumberStatusAvailable, v.Status)
}

func TestDerivePaidIsTerminal(t *testing.T) {
	now := time.Now()
	rec := &models.NumberState{
		Number:   7,
		Status:   models.NumberStatusPaid,
		OwnerUID: sql.NullString{String: "buyer-1", Valid: true},
		// Stale reservation fields must not matter once paid.
		ReservedBy:           sql.NullString{String: "buyer-2", Valid: true},
		ReservationExpiresAt: sql.NullTime{Time: now.Add(time.Hour), Valid: true},
	}

	v := Derive(rec, now)

	assert.Equal(t, models.NumberStatusPaid, v.Status)
	assert.Equal(t, "buyer-1", v.ReservedBy)
}

func TestDeriveActiveReservation(t *testing.T) {
	now := time.Now()
	expiry := now.Add(10 * time.Minute)
	rec := &models.NumberState{
		Number:               42,
		Status:               models.NumberStatusReserved,
		ReservedBy:           sql.NullString{String: "buyer-1", Valid: true},
		ReservationExpiresAt: sql.NullTime{Time: expiry, Valid: true},
	}

	v := Derive(rec, now)

	assert.Equal(t, models.NumberStatusReserved, v.Status)
	assert.Equal(t, "buyer-1", v.ReservedBy)
	assert.Equal(t, expiry.UnixMilli(), v.ReservationExpiresAt)
}

func TestDeriveLapsedReservationIsAvailable(t *testing.T) {
	now := time.Now()
	rec := &models.NumberState{
		Number:               42,
		Status:               models.NumberStatusReserved,
		ReservedBy:           sql.NullString{String: "buyer-1", Valid: true},
		ReservationExpiresAt: sql.NullTime{Time: now.Add(-time.Second), Valid: true},
	}

	v := Derive(rec, now)

	assert.Equal(t, models.NumberStatusAvailable, v.Status)
	assert.Empty(t, v.ReservedBy)
}

func TestAvailableFor(t *testing.T) {
	now := time.Now()
	held := &models.NumberState{
		Status:               models.NumberStatusReserved,
		ReservedBy:           sql.NullString{String: "buyer-1", Valid: true},
		ReservationExpiresAt: sql.NullTime{Time: now.Add(time.Minute), Valid: true},
	}
	paid := &models.NumberState{
		Status:   models.NumberStatusPaid,
		OwnerUID: sql.NullString{String: "buyer-1", Valid: true},
	}

	assert.True(t, AvailableFor(nil, "buyer-1", now))
	assert.True(t, AvailableFor(held, "buyer-1", now))
	assert.False(t, AvailableFor(held, "buyer-2", now))
	assert.False(t, AvailableFor(paid, "buyer-1", now))
}
