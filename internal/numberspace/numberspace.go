// Package numberspace maps a campaign onto its contiguous number range
// and derives the live status of individual numbers. Every reader of
// number state goes through Derive; raw stored status is never trusted
// because reservations lapse without a write.
package numberspace

import (
	"time"

	"rifa-service/internal/models"
)

// Range is the resolved integer range of a campaign.
type Range struct {
	Start int64
	End   int64
	Total int64
}

// Contains reports whether n falls inside the range.
func (r Range) Contains(n int64) bool {
	return n >= r.Start && n <= r.End
}

// ResolveRange derives the campaign range: explicit number_end wins,
// else number_start + total_numbers - 1, else the platform maximum.
func ResolveRange(c *models.Campaign, platformMax int64) Range {
	start := c.NumberStart
	if start <= 0 {
		start = 1
	}

	var end int64
	switch {
	case c.NumberEnd.Valid && c.NumberEnd.Int64 > 0:
		end = c.NumberEnd.Int64
	case c.TotalNumbers.Valid && c.TotalNumbers.Int64 > 0:
		end = start + c.TotalNumbers.Int64 - 1
	default:
		end = platformMax
	}

	total := end - start + 1
	if total < 0 {
		total = 0
	}
	return Range{Start: start, End: end, Total: total}
}

// View is the derived, time-aware status of one number.
type View struct {
	Number               int64  `json:"number"`
	Status               string `json:"status"`
	ReservedBy           string `json:"reserved_by,omitempty"`
	ReservationExpiresAt int64  `json:"reservation_expires_at_ms,omitempty"`
}

// Derive computes the live status of a number from its stored record.
// A nil record is available. A reservation whose expiry has passed reads
// as available even though storage is untouched (lazy expiry).
func Derive(rec *models.NumberState, now time.Time) View {
	if rec == nil {
		return View{Status: models.NumberStatusAvailable}
	}

	v := View{Number: rec.Number}

	if rec.Status == models.NumberStatusPaid {
		v.Status = models.NumberStatusPaid
		if rec.OwnerUID.Valid {
			v.ReservedBy = rec.OwnerUID.String
		}
		return v
	}

	if rec.ReservedBy.Valid && rec.ReservationExpiresAt.Valid && rec.ReservationExpiresAt.Time.After(now) {
		v.Status = models.NumberStatusReserved
		v.ReservedBy = rec.ReservedBy.String
		v.ReservationExpiresAt = rec.ReservationExpiresAt.Time.UnixMilli()
		return v
	}

	v.Status = models.NumberStatusAvailable
	return v
}

// AvailableFor reports whether the number can be taken by buyer at now:
// either truly available, or held by this same buyer.
func AvailableFor(rec *models.NumberState, buyerID string, now time.Time) bool {
	v := Derive(rec, now)
	switch v.Status {
	case models.NumberStatusAvailable:
		return true
	case models.NumberStatusReserved:
		return v.ReservedBy == buyerID
	default:
		return false
	}
}
