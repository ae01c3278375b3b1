package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"rifa-service/internal/apperr"
	"rifa-service/internal/models"
	"rifa-service/internal/numberspace"

	"github.com/lib/pq"
)

// GetNumberStates retrieves the stored rows for a set of numbers.
// Numbers without a row are simply absent from the result.
func (s *Store) GetNumberStates(ctx context.Context, campaignID string, numbers []int64) (map[int64]*models.NumberState, error) {
	if len(numbers) == 0 {
		return map[int64]*models.NumberState{}, nil
	}

	var rows []models.NumberState
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM number_states WHERE campaign_id = $1 AND number = ANY($2)",
		campaignID, pq.Array(numbers))
	if err != nil {
		return nil, err
	}

	out := make(map[int64]*models.NumberState, len(rows))
	for i := range rows {
		out[rows[i].Number] = &rows[i]
	}
	return out, nil
}

// GetNumberStatesRange retrieves stored rows inside [from, to].
func (s *Store) GetNumberStatesRange(ctx context.Context, campaignID string, from, to int64) (map[int64]*models.NumberState, error) {
	var rows []models.NumberState
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM number_states WHERE campaign_id = $1 AND number BETWEEN $2 AND $3",
		campaignID, from, to)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]*models.NumberState, len(rows))
	for i := range rows {
		out[rows[i].Number] = &rows[i]
	}
	return out, nil
}

// GetReservation retrieves a buyer's reservation, nil when absent.
func (s *Store) GetReservation(ctx context.Context, userID string) (*models.Reservation, error) {
	var r models.Reservation
	err := s.db.GetContext(ctx, &r,
		"SELECT * FROM number_reservations WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ReserveNumbersTx atomically assigns the requested numbers to the buyer,
// releasing previously held numbers that were dropped from the set. The
// whole operation fails if any requested number is paid or held by a
// different buyer whose reservation has not lapsed.
func (s *Store) ReserveNumbersTx(ctx context.Context, buyerID, campaignID string, requested []int64, ttl time.Duration, now time.Time) (*models.Reservation, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock the buyer's reservation row first so two reserve calls from
	// the same buyer serialize on it.
	var prev models.Reservation
	hasPrev := true
	err = tx.GetContext(ctx, &prev,
		"SELECT * FROM number_reservations WHERE user_id = $1 FOR UPDATE", buyerID)
	if err == sql.ErrNoRows {
		hasPrev = false
	} else if err != nil {
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}

	requestedSet := make(map[int64]bool, len(requested))
	for _, n := range requested {
		requestedSet[n] = true
	}

	// Lock every touched number row in ascending order. Rows that do not
	// exist yet cannot be locked; the guarded upsert below is what keeps
	// concurrent inserts from stealing them.
	lockSet := append([]int64{}, requested...)
	if hasPrev && prev.CampaignID == campaignID {
		for _, n := range prev.Numbers {
			if !requestedSet[n] {
				lockSet = append(lockSet, n)
			}
		}
	}
	sort.Slice(lockSet, func(i, j int) bool { return lockSet[i] < lockSet[j] })

	var lockedRows []models.NumberState
	err = tx.SelectContext(ctx, &lockedRows, `
		SELECT * FROM number_states
		WHERE campaign_id = $1 AND number = ANY($2)
		ORDER BY number
		FOR UPDATE`,
		campaignID, pq.Array(lockSet))
	if err != nil {
		return nil, fmt.Errorf("failed to lock number states: %w", err)
	}

	locked := make(map[int64]*models.NumberState, len(lockedRows))
	for i := range lockedRows {
		locked[lockedRows[i].Number] = &lockedRows[i]
	}

	for _, n := range requested {
		if !numberspace.AvailableFor(locked[n], buyerID, now) {
			return nil, apperr.New(apperr.FailedPrecondition,
				fmt.Sprintf("Número %d não está disponível.", n))
		}
	}

	// Release dropped numbers still held by this buyer. Deleting the row
	// restores the implicit "available" state; paid rows are untouched.
	if hasPrev && prev.CampaignID == campaignID {
		for _, n := range prev.Numbers {
			if requestedSet[n] {
				continue
			}
			rec := locked[n]
			view := numberspace.Derive(rec, now)
			if view.Status == models.NumberStatusReserved && view.ReservedBy == buyerID {
				if _, err := tx.ExecContext(ctx,
					"DELETE FROM number_states WHERE campaign_id = $1 AND number = $2",
					campaignID, n); err != nil {
					return nil, fmt.Errorf("failed to release number %d: %w", n, err)
				}
			} else if rec != nil && view.Status == models.NumberStatusAvailable {
				// Lapsed hold: clear the stale fields now that a writer
				// is touching the row anyway.
				if _, err := tx.ExecContext(ctx,
					"DELETE FROM number_states WHERE campaign_id = $1 AND number = $2 AND status <> $3",
					campaignID, n, models.NumberStatusPaid); err != nil {
					return nil, fmt.Errorf("failed to clear lapsed number %d: %w", n, err)
				}
			}
		}
	}

	expiresAt := now.Add(ttl)
	for _, n := range requested {
		// The WHERE guard re-checks availability at write time: a row
		// inserted by a concurrent transaction after our lock query will
		// conflict here instead of being silently overwritten.
		res, err := tx.ExecContext(ctx, `
			INSERT INTO number_states (campaign_id, number, status, reserved_by, reservation_expires_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (campaign_id, number) DO UPDATE SET
				status = EXCLUDED.status,
				reserved_by = EXCLUDED.reserved_by,
				reservation_expires_at = EXCLUDED.reservation_expires_at,
				owner_uid = NULL,
				order_id = NULL,
				updated_at = NOW()
			WHERE number_states.status <> $6
			  AND (number_states.reserved_by IS NULL
			       OR number_states.reserved_by = $4
			       OR number_states.reservation_expires_at <= $7)`,
			campaignID, n, models.NumberStatusReserved, buyerID, expiresAt,
			models.NumberStatusPaid, now)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve number %d: %w", n, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, apperr.New(apperr.FailedPrecondition,
				fmt.Sprintf("Número %d não está disponível.", n))
		}
	}

	var reservation models.Reservation
	err = tx.GetContext(ctx, &reservation, `
		INSERT INTO number_reservations (user_id, campaign_id, numbers, status, expires_at)
		VALUES ($1, $2, $3, 'active', $4)
		ON CONFLICT (user_id) DO UPDATE SET
			campaign_id = EXCLUDED.campaign_id,
			numbers = EXCLUDED.numbers,
			status = 'active',
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
		RETURNING *`,
		buyerID, campaignID, pq.Array(requested), expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to write reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &reservation, nil
}

// SweepExpired actively clears lapsed holds so expiry becomes visible in
// storage, complementing the lazy derivation readers already apply.
// Returns the number of reservations removed.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM number_states
		WHERE status = $1 AND reservation_expires_at <= $2`,
		models.NumberStatusReserved, now); err != nil {
		return 0, fmt.Errorf("failed to sweep number states: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM number_reservations WHERE expires_at <= $1", now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep reservations: %w", err)
	}
	swept, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return swept, nil
}
