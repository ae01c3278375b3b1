package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"rifa-service/internal/models"
	"rifa-service/internal/numberspace"

	"github.com/lib/pq"
)

// UpsertOrder persists an order with merge semantics: a retried deposit
// attempt for the same external id updates the mutable columns only.
func (s *Store) UpsertOrder(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (
			external_id, user_id, campaign_id, type, status, amount_cents,
			subtotal_cents, discount_cents, coupon_code, coupon_type, coupon_value,
			reserved_numbers, pix_copy_paste, pix_qr_code, client_reference_id,
			attempt, payer_name, phone
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (external_id) DO UPDATE SET
			status = EXCLUDED.status,
			amount_cents = EXCLUDED.amount_cents,
			pix_copy_paste = EXCLUDED.pix_copy_paste,
			pix_qr_code = EXCLUDED.pix_qr_code,
			client_reference_id = EXCLUDED.client_reference_id,
			attempt = EXCLUDED.attempt,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, o, query,
		o.ExternalID, o.UserID, o.CampaignID, o.Type, o.Status, o.AmountCents,
		o.SubtotalCents, o.DiscountCents, o.CouponCode, o.CouponType, o.CouponValue,
		o.ReservedNumbers, o.PixCopyPaste, o.PixQrCode, o.ClientReferenceID,
		o.Attempt, o.PayerName, o.Phone)
}

// GetOrder retrieves an order by external id, nil when absent.
func (s *Store) GetOrder(ctx context.Context, externalID string) (*models.Order, error) {
	var o models.Order
	err := s.db.GetContext(ctx, &o, "SELECT * FROM orders WHERE external_id = $1", externalID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ReconcileResult is the outcome of one webhook reconciliation pass.
type ReconcileResult struct {
	Order           *models.Order
	EventCreated    bool
	ShouldApplyPaid bool
	PreviousStatus  string
}

// ReconcileWebhookTx ingests one webhook delivery: records the event
// create-once, applies the monotonic status transition, snapshots the
// payload onto the order, and claims the one-time paid side effects for
// the given claimant when they are due. Returns nil when the order is
// unknown.
func (s *Store) ReconcileWebhookTx(ctx context.Context, externalID, contentHash string, payload json.RawMessage, incomingStatus, claimant string) (*ReconcileResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE external_id = $1 FOR UPDATE", externalID)
	if err == sql.ErrNoRows {
		return nil, tx.Commit()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO webhook_events (order_id, content_hash, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, content_hash) DO NOTHING`,
		externalID, contentHash, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}
	inserted, _ := res.RowsAffected()

	result := &ReconcileResult{
		EventCreated:   inserted > 0,
		PreviousStatus: order.Status,
	}

	newStatus := models.ResolveTransition(order.Status, incomingStatus)
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, webhook_snapshot = $2, updated_at = NOW()
		WHERE external_id = $3`,
		newStatus, payload, externalID); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	order.Status = newStatus

	// Claim the paid side effects only when they have never been applied
	// and no other delivery is mid-flight. The claim is what keeps two
	// concurrent deliveries from double-running them.
	if newStatus == models.OrderStatusPaid &&
		order.Type == models.OrderTypeDeposit &&
		!order.PaidBusinessAppliedAt.Valid &&
		!order.PaidBusinessProcessingBy.Valid {
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET paid_business_processing_by = $1, updated_at = NOW()
			WHERE external_id = $2`,
			claimant, externalID); err != nil {
			return nil, fmt.Errorf("failed to set processing claim: %w", err)
		}
		result.ShouldApplyPaid = true
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result.Order = &order
	return result, nil
}

// ClearPaidClaim releases the processing claim, recording either the
// applied timestamp or a capped error so a later delivery can retry.
func (s *Store) ClearPaidClaim(ctx context.Context, externalID, claimant string, applied bool, errMsg string) error {
	if applied {
		_, err := s.db.ExecContext(ctx, `
			UPDATE orders SET
				paid_business_processing_by = NULL,
				paid_business_applied_at = NOW(),
				processing_error = NULL,
				updated_at = NOW()
			WHERE external_id = $1 AND paid_business_processing_by = $2`,
			externalID, claimant)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			paid_business_processing_by = NULL,
			processing_error = $3,
			updated_at = NOW()
		WHERE external_id = $1 AND paid_business_processing_by = $2`,
		externalID, claimant, errMsg)
	return err
}

// ApplyPaidDepositTx executes the one-time paid side effects in a single
// transaction: payment upsert, create-once ledger row gating the metric
// increments, audit log, number transitions to pago, and reservation
// deletion when the paid set matches. Returns how many numbers were
// newly marked sold.
func (s *Store) ApplyPaidDepositTx(ctx context.Context, order *models.Order, now time.Time) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments (external_id, user_id, campaign_id, amount_cents, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO UPDATE SET
			status = EXCLUDED.status,
			amount_cents = EXCLUDED.amount_cents`,
		order.ExternalID, order.UserID, order.CampaignID, order.AmountCents,
		models.OrderStatusPaid, now); err != nil {
		return 0, fmt.Errorf("failed to upsert payment: %w", err)
	}

	// The ledger row is the idempotency boundary: metrics are only
	// incremented on the delivery that first creates it.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sales_ledger (external_id, user_id, campaign_id, amount_cents, numbers_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_id) DO NOTHING`,
		order.ExternalID, order.UserID, order.CampaignID, order.AmountCents,
		len(order.ReservedNumbers))
	if err != nil {
		return 0, fmt.Errorf("failed to create ledger entry: %w", err)
	}
	ledgerCreated, _ := res.RowsAffected()

	if ledgerCreated > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE sales_metrics SET
				total_revenue_cents = total_revenue_cents + $1,
				paid_orders = paid_orders + 1,
				sold_numbers = sold_numbers + $2,
				updated_at = NOW()
			WHERE id = 1`,
			order.AmountCents, len(order.ReservedNumbers)); err != nil {
			return 0, fmt.Errorf("failed to update metrics: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sales_metrics_daily (day, total_revenue_cents, paid_orders, sold_numbers)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (day) DO UPDATE SET
				total_revenue_cents = sales_metrics_daily.total_revenue_cents + EXCLUDED.total_revenue_cents,
				paid_orders = sales_metrics_daily.paid_orders + 1,
				sold_numbers = sales_metrics_daily.sold_numbers + EXCLUDED.sold_numbers,
				updated_at = NOW()`,
			now.UTC().Truncate(24*time.Hour), order.AmountCents,
			len(order.ReservedNumbers)); err != nil {
			return 0, fmt.Errorf("failed to update daily metrics: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (event, external_id, user_id, detail)
		VALUES ('order_paid', $1, $2, $3)
		ON CONFLICT (event, external_id) DO NOTHING`,
		order.ExternalID, order.UserID,
		fmt.Sprintf(`{"amount_cents": %d, "numbers": %d}`, order.AmountCents, len(order.ReservedNumbers))); err != nil {
		return 0, fmt.Errorf("failed to write audit log: %w", err)
	}

	var lockedRows []models.NumberState
	if err := tx.SelectContext(ctx, &lockedRows, `
		SELECT * FROM number_states
		WHERE campaign_id = $1 AND number = ANY($2)
		ORDER BY number
		FOR UPDATE`,
		order.CampaignID, pq.Array([]int64(order.ReservedNumbers))); err != nil {
		return 0, fmt.Errorf("failed to lock number states: %w", err)
	}
	locked := make(map[int64]*models.NumberState, len(lockedRows))
	for i := range lockedRows {
		locked[lockedRows[i].Number] = &lockedRows[i]
	}

	sold := 0
	for _, n := range order.ReservedNumbers {
		view := numberspace.Derive(locked[n], now)
		if view.Status == models.NumberStatusPaid {
			continue
		}
		// Defensive: a number lapsed and re-reserved by someone else is
		// left alone rather than sold out from under them.
		if view.Status == models.NumberStatusReserved && view.ReservedBy != order.UserID {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO number_states (campaign_id, number, status, owner_uid, order_id, paid_at, reserved_by, reservation_expires_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL, NOW())
			ON CONFLICT (campaign_id, number) DO UPDATE SET
				status = EXCLUDED.status,
				owner_uid = EXCLUDED.owner_uid,
				order_id = EXCLUDED.order_id,
				paid_at = EXCLUDED.paid_at,
				reserved_by = NULL,
				reservation_expires_at = NULL,
				updated_at = NOW()
			WHERE number_states.status <> $3`,
			order.CampaignID, n, models.NumberStatusPaid, order.UserID,
			order.ExternalID, now); err != nil {
			return 0, fmt.Errorf("failed to mark number %d sold: %w", n, err)
		}
		sold++
	}

	// Consume the reservation only if it still matches this order's
	// snapshot exactly; the buyer may have started a newer one since.
	var reservation models.Reservation
	err = tx.GetContext(ctx, &reservation,
		"SELECT * FROM number_reservations WHERE user_id = $1 FOR UPDATE", order.UserID)
	if err == nil {
		if sameNumberSet(reservation.Numbers, order.ReservedNumbers) {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM number_reservations WHERE user_id = $1", order.UserID); err != nil {
				return 0, fmt.Errorf("failed to consume reservation: %w", err)
			}
		}
	} else if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to lock reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return sold, nil
}

// AppendInfraction records an infraction-status payload independent of
// order processing.
func (s *Store) AppendInfraction(ctx context.Context, externalID, status string, payload json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO infractions (external_id, status, payload) VALUES ($1, $2, $3)",
		externalID, status, payload)
	return err
}

// GetSalesMetrics retrieves the global aggregate.
func (s *Store) GetSalesMetrics(ctx context.Context) (*models.SalesMetrics, error) {
	var m models.SalesMetrics
	err := s.db.GetContext(ctx, &m,
		"SELECT total_revenue_cents, paid_orders, sold_numbers, updated_at FROM sales_metrics WHERE id = 1")
	if err == sql.ErrNoRows {
		return &models.SalesMetrics{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetDailyMetrics retrieves the last n days of the aggregate series.
func (s *Store) GetDailyMetrics(ctx context.Context, days int) ([]models.DailyMetrics, error) {
	var rows []models.DailyMetrics
	err := s.db.SelectContext(ctx, &rows, `
		SELECT day, total_revenue_cents, paid_orders, sold_numbers
		FROM sales_metrics_daily
		WHERE day >= CURRENT_DATE - $1::int
		ORDER BY day`,
		days)
	return rows, err
}

// UpsertTopBuyer accumulates a paid order into the weekly aggregation.
func (s *Store) UpsertTopBuyer(ctx context.Context, userID, week, campaignID string, amountCents int64, numbers int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO top_buyers (user_id, week, campaign_id, amount_cents, numbers, orders)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (user_id, week, campaign_id) DO UPDATE SET
			amount_cents = top_buyers.amount_cents + EXCLUDED.amount_cents,
			numbers = top_buyers.numbers + EXCLUDED.numbers,
			orders = top_buyers.orders + 1,
			updated_at = NOW()`,
		userID, week, campaignID, amountCents, numbers)
	return err
}

// GetTopBuyers lists the biggest buyers of one ISO week.
func (s *Store) GetTopBuyers(ctx context.Context, week string, limit int) ([]models.TopBuyer, error) {
	var rows []models.TopBuyer
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, week, campaign_id, amount_cents, numbers, orders
		FROM top_buyers
		WHERE week = $1
		ORDER BY amount_cents DESC
		LIMIT $2`,
		week, limit)
	return rows, err
}

func sameNumberSet(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int64]int, len(a))
	for _, n := range a {
		seen[n]++
	}
	for _, n := range b {
		if seen[n] == 0 {
			return false
		}
		seen[n]--
	}
	return true
}
