package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Campaign statuses
const (
	CampaignStatusActive    = "active"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusPaused    = "paused"
	CampaignStatusFinished  = "finished"
)

// Number statuses as shown to buyers
const (
	NumberStatusAvailable = "disponivel"
	NumberStatusReserved  = "reservado"
	NumberStatusPaid      = "pago"
)

// Order statuses (monotonic: paid is terminal, failed cannot go back to pending)
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

// Order types
const (
	OrderTypeDeposit  = "deposit"
	OrderTypeWithdraw = "withdraw"
)

// Coupon discount types
const (
	DiscountTypePercent = "percent"
	DiscountTypeFixed   = "fixed"
)

// Coupon is a campaign-scoped discount code. Percent values are whole
// percents (10 == 10%), fixed values are centavos.
type Coupon struct {
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"`
	DiscountValue int64  `json:"discount_value"`
	Active        bool   `json:"active"`
}

// CouponList is the jsonb coupons column on campaigns.
type CouponList []Coupon

func (c *CouponList) Scan(src interface{}) error {
	if src == nil {
		*c = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		s, ok := src.(string)
		if !ok {
			return sql.ErrNoRows
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, c)
}

// Campaign defines one raffle: its number range, unit price and coupons.
// Campaigns are never hard-deleted.
type Campaign struct {
	ID                  string         `db:"id" json:"id"`
	Title               string         `db:"title" json:"title"`
	Description         string         `db:"description" json:"description"`
	Status              string         `db:"status" json:"status"`
	NumberStart         int64          `db:"number_start" json:"number_start"`
	NumberEnd           sql.NullInt64  `db:"number_end" json:"number_end"`
	TotalNumbers        sql.NullInt64  `db:"total_numbers" json:"total_numbers"`
	PricePerCotaCents   int64          `db:"price_per_cota_cents" json:"price_per_cota_cents"`
	MinPurchaseQuantity int            `db:"min_purchase_quantity" json:"min_purchase_quantity"`
	MaxPurchaseQuantity int            `db:"max_purchase_quantity" json:"max_purchase_quantity"`
	StartsAt            sql.NullTime   `db:"starts_at" json:"starts_at"`
	EndsAt              sql.NullTime   `db:"ends_at" json:"ends_at"`
	Coupons             CouponList     `db:"coupons" json:"coupons"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// NumberState is the stored record for one raffle number. A number with
// no row is available; derived status is computed by numberspace.Derive,
// never read from the raw row.
type NumberState struct {
	CampaignID           string         `db:"campaign_id" json:"campaign_id"`
	Number               int64          `db:"number" json:"number"`
	Status               string         `db:"status" json:"status"`
	ReservedBy           sql.NullString `db:"reserved_by" json:"reserved_by"`
	ReservationExpiresAt sql.NullTime   `db:"reservation_expires_at" json:"reservation_expires_at"`
	OwnerUID             sql.NullString `db:"owner_uid" json:"owner_uid"`
	OrderID              sql.NullString `db:"order_id" json:"order_id"`
	PaidAt               sql.NullTime   `db:"paid_at" json:"paid_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// Reservation holds a buyer's active number set. One row per buyer;
// a new reserve call replaces the set but keeps created_at.
type Reservation struct {
	UserID     string        `db:"user_id" json:"user_id"`
	CampaignID string        `db:"campaign_id" json:"campaign_id"`
	Numbers    pq.Int64Array `db:"numbers" json:"numbers"`
	Status     string        `db:"status" json:"status"`
	ExpiresAt  time.Time     `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// Order is keyed by the gateway's own transaction id. Created by the
// deposit flow; afterwards only the webhook reconciler writes it.
type Order struct {
	ExternalID               string          `db:"external_id" json:"external_id"`
	UserID                   string          `db:"user_id" json:"user_id"`
	CampaignID               string          `db:"campaign_id" json:"campaign_id"`
	Type                     string          `db:"type" json:"type"`
	Status                   string          `db:"status" json:"status"`
	AmountCents              int64           `db:"amount_cents" json:"amount_cents"`
	SubtotalCents            int64           `db:"subtotal_cents" json:"subtotal_cents"`
	DiscountCents            int64           `db:"discount_cents" json:"discount_cents"`
	CouponCode               sql.NullString  `db:"coupon_code" json:"coupon_code"`
	CouponType               sql.NullString  `db:"coupon_type" json:"coupon_type"`
	CouponValue              sql.NullInt64   `db:"coupon_value" json:"coupon_value"`
	ReservedNumbers          pq.Int64Array   `db:"reserved_numbers" json:"reserved_numbers"`
	PixCopyPaste             sql.NullString  `db:"pix_copy_paste" json:"pix_copy_paste"`
	PixQrCode                sql.NullString  `db:"pix_qr_code" json:"pix_qr_code"`
	ClientReferenceID        sql.NullString  `db:"client_reference_id" json:"client_reference_id"`
	Attempt                  int             `db:"attempt" json:"attempt"`
	PayerName                sql.NullString  `db:"payer_name" json:"payer_name"`
	Phone                    sql.NullString  `db:"phone" json:"phone"`
	PaidBusinessProcessingBy sql.NullString  `db:"paid_business_processing_by" json:"-"`
	PaidBusinessAppliedAt    sql.NullTime    `db:"paid_business_applied_at" json:"paid_business_applied_at"`
	ProcessingError          sql.NullString  `db:"processing_error" json:"-"`
	WebhookSnapshot          json.RawMessage `db:"webhook_snapshot" json:"-"`
	CreatedAt                time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time       `db:"updated_at" json:"updated_at"`
}

// WebhookEvent is an append-only record of one distinct inbound payload.
// Decisions are re-derived from the order; this exists for audit and
// duplicate detection.
type WebhookEvent struct {
	OrderID     string          `db:"order_id"`
	ContentHash string          `db:"content_hash"`
	Payload     json.RawMessage `db:"payload"`
	ReceivedAt  time.Time       `db:"received_at"`
}

// Payment is the paid-side record written by the reconciler.
type Payment struct {
	ExternalID  string    `db:"external_id" json:"external_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	CampaignID  string    `db:"campaign_id" json:"campaign_id"`
	AmountCents int64     `db:"amount_cents" json:"amount_cents"`
	Status      string    `db:"status" json:"status"`
	PaidAt      time.Time `db:"paid_at" json:"paid_at"`
}

// SalesLedgerEntry is the create-once row gating metrics increments.
type SalesLedgerEntry struct {
	ExternalID   string    `db:"external_id"`
	UserID       string    `db:"user_id"`
	CampaignID   string    `db:"campaign_id"`
	AmountCents  int64     `db:"amount_cents"`
	NumbersCount int       `db:"numbers_count"`
	CreatedAt    time.Time `db:"created_at"`
}

// SalesMetrics is the global running aggregate.
type SalesMetrics struct {
	TotalRevenueCents int64     `db:"total_revenue_cents" json:"total_revenue_cents"`
	PaidOrders        int64     `db:"paid_orders" json:"paid_orders"`
	SoldNumbers       int64     `db:"sold_numbers" json:"sold_numbers"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// DailyMetrics is one day of the aggregate series.
type DailyMetrics struct {
	Day               time.Time `db:"day" json:"day"`
	TotalRevenueCents int64     `db:"total_revenue_cents" json:"total_revenue_cents"`
	PaidOrders        int64     `db:"paid_orders" json:"paid_orders"`
	SoldNumbers       int64     `db:"sold_numbers" json:"sold_numbers"`
}

// TopBuyer is the weekly aggregation maintained by the events worker,
// used for the top-buyer draw.
type TopBuyer struct {
	UserID      string `db:"user_id" json:"user_id"`
	Week        string `db:"week" json:"week"`
	CampaignID  string `db:"campaign_id" json:"campaign_id"`
	AmountCents int64  `db:"amount_cents" json:"amount_cents"`
	Numbers     int64  `db:"numbers" json:"numbers"`
	Orders      int64  `db:"orders" json:"orders"`
}

// Infraction is an append-only log of gateway infraction notices.
type Infraction struct {
	ID         int64           `db:"id"`
	ExternalID string          `db:"external_id"`
	Status     string          `db:"status"`
	Payload    json.RawMessage `db:"payload"`
	CreatedAt  time.Time       `db:"created_at"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
