package models

import "time"

// Event types
const (
	EventTypeReservationCreated = "RESERVATION_CREATED"
	EventTypeDepositCreated     = "DEPOSIT_CREATED"
	EventTypeOrderPaid          = "ORDER_PAID"
	EventTypeOrderFailed        = "ORDER_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ReservationCreatedEvent published when a buyer reserves numbers
type ReservationCreatedEvent struct {
	BaseEvent
	UserID     string  `json:"user_id"`
	CampaignID string  `json:"campaign_id"`
	Numbers    []int64 `json:"numbers"`
	ExpiresAt  int64   `json:"expires_at_ms"`
}

// DepositCreatedEvent published when a PIX deposit order is created
type DepositCreatedEvent struct {
	BaseEvent
	ExternalID  string `json:"external_id"`
	UserID      string `json:"user_id"`
	CampaignID  string `json:"campaign_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
}

// OrderPaidEvent published after a webhook confirms payment
type OrderPaidEvent struct {
	BaseEvent
	ExternalID   string `json:"external_id"`
	UserID       string `json:"user_id"`
	CampaignID   string `json:"campaign_id"`
	AmountCents  int64  `json:"amount_cents"`
	NumbersCount int    `json:"numbers_count"`
}

// OrderFailedEvent published when a webhook marks an order failed
type OrderFailedEvent struct {
	BaseEvent
	ExternalID string `json:"external_id"`
	UserID     string `json:"user_id"`
	CampaignID string `json:"campaign_id"`
	Reason     string `json:"reason"`
}
