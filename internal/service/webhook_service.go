package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"rifa-service/internal/broker"
	"rifa-service/internal/gateway"
	"rifa-service/internal/models"
	"rifa-service/internal/redisclient"
	"rifa-service/internal/store"
	"rifa-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	webhookSeenTTL     = 24 * time.Hour
	processingErrorMax = 500
)

// WebhookService reconciles gateway payment notifications against
// stored orders. Deliveries are at-least-once, unordered and sometimes
// duplicated, so every decision is re-derived from the order row inside
// a transaction rather than trusted from the payload.
type WebhookService struct {
	store          *store.Store
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	webhookToken   string
	logger         *zap.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	store *store.Store,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	webhookToken string,
) *WebhookService {
	return &WebhookService{
		store:          store,
		redis:          redis,
		eventPublisher: eventPublisher,
		webhookToken:   webhookToken,
		logger:         util.NamedLogger("webhook"),
	}
}

// TokenValid checks the shared webhook token in constant time.
func (s *WebhookService) TokenValid(token string) bool {
	if s.webhookToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.webhookToken)) == 1
}

// Process ingests one webhook delivery. The caller acknowledges the
// delivery regardless of outcome; errors here mean an internal failure
// worth logging, never a payload the provider should resend.
func (s *WebhookService) Process(ctx context.Context, rawBody []byte) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.Process")
	defer span.End()

	var payload map[string]interface{}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		util.WebhooksReceivedTotal.WithLabelValues("malformed").Inc()
		s.logger.Warn("Malformed webhook payload", zap.Error(err))
		return nil
	}

	externalID := gateway.ExtractExternalID(payload)
	if externalID == "" {
		util.WebhooksReceivedTotal.WithLabelValues("no_external_id").Inc()
		s.logger.Warn("Webhook without external id",
			zap.Strings("keys", util.TopLevelKeys(payload)))
		return nil
	}

	providerStatus := gateway.ExtractStatus(payload)

	// Infraction notices are operational alerts, not order transitions.
	if isInfraction(payload, providerStatus) {
		util.WebhooksReceivedTotal.WithLabelValues("infraction").Inc()
		if err := s.store.AppendInfraction(ctx, externalID, providerStatus, rawBody); err != nil {
			return fmt.Errorf("failed to record infraction: %w", err)
		}
		s.logger.Warn("Infraction notice received",
			zap.String("external_id", externalID),
			zap.String("provider_status", providerStatus))
		return nil
	}

	incoming := gateway.MapProviderStatus(providerStatus)
	hash := util.ContentHash(externalID, util.CanonicalJSON(payload))

	if seen, err := s.redis.MarkWebhookSeen(ctx, hash, webhookSeenTTL); err != nil {
		s.logger.Warn("Webhook dedup cache unavailable", zap.Error(err))
	} else if seen {
		// Advisory only. The create-once event row decides for real.
		s.logger.Info("Webhook content seen before",
			zap.String("external_id", externalID))
	}

	claimant := uuid.New().String()
	result, err := s.store.ReconcileWebhookTx(ctx, externalID, hash, rawBody, incoming, claimant)
	if err != nil {
		util.WebhooksReceivedTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to reconcile webhook: %w", err)
	}
	if result == nil {
		util.WebhooksReceivedTotal.WithLabelValues("unknown_order").Inc()
		s.logger.Warn("Webhook for unknown order", zap.String("external_id", externalID))
		return nil
	}

	outcome := "processed"
	if !result.EventCreated {
		outcome = "duplicate"
	}
	util.WebhooksReceivedTotal.WithLabelValues(outcome).Inc()

	s.logger.Info("Webhook reconciled",
		zap.String("external_id", externalID),
		zap.String("provider_status", providerStatus),
		zap.String("previous_status", result.PreviousStatus),
		zap.String("status", result.Order.Status),
		zap.Bool("duplicate", !result.EventCreated))

	if result.ShouldApplyPaid {
		if err := s.applyPaid(ctx, result.Order, claimant); err != nil {
			return err
		}
	}

	if result.Order.Status == models.OrderStatusFailed && result.PreviousStatus != models.OrderStatusFailed {
		s.publishOrderFailed(ctx, result.Order, providerStatus)
	}

	return nil
}

// applyPaid runs the one-time paid side effects under the claim taken by
// the reconcile transaction, then releases it either way.
func (s *WebhookService) applyPaid(ctx context.Context, order *models.Order, claimant string) error {
	now := time.Now()
	sold, err := s.store.ApplyPaidDepositTx(ctx, order, now)
	if err != nil {
		util.PaidSideEffectsTotal.WithLabelValues("error").Inc()
		if clearErr := s.store.ClearPaidClaim(ctx, order.ExternalID, claimant, false,
			util.Truncate(err.Error(), processingErrorMax)); clearErr != nil {
			s.logger.Error("Failed to release paid claim after error",
				zap.String("external_id", order.ExternalID), zap.Error(clearErr))
		}
		return fmt.Errorf("failed to apply paid side effects: %w", err)
	}

	if err := s.store.ClearPaidClaim(ctx, order.ExternalID, claimant, true, ""); err != nil {
		s.logger.Error("Failed to mark paid side effects applied",
			zap.String("external_id", order.ExternalID), zap.Error(err))
	}

	util.PaidSideEffectsTotal.WithLabelValues("applied").Inc()
	util.OrdersPaidTotal.Inc()
	util.NumbersSoldTotal.Add(float64(sold))
	s.logger.Info("Order paid",
		zap.String("external_id", order.ExternalID),
		zap.String("user_id", order.UserID),
		zap.Int64("amount_cents", order.AmountCents),
		zap.Int("numbers_sold", sold))

	event := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaid,
			Timestamp: now,
		},
		ExternalID:   order.ExternalID,
		UserID:       order.UserID,
		CampaignID:   order.CampaignID,
		AmountCents:  order.AmountCents,
		NumbersCount: len(order.ReservedNumbers),
	}
	if err := s.eventPublisher.PublishOrderPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}
	return nil
}

func (s *WebhookService) publishOrderFailed(ctx context.Context, order *models.Order, reason string) {
	event := &models.OrderFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderFailed,
			Timestamp: time.Now(),
		},
		ExternalID: order.ExternalID,
		UserID:     order.UserID,
		CampaignID: order.CampaignID,
		Reason:     reason,
	}
	if err := s.eventPublisher.PublishOrderFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderFailed event", zap.Error(err))
	}
}

// isInfraction detects gateway dispute notices, which arrive on the same
// endpoint as payment updates.
func isInfraction(payload map[string]interface{}, providerStatus string) bool {
	if strings.Contains(providerStatus, "infraction") {
		return true
	}
	if _, ok := payload["infraction"]; ok {
		return true
	}
	if _, ok := payload["infraction_id"]; ok {
		return true
	}
	return false
}
