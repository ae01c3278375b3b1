package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rifa-service/config"
	"rifa-service/internal/apperr"
	"rifa-service/internal/broker"
	"rifa-service/internal/models"
	"rifa-service/internal/numberspace"
	"rifa-service/internal/redisclient"
	"rifa-service/internal/store"
	"rifa-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReservationService assigns raffle numbers to buyers. Correctness rides
// on the store transaction: all touched rows are read and written as one
// unit, so two concurrent buyers can never both win the same number.
type ReservationService struct {
	store          *store.Store
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	business       config.BusinessConfig
	logger         *zap.Logger
}

// NewReservationService creates a new reservation service
func NewReservationService(
	store *store.Store,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	business config.BusinessConfig,
) *ReservationService {
	return &ReservationService{
		store:          store,
		redis:          redis,
		eventPublisher: eventPublisher,
		business:       business,
		logger:         util.NamedLogger("reservation"),
	}
}

// ReserveResponse is returned to the buyer after a successful reserve.
type ReserveResponse struct {
	Numbers            []int64 `json:"numbers"`
	ExpiresAtMs        int64   `json:"expiresAtMs"`
	ReservationSeconds int64   `json:"reservationSeconds"`
}

// Reserve validates and executes a reservation for the active campaign,
// replacing the buyer's previous number set.
func (s *ReservationService) Reserve(ctx context.Context, buyerID string, requested []int64) (*ReserveResponse, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReservationLatency.Observe(time.Since(start).Seconds())
	}()

	campaign, err := s.store.GetActiveCampaign(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		util.ReservationsFailedTotal.WithLabelValues("no_campaign").Inc()
		return nil, apperr.New(apperr.FailedPrecondition, "Nenhuma campanha ativa no momento.")
	}

	rng := numberspace.ResolveRange(campaign, s.business.PlatformMaxNumber)
	numbers, err := normalizeRequestedNumbers(requested, rng, purchaseBounds(campaign, s.business))
	if err != nil {
		util.ReservationsFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	ttl := time.Duration(s.business.ReservationTTLSeconds) * time.Second
	now := time.Now()

	reservation, err := s.store.ReserveNumbersTx(ctx, buyerID, campaign.ID, numbers, ttl, now)
	if err != nil {
		if apperr.KindOf(err) == apperr.FailedPrecondition {
			util.ReservationsFailedTotal.WithLabelValues("conflict").Inc()
		} else {
			util.ReservationsFailedTotal.WithLabelValues("internal").Inc()
		}
		return nil, err
	}

	util.ReservationsCreatedTotal.Inc()
	util.NumbersReservedTotal.Add(float64(len(numbers)))
	s.logger.Info("Numbers reserved",
		zap.String("buyer_id", buyerID),
		zap.String("campaign_id", campaign.ID),
		zap.Int("count", len(numbers)))

	if err := s.redis.InvalidateCatalog(ctx, campaign.ID); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}

	event := &models.ReservationCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReservationCreated,
			Timestamp: now,
		},
		UserID:     buyerID,
		CampaignID: campaign.ID,
		Numbers:    numbers,
		ExpiresAt:  reservation.ExpiresAt.UnixMilli(),
	}
	if err := s.eventPublisher.PublishReservationCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish ReservationCreated event", zap.Error(err))
	}

	remaining := int64(time.Until(reservation.ExpiresAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &ReserveResponse{
		Numbers:            numbers,
		ExpiresAtMs:        reservation.ExpiresAt.UnixMilli(),
		ReservationSeconds: remaining,
	}, nil
}

// ActiveReservation returns the buyer's reservation when it has not
// lapsed, nil otherwise.
func (s *ReservationService) ActiveReservation(ctx context.Context, buyerID string, now time.Time) (*models.Reservation, error) {
	reservation, err := s.store.GetReservation(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if reservation == nil || !reservation.ExpiresAt.After(now) {
		return nil, nil
	}
	return reservation, nil
}

type bounds struct {
	min int
	max int
}

// purchaseBounds prefers the per-campaign columns; the config values are
// only the bootstrap defaults.
func purchaseBounds(c *models.Campaign, business config.BusinessConfig) bounds {
	b := bounds{min: business.MinPurchaseQuantity, max: business.MaxPurchaseQuantity}
	if c.MinPurchaseQuantity > 0 {
		b.min = c.MinPurchaseQuantity
	}
	if c.MaxPurchaseQuantity > 0 {
		b.max = c.MaxPurchaseQuantity
	}
	return b
}

// normalizeRequestedNumbers dedupes, sorts and validates the request
// against the campaign range and purchase bounds.
func normalizeRequestedNumbers(requested []int64, rng numberspace.Range, b bounds) ([]int64, error) {
	if len(requested) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "Selecione ao menos um número.")
	}

	seen := make(map[int64]bool, len(requested))
	numbers := make([]int64, 0, len(requested))
	for _, n := range requested {
		if !rng.Contains(n) {
			return nil, apperr.New(apperr.InvalidArgument,
				fmt.Sprintf("Número %d fora do intervalo da campanha.", n))
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	if len(numbers) < b.min {
		return nil, apperr.New(apperr.InvalidArgument,
			fmt.Sprintf("Quantidade mínima de %d números.", b.min))
	}
	if len(numbers) > b.max {
		return nil, apperr.New(apperr.InvalidArgument,
			fmt.Sprintf("Quantidade máxima de %d números.", b.max))
	}
	return numbers, nil
}
