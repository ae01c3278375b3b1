package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"rifa-service/config"
	"rifa-service/internal/apperr"
	"rifa-service/internal/broker"
	"rifa-service/internal/gateway"
	"rifa-service/internal/models"
	"rifa-service/internal/store"
	"rifa-service/internal/util"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// amountToleranceCents is how far a client-supplied advisory amount may
// drift from the computed one before we log it.
const amountToleranceCents = 1

// DepositService turns an active reservation into a PIX charge through
// the gateway, with bounded retries and per-attempt reference ids.
type DepositService struct {
	store          *store.Store
	gateway        *gateway.Client
	reservations   *ReservationService
	eventPublisher *broker.EventPublisher
	business       config.BusinessConfig
	logger         *zap.Logger
}

// NewDepositService creates a new deposit service
func NewDepositService(
	store *store.Store,
	gw *gateway.Client,
	reservations *ReservationService,
	eventPublisher *broker.EventPublisher,
	business config.BusinessConfig,
) *DepositService {
	return &DepositService{
		store:          store,
		gateway:        gw,
		reservations:   reservations,
		eventPublisher: eventPublisher,
		business:       business,
		logger:         util.NamedLogger("deposit"),
	}
}

// CreateDepositRequest is the buyer's checkout request. AmountCents is
// advisory; the server-computed price is authoritative.
type CreateDepositRequest struct {
	PayerName   string `json:"payerName" binding:"required"`
	Phone       string `json:"phone,omitempty"`
	CouponCode  string `json:"couponCode,omitempty"`
	AmountCents int64  `json:"amount,omitempty"`
}

// CreateDepositResponse is returned to the buyer for checkout display.
type CreateDepositResponse struct {
	ExternalID string `json:"externalId"`
	CopyPaste  string `json:"copyPaste"`
	QrCode     string `json:"qrCode"`
	Status     string `json:"status"`
}

// CreateDeposit validates the buyer's reservation, prices it, requests a
// PIX charge and persists the resulting order.
func (s *DepositService) CreateDeposit(ctx context.Context, buyerID string, req *CreateDepositRequest) (*CreateDepositResponse, error) {
	ctx, span := util.StartSpan(ctx, "DepositService.CreateDeposit")
	defer span.End()

	now := time.Now()
	reservation, err := s.reservations.ActiveReservation(ctx, buyerID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	if reservation == nil {
		util.DepositsFailedTotal.WithLabelValues("no_reservation").Inc()
		return nil, apperr.New(apperr.FailedPrecondition, "Nenhuma reserva ativa. Reserve seus números antes de pagar.")
	}

	campaign, err := s.store.GetCampaign(ctx, reservation.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		return nil, apperr.New(apperr.NotFound, "Campanha não encontrada.")
	}

	quantity := len(reservation.Numbers)
	if minQty := purchaseBounds(campaign, s.business).min; quantity < minQty {
		util.DepositsFailedTotal.WithLabelValues("below_minimum").Inc()
		return nil, apperr.New(apperr.FailedPrecondition,
			fmt.Sprintf("Quantidade mínima de %d números para pagamento.", minQty))
	}

	pricing, err := ComputePricing(quantity, campaign.PricePerCotaCents, campaign.Coupons, req.CouponCode)
	if err != nil {
		util.DepositsFailedTotal.WithLabelValues("pricing").Inc()
		return nil, err
	}

	if req.AmountCents > 0 && absInt64(req.AmountCents-pricing.TotalCents) > amountToleranceCents {
		s.logger.Warn("Client amount mismatch, using server price",
			zap.String("buyer_id", buyerID),
			zap.Int64("client_amount", req.AmountCents),
			zap.Int64("computed_amount", pricing.TotalCents))
	}

	token, err := s.gateway.Authenticate(ctx)
	if err != nil {
		util.DepositsFailedTotal.WithLabelValues("auth").Inc()
		return nil, err
	}

	result, attempt, err := s.createGatewayOrder(ctx, buyerID, campaign.ID, token, req, pricing, now)
	if err != nil {
		util.DepositsFailedTotal.WithLabelValues("gateway").Inc()
		return nil, err
	}

	status := models.OrderStatusPending
	if result.Failed {
		status = models.OrderStatusFailed
	}

	qr := result.QrCodeBase64
	if qr == "" && result.CopyPaste != "" {
		qr = encodeQr(result.CopyPaste, s.logger)
	}

	order := &models.Order{
		ExternalID:        result.ExternalID,
		UserID:            buyerID,
		CampaignID:        campaign.ID,
		Type:              models.OrderTypeDeposit,
		Status:            status,
		AmountCents:       pricing.TotalCents,
		SubtotalCents:     pricing.SubtotalCents,
		DiscountCents:     pricing.DiscountCents,
		ReservedNumbers:   reservation.Numbers,
		PixCopyPaste:      nullString(result.CopyPaste),
		PixQrCode:         nullString(qr),
		ClientReferenceID: nullString(clientReference(buyerID, now, attempt)),
		Attempt:           attempt,
		PayerName:         nullString(req.PayerName),
		Phone:             nullString(req.Phone),
	}
	if pricing.Coupon != nil {
		order.CouponCode = nullString(pricing.Coupon.Code)
		order.CouponType = nullString(pricing.Coupon.DiscountType)
		order.CouponValue = sql.NullInt64{Int64: pricing.Coupon.DiscountValue, Valid: true}
	}

	if err := s.store.UpsertOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	util.DepositsCreatedTotal.Inc()
	s.logger.Info("Deposit created",
		zap.String("external_id", order.ExternalID),
		zap.String("buyer_id", buyerID),
		zap.Int64("amount_cents", order.AmountCents),
		zap.String("phone", util.MaskPhone(req.Phone)))

	event := &models.DepositCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeDepositCreated,
			Timestamp: time.Now(),
		},
		ExternalID:  order.ExternalID,
		UserID:      buyerID,
		CampaignID:  campaign.ID,
		AmountCents: order.AmountCents,
		Status:      status,
	}
	if err := s.eventPublisher.PublishDepositCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish DepositCreated event", zap.Error(err))
	}

	return &CreateDepositResponse{
		ExternalID: order.ExternalID,
		CopyPaste:  result.CopyPaste,
		QrCode:     qr,
		Status:     status,
	}, nil
}

// createGatewayOrder attempts order creation with a bounded retry budget.
// Every attempt carries its own client reference so the gateway does not
// flag retries as duplicates, while operators can still trace them back
// to the same logical request.
func (s *DepositService) createGatewayOrder(ctx context.Context, buyerID, campaignID, token string, req *CreateDepositRequest, pricing *Pricing, now time.Time) (*gateway.NewOrderResult, int, error) {
	attempts := s.business.DepositRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := time.Duration(s.business.DepositRetryDelayMs) * time.Millisecond

	var last *gateway.NewOrderResult
	var lastAttempt int
	for attempt := 1; attempt <= attempts; attempt++ {
		util.DepositAttemptsTotal.Inc()
		lastAttempt = attempt

		result, err := s.gateway.NewOrder(ctx, token, gateway.NewOrderRequest{
			PayerName:   req.PayerName,
			AmountCents: pricing.TotalCents,
			ClientRef:   clientReference(buyerID, now, attempt),
			Phone:       req.Phone,
		})
		if err != nil {
			return nil, attempt, err
		}

		if result.ExternalID != "" && result.CopyPaste != "" {
			return result, attempt, nil
		}
		last = result

		s.logger.Warn("Gateway returned incomplete order, retrying",
			zap.Int("attempt", attempt),
			zap.Bool("has_external_id", result.ExternalID != ""),
			zap.Bool("has_pix_payload", result.CopyPaste != ""))

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, attempt, apperr.Wrap(apperr.Internal, "Operação cancelada.", ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	// Terminal missing-payload case: persist a failed snapshot so
	// operators can see what the gateway actually produced.
	if last != nil && last.ExternalID != "" {
		failed := &models.Order{
			ExternalID:      last.ExternalID,
			UserID:          buyerID,
			CampaignID:      campaignID,
			Type:            models.OrderTypeDeposit,
			Status:          models.OrderStatusFailed,
			AmountCents:     pricing.TotalCents,
			SubtotalCents:   pricing.SubtotalCents,
			DiscountCents:   pricing.DiscountCents,
			ReservedNumbers: []int64{},
			Attempt:         lastAttempt,
			PayerName:       nullString(req.PayerName),
		}
		if err := s.store.UpsertOrder(ctx, failed); err != nil {
			s.logger.Error("Failed to persist failed order snapshot", zap.Error(err))
		}
	}

	return nil, lastAttempt, apperr.New(apperr.Internal,
		"Gateway não retornou os dados do PIX. Tente novamente em instantes.")
}

// Withdraw passes a withdrawal request through to the gateway.
func (s *DepositService) Withdraw(ctx context.Context, userID string, amountCents int64, pixKey, pixType string) (map[string]interface{}, error) {
	ctx, span := util.StartSpan(ctx, "DepositService.Withdraw")
	defer span.End()

	if amountCents <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "Valor de saque inválido.")
	}
	if pixKey == "" {
		return nil, apperr.New(apperr.InvalidArgument, "Chave PIX obrigatória.")
	}

	token, err := s.gateway.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.Withdraw(ctx, token, amountCents, pixKey, pixType)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Withdraw requested",
		zap.String("user_id", userID),
		zap.Int64("amount_cents", amountCents),
		zap.String("pix_key", util.MaskSecret(pixKey)))
	return resp, nil
}

// Balance passes a balance query through to the gateway.
func (s *DepositService) Balance(ctx context.Context) (map[string]interface{}, error) {
	token, err := s.gateway.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return s.gateway.Balance(ctx, token)
}

// clientReference derives a unique, traceable per-attempt reference.
func clientReference(buyerID string, now time.Time, attempt int) string {
	return util.ContentHash(buyerID, fmt.Sprintf("%d", now.UnixMilli()), fmt.Sprintf("%d", attempt))[:24]
}

// encodeQr synthesizes a base64 PNG from the copy-paste code. Encode
// failure is non-fatal; checkout proceeds without an image.
func encodeQr(copyPaste string, logger *zap.Logger) string {
	png, err := qrcode.Encode(copyPaste, qrcode.Medium, 256)
	if err != nil {
		logger.Warn("Failed to encode QR image", zap.Error(err))
		return ""
	}
	return base64.StdEncoding.EncodeToString(png)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
