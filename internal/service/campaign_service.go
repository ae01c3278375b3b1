package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rifa-service/config"
	"rifa-service/internal/apperr"
	"rifa-service/internal/models"
	"rifa-service/internal/redisclient"
	"rifa-service/internal/store"
	"rifa-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dashboardDays = 14

// CampaignService covers the admin surface: campaign settings and the
// sales dashboard.
type CampaignService struct {
	store    *store.Store
	redis    *redisclient.Client
	business config.BusinessConfig
	logger   *zap.Logger
}

// NewCampaignService creates a new campaign service
func NewCampaignService(store *store.Store, redis *redisclient.Client, business config.BusinessConfig) *CampaignService {
	return &CampaignService{
		store:    store,
		redis:    redis,
		business: business,
		logger:   util.NamedLogger("campaign"),
	}
}

// UpsertCampaignRequest is the admin campaign settings payload. Omitted
// purchase bounds fall back to the platform defaults.
type UpsertCampaignRequest struct {
	ID                  string          `json:"id,omitempty"`
	Title               string          `json:"title" binding:"required"`
	Description         string          `json:"description,omitempty"`
	Status              string          `json:"status" binding:"required"`
	NumberStart         int64           `json:"numberStart"`
	NumberEnd           *int64          `json:"numberEnd,omitempty"`
	TotalNumbers        *int64          `json:"totalNumbers,omitempty"`
	PricePerCotaCents   int64           `json:"pricePerCotaCents" binding:"required"`
	MinPurchaseQuantity int             `json:"minPurchaseQuantity,omitempty"`
	MaxPurchaseQuantity int             `json:"maxPurchaseQuantity,omitempty"`
	StartsAt            *time.Time      `json:"startsAt,omitempty"`
	EndsAt              *time.Time      `json:"endsAt,omitempty"`
	Coupons             []models.Coupon `json:"coupons,omitempty"`
}

// UpsertCampaignSettings validates and persists campaign settings on
// behalf of an admin, auditing the change.
func (s *CampaignService) UpsertCampaignSettings(ctx context.Context, adminID string, req *UpsertCampaignRequest) (*models.Campaign, error) {
	ctx, span := util.StartSpan(ctx, "CampaignService.UpsertCampaignSettings")
	defer span.End()

	if err := validateCampaignRequest(req, s.business); err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		ID:                  req.ID,
		Title:               req.Title,
		Description:         req.Description,
		Status:              req.Status,
		NumberStart:         req.NumberStart,
		PricePerCotaCents:   req.PricePerCotaCents,
		MinPurchaseQuantity: req.MinPurchaseQuantity,
		MaxPurchaseQuantity: req.MaxPurchaseQuantity,
		Coupons:             req.Coupons,
	}
	if campaign.ID == "" {
		campaign.ID = uuid.New().String()
	}
	if campaign.MinPurchaseQuantity <= 0 {
		campaign.MinPurchaseQuantity = s.business.MinPurchaseQuantity
	}
	if campaign.MaxPurchaseQuantity <= 0 {
		campaign.MaxPurchaseQuantity = s.business.MaxPurchaseQuantity
	}
	if req.NumberEnd != nil {
		campaign.NumberEnd = sql.NullInt64{Int64: *req.NumberEnd, Valid: true}
	}
	if req.TotalNumbers != nil {
		campaign.TotalNumbers = sql.NullInt64{Int64: *req.TotalNumbers, Valid: true}
	}
	if req.StartsAt != nil {
		campaign.StartsAt = sql.NullTime{Time: *req.StartsAt, Valid: true}
	}
	if req.EndsAt != nil {
		campaign.EndsAt = sql.NullTime{Time: *req.EndsAt, Valid: true}
	}

	stored, err := s.store.UpsertCampaign(ctx, campaign)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert campaign: %w", err)
	}

	if err := s.redis.InvalidateCatalog(ctx, stored.ID); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}

	auditID := fmt.Sprintf("%s:%d", stored.ID, stored.UpdatedAt.UnixMilli())
	if err := s.store.AppendAuditLog(ctx, "campaign_updated", auditID, adminID, map[string]interface{}{
		"status":               stored.Status,
		"price_per_cota_cents": stored.PricePerCotaCents,
	}); err != nil {
		s.logger.Warn("Failed to write campaign audit log", zap.Error(err))
	}

	s.logger.Info("Campaign settings updated",
		zap.String("campaign_id", stored.ID),
		zap.String("admin_id", adminID),
		zap.String("status", stored.Status))
	return stored, nil
}

// DashboardResponse aggregates everything the admin dashboard renders in
// one round trip.
type DashboardResponse struct {
	Totals    *models.SalesMetrics  `json:"totals"`
	Daily     []models.DailyMetrics `json:"daily"`
	TopBuyers []models.TopBuyer     `json:"topBuyers"`
	Week      string                `json:"week"`
}

// DashboardSummary returns the global totals, the recent daily series
// and the current ISO week's top buyers.
func (s *CampaignService) DashboardSummary(ctx context.Context) (*DashboardResponse, error) {
	ctx, span := util.StartSpan(ctx, "CampaignService.DashboardSummary")
	defer span.End()

	totals, err := s.store.GetSalesMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics: %w", err)
	}

	daily, err := s.store.GetDailyMetrics(ctx, dashboardDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily metrics: %w", err)
	}

	week := ISOWeek(time.Now())
	topBuyers, err := s.store.GetTopBuyers(ctx, week, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to load top buyers: %w", err)
	}

	return &DashboardResponse{
		Totals:    totals,
		Daily:     daily,
		TopBuyers: topBuyers,
		Week:      week,
	}, nil
}

// ISOWeek formats a timestamp as its ISO week key, e.g. "2026-W35".
func ISOWeek(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func validateCampaignRequest(req *UpsertCampaignRequest, business config.BusinessConfig) error {
	switch req.Status {
	case models.CampaignStatusActive, models.CampaignStatusScheduled,
		models.CampaignStatusPaused, models.CampaignStatusFinished:
	default:
		return apperr.New(apperr.InvalidArgument, "Status de campanha inválido.")
	}

	if req.PricePerCotaCents <= 0 {
		return apperr.New(apperr.InvalidArgument, "Preço por cota deve ser maior que zero.")
	}
	if req.NumberStart < 0 {
		return apperr.New(apperr.InvalidArgument, "Início do intervalo não pode ser negativo.")
	}
	if req.NumberEnd != nil && *req.NumberEnd < req.NumberStart {
		return apperr.New(apperr.InvalidArgument, "Fim do intervalo não pode ser menor que o início.")
	}
	if req.NumberEnd != nil && *req.NumberEnd > business.PlatformMaxNumber {
		return apperr.New(apperr.InvalidArgument,
			fmt.Sprintf("Fim do intervalo excede o limite da plataforma (%d).", business.PlatformMaxNumber))
	}
	if req.TotalNumbers != nil && *req.TotalNumbers <= 0 {
		return apperr.New(apperr.InvalidArgument, "Total de números deve ser maior que zero.")
	}
	if req.MinPurchaseQuantity < 0 || req.MaxPurchaseQuantity < 0 {
		return apperr.New(apperr.InvalidArgument, "Limites de compra não podem ser negativos.")
	}
	if req.MinPurchaseQuantity > 0 && req.MaxPurchaseQuantity > 0 &&
		req.MinPurchaseQuantity > req.MaxPurchaseQuantity {
		return apperr.New(apperr.InvalidArgument, "Quantidade mínima maior que a máxima.")
	}

	for _, c := range req.Coupons {
		if c.Code == "" {
			return apperr.New(apperr.InvalidArgument, "Cupom sem código.")
		}
		if c.DiscountType != models.DiscountTypePercent && c.DiscountType != models.DiscountTypeFixed {
			return apperr.New(apperr.InvalidArgument,
				fmt.Sprintf("Tipo de desconto inválido no cupom %s.", c.Code))
		}
		if c.DiscountValue <= 0 {
			return apperr.New(apperr.InvalidArgument,
				fmt.Sprintf("Valor de desconto inválido no cupom %s.", c.Code))
		}
		if c.DiscountType == models.DiscountTypePercent && c.DiscountValue > 100 {
			return apperr.New(apperr.InvalidArgument,
				fmt.Sprintf("Desconto percentual acima de 100%% no cupom %s.", c.Code))
		}
	}

	return nil
}
