package service

import (
	"testing"
	"time"

	"rifa-service/config"
	"rifa-service/internal/apperr"
	"rifa-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func validRequest() *UpsertCampaignRequest {
	return &UpsertCampaignRequest{
		Title:             "Rifa do iPhone",
		Status:            models.CampaignStatusActive,
		NumberStart:       1,
		PricePerCotaCents: 99,
	}
}

func testBusiness() config.BusinessConfig {
	return config.BusinessConfig{
		MinPurchaseQuantity: 10,
		MaxPurchaseQuantity: 300,
		PlatformMaxNumber:   3450000,
	}
}

func TestValidateCampaignRequest(t *testing.T) {
	assert.NoError(t, validateCampaignRequest(validRequest(), testBusiness()))
}

func TestValidateCampaignRequestBadStatus(t *testing.T) {
	req := validRequest()
	req.Status = "deleted"

	err := validateCampaignRequest(req, testBusiness())
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestValidateCampaignRequestZeroPrice(t *testing.T) {
	req := validRequest()
	req.PricePerCotaCents = 0

	err := validateCampaignRequest(req, testBusiness())
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestValidateCampaignRequestInvertedRange(t *testing.T) {
	req := validRequest()
	req.NumberStart = 100
	end := int64(50)
	req.NumberEnd = &end

	err := validateCampaignRequest(req, testBusiness())
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestValidateCampaignRequestEndAbovePlatformMax(t *testing.T) {
	req := validRequest()
	end := int64(9000000)
	req.NumberEnd = &end

	err := validateCampaignRequest(req, testBusiness())
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestValidateCampaignRequestBadCoupon(t *testing.T) {
	req := validRequest()
	req.Coupons = []models.Coupon{
		{Code: "OVER", DiscountType: models.DiscountTypePercent, DiscountValue: 150, Active: true},
	}

	err := validateCampaignRequest(req, testBusiness())
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestValidateCampaignRequestMinAboveMax(t *testing.T) {
	req := validRequest()
	req.MinPurchaseQuantity = 50
	req.MaxPurchaseQuantity = 10

	err := validateCampaignRequest(req, testBusiness())
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestISOWeek(t *testing.T) {
	// 2026-01-01 is a Thursday, ISO week 1.
	assert.Equal(t, "2026-W01", ISOWeek(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))
	// 2024-12-30 is a Monday belonging to 2025's week 1.
	assert.Equal(t, "2025-W01", ISOWeek(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)))
}
