package service

import (
	"testing"

	"rifa-service/internal/apperr"
	"rifa-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePricingNoCoupon(t *testing.T) {
	p, err := ComputePricing(10, 99, nil, "")
	require.NoError(t, err)

	assert.Equal(t, int64(990), p.SubtotalCents)
	assert.Equal(t, int64(0), p.DiscountCents)
	assert.Equal(t, int64(990), p.TotalCents)
	assert.Nil(t, p.Coupon)
}

func TestComputePricingPercentCoupon(t *testing.T) {
	coupons := []models.Coupon{
		{Code: "PROMO10", DiscountType: models.DiscountTypePercent, DiscountValue: 10, Active: true},
	}

	p, err := ComputePricing(10, 99, coupons, "promo10")
	require.NoError(t, err)

	assert.Equal(t, int64(990), p.SubtotalCents)
	assert.Equal(t, int64(99), p.DiscountCents)
	assert.Equal(t, int64(891), p.TotalCents)
	require.NotNil(t, p.Coupon)
	assert.Equal(t, "PROMO10", p.Coupon.Code)
}

func TestComputePricingFixedCoupon(t *testing.T) {
	coupons := []models.Coupon{
		{Code: "MENOS5", DiscountType: models.DiscountTypeFixed, DiscountValue: 500, Active: true},
	}

	p, err := ComputePricing(20, 100, coupons, "MENOS5")
	require.NoError(t, err)

	assert.Equal(t, int64(2000), p.SubtotalCents)
	assert.Equal(t, int64(500), p.DiscountCents)
	assert.Equal(t, int64(1500), p.TotalCents)
}

func TestComputePricingUnknownCoupon(t *testing.T) {
	coupons := []models.Coupon{
		{Code: "PROMO10", DiscountType: models.DiscountTypePercent, DiscountValue: 10, Active: true},
	}

	_, err := ComputePricing(10, 100, coupons, "NOPE")

	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestComputePricingInactiveCoupon(t *testing.T) {
	coupons := []models.Coupon{
		{Code: "OLD", DiscountType: models.DiscountTypePercent, DiscountValue: 10, Active: false},
	}

	_, err := ComputePricing(10, 100, coupons, "OLD")

	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestComputePricingFullDiscountRejected(t *testing.T) {
	coupons := []models.Coupon{
		{Code: "TUDO", DiscountType: models.DiscountTypeFixed, DiscountValue: 10000, Active: true},
	}

	// Discount caps at the subtotal, leaving a zero total, which rejects.
	_, err := ComputePricing(10, 100, coupons, "TUDO")

	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestDiscountCentsRoundsHalfUp(t *testing.T) {
	coupon := &models.Coupon{DiscountType: models.DiscountTypePercent, DiscountValue: 15, Active: true}

	// 15% of 990 = 148.5, rounds to 149.
	assert.Equal(t, int64(149), DiscountCents(990, coupon))
}

func TestDiscountCentsCapsAtSubtotal(t *testing.T) {
	coupon := &models.Coupon{DiscountType: models.DiscountTypeFixed, DiscountValue: 1000, Active: true}

	assert.Equal(t, int64(500), DiscountCents(500, coupon))
}

func TestResolveCouponCaseInsensitive(t *testing.T) {
	coupons := []models.Coupon{
		{Code: "Promo10", DiscountType: models.DiscountTypePercent, DiscountValue: 10, Active: true},
	}

	c, err := ResolveCoupon(coupons, "  pRoMo10 ")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Promo10", c.Code)
}

func TestResolveCouponEmptyCodeIsNoCoupon(t *testing.T) {
	c, err := ResolveCoupon(nil, "")
	require.NoError(t, err)
	assert.Nil(t, c)
}
