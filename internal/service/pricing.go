package service

import (
	"strings"

	"rifa-service/internal/apperr"
	"rifa-service/internal/models"
)

// Pricing is the server-computed breakdown for a deposit. All values are
// centavos; the client-supplied amount is advisory only.
type Pricing struct {
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
	Coupon        *models.Coupon
}

// ResolveCoupon matches a code case-insensitively against the campaign's
// active coupons. Empty code means no coupon; an unmatched code is an
// error rather than a silent no-op.
func ResolveCoupon(coupons []models.Coupon, code string) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	for i := range coupons {
		if coupons[i].Active && strings.EqualFold(coupons[i].Code, code) {
			return &coupons[i], nil
		}
	}
	return nil, apperr.New(apperr.InvalidArgument, "Cupom inválido ou inativo.")
}

// DiscountCents computes the coupon discount, capped at the subtotal.
// Percent values are whole percents; fixed values are centavos. Percent
// amounts round half-up at the cent.
func DiscountCents(subtotalCents int64, coupon *models.Coupon) int64 {
	if coupon == nil || subtotalCents <= 0 {
		return 0
	}
	var discount int64
	switch coupon.DiscountType {
	case models.DiscountTypePercent:
		discount = (subtotalCents*coupon.DiscountValue + 50) / 100
	case models.DiscountTypeFixed:
		discount = coupon.DiscountValue
	default:
		return 0
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	return discount
}

// ComputePricing prices a reservation: quantity x unit price, minus an
// optional coupon. A coupon that matches but yields nothing, or a total
// of zero or less, rejects the purchase.
func ComputePricing(quantity int, unitPriceCents int64, coupons []models.Coupon, couponCode string) (*Pricing, error) {
	subtotal := int64(quantity) * unitPriceCents

	coupon, err := ResolveCoupon(coupons, couponCode)
	if err != nil {
		return nil, err
	}

	discount := DiscountCents(subtotal, coupon)
	if coupon != nil && discount == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "Cupom não gera desconto para este pedido.")
	}

	total := subtotal - discount
	if total < 0 {
		total = 0
	}
	if total <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "Valor final do pedido deve ser maior que zero.")
	}

	return &Pricing{
		SubtotalCents: subtotal,
		DiscountCents: discount,
		TotalCents:    total,
		Coupon:        coupon,
	}, nil
}
