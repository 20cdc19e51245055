package service

import (
	"fmt"

	"checkout-service/internal/models"
)

// ShippingRule is the flat-fee + free-shipping-threshold rule applied
// by the pricing engine. Amounts in rupees.
type ShippingRule struct {
	FlatFee       int64
	FreeThreshold int64
}

// PricingEngine computes a PriceBreakdown from a cart snapshot. Pure
// and deterministic: no I/O, no clock, no state.
type PricingEngine struct {
	shipping     ShippingRule
	codSurcharge int64
}

// NewPricingEngine creates a pricing engine with the given shipping
// rule and COD surcharge.
func NewPricingEngine(shipping ShippingRule, codSurcharge int64) *PricingEngine {
	return &PricingEngine{shipping: shipping, codSurcharge: codSurcharge}
}

// Subtotal sums the cart lines after validating them.
func (pe *PricingEngine) Subtotal(cart *models.CartSnapshot) (int64, error) {
	if cart == nil || len(cart.Items) == 0 {
		return 0, validationErr("cart is empty")
	}

	var subtotal int64
	for i, item := range cart.Items {
		if item.Quantity <= 0 {
			return 0, validationErr(fmt.Sprintf("line %d: quantity must be positive", i))
		}
		if item.UnitPrice < 0 {
			return 0, validationErr(fmt.Sprintf("line %d: unit price must not be negative", i))
		}
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	return subtotal, nil
}

// Price computes the full breakdown for a cart, an already-computed
// coupon discount, and the selected payment method.
// Total = Subtotal + ShippingFee + CODSurcharge - CouponDiscount, never negative.
func (pe *PricingEngine) Price(cart *models.CartSnapshot, couponDiscount int64, method string) (*models.PriceBreakdown, error) {
	subtotal, err := pe.Subtotal(cart)
	if err != nil {
		return nil, err
	}

	if couponDiscount < 0 {
		return nil, validationErr("coupon discount must not be negative")
	}

	var shippingFee int64
	if subtotal < pe.shipping.FreeThreshold {
		shippingFee = pe.shipping.FlatFee
	}

	var surcharge int64
	if method == models.PaymentMethodCOD {
		surcharge = pe.codSurcharge
	}

	if couponDiscount > subtotal {
		couponDiscount = subtotal
	}

	total := subtotal + shippingFee + surcharge - couponDiscount
	if total < 0 {
		total = 0
	}

	return &models.PriceBreakdown{
		Subtotal:       subtotal,
		ShippingFee:    shippingFee,
		CouponDiscount: couponDiscount,
		CODSurcharge:   surcharge,
		Total:          total,
	}, nil
}
