// Package pricing computes the cost breakdown of a kit order.
//
// Compute is pure: the preview shown before payment and the amount persisted
// with the order come from the same call with the same input, so they agree
// to the cent.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/safar/kitrunner/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Input is everything the engine needs. DeliveryCost is ignored when the
// event has a fixed price.
type Input struct {
	FixedPrice       *decimal.Decimal
	ExtraKitPrice    decimal.Decimal
	DonationRequired bool
	DonationAmount   *decimal.Decimal
	KitQuantity      int
	DeliveryCost     decimal.Decimal
	Coupon           *Coupon
}

// Coupon is a resolved discount. Unresolved codes never reach the engine.
type Coupon struct {
	Code    string
	Percent decimal.Decimal
}

type Breakdown struct {
	FixedPrice        bool            `json:"fixedPrice"`
	Delivery          decimal.Decimal `json:"delivery"`
	Donation          decimal.Decimal `json:"donation"`
	Base              decimal.Decimal `json:"base"`
	ExtraKits         int             `json:"extraKits"`
	ExtraKitUnitPrice decimal.Decimal `json:"extraKitUnitPrice"`
	ExtraKitsCost     decimal.Decimal `json:"extraKitsCost"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	CouponCode        string          `json:"couponCode,omitempty"`
	DiscountPercent   decimal.Decimal `json:"discountPercent"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
}

// InputForEvent fills the event-derived part of Input.
func InputForEvent(e *models.Event, kitQuantity int, deliveryCost decimal.Decimal) Input {
	return Input{
		FixedPrice:       e.FixedPrice,
		ExtraKitPrice:    e.ExtraKitPrice,
		DonationRequired: e.DonationRequired,
		DonationAmount:   e.DonationAmount,
		KitQuantity:      kitQuantity,
		DeliveryCost:     deliveryCost,
	}
}

// Compute returns the breakdown for in. KitQuantity is expected to be
// validated by the caller; values below one are treated as one.
func Compute(in Input) Breakdown {
	var b Breakdown

	b.ExtraKits = in.KitQuantity - 1
	if b.ExtraKits < 0 {
		b.ExtraKits = 0
	}
	b.ExtraKitUnitPrice = nonNegative(in.ExtraKitPrice).Round(2)
	b.ExtraKitsCost = b.ExtraKitUnitPrice.Mul(decimal.NewFromInt(int64(b.ExtraKits))).Round(2)

	if in.FixedPrice != nil {
		b.FixedPrice = true
		b.Delivery = decimal.Zero
		b.Donation = decimal.Zero
		b.Base = nonNegative(*in.FixedPrice).Round(2)
	} else {
		b.Delivery = nonNegative(in.DeliveryCost).Round(2)
		b.Donation = decimal.Zero
		if in.DonationRequired && in.DonationAmount != nil {
			b.Donation = nonNegative(*in.DonationAmount).Round(2)
		}
		b.Base = b.Delivery.Add(b.Donation)
	}

	b.Subtotal = b.Base.Add(b.ExtraKitsCost)

	b.DiscountPercent = decimal.Zero
	b.Discount = decimal.Zero
	if in.Coupon != nil {
		pct := clampPercent(in.Coupon.Percent)
		b.CouponCode = in.Coupon.Code
		b.DiscountPercent = pct
		b.Discount = b.Subtotal.Mul(pct).Div(hundred).Round(2)
	}

	b.Total = nonNegative(b.Subtotal.Sub(b.Discount))
	return b
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
