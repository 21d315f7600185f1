package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/delivery"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/pricing"
	"github.com/safar/kitrunner/internal/store"
)

// Quotation is a priced order before it is persisted.
type Quotation struct {
	Delivery  delivery.Quote
	Breakdown pricing.Breakdown
}

// Pricer is shared by the cost preview and order creation so both produce the
// same numbers for the same inputs.
type Pricer struct {
	quoter delivery.Quoter
	logger *zap.Logger
}

func NewPricer(quoter delivery.Quoter, logger *zap.Logger) *Pricer {
	return &Pricer{quoter: quoter, logger: logger}
}

func (p *Pricer) Price(ctx context.Context, repo store.Repository, event *models.Event, address *models.Address, kitQuantity int, couponCode string) (*Quotation, error) {
	var quote delivery.Quote
	if event.FixedPrice == nil {
		q, err := p.quoter.Quote(ctx, event, address)
		if err != nil {
			if errors.Is(err, delivery.ErrInvalidZipCode) {
				return nil, apperr.Invalid("addressId", "CEP do endereço inválido para cálculo de entrega")
			}
			p.logger.Error("delivery quote failed", zap.Int64("event_id", event.ID), zap.Error(err))
			return nil, apperr.Persistence("Erro ao calcular entrega", err)
		}
		quote = q
	}

	coupon, err := p.resolveCoupon(ctx, repo, event, couponCode)
	if err != nil {
		return nil, err
	}

	in := pricing.InputForEvent(event, kitQuantity, quote.Total)
	in.Coupon = coupon

	return &Quotation{Delivery: quote, Breakdown: pricing.Compute(in)}, nil
}

// resolveCoupon checks the event's own coupon first and then the coupon
// table. Unknown or inactive codes resolve to no discount.
func (p *Pricer) resolveCoupon(ctx context.Context, repo store.Repository, event *models.Event, code string) (*pricing.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	if event.CouponCode != "" && event.CouponDiscount != nil && strings.EqualFold(event.CouponCode, code) {
		return &pricing.Coupon{Code: event.CouponCode, Percent: *event.CouponDiscount}, nil
	}

	c, err := repo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrCouponNotFound) {
			p.logger.Debug("coupon ignored", zap.String("coupon_code", code))
			return nil, nil
		}
		p.logger.Error("coupon lookup failed", zap.Error(err))
		return nil, apperr.Persistence("Erro ao validar cupom", err)
	}
	if !c.Active {
		return nil, nil
	}

	return &pricing.Coupon{Code: c.Code, Percent: c.DiscountPercent}, nil
}
