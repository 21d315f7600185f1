// Package dto holds the JSON shapes of the HTTP API that are not plain
// models. The API client decodes into the same types.
package dto

import (
	"github.com/shopspring/decimal"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/delivery"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/pricing"
	"github.com/safar/kitrunner/internal/service"
)

// CostSummary is the short breakdown the preview step renders line by line.
type CostSummary struct {
	Pickup         decimal.Decimal `json:"pickup"`
	Delivery       decimal.Decimal `json:"delivery"`
	AdditionalKits decimal.Decimal `json:"additionalKits"`
	Donation       decimal.Decimal `json:"donation"`
	Discount       decimal.Decimal `json:"discount"`
	DistanceKm     decimal.Decimal `json:"distanceKm"`
}

type Preview struct {
	AddressID         int64             `json:"addressId"`
	BaseCost          decimal.Decimal   `json:"baseCost"`
	AdditionalKitCost decimal.Decimal   `json:"additionalKitCost"`
	ExtraKits         int               `json:"extraKits"`
	TotalCost         decimal.Decimal   `json:"totalCost"`
	Breakdown         CostSummary       `json:"breakdown"`
	Pricing           pricing.Breakdown `json:"pricing"`
	Quote             delivery.Quote    `json:"quote"`
}

func NewPreview(p *service.CostPreview) Preview {
	b := p.Breakdown
	return Preview{
		AddressID:         p.AddressID,
		BaseCost:          b.Base,
		AdditionalKitCost: b.ExtraKitUnitPrice,
		ExtraKits:         b.ExtraKits,
		TotalCost:         b.Total,
		Breakdown: CostSummary{
			Pickup:         p.Delivery.Pickup,
			Delivery:       p.Delivery.Delivery,
			AdditionalKits: b.ExtraKitsCost,
			Donation:       b.Donation,
			Discount:       b.Discount,
			DistanceKm:     p.Delivery.DistanceKm,
		},
		Pricing: b,
		Quote:   p.Delivery,
	}
}

type OrderPage struct {
	Items      []models.Order `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
	HasMore    bool           `json:"hasMore"`
}

// ErrorBody is the error envelope written by the handlers.
type ErrorBody struct {
	Code        string              `json:"error"`
	Message     string              `json:"message"`
	Status      int                 `json:"status"`
	RequestID   string              `json:"request_id,omitempty"`
	Errors      []apperr.FieldError `json:"errors,omitempty"`
	CanRegister bool                `json:"canRegister,omitempty"`
}
