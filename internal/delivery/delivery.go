// Package delivery quotes the door-to-door cost of bringing kits to an address.
//
// ZipPrefixQuoter is a stand-in until a geocoding provider is wired: it treats
// the numeric distance between CEP prefixes as kilometres.
package delivery

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/normalize"
)

var ErrInvalidZipCode = errors.New("invalid zip code")

type Quote struct {
	Pickup     decimal.Decimal `json:"pickup"`
	Delivery   decimal.Decimal `json:"delivery"`
	DistanceKm decimal.Decimal `json:"distanceKm"`
	Total      decimal.Decimal `json:"total"`
}

// Quoter prices delivery of an event's kits to an address.
type Quoter interface {
	Quote(ctx context.Context, event *models.Event, address *models.Address) (Quote, error)
}

type ZipPrefixQuoter struct {
	OriginZipCode string
	PickupFee     decimal.Decimal
	RatePerKm     decimal.Decimal
}

func NewZipPrefixQuoter(originZip string, pickupFee, ratePerKm decimal.Decimal) *ZipPrefixQuoter {
	return &ZipPrefixQuoter{
		OriginZipCode: normalize.ZipCode(originZip),
		PickupFee:     pickupFee,
		RatePerKm:     ratePerKm,
	}
}

func (q *ZipPrefixQuoter) Quote(_ context.Context, event *models.Event, address *models.Address) (Quote, error) {
	origin := q.OriginZipCode
	if event != nil && event.PickupZipCode != "" {
		origin = event.PickupZipCode
	}

	from, err := prefixValue(origin)
	if err != nil {
		return Quote{}, err
	}
	to, err := prefixValue(address.ZipCode)
	if err != nil {
		return Quote{}, err
	}

	diff := from - to
	if diff < 0 {
		diff = -diff
	}

	distance := decimal.NewFromInt(diff).Div(decimal.NewFromInt(100)).Round(1)
	deliveryCost := distance.Mul(q.RatePerKm).Round(2)
	pickup := q.PickupFee.Round(2)

	return Quote{
		Pickup:     pickup,
		Delivery:   deliveryCost,
		DistanceKm: distance,
		Total:      pickup.Add(deliveryCost),
	}, nil
}

func prefixValue(zip string) (int64, error) {
	prefix := normalize.ZipPrefix(zip)
	if prefix == "" {
		return 0, ErrInvalidZipCode
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, ErrInvalidZipCode
	}
	return v, nil
}

// FlatQuoter always returns the same quote. Useful for tests and for
// deployments that charge a single delivery fee.
type FlatQuoter struct {
	Value Quote
}

func (f FlatQuoter) Quote(context.Context, *models.Event, *models.Address) (Quote, error) {
	return f.Value, nil
}
