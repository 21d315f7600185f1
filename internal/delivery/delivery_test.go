package delivery

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/kitrunner/internal/models"
)

func TestZipPrefixQuoter(t *testing.T) {
	q := NewZipPrefixQuoter("01310-100", decimal.RequireFromString("15.00"), decimal.RequireFromString("1.50"))

	quote, err := q.Quote(context.Background(), &models.Event{}, &models.Address{ZipCode: "02550000"})
	require.NoError(t, err)

	// |01310 - 02550| = 1240 -> 12.4 km -> 18.60
	assert.True(t, quote.DistanceKm.Equal(decimal.RequireFromString("12.4")), quote.DistanceKm.String())
	assert.True(t, quote.Delivery.Equal(decimal.RequireFromString("18.60")), quote.Delivery.String())
	assert.True(t, quote.Total.Equal(decimal.RequireFromString("33.60")), quote.Total.String())
}

func TestZipPrefixQuoterUsesEventOrigin(t *testing.T) {
	q := NewZipPrefixQuoter("01310100", decimal.RequireFromString("15"), decimal.RequireFromString("1.50"))

	quote, err := q.Quote(context.Background(),
		&models.Event{PickupZipCode: "02550000"},
		&models.Address{ZipCode: "02550-000"})
	require.NoError(t, err)
	assert.True(t, quote.DistanceKm.IsZero())
	assert.True(t, quote.Total.Equal(decimal.RequireFromString("15")))
}

func TestZipPrefixQuoterRejectsShortZip(t *testing.T) {
	q := NewZipPrefixQuoter("01310100", decimal.RequireFromString("15"), decimal.RequireFromString("1.50"))

	_, err := q.Quote(context.Background(), &models.Event{}, &models.Address{ZipCode: "123"})
	assert.ErrorIs(t, err, ErrInvalidZipCode)
}
