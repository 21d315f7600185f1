package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/delivery"
	"github.com/safar/kitrunner/internal/models"
)

func TestDeliveryService_CalculateWithZipQuoter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quoter := delivery.NewZipPrefixQuoter("01310-100", dec("15.00"), dec("1.50"))
	svc := NewDeliveryService(f.store, NewPricer(quoter, zap.NewNop()), zap.NewNop())

	far := &models.Address{CustomerID: f.customer.ID, Street: "Rua Longe", ZipCode: "02550000"}
	require.NoError(t, f.store.CreateAddress(ctx, far))

	preview, err := svc.Calculate(ctx, CalculateInput{
		CustomerID:  f.customer.ID,
		EventID:     f.event.ID,
		KitQuantity: 2,
		AddressID:   far.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, far.ID, preview.AddressID)
	assert.True(t, preview.Delivery.DistanceKm.Equal(dec("12.4")), "distance %s", preview.Delivery.DistanceKm)
	assert.True(t, preview.Delivery.Total.Equal(dec("33.60")), "quote %s", preview.Delivery.Total)
	assert.True(t, preview.Breakdown.Base.Equal(dec("33.60")))
	assert.True(t, preview.Breakdown.Total.Equal(dec("41.60")), "total %s", preview.Breakdown.Total)
}

func TestDeliveryService_CalculateUsesDefaultAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &models.Address{CustomerID: f.customer.ID, Street: "Rua Nova", ZipCode: "22070011"}
	require.NoError(t, f.store.CreateAddress(ctx, other))

	preview, err := f.delivery.Calculate(ctx, CalculateInput{CustomerID: f.customer.ID, EventID: f.event.ID, KitQuantity: 3})
	require.NoError(t, err)
	assert.Equal(t, f.address.ID, preview.AddressID)
	assert.True(t, preview.Breakdown.Total.Equal(dec("34.50")))
	assert.Equal(t, 2, preview.Breakdown.ExtraKits)
}

func TestDeliveryService_CalculateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.delivery.Calculate(ctx, CalculateInput{CustomerID: f.customer.ID, EventID: f.event.ID, KitQuantity: 7})
	requireFieldError(t, err, "kitQuantity")

	_, err = f.delivery.Calculate(ctx, CalculateInput{CustomerID: f.customer.ID, EventID: 404, KitQuantity: 1})
	assert.True(t, apperr.IsNotFound(err))

	lonely := &models.Customer{Name: "Sem Endereço", CPF: "10101010101", BirthDate: "2000-01-01"}
	require.NoError(t, f.store.CreateCustomer(ctx, lonely))
	_, err = f.delivery.Calculate(ctx, CalculateInput{CustomerID: lonely.ID, EventID: f.event.ID, KitQuantity: 1})
	requireFieldError(t, err, "addressId")

	_, err = f.delivery.Calculate(ctx, CalculateInput{CustomerID: lonely.ID, EventID: f.event.ID, KitQuantity: 1, AddressID: f.address.ID})
	requireFieldError(t, err, "addressId")
}

func TestDeliveryService_CalculateRejectsUnquotableZip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quoter := delivery.NewZipPrefixQuoter("01310-100", dec("15.00"), dec("1.50"))
	svc := NewDeliveryService(f.store, NewPricer(quoter, zap.NewNop()), zap.NewNop())

	broken := &models.Address{CustomerID: f.customer.ID, Street: "Rua ?", ZipCode: "12"}
	require.NoError(t, f.store.CreateAddress(ctx, broken))

	_, err := svc.Calculate(ctx, CalculateInput{CustomerID: f.customer.ID, EventID: f.event.ID, KitQuantity: 1, AddressID: broken.ID})
	requireFieldError(t, err, "addressId")
}

func TestEventService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewEventService(f.store, zap.NewNop())

	events, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got, err := svc.Get(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maratona de São Paulo", got.Name)

	_, err = svc.Get(ctx, 99)
	require.True(t, apperr.IsNotFound(err))
	assert.Equal(t, "Evento não encontrado", err.Error())
}
