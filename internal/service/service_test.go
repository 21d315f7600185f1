package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/delivery"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// flatQuote charges 18.50 for every delivery.
var flatQuote = delivery.FlatQuoter{Value: delivery.Quote{
	Pickup:     dec("15.00"),
	Delivery:   dec("3.50"),
	DistanceKm: dec("2.3"),
	Total:      dec("18.50"),
}}

type sequenceNumbers struct {
	mu      sync.Mutex
	numbers []string
	next    int
}

func (g *sequenceNumbers) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.numbers[g.next%len(g.numbers)]
	g.next++
	return n
}

type fixture struct {
	store     *store.MemoryStore
	event     *models.Event
	customer  *models.Customer
	address   *models.Address
	orders    *OrderService
	customers *CustomerService
	delivery  *DeliveryService
	numbers   *sequenceNumbers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	event := &models.Event{
		Name:           "Maratona de São Paulo",
		Date:           "2024-12-15",
		Time:           "06:00",
		Available:      true,
		ExtraKitPrice:  dec("8.00"),
		CouponCode:     "MARATONA15",
		CouponDiscount: decPtr("15"),
	}
	require.NoError(t, s.CreateEvent(ctx, event))

	customer := &models.Customer{Name: "João Silva Santos", CPF: "12345678901", BirthDate: "1990-05-15", Email: "joao@example.com"}
	require.NoError(t, s.CreateCustomer(ctx, customer))

	address := &models.Address{CustomerID: customer.ID, Street: "Rua das Flores", Number: "123", City: "São Paulo", State: "SP", ZipCode: "01234567", IsDefault: true}
	require.NoError(t, s.CreateAddress(ctx, address))

	log := zap.NewNop()
	numbers := &sequenceNumbers{numbers: []string{"KR20240000000001", "KR20240000000002", "KR20240000000003", "KR20240000000004"}}
	pricer := NewPricer(flatQuote, log)

	return &fixture{
		store:     s,
		event:     event,
		customer:  customer,
		address:   address,
		orders:    NewOrderService(s, pricer, numbers, 2, log),
		customers: NewCustomerService(s, log),
		delivery:  NewDeliveryService(s, pricer, log),
		numbers:   numbers,
	}
}

func (f *fixture) orderInput(kits int) CreateOrderInput {
	in := CreateOrderInput{
		EventID:       f.event.ID,
		CustomerID:    f.customer.ID,
		AddressID:     f.address.ID,
		KitQuantity:   kits,
		PaymentMethod: "pix",
	}
	for i := 0; i < kits; i++ {
		in.Kits = append(in.Kits, KitInput{Name: "Corredor", CPF: "111.222.333-44", ShirtSize: "M"})
	}
	return in
}

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	for _, f := range verr.Fields {
		if f.Field == field {
			return
		}
	}
	t.Fatalf("no error for field %q in %+v", field, verr.Fields)
}

// failingKits makes the n-th CreateKit call of every transaction fail.
type failingKits struct {
	*store.MemoryStore
	failAt int
}

type failingKitsRepo struct {
	store.Repository
	calls  int
	failAt int
}

func (r *failingKitsRepo) CreateKit(ctx context.Context, k *models.Kit) error {
	r.calls++
	if r.calls == r.failAt {
		return errors.New("disk full")
	}
	return r.Repository.CreateKit(ctx, k)
}

func (s *failingKits) WithinTx(ctx context.Context, fn func(tx store.Repository) error) error {
	return s.MemoryStore.WithinTx(ctx, func(tx store.Repository) error {
		return fn(&failingKitsRepo{Repository: tx, failAt: s.failAt})
	})
}
