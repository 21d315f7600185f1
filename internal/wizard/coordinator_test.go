package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/handler/dto"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/service"
)

type fakeAPI struct {
	customers map[string]*models.Customer
	addresses map[int64][]models.Address
	nextID    int64

	orderErr   error
	orderKeys  []string
	orderCalls int
	previews   []service.CalculateInput
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		customers: map[string]*models.Customer{
			"12345678901|1990-05-15": {ID: 1, Name: "João", CPF: "12345678901", BirthDate: "1990-05-15"},
			"98765432100|1985-03-20": {ID: 2, Name: "Maria", CPF: "98765432100", BirthDate: "1985-03-20"},
		},
		addresses: map[int64][]models.Address{
			1: {{ID: 10, CustomerID: 1, Street: "Rua das Flores", IsDefault: true}},
			2: {{ID: 20, CustomerID: 2, Street: "Av. Atlântica", IsDefault: true}},
		},
		nextID: 100,
	}
}

func (f *fakeAPI) GetEvent(_ context.Context, id int64) (*models.Event, error) {
	if id != 1 && id != 2 {
		return nil, apperr.NotFound("event", "Evento não encontrado")
	}
	return &models.Event{ID: id, Name: "Maratona", Date: "2024-12-15", Available: true}, nil
}

func (f *fakeAPI) Identify(_ context.Context, in service.IdentifyInput) (*models.Customer, error) {
	c, ok := f.customers[in.CPF+"|"+in.BirthDate]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return c, nil
}

func (f *fakeAPI) Register(_ context.Context, in service.RegisterInput) (*service.Registration, error) {
	f.nextID++
	c := models.Customer{ID: f.nextID, Name: in.Name, CPF: in.CPF, BirthDate: in.BirthDate}
	f.customers[in.CPF+"|"+in.BirthDate] = &c
	return &service.Registration{Customer: c}, nil
}

func (f *fakeAPI) ListAddresses(_ context.Context, customerID int64) ([]models.Address, error) {
	return f.addresses[customerID], nil
}

func (f *fakeAPI) CreateAddress(_ context.Context, customerID int64, in service.AddressInput) (*models.Address, error) {
	f.nextID++
	a := models.Address{ID: f.nextID, CustomerID: customerID, Street: in.Street}
	f.addresses[customerID] = append(f.addresses[customerID], a)
	return &a, nil
}

func (f *fakeAPI) CalculateDelivery(_ context.Context, in service.CalculateInput) (*dto.Preview, error) {
	f.previews = append(f.previews, in)
	total := decimal.RequireFromString("18.50").Add(decimal.NewFromInt(int64(8 * (in.KitQuantity - 1))))
	return &dto.Preview{AddressID: in.AddressID, ExtraKits: in.KitQuantity - 1, TotalCost: total}, nil
}

func (f *fakeAPI) CreateOrder(_ context.Context, in service.CreateOrderInput, key string) (*service.OrderConfirmation, error) {
	f.orderCalls++
	f.orderKeys = append(f.orderKeys, key)
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return &service.OrderConfirmation{Order: models.Order{ID: 1, OrderNumber: "KR2024TEST", KitQuantity: in.KitQuantity}}, nil
}

func kits(n int) []service.KitInput {
	out := make([]service.KitInput, n)
	for i := range out {
		out[i] = service.KitInput{Name: "Corredor", CPF: "11122233344", ShirtSize: "M"}
	}
	return out
}

func (c *Coordinator) heldLocks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}

func newCoordinator(t *testing.T) (*Coordinator, *fakeAPI, string) {
	t.Helper()
	api := newFakeAPI()
	c := NewCoordinator(api, NewMemorySessionStore(), nil)
	s, err := c.Start(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, s.SessionID)
	return c, api, s.SessionID
}

func TestCoordinator_HappyPath(t *testing.T) {
	ctx := context.Background()
	c, api, sid := newCoordinator(t)

	s, err := c.ViewEvent(ctx, sid, 1)
	require.NoError(t, err)
	assert.Equal(t, StepIdentify, s.Step)

	s, err = c.Identify(ctx, sid, "12345678901", "1990-05-15")
	require.NoError(t, err)
	assert.Equal(t, StepAddressSelect, s.Step)
	assert.Equal(t, int64(10), s.AddressID, "default address preselected")

	s, err = c.SelectAddress(ctx, sid, 10)
	require.NoError(t, err)
	assert.Equal(t, StepCostPreview, s.Step)

	s, err = c.PreviewCost(ctx, sid, 3, "MARATONA15")
	require.NoError(t, err)
	assert.Equal(t, StepKitDetails, s.Step)
	assert.True(t, s.Preview.TotalCost.Equal(decimal.RequireFromString("34.50")))

	s, err = c.SetKits(ctx, sid, kits(3))
	require.NoError(t, err)
	assert.Equal(t, StepPayment, s.Step)

	s, err = c.Pay(ctx, sid, "pix")
	require.NoError(t, err)
	assert.Equal(t, StepConfirmation, s.Step)
	assert.Equal(t, "KR2024TEST", s.Confirmation.Order.OrderNumber)
	assert.Empty(t, s.LastError)

	require.Len(t, api.previews, 1)
	assert.Equal(t, int64(10), api.previews[0].AddressID)
	assert.Equal(t, "MARATONA15", api.previews[0].CouponCode)

	shown, err := c.Enter(ctx, sid, StepConfirmation)
	require.NoError(t, err)
	assert.Equal(t, StepConfirmation, shown)
}

func TestCoordinator_EnterRedirectsToFirstMissingStep(t *testing.T) {
	ctx := context.Background()
	c, _, sid := newCoordinator(t)

	shown, err := c.Enter(ctx, sid, StepPayment)
	require.NoError(t, err)
	assert.Equal(t, StepEventView, shown)

	_, err = c.ViewEvent(ctx, sid, 1)
	require.NoError(t, err)

	shown, err = c.Enter(ctx, sid, StepKitDetails)
	require.NoError(t, err)
	assert.Equal(t, StepIdentify, shown)

	_, err = c.Identify(ctx, sid, "12345678901", "1990-05-15")
	require.NoError(t, err)

	shown, err = c.Enter(ctx, sid, StepPayment)
	require.NoError(t, err)
	assert.Equal(t, StepCostPreview, shown)

	s, err := c.State(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, StepCostPreview, s.Step)

	_, err = c.SetKits(ctx, sid, kits(1))
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepKitDetails, stepErr.Wanted)
	assert.Equal(t, StepCostPreview, stepErr.Redirect)
}

func TestCoordinator_UnknownCustomerRegisters(t *testing.T) {
	ctx := context.Background()
	c, _, sid := newCoordinator(t)

	_, err := c.ViewEvent(ctx, sid, 1)
	require.NoError(t, err)

	s, err := c.Identify(ctx, sid, "55566677788", "2000-01-01")
	require.NoError(t, err)
	assert.Equal(t, StepRegister, s.Step)
	assert.Nil(t, s.Customer)

	s, err = c.Register(ctx, sid, service.RegisterInput{Name: "Nova", CPF: "55566677788", BirthDate: "2000-01-01"})
	require.NoError(t, err)
	assert.Equal(t, StepAddressSelect, s.Step)
	assert.Zero(t, s.AddressID)

	shown, err := c.Enter(ctx, sid, StepNewAddress)
	require.NoError(t, err)
	assert.Equal(t, StepNewAddress, shown)

	s, err = c.AddAddress(ctx, sid, service.AddressInput{Street: "Rua Nova"})
	require.NoError(t, err)
	assert.Equal(t, StepAddressSelect, s.Step)
	assert.NotZero(t, s.AddressID)
	assert.Len(t, s.Addresses, 1)
}

func TestCoordinator_ChangingCustomerResetsDownstreamState(t *testing.T) {
	ctx := context.Background()
	c, _, sid := newCoordinator(t)

	_, err := c.ViewEvent(ctx, sid, 1)
	require.NoError(t, err)
	_, err = c.Identify(ctx, sid, "12345678901", "1990-05-15")
	require.NoError(t, err)
	_, err = c.SelectAddress(ctx, sid, 10)
	require.NoError(t, err)
	_, err = c.PreviewCost(ctx, sid, 2, "")
	require.NoError(t, err)
	_, err = c.SetKits(ctx, sid, kits(2))
	require.NoError(t, err)

	s, err := c.Identify(ctx, sid, "98765432100", "1985-03-20")
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Customer.ID)
	assert.Equal(t, int64(20), s.AddressID)
	assert.Nil(t, s.Preview)
	assert.Empty(t, s.Kits)

	_, err = c.SelectAddress(ctx, sid, 10)
	assert.True(t, apperr.IsValidation(err), "address of the previous customer is rejected")
}

func TestCoordinator_NewKitQuantityDropsKits(t *testing.T) {
	ctx := context.Background()
	c, _, sid := newCoordinator(t)

	_, err := c.ViewEvent(ctx, sid, 1)
	require.NoError(t, err)
	_, err = c.Identify(ctx, sid, "12345678901", "1990-05-15")
	require.NoError(t, err)
	_, err = c.SelectAddress(ctx, sid, 10)
	require.NoError(t, err)
	_, err = c.PreviewCost(ctx, sid, 2, "")
	require.NoError(t, err)

	_, err = c.SetKits(ctx, sid, kits(3))
	assert.True(t, apperr.IsValidation(err))

	_, err = c.SetKits(ctx, sid, kits(2))
	require.NoError(t, err)

	s, err := c.PreviewCost(ctx, sid, 4, "")
	require.NoError(t, err)
	assert.Empty(t, s.Kits)

	shown, err := c.Enter(ctx, sid, StepPayment)
	require.NoError(t, err)
	assert.Equal(t, StepKitDetails, shown)
}

func TestCoordinator_FailedPaymentStaysOnPayment(t *testing.T) {
	ctx := context.Background()
	c, api, sid := newCoordinator(t)

	_, err := c.ViewEvent(ctx, sid, 1)
	require.NoError(t, err)
	_, err = c.Identify(ctx, sid, "12345678901", "1990-05-15")
	require.NoError(t, err)
	_, err = c.SelectAddress(ctx, sid, 10)
	require.NoError(t, err)
	_, err = c.PreviewCost(ctx, sid, 1, "")
	require.NoError(t, err)
	_, err = c.SetKits(ctx, sid, kits(1))
	require.NoError(t, err)

	api.orderErr = errors.New("Erro ao criar pedido")
	s, err := c.Pay(ctx, sid, "credit")
	require.Error(t, err)
	require.NotNil(t, s)
	assert.Equal(t, StepPayment, s.Step)
	assert.Equal(t, "Erro ao criar pedido", s.LastError)
	assert.Nil(t, s.Confirmation)

	api.orderErr = nil
	s, err = c.Pay(ctx, sid, "credit")
	require.NoError(t, err)
	assert.Equal(t, StepConfirmation, s.Step)

	require.Len(t, api.orderKeys, 2)
	assert.Equal(t, api.orderKeys[0], api.orderKeys[1], "retry reuses the idempotency key")
}

func TestCoordinator_NewOrderAfterConfirmation(t *testing.T) {
	ctx := context.Background()
	c, api, sid := newCoordinator(t)

	_, err := c.ViewEvent(ctx, sid, 1)
	require.NoError(t, err)
	_, err = c.Identify(ctx, sid, "12345678901", "1990-05-15")
	require.NoError(t, err)
	_, err = c.SelectAddress(ctx, sid, 10)
	require.NoError(t, err)
	_, err = c.PreviewCost(ctx, sid, 1, "")
	require.NoError(t, err)
	_, err = c.SetKits(ctx, sid, kits(1))
	require.NoError(t, err)
	s, err := c.Pay(ctx, sid, "pix")
	require.NoError(t, err)
	require.NotNil(t, s.Confirmation)

	s, err = c.PreviewCost(ctx, sid, 3, "")
	require.NoError(t, err)
	assert.Nil(t, s.Confirmation)

	_, err = c.SetKits(ctx, sid, kits(3))
	require.NoError(t, err)
	s, err = c.Pay(ctx, sid, "pix")
	require.NoError(t, err)

	assert.Equal(t, 2, api.orderCalls)
	assert.Equal(t, StepConfirmation, s.Step)
	require.NotNil(t, s.Confirmation)
	assert.Equal(t, 3, s.Confirmation.Order.KitQuantity)
	require.Len(t, api.orderKeys, 2)
	assert.NotEqual(t, api.orderKeys[0], api.orderKeys[1], "a new order gets a new idempotency key")
}

func TestCoordinator_SessionLocksAreReleased(t *testing.T) {
	ctx := context.Background()
	c, _, sid := newCoordinator(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Enter(ctx, sid, StepIdentify)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := c.ViewEvent(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Zero(t, c.heldLocks())
}

func TestCoordinator_UnknownSession(t *testing.T) {
	c, _, _ := newCoordinator(t)

	_, err := c.ViewEvent(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCoordinator_ViewEventError(t *testing.T) {
	c, _, sid := newCoordinator(t)

	_, err := c.ViewEvent(context.Background(), sid, 99)
	assert.True(t, apperr.IsNotFound(err))

	s, err := c.State(context.Background(), sid)
	require.NoError(t, err)
	assert.Nil(t, s.Event)
	assert.Equal(t, StepEventView, s.Step)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "payment", StepPayment.String())
	assert.Equal(t, "unknown", Step(42).String())
}
