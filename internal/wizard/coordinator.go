package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/handler/dto"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/service"
)

// ErrCustomerNotFound is returned by API.Identify for unknown credentials.
var ErrCustomerNotFound = errors.New("wizard: customer not found")

// StepError is returned by an action attempted before its step is reachable.
type StepError struct {
	Wanted   Step
	Redirect Step
}

func (e *StepError) Error() string {
	return fmt.Sprintf("wizard: step %s requires %s first", e.Wanted, e.Redirect)
}

// API is the subset of the backend the flow uses.
type API interface {
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	Identify(ctx context.Context, in service.IdentifyInput) (*models.Customer, error)
	Register(ctx context.Context, in service.RegisterInput) (*service.Registration, error)
	ListAddresses(ctx context.Context, customerID int64) ([]models.Address, error)
	CreateAddress(ctx context.Context, customerID int64, in service.AddressInput) (*models.Address, error)
	CalculateDelivery(ctx context.Context, in service.CalculateInput) (*dto.Preview, error)
	CreateOrder(ctx context.Context, in service.CreateOrderInput, idempotencyKey string) (*service.OrderConfirmation, error)
}

type Coordinator struct {
	api      API
	sessions SessionStore
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is dropped from the table once no action holds or waits on it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewCoordinator(api API, sessions SessionStore, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		api:      api,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
		locks:    make(map[string]*sessionLock),
	}
}

func (c *Coordinator) Start(ctx context.Context) (*State, error) {
	return c.sessions.Create(ctx)
}

func (c *Coordinator) State(ctx context.Context, sessionID string) (*State, error) {
	return c.sessions.Get(ctx, sessionID)
}

// Enter moves the session to step when its prerequisites hold and returns
// the step actually shown, which is the earliest missing step otherwise.
func (c *Coordinator) Enter(ctx context.Context, sessionID string, step Step) (Step, error) {
	var shown Step
	_, err := c.update(ctx, sessionID, func(s *State) error {
		shown = resolve(s, step)
		s.Step = shown
		return nil
	})
	return shown, err
}

func (c *Coordinator) ViewEvent(ctx context.Context, sessionID string, eventID int64) (*State, error) {
	return c.update(ctx, sessionID, func(s *State) error {
		event, err := c.api.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if s.Event != nil && s.Event.ID != event.ID {
			s.resetFromQuote()
		}
		s.Event = event
		if s.Customer != nil {
			s.Step = StepAddressSelect
		} else {
			s.Step = StepIdentify
		}
		return nil
	})
}

// Identify looks the customer up. Unknown credentials send the flow to
// registration without an error.
func (c *Coordinator) Identify(ctx context.Context, sessionID, cpf, birthDate string) (*State, error) {
	return c.update(ctx, sessionID, func(s *State) error {
		if err := requireStep(s, StepIdentify); err != nil {
			return err
		}

		customer, err := c.api.Identify(ctx, service.IdentifyInput{CPF: cpf, BirthDate: birthDate})
		if errors.Is(err, ErrCustomerNotFound) {
			s.Step = StepRegister
			return nil
		}
		if err != nil {
			return err
		}

		addresses, err := c.api.ListAddresses(ctx, customer.ID)
		if err != nil {
			return err
		}
		c.setCustomer(s, customer, addresses)
		return nil
	})
}

func (c *Coordinator) Register(ctx context.Context, sessionID string, in service.RegisterInput) (*State, error) {
	return c.update(ctx, sessionID, func(s *State) error {
		if err := requireStep(s, StepRegister); err != nil {
			return err
		}

		reg, err := c.api.Register(ctx, in)
		if err != nil {
			return err
		}
		c.setCustomer(s, &reg.Customer, reg.Addresses)
		return nil
	})
}

func (c *Coordinator) setCustomer(s *State, customer *models.Customer, addresses []models.Address) {
	if s.Customer == nil || s.Customer.ID != customer.ID {
		s.resetFromCustomer()
	}
	s.Customer = customer
	s.Addresses = addresses
	if s.AddressID == 0 {
		for _, a := range addresses {
			if a.IsDefault {
				s.AddressID = a.ID
			}
		}
	}
	s.Step = StepAddressSelect
}

func (c *Coordinator) SelectAddress(ctx context.Context, sessionID string, addressID int64) (*State, error) {
	return c.update(ctx, sessionID, func(s *State) error {
		if err := requireStep(s, StepAddressSelect); err != nil {
			return err
		}
		if !hasAddress(s.Addresses, addressID) {
			return apperr.Invalid("addressId", "Endereço não pertence ao cliente")
		}
		if s.AddressID != addressID {
			s.resetFromQuote()
		}
		s.AddressID = addressID
		s.Step = StepCostPreview
		return nil
	})
}

// AddAddress saves a new address, selects it and returns to the address list.
func (c *Coordinator) AddAddress(ctx context.Context, sessionID string, in service.AddressInput) (*State, error) {
	return c.update(ctx, sessionID, func(s *State) error {
		if err := requireStep(s, StepNewAddress); err != nil {
			return err
		}

		created, err := c.api.CreateAddress(ctx, s.Customer.ID, in)
		if err != nil {
			return err
		}
		addresses, err := c.api.ListAddresses(ctx, s.Customer.ID)
		if err != nil {
			return err
		}

		s.Addresses = addresses
		if s.AddressID != created.ID {
			s.resetFromQuote()
		}
		s.AddressID = created.ID
		s.Step = StepAddressSelect
		return nil
	})
}

// PreviewCost prices the order for the selected address. A different kit
// quantity discards kit details entered earlier.
func (c *Coordinator) PreviewCost(ctx context.Context, sessionID string, kitQuantity int, couponCode string) (*State, error) {
	return c.update(ctx, sessionID, func(s *State) error {
		if err := requireStep(s, StepCostPreview); err != nil {
			return err
		}

		preview, err := c.api.CalculateDelivery(ctx, service.CalculateInput{
			CustomerID:  s.Customer.ID,
			EventID:     s.Event.ID,
			KitQuantity: kitQuantity,
			AddressID:   s.AddressID,
			CouponCode:  couponCode,
		})
		if err != nil {
			return err
		}

		if kitQuantity != s.KitQuantity {
			s.Kits = nil
		}
		s.KitQuantity = kitQuantity
		s.CouponCode = couponCode
		s.Preview = preview
		s.PaymentKey = ""
		s.Confirmation = nil
		s.LastError = ""
		s.Step = StepKitDetails
		return nil
	})
}

func (c *Coordinator) SetKits(ctx context.Context, sessionID string, kits []service.KitInput) (*State, error) {
	return c.update(ctx, sessionID, func(s *State) error {
		if err := requireStep(s, StepKitDetails); err != nil {
			return err
		}
		if len(kits) != s.KitQuantity {
			return apperr.Invalid("kits", fmt.Sprintf("Informe os dados de %d kit(s)", s.KitQuantity))
		}
		s.Kits = append([]service.KitInput(nil), kits...)
		s.PaymentKey = ""
		s.Confirmation = nil
		s.LastError = ""
		s.Step = StepPayment
		return nil
	})
}

// Pay places the order. On failure the session stays on the payment step
// with the error recorded, and the same idempotency key is reused by the
// next attempt.
func (c *Coordinator) Pay(ctx context.Context, sessionID, paymentMethod string) (*State, error) {
	var payErr error
	state, err := c.update(ctx, sessionID, func(s *State) error {
		if err := requireStep(s, StepPayment); err != nil {
			return err
		}
		if s.Confirmation != nil {
			s.Step = StepConfirmation
			return nil
		}
		if s.PaymentKey == "" || s.PaymentMethod != paymentMethod {
			s.PaymentKey = ulid.Make().String()
		}
		s.PaymentMethod = paymentMethod
		s.Step = StepPayment

		conf, err := c.api.CreateOrder(ctx, service.CreateOrderInput{
			EventID:       s.Event.ID,
			CustomerID:    s.Customer.ID,
			AddressID:     s.AddressID,
			KitQuantity:   s.KitQuantity,
			Kits:          s.Kits,
			PaymentMethod: paymentMethod,
			CouponCode:    s.CouponCode,
		}, s.PaymentKey)
		if err != nil {
			s.LastError = err.Error()
			payErr = err
			c.logger.Warn("payment failed", zap.String("session_id", s.SessionID), zap.Error(err))
			return nil
		}

		s.Confirmation = conf
		s.LastError = ""
		s.Step = StepConfirmation
		c.logger.Info("order confirmed",
			zap.String("session_id", s.SessionID),
			zap.String("order_number", conf.Order.OrderNumber),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, payErr
}

// update serializes actions on one session and saves the state only when fn
// succeeds.
func (c *Coordinator) update(ctx context.Context, sessionID string, fn func(*State) error) (*State, error) {
	release := c.lock(sessionID)
	defer release()

	s, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}

	s.UpdatedAt = c.now()
	if err := c.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Coordinator) lock(sessionID string) func() {
	c.mu.Lock()
	l, ok := c.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		c.locks[sessionID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, sessionID)
		}
		c.mu.Unlock()
	}
}

func requireStep(s *State, step Step) error {
	if got := resolve(s, step); got != step {
		return &StepError{Wanted: step, Redirect: got}
	}
	return nil
}

func hasAddress(addresses []models.Address, id int64) bool {
	for _, a := range addresses {
		if a.ID == id {
			return true
		}
	}
	return false
}
