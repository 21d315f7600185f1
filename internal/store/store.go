// Package store defines the persistence contract of the ordering flow and an
// in-memory implementation of it. The postgres implementation lives in
// store/postgres; which one serves a process is decided at start-up.
package store

import (
	"context"
	"errors"

	"github.com/safar/kitrunner/internal/models"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrAddressNotFound  = errors.New("address not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrCouponNotFound   = errors.New("coupon not found")

	ErrDuplicateCPF         = errors.New("cpf already registered")
	ErrDuplicateOrderNumber = errors.New("order number already used")
	ErrDuplicateCoupon      = errors.New("coupon code already exists")

	ErrDuplicateDefaultAddress = errors.New("customer already has a default address")
)

// Repository is the set of reads and writes the services need. Create methods
// assign ID and CreatedAt on the passed value.
type Repository interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	CreateEvent(ctx context.Context, e *models.Event) error

	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomerByCredentials(ctx context.Context, cpf, birthDate string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, c *models.Customer) error
	// LockCustomer serializes address writes of one customer until the
	// surrounding transaction ends.
	LockCustomer(ctx context.Context, id int64) error

	CreateAddress(ctx context.Context, a *models.Address) error
	GetAddress(ctx context.Context, id int64) (*models.Address, error)
	ListAddressesByCustomer(ctx context.Context, customerID int64) ([]models.Address, error)
	UpdateAddress(ctx context.Context, id int64, patch models.AddressPatch) (*models.Address, error)
	ClearDefaultAddresses(ctx context.Context, customerID int64) error

	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64, cursor string, limit int) (*CursorPage, error)

	CreateKit(ctx context.Context, k *models.Kit) error
	ListKitsByOrder(ctx context.Context, orderID int64) ([]models.Kit, error)

	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	CreateCoupon(ctx context.Context, c *models.Coupon) error
}

// Store is a Repository that can scope several writes into one atomic unit.
// If fn returns an error none of its writes are visible afterwards.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(tx Repository) error) error
	Close() error
}
