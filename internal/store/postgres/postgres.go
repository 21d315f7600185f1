// Package postgres implements store.Store on top of database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/kitrunner/internal/database"
	"github.com/safar/kitrunner/internal/store"
)

// querier is the part of *sql.DB and *sql.Tx the repository uses.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	*repo
	db     *sql.DB
	txOpts database.TxOptions
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{
		repo:   &repo{q: db},
		db:     db,
		txOpts: database.DefaultTxOptions(),
	}
}

// WithinTx runs fn in a read committed transaction, retrying on deadlocks
// and serialization failures. fn may therefore run more than once.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Repository) error) error {
	return database.WithRetry(ctx, s.db, s.txOpts, func(tx *sql.Tx) error {
		return fn(&repo{q: tx})
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for collaborators that keep their own tables.
func (s *Store) DB() *sql.DB {
	return s.db
}

type repo struct {
	q querier
}

// constraintErrors maps constraint names from the migrations to store errors.
var constraintErrors = map[string]error{
	"customers_cpf_key":          store.ErrDuplicateCPF,
	"orders_order_number_key":    store.ErrDuplicateOrderNumber,
	"coupons_code_lower_idx":     store.ErrDuplicateCoupon,
	"addresses_one_default_idx":  store.ErrDuplicateDefaultAddress,
	"addresses_customer_id_fkey": store.ErrCustomerNotFound,
	"orders_event_id_fkey":       store.ErrEventNotFound,
	"orders_customer_id_fkey":    store.ErrCustomerNotFound,
	"orders_address_id_fkey":     store.ErrAddressNotFound,
	"kits_order_id_fkey":         store.ErrOrderNotFound,
}

func translate(op string, err error) error {
	constraint, ok := database.UniqueViolation(err)
	if !ok {
		constraint, ok = database.ForeignKeyViolation(err)
	}
	if ok {
		if mapped, known := constraintErrors[constraint]; known {
			return fmt.Errorf("%s: %w", op, mapped)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
