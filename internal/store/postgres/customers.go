package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/normalize"
	"github.com/safar/kitrunner/internal/store"
)

func scanCustomer(row rowScanner) (*models.Customer, error) {
	var (
		c         models.Customer
		birthDate time.Time
	)

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.CPF,
		&birthDate,
		&c.Email,
		&c.Phone,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.BirthDate = birthDate.Format(normalize.DateLayout)
	return &c, nil
}

func (r *repo) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	query := `
		SELECT id, name, cpf, birth_date, email, phone, created_at
		FROM customers
		WHERE id = $1`

	c, err := scanCustomer(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return c, nil
}

func (r *repo) LockCustomer(ctx context.Context, id int64) error {
	var locked int64
	err := r.q.QueryRowContext(ctx, `SELECT id FROM customers WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrCustomerNotFound
		}
		return fmt.Errorf("lock customer: %w", err)
	}
	return nil
}

func (r *repo) GetCustomerByCredentials(ctx context.Context, cpf, birthDate string) (*models.Customer, error) {
	query := `
		SELECT id, name, cpf, birth_date, email, phone, created_at
		FROM customers
		WHERE cpf = $1 AND birth_date = $2`

	c, err := scanCustomer(r.q.QueryRowContext(ctx, query, cpf, birthDate))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer by credentials: %w", err)
	}

	return c, nil
}

func (r *repo) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (name, cpf, birth_date, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`

	err := r.q.QueryRowContext(ctx, query,
		c.Name,
		c.CPF,
		c.BirthDate,
		c.Email,
		c.Phone,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return translate("create customer", err)
	}

	return nil
}
