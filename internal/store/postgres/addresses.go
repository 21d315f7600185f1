package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/store"
)

const addressColumns = `id, customer_id, label, street, number, complement, neighborhood,
	city, state, zip_code, is_default, created_at`

func scanAddress(row rowScanner) (*models.Address, error) {
	var a models.Address
	err := row.Scan(
		&a.ID,
		&a.CustomerID,
		&a.Label,
		&a.Street,
		&a.Number,
		&a.Complement,
		&a.Neighborhood,
		&a.City,
		&a.State,
		&a.ZipCode,
		&a.IsDefault,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) CreateAddress(ctx context.Context, a *models.Address) error {
	query := `
		INSERT INTO addresses (customer_id, label, street, number, complement, neighborhood,
			city, state, zip_code, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING id, created_at`

	err := r.q.QueryRowContext(ctx, query,
		a.CustomerID,
		a.Label,
		a.Street,
		a.Number,
		a.Complement,
		a.Neighborhood,
		a.City,
		a.State,
		a.ZipCode,
		a.IsDefault,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return translate("create address", err)
	}

	return nil
}

func (r *repo) GetAddress(ctx context.Context, id int64) (*models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`

	a, err := scanAddress(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}

	return a, nil
}

func (r *repo) ListAddressesByCustomer(ctx context.Context, customerID int64) ([]models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE customer_id = $1 ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []models.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return addresses, nil
}

// UpdateAddress applies patch with COALESCE so unset fields keep their value.
func (r *repo) UpdateAddress(ctx context.Context, id int64, patch models.AddressPatch) (*models.Address, error) {
	query := `
		UPDATE addresses
		SET label        = COALESCE($2, label),
		    street       = COALESCE($3, street),
		    number       = COALESCE($4, number),
		    complement   = COALESCE($5, complement),
		    neighborhood = COALESCE($6, neighborhood),
		    city         = COALESCE($7, city),
		    state        = COALESCE($8, state),
		    zip_code     = COALESCE($9, zip_code),
		    is_default   = COALESCE($10, is_default)
		WHERE id = $1
		RETURNING ` + addressColumns

	a, err := scanAddress(r.q.QueryRowContext(ctx, query,
		id,
		patch.Label,
		patch.Street,
		patch.Number,
		patch.Complement,
		patch.Neighborhood,
		patch.City,
		patch.State,
		patch.ZipCode,
		patch.IsDefault,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAddressNotFound
		}
		return nil, translate("update address", err)
	}

	return a, nil
}

func (r *repo) ClearDefaultAddresses(ctx context.Context, customerID int64) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE addresses SET is_default = FALSE WHERE customer_id = $1 AND is_default`,
		customerID)
	if err != nil {
		return fmt.Errorf("clear default addresses: %w", err)
	}
	return nil
}
