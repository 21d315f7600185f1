package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/normalize"
	"github.com/safar/kitrunner/internal/store"
)

const eventColumns = `id, name, date, time, location, city, state, participants, available,
	fixed_price, extra_kit_price, donation_required, donation_description, donation_amount,
	coupon_code, coupon_discount, pickup_zip_code, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		e                   models.Event
		date                time.Time
		fixedPrice          decimal.NullDecimal
		donationDescription sql.NullString
		donationAmount      decimal.NullDecimal
		couponCode          sql.NullString
		couponDiscount      decimal.NullDecimal
		pickupZipCode       sql.NullString
	)

	err := row.Scan(
		&e.ID,
		&e.Name,
		&date,
		&e.Time,
		&e.Location,
		&e.City,
		&e.State,
		&e.Participants,
		&e.Available,
		&fixedPrice,
		&e.ExtraKitPrice,
		&e.DonationRequired,
		&donationDescription,
		&donationAmount,
		&couponCode,
		&couponDiscount,
		&pickupZipCode,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Date = date.Format(normalize.DateLayout)
	e.FixedPrice = decimalPtr(fixedPrice)
	e.DonationDescription = donationDescription.String
	e.DonationAmount = decimalPtr(donationAmount)
	e.CouponCode = couponCode.String
	e.CouponDiscount = decimalPtr(couponDiscount)
	e.PickupZipCode = pickupZipCode.String

	return &e, nil
}

func (r *repo) ListEvents(ctx context.Context) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY date, id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

func (r *repo) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	e, err := scanEvent(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	return e, nil
}

func (r *repo) CreateEvent(ctx context.Context, e *models.Event) error {
	query := `
		INSERT INTO events (name, date, time, location, city, state, participants, available,
			fixed_price, extra_kit_price, donation_required, donation_description, donation_amount,
			coupon_code, coupon_discount, pickup_zip_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		RETURNING id, created_at`

	err := r.q.QueryRowContext(ctx, query,
		e.Name,
		e.Date,
		e.Time,
		e.Location,
		e.City,
		e.State,
		e.Participants,
		e.Available,
		nullDecimal(e.FixedPrice),
		e.ExtraKitPrice,
		e.DonationRequired,
		nullString(e.DonationDescription),
		nullDecimal(e.DonationAmount),
		nullString(e.CouponCode),
		nullDecimal(e.CouponDiscount),
		nullString(e.PickupZipCode),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	return nil
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
