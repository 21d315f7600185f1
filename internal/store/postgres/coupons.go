package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/store"
)

func (r *repo) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon

	query := `
		SELECT id, code, discount_percent, active, created_at
		FROM coupons
		WHERE LOWER(code) = LOWER($1)`

	err := r.q.QueryRowContext(ctx, query, code).Scan(
		&c.ID,
		&c.Code,
		&c.DiscountPercent,
		&c.Active,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	return &c, nil
}

func (r *repo) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	query := `
		INSERT INTO coupons (code, discount_percent, active, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at`

	err := r.q.QueryRowContext(ctx, query, c.Code, c.DiscountPercent, c.Active).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return translate("create coupon", err)
	}

	return nil
}
