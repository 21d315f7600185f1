package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/store"
)

const orderColumns = `id, order_number, event_id, customer_id, address_id, kit_quantity,
	delivery_cost, donation_cost, base_cost, extra_kits_cost, discount_amount, coupon_code,
	total_cost, payment_method, status, created_at`

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o          models.Order
		couponCode sql.NullString
	)

	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.EventID,
		&o.CustomerID,
		&o.AddressID,
		&o.KitQuantity,
		&o.DeliveryCost,
		&o.DonationCost,
		&o.BaseCost,
		&o.ExtraKitsCost,
		&o.DiscountAmount,
		&couponCode,
		&o.TotalCost,
		&o.PaymentMethod,
		&o.Status,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.CouponCode = couponCode.String
	return &o, nil
}

func (r *repo) CreateOrder(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (order_number, event_id, customer_id, address_id, kit_quantity,
			delivery_cost, donation_cost, base_cost, extra_kits_cost, discount_amount, coupon_code,
			total_cost, payment_method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		RETURNING id, created_at`

	err := r.q.QueryRowContext(ctx, query,
		o.OrderNumber,
		o.EventID,
		o.CustomerID,
		o.AddressID,
		o.KitQuantity,
		o.DeliveryCost,
		o.DonationCost,
		o.BaseCost,
		o.ExtraKitsCost,
		o.DiscountAmount,
		nullString(o.CouponCode),
		o.TotalCost,
		o.PaymentMethod,
		o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return translate("create order", err)
	}

	return nil
}

func (r *repo) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

	o, err := scanOrder(r.q.QueryRowContext(ctx, query, orderNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return o, nil
}

func (r *repo) ListOrdersByCustomer(ctx context.Context, customerID int64, cursor string, limit int) (*store.CursorPage, error) {
	cursorData, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	limit = store.ClampLimit(limit)

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := r.q.QueryContext(ctx, query, customerID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = store.EncodeCursor(store.OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &store.CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *repo) CreateKit(ctx context.Context, k *models.Kit) error {
	query := `
		INSERT INTO kits (order_id, name, cpf, shirt_size)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.q.QueryRowContext(ctx, query, k.OrderID, k.Name, k.CPF, k.ShirtSize).Scan(&k.ID)
	if err != nil {
		return translate("create kit", err)
	}

	return nil
}

func (r *repo) ListKitsByOrder(ctx context.Context, orderID int64) ([]models.Kit, error) {
	query := `
		SELECT id, order_id, name, cpf, shirt_size
		FROM kits
		WHERE order_id = $1
		ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list kits: %w", err)
	}
	defer rows.Close()

	kits := []models.Kit{}
	for rows.Next() {
		var k models.Kit
		if err := rows.Scan(&k.ID, &k.OrderID, &k.Name, &k.CPF, &k.ShirtSize); err != nil {
			return nil, fmt.Errorf("scan kit: %w", err)
		}
		kits = append(kits, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return kits, nil
}
