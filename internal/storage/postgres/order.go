package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, items, amount, address, status, payment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	listOrdersByUserSQL = `SELECT id, user_id, items, amount, address, status, payment, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT id, user_id, items, amount, address, status, payment, created_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		ORDER BY created_at DESC
		LIMIT $3`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items
// and the address are serialized to JSON for storage in JSONB columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Rows are insert-only: nothing in this
// repository updates an existing order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return errors.Wrap(err, "marshal order address")
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON, o.Amount, addressJSON, string(o.Status), o.Payment, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of user %q", userID)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var since any
	if !f.Since.IsZero() {
		since = f.Since
	}

	rows, err := r.pool.Query(ctx, listOrdersSQL, string(f.Status), since, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		status      string
		itemsJSON   []byte
		addressJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &o.Amount, &addressJSON,
		&status, &o.Payment, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}

	o.Status = order.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, errors.Wrapf(err, "unmarshal items of order %q", o.ID)
	}
	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return o, errors.Wrapf(err, "unmarshal address of order %q", o.ID)
	}
	return o, nil
}
