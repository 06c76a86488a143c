package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/stats"
)

const (
	paidRevenueBetweenSQL = `SELECT COALESCE(SUM(amount), 0) FROM orders
		WHERE status = 'paid' AND created_at >= $1 AND created_at < $2`

	orderCountBetweenSQL = `SELECT COUNT(*) FROM orders
		WHERE created_at >= $1 AND created_at < $2`

	userCountBetweenSQL = `SELECT COUNT(*) FROM users
		WHERE created_at >= $1 AND created_at < $2`

	activeUserCountSQL = `SELECT COUNT(*) FROM users WHERE status = 'active'`

	productCountSQL = `SELECT COUNT(*) FROM products`

	recentOrdersSQL = `SELECT o.id, COALESCE(u.full_name, 'Guest'),
			o.amount, jsonb_array_length(o.items), o.status, o.created_at
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
		LIMIT $1`

	// Units sold per product name across all order item snapshots, joined
	// back to the live catalog for price and image.
	topProductsSQL = `SELECT p.name, p.price, s.sales, p.image_url
		FROM (
			SELECT item->>'name' AS name, SUM((item->>'quantity')::int) AS sales
			FROM orders, jsonb_array_elements(items) AS item
			GROUP BY item->>'name'
		) s
		JOIN products p ON p.name = s.name
		ORDER BY s.sales DESC
		LIMIT $1`
)

var _ stats.Store = (*StatsStore)(nil)

// StatsStore implements stats.Store with SQL aggregations.
type StatsStore struct {
	pool *pgxpool.Pool
}

// NewStatsStore returns a StatsStore that uses the given pool.
func NewStatsStore(pool *pgxpool.Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

// PaidRevenueBetween sums the amount of paid orders created in [from, to).
func (s *StatsStore) PaidRevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var revenue decimal.Decimal
	if err := s.pool.QueryRow(ctx, paidRevenueBetweenSQL, from, to).Scan(&revenue); err != nil {
		return decimal.Zero, errors.Wrap(err, "paid revenue")
	}
	return revenue, nil
}

// OrderCountBetween counts orders created in [from, to), any status.
func (s *StatsStore) OrderCountBetween(ctx context.Context, from, to time.Time) (int, error) {
	return s.count(ctx, orderCountBetweenSQL, from, to)
}

// UserCountBetween counts users who joined in [from, to).
func (s *StatsStore) UserCountBetween(ctx context.Context, from, to time.Time) (int, error) {
	return s.count(ctx, userCountBetweenSQL, from, to)
}

// ActiveUserCount counts users whose status is active.
func (s *StatsStore) ActiveUserCount(ctx context.Context) (int, error) {
	return s.count(ctx, activeUserCountSQL)
}

// ProductCount counts catalog rows.
func (s *StatsStore) ProductCount(ctx context.Context) (int, error) {
	return s.count(ctx, productCountSQL)
}

// RecentOrders returns the latest orders with the buyer's display name.
func (s *StatsStore) RecentOrders(ctx context.Context, limit int) ([]stats.RecentOrder, error) {
	rows, err := s.pool.Query(ctx, recentOrdersSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "recent orders")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.RecentOrder, error) {
		var (
			ro     stats.RecentOrder
			status string
		)
		err := row.Scan(&ro.ID, &ro.UserName, &ro.Amount, &ro.ItemsCount, &status, &ro.Date)
		ro.Status = order.Status(status)
		return ro, err
	})
}

// TopProducts returns the best sellers by units sold. Products deleted from
// the catalog since they were ordered are excluded by the join, matching
// the dashboard's behaviour of only showing live products.
func (s *StatsStore) TopProducts(ctx context.Context, limit int) ([]stats.TopProduct, error) {
	rows, err := s.pool.Query(ctx, topProductsSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.TopProduct, error) {
		var tp stats.TopProduct
		err := row.Scan(&tp.Name, &tp.Price, &tp.Sales, &tp.ImageURL)
		return tp, err
	})
}

func (s *StatsStore) count(ctx context.Context, sql string, args ...any) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}
