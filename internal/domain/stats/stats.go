// Package stats aggregates orders, users and products into the admin
// dashboard overview.
package stats

import (
	"context"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/order"
)

// RecentOrder is one row of the dashboard's latest-orders table.
type RecentOrder struct {
	ID         string
	UserName   string
	Amount     decimal.Decimal
	ItemsCount int
	Status     order.Status
	Date       time.Time
}

// TopProduct is one row of the dashboard's best-sellers table. Sales counts
// units sold across all orders.
type TopProduct struct {
	Name     string
	Price    decimal.Decimal
	Sales    int
	ImageURL string
}

// Overview is the dashboard payload. Change fields compare the current
// calendar month against the previous one, in percent.
type Overview struct {
	TotalRevenue  decimal.Decimal
	RevenueChange float64
	Orders        int
	OrdersChange  float64
	Products      int
	ActiveUsers   int
	UsersChange   float64
	RecentOrders  []RecentOrder
	TopProducts   []TopProduct
}

// Store provides the aggregate queries the dashboard needs. Implemented by
// the postgres storage layer.
type Store interface {
	PaidRevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	OrderCountBetween(ctx context.Context, from, to time.Time) (int, error)
	UserCountBetween(ctx context.Context, from, to time.Time) (int, error)
	ActiveUserCount(ctx context.Context) (int, error)
	ProductCount(ctx context.Context) (int, error)
	RecentOrders(ctx context.Context, limit int) ([]RecentOrder, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
}

// Service computes the dashboard overview.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a stats Service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Overview builds the full dashboard payload.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	now := s.now().UTC()
	startCurrent := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	startPrevious := startCurrent.AddDate(0, -1, 0)

	curRevenue, err := s.store.PaidRevenueBetween(ctx, startCurrent, now)
	if err != nil {
		return nil, errors.Wrap(err, "current revenue")
	}
	prevRevenue, err := s.store.PaidRevenueBetween(ctx, startPrevious, startCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "previous revenue")
	}

	curOrders, err := s.store.OrderCountBetween(ctx, startCurrent, now)
	if err != nil {
		return nil, errors.Wrap(err, "current orders")
	}
	prevOrders, err := s.store.OrderCountBetween(ctx, startPrevious, startCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "previous orders")
	}

	curUsers, err := s.store.UserCountBetween(ctx, startCurrent, now)
	if err != nil {
		return nil, errors.Wrap(err, "current users")
	}
	prevUsers, err := s.store.UserCountBetween(ctx, startPrevious, startCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "previous users")
	}

	activeUsers, err := s.store.ActiveUserCount(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "active users")
	}
	products, err := s.store.ProductCount(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "product count")
	}

	recent, err := s.store.RecentOrders(ctx, 5)
	if err != nil {
		return nil, errors.Wrap(err, "recent orders")
	}
	top, err := s.store.TopProducts(ctx, 5)
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}

	return &Overview{
		TotalRevenue:  curRevenue.Round(2),
		RevenueChange: percentChange(curRevenue.InexactFloat64(), prevRevenue.InexactFloat64()),
		Orders:        curOrders,
		OrdersChange:  percentChange(float64(curOrders), float64(prevOrders)),
		Products:      products,
		ActiveUsers:   activeUsers,
		UsersChange:   percentChange(float64(curUsers), float64(prevUsers)),
		RecentOrders:  recent,
		TopProducts:   top,
	}, nil
}

// percentChange returns the relative change from previous to current,
// rounded to two decimals. A zero previous value maps to 100 when anything
// was gained and 0 otherwise.
func percentChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return math.Round((current-previous)/previous*10000) / 100
}
