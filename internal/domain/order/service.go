package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/user"
	"github.com/merchkit/storefront/pkg/syncutil"
)

// Service converts a user's cart into a durable order. It deliberately has
// no catalog dependency: checkout charges the name/price snapshot stored on
// each cart line and never re-checks stock.
type Service struct {
	users  user.Repository
	orders Repository
	locks  *syncutil.KeyedMutex
	now    func() time.Time
}

// NewService creates a checkout Service with the required dependencies.
func NewService(users user.Repository, orders Repository, locks *syncutil.KeyedMutex) *Service {
	return &Service{
		users:  users,
		orders: orders,
		locks:  locks,
		now:    time.Now,
	}
}

// Checkout snapshots the user's cart into a paid order, persists it, and
// then empties the cart. The cart is untouched if order creation fails.
// If clearing the cart fails after the order was persisted, the order
// survives and the error is returned: the caller observes a created order
// with a stale cart, and no compensation is attempted.
func (s *Service) Checkout(ctx context.Context, userID string, addr Address) (*Order, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	if len(u.Cart) == 0 {
		return nil, ErrEmptyCart
	}

	if err := addr.Validate(); err != nil {
		return nil, err
	}

	items := make([]Item, len(u.Cart))
	amount := decimal.Zero
	for i, line := range u.Cart {
		items[i] = Item{
			ProductID: line.ProductID,
			Name:      line.Name,
			Price:     line.Price,
			Quantity:  line.Quantity,
		}
		amount = amount.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	amount = amount.Round(2)

	// Payment is captured synchronously: the order is born paid. A real
	// authorize/capture step would slot in here, before Create.
	o := &Order{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		Items:     items,
		Amount:    amount,
		Address:   addr,
		Status:    StatusPaid,
		Payment:   true,
		CreatedAt: s.now().UTC(),
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	u.Cart = nil
	if err := s.users.Save(ctx, u); err != nil {
		return nil, errors.Wrapf(err, "clear cart after order %s", o.ID)
	}

	return o, nil
}

// History returns the user's orders, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}
