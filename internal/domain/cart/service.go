// Package cart implements the cart engine: mutations on the line list
// embedded in a user aggregate, and resolution of that list against the
// live catalog for display.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/user"
	"github.com/merchkit/storefront/pkg/syncutil"
)

// ViewItem is one resolved cart entry for display. Everything except
// Quantity comes from the live catalog: the name/price snapshot stored on
// the line is a write-time capture used by checkout, never shown here.
type ViewItem struct {
	ProductID   string
	Name        string
	Price       decimal.Decimal
	Quantity    int
	Category    string
	Stock       int
	Description string
	Features    []string
	ImageURL    string
}

// View is the resolved cart returned by every cart operation.
type View struct {
	Items []ViewItem
}

// Service maintains the cart invariant: at most one line per product,
// quantity always positive. Operations are serialized per user to avoid
// losing updates between the aggregate read and write.
type Service struct {
	users    user.Repository
	products product.Repository
	locks    *syncutil.KeyedMutex
}

// NewService creates a cart Service with the required dependencies.
func NewService(users user.Repository, products product.Repository, locks *syncutil.KeyedMutex) *Service {
	return &Service{
		users:    users,
		products: products,
		locks:    locks,
	}
}

// Get resolves the user's current cart against the live catalog.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return s.resolve(ctx, u)
}

// Add puts one unit of productID into the user's cart. A repeat add
// increments the existing line; a first add appends a new line capturing
// the product's current name and price.
func (s *Service) Add(ctx context.Context, userID, productID string) (*View, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	if i := u.CartLineIndex(productID); i >= 0 {
		u.Cart[i].Quantity++
	} else {
		u.Cart = append(u.Cart, user.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  1,
		})
	}

	if err := s.users.Save(ctx, u); err != nil {
		return nil, errors.Wrap(err, "save user")
	}
	return s.resolve(ctx, u)
}

// UpdateQuantity sets the quantity of an existing line. A missing line is a
// silent no-op. A non-positive quantity removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	i := u.CartLineIndex(productID)
	if i < 0 {
		return s.resolve(ctx, u)
	}

	if quantity <= 0 {
		u.RemoveCartLine(productID)
	} else {
		u.Cart[i].Quantity = quantity
	}

	if err := s.users.Save(ctx, u); err != nil {
		return nil, errors.Wrap(err, "save user")
	}
	return s.resolve(ctx, u)
}

// Remove deletes the line for productID. Removing an absent line is a no-op.
func (s *Service) Remove(ctx context.Context, userID, productID string) (*View, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	if u.CartLineIndex(productID) >= 0 {
		u.RemoveCartLine(productID)
		if err := s.users.Save(ctx, u); err != nil {
			return nil, errors.Wrap(err, "save user")
		}
	}
	return s.resolve(ctx, u)
}

// Clear empties the cart unconditionally.
func (s *Service) Clear(ctx context.Context, userID string) (*View, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	u.Cart = nil
	if err := s.users.Save(ctx, u); err != nil {
		return nil, errors.Wrap(err, "save user")
	}
	return &View{Items: []ViewItem{}}, nil
}

// resolve joins the stored lines against the catalog in a single batch.
// Lines whose product no longer exists are dropped from the view; the cart
// itself keeps them and tolerates the staleness.
func (s *Service) resolve(ctx context.Context, u *user.User) (*View, error) {
	items := make([]ViewItem, 0, len(u.Cart))
	if len(u.Cart) == 0 {
		return &View{Items: items}, nil
	}

	ids := make([]string, len(u.Cart))
	for i, line := range u.Cart {
		ids[i] = line.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	for _, line := range u.Cart {
		p, ok := byID[line.ProductID]
		if !ok {
			continue
		}
		items = append(items, ViewItem{
			ProductID:   p.ID,
			Name:        p.Name,
			Price:       p.Price,
			Quantity:    line.Quantity,
			Category:    p.Category,
			Stock:       p.Stock,
			Description: p.Description,
			Features:    p.Features,
			ImageURL:    p.ImageURL,
		})
	}
	return &View{Items: items}, nil
}
