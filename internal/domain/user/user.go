package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// CartLine is one product entry inside a user's cart. Name and Price are
// captured from the catalog when the line is first added; they are the
// snapshot that checkout charges, regardless of later catalog changes.
type CartLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// User is the account aggregate. The cart is embedded: it has no identity of
// its own, and every mutation rewrites the whole line list on Save.
type User struct {
	ID        string
	FullName  string
	Email     string
	Status    string
	Cart      []CartLine
	CreatedAt time.Time
}

// CartLineIndex returns the index of the cart line holding productID,
// or -1 when no such line exists. At most one line per product is kept.
func (u *User) CartLineIndex(productID string) int {
	for i := range u.Cart {
		if u.Cart[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// RemoveCartLine drops the line for productID, if present.
func (u *User) RemoveCartLine(productID string) {
	if i := u.CartLineIndex(productID); i >= 0 {
		u.Cart = append(u.Cart[:i], u.Cart[i+1:]...)
	}
}

// Repository defines persistence operations for the user aggregate.
// Save persists the entire aggregate, embedded cart included; there is no
// partial update and concurrent writers are last-write-wins.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	Save(ctx context.Context, u *User) error
}
