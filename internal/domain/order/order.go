package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order. Orders transition
// pending → paid → shipped → completed, or pending → cancelled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known order states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Address is the shipping address embedded in an order. All fields are
// required and immutable once the order exists.
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
}

// Validate checks structural completeness of the address.
func (a Address) Validate() error {
	for _, f := range []struct {
		name, value string
	}{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"email", a.Email},
		{"address", a.Address},
		{"city", a.City},
		{"zip", a.Zip},
	} {
		if f.value == "" {
			return &InvalidAddressError{Field: f.name}
		}
	}
	return nil
}

// Item is an immutable snapshot of one cart line at checkout time. It never
// re-reads the catalog after creation.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Order is a durable record of a completed purchase. Items, Amount, Address
// and CreatedAt never change after creation; only Status and Payment may
// transition later.
type Order struct {
	ID        string
	UserID    string
	Items     []Item
	Amount    decimal.Decimal
	Address   Address
	Status    Status
	Payment   bool
	CreatedAt time.Time
}

// ErrEmptyCart is returned when checkout is attempted on a cart with no lines.
var ErrEmptyCart = errors.New("cart is empty")

// InvalidAddressError indicates a required address field is missing.
type InvalidAddressError struct {
	Field string
}

func (e *InvalidAddressError) Error() string {
	return "address field " + e.Field + " is required"
}

// Filter narrows reporting queries over the order store.
type Filter struct {
	Status Status
	Since  time.Time
	Limit  int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
}
