// Package handler binds the domain services to HTTP. Routing uses
// net/http ServeMux method patterns; responses are JSON with a uniform
// error envelope.
package handler

import (
	"context"
	"net/http"

	"github.com/merchkit/storefront/internal/domain/cart"
	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/stats"
)

// IdempotencyStore dedupes replayed checkout requests. Implemented by the
// redis storage layer; a nil store disables the feature.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// Handler serves the storefront API.
type Handler struct {
	products product.Repository
	cart     *cart.Service
	checkout *order.Service
	orders   order.Repository
	stats    *stats.Service
	idem     IdempotencyStore
}

// NewHandler constructs a Handler with the required domain dependencies.
// idem may be nil, which disables checkout idempotency.
func NewHandler(
	products product.Repository,
	cartSvc *cart.Service,
	checkoutSvc *order.Service,
	orders order.Repository,
	statsSvc *stats.Service,
	idem IdempotencyStore,
) *Handler {
	return &Handler{
		products: products,
		cart:     cartSvc,
		checkout: checkoutSvc,
		orders:   orders,
		stats:    statsSvc,
		idem:     idem,
	}
}

// Routes registers the public API routes on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)

	mux.HandleFunc("GET /api/users/{id}/cart", h.getCart)
	mux.HandleFunc("POST /api/users/{id}/cart/items", h.addCartItem)
	mux.HandleFunc("PUT /api/users/{id}/cart/items", h.updateCartItem)
	mux.HandleFunc("DELETE /api/users/{id}/cart/items/{productID}", h.removeCartItem)
	mux.HandleFunc("DELETE /api/users/{id}/cart", h.clearCart)

	mux.HandleFunc("POST /api/users/{id}/checkout", h.checkoutCart)
	mux.HandleFunc("GET /api/users/{id}/orders", h.listUserOrders)
}

// AdminRoutes registers the admin reporting routes on mux. The caller is
// expected to guard them with RequireAPIKey.
func (h *Handler) AdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/orders", h.listOrders)
	mux.HandleFunc("GET /api/admin/stats", h.dashboardStats)
}
