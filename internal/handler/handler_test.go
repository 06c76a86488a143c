package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchkit/storefront/internal/domain/auth"
	"github.com/merchkit/storefront/internal/domain/cart"
	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/user"
	"github.com/merchkit/storefront/pkg/syncutil"
)

type memProducts struct {
	byID map[string]product.Product
}

func (m *memProducts) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memUsers struct {
	byID map[string]*user.User
}

func (m *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	cp.Cart = append([]user.CartLine(nil), u.Cart...)
	return &cp, nil
}

func (m *memUsers) Save(_ context.Context, u *user.User) error {
	if _, ok := m.byID[u.ID]; !ok {
		return user.ErrNotFound
	}
	cp := *u
	cp.Cart = append([]user.CartLine(nil), u.Cart...)
	m.byID[u.ID] = &cp
	return nil
}

type memOrders struct {
	created    []order.Order
	lastFilter order.Filter
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.created = append(m.created, *o)
	return nil
}

func (m *memOrders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.created {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	m.lastFilter = f
	var out []order.Order
	for _, o := range m.created {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

type memIdem struct {
	locked  map[string]bool
	results map[string]string
}

func newMemIdem() *memIdem {
	return &memIdem{locked: map[string]bool{}, results: map[string]string{}}
}

func (m *memIdem) TryLock(_ context.Context, scope, key string) (bool, error) {
	k := scope + ":" + key
	if m.locked[k] {
		return false, nil
	}
	m.locked[k] = true
	return true, nil
}

func (m *memIdem) Release(_ context.Context, scope, key string) error {
	delete(m.locked, scope+":"+key)
	return nil
}

func (m *memIdem) Remember(_ context.Context, scope, key, value string) error {
	m.results[scope+":"+key] = value
	return nil
}

func (m *memIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	v, ok := m.results[scope+":"+key]
	return v, ok, nil
}

type fixture struct {
	mux      *http.ServeMux
	products *memProducts
	users    *memUsers
	orders   *memOrders
	idem     *memIdem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &memProducts{byID: map[string]product.Product{
		"p1": {
			ID:       "p1",
			Name:     "Waffle",
			Price:    decimal.RequireFromString("4.50"),
			Category: "Breakfast",
			Stock:    10,
			Features: []string{"crispy"},
		},
		"p2": {
			ID:       "p2",
			Name:     "Latte",
			Price:    decimal.RequireFromString("3.25"),
			Category: "Drinks",
			Stock:    99,
		},
	}}
	users := &memUsers{byID: map[string]*user.User{
		"u1": {ID: "u1", FullName: "Nora Blake", Email: "nora@example.com", Status: "active"},
	}}
	orders := &memOrders{}
	idem := newMemIdem()

	locks := syncutil.NewKeyedMutex()
	h := NewHandler(
		products,
		cart.NewService(users, products, locks),
		order.NewService(users, orders, locks),
		orders,
		nil,
		idem,
	)

	mux := http.NewServeMux()
	h.Routes(mux)
	h.AdminRoutes(mux)
	return &fixture{mux: mux, products: products, users: users, orders: orders, idem: idem}
}

func (f *fixture) do(t *testing.T, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeInto[[]productResponse](t, rec)
	assert.Len(t, resp, 2)
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products/p1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeInto[productResponse](t, rec)
	assert.Equal(t, "Waffle", resp.Name)
	assert.InDelta(t, 4.50, resp.Price, 1e-9)

	rec = f.do(t, http.MethodGet, "/api/products/ghost", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	errResp := decodeInto[errorResponse](t, rec)
	assert.Equal(t, http.StatusNotFound, errResp.Code)
	assert.Equal(t, "not_found", errResp.Error)
}

func TestCartFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/users/u1/cart/items", `{"productId":"p1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeInto[cartResponse](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 1, resp.Items[0].Quantity)

	rec = f.do(t, http.MethodPost, "/api/users/u1/cart/items", `{"productId":"p1"}`)
	resp = decodeInto[cartResponse](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 2, resp.Items[0].Quantity)

	rec = f.do(t, http.MethodPut, "/api/users/u1/cart/items", `{"productId":"p1","quantity":5}`)
	resp = decodeInto[cartResponse](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 5, resp.Items[0].Quantity)

	rec = f.do(t, http.MethodDelete, "/api/users/u1/cart/items/p1", "")
	resp = decodeInto[cartResponse](t, rec)
	assert.Empty(t, resp.Items)
}

func TestAddCartItem_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/users/u1/cart/items", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeInto[errorResponse](t, rec).Error)
}

func TestAddCartItem_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/users/u1/cart/items", `{"productId":"ghost"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeInto[errorResponse](t, rec).Error)
}

func TestCartMutation_MissingUser(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		method, target, body string
	}{
		{http.MethodGet, "/api/users/ghost/cart", ""},
		{http.MethodPost, "/api/users/ghost/cart/items", `{"productId":"p1"}`},
		{http.MethodPut, "/api/users/ghost/cart/items", `{"productId":"p1","quantity":2}`},
		{http.MethodDelete, "/api/users/ghost/cart/items/p1", ""},
		{http.MethodDelete, "/api/users/ghost/cart", ""},
	} {
		rec := f.do(t, tc.method, tc.target, tc.body)
		require.Equal(t, http.StatusOK, rec.Code, "%s %s", tc.method, tc.target)
		assert.Empty(t, decodeInto[cartResponse](t, rec).Items)
	}
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/users/u1/cart/items", `{"productId":"p1"}`)
	f.do(t, http.MethodPost, "/api/users/u1/cart/items", `{"productId":"p2"}`)

	body := `{"address":{"firstName":"Nora","lastName":"Blake","email":"nora@example.com","address":"1 Pier Rd","city":"Margate","zip":"CT9"}}`
	rec := f.do(t, http.MethodPost, "/api/users/u1/checkout", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeInto[checkoutResponse](t, rec)
	assert.NotEmpty(t, resp.OrderID)

	require.Len(t, f.orders.created, 1)
	o := f.orders.created[0]
	assert.Equal(t, order.StatusPaid, o.Status)
	assert.True(t, o.Payment)
	assert.True(t, decimal.RequireFromString("7.75").Equal(o.Amount))

	// Cart is emptied once the order exists.
	cartRec := f.do(t, http.MethodGet, "/api/users/u1/cart", "")
	assert.Empty(t, decodeInto[cartResponse](t, cartRec).Items)

	ordersRec := f.do(t, http.MethodGet, "/api/users/u1/orders", "")
	require.Equal(t, http.StatusOK, ordersRec.Code)
	history := decodeInto[[]orderResponse](t, ordersRec)
	require.Len(t, history, 1)
	assert.Equal(t, resp.OrderID, history[0].ID)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	validAddr := `"address":{"firstName":"Nora","lastName":"Blake","email":"n@e.com","address":"1 Pier Rd","city":"Margate","zip":"CT9"}`

	t.Run("missing user", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/users/ghost/checkout", `{`+validAddr+`}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "user_not_found", decodeInto[errorResponse](t, rec).Error)
	})

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/users/u1/checkout", `{`+validAddr+`}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "empty_cart", decodeInto[errorResponse](t, rec).Error)
	})

	t.Run("invalid address", func(t *testing.T) {
		f := newFixture(t)
		f.do(t, http.MethodPost, "/api/users/u1/cart/items", `{"productId":"p1"}`)
		rec := f.do(t, http.MethodPost, "/api/users/u1/checkout", `{"address":{"firstName":"Nora"}}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_address", decodeInto[errorResponse](t, rec).Error)
		assert.Empty(t, f.orders.created)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/users/u1/checkout", `{"address":`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation", decodeInto[errorResponse](t, rec).Error)
	})
}

func TestCheckout_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/users/u1/cart/items", `{"productId":"p1"}`)

	body := `{"address":{"firstName":"Nora","lastName":"Blake","email":"n@e.com","address":"1 Pier Rd","city":"Margate","zip":"CT9"}}`
	rec := f.do(t, http.MethodPost, "/api/users/u1/checkout", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decodeInto[checkoutResponse](t, rec)

	// Same key again: replayed from the stored result, no new order.
	rec = f.do(t, http.MethodPost, "/api/users/u1/checkout", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.OrderID, decodeInto[checkoutResponse](t, rec).OrderID)
	assert.Len(t, f.orders.created, 1)
}

func TestCheckout_FailureFreesIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/users/u1/cart/items", `{"productId":"p1"}`)

	// First attempt fails validation; the key must not stay claimed.
	bad := `{"address":{"firstName":"Nora"}}`
	rec := f.do(t, http.MethodPost, "/api/users/u1/checkout", bad, "Idempotency-Key", "k-retry")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_address", decodeInto[errorResponse](t, rec).Error)

	// The corrected retry with the same key goes through.
	good := `{"address":{"firstName":"Nora","lastName":"Blake","email":"n@e.com","address":"1 Pier Rd","city":"Margate","zip":"CT9"}}`
	rec = f.do(t, http.MethodPost, "/api/users/u1/checkout", good, "Idempotency-Key", "k-retry")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, decodeInto[checkoutResponse](t, rec).OrderID)
	assert.Len(t, f.orders.created, 1)
}

func TestCheckout_EmptyCartFreesIdempotencyKey(t *testing.T) {
	f := newFixture(t)

	body := `{"address":{"firstName":"Nora","lastName":"Blake","email":"n@e.com","address":"1 Pier Rd","city":"Margate","zip":"CT9"}}`
	rec := f.do(t, http.MethodPost, "/api/users/u1/checkout", body, "Idempotency-Key", "k-empty")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.do(t, http.MethodPost, "/api/users/u1/cart/items", `{"productId":"p1"}`)
	rec = f.do(t, http.MethodPost, "/api/users/u1/checkout", body, "Idempotency-Key", "k-empty")
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestCheckout_InFlightConflict(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/users/u1/cart/items", `{"productId":"p1"}`)

	// Key claimed but no result yet: the original request is still running.
	acquired, err := f.idem.TryLock(context.Background(), "checkout", "k-busy")
	require.NoError(t, err)
	require.True(t, acquired)

	body := `{"address":{"firstName":"Nora","lastName":"Blake","email":"n@e.com","address":"1 Pier Rd","city":"Margate","zip":"CT9"}}`
	rec := f.do(t, http.MethodPost, "/api/users/u1/checkout", body, "Idempotency-Key", "k-busy")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "in_flight", decodeInto[errorResponse](t, rec).Error)
	assert.Empty(t, f.orders.created)
}

func TestListOrders_LimitParameter(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/admin/orders?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, f.orders.lastFilter.Limit)

	for _, bad := range []string{"0", "-3", "abc"} {
		rec = f.do(t, http.MethodGet, "/api/admin/orders?limit="+bad, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", bad)
		assert.Equal(t, "validation", decodeInto[errorResponse](t, rec).Error)
	}
}

type memKeys struct {
	byHash map[string]*auth.APIKey
}

func (m *memKeys) FindByHash(_ context.Context, hash string) (*auth.APIKey, error) {
	k, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return k, nil
}

func TestRequireAPIKey(t *testing.T) {
	pepper := []byte("test-pepper")
	hash := HashAPIKey("valid-key", pepper)
	keys := &memKeys{byHash: map[string]*auth.APIKey{
		hash: {ID: "ak1", KeyHash: hash, Name: "admin", Scopes: []string{"admin"}},
	}}

	var reached bool
	guarded := RequireAPIKey(keys, pepper)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing key", func(t *testing.T) {
		reached = false
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, reached)
	})

	t.Run("wrong key", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		req.Header.Set("X-API-Key", "wrong-key")
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, reached)
	})

	t.Run("valid key", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		req.Header.Set("X-API-Key", "valid-key")
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, reached)
	})
}
