//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/google/uuid"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestCheckout(t *testing.T) {
	clearCart(t, seededUser)

	for _, id := range []string{"p-grinder-02", "p-grinder-02", "p-lamp-05"} {
		resp := doReq(t, http.MethodPost, "/api/users/"+seededUser+"/cart/items",
			addItemRequest{ProductID: id})
		resp.Body.Close()
	}

	resp := doReq(t, http.MethodPost, "/api/users/"+seededUser+"/checkout",
		checkoutRequest{Address: validAddress()})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	created := decodeJSON[checkoutResponse](t, resp)
	if !uuidPattern.MatchString(created.OrderID) {
		t.Errorf("order ID %q is not a valid UUID", created.OrderID)
	}

	// Checkout empties the cart.
	cartResp := doGet(t, "/api/users/"+seededUser+"/cart")
	cart := decodeJSON[cartResponse](t, cartResp)
	cartResp.Body.Close()
	if len(cart.Items) != 0 {
		t.Errorf("cart not emptied: %+v", cart.Items)
	}

	// The order appears in history, charged at the snapshot prices:
	// 2 × 89.50 + 39.00 = 218.00.
	histResp := doGet(t, "/api/users/"+seededUser+"/orders")
	defer histResp.Body.Close()
	orders := decodeJSON[[]orderResponse](t, histResp)

	var found *orderResponse
	for i := range orders {
		if orders[i].ID == created.OrderID {
			found = &orders[i]
		}
	}
	if found == nil {
		t.Fatalf("order %s not in history", created.OrderID)
	}
	if found.Amount != 218.0 {
		t.Errorf("amount: got %v, want 218.0", found.Amount)
	}
	if found.Status != "paid" || !found.Payment {
		t.Errorf("order not marked paid: status=%q payment=%v", found.Status, found.Payment)
	}
	if len(found.Items) != 2 {
		t.Errorf("expected 2 item lines, got %d", len(found.Items))
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	clearCart(t, seededUser)

	resp := doReq(t, http.MethodPost, "/api/users/"+seededUser+"/checkout",
		checkoutRequest{Address: validAddress()})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if e := decodeJSON[errorResponse](t, resp); e.Error != "empty_cart" {
		t.Errorf("error kind: got %q, want empty_cart", e.Error)
	}
}

func TestCheckout_UnknownUser(t *testing.T) {
	resp := doReq(t, http.MethodPost, "/api/users/u-nonexistent/checkout",
		checkoutRequest{Address: validAddress()})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if e := decodeJSON[errorResponse](t, resp); e.Error != "user_not_found" {
		t.Errorf("error kind: got %q, want user_not_found", e.Error)
	}
}

func TestCheckout_InvalidAddress(t *testing.T) {
	clearCart(t, seededUser)
	resp := doReq(t, http.MethodPost, "/api/users/"+seededUser+"/cart/items",
		addItemRequest{ProductID: "p-lamp-05"})
	resp.Body.Close()

	addr := validAddress()
	addr.Zip = ""
	resp = doReq(t, http.MethodPost, "/api/users/"+seededUser+"/checkout",
		checkoutRequest{Address: addr})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if e := decodeJSON[errorResponse](t, resp); e.Error != "invalid_address" {
		t.Errorf("error kind: got %q, want invalid_address", e.Error)
	}

	// The cart survives a rejected checkout.
	cartResp := doGet(t, "/api/users/"+seededUser+"/cart")
	defer cartResp.Body.Close()
	if cart := decodeJSON[cartResponse](t, cartResp); len(cart.Items) != 1 {
		t.Errorf("cart changed by failed checkout: %+v", cart.Items)
	}
}

func TestCheckout_FailedAttemptFreesIdempotencyKey(t *testing.T) {
	clearCart(t, seededUser)
	resp := doReq(t, http.MethodPost, "/api/users/"+seededUser+"/cart/items",
		addItemRequest{ProductID: "p-lamp-05"})
	resp.Body.Close()

	key := uuid.New().String()
	addr := validAddress()
	addr.City = ""
	first := doReq(t, http.MethodPost, "/api/users/"+seededUser+"/checkout",
		checkoutRequest{Address: addr}, "Idempotency-Key", key)
	first.Body.Close()
	if first.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", first.StatusCode)
	}

	// The corrected request may reuse the key.
	second := doReq(t, http.MethodPost, "/api/users/"+seededUser+"/checkout",
		checkoutRequest{Address: validAddress()}, "Idempotency-Key", key)
	defer second.Body.Close()
	if second.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 after corrected retry, got %d", second.StatusCode)
	}
}

func TestCheckout_IdempotencyKeyReplay(t *testing.T) {
	clearCart(t, seededUser)
	resp := doReq(t, http.MethodPost, "/api/users/"+seededUser+"/cart/items",
		addItemRequest{ProductID: "p-lamp-05"})
	resp.Body.Close()

	key := uuid.New().String()
	first := doReq(t, http.MethodPost, "/api/users/"+seededUser+"/checkout",
		checkoutRequest{Address: validAddress()}, "Idempotency-Key", key)
	defer first.Body.Close()
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.StatusCode)
	}
	created := decodeJSON[checkoutResponse](t, first)

	// Retrying with the same key replays the original order even though the
	// cart is now empty.
	second := doReq(t, http.MethodPost, "/api/users/"+seededUser+"/checkout",
		checkoutRequest{Address: validAddress()}, "Idempotency-Key", key)
	defer second.Body.Close()
	if second.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 replay, got %d", second.StatusCode)
	}
	if replay := decodeJSON[checkoutResponse](t, second); replay.OrderID != created.OrderID {
		t.Errorf("replay returned %q, want %q", replay.OrderID, created.OrderID)
	}
}
