//go:build integration

package integration

import (
	"net/http"
	"testing"
)

type statsResponse struct {
	TotalRevenue float64 `json:"totalRevenue"`
	Orders       int     `json:"orders"`
	Products     int     `json:"products"`
	ActiveUsers  int     `json:"activeUsers"`
}

func TestAdmin_NoKey(t *testing.T) {
	resp := doGet(t, "/api/admin/stats")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdmin_WrongKey(t *testing.T) {
	resp := doGet(t, "/api/admin/orders", "X-API-Key", "wrong-key")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdmin_ListOrders(t *testing.T) {
	// Place one order so the report is never empty.
	clearCart(t, seededUser)
	resp := doReq(t, http.MethodPost, "/api/users/"+seededUser+"/cart/items",
		addItemRequest{ProductID: "p-lamp-05"})
	resp.Body.Close()
	resp = doReq(t, http.MethodPost, "/api/users/"+seededUser+"/checkout",
		checkoutRequest{Address: validAddress()})
	resp.Body.Close()

	listResp := doGet(t, "/api/admin/orders?status=paid", "X-API-Key", testAPIKey)
	defer listResp.Body.Close()
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", listResp.StatusCode)
	}

	orders := decodeJSON[[]orderResponse](t, listResp)
	if len(orders) == 0 {
		t.Fatal("expected at least one paid order")
	}
	for _, o := range orders {
		if o.Status != "paid" {
			t.Errorf("order %s: status %q, want paid", o.ID, o.Status)
		}
	}
}

func TestAdmin_ListOrders_BadFilter(t *testing.T) {
	resp := doGet(t, "/api/admin/orders?status=bogus", "X-API-Key", testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAdmin_Stats(t *testing.T) {
	resp := doGet(t, "/api/admin/stats", "X-API-Key", testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	stats := decodeJSON[statsResponse](t, resp)
	if stats.Products != 5 {
		t.Errorf("products: got %d, want 5", stats.Products)
	}
	if stats.ActiveUsers < 2 {
		t.Errorf("active users: got %d, want >= 2", stats.ActiveUsers)
	}
}
