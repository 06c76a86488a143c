//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != 5 {
		t.Fatalf("expected 5 products, got %d", len(products))
	}
	for _, p := range products {
		if p.ID == "" || p.Name == "" {
			t.Errorf("product %+v missing id or name", p)
		}
		if p.Price <= 0 {
			t.Errorf("product %s: price %v, want > 0", p.ID, p.Price)
		}
	}
}

func TestGetProduct(t *testing.T) {
	resp := doGet(t, "/api/products/p-grinder-02")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	p := decodeJSON[productResponse](t, resp)
	if p.Name != "Burr Coffee Grinder" {
		t.Errorf("name: got %q", p.Name)
	}
	if p.Price != 89.5 {
		t.Errorf("price: got %v, want 89.5", p.Price)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/p-nonexistent")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	e := decodeJSON[errorResponse](t, resp)
	if e.Error != "not_found" {
		t.Errorf("error kind: got %q, want not_found", e.Error)
	}
}
