package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/merchkit/storefront/internal/domain/cart"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/user"
)

// cartItemResponse is one resolved cart line: live catalog data merged with
// the stored quantity.
type cartItemResponse struct {
	ProductID   string   `json:"productId"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Quantity    int      `json:"quantity"`
	Category    string   `json:"category"`
	Stock       int      `json:"stock"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Image       string   `json:"image"`
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
}

func toCartResponse(v *cart.View) cartResponse {
	items := make([]cartItemResponse, len(v.Items))
	for i, it := range v.Items {
		features := it.Features
		if features == nil {
			features = []string{}
		}
		items[i] = cartItemResponse{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Price:       it.Price.InexactFloat64(),
			Quantity:    it.Quantity,
			Category:    it.Category,
			Stock:       it.Stock,
			Description: it.Description,
			Features:    features,
			Image:       it.ImageURL,
		}
	}
	return cartResponse{Items: items}
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
}

type updateCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// respondCart maps a cart operation result to HTTP. A missing user is
// swallowed into an empty cart by longstanding API convention; a missing
// product surfaces as 404.
func respondCart(w http.ResponseWriter, r *http.Request, v *cart.View, err error) {
	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, toCartResponse(v))
	case errors.Is(err, user.ErrNotFound):
		writeJSON(w, r, http.StatusOK, cartResponse{Items: []cartItemResponse{}})
	case errors.Is(err, product.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "product not found")
	default:
		writeInternal(w, r, err)
	}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.cart.Get(r.Context(), r.PathValue("id"))
	respondCart(w, r, v, err)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeBody(r, &req); err != nil || req.ProductID == "" {
		writeError(w, r, http.StatusBadRequest, "validation", "productId is required")
		return
	}

	v, err := h.cart.Add(r.Context(), r.PathValue("id"), req.ProductID)
	respondCart(w, r, v, err)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decodeBody(r, &req); err != nil || req.ProductID == "" {
		writeError(w, r, http.StatusBadRequest, "validation", "productId is required")
		return
	}

	v, err := h.cart.UpdateQuantity(r.Context(), r.PathValue("id"), req.ProductID, req.Quantity)
	respondCart(w, r, v, err)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	v, err := h.cart.Remove(r.Context(), r.PathValue("id"), r.PathValue("productID"))
	respondCart(w, r, v, err)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.cart.Clear(r.Context(), r.PathValue("id"))
	respondCart(w, r, v, err)
}
