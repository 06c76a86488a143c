package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/merchkit/storefront/internal/domain/product"
)

// productResponse is the catalog item JSON shape. Prices cross the wire as
// JSON numbers; exact decimals stay internal.
type productResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Stock       int      `json:"stock"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Image       string   `json:"image"`
}

func toProductResponse(p product.Product) productResponse {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price.InexactFloat64(),
		Category:    p.Category,
		Stock:       p.Stock,
		Description: p.Description,
		Features:    features,
		Image:       p.ImageURL,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "product not found")
			return
		}
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProductResponse(*p))
}
