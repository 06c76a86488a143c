package handler

import (
	"net/http"
	"time"

	"github.com/merchkit/storefront/internal/domain/order"
)

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type orderResponse struct {
	ID      string              `json:"id"`
	UserID  string              `json:"userId"`
	Items   []orderItemResponse `json:"items"`
	Amount  float64             `json:"amount"`
	Address order.Address       `json:"address"`
	Status  string              `json:"status"`
	Payment bool                `json:"payment"`
	Date    time.Time           `json:"date"`
}

func toOrderResponse(o order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price.InexactFloat64(),
			Quantity:  it.Quantity,
		}
	}
	return orderResponse{
		ID:      o.ID,
		UserID:  o.UserID,
		Items:   items,
		Amount:  o.Amount.InexactFloat64(),
		Address: o.Address,
		Status:  string(o.Status),
		Payment: o.Payment,
		Date:    o.CreatedAt,
	}
}

func toOrderResponses(orders []order.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return resp
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkout.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponses(orders))
}
