package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/merchkit/storefront/internal/domain/order"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f := order.Filter{
		Status: order.Status(r.URL.Query().Get("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, r, http.StatusBadRequest, "validation", "unknown order status")
		return
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "validation", "since must be RFC 3339")
			return
		}
		f.Since = t
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "validation", "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponses(orders))
}

type recentOrderResponse struct {
	ID         string    `json:"id"`
	User       string    `json:"user"`
	Amount     float64   `json:"amount"`
	ItemsCount int       `json:"itemsCount"`
	Status     string    `json:"status"`
	Date       time.Time `json:"date"`
}

type topProductResponse struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Sales    int     `json:"sales"`
	ImageURL string  `json:"imageUrl"`
}

type statsResponse struct {
	TotalRevenue  float64               `json:"totalRevenue"`
	RevenueChange float64               `json:"revenueChange"`
	Orders        int                   `json:"orders"`
	OrdersChange  float64               `json:"ordersChange"`
	Products      int                   `json:"products"`
	ActiveUsers   int                   `json:"activeUsers"`
	UsersChange   float64               `json:"usersChange"`
	RecentOrders  []recentOrderResponse `json:"recentOrders"`
	TopProducts   []topProductResponse  `json:"topProducts"`
}

func (h *Handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	ov, err := h.stats.Overview(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	recent := make([]recentOrderResponse, len(ov.RecentOrders))
	for i, ro := range ov.RecentOrders {
		recent[i] = recentOrderResponse{
			ID:         ro.ID,
			User:       ro.UserName,
			Amount:     ro.Amount.InexactFloat64(),
			ItemsCount: ro.ItemsCount,
			Status:     string(ro.Status),
			Date:       ro.Date,
		}
	}
	top := make([]topProductResponse, len(ov.TopProducts))
	for i, tp := range ov.TopProducts {
		top[i] = topProductResponse{
			Name:     tp.Name,
			Price:    tp.Price.InexactFloat64(),
			Sales:    tp.Sales,
			ImageURL: tp.ImageURL,
		}
	}

	writeJSON(w, r, http.StatusOK, statsResponse{
		TotalRevenue:  ov.TotalRevenue.InexactFloat64(),
		RevenueChange: ov.RevenueChange,
		Orders:        ov.Orders,
		OrdersChange:  ov.OrdersChange,
		Products:      ov.Products,
		ActiveUsers:   ov.ActiveUsers,
		UsersChange:   ov.UsersChange,
		RecentOrders:  recent,
		TopProducts:   top,
	})
}
