package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/user"
)

const idempotencyScope = "checkout"

type checkoutRequest struct {
	Address order.Address `json:"address"`
}

type checkoutResponse struct {
	OrderID string `json:"orderId"`
}

func (h *Handler) checkoutCart(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation", "malformed request body")
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	locked := false
	if h.idem != nil && idemKey != "" {
		acquired, err := h.idem.TryLock(r.Context(), idempotencyScope, idemKey)
		if err != nil {
			writeInternal(w, r, err)
			return
		}
		locked = acquired
		if !acquired {
			// Someone already claimed this key: replay the stored result,
			// or report the original request as still in flight.
			orderID, found, err := h.idem.Recall(r.Context(), idempotencyScope, idemKey)
			if err != nil {
				writeInternal(w, r, err)
				return
			}
			if found {
				writeJSON(w, r, http.StatusOK, checkoutResponse{OrderID: orderID})
				return
			}
			writeError(w, r, http.StatusConflict, "in_flight", "checkout with this idempotency key is in progress")
			return
		}
	}

	o, err := h.checkout.Checkout(r.Context(), userID, req.Address)
	if err != nil {
		if locked {
			// No order was created, so the key must stay reusable for a
			// corrected retry.
			if relErr := h.idem.Release(r.Context(), idempotencyScope, idemKey); relErr != nil {
				zctx.From(r.Context()).Warn("release idempotency lock", zap.Error(relErr))
			}
		}
		h.respondCheckoutError(w, r, err)
		return
	}

	if h.idem != nil && idemKey != "" {
		if err := h.idem.Remember(r.Context(), idempotencyScope, idemKey, o.ID); err != nil {
			// The order exists; losing the replay record only weakens
			// dedup, so log and continue.
			zctx.From(r.Context()).Warn("remember idempotency result",
				zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	writeJSON(w, r, http.StatusCreated, checkoutResponse{OrderID: o.ID})
}

func (h *Handler) respondCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var addrErr *order.InvalidAddressError
	switch {
	case errors.Is(err, user.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user_not_found", "user not found")
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, r, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.As(err, &addrErr):
		writeError(w, r, http.StatusBadRequest, "invalid_address", addrErr.Error())
	default:
		writeInternal(w, r, err)
	}
}
