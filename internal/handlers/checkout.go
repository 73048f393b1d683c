package handlers

import (
	"net/http"

	"github.com/valenciashop/valencia/internal/services"
)

// Checkout places an order from a cart. Online orders get a payment URL;
// cash-on-delivery orders are complete as placed.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var input services.CheckoutInput
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.respondBadRequest(w, r, err)
		return
	}

	result, err := h.checkoutService.PlaceOrder(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusCreated, result)
}
