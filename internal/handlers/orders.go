package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/valenciashop/valencia/internal/db"
	"github.com/valenciashop/valencia/internal/models"
)

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondBadRequest(w, r, err)
		return
	}

	order, err := h.orderService.Get(r.Context(), orderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, order)
}

func (h *Handlers) GetOrderPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondBadRequest(w, r, err)
		return
	}

	payment, err := h.orderService.GetPayment(r.Context(), orderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, payment)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := orderFilterFromQuery(r)
	if err != nil {
		h.respondBadRequest(w, r, err)
		return
	}

	orders, total, err := h.orderService.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, map[string]any{
		"orders": orders,
		"total":  total,
	})
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondBadRequest(w, r, err)
		return
	}

	var req updateStatusRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondBadRequest(w, r, err)
		return
	}
	if !req.Status.Valid() {
		h.respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "unknown order status: " + string(req.Status)})
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, order)
}

type gatewayConfirmRequest struct {
	OrderID       uuid.UUID `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	Succeeded     bool      `json:"succeeded"`
}

// ConfirmGatewayPayment records the payment gateway's verdict for an order.
func (h *Handlers) ConfirmGatewayPayment(w http.ResponseWriter, r *http.Request) {
	var req gatewayConfirmRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondBadRequest(w, r, err)
		return
	}
	if req.OrderID == uuid.Nil {
		h.respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "order_id is required"})
		return
	}

	order, err := h.orderService.ConfirmPayment(r.Context(), req.OrderID, req.TransactionID, req.Succeeded)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, order)
}

func orderFilterFromQuery(r *http.Request) (db.OrderFilter, error) {
	query := r.URL.Query()
	filter := db.OrderFilter{}

	if raw := query.Get("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return filter, err
		}
		filter.UserID = userID
	}
	if raw := query.Get("status"); raw != "" {
		status := models.OrderStatus(raw)
		if !status.Valid() {
			return filter, fmt.Errorf("unknown order status: %s", raw)
		}
		filter.Status = status
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.From = from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.To = to
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, err
		}
		filter.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return filter, err
		}
		filter.Offset = offset
	}

	return filter, nil
}
