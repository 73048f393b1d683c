package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/valenciashop/valencia/internal/db"
	"github.com/valenciashop/valencia/internal/services"
)

// AdjustInventory applies a signed manual stock delta. The authenticated
// admin becomes the ledger's created_by.
func (h *Handlers) AdjustInventory(w http.ResponseWriter, r *http.Request) {
	var input services.AdjustInput
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.respondBadRequest(w, r, err)
		return
	}
	input.Actor = ActorFromContext(r.Context())

	entry, err := h.inventoryService.Adjust(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, entry)
}

// SetInventory moves a variant to an exact counted quantity.
func (h *Handlers) SetInventory(w http.ResponseWriter, r *http.Request) {
	var input services.SetInput
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.respondBadRequest(w, r, err)
		return
	}
	input.Actor = ActorFromContext(r.Context())

	entry, err := h.inventoryService.SetStock(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, entry)
}

func (h *Handlers) ListInventory(w http.ResponseWriter, r *http.Request) {
	variants, err := h.inventoryService.ListAll(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, map[string]any{"variants": variants})
}

func (h *Handlers) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.config.LowStockThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.respondBadRequest(w, r, err)
			return
		}
		threshold = parsed
	}

	variants, err := h.inventoryService.LowStock(r.Context(), threshold)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, map[string]any{
		"threshold": threshold,
		"variants":  variants,
	})
}

func (h *Handlers) InventoryLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := db.LogFilter{}

	if raw := query.Get("variant_id"); raw != "" {
		variantID, err := uuid.Parse(raw)
		if err != nil {
			h.respondBadRequest(w, r, err)
			return
		}
		filter.VariantID = variantID
	}
	if raw := query.Get("product_id"); raw != "" {
		productID, err := uuid.Parse(raw)
		if err != nil {
			h.respondBadRequest(w, r, err)
			return
		}
		filter.ProductID = productID
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.respondBadRequest(w, r, err)
			return
		}
		filter.Limit = limit
	}

	entries, err := h.inventoryService.Logs(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, map[string]any{"entries": entries})
}
