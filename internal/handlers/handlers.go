package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valenciashop/valencia/internal/cache"
	"github.com/valenciashop/valencia/internal/catalog"
	"github.com/valenciashop/valencia/internal/config"
	"github.com/valenciashop/valencia/internal/db"
	"github.com/valenciashop/valencia/internal/logging"
	"github.com/valenciashop/valencia/internal/models"
	"github.com/valenciashop/valencia/internal/services"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// Handlers provides the HTTP surface of the storefront API.
type Handlers struct {
	config           *config.Config
	db               *pgxpool.Pool
	cacheProvider    cache.Provider
	checkoutService  *services.CheckoutService
	orderService     *services.OrderService
	inventoryService *services.InventoryService
	logger           *slog.Logger
}

type Dependencies struct {
	Config           *config.Config
	DB               *pgxpool.Pool
	CacheProvider    cache.Provider
	CheckoutService  *services.CheckoutService
	OrderService     *services.OrderService
	InventoryService *services.InventoryService
	Logger           *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}
	if deps.CheckoutService == nil {
		return nil, fmt.Errorf("handlers dependencies: checkoutService is required")
	}
	if deps.OrderService == nil {
		return nil, fmt.Errorf("handlers dependencies: orderService is required")
	}
	if deps.InventoryService == nil {
		return nil, fmt.Errorf("handlers dependencies: inventoryService is required")
	}

	return &Handlers{
		config:           deps.Config,
		db:               deps.DB,
		cacheProvider:    deps.CacheProvider,
		checkoutService:  deps.CheckoutService,
		orderService:     deps.OrderService,
		inventoryService: deps.InventoryService,
		logger:           logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (h *Handlers) respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// respondError maps domain errors onto HTTP statuses. Unknown errors become
// an opaque 500; their detail goes to the log, not the client.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var transitionErr *models.InvalidStatusTransitionError
	var stockErr *models.InsufficientStockError
	var totalErr *models.OrderTotalMismatchError
	var validationErr validator.ValidationErrors

	switch {
	case errors.Is(err, db.ErrOrderNotFound),
		errors.Is(err, db.ErrVariantNotFound),
		errors.Is(err, db.ErrUserNotFound),
		errors.Is(err, catalog.ErrProductNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.As(err, &transitionErr), errors.As(err, &stockErr):
		status = http.StatusConflict
		message = err.Error()
	case errors.As(err, &totalErr):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	case errors.Is(err, services.ErrAddressNotOwned):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, services.ErrGatewayUnavailable):
		status = http.StatusServiceUnavailable
		message = err.Error()
	case errors.Is(err, services.ErrInvalidDiscount),
		errors.Is(err, services.ErrReasonRequired),
		errors.Is(err, services.ErrSaleNotManual),
		errors.Is(err, catalog.ErrVariantMismatch),
		errors.As(err, &validationErr):
		status = http.StatusBadRequest
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		h.loggerFromContext(r.Context()).Error("request failed", "error", err, "path", r.URL.Path)
	}

	h.respondJSON(w, r, status, map[string]string{"error": message})
}
