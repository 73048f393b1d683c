package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/valenciashop/valencia/internal/config"
	"github.com/valenciashop/valencia/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)

	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	r.HandleFunc("/checkout", h.Checkout).Methods("POST").Name("checkout")

	r.HandleFunc("/orders", h.ListOrders).Methods("GET").Name("orders.list")
	r.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET").Name("orders.get")
	r.HandleFunc("/orders/{id}/payment", h.GetOrderPayment).Methods("GET").Name("orders.payment")
	r.HandleFunc("/orders/{id}/status", h.UpdateOrderStatus).Methods("POST").Name("orders.status")

	r.HandleFunc("/payments/gateway/confirm", h.ConfirmGatewayPayment).Methods("POST").Name("payments.gateway.confirm")

	// Admin routes require a bearer token; the subject lands in the
	// inventory ledger's created_by.
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(h.RequireAdmin)
	adminRouter.HandleFunc("/inventory", h.ListInventory).Methods("GET").Name("admin.inventory.list")
	adminRouter.HandleFunc("/inventory/low-stock", h.LowStock).Methods("GET").Name("admin.inventory.low_stock")
	adminRouter.HandleFunc("/inventory/logs", h.InventoryLogs).Methods("GET").Name("admin.inventory.logs")
	adminRouter.HandleFunc("/inventory/adjust", h.AdjustInventory).Methods("POST").Name("admin.inventory.adjust")
	adminRouter.HandleFunc("/inventory/set", h.SetInventory).Methods("POST").Name("admin.inventory.set")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})

	return r
}
