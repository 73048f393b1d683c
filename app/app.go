package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valenciashop/valencia/internal/cache"
	"github.com/valenciashop/valencia/internal/catalog"
	"github.com/valenciashop/valencia/internal/config"
	"github.com/valenciashop/valencia/internal/db"
	"github.com/valenciashop/valencia/internal/email"
	"github.com/valenciashop/valencia/internal/gateway"
	"github.com/valenciashop/valencia/internal/handlers"
	"github.com/valenciashop/valencia/internal/services"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	pricing, err := catalog.LoadPricing(cfg.PricingFile)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load pricing: %w", err)
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	orderStore := db.NewOrderStore(database)
	inventoryStore := db.NewInventoryStore(database)
	customerStore := db.NewCustomerStore(database)
	products := catalog.NewProducts(database, cacheProvider, logger.With("component", "catalog"))

	var notifier services.OrderNotifier
	if cfg.EmailEnabled() {
		provider, err := email.NewProvider(email.Config{
			Provider: cfg.EmailProvider,
			APIKey:   cfg.ResendAPIKey,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("failed to initialize email provider: %w", err)
		}
		notifier = services.NewEmailOrderNotifier(provider, customerStore, logger.With("component", "notifier"))
	}

	var paymentGateway *gateway.Client
	if cfg.StripeEnabled() {
		paymentGateway = gateway.NewClient(cfg.StripeSecretKey, cfg.StripeSuccessURL, cfg.StripeCancelURL)
	}

	checkoutService := newCheckoutService(orderStore, products, customerStore, paymentGateway, pricing, notifier, logger)
	orderService := services.NewOrderService(orderStore, notifier, logger.With("component", "order_service"))
	inventoryService := services.NewInventoryService(inventoryStore, logger.With("component", "inventory_service"))

	h, err := handlers.New(handlers.Dependencies{
		Config:           cfg,
		DB:               database,
		CacheProvider:    cacheProvider,
		CheckoutService:  checkoutService,
		OrderService:     orderService,
		InventoryService: inventoryService,
		Logger:           logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
	}, nil
}

// newCheckoutService keeps the nil-gateway case a true nil interface; a
// typed nil pointer would defeat the service's availability check.
func newCheckoutService(
	orderStore *db.OrderStore,
	products *catalog.Products,
	customerStore *db.CustomerStore,
	paymentGateway *gateway.Client,
	pricing *catalog.Pricing,
	notifier services.OrderNotifier,
	logger *slog.Logger,
) *services.CheckoutService {
	serviceLogger := logger.With("component", "checkout_service")
	if paymentGateway == nil {
		return services.NewCheckoutService(orderStore, products, customerStore, nil, pricing, notifier, serviceLogger)
	}
	return services.NewCheckoutService(orderStore, products, customerStore, paymentGateway, pricing, notifier, serviceLogger)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	case "text", "":
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel}))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
