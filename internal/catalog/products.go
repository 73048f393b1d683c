package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/valenciashop/valencia/internal/cache"
)

var ErrProductNotFound = errors.New("product not found")
var ErrVariantMismatch = errors.New("variant does not belong to product")

// ProductSnapshot carries the current name and price of a product, captured
// into order items at checkout time so later catalog edits never alter
// historical orders.
type ProductSnapshot struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

const snapshotTTL = 5 * time.Minute

// Products answers current-name/price lookups, caching snapshots briefly.
// A stale cache only affects the snapshot copied into an order, never stock.
type Products struct {
	pool   *pgxpool.Pool
	cache  cache.Provider
	logger *slog.Logger
}

func NewProducts(pool *pgxpool.Pool, cacheProvider cache.Provider, logger *slog.Logger) *Products {
	return &Products{pool: pool, cache: cacheProvider, logger: logger}
}

func (p *Products) Product(ctx context.Context, productID uuid.UUID) (*ProductSnapshot, error) {
	key := cache.ProductKey(productID.String())
	if cached, err := p.cache.Get(ctx, key); err == nil {
		var snapshot ProductSnapshot
		if err := json.Unmarshal([]byte(cached), &snapshot); err == nil {
			return &snapshot, nil
		}
		// Corrupt cache entries are dropped and reloaded.
		_ = p.cache.Delete(ctx, key)
	}

	snapshot := &ProductSnapshot{}
	err := p.pool.QueryRow(ctx, `SELECT id, name, price FROM products WHERE id = $1`, productID).
		Scan(&snapshot.ID, &snapshot.Name, &snapshot.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	if encoded, err := json.Marshal(snapshot); err == nil {
		if cacheErr := p.cache.Set(ctx, key, string(encoded), snapshotTTL); cacheErr != nil {
			p.logger.Warn("failed to cache product snapshot", "error", cacheErr, "product_id", productID)
		}
	}
	return snapshot, nil
}

// VerifyVariant checks that the variant exists and belongs to the product.
// Stock itself is not checked here; the ledger's conditional decrement is
// the only authority on availability at commit time.
func (p *Products) VerifyVariant(ctx context.Context, productID, variantID uuid.UUID) error {
	var owner uuid.UUID
	err := p.pool.QueryRow(ctx, `SELECT product_id FROM product_variants WHERE id = $1`, variantID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrVariantMismatch, variantID)
	}
	if err != nil {
		return fmt.Errorf("failed to query variant: %w", err)
	}
	if owner != productID {
		return fmt.Errorf("%w: variant %s belongs to product %s", ErrVariantMismatch, variantID, owner)
	}
	return nil
}
