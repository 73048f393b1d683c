package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valenciashop/valencia/internal/models"
)

// InventoryStore is the single writable path for variant stock. Every
// mutation writes the stock counter and an inventory_log row in one
// transaction; either both persist or neither does.
type InventoryStore struct {
	pool *pgxpool.Pool
}

func NewInventoryStore(pool *pgxpool.Pool) *InventoryStore {
	return &InventoryStore{pool: pool}
}

type stockChange struct {
	variantID  uuid.UUID
	delta      int
	absolute   *int
	changeType models.ChangeType
	reason     string
	actor      string
}

// RecordChange applies a signed delta to a variant's stock. Sale decrements
// use an atomic conditional update: if the result would be negative the
// whole operation fails with InsufficientStockError and nothing is written.
// Admin change types clamp at zero instead, logging the delta actually
// applied. Availability is recomputed on every successful mutation.
func (s *InventoryStore) RecordChange(ctx context.Context, variantID uuid.UUID, delta int, changeType models.ChangeType, reason, actor string) (*models.InventoryLogEntry, error) {
	if !changeType.Valid() {
		return nil, fmt.Errorf("unknown inventory change type: %s", changeType)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin inventory transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := applyStockChange(ctx, tx, stockChange{
		variantID:  variantID,
		delta:      delta,
		changeType: changeType,
		reason:     reason,
		actor:      actor,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit inventory transaction: %w", err)
	}
	return entry, nil
}

// SetAbsolute moves a variant's stock to an exact quantity; the logged delta
// is derived from the previous value. Negative targets are rejected.
func (s *InventoryStore) SetAbsolute(ctx context.Context, variantID uuid.UUID, quantity int, changeType models.ChangeType, reason, actor string) (*models.InventoryLogEntry, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("target stock quantity must not be negative: %d", quantity)
	}
	if !changeType.Valid() {
		return nil, fmt.Errorf("unknown inventory change type: %s", changeType)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin inventory transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := applyStockChange(ctx, tx, stockChange{
		variantID:  variantID,
		absolute:   &quantity,
		changeType: changeType,
		reason:     reason,
		actor:      actor,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit inventory transaction: %w", err)
	}
	return entry, nil
}

// applyStockChange runs inside the caller's transaction so order creation
// can decrement stock atomically with its own inserts.
func applyStockChange(ctx context.Context, q querier, change stockChange) (*models.InventoryLogEntry, error) {
	var previous, current int
	var err error

	switch {
	case change.absolute != nil:
		previous, current, err = setQuantityLocked(ctx, q, change.variantID, *change.absolute)
	case change.delta < 0 && change.changeType.ClampsAtZero():
		previous, current, err = decrementClamped(ctx, q, change.variantID, change.delta)
	default:
		previous, current, err = adjustConditional(ctx, q, change.variantID, change.delta)
	}
	if err != nil {
		return nil, err
	}

	entry := &models.InventoryLogEntry{
		VariantID:        change.variantID,
		ChangeType:       change.changeType,
		QuantityChange:   current - previous,
		PreviousQuantity: previous,
		NewQuantity:      current,
		Reason:           change.reason,
		CreatedBy:        change.actor,
	}

	row := q.QueryRow(ctx, `
		INSERT INTO inventory_log (variant_id, change_type, quantity_change, previous_quantity, new_quantity, reason, created_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		RETURNING id, created_at
	`, entry.VariantID, entry.ChangeType, entry.QuantityChange, entry.PreviousQuantity, entry.NewQuantity, entry.Reason, entry.CreatedBy)

	var createdAt pgtype.Timestamptz
	if err := row.Scan(&entry.ID, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to insert inventory log entry: %w", err)
	}
	entry.CreatedAt = createdAt.Time

	return entry, nil
}

// adjustConditional applies the delta only if the result stays at or above
// zero. The guard lives in the statement itself, so two concurrent sales of
// the last units serialize at the row: one commits, the other sees zero
// affected rows and fails.
func adjustConditional(ctx context.Context, q querier, variantID uuid.UUID, delta int) (previous, current int, err error) {
	row := q.QueryRow(ctx, `
		UPDATE product_variants
		SET stock_quantity = stock_quantity + $2,
		    is_available = stock_quantity + $2 > 0,
		    updated_at = now()
		WHERE id = $1 AND stock_quantity + $2 >= 0
		RETURNING stock_quantity
	`, variantID, delta)

	if err := row.Scan(&current); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, fmt.Errorf("failed to adjust stock: %w", err)
		}
		available, lookupErr := currentQuantity(ctx, q, variantID)
		if lookupErr != nil {
			return 0, 0, lookupErr
		}
		return 0, 0, &models.InsufficientStockError{
			VariantID: variantID,
			Requested: -delta,
			Available: available,
		}
	}
	return current - delta, current, nil
}

func decrementClamped(ctx context.Context, q querier, variantID uuid.UUID, delta int) (previous, current int, err error) {
	previous, err = lockQuantity(ctx, q, variantID)
	if err != nil {
		return 0, 0, err
	}

	current = previous + delta
	if current < 0 {
		current = 0
	}
	if err := writeQuantity(ctx, q, variantID, current); err != nil {
		return 0, 0, err
	}
	return previous, current, nil
}

func setQuantityLocked(ctx context.Context, q querier, variantID uuid.UUID, quantity int) (previous, current int, err error) {
	previous, err = lockQuantity(ctx, q, variantID)
	if err != nil {
		return 0, 0, err
	}
	if err := writeQuantity(ctx, q, variantID, quantity); err != nil {
		return 0, 0, err
	}
	return previous, quantity, nil
}

func lockQuantity(ctx context.Context, q querier, variantID uuid.UUID) (int, error) {
	var quantity int
	err := q.QueryRow(ctx, `SELECT stock_quantity FROM product_variants WHERE id = $1 FOR UPDATE`, variantID).Scan(&quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrVariantNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read stock quantity: %w", err)
	}
	return quantity, nil
}

func currentQuantity(ctx context.Context, q querier, variantID uuid.UUID) (int, error) {
	var quantity int
	err := q.QueryRow(ctx, `SELECT stock_quantity FROM product_variants WHERE id = $1`, variantID).Scan(&quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrVariantNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read stock quantity: %w", err)
	}
	return quantity, nil
}

func writeQuantity(ctx context.Context, q querier, variantID uuid.UUID, quantity int) error {
	_, err := q.Exec(ctx, `
		UPDATE product_variants
		SET stock_quantity = $2, is_available = $2 > 0, updated_at = now()
		WHERE id = $1
	`, variantID, quantity)
	if err != nil {
		return fmt.Errorf("failed to write stock quantity: %w", err)
	}
	return nil
}

// LogFilter narrows Logs to one variant or one product; zero values mean no
// filter. Limit defaults to 50.
type LogFilter struct {
	VariantID uuid.UUID
	ProductID uuid.UUID
	Limit     int
}

// Logs returns audit entries newest-first, joined with variant SKU and
// product name for display. Read-only.
func (s *InventoryStore) Logs(ctx context.Context, filter LogFilter) ([]*models.InventoryLogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT l.id, l.variant_id, l.change_type, l.quantity_change, l.previous_quantity,
		       l.new_quantity, l.reason, l.created_by, l.created_at, v.sku, p.name
		FROM inventory_log l
		JOIN product_variants v ON v.id = l.variant_id
		JOIN products p ON p.id = v.product_id
	`
	args := []any{}
	switch {
	case filter.VariantID != uuid.Nil:
		query += ` WHERE l.variant_id = $1`
		args = append(args, filter.VariantID)
	case filter.ProductID != uuid.Nil:
		query += ` WHERE v.product_id = $1`
		args = append(args, filter.ProductID)
	}
	query += fmt.Sprintf(` ORDER BY l.created_at DESC, l.id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.InventoryLogEntry
	for rows.Next() {
		entry := &models.InventoryLogEntry{}
		var reason, createdBy pgtype.Text
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&entry.ID, &entry.VariantID, &entry.ChangeType, &entry.QuantityChange,
			&entry.PreviousQuantity, &entry.NewQuantity, &reason, &createdBy, &createdAt,
			&entry.SKU, &entry.ProductName); err != nil {
			return nil, fmt.Errorf("failed to scan inventory log entry: %w", err)
		}
		entry.Reason = reason.String
		entry.CreatedBy = createdBy.String
		entry.CreatedAt = createdAt.Time
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LowStock returns variants at or below the threshold, lowest stock first.
func (s *InventoryStore) LowStock(ctx context.Context, threshold int) ([]*models.ProductVariant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.id, v.product_id, v.sku, v.size, v.color, v.stock_quantity, v.is_available, v.updated_at, p.name
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.stock_quantity <= $1
		ORDER BY v.stock_quantity ASC, p.name ASC
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock variants: %w", err)
	}
	defer rows.Close()
	return scanVariants(rows)
}

// ListAll returns every variant ordered by product name.
func (s *InventoryStore) ListAll(ctx context.Context) ([]*models.ProductVariant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.id, v.product_id, v.sku, v.size, v.color, v.stock_quantity, v.is_available, v.updated_at, p.name
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		ORDER BY p.name ASC, v.sku ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()
	return scanVariants(rows)
}

func (s *InventoryStore) GetVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.id, v.product_id, v.sku, v.size, v.color, v.stock_quantity, v.is_available, v.updated_at, p.name
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
	`, variantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variant: %w", err)
	}
	defer rows.Close()

	variants, err := scanVariants(rows)
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, ErrVariantNotFound
	}
	return variants[0], nil
}

func scanVariants(rows pgx.Rows) ([]*models.ProductVariant, error) {
	var variants []*models.ProductVariant
	for rows.Next() {
		variant := &models.ProductVariant{}
		var size, color pgtype.Text
		var updatedAt pgtype.Timestamptz
		if err := rows.Scan(&variant.ID, &variant.ProductID, &variant.SKU, &size, &color,
			&variant.StockQuantity, &variant.IsAvailable, &updatedAt, &variant.ProductName); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variant.Size = size.String
		variant.Color = color.String
		variant.UpdatedAt = updatedAt.Time
		variants = append(variants, variant)
	}
	return variants, rows.Err()
}
