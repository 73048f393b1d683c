package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/valenciashop/valencia/internal/models"
)

func decimalFromInt(value int) decimal.Decimal {
	return decimal.NewFromInt(int64(value))
}

// OrderStore persists the order aggregate. Creation writes the order, its
// items and its payment row in one transaction; readers never see a torn
// aggregate.
type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// StockDecrement names one sale-driven stock reservation taken inside the
// order creation transaction.
type StockDecrement struct {
	VariantID uuid.UUID
	Quantity  int
}

// Create persists the aggregate with a fresh order number and a pending
// payment row, then returns the fully reloaded aggregate.
func (s *OrderStore) Create(ctx context.Context, order *models.Order, currency string) (*models.Order, error) {
	return s.CreateWithStock(ctx, order, nil, currency)
}

// CreateWithStock additionally applies every sale decrement inside the same
// transaction. If any variant lacks stock, nothing is persisted: no order,
// no items, no payment, no decrement, no log entry.
func (s *OrderStore) CreateWithStock(ctx context.Context, order *models.Order, decrements []StockDecrement, currency string) (*models.Order, error) {
	if err := order.ValidateTotal(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin order transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, dec := range decrements {
		if _, err := applyStockChange(ctx, tx, stockChange{
			variantID:  dec.VariantID,
			delta:      -dec.Quantity,
			changeType: models.ChangeSale,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.createInTx(ctx, tx, order, currency); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order transaction: %w", err)
	}

	return s.GetByID(ctx, order.ID)
}

func (s *OrderStore) createInTx(ctx context.Context, tx pgx.Tx, order *models.Order, currency string) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = models.StatusPending
	}

	// A duplicate order number aborts the statement, so each attempt runs
	// under a savepoint. One retry with a fresh number, then give up.
	var insertErr error
	for attempt := 0; attempt < 2; attempt++ {
		number, err := newOrderNumber(time.Now())
		if err != nil {
			return err
		}

		nested, err := tx.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to open savepoint: %w", err)
		}
		insertErr = s.insertOrderRow(ctx, nested, order, number)
		if insertErr == nil {
			if err := nested.Commit(ctx); err != nil {
				return fmt.Errorf("failed to release savepoint: %w", err)
			}
			order.OrderNumber = number
			break
		}
		_ = nested.Rollback(ctx)
		if !isUniqueViolation(insertErr) {
			return insertErr
		}
	}
	if insertErr != nil {
		return fmt.Errorf("%w: retry exhausted", ErrDuplicateOrderNumber)
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.OrderID = order.ID
		if item.TotalPrice.IsZero() {
			item.TotalPrice = item.UnitPrice.Mul(decimalFromInt(item.Quantity))
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.TotalPrice); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO payments (id, order_id, method, status, amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), order.ID, order.PaymentMethod, models.PaymentStatusPending, order.TotalAmount, currency); err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	return nil
}

func (s *OrderStore) insertOrderRow(ctx context.Context, tx pgx.Tx, order *models.Order, number string) error {
	row := tx.QueryRow(ctx, `
		INSERT INTO orders (id, order_number, user_id, status, subtotal, tax, shipping, total,
		                    shipping_address_id, billing_address_id, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
		RETURNING created_at, updated_at
	`, order.ID, number, order.UserID, order.Status, order.Subtotal, order.Tax,
		order.ShippingCost, order.TotalAmount, order.ShippingAddressID, order.BillingAddressID,
		string(order.PaymentMethod))

	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&createdAt, &updatedAt); err != nil {
		return err
	}
	order.CreatedAt = createdAt.Time
	order.UpdatedAt = updatedAt.Time
	return nil
}

// UpdateStatus applies one transition. Legality is decided by the aggregate;
// persistence is guarded by the previous status so a concurrent transition
// loses cleanly instead of double-applying.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	staged := *order
	if err := staged.ApplyTransition(next, time.Now().UTC()); err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    updated_at = now(),
		    paid_at = CASE WHEN $2 = 'paid' THEN COALESCE(paid_at, now()) ELSE paid_at END,
		    shipped_at = CASE WHEN $2 = 'shipped' THEN COALESCE(shipped_at, now()) ELSE shipped_at END,
		    delivered_at = CASE WHEN $2 = 'delivered' THEN COALESCE(delivered_at, now()) ELSE delivered_at END
		WHERE id = $1 AND status = $3
	`, orderID, next, order.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, reloadErr := s.GetByID(ctx, orderID)
		if reloadErr != nil {
			return nil, reloadErr
		}
		return nil, &models.InvalidStatusTransitionError{From: current.Status, To: next}
	}

	return s.GetByID(ctx, orderID)
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.scanOrder(s.pool.QueryRow(ctx, selectOrderSQL+` WHERE id = $1`, orderID))
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := s.scanOrder(s.pool.QueryRow(ctx, selectOrderSQL+` WHERE order_number = $1`, orderNumber))
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// OrderFilter narrows List and Count; zero values mean no filter.
type OrderFilter struct {
	UserID uuid.UUID
	Status models.OrderStatus
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

func (f OrderFilter) where() (string, []any) {
	clauses := []string{}
	args := []any{}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.UserID != uuid.Nil {
		add("user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}

	where := ""
	for i, clause := range clauses {
		if i == 0 {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}
	return where, args
}

func (s *OrderStore) List(ctx context.Context, filter OrderFilter) ([]*models.Order, error) {
	where, args := filter.where()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := selectOrderSQL + where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := s.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		if err := s.loadItems(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *OrderStore) Count(ctx context.Context, filter OrderFilter) (int, error) {
	where, args := filter.where()
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func (s *OrderStore) GetPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	payment := &models.Payment{}
	var transactionID pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_id, method, status, amount, currency, transaction_id, created_at, updated_at
		FROM payments WHERE order_id = $1
	`, orderID).Scan(&payment.ID, &payment.OrderID, &payment.Method, &payment.Status,
		&payment.Amount, &payment.Currency, &transactionID, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}
	payment.TransactionID = transactionID.String
	payment.CreatedAt = createdAt.Time
	payment.UpdatedAt = updatedAt.Time
	return payment, nil
}

// UpdatePayment records the gateway's verdict on the order's payment row.
func (s *OrderStore) UpdatePayment(ctx context.Context, orderID uuid.UUID, status models.PaymentStatus, transactionID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payments
		SET status = $2, transaction_id = COALESCE(NULLIF($3, ''), transaction_id), updated_at = now()
		WHERE order_id = $1
	`, orderID, status, transactionID)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// Delete is operational cleanup only; cancellation is a status transition,
// never a row removal. Items and the payment cascade before the order row.
func (s *OrderStore) Delete(ctx context.Context, orderID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return tx.Commit(ctx)
}

const selectOrderSQL = `
	SELECT id, order_number, user_id, status, subtotal, tax, shipping, total,
	       shipping_address_id, billing_address_id, payment_method,
	       paid_at, shipped_at, delivered_at, created_at, updated_at
	FROM orders`

func (s *OrderStore) scanOrder(row pgx.Row) (*models.Order, error) {
	order := &models.Order{}
	var paymentMethod pgtype.Text
	var paidAt, shippedAt, deliveredAt, createdAt, updatedAt pgtype.Timestamptz

	err := row.Scan(&order.ID, &order.OrderNumber, &order.UserID, &order.Status,
		&order.Subtotal, &order.Tax, &order.ShippingCost, &order.TotalAmount,
		&order.ShippingAddressID, &order.BillingAddressID, &paymentMethod,
		&paidAt, &shippedAt, &deliveredAt, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	if paymentMethod.Valid {
		order.PaymentMethod = models.PaymentMethod(paymentMethod.String)
	}
	if paidAt.Valid {
		order.PaidAt = paidAt.Time
	}
	if shippedAt.Valid {
		order.ShippedAt = shippedAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = deliveredAt.Time
	}
	order.CreatedAt = createdAt.Time
	order.UpdatedAt = updatedAt.Time
	return order, nil
}

func (s *OrderStore) loadItems(ctx context.Context, order *models.Order) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, total_price
		FROM order_items WHERE order_id = $1 ORDER BY product_name ASC, id ASC
	`, order.ID)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	order.Items = order.Items[:0]
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}
