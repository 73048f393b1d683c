package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/valenciashop/valencia/internal/db"
	"github.com/valenciashop/valencia/internal/models"
)

type fakeOrderStore struct {
	mu             sync.Mutex
	order          *models.Order
	payment        models.PaymentStatus
	transactionID  string
	paymentUpdates int
	statusHistory  []models.OrderStatus
}

func (f *fakeOrderStore) GetByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil || f.order.ID != orderID {
		return nil, db.ErrOrderNotFound
	}
	copied := *f.order
	return &copied, nil
}

func (f *fakeOrderStore) List(_ context.Context, _ db.OrderFilter) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil {
		return nil, nil
	}
	copied := *f.order
	return []*models.Order{&copied}, nil
}

func (f *fakeOrderStore) Count(_ context.Context, _ db.OrderFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil {
		return 0, nil
	}
	return 1, nil
}

func (f *fakeOrderStore) UpdateStatus(_ context.Context, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil || f.order.ID != orderID {
		return nil, db.ErrOrderNotFound
	}
	if err := f.order.ApplyTransition(next, time.Now().UTC()); err != nil {
		return nil, err
	}
	f.statusHistory = append(f.statusHistory, next)
	copied := *f.order
	return &copied, nil
}

func (f *fakeOrderStore) UpdatePayment(_ context.Context, orderID uuid.UUID, status models.PaymentStatus, transactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil || f.order.ID != orderID {
		return db.ErrOrderNotFound
	}
	f.paymentUpdates++
	f.payment = status
	if transactionID != "" {
		f.transactionID = transactionID
	}
	return nil
}

func (f *fakeOrderStore) GetPayment(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil || f.order.ID != orderID {
		return nil, db.ErrOrderNotFound
	}
	return &models.Payment{OrderID: orderID, Status: f.payment, TransactionID: f.transactionID}, nil
}

type channelNotifier struct {
	confirmed chan string
	shipped   chan string
}

func newChannelNotifier() *channelNotifier {
	return &channelNotifier{
		confirmed: make(chan string, 1),
		shipped:   make(chan string, 1),
	}
}

func (n *channelNotifier) OrderConfirmation(_ context.Context, order *models.Order) error {
	n.confirmed <- order.OrderNumber
	return nil
}

func (n *channelNotifier) OrderShipped(_ context.Context, order *models.Order) error {
	n.shipped <- order.OrderNumber
	return nil
}

func pendingOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		order: &models.Order{
			ID:          uuid.New(),
			OrderNumber: "VAL-20260901-AB12CD",
			Status:      models.StatusPending,
		},
		payment: models.PaymentStatusPending,
	}
}

func TestUpdateStatusAppliesTransition(t *testing.T) {
	t.Parallel()

	store := pendingOrderStore()
	svc := NewOrderService(store, nil, slog.Default())

	order, err := svc.UpdateStatus(context.Background(), store.order.ID, models.StatusProcessing)
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if order.Status != models.StatusProcessing {
		t.Errorf("Status = %s, want processing", order.Status)
	}
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	t.Parallel()

	store := pendingOrderStore()
	svc := NewOrderService(store, nil, slog.Default())

	_, err := svc.UpdateStatus(context.Background(), store.order.ID, models.StatusDelivered)
	var transitionErr *models.InvalidStatusTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("UpdateStatus() error = %v, want InvalidStatusTransitionError", err)
	}
	if store.order.Status != models.StatusPending {
		t.Errorf("Status = %s, want pending left untouched", store.order.Status)
	}
}

func TestUpdateStatusShippedNotifies(t *testing.T) {
	t.Parallel()

	store := pendingOrderStore()
	store.order.Status = models.StatusPaid
	notifier := newChannelNotifier()
	svc := NewOrderService(store, notifier, slog.Default())

	if _, err := svc.UpdateStatus(context.Background(), store.order.ID, models.StatusShipped); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	select {
	case number := <-notifier.shipped:
		if number != "VAL-20260901-AB12CD" {
			t.Errorf("shipped notification for %q, want the updated order", number)
		}
	case <-time.After(time.Second):
		t.Fatal("no shipment notification was sent")
	}
}

func TestConfirmPaymentSuccess(t *testing.T) {
	t.Parallel()

	store := pendingOrderStore()
	notifier := newChannelNotifier()
	svc := NewOrderService(store, notifier, slog.Default())

	order, err := svc.ConfirmPayment(context.Background(), store.order.ID, "txn_1", true)
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	if order.Status != models.StatusPaid {
		t.Errorf("Status = %s, want paid", order.Status)
	}
	if want := []models.OrderStatus{models.StatusProcessing, models.StatusPaid}; len(store.statusHistory) != 2 ||
		store.statusHistory[0] != want[0] || store.statusHistory[1] != want[1] {
		t.Errorf("status history = %v, want %v", store.statusHistory, want)
	}
	if store.payment != models.PaymentStatusSucceeded {
		t.Errorf("payment status = %s, want succeeded", store.payment)
	}
	if store.transactionID != "txn_1" {
		t.Errorf("transaction id = %q, want txn_1", store.transactionID)
	}

	select {
	case <-notifier.confirmed:
	case <-time.After(time.Second):
		t.Fatal("no confirmation was sent for the paid order")
	}
}

func TestConfirmPaymentFromProcessing(t *testing.T) {
	t.Parallel()

	store := pendingOrderStore()
	store.order.Status = models.StatusProcessing
	svc := NewOrderService(store, nil, slog.Default())

	order, err := svc.ConfirmPayment(context.Background(), store.order.ID, "txn_2", true)
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	if order.Status != models.StatusPaid {
		t.Errorf("Status = %s, want paid", order.Status)
	}
	if len(store.statusHistory) != 1 {
		t.Errorf("status history = %v, want the single processing -> paid step", store.statusHistory)
	}
}

func TestConfirmPaymentFailureLeavesOrderPending(t *testing.T) {
	t.Parallel()

	store := pendingOrderStore()
	svc := NewOrderService(store, nil, slog.Default())

	order, err := svc.ConfirmPayment(context.Background(), store.order.ID, "txn_3", false)
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	if order.Status != models.StatusPending {
		t.Errorf("Status = %s, want pending for a retry", order.Status)
	}
	if store.payment != models.PaymentStatusFailed {
		t.Errorf("payment status = %s, want failed", store.payment)
	}
	if len(store.statusHistory) != 0 {
		t.Errorf("status history = %v, want no transitions", store.statusHistory)
	}
}

func TestConfirmPaymentUnknownOrder(t *testing.T) {
	t.Parallel()

	store := pendingOrderStore()
	svc := NewOrderService(store, nil, slog.Default())

	_, err := svc.ConfirmPayment(context.Background(), uuid.New(), "txn_4", true)
	if !errors.Is(err, db.ErrOrderNotFound) {
		t.Fatalf("ConfirmPayment() error = %v, want ErrOrderNotFound", err)
	}
}
