package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

type fakeTransactions struct {
	mu        sync.Mutex
	lookup    models.TransactionLookup
	lookupErr error
	createErr error
	created   []models.Order
}

func (f *fakeTransactions) Transaction(context.Context, string) (models.TransactionLookup, error) {
	return f.lookup, f.lookupErr
}

func (f *fakeTransactions) CreateOrder(_ context.Context, o models.Order) (models.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.MutationResult{}, f.createErr
	}
	f.created = append(f.created, o)
	return models.MutationResult{Acknowledged: true, InsertedID: "order-1"}, nil
}

func paidLookup() models.TransactionLookup {
	p := lamp()
	return models.TransactionLookup{
		PaymentInfo: models.Payment{
			TransactionID: "TRX-1",
			UserName:      "Ada",
			Email:         "ada@x.io",
			ProductID:     p.ID.Hex(),
			Quantity:      3,
			Color:         "black",
			UnitPrice:     decimal.NewFromInt(80),
			TotalAmount:   decimal.NewFromInt(240),
			Status:        "success",
			Date:          time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		ProductInfo: p,
	}
}

func TestReconcileCreatesOrderOnce(t *testing.T) {
	api := &fakeTransactions{lookup: paidLookup()}
	s := NewReconcileService(NewMemoryLedger(), zerolog.Nop())

	first, err := s.Reconcile(context.Background(), api, "ada@x.io", "TRX-1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if first.Outcome != OrderCreated || first.OrderID != "order-1" {
		t.Fatalf("first = %+v", first)
	}
	o := api.created[0]
	if o.TransactionID != "TRX-1" || o.Status != models.OrderStatusSuccess || o.TotalAmount.StringFixed(2) != "240.00" {
		t.Errorf("unexpected order %+v", o)
	}
	if o.ProductName != "Desk Lamp" || o.Email != "ada@x.io" {
		t.Errorf("order missing snapshot fields: %+v", o)
	}

	again, err := s.Reconcile(context.Background(), api, "ada@x.io", "TRX-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Outcome != AlreadySettled || again.OrderID != "order-1" {
		t.Errorf("revisit = %+v", again)
	}
	if len(api.created) != 1 {
		t.Errorf("created %d orders, want 1", len(api.created))
	}
}

func TestReconcileConcurrentVisitsCreateOneOrder(t *testing.T) {
	api := &fakeTransactions{lookup: paidLookup()}
	s := NewReconcileService(NewMemoryLedger(), zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Reconcile(context.Background(), api, "ada@x.io", "TRX-1"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if len(api.created) != 1 {
		t.Fatalf("created %d orders, want 1", len(api.created))
	}
}

func TestReconcileFailures(t *testing.T) {
	s := NewReconcileService(NewMemoryLedger(), zerolog.Nop())
	ctx := context.Background()

	if _, err := s.Reconcile(ctx, &fakeTransactions{}, "ada@x.io", "  "); !errors.Is(err, ErrMissingTransaction) {
		t.Errorf("want ErrMissingTransaction, got %v", err)
	}

	boom := errors.New("lookup failed")
	if _, err := s.Reconcile(ctx, &fakeTransactions{lookupErr: boom}, "ada@x.io", "TRX-2"); !errors.Is(err, boom) {
		t.Errorf("want lookup error, got %v", err)
	}

	if _, err := s.Reconcile(ctx, &fakeTransactions{lookup: paidLookup()}, "eve@x.io", "TRX-1"); !errors.Is(err, ErrForeignTransaction) {
		t.Errorf("want ErrForeignTransaction, got %v", err)
	}
}

func TestReconcileReleasesClaimWhenCreateFails(t *testing.T) {
	ledger := NewMemoryLedger()
	s := NewReconcileService(ledger, zerolog.Nop())
	api := &fakeTransactions{lookup: paidLookup(), createErr: errors.New("backend down")}

	if _, err := s.Reconcile(context.Background(), api, "ada@x.io", "TRX-1"); err == nil {
		t.Fatal("expected create failure")
	}
	api.createErr = nil
	res, err := s.Reconcile(context.Background(), api, "ada@x.io", "TRX-1")
	if err != nil || res.Outcome != OrderCreated {
		t.Fatalf("retry after release = %+v, %v", res, err)
	}
}

// flakyLedger fails the first failRecords writes. With reclaim set every
// Claim succeeds, as a stale-claim takeover would.
type flakyLedger struct {
	*MemoryLedger
	mu          sync.Mutex
	failRecords int
	records     int
	reclaim     bool
}

func (l *flakyLedger) Claim(ctx context.Context, trxid string) (bool, error) {
	if l.reclaim {
		return true, nil
	}
	return l.MemoryLedger.Claim(ctx, trxid)
}

func (l *flakyLedger) Record(ctx context.Context, trxid, orderID string) error {
	l.mu.Lock()
	l.records++
	fail := l.records <= l.failRecords
	l.mu.Unlock()
	if fail {
		return errors.New("ledger unavailable")
	}
	return l.MemoryLedger.Record(ctx, trxid, orderID)
}

func (l *flakyLedger) recordCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records
}

func TestReconcileRetriesSettlementRecord(t *testing.T) {
	ledger := &flakyLedger{MemoryLedger: NewMemoryLedger(), failRecords: 2}
	s := NewReconcileService(ledger, zerolog.Nop())
	s.retryDelay = 0
	api := &fakeTransactions{lookup: paidLookup()}

	first, err := s.Reconcile(context.Background(), api, "ada@x.io", "TRX-1")
	if err != nil || first.Outcome != OrderCreated {
		t.Fatalf("first = %+v, %v", first, err)
	}
	if n := ledger.recordCalls(); n != 3 {
		t.Errorf("record attempts = %d, want 3", n)
	}
	again, err := s.Reconcile(context.Background(), api, "ada@x.io", "TRX-1")
	if err != nil || again.Outcome != AlreadySettled || again.OrderID != "order-1" {
		t.Fatalf("revisit = %+v, %v", again, err)
	}
	if len(api.created) != 1 {
		t.Errorf("created %d orders, want 1", len(api.created))
	}
}

func TestReconcileUnrecordedOrderIsNotCreatedAgain(t *testing.T) {
	ledger := &flakyLedger{MemoryLedger: NewMemoryLedger(), failRecords: recordAttempts + 1, reclaim: true}
	s := NewReconcileService(ledger, zerolog.Nop())
	s.retryDelay = 0
	api := &fakeTransactions{lookup: paidLookup()}
	ctx := context.Background()

	first, err := s.Reconcile(ctx, api, "ada@x.io", "TRX-1")
	if err != nil || first.Outcome != OrderCreated {
		t.Fatalf("first = %+v, %v", first, err)
	}
	if _, settled, _ := ledger.Settled(ctx, "TRX-1"); settled {
		t.Fatal("ledger should not hold the settlement yet")
	}

	// The ledger would hand the claim out again; the held order id wins
	// and the pending write goes through this time.
	again, err := s.Reconcile(ctx, api, "ada@x.io", "TRX-1")
	if err != nil || again.Outcome != AlreadySettled || again.OrderID != "order-1" {
		t.Fatalf("revisit = %+v, %v", again, err)
	}
	if len(api.created) != 1 {
		t.Fatalf("created %d orders, want 1", len(api.created))
	}
	if orderID, settled, _ := ledger.Settled(ctx, "TRX-1"); !settled || orderID != "order-1" {
		t.Errorf("settled = %v %q", settled, orderID)
	}
	if _, held := s.pendingRecord("TRX-1"); held {
		t.Error("order id still held after a successful record")
	}
}
