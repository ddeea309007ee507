package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/models"
)

var (
	ErrMissingTransaction = errors.New("missing transaction id")
	ErrForeignTransaction = errors.New("transaction belongs to another account")
)

type TransactionSource interface {
	Transaction(ctx context.Context, trxid string) (models.TransactionLookup, error)
	CreateOrder(ctx context.Context, o models.Order) (models.MutationResult, error)
}

type SettlementOutcome int

const (
	// OrderCreated means this call persisted the order.
	OrderCreated SettlementOutcome = iota
	// AlreadySettled means an earlier visit persisted the order.
	AlreadySettled
	// SettlementInProgress means a concurrent visit holds the claim.
	SettlementInProgress
)

type Settlement struct {
	Outcome SettlementOutcome
	OrderID string
	Order   models.Order
	Payment models.Payment
	Product models.Product
}

const recordAttempts = 3

type ReconcileService struct {
	ledger     Ledger
	logger     zerolog.Logger
	now        func() time.Time
	retryDelay time.Duration

	mu sync.Mutex
	// orders created whose settlement the ledger has not yet accepted,
	// keyed by transaction id
	unrecorded map[string]string
}

func NewReconcileService(ledger Ledger, logger zerolog.Logger) *ReconcileService {
	return &ReconcileService{
		ledger:     ledger,
		logger:     logger,
		now:        time.Now,
		retryDelay: 100 * time.Millisecond,
		unrecorded: make(map[string]string),
	}
}

// Reconcile joins the payment and product for trxid and persists the
// derived order exactly once per transaction id.
func (s *ReconcileService) Reconcile(ctx context.Context, api TransactionSource, buyerEmail, trxid string) (*Settlement, error) {
	trxid = strings.TrimSpace(trxid)
	if trxid == "" {
		return nil, ErrMissingTransaction
	}

	lookup, err := api.Transaction(ctx, trxid)
	if err != nil {
		s.logger.Error().Err(err).Str("transaction_id", trxid).Msg("Error loading transaction")
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if buyerEmail != "" && lookup.PaymentInfo.Email != "" && !strings.EqualFold(lookup.PaymentInfo.Email, buyerEmail) {
		return nil, ErrForeignTransaction
	}

	order := s.orderFrom(lookup, trxid)
	settlement := &Settlement{Order: order, Payment: lookup.PaymentInfo, Product: lookup.ProductInfo}

	if orderID, ok := s.pendingRecord(trxid); ok {
		s.record(ctx, trxid, orderID)
		settlement.Outcome = AlreadySettled
		settlement.OrderID = orderID
		return settlement, nil
	}

	claimed, err := s.ledger.Claim(ctx, trxid)
	if err != nil {
		return nil, fmt.Errorf("failed to claim transaction: %w", err)
	}
	if !claimed {
		orderID, settled, err := s.ledger.Settled(ctx, trxid)
		if err != nil {
			return nil, fmt.Errorf("failed to read settlement: %w", err)
		}
		settlement.OrderID = orderID
		settlement.Outcome = SettlementInProgress
		if settled {
			settlement.Outcome = AlreadySettled
		}
		return settlement, nil
	}

	res, err := api.CreateOrder(ctx, order)
	if err != nil {
		if rerr := s.ledger.Release(context.WithoutCancel(ctx), trxid); rerr != nil {
			s.logger.Error().Err(rerr).Str("transaction_id", trxid).Msg("Error releasing settlement claim")
		}
		s.logger.Error().Err(err).Str("transaction_id", trxid).Msg("Error creating order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	s.record(ctx, trxid, res.InsertedID)

	s.logger.Info().
		Str("transaction_id", trxid).
		Str("order_id", res.InsertedID).
		Str("amount", order.TotalAmount.StringFixed(2)).
		Msg("Order reconciled")

	settlement.Outcome = OrderCreated
	settlement.OrderID = res.InsertedID
	return settlement, nil
}

// record writes the settlement, retrying on failure. When the ledger keeps
// refusing, the order id is held in memory so later visits for trxid never
// create a second order and retry the write instead.
func (s *ReconcileService) record(ctx context.Context, trxid, orderID string) {
	ctx = context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		if err = s.ledger.Record(ctx, trxid, orderID); err == nil {
			s.mu.Lock()
			delete(s.unrecorded, trxid)
			s.mu.Unlock()
			return
		}
		if attempt < recordAttempts {
			time.Sleep(s.retryDelay)
		}
	}

	s.mu.Lock()
	s.unrecorded[trxid] = orderID
	s.mu.Unlock()
	s.logger.Error().
		Err(err).
		Str("transaction_id", trxid).
		Str("order_id", orderID).
		Msg("Error recording settlement, holding it for the next visit")
}

func (s *ReconcileService) pendingRecord(trxid string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orderID, ok := s.unrecorded[trxid]
	return orderID, ok
}

func (s *ReconcileService) orderFrom(l models.TransactionLookup, trxid string) models.Order {
	pay, prod := l.PaymentInfo, l.ProductInfo

	status := models.OrderStatusPending
	if strings.EqualFold(pay.Status, string(models.OrderStatusSuccess)) {
		status = models.OrderStatusSuccess
	}
	date := pay.Date
	if date.IsZero() {
		date = s.now().UTC()
	}
	productID := pay.ProductID
	if !prod.ID.IsZero() {
		productID = prod.ID.Hex()
	}
	name := prod.Name
	if name == "" {
		name = pay.ProductName
	}
	category := prod.Category
	if category == "" {
		category = pay.ProductCategory
	}

	return models.Order{
		ProductID:       productID,
		ProductName:     name,
		ProductImage:    prod.Cover(),
		ProductCategory: category,
		Name:            pay.UserName,
		Email:           pay.Email,
		Quantity:        pay.Quantity,
		Color:           pay.Color,
		UnitPrice:       pay.UnitPrice,
		TotalAmount:     pay.TotalAmount,
		TransactionID:   trxid,
		Status:          status,
		Date:            date,
	}
}
