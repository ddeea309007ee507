package services

import (
	"context"
	"sync"
)

// Ledger guards order creation so each transaction id settles once.
type Ledger interface {
	// Claim reserves trxid for the caller. It returns false when another
	// caller holds or has settled it.
	Claim(ctx context.Context, trxid string) (bool, error)
	// Record marks a claimed trxid as settled by orderID.
	Record(ctx context.Context, trxid, orderID string) error
	// Release drops an unsettled claim so a later visit may retry.
	Release(ctx context.Context, trxid string) error
	// Settled reports whether trxid has been recorded and by which order.
	Settled(ctx context.Context, trxid string) (orderID string, ok bool, err error)
}

type memoryEntry struct {
	settled bool
	orderID string
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]memoryEntry)}
}

func (l *MemoryLedger) Claim(_ context.Context, trxid string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[trxid]; ok {
		return false, nil
	}
	l.entries[trxid] = memoryEntry{}
	return true, nil
}

func (l *MemoryLedger) Record(_ context.Context, trxid, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[trxid] = memoryEntry{settled: true, orderID: orderID}
	return nil
}

func (l *MemoryLedger) Release(_ context.Context, trxid string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[trxid]; ok && !e.settled {
		delete(l.entries, trxid)
	}
	return nil
}

func (l *MemoryLedger) Settled(_ context.Context, trxid string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[trxid]
	if !ok || !e.settled {
		return "", false, nil
	}
	return e.orderID, true, nil
}
