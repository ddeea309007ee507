package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

const (
	statusClaimed = "claimed"
	statusSettled = "settled"

	errDuplicateEntry = 1062
)

// Ledger records order settlements in MySQL. The primary key on
// transaction_id makes a second claim for the same transaction fail.
type Ledger struct {
	db       *sql.DB
	logger   zerolog.Logger
	staleFor time.Duration
}

// NewLedger returns a Ledger that lets a new caller take over a claim left
// unsettled for longer than staleFor.
func NewLedger(db *sql.DB, staleFor time.Duration, logger zerolog.Logger) *Ledger {
	return &Ledger{db: db, logger: logger, staleFor: staleFor}
}

func (l *Ledger) Claim(ctx context.Context, trxid string) (bool, error) {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO order_settlements (transaction_id, status) VALUES (?, ?)",
		trxid, statusClaimed,
	)
	if err == nil {
		return true, nil
	}
	if !isDuplicate(err) {
		l.logger.Error().Err(err).Str("transaction_id", trxid).Msg("Error claiming settlement")
		return false, fmt.Errorf("failed to claim settlement: %w", err)
	}

	res, err := l.db.ExecContext(ctx,
		"UPDATE order_settlements SET claimed_at = CURRENT_TIMESTAMP WHERE transaction_id = ? AND status = ? AND claimed_at < CURRENT_TIMESTAMP - INTERVAL ? SECOND",
		trxid, statusClaimed, int(l.staleFor.Seconds()),
	)
	if err != nil {
		return false, fmt.Errorf("failed to take over stale claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		l.logger.Warn().Str("transaction_id", trxid).Msg("Took over stale settlement claim")
	}
	return n == 1, nil
}

func (l *Ledger) Record(ctx context.Context, trxid, orderID string) error {
	_, err := l.db.ExecContext(ctx,
		"UPDATE order_settlements SET status = ?, order_id = ?, settled_at = CURRENT_TIMESTAMP WHERE transaction_id = ?",
		statusSettled, orderID, trxid,
	)
	if err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}
	return nil
}

func (l *Ledger) Release(ctx context.Context, trxid string) error {
	_, err := l.db.ExecContext(ctx,
		"DELETE FROM order_settlements WHERE transaction_id = ? AND status = ?",
		trxid, statusClaimed,
	)
	if err != nil {
		return fmt.Errorf("failed to release settlement: %w", err)
	}
	return nil
}

func (l *Ledger) Settled(ctx context.Context, trxid string) (string, bool, error) {
	var (
		status  string
		orderID sql.NullString
	)
	err := l.db.QueryRowContext(ctx,
		"SELECT status, order_id FROM order_settlements WHERE transaction_id = ?",
		trxid,
	).Scan(&status, &orderID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read settlement: %w", err)
	}
	return orderID.String, status == statusSettled, nil
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDuplicateEntry
}
