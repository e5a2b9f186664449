package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	txMaxAttempts    = 5
	txDefaultTimeout = 15 * time.Second
)

// TxFunc runs inside a Firestore transaction. Reads must precede writes.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption adjusts transaction retry and deadline behaviour.
type TxOption func(*txSettings)

type txSettings struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts caps how many times a contended transaction is retried.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the wall time of one transaction, retries included.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// RunTransaction executes fn transactionally and normalises the resulting
// error through WrapError so callers can categorise it.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	settings := txSettings{attempts: txMaxAttempts, timeout: txDefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	// Only tighten the deadline; an already shorter caller deadline wins.
	runCtx := ctx
	if settings.timeout > 0 {
		if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > settings.timeout {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, settings.timeout)
			defer cancel()
		}
	}

	var txOpts []firestore.TransactionOption
	if settings.attempts > 0 {
		txOpts = append(txOpts, firestore.MaxAttempts(settings.attempts))
	}

	err := client.RunTransaction(runCtx, fn, txOpts...)
	return WrapError("transaction", err)
}
