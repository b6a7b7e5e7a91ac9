package timeout

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/events"
	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/internal/repository"
	"github.com/zenpay/payment-gateway/pkg/logger"
	"github.com/zenpay/payment-gateway/pkg/prom"
)

const timeoutReason = "Transaction cancelled due to timeout"

type TransactionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
}

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.TransactionStatus) (*model.Transaction, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// PaymentCanceller cancels a payment link at the provider. Satisfied by
// *gateways.Client.
type PaymentCanceller interface {
	CancelPayment(ctx context.Context, orderCode int64, reason string) (json.RawMessage, error)
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// Processor runs when a transaction's timeout job fires. It decides from the
// transaction's current state, never from the job payload: a job that fires
// after the payment already settled must be a no-op.
type Processor struct {
	transactions TransactionStore
	status       StatusUpdater
	users        UserStore
	gateway      PaymentCanceller
	bus          Publisher
}

func NewProcessor(
	transactions TransactionStore,
	status StatusUpdater,
	users UserStore,
	gateway PaymentCanceller,
	bus Publisher,
) *Processor {
	return &Processor{
		transactions: transactions,
		status:       status,
		users:        users,
		gateway:      gateway,
		bus:          bus,
	}
}

// Process is the JobHandler for the delayed queue. A returned error puts the
// job back on the retry ladder, so only failures that a retry could fix (the
// status update) propagate; everything else is logged and swallowed.
func (p *Processor) Process(ctx context.Context, jobID string, job *Job) error {
	txn, err := p.transactions.GetByID(ctx, job.TransactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			logger.Warn("timeout fired for missing transaction",
				"job_id", jobID,
				"transaction_id", job.TransactionID.String())
			return nil
		}
		return err
	}

	if !txn.Status.Unresolved() {
		prom.IncTimeoutNoop()
		logger.Info("timeout fired on settled transaction, skipping",
			"transaction_id", txn.ID.String(),
			"status", string(txn.Status))
		return nil
	}

	// Best effort: the payment link may already be gone, or the provider
	// unreachable. The local failure below is what matters.
	orderCode := job.ExternalTransactionID
	if txn.ExternalRef != nil {
		orderCode = *txn.ExternalRef
	}
	if orderCode != 0 && p.gateway != nil {
		if _, err := p.gateway.CancelPayment(ctx, orderCode, timeoutReason); err != nil {
			logger.Warn("provider cancel failed, failing transaction locally",
				"transaction_id", txn.ID.String(),
				"order_code", orderCode,
				"error", err)
		}
	}

	if _, err := p.status.UpdateStatus(ctx, txn.ID, model.StatusFailed); err != nil {
		return err
	}

	prom.IncTimeoutFired()
	logger.Info("transaction failed by timeout",
		"transaction_id", txn.ID.String(),
		"previous_status", string(txn.Status))

	failed := events.TransactionFailed{
		TransactionID: txn.ID,
		UserID:        txn.UserID,
		Amount:        txn.Amount,
		Reason:        timeoutReason,
	}
	if owner, err := p.users.GetByID(ctx, txn.UserID); err == nil {
		failed.Email = owner.Email
		failed.FullName = owner.FullName
	} else {
		logger.Warn("could not load owner for timeout notification",
			"transaction_id", txn.ID.String(),
			"user_id", txn.UserID.String(),
			"error", err)
	}
	p.bus.Publish(ctx, failed)

	return nil
}
