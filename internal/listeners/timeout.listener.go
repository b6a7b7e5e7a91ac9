package listeners

import (
	"context"
	"errors"
	"time"

	"github.com/zenpay/payment-gateway/internal/events"
	"github.com/zenpay/payment-gateway/internal/timeout"
	"github.com/zenpay/payment-gateway/pkg/logger"
	"github.com/zenpay/payment-gateway/pkg/prom"
)

// Scheduler is the delayed-queue surface the listener needs. Satisfied by
// *timeout.DelayedQueue.
type Scheduler interface {
	Schedule(ctx context.Context, jobID string, job *timeout.Job, delay time.Duration) error
	Cancel(ctx context.Context, jobID string) (bool, error)
}

// TimeoutScheduler pairs each payment link with a delayed job that fails the
// transaction if the customer never pays, and tears the job down again when a
// provider callback settles the transaction first. Every failure here is
// log-only: an unscheduled timeout leaves the transaction pending (recoverable
// by the operator), and a stale job is harmless because the handler re-checks
// transaction state before acting.
type TimeoutScheduler struct {
	queue Scheduler
	delay time.Duration
}

func NewTimeoutScheduler(queue Scheduler, delay time.Duration) *TimeoutScheduler {
	return &TimeoutScheduler{queue: queue, delay: delay}
}

func (t *TimeoutScheduler) Register(bus *events.Bus) {
	bus.Subscribe(events.KindPaymentLinkCreated, func(ctx context.Context, e events.Event) {
		link, ok := e.(events.PaymentLinkCreated)
		if !ok {
			return
		}
		t.handleLinkCreated(ctx, link)
	})
	bus.Subscribe(events.KindTransactionStatusUpdated, func(ctx context.Context, e events.Event) {
		updated, ok := e.(events.TransactionStatusUpdated)
		if !ok {
			return
		}
		t.handleStatusUpdated(ctx, updated)
	})
}

func (t *TimeoutScheduler) handleLinkCreated(ctx context.Context, link events.PaymentLinkCreated) {
	if link.OrderCode == 0 {
		logger.Warn("payment link without order code, skipping timeout",
			"transaction_id", link.TransactionID.String())
		return
	}

	job := &timeout.Job{
		TransactionID:         link.TransactionID,
		ExternalTransactionID: link.OrderCode,
		UserID:                link.UserID,
		Amount:                link.Amount,
		CreatedAt:             time.Now().UTC(),
	}

	err := t.queue.Schedule(ctx, timeout.JobID(link.TransactionID), job, t.delay)
	if errors.Is(err, timeout.ErrDuplicateJob) {
		logger.Warn("timeout already scheduled",
			"transaction_id", link.TransactionID.String())
		return
	}
	if err != nil {
		logger.Error("failed to schedule payment timeout",
			"transaction_id", link.TransactionID.String(),
			"order_code", link.OrderCode,
			"error", err)
		return
	}

	prom.IncTimeoutScheduled()
	logger.Info("payment timeout scheduled",
		"transaction_id", link.TransactionID.String(),
		"delay", t.delay.String())
}

func (t *TimeoutScheduler) handleStatusUpdated(ctx context.Context, updated events.TransactionStatusUpdated) {
	if !updated.ShouldCancelTimeout {
		return
	}

	removed, err := t.queue.Cancel(ctx, timeout.JobID(updated.TransactionID))
	if err != nil {
		logger.Error("failed to cancel payment timeout",
			"transaction_id", updated.TransactionID.String(),
			"error", err)
		return
	}
	if removed {
		prom.IncTimeoutCancelled()
		logger.Info("payment timeout cancelled",
			"transaction_id", updated.TransactionID.String(),
			"status", string(updated.Status))
	}
}
