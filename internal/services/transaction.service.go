package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/events"
	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/pkg/logger"
	"github.com/zenpay/payment-gateway/pkg/prom"
)

var (
	ErrPaymentMethodNotOwned = errors.New("payment method does not belong to this user")
	ErrHasRefunds            = errors.New("transaction has refunds and cannot be deleted")
	ErrInvalidStatus         = errors.New("invalid transaction status")
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	GetByExternalRef(ctx context.Context, externalRef int64) (*model.Transaction, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	Stats(ctx context.Context, userID *uuid.UUID) (*model.TransactionStats, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TransactionEventRepository interface {
	Append(ctx context.Context, ev *model.TransactionEvent) (*model.TransactionEvent, error)
	ListRecent(ctx context.Context, transactionID uuid.UUID, limit int) ([]*model.TransactionEvent, error)
	DeleteByTransaction(ctx context.Context, transactionID uuid.UUID) error
}

type RefundRepository interface {
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*model.Refund, error)
	CountByTransaction(ctx context.Context, transactionID uuid.UUID) (int64, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type PaymentMethodRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentMethod, error)
}

// Publisher is the event-bus surface the service needs. Satisfied by
// *events.Bus.
type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// TransactionService is the sole writer of transaction rows and the sole
// emitter of transaction.created and transaction.status_updated.
type TransactionService struct {
	transactionRepo TransactionRepository
	eventRepo       TransactionEventRepository
	refundRepo      RefundRepository
	userRepo        UserRepository
	paymentRepo     PaymentMethodRepository
	bus             Publisher
}

func NewTransactionService(
	transactionRepo TransactionRepository,
	eventRepo TransactionEventRepository,
	refundRepo RefundRepository,
	userRepo UserRepository,
	paymentRepo PaymentMethodRepository,
	bus Publisher,
) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		eventRepo:       eventRepo,
		refundRepo:      refundRepo,
		userRepo:        userRepo,
		paymentRepo:     paymentRepo,
		bus:             bus,
	}
}

// Create validates ownership, inserts the transaction in PENDING together
// with its initial audit event in one unit of work, and publishes
// transaction.created only after that unit commits.
func (s *TransactionService) Create(ctx context.Context, p model.TransactionCreateRequest) (*model.TransactionDetail, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	owner, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	var paymentMethod *model.PaymentMethod
	if p.PaymentMethodID != nil {
		paymentMethod, err = s.paymentRepo.GetByID(ctx, *p.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		if paymentMethod.UserID != p.UserID {
			return nil, ErrPaymentMethodNotOwned
		}
	}

	currency := p.Currency
	if currency == "" {
		currency = model.DefaultCurrency
	}

	txn := &model.Transaction{
		ID:              uuid.New(),
		UserID:          p.UserID,
		PaymentMethodID: p.PaymentMethodID,
		Amount:          p.Amount,
		Currency:        currency,
		Description:     p.Description,
		Status:          model.StatusPending,
		ClientIP:        p.ClientIP,
		UserAgent:       p.UserAgent,
		DeviceID:        p.DeviceID,
	}

	var created *model.Transaction
	err = s.transactionRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err = s.transactionRepo.Create(ctx, txn)
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		meta, _ := json.Marshal(map[string]interface{}{
			"amount":   created.Amount,
			"currency": created.Currency,
		})
		_, err = s.eventRepo.Append(ctx, &model.TransactionEvent{
			TransactionID: created.ID,
			EventType:     model.EventTypeCreated,
			ToValue:       strPtr(string(model.StatusPending)),
			Metadata:      meta,
		})
		if err != nil {
			return fmt.Errorf("append audit event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.IncTransactionCreated()
	s.bus.Publish(ctx, events.TransactionCreated{
		TransactionID:   created.ID,
		UserID:          created.UserID,
		Amount:          created.Amount,
		Currency:        created.Currency,
		Description:     created.Description,
		PaymentMethodID: created.PaymentMethodID,
	})

	return &model.TransactionDetail{
		Transaction:   created,
		Owner:         owner.Summary(),
		PaymentMethod: paymentMethod,
	}, nil
}

// Get returns the transaction with its owner summary, payment method, the 10
// most recent audit events (newest first) and any refunds.
func (s *TransactionService) Get(ctx context.Context, id uuid.UUID) (*model.TransactionDetail, error) {
	txn, err := s.transactionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &model.TransactionDetail{Transaction: txn}

	owner, err := s.userRepo.GetByID(ctx, txn.UserID)
	if err == nil {
		detail.Owner = owner.Summary()
	}

	if txn.PaymentMethodID != nil {
		if pm, err := s.paymentRepo.GetByID(ctx, *txn.PaymentMethodID); err == nil {
			detail.PaymentMethod = pm
		}
	}

	if evs, err := s.eventRepo.ListRecent(ctx, id, 10); err == nil {
		detail.Events = evs
	}
	if refunds, err := s.refundRepo.ListByTransaction(ctx, id); err == nil {
		detail.Refunds = refunds
	}

	return detail, nil
}

// Update applies a partial patch. A status change appends an audit event
// recording the prior and new values; no bus event is published here.
func (s *TransactionService) Update(ctx context.Context, id uuid.UUID, patch model.TransactionPatch) (*model.Transaction, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	var updated *model.Transaction
	err := s.transactionRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		curr, err := s.transactionRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		fields := patchFields(patch)
		if patch.Status != nil {
			if err := s.applyStatusChange(ctx, curr, *patch.Status, fields, nil); err != nil {
				return err
			}
		}

		if len(fields) > 0 {
			if err := s.transactionRepo.UpdateFields(ctx, id, fields); err != nil {
				return err
			}
		}

		updated, err = s.transactionRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateGatewayResponse stores a raw provider payload and sets the status for
// the transaction carrying the given external reference, all in one unit of
// work. When the status actually moved into completed/failed/cancelled it
// publishes transaction.status_updated with the cancel-timeout flag, so a
// redelivered callback for an already-terminal transaction stays silent.
func (s *TransactionService) UpdateGatewayResponse(ctx context.Context, externalRef int64, raw json.RawMessage, newStatus model.TransactionStatus) (*model.Transaction, bool, error) {
	if !newStatus.Valid() {
		return nil, false, ErrInvalidStatus
	}

	var (
		updated *model.Transaction
		changed bool
	)
	err := s.transactionRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		curr, err := s.transactionRepo.GetByExternalRef(ctx, externalRef)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{
			"gateway_response": []byte(raw),
		}
		prior := curr.Status
		if err := s.applyStatusChange(ctx, curr, newStatus, fields, raw); err != nil {
			return err
		}
		changed = prior != newStatus && fields["status"] != nil

		if err := s.transactionRepo.UpdateFields(ctx, curr.ID, fields); err != nil {
			return err
		}

		updated, err = s.transactionRepo.GetByID(ctx, curr.ID)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if changed && (newStatus == model.StatusCompleted || newStatus == model.StatusFailed || newStatus == model.StatusCancelled) {
		s.bus.Publish(ctx, events.TransactionStatusUpdated{
			TransactionID:       updated.ID,
			Status:              updated.Status,
			ShouldCancelTimeout: true,
		})
	}

	return updated, changed, nil
}

// UpdateStatus is the plain status mutation used by the timeout handler.
func (s *TransactionService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TransactionStatus) (*model.Transaction, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var updated *model.Transaction
	err := s.transactionRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		curr, err := s.transactionRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{}
		if err := s.applyStatusChange(ctx, curr, status, fields, nil); err != nil {
			return err
		}
		if len(fields) == 0 {
			updated = curr
			return nil
		}

		if err := s.transactionRepo.UpdateFields(ctx, id, fields); err != nil {
			return err
		}
		updated, err = s.transactionRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete refuses to remove a transaction with refunds and otherwise deletes
// the row together with its audit trail.
func (s *TransactionService) Delete(ctx context.Context, id uuid.UUID) error {
	count, err := s.refundRepo.CountByTransaction(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrHasRefunds
	}

	return s.transactionRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.eventRepo.DeleteByTransaction(ctx, id); err != nil {
			return err
		}
		return s.transactionRepo.Delete(ctx, id)
	})
}

func (s *TransactionService) Stats(ctx context.Context, userID *uuid.UUID) (*model.TransactionStats, error) {
	return s.transactionRepo.Stats(ctx, userID)
}

func (s *TransactionService) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	return s.transactionRepo.List(ctx, f)
}

func (s *TransactionService) ListByUser(ctx context.Context, userID uuid.UUID, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	f.UserID = &userID
	return s.transactionRepo.List(ctx, f)
}

// applyStatusChange decides whether the status column moves and appends the
// matching audit event. Re-applying the current status is an idempotent no-op.
// No transition out of a terminal status is defined, not even into another
// terminal one; the write is skipped rather than failed so redelivered and
// contradictory provider callbacks and racing timeout jobs stay harmless.
func (s *TransactionService) applyStatusChange(ctx context.Context, curr *model.Transaction, next model.TransactionStatus, fields map[string]interface{}, meta json.RawMessage) error {
	if next == curr.Status {
		return nil
	}
	if curr.Status.Terminal() {
		logger.Warn("ignoring status transition out of terminal state",
			"transaction_id", curr.ID,
			"from", curr.Status,
			"to", next)
		return nil
	}

	fields["status"] = string(next)
	if next == model.StatusCompleted && curr.CompletedAt == nil {
		fields["completed_at"] = time.Now().UTC()
	}

	switch next {
	case model.StatusCompleted:
		prom.IncTransactionCompleted()
	case model.StatusFailed, model.StatusCancelled:
		prom.IncTransactionFailed()
	}

	eventType := model.EventTypeStatusChanged
	if meta != nil {
		eventType = model.EventTypeGatewayResponse
	}
	_, err := s.eventRepo.Append(ctx, &model.TransactionEvent{
		TransactionID: curr.ID,
		EventType:     eventType,
		FromValue:     strPtr(string(curr.Status)),
		ToValue:       strPtr(string(next)),
		Metadata:      meta,
	})
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func patchFields(patch model.TransactionPatch) map[string]interface{} {
	fields := map[string]interface{}{}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.PaymentMethodID != nil {
		fields["payment_method_id"] = *patch.PaymentMethodID
	}
	if patch.ExternalRef != nil {
		fields["external_ref"] = *patch.ExternalRef
	}
	if patch.GatewayProvider != nil {
		fields["gateway_provider"] = *patch.GatewayProvider
	}
	if patch.GatewayResponse != nil {
		fields["gateway_response"] = []byte(patch.GatewayResponse)
	}
	if patch.FraudScore != nil {
		fields["fraud_score"] = *patch.FraudScore
	}
	if patch.FraudDecision != nil {
		fields["fraud_decision"] = *patch.FraudDecision
	}
	if patch.FraudProvider != nil {
		fields["fraud_provider"] = *patch.FraudProvider
	}
	if patch.FraudMetadata != nil {
		fields["fraud_metadata"] = []byte(patch.FraudMetadata)
	}
	if patch.JobID != nil {
		fields["job_id"] = *patch.JobID
	}
	return fields
}

func strPtr(s string) *string {
	return &s
}
