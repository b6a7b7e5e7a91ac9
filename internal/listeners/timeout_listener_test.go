package listeners

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenpay/payment-gateway/internal/events"
	"github.com/zenpay/payment-gateway/internal/model"
	"github.com/zenpay/payment-gateway/internal/timeout"
)

type fakeScheduler struct {
	scheduled   map[string]*timeout.Job
	delays      map[string]time.Duration
	cancelled   []string
	scheduleErr error
	cancelErr   error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		scheduled: make(map[string]*timeout.Job),
		delays:    make(map[string]time.Duration),
	}
}

func (f *fakeScheduler) Schedule(ctx context.Context, jobID string, job *timeout.Job, delay time.Duration) error {
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	if _, ok := f.scheduled[jobID]; ok {
		return timeout.ErrDuplicateJob
	}
	f.scheduled[jobID] = job
	f.delays[jobID] = delay
	return nil
}

func (f *fakeScheduler) Cancel(ctx context.Context, jobID string) (bool, error) {
	if f.cancelErr != nil {
		return false, f.cancelErr
	}
	f.cancelled = append(f.cancelled, jobID)
	_, ok := f.scheduled[jobID]
	delete(f.scheduled, jobID)
	return ok, nil
}

func TestTimeoutScheduler_SchedulesOnPaymentLink(t *testing.T) {
	txID := uuid.New()
	userID := uuid.New()
	queue := newFakeScheduler()

	bus := events.NewBus()
	NewTimeoutScheduler(queue, 15*time.Minute).Register(bus)

	bus.Publish(context.Background(), events.PaymentLinkCreated{
		TransactionID: txID,
		UserID:        userID,
		Amount:        25000,
		OrderCode:     424242,
		CheckoutURL:   "https://pay.example.com/424242",
	})
	bus.Wait()

	jobID := timeout.JobID(txID)
	job, ok := queue.scheduled[jobID]
	require.True(t, ok, "timeout job not scheduled")
	assert.Equal(t, txID, job.TransactionID)
	assert.Equal(t, int64(424242), job.ExternalTransactionID)
	assert.Equal(t, userID, job.UserID)
	assert.Equal(t, int64(25000), job.Amount)
	assert.Equal(t, 15*time.Minute, queue.delays[jobID])
}

func TestTimeoutScheduler_SkipsLinkWithoutOrderCode(t *testing.T) {
	queue := newFakeScheduler()

	bus := events.NewBus()
	NewTimeoutScheduler(queue, time.Minute).Register(bus)

	bus.Publish(context.Background(), events.PaymentLinkCreated{
		TransactionID: uuid.New(),
		UserID:        uuid.New(),
	})
	bus.Wait()

	assert.Empty(t, queue.scheduled)
}

func TestTimeoutScheduler_CancelsOnTerminalStatus(t *testing.T) {
	txID := uuid.New()
	queue := newFakeScheduler()
	queue.scheduled[timeout.JobID(txID)] = &timeout.Job{TransactionID: txID}

	bus := events.NewBus()
	NewTimeoutScheduler(queue, time.Minute).Register(bus)

	bus.Publish(context.Background(), events.TransactionStatusUpdated{
		TransactionID:       txID,
		Status:              model.StatusCompleted,
		ShouldCancelTimeout: true,
	})
	bus.Wait()

	assert.Contains(t, queue.cancelled, timeout.JobID(txID))
	assert.Empty(t, queue.scheduled)
}

func TestTimeoutScheduler_IgnoresStatusWithoutCancelFlag(t *testing.T) {
	txID := uuid.New()
	queue := newFakeScheduler()

	bus := events.NewBus()
	NewTimeoutScheduler(queue, time.Minute).Register(bus)

	bus.Publish(context.Background(), events.TransactionStatusUpdated{
		TransactionID: txID,
		Status:        model.StatusProcessing,
	})
	bus.Wait()

	assert.Empty(t, queue.cancelled)
}

func TestTimeoutScheduler_DuplicateScheduleIsQuiet(t *testing.T) {
	txID := uuid.New()
	queue := newFakeScheduler()

	bus := events.NewBus()
	NewTimeoutScheduler(queue, time.Minute).Register(bus)

	link := events.PaymentLinkCreated{TransactionID: txID, UserID: uuid.New(), OrderCode: 7}
	bus.Publish(context.Background(), link)
	bus.Wait()
	bus.Publish(context.Background(), link)
	bus.Wait()

	assert.Len(t, queue.scheduled, 1)
}
