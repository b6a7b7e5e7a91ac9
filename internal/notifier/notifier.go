package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/zenpay/payment-gateway/internal/events"
	"github.com/zenpay/payment-gateway/pkg/logger"
	"github.com/zenpay/payment-gateway/pkg/redis"
)

// Notifier pushes payment outcomes to per-user redis pub/sub channels, where
// realtime frontends (websocket fanout, push workers) pick them up. Delivery
// is fire-and-forget; a user with no listener just misses the ping.
type Notifier struct {
	adapter redis.RedisAdapter
}

type notification struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Amount    int64     `json:"amount,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func New(adapter redis.RedisAdapter) *Notifier {
	return &Notifier{adapter: adapter}
}

func (n *Notifier) Register(bus *events.Bus) {
	bus.Subscribe(events.KindPaymentSucceeded, func(ctx context.Context, e events.Event) {
		ev, ok := e.(events.PaymentSucceeded)
		if !ok {
			return
		}
		n.send(ctx, ev.UserID, notification{
			Type:      "payment.success",
			Message:   ev.Message,
			Amount:    ev.Amount,
			Timestamp: time.Now().UTC(),
		})
	})
	bus.Subscribe(events.KindPaymentFailed, func(ctx context.Context, e events.Event) {
		ev, ok := e.(events.PaymentFailed)
		if !ok {
			return
		}
		n.send(ctx, ev.UserID, notification{
			Type:      "payment.failed",
			Message:   ev.Reason,
			Amount:    ev.Amount,
			Timestamp: time.Now().UTC(),
		})
	})
	bus.Subscribe(events.KindTransactionFailed, func(ctx context.Context, e events.Event) {
		ev, ok := e.(events.TransactionFailed)
		if !ok {
			return
		}
		n.send(ctx, ev.UserID, notification{
			Type:      "transaction.failed",
			Message:   ev.Reason,
			Amount:    ev.Amount,
			Timestamp: time.Now().UTC(),
		})
	})
}

func ChannelFor(userID uuid.UUID) string {
	return "user:" + userID.String()
}

func (n *Notifier) send(ctx context.Context, userID uuid.UUID, note notification) {
	payload, err := json.Marshal(note)
	if err != nil {
		logger.Error("failed to marshal notification", "error", err)
		return
	}

	channel := ChannelFor(userID)
	if err := n.adapter.Client().Publish(ctx, channel, payload).Err(); err != nil {
		logger.Warn("failed to publish notification",
			"channel", channel,
			"type", note.Type,
			"error", err)
		return
	}

	logger.Info("notification published", "channel", channel, "type", note.Type)
}
