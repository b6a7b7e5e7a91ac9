package events

import (
	"context"
	"sync"

	"github.com/zenpay/payment-gateway/pkg/logger"
)

// Handler processes one event. Handlers must not assume they run on the
// publisher's goroutine and have no way to report errors back to it.
type Handler func(ctx context.Context, e Event)

// Bus is an explicit publish/subscribe registry. Handlers are registered at
// startup and invoked sequentially, in registration order, on a goroutine
// spawned per publish. Publish is fire-and-forget: it never blocks on handler
// completion and never surfaces handler failures to the caller.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	wg       sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Kind][]Handler),
	}
}

func (b *Bus) Subscribe(kind Kind, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], h)
	b.mu.Unlock()
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	registered := b.handlers[e.Kind()]
	hs := make([]Handler, len(registered))
	copy(hs, registered)
	b.mu.RUnlock()

	if len(hs) == 0 {
		return
	}

	// Handlers outlive the publisher. fasthttp recycles its RequestCtx once
	// the HTTP handler returns, so the dispatch goroutine must not hold on
	// to the caller's context.
	ctx = context.WithoutCancel(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for _, h := range hs {
			b.dispatch(ctx, h, e)
		}
	}()
}

// dispatch isolates handler panics so one broken listener cannot take down
// the ones registered after it.
func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked", "kind", e.Kind(), "panic", r)
		}
	}()
	h(ctx, e)
}

// Wait blocks until every dispatch started before the call has finished.
// Used on shutdown and by tests that need deterministic delivery.
func (b *Bus) Wait() {
	b.wg.Wait()
}
