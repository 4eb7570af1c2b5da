package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"dadcircles/internal/platform/device"
	"dadcircles/pkg/requestcontext"
)

// Store persists events. Implementations are insert-only; there is no update
// or delete on a trail.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher enriches events from the request context and hands them to the
// store. Synchronous by default; WithAsyncBuffer switches to a buffered
// channel drained by a background worker, where a full buffer drops the
// event rather than blocking the caller.
type Publisher struct {
	store  Store
	logger *slog.Logger

	inbox chan Event
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithAsyncBuffer enables asynchronous emission with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.inbox != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit records the event, filling identity, time, and client metadata from
// the context when unset. Append failures are logged; a lost audit row never
// fails the action that produced it, so callers may ignore the return.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	event = p.enrich(ctx, event)

	if p.inbox == nil {
		return p.append(ctx, event)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return p.append(ctx, event)
	}
	select {
	case p.inbox <- event:
		p.mu.Unlock()
		return nil
	default:
		p.mu.Unlock()
		p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action)
		return nil
	}
}

// Close stops the async worker and drains buffered events. Safe to call in
// sync mode and more than once.
func (p *Publisher) Close() {
	p.mu.Lock()
	alreadyClosed := p.closed
	p.closed = true
	p.mu.Unlock()

	if p.inbox == nil || alreadyClosed {
		return
	}
	close(p.inbox)
	<-p.done
}

func (p *Publisher) enrich(ctx context.Context, event Event) Event {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Actor == "" {
		if actor := requestcontext.Actor(ctx); actor != "" {
			event.Actor = actor
		} else {
			event.Actor = "system"
		}
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Client == "" {
		if ua := requestcontext.UserAgent(ctx); ua != "" {
			event.Client = device.ParseUserAgent(ua)
		}
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	return event
}

func (p *Publisher) append(ctx context.Context, event Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "audit append failed", "action", event.Action, "error", err)
		return err
	}
	return nil
}

// drain persists buffered events until the inbox closes. It uses a background
// context because buffered events outlive the request that emitted them.
func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Warn("audit append failed", "action", event.Action, "error", err)
		}
	}
}
