package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/bundlehost/internal/events"
	"github.com/mattjoyce/bundlehost/internal/log"
)

// DefaultShutdownTimeout bounds the aggregate wait for source shutdown on
// Close. Sources exceeding it are abandoned with a logged error.
const DefaultShutdownTimeout = 30 * time.Second

type sourceState int

const (
	stateInitializing sourceState = iota
	stateActive
	stateShuttingDown
)

// Registry maintains named sources and consumers and broadcasts every
// notification from an active source to all registered consumers.
type Registry struct {
	logger          *slog.Logger
	hub             *events.Hub
	shutdownTimeout time.Duration

	mu        sync.Mutex
	sources   map[string]Source
	states    map[string]sourceState
	consumers map[string]Consumer
	closed    bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithShutdownTimeout overrides the bounded wait used by Close.
func WithShutdownTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.shutdownTimeout = d
		}
	}
}

// NewRegistry creates an empty fan-out registry. The hub is optional; when
// present, dispatch progress is published to it.
func NewRegistry(hub *events.Hub, opts ...Option) *Registry {
	r := &Registry{
		logger:          log.WithComponent("fanout"),
		hub:             hub,
		shutdownTimeout: DefaultShutdownTimeout,
		sources:         make(map[string]Source),
		states:          make(map[string]sourceState),
		consumers:       make(map[string]Consumer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterSource subscribes to the source's change stream, then runs its
// async initialization. On initialization failure the source is
// unsubscribed and removed again, so a partially-registered source is never
// observable. Duplicate ids are logged and ignored; first wins.
func (r *Registry) RegisterSource(ctx context.Context, src Source) error {
	if src == nil {
		return fmt.Errorf("source is nil")
	}
	id := src.ID()
	if id == "" {
		return fmt.Errorf("source id is empty")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("registry is closed")
	}
	if _, exists := r.sources[id]; exists {
		r.mu.Unlock()
		r.logger.Warn("duplicate source registration ignored", "source", id)
		return nil
	}
	r.sources[id] = src
	r.states[id] = stateInitializing
	r.mu.Unlock()

	src.Subscribe(func(n Notification) {
		r.dispatch(context.Background(), id, n)
	})

	if err := src.Init(ctx); err != nil {
		src.Unsubscribe()
		r.mu.Lock()
		delete(r.sources, id)
		delete(r.states, id)
		r.mu.Unlock()
		return fmt.Errorf("initialize source %q: %w", id, err)
	}

	r.mu.Lock()
	r.states[id] = stateActive
	r.mu.Unlock()

	r.logger.Info("source registered", "source", id)
	return nil
}

// UnregisterSource unsubscribes first, then runs the source's async
// shutdown. Shutdown failures are logged, not raised. Unknown ids are
// logged and ignored.
func (r *Registry) UnregisterSource(ctx context.Context, id string) {
	r.mu.Lock()
	src, ok := r.sources[id]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("unregister of unknown source ignored", "source", id)
		return
	}
	r.states[id] = stateShuttingDown
	r.mu.Unlock()

	src.Unsubscribe()
	if err := src.Shutdown(ctx); err != nil {
		r.logger.Error("source shutdown failed", "source", id, "error", err)
	}

	r.mu.Lock()
	delete(r.sources, id)
	delete(r.states, id)
	r.mu.Unlock()

	r.logger.Info("source unregistered", "source", id)
}

// RegisterConsumer adds a consumer under an id. Duplicate ids are logged
// and ignored; first wins.
func (r *Registry) RegisterConsumer(id string, c Consumer) error {
	if id == "" {
		return fmt.Errorf("consumer id is empty")
	}
	if c == nil {
		return fmt.Errorf("consumer is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.consumers[id]; exists {
		r.logger.Warn("duplicate consumer registration ignored", "consumer", id)
		return nil
	}
	r.consumers[id] = c
	r.logger.Info("consumer registered", "consumer", id)
	return nil
}

// UnregisterConsumer removes a consumer. Unknown ids are ignored.
func (r *Registry) UnregisterConsumer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.consumers[id]; !ok {
		r.logger.Warn("unregister of unknown consumer ignored", "consumer", id)
		return
	}
	delete(r.consumers, id)
	r.logger.Info("consumer unregistered", "consumer", id)
}

// ActiveSources returns the ids of fully-initialized sources.
func (r *Registry) ActiveSources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sources))
	for id, st := range r.states {
		if st == stateActive {
			out = append(out, id)
		}
	}
	return out
}

// dispatch builds one immutable event and invokes every registered
// consumer concurrently, waiting for all of them. A consumer's error or
// panic is logged and never delays or cancels the others.
func (r *Registry) dispatch(ctx context.Context, sourceID string, n Notification) {
	ev := newEvent(n)

	r.mu.Lock()
	targets := make(map[string]Consumer, len(r.consumers))
	for id, c := range r.consumers {
		targets[id] = c
	}
	r.mu.Unlock()

	r.logger.Debug("dispatching event",
		"source", sourceID,
		"event_id", ev.ID,
		"entity_type", ev.EntityType,
		"event_type", ev.EventType,
		"consumers", len(targets),
	)

	var wg sync.WaitGroup
	for id, c := range targets {
		wg.Add(1)
		go func(id string, c Consumer) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("consumer panicked", "consumer", id, "event_id", ev.ID, "panic", rec)
					r.publishConsumerFailure(id, ev, fmt.Sprintf("panic: %v", rec))
				}
			}()
			if err := c.ProcessEvent(ctx, ev); err != nil {
				r.logger.Warn("consumer failed", "consumer", id, "event_id", ev.ID, "error", err)
				r.publishConsumerFailure(id, ev, err.Error())
			}
		}(id, c)
	}
	wg.Wait()

	if r.hub != nil {
		r.hub.Publish(events.TypeFanoutDispatch, map[string]any{
			"source":      sourceID,
			"event_id":    ev.ID,
			"entity_type": ev.EntityType,
			"event_type":  ev.EventType,
			"consumers":   len(targets),
		})
	}
}

func (r *Registry) publishConsumerFailure(consumerID string, ev *Event, reason string) {
	if r.hub == nil {
		return
	}
	r.hub.Publish(events.TypeFanoutConsumer, map[string]any{
		"consumer": consumerID,
		"event_id": ev.ID,
		"reason":   reason,
	})
}

// Close shuts down all still-registered sources with one bounded aggregate
// wait. Sources that exceed the bound are abandoned with a logged error,
// the same orphaning trade-off the bounded executor makes per call.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	remaining := make(map[string]Source, len(r.sources))
	for id, src := range r.sources {
		remaining[id] = src
		r.states[id] = stateShuttingDown
	}
	r.mu.Unlock()

	if len(remaining) == 0 {
		return
	}
	r.logger.Info("shutting down sources", "count", len(remaining))

	ctx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for id, src := range remaining {
		wg.Add(1)
		go func(id string, src Source) {
			defer wg.Done()
			src.Unsubscribe()
			if err := src.Shutdown(ctx); err != nil {
				r.logger.Error("source shutdown failed", "source", id, "error", err)
			}
		}(id, src)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("all sources shut down")
	case <-ctx.Done():
		r.logger.Error("source shutdown exceeded bound, abandoning", "timeout", r.shutdownTimeout)
	}

	r.mu.Lock()
	r.sources = make(map[string]Source)
	r.states = make(map[string]sourceState)
	r.mu.Unlock()
}
