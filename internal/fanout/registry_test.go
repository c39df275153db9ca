package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mattjoyce/bundlehost/internal/instance"
	"github.com/mattjoyce/bundlehost/internal/log"
)

func init() {
	log.Setup("ERROR") // Suppress logs in tests
}

// fakeSource emits notifications on demand and records lifecycle calls.
type fakeSource struct {
	id      string
	initErr error
	slow    time.Duration // Shutdown sleeps this long

	mu           sync.Mutex
	emit         EmitFunc
	subscribed   bool
	unsubscribed bool
	shutdowns    int
}

func (s *fakeSource) ID() string { return s.id }

func (s *fakeSource) Subscribe(emit EmitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = emit
	s.subscribed = true
}

func (s *fakeSource) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = nil
	s.unsubscribed = true
}

func (s *fakeSource) Init(ctx context.Context) error { return s.initErr }

func (s *fakeSource) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdowns++
	s.mu.Unlock()
	if s.slow > 0 {
		select {
		case <-time.After(s.slow):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Emit injects a notification as if the external system changed.
func (s *fakeSource) Emit(n Notification) {
	s.mu.Lock()
	emit := s.emit
	s.mu.Unlock()
	if emit != nil {
		emit(n)
	}
}

// countingConsumer records every event it processes.
type countingConsumer struct {
	mu     sync.Mutex
	events []*Event
	err    error
	panics bool
}

func (c *countingConsumer) ProcessEvent(ctx context.Context, ev *Event) error {
	if c.panics {
		panic("consumer exploded")
	}
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return c.err
}

func (c *countingConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestRegisterSourceLifecycle(t *testing.T) {
	r := NewRegistry(nil)
	src := &fakeSource{id: "s1"}

	if err := r.RegisterSource(context.Background(), src); err != nil {
		t.Fatalf("RegisterSource failed: %v", err)
	}
	if !src.subscribed {
		t.Error("source was not subscribed")
	}

	active := r.ActiveSources()
	if len(active) != 1 || active[0] != "s1" {
		t.Errorf("ActiveSources = %v", active)
	}

	r.UnregisterSource(context.Background(), "s1")
	if !src.unsubscribed {
		t.Error("source was not unsubscribed")
	}
	if src.shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", src.shutdowns)
	}
	if len(r.ActiveSources()) != 0 {
		t.Error("source still active after unregister")
	}
}

func TestRegisterSourceInitFailure(t *testing.T) {
	r := NewRegistry(nil)
	src := &fakeSource{id: "s1", initErr: errors.New("connect refused")}

	err := r.RegisterSource(context.Background(), src)
	if err == nil {
		t.Fatal("expected init error to propagate")
	}
	if !src.unsubscribed {
		t.Error("failed registration must unsubscribe")
	}
	if len(r.ActiveSources()) != 0 {
		t.Error("failed registration left observable state")
	}

	// The id must be free for a retry.
	if err := r.RegisterSource(context.Background(), &fakeSource{id: "s1"}); err != nil {
		t.Errorf("re-registration after failure: %v", err)
	}
}

func TestDuplicateSourceIgnored(t *testing.T) {
	r := NewRegistry(nil)
	first := &fakeSource{id: "s1"}
	second := &fakeSource{id: "s1"}

	if err := r.RegisterSource(context.Background(), first); err != nil {
		t.Fatalf("RegisterSource failed: %v", err)
	}
	if err := r.RegisterSource(context.Background(), second); err != nil {
		t.Fatalf("duplicate registration should be ignored, got: %v", err)
	}
	if second.subscribed {
		t.Error("losing duplicate was subscribed")
	}
}

func TestDispatchReachesAllConsumers(t *testing.T) {
	r := NewRegistry(nil)
	src := &fakeSource{id: "s1"}
	if err := r.RegisterSource(context.Background(), src); err != nil {
		t.Fatalf("RegisterSource failed: %v", err)
	}

	consumers := make([]*countingConsumer, 3)
	for i := range consumers {
		consumers[i] = &countingConsumer{}
		if err := r.RegisterConsumer(fmt.Sprintf("c%d", i), consumers[i]); err != nil {
			t.Fatalf("RegisterConsumer failed: %v", err)
		}
	}

	src.Emit(Notification{
		EntityType: "contact",
		EntityID:   "42",
		EventType:  "updated",
		Data:       instance.Map{"field": instance.String("email")},
		Metadata:   map[string]string{"origin": "test"},
	})

	for i, c := range consumers {
		if c.count() != 1 {
			t.Errorf("consumer %d processed %d events, want 1", i, c.count())
		}
	}

	// All consumers must share one event instance with a populated id.
	ev := consumers[0].events[0]
	if ev.ID == "" {
		t.Error("event id not populated")
	}
	if ev.At.IsZero() {
		t.Error("event timestamp not populated")
	}
	for i := 1; i < 3; i++ {
		if consumers[i].events[0] != ev {
			t.Errorf("consumer %d received a different event instance", i)
		}
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	r := NewRegistry(nil)
	src := &fakeSource{id: "s1"}
	if err := r.RegisterSource(context.Background(), src); err != nil {
		t.Fatalf("RegisterSource failed: %v", err)
	}

	healthy1 := &countingConsumer{}
	failing := &countingConsumer{err: errors.New("db down")}
	healthy2 := &countingConsumer{}
	panicking := &countingConsumer{panics: true}

	r.RegisterConsumer("h1", healthy1)
	r.RegisterConsumer("bad", failing)
	r.RegisterConsumer("h2", healthy2)
	r.RegisterConsumer("boom", panicking)

	src.Emit(Notification{EntityType: "contact", EntityID: "1", EventType: "created"})

	if healthy1.count() != 1 || healthy2.count() != 1 {
		t.Errorf("healthy consumers got %d/%d events, want 1/1", healthy1.count(), healthy2.count())
	}
}

func TestDuplicateConsumerIgnored(t *testing.T) {
	r := NewRegistry(nil)
	src := &fakeSource{id: "s1"}
	if err := r.RegisterSource(context.Background(), src); err != nil {
		t.Fatalf("RegisterSource failed: %v", err)
	}

	first := &countingConsumer{}
	second := &countingConsumer{}
	r.RegisterConsumer("c1", first)
	r.RegisterConsumer("c1", second)

	src.Emit(Notification{EntityType: "contact", EntityID: "1", EventType: "created"})

	if first.count() != 1 {
		t.Errorf("first consumer got %d events, want 1", first.count())
	}
	if second.count() != 0 {
		t.Errorf("losing duplicate got %d events, want 0", second.count())
	}
}

func TestUnregisterConsumerStopsDelivery(t *testing.T) {
	r := NewRegistry(nil)
	src := &fakeSource{id: "s1"}
	if err := r.RegisterSource(context.Background(), src); err != nil {
		t.Fatalf("RegisterSource failed: %v", err)
	}

	c := &countingConsumer{}
	r.RegisterConsumer("c1", c)
	src.Emit(Notification{EntityType: "contact", EntityID: "1", EventType: "created"})
	r.UnregisterConsumer("c1")
	src.Emit(Notification{EntityType: "contact", EntityID: "1", EventType: "updated"})

	if c.count() != 1 {
		t.Errorf("consumer got %d events, want 1", c.count())
	}
}

func TestRegisterConsumerValidation(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.RegisterConsumer("", &countingConsumer{}); err == nil {
		t.Error("expected error for empty id")
	}
	if err := r.RegisterConsumer("c1", nil); err == nil {
		t.Error("expected error for nil consumer")
	}
}

func TestCloseShutsDownSources(t *testing.T) {
	r := NewRegistry(nil)
	s1 := &fakeSource{id: "s1"}
	s2 := &fakeSource{id: "s2"}
	r.RegisterSource(context.Background(), s1)
	r.RegisterSource(context.Background(), s2)

	r.Close()

	if s1.shutdowns != 1 || s2.shutdowns != 1 {
		t.Errorf("shutdowns = %d/%d, want 1/1", s1.shutdowns, s2.shutdowns)
	}
	if err := r.RegisterSource(context.Background(), &fakeSource{id: "s3"}); err == nil {
		t.Error("closed registry accepted a source")
	}
}

func TestCloseAbandonsSlowSources(t *testing.T) {
	r := NewRegistry(nil, WithShutdownTimeout(50*time.Millisecond))
	slow := &fakeSource{id: "slow", slow: 10 * time.Second}
	r.RegisterSource(context.Background(), slow)

	start := time.Now()
	r.Close()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Close blocked %v, should abandon slow sources", elapsed)
	}
}

func TestConcurrentDispatches(t *testing.T) {
	r := NewRegistry(nil)
	src := &fakeSource{id: "s1"}
	if err := r.RegisterSource(context.Background(), src); err != nil {
		t.Fatalf("RegisterSource failed: %v", err)
	}

	var total atomic.Int64
	r.RegisterConsumer("c1", consumerFunc(func(ctx context.Context, ev *Event) error {
		total.Add(1)
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src.Emit(Notification{EntityType: "contact", EntityID: fmt.Sprint(i), EventType: "updated"})
		}(i)
	}
	wg.Wait()

	if total.Load() != 20 {
		t.Errorf("processed %d events, want 20", total.Load())
	}
}

type consumerFunc func(ctx context.Context, ev *Event) error

func (f consumerFunc) ProcessEvent(ctx context.Context, ev *Event) error { return f(ctx, ev) }
