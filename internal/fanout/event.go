// Package fanout decouples entity-change notification sources from an
// open-ended set of reactive consumers. Sources are registered with a
// lifecycle; every raw notification becomes one immutable event broadcast
// concurrently to all consumers, with per-consumer fault isolation.
package fanout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/bundlehost/internal/instance"
)

// Notification is the raw change report a source emits. The registry turns
// it into an Event before dispatch.
type Notification struct {
	EntityType string
	EntityID   string
	EventType  string
	Data       instance.Map
	Metadata   map[string]string
}

// Event is one entity-change event. A single Event value is shared
// read-only across all consumers of one dispatch; consumers must not
// mutate it.
type Event struct {
	ID         string
	EntityType string
	EntityID   string
	EventType  string
	Data       instance.Map
	Metadata   map[string]string
	At         time.Time
}

func newEvent(n Notification) *Event {
	return &Event{
		ID:         uuid.NewString(),
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		EventType:  n.EventType,
		Data:       n.Data,
		Metadata:   n.Metadata,
		At:         time.Now().UTC(),
	}
}

// EmitFunc is the callback a source invokes for each change it observes.
type EmitFunc func(Notification)

// Source produces entity-change notifications. Subscribe is called before
// Init; after Unsubscribe the source must stop emitting.
type Source interface {
	ID() string
	Subscribe(emit EmitFunc)
	Unsubscribe()
	Init(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Consumer reacts to entity-change events. Consumers are invoked
// concurrently for one event and may be invoked concurrently for distinct
// events from overlapping dispatches.
type Consumer interface {
	ProcessEvent(ctx context.Context, ev *Event) error
}
