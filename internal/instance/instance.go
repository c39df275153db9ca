// Package instance defines the persisted unit of bundle state and the
// pagination primitives used to walk arbitrarily large collections of them.
package instance

import (
	"context"
	"fmt"
	"time"
)

// Instance is one unit of persisted state owned by exactly one bundle.
// The property map is open: bundles store whatever they like under keys of
// their choosing. Keys starting with "_" are reserved for host-injected
// metadata and are stripped of no meaning here.
type Instance struct {
	ID            string
	BundleID      string
	BundleVersion string
	Properties    Map
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy. The orchestrator enriches a clone before every
// plugin call so the stored instance is never mutated in place.
func (in *Instance) Clone() *Instance {
	out := *in
	out.Properties = in.Properties.Clone()
	return &out
}

// Store is the persistence contract the orchestrator depends on. Concrete
// backends must guarantee safe concurrent create/update for distinct ids;
// this package adds no cross-instance locking.
type Store interface {
	// Get returns the instance, or (nil, nil) if no instance has that id.
	Get(ctx context.Context, id string) (*Instance, error)

	// Update replaces the stored instance wholesale under its id.
	// Returns false if the id is unknown.
	Update(ctx context.Context, in *Instance) (bool, error)

	// GetPage returns one page of the bundle's instances in stable store
	// order. An empty slice marks the end of the collection.
	GetPage(ctx context.Context, bundleID string, page, pageSize int) ([]*Instance, error)
}

const (
	// MaxPageSize bounds a single page fetch.
	MaxPageSize = 1000

	// DefaultPageSize is used by batch sweeps unless configured otherwise.
	DefaultPageSize = 1000
)

// Cursor is a 1-based page position over a bundle's instance collection.
type Cursor struct {
	Page     int
	PageSize int
}

// NewCursor validates the position. Page numbers start at 1; page size must
// be within [1, MaxPageSize].
func NewCursor(page, pageSize int) (Cursor, error) {
	if page < 1 {
		return Cursor{}, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return Cursor{}, fmt.Errorf("page size must be in [1, %d], got %d", MaxPageSize, pageSize)
	}
	return Cursor{Page: page, PageSize: pageSize}, nil
}

// Skip returns the number of items before this page.
func (c Cursor) Skip() int {
	return (c.Page - 1) * c.PageSize
}

// Next returns the cursor advanced by one page.
func (c Cursor) Next() Cursor {
	return Cursor{Page: c.Page + 1, PageSize: c.PageSize}
}

// Pager walks a bundle's instances page by page, stopping at the first
// empty page. It holds no server-side state: a fresh Pager restarts from
// page one, and a crashed walk is not resumable mid-page. Callers that need
// resumability track the last completed page number themselves.
type Pager struct {
	store    Store
	bundleID string
	cursor   Cursor
	done     bool
}

// NewPager creates a pager starting at page 1.
func NewPager(store Store, bundleID string, pageSize int) (*Pager, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if bundleID == "" {
		return nil, fmt.Errorf("bundle id is empty")
	}
	cursor, err := NewCursor(1, pageSize)
	if err != nil {
		return nil, err
	}
	return &Pager{store: store, bundleID: bundleID, cursor: cursor}, nil
}

// Next fetches the next page. It returns (nil, nil) once the collection is
// exhausted; every call after that returns (nil, nil) without touching the
// store.
func (p *Pager) Next(ctx context.Context) ([]*Instance, error) {
	if p.done {
		return nil, nil
	}
	items, err := p.store.GetPage(ctx, p.bundleID, p.cursor.Page, p.cursor.PageSize)
	if err != nil {
		return nil, fmt.Errorf("get page %d for bundle %q: %w", p.cursor.Page, p.bundleID, err)
	}
	if len(items) == 0 {
		p.done = true
		return nil, nil
	}
	p.cursor = p.cursor.Next()
	return items, nil
}

// Page returns the 1-based number of the page the next call to Next will
// fetch.
func (p *Pager) Page() int {
	return p.cursor.Page
}
