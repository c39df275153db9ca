package dispatch

import (
	"context"

	"github.com/mattjoyce/bundlehost/internal/bundle"
	"github.com/mattjoyce/bundlehost/internal/instance"
)

//go:generate mockgen -destination=mocks/mock_deps.go -package=mocks github.com/mattjoyce/bundlehost/internal/dispatch InstanceStore,BundleRegistry

// InstanceStore is the slice of instance persistence the orchestrator uses.
// It matches instance.Store so the SQLite store satisfies it directly.
type InstanceStore interface {
	Get(ctx context.Context, id string) (*instance.Instance, error)
	Update(ctx context.Context, in *instance.Instance) (bool, error)
	GetPage(ctx context.Context, bundleID string, page, pageSize int) ([]*instance.Instance, error)
}

// BundleRegistry resolves loaded bundle handles.
type BundleRegistry interface {
	Get(id string) (bundle.Handle, bool)
	All() []bundle.Handle
	RecurringJob(bundleID, jobName string) (bundle.RecurringJob, bool)
}
