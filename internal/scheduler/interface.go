package scheduler

import (
	"context"

	"github.com/mattjoyce/bundlehost/internal/dispatch"
)

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks github.com/mattjoyce/bundlehost/internal/scheduler JobRunner

// JobRunner is the slice of the orchestrator the scheduler drives.
type JobRunner interface {
	RunRecurring(ctx context.Context, bundleID, jobName string, params map[string]string) (dispatch.Summary, error)
}
