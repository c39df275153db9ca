// Package dispatch implements "run this bundle against these instances",
// parameterized by job shape: single on-demand events, recurring jobs,
// bulk version upgrades, and entity-change sweeps. Every plugin call goes
// through the bounded executor; per-instance failures are counted, never
// allowed to abort a batch.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/bundlehost/internal/bundle"
	"github.com/mattjoyce/bundlehost/internal/events"
	"github.com/mattjoyce/bundlehost/internal/execute"
	"github.com/mattjoyce/bundlehost/internal/fanout"
	"github.com/mattjoyce/bundlehost/internal/instance"
	"github.com/mattjoyce/bundlehost/internal/log"
)

// DefaultTimeout bounds one plugin invocation unless configured otherwise.
const DefaultTimeout = 60 * time.Second

// Summary is the completion report of one batch operation.
type Summary struct {
	Pages     int `json:"pages"`
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// UpgradeSummary is the completion report of a bulk upgrade.
type UpgradeSummary struct {
	Pages     int `json:"pages"`
	Scanned   int `json:"scanned"`
	Attempted int `json:"attempted"`
	Upgraded  int `json:"upgraded"`
	Failed    int `json:"failed"`
}

// Orchestrator composes the bounded executor, the batch pager, the bundle
// registry, and the instance store into the four job shapes.
type Orchestrator struct {
	store    InstanceStore
	registry BundleRegistry
	hub      *events.Hub
	logger   *slog.Logger
	timeout  time.Duration
	pageSize int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout overrides the per-invocation bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithPageSize overrides the batch page size.
func WithPageSize(n int) Option {
	return func(o *Orchestrator) {
		if n >= 1 && n <= instance.MaxPageSize {
			o.pageSize = n
		}
	}
}

// New creates an Orchestrator. The hub is optional.
func New(store InstanceStore, registry BundleRegistry, hub *events.Hub, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		registry: registry,
		hub:      hub,
		logger:   log.WithComponent("dispatch"),
		timeout:  DefaultTimeout,
		pageSize: instance.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExecuteSingle loads one instance and runs its bundle's event capability
// once. A missing instance or bundle is logged and returns nil without any
// invocation; a storage read failure and a plugin Timeout/Fault are
// returned to the caller, who owns retry policy.
func (o *Orchestrator) ExecuteSingle(ctx context.Context, instanceID, eventName string) error {
	if instanceID == "" {
		return fmt.Errorf("instance id is empty")
	}
	if eventName == "" {
		return fmt.Errorf("event name is empty")
	}
	logger := o.logger.With("instance_id", instanceID, "event", eventName)

	in, err := o.store.Get(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("load instance %q: %w", instanceID, err)
	}
	if in == nil {
		logger.Warn("instance not found, nothing to execute")
		return nil
	}

	handle, ok := o.registry.Get(in.BundleID)
	if !ok {
		logger.Warn("bundle not loaded, nothing to execute", "bundle", in.BundleID)
		return nil
	}

	logger.Info("executing single event", "bundle", in.BundleID)
	out, err := o.invoke(handle, eventName, in.Clone())
	if err != nil {
		logger.Warn("invocation failed", "error", err)
		return err
	}
	o.persist(ctx, logger, in, out)
	return nil
}

// RunRecurring looks up the bundle's recurring job by name and walks every
// instance of the bundle in pages, invoking the job's event on each
// enriched copy. A missing bundle or job warns and no-ops.
func (o *Orchestrator) RunRecurring(ctx context.Context, bundleID, jobName string, params map[string]string) (Summary, error) {
	var sum Summary
	if bundleID == "" {
		return sum, fmt.Errorf("bundle id is empty")
	}
	if jobName == "" {
		return sum, fmt.Errorf("job name is empty")
	}
	logger := o.logger.With("bundle", bundleID, "job", jobName)

	handle, ok := o.registry.Get(bundleID)
	if !ok {
		logger.Warn("bundle not loaded, skipping recurring job")
		return sum, nil
	}
	job, ok := o.registry.RecurringJob(bundleID, jobName)
	if !ok {
		logger.Warn("recurring job not declared by bundle, skipping")
		return sum, nil
	}

	merged := mergeParams(job.Params, params)
	startedAt := time.Now()
	logger.Info("recurring job started", "page_size", o.pageSize)
	o.publish(events.TypeSweepStarted, map[string]any{
		"shape": "recurring", "bundle": bundleID, "job": jobName,
	})

	pager, err := instance.NewPager(o.store, bundleID, o.pageSize)
	if err != nil {
		return sum, err
	}

	for {
		page, err := pager.Next(ctx)
		if err != nil {
			// Environment failure: surface to the caller with the
			// counts accumulated so far.
			return sum, fmt.Errorf("recurring job %s/%s: %w", bundleID, jobName, err)
		}
		if page == nil {
			break
		}
		sum.Pages++

		for _, in := range page {
			enriched := enrichForJob(in, job, merged, time.Now())
			out, err := o.invoke(handle, job.Name, enriched)
			sum.Processed++
			if err != nil {
				sum.Failed++
				logger.Warn("instance invocation failed", "instance_id", in.ID, "error", err)
				continue
			}
			if o.persist(ctx, logger, in, out) {
				sum.Updated++
			} else {
				sum.Failed++
			}
		}

		logger.Info("recurring job page done", "page", sum.Pages, "processed", sum.Processed, "failed", sum.Failed)
		o.publish(events.TypeSweepPage, map[string]any{
			"shape": "recurring", "bundle": bundleID, "job": jobName,
			"page": sum.Pages, "processed": sum.Processed,
		})
	}

	logger.Info("recurring job completed",
		"pages", sum.Pages,
		"processed", sum.Processed,
		"updated", sum.Updated,
		"failed", sum.Failed,
		"duration", time.Since(startedAt),
	)
	o.publish(events.TypeSweepCompleted, map[string]any{
		"shape": "recurring", "bundle": bundleID, "job": jobName, "summary": sum,
	})
	return sum, nil
}

// BulkUpgrade walks every instance of the bundle and runs the upgrade
// capability on each whose stored version differs from the handle's
// current version, persisting results under the original ids.
func (o *Orchestrator) BulkUpgrade(ctx context.Context, bundleID string) (UpgradeSummary, error) {
	var sum UpgradeSummary
	if bundleID == "" {
		return sum, fmt.Errorf("bundle id is empty")
	}
	logger := o.logger.With("bundle", bundleID)

	handle, ok := o.registry.Get(bundleID)
	if !ok {
		logger.Warn("bundle not loaded, skipping upgrade")
		return sum, nil
	}
	target := handle.Version()

	startedAt := time.Now()
	logger.Info("bulk upgrade started", "target_version", target, "page_size", o.pageSize)
	o.publish(events.TypeSweepStarted, map[string]any{
		"shape": "upgrade", "bundle": bundleID, "target_version": target,
	})

	pager, err := instance.NewPager(o.store, bundleID, o.pageSize)
	if err != nil {
		return sum, err
	}

	for {
		page, err := pager.Next(ctx)
		if err != nil {
			return sum, fmt.Errorf("bulk upgrade %s: %w", bundleID, err)
		}
		if page == nil {
			break
		}
		sum.Pages++

		for _, in := range page {
			sum.Scanned++
			if in.BundleVersion == target {
				continue
			}
			sum.Attempted++

			clone := in.Clone()
			out, err := execute.Bounded(func() (*instance.Instance, error) {
				return handle.Upgrade(clone)
			}, o.timeout)
			if err != nil {
				sum.Failed++
				logger.Warn("upgrade invocation failed", "instance_id", in.ID, "error", err)
				continue
			}
			if o.persist(ctx, logger, in, out) {
				sum.Upgraded++
			} else {
				sum.Failed++
			}
		}

		logger.Info("bulk upgrade page done", "page", sum.Pages, "scanned", sum.Scanned, "upgraded", sum.Upgraded)
		o.publish(events.TypeSweepPage, map[string]any{
			"shape": "upgrade", "bundle": bundleID, "page": sum.Pages, "scanned": sum.Scanned,
		})
	}

	logger.Info("bulk upgrade completed",
		"pages", sum.Pages,
		"scanned", sum.Scanned,
		"attempted", sum.Attempted,
		"upgraded", sum.Upgraded,
		"failed", sum.Failed,
		"duration", time.Since(startedAt),
	)
	o.publish(events.TypeSweepCompleted, map[string]any{
		"shape": "upgrade", "bundle": bundleID, "summary": sum,
	})
	return sum, nil
}

// SweepEntityEvent walks every loaded bundle's instances and invokes each
// with the entity-change context. A failing bundle walk or instance never
// stops the remaining sweep.
func (o *Orchestrator) SweepEntityEvent(ctx context.Context, ev *fanout.Event) error {
	if ev == nil {
		return fmt.Errorf("event is nil")
	}
	eventName := entityEventPrefix + ev.EventType
	logger := o.logger.With("event_id", ev.ID, "entity_type", ev.EntityType, "event", eventName)

	startedAt := time.Now()
	var sum Summary
	logger.Info("entity sweep started")
	o.publish(events.TypeSweepStarted, map[string]any{
		"shape": "entity", "event_id": ev.ID, "event_type": ev.EventType,
	})

	for _, handle := range o.registry.All() {
		bundleID := handle.ID()
		pager, err := instance.NewPager(o.store, bundleID, o.pageSize)
		if err != nil {
			logger.Error("pager construction failed", "bundle", bundleID, "error", err)
			continue
		}

		for {
			page, err := pager.Next(ctx)
			if err != nil {
				// One bundle's storage trouble must not stop the
				// remaining bundles.
				logger.Error("page fetch failed, abandoning bundle", "bundle", bundleID, "error", err)
				break
			}
			if page == nil {
				break
			}
			sum.Pages++

			for _, in := range page {
				enriched := enrichForEntity(in, ev)
				out, err := o.invoke(handle, eventName, enriched)
				sum.Processed++
				if err != nil {
					sum.Failed++
					logger.Warn("instance invocation failed", "bundle", bundleID, "instance_id", in.ID, "error", err)
					continue
				}
				if o.persist(ctx, logger, in, out) {
					sum.Updated++
				} else {
					sum.Failed++
				}
			}
		}
	}

	logger.Info("entity sweep completed",
		"pages", sum.Pages,
		"processed", sum.Processed,
		"updated", sum.Updated,
		"failed", sum.Failed,
		"duration", time.Since(startedAt),
	)
	o.publish(events.TypeSweepCompleted, map[string]any{
		"shape": "entity", "event_id": ev.ID, "summary": sum,
	})
	return nil
}

// ProcessEvent lets the orchestrator act as a fan-out consumer.
func (o *Orchestrator) ProcessEvent(ctx context.Context, ev *fanout.Event) error {
	return o.SweepEntityEvent(ctx, ev)
}

// invoke runs one event capability under the bounded executor. A nil
// result from a well-behaved return is treated as a fault.
func (o *Orchestrator) invoke(handle bundle.Handle, eventName string, enriched *instance.Instance) (*instance.Instance, error) {
	out, err := execute.Bounded(func() (*instance.Instance, error) {
		return handle.HandleEvent(eventName, enriched)
	}, o.timeout)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, &execute.Fault{Err: fmt.Errorf("bundle %q returned nil instance", handle.ID())}
	}
	return out, nil
}

// persist stores the plugin's result under the original instance's id and
// bundle. Write failures are logged and counted by the caller, never
// raised: they reflect environment health, and the batch must go on.
func (o *Orchestrator) persist(ctx context.Context, logger *slog.Logger, original, result *instance.Instance) bool {
	// The id never changes across updates, whatever the plugin returned.
	result.ID = original.ID
	result.BundleID = original.BundleID

	ok, err := o.store.Update(ctx, result)
	if err != nil {
		logger.Error("persist failed", "instance_id", original.ID, "error", err)
		return false
	}
	if !ok {
		logger.Error("persist hit unknown id", "instance_id", original.ID)
		return false
	}
	return true
}

func (o *Orchestrator) publish(eventType string, data map[string]any) {
	if o.hub != nil {
		o.hub.Publish(eventType, data)
	}
}
