// Package scheduler fires bundles' recurring jobs on their declared
// schedules. It owns only the timing: due jobs run through the
// orchestrator, one at a time, in deterministic bundle order.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/mattjoyce/bundlehost/internal/bundle"
	"github.com/mattjoyce/bundlehost/internal/events"
	"github.com/mattjoyce/bundlehost/internal/log"
)

// DefaultTickInterval is how often due jobs are checked.
const DefaultTickInterval = 30 * time.Second

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a recurring-job schedule expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

type entry struct {
	bundleID string
	job      bundle.RecurringJob
	schedule cronlib.Schedule
	next     time.Time
}

// Scheduler manages the tick loop over all bundles' recurring jobs.
type Scheduler struct {
	registry *bundle.Registry
	runner   JobRunner
	hub      *events.Hub
	logger   *slog.Logger

	tickInterval time.Duration
	entries      []entry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Scheduler. The hub is optional.
func New(registry *bundle.Registry, runner JobRunner, hub *events.Hub, tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &Scheduler{
		registry:     registry,
		runner:       runner,
		hub:          hub,
		logger:       log.WithComponent("scheduler"),
		tickInterval: tickInterval,
		stopCh:       make(chan struct{}),
	}
}

// Start parses every bundle's schedules and begins the tick loop. A bundle
// job with an unparseable schedule is logged and skipped, not fatal.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.runner == nil {
		return fmt.Errorf("job runner is nil")
	}
	s.logger.Info("Starting scheduler", "tick_interval", s.tickInterval)

	s.buildEntries(time.Now())
	s.logger.Info("Recurring jobs registered", "count", len(s.entries))

	s.wg.Add(1)
	go s.tickLoop(ctx)
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// buildEntries walks the registry in sorted order and parses each job's
// schedule once.
func (s *Scheduler) buildEntries(now time.Time) {
	for _, h := range s.registry.All() {
		for _, job := range h.RecurringJobs() {
			sched, err := ParseSchedule(job.Schedule)
			if err != nil {
				s.logger.Error("Invalid schedule for recurring job, skipping",
					"bundle", h.ID(), "job", job.Name, "schedule", job.Schedule, "error", err)
				continue
			}
			s.entries = append(s.entries, entry{
				bundleID: h.ID(),
				job:      job,
				schedule: sched,
				next:     sched.Next(now),
			})
		}
	}
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx, time.Now())
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.logger.Warn("Scheduler context cancelled, stopping tick loop")
			return
		}
	}
}

// tick runs every due job sequentially. A job failure is logged and the
// tick continues; the next fire time advances either way so a broken job
// cannot busy-loop.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.logger.Debug("Scheduler tick")
	s.publish(events.TypeSchedulerTick, map[string]any{"at": now.UTC()})

	for i := range s.entries {
		e := &s.entries[i]
		if e.next.After(now) {
			continue
		}
		e.next = e.schedule.Next(now)

		s.logger.Info("Firing recurring job", "bundle", e.bundleID, "job", e.job.Name)
		sum, err := s.runner.RunRecurring(ctx, e.bundleID, e.job.Name, nil)
		if err != nil {
			s.logger.Error("Recurring job failed", "bundle", e.bundleID, "job", e.job.Name, "error", err)
			continue
		}
		s.publish(events.TypeSchedulerFired, map[string]any{
			"bundle":    e.bundleID,
			"job":       e.job.Name,
			"processed": sum.Processed,
			"updated":   sum.Updated,
			"failed":    sum.Failed,
		})
	}
}

func (s *Scheduler) publish(eventType string, data map[string]any) {
	if s.hub != nil {
		s.hub.Publish(eventType, data)
	}
}
