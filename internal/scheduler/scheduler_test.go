package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/mattjoyce/bundlehost/internal/bundle"
	"github.com/mattjoyce/bundlehost/internal/dispatch"
	"github.com/mattjoyce/bundlehost/internal/log"
	"github.com/mattjoyce/bundlehost/internal/scheduler/mocks"
)

func init() {
	log.Setup("ERROR") // Suppress logs in tests
}

func registryWithJobs(t *testing.T, jobsByBundle map[string][]bundle.RecurringJob) *bundle.Registry {
	t.Helper()
	reg := bundle.NewRegistry()
	for id, jobs := range jobsByBundle {
		if err := reg.Add(&bundle.Func{BundleID: id, BundleVersion: "1.0.0", Jobs: jobs}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	return reg
}

func TestParseSchedule(t *testing.T) {
	valid := []string{"@every 30s", "@every 1h30m", "0 3 * * *", "*/5 * * * *"}
	for _, expr := range valid {
		if _, err := ParseSchedule(expr); err != nil {
			t.Errorf("ParseSchedule(%q) failed: %v", expr, err)
		}
	}

	invalid := []string{"", "not a schedule", "61 * * * *"}
	for _, expr := range invalid {
		if _, err := ParseSchedule(expr); err == nil {
			t.Errorf("ParseSchedule(%q) should fail", expr)
		}
	}
}

func TestBuildEntriesSkipsInvalidSchedules(t *testing.T) {
	reg := registryWithJobs(t, map[string][]bundle.RecurringJob{
		"crm": {
			{Name: "good", Schedule: "@every 1h"},
			{Name: "bad", Schedule: "every day at noon"},
		},
	})

	s := New(reg, nil, nil, time.Minute)
	s.buildEntries(time.Now())

	if len(s.entries) != 1 {
		t.Fatalf("entries = %d, want 1 (invalid schedule skipped)", len(s.entries))
	}
	if s.entries[0].job.Name != "good" {
		t.Errorf("kept entry = %q", s.entries[0].job.Name)
	}
}

func TestTickFiresDueJobs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reg := registryWithJobs(t, map[string][]bundle.RecurringJob{
		"billing": {{Name: "invoices", Schedule: "@every 1h"}},
		"crm":     {{Name: "nightly", Schedule: "@every 1h"}},
	})

	runner := mocks.NewMockJobRunner(ctrl)
	s := New(reg, runner, nil, time.Minute)

	base := time.Now()
	s.buildEntries(base)

	// Nothing due yet.
	s.tick(context.Background(), base.Add(time.Minute))

	// Both due; bundle order is deterministic (sorted by id).
	due := base.Add(2 * time.Hour)
	gomock.InOrder(
		runner.EXPECT().RunRecurring(gomock.Any(), "billing", "invoices", nil).Return(dispatch.Summary{Processed: 3}, nil),
		runner.EXPECT().RunRecurring(gomock.Any(), "crm", "nightly", nil).Return(dispatch.Summary{Processed: 5}, nil),
	)
	s.tick(context.Background(), due)
}

func TestTickAdvancesAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reg := registryWithJobs(t, map[string][]bundle.RecurringJob{
		"crm": {{Name: "nightly", Schedule: "@every 1h"}},
	})

	runner := mocks.NewMockJobRunner(ctrl)
	s := New(reg, runner, nil, time.Minute)

	base := time.Now()
	s.buildEntries(base)

	due := base.Add(2 * time.Hour)
	runner.EXPECT().RunRecurring(gomock.Any(), "crm", "nightly", nil).Return(dispatch.Summary{}, errors.New("storage gone"))
	s.tick(context.Background(), due)

	// Immediately re-ticking at the same instant must not re-fire: the
	// next time advanced past `due` despite the failure.
	s.tick(context.Background(), due)
}

func TestStartRequiresRunner(t *testing.T) {
	reg := registryWithJobs(t, nil)
	s := New(reg, nil, nil, time.Minute)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for nil runner")
	}
}

func TestStartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reg := registryWithJobs(t, map[string][]bundle.RecurringJob{
		"crm": {{Name: "nightly", Schedule: "@every 24h"}},
	})

	runner := mocks.NewMockJobRunner(ctrl)
	s := New(reg, runner, nil, 10*time.Millisecond)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	s.Stop() // Must not deadlock or fire the 24h job.
}
