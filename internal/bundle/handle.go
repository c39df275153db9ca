// Package bundle defines the loaded-plugin contract and the registry the
// host resolves handles from. Discovery and loading of bundle code live
// outside this core; the registry is populated once at startup and is
// read-only afterwards.
package bundle

import (
	"github.com/mattjoyce/bundlehost/internal/instance"
)

// RecurringJob describes one scheduled job a bundle wants run against its
// instances. Descriptors are immutable once read from the handle.
type RecurringJob struct {
	// Name is unique within the bundle.
	Name string

	// Description is free text, injected into instances at run time.
	Description string

	// Schedule is an opaque expression interpreted by the scheduler
	// (5-field cron or an @every descriptor).
	Schedule string

	// Params are free-form default parameters for the run.
	Params map[string]string
}

// Handle is a loaded bundle plugin. The host holds a handle only for the
// duration of one call and never mutates plugin-internal state. Both
// capabilities take an instance and return the replacement to persist;
// a returned error marks the call as faulted.
type Handle interface {
	// ID is the bundle id. Instances reference it as their owner.
	ID() string

	// Version is the bundle's current version string.
	Version() string

	// HandleEvent processes one instance for the named event and returns
	// the instance to persist in its place.
	HandleEvent(eventName string, in *instance.Instance) (*instance.Instance, error)

	// Upgrade migrates an instance from an older bundle version and
	// returns the instance to persist.
	Upgrade(in *instance.Instance) (*instance.Instance, error)

	// RecurringJobs lists this bundle's scheduled job descriptors.
	RecurringJobs() []RecurringJob
}

// EventFunc is a bundle capability as a plain function.
type EventFunc func(eventName string, in *instance.Instance) (*instance.Instance, error)

// Func is a Handle built from functions, used by in-process bundles and
// tests. Nil capabilities behave as identity.
type Func struct {
	BundleID      string
	BundleVersion string
	OnEvent       EventFunc
	OnUpgrade     func(in *instance.Instance) (*instance.Instance, error)
	Jobs          []RecurringJob
}

func (f *Func) ID() string      { return f.BundleID }
func (f *Func) Version() string { return f.BundleVersion }

func (f *Func) HandleEvent(eventName string, in *instance.Instance) (*instance.Instance, error) {
	if f.OnEvent == nil {
		return in, nil
	}
	return f.OnEvent(eventName, in)
}

func (f *Func) Upgrade(in *instance.Instance) (*instance.Instance, error) {
	if f.OnUpgrade == nil {
		out := in.Clone()
		out.BundleVersion = f.BundleVersion
		return out, nil
	}
	return f.OnUpgrade(in)
}

func (f *Func) RecurringJobs() []RecurringJob {
	return f.Jobs
}
