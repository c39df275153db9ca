package bundle

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/bundlehost/internal/instance"
)

// Manifest is the bundle.yaml metadata accompanying a bundle: identity,
// version, and the recurring jobs it wants scheduled. Behavior still comes
// from a registered Handle; the manifest only describes it.
type Manifest struct {
	Name          string          `yaml:"name"`
	Version       string          `yaml:"version"`
	Description   string          `yaml:"description,omitempty"`
	Events        []string        `yaml:"events,omitempty"`
	RecurringJobs []RecurringSpec `yaml:"recurring_jobs,omitempty"`
}

// RecurringSpec is the manifest form of a RecurringJob descriptor.
type RecurringSpec struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Schedule    string            `yaml:"schedule"`
	Params      map[string]string `yaml:"params,omitempty"`
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Validate checks required fields and uniqueness of job names.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("manifest: name is required")
	}
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("manifest: version is required")
	}
	seen := make(map[string]struct{}, len(m.RecurringJobs))
	for _, job := range m.RecurringJobs {
		if strings.TrimSpace(job.Name) == "" {
			return fmt.Errorf("manifest %q: recurring job with empty name", m.Name)
		}
		if strings.TrimSpace(job.Schedule) == "" {
			return fmt.Errorf("manifest %q: recurring job %q has no schedule", m.Name, job.Name)
		}
		if _, dup := seen[job.Name]; dup {
			return fmt.Errorf("manifest %q: duplicate recurring job %q", m.Name, job.Name)
		}
		seen[job.Name] = struct{}{}
	}
	return nil
}

// Jobs converts the manifest's recurring specs to descriptors.
func (m *Manifest) Jobs() []RecurringJob {
	out := make([]RecurringJob, 0, len(m.RecurringJobs))
	for _, spec := range m.RecurringJobs {
		out = append(out, RecurringJob{
			Name:        spec.Name,
			Description: spec.Description,
			Schedule:    spec.Schedule,
			Params:      spec.Params,
		})
	}
	return out
}

// FromManifest builds a Func handle from a manifest and an event capability.
// The upgrade capability may be nil, in which case upgrading stamps the
// manifest version onto the instance.
func FromManifest(m *Manifest, onEvent EventFunc, onUpgrade func(in *instance.Instance) (*instance.Instance, error)) *Func {
	return &Func{
		BundleID:      m.Name,
		BundleVersion: m.Version,
		OnEvent:       onEvent,
		OnUpgrade:     onUpgrade,
		Jobs:          m.Jobs(),
	}
}
