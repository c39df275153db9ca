package dispatch

import (
	"time"

	"github.com/mattjoyce/bundlehost/internal/bundle"
	"github.com/mattjoyce/bundlehost/internal/fanout"
	"github.com/mattjoyce/bundlehost/internal/instance"
)

// Host-injected property keys. All start with "_" and carry a source
// namespace so they cannot silently collide with bundle-owned properties
// that avoid the prefix.
const (
	keyJobName        = "_job_name"
	keyJobDescription = "_job_description"
	keyJobExecutedAt  = "_job_executed_at"
	jobParamPrefix    = "_job_param_"

	keyEntityType  = "_entity_type"
	keyEntityID    = "_entity_id"
	keyEntityEvent = "_entity_event"
	keyEntityData  = "_entity_data"
	metaPrefix     = "_meta_"
)

// entityEventPrefix derives the plugin-facing event name from the change type.
const entityEventPrefix = "entity."

// enrichForJob clones the instance and injects recurring-job context.
// Caller params are merged over the descriptor's defaults before this is
// called.
func enrichForJob(in *instance.Instance, job bundle.RecurringJob, params map[string]string, now time.Time) *instance.Instance {
	out := in.Clone()
	out.Properties[keyJobName] = instance.String(job.Name)
	out.Properties[keyJobDescription] = instance.String(job.Description)
	out.Properties[keyJobExecutedAt] = instance.String(now.UTC().Format(time.RFC3339Nano))
	for k, v := range params {
		out.Properties[jobParamPrefix+k] = instance.String(v)
	}
	return out
}

// enrichForEntity clones the instance and injects the entity-change
// context: type, id, event, payload, and namespaced metadata.
func enrichForEntity(in *instance.Instance, ev *fanout.Event) *instance.Instance {
	out := in.Clone()
	out.Properties[keyEntityType] = instance.String(ev.EntityType)
	out.Properties[keyEntityID] = instance.String(ev.EntityID)
	out.Properties[keyEntityEvent] = instance.String(ev.EventType)
	if ev.Data != nil {
		out.Properties[keyEntityData] = ev.Data.Clone()
	}
	for k, v := range ev.Metadata {
		out.Properties[metaPrefix+k] = instance.String(v)
	}
	return out
}

// mergeParams overlays caller params on the descriptor defaults.
func mergeParams(defaults, caller map[string]string) map[string]string {
	out := make(map[string]string, len(defaults)+len(caller))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range caller {
		out[k] = v
	}
	return out
}
