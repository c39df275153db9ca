package api

// JobRequest is the optional JSON body for POST /v1/bundles/{bundle}/jobs/{job}.
// Params override the job's declared defaults key by key.
type JobRequest struct {
	Params map[string]string `json:"params,omitempty"`
}

// EventResponse is returned after a single-instance event execution.
type EventResponse struct {
	InstanceID string `json:"instance_id"`
	Event      string `json:"event"`
	Status     string `json:"status"`
}

// JobSummary describes one recurring job a bundle declares.
type JobSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schedule    string `json:"schedule"`
}

// BundleSummary describes one loaded bundle.
type BundleSummary struct {
	ID      string       `json:"id"`
	Version string       `json:"version"`
	Jobs    []JobSummary `json:"jobs,omitempty"`
}

// BundleListResponse is returned by GET /v1/bundles.
type BundleListResponse struct {
	Bundles []BundleSummary `json:"bundles"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	BundlesLoaded int    `json:"bundles_loaded"`
	ActiveSources int    `json:"active_sources"`
}
