package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/bundlehost/internal/execute"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	active := 0
	if s.sources != nil {
		active = len(s.sources.ActiveSources())
	}

	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		BundlesLoaded: len(s.registry.All()),
		ActiveSources: active,
	})
}

// handleInstanceEvent handles POST /v1/instances/{instanceID}/events/{event}.
// The event runs inline; the response reports the outcome of this one
// invocation.
func (s *Server) handleInstanceEvent(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	eventName := chi.URLParam(r, "event")

	err := s.dispatcher.ExecuteSingle(r.Context(), instanceID, eventName)
	if err != nil {
		s.logger.Error("single event execution failed", "instance_id", instanceID, "event", eventName, "error", err)
		if errors.Is(err, execute.ErrTimeout) {
			s.writeError(w, http.StatusGatewayTimeout, "bundle execution timed out")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "execution failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, EventResponse{
		InstanceID: instanceID,
		Event:      eventName,
		Status:     "ok",
	})
}

// handleRunJob handles POST /v1/bundles/{bundle}/jobs/{job}.
// Runs the recurring job across all the bundle's instances and returns the
// batch summary.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	bundleID := chi.URLParam(r, "bundle")
	jobName := chi.URLParam(r, "job")

	if _, ok := s.registry.RecurringJob(bundleID, jobName); !ok {
		s.writeError(w, http.StatusNotFound, "bundle or job not found")
		return
	}

	var req JobRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	summary, err := s.dispatcher.RunRecurring(r.Context(), bundleID, jobName, req.Params)
	if err != nil {
		s.logger.Error("recurring job failed", "bundle", bundleID, "job", jobName, "error", err)
		s.writeError(w, http.StatusInternalServerError, "job failed: "+err.Error())
		return
	}

	s.logger.Info("recurring job triggered via API", "bundle", bundleID, "job", jobName,
		"processed", summary.Processed, "failed", summary.Failed)

	respondJSON(w, http.StatusOK, summary)
}

// handleUpgrade handles POST /v1/bundles/{bundle}/upgrade.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	bundleID := chi.URLParam(r, "bundle")

	if _, ok := s.registry.Get(bundleID); !ok {
		s.writeError(w, http.StatusNotFound, "bundle not found")
		return
	}

	summary, err := s.dispatcher.BulkUpgrade(r.Context(), bundleID)
	if err != nil {
		s.logger.Error("bulk upgrade failed", "bundle", bundleID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "upgrade failed: "+err.Error())
		return
	}

	s.logger.Info("bulk upgrade triggered via API", "bundle", bundleID,
		"scanned", summary.Scanned, "upgraded", summary.Upgraded, "failed", summary.Failed)

	respondJSON(w, http.StatusOK, summary)
}

// handleListBundles handles GET /v1/bundles.
func (s *Server) handleListBundles(w http.ResponseWriter, r *http.Request) {
	handles := s.registry.All()

	resp := BundleListResponse{Bundles: make([]BundleSummary, 0, len(handles))}
	for _, h := range handles {
		summary := BundleSummary{
			ID:      h.ID(),
			Version: h.Version(),
		}
		for _, job := range h.RecurringJobs() {
			summary.Jobs = append(summary.Jobs, JobSummary{
				Name:        job.Name,
				Description: job.Description,
				Schedule:    job.Schedule,
			})
		}
		resp.Bundles = append(resp.Bundles, summary)
	}

	respondJSON(w, http.StatusOK, resp)
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
