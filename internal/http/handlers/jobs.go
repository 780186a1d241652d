package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/domain"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/provider"
)

type submitJobResponse struct {
	JobID         string `json:"jobId"`
	ProviderJobID string `json:"providerJobId"`
	Status        string `json:"status"`
}

type jobStatusResponse struct {
	JobID       string `json:"jobId"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	CreditsCost int64  `json:"creditsCost"`
	ResultRef   string `json:"resultRef,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SubmitJob prices and submits one transformation job.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	kind := domain.JobKind(chi.URLParam(r, "kind"))

	var payload provider.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Orchestrator.SubmitJob(r.Context(), userID, kind, payload)
	if err != nil {
		a.submitError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, submitJobResponse{
		JobID:         job.ID,
		ProviderJobID: job.ProviderJobID,
		Status:        string(job.Status),
	})
}

func (a *App) submitError(w http.ResponseWriter, r *http.Request, err error) {
	if ice, ok := domain.IsInsufficientCredits(err); ok {
		a.json(w, http.StatusPaymentRequired, map[string]any{
			"error":     "insufficient_credits",
			"message":   a.localized(r, "insufficient_credits"),
			"required":  ice.Required,
			"available": ice.Available,
		})
		return
	}
	switch {
	case errors.Is(err, domain.ErrUnsupportedKind):
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported job kind")
	case errors.Is(err, domain.ErrInvalidPayload):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		a.json(w, http.StatusInternalServerError, map[string]any{
			"error":     "provider_unavailable",
			"message":   a.localized(r, "provider_unavailable"),
			"retryable": true,
		})
	case errors.Is(err, domain.ErrProviderRejected), errors.Is(err, domain.ErrProviderMisconfigured):
		a.json(w, http.StatusInternalServerError, map[string]any{
			"error":     "provider_error",
			"message":   a.localized(r, "provider_rejected"),
			"retryable": false,
		})
	default:
		a.error(w, http.StatusInternalServerError, "internal", "failed to submit job")
	}
}

// JobStatus reconciles and returns one job's current state.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	job, err := a.Orchestrator.CheckStatus(r.Context(), userID, jobID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrForbidden):
			a.error(w, http.StatusForbidden, "forbidden", "job belongs to another user")
		case errors.Is(err, domain.ErrProviderUnavailable):
			w.Header().Set("Retry-After", "5")
			a.json(w, http.StatusServiceUnavailable, map[string]any{
				"error":     "provider_unavailable",
				"message":   a.localized(r, "provider_unavailable"),
				"retryable": true,
			})
		default:
			a.error(w, http.StatusInternalServerError, "internal", "failed to check status")
		}
		return
	}
	a.json(w, http.StatusOK, jobStatusResponse{
		JobID:       job.ID,
		Kind:        string(job.Kind),
		Status:      string(job.Status),
		CreditsCost: job.CreditsCost,
		ResultRef:   job.ResultRef,
		Error:       job.ErrorMessage,
	})
}

// ListJobs returns the user's recent jobs without provider calls.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobs, err := a.Orchestrator.ListJobs(r.Context(), userID, 20)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	items := make([]jobStatusResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, jobStatusResponse{
			JobID:       job.ID,
			Kind:        string(job.Kind),
			Status:      string(job.Status),
			CreditsCost: job.CreditsCost,
			ResultRef:   job.ResultRef,
			Error:       job.ErrorMessage,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
