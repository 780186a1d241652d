// Package service glues the provider adapter, the job store and the credit
// ledger into the submission and settlement flows request handlers call.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/domain"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/infra"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/ledger"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/observability"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/provider"
)

// Provider error text is persisted on the job record, truncated.
const maxErrorLen = 500

// ProviderClient is the slice of the provider adapter the orchestrator uses.
type ProviderClient interface {
	Submit(ctx context.Context, kind domain.JobKind, payload provider.Payload) (string, error)
	Poll(ctx context.Context, kind domain.JobKind, providerJobID string) (*provider.RawStatus, error)
}

// Orchestrator validates affordability, creates jobs, submits them to the
// provider and drives the terminal-state settlement handshake.
type Orchestrator struct {
	jobs     domain.JobRepository
	ledger   *ledger.Service
	provider ProviderClient
	logger   infra.Logger
	metrics  *observability.Metrics
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(jobs domain.JobRepository, ledgerSvc *ledger.Service, providerClient ProviderClient, logger infra.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		jobs:     jobs,
		ledger:   ledgerSvc,
		provider: providerClient,
		logger:   logger,
		metrics:  metrics,
	}
}

// SubmitJob prices the request, verifies affordability, records the job and
// hands it to the provider. No ledger mutation happens here: an underfunded
// user cannot submit, and a submission failure marks the job FAILED with
// credits untouched.
func (o *Orchestrator) SubmitJob(ctx context.Context, userID string, kind domain.JobKind, payload provider.Payload) (*domain.Job, error) {
	desc, ok := provider.Lookup(kind)
	if !ok {
		return nil, domain.ErrUnsupportedKind
	}
	if err := desc.Validate(payload); err != nil {
		return nil, err
	}
	cost := desc.CreditsFor(payload)

	affordable, balance, err := o.ledger.CheckAffordable(ctx, userID, cost)
	if err != nil {
		return nil, err
	}
	if !affordable {
		return nil, &domain.InsufficientCreditsError{Required: cost, Available: balance}
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		Status:      domain.JobStatusPending,
		CreditsCost: cost,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	o.metrics.JobsSubmitted.WithLabelValues(string(kind)).Inc()

	providerJobID, err := o.provider.Submit(ctx, kind, payload)
	if err != nil {
		o.metrics.ProviderErrors.WithLabelValues(classifyProviderError(err)).Inc()
		if _, ferr := o.jobs.Finalize(ctx, job.ID, domain.JobStatusFailed, "", truncate(err.Error())); ferr != nil {
			o.logger.Error().Err(ferr).Str("job_id", job.ID).Msg("orchestrator: failed to record submission failure")
		}
		o.metrics.JobsSettled.WithLabelValues(string(domain.JobStatusFailed)).Inc()
		o.logger.Warn().Err(err).Str("job_id", job.ID).Str("kind", string(kind)).Msg("orchestrator: provider submission failed")
		return nil, err
	}

	if err := o.jobs.MarkInProgress(ctx, job.ID, providerJobID); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatusInProgress
	job.ProviderJobID = providerJobID
	o.logger.Info().
		Str("job_id", job.ID).
		Str("provider_job_id", providerJobID).
		Str("kind", string(kind)).
		Int64("credits_cost", cost).
		Msg("orchestrator: job submitted")
	return job, nil
}

// CheckStatus reconciles the provider's view of a job with the internal
// record. Only a terminal provider state changes anything: success runs the
// output normalizer and settles, failure finalizes without settlement.
// Concurrent duplicate calls are safe; the consume idempotency key and the
// conditional terminal transition let at most one caller settle.
func (o *Orchestrator) CheckStatus(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if job.Status.Terminal() {
		return job, nil
	}
	if job.ProviderJobID == "" {
		// The provider never accepted this job; nothing to reconcile.
		return job, nil
	}

	raw, err := o.provider.Poll(ctx, job.Kind, job.ProviderJobID)
	if err != nil {
		o.metrics.ProviderErrors.WithLabelValues(classifyProviderError(err)).Inc()
		return nil, err
	}
	if !raw.Terminal() {
		return job, nil
	}

	if raw.TerminalSuccess() {
		return o.settleSuccess(ctx, job, raw)
	}
	return o.settleFailure(ctx, job, failureMessage(raw))
}

// ListJobs returns the user's recent jobs without touching the provider.
func (o *Orchestrator) ListJobs(ctx context.Context, userID string, limit int) ([]domain.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return o.jobs.ListByUser(ctx, userID, limit)
}

// settleSuccess pairs the one permitted credit deduction with the COMPLETED
// transition. Consume goes first because it is idempotent on the job id: if
// the process dies in between, the next poll repeats both steps and the
// ledger absorbs the repeat.
func (o *Orchestrator) settleSuccess(ctx context.Context, job *domain.Job, raw *provider.RawStatus) (*domain.Job, error) {
	result, ok := provider.NormalizeOutput(raw.Output)
	if !ok {
		// Terminal provider success with an unparseable payload settles as
		// FAILED and charges nothing.
		return o.settleFailure(ctx, job, domain.ErrInvalidOutput.Error())
	}

	if _, err := o.ledger.Consume(ctx, job.UserID, job.CreditsCost, domain.ReasonConsumption, job.ID); err != nil {
		if _, insufficient := domain.IsInsufficientCredits(err); insufficient {
			// The balance was spent elsewhere between submission and
			// settlement. The job cannot be charged, so it cannot complete.
			o.logger.Warn().Str("job_id", job.ID).Msg("orchestrator: balance below cost at settlement")
			return o.settleFailure(ctx, job, "insufficient credits at settlement")
		}
		return nil, err
	}

	won, err := o.jobs.Finalize(ctx, job.ID, domain.JobStatusCompleted, result, "")
	if err != nil {
		return nil, err
	}
	if won {
		o.metrics.JobsSettled.WithLabelValues(string(domain.JobStatusCompleted)).Inc()
		o.logger.Info().
			Str("job_id", job.ID).
			Int64("credits_cost", job.CreditsCost).
			Msg("orchestrator: job settled")
	}
	return o.jobs.GetByID(ctx, job.ID)
}

func (o *Orchestrator) settleFailure(ctx context.Context, job *domain.Job, errMsg string) (*domain.Job, error) {
	won, err := o.jobs.Finalize(ctx, job.ID, domain.JobStatusFailed, "", truncate(errMsg))
	if err != nil {
		return nil, err
	}
	if won {
		o.metrics.JobsSettled.WithLabelValues(string(domain.JobStatusFailed)).Inc()
		o.logger.Info().Str("job_id", job.ID).Str("error", truncate(errMsg)).Msg("orchestrator: job failed without charge")
	}
	return o.jobs.GetByID(ctx, job.ID)
}

func failureMessage(raw *provider.RawStatus) string {
	if raw.Error != "" {
		return raw.Error
	}
	return fmt.Sprintf("provider reported %s", raw.Status)
}

func truncate(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	return s[:maxErrorLen]
}

func classifyProviderError(err error) string {
	switch {
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrProviderRejected):
		return "rejected"
	case errors.Is(err, domain.ErrProviderMisconfigured):
		return "misconfigured"
	}
	return "other"
}
