// Package ledger is the sole authority on credits: an append-only
// transaction log plus a materialized balance that must always reconcile
// to the sum of the log.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/domain"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/infra"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/observability"
)

// Service wraps a LedgerStore with validation, id generation and metrics.
type Service struct {
	store   domain.LedgerStore
	logger  infra.Logger
	metrics *observability.Metrics
}

// NewService constructs the ledger service.
func NewService(store domain.LedgerStore, logger infra.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, logger: logger, metrics: metrics}
}

// Balance returns the user's current credit balance.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	return s.store.Balance(ctx, userID)
}

// Transactions returns the user's most recent ledger rows.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.Transactions(ctx, userID, limit)
}

// CheckAffordable reports whether the user could cover amount right now.
// It is read-only and reserves nothing: credits are deducted only upon
// confirmed success, so there is no reservation to release on failure.
func (s *Service) CheckAffordable(ctx context.Context, userID string, amount int64) (bool, int64, error) {
	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	return balance >= amount, balance, nil
}

// Consume deducts amount from the user's balance and appends a transaction.
// Idempotent keyed by relatedJobID: a second call for the same job returns
// the original transaction and leaves the balance alone.
func (s *Service) Consume(ctx context.Context, userID string, amount int64, reason domain.TransactionReason, relatedJobID string) (*domain.CreditTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("consume amount must be positive, got %d", amount)
	}
	if strings.TrimSpace(relatedJobID) == "" {
		return nil, fmt.Errorf("consume requires a related job id")
	}
	tx, err := s.store.Consume(ctx, &domain.CreditTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Amount:       -amount,
		Reason:       reason,
		RelatedJobID: relatedJobID,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CreditsConsumed.Add(float64(amount))
	s.logger.Info().
		Str("user_id", userID).
		Str("job_id", relatedJobID).
		Int64("amount", amount).
		Str("tx_id", tx.ID).
		Msg("ledger: credits consumed")
	return tx, nil
}

// Grant adds credits to the user's balance. Always succeeds for a positive
// amount; when externalRef is supplied the grant is idempotent on it, so
// duplicate delivery of purchase confirmations cannot double-credit.
func (s *Service) Grant(ctx context.Context, userID string, amount int64, reason domain.TransactionReason, externalRef, country string) (*domain.CreditTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	tx, err := s.store.Grant(ctx, &domain.CreditTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Reason:      reason,
		ExternalRef: externalRef,
		Country:     country,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CreditsGranted.Add(float64(amount))
	s.logger.Info().
		Str("user_id", userID).
		Str("reason", string(reason)).
		Str("external_ref", externalRef).
		Int64("amount", amount).
		Str("tx_id", tx.ID).
		Msg("ledger: credits granted")
	return tx, nil
}

// MigrateLegacyBalance seeds the ledger from the pre-ledger balance field.
// Safe to call repeatedly; a no-op once the user has a ledger balance.
func (s *Service) MigrateLegacyBalance(ctx context.Context, userID string) error {
	migrated, err := s.store.SeedLegacy(ctx, userID)
	if err != nil {
		return err
	}
	if migrated {
		s.logger.Info().Str("user_id", userID).Msg("ledger: legacy balance migrated")
	}
	return nil
}
