package repo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/domain"
)

// MemoryJobRepository is a mutex-guarded in-memory domain.JobRepository.
// It backs tests and local development without a database while keeping the
// same conditional-transition semantics as the PostgreSQL store.
type MemoryJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

// NewMemoryJobRepository creates an empty in-memory job repository.
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[string]*domain.Job)}
}

func (r *MemoryJobRepository) Create(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return errors.New("job id already exists")
	}
	now := time.Now()
	stored := *job
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.jobs[job.ID] = &stored
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

func (r *MemoryJobRepository) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *MemoryJobRepository) ListByUser(_ context.Context, userID string, limit int) ([]domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []domain.Job
	for _, job := range r.jobs {
		if job.UserID == userID {
			jobs = append(jobs, *job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *MemoryJobRepository) MarkInProgress(_ context.Context, jobID, providerJobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status != domain.JobStatusPending {
		return nil
	}
	job.Status = domain.JobStatusInProgress
	job.ProviderJobID = providerJobID
	job.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryJobRepository) Finalize(_ context.Context, jobID string, status domain.JobStatus, resultRef, errMsg string) (bool, error) {
	if !status.Terminal() {
		return false, errors.New("finalize requires a terminal status")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return false, nil
	}
	job.Status = status
	if resultRef != "" {
		job.ResultRef = resultRef
	}
	if errMsg != "" {
		job.ErrorMessage = errMsg
	}
	job.UpdatedAt = time.Now()
	return true, nil
}

// MemoryLedgerStore is an in-memory domain.LedgerStore. A single mutex
// serializes every mutation, which is the in-process equivalent of the
// PostgreSQL store's atomic conditional updates.
type MemoryLedgerStore struct {
	mu       sync.Mutex
	balances map[string]int64
	txs      []domain.CreditTransaction
	legacy   map[string]int64
}

// NewMemoryLedgerStore creates an empty in-memory ledger store.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		balances: make(map[string]int64),
		legacy:   make(map[string]int64),
	}
}

// SetLegacyBalance seeds a pre-ledger balance, as the legacy users table would.
func (s *MemoryLedgerStore) SetLegacyBalance(userID string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy[userID] = amount
}

func (s *MemoryLedgerStore) Balance(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *MemoryLedgerStore) Transactions(_ context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var txs []domain.CreditTransaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].UserID == userID {
			txs = append(txs, s.txs[i])
			if limit > 0 && len(txs) >= limit {
				break
			}
		}
	}
	return txs, nil
}

func (s *MemoryLedgerStore) Consume(_ context.Context, tx *domain.CreditTransaction) (*domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.txs {
		if s.txs[i].Reason == domain.ReasonConsumption && s.txs[i].RelatedJobID == tx.RelatedJobID {
			prior := s.txs[i]
			return &prior, nil
		}
	}
	amount := -tx.Amount
	if s.balances[tx.UserID] < amount {
		return nil, &domain.InsufficientCreditsError{Required: amount, Available: s.balances[tx.UserID]}
	}
	s.balances[tx.UserID] -= amount
	stored := *tx
	stored.CreatedAt = time.Now()
	s.txs = append(s.txs, stored)
	return &stored, nil
}

func (s *MemoryLedgerStore) Grant(_ context.Context, tx *domain.CreditTransaction) (*domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ExternalRef != "" {
		for i := range s.txs {
			if s.txs[i].ExternalRef == tx.ExternalRef {
				prior := s.txs[i]
				return &prior, nil
			}
		}
	}
	s.balances[tx.UserID] += tx.Amount
	stored := *tx
	stored.CreatedAt = time.Now()
	s.txs = append(s.txs, stored)
	return &stored, nil
}

func (s *MemoryLedgerStore) SeedLegacy(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.balances[userID]; exists {
		return false, nil
	}
	legacy, ok := s.legacy[userID]
	if !ok {
		return false, domain.ErrNotFound
	}
	s.balances[userID] = legacy
	if legacy != 0 {
		s.txs = append(s.txs, domain.CreditTransaction{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    legacy,
			Reason:    domain.ReasonMigration,
			CreatedAt: time.Now(),
		})
	}
	return true, nil
}

// TransactionSum adds up every transaction for the user; tests compare it
// against the materialized balance.
func (s *MemoryLedgerStore) TransactionSum(userID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for i := range s.txs {
		if s.txs[i].UserID == userID {
			sum += s.txs[i].Amount
		}
	}
	return sum
}

var (
	_ domain.JobRepository = (*MemoryJobRepository)(nil)
	_ domain.LedgerStore   = (*MemoryLedgerStore)(nil)
)
