package domain

import "context"

// JobRepository defines persistence for job entities and their transitions.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Job, error)
	// MarkInProgress stores the provider correlation id and moves the job
	// out of PENDING. It is a no-op once the job has left PENDING.
	MarkInProgress(ctx context.Context, jobID, providerJobID string) error
	// Finalize performs the terminal transition. It commits only if the
	// current status is still non-terminal and reports whether this caller
	// won the transition; losers must re-read the record.
	Finalize(ctx context.Context, jobID string, status JobStatus, resultRef, errMsg string) (bool, error)
}

// LedgerStore is the storage contract beneath the credit ledger. Every
// mutation is atomic: consume is "decrement iff balance >= amount" plus the
// transaction append in one unit, never a read followed by a write.
type LedgerStore interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Transactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error)
	// Consume appends tx and decrements the balance. Idempotent on
	// tx.RelatedJobID: a repeat call returns the previously stored row
	// without touching the balance. Returns InsufficientCreditsError when
	// the balance cannot cover the amount; the balance is left unchanged.
	Consume(ctx context.Context, tx *CreditTransaction) (*CreditTransaction, error)
	// Grant appends tx and increments the balance. Idempotent on
	// tx.ExternalRef when non-empty.
	Grant(ctx context.Context, tx *CreditTransaction) (*CreditTransaction, error)
	// SeedLegacy moves a pre-ledger integer balance into the ledger as a
	// migration transaction. Reports false once a ledger balance already
	// exists for the user, making repeat calls no-ops.
	SeedLegacy(ctx context.Context, userID string) (bool, error)
}
