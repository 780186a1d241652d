package domain

import "time"

// TransactionReason enumerates why a credit transaction was written.
type TransactionReason string

const (
	ReasonPurchase    TransactionReason = "purchase"
	ReasonConsumption TransactionReason = "consumption"
	ReasonMigration   TransactionReason = "migration"
	ReasonManualGrant TransactionReason = "manual-grant"
	ReasonRefund      TransactionReason = "refund"
)

// CreditTransaction is one immutable row in the append-only ledger.
// Amount is a signed delta: grants positive, consumption negative.
// RelatedJobID is set only for consumption rows and doubles as the
// idempotency key for settlement. ExternalRef deduplicates grants that
// originate from external purchase confirmations.
type CreditTransaction struct {
	ID           string
	UserID       string
	Amount       int64
	Reason       TransactionReason
	RelatedJobID string
	ExternalRef  string
	Country      string
	CreatedAt    time.Time
}

// CreditBalance is the materialized per-user balance. It must always equal
// the sum of that user's transactions; it is never assigned directly, only
// adjusted by the ledger store's atomic operations.
type CreditBalance struct {
	UserID       string
	TotalCredits int64
	UpdatedAt    time.Time
}
