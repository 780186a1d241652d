package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/domain"
)

// LedgerStorePG implements domain.LedgerStore backed by PostgreSQL.
//
// Balance mutation is never a read followed by a write: the decrement is a
// single "UPDATE ... WHERE total_credits >= amount" so concurrent consumers
// cannot drive a balance negative, and idempotency rides on partial unique
// indexes over related_job_id and external_ref.
type LedgerStorePG struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new ledger store backed by PostgreSQL.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStorePG {
	return &LedgerStorePG{pool: pool}
}

const txColumns = `id, user_id, amount, reason, related_job_id, external_ref, country, created_at`

// Balance returns the materialized balance; a user without a ledger row has zero.
func (s *LedgerStorePG) Balance(ctx context.Context, userID string) (int64, error) {
	row := s.pool.QueryRow(ctx, `SELECT total_credits FROM credit_balances WHERE user_id = $1;`, userID)
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// Transactions returns the user's most recent ledger rows.
func (s *LedgerStorePG) Transactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+txColumns+`
FROM credit_transactions
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.CreditTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

// Consume appends the consumption row and decrements the balance in one
// database transaction. The insert hits the consumption unique index first,
// so a duplicate related_job_id returns the prior row before any decrement.
func (s *LedgerStorePG) Consume(ctx context.Context, tx *domain.CreditTransaction) (*domain.CreditTransaction, error) {
	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	row := dbtx.QueryRow(ctx, `
INSERT INTO credit_transactions (id, user_id, amount, reason, related_job_id, external_ref, country)
VALUES ($1, $2, $3, $4, $5, '', '')
ON CONFLICT (related_job_id) WHERE reason = 'consumption' DO NOTHING
RETURNING `+txColumns+`;
`, tx.ID, tx.UserID, tx.Amount, tx.Reason, tx.RelatedJobID)

	inserted, err := scanTransaction(row)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		// Conflict: the job was already settled. Return the prior row unchanged.
		prior := s.pool.QueryRow(ctx, `
SELECT `+txColumns+`
FROM credit_transactions
WHERE related_job_id = $1 AND reason = $2;
`, tx.RelatedJobID, domain.ReasonConsumption)
		return scanTransaction(prior)
	}

	tag, err := dbtx.Exec(ctx, `
UPDATE credit_balances
SET total_credits = total_credits + $2,
    updated_at = NOW()
WHERE user_id = $1
  AND total_credits + $2 >= 0;
`, tx.UserID, tx.Amount)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		balance, berr := s.Balance(ctx, tx.UserID)
		if berr != nil {
			return nil, berr
		}
		return nil, &domain.InsufficientCreditsError{Required: -tx.Amount, Available: balance}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return inserted, nil
}

// Grant appends the grant row and increments the balance, creating the
// balance row on first use. A non-empty external_ref deduplicates repeat
// deliveries of the same purchase confirmation.
func (s *LedgerStorePG) Grant(ctx context.Context, tx *domain.CreditTransaction) (*domain.CreditTransaction, error) {
	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	var row pgx.Row
	if tx.ExternalRef != "" {
		row = dbtx.QueryRow(ctx, `
INSERT INTO credit_transactions (id, user_id, amount, reason, related_job_id, external_ref, country)
VALUES ($1, $2, $3, $4, '', $5, $6)
ON CONFLICT (external_ref) WHERE external_ref <> '' DO NOTHING
RETURNING `+txColumns+`;
`, tx.ID, tx.UserID, tx.Amount, tx.Reason, tx.ExternalRef, tx.Country)
	} else {
		row = dbtx.QueryRow(ctx, `
INSERT INTO credit_transactions (id, user_id, amount, reason, related_job_id, external_ref, country)
VALUES ($1, $2, $3, $4, '', '', $5)
RETURNING `+txColumns+`;
`, tx.ID, tx.UserID, tx.Amount, tx.Reason, tx.Country)
	}

	inserted, err := scanTransaction(row)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		prior := s.pool.QueryRow(ctx, `
SELECT `+txColumns+`
FROM credit_transactions
WHERE external_ref = $1;
`, tx.ExternalRef)
		return scanTransaction(prior)
	}

	if _, err := dbtx.Exec(ctx, `
INSERT INTO credit_balances (user_id, total_credits)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE
SET total_credits = credit_balances.total_credits + EXCLUDED.total_credits,
    updated_at = NOW();
`, tx.UserID, tx.Amount); err != nil {
		return nil, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return inserted, nil
}

// SeedLegacy copies the user's pre-ledger balance into the ledger. The
// balance-row insert guards the whole operation: once a ledger balance
// exists the insert conflicts and nothing is written.
func (s *LedgerStorePG) SeedLegacy(ctx context.Context, userID string) (bool, error) {
	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer dbtx.Rollback(ctx)

	var legacy int64
	if err := dbtx.QueryRow(ctx, `SELECT legacy_credits FROM users WHERE id = $1;`, userID).Scan(&legacy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrNotFound
		}
		return false, err
	}

	tag, err := dbtx.Exec(ctx, `
INSERT INTO credit_balances (user_id, total_credits)
VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING;
`, userID, legacy)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if legacy != 0 {
		if _, err := dbtx.Exec(ctx, `
INSERT INTO credit_transactions (id, user_id, amount, reason, related_job_id, external_ref, country)
VALUES (gen_random_uuid(), $1, $2, $3, '', '', '');
`, userID, legacy, domain.ReasonMigration); err != nil {
			return false, err
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func scanTransaction(row pgx.Row) (*domain.CreditTransaction, error) {
	var tx domain.CreditTransaction
	if err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Amount,
		&tx.Reason,
		&tx.RelatedJobID,
		&tx.ExternalRef,
		&tx.Country,
		&tx.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}
