package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/adapter/repo"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/domain"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/observability"
)

func newTestService() (*Service, *repo.MemoryLedgerStore) {
	store := repo.NewMemoryLedgerStore()
	return NewService(store, zerolog.Nop(), observability.NewMetrics()), store
}

func TestBalanceAlwaysEqualsTransactionSum(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "u1", 100, domain.ReasonPurchase, "ext-1", ""); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := svc.Consume(ctx, "u1", 30, domain.ReasonConsumption, "job-1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := svc.Grant(ctx, "u1", 25, domain.ReasonManualGrant, "", ""); err != nil {
		t.Fatalf("grant: %v", err)
	}

	balance, err := svc.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 95 {
		t.Fatalf("balance = %d, want 95", balance)
	}
	if sum := store.TransactionSum("u1"); sum != balance {
		t.Fatalf("balance %d != transaction sum %d", balance, sum)
	}
}

func TestConsumeIsIdempotentPerJob(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "u1", 50, domain.ReasonPurchase, "ext-1", ""); err != nil {
		t.Fatalf("grant: %v", err)
	}
	first, err := svc.Consume(ctx, "u1", 20, domain.ReasonConsumption, "job-1")
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	second, err := svc.Consume(ctx, "u1", 20, domain.ReasonConsumption, "job-1")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("repeat consume created a new transaction: %s vs %s", first.ID, second.ID)
	}
	balance, _ := svc.Balance(ctx, "u1")
	if balance != 30 {
		t.Fatalf("balance = %d, want 30 (single deduction)", balance)
	}
	if sum := store.TransactionSum("u1"); sum != balance {
		t.Fatalf("balance %d != transaction sum %d", balance, sum)
	}
}

func TestConsumeInsufficientLeavesBalanceUnchanged(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "u1", 10, domain.ReasonPurchase, "ext-1", ""); err != nil {
		t.Fatalf("grant: %v", err)
	}
	_, err := svc.Consume(ctx, "u1", 15, domain.ReasonConsumption, "job-1")
	ice, ok := domain.IsInsufficientCredits(err)
	if !ok {
		t.Fatalf("err = %v, want InsufficientCreditsError", err)
	}
	if ice.Required != 15 || ice.Available != 10 {
		t.Fatalf("required/available = %d/%d, want 15/10", ice.Required, ice.Available)
	}
	balance, _ := svc.Balance(ctx, "u1")
	if balance != 10 {
		t.Fatalf("balance = %d, want 10", balance)
	}
	if sum := store.TransactionSum("u1"); sum != balance {
		t.Fatalf("balance %d != transaction sum %d", balance, sum)
	}
}

func TestConcurrentConsumersNeverOverdraw(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "u1", 50, domain.ReasonPurchase, "ext-1", ""); err != nil {
		t.Fatalf("grant: %v", err)
	}

	var wg sync.WaitGroup
	jobIDs := []string{"job-a", "job-b", "job-c", "job-d", "job-e", "job-f"}
	for _, jobID := range jobIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			// 6 consumers of 10 against a balance of 50: one must lose.
			_, _ = svc.Consume(ctx, "u1", 10, domain.ReasonConsumption, id)
		}(jobID)
	}
	wg.Wait()

	balance, _ := svc.Balance(ctx, "u1")
	if balance < 0 {
		t.Fatalf("balance went negative: %d", balance)
	}
	if balance != 0 {
		t.Fatalf("balance = %d, want 0 (five winners)", balance)
	}
	if sum := store.TransactionSum("u1"); sum != balance {
		t.Fatalf("balance %d != transaction sum %d", balance, sum)
	}
}

func TestGrantDeduplicatesOnExternalRef(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	first, err := svc.Grant(ctx, "u1", 100, domain.ReasonPurchase, "stripe-evt-1", "")
	if err != nil {
		t.Fatalf("first grant: %v", err)
	}
	second, err := svc.Grant(ctx, "u1", 100, domain.ReasonPurchase, "stripe-evt-1", "")
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("duplicate delivery created a new transaction")
	}
	balance, _ := svc.Balance(ctx, "u1")
	if balance != 100 {
		t.Fatalf("balance = %d, want 100", balance)
	}
	if sum := store.TransactionSum("u1"); sum != balance {
		t.Fatalf("balance %d != transaction sum %d", balance, sum)
	}
}

func TestRejectsNonPositiveAmounts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Consume(ctx, "u1", 0, domain.ReasonConsumption, "job-1"); err == nil {
		t.Fatalf("expected error for zero consume")
	}
	if _, err := svc.Grant(ctx, "u1", -5, domain.ReasonPurchase, "", ""); err == nil {
		t.Fatalf("expected error for negative grant")
	}
}

func TestMigrateLegacyBalanceIsOneShot(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	store.SetLegacyBalance("u1", 40)

	if err := svc.MigrateLegacyBalance(ctx, "u1"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	balance, _ := svc.Balance(ctx, "u1")
	if balance != 40 {
		t.Fatalf("balance = %d, want 40", balance)
	}

	// Spend some, migrate again: the repeat must be a no-op.
	if _, err := svc.Consume(ctx, "u1", 10, domain.ReasonConsumption, "job-1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := svc.MigrateLegacyBalance(ctx, "u1"); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	balance, _ = svc.Balance(ctx, "u1")
	if balance != 30 {
		t.Fatalf("balance = %d, want 30 after no-op migration", balance)
	}
	if sum := store.TransactionSum("u1"); sum != balance {
		t.Fatalf("balance %d != transaction sum %d", balance, sum)
	}
}

func TestMigrateUnknownUser(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.MigrateLegacyBalance(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
