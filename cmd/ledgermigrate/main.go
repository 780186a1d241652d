// Command ledgermigrate seeds the credit ledger from pre-ledger user
// balances. It is safe to re-run: users whose ledger balance already exists
// are skipped.
package main

import (
	"context"

	"github.com/joho/godotenv"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/adapter/repo"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/infra"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/ledger"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if err := infra.ApplySchema(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	ledgerSvc := ledger.NewService(repo.NewLedgerStore(dbpool), logger, observability.NewMetrics())

	rows, err := dbpool.Query(ctx, `
SELECT u.id
FROM users u
LEFT JOIN credit_balances b ON b.user_id = u.id
WHERE b.user_id IS NULL;
`)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to list unmigrated users")
	}
	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			logger.Fatal().Err(err).Msg("failed to scan user id")
		}
		userIDs = append(userIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to read unmigrated users")
	}

	migrated := 0
	for _, userID := range userIDs {
		if err := ledgerSvc.MigrateLegacyBalance(ctx, userID); err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("migration failed")
			continue
		}
		migrated++
	}
	logger.Info().Int("candidates", len(userIDs)).Int("migrated", migrated).Msg("legacy balance migration finished")
}
