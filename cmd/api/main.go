package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/adapter/repo"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/http/handlers"
	httpapi "github.com/hamiltonmatematica/ensaios-ai-sub001/internal/http/httpapi"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/infra"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/infra/geoip"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/ledger"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/observability"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/provider"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/service"
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

	geoResolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}

	metrics := observability.NewMetrics()
	jobs := repo.NewJobRepository(dbpool)
	ledgerStore := repo.NewLedgerStore(dbpool)
	ledgerSvc := ledger.NewService(ledgerStore, logger, metrics)

	providerClient := provider.NewClient(provider.Options{
		APIKey:         cfg.ProviderAPIKey,
		Endpoints:      cfg.ProviderEndpoints(provider.EndpointKeys()),
		Logger:         &logger,
		RequestTimeout: cfg.ProviderTimeout,
	})

	orchestrator := service.NewOrchestrator(jobs, ledgerSvc, providerClient, logger, metrics)

	app := &handlers.App{
		Orchestrator: orchestrator,
		Ledger:       ledgerSvc,
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Geo:          geoResolver,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
