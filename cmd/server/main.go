// Package main is the entry point for the daily line betting server.
package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"daily-bet-platform/internal/chain"
	"daily-bet-platform/internal/config"
	"daily-bet-platform/internal/http"
	"daily-bet-platform/internal/jobs"
	"daily-bet-platform/internal/metrics"
	"daily-bet-platform/internal/notify"
	"daily-bet-platform/internal/pkg/db"
	"daily-bet-platform/internal/pkg/lock"
	"daily-bet-platform/internal/repository"
	"daily-bet-platform/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := repository.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Real-time notifications are optional: without a broker the
	// platform still works, clients just have to poll.
	var notifier notify.Notifier = notify.Nop{}
	if cfg.Redis.Addr != "" {
		redisClient, err := notify.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		notifier = notify.NewRedisNotifier(redisClient)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis notifier connected")
	} else {
		log.Warn().Msg("No Redis address configured, real-time notifications disabled")
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	lineRepo := repository.NewLineRepository(dbPool.Pool)
	betRepo := repository.NewBetRepository(dbPool.Pool)
	depositRepo := repository.NewDepositRepository(dbPool.Pool)
	withdrawalRepo := repository.NewWithdrawalRepository(dbPool.Pool)

	// Services
	accountLock := lock.NewAccountLock()
	ledger := service.NewLedger(userRepo, accountLock, notifier, cfg.Ledger.LockTimeout)
	settlement := service.NewSettlement(ledger)
	lineStore := service.NewLineStore(lineRepo, betRepo, settlement, notifier)
	betBook := service.NewBetBook(lineRepo, betRepo, ledger, notifier)

	observer := chain.NewEtherscanClient(cfg.Chain.APIURL, cfg.Chain.APIKey, cfg.Chain.LookupTimeout)
	depositVerifier := service.NewDepositVerifier(depositRepo, observer, notifier, cfg.Chain.PlatformAddress)
	withdrawals := service.NewWithdrawals(withdrawalRepo, ledger, ledger)

	// Background cutoff sweep
	scheduler := jobs.NewScheduler(lineStore)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer scheduler.Stop()

	// Metrics and health endpoint
	metricsSrv := metrics.StartServer(cfg.Server.MetricsPort, dbPool.HealthCheck)
	log.Info().Int("port", cfg.Server.MetricsPort).Msg("Metrics server started")

	// API server
	apiServer := http.NewServer(ledger, lineStore, betBook, depositVerifier, withdrawals, cfg.Admin.Token)
	srv := &nethttp.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Metrics server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}
