// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tg2fa-relay/internal/config"
	"tg2fa-relay/internal/domain/ports/adapter"
	"tg2fa-relay/internal/domain/ports/repository"
	"tg2fa-relay/internal/infra/adapters/backend"
	tele "tg2fa-relay/internal/infra/adapters/telegram"
	"tg2fa-relay/internal/infra/api"
	pg "tg2fa-relay/internal/infra/db/postgres"
	"tg2fa-relay/internal/infra/i18n"
	"tg2fa-relay/internal/infra/logging"
	"tg2fa-relay/internal/infra/metrics"
	red "tg2fa-relay/internal/infra/redis"
	"tg2fa-relay/internal/infra/sched"
	"tg2fa-relay/internal/infra/security"
	"tg2fa-relay/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file (optional)")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted ids)")
	mintTTL := flag.Duration("mint-token", 0, "print an admin API token valid for this long and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *mintTTL > 0 {
		if cfg.Admin.APIKey == "" {
			log.Fatal("admin.api_key is not set (ADMIN_API_KEY)")
		}
		tok, err := api.MintToken(cfg.Admin.APIKey, *mintTTL)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("backend", cfg.Backend.BaseURL).Str("bot_mode", cfg.Bot.Mode).Msg("starting 2fa relay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	translator, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Postgres (optional journal) ----
	var journal repository.JournalRepository
	if cfg.Database.URL != "" {
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		repo := pg.NewJournalRepo(pool)
		if cfg.Database.EncryptionKey != "" {
			sealer, err := security.NewEncryptionService(cfg.Database.EncryptionKey)
			if err != nil {
				logger.Fatal().Err(err).Msg("journal encryption key")
			}
			repo.WithSealer(sealer)
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema")
		}
		journal = repo
	}

	// ---- Redis (optional rate limiting) ----
	var limiter tele.RateLimiter
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer rc.Close()
		limiter = red.NewRateLimiter(rc)
	}

	// ---- Backend ----
	backendClient, err := backend.NewClient(cfg.Backend, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("backend client")
	}

	// ---- Telegram ----
	var (
		bot     adapter.TelegramBotAdapter
		realBot *tele.RealTelegramBotAdapter
	)
	switch cfg.Bot.Mode {
	case "noop":
		bot = tele.NewNoopBotAdapter(logger)
	default:
		realBot, err = tele.NewRealTelegramBotAdapter(cfg.Bot, translator, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		bot = realBot
	}

	// ---- Use cases ----
	bindingUC := usecase.NewBindingUseCase(backendClient, bot, journal, translator, logger, cfg.Runtime.Dev)
	deliveryUC := usecase.NewDeliveryUseCase(backendClient, bot, journal, translator, logger)
	decisionUC := usecase.NewDecisionUseCase(backendClient, bot, journal, translator, logger)

	var wg sync.WaitGroup

	// ---- Poller ----
	poller := sched.NewApprovalPoller(cfg.Poller, backendClient, deliveryUC, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = poller.Run(ctx)
	}()

	if realBot != nil {
		realBot.SetUseCases(bindingUC, decisionUC)
		if limiter != nil {
			realBot.SetRateLimiter(limiter, cfg.RateLimit)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := realBot.StartPolling(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
				stop()
			}
		}()
	}

	// ---- Admin HTTP ----
	var admin *api.Server
	if cfg.Admin.Port > 0 {
		admin = api.NewServer(cfg.Admin.Port, cfg.Admin.APIKey, journal, logger)
		go func() {
			if err := admin.Start(); err != nil {
				logger.Error().Err(err).Msg("admin server error")
			}
		}()
	}

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("admin server shutdown")
		}
		cancel()
	}
	wg.Wait()
	logger.Info().Msg("bye")
}
