package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/mckhtech/wedding-plannera-ai/internal/api"
	"github.com/mckhtech/wedding-plannera-ai/internal/auth"
	"github.com/mckhtech/wedding-plannera-ai/internal/config"
	"github.com/mckhtech/wedding-plannera-ai/internal/database"
	"github.com/mckhtech/wedding-plannera-ai/internal/gemini"
	"github.com/mckhtech/wedding-plannera-ai/internal/razorpay"
	"github.com/mckhtech/wedding-plannera-ai/internal/repository"
	"github.com/mckhtech/wedding-plannera-ai/internal/service"
	"github.com/mckhtech/wedding-plannera-ai/internal/storage"
	"github.com/mckhtech/wedding-plannera-ai/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(!cfg.Production())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		userStore       service.UserStore
		templateStore   service.TemplateStore
		tokenStore      service.TokenStore
		generationStore service.GenerationStore
	)
	if cfg.MySQLDSN != "" {
		db, err := database.Connect(cfg)
		if err != nil {
			log.Fatalf("database connect: %v", err)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("database migrate: %v", err)
		}
		userStore = repository.NewUserRepository(db)
		templateStore = repository.NewTemplateRepository(db)
		tokenStore = repository.NewTokenRepository(db)
		generationStore = repository.NewGenerationRepository(db)
	} else {
		// Development fallback: everything lives in process memory.
		mem := repository.NewMemory()
		userStore = mem.Users()
		templateStore = mem.Templates()
		tokenStore = mem.Tokens()
		generationStore = mem.Generations()
		logr.Warn("MYSQL_DSN not set, using the in-memory store")
	}

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	googleVerifier := auth.NewGoogleVerifier(cfg.GoogleClientID)
	gateway := razorpay.NewClient(cfg, logr)
	generator := gemini.NewClient(cfg, store, logr)

	accessService := service.NewAccessService(tokenStore, generationStore)
	paymentService := service.NewPaymentService(cfg, logr, tokenStore, gateway)
	templateService := service.NewTemplateService(cfg, templateStore)
	userService := service.NewUserService(userStore)
	authService := service.NewAuthService(cfg, logr, userStore, issuer, googleVerifier)
	generationService := service.NewGenerationService(
		cfg, logr, accessService, paymentService,
		templateStore, generationStore, tokenStore,
		generator, store,
	)

	if err := templateService.EnsureDefaults(ctx); err != nil {
		log.Fatalf("ensure default templates: %v", err)
	}

	go generationService.Run(ctx)

	server := api.NewServer(
		cfg, logr,
		authService, userService, templateService,
		accessService, paymentService, generationService,
		store,
	)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
	}
}
