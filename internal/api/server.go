package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mckhtech/wedding-plannera-ai/internal/config"
	"github.com/mckhtech/wedding-plannera-ai/internal/service"
	"github.com/mckhtech/wedding-plannera-ai/internal/storage"
)

// Server is the single HTTP surface: public API, file serving and the
// basic-auth admin endpoints share one router.
type Server struct {
	cfg         config.Config
	log         *slog.Logger
	auth        *service.AuthService
	users       *service.UserService
	templates   *service.TemplateService
	access      *service.AccessService
	payments    *service.PaymentService
	generations *service.GenerationService
	files       storage.Storage
	router      *chi.Mux
}

func NewServer(
	cfg config.Config,
	log *slog.Logger,
	auth *service.AuthService,
	users *service.UserService,
	templates *service.TemplateService,
	access *service.AccessService,
	payments *service.PaymentService,
	generations *service.GenerationService,
	files storage.Storage,
) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		cfg:         cfg,
		log:         log,
		auth:        auth,
		users:       users,
		templates:   templates,
		access:      access,
		payments:    payments,
		generations: generations,
		files:       files,
		router:      r,
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/files/*", s.handleServeFile)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", s.handleRegister)
		api.Post("/auth/login", s.handleLogin)
		api.Post("/auth/google", s.handleGoogleLogin)

		api.Group(func(authed chi.Router) {
			authed.Use(s.requireUser)
			authed.Get("/auth/me", s.handleMe)
			authed.Put("/auth/me", s.handleUpdateMe)

			authed.Get("/templates", s.handleListTemplates)
			authed.Get("/templates/{id}", s.handleGetTemplate)
			authed.Get("/templates/{id}/access", s.handleCheckAccess)

			authed.Post("/payments/orders", s.handleCreateOrder)
			authed.Post("/payments/verify", s.handleVerifyPayment)
			authed.Get("/payments/tokens", s.handleListTokens)

			authed.Post("/generations", s.handleStartGeneration)
			authed.Get("/generations", s.handleListGenerations)
			authed.Get("/generations/{id}", s.handleGetGeneration)
			authed.Get("/generations/{id}/status", s.handleGenerationStatus)
			authed.Delete("/generations/{id}", s.handleDeleteGeneration)
		})
	})

	r.Group(func(admin chi.Router) {
		admin.Use(s.basicAuthMiddleware())
		admin.Get("/admin/users", s.handleAdminListUsers)
		admin.Post("/admin/users/{id}/credits", s.handleAdminGrantCredits)
		admin.Post("/admin/users/{id}/subscription", s.handleAdminSetSubscription)
		admin.Get("/admin/templates", s.handleAdminListTemplates)
		admin.Post("/admin/templates", s.handleAdminCreateTemplate)
		admin.Put("/admin/templates/{id}", s.handleAdminUpdateTemplate)
		admin.Delete("/admin/templates/{id}", s.handleAdminArchiveTemplate)
		admin.Post("/admin/tokens/{id}/refund", s.handleAdminRefundToken)
	})

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("http server listening", "addr", s.cfg.ListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "*")
	data, err := s.files.Fetch(r.Context(), ref)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", storage.ContentTypeForRef(ref))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}
