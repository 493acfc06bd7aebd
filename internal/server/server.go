package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"chorebank/internal/auth"
	"chorebank/internal/calendar"
	"chorebank/internal/chore"
	"chorebank/internal/handler"
	"chorebank/internal/ledger"
	"chorebank/internal/middleware"
	"chorebank/internal/store"
	ws "chorebank/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	authH         *handler.AuthHandler
	familyMemberH *handler.FamilyMemberHandler
	templateH     *handler.TemplateHandler
	scheduleH     *handler.ScheduleHandler
	instanceH     *handler.InstanceHandler
	rewardH       *handler.RewardHandler
	ledgerH       *handler.LedgerHandler
	adminH        *handler.AdminHandler
	familyStore   *store.FamilyStore
	generator     *chore.Generator
	lifecycle     *chore.Lifecycle
	cleaner       *chore.Cleaner
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(db *sql.DB, calendarURL string, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	familyStore := store.NewFamilyStore(db)
	templateStore := store.NewTemplateStore(db)
	scheduleStore := store.NewScheduleStore(db)
	instanceStore := store.NewInstanceStore(db)
	ledgerStore := store.NewLedgerStore(db)
	rewardStore := store.NewRewardStore(db)
	leaseStore := store.NewLeaseStore(db)

	ledgerSvc := ledger.NewService(ledgerStore, logger)
	streaks := chore.NewStreakCalculator(instanceStore)
	lifecycle := chore.NewLifecycle(instanceStore, scheduleStore, templateStore, streaks, ledgerStore, logger.With("component", "lifecycle"))
	generator := chore.NewGenerator(scheduleStore, templateStore, instanceStore, leaseStore, logger.With("component", "generator"))
	cleaner := chore.NewCleaner(scheduleStore, instanceStore, logger.With("component", "cleanup"))
	calendarClient := calendar.NewClient(calendarURL)

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(familyStore, logger.With("component", "auth")),
		familyMemberH: handler.NewFamilyMemberHandler(familyStore, hub, logger.With("component", "family_member")),
		templateH:     handler.NewTemplateHandler(templateStore, hub, logger.With("component", "template")),
		scheduleH:     handler.NewScheduleHandler(scheduleStore, templateStore, familyStore, hub, logger.With("component", "schedule")),
		instanceH:     handler.NewInstanceHandler(instanceStore, templateStore, familyStore, lifecycle, generator, calendarClient, hub, logger.With("component", "instance")),
		rewardH:       handler.NewRewardHandler(rewardStore, familyStore, ledgerSvc, hub, logger.With("component", "reward")),
		ledgerH:       handler.NewLedgerHandler(ledgerSvc, familyStore, instanceStore, hub, logger.With("component", "ledger")),
		adminH:        handler.NewAdminHandler(generator, lifecycle, cleaner, hub, logger.With("component", "admin")),
		familyStore:   familyStore,
		generator:     generator,
		lifecycle:     lifecycle,
		cleaner:       cleaner,
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}
}

// FamilyStore returns the family store for cleanup tasks.
func (s *Server) FamilyStore() *store.FamilyStore {
	return s.familyStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Generator returns the instance generator for scheduled runs.
func (s *Server) Generator() *chore.Generator {
	return s.generator
}

// Lifecycle returns the lifecycle service for scheduled sweeps.
func (s *Server) Lifecycle() *chore.Lifecycle {
	return s.lifecycle
}

// Cleaner returns the duplicate cleaner for scheduled runs.
func (s *Server) Cleaner() *chore.Cleaner {
	return s.cleaner
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /api/families/{id}/members", s.authH.LoginMembers)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.familyStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	admin := middleware.RequireAdmin

	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Family member routes
	mux.HandleFunc("GET /api/members", s.familyMemberH.List)
	mux.Handle("POST /api/members", admin(http.HandlerFunc(s.familyMemberH.Create)))
	mux.Handle("PUT /api/members/{id}", admin(http.HandlerFunc(s.familyMemberH.Update)))
	mux.Handle("DELETE /api/members/{id}", admin(http.HandlerFunc(s.familyMemberH.Delete)))
	mux.Handle("POST /api/members/{id}/pin", admin(http.HandlerFunc(s.familyMemberH.SetPIN)))
	mux.Handle("DELETE /api/members/{id}/pin", admin(http.HandlerFunc(s.familyMemberH.ClearPIN)))

	// Chore template routes
	mux.HandleFunc("GET /api/templates", s.templateH.List)
	mux.HandleFunc("GET /api/templates/{id}", s.templateH.Get)
	mux.Handle("POST /api/templates", admin(http.HandlerFunc(s.templateH.Create)))
	mux.Handle("PUT /api/templates/{id}", admin(http.HandlerFunc(s.templateH.Update)))
	mux.Handle("POST /api/templates/{id}/archive", admin(http.HandlerFunc(s.templateH.Archive)))
	mux.Handle("POST /api/templates/{id}/unarchive", admin(http.HandlerFunc(s.templateH.Unarchive)))

	// Schedule routes
	mux.HandleFunc("GET /api/schedules", s.scheduleH.List)
	mux.HandleFunc("GET /api/schedules/{id}", s.scheduleH.Get)
	mux.Handle("POST /api/schedules", admin(http.HandlerFunc(s.scheduleH.Create)))
	mux.Handle("PUT /api/schedules/{id}", admin(http.HandlerFunc(s.scheduleH.Update)))
	mux.Handle("POST /api/schedules/{id}/activate", admin(http.HandlerFunc(s.scheduleH.Activate)))
	mux.Handle("POST /api/schedules/{id}/deactivate", admin(http.HandlerFunc(s.scheduleH.Deactivate)))

	// Instance routes. Completing is open to everyone; approving, rejecting,
	// and tipping move money and are admin-only.
	mux.HandleFunc("GET /api/instances", s.instanceH.List)
	mux.HandleFunc("GET /api/instances/{id}", s.instanceH.Get)
	mux.HandleFunc("POST /api/instances", s.instanceH.CreateAdhoc)
	mux.HandleFunc("POST /api/instances/{id}/complete", s.instanceH.Complete)
	mux.Handle("POST /api/instances/{id}/approve", admin(http.HandlerFunc(s.instanceH.Approve)))
	mux.Handle("POST /api/instances/{id}/reject", admin(http.HandlerFunc(s.instanceH.Reject)))
	mux.Handle("POST /api/instances/{id}/tip", admin(http.HandlerFunc(s.ledgerH.Tip)))
	mux.HandleFunc("GET /api/instances/{id}/completions", s.instanceH.ListCompletions)
	mux.Handle("POST /api/instances/{id}/completions/{completion_id}/approve", admin(http.HandlerFunc(s.instanceH.ApproveCompletion)))
	mux.Handle("POST /api/instances/{id}/completions/{completion_id}/reject", admin(http.HandlerFunc(s.instanceH.RejectCompletion)))

	// Reward routes
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.Handle("POST /api/rewards", admin(http.HandlerFunc(s.rewardH.Create)))
	mux.Handle("PUT /api/rewards/{id}", admin(http.HandlerFunc(s.rewardH.Update)))
	mux.Handle("DELETE /api/rewards/{id}", admin(http.HandlerFunc(s.rewardH.Delete)))
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rewardH.Redeem)
	mux.Handle("POST /api/rewards/{id}/refund", admin(http.HandlerFunc(s.rewardH.Refund)))

	// Ledger routes
	mux.HandleFunc("GET /api/balances", s.ledgerH.Balances)
	mux.HandleFunc("GET /api/members/{id}/balance", s.ledgerH.Balance)
	mux.HandleFunc("GET /api/members/{id}/transactions", s.ledgerH.History)
	mux.HandleFunc("GET /api/members/{id}/stats", s.ledgerH.Stats)
	mux.Handle("POST /api/members/{id}/adjust", admin(http.HandlerFunc(s.ledgerH.Adjust)))

	// Scheduled jobs, runnable on demand
	mux.Handle("POST /api/admin/generate", admin(http.HandlerFunc(s.adminH.Generate)))
	mux.Handle("POST /api/admin/sweep", admin(http.HandlerFunc(s.adminH.Sweep)))
	mux.Handle("POST /api/admin/cleanup", admin(http.HandlerFunc(s.adminH.Cleanup)))

	// WebSocket for real-time sync
	mux.Handle("GET /ws", ws.Handle(s.hub, func(r *http.Request) int64 {
		return auth.FamilyID(r.Context())
	}))
}
