package handlers

import (
	"net/http"
	"strings"

	"automatch/internal/config"
	"automatch/internal/metrics"
	"automatch/internal/middleware"
	"automatch/internal/models"
	"automatch/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Handler struct {
	cfg          config.Config
	leads        LeadService
	unlocks      UnlockService
	ledger       CreditLedger
	provisioning ProvisioningService
	purchases    PurchaseService
	authn        AuthService
	audit        AuditStore
	dealers      DealerStore
	admins       AdminStore
	hub          *websocket.Hub
	log          *zap.Logger
}

func New(cfg config.Config, leads LeadService, unlocks UnlockService, ledger CreditLedger, provisioning ProvisioningService, purchases PurchaseService, authn AuthService, audit AuditStore, dealers DealerStore, admins AdminStore, hub *websocket.Hub, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		cfg:          cfg,
		leads:        leads,
		unlocks:      unlocks,
		ledger:       ledger,
		provisioning: provisioning,
		purchases:    purchases,
		authn:        authn,
		audit:        audit,
		dealers:      dealers,
		admins:       admins,
		hub:          hub,
		log:          log,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestLogger(h.log))
	router.Use(chimiddleware.Recoverer)
	router.Use(metrics.Middleware)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", metrics.Handler())

	router.Post("/leads", h.SubmitLead)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/dealer/login", h.DealerLogin)
		r.Post("/admin/login", h.AdminLogin)
	})
	router.Post("/payments/webhook", h.PaymentWebhook)
	router.Get("/ws/balances", h.WSBalances)

	router.Route("/dealer", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireDealer(h.dealers))
		r.Get("/me", h.DealerMe)
		r.Get("/balance", h.DealerBalance)
		r.Get("/ledger", h.DealerLedger)
		r.Get("/leads", h.DealerLeads)
		r.Post("/leads/{id}/unlock", h.UnlockLead)
		r.Get("/packages", h.Packages)
		r.Get("/purchases", h.PurchaseHistory)
		r.Post("/purchases", h.PurchaseCredits)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		anyAdmin := middleware.RequireAdmin(h.admins)
		moderator := middleware.RequireAdmin(h.admins, models.RoleModerator)
		superAdmin := middleware.RequireAdmin(h.admins, models.RoleSuperAdmin)

		r.With(anyAdmin).Get("/dealers", h.AdminListDealers)
		r.With(moderator).Post("/dealers", h.AdminCreateDealer)
		r.With(anyAdmin).Get("/dealers/{id}", h.AdminGetDealer)
		r.With(moderator).Put("/dealers/{id}", h.AdminUpdateDealer)
		r.With(moderator).Post("/dealers/{id}/toggle-status", h.AdminToggleDealer)
		r.With(moderator).Post("/dealers/{id}/credits", h.AdminAdjustCredits)
		r.With(anyAdmin).Get("/dealers/{id}/ledger", h.AdminDealerLedger)

		r.With(anyAdmin).Get("/leads", h.AdminListLeads)
		r.With(moderator).Delete("/leads/{id}", h.AdminDeleteLead)

		r.With(anyAdmin).Get("/ledger/reference/{ref}", h.AdminEntriesByReference)
		r.With(anyAdmin).Get("/reconcile", h.AdminReconcile)
		r.With(anyAdmin).Get("/stats", h.AdminStats)
		r.With(anyAdmin).Get("/audit", h.AdminAuditLogs)

		r.With(superAdmin).Get("/admins", h.AdminListAdmins)
		r.With(superAdmin).Post("/admins", h.AdminCreateAdmin)
		r.With(superAdmin).Put("/admins/{id}", h.AdminUpdateAdmin)
		r.With(superAdmin).Post("/admins/{id}/toggle-status", h.AdminToggleAdmin)
	})
	return router
}
