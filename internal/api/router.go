package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opsboard/opsboard/internal/accessrequest"
	"github.com/opsboard/opsboard/internal/api/handler"
	"github.com/opsboard/opsboard/internal/api/middleware"
	"github.com/opsboard/opsboard/internal/audit"
	"github.com/opsboard/opsboard/internal/auth"
	"github.com/opsboard/opsboard/internal/municipality"
	"github.com/opsboard/opsboard/internal/resource"
	"github.com/opsboard/opsboard/internal/roster"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	AuthService    *auth.Service
	Users          auth.Repository
	Resources      resource.Store
	Recorder       audit.Recorder
	AuditLog       audit.Reader
	Municipalities municipality.Repository
	Swapper        roster.Swapper
	AccessRequests accessrequest.Repository
	DBPinger       handler.DBPinger
	Version        string
	CORSOrigins    []string
	LoginRate      float64
	LoginBurst     int
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Logger)

	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)
	r.Method("GET", "/metrics", middleware.MetricsHandler())

	authHandler := handler.NewAuthHandler(deps.AuthService, deps.Users, deps.Recorder)
	registerHandler := handler.NewRegisterHandler(deps.AuthService, deps.AccessRequests, deps.Recorder)

	loginLimiter := middleware.NewLoginLimiter(deps.LoginRate, deps.LoginBurst)
	r.With(loginLimiter.Wrap).Post("/auth/login", authHandler.Login)
	r.Post("/auth/register", registerHandler.Submit)

	anyRole := middleware.RequireRole(auth.RoleAdmin, auth.RoleEditor, auth.RoleViewer)
	canWrite := middleware.RequireRole(auth.RoleAdmin, auth.RoleEditor)
	adminOnly := middleware.RequireRole(auth.RoleAdmin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.AuthService))

		r.With(anyRole).Get("/me", authHandler.Me)
		r.With(anyRole).Post("/auth/logout", authHandler.Logout)

		for _, s := range resource.Schemas() {
			schema := s
			h := handler.NewResourceHandler(&schema, deps.Resources, deps.Recorder)
			r.Route("/api/"+schema.Table, func(r chi.Router) {
				r.With(anyRole).Get("/", h.List)
				r.With(canWrite).Post("/", h.Create)
				r.With(canWrite).Patch("/{id}", h.Update)
				r.With(adminOnly).Delete("/{id}", h.Delete)
			})
		}

		muniHandler := handler.NewMunicipalityHandler(deps.Municipalities, deps.Recorder)
		r.With(anyRole).Get("/api/municipality-status", muniHandler.ListStatus)
		r.With(canWrite).Post("/api/municipality-status", muniHandler.UpsertStatus)
		r.With(anyRole).Get("/api/municipalities/{id}/contacts", muniHandler.ListContacts)
		r.With(canWrite).Put("/api/municipalities/{id}/contacts", muniHandler.ReplaceContacts)

		rosterHandler := handler.NewRosterHandler(deps.Swapper, deps.Recorder)
		r.With(canWrite).Post("/api/roster/swap", rosterHandler.Swap)

		adminHandler := handler.NewAdminHandler(deps.AuthService, deps.Users, deps.AccessRequests, deps.AuditLog, deps.Recorder)
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/users", adminHandler.ListUsers)
			r.Post("/users", adminHandler.CreateUser)
			r.Patch("/users/{id}", adminHandler.UpdateUser)
			r.Get("/access-requests", adminHandler.ListAccessRequests)
			r.Post("/access-requests/{id}/approve", adminHandler.ApproveAccessRequest)
			r.Post("/access-requests/{id}/reject", adminHandler.RejectAccessRequest)
			r.Post("/access-requests/{id}/revoke", adminHandler.RevokeAccessRequest)
			r.Get("/activity", adminHandler.Activity)
			r.Get("/changes", adminHandler.Changes)
		})
	})

	return r
}
