package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/jmoiron/sqlx"
	"github.com/medshift/staffing-platform/internal/audit"
	"github.com/medshift/staffing-platform/internal/authz"
	"github.com/medshift/staffing-platform/internal/facility"
	"github.com/medshift/staffing-platform/internal/session"
	"github.com/medshift/staffing-platform/internal/transport/middleware"
	"github.com/medshift/staffing-platform/internal/transport/swagger"
)

func RegisterAllRoutes(
	router *chi.Mux,
	db *sqlx.DB,
	authorizer *middleware.Authorizer,
	sessionHandler *session.Handler,
	facilityHandler *facility.Handler,
	auditHandler *audit.Handler,
	allowedOrigins string,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check routes
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Session routes. Restore and logout resolve their own token so
		// they stay outside the authenticated group.
		if sessionHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", sessionHandler.Login)
				sr.Post("/restore-session", sessionHandler.Restore)
				sr.Post("/logout", sessionHandler.Logout)
			})
		}

		if authorizer != nil {
			// Protected routes that require an authenticated session
			r.Group(func(pr chi.Router) {
				pr.Use(authorizer.Authenticate)

				if sessionHandler != nil {
					// Impersonation permission is enforced by the session
					// service so a denied attempt can be audited.
					pr.Post("/impersonate/start", sessionHandler.StartImpersonation)
					pr.Post("/impersonate/stop", sessionHandler.StopImpersonation)
					pr.Get("/session-status", sessionHandler.Status)
				}

				if facilityHandler != nil {
					pr.Get("/facilities", facilityHandler.List)

					pr.Group(func(fr chi.Router) {
						fr.Use(authorizer.RequireFacilityAccess("facilityID"))
						fr.Get("/facilities/{facilityID}/staff", facilityHandler.ListStaff)
					})
				}

				if auditHandler != nil {
					pr.Group(func(ar chi.Router) {
						ar.Use(authorizer.RequirePermission(authz.PermAuditView))
						ar.Get("/audit-logs", auditHandler.List)
					})
				}
			})
		}
	})
}
