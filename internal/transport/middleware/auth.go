package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/medshift/staffing-platform/internal"
	"github.com/medshift/staffing-platform/internal/audit"
	"github.com/medshift/staffing-platform/internal/authz"
	"github.com/medshift/staffing-platform/internal/session"
)

// Authorizer is the per-request authorization gate. It resolves the session
// into an effective identity, permissions and facility scope, and attaches
// the result to the request context. It is the only place identity is
// derived for business handlers; the checks themselves never mutate
// session state.
type Authorizer struct {
	sessions session.ServiceAPI
	cache    *authz.ResolverCache
	recorder audit.RecorderAPI
	logger   *slog.Logger
}

func NewAuthorizer(sessions session.ServiceAPI, cache *authz.ResolverCache, recorder audit.RecorderAPI, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		sessions: sessions,
		cache:    cache,
		recorder: recorder,
		logger:   logger,
	}
}

// Authenticate resolves the bearer token into an AuthContext. No token,
// an unknown token, or an expired session all end the request with 401.
func (a *Authorizer) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			writeAppError(w, internal.ErrUnauthenticated)
			return
		}

		sess, err := a.sessions.Get(token)
		if err != nil {
			a.writeResolved(w, err)
			return
		}

		effective, err := a.sessions.EffectiveUser(sess)
		if err != nil {
			a.writeResolved(w, err)
			return
		}

		authCtx := &authz.AuthContext{
			SessionID:          sess.ID,
			OriginalUserID:     sess.OriginalUserID,
			ImpersonatedUserID: sess.ImpersonatedUserID,
			EffectiveUser:      effective,
			Permissions:        a.cache.Resolve(effective),
			Scope:              authz.ScopeFor(effective),
		}

		ctx := authz.WithAuthContext(r.Context(), authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a route group on one permission from the catalog.
// Denials are audited: an impersonated actor probing a forbidden surface is
// exactly what the trail exists to show.
func (a *Authorizer) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, ok := authz.FromContext(r.Context())
			if !ok || authCtx == nil {
				writeAppError(w, internal.ErrUnauthenticated)
				return
			}

			if !authCtx.Permissions.Has(permission) {
				a.logger.WarnContext(r.Context(), "access denied: insufficient permissions",
					"user_id", authCtx.EffectiveUser.ID,
					"required_permission", permission,
					"is_impersonated", authCtx.IsImpersonating())
				a.recorder.Record(r.Context(), authCtx.AuditActor(),
					"access.denied", "permission", permission)
				writeAppError(w, internal.ErrPermissionDenied)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireFacilityAccess validates the facility id named by the URL parameter
// against the request's facility scope.
func (a *Authorizer) RequireFacilityAccess(urlParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, ok := authz.FromContext(r.Context())
			if !ok || authCtx == nil {
				writeAppError(w, internal.ErrUnauthenticated)
				return
			}

			raw := chi.URLParam(r, urlParam)
			facilityID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeAppError(w, internal.NewValidationError("invalid facility id", internal.ErrCodeValidationFailed))
				return
			}

			if !authCtx.Scope.Allows(facilityID) {
				a.logger.WarnContext(r.Context(), "access denied: facility out of scope",
					"user_id", authCtx.EffectiveUser.ID,
					"facility_id", facilityID,
					"is_impersonated", authCtx.IsImpersonating())
				a.recorder.Record(r.Context(), authCtx.AuditActor(),
					"access.denied", "facility", raw)
				writeAppError(w, internal.ErrFacilityOutOfScope)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeResolved maps session/identity resolution failures onto the error
// taxonomy; anything unrecognized is a 500.
func (a *Authorizer) writeResolved(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		writeAppError(w, appErr)
		return
	}
	a.logger.Error("authorization failed", "error", err)
	writeAppError(w, internal.NewInternalError("internal server error", err))
}

func writeAppError(w http.ResponseWriter, appErr *internal.AppError) {
	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// best-effort encode; the status line is already committed
	_ = json.NewEncoder(w).Encode(body)
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}
