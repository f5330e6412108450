package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/medshift/staffing-platform/internal"
	"github.com/medshift/staffing-platform/internal/audit"
	"github.com/medshift/staffing-platform/internal/authz"
	"github.com/medshift/staffing-platform/internal/identity"
	"github.com/medshift/staffing-platform/internal/session"
	"github.com/medshift/staffing-platform/internal/transport/middleware"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

// MockSessions serves a fixed token-to-session map.
type MockSessions struct {
	sessions map[string]*session.Session
	users    map[int64]*identity.User
}

func NewMockSessions() *MockSessions {
	return &MockSessions{
		sessions: make(map[string]*session.Session),
		users:    make(map[int64]*identity.User),
	}
}

func (m *MockSessions) Login(dto session.LoginDTO) (*session.Session, *identity.User, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *MockSessions) Get(sessionID string) (*session.Session, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, internal.ErrUnauthenticated
	}
	if s.Expired(time.Now().UTC()) {
		return nil, internal.ErrSessionExpired
	}
	return s, nil
}

func (m *MockSessions) EffectiveUser(s *session.Session) (*identity.User, error) {
	u, ok := m.users[s.EffectiveUserID()]
	if !ok {
		return nil, internal.ErrUnauthenticated
	}
	if !u.IsActive {
		return nil, internal.ErrAccountInactive
	}
	return u, nil
}

func (m *MockSessions) OriginalUser(s *session.Session) (*identity.User, error) {
	u, ok := m.users[s.OriginalUserID]
	if !ok {
		return nil, internal.ErrUnauthenticated
	}
	return u, nil
}

func (m *MockSessions) StartImpersonation(sessionID string, targetUserID int64) (*session.Session, error) {
	return nil, errors.New("not implemented")
}

func (m *MockSessions) StopImpersonation(sessionID string) (*session.Session, error) {
	return nil, errors.New("not implemented")
}

func (m *MockSessions) Restore(dto session.RestoreDTO) (*session.Session, *identity.User, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *MockSessions) IssueRestoreToken(s *session.Session) (string, error) {
	return "", errors.New("not implemented")
}

func (m *MockSessions) Logout(sessionID string) error { return nil }

// MockRecorder captures audit records synchronously.
type MockRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *MockRecorder) Record(ctx context.Context, actor audit.Actor, action, resourceType, resourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, audit.Entry{
		ActorEffectiveID:     actor.EffectiveUserID,
		OriginalUserID:       actor.OriginalUserID,
		IsImpersonated:       actor.IsImpersonated,
		ImpersonationContext: actor.Context,
		Action:               action,
		ResourceType:         resourceType,
		ResourceID:           resourceID,
	})
}

func (m *MockRecorder) Entries() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

var _ = Describe("Authorizer", func() {
	var (
		sessions   *MockSessions
		recorder   *MockRecorder
		authorizer *middleware.Authorizer

		facilityID = int64(10)
	)

	BeforeEach(func() {
		sessions = NewMockSessions()
		recorder = &MockRecorder{}
		cache := authz.NewResolverCache(time.Minute)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		authorizer = middleware.NewAuthorizer(sessions, cache, recorder, logger)

		sessions.users[1] = &identity.User{
			ID: 1, Email: "admin@example.com", Role: identity.RoleFacilityAdmin,
			UserType: identity.UserTypeFacility, PrimaryFacilityID: &facilityID, IsActive: true,
		}
		sessions.users[2] = &identity.User{
			ID: 2, Email: "staff@example.com", Role: identity.RoleStaff,
			UserType: identity.UserTypeStaff, PrimaryFacilityID: &facilityID, IsActive: true,
		}
		sessions.sessions["token-plain"] = &session.Session{
			ID: "token-plain", OriginalUserID: 1,
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}
		impID := int64(2)
		sessions.sessions["token-imp"] = &session.Session{
			ID: "token-imp", OriginalUserID: 1, ImpersonatedUserID: &impID,
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}
	})

	echoAuth := func(w http.ResponseWriter, r *http.Request) {
		authCtx, ok := authz.FromContext(r.Context())
		Expect(ok).To(BeTrue())
		w.Header().Set("X-Effective-User", authCtx.EffectiveUser.Email)
		w.WriteHeader(http.StatusOK)
	}

	Describe("Authenticate", func() {
		It("rejects a request without a token", func() {
			handler := authorizer.Authenticate(http.HandlerFunc(echoAuth))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects an unknown token", func() {
			handler := authorizer.Authenticate(http.HandlerFunc(echoAuth))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer nope")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects an expired session", func() {
			sessions.sessions["token-old"] = &session.Session{
				ID: "token-old", OriginalUserID: 1,
				ExpiresAt: time.Now().UTC().Add(-time.Minute),
			}
			handler := authorizer.Authenticate(http.HandlerFunc(echoAuth))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer token-old")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("attaches the original identity on a plain session", func() {
			handler := authorizer.Authenticate(http.HandlerFunc(echoAuth))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer token-plain")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("X-Effective-User")).To(Equal("admin@example.com"))
		})

		It("attaches the impersonated identity while impersonating", func() {
			handler := authorizer.Authenticate(http.HandlerFunc(echoAuth))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer token-imp")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("X-Effective-User")).To(Equal("staff@example.com"))
		})

		It("rejects a session whose effective user was deactivated", func() {
			sessions.users[2].IsActive = false
			handler := authorizer.Authenticate(http.HandlerFunc(echoAuth))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer token-imp")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})
	})

	Describe("RequirePermission", func() {
		serve := func(token, permission string) *httptest.ResponseRecorder {
			router := chi.NewRouter()
			router.Use(authorizer.Authenticate)
			router.Group(func(pr chi.Router) {
				pr.Use(authorizer.RequirePermission(permission))
				pr.Get("/protected", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		It("passes a caller holding the permission", func() {
			rec := serve("token-plain", authz.PermStaffManage)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(recorder.Entries()).To(BeEmpty())
		})

		It("denies and audits a caller missing the permission", func() {
			rec := serve("token-plain", authz.PermImpersonate)
			Expect(rec.Code).To(Equal(http.StatusForbidden))

			entries := recorder.Entries()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Action).To(Equal("access.denied"))
			Expect(entries[0].ResourceType).To(Equal("permission"))
			Expect(entries[0].ResourceID).To(Equal(authz.PermImpersonate))
			Expect(entries[0].IsImpersonated).To(BeFalse())
		})

		It("marks the denial as impersonated when the session is impersonating", func() {
			rec := serve("token-imp", authz.PermAuditView)
			Expect(rec.Code).To(Equal(http.StatusForbidden))

			entries := recorder.Entries()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].IsImpersonated).To(BeTrue())
			Expect(entries[0].ActorEffectiveID).To(Equal(int64(2)))
			Expect(*entries[0].OriginalUserID).To(Equal(int64(1)))
		})
	})

	Describe("RequireFacilityAccess", func() {
		serve := func(token, facility string) *httptest.ResponseRecorder {
			router := chi.NewRouter()
			router.Use(authorizer.Authenticate)
			router.Group(func(pr chi.Router) {
				pr.Use(authorizer.RequireFacilityAccess("facilityID"))
				pr.Get("/facilities/{facilityID}/staff", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})
			})

			req := httptest.NewRequest(http.MethodGet, "/facilities/"+facility+"/staff", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		It("passes a facility inside the scope", func() {
			rec := serve("token-plain", "10")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("denies and audits a facility outside the scope", func() {
			rec := serve("token-plain", "99")
			Expect(rec.Code).To(Equal(http.StatusForbidden))

			entries := recorder.Entries()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Action).To(Equal("access.denied"))
			Expect(entries[0].ResourceType).To(Equal("facility"))
			Expect(entries[0].ResourceID).To(Equal("99"))
		})

		It("rejects a malformed facility id", func() {
			rec := serve("token-plain", "abc")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("scopes by the impersonated identity while impersonating", func() {
			other := int64(30)
			sessions.users[2].PrimaryFacilityID = &other

			rec := serve("token-imp", "10")
			Expect(rec.Code).To(Equal(http.StatusForbidden))

			rec = serve("token-imp", "30")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})
})
