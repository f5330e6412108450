package session_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/medshift/staffing-platform/internal/identity"
	"github.com/medshift/staffing-platform/internal/session"
)

var _ = Describe("Session Handler", func() {
	var (
		store      *MockStore
		users      *MockIdentity
		authorizer *MockAuthorizer
		recorder   *MockRecorder
		handler    *session.Handler

		adminFacility = int64(10)
	)

	BeforeEach(func() {
		store = NewMockStore()
		users = NewMockIdentity()
		authorizer = NewMockAuthorizer(1)
		recorder = &MockRecorder{}
		tokens := session.NewJWTRestoreTokenGenerator("test-secret-at-least-32-bytes-long!!", 15*time.Minute)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		svc := session.NewService(store, users, authorizer, tokens, recorder, time.Hour, logger)
		handler = session.NewHandler(svc)

		users.Add(&identity.User{
			ID: 1, Email: "admin@example.com", Name: "Admin",
			Role: identity.RoleFacilityAdmin, UserType: identity.UserTypeFacility,
			PrimaryFacilityID: &adminFacility, IsActive: true,
		})
		users.Add(&identity.User{
			ID: 2, Email: "staff@example.com", Name: "Jordan",
			Role: identity.RoleStaff, UserType: identity.UserTypeStaff,
			PrimaryFacilityID: &adminFacility, IsActive: true,
		})
	})

	post := func(path, token string, body interface{}, fn http.HandlerFunc) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(http.MethodPost, path, &buf)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		fn(rec, req)
		return rec
	}

	get := func(path, token string, fn http.HandlerFunc) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		fn(rec, req)
		return rec
	}

	login := func() session.SessionResponse {
		rec := post("/auth/login", "", session.LoginDTO{Email: "admin@example.com", Password: "correct-password"}, handler.Login)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var resp session.SessionResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	Describe("Login", func() {
		It("returns the session and restore tokens", func() {
			resp := login()
			Expect(resp.SessionToken).NotTo(BeEmpty())
			Expect(resp.RestoreToken).NotTo(BeEmpty())
			Expect(resp.User.Email).To(Equal("admin@example.com"))
			Expect(resp.IsImpersonating).To(BeFalse())
		})

		It("returns 401 for bad credentials", func() {
			rec := post("/auth/login", "", session.LoginDTO{Email: "admin@example.com", Password: "wrong"}, handler.Login)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("returns 400 for a missing field", func() {
			rec := post("/auth/login", "", session.LoginDTO{Email: "admin@example.com"}, handler.Login)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Impersonation flow", func() {
		It("starts, reports and stops impersonation over HTTP", func() {
			sess := login()

			rec := post("/impersonate/start", sess.SessionToken, session.StartImpersonationDTO{TargetUserID: 2}, handler.StartImpersonation)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var started session.SessionResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &started)).To(Succeed())
			Expect(started.IsImpersonating).To(BeTrue())
			Expect(started.User.Email).To(Equal("staff@example.com"))
			Expect(started.SessionToken).To(Equal(sess.SessionToken))

			rec = get("/session-status", sess.SessionToken, handler.Status)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var status session.StatusResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &status)).To(Succeed())
			Expect(status.IsImpersonating).To(BeTrue())
			Expect(status.User.Email).To(Equal("staff@example.com"))
			Expect(status.OriginalUser).NotTo(BeNil())
			Expect(status.OriginalUser.Email).To(Equal("admin@example.com"))
			Expect(status.Scope.Unrestricted).To(BeFalse())
			Expect(status.Scope.FacilityIDs).To(ConsistOf(adminFacility))

			rec = post("/impersonate/stop", sess.SessionToken, nil, handler.StopImpersonation)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var stopped session.SessionResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &stopped)).To(Succeed())
			Expect(stopped.IsImpersonating).To(BeFalse())
			Expect(stopped.User.Email).To(Equal("admin@example.com"))
		})

		It("returns 409 for nested impersonation", func() {
			sess := login()
			rec := post("/impersonate/start", sess.SessionToken, session.StartImpersonationDTO{TargetUserID: 2}, handler.StartImpersonation)
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = post("/impersonate/start", sess.SessionToken, session.StartImpersonationDTO{TargetUserID: 2}, handler.StartImpersonation)
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})

		It("returns 403 when the caller lacks the permission", func() {
			authorizer.allowed[1] = false
			sess := login()
			rec := post("/impersonate/start", sess.SessionToken, session.StartImpersonationDTO{TargetUserID: 2}, handler.StartImpersonation)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("returns 400 for an invalid target", func() {
			sess := login()
			rec := post("/impersonate/start", sess.SessionToken, session.StartImpersonationDTO{TargetUserID: 404}, handler.StartImpersonation)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("keeps stop idempotent over HTTP", func() {
			sess := login()
			rec := post("/impersonate/stop", sess.SessionToken, nil, handler.StopImpersonation)
			Expect(rec.Code).To(Equal(http.StatusOK))
			rec = post("/impersonate/stop", sess.SessionToken, nil, handler.StopImpersonation)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("Restore over HTTP", func() {
		It("resumes impersonation from the restore token", func() {
			sess := login()
			rec := post("/impersonate/start", sess.SessionToken, session.StartImpersonationDTO{TargetUserID: 2}, handler.StartImpersonation)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var started session.SessionResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &started)).To(Succeed())

			rec = post("/auth/restore-session", "", session.RestoreDTO{RestoreToken: started.RestoreToken}, handler.Restore)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var restored session.SessionResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &restored)).To(Succeed())
			Expect(restored.IsImpersonating).To(BeTrue())
			Expect(restored.User.Email).To(Equal("staff@example.com"))
			Expect(restored.SessionToken).NotTo(Equal(started.SessionToken))
		})

		It("returns 401 for a bad token", func() {
			rec := post("/auth/restore-session", "", session.RestoreDTO{RestoreToken: "garbage"}, handler.Restore)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("Logout", func() {
		It("invalidates the session token", func() {
			sess := login()
			rec := post("/auth/logout", sess.SessionToken, nil, handler.Logout)
			Expect(rec.Code).To(Equal(http.StatusNoContent))

			rec = get("/session-status", sess.SessionToken, handler.Status)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
