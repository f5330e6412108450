package session

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/medshift/staffing-platform/internal"
	"github.com/medshift/staffing-platform/internal/authz"
	"github.com/medshift/staffing-platform/internal/identity"
	"github.com/medshift/staffing-platform/internal/transport"
	"github.com/medshift/staffing-platform/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	UserType string `json:"user_type"`
}

type ScopeResponse struct {
	Unrestricted bool    `json:"unrestricted"`
	FacilityIDs  []int64 `json:"facility_ids,omitempty"`
}

type SessionResponse struct {
	SessionToken       string       `json:"session_token"`
	RestoreToken       string       `json:"restore_token,omitempty"`
	ExpiresAt          time.Time    `json:"expires_at"`
	User               UserResponse `json:"user"`
	IsImpersonating    bool         `json:"is_impersonating"`
	ImpersonatedUserID *int64       `json:"impersonated_user_id,omitempty"`
}

type StatusResponse struct {
	User               UserResponse  `json:"user"`
	IsImpersonating    bool          `json:"is_impersonating"`
	OriginalUser       *UserResponse `json:"original_user,omitempty"`
	ImpersonatedUserID *int64        `json:"impersonated_user_id,omitempty"`
	Scope              ScopeResponse `json:"scope"`
	ExpiresAt          time.Time     `json:"expires_at"`
}

func toUserResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     string(u.Role),
		UserType: string(u.UserType),
	}
}

func toScopeResponse(s authz.Scope) ScopeResponse {
	return ScopeResponse{
		Unrestricted: s.Unrestricted,
		FacilityIDs:  s.FacilityIDs,
	}
}

func (h *Handler) sessionResponse(sess *Session, effective *identity.User) SessionResponse {
	resp := SessionResponse{
		SessionToken:       sess.ID,
		ExpiresAt:          sess.ExpiresAt,
		User:               toUserResponse(effective),
		IsImpersonating:    sess.IsImpersonating(),
		ImpersonatedUserID: sess.ImpersonatedUserID,
	}
	if token, err := h.Service.IssueRestoreToken(sess); err == nil {
		resp.RestoreToken = token
	} else {
		h.Logger.Error("failed to issue restore token", "error", err, "session_id", sess.ID)
	}
	return resp
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, user, err := h.Service.Login(dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, h.sessionResponse(sess, user))
}

// Restore handles POST /auth/restore-session.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	var dto RestoreDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, effective, err := h.Service.Restore(dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, h.sessionResponse(sess, effective))
}

// StartImpersonation handles POST /impersonate/start. The impersonate
// permission of the original identity is enforced inside the service, not
// here, so a currently-impersonated identity can never satisfy it.
func (h *Handler) StartImpersonation(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}

	var dto StartImpersonationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.Service.StartImpersonation(token, dto.TargetUserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	effective, err := h.Service.EffectiveUser(sess)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, h.sessionResponse(sess, effective))
}

// StopImpersonation handles POST /impersonate/stop. Idempotent.
func (h *Handler) StopImpersonation(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}

	sess, err := h.Service.StopImpersonation(token)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	effective, err := h.Service.EffectiveUser(sess)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, h.sessionResponse(sess, effective))
}

// Status handles GET /session-status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}

	sess, err := h.Service.Get(token)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	effective, err := h.Service.EffectiveUser(sess)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := StatusResponse{
		User:               toUserResponse(effective),
		IsImpersonating:    sess.IsImpersonating(),
		ImpersonatedUserID: sess.ImpersonatedUserID,
		Scope:              toScopeResponse(authz.ScopeFor(effective)),
		ExpiresAt:          sess.ExpiresAt,
	}
	if sess.IsImpersonating() {
		if original, err := h.Service.OriginalUser(sess); err == nil {
			originalResp := toUserResponse(original)
			resp.OriginalUser = &originalResp
		}
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}

	if err := h.Service.Logout(token); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		h.WriteAppError(w, appErr)
		return
	}
	if vErr, ok := err.(ValidationError); ok {
		h.WriteError(w, http.StatusBadRequest, vErr.Error())
		return
	}
	h.Logger.Error("session operation failed", "error", err)
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}
