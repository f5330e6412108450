package facility

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/medshift/staffing-platform/internal"
	"github.com/medshift/staffing-platform/internal/audit"
	"github.com/medshift/staffing-platform/internal/authz"
	"github.com/medshift/staffing-platform/internal/transport"
	"github.com/medshift/staffing-platform/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Recorder audit.RecorderAPI
}

func NewHandler(svc ServiceAPI, recorder audit.RecorderAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Recorder:    recorder,
	}
}

type ListResponse struct {
	Facilities []*Facility `json:"facilities"`
}

type StaffResponse struct {
	Staff []*StaffMember `json:"staff"`
}

// List serves GET /facilities, filtered to the caller's facility scope.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	decision := authz.Authorize(r.Context(), authz.PermFacilityView, nil)
	if !decision.Allowed {
		h.WriteAppError(w, decision.Reason)
		return
	}

	facilities, err := h.Service.ListAccessible(decision.Auth.Scope)
	if err != nil {
		h.Logger.Error("failed to list facilities", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, ListResponse{Facilities: facilities})
}

// ListStaff serves GET /facilities/{facilityID}/staff. Listing the staff
// roster is a privileged read, so it lands in the audit trail.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "facilityID")
	facilityID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	decision := authz.Authorize(r.Context(), authz.PermStaffView, &facilityID)
	if !decision.Allowed {
		h.WriteAppError(w, decision.Reason)
		return
	}

	staff, err := h.Service.ListStaff(facilityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.WriteAppError(w, internal.ErrFacilityNotFound)
			return
		}
		h.Logger.Error("failed to list staff", "error", err, "facility_id", facilityID)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.Recorder.Record(r.Context(), decision.Auth.AuditActor(),
		"staff.list", "facility", raw)

	h.WriteJSON(w, http.StatusOK, StaffResponse{Staff: staff})
}
