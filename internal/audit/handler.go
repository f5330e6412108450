package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/medshift/staffing-platform/internal/transport"
	"github.com/medshift/staffing-platform/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

type ListResponse struct {
	Entries []*Entry `json:"entries"`
	NextSeq uint64   `json:"next_seq,omitempty"`
}

// List serves GET /audit-logs. Requires the audit.view permission, enforced
// by route middleware.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var actorID *int64
	if raw := r.URL.Query().Get("actor_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid actor_id")
			return
		}
		actorID = &parsed
	}

	var afterSeq uint64
	if raw := r.URL.Query().Get("after_seq"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid after_seq")
			return
		}
		afterSeq = parsed
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.Service.List(actorID, afterSeq, limit)
	if err != nil {
		h.Logger.Error("failed to list audit logs", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ListResponse{Entries: entries}
	if len(entries) > 0 {
		resp.NextSeq = entries[len(entries)-1].Seq
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
