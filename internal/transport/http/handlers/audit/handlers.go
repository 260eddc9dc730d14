package audithandler

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leaveflow/internal/domain/audit"
	"leaveflow/internal/domain/auth"
	"leaveflow/internal/transport/http/api"
	"leaveflow/internal/transport/http/middleware"
	"leaveflow/internal/transport/http/shared"
)

// exportLimit caps one CSV export.
const exportLimit = 10000

var exportHeader = []string{"id", "created_at", "actor_user_id", "action", "entity_type", "entity_id", "request_id", "ip"}

type Handler struct {
	Service *audit.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *audit.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermAuditRead, h.Perms))
		r.Get("/events", h.handleList)
		r.Get("/events/export", h.handleExport)
	})
}

// parseFilter reads the shared list and export filters. It writes the 400
// itself and returns false when a value is malformed.
func parseFilter(w http.ResponseWriter, r *http.Request) (audit.Filter, bool) {
	q := r.URL.Query()
	v := shared.NewValidator()
	v.OneOf("entityType", q.Get("entityType"), audit.EntityTypes...)
	filter := audit.Filter{
		Action:     strings.TrimSpace(q.Get("action")),
		EntityType: strings.ToLower(strings.TrimSpace(q.Get("entityType"))),
		EntityID:   strings.TrimSpace(q.Get("entityId")),
		ActorUser:  strings.TrimSpace(q.Get("actorUserId")),
		Since:      v.Timestamp("since", q.Get("since"), time.Time{}),
		Until:      v.Timestamp("until", q.Get("until"), time.Time{}),
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && !filter.Until.After(filter.Since) {
		v.Add("until", "must be after since")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return audit.Filter{}, false
	}
	return filter, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	page := shared.ParsePage(r, 100, 500)
	includeDetails, _ := strconv.ParseBool(r.URL.Query().Get("includeDetails"))

	events, err := h.Service.List(r.Context(), user.TenantID, filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		slog.Error("audit list failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", middleware.GetRequestID(r.Context()))
		return
	}
	if total, err := h.Service.Count(r.Context(), user.TenantID, filter); err != nil {
		slog.Warn("audit count failed", "tenantId", user.TenantID, "err", err)
	} else {
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
	}
	if events == nil {
		events = []audit.Event{}
	}
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}

// handleExport streams matching events as CSV, newest first.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	events, err := h.Service.List(r.Context(), user.TenantID, filter, false, exportLimit, 0)
	if err != nil {
		slog.Error("audit export failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "audit_export_failed", "failed to export audit events", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-`+time.Now().UTC().Format("20060102")+`.csv"`)
	if len(events) == exportLimit {
		w.Header().Set("X-Export-Truncated", "true")
	}
	out := csv.NewWriter(w)
	_ = out.Write(exportHeader)
	for _, evt := range events {
		_ = out.Write([]string{
			evt.ID, evt.CreatedAt.UTC().Format(time.RFC3339), evt.ActorID, evt.Action,
			evt.EntityType, evt.EntityID, evt.RequestID, evt.IP,
		})
	}
	out.Flush()
	if err := out.Error(); err != nil {
		slog.Warn("audit export write failed", "tenantId", user.TenantID, "err", err)
	}
}
