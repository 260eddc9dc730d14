package escalationhandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leaveflow/internal/domain/approval"
	"leaveflow/internal/domain/audit"
	"leaveflow/internal/domain/auth"
	"leaveflow/internal/domain/escalation"
	"leaveflow/internal/platform/jobs"
	"leaveflow/internal/platform/lock"
	"leaveflow/internal/transport/http/api"
	"leaveflow/internal/transport/http/middleware"
	"leaveflow/internal/transport/http/shared"
)

type Handler struct {
	Service *escalation.Service
	Sweeper *escalation.Sweeper
	Perms   middleware.PermissionStore
	Audit   *audit.Service
	Jobs    *jobs.Service
}

func NewHandler(service *escalation.Service, sweeper *escalation.Sweeper, perms middleware.PermissionStore, auditSvc *audit.Service, jobsSvc *jobs.Service) *Handler {
	return &Handler{Service: service, Sweeper: sweeper, Perms: perms, Audit: auditSvc, Jobs: jobsSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/escalation", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEscalationRead, h.Perms)).Get("/settings", h.handleGetSettings)
		r.With(middleware.RequirePermission(auth.PermEscalationWrite, h.Perms)).Patch("/settings", h.handleUpdateSettings)
		r.With(middleware.RequirePermission(auth.PermEscalationRead, h.Perms)).Post("/test", h.handlePreview)
		r.With(middleware.RequirePermission(auth.PermEscalationRun, h.Perms)).Post("/sweep", h.handleSweep)
	})
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	cfg, err := h.Service.Settings(r.Context(), user.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to load escalation settings", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, cfg, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var patch escalation.ConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	before, err := h.Service.Settings(r.Context(), user.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to load escalation settings", middleware.GetRequestID(r.Context()))
		return
	}
	updated, err := h.Service.UpdateSettings(r.Context(), user.TenantID, patch)
	if err != nil {
		var invalid *escalation.ValidationError
		if errors.As(err, &invalid) {
			issues := make([]shared.FieldIssue, 0, len(invalid.Issues))
			for _, issue := range invalid.Issues {
				issues = append(issues, shared.FieldIssue(issue))
			}
			shared.RejectIssues(w, middleware.GetRequestID(r.Context()), issues)
			return
		}
		slog.Error("escalation settings update failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to update escalation settings", middleware.GetRequestID(r.Context()))
		return
	}

	if h.Audit != nil {
		if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionEscalationUpdate, audit.EntityEscalationSettings, user.TenantID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, updated); err != nil {
			slog.Warn("audit escalation settings failed", "err", err)
		}
	}
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		ApprovalID string `json:"approvalId"`
		At         string `json:"at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.Required("approvalId", payload.ApprovalID)
	at := validator.Timestamp("at", payload.At, time.Now())
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	dec, err := h.Sweeper.Preview(r.Context(), user.TenantID, strings.TrimSpace(payload.ApprovalID), at)
	if err != nil {
		switch {
		case errors.Is(err, approval.ErrNotFound):
			api.Fail(w, http.StatusNotFound, "not_found", "approval not found", middleware.GetRequestID(r.Context()))
		case errors.Is(err, escalation.ErrNoChain):
			api.Fail(w, http.StatusUnprocessableEntity, "no_chain", err.Error(), middleware.GetRequestID(r.Context()))
		default:
			slog.Error("escalation preview failed", "tenantId", user.TenantID, "err", err)
			api.Fail(w, http.StatusInternalServerError, "preview_failed", "failed to evaluate escalation", middleware.GetRequestID(r.Context()))
		}
		return
	}
	api.Success(w, dec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	run := func(ctx context.Context) (any, error) {
		return h.Sweeper.Sweep(ctx, user.TenantID)
	}
	var (
		result any
		err    error
	)
	if h.Jobs != nil {
		result, err = h.Jobs.RunNow(r.Context(), jobs.JobEscalationSweep, user.TenantID, run)
	} else {
		result, err = run(r.Context())
	}
	if errors.Is(err, lock.ErrNotAcquired) {
		api.Fail(w, http.StatusConflict, "sweep_running", "an escalation sweep is already running", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		slog.Error("escalation sweep failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "sweep_failed", "escalation sweep failed", middleware.GetRequestID(r.Context()))
		return
	}

	if h.Audit != nil {
		if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionEscalationSweep, audit.EntityEscalationSweep, user.TenantID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, result); err != nil {
			slog.Warn("audit escalation sweep failed", "err", err)
		}
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}
