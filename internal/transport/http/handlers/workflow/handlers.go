package workflowhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leaveflow/internal/domain/audit"
	"leaveflow/internal/domain/auth"
	"leaveflow/internal/domain/workflow"
	"leaveflow/internal/transport/http/api"
	"leaveflow/internal/transport/http/middleware"
	"leaveflow/internal/transport/http/shared"
)

type Handler struct {
	Service *workflow.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *workflow.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/workflow", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermWorkflowRead, h.Perms)).Get("/rules", h.handleListRules)
		r.With(middleware.RequirePermission(auth.PermWorkflowWrite, h.Perms)).Post("/rules", h.handleCreateRule)
		r.With(middleware.RequirePermission(auth.PermWorkflowRead, h.Perms)).Get("/rules/{ruleID}", h.handleGetRule)
		r.With(middleware.RequirePermission(auth.PermWorkflowWrite, h.Perms)).Patch("/rules/{ruleID}", h.handleUpdateRule)
		r.With(middleware.RequirePermission(auth.PermWorkflowWrite, h.Perms)).Delete("/rules/{ruleID}", h.handleDeleteRule)
		r.With(middleware.RequirePermission(auth.PermWorkflowWrite, h.Perms)).Post("/rules/{ruleID}/activate", h.handleSetActive(true))
		r.With(middleware.RequirePermission(auth.PermWorkflowWrite, h.Perms)).Post("/rules/{ruleID}/deactivate", h.handleSetActive(false))
		r.With(middleware.RequirePermission(auth.PermWorkflowRead, h.Perms)).Post("/test", h.handleTest)
	})
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	rules, err := h.Service.ListRules(r.Context(), user.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "rule_list_failed", "failed to list workflow rules", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rules, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	rule, err := h.Service.GetRule(r.Context(), user.TenantID, chi.URLParam(r, "ruleID"))
	if err != nil {
		h.fail(w, r, err, "rule_load_failed", "failed to load workflow rule")
		return
	}
	api.Success(w, rule, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload workflow.RulePatch
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	created, err := h.Service.CreateRule(r.Context(), user.TenantID, workflow.NewRule(payload))
	if err != nil {
		h.fail(w, r, err, "rule_create_failed", "failed to create workflow rule")
		return
	}
	h.record(r, user, audit.ActionRuleCreate, created.ID, nil, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	ruleID := chi.URLParam(r, "ruleID")

	var patch workflow.RulePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	before, err := h.Service.GetRule(r.Context(), user.TenantID, ruleID)
	if err != nil {
		h.fail(w, r, err, "rule_update_failed", "failed to update workflow rule")
		return
	}
	updated, err := h.Service.UpdateRule(r.Context(), user.TenantID, ruleID, patch)
	if err != nil {
		h.fail(w, r, err, "rule_update_failed", "failed to update workflow rule")
		return
	}
	h.record(r, user, audit.ActionRuleUpdate, ruleID, before, updated)
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetActive(active bool) http.HandlerFunc {
	action := audit.ActionRuleDeactivate
	if active {
		action = audit.ActionRuleActivate
	}
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUser(r.Context())
		if !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
			return
		}
		ruleID := chi.URLParam(r, "ruleID")
		rule, err := h.Service.SetActive(r.Context(), user.TenantID, ruleID, active)
		if err != nil {
			h.fail(w, r, err, "rule_update_failed", "failed to update workflow rule")
			return
		}
		h.record(r, user, action, ruleID, nil, map[string]bool{"isActive": rule.IsActive})
		api.Success(w, rule, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	ruleID := chi.URLParam(r, "ruleID")
	if err := h.Service.DeleteRule(r.Context(), user.TenantID, ruleID); err != nil {
		h.fail(w, r, err, "rule_delete_failed", "failed to delete workflow rule")
		return
	}
	h.record(r, user, audit.ActionRuleDelete, ruleID, nil, nil)
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload workflow.RequestAttributes
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	result, err := h.Service.Test(r.Context(), user.TenantID, payload)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "rule_test_failed", "failed to evaluate workflow rules", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	var invalid *workflow.ValidationError
	switch {
	case errors.As(err, &invalid):
		issues := make([]shared.FieldIssue, 0, len(invalid.Issues))
		for _, issue := range invalid.Issues {
			issues = append(issues, shared.FieldIssue(issue))
		}
		shared.RejectIssues(w, requestID, issues)
	case errors.Is(err, workflow.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "workflow rule not found", requestID)
	case errors.Is(err, workflow.ErrRuleInUse):
		api.Fail(w, http.StatusConflict, "rule_in_use", "workflow rule is referenced by open approvals", requestID)
	default:
		slog.Error("workflow request failed", "code", code, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, ruleID string, before, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, audit.EntityWorkflowRule, ruleID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit workflow rule failed", "err", err)
	}
}
