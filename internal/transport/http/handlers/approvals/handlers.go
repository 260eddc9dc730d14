package approvalshandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"leaveflow/internal/domain/approval"
	"leaveflow/internal/domain/audit"
	"leaveflow/internal/domain/auth"
	"leaveflow/internal/domain/directory"
	"leaveflow/internal/platform/pdf"
	"leaveflow/internal/transport/http/api"
	"leaveflow/internal/transport/http/middleware"
	"leaveflow/internal/transport/http/shared"
)

type Handler struct {
	Service *approval.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *approval.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/approvals", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermApprovalsRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermApprovalsSubmit, h.Perms)).Post("/", h.handleSubmit)
		r.With(middleware.RequirePermission(auth.PermApprovalsRead, h.Perms)).Get("/{approvalID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermApprovalsRead, h.Perms)).Get("/{approvalID}/history", h.handleHistory)
		r.With(middleware.RequirePermission(auth.PermApprovalsRead, h.Perms)).Get("/{approvalID}/sheet.pdf", h.handleSheet)
		r.With(middleware.RequirePermission(auth.PermApprovalsDecide, h.Perms)).Post("/{approvalID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermApprovalsDecide, h.Perms)).Post("/{approvalID}/reject", h.handleReject)
	})
}

type submitPayload struct {
	RequestID     string           `json:"requestId"`
	RequesterID   string           `json:"requesterId"`
	RequesterRole string           `json:"requesterRole"`
	LeaveTypeCode string           `json:"leaveTypeCode"`
	Department    string           `json:"department"`
	DayCount      *decimal.Decimal `json:"dayCount"`
	StartDate     string           `json:"startDate"`
	EndDate       string           `json:"endDate"`
	StartHalf     bool             `json:"startHalf"`
	EndHalf       bool             `json:"endHalf"`
}

type decisionPayload struct {
	Note string `json:"note"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if strings.TrimSpace(payload.RequesterID) == "" {
		payload.RequesterID = user.UserID
		if payload.RequesterRole == "" {
			payload.RequesterRole = user.RoleName
		}
	}
	if payload.RequesterID != user.UserID && !middleware.Can(r, h.Perms, auth.PermApprovalsProxy) {
		api.Fail(w, http.StatusForbidden, "forbidden", "only hr may submit on behalf of another user", middleware.GetRequestID(r.Context()))
		return
	}

	validator := shared.NewValidator()
	validator.Required("requestId", payload.RequestID)
	in := approval.SubmitInput{
		RequestID:     payload.RequestID,
		RequesterID:   payload.RequesterID,
		RequesterRole: payload.RequesterRole,
		LeaveTypeCode: payload.LeaveTypeCode,
		Department:    payload.Department,
		DayCount:      payload.DayCount,
		StartHalf:     payload.StartHalf,
		EndHalf:       payload.EndHalf,
	}
	if payload.DayCount == nil {
		in.StartDate = validator.Date("startDate", payload.StartDate)
		in.EndDate = validator.Date("endDate", payload.EndDate)
		validator.NotBefore("startDate", in.StartDate, "endDate", in.EndDate)
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, isNew, err := h.Service.Submit(r.Context(), user.TenantID, in)
	if err != nil {
		h.fail(w, r, err, "approval_submit_failed", "failed to submit approval")
		return
	}
	if !isNew {
		api.Success(w, created, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, user, audit.ActionApprovalSubmit, created.ID, nil, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePage(r, 50, 200)
	query := r.URL.Query()
	validator := shared.NewValidator()
	validator.OneOf("status", query.Get("status"),
		approval.StatusPending, approval.StatusEscalated, approval.StatusApproved, approval.StatusRejected, approval.StatusAutoApproved)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	filter := approval.ListFilter{
		Status:      shared.QueryUpper(r, "status"),
		AssigneeID:  strings.TrimSpace(query.Get("assigneeId")),
		RequesterID: strings.TrimSpace(query.Get("requesterId")),
		Limit:       page.Limit,
		Offset:      page.Offset,
	}
	if !middleware.Can(r, h.Perms, auth.PermApprovalsReadAll) {
		switch {
		case filter.AssigneeID == "me" || filter.AssigneeID == user.UserID:
			filter.AssigneeID = user.UserID
			filter.RequesterID = ""
		default:
			filter.AssigneeID = ""
			filter.RequesterID = user.UserID
		}
	}

	result, err := h.Service.List(r.Context(), user.TenantID, filter)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "approval_list_failed", "failed to list approvals", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	a, ok := h.load(w, r, user)
	if !ok {
		return
	}
	api.Success(w, a, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	a, ok := h.load(w, r, user)
	if !ok {
		return
	}
	events, err := h.Service.History(r.Context(), user.TenantID, a.ID)
	if err != nil {
		h.fail(w, r, err, "approval_history_failed", "failed to load approval history")
		return
	}
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSheet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	a, ok := h.load(w, r, user)
	if !ok {
		return
	}
	sheet, err := h.Service.Sheet(r.Context(), user.TenantID, a.ID)
	if err != nil {
		h.fail(w, r, err, "approval_sheet_failed", "failed to build approval sheet")
		return
	}

	var buf bytes.Buffer
	if err := pdf.Render(&buf, sheet); err != nil {
		slog.Error("approval sheet render failed", "approvalId", a.ID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "approval_sheet_failed", "failed to render approval sheet", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=approval-"+a.RequestID+".pdf")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("approval sheet write failed", "err", err)
	}
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload decisionPayload
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
	}

	approvalID := chi.URLParam(r, "approvalID")
	actor := approval.Actor{UserID: user.UserID, Role: user.RoleName}
	before, err := h.Service.Get(r.Context(), user.TenantID, approvalID)
	if err != nil {
		h.fail(w, r, err, "approval_decide_failed", "failed to decide approval")
		return
	}

	var (
		updated approval.Approval
		action  string
	)
	if approve {
		action = audit.ActionApprovalApprove
		updated, err = h.Service.Approve(r.Context(), user.TenantID, approvalID, actor, strings.TrimSpace(payload.Note))
	} else {
		action = audit.ActionApprovalReject
		updated, err = h.Service.Reject(r.Context(), user.TenantID, approvalID, actor, strings.TrimSpace(payload.Note))
	}
	if err != nil {
		h.fail(w, r, err, "approval_decide_failed", "failed to decide approval")
		return
	}
	h.record(r, user, action, approvalID,
		map[string]any{"status": before.Status, "currentLevelIndex": before.CurrentLevelIndex, "assignedApproverId": before.AssignedApproverID},
		map[string]any{"status": updated.Status, "currentLevelIndex": updated.CurrentLevelIndex, "assignedApproverId": updated.AssignedApproverID})
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

// load fetches the approval named in the path and hides it from callers
// who may not read it.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, user auth.UserContext) (approval.Approval, bool) {
	a, err := h.Service.Get(r.Context(), user.TenantID, chi.URLParam(r, "approvalID"))
	if err != nil {
		h.fail(w, r, err, "approval_load_failed", "failed to load approval")
		return approval.Approval{}, false
	}
	visible, err := h.Service.Visible(r.Context(), a, approval.Actor{UserID: user.UserID, Role: user.RoleName})
	if err != nil {
		h.fail(w, r, err, "approval_load_failed", "failed to load approval")
		return approval.Approval{}, false
	}
	if !visible {
		api.Fail(w, http.StatusNotFound, "not_found", "approval not found", middleware.GetRequestID(r.Context()))
		return approval.Approval{}, false
	}
	return a, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, approval.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "approval not found", requestID)
	case errors.Is(err, approval.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed to decide this approval", requestID)
	case errors.Is(err, approval.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", "approval is already decided", requestID)
	case errors.Is(err, approval.ErrConflict):
		api.Fail(w, http.StatusConflict, "conflict", "approval was modified concurrently, retry", requestID)
	case errors.Is(err, approval.ErrInvalidInput):
		api.Fail(w, http.StatusBadRequest, "invalid_input", err.Error(), requestID)
	case errors.Is(err, directory.ErrNoApprover):
		api.Fail(w, http.StatusUnprocessableEntity, "no_approver", err.Error(), requestID)
	default:
		slog.Error("approval request failed", "code", code, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, approvalID string, before, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, audit.EntityApproval, approvalID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit approval failed", "err", err)
	}
}
