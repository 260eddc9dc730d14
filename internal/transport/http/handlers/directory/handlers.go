package directoryhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"leaveflow/internal/domain/audit"
	"leaveflow/internal/domain/auth"
	"leaveflow/internal/domain/directory"
	"leaveflow/internal/transport/http/api"
	"leaveflow/internal/transport/http/middleware"
	"leaveflow/internal/transport/http/shared"
)

type Handler struct {
	Service *directory.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *directory.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/directory", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermDirectoryRead, h.Perms)).Get("/approvers", h.handleListApprovers)
		r.With(middleware.RequirePermission(auth.PermDirectoryManage, h.Perms)).Post("/approvers", h.handleSaveApprover)
		r.With(middleware.RequirePermission(auth.PermDirectoryManage, h.Perms)).Delete("/approvers/{userID}/{role}", h.handleDeleteApprover)
		r.With(middleware.RequirePermission(auth.PermDirectoryRead, h.Perms)).Get("/delegations", h.handleListDelegations)
		r.With(middleware.RequirePermission(auth.PermDirectoryWrite, h.Perms)).Post("/delegations", h.handleCreateDelegation)
		r.With(middleware.RequirePermission(auth.PermDirectoryWrite, h.Perms)).Delete("/delegations/{delegationID}", h.handleRevokeDelegation)
		r.With(middleware.RequirePermission(auth.PermDirectoryRead, h.Perms)).Get("/absences", h.handleListAbsences)
		r.With(middleware.RequirePermission(auth.PermDirectoryWrite, h.Perms)).Post("/absences", h.handleCreateAbsence)
		r.With(middleware.RequirePermission(auth.PermDirectoryWrite, h.Perms)).Delete("/absences/{absenceID}", h.handleDeleteAbsence)
	})
}

// managesOthers reports whether the caller may edit directory entries
// that belong to someone else.
func (h *Handler) managesOthers(r *http.Request) bool {
	return middleware.Can(r, h.Perms, auth.PermDirectoryManage)
}

func (h *Handler) handleListApprovers(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	items, err := h.Service.ListApprovers(r.Context(), user.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "approver_list_failed", "failed to list approvers", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSaveApprover(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		UserID     string `json:"userId"`
		Role       string `json:"role"`
		Department string `json:"department"`
		Email      string `json:"email"`
		Active     *bool  `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.Required("userId", payload.UserID)
	validator.Required("role", payload.Role)
	validator.Email("email", payload.Email)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	saved, err := h.Service.SaveApprover(r.Context(), user.TenantID, directory.Approver{
		UserID:     payload.UserID,
		Role:       payload.Role,
		Department: payload.Department,
		Email:      payload.Email,
		Active:     active,
	})
	if err != nil {
		h.fail(w, r, err, "approver_save_failed", "failed to save approver")
		return
	}
	h.record(r, user, audit.ActionApproverSave, audit.EntityApprover, saved.UserID+"/"+saved.Role, saved)
	api.Created(w, saved, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteApprover(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	userID := chi.URLParam(r, "userID")
	role := chi.URLParam(r, "role")
	if err := h.Service.DeleteApprover(r.Context(), user.TenantID, userID, role); err != nil {
		h.fail(w, r, err, "approver_delete_failed", "failed to delete approver")
		return
	}
	h.record(r, user, audit.ActionApproverDelete, audit.EntityApprover, userID+"/"+strings.ToUpper(role), nil)
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDelegations(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	items, err := h.Service.ListDelegations(r.Context(), user.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "delegation_list_failed", "failed to list delegations", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateDelegation(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		DelegatorID string `json:"delegatorId"`
		DelegateID  string `json:"delegateId"`
		StartsAt    string `json:"startsAt"`
		EndsAt      string `json:"endsAt"`
		Reason      string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if strings.TrimSpace(payload.DelegatorID) == "" {
		payload.DelegatorID = user.UserID
	}
	if payload.DelegatorID != user.UserID && !h.managesOthers(r) {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot delegate on behalf of another user", middleware.GetRequestID(r.Context()))
		return
	}

	validator := shared.NewValidator()
	validator.Required("delegateId", payload.DelegateID)
	startsAt := validator.Date("startsAt", payload.StartsAt)
	endsAt := validator.Date("endsAt", payload.EndsAt)
	validator.NotBefore("startsAt", startsAt, "endsAt", endsAt)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.CreateDelegation(r.Context(), user.TenantID, directory.Delegation{
		DelegatorID: payload.DelegatorID,
		DelegateID:  payload.DelegateID,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Reason:      strings.TrimSpace(payload.Reason),
	})
	if err != nil {
		h.fail(w, r, err, "delegation_create_failed", "failed to create delegation")
		return
	}
	h.record(r, user, audit.ActionDelegationCreate, audit.EntityDelegation, created.ID, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRevokeDelegation(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	delegationID := chi.URLParam(r, "delegationID")
	if !h.managesOthers(r) {
		items, err := h.Service.ListDelegations(r.Context(), user.TenantID)
		if err != nil {
			h.fail(w, r, err, "delegation_revoke_failed", "failed to revoke delegation")
			return
		}
		owned := false
		for _, d := range items {
			if d.ID == delegationID && d.DelegatorID == user.UserID {
				owned = true
				break
			}
		}
		if !owned {
			api.Fail(w, http.StatusNotFound, "not_found", "delegation not found", middleware.GetRequestID(r.Context()))
			return
		}
	}
	if err := h.Service.RevokeDelegation(r.Context(), user.TenantID, delegationID); err != nil {
		h.fail(w, r, err, "delegation_revoke_failed", "failed to revoke delegation")
		return
	}
	h.record(r, user, audit.ActionDelegationRevoke, audit.EntityDelegation, delegationID, nil)
	api.Success(w, map[string]string{"status": "revoked"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAbsences(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	items, err := h.Service.ListAbsences(r.Context(), user.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "absence_list_failed", "failed to list absences", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateAbsence(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		UserID   string `json:"userId"`
		StartsAt string `json:"startsAt"`
		EndsAt   string `json:"endsAt"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if strings.TrimSpace(payload.UserID) == "" {
		payload.UserID = user.UserID
	}
	if payload.UserID != user.UserID && !h.managesOthers(r) {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot record absence for another user", middleware.GetRequestID(r.Context()))
		return
	}

	validator := shared.NewValidator()
	startsAt := validator.Date("startsAt", payload.StartsAt)
	endsAt := validator.Date("endsAt", payload.EndsAt)
	validator.NotBefore("startsAt", startsAt, "endsAt", endsAt)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.CreateAbsence(r.Context(), user.TenantID, directory.Absence{
		UserID:   payload.UserID,
		StartsAt: startsAt,
		EndsAt:   endsAt,
		Reason:   strings.TrimSpace(payload.Reason),
	})
	if err != nil {
		h.fail(w, r, err, "absence_create_failed", "failed to record absence")
		return
	}
	h.record(r, user, audit.ActionAbsenceCreate, audit.EntityAbsence, created.ID, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteAbsence(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	absenceID := chi.URLParam(r, "absenceID")
	if !h.managesOthers(r) {
		items, err := h.Service.ListAbsences(r.Context(), user.TenantID)
		if err != nil {
			h.fail(w, r, err, "absence_delete_failed", "failed to delete absence")
			return
		}
		owned := false
		for _, a := range items {
			if a.ID == absenceID && a.UserID == user.UserID {
				owned = true
				break
			}
		}
		if !owned {
			api.Fail(w, http.StatusNotFound, "not_found", "absence not found", middleware.GetRequestID(r.Context()))
			return
		}
	}
	if err := h.Service.DeleteAbsence(r.Context(), user.TenantID, absenceID); err != nil {
		h.fail(w, r, err, "absence_delete_failed", "failed to delete absence")
		return
	}
	h.record(r, user, audit.ActionAbsenceDelete, audit.EntityAbsence, absenceID, nil)
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, directory.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "directory entry not found", requestID)
	case errors.Is(err, directory.ErrInvalid):
		api.Fail(w, http.StatusBadRequest, "invalid_input", err.Error(), requestID)
	default:
		slog.Error("directory request failed", "code", code, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit directory change failed", "err", err)
	}
}
