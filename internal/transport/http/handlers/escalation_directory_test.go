package handlers_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaveflow/internal/domain/approval"
	"leaveflow/internal/domain/auth"
	"leaveflow/internal/domain/directory"
	"leaveflow/internal/domain/escalation"
	"leaveflow/internal/domain/notifications"
	"leaveflow/internal/platform/config"
)

func TestEscalationSettingsAndSweep(t *testing.T) {
	app := newTestApp(t)
	hrToken := token(t, "hr-1", auth.RoleHR)
	seedDirectory(app, hrToken)

	defaults := decode[escalation.Config](t, app.do(http.MethodGet, "/api/v1/escalation/settings", hrToken, nil, http.StatusOK))
	assert.Equal(t, escalation.DefaultConfig().EscalationTimeoutHours, defaults.EscalationTimeoutHours)

	bad := app.do(http.MethodPatch, "/api/v1/escalation/settings", hrToken, map[string]any{"reminderHours": 100}, http.StatusBadRequest)
	assert.Equal(t, "validation_error", errorCode(bad))

	updated := decode[escalation.Config](t, app.do(http.MethodPatch, "/api/v1/escalation/settings", hrToken, map[string]any{"maxEscalationLevels": 3}, http.StatusOK))
	assert.Equal(t, 3, updated.MaxEscalationLevels)
	assert.Equal(t, defaults.EscalationTimeoutHours, updated.EscalationTimeoutHours)

	app.do(http.MethodPatch, "/api/v1/escalation/settings", token(t, "mgr-1", auth.RoleManager), map[string]any{"enabled": false}, http.StatusForbidden)

	created := decode[approval.Approval](t, app.do(http.MethodPost, "/api/v1/approvals", token(t, "emp-1", auth.RoleEmployee), map[string]any{
		"requestId": "req-500", "dayCount": 2,
	}, http.StatusCreated))

	preview := decode[escalation.Decision](t, app.do(http.MethodPost, "/api/v1/escalation/test", hrToken, map[string]any{
		"approvalId": created.ID,
		"at":         time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
	}, http.StatusOK))
	assert.Equal(t, escalation.ActionEscalate, preview.Action)
	assert.Equal(t, 1, preview.LevelIndex)
	assert.Equal(t, "hr-1", preview.ApproverID)

	now := decode[escalation.Decision](t, app.do(http.MethodPost, "/api/v1/escalation/test", hrToken, map[string]any{"approvalId": created.ID}, http.StatusOK))
	assert.Equal(t, escalation.ActionNone, now.Action)

	app.do(http.MethodPost, "/api/v1/escalation/test", hrToken, map[string]any{"approvalId": "00000000-0000-0000-0000-000000000000"}, http.StatusNotFound)
	missing := app.do(http.MethodPost, "/api/v1/escalation/test", hrToken, map[string]any{}, http.StatusBadRequest)
	assert.Equal(t, "validation_error", errorCode(missing))

	summary := decode[escalation.SweepSummary](t, app.do(http.MethodPost, "/api/v1/escalation/sweep", hrToken, nil, http.StatusOK))
	assert.Equal(t, testTenant, summary.TenantID)
	assert.Equal(t, 1, summary.Examined)
	assert.Equal(t, 0, summary.Escalated)
	assert.Empty(t, summary.Failures)

	app.do(http.MethodPost, "/api/v1/escalation/sweep", token(t, "mgr-1", auth.RoleManager), nil, http.StatusForbidden)
}

func TestDelegateCanDecideForAssignee(t *testing.T) {
	app := newTestApp(t)
	hrToken := token(t, "hr-1", auth.RoleHR)
	mgrToken := token(t, "mgr-1", auth.RoleManager)
	seedDirectory(app, hrToken)

	delegation := decode[directory.Delegation](t, app.do(http.MethodPost, "/api/v1/directory/delegations", mgrToken, map[string]any{
		"delegateId": "mgr-2",
		"startsAt":   time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
		"endsAt":     time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"reason":     "conference",
	}, http.StatusCreated))
	assert.Equal(t, "mgr-1", delegation.DelegatorID)

	foreign := app.do(http.MethodPost, "/api/v1/directory/delegations", mgrToken, map[string]any{
		"delegatorId": "mgr-3",
		"delegateId":  "mgr-2",
		"startsAt":    "2026-06-01",
		"endsAt":      "2026-06-02",
	}, http.StatusForbidden)
	assert.Equal(t, "forbidden", errorCode(foreign))

	rerouted := decode[approval.Approval](t, app.do(http.MethodPost, "/api/v1/approvals", token(t, "emp-1", auth.RoleEmployee), map[string]any{
		"requestId": "req-600", "dayCount": 1,
	}, http.StatusCreated))
	assert.Equal(t, "mgr-2", rerouted.AssignedApproverID)

	app.do(http.MethodPatch, "/api/v1/escalation/settings", hrToken, map[string]any{"skipIfDelegated": false}, http.StatusOK)
	created := decode[approval.Approval](t, app.do(http.MethodPost, "/api/v1/approvals", token(t, "emp-1", auth.RoleEmployee), map[string]any{
		"requestId": "req-601", "dayCount": 1,
	}, http.StatusCreated))
	require.Equal(t, "mgr-1", created.AssignedApproverID)

	delegateToken := token(t, "mgr-2", auth.RoleManager)
	app.do(http.MethodGet, "/api/v1/approvals/"+created.ID, delegateToken, nil, http.StatusOK)
	next := decode[approval.Approval](t, app.do(http.MethodPost, "/api/v1/approvals/"+created.ID+"/approve", delegateToken, nil, http.StatusOK))
	assert.Equal(t, "hr-1", next.AssignedApproverID)

	app.do(http.MethodDelete, "/api/v1/directory/delegations/"+delegation.ID, delegateToken, nil, http.StatusNotFound)
	app.do(http.MethodDelete, "/api/v1/directory/delegations/"+delegation.ID, mgrToken, nil, http.StatusOK)
}

func TestDirectoryAbsencesAndApprovers(t *testing.T) {
	app := newTestApp(t)
	hrToken := token(t, "hr-1", auth.RoleHR)
	mgrToken := token(t, "mgr-1", auth.RoleManager)
	seedDirectory(app, hrToken)

	approvers := decode[[]directory.Approver](t, app.do(http.MethodGet, "/api/v1/directory/approvers", mgrToken, nil, http.StatusOK))
	assert.Len(t, approvers, 3)

	app.do(http.MethodPost, "/api/v1/directory/approvers", mgrToken, map[string]any{"userId": "x", "role": "HR"}, http.StatusForbidden)
	invalid := app.do(http.MethodPost, "/api/v1/directory/approvers", hrToken, map[string]any{"userId": "x"}, http.StatusBadRequest)
	assert.Equal(t, "validation_error", errorCode(invalid))

	absence := decode[directory.Absence](t, app.do(http.MethodPost, "/api/v1/directory/absences", mgrToken, map[string]any{
		"startsAt": "2026-07-01",
		"endsAt":   "2026-07-10",
		"reason":   "vacation",
	}, http.StatusCreated))
	assert.Equal(t, "mgr-1", absence.UserID)

	backwards := app.do(http.MethodPost, "/api/v1/directory/absences", mgrToken, map[string]any{
		"startsAt": "2026-07-10",
		"endsAt":   "2026-07-01",
	}, http.StatusBadRequest)
	assert.Equal(t, "validation_error", errorCode(backwards))

	app.do(http.MethodDelete, "/api/v1/directory/absences/"+absence.ID, token(t, "mgr-9", auth.RoleManager), nil, http.StatusNotFound)
	app.do(http.MethodDelete, "/api/v1/directory/absences/"+absence.ID, hrToken, nil, http.StatusOK)

	app.do(http.MethodDelete, "/api/v1/directory/approvers/dir-1/director", hrToken, nil, http.StatusOK)
	app.do(http.MethodDelete, "/api/v1/directory/approvers/dir-1/director", hrToken, nil, http.StatusNotFound)
}

func TestNotificationsInboxAndSettings(t *testing.T) {
	app := newTestApp(t)
	hrToken := token(t, "hr-1", auth.RoleHR)
	mgrToken := token(t, "mgr-1", auth.RoleManager)
	seedDirectory(app, hrToken)

	app.do(http.MethodPost, "/api/v1/approvals", token(t, "emp-1", auth.RoleEmployee), map[string]any{"requestId": "req-700", "dayCount": 1}, http.StatusCreated)

	inbox := decode[[]notifications.Notification](t, app.do(http.MethodGet, "/api/v1/notifications", mgrToken, nil, http.StatusOK))
	require.Len(t, inbox, 1)
	assert.Nil(t, inbox[0].ReadAt)

	app.do(http.MethodPost, "/api/v1/notifications/"+inbox[0].ID+"/read", mgrToken, nil, http.StatusOK)
	app.do(http.MethodPost, "/api/v1/notifications/"+inbox[0].ID+"/read", hrToken, nil, http.StatusNotFound)

	inbox = decode[[]notifications.Notification](t, app.do(http.MethodGet, "/api/v1/notifications", mgrToken, nil, http.StatusOK))
	assert.NotNil(t, inbox[0].ReadAt)
	unread := decode[[]notifications.Notification](t, app.do(http.MethodGet, "/api/v1/notifications?unread=true", mgrToken, nil, http.StatusOK))
	assert.Empty(t, unread)

	app.do(http.MethodPost, "/api/v1/approvals", token(t, "emp-1", auth.RoleEmployee), map[string]any{"requestId": "req-701", "dayCount": 1}, http.StatusCreated)
	unread = decode[[]notifications.Notification](t, app.do(http.MethodGet, "/api/v1/notifications?unread=true", mgrToken, nil, http.StatusOK))
	require.Len(t, unread, 1)
	marked := decode[map[string]int](t, app.do(http.MethodPost, "/api/v1/notifications/read-all", mgrToken, nil, http.StatusOK))
	assert.Equal(t, 1, marked["marked"])
	unread = decode[[]notifications.Notification](t, app.do(http.MethodGet, "/api/v1/notifications?unread=true", mgrToken, nil, http.StatusOK))
	assert.Empty(t, unread)

	app.do(http.MethodGet, "/api/v1/notifications/settings", mgrToken, nil, http.StatusForbidden)
	bad := app.do(http.MethodPut, "/api/v1/notifications/settings", hrToken, map[string]any{"emailEnabled": true, "emailFrom": "nope"}, http.StatusBadRequest)
	assert.Equal(t, "validation_error", errorCode(bad))

	app.do(http.MethodPut, "/api/v1/notifications/settings", hrToken, map[string]any{"emailEnabled": true, "emailFrom": "hr@example.com"}, http.StatusOK)
	settings := decode[notifications.Settings](t, app.do(http.MethodGet, "/api/v1/notifications/settings", hrToken, nil, http.StatusOK))
	assert.True(t, settings.EmailEnabled)
	assert.Equal(t, "hr@example.com", settings.EmailFrom)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)
	app.raw(http.MethodGet, "/healthz", "", nil, http.StatusOK)
	app.raw(http.MethodGet, "/readyz", "", nil, http.StatusOK)
	metrics := decode[map[string]any](t, app.do(http.MethodGet, "/metrics", "", nil, http.StatusOK))
	assert.Contains(t, metrics, "requestsTotal")
}

func TestAnonymousCallersAreRateLimitedByIP(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) { cfg.RateLimitPerMinute = 2 })

	app.do(http.MethodGet, "/api/v1/approvals", "", nil, http.StatusUnauthorized)
	app.do(http.MethodGet, "/api/v1/approvals", "", nil, http.StatusUnauthorized)
	limited := app.do(http.MethodGet, "/api/v1/approvals", "", nil, http.StatusTooManyRequests)
	assert.Equal(t, "rate_limited", errorCode(limited))

	// A signed caller has a budget of their own.
	app.do(http.MethodGet, "/api/v1/approvals", token(t, "hr-1", auth.RoleHR), nil, http.StatusOK)
}

func TestCORSExposesPaginationAndLimitHeaders(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) { cfg.CORSAllowedOrigins = []string{"https://hr.example.com"} })

	req, err := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/notifications", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://hr.example.com")
	req.Header.Set("Authorization", "Bearer "+token(t, "mgr-1", auth.RoleManager))
	resp, err := app.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	exposed := strings.ToLower(resp.Header.Get("Access-Control-Expose-Headers"))
	for _, header := range []string{"x-unread-count", "x-export-truncated", "x-ratelimit-remaining", "retry-after"} {
		assert.Contains(t, exposed, header)
	}
}
