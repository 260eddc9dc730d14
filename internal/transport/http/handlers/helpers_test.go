package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leaveflow/internal/app/server"
	"leaveflow/internal/domain/auth"
	"leaveflow/internal/platform/config"
)

const (
	testSecret = "test-secret"
	testTenant = "tenant-1"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testConfig() config.Config {
	return config.Config{
		Environment:        "test",
		LogLevel:           "error",
		StoreDriver:        config.DriverSQLite,
		SQLitePath:         ":memory:",
		JWTSecret:          testSecret,
		EmailFrom:          "no-reply@example.com",
		MaxBodyBytes:       1 << 20,
		RateLimitPerMinute: 1000,
		SweepLockTTL:       time.Minute,
		NATSSubjectPrefix:  "leave.approvals",
		DefaultChain:       []string{"MANAGER", "HR"},
		MetricsEnabled:     true,
	}
}

type testApp struct {
	t      *testing.T
	server *httptest.Server
	app    *server.App
}

func newTestApp(t *testing.T, tweaks ...func(*config.Config)) *testApp {
	t.Helper()
	cfg := testConfig()
	for _, tweak := range tweaks {
		tweak(&cfg)
	}
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	ts := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		ts.Close()
		app.Close()
	})
	return &testApp{t: t, server: ts, app: app}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, auth.Claims{UserID: userID, TenantID: testTenant, RoleName: role}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return tok
}

// do sends one request and fails the test unless the status matches want.
func (a *testApp) do(method, path, tok string, body any, want int) envelope {
	a.t.Helper()
	raw := a.raw(method, path, tok, body, want)
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		a.t.Fatalf("failed to decode response: %v: %s", err, string(raw))
	}
	return env
}

func (a *testApp) raw(method, path, tok string, body any, want int) []byte {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(payload)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	if err != nil {
		a.t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := a.server.Client().Do(req)
	if err != nil {
		a.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		a.t.Fatalf("failed to read response: %v", err)
	}
	if resp.StatusCode != want {
		a.t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, want, resp.StatusCode, string(out))
	}
	return out
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("failed to decode data: %v: %s", err, string(env.Data))
	}
	return out
}

func errorCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

// seedDirectory registers one approver per role.
func seedDirectory(a *testApp, hrToken string) {
	a.t.Helper()
	for _, entry := range []map[string]any{
		{"userId": "mgr-1", "role": "MANAGER", "email": "mgr-1@example.com"},
		{"userId": "hr-1", "role": "HR", "email": "hr-1@example.com"},
		{"userId": "dir-1", "role": "DIRECTOR", "email": "dir-1@example.com"},
	} {
		a.do(http.MethodPost, "/api/v1/directory/approvers", hrToken, entry, http.StatusCreated)
	}
}
