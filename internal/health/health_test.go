package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pvanloo/sonoria/internal/health"
)

func doRequest(t *testing.T, h *health.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()

	h := health.New(nil)
	rec := doRequest(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v; want ok", body["status"])
	}
}

func TestReadyz_AllChecksPass(t *testing.T) {
	t.Parallel()

	h := health.New(nil,
		health.Checker{Name: "realtime", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "microphone", Check: func(context.Context) error { return nil }},
	)
	rec := doRequest(t, h, "/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Checks["realtime"] != "ok" || body.Checks["microphone"] != "ok" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	t.Parallel()

	h := health.New(nil,
		health.Checker{Name: "realtime", Check: func(context.Context) error {
			return errors.New("connection refused")
		}},
	)
	rec := doRequest(t, h, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d; want 503", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q; want fail", body.Status)
	}
	if got := body.Checks["realtime"]; got != "fail: connection refused" {
		t.Errorf("realtime check = %q", got)
	}
}

func TestStatusz_ReportsSnapshot(t *testing.T) {
	t.Parallel()

	h := health.New(func() health.SessionStatus {
		return health.SessionStatus{State: "streaming", Turns: 4, DroppedChunks: 2}
	})
	rec := doRequest(t, h, "/statusz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var snap health.SessionStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if snap.State != "streaming" || snap.Turns != 4 || snap.DroppedChunks != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStatusz_NilStatusFuncReportsIdle(t *testing.T) {
	t.Parallel()

	h := health.New(nil)
	rec := doRequest(t, h, "/statusz")

	var snap health.SessionStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if snap.State != "idle" {
		t.Errorf("state = %q; want idle", snap.State)
	}
}
