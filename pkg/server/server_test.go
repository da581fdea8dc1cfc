package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"warden-hq/taskwarden/pkg/ledger"
	"warden-hq/taskwarden/pkg/ledger/store"
	"warden-hq/taskwarden/pkg/ratelimit"
	"warden-hq/taskwarden/pkg/scheduler"
	"warden-hq/taskwarden/pkg/task"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires a full in-memory stack behind the router. The
// scheduler loop is not started; queued tasks stay pending, which is
// enough for the HTTP surface.
func newTestServer(t *testing.T, limits map[task.Category]ratelimit.Ceilings) (*Server, *scheduler.Scheduler) {
	t.Helper()

	led := ledger.New(ledger.Config{Store: store.NewMemoryStore(), Logger: quietLogger()})
	sched := scheduler.New(scheduler.Config{
		Limiter: ratelimit.New(ratelimit.Config{Limits: limits, Logger: quietLogger()}),
		Ledger:  led,
		Executor: scheduler.ExecutorFunc(func(ctx context.Context, req scheduler.Request, progress scheduler.ProgressFunc) (*scheduler.Result, error) {
			return &scheduler.Result{TokensUsed: 10}, nil
		}),
		Logger: quietLogger(),
	})

	srv := New(Config{
		Scheduler: sched,
		Ledger:    led,
		Logger:    quietLogger(),
	})
	return srv, sched
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_SubmitAndFetch(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	rec := doRequest(t, router, http.MethodPost, "/tasks",
		`{"name":"build","category":"development","priority":"high","instructions":"compile it","estimated_tokens":500}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if created["id"] == "" {
		t.Fatal("expected task id in response")
	}

	rec = doRequest(t, router, http.MethodGet, "/tasks/"+created["id"], "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got task.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid task body: %v", err)
	}
	if got.Status != task.StatusPending || got.Priority != task.PriorityHigh {
		t.Errorf("unexpected task record: %+v", got)
	}
}

func TestServer_SubmitRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"name":`},
		{name: "unknown priority", body: `{"category":"development","priority":"asap","instructions":"x"}`},
		{name: "missing instructions", body: `{"category":"development","priority":"low"}`},
		{name: "unknown category", body: `{"category":"gardening","priority":"low","instructions":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/tasks", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServer_SubmitDenialIs429(t *testing.T) {
	limits := map[task.Category]ratelimit.Ceilings{
		task.CategoryDevelopment: {TokensPerMinute: 100, TokensPerHour: 1000, TokensPerDay: 10000, RequestsPerMinute: 5, RequestsPerHour: 50},
	}
	srv, _ := newTestServer(t, limits)

	rec := doRequest(t, srv.Router(), http.MethodPost, "/tasks",
		`{"category":"development","priority":"medium","instructions":"big","estimated_tokens":5000}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "not admitted") {
		t.Errorf("expected admission error body, got %s", rec.Body.String())
	}
}

func TestServer_CancelPending(t *testing.T) {
	srv, sched := newTestServer(t, nil)
	router := srv.Router()

	id, err := sched.Submit(context.Background(), task.Spec{
		Category:        task.CategoryTesting,
		Priority:        task.PriorityMedium,
		Instructions:    "run tests",
		EstimatedTokens: 100,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	rec := doRequest(t, router, http.MethodDelete, "/tasks/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// Cancelling again reports not found.
	rec = doRequest(t, router, http.MethodDelete, "/tasks/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second cancel, got %d", rec.Code)
	}
}

func TestServer_StatusAndUsage(t *testing.T) {
	srv, sched := newTestServer(t, nil)
	router := srv.Router()

	if _, err := sched.Submit(context.Background(), task.Spec{
		Category:        task.CategoryAnalysis,
		Priority:        task.PriorityLow,
		Instructions:    "inspect",
		EstimatedTokens: 50,
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	rec := doRequest(t, router, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status scheduler.StatusReport
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid status body: %v", err)
	}
	if status.QueueLength != 1 {
		t.Errorf("expected queue length 1, got %d", status.QueueLength)
	}

	rec = doRequest(t, router, http.MethodGet, "/usage/summary?range=day", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for summary, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/usage/summary?range=fortnight", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad range, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/usage/alerts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for alerts, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "alerts") {
		t.Errorf("expected alerts field, got %s", rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/usage/analytics?days=14", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for analytics, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/usage/analytics?days=zero", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad days, got %d", rec.Code)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	// No gatherer configured: the route is absent.
	rec := doRequest(t, srv.Router(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a gatherer, got %d", rec.Code)
	}

	srv.gatherer = prometheus.NewRegistry()
	rec = doRequest(t, srv.Router(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with a gatherer, got %d", rec.Code)
	}
}

func TestServer_Healthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv.Router(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
