package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shiftbrew/dispatch/internal/api"
	"github.com/shiftbrew/dispatch/internal/queue"
	"github.com/shiftbrew/dispatch/internal/render"
	"github.com/shiftbrew/dispatch/internal/repository"
	"github.com/shiftbrew/dispatch/internal/service"
	"github.com/shiftbrew/dispatch/internal/whitelist"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	repo := repository.NewMockJobRepository()
	q := queue.New(16)
	producer := service.NewProducer(
		repo, q, render.NewRegistry(),
		whitelist.NewStatic([]string{"1000", "2000"}),
		5, zap.NewNop(),
	)
	monitor := service.NewMonitor(repo, q)
	return api.NewRouter(producer, monitor, nil, prometheus.NewRegistry(), zap.NewNop())
}

func doRequest(t *testing.T, mux http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for k, v := range header {
		r.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, r)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	return m
}

const submitBody = `{"kind":"registration_update","recipient":"12345","payload":{"approved":"yes"}}`

func TestCreateNotification(t *testing.T) {
	mux := newTestRouter(t)

	rr := doRequest(t, mux, http.MethodPost, "/api/v1/notifications", submitBody, nil)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected Content-Type application/json, got %q", ct)
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Fatal("expected X-Correlation-ID response header")
	}

	body := decodeJSON(t, rr)
	if body["id"] == "" {
		t.Fatalf("expected a job id, got %v", body)
	}
	if body["state"] != "pending" {
		t.Fatalf("expected state pending, got %v", body["state"])
	}
}

func TestCreateNotification_IdempotencyKeyReturnsExisting(t *testing.T) {
	mux := newTestRouter(t)
	header := map[string]string{"X-Idempotency-Key": "req-42"}

	first := doRequest(t, mux, http.MethodPost, "/api/v1/notifications", submitBody, header)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first submit, got %d body=%q", first.Code, first.Body.String())
	}

	second := doRequest(t, mux, http.MethodPost, "/api/v1/notifications", submitBody, header)
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate submit, got %d body=%q", second.Code, second.Body.String())
	}
	if got, want := decodeJSON(t, second)["id"], decodeJSON(t, first)["id"]; got != want {
		t.Fatalf("expected duplicate to return the original job %v, got %v", want, got)
	}
}

func TestCreateNotification_BadRequests(t *testing.T) {
	mux := newTestRouter(t)

	cases := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"malformed json", `{"kind":`, http.StatusBadRequest},
		{"unknown kind", `{"kind":"carrier_pigeon","recipient":"1","payload":{"x":"y"}}`, http.StatusUnprocessableEntity},
		{"missing recipient", `{"kind":"registration_update","payload":{"approved":"yes"}}`, http.StatusUnprocessableEntity},
		{"bad payload field", `{"kind":"registration_update","recipient":"1","payload":{"approved":"maybe"}}`, http.StatusUnprocessableEntity},
		{"operator kind for outsider", `{"kind":"manager_note","recipient":"99999","payload":{"text":"hi"}}`, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, mux, http.MethodPost, "/api/v1/notifications", tc.body, nil)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d body=%q", tc.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestGetNotification(t *testing.T) {
	mux := newTestRouter(t)

	created := doRequest(t, mux, http.MethodPost, "/api/v1/notifications", submitBody, nil)
	id, _ := decodeJSON(t, created)["id"].(string)
	if id == "" {
		t.Fatalf("expected created job id, got body=%q", created.Body.String())
	}

	rr := doRequest(t, mux, http.MethodGet, "/api/v1/notifications/"+id, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if got := decodeJSON(t, rr)["id"]; got != id {
		t.Fatalf("expected job %s, got %v", id, got)
	}

	missing := doRequest(t, mux, http.MethodGet, "/api/v1/notifications/no-such-job", "", nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d body=%q", missing.Code, missing.Body.String())
	}
}

func TestListNotifications_FiltersAndPaginates(t *testing.T) {
	mux := newTestRouter(t)

	for i := 0; i < 3; i++ {
		rr := doRequest(t, mux, http.MethodPost, "/api/v1/notifications", submitBody, nil)
		if rr.Code != http.StatusCreated {
			t.Fatalf("seed submit %d failed: %d body=%q", i, rr.Code, rr.Body.String())
		}
	}

	rr := doRequest(t, mux, http.MethodGet, "/api/v1/notifications?state=pending&limit=2", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}

	body := decodeJSON(t, rr)
	if total, _ := body["total"].(float64); total != 3 {
		t.Fatalf("expected total 3, got %v", body["total"])
	}
	data, ok := body["data"].([]any)
	if !ok || len(data) != 2 {
		t.Fatalf("expected 2 jobs on the page, got %v", body["data"])
	}
	if limit, _ := body["limit"].(float64); limit != 2 {
		t.Fatalf("expected limit echo 2, got %v", body["limit"])
	}

	empty := doRequest(t, mux, http.MethodGet, "/api/v1/notifications?state=delivered", "", nil)
	if total, _ := decodeJSON(t, empty)["total"].(float64); total != 0 {
		t.Fatalf("expected no delivered jobs, got total %v", total)
	}
}

func TestBroadcast(t *testing.T) {
	mux := newTestRouter(t)
	body := `{"kind":"new_barista_alert","payload":{"barista_name":"Ada","barista_phone":"+3611","cafe_name":"Corner"}}`

	rr := doRequest(t, mux, http.MethodPost, "/api/v1/notifications/broadcast", body, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%q", rr.Code, rr.Body.String())
	}

	resp := decodeJSON(t, rr)
	if count, _ := resp["count"].(float64); count != 2 {
		t.Fatalf("expected a job per whitelisted operator, got count %v", resp["count"])
	}
	ids, ok := resp["job_ids"].([]any)
	if !ok || len(ids) != 2 {
		t.Fatalf("expected 2 job ids, got %v", resp["job_ids"])
	}
}

func TestBroadcast_RejectsNonOperatorKind(t *testing.T) {
	mux := newTestRouter(t)
	body := `{"kind":"registration_update","payload":{"approved":"yes"}}`

	rr := doRequest(t, mux, http.MethodPost, "/api/v1/notifications/broadcast", body, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestStats(t *testing.T) {
	mux := newTestRouter(t)

	if rr := doRequest(t, mux, http.MethodPost, "/api/v1/notifications", submitBody, nil); rr.Code != http.StatusCreated {
		t.Fatalf("seed submit failed: %d body=%q", rr.Code, rr.Body.String())
	}

	rr := doRequest(t, mux, http.MethodGet, "/api/v1/stats", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}

	body := decodeJSON(t, rr)
	counts, ok := body["jobs_by_state"].(map[string]any)
	if !ok {
		t.Fatalf("expected jobs_by_state object, got %v", body)
	}
	if pending, _ := counts["pending"].(float64); pending != 1 {
		t.Fatalf("expected 1 pending job, got %v", counts["pending"])
	}
	if depth, _ := body["queue_depth"].(float64); depth != 1 {
		t.Fatalf("expected queue depth 1, got %v", body["queue_depth"])
	}
}

func TestHealthAndReady(t *testing.T) {
	mux := newTestRouter(t)

	health := doRequest(t, mux, http.MethodGet, "/health", "", nil)
	if health.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", health.Code)
	}
	if got := decodeJSON(t, health)["status"]; got != "ok" {
		t.Fatalf("expected status ok, got %v", got)
	}

	// No pinger wired: readiness degrades to liveness.
	ready := doRequest(t, mux, http.MethodGet, "/ready", "", nil)
	if ready.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", ready.Code)
	}
}

func TestMetricsScrapeEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	rr := doRequest(t, mux, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	mux := newTestRouter(t)

	rr := doRequest(t, mux, http.MethodGet, "/health", "", map[string]string{"X-Correlation-ID": "trace-me"})
	if got := rr.Header().Get("X-Correlation-ID"); got != "trace-me" {
		t.Fatalf("expected the caller's correlation id echoed back, got %q", got)
	}
}
