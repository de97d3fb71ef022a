package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Pathwise-Labs/Elicit/internal/config"
	"github.com/Pathwise-Labs/Elicit/internal/engine"
	"github.com/Pathwise-Labs/Elicit/internal/session"
	"github.com/Pathwise-Labs/Elicit/internal/store"
	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

func testLibrary(t *testing.T) *vignette.Library {
	t.Helper()
	mustV := func(id string, a, b map[string]string) *vignette.Vignette {
		v, err := vignette.New(id, "scenario "+id,
			vignette.Option{ID: vignette.OptionA, Text: "Offer A", Attributes: a},
			vignette.Option{ID: vignette.OptionB, Text: "Offer B", Attributes: b},
		)
		if err != nil {
			t.Fatalf("vignette %s: %v", id, err)
		}
		return v
	}
	vs := []*vignette.Vignette{
		mustV("static_begin_001",
			map[string]string{"wage": "above_market"},
			map[string]string{"flexibility": "full_flexibility", "remote_work": "fully_remote"}),
		mustV("adapt_001",
			map[string]string{"job_security": "permanent"},
			map[string]string{"career_growth": "fast_track"}),
		mustV("adapt_002",
			map[string]string{"task_variety": "highly_varied"},
			map[string]string{"social_interaction": "highly_collaborative"}),
		mustV("static_end_001",
			map[string]string{"commute_time": "short"},
			map[string]string{"wage": "above_market"}),
	}
	lib, err := vignette.NewLibrary([]string{"static_begin_001"}, []string{"static_end_001"}, vs)
	if err != nil {
		t.Fatalf("library: %v", err)
	}
	return lib
}

func setupTestRouter(t *testing.T) (http.Handler, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Adaptive: config.AdaptiveConfig{
			PriorVariance:            1.0,
			MinVignettes:             1,
			MaxVignettes:             2,
			FIMDetThreshold:          1e12,
			MaxVarianceThreshold:     1e-9,
			Temperature:              1.0,
			MaxNewtonIterations:      25,
			ConvergenceTolerance:     1e-6,
			UncertaintyThreshold:     0.5,
			FIMRegularization:        1e-6,
			CovarianceRegularization: 1e-6,
		},
		Session: config.SessionConfig{SweepIntervalMs: 60000, AbandonAfterMs: 1800000},
	}
	e, err := engine.New(ms, nil, nil, testLibrary(t), cfg, logger)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return NewRouter(e, ms, "test-token", logger), ms
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != "" {
		buf = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("X-Client-ID", "orchestrator")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateSession(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, "POST", "/api/v1/sessions", `{"session_id":"s1","user_context":{"occupation":"nurse"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var snap session.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.SessionID != "s1" {
		t.Errorf("expected session s1, got %s", snap.SessionID)
	}
	if snap.Status != session.StatusActive {
		t.Errorf("expected active, got %s", snap.Status)
	}
	if len(snap.CompletedVignettes) != 0 {
		t.Errorf("expected no completed vignettes, got %d", len(snap.CompletedVignettes))
	}
}

func TestCreateSessionDuplicate(t *testing.T) {
	router, _ := setupTestRouter(t)

	doJSON(t, router, "POST", "/api/v1/sessions", `{"session_id":"s1"}`)
	w := doJSON(t, router, "POST", "/api/v1/sessions", `{"session_id":"s1"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestCreateSessionGeneratesID(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, "POST", "/api/v1/sessions", `{}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var snap session.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if snap.SessionID == "" {
		t.Error("expected a generated session id")
	}
}

func TestMissingClientID(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/sessions/s1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestSessionFlow(t *testing.T) {
	router, _ := setupTestRouter(t)

	doJSON(t, router, "POST", "/api/v1/sessions", `{"session_id":"s1"}`)

	w := doJSON(t, router, "POST", "/api/v1/sessions/s1/next", "")
	if w.Code != http.StatusOK {
		t.Fatalf("next: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var next engine.NextResult
	if err := json.NewDecoder(w.Body).Decode(&next); err != nil {
		t.Fatalf("decode next: %v", err)
	}
	if next.Complete {
		t.Fatal("fresh session should not be complete")
	}
	if next.Phase != engine.PhaseStaticBeginning {
		t.Errorf("expected phase %s, got %s", engine.PhaseStaticBeginning, next.Phase)
	}
	if next.Vignette == nil || next.Vignette.ID != "static_begin_001" {
		t.Fatalf("expected static_begin_001, got %+v", next.Vignette)
	}

	w = doJSON(t, router, "POST", "/api/v1/sessions/s1/choices", `{"vignette_id":"static_begin_001","option_id":"A"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("choices: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var choice ChoiceResponse
	if err := json.NewDecoder(w.Body).Decode(&choice); err != nil {
		t.Fatalf("decode choice: %v", err)
	}
	if choice.ChoiceCount != 1 {
		t.Errorf("expected 1 choice, got %d", choice.ChoiceCount)
	}
	if choice.Status != session.StatusActive {
		t.Errorf("expected active, got %s", choice.Status)
	}

	w = doJSON(t, router, "GET", "/api/v1/sessions/s1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	var snap session.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if len(snap.CompletedVignettes) != 1 || snap.CompletedVignettes[0] != "static_begin_001" {
		t.Errorf("unexpected completed vignettes %v", snap.CompletedVignettes)
	}
}

func TestChoiceValidation(t *testing.T) {
	router, _ := setupTestRouter(t)
	doJSON(t, router, "POST", "/api/v1/sessions", `{"session_id":"s1"}`)

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown session", "/api/v1/sessions/nope/choices", `{"vignette_id":"static_begin_001","option_id":"A"}`, http.StatusNotFound},
		{"unknown vignette", "/api/v1/sessions/s1/choices", `{"vignette_id":"nope","option_id":"A"}`, http.StatusNotFound},
		{"unknown option", "/api/v1/sessions/s1/choices", `{"vignette_id":"static_begin_001","option_id":"C"}`, http.StatusBadRequest},
		{"missing fields", "/api/v1/sessions/s1/choices", `{}`, http.StatusBadRequest},
		{"invalid body", "/api/v1/sessions/s1/choices", `not json`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, "POST", tc.path, tc.body)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}

	// Answering the same vignette twice conflicts.
	doJSON(t, router, "POST", "/api/v1/sessions/s1/choices", `{"vignette_id":"static_begin_001","option_id":"A"}`)
	w := doJSON(t, router, "POST", "/api/v1/sessions/s1/choices", `{"vignette_id":"static_begin_001","option_id":"B"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 on repeat answer, got %d", w.Code)
	}
}

func TestEstimateEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	doJSON(t, router, "POST", "/api/v1/sessions", `{"session_id":"s1"}`)
	doJSON(t, router, "POST", "/api/v1/sessions/s1/choices", `{"vignette_id":"static_begin_001","option_id":"A"}`)

	w := doJSON(t, router, "GET", "/api/v1/sessions/s1/estimate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var est engine.EstimateResult
	if err := json.NewDecoder(w.Body).Decode(&est); err != nil {
		t.Fatalf("decode estimate: %v", err)
	}
	if est.SessionID != "s1" {
		t.Errorf("expected session s1, got %s", est.SessionID)
	}
	if len(est.Dimensions) != 7 {
		t.Errorf("expected 7 dimensions, got %d", len(est.Dimensions))
	}
	if est.ChoiceCount != 1 {
		t.Errorf("expected 1 choice, got %d", est.ChoiceCount)
	}
	if est.Confidence == "" {
		t.Error("expected a confidence tier")
	}

	w = doJSON(t, router, "GET", "/api/v1/sessions/missing/estimate", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing session, got %d", w.Code)
	}
}

func TestExplainEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	doJSON(t, router, "POST", "/api/v1/sessions", `{"session_id":"s1"}`)

	w := doJSON(t, router, "GET", "/api/v1/sessions/s1/explain", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var ex engine.Explanation
	if err := json.NewDecoder(w.Body).Decode(&ex); err != nil {
		t.Fatalf("decode explanation: %v", err)
	}
	if ex.Phase != engine.PhaseStaticBeginning {
		t.Errorf("expected phase %s, got %s", engine.PhaseStaticBeginning, ex.Phase)
	}
	if ex.Stopping.Stop {
		t.Error("stopping should not have fired on a fresh session")
	}
}

func TestAdminStatsRequiresToken(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, "GET", "/api/v1/admin/stats", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAdminStatsWithToken(t *testing.T) {
	router, _ := setupTestRouter(t)
	doJSON(t, router, "POST", "/api/v1/sessions", `{"session_id":"s1"}`)

	req := httptest.NewRequest("GET", "/api/v1/admin/stats", nil)
	req.Header.Set("X-Client-ID", "orchestrator")
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var stats store.SessionStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalSessions != 1 {
		t.Errorf("expected 1 session, got %d", stats.TotalSessions)
	}
	if stats.ActiveSessions != 1 {
		t.Errorf("expected 1 active session, got %d", stats.ActiveSessions)
	}
}

func TestAdminLibrary(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/admin/library", nil)
	req.Header.Set("X-Client-ID", "orchestrator")
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var sum LibrarySummary
	if err := json.NewDecoder(w.Body).Decode(&sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Total != 4 || sum.AdaptivePool != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if len(sum.Dimensions) != 7 {
		t.Errorf("expected 7 dimensions, got %d", len(sum.Dimensions))
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := NewMetricsRouter()
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
