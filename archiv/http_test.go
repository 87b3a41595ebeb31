package archiv

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/export"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/index"
)

// acquiredService runs one acquisition against the fake portal and builds
// the index from the stored tree.
func acquiredService(t *testing.T) *Service {
	t.Helper()
	p := newPortal(t)
	svc := newTestService(t, testConfig(t, p.srv.URL))
	ctx := context.Background()
	if _, err := svc.Acquire(ctx, AcquireOptions{}); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	stats, err := svc.BuildIndex(ctx, false, false)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if stats.Sessions != 2 || stats.Documents != 6 {
		t.Fatalf("build stats = %+v", stats)
	}
	return svc
}

func get(t *testing.T, srv *httptest.Server, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func TestRoutes_HeadHealth(t *testing.T) {
	// WHAT: HEAD /health answers 200 with no body.
	// WHY: Uptime checks probe with HEAD; the route is registered as GET only.
	svc := newTestService(t, testConfig(t, "http://127.0.0.1:1"))
	srv := httptest.NewServer(svc.Routes())
	defer srv.Close()

	resp, err := http.Head(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || len(body) != 0 {
		t.Fatalf("HEAD /health: %d %q", resp.StatusCode, body)
	}
}

func TestRoutes(t *testing.T) {
	// WHAT: the read-only API answers from the index built after an acquisition run.
	// WHY: this is the path from portal to consumer in one piece.
	svc := acquiredService(t)
	srv := httptest.NewServer(svc.Routes())
	defer srv.Close()

	code, body := get(t, srv, "/health")
	if code != 200 || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("health: %d %s", code, body)
	}

	code, body = get(t, srv, "/api/sessions?year=2025&month=10")
	if code != 200 {
		t.Fatalf("sessions: %d %s", code, body)
	}
	var sessions []index.Session
	if err := json.Unmarshal(body, &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 || sessions[0].ID != "6773" || sessions[1].ID != "6790" {
		t.Fatalf("sessions = %+v", sessions)
	}

	code, body = get(t, srv, "/api/sessions/6773")
	if code != 200 {
		t.Fatalf("session: %d %s", code, body)
	}
	var view SessionView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatal(err)
	}
	if view.Committee != "Ortsrat Oldendorf" || len(view.Agenda) != 3 {
		t.Fatalf("session view = %+v", view)
	}
	if view.Agenda[0].Decision == nil || *view.Agenda[0].Decision != "accepted" || view.Agenda[2].Decision != nil {
		t.Fatalf("decisions = %+v", view.Agenda)
	}

	if code, _ = get(t, srv, "/api/sessions/9999"); code != 404 {
		t.Fatalf("unknown session: %d", code)
	}

	code, body = get(t, srv, "/api/documents?type=beschlussvorlage")
	if code != 200 {
		t.Fatalf("documents: %d %s", code, body)
	}
	var docs []index.Document
	if err := json.Unmarshal(body, &docs); err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].SessionID != "6790" || docs[0].LocalPath == "" {
		t.Fatalf("documents = %+v", docs)
	}

	code, body = get(t, srv, "/api/stats")
	if code != 200 {
		t.Fatalf("stats: %d %s", code, body)
	}
	var stats StatsView
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Sessions != 2 || stats.Documents != 6 || stats.DocumentTypes["beschlussvorlage"] != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	code, body = get(t, srv, "/metrics")
	if code != 200 || !strings.Contains(string(body), "ratsarchiv_acquire_sessions_total") {
		t.Fatalf("metrics: %d", code)
	}
}

func TestRoutes_Export(t *testing.T) {
	svc := acquiredService(t)
	srv := httptest.NewServer(svc.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/export", "application/json",
		strings.NewReader(`{"committees":["Ortsrat Oldendorf"],"document_types":["PROTOKOLL"]}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("export: %d", resp.StatusCode)
	}
	var b export.Batch
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatal(err)
	}
	if len(b.Documents) != 1 || b.Documents[0].Title != "Protokoll öffentlich" {
		t.Fatalf("batch = %+v", b.Documents)
	}
	if len(b.Filters.DocumentTypes) != 1 || b.Filters.DocumentTypes[0] != "protokoll" {
		t.Fatalf("normalized filter = %+v", b.Filters)
	}
}

func TestRoutes_BadRequests(t *testing.T) {
	svc := acquiredService(t)
	srv := httptest.NewServer(svc.Routes())
	defer srv.Close()

	for _, path := range []string{
		"/api/export?date_from=2025-13-01",
		"/api/export?type=gutachten",
		"/api/documents?limit=abc",
		"/api/sessions?year=x",
	} {
		if code, body := get(t, srv, path); code != 400 {
			t.Errorf("%s: %d %s", path, code, body)
		}
	}
}
