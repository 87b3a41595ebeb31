package archiv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/provenance"
)

func TestAcquire_MonthWithStructuralMismatch(t *testing.T) {
	// WHAT: three sessions, one unparseable detail page: two stored sessions, one skip, partial outcome.
	// WHY: a single broken page must not abort the run or hide the others.
	p := newPortal(t)
	svc := newTestService(t, testConfig(t, p.srv.URL))

	rep, err := svc.Acquire(context.Background(), AcquireOptions{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if rep.Overviews != 1 || rep.Sessions != 2 || rep.PartialSessions != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if len(rep.Skips) != 1 {
		t.Fatalf("skips = %+v, want 1", rep.Skips)
	}
	skip := rep.Skips[0]
	if skip.Kind != SkipStructuralMismatch || skip.SessionID != "6801" || skip.DocumentURL != "" {
		t.Fatalf("skip = %+v", skip)
	}
	if rep.Outcome() != OutcomePartial {
		t.Fatalf("outcome = %s, want partial", rep.Outcome())
	}
	if rep.DocumentsWritten != 6 {
		t.Fatalf("documents written = %d, want 6", rep.DocumentsWritten)
	}
	if rep.RunID == "" {
		t.Fatal("missing run id")
	}

	root := svc.Config().RawRoot
	if _, err := os.Stat(provenance.OverviewPath(root, 2025, 10)); err != nil {
		t.Fatalf("overview not stored: %v", err)
	}
	dir := filepath.Join(root, "2025", "10")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	sessions := 0
	for _, e := range entries {
		if e.IsDir() {
			sessions++
			m, err := provenance.LoadManifest(filepath.Join(dir, e.Name()))
			if err != nil {
				t.Fatal(err)
			}
			if m.Session.Status != provenance.StatusComplete || m.Session.RunID != rep.RunID {
				t.Fatalf("%s: session header = %+v", e.Name(), m.Session)
			}
		}
	}
	if sessions != 2 {
		t.Fatalf("session dirs = %d, want 2", sessions)
	}

	if got := testutil.ToFloat64(svc.metrics.skips.WithLabelValues(SkipStructuralMismatch)); got != 1 {
		t.Fatalf("skip metric = %v", got)
	}
	if got := testutil.ToFloat64(svc.metrics.sessions.WithLabelValues("complete")); got != 2 {
		t.Fatalf("session metric = %v", got)
	}
}

func TestAcquire_SecondRunFetchesNoDocuments(t *testing.T) {
	// WHAT: a second run over unchanged documents revalidates with HEAD and performs zero document GETs.
	// WHY: repeated runs must not re-download the corpus.
	p := newPortal(t)
	cfg := testConfig(t, p.srv.URL)
	svc := newTestService(t, cfg)

	if _, err := svc.Acquire(context.Background(), AcquireOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	gets1, _ := p.counts()
	if gets1 != 6 {
		t.Fatalf("first run document GETs = %d, want 6", gets1)
	}

	rep, err := svc.Acquire(context.Background(), AcquireOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	gets2, heads := p.counts()
	if gets2 != gets1 {
		t.Fatalf("second run issued %d document GETs", gets2-gets1)
	}
	if heads != 6 || rep.Probes != 6 {
		t.Fatalf("probes: server %d report %d, want 6", heads, rep.Probes)
	}
	if rep.DocumentsUnchanged != 6 || rep.DocumentsWritten != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestAcquire_DocumentFailureMarksPartial(t *testing.T) {
	// WHAT: a 404 document is skipped with its URL and leaves its session partial.
	p := newPortal(t)
	p.missingDoc = true
	svc := newTestService(t, testConfig(t, p.srv.URL))

	rep, err := svc.Acquire(context.Background(), AcquireOptions{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if rep.Sessions != 2 || rep.PartialSessions != 1 {
		t.Fatalf("report = %+v", rep)
	}
	var docSkip *Skip
	for i := range rep.Skips {
		if rep.Skips[i].DocumentURL != "" {
			docSkip = &rep.Skips[i]
		}
	}
	if docSkip == nil || docSkip.Kind != SkipPermanent || docSkip.SessionID != "6790" {
		t.Fatalf("skips = %+v", rep.Skips)
	}
}

func TestAcquire_NoProgress(t *testing.T) {
	// WHAT: when every overview fetch fails the run returns ErrNoProgress and outcome failed.
	p := newPortal(t)
	p.failAll = true
	svc := newTestService(t, testConfig(t, p.srv.URL))

	rep, err := svc.Acquire(context.Background(), AcquireOptions{Months: []int{9, 10}})
	if !errors.Is(err, ErrNoProgress) {
		t.Fatalf("err = %v, want ErrNoProgress", err)
	}
	if rep.Outcome() != OutcomeFailed || rep.OverviewFailures != 2 {
		t.Fatalf("report = %+v", rep)
	}
	for _, s := range rep.Skips {
		if s.Kind != SkipPermanent {
			t.Fatalf("skip kind = %s", s.Kind)
		}
	}
}

func TestAcquire_EmptyMonthIsProgress(t *testing.T) {
	// WHAT: a month without sessions stores its overview and completes.
	p := newPortal(t)
	svc := newTestService(t, testConfig(t, p.srv.URL))

	rep, err := svc.Acquire(context.Background(), AcquireOptions{Months: []int{11}})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if rep.Outcome() != OutcomeComplete || rep.Sessions != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestAcquire_Cancelled(t *testing.T) {
	p := newPortal(t)
	svc := newTestService(t, testConfig(t, p.srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := svc.Acquire(ctx, AcquireOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !rep.Cancelled {
		t.Fatal("report not marked cancelled")
	}
}

func TestAcquire_UnwritableRoot(t *testing.T) {
	// WHAT: a storage failure aborts the run with the storage error.
	p := newPortal(t)
	cfg := testConfig(t, p.srv.URL)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.RawRoot = filepath.Join(blocker, "raw")
	svc := newTestService(t, cfg)

	_, err := svc.Acquire(context.Background(), AcquireOptions{})
	if err == nil || errors.Is(err, ErrNoProgress) {
		t.Fatalf("err = %v, want storage error", err)
	}
}

func TestAcquire_InvalidRange(t *testing.T) {
	p := newPortal(t)
	svc := newTestService(t, testConfig(t, p.srv.URL))
	if _, err := svc.Acquire(context.Background(), AcquireOptions{Months: []int{13}}); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}

func TestSkipKind(t *testing.T) {
	cases := map[string]error{
		SkipStructuralMismatch: ErrStructuralMismatch,
		SkipPermanent:          &PermanentError{Locator: "x", StatusCode: 404, Attempts: 1, Err: errors.New("http 404")},
		SkipTransient:          &TransientError{Locator: "x", StatusCode: 503, Err: errors.New("http 503")},
		SkipError:              errors.New("other"),
	}
	for want, err := range cases {
		if got := skipKind(err); got != want {
			t.Errorf("skipKind(%v) = %s, want %s", err, got, want)
		}
	}
}
