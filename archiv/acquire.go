// CLAUDE:SUMMARY Acquisition run: overview → detail → documents → manifest for each month, with per-item skips and a run report.
// CLAUDE:EXPORTS AcquireOptions, RunReport, Skip, Outcome, Acquire
package archiv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/parse"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/provenance"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/transport"
	"github.com/hazyhaar/ratsarchiv/idgen"
)

// AcquireOptions selects the months of one run. Zero values fall back to
// the configured year and months.
type AcquireOptions struct {
	Year   int
	Months []int
}

// Outcome summarizes a run for the exit code.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomePartial  Outcome = "partial"
	OutcomeFailed   Outcome = "failed"
)

// Skip kinds.
const (
	SkipStructuralMismatch = "structural_mismatch"
	SkipPermanent          = "permanent"
	SkipTransient          = "transient"
	SkipError              = "error"
)

// Skip records an item the run could not process. SessionID is empty for
// overview pages; DocumentURL is set for documents only.
type Skip struct {
	Kind        string `json:"kind"`
	Locator     string `json:"locator"`
	SessionID   string `json:"session_id,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
	Reason      string `json:"reason"`
}

// RunReport is the result of one acquisition run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Year       int       `json:"year"`
	Months     []int     `json:"months"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Overviews        int `json:"overviews"`
	OverviewFailures int `json:"overview_failures"`
	Sessions         int `json:"sessions"`
	PartialSessions  int `json:"partial_sessions"`

	DocumentsWritten      int `json:"documents_written"`
	DocumentsDeduplicated int `json:"documents_deduplicated"`
	DocumentsUnchanged    int `json:"documents_unchanged"`

	Requests int `json:"requests"` // GETs on the network
	Probes   int `json:"probes"`   // HEADs on the network

	Skips     []Skip `json:"skips"`
	Cancelled bool   `json:"cancelled"`
}

// Outcome is failed when no overview was stored, partial when anything was
// skipped or the run was cancelled, complete otherwise.
func (r *RunReport) Outcome() Outcome {
	switch {
	case r.Overviews == 0:
		return OutcomeFailed
	case len(r.Skips) > 0 || r.Cancelled:
		return OutcomePartial
	}
	return OutcomeComplete
}

// Acquire fetches and stores the given months. Per-item failures become
// skips; the returned error is reserved for ErrNoProgress, storage failures
// and cancellation. The report is returned in every case.
func (s *Service) Acquire(ctx context.Context, opts AcquireOptions) (*RunReport, error) {
	year := opts.Year
	if year == 0 {
		year = s.config.Year
	}
	if year == 0 {
		year = time.Now().Year()
	}
	months := opts.Months
	if len(months) == 0 {
		months = s.config.Months
	}
	if year < 1900 || year > 9999 {
		return nil, fmt.Errorf("%w: year %d", ErrInvalidRange, year)
	}
	for _, m := range months {
		if m < 1 || m > 12 {
			return nil, fmt.Errorf("%w: month %d", ErrInvalidRange, m)
		}
	}

	rep := &RunReport{
		RunID:     idgen.RunID(),
		Year:      year,
		Months:    months,
		StartedAt: time.Now().UTC(),
		Skips:     []Skip{},
	}
	r := &run{
		svc:    s,
		report: rep,
		logger: s.logger.With("run_id", rep.RunID),
		seen:   make(map[string]bool),
	}

	cache := transport.NewRunCache()
	defer cache.Close()
	audit := transport.NewAuditLog()
	gopts := []transport.Option{
		transport.WithLogger(r.logger),
		transport.WithAuditLog(audit),
		transport.WithMetrics(transport.NewMetrics(s.registry)),
	}
	if s.httpClient != nil {
		gopts = append(gopts, transport.WithHTTPClient(s.httpClient))
	}
	gopts = append(gopts, s.govOpts...)
	r.gov = transport.New(s.config.governorConfig(), cache, gopts...)

	r.logger.Info("acquire: run started", "year", year, "months", months)
	err := r.months(ctx, year, months)

	rep.FinishedAt = time.Now().UTC()
	rep.Requests = audit.NetworkCalls("GET")
	rep.Probes = audit.NetworkCalls("HEAD")
	if err != nil && ctx.Err() != nil {
		rep.Cancelled = true
	}
	if err == nil && rep.Overviews == 0 {
		err = ErrNoProgress
	}

	r.logger.Info("acquire: run finished",
		"outcome", rep.Outcome(),
		"sessions", rep.Sessions,
		"partial_sessions", rep.PartialSessions,
		"skips", len(rep.Skips),
		"requests", rep.Requests,
		"duration", rep.FinishedAt.Sub(rep.StartedAt),
	)
	return rep, err
}

// run holds the state of one Acquire call.
type run struct {
	svc    *Service
	gov    *transport.Governor
	report *RunReport
	logger *slog.Logger
	seen   map[string]bool
}

func (r *run) months(ctx context.Context, year int, months []int) error {
	for _, month := range months {
		if err := ctx.Err(); err != nil {
			return err
		}
		refs, err := r.overview(ctx, year, month)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if r.seen[ref.ID] {
				continue
			}
			r.seen[ref.ID] = true
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.session(ctx, ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// overview returns the sessions listed for one month. A nil slice with a
// nil error means the month was skipped.
func (r *run) overview(ctx context.Context, year, month int) ([]parse.SessionReference, error) {
	locator := r.svc.config.overviewLocator(year, month)
	resp, err := r.gov.Fetch(ctx, locator)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.report.OverviewFailures++
		r.skip(Skip{Kind: skipKind(err), Locator: locator, Reason: err.Error()})
		return nil, nil
	}
	if _, err := r.svc.writer.WriteOverview(year, month, resp.Body); err != nil {
		return nil, err
	}
	r.report.Overviews++

	refs, strategy, err := parse.ParseOverviewStrategy(resp.Body, resp.Locator)
	if err != nil {
		r.skip(Skip{Kind: skipKind(err), Locator: resp.Locator, Reason: err.Error()})
		return nil, nil
	}
	r.logger.Info("acquire: overview parsed", "year", year, "month", month, "sessions", len(refs), "strategy", strategy)
	return refs, nil
}

// session processes one session. Only storage failures and cancellation
// are returned.
func (r *run) session(ctx context.Context, ref parse.SessionReference) error {
	log := r.logger.With("session_id", ref.ID)
	resp, err := r.gov.Fetch(ctx, ref.DetailURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.skip(Skip{Kind: skipKind(err), Locator: ref.DetailURL, SessionID: ref.ID, Reason: err.Error()})
		return nil
	}

	detail, err := parse.ParseDetail(resp.Body, resp.Locator)
	if err != nil {
		r.skip(Skip{Kind: skipKind(err), Locator: resp.Locator, SessionID: ref.ID, Reason: err.Error()})
		return nil
	}
	// The overview listing names the session directory; the detail page fills gaps.
	detail.Session = ref.Merge(detail.Session)

	if _, err := r.svc.writer.WriteDetail(detail.Session, resp.Body); err != nil {
		return err
	}

	res, syncErr := r.svc.writer.SyncDocuments(ctx, detail, detail.AllDocuments(), r.gov)
	if res != nil {
		r.report.DocumentsWritten += res.Written
		r.report.DocumentsDeduplicated += res.Deduplicated
		r.report.DocumentsUnchanged += res.Unchanged
		r.svc.metrics.documents.WithLabelValues("written").Add(float64(res.Written))
		r.svc.metrics.documents.WithLabelValues("deduplicated").Add(float64(res.Deduplicated))
		r.svc.metrics.documents.WithLabelValues("unchanged").Add(float64(res.Unchanged))
		r.svc.metrics.documents.WithLabelValues("failed").Add(float64(len(res.Failed)))
		for _, f := range res.Failed {
			r.skip(Skip{
				Kind:        skipKind(f.Err),
				Locator:     resp.Locator,
				SessionID:   ref.ID,
				DocumentURL: f.URL,
				Reason:      f.Err.Error(),
			})
		}
	}

	status := provenance.StatusComplete
	if syncErr != nil || (res != nil && len(res.Failed) > 0) {
		status = provenance.StatusPartial
	}
	if err := r.svc.writer.Finalize(detail, status, r.report.RunID); err != nil {
		return err
	}
	if syncErr != nil {
		return syncErr
	}

	r.report.Sessions++
	if status == provenance.StatusPartial {
		r.report.PartialSessions++
	}
	r.svc.metrics.sessions.WithLabelValues(string(status)).Inc()
	log.Info("acquire: session stored", "status", status, "documents", len(res.Entries), "strategy", detail.Strategy)
	return nil
}

func (r *run) skip(s Skip) {
	r.report.Skips = append(r.report.Skips, s)
	r.svc.metrics.skips.WithLabelValues(s.Kind).Inc()
	r.logger.Warn("acquire: skipped",
		"kind", s.Kind,
		"locator", s.Locator,
		"session_id", s.SessionID,
		"document_url", s.DocumentURL,
		"reason", s.Reason,
	)
}

func skipKind(err error) string {
	var perm *transport.PermanentError
	var trans *transport.TransientError
	switch {
	case errors.Is(err, parse.ErrStructuralMismatch):
		return SkipStructuralMismatch
	case errors.As(err, &perm):
		return SkipPermanent
	case errors.As(err, &trans):
		return SkipTransient
	}
	return SkipError
}
