package provenance

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/parse"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/transport"
)

// Revalidate selects how an already stored document is checked for changes.
type Revalidate string

const (
	// RevalidateHead probes with HEAD and compares ETag, Last-Modified and
	// Content-Length against the manifest entry.
	RevalidateHead Revalidate = "head"
	// RevalidateNever trusts a stored file whose hash still matches.
	RevalidateNever Revalidate = "never"
	// RevalidateAlways fetches every document.
	RevalidateAlways Revalidate = "always"
)

// ParseRevalidate maps a config value to a policy; unknown values fall back to head.
func ParseRevalidate(s string) Revalidate {
	switch Revalidate(s) {
	case RevalidateNever, RevalidateAlways:
		return Revalidate(s)
	}
	return RevalidateHead
}

// Source fetches documents. *transport.Governor implements it.
type Source interface {
	Fetch(ctx context.Context, locator string) (*transport.Response, error)
	Probe(ctx context.Context, locator string) (transport.Metadata, error)
}

// FailedDocument identifies a document whose fetch failed.
type FailedDocument struct {
	Title     string
	URL       string
	TopNumber string
	Err       error
}

// SyncResult summarizes one SyncDocuments call.
type SyncResult struct {
	Dir          string
	Entries      []ManifestEntry // current entry of every processed document
	Written      int             // new files on disk
	Deduplicated int             // new entries pointing at an existing file
	Unchanged    int             // documents needing no new entry
	Failed       []FailedDocument
}

// Writer lays out artifacts under a raw root.
type Writer struct {
	root   string
	policy Revalidate
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a Writer rooted at root.
func NewWriter(root string, policy Revalidate, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = RevalidateHead
	}
	return &Writer{root: root, policy: policy, logger: logger, now: time.Now}
}

// Root returns the raw root.
func (w *Writer) Root() string { return w.root }

// WriteOverview stores a monthly overview page.
func (w *Writer) WriteOverview(year, month int, raw []byte) (string, error) {
	p := OverviewPath(w.root, year, month)
	return p, WriteRaw(p, raw)
}

// WriteDetail stores a session detail page and returns the session dir.
func (w *Writer) WriteDetail(s parse.SessionReference, raw []byte) (string, error) {
	dir := SessionDir(w.root, s)
	return dir, WriteRaw(filepath.Join(dir, DetailFile), raw)
}

// SyncDocuments brings the stored copies of docs up to date. Documents are
// processed in order; the manifest is persisted after each one, so a
// cancelled call keeps everything completed before it.
func (w *Writer) SyncDocuments(ctx context.Context, detail *parse.SessionDetail, docs []parse.DocumentReference, src Source) (*SyncResult, error) {
	dir := SessionDir(w.root, detail.Session)
	res := &SyncResult{Dir: dir}
	m, err := LoadManifest(dir)
	if err != nil {
		return res, err
	}

	agendaDirs := make(map[string]string, len(detail.Agenda))
	for _, item := range detail.Agenda {
		agendaDirs[item.Number] = AgendaDirName(item)
	}

	log := w.logger.With("session_id", detail.Session.ID)
	for _, ref := range docs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		prior, hasPrior := m.CurrentFor(ref.URL, ref.TopNumber)
		priorIntact := hasPrior && w.intact(dir, prior)
		if priorIntact && w.reusable(ctx, prior, src) {
			res.Unchanged++
			res.Entries = append(res.Entries, prior)
			continue
		}

		resp, err := src.Fetch(ctx, ref.URL)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn("provenance: document fetch failed", "url", ref.URL, "top", ref.TopNumber, "error", err)
			res.Failed = append(res.Failed, FailedDocument{Title: ref.Title, URL: ref.URL, TopNumber: ref.TopNumber, Err: err})
			continue
		}
		sum := SHA1(resp.Body)

		if hasPrior && prior.SHA1 == sum {
			if !priorIntact {
				if err := WriteRaw(filepath.Join(dir, filepath.FromSlash(prior.Path)), resp.Body); err != nil {
					return res, err
				}
			}
			res.Unchanged++
			res.Entries = append(res.Entries, prior)
			continue
		}

		entry := ManifestEntry{
			URL:                ref.URL,
			Title:              ref.Title,
			Category:           ref.Category,
			DocumentType:       ref.Type,
			TopAssociation:     ref.TopNumber,
			SHA1:               sum,
			ContentType:        resp.Meta.ContentType,
			ContentDisposition: resp.Meta.ContentDisposition,
			ContentLength:      resp.Meta.ContentLength,
			ETag:               resp.Meta.ETag,
			LastModified:       resp.Meta.LastModified,
			RetrievedAt:        w.now().UTC().Format(time.RFC3339),
		}

		if same, ok := m.ByHash(sum); ok && w.intact(dir, same) {
			entry.Path = same.Path
			res.Deduplicated++
		} else {
			sub := SessionDocsDir
			if ref.TopNumber != "" {
				sub = agendaDirs[ref.TopNumber]
				if sub == "" {
					sub = path.Join(AgendaDir, Slug(ref.TopNumber))
				}
			}
			rel, present, err := w.place(dir, sub, ref.Title, DetectExtension(resp.Meta, ref.URL), sum)
			if err != nil {
				return res, err
			}
			entry.Path = rel
			if present {
				res.Deduplicated++
			} else {
				if err := WriteRaw(filepath.Join(dir, filepath.FromSlash(rel)), resp.Body); err != nil {
					return res, err
				}
				res.Written++
			}
		}

		m.Entries = append(m.Entries, entry)
		if err := m.Save(dir); err != nil {
			return res, err
		}
		res.Entries = append(res.Entries, entry)
		log.Debug("provenance: document stored", "path", entry.Path, "sha1", sum)
	}
	return res, nil
}

// intact reports whether the entry's file exists with the recorded hash.
func (w *Writer) intact(dir string, e ManifestEntry) bool {
	if e.Path == "" {
		return false
	}
	sum, ok := fileSHA1(filepath.Join(dir, filepath.FromSlash(e.Path)))
	return ok && sum == e.SHA1
}

// reusable applies the revalidation policy to an intact prior entry.
func (w *Writer) reusable(ctx context.Context, prior ManifestEntry, src Source) bool {
	switch w.policy {
	case RevalidateNever:
		return true
	case RevalidateAlways:
		return false
	}
	meta, err := src.Probe(ctx, prior.URL)
	if err != nil {
		w.logger.Debug("provenance: probe failed, refetching", "url", prior.URL, "error", err)
		return false
	}
	return validatorsMatch(prior, meta)
}

// validatorsMatch compares the validators the server sent; at least one
// must be present.
func validatorsMatch(prior ManifestEntry, meta transport.Metadata) bool {
	known := false
	if meta.ETag != "" {
		if meta.ETag != prior.ETag {
			return false
		}
		known = true
	}
	if meta.LastModified != "" {
		if meta.LastModified != prior.LastModified {
			return false
		}
		known = true
	}
	if meta.ContentLength > 0 {
		if meta.ContentLength != prior.ContentLength {
			return false
		}
		known = true
	}
	return known
}

// place chooses a free relative path sub/<slug(title)><ext>; a name held by
// different content gets the short hash appended. present reports that the
// chosen path already holds these exact bytes.
func (w *Writer) place(dir, sub, title, ext, sum string) (rel string, present bool, err error) {
	base := capSlug(Slug(title), 80)
	if base == "" {
		base = "dokument"
	}
	for _, name := range []string{base + ext, base + "_" + sum[:8] + ext} {
		rel = path.Join(sub, name)
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if !exists(abs) {
			return rel, false, nil
		}
		if got, ok := fileSHA1(abs); ok && got == sum {
			return rel, true, nil
		}
	}
	return "", false, fmt.Errorf("provenance: %s already holds different content", rel)
}

// Finalize records the session header and status in the manifest and
// rewrites the agenda summary.
func (w *Writer) Finalize(detail *parse.SessionDetail, status SessionStatus, runID string) error {
	dir := SessionDir(w.root, detail.Session)
	m, err := LoadManifest(dir)
	if err != nil {
		return err
	}
	m.Session = SessionInfo{
		SessionReference: detail.Session,
		Status:           status,
		RunID:            runID,
		UpdatedAt:        w.now().UTC().Format(time.RFC3339),
	}
	if m.Entries == nil {
		m.Entries = []ManifestEntry{}
	}
	if err := m.Save(dir); err != nil {
		return err
	}
	return WriteAgendaSummary(dir, detail, m)
}
