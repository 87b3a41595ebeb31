package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/content"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/provenance"
	"github.com/hazyhaar/ratsarchiv/dbopen"
)

// BuildOptions control Build.
type BuildOptions struct {
	SkipExisting   bool // sessions already indexed are left untouched
	ExtractContent bool // run the content extractor on every stored file
	Content        content.Options
}

// BuildStats counts what Build wrote.
type BuildStats struct {
	Sessions    int `json:"sessions"`
	Skipped     int `json:"skipped"`
	AgendaItems int `json:"agenda_items"`
	Documents   int `json:"documents"`
}

var sessionDirRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[-_](.+)[-_]([^-_]+)$`)

// Build projects every session directory under rawRoot into the index.
// Each session is replaced in one transaction: its rows are deleted, then
// the session, its agenda items and its current documents are inserted.
func (ix *Index) Build(ctx context.Context, rawRoot string, opts BuildOptions) (*BuildStats, error) {
	existing := map[string]bool{}
	if opts.SkipExisting {
		ids, err := ix.sessionIDs(ctx)
		if err != nil {
			return nil, err
		}
		existing = ids
	}

	dirs, err := sessionDirs(rawRoot)
	if err != nil {
		return nil, err
	}

	stats := &BuildStats{}
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		proj, err := ix.project(rawRoot, dir, opts)
		if err != nil {
			ix.logger.Warn("index: session dir skipped", "dir", dir, "error", err)
			stats.Skipped++
			continue
		}
		if proj == nil || existing[proj.session.ID] {
			stats.Skipped++
			continue
		}
		err = dbopen.RunTx(ctx, ix.db, func(tx *sql.Tx) error {
			if err := deleteSessionRows(ctx, tx, proj.session.ID); err != nil {
				return err
			}
			if err := upsertSession(ctx, tx, proj.session); err != nil {
				return err
			}
			for _, a := range proj.agenda {
				if err := insertAgendaItem(ctx, tx, a); err != nil {
					return err
				}
			}
			for _, d := range proj.documents {
				if err := insertDocument(ctx, tx, d); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return stats, err
		}
		stats.Sessions++
		stats.AgendaItems += len(proj.agenda)
		stats.Documents += len(proj.documents)
		ix.logger.Debug("index: session indexed", "session_id", proj.session.ID,
			"agenda_items", len(proj.agenda), "documents", len(proj.documents))
	}
	ix.logger.Info("index: build done", "sessions", stats.Sessions, "skipped", stats.Skipped,
		"agenda_items", stats.AgendaItems, "documents", stats.Documents)
	return stats, nil
}

func (ix *Index) sessionIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT session_id FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("index: list sessions: %w", err)
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// sessionDirs lists directories holding a session artifact, in lexical
// order. Their subdirectories are not searched.
func sessionDirs(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() || p == root {
			return nil
		}
		for _, name := range []string{provenance.DetailFile, provenance.AgendaSummaryFile, provenance.ManifestFile} {
			if _, err := os.Stat(filepath.Join(p, name)); err == nil {
				out = append(out, p)
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index: walk %s: %w", root, err)
	}
	return out, nil
}

type projection struct {
	session   Session
	agenda    []AgendaItem
	documents []Document
}

// project reads one session directory. A nil projection means the
// directory carries no session identity.
func (ix *Index) project(rawRoot, dir string, opts BuildOptions) (*projection, error) {
	m, err := provenance.LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	summary, err := provenance.LoadAgendaSummary(dir)
	if err != nil {
		return nil, err
	}

	info := m.Session
	if match := sessionDirRe.FindStringSubmatch(filepath.Base(dir)); match != nil {
		if info.Date == "" {
			info.Date = match[1]
		}
		if info.Committee == "" {
			info.Committee = match[2]
		}
		if info.ID == "" {
			info.ID = match[3]
		}
	}
	if info.ID == "" {
		return nil, nil
	}

	rel, err := filepath.Rel(rawRoot, dir)
	if err != nil {
		return nil, err
	}
	p := &projection{session: Session{
		ID:          info.ID,
		Date:        info.Date,
		Committee:   info.Committee,
		MeetingName: info.MeetingName,
		StartTime:   info.StartTime,
		Location:    info.Location,
		DetailURL:   info.DetailURL,
		Path:        filepath.ToSlash(rel),
		Status:      string(info.Status),
	}}
	p.session.Year, p.session.Month = splitDate(info.Date)

	for _, e := range summary {
		p.agenda = append(p.agenda, AgendaItem{
			SessionID:        info.ID,
			TopNumber:        e.Number,
			Title:            e.Title,
			Reporter:         e.Reporter,
			RawStatus:        e.RawStatus,
			Decision:         e.Decision,
			DocumentsPresent: e.DocumentsPresent,
			NeedsReview:      e.NeedsReview,
		})
	}

	for _, e := range m.Current() {
		d := Document{
			SessionID:     info.ID,
			TopNumber:     e.TopAssociation,
			Title:         e.Title,
			Category:      e.Category,
			URL:           e.URL,
			SHA1:          e.SHA1,
			RetrievedAt:   e.RetrievedAt,
			ContentType:   e.ContentType,
			ContentLength: e.ContentLength,
		}
		d.DocumentType = classifyDocument(string(e.DocumentType), doctype.Hints{
			Title: e.Title, Category: e.Category, ContentType: e.ContentType, URL: e.URL, Path: e.Path,
		})
		abs, ok := provenance.ResolveLocalPath(dir, e.Path)
		if ok {
			if r, err := filepath.Rel(rawRoot, abs); err == nil {
				d.LocalPath = filepath.ToSlash(r)
			}
		}
		switch {
		case opts.ExtractContent && !ok:
			d.ExtractionStatus = string(content.StatusMissingFile)
			d.ParsingQuality = string(content.LevelFailed)
		case opts.ExtractContent:
			res := content.ExtractFile(abs, content.Hint{
				DocumentType: d.DocumentType,
				ContentType:  e.ContentType,
				Filename:     path.Base(e.Path),
				Title:        e.Title,
			}, opts.Content)
			d.ExtractionStatus = string(res.Status)
			d.ParsingQuality = string(res.ParsingQuality)
			if !res.Fields.Empty() {
				if raw, err := json.Marshal(res.Fields); err == nil {
					d.StructuredFields = raw
				}
			}
		}
		p.documents = append(p.documents, d)
	}
	return p, nil
}
