// CLAUDE:SUMMARY Read operations over the index shared by the HTTP API and the MCP tools.
package archiv

import (
	"context"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/export"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/index"
)

// DefaultListLimit caps list results when the caller sets no limit.
const DefaultListLimit = 500

// SessionView is a session with its agenda.
type SessionView struct {
	index.Session
	Agenda []index.AgendaItem `json:"agenda"`
}

// StatsView adds the document type distribution to the index counters.
type StatsView struct {
	index.Stats
	DocumentTypes map[doctype.Type]int `json:"document_types"`
}

// Sessions lists indexed sessions.
func (s *Service) Sessions(ctx context.Context, f index.SessionFilter) ([]index.Session, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	return s.index.Sessions(ctx, f)
}

// Session returns one session and its agenda; ErrNotFound for unknown IDs.
func (s *Service) Session(ctx context.Context, id string) (*SessionView, error) {
	sess, err := s.index.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.index.AgendaItems(ctx, id)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []index.AgendaItem{}
	}
	return &SessionView{Session: *sess, Agenda: items}, nil
}

// Documents lists indexed documents selected by an export filter, in
// export order. Text extraction members of f are ignored.
func (s *Service) Documents(ctx context.Context, f export.Filter, limit int) ([]index.Document, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	q := f.Query()
	q.Limit = limit
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	docs, err := s.index.Documents(ctx, q)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []index.Document{}
	}
	return docs, nil
}

// Stats returns index counters and the type distribution.
func (s *Service) Stats(ctx context.Context) (*StatsView, error) {
	st, err := s.index.Stats(ctx)
	if err != nil {
		return nil, err
	}
	dist, err := s.index.TypeDistribution(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsView{Stats: *st, DocumentTypes: dist}, nil
}
