// CLAUDE:SUMMARY Read-only chi HTTP API over the index, plus /metrics and the MCP streamable endpoint.
package archiv

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/export"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/index"
	"github.com/hazyhaar/ratsarchiv/shield"
)

var errBadParam = errors.New("archiv: invalid query parameter")

// MCPServer returns an MCP server with every archive tool registered.
func (s *Service) MCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "ratsarchiv",
		Version: "1.0.0",
	}, nil)
	s.RegisterMCP(srv)
	return srv
}

// Routes returns the HTTP handler of the service.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range shield.APIStack(s.logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	mcpSrv := s.MCPServer()
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))

	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", s.handleSessions)
		r.Get("/sessions/{id}", s.handleSession)
		r.Get("/documents", s.handleDocuments)
		r.Get("/stats", s.handleStats)
		r.Get("/export", s.handleExport)
		r.Post("/export", s.handleExport)
	})
	return r
}

func (s *Service) handleSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := index.SessionFilter{
		Committee: q.Get("committee"),
		DateFrom:  q.Get("date_from"),
		DateTo:    q.Get("date_to"),
		Status:    q.Get("status"),
	}
	var err error
	if f.Year, err = intParam(q.Get("year")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if f.Month, err = intParam(q.Get("month")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.Sessions(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []index.Session{}
	}
	writeJSON(w, 200, list)
}

func (s *Service) handleSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, view)
}

func (s *Service) handleDocuments(w http.ResponseWriter, r *http.Request) {
	f, err := queryFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	docs, err := s.Documents(r.Context(), f, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, docs)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, st)
}

// handleExport takes the filter as a JSON body (POST) or as query
// parameters (GET).
func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	var f export.Filter
	var err error
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %v", ErrInvalidFilter, err))
			return
		}
	} else if f, err = queryFilter(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.Export(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := export.Encode(b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
	w.Write(data)
}

// queryFilter reads repeated or comma-separated session_id, committee and
// type parameters.
func queryFilter(r *http.Request) (export.Filter, error) {
	q := r.URL.Query()
	f := export.Filter{
		SessionIDs: listParam(q["session_id"]),
		Committees: q["committee"],
		DateFrom:   q.Get("date_from"),
		DateTo:     q.Get("date_to"),
	}
	for _, t := range listParam(q["type"]) {
		f.DocumentTypes = append(f.DocumentTypes, doctype.Type(t))
	}
	var err error
	if f.RequireLocalPath, err = boolParam(q.Get("require_local_path")); err != nil {
		return f, err
	}
	if f.IncludeText, err = boolParam(q.Get("include_text_extraction")); err != nil {
		return f, err
	}
	if f.MaxTextChars, err = intParam(q.Get("max_text_chars")); err != nil {
		return f, err
	}
	return f, nil
}

func listParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", errBadParam, v)
	}
	return n, nil
}

func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", errBadParam, v)
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidFilter), errors.Is(err, errBadParam):
		code = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	}
	if code == http.StatusInternalServerError {
		shield.GetLogger(r.Context()).Error("http: request failed", "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
