// CLAUDE:SUMMARY Service facade: owns the index, the raw root and the metrics registry; exposes acquisition, index, migration and export operations.
// CLAUDE:EXPORTS Service, Option, New, WithHTTPClient, WithRegistry, WithGovernorOptions
package archiv

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/content"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/export"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/index"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/provenance"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/transport"
)

// Service is the archive orchestrator.
type Service struct {
	config     *Config
	logger     *slog.Logger
	index      *index.Index
	writer     *provenance.Writer
	exporter   *export.Exporter
	registry   *prometheus.Registry
	metrics    *metrics
	httpClient *http.Client
	govOpts    []transport.Option
}

// Option customises a Service.
type Option func(*Service)

// WithHTTPClient sets the client used by every Governor of the service.
func WithHTTPClient(c *http.Client) Option { return func(s *Service) { s.httpClient = c } }

// WithRegistry sets the Prometheus registry. Default: a fresh registry.
func WithRegistry(r *prometheus.Registry) Option { return func(s *Service) { s.registry = r } }

// WithGovernorOptions appends options to every Governor the service creates.
func WithGovernorOptions(opts ...transport.Option) Option {
	return func(s *Service) { s.govOpts = append(s.govOpts, opts...) }
}

// New opens the index at cfg.IndexPath, applying pending migrations.
func New(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		config: cfg,
		logger: logger,
		writer: provenance.NewWriter(cfg.RawRoot, provenance.Revalidate(cfg.Revalidate), logger),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.registry == nil {
		svc.registry = prometheus.NewRegistry()
	}
	svc.metrics = newMetrics(svc.registry)

	idx, err := index.Open(ctx, cfg.IndexPath, index.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("archiv: open index: %w", err)
	}
	svc.index = idx
	svc.exporter = export.New(idx, cfg.RawRoot, cfg.IndexPath, logger)
	return svc, nil
}

// Close closes the index.
func (s *Service) Close() error {
	return s.index.Close()
}

// Config returns the effective configuration.
func (s *Service) Config() *Config { return s.config }

// Registry returns the Prometheus registry of the service.
func (s *Service) Registry() *prometheus.Registry { return s.registry }

// Index returns the underlying index.
func (s *Service) Index() *index.Index { return s.index }

// BuildIndex projects the raw root into the index. With skipExisting,
// sessions already indexed are left alone.
func (s *Service) BuildIndex(ctx context.Context, skipExisting, extract bool) (*index.BuildStats, error) {
	stats, err := s.index.Build(ctx, s.config.RawRoot, index.BuildOptions{
		SkipExisting:   skipExisting,
		ExtractContent: extract,
		Content:        content.Options{MinPageChars: s.config.MinPageChars},
	})
	if err != nil {
		return nil, err
	}
	s.metrics.indexedSessions.Set(float64(stats.Sessions))
	return stats, nil
}

// MigrationReport combines the index and raw layout migrations.
type MigrationReport struct {
	Applied        []string `json:"applied"`
	Moved          []string `json:"moved"`
	Conflicts      []string `json:"conflicts"`
	IndexConflicts []string `json:"index_conflicts,omitempty"`
}

// Migrate moves legacy session directories into the year/month layout and
// applies pending index migrations. A MigrationConflictError leaves only the
// conflicting step unapplied; it is listed in IndexConflicts and returned.
func (s *Service) Migrate(ctx context.Context) (*MigrationReport, error) {
	rep := &MigrationReport{}
	layout, err := provenance.MigrateLegacyLayout(s.config.RawRoot)
	if err != nil {
		return nil, err
	}
	rep.Moved = layout.Moved
	rep.Conflicts = layout.Conflicts
	for _, c := range layout.Conflicts {
		s.logger.Warn("migrate: legacy directory left in place", "path", c)
	}

	applied, err := s.index.Migrate(ctx)
	rep.Applied = applied
	for _, c := range s.index.Conflicts() {
		rep.IndexConflicts = append(rep.IndexConflicts, c.Error())
	}
	if err != nil {
		return rep, err
	}
	s.logger.Info("migrate: done", "applied", len(applied), "moved", len(rep.Moved), "conflicts", len(rep.Conflicts))
	return rep, nil
}

// Export builds a batch for f.
func (s *Service) Export(ctx context.Context, f export.Filter) (*export.Batch, error) {
	b, err := s.exporter.Export(ctx, f)
	if err != nil {
		return nil, err
	}
	s.metrics.exportedDocuments.Add(float64(len(b.Documents)))
	return b, nil
}

// ExportFile builds a batch for f and writes it atomically to path
// (cfg.ExportPath when empty).
func (s *Service) ExportFile(ctx context.Context, f export.Filter, path string) (*export.Batch, error) {
	if path == "" {
		path = s.config.ExportPath
	}
	b, err := s.Export(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := export.WriteFile(path, b); err != nil {
		return nil, err
	}
	s.logger.Info("export: written", "path", path, "documents", len(b.Documents))
	return b, nil
}

// ImportFile loads a batch file into the index. The index should be fresh:
// agenda rows are appended, not merged.
func (s *Service) ImportFile(ctx context.Context, path string) (*export.ImportStats, error) {
	b, err := export.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return export.Import(ctx, s.index, b)
}
