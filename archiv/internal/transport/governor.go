// CLAUDE:SUMMARY Transport Governor: sole point of contact with the council portal; token-bucket rate limit, retry state machine, run cache, audit.
// CLAUDE:EXPORTS Governor, Config, Response, Metadata, New, RunCache, AuditLog, Metrics, TransientError, PermanentError
// Package transport wraps every outbound request to the council portal.
//
// All callers of one Governor share its rate limiter and its run cache.
// Requests are serialized: no two requests are in flight at the same time.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/ratsarchiv/safeio"
)

// Config configures a Governor.
type Config struct {
	BaseURL           string        `yaml:"base_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // Default: 1.
	Retry             RetryPolicy   `yaml:"retry"`
	Timeout           time.Duration `yaml:"timeout"`   // per request. Default: 30s.
	MaxBytes          int64         `yaml:"max_bytes"` // Default: 50MB.
	UserAgent         string        `yaml:"user_agent"`
}

func (c *Config) defaults() {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	c.Retry.defaults()
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 50 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "ratsarchiv/1.0 (+council records archive)"
	}
}

// Metadata is the HTTP metadata kept for provenance.
type Metadata struct {
	StatusCode         int    `json:"status_code"`
	ContentType        string `json:"content_type"`
	ContentLength      int64  `json:"content_length"`
	ContentDisposition string `json:"content_disposition"`
	ETag               string `json:"etag"`
	LastModified       string `json:"last_modified"`
	FinalURL           string `json:"final_url"`
}

// Response is the result of a successful Fetch.
type Response struct {
	Locator  string // absolute URL that was requested
	Body     []byte
	Meta     Metadata
	Attempts int
}

// Governor performs rate-limited, retried, cached requests.
type Governor struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	serial  sync.Mutex
	cache   *RunCache
	audit   *AuditLog
	metrics *Metrics
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time
}

// Option customises a Governor.
type Option func(*Governor)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option { return func(g *Governor) { g.client = c } }

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option { return func(g *Governor) { g.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Governor) { g.logger = l } }

// WithAuditLog shares an audit log with the caller.
func WithAuditLog(a *AuditLog) Option { return func(g *Governor) { g.audit = a } }

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(g *Governor) { g.sleep = fn }
}

// New creates a Governor bound to a run cache. A nil cache gets a fresh one.
func New(cfg Config, cache *RunCache, opts ...Option) *Governor {
	cfg.defaults()
	if cache == nil {
		cache = NewRunCache()
	}
	g := &Governor{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cache:   cache,
		sleep:   sleepCtx,
		now:     time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	if g.client == nil {
		g.client = &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		}
	}
	if g.audit == nil {
		g.audit = NewAuditLog()
	}
	if g.metrics == nil {
		g.metrics = NewMetrics(nil)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Audit returns the audit log of the run.
func (g *Governor) Audit() *AuditLog { return g.audit }

// BaseURL returns the configured portal base URL.
func (g *Governor) BaseURL() string { return g.cfg.BaseURL }

// Fetch GETs locator, which may be relative to the base URL.
func (g *Governor) Fetch(ctx context.Context, locator string) (*Response, error) {
	return g.do(ctx, http.MethodGet, locator)
}

// Probe issues a HEAD request and returns the metadata only.
func (g *Governor) Probe(ctx context.Context, locator string) (Metadata, error) {
	resp, err := g.do(ctx, http.MethodHead, locator)
	if err != nil {
		return Metadata{}, err
	}
	return resp.Meta, nil
}

func (g *Governor) do(ctx context.Context, method, locator string) (*Response, error) {
	target, err := Resolve(g.cfg.BaseURL, locator)
	if err != nil {
		return nil, err
	}
	norm, err := NormalizeLocator(target)
	if err != nil {
		return nil, err
	}
	key := method + " " + norm

	if resp, err, ok := g.cache.lookup(key); ok {
		g.hit(method, target, resp, err)
		return resp, err
	}

	executed := false
	v, err, _ := g.cache.group.Do(key, func() (any, error) {
		if resp, err, ok := g.cache.lookup(key); ok {
			return resp, err
		}
		executed = true
		start := g.now()
		resp, attempts, err := g.runRetry(ctx, target, func(ctx context.Context) (*Response, error) {
			return g.attempt(ctx, method, target)
		})
		g.cache.store(key, resp, err)
		g.finish(method, target, start, resp, attempts, err)
		return resp, err
	})
	resp, _ := v.(*Response)
	if !executed {
		g.hit(method, target, resp, err)
	}
	return resp, err
}

// attempt performs exactly one request behind the limiter and the mutex.
func (g *Governor) attempt(ctx context.Context, method, target string) (*Response, error) {
	g.serial.Lock()
	defer g.serial.Unlock()

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	req.Header.Set("User-Agent", g.cfg.UserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Locator: target, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(target, resp.StatusCode); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		var te *TransientError
		if errors.As(err, &te) {
			te.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), g.now())
		}
		return nil, err
	}

	meta := metadataFrom(resp)
	if method == http.MethodHead {
		return &Response{Locator: target, Meta: meta}, nil
	}

	body, err := safeio.LimitedReadAll(resp.Body, g.cfg.MaxBytes)
	if errors.Is(err, safeio.ErrTooLarge) {
		return nil, &PermanentError{Locator: target, StatusCode: resp.StatusCode, Attempts: 1, Err: err}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Locator: target, StatusCode: 0, Err: fmt.Errorf("read body: %w", err)}
	}
	if meta.ContentLength < 0 {
		meta.ContentLength = int64(len(body))
	}
	return &Response{Locator: target, Body: body, Meta: meta}, nil
}

func metadataFrom(resp *http.Response) Metadata {
	length := resp.ContentLength
	if h := resp.Header.Get("Content-Length"); h != "" {
		if n, err := strconv.ParseInt(h, 10, 64); err == nil {
			length = n
		}
	}
	final := ""
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return Metadata{
		StatusCode:         resp.StatusCode,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentLength:      length,
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		ETag:               resp.Header.Get("ETag"),
		LastModified:       resp.Header.Get("Last-Modified"),
		FinalURL:           final,
	}
}

func (g *Governor) hit(method, target string, resp *Response, err error) {
	g.metrics.CacheHits.Inc()
	g.metrics.Requests.WithLabelValues(method, "cached").Inc()
	e := AuditEntry{Locator: target, Method: method, Cached: true, At: g.now()}
	if resp != nil {
		e.Status = resp.Meta.StatusCode
	}
	if err != nil {
		e.Err = err.Error()
	}
	g.audit.record(e)
}

func (g *Governor) finish(method, target string, start time.Time, resp *Response, attempts int, err error) {
	elapsed := g.now().Sub(start)
	g.metrics.Duration.Observe(elapsed.Seconds())
	e := AuditEntry{Locator: target, Method: method, Attempts: attempts, Duration: elapsed, At: start}
	outcome := "ok"
	if resp != nil {
		e.Status = resp.Meta.StatusCode
	}
	if err != nil {
		e.Err = err.Error()
		var pe *PermanentError
		switch {
		case errors.As(err, &pe):
			outcome = "permanent"
			e.Status = pe.StatusCode
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			outcome = "cancelled"
		default:
			outcome = "error"
		}
		g.logger.Warn("transport: request failed", "method", method, "url", target, "attempts", attempts, "error", err)
	} else {
		g.logger.Debug("transport: fetched", "method", method, "url", target,
			"status", e.Status, "attempts", attempts, "duration_ms", elapsed.Milliseconds())
	}
	g.metrics.Requests.WithLabelValues(method, outcome).Inc()
	g.audit.record(e)
}
