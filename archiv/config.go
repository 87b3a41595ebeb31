// CLAUDE:SUMMARY Service configuration: yaml file, RATSARCHIV_* environment overrides, optional .env, defaults.
// CLAUDE:EXPORTS Config, LoadConfig, DefaultConfig
package archiv

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/provenance"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/transport"
)

// Config configures the archive service.
type Config struct {
	// Portal
	BaseURL      string `yaml:"base_url"`
	OverviewPath string `yaml:"overview_path"` // relative to BaseURL; {year} and {month} are substituted

	// Transport
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	RetryMultiplier   float64       `yaml:"retry_multiplier"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay"`
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`

	// Default range for fetch runs.
	Year   int   `yaml:"year"`
	Months []int `yaml:"months"`

	// Storage
	RawRoot    string `yaml:"raw_root"`
	IndexPath  string `yaml:"index_path"`
	ExportPath string `yaml:"export_path"`

	// Revalidate is head, never or always.
	Revalidate   string `yaml:"revalidate"`
	MinPageChars int    `yaml:"min_page_chars"`

	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://session.melle.info/bi/"
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.OverviewPath == "" {
		c.OverviewPath = "si0040.asp?month={month}&year={year}"
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = 2
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "ratsarchiv/1.0 (+council records archive)"
	}
	if len(c.Months) == 0 {
		c.Months = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	}
	if c.RawRoot == "" {
		c.RawRoot = "data/raw"
	}
	if c.IndexPath == "" {
		c.IndexPath = "data/index.db"
	}
	if c.ExportPath == "" {
		c.ExportPath = "data/export.json"
	}
	c.Revalidate = string(provenance.ParseRevalidate(c.Revalidate))
	if c.MinPageChars <= 0 {
		c.MinPageChars = 40
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8086"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	c := &Config{}
	c.defaults()
	return c
}

// LoadConfig builds a Config from an optional .env file, an optional yaml
// file at path, and RATSARCHIV_* environment variables, in that order of
// increasing precedence. Defaults fill what is left.
func LoadConfig(path string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("archiv: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("archiv: parse config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.defaults()
	return c, nil
}

func (c *Config) applyEnv() error {
	c.BaseURL = env("RATSARCHIV_BASE_URL", c.BaseURL)
	c.OverviewPath = env("RATSARCHIV_OVERVIEW_PATH", c.OverviewPath)
	c.UserAgent = env("RATSARCHIV_USER_AGENT", c.UserAgent)
	c.RawRoot = env("RATSARCHIV_RAW_ROOT", c.RawRoot)
	c.IndexPath = env("RATSARCHIV_INDEX_PATH", c.IndexPath)
	c.ExportPath = env("RATSARCHIV_EXPORT_PATH", c.ExportPath)
	c.Revalidate = env("RATSARCHIV_REVALIDATE", c.Revalidate)
	c.HTTPAddr = env("RATSARCHIV_HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = env("RATSARCHIV_LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("RATSARCHIV_REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("archiv: RATSARCHIV_REQUESTS_PER_SECOND: %w", err)
		}
		c.RequestsPerSecond = f
	}
	if v := os.Getenv("RATSARCHIV_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("archiv: RATSARCHIV_MAX_ATTEMPTS: %w", err)
		}
		c.MaxAttempts = n
	}
	if v := os.Getenv("RATSARCHIV_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("archiv: RATSARCHIV_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("RATSARCHIV_MIN_PAGE_CHARS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("archiv: RATSARCHIV_MIN_PAGE_CHARS: %w", err)
		}
		c.MinPageChars = n
	}
	return nil
}

// governorConfig maps the config onto the Governor's.
func (c *Config) governorConfig() transport.Config {
	return transport.Config{
		BaseURL:           c.BaseURL,
		RequestsPerSecond: c.RequestsPerSecond,
		Retry: transport.RetryPolicy{
			MaxAttempts: c.MaxAttempts,
			BaseDelay:   c.RetryBaseDelay,
			Multiplier:  c.RetryMultiplier,
			MaxDelay:    c.RetryMaxDelay,
		},
		Timeout:   c.Timeout,
		UserAgent: c.UserAgent,
	}
}

// overviewLocator returns the overview page locator of one month.
func (c *Config) overviewLocator(year, month int) string {
	return strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{month}", fmt.Sprintf("%02d", month),
	).Replace(c.OverviewPath)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
