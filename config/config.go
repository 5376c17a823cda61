// Package config provides YAML configuration parsing for Statsboard.
//
// This package enables running Statsboard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Telemetry Stats
//	port: 8080
//	ordering: resolution
//
//	backend:
//	  base_url: ${BACKEND_URL:-http://localhost:8000}
//	  audit_url: http://localhost:8110
//	  anomaly: true
//
//	panels:
//	  - name: Queue
//	    url: http://localhost:8000/queue/stats
//	    title: Queue Statistics
//	    fields:
//	      - {label: "Depth: ", path: depth}
//
//	history:
//	  path: ./data/history.db
//
// Selected settings can be overridden from the environment; see [Parse].
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/statsboard"
)

const (
	defaultPort = 8080

	// config-level bounds; the SDK allows faster polling for tests
	minInterval = 1 * time.Second
	maxInterval = 1 * time.Hour
	minTimeout  = 1 * time.Second

	defaultRetention       = 24 * time.Hour
	defaultCleanupInterval = 10 * time.Minute
)

// Error text modes for panels and grids.
const (
	ErrorTextFixed   = "fixed"
	ErrorTextMessage = "message"
)

// Config is the root configuration structure for Statsboard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Statsboard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Ordering is "resolution" (default) or "issue".
	Ordering string `yaml:"ordering"`

	// Immediate fires every panel's first request at startup instead of on
	// its first tick.
	Immediate bool `yaml:"immediate"`

	// Timeout is the default per-request timeout. Zero means no timeout.
	Timeout Duration `yaml:"timeout"`

	// Backend mounts the built-in statistics and audit panels.
	Backend *BackendConfig `yaml:"backend"`

	// Panels defines additional single-endpoint panels.
	Panels []PanelConfig `yaml:"panels"`

	// Grids defines panel grids that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`

	// History enables the SQLite recorder.
	History HistoryConfig `yaml:"history"`

	// Log configures the CLI logger.
	Log LogConfig `yaml:"log"`
}

// BackendConfig locates the telemetry backend.
type BackendConfig struct {
	// BaseURL serves /processing/stats, /event_logger/event_stats and
	// /anomaly_detector/anomaly_stats.
	BaseURL string `yaml:"base_url"`

	// AuditURL serves the audit endpoints.
	AuditURL string `yaml:"audit_url"`

	// AuditEndpoints replaces the default audit endpoint list.
	AuditEndpoints []string `yaml:"audit_endpoints"`

	// Anomaly mounts the AnomalyStats panel.
	Anomaly bool `yaml:"anomaly"`

	// Strict validates statistics payloads against their response schemas.
	Strict bool `yaml:"strict"`

	// Headers are sent with every backend request.
	Headers map[string]string `yaml:"headers"`
}

// FieldConfig is one labelled value of a panel view.
type FieldConfig struct {
	Label string `yaml:"label"`
	Path  string `yaml:"path"`
}

// PanelConfig defines a single panel.
type PanelConfig struct {
	// Name is the unique panel name.
	Name string `yaml:"name"`

	// URL is the polled endpoint.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Interval is the time between ticks. Defaults to 2s.
	Interval Duration `yaml:"interval"`

	// Timeout overrides the global request timeout.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers. Values support env substitution.
	Headers map[string]string `yaml:"headers"`

	// Title is the view heading. Defaults to the panel name.
	Title string `yaml:"title"`

	// Fields renders labelled payload values. Without fields the whole
	// payload is shown.
	Fields []FieldConfig `yaml:"fields"`

	// Footer is an optional trailing field.
	Footer *FieldConfig `yaml:"footer"`

	// ErrorText is "fixed" (default), "message", or literal text.
	ErrorText string `yaml:"error_text"`

	// RandomParams maps query parameter names to an exclusive upper bound;
	// a fresh value in [0, n) is sent on every tick.
	RandomParams map[string]int `yaml:"random_params"`

	// TitleParam appends "-{value}" of this random parameter to the title.
	TitleParam string `yaml:"title_param"`
}

// GridConfig defines a panel grid that expands via cartesian product.
//
// For example, with dimensions {endpoint: [readings/power-usage, readings/location]},
// the grid expands to 2 panels titled after their endpoint.
type GridConfig struct {
	// Name is the base name for generated panels.
	Name string `yaml:"name"`

	// URLTemplate is a Go template for generating panel URLs.
	// Dimension keys are available as template variables: {{.endpoint}}
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	Interval     Duration          `yaml:"interval"`
	Timeout      Duration          `yaml:"timeout"`
	Headers      map[string]string `yaml:"headers"`
	ErrorText    string            `yaml:"error_text"`
	RandomParams map[string]int    `yaml:"random_params"`
	TitleParam   string            `yaml:"title_param"`
}

// HistoryConfig configures the SQLite recorder.
type HistoryConfig struct {
	// Path of the database file. Empty disables history.
	Path string `yaml:"path"`

	// Retention is how long rows are kept. Defaults to 24h.
	Retention Duration `yaml:"retention"`

	// CleanupInterval is how often expired rows are pruned. Defaults to 10m.
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is debug, info (default), warn or error.
	Level string `yaml:"level"`

	// Format is text (default) or json.
	Format string `yaml:"format"`
}

// envOverrides are read with cleanenv and replace file values when set.
type envOverrides struct {
	Port        int    `env:"STATSBOARD_PORT"`
	Title       string `env:"STATSBOARD_TITLE"`
	BaseURL     string `env:"STATSBOARD_BASE_URL"`
	AuditURL    string `env:"STATSBOARD_AUDIT_URL"`
	Ordering    string `env:"STATSBOARD_ORDERING"`
	HistoryPath string `env:"STATSBOARD_HISTORY_PATH"`
	LogLevel    string `env:"STATSBOARD_LOG_LEVEL"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		if hasDefault {
			return submatches[3]
		}
		firstErr = fmt.Errorf("environment variable %q is not set", varName)
		return match
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment overrides are applied first: STATSBOARD_PORT, STATSBOARD_TITLE,
// STATSBOARD_BASE_URL, STATSBOARD_AUDIT_URL, STATSBOARD_ORDERING,
// STATSBOARD_HISTORY_PATH and STATSBOARD_LOG_LEVEL. Then ${VAR} references in
// URLs, URL templates and header values are expanded, defaults are applied
// and every field is validated.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := cleanenv.ReadEnv(&env); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if env.Port != 0 {
		c.Port = env.Port
	}
	if env.Title != "" {
		c.Title = env.Title
	}
	if env.BaseURL != "" || env.AuditURL != "" {
		if c.Backend == nil {
			c.Backend = &BackendConfig{}
		}
		if env.BaseURL != "" {
			c.Backend.BaseURL = env.BaseURL
		}
		if env.AuditURL != "" {
			c.Backend.AuditURL = env.AuditURL
		}
	}
	if env.Ordering != "" {
		c.Ordering = env.Ordering
	}
	if env.HistoryPath != "" {
		c.History.Path = env.HistoryPath
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.History.Retention == 0 {
		c.History.Retention = Duration(defaultRetention)
	}
	if c.History.CleanupInterval == 0 {
		c.History.CleanupInterval = Duration(defaultCleanupInterval)
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if _, err := statsboard.ParseOrdering(c.Ordering); err != nil {
		return fmt.Errorf("ordering: %w", err)
	}
	if err := validateTimeout("timeout", c.Timeout); err != nil {
		return err
	}

	if c.Backend != nil {
		if err := c.Backend.expandAndValidate(); err != nil {
			return err
		}
	}

	names := make(map[string]string)
	for i := range c.Panels {
		p := &c.Panels[i]
		ctx := fmt.Sprintf("panels[%d]", i)
		if p.Name == "" {
			return fmt.Errorf("%s: name is required", ctx)
		}
		ctx = fmt.Sprintf("panels[%d] (%s)", i, p.Name)
		if prev, dup := names[p.Name]; dup {
			return fmt.Errorf("%s: duplicate name, already used by %s", ctx, prev)
		}
		names[p.Name] = ctx

		if p.URL == "" {
			return fmt.Errorf("%s: url is required", ctx)
		}
		expanded, err := expandEnvVars(p.URL)
		if err != nil {
			return fmt.Errorf("%s: url: %w", ctx, err)
		}
		p.URL = expanded
		if err := validateURL(ctx, "url", p.URL); err != nil {
			return err
		}

		for j, f := range p.Fields {
			if f.Path == "" {
				return fmt.Errorf("%s: fields[%d]: path is required", ctx, j)
			}
		}
		if p.Footer != nil && p.Footer.Path == "" {
			return fmt.Errorf("%s: footer: path is required", ctx)
		}

		if err := validateCommon(ctx, p.Interval, p.Timeout, p.Headers, p.RandomParams, p.TitleParam); err != nil {
			return err
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]
		ctx := fmt.Sprintf("grids[%d]", i)
		if g.Name == "" {
			return fmt.Errorf("%s: name is required", ctx)
		}
		ctx = fmt.Sprintf("grids[%d] (%s)", i, g.Name)

		if g.URLTemplate == "" {
			return fmt.Errorf("%s: url_template is required", ctx)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("%s: url_template: %w", ctx, err)
		}
		g.URLTemplate = expanded

		// fail fast before the SDK tries to use an invalid template
		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("%s: invalid url_template: %w", ctx, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("%s: at least one dimension is required", ctx)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("%s: dimension %q has no values", ctx, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("%s: dimension %q has duplicate value %q", ctx, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}

		if err := validateCommon(ctx, g.Interval, g.Timeout, g.Headers, g.RandomParams, g.TitleParam); err != nil {
			return err
		}
	}

	if c.Backend == nil && len(c.Panels) == 0 && len(c.Grids) == 0 {
		return errors.New("at least one of backend, panels or grids must be defined")
	}

	if c.History.Retention.Duration() <= 0 {
		return fmt.Errorf("history.retention must be positive, got %s", c.History.Retention.Duration())
	}
	if c.History.CleanupInterval.Duration() < time.Second {
		return fmt.Errorf("history.cleanup_interval must be at least 1s, got %s", c.History.CleanupInterval.Duration())
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (b *BackendConfig) expandAndValidate() error {
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"backend.base_url", &b.BaseURL},
		{"backend.audit_url", &b.AuditURL},
	} {
		if *field.value == "" {
			return fmt.Errorf("%s is required", field.name)
		}
		expanded, err := expandEnvVars(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
		if err := validateURL("backend", field.name[len("backend."):], expanded); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(b.AuditEndpoints))
	for i, ep := range b.AuditEndpoints {
		if strings.Trim(ep, "/") == "" {
			return fmt.Errorf("backend.audit_endpoints[%d]: endpoint cannot be empty", i)
		}
		if _, dup := seen[ep]; dup {
			return fmt.Errorf("backend.audit_endpoints[%d]: duplicate endpoint %q", i, ep)
		}
		seen[ep] = struct{}{}
	}

	return expandHeaders("backend", b.Headers)
}

// validateCommon checks the settings shared by panels and grids.
func validateCommon(ctx string, interval, timeout Duration, headers map[string]string, params map[string]int, titleParam string) error {
	if interval != 0 {
		if interval.Duration() < minInterval {
			return fmt.Errorf("%s: interval must be at least %s, got %s", ctx, minInterval, interval.Duration())
		}
		if interval.Duration() > maxInterval {
			return fmt.Errorf("%s: interval must not exceed 1h, got %s", ctx, interval.Duration())
		}
	}

	if err := validateTimeout(ctx+": timeout", timeout); err != nil {
		return err
	}

	if err := expandHeaders(ctx, headers); err != nil {
		return err
	}

	for name, n := range params {
		if name == "" {
			return fmt.Errorf("%s: random_params: name cannot be empty", ctx)
		}
		if n <= 0 {
			return fmt.Errorf("%s: random_params[%s]: range must be positive, got %d", ctx, name, n)
		}
	}
	if titleParam != "" {
		if _, ok := params[titleParam]; !ok {
			return fmt.Errorf("%s: title_param %q is not a random_params entry", ctx, titleParam)
		}
	}
	return nil
}

func validateTimeout(ctx string, d Duration) error {
	if d == 0 {
		return nil
	}
	if d.Duration() < 0 {
		return fmt.Errorf("%s cannot be negative, got %s", ctx, d.Duration())
	}
	if d.Duration() < minTimeout {
		return fmt.Errorf("%s must be at least 1s if specified, got %s", ctx, d.Duration())
	}
	return nil
}

func validateURL(ctx, field, raw string) error {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid %s: %w", ctx, field, err)
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("%s: %s must have a scheme (http:// or https://)", ctx, field)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s: %s scheme must be http or https, got %q", ctx, field, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s: %s must have a host", ctx, field)
	}
	return nil
}

func expandHeaders(ctx string, headers map[string]string) error {
	for k, v := range headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s: headers[%s]: %w", ctx, k, err)
		}
		headers[k] = expanded
	}
	return nil
}
