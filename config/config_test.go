package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
backend:
  base_url: http://localhost:8000
  audit_url: http://localhost:8110
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Ordering != "" {
		t.Errorf("Ordering = %q, want empty", cfg.Ordering)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
	if cfg.History.Path != "" {
		t.Errorf("History.Path = %q, want empty", cfg.History.Path)
	}
	if cfg.History.Retention.Duration() != 24*time.Hour {
		t.Errorf("History.Retention = %v, want 24h", cfg.History.Retention.Duration())
	}
	if cfg.History.CleanupInterval.Duration() != 10*time.Minute {
		t.Errorf("History.CleanupInterval = %v, want 10m", cfg.History.CleanupInterval.Duration())
	}
	if cfg.Backend == nil || cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("Backend = %+v, want base_url http://localhost:8000", cfg.Backend)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Telemetry
port: 9090
ordering: issue
immediate: true
timeout: 5s

backend:
  base_url: http://backend:8000
  audit_url: http://backend:8110
  audit_endpoints: [readings/power-usage]
  anomaly: true
  strict: true
  headers:
    X-Source: dashboard

panels:
  - name: Queue
    url: http://backend:8000/queue/stats
    interval: 4s
    timeout: 2s
    title: Queue Statistics
    fields:
      - label: "Depth: "
        path: depth
    footer:
      label: "Updated: "
      path: updated_at
    error_text: message
    random_params:
      index: 100
    title_param: index

history:
  path: ./data/history.db
  retention: 1h
  cleanup_interval: 30s

log:
  level: debug
  format: json
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Telemetry" || cfg.Port != 9090 || cfg.Ordering != "issue" {
		t.Errorf("top level = %q/%d/%q, want Telemetry/9090/issue", cfg.Title, cfg.Port, cfg.Ordering)
	}
	if !cfg.Immediate {
		t.Error("Immediate = false, want true")
	}
	if cfg.Timeout.Duration() != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout.Duration())
	}

	b := cfg.Backend
	if !b.Anomaly || !b.Strict {
		t.Errorf("Backend flags = anomaly:%v strict:%v, want both true", b.Anomaly, b.Strict)
	}
	if len(b.AuditEndpoints) != 1 || b.AuditEndpoints[0] != "readings/power-usage" {
		t.Errorf("AuditEndpoints = %v", b.AuditEndpoints)
	}
	if b.Headers["X-Source"] != "dashboard" {
		t.Errorf("Headers[X-Source] = %q, want dashboard", b.Headers["X-Source"])
	}

	p := cfg.Panels[0]
	if p.Interval.Duration() != 4*time.Second || p.Timeout.Duration() != 2*time.Second {
		t.Errorf("panel interval/timeout = %v/%v, want 4s/2s", p.Interval.Duration(), p.Timeout.Duration())
	}
	if len(p.Fields) != 1 || p.Fields[0].Label != "Depth: " || p.Fields[0].Path != "depth" {
		t.Errorf("Fields = %+v", p.Fields)
	}
	if p.Footer == nil || p.Footer.Path != "updated_at" {
		t.Errorf("Footer = %+v, want path updated_at", p.Footer)
	}
	if p.ErrorText != ErrorTextMessage {
		t.Errorf("ErrorText = %q, want %q", p.ErrorText, ErrorTextMessage)
	}
	if p.RandomParams["index"] != 100 || p.TitleParam != "index" {
		t.Errorf("RandomParams = %v, TitleParam = %q", p.RandomParams, p.TitleParam)
	}

	if cfg.History.Path != "./data/history.db" {
		t.Errorf("History.Path = %q", cfg.History.Path)
	}
	if cfg.History.Retention.Duration() != time.Hour || cfg.History.CleanupInterval.Duration() != 30*time.Second {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want debug/json", cfg.Log)
	}
}

func TestParse_GridConfig(t *testing.T) {
	yaml := `
grids:
  - name: Audit
    url_template: "http://localhost:8110/{{.endpoint}}"
    dimensions:
      endpoint: [readings/power-usage, readings/location]
    interval: 4s
    random_params:
      index: 100
    title_param: index
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	g := cfg.Grids[0]
	if g.Name != "Audit" {
		t.Errorf("Name = %q, want Audit", g.Name)
	}
	if got := g.Dimensions["endpoint"]; len(got) != 2 || got[0] != "readings/power-usage" {
		t.Errorf("Dimensions[endpoint] = %v", got)
	}
	if g.Interval.Duration() != 4*time.Second {
		t.Errorf("Interval = %v, want 4s", g.Interval.Duration())
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_API_HOST", "api.test.com")
	t.Setenv("TEST_API_TOKEN", "secret123")

	yaml := `
panels:
  - name: Test
    url: https://${TEST_API_HOST}/stats
    headers:
      Authorization: Bearer ${TEST_API_TOKEN}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	p := cfg.Panels[0]
	if p.URL != "https://api.test.com/stats" {
		t.Errorf("URL = %q, want %q", p.URL, "https://api.test.com/stats")
	}
	if p.Headers["Authorization"] != "Bearer secret123" {
		t.Errorf("Headers[Authorization] = %q, want %q", p.Headers["Authorization"], "Bearer secret123")
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	yaml := `
backend:
  base_url: ${STATSBOARD_TEST_UNSET_BASE:-http://localhost:8000}
  audit_url: ${STATSBOARD_TEST_UNSET_AUDIT:-http://localhost:8110}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q, want default", cfg.Backend.BaseURL)
	}
	if cfg.Backend.AuditURL != "http://localhost:8110" {
		t.Errorf("AuditURL = %q, want default", cfg.Backend.AuditURL)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
panels:
  - name: Test
    url: https://${STATSBOARD_TEST_DEFINITELY_UNSET}/stats
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "STATSBOARD_TEST_DEFINITELY_UNSET") {
		t.Errorf("error = %v, want mention of variable name", err)
	}
}

func TestParse_EnvVarInGridTemplate(t *testing.T) {
	t.Setenv("TEST_DOMAIN", "example.com")

	yaml := `
grids:
  - name: Grid
    url_template: "https://${TEST_DOMAIN}/{{.region}}"
    dimensions:
      region: [eu]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if want := "https://example.com/{{.region}}"; cfg.Grids[0].URLTemplate != want {
		t.Errorf("URLTemplate = %q, want %q", cfg.Grids[0].URLTemplate, want)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("STATSBOARD_PORT", "9191")
	t.Setenv("STATSBOARD_TITLE", "From Env")
	t.Setenv("STATSBOARD_ORDERING", "issue")
	t.Setenv("STATSBOARD_HISTORY_PATH", "/tmp/history.db")
	t.Setenv("STATSBOARD_LOG_LEVEL", "warn")
	t.Setenv("STATSBOARD_AUDIT_URL", "http://audit.internal:8110")

	yaml := `
title: From File
port: 8080
backend:
  base_url: http://localhost:8000
  audit_url: http://localhost:8110
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Port)
	}
	if cfg.Title != "From Env" {
		t.Errorf("Title = %q, want From Env", cfg.Title)
	}
	if cfg.Ordering != "issue" {
		t.Errorf("Ordering = %q, want issue", cfg.Ordering)
	}
	if cfg.History.Path != "/tmp/history.db" {
		t.Errorf("History.Path = %q", cfg.History.Path)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	// file value kept when no override is set
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q, want file value", cfg.Backend.BaseURL)
	}
	if cfg.Backend.AuditURL != "http://audit.internal:8110" {
		t.Errorf("AuditURL = %q, want override", cfg.Backend.AuditURL)
	}
}

func TestParse_EnvOverridesCreateBackend(t *testing.T) {
	t.Setenv("STATSBOARD_BASE_URL", "http://localhost:8000")
	t.Setenv("STATSBOARD_AUDIT_URL", "http://localhost:8110")

	cfg, err := Parse([]byte("title: Env Only\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Backend == nil {
		t.Fatal("Backend = nil, want backend built from environment")
	}
	if cfg.Backend.BaseURL != "http://localhost:8000" || cfg.Backend.AuditURL != "http://localhost:8110" {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
}

func TestParse_EnvOverrideInvalidPort(t *testing.T) {
	t.Setenv("STATSBOARD_PORT", "not-a-number")

	_, err := Parse([]byte("backend: {base_url: http://a, audit_url: http://b}\n"))
	if err == nil || !strings.Contains(err.Error(), "environment overrides") {
		t.Errorf("Parse() error = %v, want environment overrides error", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "nothing defined",
			yaml:    `title: Empty`,
			wantErr: "at least one of backend, panels or grids",
		},
		{
			name:    "port out of range",
			yaml:    "port: 70000\nbackend: {base_url: http://a, audit_url: http://b}",
			wantErr: "port must be between 1 and 65535",
		},
		{
			name:    "unknown ordering",
			yaml:    "ordering: newest\nbackend: {base_url: http://a, audit_url: http://b}",
			wantErr: "unknown ordering",
		},
		{
			name:    "backend missing base_url",
			yaml:    "backend: {audit_url: http://b}",
			wantErr: "backend.base_url is required",
		},
		{
			name:    "backend missing audit_url",
			yaml:    "backend: {base_url: http://a}",
			wantErr: "backend.audit_url is required",
		},
		{
			name:    "backend base_url without scheme",
			yaml:    "backend: {base_url: localhost:8000, audit_url: http://b}",
			wantErr: "scheme",
		},
		{
			name:    "backend empty audit endpoint",
			yaml:    "backend: {base_url: http://a, audit_url: http://b, audit_endpoints: [\"/\"]}",
			wantErr: "endpoint cannot be empty",
		},
		{
			name:    "backend duplicate audit endpoint",
			yaml:    "backend: {base_url: http://a, audit_url: http://b, audit_endpoints: [x, x]}",
			wantErr: "duplicate endpoint",
		},
		{
			name: "panel missing name",
			yaml: `
panels:
  - url: http://a`,
			wantErr: "panels[0]: name is required",
		},
		{
			name: "panel missing url",
			yaml: `
panels:
  - name: Test`,
			wantErr: "panels[0] (Test): url is required",
		},
		{
			name: "duplicate panel names",
			yaml: `
panels:
  - name: Test
    url: http://a
  - name: Test
    url: http://b`,
			wantErr: "duplicate name",
		},
		{
			name: "panel ftp scheme",
			yaml: `
panels:
  - name: Test
    url: ftp://a`,
			wantErr: "scheme must be http or https",
		},
		{
			name: "panel url without host",
			yaml: `
panels:
  - name: Test
    url: "http://"`,
			wantErr: "must have a host",
		},
		{
			name: "field without path",
			yaml: `
panels:
  - name: Test
    url: http://a
    fields:
      - label: "X: "`,
			wantErr: "fields[0]: path is required",
		},
		{
			name: "footer without path",
			yaml: `
panels:
  - name: Test
    url: http://a
    footer:
      label: "X: "`,
			wantErr: "footer: path is required",
		},
		{
			name: "non-positive random param",
			yaml: `
panels:
  - name: Test
    url: http://a
    random_params:
      index: 0`,
			wantErr: "range must be positive",
		},
		{
			name: "title_param not a random param",
			yaml: `
panels:
  - name: Test
    url: http://a
    title_param: index`,
			wantErr: "not a random_params entry",
		},
		{
			name: "grid missing name",
			yaml: `
grids:
  - url_template: http://a/{{.x}}
    dimensions: {x: [a]}`,
			wantErr: "grids[0]: name is required",
		},
		{
			name: "grid missing template",
			yaml: `
grids:
  - name: G
    dimensions: {x: [a]}`,
			wantErr: "url_template is required",
		},
		{
			name: "grid missing dimensions",
			yaml: `
grids:
  - name: G
    url_template: http://a/{{.x}}`,
			wantErr: "at least one dimension",
		},
		{
			name: "grid empty dimension",
			yaml: `
grids:
  - name: G
    url_template: http://a/{{.x}}
    dimensions: {x: []}`,
			wantErr: "has no values",
		},
		{
			name: "grid duplicate dimension value",
			yaml: `
grids:
  - name: G
    url_template: http://a/{{.x}}
    dimensions: {x: [a, a]}`,
			wantErr: "duplicate value",
		},
		{
			name:    "history retention negative",
			yaml:    "backend: {base_url: http://a, audit_url: http://b}\nhistory: {retention: -1h}",
			wantErr: "history.retention must be positive",
		},
		{
			name:    "history cleanup too short",
			yaml:    "backend: {base_url: http://a, audit_url: http://b}\nhistory: {cleanup_interval: 100ms}",
			wantErr: "history.cleanup_interval must be at least 1s",
		},
		{
			name:    "unknown log level",
			yaml:    "backend: {base_url: http://a, audit_url: http://b}\nlog: {level: verbose}",
			wantErr: "log.level",
		},
		{
			name:    "unknown log format",
			yaml:    "backend: {base_url: http://a, audit_url: http://b}\nlog: {format: xml}",
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_GridTemplateValidation(t *testing.T) {
	tests := []struct {
		name     string
		template string
		wantErr  bool
	}{
		{name: "valid", template: "http://a/{{.x}}", wantErr: false},
		{name: "conditional", template: `{{if eq .x "a"}}https{{else}}http{{end}}://a/`, wantErr: false},
		{name: "unclosed action", template: "http://a/{{.x", wantErr: true},
		{name: "unknown function", template: "http://a/{{nope .x}}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := "grids:\n  - name: G\n    url_template: '" + tt.template + "'\n    dimensions: {x: [a]}\n"
			_, err := Parse([]byte(yaml))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "invalid url_template") {
				t.Errorf("Parse() error = %v, want invalid url_template", err)
			}
		})
	}
}

func TestParse_IntervalValidation(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		wantErr  string
	}{
		{name: "minimum", interval: "1s"},
		{name: "maximum", interval: "1h"},
		{name: "too fast", interval: "500ms", wantErr: "interval must be at least 1s"},
		{name: "too slow", interval: "2h", wantErr: "interval must not exceed 1h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := "panels:\n  - name: T\n    url: http://a\n    interval: " + tt.interval + "\n"
			_, err := Parse([]byte(yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Parse() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_TimeoutValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "global timeout ok",
			yaml: "timeout: 3s\nbackend: {base_url: http://a, audit_url: http://b}",
		},
		{
			name:    "global timeout too short",
			yaml:    "timeout: 200ms\nbackend: {base_url: http://a, audit_url: http://b}",
			wantErr: "timeout must be at least 1s",
		},
		{
			name:    "global timeout negative",
			yaml:    "timeout: -1s\nbackend: {base_url: http://a, audit_url: http://b}",
			wantErr: "cannot be negative",
		},
		{
			name:    "panel timeout too short",
			yaml:    "panels:\n  - name: T\n    url: http://a\n    timeout: 10ms",
			wantErr: "panels[0] (T): timeout must be at least 1s",
		},
		{
			name:    "grid timeout too short",
			yaml:    "grids:\n  - name: G\n    url_template: http://a/{{.x}}\n    dimensions: {x: [a]}\n    timeout: 10ms",
			wantErr: "grids[0] (G): timeout must be at least 1s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Parse() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("panels: [unclosed"))
	if err == nil || !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("Parse() error = %v, want YAML parse error", err)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	yaml := `
panels:
  - name: T
    url: http://a
    interval: soon
`
	_, err := Parse([]byte(yaml))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("Parse() error = %v, want invalid duration", err)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "2s", want: 2 * time.Second},
		{input: "1m30s", want: 90 * time.Second},
		{input: "250ms", want: 250 * time.Millisecond},
		{input: "2", wantErr: true},
		{input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg, err := Parse([]byte("timeout: " + tt.input + "\nbackend: {base_url: http://a, audit_url: http://b}"))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Parse() expected error for %q", tt.input)
				}
				return
			}
			if tt.want < minTimeout {
				// parsed fine, rejected by validation
				if err == nil || !strings.Contains(err.Error(), "timeout") {
					t.Errorf("Parse() error = %v, want timeout validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.Timeout.Duration() != tt.want {
				t.Errorf("Timeout = %v, want %v", cfg.Timeout.Duration(), tt.want)
			}
		})
	}
}

func TestParse_MixedSections(t *testing.T) {
	yaml := `
backend:
  base_url: http://localhost:8000
  audit_url: http://localhost:8110
panels:
  - name: Queue
    url: http://localhost:8000/queue/stats
grids:
  - name: Region
    url_template: http://localhost:8000/{{.region}}/stats
    dimensions:
      region: [eu, us]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Backend == nil || len(cfg.Panels) != 1 || len(cfg.Grids) != 1 {
		t.Errorf("sections = backend:%v panels:%d grids:%d", cfg.Backend != nil, len(cfg.Panels), len(cfg.Grids))
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "no vars", input: "plain", want: "plain"},
		{name: "set var", input: "a-${TEST_VAR}-b", want: "a-value-b"},
		{name: "set but empty", input: "x${EMPTY_VAR}y", want: "xy"},
		{name: "default unused", input: "${TEST_VAR:-other}", want: "value"},
		{name: "default used", input: "${STATSBOARD_TEST_UNSET:-fallback}", want: "fallback"},
		{name: "empty default", input: "${STATSBOARD_TEST_UNSET:-}", want: ""},
		{name: "missing", input: "${STATSBOARD_TEST_UNSET}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expandEnvVars() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statsboard.yaml")
	data := "title: From Disk\nbackend: {base_url: http://a, audit_url: http://b}\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Title != "From Disk" {
		t.Errorf("Title = %q, want From Disk", cfg.Title)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v, want read error", err)
	}
}
