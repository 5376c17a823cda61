package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/statsboard"
)

func backendConfig() *BackendConfig {
	return &BackendConfig{
		BaseURL:  "http://backend:8000",
		AuditURL: "http://backend:8110",
	}
}

func panelNames(panels []statsboard.Panel) []string {
	names := make([]string, len(panels))
	for i, p := range panels {
		names[i] = p.Name()
	}
	return names
}

func TestBuildPanels_SinglePanel(t *testing.T) {
	cfg := &Config{
		Panels: []PanelConfig{
			{Name: "Queue", URL: "http://backend:8000/queue/stats"},
		},
	}

	panels, err := BuildPanels(cfg)
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}
	if len(panels) != 1 {
		t.Fatalf("len(panels) = %d, want 1", len(panels))
	}

	p := panels[0]
	if p.Name() != "Queue" {
		t.Errorf("Name() = %q, want Queue", p.Name())
	}
	if p.URL() != "http://backend:8000/queue/stats" {
		t.Errorf("URL() = %q", p.URL())
	}

	// without fields the whole payload is shown under the panel name
	v := p.Render(statsboard.Loaded(json.RawMessage(`{"depth":3}`), nil))
	if v.Title != "Queue" {
		t.Errorf("Title = %q, want Queue", v.Title)
	}
	if len(v.Lines) != 1 || v.Lines[0] != `{"depth":3}` {
		t.Errorf("Lines = %q, want compact payload", v.Lines)
	}
}

func TestBuildPanels_PanelWithAllOptions(t *testing.T) {
	cfg := &Config{
		Timeout:   Duration(3 * time.Second),
		Immediate: true,
		Panels: []PanelConfig{
			{
				Name:     "Queue",
				URL:      "http://backend:8000/queue/stats",
				Interval: Duration(4 * time.Second),
				Timeout:  Duration(5 * time.Second),
				Headers: map[string]string{
					"Authorization": "Bearer token",
				},
				Title: "Queue Statistics",
				Fields: []FieldConfig{
					{Label: "Depth: ", Path: "depth"},
					{Label: "Oldest: ", Path: "oldest.age"},
				},
				Footer:    &FieldConfig{Label: "Updated: ", Path: "updated_at"},
				ErrorText: ErrorTextMessage,
			},
		},
	}

	panels, err := BuildPanels(cfg)
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}
	p := panels[0]

	if p.Interval() != 4*time.Second {
		t.Errorf("Interval() = %v, want 4s", p.Interval())
	}
	// panel timeout overrides the global one
	if p.Timeout() != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", p.Timeout())
	}
	if !p.ImmediateStart() {
		t.Error("ImmediateStart() = false, want true")
	}
	if p.Headers()["Authorization"] != "Bearer token" {
		t.Errorf("Headers()[Authorization] = %q", p.Headers()["Authorization"])
	}

	v := p.Render(statsboard.Loaded(json.RawMessage(`{"depth":7,"oldest":{"age":"12s"},"updated_at":"now"}`), nil))
	want := statsboard.View{
		Kind:   statsboard.StateLoaded,
		Title:  "Queue Statistics",
		Lines:  []string{"Depth: 7", "Oldest: 12s"},
		Footer: "Updated: now",
	}
	if v.Text() != want.Text() {
		t.Errorf("Render() =\n%s\nwant\n%s", v.Text(), want.Text())
	}

	failed := p.Render(statsboard.Failed(errors.New("boom")))
	if failed.Lines[0] != "Error: boom" {
		t.Errorf("failed view = %q, want message error text", failed.Lines[0])
	}
}

func TestBuildPanels_ErrorTextModes(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{mode: "", want: statsboard.FetchErrorText},
		{mode: ErrorTextFixed, want: statsboard.FetchErrorText},
		{mode: ErrorTextMessage, want: "Error: down"},
		{mode: "Backend unavailable", want: "Backend unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := &Config{
				Panels: []PanelConfig{{Name: "P", URL: "http://a", ErrorText: tt.mode}},
			}
			panels, err := BuildPanels(cfg)
			if err != nil {
				t.Fatalf("BuildPanels() error = %v", err)
			}
			v := panels[0].Render(statsboard.Failed(errors.New("down")))
			if v.Lines[0] != tt.want {
				t.Errorf("error text = %q, want %q", v.Lines[0], tt.want)
			}
		})
	}
}

func TestBuildPanels_RandomParams(t *testing.T) {
	cfg := &Config{
		Panels: []PanelConfig{
			{
				Name:         "Audit",
				URL:          "http://backend:8110/readings/power-usage",
				RandomParams: map[string]int{"index": 100, "shard": 4},
				TitleParam:   "index",
			},
		},
	}

	panels, err := BuildPanels(cfg)
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}

	for i := 0; i < 20; i++ {
		u, params := panels[0].RequestURL()
		if !strings.Contains(u, "index=") || !strings.Contains(u, "shard=") {
			t.Fatalf("RequestURL() = %q, want index and shard params", u)
		}
		v := panels[0].Render(statsboard.Loaded(json.RawMessage(`{}`), params))
		if v.Title != "Audit-"+params["index"] {
			t.Errorf("Title = %q, want Audit-%s", v.Title, params["index"])
		}
	}
}

func TestBuildPanels_Backend(t *testing.T) {
	tests := []struct {
		name    string
		backend *BackendConfig
		want    []string
	}{
		{
			name:    "defaults",
			backend: backendConfig(),
			want: []string{
				statsboard.AppStatsName,
				statsboard.EventStatsName,
				"EndpointAudit (readings/power-usage)",
				"EndpointAudit (readings/location)",
			},
		},
		{
			name: "anomaly and custom endpoints",
			backend: func() *BackendConfig {
				b := backendConfig()
				b.Anomaly = true
				b.AuditEndpoints = []string{"readings/temperature"}
				return b
			}(),
			want: []string{
				statsboard.AppStatsName,
				statsboard.EventStatsName,
				statsboard.AnomalyStatsName,
				"EndpointAudit (readings/temperature)",
			},
		},
		{
			name: "strict",
			backend: func() *BackendConfig {
				b := backendConfig()
				b.Strict = true
				b.Anomaly = true
				return b
			}(),
			want: []string{
				statsboard.AppStatsName,
				statsboard.EventStatsName,
				statsboard.AnomalyStatsName,
				"EndpointAudit (readings/power-usage)",
				"EndpointAudit (readings/location)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			panels, err := BuildPanels(&Config{Backend: tt.backend})
			if err != nil {
				t.Fatalf("BuildPanels() error = %v", err)
			}
			got := panelNames(panels)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("panels = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildPanels_StrictBackendSchemas(t *testing.T) {
	b := backendConfig()
	b.Strict = true
	panels, err := BuildPanels(&Config{Backend: b})
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}

	for _, p := range panels {
		isAudit := strings.HasPrefix(p.Name(), statsboard.EndpointAuditName)
		if p.Strict() == isAudit {
			t.Errorf("%s: Strict() = %v, want %v", p.Name(), p.Strict(), !isAudit)
		}
	}

	// AppStats rejects a payload missing its counters
	if err := panels[0].Validate([]byte(`{"num_processed":"many"}`)); !errors.Is(err, statsboard.ErrSchemaMismatch) {
		t.Errorf("Validate() error = %v, want ErrSchemaMismatch", err)
	}
}

func TestBuildPanels_BackendHeadersAndTimeout(t *testing.T) {
	b := backendConfig()
	b.Headers = map[string]string{"X-Source": "dashboard"}
	panels, err := BuildPanels(&Config{Backend: b, Timeout: Duration(2 * time.Second)})
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}

	for _, p := range panels {
		if p.Headers()["X-Source"] != "dashboard" {
			t.Errorf("%s: Headers()[X-Source] = %q, want dashboard", p.Name(), p.Headers()["X-Source"])
		}
		if p.Timeout() != 2*time.Second {
			t.Errorf("%s: Timeout() = %v, want 2s", p.Name(), p.Timeout())
		}
	}
}

func TestBuildPanels_Grid(t *testing.T) {
	cfg := &Config{
		Grids: []GridConfig{
			{
				Name:        "Region",
				URLTemplate: "http://backend:8000/{{.region}}/{{.kind}}",
				Dimensions: map[string][]string{
					"region": {"eu", "us"},
					"kind":   {"events"},
				},
				Interval: Duration(3 * time.Second),
			},
		},
	}

	panels, err := BuildPanels(cfg)
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}
	if len(panels) != 2 {
		t.Fatalf("len(panels) = %d, want 2", len(panels))
	}

	// dimension values ordered by sorted key in titles
	wantTitles := []string{"events/eu", "events/us"}
	for i, p := range panels {
		if p.Interval() != 3*time.Second {
			t.Errorf("%s: Interval() = %v, want 3s", p.Name(), p.Interval())
		}
		v := p.Render(statsboard.Loaded(json.RawMessage(`[]`), nil))
		if v.Title != wantTitles[i] {
			t.Errorf("panels[%d] title = %q, want %q", i, v.Title, wantTitles[i])
		}
	}
}

func TestBuildPanels_LayoutOrder(t *testing.T) {
	cfg := &Config{
		Backend: backendConfig(),
		Panels:  []PanelConfig{{Name: "Queue", URL: "http://backend:8000/queue/stats"}},
		Grids: []GridConfig{{
			Name:        "Region",
			URLTemplate: "http://backend:8000/{{.region}}",
			Dimensions:  map[string][]string{"region": {"eu"}},
		}},
	}

	panels, err := BuildPanels(cfg)
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}

	want := []string{
		statsboard.AppStatsName,
		statsboard.EventStatsName,
		"EndpointAudit (readings/power-usage)",
		"EndpointAudit (readings/location)",
		"Queue",
		"Region (eu)",
	}
	if got := panelNames(panels); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("panels = %v, want %v", got, want)
	}
}

func TestBuildPanels_EmptyConfig(t *testing.T) {
	panels, err := BuildPanels(&Config{})
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}
	if len(panels) != 0 {
		t.Errorf("len(panels) = %d, want 0", len(panels))
	}
}

func TestBuildPanels_GridMissingScheme(t *testing.T) {
	cfg := &Config{
		Grids: []GridConfig{{
			Name:        "Bad",
			URLTemplate: "backend/{{.x}}",
			Dimensions:  map[string][]string{"x": {"a"}},
		}},
	}

	_, err := BuildPanels(cfg)
	if err == nil || !strings.Contains(err.Error(), "scheme") {
		t.Errorf("BuildPanels() error = %v, want scheme error", err)
	}
}

func TestBuildPanels_GridTemplateExecutionError(t *testing.T) {
	cfg := &Config{
		Grids: []GridConfig{{
			Name:        "Bad",
			URLTemplate: "http://backend/{{.missing}}",
			Dimensions:  map[string][]string{"x": {"a"}},
		}},
	}

	if _, err := BuildPanels(cfg); err == nil {
		t.Error("BuildPanels() expected error for unknown template key, got nil")
	}
}

func TestBoardOptions(t *testing.T) {
	cfg, err := Parse([]byte(`
title: Telemetry
port: 9191
ordering: issue
backend:
  base_url: http://backend:8000
  audit_url: http://backend:8110
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	panels, err := BuildPanels(cfg)
	if err != nil {
		t.Fatalf("BuildPanels() error = %v", err)
	}
	opts, err := BoardOptions(cfg)
	if err != nil {
		t.Fatalf("BoardOptions() error = %v", err)
	}

	board, err := statsboard.New(append(opts, statsboard.WithPanels(panels...))...)
	if err != nil {
		t.Fatalf("statsboard.New() error = %v", err)
	}
	if board.Port() != 9191 {
		t.Errorf("Port() = %d, want 9191", board.Port())
	}
	if board.Ordering() != statsboard.IssueOrder {
		t.Errorf("Ordering() = %v, want issue", board.Ordering())
	}
	if len(board.Panels()) != len(panels) {
		t.Errorf("len(Panels()) = %d, want %d", len(board.Panels()), len(panels))
	}
}

func TestBoardOptions_InvalidOrdering(t *testing.T) {
	if _, err := BoardOptions(&Config{Port: 8080, Ordering: "newest"}); err == nil {
		t.Error("BoardOptions() expected error for unknown ordering, got nil")
	}
}

func TestComboTitle(t *testing.T) {
	got := comboTitle(map[string]string{"region": "eu", "kind": "events", "env": "prod"})
	if want := "prod/events/eu"; got != want {
		t.Errorf("comboTitle() = %q, want %q", got, want)
	}
}

func TestMapToKeyValuePairs(t *testing.T) {
	got := mapToKeyValuePairs(map[string]string{"b": "2", "a": "1"})
	want := []string{"a", "1", "b", "2"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("mapToKeyValuePairs() = %v, want %v", got, want)
	}
}
