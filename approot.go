package statsboard

import (
	"errors"
	"strings"
	"time"
)

// Built-in panel names.
const (
	AppStatsName      = "AppStats"
	EventStatsName    = "EventStats"
	AnomalyStatsName  = "AnomalyStats"
	EndpointAuditName = "EndpointAudit"
)

const (
	statsInterval = 2 * time.Second
	auditInterval = 4 * time.Second

	// AuditIndexParam is the query parameter regenerated on every audit tick.
	// Its value is opaque to the dashboard.
	AuditIndexParam = "index"

	// AuditIndexRange bounds the audit index: values are in [0, AuditIndexRange).
	AuditIndexRange = 100
)

// DefaultAuditEndpoints are the audit endpoints mounted by [NewAppRoot].
var DefaultAuditEndpoints = []string{"readings/power-usage", "readings/location"}

// AppStatsRenderer renders GET /processing/stats.
var AppStatsRenderer = FieldRenderer(FieldLayout{
	Title: "Latest Stats",
	Fields: []Field{
		{Label: "# PU: ", Path: "total_power_usage_events"},
		{Label: "# LO: ", Path: "total_location_events"},
		{Label: "Max Power Usage: ", Path: "max_power_W"},
		{Label: "Max Temperature C: ", Path: "max_temperature_C"},
		{Label: "Average SoC %: ", Path: "average_state_of_charge"},
	},
	Footer: &Field{Label: "Last Updated: ", Path: "date_created"},
})

// EventStatsRenderer renders GET /event_logger/event_stats.
var EventStatsRenderer = FieldRenderer(FieldLayout{
	Title: "Event Log Statistics",
	Fields: []Field{
		{Label: "0001 Events Logged: ", Path: "event_0001"},
		{Label: "0002 Events Logged: ", Path: "event_0002"},
		{Label: "0003 Events Logged: ", Path: "event_0003"},
		{Label: "0004 Events Logged: ", Path: "event_0004"},
	},
})

// AnomalyStatsRenderer renders GET /anomaly_detector/anomaly_stats.
var AnomalyStatsRenderer = FieldRenderer(FieldLayout{
	Title: "Anomaly Statistics",
	Fields: []Field{
		{Label: "High Temp Anomalies: ", Path: "num_anomalies.High Temp"},
		{Label: "Low SoC Anomalies: ", Path: "num_anomalies.Low SoC"},
		{Path: "most_recent_desc"},
		{Path: "most_recent_datetime"},
	},
})

// NewAppStatsPanel creates the processing statistics panel polling
// {baseURL}/processing/stats every 2 seconds. opts are applied last.
func NewAppStatsPanel(baseURL string, opts ...PanelOption) (Panel, error) {
	return NewPanel(AppStatsName, joinURL(baseURL, "processing/stats"), append([]PanelOption{
		WithInterval(statsInterval),
		WithRenderer(AppStatsRenderer),
		WithErrorText(FixedErrorText(FetchErrorText)),
	}, opts...)...)
}

// NewEventStatsPanel creates the event log panel polling
// {baseURL}/event_logger/event_stats every 2 seconds. opts are applied last.
func NewEventStatsPanel(baseURL string, opts ...PanelOption) (Panel, error) {
	return NewPanel(EventStatsName, joinURL(baseURL, "event_logger/event_stats"), append([]PanelOption{
		WithInterval(statsInterval),
		WithRenderer(EventStatsRenderer),
		WithErrorText(MessageErrorText),
	}, opts...)...)
}

// NewAnomalyStatsPanel creates the anomaly panel polling
// {baseURL}/anomaly_detector/anomaly_stats every 2 seconds. opts are applied last.
func NewAnomalyStatsPanel(baseURL string, opts ...PanelOption) (Panel, error) {
	return NewPanel(AnomalyStatsName, joinURL(baseURL, "anomaly_detector/anomaly_stats"), append([]PanelOption{
		WithInterval(statsInterval),
		WithRenderer(AnomalyStatsRenderer),
		WithErrorText(MessageErrorText),
	}, opts...)...)
}

// NewEndpointAuditPanels creates one audit panel per endpoint, each polling
// {auditURL}/{endpoint}?index=N every 4 seconds with N random in [0,100).
//
// Each view is titled "{endpoint}-{index}" with the index of the request
// that produced it, followed by the stringified payload.
func NewEndpointAuditPanels(auditURL string, endpoints []string, opts ...PanelOption) ([]Panel, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("at least one audit endpoint required")
	}
	return NewPanelGrid(EndpointAuditName,
		WithURLTemplate(strings.TrimRight(auditURL, "/")+"/{{.endpoint}}"),
		WithDimensions(map[string][]string{"endpoint": endpoints}),
		WithGridPanelOptions(append([]PanelOption{
			WithInterval(auditInterval),
			WithRandomQueryParam(AuditIndexParam, AuditIndexRange),
			WithErrorText(FixedErrorText(FetchErrorText)),
		}, opts...)...),
		WithGridRenderer(func(combo map[string]string) Renderer {
			return BodyRenderer(combo["endpoint"], AuditIndexParam)
		}),
	)
}

// rootConfig holds state during AppRoot composition.
type rootConfig struct {
	auditEndpoints []string
	anomaly        bool
	panelOpts      []PanelOption
}

// RootOption configures [NewAppRoot].
type RootOption func(*rootConfig) error

// WithAuditEndpoints replaces [DefaultAuditEndpoints].
func WithAuditEndpoints(endpoints ...string) RootOption {
	return func(cfg *rootConfig) error {
		if len(endpoints) == 0 {
			return errors.New("at least one audit endpoint required")
		}
		cfg.auditEndpoints = append([]string(nil), endpoints...)
		return nil
	}
}

// WithAnomalyStats mounts the AnomalyStats panel after EventStats.
func WithAnomalyStats() RootOption {
	return func(cfg *rootConfig) error {
		cfg.anomaly = true
		return nil
	}
}

// WithRootPanelOptions applies opts to every composed panel.
func WithRootPanelOptions(opts ...PanelOption) RootOption {
	return func(cfg *rootConfig) error {
		cfg.panelOpts = append(cfg.panelOpts, opts...)
		return nil
	}
}

// NewAppRoot composes the dashboard layout: AppStats, EventStats, optionally
// AnomalyStats, then one EndpointAudit panel per audit endpoint.
//
// AppRoot holds no state and issues no requests; the returned panels are
// mounted with [WithPanels].
//
// Example:
//
//	panels, err := statsboard.NewAppRoot("http://backend", "http://backend:8110")
//	board, err := statsboard.New(statsboard.WithPanels(panels...))
func NewAppRoot(baseURL, auditURL string, opts ...RootOption) ([]Panel, error) {
	cfg := &rootConfig{
		auditEndpoints: append([]string(nil), DefaultAuditEndpoints...),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	appStats, err := NewAppStatsPanel(baseURL, cfg.panelOpts...)
	if err != nil {
		return nil, err
	}
	eventStats, err := NewEventStatsPanel(baseURL, cfg.panelOpts...)
	if err != nil {
		return nil, err
	}
	panels := []Panel{appStats, eventStats}

	if cfg.anomaly {
		anomalyStats, err := NewAnomalyStatsPanel(baseURL, cfg.panelOpts...)
		if err != nil {
			return nil, err
		}
		panels = append(panels, anomalyStats)
	}

	audits, err := NewEndpointAuditPanels(auditURL, cfg.auditEndpoints, cfg.panelOpts...)
	if err != nil {
		return nil, err
	}
	return append(panels, audits...), nil
}

// joinURL appends path to base with exactly one slash between them.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
