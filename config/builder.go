package config

import (
	"sort"
	"strings"

	"github.com/jpalmerr/statsboard"
)

// BuildPanels converts parsed configuration into SDK panels in layout order:
// the backend panels, then direct panels, then grids.
func BuildPanels(cfg *Config) ([]statsboard.Panel, error) {
	var panels []statsboard.Panel

	if cfg.Backend != nil {
		backend, err := buildBackend(cfg)
		if err != nil {
			return nil, err
		}
		panels = append(panels, backend...)
	}

	for _, pc := range cfg.Panels {
		p, err := buildPanel(cfg, pc)
		if err != nil {
			return nil, err
		}
		panels = append(panels, p)
	}

	for _, gc := range cfg.Grids {
		grid, err := buildGrid(cfg, gc)
		if err != nil {
			return nil, err
		}
		panels = append(panels, grid...)
	}

	return panels, nil
}

// BoardOptions returns the board options described by cfg. Panels, logger
// and recorder are added by the caller.
func BoardOptions(cfg *Config) ([]statsboard.Option, error) {
	ordering, err := statsboard.ParseOrdering(cfg.Ordering)
	if err != nil {
		return nil, err
	}

	opts := []statsboard.Option{
		statsboard.WithPort(cfg.Port),
		statsboard.WithOrdering(ordering),
	}
	if cfg.Title != "" {
		opts = append(opts, statsboard.WithTitle(cfg.Title))
	}
	return opts, nil
}

// globalOptions are applied to every panel before its own settings.
func globalOptions(cfg *Config) []statsboard.PanelOption {
	var opts []statsboard.PanelOption
	if cfg.Timeout != 0 {
		opts = append(opts, statsboard.WithTimeout(cfg.Timeout.Duration()))
	}
	if cfg.Immediate {
		opts = append(opts, statsboard.WithImmediateStart())
	}
	return opts
}

func buildBackend(cfg *Config) ([]statsboard.Panel, error) {
	b := cfg.Backend

	panelOpts := globalOptions(cfg)
	if len(b.Headers) > 0 {
		panelOpts = append(panelOpts, statsboard.WithHeaders(mapToKeyValuePairs(b.Headers)...))
	}

	rootOpts := []statsboard.RootOption{statsboard.WithRootPanelOptions(panelOpts...)}
	if len(b.AuditEndpoints) > 0 {
		rootOpts = append(rootOpts, statsboard.WithAuditEndpoints(b.AuditEndpoints...))
	}
	if b.Anomaly {
		rootOpts = append(rootOpts, statsboard.WithAnomalyStats())
	}

	if !b.Strict {
		return statsboard.NewAppRoot(b.BaseURL, b.AuditURL, rootOpts...)
	}

	// strict schemas differ per panel, so compose the layout by hand
	with := func(opt statsboard.PanelOption) []statsboard.PanelOption {
		return append(append([]statsboard.PanelOption(nil), panelOpts...), opt)
	}

	appStats, err := statsboard.NewAppStatsPanel(b.BaseURL, with(statsboard.WithStrictSchema[statsboard.ProcessingStats]())...)
	if err != nil {
		return nil, err
	}
	eventStats, err := statsboard.NewEventStatsPanel(b.BaseURL, with(statsboard.WithStrictSchema[statsboard.EventStats]())...)
	if err != nil {
		return nil, err
	}
	panels := []statsboard.Panel{appStats, eventStats}

	if b.Anomaly {
		anomaly, err := statsboard.NewAnomalyStatsPanel(b.BaseURL, with(statsboard.WithStrictSchema[statsboard.AnomalyStats]())...)
		if err != nil {
			return nil, err
		}
		panels = append(panels, anomaly)
	}

	endpoints := b.AuditEndpoints
	if len(endpoints) == 0 {
		endpoints = statsboard.DefaultAuditEndpoints
	}
	audits, err := statsboard.NewEndpointAuditPanels(b.AuditURL, endpoints, panelOpts...)
	if err != nil {
		return nil, err
	}
	return append(panels, audits...), nil
}

// buildPanel converts a single PanelConfig to an SDK Panel.
func buildPanel(cfg *Config, pc PanelConfig) (statsboard.Panel, error) {
	opts := append(globalOptions(cfg), commonOptions(pc.Interval, pc.Timeout, pc.Headers, pc.RandomParams, pc.ErrorText)...)

	title := pc.Title
	if title == "" {
		title = pc.Name
	}

	if len(pc.Fields) > 0 || pc.Footer != nil {
		layout := statsboard.FieldLayout{Title: title}
		for _, f := range pc.Fields {
			layout.Fields = append(layout.Fields, statsboard.Field{Label: f.Label, Path: f.Path})
		}
		if pc.Footer != nil {
			layout.Footer = &statsboard.Field{Label: pc.Footer.Label, Path: pc.Footer.Path}
		}
		opts = append(opts, statsboard.WithRenderer(statsboard.FieldRenderer(layout)))
	} else {
		opts = append(opts, statsboard.WithRenderer(statsboard.BodyRenderer(title, pc.TitleParam)))
	}

	return statsboard.NewPanel(pc.Name, pc.URL, opts...)
}

// buildGrid expands a GridConfig into panels titled after their dimension
// values.
func buildGrid(cfg *Config, gc GridConfig) ([]statsboard.Panel, error) {
	panelOpts := append(globalOptions(cfg), commonOptions(gc.Interval, gc.Timeout, gc.Headers, gc.RandomParams, gc.ErrorText)...)
	titleParam := gc.TitleParam

	return statsboard.NewPanelGrid(gc.Name,
		statsboard.WithURLTemplate(gc.URLTemplate),
		statsboard.WithDimensions(gc.Dimensions),
		statsboard.WithGridPanelOptions(panelOpts...),
		statsboard.WithGridRenderer(func(combo map[string]string) statsboard.Renderer {
			return statsboard.BodyRenderer(comboTitle(combo), titleParam)
		}),
	)
}

func commonOptions(interval, timeout Duration, headers map[string]string, params map[string]int, errorText string) []statsboard.PanelOption {
	var opts []statsboard.PanelOption

	if interval != 0 {
		opts = append(opts, statsboard.WithInterval(interval.Duration()))
	}
	if timeout != 0 {
		opts = append(opts, statsboard.WithTimeout(timeout.Duration()))
	}
	if len(headers) > 0 {
		opts = append(opts, statsboard.WithHeaders(mapToKeyValuePairs(headers)...))
	}

	// sorted so generated URLs are deterministic
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, statsboard.WithRandomQueryParam(name, params[name]))
	}

	switch errorText {
	case "", ErrorTextFixed:
		opts = append(opts, statsboard.WithErrorText(statsboard.FixedErrorText(statsboard.FetchErrorText)))
	case ErrorTextMessage:
		opts = append(opts, statsboard.WithErrorText(statsboard.MessageErrorText))
	default:
		opts = append(opts, statsboard.WithErrorText(statsboard.FixedErrorText(errorText)))
	}

	return opts
}

// comboTitle joins dimension values in sorted key order.
func comboTitle(combo map[string]string) string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = combo[k]
	}
	return strings.Join(values, "/")
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
