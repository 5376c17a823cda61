package statsboard

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
)

// NewPanelGrid creates one panel per combination of dimension values using
// cartesian product expansion.
//
// The URL template uses Go's text/template syntax. Dimension values are
// path-escaped segment by segment before interpolation, so a value such as
// "readings/power-usage" keeps its slash. Missing template keys cause an
// error.
//
// Each panel is named "Base Name (val1/val2)", values taken in alphabetical
// key order. Panels are returned in deterministic order.
//
// Example:
//
//	panels, err := NewPanelGrid("EndpointAudit",
//	    WithURLTemplate("http://backend:8110/{{.endpoint}}"),
//	    WithDimensions(map[string][]string{
//	        "endpoint": {"readings/power-usage", "readings/location"},
//	    }),
//	)
func NewPanelGrid(baseName string, opts ...GridOption) ([]Panel, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("base name cannot be empty")
	}

	cfg := &gridConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.urlTemplate == "" {
		return nil, errors.New("URL template required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	tmpl, err := template.New("url").Option("missingkey=error").Parse(cfg.urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}

	combinations := cartesianProduct(cfg.dimensions)
	panels := make([]Panel, 0, len(combinations))
	for _, combo := range combinations {
		var buf strings.Builder
		if err := tmpl.Execute(&buf, escapeSegments(combo)); err != nil {
			return nil, fmt.Errorf("template execution failed: %w", err)
		}

		name := gridPanelName(baseName, combo)

		panelOpts := append([]PanelOption(nil), cfg.panelOpts...)
		if cfg.renderer != nil {
			panelOpts = append(panelOpts, WithRenderer(cfg.renderer(copyMap(combo))))
		}

		p, err := NewPanel(name, buf.String(), panelOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create panel '%s': %w", name, err)
		}
		panels = append(panels, p)
	}

	return panels, nil
}

// cartesianProduct generates all combinations of dimension values.
// Keys are walked in sorted order and values keep their slice order, so
//
//	{"x": ["a","b"], "y": ["1","2"]}
//
// yields a1, a2, b1, b2.
func cartesianProduct(dims map[string][]string) []map[string]string {
	keys := sortedKeys(dims)
	if len(keys) == 0 {
		return nil
	}

	combos := []map[string]string{{}}
	for _, key := range keys {
		next := make([]map[string]string, 0, len(combos)*len(dims[key]))
		for _, combo := range combos {
			for _, v := range dims[key] {
				c := copyMap(combo)
				c[key] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// escapeSegments path-escapes each "/"-separated segment of every value.
func escapeSegments(combo map[string]string) map[string]string {
	out := make(map[string]string, len(combo))
	for k, v := range combo {
		segments := strings.Split(v, "/")
		for i, s := range segments {
			segments[i] = url.PathEscape(s)
		}
		out[k] = strings.Join(segments, "/")
	}
	return out
}

// gridPanelName creates a name in the format "Base (v1/v2)".
func gridPanelName(baseName string, combo map[string]string) string {
	keys := sortedKeys(combo)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = combo[k]
	}
	return fmt.Sprintf("%s (%s)", baseName, strings.Join(values, "/"))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
