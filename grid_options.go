package statsboard

import (
	"errors"
	"fmt"
)

// gridConfig holds configuration during panel grid construction.
type gridConfig struct {
	urlTemplate string
	dimensions  map[string][]string
	panelOpts   []PanelOption
	renderer    func(combo map[string]string) Renderer
}

// GridOption configures panel grid generation.
// GridOption implements the functional options pattern for [NewPanelGrid].
type GridOption func(*gridConfig) error

// WithURLTemplate sets the URL template for panel generation.
// The template uses Go's text/template syntax with dimension keys as variables.
//
// Example:
//
//	WithURLTemplate("http://backend:8110/{{.endpoint}}")
//
// Returns an error if the template string is empty.
func WithURLTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("URL template required")
		}
		cfg.urlTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the dimension values for cartesian product expansion.
//
// Returns an error if the map is empty, any dimension has no values, or any
// value is empty or repeated.
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		copied := make(map[string][]string, len(dims))
		for key, values := range dims {
			if key == "" {
				return errors.New("dimension key cannot be empty")
			}
			if len(values) == 0 {
				return fmt.Errorf("dimension %q has no values", key)
			}
			seen := make(map[string]struct{}, len(values))
			for _, v := range values {
				if v == "" {
					return fmt.Errorf("dimension %q contains empty value", key)
				}
				if _, dup := seen[v]; dup {
					return fmt.Errorf("dimension %q has duplicate value %q", key, v)
				}
				seen[v] = struct{}{}
			}
			copied[key] = append([]string(nil), values...)
		}
		cfg.dimensions = copied
		return nil
	}
}

// WithGridPanelOptions applies opts to every generated panel.
func WithGridPanelOptions(opts ...PanelOption) GridOption {
	return func(cfg *gridConfig) error {
		cfg.panelOpts = append(cfg.panelOpts, opts...)
		return nil
	}
}

// WithGridRenderer sets a renderer factory called once per combination, so
// each generated panel can title its view after its own dimension values.
func WithGridRenderer(factory func(combo map[string]string) Renderer) GridOption {
	return func(cfg *gridConfig) error {
		if factory == nil {
			return errors.New("renderer factory cannot be nil")
		}
		cfg.renderer = factory
		return nil
	}
}
