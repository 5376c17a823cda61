package statsboard

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"time"
)

const (
	minPanelInterval = 100 * time.Millisecond
	maxPanelInterval = time.Hour
)

// panelConfig holds mutable state during panel construction.
type panelConfig struct {
	interval    time.Duration
	timeout     time.Duration
	headers     map[string]string
	renderer    Renderer
	errorText   ErrorText
	queryParams []queryParam
	schema      schemaCheck
	immediate   bool
}

// PanelOption configures a [Panel] during construction.
//
// PanelOption implements the functional options pattern for [NewPanel].
// Options return an error if validation fails.
type PanelOption func(*panelConfig) error

// WithInterval sets the time between ticks.
//
// The interval must be between 100ms and 1 hour. Ticks fire at this
// interval regardless of whether earlier requests have resolved.
func WithInterval(d time.Duration) PanelOption {
	return func(cfg *panelConfig) error {
		if d < minPanelInterval {
			return errors.New("interval must be at least 100ms")
		}
		if d > maxPanelInterval {
			return errors.New("interval must not exceed 1 hour")
		}
		cfg.interval = d
		return nil
	}
}

// WithTimeout sets a per-request timeout.
//
// Panels have no timeout by default: a hung request only delays its own
// state update, later ticks fire independently. A request that times out
// moves the panel to [StateFailed].
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) PanelOption {
	return func(cfg *panelConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithHeaders adds HTTP headers to every request of the panel.
//
// Accepts variadic key-value pairs. Returns an error if an odd number of
// arguments is provided.
func WithHeaders(keyValues ...string) PanelOption {
	return func(cfg *panelConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithRenderer sets how a loaded payload is turned into a [View].
func WithRenderer(r Renderer) PanelOption {
	return func(cfg *panelConfig) error {
		if r == nil {
			return errors.New("renderer cannot be nil")
		}
		cfg.renderer = r
		return nil
	}
}

// WithErrorText sets the text shown when the panel is in [StateFailed].
// Defaults to [FixedErrorText] with [FetchErrorText].
func WithErrorText(e ErrorText) PanelOption {
	return func(cfg *panelConfig) error {
		if e == nil {
			return errors.New("error text cannot be nil")
		}
		cfg.errorText = e
		return nil
	}
}

// WithQueryParam adds a query parameter whose value is produced by generate
// on every tick.
func WithQueryParam(name string, generate func() string) PanelOption {
	return func(cfg *panelConfig) error {
		if name == "" {
			return errors.New("query parameter name cannot be empty")
		}
		if generate == nil {
			return errors.New("query parameter generator cannot be nil")
		}
		for _, qp := range cfg.queryParams {
			if qp.name == name {
				return errors.New("duplicate query parameter: " + name)
			}
		}
		cfg.queryParams = append(cfg.queryParams, queryParam{name: name, generate: generate})
		return nil
	}
}

// WithRandomQueryParam adds a query parameter holding a random integer in
// [0, n), regenerated on every tick.
//
// Example:
//
//	// ?index=0..99, fresh on each request
//	statsboard.WithRandomQueryParam("index", 100)
func WithRandomQueryParam(name string, n int) PanelOption {
	if n <= 0 {
		return func(*panelConfig) error {
			return errors.New("random query parameter range must be positive")
		}
	}
	return WithQueryParam(name, func() string {
		return strconv.Itoa(rand.IntN(n))
	})
}

// WithStrictSchema validates every payload against the response schema T.
//
// T is a struct with validate tags, such as [ProcessingStats]. A payload that
// fails to decode or validate moves the panel to [StateFailed] with an error
// matching [ErrSchemaMismatch], instead of rendering missing fields as empty.
func WithStrictSchema[T any]() PanelOption {
	return func(cfg *panelConfig) error {
		cfg.schema = newSchemaCheck[T]()
		return nil
	}
}

// WithImmediateStart fires the first fetch when the panel is mounted instead
// of waiting for the first tick.
func WithImmediateStart() PanelOption {
	return func(cfg *panelConfig) error {
		cfg.immediate = true
		return nil
	}
}
