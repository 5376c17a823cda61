package statsboard

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const defaultPanelInterval = 2 * time.Second

// Panel is one self-contained polling and display unit bound to one endpoint.
//
// Panel is immutable after creation via [NewPanel]. All fields are private
// with getters that return copies of mutable data.
//
// A panel fetches its URL every interval and renders the latest
// [DisplayState] with its [Renderer]. Panels never share state.
type Panel struct {
	name        string
	url         string
	interval    time.Duration
	timeout     time.Duration
	headers     map[string]string
	renderer    Renderer
	errorText   ErrorText
	queryParams []queryParam
	schema      schemaCheck
	immediate   bool
}

// queryParam is a query parameter regenerated on every tick.
type queryParam struct {
	name     string
	generate func() string
}

// Name returns the panel's display name. Names are unique within a board.
func (p Panel) Name() string {
	return p.name
}

// URL returns the panel's base URL, without generated query parameters.
func (p Panel) URL() string {
	return p.url
}

// Interval returns the time between ticks.
func (p Panel) Interval() time.Duration {
	return p.interval
}

// Timeout returns the per-request timeout. Zero means no timeout.
func (p Panel) Timeout() time.Duration {
	return p.timeout
}

// Headers returns a copy of the custom request headers.
func (p Panel) Headers() map[string]string {
	return copyMap(p.headers)
}

// Strict reports whether payloads are validated against a response schema.
func (p Panel) Strict() bool {
	return p.schema != nil
}

// ImmediateStart reports whether the first fetch fires at mount rather than
// on the first tick.
func (p Panel) ImmediateStart() bool {
	return p.immediate
}

// RequestURL builds the URL for one tick, regenerating every query parameter
// registered with [WithQueryParam] or [WithRandomQueryParam].
//
// It returns the URL and the generated parameter values, which travel with the
// request so the rendered view reflects the values actually sent.
func (p Panel) RequestURL() (string, map[string]string) {
	if len(p.queryParams) == 0 {
		return p.url, nil
	}

	// URL was validated in NewPanel
	u, _ := url.Parse(p.url)
	q := u.Query()
	params := make(map[string]string, len(p.queryParams))
	for _, qp := range p.queryParams {
		v := qp.generate()
		q.Set(qp.name, v)
		params[qp.name] = v
	}
	u.RawQuery = q.Encode()
	return u.String(), params
}

// Render produces the view of state: the loading indicator, the error
// indicator, or the panel renderer's view of the payload.
//
// An error view holds only the error text, never partial data.
func (p Panel) Render(state DisplayState) View {
	switch state.Kind {
	case StateLoaded:
		return p.renderer(state.Payload, state.Params)
	case StateFailed:
		return View{Kind: StateFailed, Lines: []string{p.errorText(state.Err)}}
	default:
		return View{Kind: StateLoading, Lines: []string{LoadingText}}
	}
}

// Validate checks payload against the panel's response schema. Lenient
// panels accept every payload.
func (p Panel) Validate(payload []byte) error {
	if p.schema == nil {
		return nil
	}
	return p.schema(payload)
}

// NewPanel creates a [Panel] with the given name, URL and options.
//
// The rawURL must be an absolute http or https URL. Unless overridden, the
// panel polls every 2 seconds with no request timeout, renders the whole
// payload with [BodyRenderer] and shows [FetchErrorText] on failure.
//
// Example:
//
//	p, err := statsboard.NewPanel("EventStats", "http://backend/event_logger/event_stats",
//	    statsboard.WithInterval(2*time.Second),
//	    statsboard.WithRenderer(eventRenderer),
//	)
func NewPanel(name, rawURL string, opts ...PanelOption) (Panel, error) {
	if name == "" {
		return Panel{}, errors.New("panel name cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Panel{}, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Panel{}, errors.New("URL must have an http:// or https:// scheme")
	}
	if parsedURL.Host == "" {
		return Panel{}, errors.New("URL must have a host")
	}

	cfg := &panelConfig{
		headers:  make(map[string]string),
		interval: defaultPanelInterval,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Panel{}, err
		}
	}

	renderer := cfg.renderer
	if renderer == nil {
		renderer = BodyRenderer(name, "")
	}
	errorText := cfg.errorText
	if errorText == nil {
		errorText = FixedErrorText(FetchErrorText)
	}

	return Panel{
		name:        name,
		url:         rawURL,
		interval:    cfg.interval,
		timeout:     cfg.timeout,
		headers:     cfg.headers,
		renderer:    renderer,
		errorText:   errorText,
		queryParams: cfg.queryParams,
		schema:      cfg.schema,
		immediate:   cfg.immediate,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
