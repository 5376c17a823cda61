package statsboard

import (
	"bytes"
	"encoding/json"
	"strings"
)

// LoadingText is shown by every panel before its first request resolves.
const LoadingText = "Loading..."

// FetchErrorText is the fixed error placeholder used by panels that do not
// show the failure message.
const FetchErrorText = "Error found when fetching from API"

// View is the rendered form of a panel's [DisplayState].
//
// Views are plain text: an optional title, body lines and an optional
// footer. Surfaces (HTML page, text endpoint, CLI) only lay them out.
type View struct {
	Kind   StateKind `json:"kind"`
	Title  string    `json:"title,omitempty"`
	Lines  []string  `json:"lines"`
	Footer string    `json:"footer,omitempty"`
}

// Text returns the view as newline separated plain text.
func (v View) Text() string {
	parts := make([]string, 0, len(v.Lines)+2)
	if v.Title != "" {
		parts = append(parts, v.Title)
	}
	parts = append(parts, v.Lines...)
	if v.Footer != "" {
		parts = append(parts, v.Footer)
	}
	return strings.Join(parts, "\n")
}

// Renderer computes the loaded view of a panel from its JSON payload and the
// query parameters generated for the request that produced it.
//
// Renderers must not fail: missing keys render as empty strings. They are
// called within a panic recovery boundary; a panicking renderer moves the
// panel to [StateFailed].
type Renderer func(payload json.RawMessage, params map[string]string) View

// ErrorText produces the text shown when a panel is in [StateFailed].
type ErrorText func(err error) string

// FixedErrorText returns an [ErrorText] that always shows text.
func FixedErrorText(text string) ErrorText {
	return func(error) string {
		return text
	}
}

// MessageErrorText shows "Error: " followed by the failure message.
func MessageErrorText(err error) string {
	if err == nil {
		return "Error: "
	}
	return "Error: " + err.Error()
}

// Field binds a label to a value in the payload.
//
// Path uses dot notation to walk nested objects; segments may contain
// spaces, so "num_anomalies.High Temp" reads {"num_anomalies": {"High Temp": 3}}.
type Field struct {
	Label string
	Path  string
}

// FieldLayout describes a view made of labelled payload fields.
type FieldLayout struct {
	// Title is the static view heading.
	Title string

	// Fields are rendered one per line as Label + value.
	Fields []Field

	// Footer, if set, is rendered after the fields.
	Footer *Field
}

// FieldRenderer returns a [Renderer] that prints each field of layout as
// "Label" followed by the value found at its path.
//
// Values are printed as they appear in the JSON: numbers keep their literal
// form, strings are unquoted, objects and arrays are compact JSON. Missing
// keys and null print nothing.
//
// Example:
//
//	r := statsboard.FieldRenderer(statsboard.FieldLayout{
//	    Title:  "Event Log Statistics",
//	    Fields: []statsboard.Field{{Label: "0001 Events Logged: ", Path: "event_0001"}},
//	})
func FieldRenderer(layout FieldLayout) Renderer {
	type compiled struct {
		label string
		parts []string
	}
	fields := make([]compiled, len(layout.Fields))
	for i, f := range layout.Fields {
		fields[i] = compiled{label: f.Label, parts: splitPath(f.Path)}
	}
	var footer *compiled
	if layout.Footer != nil {
		footer = &compiled{label: layout.Footer.Label, parts: splitPath(layout.Footer.Path)}
	}

	return func(payload json.RawMessage, _ map[string]string) View {
		data := decodePayload(payload)

		v := View{
			Kind:  StateLoaded,
			Title: layout.Title,
			Lines: make([]string, len(fields)),
		}
		for i, f := range fields {
			v.Lines[i] = f.label + formatValue(lookupPath(data, f.parts))
		}
		if footer != nil {
			v.Footer = footer.label + formatValue(lookupPath(data, footer.parts))
		}
		return v
	}
}

// BodyRenderer returns a [Renderer] that prints the whole payload as compact
// JSON. The title is name, or "{name}-{value}" when param names a query
// parameter, value being what the resolved request actually sent.
func BodyRenderer(name, param string) Renderer {
	return func(payload json.RawMessage, params map[string]string) View {
		title := name
		if param != "" {
			title = name + "-" + params[param]
		}
		return View{
			Kind:  StateLoaded,
			Title: title,
			Lines: []string{compactJSON(payload)},
		}
	}
}

// LookupField returns the formatted value at the dot-notation path in
// payload, or "" if it does not exist.
func LookupField(payload json.RawMessage, path string) string {
	return formatValue(lookupPath(decodePayload(payload), splitPath(path)))
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// decodePayload decodes JSON keeping numbers in their literal form.
// Invalid JSON decodes to nil.
func decodePayload(payload json.RawMessage) interface{} {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var data interface{}
	if err := dec.Decode(&data); err != nil {
		return nil
	}
	return data
}

// lookupPath walks a decoded JSON structure, returning nil when any
// segment is missing.
func lookupPath(data interface{}, parts []string) interface{} {
	v, _ := walkPath(data, parts)
	return v
}

func walkPath(data interface{}, parts []string) (interface{}, bool) {
	if len(parts) == 0 {
		return nil, false
	}
	current := data
	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// formatValue prints a decoded JSON value the way a text view shows it.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// compactJSON returns payload without insignificant whitespace, preserving
// key order.
func compactJSON(payload json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return string(payload)
	}
	return buf.String()
}
