package store

import "time"

// View is the storage representation of a rendered panel.
type View struct {
	// Kind is "loading", "loaded" or "failed".
	Kind string `json:"kind"`

	// Title is the optional view heading.
	Title string `json:"title,omitempty"`

	// Lines are the body lines of the view.
	Lines []string `json:"lines"`

	// Footer is the optional trailing line.
	Footer string `json:"footer,omitempty"`
}

// PanelState is the current state of a panel in storage.
//
// PanelState is optimized for JSON serialization (used by the REST API, SSE
// and WebSocket). It is decoupled from the statsboard types to allow
// independent evolution.
type PanelState struct {
	// Name is the panel's display name.
	Name string `json:"name"`

	// URL is the request URL of the state, including generated parameters.
	URL string `json:"url"`

	// View is the rendered display state.
	View View `json:"view"`

	// Generation is the issue counter of the request that produced this state.
	// Zero for the initial loading state.
	Generation uint64 `json:"generation"`

	// ResponseTimeMs is the request latency in milliseconds.
	ResponseTimeMs int64 `json:"response_time_ms"`

	// StatusCode is the HTTP status code, zero if no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// UpdatedAt is when the request resolved. Zero for the initial state.
	UpdatedAt time.Time `json:"updated_at"`

	// Error contains the failure message if the request failed.
	Error *string `json:"error"`
}

// Ordering decides which resolved request a panel displays when requests
// resolve out of issue order.
type Ordering int

const (
	// ResolutionOrder displays the most recently resolved request.
	ResolutionOrder Ordering = iota

	// IssueOrder ignores a result issued before the one already displayed.
	IssueOrder
)

// String returns the configuration name of the ordering.
func (o Ordering) String() string {
	switch o {
	case IssueOrder:
		return "issue"
	default:
		return "resolution"
	}
}

// Store defines the interface for storing and subscribing to panel states.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients.
type Store interface {
	// Register adds a panel in its initial state. Panels are listed in
	// registration order. Registering a known name is a no-op.
	Register(state PanelState)

	// Update stores a new panel state and notifies all subscribers.
	// It returns false if the ordering policy rejected the state.
	Update(state PanelState) bool

	// Get returns the current state of the named panel.
	Get(name string) (PanelState, bool)

	// GetAll returns all panel states in registration order.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []PanelState

	// Subscribe returns a channel that receives panel updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan PanelState

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan PanelState)
}
