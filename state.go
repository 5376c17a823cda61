package statsboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StateKind identifies which variant of [DisplayState] is active.
type StateKind string

const (
	// StateLoading means no request has resolved yet.
	StateLoading StateKind = "loading"

	// StateLoaded means the latest resolved request returned a JSON payload.
	StateLoaded StateKind = "loaded"

	// StateFailed means the latest resolved request failed.
	StateFailed StateKind = "failed"
)

// String returns the string representation of the kind.
func (k StateKind) String() string {
	return string(k)
}

// ErrFetchFailure is the single failure kind of a panel fetch. Network errors,
// non-2xx responses, unreadable bodies and non-JSON bodies all match it via
// [errors.Is].
var ErrFetchFailure = errors.New("fetch failure")

// FetchError describes a failed fetch. It matches [ErrFetchFailure].
type FetchError struct {
	// URL is the request URL that failed.
	URL string

	// StatusCode is the HTTP status code, or zero if no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is [ErrFetchFailure].
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailure
}

// DisplayState is the three-way variant driving what a panel renders.
//
// Exactly one of the kinds is active at a time. A panel starts as
// [StateLoading] and moves to [StateLoaded] or [StateFailed] every time a
// request resolves. It never returns to loading.
type DisplayState struct {
	// Kind is the active variant.
	Kind StateKind

	// Payload is the raw JSON body. Set only for StateLoaded.
	Payload json.RawMessage

	// Err is the failure reason. Set only for StateFailed.
	Err error

	// Params holds the generated query parameters of the request that
	// produced this state (e.g. the audit "index").
	Params map[string]string
}

// Loading returns the initial display state.
func Loading() DisplayState {
	return DisplayState{Kind: StateLoading}
}

// Loaded returns a display state holding payload.
func Loaded(payload json.RawMessage, params map[string]string) DisplayState {
	return DisplayState{Kind: StateLoaded, Payload: payload, Params: params}
}

// Failed returns a display state holding err.
func Failed(err error) DisplayState {
	return DisplayState{Kind: StateFailed, Err: err}
}

// StateUpdate is delivered to state callbacks every time a panel request
// resolves and its state has been rendered.
//
// StateUpdate is immutable after creation; maps and slices are copies.
type StateUpdate struct {
	// PanelName is the name of the panel that was polled.
	PanelName string

	// URL is the exact request URL, including generated query parameters.
	URL string

	// State is the resulting display state.
	State DisplayState

	// View is the rendering of State.
	View View

	// Generation is the per-panel issue counter of the request.
	Generation uint64

	// Latency is the time taken by the request.
	Latency time.Duration

	// IssuedAt is when the request was issued.
	IssuedAt time.Time

	// ResolvedAt is when the request resolved.
	ResolvedAt time.Time

	// StatusCode is the HTTP status code, zero if no response was received.
	StatusCode int
}
