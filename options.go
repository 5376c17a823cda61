package statsboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jpalmerr/statsboard/internal/store"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	title          string
	panels         []Panel
	port           int
	logger         *slog.Logger
	stateCallbacks []func(StateUpdate)
	ordering       Ordering
	recorder       Recorder
}

// Ordering decides what a panel displays when its requests resolve out of
// issue order.
type Ordering int

const (
	// ResolutionOrder displays the most recently resolved request, even if
	// it was issued before the one currently displayed.
	ResolutionOrder Ordering = iota

	// IssueOrder ignores a resolution issued before the one currently
	// displayed.
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

// ParseOrdering parses "resolution" or "issue". The empty string is
// [ResolutionOrder].
func ParseOrdering(s string) (Ordering, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "resolution":
		return ResolutionOrder, nil
	case "issue":
		return IssueOrder, nil
	default:
		return ResolutionOrder, fmt.Errorf("unknown ordering %q (want resolution or issue)", s)
	}
}

func (o Ordering) storeOrdering() store.Ordering {
	if o == IssueOrder {
		return store.IssueOrder
	}
	return store.ResolutionOrder
}

// Recorder receives every state update applied to a panel.
//
// Recorders are observers: nothing they store is read back into the
// display. Record runs on its own goroutine, one update at a time in the
// order updates were applied, so a slow recorder never delays a panel.
// Up to 256 updates are queued; updates arriving while the queue is full
// are dropped and logged. Record errors are logged.
type Recorder interface {
	Record(ctx context.Context, update StateUpdate) error
}

// Option is a function that configures a [Board] during construction.
//
// Option implements the functional options pattern for [New].
// Options return an error if validation fails.
type Option func(*boardConfig) error

// WithPanel adds a single [Panel] to the board. Panels are laid out in the
// order they are added.
//
// Example:
//
//	board, err := statsboard.New(
//	    statsboard.WithPanel(appStats),
//	    statsboard.WithPanel(eventStats),
//	)
func WithPanel(p Panel) Option {
	return func(cfg *boardConfig) error {
		cfg.panels = append(cfg.panels, p)
		return nil
	}
}

// WithPanels adds multiple panels, typically the result of [NewAppRoot] or
// [NewPanelGrid].
func WithPanels(panels ...Panel) Option {
	return func(cfg *boardConfig) error {
		cfg.panels = append(cfg.panels, panels...)
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// Defaults to 8080. Returns an error if the port is outside 1-65535.
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the board.
//
// If not specified, [slog.Default] is used. Returns an error if the logger
// is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStateCallback registers a function called every time a panel's state
// changes.
//
// The callback receives a [StateUpdate] holding the new display state and
// its rendered view. Results dropped by the ordering policy are not
// delivered.
//
// Multiple callbacks run in registration order, synchronously from a single
// goroutine. Callbacks must not block; dispatch long-running work to a
// separate goroutine. Panics are recovered and logged.
//
// Example:
//
//	board, err := statsboard.New(
//	    statsboard.WithPanels(panels...),
//	    statsboard.WithStateCallback(func(u statsboard.StateUpdate) {
//	        if u.State.Kind == statsboard.StateFailed {
//	            log.Printf("%s failed: %v", u.PanelName, u.State.Err)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithStateCallback(cb func(StateUpdate)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.stateCallbacks = append(cfg.stateCallbacks, cb)
		return nil
	}
}

// WithOrdering sets the policy for requests that resolve out of issue order.
// Defaults to [ResolutionOrder].
func WithOrdering(o Ordering) Option {
	return func(cfg *boardConfig) error {
		if o != ResolutionOrder && o != IssueOrder {
			return fmt.Errorf("unknown ordering %d", o)
		}
		cfg.ordering = o
		return nil
	}
}

// WithRecorder sets a [Recorder] receiving every applied state update.
func WithRecorder(r Recorder) Option {
	return func(cfg *boardConfig) error {
		if r == nil {
			return errors.New("recorder cannot be nil")
		}
		cfg.recorder = r
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "Statsboard".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}
