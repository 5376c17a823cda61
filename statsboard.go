package statsboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/statsboard/dashboard"
	"github.com/jpalmerr/statsboard/internal/poller"
	"github.com/jpalmerr/statsboard/internal/server"
	"github.com/jpalmerr/statsboard/internal/store"
)

const (
	defaultPort    = 8080
	recordTimeout  = 5 * time.Second
	recordBuffer   = 256
	errPanicFormat = "render panic (correlation_id: %s)"
)

// Board mounts panels, polls them and serves the dashboard.
//
// Board is created using [New] with functional options and started with
// [Board.Start]. Each panel polls independently; the board keeps the latest
// rendered state of every panel and pushes changes to connected browsers.
//
// The typical lifecycle is:
//
//	panels, err := statsboard.NewAppRoot(baseURL, auditURL)
//	if err != nil {
//	    slog.Error("failed to compose panels", "error", err)
//	    os.Exit(1)
//	}
//	board, err := statsboard.New(statsboard.WithPanels(panels...))
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	board.Start(ctx) // blocks until context cancelled
type Board struct {
	title          string
	panels         []Panel
	byName         map[string]Panel
	port           int
	logger         *slog.Logger
	stateCallbacks []func(StateUpdate)
	ordering       Ordering
	recorder       Recorder
}

// New creates a new [Board] with the given options.
//
// At least one panel must be configured via [WithPanel] or [WithPanels], and
// panel names must be unique. Other options default to port 8080,
// [ResolutionOrder] and [slog.Default].
//
// Example:
//
//	board, err := statsboard.New(
//	    statsboard.WithPanels(panels...),
//	    statsboard.WithPort(9090),
//	    statsboard.WithOrdering(statsboard.IssueOrder),
//	)
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		port:     defaultPort,
		ordering: ResolutionOrder,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.panels) == 0 {
		return nil, errors.New("at least one panel is required")
	}

	byName := make(map[string]Panel, len(cfg.panels))
	for _, p := range cfg.panels {
		if p.name == "" || p.renderer == nil {
			return nil, errors.New("panels must be created with NewPanel")
		}
		if _, dup := byName[p.name]; dup {
			return nil, fmt.Errorf("duplicate panel name: %q", p.name)
		}
		byName[p.name] = p
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Board{
		title:          cfg.title,
		panels:         cfg.panels,
		byName:         byName,
		port:           cfg.port,
		logger:         logger,
		stateCallbacks: cfg.stateCallbacks,
		ordering:       cfg.ordering,
		recorder:       cfg.recorder,
	}, nil
}

// Start mounts every panel, polls them and serves the dashboard.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - Every panel starts in the loading state
//   - Each panel issues one request per tick of its own interval
//   - Every resolution is rendered, stored and pushed to browsers
//   - The dashboard is available at http://localhost:<port>
//
// On cancellation the tickers stop; requests still in flight are not
// aborted and their results are discarded.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start.
func (b *Board) Start(ctx context.Context) error {
	b.logger.Info("statsboard starting",
		"panel_count", len(b.panels),
		"ordering", b.ordering.String(),
	)
	b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))

	if ctx.Err() != nil {
		return nil
	}

	panelStore := store.NewMemoryStore(b.ordering.storeOrdering())
	for _, p := range b.panels {
		panelStore.Register(store.PanelState{
			Name: p.name,
			URL:  p.url,
			View: toStoreView(p.Render(Loading())),
		})
	}

	scheduler := poller.NewScheduler(b.toPollerPanels(), b.logger)
	scheduler.Start(ctx)

	var records chan StateUpdate
	var recordWG sync.WaitGroup
	if b.recorder != nil {
		records = make(chan StateUpdate, recordBuffer)
		recordWG.Add(1)
		go func() {
			defer recordWG.Done()
			b.runRecorder(ctx, records)
		}()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range scheduler.Results() {
			b.handleResult(panelStore, records, result)
		}
	}()

	cleanup := func() {
		scheduler.Stop() // closes results channel
		wg.Wait()
		if records != nil {
			close(records)
			recordWG.Wait()
		}
	}

	httpServer := server.NewServer(panelStore, b.port, dashboard.Assets, b.title, b.logger)
	httpServer.AddChecker(panelsChecker(panelStore))
	if pinger, ok := b.recorder.(interface{ Ping(context.Context) error }); ok {
		httpServer.AddChecker(server.NewCheckFunc("recorder", func(ctx context.Context) (server.Status, string) {
			if err := pinger.Ping(ctx); err != nil {
				return server.StatusDegraded, err.Error()
			}
			return server.StatusHealthy, ""
		}))
	}

	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	b.logger.Info("statsboard stopped")
	return nil
}

// RenderOnce issues one request per panel concurrently and returns the
// resulting updates in layout order.
//
// RenderOnce ignores intervals and immediate start. The board's callbacks
// and recorder are not invoked.
func (b *Board) RenderOnce(ctx context.Context) []StateUpdate {
	client := poller.NewClient()
	defer client.Close()

	updates := make([]StateUpdate, len(b.panels))
	var wg sync.WaitGroup
	for i, p := range b.panels {
		wg.Add(1)
		go func(i int, p Panel) {
			defer wg.Done()
			issuedAt := time.Now()
			url, params := p.RequestURL()
			resp := client.Fetch(ctx, url, p.headers, p.timeout)
			updates[i] = b.resolve(p, poller.Result{
				PanelName:  p.name,
				URL:        url,
				Params:     params,
				Generation: 1,
				Body:       resp.Body,
				StatusCode: resp.StatusCode,
				Latency:    resp.Latency,
				IssuedAt:   issuedAt,
				ResolvedAt: time.Now(),
				Error:      resp.Error,
			})
		}(i, p)
	}
	wg.Wait()
	return updates
}

// Panels returns a copy of the mounted panels in layout order.
func (b *Board) Panels() []Panel {
	cp := make([]Panel, len(b.panels))
	copy(cp, b.panels)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (b *Board) Port() int {
	return b.port
}

// Ordering returns the configured ordering policy.
func (b *Board) Ordering() Ordering {
	return b.ordering
}

// handleResult turns one resolved request into a stored, published update.
// Applied updates are queued on records, if non-nil, without blocking.
func (b *Board) handleResult(st store.Store, records chan<- StateUpdate, result poller.Result) {
	p, ok := b.byName[result.PanelName]
	if !ok {
		b.logger.Error("result for unknown panel", "panel", result.PanelName)
		return
	}

	update := b.resolve(p, result)

	if !st.Update(toStoreState(update)) {
		b.logger.Debug("dropping result issued before the displayed one",
			"panel", update.PanelName,
			"generation", update.Generation,
		)
		return
	}

	for _, cb := range b.stateCallbacks {
		invokeCallbackSafe(cb, copyUpdate(update), b.logger)
	}

	if records != nil {
		select {
		case records <- copyUpdate(update):
		default:
			b.logger.Warn("recorder is behind, dropping state update",
				"panel", update.PanelName,
				"generation", update.Generation,
			)
		}
	}

	logAttrs := []any{
		"state", update.State.Kind.String(),
		"panel", update.PanelName,
		"url", update.URL,
		"generation", update.Generation,
		"latency_ms", update.Latency.Milliseconds(),
	}
	if update.State.Err != nil {
		b.logger.Warn("panel request failed", append(logAttrs, "error", update.State.Err.Error())...)
	} else {
		b.logger.Debug("panel updated", logAttrs...)
	}
}

// runRecorder hands queued updates to the recorder one at a time until
// records is closed. Writes outlive ctx so updates queued before shutdown
// are still stored.
func (b *Board) runRecorder(ctx context.Context, records <-chan StateUpdate) {
	for update := range records {
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		if err := b.recorder.Record(recCtx, update); err != nil {
			b.logger.Warn("failed to record state update", "panel", update.PanelName, "error", err)
		}
		cancel()
	}
}

// resolve computes the display state and view of a resolved request.
func (b *Board) resolve(p Panel, result poller.Result) StateUpdate {
	var state DisplayState
	switch {
	case result.Error != nil:
		state = Failed(&FetchError{URL: result.URL, StatusCode: result.StatusCode, Err: result.Error})
	default:
		payload := json.RawMessage(copyBytes(result.Body))
		if err := p.Validate(payload); err != nil {
			state = Failed(err)
		} else {
			state = Loaded(payload, copyMap(result.Params))
		}
	}

	view, err := b.safeRender(p, state)
	if err != nil {
		state = Failed(err)
		view, err = b.safeRender(p, state)
		if err != nil {
			view = View{Kind: StateFailed, Lines: []string{FetchErrorText}}
		}
	}

	return StateUpdate{
		PanelName:  p.name,
		URL:        result.URL,
		State:      state,
		View:       view,
		Generation: result.Generation,
		Latency:    result.Latency,
		IssuedAt:   result.IssuedAt,
		ResolvedAt: result.ResolvedAt,
		StatusCode: result.StatusCode,
	}
}

// safeRender renders state with panic recovery.
// A panic is logged with its stack and a correlation ID, which is carried in
// the returned error.
func (b *Board) safeRender(p Panel, state DisplayState) (view View, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			b.logger.Error("renderer panic",
				"correlation_id", correlationID,
				"panel", p.name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf(errPanicFormat, correlationID)
		}
	}()
	return p.Render(state), nil
}

// toPollerPanels converts panels to the scheduler's format.
func (b *Board) toPollerPanels() []poller.PanelInfo {
	result := make([]poller.PanelInfo, len(b.panels))
	for i, p := range b.panels {
		result[i] = poller.PanelInfo{
			Name:      p.name,
			URL:       p.RequestURL,
			Headers:   copyMap(p.headers),
			Timeout:   p.timeout,
			Interval:  p.interval,
			Immediate: p.immediate,
		}
	}
	return result
}

// panelsChecker reports degraded health while any panel shows an error.
func panelsChecker(st store.Store) server.HealthChecker {
	return server.NewCheckFunc("panels", func(context.Context) (server.Status, string) {
		var failed []string
		for _, s := range st.GetAll() {
			if s.View.Kind == StateFailed.String() {
				failed = append(failed, s.Name)
			}
		}
		if len(failed) > 0 {
			return server.StatusDegraded, "failing: " + strings.Join(failed, ", ")
		}
		return server.StatusHealthy, ""
	})
}

func toStoreView(v View) store.View {
	return store.View{
		Kind:   v.Kind.String(),
		Title:  v.Title,
		Lines:  append([]string(nil), v.Lines...),
		Footer: v.Footer,
	}
}

func toStoreState(u StateUpdate) store.PanelState {
	var errStr *string
	if u.State.Err != nil {
		s := u.State.Err.Error()
		errStr = &s
	}
	return store.PanelState{
		Name:           u.PanelName,
		URL:            u.URL,
		View:           toStoreView(u.View),
		Generation:     u.Generation,
		ResponseTimeMs: u.Latency.Milliseconds(),
		StatusCode:     u.StatusCode,
		UpdatedAt:      u.ResolvedAt,
		Error:          errStr,
	}
}

// copyUpdate returns u with its mutable fields copied.
func copyUpdate(u StateUpdate) StateUpdate {
	u.State.Payload = copyBytes(u.State.Payload)
	u.State.Params = copyMap(u.State.Params)
	u.View.Lines = append([]string(nil), u.View.Lines...)
	return u
}

// copyBytes returns a copy of the byte slice, or nil if input is nil.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// invokeCallbackSafe calls a state callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(StateUpdate), update StateUpdate, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("state callback panicked",
				"panic", r,
				"panel", update.PanelName,
			)
		}
	}()
	cb(update)
}
