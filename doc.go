// Package statsboard provides an embeddable telemetry statistics dashboard
// that polls JSON endpoints and renders each one as a text panel.
//
// Statsboard is SDK-first: panels and boards are immutable values built with
// functional options, and the dashboard runs as part of the host program.
//
// # Quick Start
//
// Compose the standard layout and start the dashboard with graceful shutdown:
//
//	panels, _ := statsboard.NewAppRoot("http://backend", "http://backend:8110")
//	board, _ := statsboard.New(statsboard.WithPanels(panels...))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	board.Start(ctx) // blocks until context is cancelled
//
// # Panels
//
// A [Panel] owns one endpoint, one polling interval and one [Renderer]. Every
// tick it issues a request whether or not earlier ones have resolved, and
// every resolution replaces the panel's [DisplayState]:
//
//	p, err := statsboard.NewPanel("EventStats", "http://backend/event_logger/event_stats",
//	    statsboard.WithInterval(2*time.Second),
//	    statsboard.WithRenderer(statsboard.EventStatsRenderer),
//	    statsboard.WithErrorText(statsboard.MessageErrorText),
//	)
//
// Built-in panels are [NewAppStatsPanel], [NewEventStatsPanel],
// [NewAnomalyStatsPanel] and [NewEndpointAuditPanels]. [NewAppRoot] composes
// them in layout order and [NewPanelGrid] expands a URL template over
// dimension values.
//
// # Rendering
//
// A panel shows [LoadingText] until its first request resolves, then either
// the renderer's [View] of the payload or its error text. Renderers are
// lenient: missing keys print as empty values. [WithStrictSchema] turns a
// payload that does not match a response schema into a failure instead.
//
// # Ordering
//
// Requests of one panel may resolve out of issue order. By default the most
// recently resolved request wins ([ResolutionOrder]); [WithOrdering] with
// [IssueOrder] ignores results older than the one displayed.
//
// # Architecture
//
//   - internal/poller: per-panel tickers and the HTTP client
//   - internal/store: latest state per panel with pub/sub for live updates
//   - internal/server: dashboard page, JSON and text snapshots, SSE, WebSocket and probes
//   - internal/history: optional SQLite recorder of state updates
//   - dashboard: embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package statsboard
