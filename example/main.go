package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/statsboard"
	"github.com/jpalmerr/statsboard/internal/mockbackend"
)

const (
	statsAddr = ":8000"
	auditAddr = ":8110"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start the mock backend: statistics and audit endpoints on separate ports
	backend := mockbackend.New(mockbackend.WithLatency(50*time.Millisecond, 200*time.Millisecond))
	go backend.Run(ctx, 3*time.Second)
	go serve(statsAddr, backend.StatsHandler())
	go serve(auditAddr, backend.AuditHandler())
	time.Sleep(100 * time.Millisecond)

	// stats panels, the anomaly panel and one audit panel per endpoint
	panels, err := statsboard.NewAppRoot("http://localhost:8000", "http://localhost:8110",
		statsboard.WithAnomalyStats(),
	)
	if err != nil {
		slog.Error("failed to create panels", "error", err)
		os.Exit(1)
	}

	board, err := statsboard.New(
		statsboard.WithPanels(panels...),
		statsboard.WithPort(8080),
		statsboard.WithTitle("Telemetry Stats"),
		statsboard.WithStateCallback(func(u statsboard.StateUpdate) {
			if u.State.Kind == statsboard.StateFailed {
				slog.Debug("panel failed", "panel", u.PanelName, "error", u.State.Err)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create statsboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Statsboard Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println()
	fmt.Println("  Panels:")
	fmt.Println("    AppStats, EventStats and AnomalyStats every 2s")
	fmt.Println("    EndpointAudit for power-usage and location every 4s")
	fmt.Println("    (audit indexes not yet stored show the fetch error)")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	if err := board.Start(ctx); err != nil {
		slog.Error("statsboard error", "error", err)
		os.Exit(1)
	}
}

func serve(addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("mock backend error", "addr", addr, "error", err)
	}
}
