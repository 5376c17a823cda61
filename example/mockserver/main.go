// Standalone mock backend for trying the CLI.
//
// Usage:
//
//	go run ./example/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/statsboard serve -c example/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/statsboard/internal/mockbackend"
)

func main() {
	statsAddr := flag.String("stats", ":8000", "address of the statistics endpoints")
	auditAddr := flag.String("audit", ":8110", "address of the audit endpoints")
	every := flag.Duration("every", 3*time.Second, "how often new readings arrive")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := mockbackend.New(mockbackend.WithLatency(50*time.Millisecond, 200*time.Millisecond))
	go backend.Run(ctx, *every)

	servers := []*http.Server{
		{Addr: *statsAddr, Handler: backend.StatsHandler(), ReadHeaderTimeout: 5 * time.Second},
		{Addr: *auditAddr, Handler: backend.AuditHandler(), ReadHeaderTimeout: 5 * time.Second},
	}

	fmt.Printf("Mock statistics on %s, audit on %s\n", *statsAddr, *auditAddr)
	fmt.Println("Audit indexes answer 404 until enough readings have arrived")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	select {
	case err := <-errCh:
		slog.Error("server error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
}
