// Package mockbackend simulates the telemetry backend polled by the
// dashboard: the processing, event logger and anomaly detector statistics,
// and the audit endpoints that return a stored reading by index.
//
// Readings accumulate as [Backend.Advance] is called, so audit requests for
// an index not yet stored answer 404 {"message": "Not Found"}.
package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	kindPowerUsage = "power-usage"
	kindLocation   = "location"

	numDevices = 5
)

// Backend holds the simulated telemetry state. It is safe for concurrent use.
type Backend struct {
	log        *slog.Logger
	now        func() time.Time
	minLatency time.Duration
	maxLatency time.Duration

	mu         sync.Mutex
	power      []powerReading
	locations  []locationReading
	events     [4]int
	maxPowerW  float64
	maxTempC   float64
	socTotal   float64
	highTemp   int
	lowSoC     int
	recentDesc string
	recentAt   time.Time
	updatedAt  time.Time
}

type powerReading struct {
	DeviceID      string  `json:"device_id"`
	PowerW        float64 `json:"power_W"`
	TemperatureC  float64 `json:"temperature_C"`
	StateOfCharge float64 `json:"state_of_charge"`
	Timestamp     string  `json:"timestamp"`
}

type locationReading struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

// Option configures a [Backend].
type Option func(*Backend)

// WithLatency delays every response by a random duration in [lo, hi).
func WithLatency(lo, hi time.Duration) Option {
	return func(b *Backend) {
		b.minLatency = lo
		b.maxLatency = hi
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(b *Backend) {
		b.log = log
	}
}

// New creates a Backend with no readings.
func New(opts ...Option) *Backend {
	b := &Backend{
		log: slog.Default(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.updatedAt = b.now()
	return b
}

// deviceID returns a stable id for device n.
func deviceID(n int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("statsboard-device-%d", n))).String()
}

// Advance ingests one batch of readings: a power reading and a location
// reading per device, and a random spread of logged events.
func (b *Backend) Advance() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	ts := now.UTC().Format("2006-01-02T15:04:05")

	for d := 0; d < numDevices; d++ {
		p := powerReading{
			DeviceID:      deviceID(d),
			PowerW:        float64(rand.IntN(5000)) / 10,
			TemperatureC:  float64(150+rand.IntN(300)) / 10,
			StateOfCharge: float64(rand.IntN(1001)) / 10,
			Timestamp:     ts,
		}
		b.power = append(b.power, p)
		b.socTotal += p.StateOfCharge
		if p.PowerW > b.maxPowerW {
			b.maxPowerW = p.PowerW
		}
		if p.TemperatureC > b.maxTempC {
			b.maxTempC = p.TemperatureC
		}

		switch {
		case p.TemperatureC > 40:
			b.highTemp++
			b.recentDesc = fmt.Sprintf("Device %s reported a temperature of %.1fC", p.DeviceID, p.TemperatureC)
			b.recentAt = now
		case p.StateOfCharge < 10:
			b.lowSoC++
			b.recentDesc = fmt.Sprintf("Device %s reported a state of charge of %.1f%%", p.DeviceID, p.StateOfCharge)
			b.recentAt = now
		}

		b.locations = append(b.locations, locationReading{
			DeviceID:  deviceID(d),
			Latitude:  49 + float64(rand.IntN(10000))/1000,
			Longitude: -123 + float64(rand.IntN(10000))/1000,
			Timestamp: ts,
		})
	}

	for i := range b.events {
		b.events[i] += rand.IntN(4)
	}
	b.updatedAt = now
}

// Run calls Advance every interval until ctx is cancelled.
func (b *Backend) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Advance()
		}
	}
}

// StatsHandler serves the processing, event logger and anomaly detector
// statistics.
func (b *Backend) StatsHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(b.delay)

	r.Get("/processing/stats", b.handleProcessingStats)
	r.Get("/event_logger/event_stats", b.handleEventStats)
	r.Get("/anomaly_detector/anomaly_stats", b.handleAnomalyStats)
	r.NotFound(notFound)

	return r
}

// AuditHandler serves GET /readings/{kind}?index=N, the N-th stored reading
// of that kind.
func (b *Backend) AuditHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(b.delay)

	r.Get("/readings/{kind}", b.handleAudit)
	r.NotFound(notFound)

	return r
}

func (b *Backend) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.maxLatency > 0 {
			d := b.minLatency
			if spread := b.maxLatency - b.minLatency; spread > 0 {
				d += rand.N(spread)
			}
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleProcessingStats(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	avg := 0.0
	if n := len(b.power); n > 0 {
		avg = b.socTotal / float64(n)
	}
	resp := map[string]any{
		"total_power_usage_events": len(b.power),
		"total_location_events":    len(b.locations),
		"max_power_W":              b.maxPowerW,
		"max_temperature_C":        b.maxTempC,
		"average_state_of_charge":  float64(int(avg*10)) / 10,
		"date_created":             b.updatedAt.UTC().Format("2006-01-02T15:04:05"),
	}
	b.mu.Unlock()

	b.writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleEventStats(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	resp := map[string]int{
		"event_0001": b.events[0],
		"event_0002": b.events[1],
		"event_0003": b.events[2],
		"event_0004": b.events[3],
	}
	b.mu.Unlock()

	b.writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleAnomalyStats(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	desc := b.recentDesc
	at := ""
	if desc == "" {
		desc = "No anomalies detected"
	} else {
		at = b.recentAt.UTC().Format("2006-01-02T15:04:05")
	}
	resp := map[string]any{
		"num_anomalies": map[string]int{
			"High Temp": b.highTemp,
			"Low SoC":   b.lowSoC,
		},
		"most_recent_desc":     desc,
		"most_recent_datetime": at,
	}
	b.mu.Unlock()

	b.writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleAudit(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil || index < 0 {
		b.writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid index"})
		return
	}

	b.mu.Lock()
	var reading any
	switch chi.URLParam(r, "kind") {
	case kindPowerUsage:
		if index < len(b.power) {
			reading = b.power[index]
		}
	case kindLocation:
		if index < len(b.locations) {
			reading = b.locations[index]
		}
	}
	b.mu.Unlock()

	if reading == nil {
		notFound(w, r)
		return
	}
	b.writeJSON(w, http.StatusOK, reading)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"message": "Not Found"}`))
}

func (b *Backend) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		b.log.Error("failed to write response", "error", err)
	}
}
