package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Result holds the outcome of one panel request.
type Result struct {
	// PanelName is the display name of the panel.
	PanelName string

	// URL is the exact request URL, including generated query parameters.
	URL string

	// Params holds the generated query parameter values sent with the request.
	Params map[string]string

	// Generation is the per-panel issue counter, starting at 1.
	Generation uint64

	// Body contains the response body. Valid JSON when Error is nil.
	Body []byte

	// StatusCode is the HTTP status code, zero if no response was received.
	StatusCode int

	// Latency is the time taken by the request.
	Latency time.Duration

	// IssuedAt is when the tick issued the request.
	IssuedAt time.Time

	// ResolvedAt is when the request resolved.
	ResolvedAt time.Time

	// Error is non-nil if the request failed.
	Error error
}

// URLFunc builds the URL of one request and returns the generated query
// parameter values it carries.
type URLFunc func() (string, map[string]string)

// PanelInfo contains what the scheduler needs to poll a single panel.
//
// This is the poller-internal representation of a panel, decoupled from the
// statsboard.Panel type to avoid circular dependencies.
type PanelInfo struct {
	// Name is the display name of the panel.
	Name string

	// URL builds the request URL on every tick.
	URL URLFunc

	// Headers contains custom HTTP headers to send with requests.
	Headers map[string]string

	// Timeout is the per-request timeout. Zero means no timeout.
	Timeout time.Duration

	// Interval is the time between ticks.
	Interval time.Duration

	// Immediate fires the first request at start instead of on the first tick.
	Immediate bool
}

// Scheduler runs one ticker per panel and emits every resolved request on
// [Scheduler.Results].
//
// Ticks never wait for earlier requests: every tick issues a request in its
// own goroutine. Results arrive in resolution order, which may differ from
// issue order; [Result.Generation] tells them apart.
//
// Stopping cancels all tickers but does not abort in-flight requests. Their
// results are discarded when they resolve after Stop.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	panels  []PanelInfo
	client  *Client
	results chan Result
	logger  *slog.Logger

	mu       sync.Mutex
	started  bool
	stopping bool
	cancel   context.CancelFunc
	tickers  sync.WaitGroup

	// deliverMu guards stopped: in-flight requests hold it for reading
	// while they send, Stop holds it for writing before closing results.
	deliverMu sync.RWMutex
	stopped   bool
	closeOnce sync.Once

	inFlight atomic.Int64
}

// NewScheduler creates a new polling [Scheduler].
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. Results are available via [Scheduler.Results] and must be
// drained until the channel is closed.
func NewScheduler(panels []PanelInfo, logger *slog.Logger) *Scheduler {
	buffer := len(panels) * 4
	if buffer == 0 {
		buffer = 1
	}
	return &Scheduler{
		panels:  panels,
		client:  NewClient(),
		results: make(chan Result, buffer),
		logger:  logger,
	}
}

// Results returns the channel of resolved requests.
// The channel is closed by [Scheduler.Stop].
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

// InFlight returns the number of requests issued and not yet resolved.
func (s *Scheduler) InFlight() int {
	return int(s.inFlight.Load())
}

// Start begins one ticker loop per panel in background goroutines.
//
// Start is non-blocking. Each panel issues its first request on its first
// tick, or at once if [PanelInfo.Immediate] is set, then one request per
// tick until [Scheduler.Stop] is called or ctx is cancelled.
//
// Cancelling ctx stops the tickers only. In-flight requests run on a context
// detached from ctx's cancellation and are bounded by their own timeout.
//
// Start is idempotent. If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopping {
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	tickCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	reqCtx := context.WithoutCancel(ctx)

	for _, p := range s.panels {
		s.tickers.Add(1)
		go s.run(tickCtx, reqCtx, p)
	}
}

// Stop halts all tickers and closes the results channel.
//
// Stop waits for the ticker loops to exit and for requests that are
// currently delivering a result. It does not wait for in-flight requests;
// those resolving later are discarded.
//
// Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopping = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.tickers.Wait()

	s.deliverMu.Lock()
	s.stopped = true
	s.deliverMu.Unlock()

	s.closeOnce.Do(func() { close(s.results) })

	if s.client != nil {
		s.client.Close()
	}
}

// run is the ticker loop of a single panel.
func (s *Scheduler) run(tickCtx, reqCtx context.Context, p PanelInfo) {
	defer s.tickers.Done()

	var generation uint64
	if p.Immediate {
		generation++
		s.issue(reqCtx, p, generation)
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-tickCtx.Done():
			return
		case <-ticker.C:
			generation++
			s.issue(reqCtx, p, generation)
		}
	}
}

// issue starts one request without waiting for it.
func (s *Scheduler) issue(ctx context.Context, p PanelInfo, generation uint64) {
	issuedAt := time.Now()
	url, params, err := s.safeURL(p)

	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Add(-1)

		result := Result{
			PanelName:  p.Name,
			URL:        url,
			Params:     params,
			Generation: generation,
			IssuedAt:   issuedAt,
		}
		if err != nil {
			result.Error = err
		} else {
			resp := s.client.Fetch(ctx, url, p.Headers, p.Timeout)
			result.Body = resp.Body
			result.StatusCode = resp.StatusCode
			result.Latency = resp.Latency
			result.Error = resp.Error
		}
		result.ResolvedAt = time.Now()

		if !s.deliver(result) {
			s.logger.Debug("discarding result resolved after stop",
				"panel", p.Name,
				"generation", generation,
			)
		}
	}()
}

// deliver sends result unless the scheduler has stopped.
func (s *Scheduler) deliver(result Result) bool {
	s.deliverMu.RLock()
	defer s.deliverMu.RUnlock()
	if s.stopped {
		return false
	}
	s.results <- result
	return true
}

// safeURL calls the panel's URL builder with panic recovery.
// If it panics, the full stack trace is logged with a correlation ID and the
// request fails with an error containing the ID.
func (s *Scheduler) safeURL(p PanelInfo) (url string, params map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("url builder panic",
				"correlation_id", correlationID,
				"panel", p.Name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("url builder panic (correlation_id: %s)", correlationID)
		}
	}()
	url, params = p.URL()
	return url, params, nil
}
