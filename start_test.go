package statsboard

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestStart_BlocksUntilContextCancelled verifies that Start blocks until the
// provided context is cancelled.
func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	ts := jsonBackend(t, `{}`)

	// use a high port to avoid conflicts
	board, err := New(
		WithPanel(testPanel(t, "Test", ts.URL, WithInterval(100*time.Millisecond))),
		WithPort(19001),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		close(started)
		done <- board.Start(ctx)
	}()

	<-started
	time.Sleep(50 * time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
		// expected: still blocking
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

// TestStart_ReturnsImmediatelyIfContextAlreadyCancelled verifies that Start
// returns immediately if the context is already cancelled.
func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	ts := jsonBackend(t, `{}`)

	board, err := New(
		WithPanel(testPanel(t, "Test", ts.URL)),
		WithPort(19002),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- board.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Start() did not return with already-cancelled context")
	}
}

// TestStart_MultipleSequentialRuns verifies that a new Board can be started
// after the previous one shuts down.
func TestStart_MultipleSequentialRuns(t *testing.T) {
	ts := jsonBackend(t, `{}`)

	for i := 0; i < 3; i++ {
		board, err := New(
			WithPanel(testPanel(t, "Test", ts.URL, WithInterval(100*time.Millisecond))),
			WithPort(19004+i),
			WithLogger(testLogger()),
		)
		if err != nil {
			t.Fatalf("iteration %d: New() error = %v", i, err)
		}

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- board.Start(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("iteration %d: Start() returned error: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: Start() did not return", i)
		}
	}
}

// TestStart_ConcurrentAccess verifies the accessors are safe while running.
func TestStart_ConcurrentAccess(t *testing.T) {
	ts := jsonBackend(t, `{}`)

	board, err := New(
		WithPanel(testPanel(t, "Test", ts.URL, WithInterval(100*time.Millisecond))),
		WithPort(19010),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = board.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = board.Panels()
			_ = board.Port()
			_ = board.Ordering()
		}()
	}

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutines did not complete")
	}
}

// TestStart_WithTimeoutContext verifies Start respects deadline contexts.
func TestStart_WithTimeoutContext(t *testing.T) {
	ts := jsonBackend(t, `{}`)

	board, err := New(
		WithPanel(testPanel(t, "Test", ts.URL, WithInterval(100*time.Millisecond))),
		WithPort(19011),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = board.Start(ctx)
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond || elapsed > 6*time.Second {
		t.Errorf("Start() ran for %v, expected ~200ms", elapsed)
	}
	if err != nil {
		t.Errorf("Start() returned error: %v", err)
	}
}

// TestStart_PortInUse verifies Start reports a listener failure.
func TestStart_PortInUse(t *testing.T) {
	ts := jsonBackend(t, `{}`)

	first, err := New(WithPanel(testPanel(t, "Test", ts.URL)), WithPort(19012), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	second, err := New(WithPanel(testPanel(t, "Test", ts.URL)), WithPort(19012), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- first.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := second.Start(ctx); err == nil {
		t.Error("Start() on a used port should return an error")
	}

	cancel()
	<-done
}
