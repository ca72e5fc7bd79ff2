package progress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type updateSink struct {
	mu      sync.Mutex
	updates []Update
}

func (s *updateSink) record(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
}

func (s *updateSink) snapshot() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Update(nil), s.updates...)
}

func (s *updateSink) waitFor(t *testing.T, cond func([]Update) bool) []Update {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if got := s.snapshot(); cond(got) {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline; updates: %+v", s.snapshot())
	return nil
}

func TestPollerSyntheticProgress(t *testing.T) {
	poller := NewPoller(5*time.Millisecond, testLogger())
	sink := &updateSink{}

	fetch := func(ctx context.Context) (Status, error) {
		return Status{Message: "working"}, nil
	}

	poller.Start(context.Background(), fetch, sink.record)
	defer poller.Cancel()

	updates := sink.waitFor(t, func(got []Update) bool { return len(got) >= 20 })

	last := 0
	for i, u := range updates {
		if u.Percent < last {
			t.Fatalf("percent decreased at update %d: %d -> %d", i, last, u.Percent)
		}
		if u.Percent > syntheticCap {
			t.Fatalf("synthetic progress exceeded cap: %d", u.Percent)
		}
		last = u.Percent
	}
	if last == 0 {
		t.Error("synthetic progress never advanced")
	}
}

func TestPollerRealProgressWins(t *testing.T) {
	poller := NewPoller(5*time.Millisecond, testLogger())
	sink := &updateSink{}

	var mu sync.Mutex
	real := 0

	fetch := func(ctx context.Context) (Status, error) {
		mu.Lock()
		defer mu.Unlock()
		return Status{Percent: real}, nil
	}

	poller.Start(context.Background(), fetch, sink.record)
	defer poller.Cancel()

	sink.waitFor(t, func(got []Update) bool { return len(got) >= 3 })

	mu.Lock()
	real = 70
	mu.Unlock()

	updates := sink.waitFor(t, func(got []Update) bool {
		return len(got) > 0 && got[len(got)-1].Percent >= 70
	})

	last := 0
	for i, u := range updates {
		if u.Percent < last {
			t.Fatalf("percent decreased at update %d: %d -> %d", i, last, u.Percent)
		}
		last = u.Percent
	}
}

func TestPollerTerminalSnapsTo100(t *testing.T) {
	poller := NewPoller(5*time.Millisecond, testLogger())
	sink := &updateSink{}

	var mu sync.Mutex
	terminal := false

	fetch := func(ctx context.Context) (Status, error) {
		mu.Lock()
		defer mu.Unlock()
		return Status{Terminal: terminal, Percent: 40, Message: "done"}, nil
	}

	poller.Start(context.Background(), fetch, sink.record)

	sink.waitFor(t, func(got []Update) bool { return len(got) >= 2 })

	mu.Lock()
	terminal = true
	mu.Unlock()

	updates := sink.waitFor(t, func(got []Update) bool {
		return len(got) > 0 && got[len(got)-1].Terminal
	})

	// The loop self-cancels on terminal; give it a moment to prove no
	// further updates arrive.
	time.Sleep(50 * time.Millisecond)
	after := sink.snapshot()
	if len(after) != len(updates) {
		t.Errorf("updates after terminal: %d extra", len(after)-len(updates))
	}

	terminalCount := 0
	for _, u := range after {
		if u.Terminal {
			terminalCount++
			if u.Percent != 100 {
				t.Errorf("terminal percent = %d, want 100", u.Percent)
			}
		}
	}
	if terminalCount != 1 {
		t.Errorf("terminal updates = %d, want exactly 1", terminalCount)
	}
	if poller.Percent() != 100 {
		t.Errorf("final percent = %d, want 100", poller.Percent())
	}
}

func TestPollerCancelIdempotent(t *testing.T) {
	poller := NewPoller(5*time.Millisecond, testLogger())

	fetch := func(ctx context.Context) (Status, error) {
		return Status{}, nil
	}

	poller.Start(context.Background(), fetch, nil)

	poller.Cancel()
	poller.Cancel()
	poller.Cancel()
}

func TestPollerRestartCancelsPrevious(t *testing.T) {
	poller := NewPoller(5*time.Millisecond, testLogger())

	var mu sync.Mutex
	firstTicks, secondTicks := 0, 0

	first := func(ctx context.Context) (Status, error) {
		mu.Lock()
		defer mu.Unlock()
		firstTicks++
		return Status{}, nil
	}
	second := func(ctx context.Context) (Status, error) {
		mu.Lock()
		defer mu.Unlock()
		secondTicks++
		return Status{}, nil
	}

	poller.Start(context.Background(), first, nil)
	time.Sleep(30 * time.Millisecond)

	poller.Start(context.Background(), second, nil)

	mu.Lock()
	firstAfterRestart := firstTicks
	mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	poller.Cancel()

	mu.Lock()
	defer mu.Unlock()
	if firstTicks != firstAfterRestart {
		t.Errorf("first loop kept ticking after restart: %d -> %d", firstAfterRestart, firstTicks)
	}
	if secondTicks == 0 {
		t.Error("second loop never ticked")
	}
}

func TestPollerToleratesFetchErrors(t *testing.T) {
	poller := NewPoller(5*time.Millisecond, testLogger())
	sink := &updateSink{}

	var mu sync.Mutex
	calls := 0

	fetch := func(ctx context.Context) (Status, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return Status{}, errors.New("temporary")
		}
		return Status{Percent: 50}, nil
	}

	poller.Start(context.Background(), fetch, sink.record)
	defer poller.Cancel()

	updates := sink.waitFor(t, func(got []Update) bool { return len(got) >= 1 })
	if updates[0].Percent < 50 {
		t.Errorf("first successful update percent = %d, want >= 50", updates[0].Percent)
	}
}
