// Package progress implements the polling loop that surfaces generation
// state to a consumer. The loop reads status snapshots on a fixed interval
// and drives a monotonically advancing percentage, synthesizing slow
// advancement while the backend has no real progress to report.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the poll cadence used when none is configured.
const DefaultInterval = 1500 * time.Millisecond

// syntheticCap bounds the synthesized indicator; only an observed terminal
// phase may push the display to 100.
const syntheticCap = 90

// Status is one observed snapshot of the generation.
type Status struct {
	Terminal bool
	Failed   bool
	Percent  int
	Message  string
}

// Update is what the poller publishes to its consumer after each tick.
type Update struct {
	Percent  int
	Message  string
	Terminal bool
	Failed   bool
}

// StatusFunc fetches the current generation status.
type StatusFunc func(ctx context.Context) (Status, error)

// UpdateFunc receives display updates. Called from the poll goroutine.
type UpdateFunc func(Update)

// Poller runs at most one polling loop at a time. Starting a new loop
// cancels the previous one; Cancel is idempotent and always safe because
// polling is read-only.
type Poller struct {
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	percent int
	wg      sync.WaitGroup
}

func NewPoller(interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		interval: interval,
		logger:   logger.With("system", "progress"),
	}
}

// Start begins polling until a terminal phase is observed or the loop is
// cancelled. Any previous loop is cancelled first.
func (p *Poller) Start(ctx context.Context, fetch StatusFunc, update UpdateFunc) {
	p.Cancel()

	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.cancel = cancel
	p.percent = 0
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx, fetch, update)
}

// Cancel stops the active loop, if any. Safe to call repeatedly and
// concurrently with loop completion.
func (p *Poller) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Percent returns the last published display percentage.
func (p *Poller) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent
}

func (p *Poller) loop(ctx context.Context, fetch StatusFunc, update UpdateFunc) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := fetch(ctx)
		if err != nil {
			// Transient fetch failures keep the loop alive; the next
			// tick retries.
			p.logger.Debug("status fetch failed", "error", err)
			continue
		}

		if status.Terminal {
			p.publish(update, Update{
				Percent:  100,
				Message:  status.Message,
				Terminal: true,
				Failed:   status.Failed,
			})
			// Self-cancel exactly once on terminal observation.
			p.mu.Lock()
			cancel := p.cancel
			p.cancel = nil
			p.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			return
		}

		p.publish(update, Update{
			Percent: p.advance(status.Percent),
			Message: status.Message,
		})
	}
}

// advance computes the next display percentage: real backend progress wins
// when it moves forward, otherwise the indicator creeps up one point per
// tick toward the synthetic cap. The result never decreases.
func (p *Poller) advance(real int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case real > p.percent:
		p.percent = real
	case p.percent < syntheticCap:
		p.percent++
	}
	return p.percent
}

func (p *Poller) publish(update UpdateFunc, u Update) {
	if u.Terminal {
		p.mu.Lock()
		p.percent = u.Percent
		p.mu.Unlock()
	}
	if update != nil {
		update(u)
	}
}
