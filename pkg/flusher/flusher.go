// Package flusher periodically commits open sessions to durable storage.
//
// The first flush runs after half the interval, then every interval. Stop
// waits for a running flush to return, so a following Close of the
// accumulator never overlaps a periodic flush.
package flusher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/0xmhha/onlinetime/pkg/logger"
)

// DefaultInterval is the flush interval used when none is configured.
const DefaultInterval = 30 * time.Second

var (
	// ErrAlreadyRunning is returned when Run is called on a running Flusher.
	ErrAlreadyRunning = errors.New("flusher already running")

	// ErrInvalidInterval is returned for a non-positive interval.
	ErrInvalidInterval = errors.New("flush interval must be positive")
)

// Target is flushed on every tick and closed on Shutdown.
type Target interface {
	FlushAll(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config contains flusher configuration.
type Config struct {
	// Interval between flushes. Zero means DefaultInterval.
	Interval time.Duration

	// Clock drives the ticker. Nil means the real clock.
	Clock quartz.Clock

	Logger logger.Logger
}

// Flusher runs the periodic flush loop.
type Flusher struct {
	target   Target
	interval time.Duration
	clock    quartz.Clock
	logger   logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a Flusher for target.
func New(target Target, cfg Config) (*Flusher, error) {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, cfg.Interval)
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Noop()
	}
	return &Flusher{
		target:   target,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}, nil
}

// Run flushes until ctx is cancelled or Stop is called. It returns nil in
// both cases.
func (f *Flusher) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.cancel != nil {
		f.mu.Unlock()
		return ErrAlreadyRunning
	}
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	f.cancel = cancel
	f.done = done
	f.mu.Unlock()

	defer close(done)
	defer cancel()

	first := f.interval / 2
	if first <= 0 {
		first = f.interval
	}
	ticker := f.clock.NewTicker(first, "flusher")
	defer ticker.Stop()

	f.logger.Info("flusher started", "interval", f.interval)
	for initial := true; ; initial = false {
		select {
		case <-ctx.Done():
			f.logger.Info("flusher stopped")
			return nil
		case <-ticker.C:
		}
		if initial {
			ticker.Reset(f.interval, "flusher")
		}
		f.flush(ctx)
	}
}

func (f *Flusher) flush(ctx context.Context) {
	if err := f.target.FlushAll(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		f.logger.Error("periodic flush failed", "error", err)
	}
}

// Stop ends Run and waits for it to return. A Flusher cannot be restarted.
func (f *Flusher) Stop() {
	f.mu.Lock()
	f.stopped = true
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Shutdown stops the loop and closes the target. Only the first call has any
// effect; later calls return the first result.
func (f *Flusher) Shutdown(ctx context.Context) error {
	f.shutdownOnce.Do(func() {
		f.Stop()
		if err := f.target.Close(ctx); err != nil {
			f.shutdownErr = fmt.Errorf("failed to close accumulator: %w", err)
		}
	})
	return f.shutdownErr
}
