// Package accumulator tracks open sessions in memory and folds their elapsed
// time into the ledger.
//
// Each identity with an open session has a marker holding the session start
// in Unix milliseconds. Stopping a session commits the elapsed whole seconds
// to the ledger; a periodic flush commits the elapsed time of every open
// session and moves the markers forward without closing the sessions.
//
// Marker updates are compare-and-swap operations on a sync.Map. An operation
// that finds a marker changed or gone treats the identity as handled by a
// concurrent operation, so an interval is never committed twice.
//
// Example usage:
//
//	acc := accumulator.New(ledger.New(backend), accumulator.WithLogger(log))
//	defer acc.Close(ctx)
//
//	acc.Start(ctx, id, time.Now())
//	...
//	acc.StopAndCommit(ctx, id, time.Now())
//	total, _, err := acc.Total(ctx, id)
package accumulator

import (
	"context"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/0xmhha/onlinetime/pkg/logger"
	"github.com/0xmhha/onlinetime/pkg/metrics"
)

// Ledger is the durable store the accumulator commits to.
type Ledger interface {
	Get(ctx context.Context, id uuid.UUID) (int64, bool, error)
	Add(ctx context.Context, id uuid.UUID, delta int64) error
	AddMany(ctx context.Context, deltas map[uuid.UUID]int64) error
	Close() error
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithClock sets the clock used for "now". Default: real clock.
func WithClock(c quartz.Clock) Option {
	return func(a *Accumulator) { a.clock = c }
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l logger.Logger) Option {
	return func(a *Accumulator) { a.logger = l }
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(r metrics.Recorder) Option {
	return func(a *Accumulator) { a.metrics = r }
}
