package accumulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/0xmhha/onlinetime/pkg/logger"
	"github.com/0xmhha/onlinetime/pkg/metrics"
	"github.com/0xmhha/onlinetime/pkg/storage"
)

// Accumulator maintains session markers over a Ledger.
type Accumulator struct {
	ledger  Ledger
	clock   quartz.Clock
	logger  logger.Logger
	metrics metrics.Recorder

	// markers maps uuid.UUID to the session start in Unix milliseconds.
	markers sync.Map
	open    atomic.Int64

	// mu guards closed. Operations hold the read side for their whole
	// duration so Close never runs concurrently with them.
	mu     sync.RWMutex
	closed bool
}

// New returns an Accumulator committing to ledger. The Accumulator owns
// ledger and closes it in Close.
func New(ledger Ledger, opts ...Option) *Accumulator {
	a := &Accumulator{
		ledger:  ledger,
		clock:   quartz.NewReal(),
		logger:  logger.Noop(),
		metrics: metrics.Noop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start opens a session for id at at. If a session is already open, its
// elapsed time up to at is committed first and the marker restarts at at.
func (a *Accumulator) Start(ctx context.Context, id uuid.UUID, at time.Time) error {
	if !a.acquire() {
		return ErrClosed
	}
	defer a.release()

	now := at.UnixMilli()
	prev, loaded := a.markers.Swap(id, now)
	if !loaded {
		a.metrics.SetOpenSessions(int(a.open.Add(1)))
		a.logger.Debug("session started", "id", id)
		return nil
	}

	elapsed := seconds(now - prev.(int64))
	a.logger.Debug("session restarted", "id", id, "committed", elapsed)
	return a.commit(ctx, "start", id, elapsed)
}

// StopAndCommit closes the session for id and commits its elapsed time. It
// does nothing when no session is open.
func (a *Accumulator) StopAndCommit(ctx context.Context, id uuid.UUID, at time.Time) error {
	if !a.acquire() {
		return ErrClosed
	}
	defer a.release()

	started, loaded := a.markers.LoadAndDelete(id)
	if !loaded {
		return nil
	}
	a.metrics.SetOpenSessions(int(a.open.Add(-1)))

	elapsed := seconds(at.UnixMilli() - started.(int64))
	a.logger.Debug("session stopped", "id", id, "committed", elapsed)
	return a.commit(ctx, "stop", id, elapsed)
}

// Total returns the ledger value for id plus the elapsed time of its open
// session. found is false when id has neither a ledger entry nor an open
// session.
func (a *Accumulator) Total(ctx context.Context, id uuid.UUID) (total int64, found bool, err error) {
	if !a.acquire() {
		return 0, false, ErrClosed
	}
	defer a.release()

	stored, found, err := a.ledger.Get(ctx, id)
	if err != nil {
		a.recordError("get", err)
		return 0, false, err
	}
	if started, ok := a.markers.Load(id); ok {
		stored += seconds(a.clock.Now().UnixMilli() - started.(int64))
		found = true
	}
	return stored, found, nil
}

// Add adds delta seconds to id's total. With a session open the marker is
// moved back by delta so the live elapsed time carries the change; otherwise
// the ledger is written directly.
func (a *Accumulator) Add(ctx context.Context, id uuid.UUID, delta int64) error {
	if !a.acquire() {
		return ErrClosed
	}
	defer a.release()

	if delta == 0 || a.shiftMarker(id, delta) {
		return nil
	}
	return a.commit(ctx, "add", id, delta)
}

// AddMany applies Add to every entry. Entries without an open session are
// written to the ledger in one batch.
func (a *Accumulator) AddMany(ctx context.Context, deltas map[uuid.UUID]int64) error {
	if !a.acquire() {
		return ErrClosed
	}
	defer a.release()

	direct := make(map[uuid.UUID]int64)
	for id, delta := range deltas {
		if delta == 0 || a.shiftMarker(id, delta) {
			continue
		}
		direct[id] = delta
	}
	return a.commitMany(ctx, "add_many", direct)
}

// FlushAll commits the elapsed time of every open session as of now.
func (a *Accumulator) FlushAll(ctx context.Context) error {
	return a.FlushAllAt(ctx, a.clock.Now())
}

// FlushAllAt commits the elapsed time of every open session up to at in one
// batch and moves each marker forward by the committed whole seconds. A
// session stopped concurrently is skipped. If the batch fails the markers
// are moved back so the next flush commits the time instead.
func (a *Accumulator) FlushAllAt(ctx context.Context, at time.Time) error {
	if !a.acquire() {
		return ErrClosed
	}
	defer a.release()

	start := a.clock.Now()
	now := at.UnixMilli()
	flushed := make(map[uuid.UUID]int64)

	a.markers.Range(func(k, _ any) bool {
		id := k.(uuid.UUID)
		for {
			v, ok := a.markers.Load(id)
			if !ok {
				break
			}
			started := v.(int64)
			elapsed := seconds(now - started)
			if elapsed == 0 {
				break
			}
			if a.markers.CompareAndSwap(id, started, started+elapsed*1000) {
				flushed[id] = elapsed
				break
			}
		}
		return true
	})

	err := a.ledger.AddMany(ctx, flushed)
	a.metrics.RecordFlush(a.clock.Since(start), len(flushed), err)
	if err != nil {
		a.recordError("flush", err)
		a.restore(ctx, flushed)
		return err
	}
	for _, elapsed := range flushed {
		a.metrics.RecordCommitted(elapsed)
	}
	a.logger.Debug("sessions flushed", "count", len(flushed))
	return nil
}

// Close commits and discards every open session, then closes the ledger.
// Later calls return nil and write nothing.
func (a *Accumulator) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	now := a.clock.Now().UnixMilli()
	pending := make(map[uuid.UUID]int64)
	a.markers.Range(func(k, v any) bool {
		a.markers.Delete(k)
		if elapsed := seconds(now - v.(int64)); elapsed != 0 {
			pending[k.(uuid.UUID)] = elapsed
		}
		return true
	})
	a.open.Store(0)
	a.metrics.SetOpenSessions(0)

	var result *multierror.Error
	if err := a.ledger.AddMany(ctx, pending); err != nil {
		a.recordError("close", err)
		result = multierror.Append(result, fmt.Errorf("failed to commit open sessions: %w", err))
	} else {
		for _, elapsed := range pending {
			a.metrics.RecordCommitted(elapsed)
		}
	}
	if err := a.ledger.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close ledger: %w", err))
	}

	a.logger.Info("accumulator closed", "committed_sessions", len(pending))
	return result.ErrorOrNil()
}

// Online returns the identities with an open session.
func (a *Accumulator) Online() []uuid.UUID {
	var ids []uuid.UUID
	a.markers.Range(func(k, _ any) bool {
		ids = append(ids, k.(uuid.UUID))
		return true
	})
	return ids
}

// IsOnline reports whether id has an open session.
func (a *Accumulator) IsOnline(id uuid.UUID) bool {
	_, ok := a.markers.Load(id)
	return ok
}

func (a *Accumulator) acquire() bool {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return false
	}
	return true
}

func (a *Accumulator) release() {
	a.mu.RUnlock()
}

// shiftMarker moves id's marker back by delta seconds. It reports false when
// no session is open or the shift would overflow.
func (a *Accumulator) shiftMarker(id uuid.UUID, delta int64) bool {
	if delta > math.MaxInt64/1000 || delta < math.MinInt64/1000 {
		return false
	}
	for {
		v, ok := a.markers.Load(id)
		if !ok {
			return false
		}
		started := v.(int64)
		if a.markers.CompareAndSwap(id, started, started-delta*1000) {
			return true
		}
	}
}

// restore moves flushed markers back after a failed batch. Time of sessions
// that were stopped in between is written to the ledger directly.
func (a *Accumulator) restore(ctx context.Context, flushed map[uuid.UUID]int64) {
	orphaned := make(map[uuid.UUID]int64)
	for id, elapsed := range flushed {
		if !a.shiftMarker(id, elapsed) {
			orphaned[id] = elapsed
		}
	}
	if len(orphaned) == 0 {
		return
	}
	if err := a.ledger.AddMany(ctx, orphaned); err != nil {
		a.recordError("flush", err)
		a.logger.Error("lost time of sessions stopped during a failed flush",
			"identities", len(orphaned), "error", err)
	}
}

// commit writes delta even when it is zero so that a finished session
// always leaves a ledger entry.
func (a *Accumulator) commit(ctx context.Context, op string, id uuid.UUID, delta int64) error {
	if err := a.ledger.Add(ctx, id, delta); err != nil {
		a.recordError(op, err)
		return err
	}
	a.metrics.RecordCommitted(delta)
	return nil
}

func (a *Accumulator) commitMany(ctx context.Context, op string, deltas map[uuid.UUID]int64) error {
	if len(deltas) == 0 {
		return nil
	}
	if err := a.ledger.AddMany(ctx, deltas); err != nil {
		a.recordError(op, err)
		return err
	}
	for _, d := range deltas {
		a.metrics.RecordCommitted(d)
	}
	return nil
}

func (a *Accumulator) recordError(op string, err error) {
	var se *storage.Error
	if errors.As(err, &se) {
		op = se.Op
	}
	a.metrics.RecordStorageError(op)
}

// seconds converts a millisecond interval to whole seconds, truncating
// toward zero.
func seconds(millis int64) int64 {
	return millis / 1000
}
