package accumulator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/0xmhha/onlinetime/pkg/ledger"
	"github.com/0xmhha/onlinetime/pkg/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ms(n int64) time.Time {
	return base.Add(time.Duration(n) * time.Millisecond)
}

// fakeLedger is an in-memory Ledger that can be told to fail.
type fakeLedger struct {
	mu      sync.Mutex
	totals  map[uuid.UUID]int64
	batches int
	failAdd error
	closed  int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{totals: make(map[uuid.UUID]int64)}
}

func (f *fakeLedger) Get(_ context.Context, id uuid.UUID) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.totals[id]
	return v, ok, nil
}

func (f *fakeLedger) Add(_ context.Context, id uuid.UUID, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd != nil {
		return f.failAdd
	}
	f.totals[id] += delta
	return nil
}

func (f *fakeLedger) AddMany(_ context.Context, deltas map[uuid.UUID]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(deltas) == 0 {
		return nil
	}
	f.batches++
	if f.failAdd != nil {
		return f.failAdd
	}
	for id, d := range deltas {
		f.totals[id] += d
	}
	return nil
}

func (f *fakeLedger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeLedger) total(id uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totals[id]
}

func newTestAccumulator(t *testing.T) (*Accumulator, *fakeLedger, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(base)
	l := newFakeLedger()
	return New(l, WithClock(clock)), l, clock
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		start int64
		stop  int64
		want  int64
	}{
		{"whole seconds", 0, 5000, 5},
		{"truncated", 0, 5999, 5},
		{"sub-second", 1000, 1999, 0},
		{"clock went backwards", 10000, 7500, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, l, _ := newTestAccumulator(t)
			id := uuid.New()

			require.NoError(t, acc.Start(ctx, id, ms(tt.start)))
			assert.True(t, acc.IsOnline(id))
			require.NoError(t, acc.StopAndCommit(ctx, id, ms(tt.stop)))
			assert.False(t, acc.IsOnline(id))
			assert.Equal(t, tt.want, l.total(id))
			require.NoError(t, acc.Close(ctx))
		})
	}
}

func TestStopWithoutSession(t *testing.T) {
	ctx := context.Background()
	acc, l, _ := newTestAccumulator(t)
	id := uuid.New()

	require.NoError(t, acc.StopAndCommit(ctx, id, ms(5000)))
	_, found, err := l.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, acc.Close(ctx))
}

func TestStartTwiceCommitsPreviousInterval(t *testing.T) {
	ctx := context.Background()
	acc, l, _ := newTestAccumulator(t)
	id := uuid.New()

	require.NoError(t, acc.Start(ctx, id, ms(0)))
	require.NoError(t, acc.Start(ctx, id, ms(3000)))
	assert.Equal(t, int64(3), l.total(id))

	require.NoError(t, acc.StopAndCommit(ctx, id, ms(7000)))
	assert.Equal(t, int64(7), l.total(id))
	require.NoError(t, acc.Close(ctx))
}

func TestAddDuringSession(t *testing.T) {
	ctx := context.Background()
	acc, l, _ := newTestAccumulator(t)
	id := uuid.New()

	require.NoError(t, acc.Start(ctx, id, ms(0)))
	require.NoError(t, acc.Add(ctx, id, 10))
	assert.Equal(t, int64(0), l.total(id), "add during a session stays in memory")

	require.NoError(t, acc.StopAndCommit(ctx, id, ms(100000)))
	assert.Equal(t, int64(110), l.total(id))
	require.NoError(t, acc.Close(ctx))
}

func TestAddWithoutSession(t *testing.T) {
	ctx := context.Background()
	acc, l, _ := newTestAccumulator(t)
	id := uuid.New()

	require.NoError(t, acc.Add(ctx, id, 42))
	require.NoError(t, acc.Add(ctx, id, -2))
	assert.Equal(t, int64(40), l.total(id))
	require.NoError(t, acc.Close(ctx))
}

func TestAddMany(t *testing.T) {
	ctx := context.Background()
	acc, l, _ := newTestAccumulator(t)
	online, offline := uuid.New(), uuid.New()

	require.NoError(t, acc.Start(ctx, online, ms(0)))
	require.NoError(t, acc.AddMany(ctx, map[uuid.UUID]int64{online: 5, offline: 7}))
	assert.Equal(t, int64(0), l.total(online))
	assert.Equal(t, int64(7), l.total(offline))
	assert.Equal(t, 1, l.batches)

	require.NoError(t, acc.StopAndCommit(ctx, online, ms(1000)))
	assert.Equal(t, int64(6), l.total(online))
	require.NoError(t, acc.Close(ctx))
}

func TestTotal(t *testing.T) {
	ctx := context.Background()
	acc, l, clock := newTestAccumulator(t)
	id := uuid.New()

	_, found, err := acc.Total(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, l.Add(ctx, id, 100))
	require.NoError(t, acc.Start(ctx, id, clock.Now()))
	clock.Advance(90 * time.Second).MustWait(ctx)

	total, found, err := acc.Total(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(190), total)
	assert.Equal(t, int64(100), l.total(id), "total must not write")

	other := uuid.New()
	require.NoError(t, acc.Start(ctx, other, clock.Now()))
	clock.Advance(2 * time.Second).MustWait(ctx)
	total, found, err = acc.Total(ctx, other)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2), total)

	require.NoError(t, acc.Close(ctx))
}

func TestFlushKeepsTotal(t *testing.T) {
	ctx := context.Background()
	acc, l, clock := newTestAccumulator(t)
	a, b := uuid.New(), uuid.New()

	require.NoError(t, acc.Start(ctx, a, clock.Now()))
	clock.Advance(1500 * time.Millisecond).MustWait(ctx)
	require.NoError(t, acc.Start(ctx, b, clock.Now()))
	clock.Advance(30 * time.Second).MustWait(ctx)

	before, _, err := acc.Total(ctx, a)
	require.NoError(t, err)

	require.NoError(t, acc.FlushAll(ctx))
	assert.Equal(t, 1, l.batches, "flush writes one batch")
	assert.Equal(t, int64(31), l.total(a))
	assert.Equal(t, int64(30), l.total(b))
	assert.True(t, acc.IsOnline(a))
	assert.True(t, acc.IsOnline(b))

	after, _, err := acc.Total(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// The half second left over from a is carried into the next interval.
	clock.Advance(500 * time.Millisecond).MustWait(ctx)
	require.NoError(t, acc.StopAndCommit(ctx, a, clock.Now()))
	assert.Equal(t, int64(32), l.total(a))

	require.NoError(t, acc.Close(ctx))
}

func TestFlushWithoutSessions(t *testing.T) {
	ctx := context.Background()
	acc, l, _ := newTestAccumulator(t)

	require.NoError(t, acc.FlushAll(ctx))
	assert.Equal(t, 0, l.batches)
	require.NoError(t, acc.Close(ctx))
}

func TestFailedFlushIsRetried(t *testing.T) {
	ctx := context.Background()
	acc, l, clock := newTestAccumulator(t)
	id := uuid.New()

	require.NoError(t, acc.Start(ctx, id, clock.Now()))
	clock.Advance(10 * time.Second).MustWait(ctx)

	l.failAdd = errors.New("disk full")
	require.Error(t, acc.FlushAll(ctx))
	assert.Equal(t, int64(0), l.total(id))

	total, _, err := acc.Total(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)

	l.failAdd = nil
	clock.Advance(5 * time.Second).MustWait(ctx)
	require.NoError(t, acc.FlushAll(ctx))
	assert.Equal(t, int64(15), l.total(id))
	require.NoError(t, acc.Close(ctx))
}

func TestFlushSkipsStoppedSessions(t *testing.T) {
	ctx := context.Background()
	acc, l, _ := newTestAccumulator(t)
	id := uuid.New()

	require.NoError(t, acc.Start(ctx, id, ms(0)))
	require.NoError(t, acc.StopAndCommit(ctx, id, ms(4000)))
	require.NoError(t, acc.FlushAllAt(ctx, ms(9000)))
	assert.Equal(t, int64(4), l.total(id))
	require.NoError(t, acc.Close(ctx))
}

func TestConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	acc, l, _ := newTestAccumulator(t)
	online, offline := uuid.New(), uuid.New()
	require.NoError(t, acc.Start(ctx, online, ms(0)))

	const workers, perWorker = 8, 250
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				assert.NoError(t, acc.Add(ctx, online, 1))
				assert.NoError(t, acc.Add(ctx, offline, 1))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, acc.FlushAllAt(ctx, ms(0)))
		}
	}()
	wg.Wait()

	require.NoError(t, acc.StopAndCommit(ctx, online, ms(0)))
	assert.Equal(t, int64(workers*perWorker), l.total(online))
	assert.Equal(t, int64(workers*perWorker), l.total(offline))
	require.NoError(t, acc.Close(ctx))
}

func TestConcurrentStopAndFlush(t *testing.T) {
	ctx := context.Background()
	acc, l, _ := newTestAccumulator(t)

	ids := make([]uuid.UUID, 64)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, acc.Start(ctx, ids[i], ms(0)))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, id := range ids {
			assert.NoError(t, acc.StopAndCommit(ctx, id, ms(60000)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			assert.NoError(t, acc.FlushAllAt(ctx, ms(60000)))
		}
	}()
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, int64(60), l.total(id), "each interval is committed once")
	}
	require.NoError(t, acc.Close(ctx))
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	acc, l, clock := newTestAccumulator(t)
	id := uuid.New()

	require.NoError(t, acc.Start(ctx, id, clock.Now()))
	clock.Advance(12 * time.Second).MustWait(ctx)

	require.NoError(t, acc.Close(ctx))
	assert.Equal(t, int64(12), l.total(id))
	assert.Equal(t, 1, l.closed)
	assert.Empty(t, acc.Online())

	require.NoError(t, acc.Close(ctx), "second close is a no-op")
	assert.Equal(t, 1, l.closed)
	assert.Equal(t, int64(12), l.total(id))

	_, _, err := acc.Total(ctx, id)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, acc.Start(ctx, id, clock.Now()), ErrClosed)
	assert.ErrorIs(t, acc.StopAndCommit(ctx, id, clock.Now()), ErrClosed)
	assert.ErrorIs(t, acc.Add(ctx, id, 1), ErrClosed)
	assert.ErrorIs(t, acc.AddMany(ctx, map[uuid.UUID]int64{id: 1}), ErrClosed)
	assert.ErrorIs(t, acc.FlushAll(ctx), ErrClosed)
}

func TestCloseReportsCommitFailure(t *testing.T) {
	ctx := context.Background()
	acc, l, clock := newTestAccumulator(t)
	id := uuid.New()

	require.NoError(t, acc.Start(ctx, id, clock.Now()))
	clock.Advance(3 * time.Second).MustWait(ctx)
	l.failAdd = errors.New("read-only filesystem")

	err := acc.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only filesystem")
	assert.Equal(t, 1, l.closed, "ledger is closed even when the commit fails")
}

func TestWithStorageBackedLedger(t *testing.T) {
	ctx := context.Background()
	store := memory.New[int64]()
	acc := New(ledger.New(store))
	id := uuid.New()

	require.NoError(t, acc.Start(ctx, id, ms(0)))
	require.NoError(t, acc.Add(ctx, id, 10))
	require.NoError(t, acc.StopAndCommit(ctx, id, ms(100000)))
	require.NoError(t, acc.Close(ctx))

	// Close closes the backend too.
	_, _, err := store.Get(ctx, id.String())
	assert.Error(t, err)
}

func TestShortSessionCreatesEntry(t *testing.T) {
	ctx := context.Background()
	acc, _, _ := newTestAccumulator(t)
	id := uuid.New()

	require.NoError(t, acc.Start(ctx, id, ms(0)))
	require.NoError(t, acc.StopAndCommit(ctx, id, ms(400)))

	total, found, err := acc.Total(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(0), total)
	require.NoError(t, acc.Close(ctx))
}
