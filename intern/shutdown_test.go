package intern

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/IvanBrykalov/internslice/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logRecord struct {
	level string
	msg   string
	f     Fields
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu   sync.Mutex
	recs []logRecord
}

func (l *recordingLogger) add(level, msg string, f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, logRecord{level, msg, f})
}

func (l *recordingLogger) Debug(msg string, f Fields) { l.add("debug", msg, f) }
func (l *recordingLogger) Info(msg string, f Fields)  { l.add("info", msg, f) }
func (l *recordingLogger) Warn(msg string, f Fields)  { l.add("warn", msg, f) }
func (l *recordingLogger) Error(msg string, f Fields) { l.add("error", msg, f) }

func (l *recordingLogger) byMsg(msg string) []logRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logRecord
	for _, r := range l.recs {
		if r.msg == msg {
			out = append(out, r)
		}
	}
	return out
}

// countingMetrics records hook calls.
type countingMetrics struct {
	mu                    sync.Mutex
	hits, misses, release int
	grows                 []int
	leaked                int
}

func (m *countingMetrics) live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.misses - m.release
}

func (m *countingMetrics) Hit()     { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *countingMetrics) Miss()    { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *countingMetrics) Release() { m.mu.Lock(); m.release++; m.mu.Unlock() }
func (m *countingMetrics) Grow(c int) {
	m.mu.Lock()
	m.grows = append(m.grows, c)
	m.mu.Unlock()
}
func (m *countingMetrics) Leak(n int) { m.mu.Lock(); m.leaked = n; m.mu.Unlock() }

func TestShutdown_Clean(t *testing.T) {
	t.Parallel()

	log := &recordingLogger{}
	tab := New(Options{Seed: Seed(1), Logger: log})
	s := tab.InternString("te")
	s.Release()

	require.NoError(t, tab.Shutdown())
	assert.Empty(t, log.byMsg("intern.leaked"))
	assert.ErrorIs(t, tab.Shutdown(), ErrClosed, "second Shutdown")
	assert.PanicsWithValue(t, ErrClosed, func() { tab.InternString("te") })
}

// Default policy: every leaked entry is reported, Shutdown returns and the
// process carries on.
func TestShutdown_ReportsLeaks(t *testing.T) {
	t.Parallel()

	log := &recordingLogger{}
	m := &countingMetrics{}
	tab := New(Options{Seed: Seed(7), Logger: log, Metrics: m})

	a := tab.InternString("leak-a")
	b := tab.Intern([]byte{0x00, 'b', 0xff})
	a2 := a.Ref()
	fine := tab.InternString("released")
	fine.Release()

	err := tab.Shutdown()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeaked))

	var le *LeakError
	require.True(t, errors.As(err, &le))
	require.Len(t, le.Leaks, 2)

	dumps := map[string]int32{}
	for _, l := range le.Leaks {
		dumps[l.Dump] = l.Refs
		assert.Equal(t, util.ShardIndex(l.Hash, len(tab.shards)), l.Shard)
	}
	assert.Equal(t, int32(2), dumps["6c 65 61 6b 2d 61 'leak-a'"])
	assert.Equal(t, int32(1), dumps["00 62 ff '.b.'"])

	assert.Len(t, log.byMsg("intern.leaked_entry"), 2)
	warned := 0
	for _, r := range log.byMsg("intern.leaked") {
		assert.Equal(t, "warn", r.level)
		warned += r.f["count"].(int)
	}
	assert.Equal(t, 2, warned)
	assert.Equal(t, 2, m.leaked)

	// Leaked handles may still be released after Shutdown.
	assert.NotPanics(t, func() {
		a.Release()
		a2.Release()
		b.Release()
	})
}

// Strict policy: leaks abort via panic with the *LeakError.
func TestShutdown_AbortOnLeaks(t *testing.T) {
	t.Parallel()

	log := &recordingLogger{}
	tab := New(Options{Seed: Seed(7), Logger: log, AbortOnLeaks: true})
	_ = tab.InternString("never-released")

	defer func() {
		r := recover()
		require.NotNil(t, r, "Shutdown must panic under AbortOnLeaks")
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrLeaked)
		assert.Contains(t, err.Error(), "1 entries leaked")
		assert.Len(t, log.byMsg("intern.abort_on_leaks"), 1)
	}()
	_ = tab.Shutdown()
}

// Every Intern* entry point refuses a closed table, including the
// reference-only path for handles the table itself produced.
func TestShutdown_InternSliceAfterClose(t *testing.T) {
	t.Parallel()

	tab := New(Options{Seed: Seed(2), Static: [][]byte{[]byte(":path")}})
	held := tab.InternString("kept")
	_ = tab.Shutdown()

	assert.PanicsWithValue(t, ErrClosed, func() { tab.InternSlice(held) })
	assert.PanicsWithValue(t, ErrClosed, func() { tab.InternSlice(InlineSlice([]byte("x"))) })
	assert.Equal(t, int32(1), held.Refs(), "the failed call must not take a reference")
	held.Release()
}

// An entry whose last reference is gone but whose unlink has not run yet
// is not a leak.
func TestShutdown_SkipsReleasedEntryAwaitingUnlink(t *testing.T) {
	t.Parallel()

	log := &recordingLogger{}
	tab := New(Options{Seed: Seed(4), Logger: log})
	dying := tab.InternString("dying")
	leaked := tab.InternString("leaked")

	// Count already at zero, unlink still pending on the shard lock.
	dying.e.refs.Store(0)

	err := tab.Shutdown()
	var le *LeakError
	require.True(t, errors.As(err, &le))
	require.Len(t, le.Leaks, 1)
	assert.Equal(t, Dump([]byte("leaked")), le.Leaks[0].Dump)
	assert.Len(t, log.byMsg("intern.leaked_entry"), 1)

	dying.e.sh.unlink(dying.e) // late unlink after Shutdown is a no-op
	leaked.Release()
}

func TestShutdown_StrictWithoutLeaksDoesNotAbort(t *testing.T) {
	t.Parallel()

	tab := New(Options{AbortOnLeaks: true})
	tab.InternString("ok").Release()
	assert.NotPanics(t, func() { require.NoError(t, tab.Shutdown()) })
}

func TestMetrics_Hooks(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	tab := New(Options{Seed: Seed(3), Shards: 1, InitialCapacity: 1, Metrics: m})

	a := tab.InternString("a")
	a2 := tab.InternString("a")
	b := tab.InternString("b")
	c := tab.InternString("c") // 3 > 2*1: grow to 2

	assert.Equal(t, 1, m.hits)
	assert.Equal(t, 3, m.misses)
	assert.Equal(t, []int{2}, m.grows)
	assert.Equal(t, 3, m.live())

	for _, s := range []Slice{a, a2, b, c} {
		s.Release()
	}
	assert.Equal(t, 3, m.release)
	assert.Equal(t, 0, m.live())
	require.NoError(t, tab.Shutdown())
	assert.Equal(t, 0, m.leaked)

	st := tab.Stats()[0]
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(3), st.Misses)
}

// gatedMetrics blocks the first Miss until gate is closed, holding that
// shard's lock while other shards keep inserting.
type gatedMetrics struct {
	countingMetrics
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func (m *gatedMetrics) Miss() {
	m.once.Do(func() {
		close(m.entered)
		<-m.gate
	})
	m.countingMetrics.Miss()
}

// Shards report insertions independently and in any order; the live count
// derived from the hooks must still match the table once they settle.
func TestMetrics_LiveCountIndependentOfShardOrder(t *testing.T) {
	t.Parallel()

	m := &gatedMetrics{entered: make(chan struct{}), gate: make(chan struct{})}
	tab := newTestTable(t, Options{Shards: 2, Metrics: m})

	first := []byte("a")
	var other []byte
	for i := 0; other == nil; i++ {
		b := []byte("b" + strconv.Itoa(i))
		if tab.Locate(b).Shard != tab.Locate(first).Shard {
			other = b
		}
	}

	done := make(chan Slice)
	go func() { done <- tab.Intern(first) }()
	<-m.entered

	b := tab.Intern(other) // different shard, not blocked
	assert.Equal(t, 2, tab.Len())
	assert.Equal(t, 1, m.live())
	close(m.gate)
	a := <-done

	assert.Equal(t, 2, m.live())
	assert.Equal(t, tab.Len(), m.live())

	a.Release()
	b.Release()
	assert.Equal(t, 0, m.live())
}

func TestRelease_TooOftenPanics(t *testing.T) {
	t.Parallel()

	tab := newTestTable(t, Options{})
	s := tab.InternString("once")
	dup := s // copying a handle does not add a reference
	s.Release()

	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.ErrorIs(t, r.(error), ErrCorrupt)
	}()
	dup.Release() // unlinked already; count goes negative
}

func TestUnlink_MissingEntryPanics(t *testing.T) {
	t.Parallel()

	tab := newTestTable(t, Options{})
	s := tab.InternString("ghost")
	e := s.e
	s.Release() // unlinked

	defer func() {
		r := recover()
		require.NotNil(t, r, "unlinking an absent entry must panic")
		assert.ErrorIs(t, r.(error), ErrCorrupt)
		assert.Contains(t, r.(error).Error(), "missing from shard")
	}()
	e.sh.unlink(e)
}
