package iosched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fshh520/osio-iosched/common/stats"
)

func enqueueAll(s *DispatchScheduler, reqs []*Request) {
	for _, r := range reqs {
		s.Enqueue(r)
	}
}

func dispatchClasses(t *testing.T, s *DispatchScheduler, n int) []Class {
	out := make([]Class, 0, n)
	for i := 0; i < n; i++ {
		r, ok := s.Dispatch()
		require.True(t, ok, "dispatch %d found nothing", i+1)
		out = append(out, r.Class())
	}
	return out
}

func TestDispatchEmpty(t *testing.T) {
	s := New(nil)
	r, ok := s.Dispatch()
	assert.False(t, ok)
	assert.Nil(t, r)
	assert.Equal(t, State{Active: ClassUndecided}, s.State())

	req := &Request{Dir: Read}
	s.Enqueue(req)
	r, ok = s.Dispatch()
	require.True(t, ok)
	assert.Equal(t, req, r)

	_, ok = s.Dispatch()
	assert.False(t, ok)
	s.Destroy()
}

func TestSyncWriteForcedAfterTwoReadBatches(t *testing.T) {
	s := New(nil)
	enqueueAll(s, makeReqs(ClassRead, 20))
	sync := requestOf(ClassSyncWrite)
	s.Enqueue(sync)

	r, _ := s.Dispatch()
	assert.Equal(t, ClassRead, r.Class())
	assert.Equal(t, State{Active: ClassRead, Batching: 1, SyncWriteStarved: 1}, s.State())

	for i := 2; i <= 16; i++ {
		r, ok := s.Dispatch()
		require.True(t, ok)
		require.Equal(t, ClassRead, r.Class(), "dispatch %d", i)
		if i == 9 {
			// second read batch; sync_write starved == threshold is not enough
			assert.Equal(t, State{Active: ClassRead, Batching: 1, SyncWriteStarved: 2}, s.State())
		}
	}

	r, _ = s.Dispatch()
	assert.Equal(t, sync, r, "17th dispatch must be the starved sync write")
	assert.Equal(t, State{Active: ClassSyncWrite, Batching: 1}, s.State())

	// remaining reads follow in order
	for i := 16; i < 20; i++ {
		r, ok := s.Dispatch()
		require.True(t, ok)
		assert.Equal(t, uint64(i), r.Sector)
	}
	_, ok := s.Dispatch()
	assert.False(t, ok)
}

func TestAsyncWriteForcedAfterSixReadBatches(t *testing.T) {
	s := New(nil)
	enqueueAll(s, makeReqs(ClassRead, 100))
	s.Enqueue(requestOf(ClassAsyncWrite))

	classes := dispatchClasses(t, s, 49)
	for i, c := range classes[:48] {
		require.Equal(t, ClassRead, c, "dispatch %d", i+1)
	}
	assert.Equal(t, ClassAsyncWrite, classes[48])
}

func TestStarvedAsyncPreemptsForcedSync(t *testing.T) {
	s := New(nil)
	s.ApplyTunables(Tunables{
		ReadBatchLimit:             1,
		SyncWriteBatchLimit:        1,
		AsyncWriteBatchLimit:       1,
		SyncWriteStarvedThreshold:  1,
		AsyncWriteStarvedThreshold: 1,
	})
	enqueueAll(s, makeReqs(ClassRead, 10))
	enqueueAll(s, makeReqs(ClassSyncWrite, 10))
	enqueueAll(s, makeReqs(ClassAsyncWrite, 10))

	R, S, A := ClassRead, ClassSyncWrite, ClassAsyncWrite
	assert.Equal(t, []Class{R, R, A, S, R, A, S, R, A, S}, dispatchClasses(t, s, 10))
}

func TestAsyncWriteForcedBetweenSyncBatches(t *testing.T) {
	s := New(nil)
	enqueueAll(s, makeReqs(ClassSyncWrite, 30))
	enqueueAll(s, makeReqs(ClassAsyncWrite, 8))

	// sync writes win by default; after six sync batches async writes get one batch in
	var expected []Class
	for _, run := range []struct {
		c Class
		n int
	}{{ClassSyncWrite, 24}, {ClassAsyncWrite, 4}, {ClassSyncWrite, 6}, {ClassAsyncWrite, 4}} {
		for i := 0; i < run.n; i++ {
			expected = append(expected, run.c)
		}
	}
	assert.Equal(t, expected, dispatchClasses(t, s, 38))
	assert.True(t, s.Empty())
}

func TestStarvationCountersOnlyGrowWithPendingWork(t *testing.T) {
	s := New(nil)
	s.SetReadBatchLimit(1)
	enqueueAll(s, makeReqs(ClassRead, 10))
	for i := 0; i < 10; i++ {
		_, ok := s.Dispatch()
		require.True(t, ok)
	}
	st := s.State()
	assert.Equal(t, 0, st.SyncWriteStarved)
	assert.Equal(t, 0, st.AsyncWriteStarved)
}

func TestBatchEndsWhenQueueRunsDry(t *testing.T) {
	s := New(nil)
	enqueueAll(s, makeReqs(ClassRead, 2))
	s.Dispatch()
	s.Dispatch()

	w := requestOf(ClassAsyncWrite)
	s.Enqueue(w)
	r, ok := s.Dispatch()
	require.True(t, ok)
	assert.Equal(t, w, r)
	assert.Equal(t, State{Active: ClassAsyncWrite, Batching: 1}, s.State())
}

func TestTunableChangeAppliesAtNextDecision(t *testing.T) {
	s := New(nil)
	enqueueAll(s, makeReqs(ClassRead, 20))
	s.Enqueue(requestOf(ClassSyncWrite))

	s.Dispatch()
	_, err := s.Set(SyncWriteStarvedThresholdName, "0")
	require.NoError(t, err)
	// the running read batch is not cut short
	for i := 2; i <= 8; i++ {
		r, _ := s.Dispatch()
		require.Equal(t, ClassRead, r.Class())
	}
	r, _ := s.Dispatch()
	assert.Equal(t, ClassSyncWrite, r.Class())

	s.SetReadBatchLimit(2)
	classes := dispatchClasses(t, s, 2)
	assert.Equal(t, []Class{ClassRead, ClassRead}, classes)
	assert.Equal(t, 2, s.State().Batching)
}

func TestRemoveAndNeighbors(t *testing.T) {
	s := New(nil)
	reads := makeReqs(ClassRead, 3)
	enqueueAll(s, reads)

	assert.Equal(t, reads[0], s.Former(reads[1]))
	assert.Equal(t, reads[2], s.Latter(reads[1]))
	s.Remove(reads[1])
	assert.False(t, s.Owns(reads[1]))
	assert.Equal(t, 2, s.Pending(ClassRead))

	r1, _ := s.Dispatch()
	r2, _ := s.Dispatch()
	assert.Equal(t, []*Request{reads[0], reads[2]}, []*Request{r1, r2})

	assertViolation(t, "ClassOf", func() { s.Remove(reads[1]) })
	assertViolation(t, "Predecessor", func() { s.Former(reads[0]) })
}

func TestDestroyRequiresEmptyQueues(t *testing.T) {
	s := New(nil)
	w := requestOf(ClassAsyncWrite)
	s.Enqueue(w)
	assert.False(t, s.Empty())
	assertViolation(t, "Destroy", s.Destroy)

	s.Remove(w)
	assert.True(t, s.Empty())
	assert.NotPanics(t, s.Destroy)
}

func TestDispatchStats(t *testing.T) {
	reg := stats.NewFinagleStatsRegistry()
	stat, _ := stats.NewCustomStatsReceiver(func() stats.StatsRegistry { return reg }, 0)
	s := New(stat.Scope("sda"))
	enqueueAll(s, makeReqs(ClassRead, 20))
	s.Enqueue(requestOf(ClassSyncWrite))
	for {
		if _, ok := s.Dispatch(); !ok {
			break
		}
	}

	stats.VerifyStats("dispatch", reg, t, map[string]stats.Rule{
		"sda/dispatchCounter/read":                  {Checker: stats.Int64EqTest, Value: 20},
		"sda/dispatchCounter/sync_write":            {Checker: stats.Int64EqTest, Value: 1},
		"sda/batchStartCounter/read":                {Checker: stats.Int64EqTest, Value: 3},
		"sda/starvationOverrideCounter/sync_write":  {Checker: stats.Int64EqTest, Value: 1},
		"sda/emptyDispatchCounter":                  {Checker: stats.Int64EqTest, Value: 1},
		"sda/queueDepthGauge/read":                  {Checker: stats.Int64EqTest, Value: 0},
		"sda/starvationOverrideCounter/async_write": {Checker: stats.DoesNotExistTest},
	})
}
