package iosched

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/common/stats"
)

// DispatchScheduler decides which queued request goes to the device next.
// See the package documentation for the algorithm.
type DispatchScheduler struct {
	queues *ClassifiedQueueSet

	active   Class
	batching int
	// indexed by class; only the two write classes are used
	starved [NumClasses]int

	tunables Tunables

	stat stats.StatsReceiver
}

// New makes an empty scheduler with default tunables. A nil stat disables stats.
func New(stat stats.StatsReceiver) *DispatchScheduler {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &DispatchScheduler{
		queues:   NewClassifiedQueueSet(),
		active:   ClassUndecided,
		tunables: DefaultTunables(),
		stat:     stat,
	}
}

// Enqueue queues req at the tail of its class.
func (s *DispatchScheduler) Enqueue(req *Request) {
	c := req.Class()
	s.queues.Enqueue(c, req)
	s.updateDepth(c)
}

// Dispatch releases the next request, or returns false when nothing is pending.
func (s *DispatchScheduler) Dispatch() (*Request, bool) {
	// Phase A: continue or end the current batch.
	if s.active != ClassUndecided {
		if s.batching >= s.tunables.batchLimit(s.active) || s.queues.IsEmpty(s.active) {
			s.active = ClassUndecided
		}
	}

	// Phase B: pick a new active class.
	if s.active == ClassUndecided {
		if !s.selectClass() {
			s.stat.Counter(stats.IOSchedEmptyDispatchCounter).Inc(1)
			return nil, false
		}
	}

	// Phase C: dispatch from the active class.
	req, ok := s.queues.DequeueHead(s.active)
	if !ok {
		// Phase A/B only leave a class active when its queue has work.
		panic(fmt.Sprintf("iosched: active class %s has an empty queue", s.active))
	}
	s.batching++
	s.stat.Counter(stats.IOSchedDispatchCounter, s.active.String()).Inc(1)
	s.updateDepth(s.active)
	return req, true
}

// selectClass runs Phase B. It returns false, leaving all state untouched, when every
// queue is empty.
func (s *DispatchScheduler) selectClass() bool {
	r := !s.queues.IsEmpty(ClassRead)
	sw := !s.queues.IsEmpty(ClassSyncWrite)
	aw := !s.queues.IsEmpty(ClassAsyncWrite)

	var next, natural Class
	switch {
	case r:
		natural = ClassRead
		switch {
		case s.starvedOver(ClassSyncWrite, sw):
			next = s.pickSyncWrite(aw)
		case s.starvedOver(ClassAsyncWrite, aw):
			next = ClassAsyncWrite
		default:
			next = ClassRead
		}
	case sw:
		natural = ClassSyncWrite
		next = s.pickSyncWrite(aw)
	case aw:
		natural, next = ClassAsyncWrite, ClassAsyncWrite
	default:
		return false
	}

	if next != natural {
		s.stat.Counter(stats.IOSchedStarvationOverrideCounter, next.String()).Inc(1)
		log.Debugf("iosched: %s starved past its threshold, overriding %s", next, natural)
	}

	// Every write class that has work but was not picked has been passed over once more.
	for _, c := range []Class{ClassSyncWrite, ClassAsyncWrite} {
		switch {
		case c == next:
			s.starved[c] = 0
		case !s.queues.IsEmpty(c):
			s.starved[c]++
		}
	}
	s.active = next
	s.batching = 0
	s.stat.Counter(stats.IOSchedBatchStartCounter, next.String()).Inc(1)
	log.Debugf("iosched: selected %s (starved sync_write:%d async_write:%d)",
		next, s.starved[ClassSyncWrite], s.starved[ClassAsyncWrite])
	return true
}

// pickSyncWrite is the sync write selection step: starved async writes still take precedence.
func (s *DispatchScheduler) pickSyncWrite(aw bool) Class {
	if s.starvedOver(ClassAsyncWrite, aw) {
		return ClassAsyncWrite
	}
	return ClassSyncWrite
}

func (s *DispatchScheduler) starvedOver(c Class, pending bool) bool {
	if !pending {
		return false
	}
	switch c {
	case ClassSyncWrite:
		return s.starved[c] > s.tunables.SyncWriteStarvedThreshold
	case ClassAsyncWrite:
		return s.starved[c] > s.tunables.AsyncWriteStarvedThreshold
	}
	return false
}

// Remove drops req from its queue; the host calls this after merging req into a neighbor.
func (s *DispatchScheduler) Remove(req *Request) {
	c := s.queues.ClassOf(req)
	s.queues.Remove(req)
	s.stat.Counter(stats.IOSchedMergeCounter).Inc(1)
	s.updateDepth(c)
}

// Former returns the request queued before req in the same class, or nil.
func (s *DispatchScheduler) Former(req *Request) *Request {
	return s.queues.Predecessor(req)
}

// Latter returns the request queued after req in the same class, or nil.
func (s *DispatchScheduler) Latter(req *Request) *Request {
	return s.queues.Successor(req)
}

// Owns reports whether req is currently queued in this scheduler.
func (s *DispatchScheduler) Owns(req *Request) bool {
	return s.queues.Contains(req)
}

// Pending is the number of queued requests of class c.
func (s *DispatchScheduler) Pending(c Class) int {
	return s.queues.Len(c)
}

// Empty reports whether all three queues are empty.
func (s *DispatchScheduler) Empty() bool {
	for _, c := range Classes {
		if !s.queues.IsEmpty(c) {
			return false
		}
	}
	return true
}

// Get returns the named tunable.
func (s *DispatchScheduler) Get(name string) (int, error) {
	return s.tunables.Get(name)
}

// Set parses text, clamps it into the tunable's range and stores it. The result is the
// stored value. Only an unknown name fails.
func (s *DispatchScheduler) Set(name, text string) (int, error) {
	v, err := s.tunables.SetText(name, text)
	if err != nil {
		return 0, err
	}
	s.stat.Counter(stats.IOSchedTunableSetCounter).Inc(1)
	log.Infof("iosched: %s set to %d (input %q)", name, v, text)
	return v, nil
}

// Tunables returns a copy of the current tunables.
func (s *DispatchScheduler) Tunables() Tunables {
	return s.tunables
}

// ApplyTunables replaces every tunable, clamping each one.
func (s *DispatchScheduler) ApplyTunables(t Tunables) Tunables {
	s.tunables = t.Clamped()
	log.Infof("iosched: tunables applied: %+v", s.tunables)
	return s.tunables
}

func (s *DispatchScheduler) ReadBatchLimit() int { return s.tunables.ReadBatchLimit }
func (s *DispatchScheduler) SetReadBatchLimit(v int) int {
	v, _ = s.tunables.Set(ReadBatchLimitName, v)
	return v
}

func (s *DispatchScheduler) SyncWriteBatchLimit() int { return s.tunables.SyncWriteBatchLimit }
func (s *DispatchScheduler) SetSyncWriteBatchLimit(v int) int {
	v, _ = s.tunables.Set(SyncWriteBatchLimitName, v)
	return v
}

func (s *DispatchScheduler) AsyncWriteBatchLimit() int { return s.tunables.AsyncWriteBatchLimit }
func (s *DispatchScheduler) SetAsyncWriteBatchLimit(v int) int {
	v, _ = s.tunables.Set(AsyncWriteBatchLimitName, v)
	return v
}

func (s *DispatchScheduler) SyncWriteStarvedThreshold() int {
	return s.tunables.SyncWriteStarvedThreshold
}
func (s *DispatchScheduler) SetSyncWriteStarvedThreshold(v int) int {
	v, _ = s.tunables.Set(SyncWriteStarvedThresholdName, v)
	return v
}

func (s *DispatchScheduler) AsyncWriteStarvedThreshold() int {
	return s.tunables.AsyncWriteStarvedThreshold
}
func (s *DispatchScheduler) SetAsyncWriteStarvedThreshold(v int) int {
	v, _ = s.tunables.Set(AsyncWriteStarvedThresholdName, v)
	return v
}

// State is a snapshot of the scheduling state, for debugging and tests.
type State struct {
	Active   Class
	Batching int
	// Starved counters of SyncWrite and AsyncWrite.
	SyncWriteStarved  int
	AsyncWriteStarved int
}

func (s *DispatchScheduler) State() State {
	return State{
		Active:            s.active,
		Batching:          s.batching,
		SyncWriteStarved:  s.starved[ClassSyncWrite],
		AsyncWriteStarved: s.starved[ClassAsyncWrite],
	}
}

func (s *DispatchScheduler) String() string {
	return fmt.Sprintf("active:%s batching:%d starved[sync_write:%d async_write:%d] queued[read:%d sync_write:%d async_write:%d]",
		s.active, s.batching, s.starved[ClassSyncWrite], s.starved[ClassAsyncWrite],
		s.queues.Len(ClassRead), s.queues.Len(ClassSyncWrite), s.queues.Len(ClassAsyncWrite))
}

// Destroy tears the scheduler down. Every queue must be empty: requests still queued at
// teardown would be lost, so a non-empty scheduler panics.
func (s *DispatchScheduler) Destroy() {
	for _, c := range Classes {
		if n := s.queues.Len(c); n != 0 {
			violation("Destroy", "%d %s requests still queued", n, c)
		}
	}
	s.active = ClassUndecided
	s.batching = 0
	s.starved = [NumClasses]int{}
}

func (s *DispatchScheduler) updateDepth(c Class) {
	s.stat.Gauge(stats.IOSchedQueueDepthGauge, c.String()).Update(int64(s.queues.Len(c)))
}
