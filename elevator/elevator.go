package elevator

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/common/stats"
	"github.com/fshh520/osio-iosched/iosched"
)

// DefaultMaxMergeSectors caps the size of a request built by back merging.
const DefaultMaxMergeSectors = 256

var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrDeviceExists  = errors.New("device already attached")
	ErrDeviceBusy    = errors.New("device has queued requests")
	ErrClosed        = errors.New("elevator is closed")
	ErrNotQueued     = errors.New("request is not queued")
	ErrMergeClass    = errors.New("requests are in different classes")
)

// Elevator is the per-device owner of a DispatchScheduler. All methods are safe for
// concurrent use.
type Elevator struct {
	name string

	mu       sync.Mutex
	sched    *iosched.DispatchScheduler
	maxMerge uint32
	closed   bool
	// Queued requests by ID, for MergeRequests.
	queued   map[string]*iosched.Request

	// Signalled (without blocking) whenever a request is added.
	wake chan struct{}

	stat stats.StatsReceiver
}

// NewElevator makes an elevator for the named device. A zero maxMerge disables back merging.
func NewElevator(name string, tunables iosched.Tunables, maxMerge uint32, stat stats.StatsReceiver) *Elevator {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	stat = stat.Scope(name)
	sched := iosched.New(stat)
	sched.ApplyTunables(tunables)
	return &Elevator{
		name:     name,
		sched:    sched,
		maxMerge: maxMerge,
		queued:   map[string]*iosched.Request{},
		wake:     make(chan struct{}, 1),
		stat:     stat,
	}
}

func (e *Elevator) Name() string {
	return e.name
}

// Add queues req. If the request queued just before it in the same class ends where req
// starts, req is folded into that request instead, and the returned request is the one
// that now carries req's sectors.
func (e *Elevator) Add(req *iosched.Request) (*iosched.Request, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	e.sched.Enqueue(req)
	into := req
	if prev := e.sched.Former(req); prev != nil && e.canMerge(prev, req) {
		e.merge(prev, req)
		into = prev
	} else if req.ID != "" {
		e.queued[req.ID] = req
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return into, nil
}

func (e *Elevator) canMerge(rq, next *iosched.Request) bool {
	if e.maxMerge == 0 {
		return false
	}
	return rq.End() == next.Sector && uint64(rq.Sectors)+uint64(next.Sectors) <= uint64(e.maxMerge)
}

// MergeRequests folds the request queued as nextID into the one queued as rqID, whatever
// their sectors, and returns the survivor. Both must be queued here and share a class.
func (e *Elevator) MergeRequests(rqID, nextID string) (*iosched.Request, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rq, next := e.queued[rqID], e.queued[nextID]
	if rq == nil || next == nil || rq == next {
		return nil, ErrNotQueued
	}
	if rq.Class() != next.Class() {
		return nil, ErrMergeClass
	}
	e.merge(rq, next)
	return rq, nil
}

// Lookup returns the queued request with the given ID.
func (e *Elevator) Lookup(id string) (*iosched.Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.queued[id]
	return req, ok
}

func (e *Elevator) merge(rq, next *iosched.Request) {
	rq.Sectors += next.Sectors
	rq.Merged = append(rq.Merged, next.ID)
	rq.Merged = append(rq.Merged, next.Merged...)
	e.sched.Remove(next)
	delete(e.queued, next.ID)
	log.Debugf("%s: merged %v into %v", e.name, next, rq)
}

// Dispatch returns the next request for the device, or false when nothing is queued.
func (e *Elevator) Dispatch() (*iosched.Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatch()
}

func (e *Elevator) dispatch() (*iosched.Request, bool) {
	req, ok := e.sched.Dispatch()
	if ok {
		delete(e.queued, req.ID)
	}
	return req, ok
}

// Drain dispatches every queued request, in dispatch order.
func (e *Elevator) Drain() []*iosched.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*iosched.Request
	for {
		req, ok := e.dispatch()
		if !ok {
			return out
		}
		out = append(out, req)
	}
}

// Wake fires after requests are added.
func (e *Elevator) Wake() <-chan struct{} {
	return e.wake
}

func (e *Elevator) Tunable(name string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Get(name)
}

// SetTunable parses and clamps text and returns the stored value.
func (e *Elevator) SetTunable(name, text string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Set(name, text)
}

func (e *Elevator) Tunables() iosched.Tunables {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Tunables()
}

func (e *Elevator) ApplyTunables(t iosched.Tunables) iosched.Tunables {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.ApplyTunables(t)
}

// Pending is the number of queued requests of class c.
func (e *Elevator) Pending(c iosched.Class) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Pending(c)
}

// Len is the number of queued requests across all classes.
func (e *Elevator) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range iosched.Classes {
		n += e.sched.Pending(c)
	}
	return n
}

func (e *Elevator) State() iosched.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.State()
}

// Close tears the scheduler down. It fails with ErrDeviceBusy, and leaves the elevator
// open, while requests are queued.
func (e *Elevator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	if !e.sched.Empty() {
		return ErrDeviceBusy
	}
	e.sched.Destroy()
	e.closed = true
	log.Infof("%s: elevator closed", e.name)
	return nil
}
