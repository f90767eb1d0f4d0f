package sim

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/common/stats"
	"github.com/fshh520/osio-iosched/elevator"
	"github.com/fshh520/osio-iosched/iosched"
)

// Result is what a replay dispatched, in order.
type Result struct {
	Dispatched []*iosched.Request
	// Requests queued by the trace, and how many of them were merged into others, by back
	// merging or an M line.
	Added  int
	Merged int
	// Requests dispatched by the final drain rather than a D line.
	Drained int
}

// Counts returns the number of dispatched requests per class.
func (r *Result) Counts() map[iosched.Class]int {
	counts := map[iosched.Class]int{}
	for _, req := range r.Dispatched {
		counts[req.Class()]++
	}
	return counts
}

// Classes returns the class of each dispatched request.
func (r *Result) Classes() []iosched.Class {
	out := make([]iosched.Class, len(r.Dispatched))
	for i, req := range r.Dispatched {
		out[i] = req.Class()
	}
	return out
}

func (r *Result) Format(w io.Writer) {
	for i, req := range r.Dispatched {
		fmt.Fprintf(w, "%4d %-11s %d+%d", i+1, req.Class(), req.Sector, req.Sectors)
		if len(req.Merged) > 0 {
			fmt.Fprintf(w, " merged:%d", len(req.Merged))
		}
		fmt.Fprintln(w)
	}
	counts := r.Counts()
	fmt.Fprintf(w, "added:%d merged:%d dispatched:%d drained:%d", r.Added, r.Merged, len(r.Dispatched), r.Drained)
	for _, c := range iosched.Classes {
		fmt.Fprintf(w, " %s:%d", c, counts[c])
	}
	fmt.Fprintln(w)
}

// Simulator replays traces against one elevator.
type Simulator struct {
	elev      *elevator.Elevator
	transport *elevator.RecordingTransport
	driver    *elevator.Driver
}

// NewSimulator makes a simulator for a fresh device. maxMerge of 0 disables merging.
func NewSimulator(tunables iosched.Tunables, maxMerge uint32, stat stats.StatsReceiver) *Simulator {
	elev := elevator.NewElevator("sim", tunables, maxMerge, stat)
	transport := &elevator.RecordingTransport{}
	return &Simulator{
		elev:      elev,
		transport: transport,
		driver:    elevator.NewDriver(elev, transport, elevator.DriverConfig{}, stat),
	}
}

func (s *Simulator) Elevator() *elevator.Elevator {
	return s.elev
}

// Run applies ops in order, then drains the elevator.
func (s *Simulator) Run(ctx context.Context, ops []Op) (*Result, error) {
	res := &Result{}
	admit := newAdmitter(s.elev)
	for _, op := range ops {
		switch op.Kind {
		case OpAdd, OpMerge:
			adm, err := admit.apply(op)
			if err != nil {
				return nil, err
			}
			if op.Kind == OpAdd {
				res.Added++
			}
			if adm.Into != "" {
				res.Merged++
			}
		case OpDispatch:
			for i := 0; i < op.Count; i++ {
				req, ok := s.elev.Dispatch()
				if !ok {
					log.Debugf("line %d: nothing to dispatch", op.Line)
					break
				}
				if err := s.transport.Submit(ctx, req); err != nil {
					return nil, err
				}
			}
		case OpSet:
			v, err := s.elev.SetTunable(op.Tunable, op.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", op.Line)
			}
			log.Debugf("line %d: %s=%d", op.Line, op.Tunable, v)
		}
	}
	before := s.transport.Len()
	if failed := s.driver.Flush(ctx); failed > 0 {
		return nil, errors.Errorf("%d requests failed to submit", failed)
	}
	res.Dispatched = s.transport.Requests()
	res.Drained = len(res.Dispatched) - before
	return res, nil
}

// Replay parses a trace and runs it on a fresh simulator.
func Replay(ctx context.Context, r io.Reader, tunables iosched.Tunables, maxMerge uint32, stat stats.StatsReceiver) (*Result, error) {
	ops, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return NewSimulator(tunables, maxMerge, stat).Run(ctx, ops)
}
