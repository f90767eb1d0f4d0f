package sim

import (
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/elevator"
	"github.com/fshh520/osio-iosched/iosched"
)

// ErrNotAdmissible is returned by Admit for trace operations other than adds and merges.
var ErrNotAdmissible = errors.New("only add and merge operations can be admitted")

// Admission reports where one admitted operation ended up. For an add, ID is the new
// request and Into is set when it was back merged into an already queued request. For a
// merge, ID is the request that was folded into Into.
type Admission struct {
	Line int    `json:"line"`
	ID   string `json:"id"`
	Into string `json:"into,omitempty"`
}

// Admit queues the adds and merges of a trace on e, for a live device whose driver does
// the dispatching. The whole trace is checked before anything is queued; after that the
// first failure stops it, and what was admitted so far stays queued.
func Admit(e *elevator.Elevator, ops []Op) ([]Admission, error) {
	for _, op := range ops {
		if op.Kind != OpAdd && op.Kind != OpMerge {
			return nil, errors.Wrapf(ErrNotAdmissible, "line %d", op.Line)
		}
	}
	a := newAdmitter(e)
	out := make([]Admission, 0, len(ops))
	for _, op := range ops {
		adm, err := a.apply(op)
		if err != nil {
			return out, err
		}
		out = append(out, adm)
	}
	return out, nil
}

// admitter applies adds and merges, remembering which request each add line now lives in.
type admitter struct {
	elev  *elevator.Elevator
	lines map[int]*iosched.Request
}

func newAdmitter(e *elevator.Elevator) *admitter {
	return &admitter{elev: e, lines: map[int]*iosched.Request{}}
}

func (a *admitter) apply(op Op) (Admission, error) {
	switch op.Kind {
	case OpAdd:
		req := elevator.NewRequest(op.Dir, op.Sync, op.Sector, op.Sectors)
		into, err := a.elev.Add(req)
		if err != nil {
			return Admission{}, errors.Wrapf(err, "line %d", op.Line)
		}
		a.lines[op.Line] = into
		adm := Admission{Line: op.Line, ID: req.ID}
		if into != req {
			adm.Into = into.ID
		}
		return adm, nil
	case OpMerge:
		rq, next := a.resolve(op.Into), a.resolve(op.From)
		into, err := a.elev.MergeRequests(rq, next)
		if err != nil {
			return Admission{}, errors.Wrapf(err, "line %d: M %s %s", op.Line, op.Into, op.From)
		}
		for line, req := range a.lines {
			if req.ID == next {
				a.lines[line] = into
			}
		}
		log.Debugf("line %d: merged %s into %s", op.Line, next, rq)
		return Admission{Line: op.Line, ID: next, Into: rq}, nil
	}
	return Admission{}, errors.Wrapf(ErrNotAdmissible, "line %d", op.Line)
}

// resolve maps a merge operand to a request ID. Operands naming an add line of this trace
// win over request IDs.
func (a *admitter) resolve(ref string) string {
	if line, err := strconv.Atoi(ref); err == nil {
		if req, ok := a.lines[line]; ok {
			return req.ID
		}
	}
	return ref
}
