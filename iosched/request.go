package iosched

import "fmt"

type Direction int

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Class is the unit of batching and fairness.
type Class int

const (
	ClassRead Class = iota
	ClassSyncWrite
	ClassAsyncWrite

	// NumClasses is the number of real classes; ClassUndecided is not one of them.
	NumClasses = 3

	// ClassUndecided is the active class while a new batch still has to be picked.
	ClassUndecided Class = NumClasses
)

var classNames = [...]string{"read", "sync_write", "async_write", "undecided"}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return fmt.Sprintf("Class(%d)", int(c))
	}
	return classNames[c]
}

// Classes lists the real classes in priority order.
var Classes = []Class{ClassRead, ClassSyncWrite, ClassAsyncWrite}

// Request is one unit of I/O. The scheduler only looks at Dir and Sync; the remaining
// fields belong to the host.
type Request struct {
	Dir  Direction
	Sync bool

	ID      string
	Sector  uint64
	Sectors uint32
	// IDs of requests the host folded into this one.
	Merged []string
}

// Class derives the scheduling class. Reads ignore the sync flag.
func (r *Request) Class() Class {
	if r.Dir == Read {
		return ClassRead
	}
	if r.Sync {
		return ClassSyncWrite
	}
	return ClassAsyncWrite
}

// End is the first sector after the request.
func (r *Request) End() uint64 {
	return r.Sector + uint64(r.Sectors)
}

func (r *Request) String() string {
	return fmt.Sprintf("%s[%s %d+%d]", r.ID, r.Class(), r.Sector, r.Sectors)
}
