package iosched

import "fmt"

// PreconditionViolation is the panic value for caller bugs: touching a request this
// scheduler does not own, enqueueing one twice, or destroying a non-empty scheduler.
// They are never returned as errors.
type PreconditionViolation struct {
	Op  string
	Msg string
}

func (p *PreconditionViolation) Error() string {
	return fmt.Sprintf("iosched: precondition violated in %s: %s", p.Op, p.Msg)
}

func violation(op, format string, args ...interface{}) {
	panic(&PreconditionViolation{Op: op, Msg: fmt.Sprintf(format, args...)})
}
