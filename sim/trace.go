// Package sim replays request traces against an elevator and reports the dispatch order.
//
// A trace has one operation per line; blank lines and text after '#' are ignored:
//
//	R  <sector> <sectors>    queue a read
//	W  <sector> <sectors>    queue an async write (WA is a synonym)
//	WS <sector> <sectors>    queue a sync write
//	D  [n]                   dispatch n requests (default 1)
//	S  <tunable> <value>     set a tunable, value parsed like an admin write
//	M  <into> <from>         merge the request from into the request into
//
// A merge operand is either the line number of an earlier add in the same trace or the
// ID of a request already queued on the device. The two requests must share a class.
//
// Whatever is still queued when the trace ends is drained.
package sim

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/fshh520/osio-iosched/iosched"
)

type OpKind int

const (
	OpAdd OpKind = iota
	OpDispatch
	OpSet
	OpMerge
)

// Op is one parsed trace line.
type Op struct {
	Line int
	Kind OpKind

	// OpAdd
	Dir     iosched.Direction
	Sync    bool
	Sector  uint64
	Sectors uint32

	// OpDispatch
	Count int

	// OpSet
	Tunable string
	Value   string

	// OpMerge
	Into string
	From string
}

// Parse reads a whole trace. The first malformed line fails the parse.
func Parse(r io.Reader) ([]Op, error) {
	var ops []Op
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		op, err := parseOp(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		op.Line = line
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read trace")
	}
	return ops, nil
}

func parseOp(fields []string) (Op, error) {
	switch strings.ToUpper(fields[0]) {
	case "R":
		return parseAdd(fields, iosched.Read, false)
	case "W", "WA":
		return parseAdd(fields, iosched.Write, false)
	case "WS":
		return parseAdd(fields, iosched.Write, true)
	case "D":
		op := Op{Kind: OpDispatch, Count: 1}
		switch len(fields) {
		case 1:
		case 2:
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 1 {
				return Op{}, errors.Errorf("bad dispatch count %q", fields[1])
			}
			op.Count = n
		default:
			return Op{}, errors.New("usage: D [n]")
		}
		return op, nil
	case "S":
		if len(fields) != 3 {
			return Op{}, errors.New("usage: S <tunable> <value>")
		}
		if _, _, err := iosched.TunableRange(fields[1]); err != nil {
			return Op{}, errors.Wrapf(err, "%q", fields[1])
		}
		return Op{Kind: OpSet, Tunable: fields[1], Value: fields[2]}, nil
	case "M":
		if len(fields) != 3 {
			return Op{}, errors.New("usage: M <into> <from>")
		}
		return Op{Kind: OpMerge, Into: fields[1], From: fields[2]}, nil
	}
	return Op{}, errors.Errorf("unknown operation %q", fields[0])
}

func parseAdd(fields []string, dir iosched.Direction, sync bool) (Op, error) {
	if len(fields) != 3 {
		return Op{}, errors.Errorf("usage: %s <sector> <sectors>", fields[0])
	}
	sector, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Op{}, errors.Wrap(err, "bad sector")
	}
	sectors, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil || sectors == 0 {
		return Op{}, errors.Errorf("bad sector count %q", fields[2])
	}
	return Op{Kind: OpAdd, Dir: dir, Sync: sync, Sector: sector, Sectors: uint32(sectors)}, nil
}
