package iosched

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// Names of the tunables, as exposed by the host's configuration surface.
const (
	SyncWriteStarvedThresholdName  = "sync-write-starved-threshold"
	AsyncWriteStarvedThresholdName = "async-write-starved-threshold"
	ReadBatchLimitName             = "read-batch-limit"
	SyncWriteBatchLimitName        = "sync-write-batch-limit"
	AsyncWriteBatchLimitName       = "async-write-batch-limit"
)

const (
	DefaultReadBatchLimit             = 8
	DefaultSyncWriteBatchLimit        = 4
	DefaultAsyncWriteBatchLimit       = 4
	DefaultSyncWriteStarvedThreshold  = 1
	DefaultAsyncWriteStarvedThreshold = 5

	MaxTunable = 65535
)

var ErrUnknownTunable = errors.New("unknown tunable")

// Tunables is the complete set of live-tunable scheduler parameters.
type Tunables struct {
	ReadBatchLimit             int `json:"ReadBatchLimit"`
	SyncWriteBatchLimit        int `json:"SyncWriteBatchLimit"`
	AsyncWriteBatchLimit       int `json:"AsyncWriteBatchLimit"`
	SyncWriteStarvedThreshold  int `json:"SyncWriteStarvedThreshold"`
	AsyncWriteStarvedThreshold int `json:"AsyncWriteStarvedThreshold"`
}

func DefaultTunables() Tunables {
	return Tunables{
		ReadBatchLimit:             DefaultReadBatchLimit,
		SyncWriteBatchLimit:        DefaultSyncWriteBatchLimit,
		AsyncWriteBatchLimit:       DefaultAsyncWriteBatchLimit,
		SyncWriteStarvedThreshold:  DefaultSyncWriteStarvedThreshold,
		AsyncWriteStarvedThreshold: DefaultAsyncWriteStarvedThreshold,
	}
}

type tunableSpec struct {
	min, max int
	field    func(t *Tunables) *int
}

var tunableSpecs = map[string]tunableSpec{
	SyncWriteStarvedThresholdName:  {0, MaxTunable, func(t *Tunables) *int { return &t.SyncWriteStarvedThreshold }},
	AsyncWriteStarvedThresholdName: {1, MaxTunable, func(t *Tunables) *int { return &t.AsyncWriteStarvedThreshold }},
	ReadBatchLimitName:             {1, MaxTunable, func(t *Tunables) *int { return &t.ReadBatchLimit }},
	SyncWriteBatchLimitName:        {1, MaxTunable, func(t *Tunables) *int { return &t.SyncWriteBatchLimit }},
	AsyncWriteBatchLimitName:       {1, MaxTunable, func(t *Tunables) *int { return &t.AsyncWriteBatchLimit }},
}

// TunableNames returns every tunable name, sorted.
func TunableNames() []string {
	names := make([]string, 0, len(tunableSpecs))
	for name := range tunableSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TunableRange returns the inclusive bounds a tunable is clamped to.
func TunableRange(name string) (min, max int, err error) {
	spec, ok := tunableSpecs[name]
	if !ok {
		return 0, 0, ErrUnknownTunable
	}
	return spec.min, spec.max, nil
}

// Get returns the named tunable.
func (t *Tunables) Get(name string) (int, error) {
	spec, ok := tunableSpecs[name]
	if !ok {
		return 0, ErrUnknownTunable
	}
	return *spec.field(t), nil
}

// Set clamps v into the tunable's range, stores it and returns the stored value.
func (t *Tunables) Set(name string, v int) (int, error) {
	spec, ok := tunableSpecs[name]
	if !ok {
		return 0, ErrUnknownTunable
	}
	v = clamp(v, spec.min, spec.max)
	*spec.field(t) = v
	return v, nil
}

// SetText parses text the way the kernel's simple_strtol does and then behaves like Set.
// Text that doesn't start with a number reads as 0 and is clamped like any other value.
func (t *Tunables) SetText(name, text string) (int, error) {
	return t.Set(name, ParseTunable(text))
}

// Clamped returns a copy with every field forced into range.
func (t Tunables) Clamped() Tunables {
	for _, spec := range tunableSpecs {
		p := spec.field(&t)
		*p = clamp(*p, spec.min, spec.max)
	}
	return t
}

// Map returns the tunables keyed by name.
func (t Tunables) Map() map[string]int {
	m := make(map[string]int, len(tunableSpecs))
	for name, spec := range tunableSpecs {
		m[name] = *spec.field(&t)
	}
	return m
}

func (t *Tunables) batchLimit(c Class) int {
	switch c {
	case ClassRead:
		return t.ReadBatchLimit
	case ClassSyncWrite:
		return t.SyncWriteBatchLimit
	default:
		return t.AsyncWriteBatchLimit
	}
}

// ParseTunable reads an optionally signed base 10 integer prefix of s, after leading
// whitespace. Anything after the digits is ignored, no digits yields 0, and values that
// don't fit an int saturate.
func ParseTunable(s string) int {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	neg := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	v := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		d := int(s[i] - '0')
		if v > (math.MaxInt-d)/10 {
			if neg {
				return math.MinInt
			}
			return math.MaxInt
		}
		v = v*10 + d
	}
	if neg {
		return -v
	}
	return v
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
