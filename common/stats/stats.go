// Package stats provides a small set of instrument interfaces backed by go-metrics.
// The scheduler and its host code record through a StatsReceiver so that callers
// can scope names per device and decide how (or whether) stats get rendered.
//
// Provided here:
// - A StatsReceiver that can be passed down a call tree and scoped at each level.
// - Counter, Gauge and Latency instruments.
// - A finagle style registry that renders flat JSON for /admin/metrics.json.
// - A latched receiver that snapshots the registry at a fixed interval.
//
// Original license: github.com/rcrowley/go-metrics/blob/master/LICENSE
package stats

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// For testing.
var Time StatsTime = DefaultStatsTime()

// Overridable instrument creation.
var NewCounter func() Counter = newMetricCounter
var NewGauge func() Gauge = newMetricGauge
var NewLatency func() Latency = newLatency

// To check if pretty printing is supported.
type MarshalerPretty interface {
	MarshalJSONPretty() ([]byte, error)
}

// StatsRegistry is the subset of the go-metrics registry we rely on.
type StatsRegistry interface {
	// Gets an existing metric or registers the given one.
	GetOrRegister(string, interface{}) interface{}

	Unregister(string)

	Each(func(string, interface{}))
}

// StatsReceiver hands out named instruments. Names are '/' delimited; any '/' inside
// a single name element is replaced by "_SLASH_" so that device names like "dm/0"
// don't create accidental hierarchy.
type StatsReceiver interface {
	// Return a stats receiver that will automatically namespace elements with
	// the given scope args.
	//
	//   stat.Scope("sda", "iosched").Counter("dispatchCounter_read")
	//
	Scope(scope ...string) StatsReceiver

	// Returns a copy whose Latency instruments render in the given precision.
	Precision(time.Duration) StatsReceiver

	Counter(name ...string) Counter

	Gauge(name ...string) Gauge

	// Latency records durations; rendered as a histogram.
	Latency(name ...string) Latency

	Remove(name ...string)

	// Construct a JSON string by marshaling the registry.
	Render(pretty bool) []byte
}

// DefaultStatsReceiver is an unlatched receiver on a plain go-metrics registry.
func DefaultStatsReceiver() StatsReceiver {
	stat, _ := NewCustomStatsReceiver(nil, 0)
	return stat
}

// NewCustomStatsReceiver makes a receiver over the given registry constructor. A positive
// latched duration starts a goroutine that captures the registry every interval; Render then
// returns the last capture. Call cancelFn to stop it.
func NewCustomStatsReceiver(makeRegistry func() StatsRegistry, latched time.Duration) (stat StatsReceiver, cancelFn func()) {
	if makeRegistry == nil {
		makeRegistry = func() StatsRegistry { return metrics.NewRegistry() }
	}
	defaultStat := &defaultStatsReceiver{
		makeRegistry: makeRegistry,
		registry:     makeRegistry(),
		precision:    time.Millisecond,
	}
	cancel := func() {}
	if latched > 0 {
		var ctx context.Context
		defaultStat.latchCh = make(chan chan StatsRegistry)
		ctx, cancel = context.WithCancel(context.Background())
		firstCaptured := capture(defaultStat.registry, makeRegistry())
		go latch(defaultStat, firstCaptured, Time.NewTicker(latched), ctx)
	}
	return defaultStat, cancel
}

func latch(stat *defaultStatsReceiver, captured StatsRegistry, ticker StatsTicker, ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return
		case <-ticker.C():
			captured = capture(stat.registry, stat.makeRegistry())
		case req := <-stat.latchCh:
			req <- captured
		}
	}
}

func capture(src StatsRegistry, captured StatsRegistry) StatsRegistry {
	src.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case Counter:
			captured.GetOrRegister(name, m.Capture())
		case Gauge:
			captured.GetOrRegister(name, m.Capture())
		case Latency:
			captured.GetOrRegister(name, m.Capture())
		default:
			log.Info("Unrecognized capture instrument: ", name, i)
		}
	})
	return captured
}

type defaultStatsReceiver struct {
	makeRegistry func() StatsRegistry
	registry     StatsRegistry
	latchCh      chan chan StatsRegistry
	precision    time.Duration
	scope        []string
}

func (s *defaultStatsReceiver) Scope(scope ...string) StatsReceiver {
	return &defaultStatsReceiver{s.makeRegistry, s.registry, s.latchCh, s.precision, s.scoped(scope...)}
}

func (s *defaultStatsReceiver) Precision(precision time.Duration) StatsReceiver {
	if precision < 1 {
		precision = 1
	}
	return &defaultStatsReceiver{s.makeRegistry, s.registry, s.latchCh, precision, s.scope}
}

func (s *defaultStatsReceiver) Counter(name ...string) Counter {
	return s.registry.GetOrRegister(s.scopedName(name...), NewCounter).(Counter)
}

func (s *defaultStatsReceiver) Gauge(name ...string) Gauge {
	return s.registry.GetOrRegister(s.scopedName(name...), NewGauge).(Gauge)
}

func (s *defaultStatsReceiver) Latency(name ...string) Latency {
	// metrics.Registry can't cast a factory return value, so no lazy instantiation here.
	return s.registry.GetOrRegister(s.scopedName(name...), NewLatency().Precision(s.precision)).(Latency)
}

func (s *defaultStatsReceiver) Remove(name ...string) {
	s.registry.Unregister(s.scopedName(name...))
}

func (s *defaultStatsReceiver) Render(pretty bool) []byte {
	reg := s.registry
	if s.latchCh != nil {
		resultCh := make(chan StatsRegistry)
		s.latchCh <- resultCh
		reg = <-resultCh
	}

	var err error
	var bytes []byte
	if mp, ok := reg.(MarshalerPretty); ok && pretty {
		bytes, err = mp.MarshalJSONPretty()
	} else {
		bytes, err = json.Marshal(reg)
	}
	if err != nil {
		panic("StatsRegistry bug, cannot be marshaled")
	}
	return bytes
}

func (s *defaultStatsReceiver) scoped(scope ...string) []string {
	out := make([]string, 0, len(s.scope)+len(scope))
	out = append(out, s.scope...)
	for _, e := range scope {
		out = append(out, strings.Replace(e, "/", "_SLASH_", -1))
	}
	return out
}

func (s *defaultStatsReceiver) scopedName(scope ...string) string {
	return strings.Join(s.scoped(scope...), "/")
}

// NilStatsReceiver ignores all stats operations.
func NilStatsReceiver(scope ...string) StatsReceiver {
	return &nilStatsReceiver{}
}

type nilStatsReceiver struct{}

func (s *nilStatsReceiver) Scope(scope ...string) StatsReceiver             { return s }
func (s *nilStatsReceiver) Precision(precision time.Duration) StatsReceiver { return s }
func (s *nilStatsReceiver) Counter(name ...string) Counter {
	return &metricCounter{&metrics.NilCounter{}}
}
func (s *nilStatsReceiver) Gauge(name ...string) Gauge {
	return &metricGauge{&metrics.NilGauge{}}
}
func (s *nilStatsReceiver) Latency(name ...string) Latency { return &nilLatency{} }
func (s *nilStatsReceiver) Remove(name ...string)          {}
func (s *nilStatsReceiver) Render(pretty bool) []byte      { return []byte{} }

// Counter
type Counter interface {
	Capture() Counter
	Clear()
	Count() int64
	Inc(int64)
	Update(int64)
}
type metricCounter struct{ metrics.Counter }

func (m *metricCounter) Capture() Counter { return &metricCounter{m.Snapshot()} }
func (m *metricCounter) Update(i int64)   { m.Inc(i - m.Count()) }
func newMetricCounter() Counter           { return &metricCounter{metrics.NewCounter()} }

// Gauge
type Gauge interface {
	Capture() Gauge
	Update(int64)
	Value() int64
}
type metricGauge struct{ metrics.Gauge }

func (m *metricGauge) Capture() Gauge { return &metricGauge{m.Snapshot()} }
func newMetricGauge() Gauge           { return &metricGauge{metrics.NewGauge()} }

// HistogramView is the read side of a Latency.
type HistogramView interface {
	Mean() float64
	Count() int64
	Max() int64
	Min() int64
	Sum() int64
	Percentiles(ps []float64) []float64
}

// Latency. Backed by a go-metrics histogram of nanoseconds.
type Latency interface {
	Capture() Latency
	Time() Latency //returns self.
	Stop()
	GetPrecision() time.Duration
	Precision(time.Duration) Latency //returns self.
}
type metricLatency struct {
	metrics.Histogram
	start     time.Time
	precision time.Duration
}

func (l *metricLatency) Time() Latency { l.start = Time.Now(); return l }
func (l *metricLatency) Stop()         { l.Update(Time.Since(l.start).Nanoseconds()) }
func (l *metricLatency) Capture() Latency {
	return &metricLatency{l.Histogram.Snapshot(), l.start, l.precision}
}
func (l *metricLatency) GetPrecision() time.Duration { return l.precision }
func (l *metricLatency) Precision(p time.Duration) Latency {
	if p < 1 {
		p = 1
	}
	l.precision = p
	return l
}
func newLatency() Latency {
	return &metricLatency{Histogram: metrics.NewHistogram(metrics.NewUniformSample(1000)), precision: time.Nanosecond}
}

type nilLatency struct{}

func (l *nilLatency) Time() Latency                   { return l }
func (l *nilLatency) Stop()                           {}
func (l *nilLatency) Capture() Latency                { return l }
func (l *nilLatency) GetPrecision() time.Duration     { return 0 }
func (l *nilLatency) Precision(time.Duration) Latency { return l }

//
// Twitter/Finagle style metrics
//
type finagleStatsRegistry struct {
	metrics.Registry
}

func NewFinagleStatsRegistry() StatsRegistry {
	return &finagleStatsRegistry{metrics.NewRegistry()}
}

type jsonMap map[string]interface{}

func (r *finagleStatsRegistry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.MarshalAll())
}

func (r *finagleStatsRegistry) MarshalJSONPretty() ([]byte, error) {
	return json.MarshalIndent(r.MarshalAll(), "", "  ")
}

// MarshalAll flattens the registry: counters and gauges by name, latencies as
// name.avg, name.count, name.max, name.min, name.sum and percentiles.
func (r *finagleStatsRegistry) MarshalAll() jsonMap {
	data := make(jsonMap)
	r.Each(func(name string, i interface{}) {
		switch stat := i.(type) {
		case Counter:
			data[name] = stat.Count()
		case Gauge:
			data[name] = stat.Value()
		case Latency:
			l := stat.Capture()
			marshalHistogram(data, name, l.(HistogramView), l.GetPrecision())
		default:
			log.Info("Unrecognized marshal instrument: ", name, i)
		}
	})
	return data
}

func marshalHistogram(data jsonMap, name string, hist HistogramView, precision time.Duration) {
	f64p := float64(precision)
	i64p := int64(precision)
	data[name+".avg"] = hist.Mean() / f64p
	data[name+".count"] = hist.Count()
	data[name+".max"] = hist.Max() / i64p
	data[name+".min"] = hist.Min() / i64p
	data[name+".sum"] = hist.Sum() / i64p

	pctls := hist.Percentiles(defaultPercentiles)
	for i, pctl := range pctls {
		data[name+"."+defaultPercentileLabels[i]] = pctl / f64p
	}
}

var defaultPercentiles = []float64{0.5, 0.9, 0.99}
var defaultPercentileLabels = []string{"p50", "p90", "p99"}
