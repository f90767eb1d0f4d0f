package elevator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/fshh520/osio-iosched/common/stats"
	"github.com/fshh520/osio-iosched/iosched"
)

const (
	DefaultIdleMaxWait     = 50 * time.Millisecond
	DefaultIdleInitialWait = time.Millisecond
)

// DriverConfig paces a Driver.
// MaxIOPS - submissions per second, 0 for no limit
// Burst - submissions allowed back to back when MaxIOPS is set
// IdleMaxWait - longest sleep between polls of an idle device
type DriverConfig struct {
	MaxIOPS     int
	Burst       int
	IdleMaxWait time.Duration
}

// Driver moves requests from an Elevator to a Transport.
type Driver struct {
	elev      *Elevator
	transport Transport
	config    DriverConfig
	limiter   *rate.Limiter
	stat      stats.StatsReceiver
}

func NewDriver(elev *Elevator, transport Transport, config DriverConfig, stat stats.StatsReceiver) *Driver {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	if config.IdleMaxWait <= 0 {
		config.IdleMaxWait = DefaultIdleMaxWait
	}
	if config.Burst < 1 {
		config.Burst = 1
	}
	limit := rate.Inf
	if config.MaxIOPS > 0 {
		limit = rate.Limit(config.MaxIOPS)
	}
	return &Driver{
		elev:      elev,
		transport: transport,
		config:    config,
		limiter:   rate.NewLimiter(limit, config.Burst),
		stat:      stat.Scope(elev.Name()),
	}
}

func (d *Driver) newIdleBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultIdleInitialWait
	if b.InitialInterval > d.config.IdleMaxWait {
		b.InitialInterval = d.config.IdleMaxWait
	}
	b.MaxInterval = d.config.IdleMaxWait
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run submits requests until ctx is done. While the elevator is empty it sleeps with
// exponential backoff, waking early when a request is added.
func (d *Driver) Run(ctx context.Context) error {
	log.Infof("%s: driver started (%+v)", d.elev.Name(), d.config)
	idle := d.newIdleBackOff()
	for {
		if ctx.Err() != nil {
			return d.stopped(ctx)
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return d.stopped(ctx)
		}
		req, ok := d.elev.Dispatch()
		if !ok {
			d.stat.Counter(stats.DriverIdleWaitCounter).Inc(1)
			wait := idle.NextBackOff()
			if wait == backoff.Stop {
				wait = d.config.IdleMaxWait
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return d.stopped(ctx)
			case <-d.elev.Wake():
				timer.Stop()
				idle.Reset()
			case <-timer.C:
			}
			continue
		}
		idle.Reset()
		d.submit(ctx, req)
	}
}

func (d *Driver) stopped(ctx context.Context) error {
	log.Infof("%s: driver stopped: %v", d.elev.Name(), ctx.Err())
	if ctx.Err() == context.Canceled {
		return nil
	}
	return ctx.Err()
}

// Flush submits everything still queued, without pacing, and returns the number of
// requests that failed.
func (d *Driver) Flush(ctx context.Context) int {
	failed := 0
	for _, req := range d.elev.Drain() {
		if !d.submit(ctx, req) {
			failed++
		}
	}
	return failed
}

func (d *Driver) submit(ctx context.Context, req *iosched.Request) bool {
	d.stat.Counter(stats.DriverSubmitCounter).Inc(1)
	lat := d.stat.Latency(stats.DriverSubmitLatency_ms).Time()
	err := d.transport.Submit(ctx, req)
	lat.Stop()
	if err != nil {
		d.stat.Counter(stats.DriverSubmitErrCounter).Inc(1)
		log.Errorf("%s: submit failed: %v\n%s", d.elev.Name(), err, spew.Sdump(req))
		return false
	}
	return true
}
