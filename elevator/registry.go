package elevator

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/common/stats"
	"github.com/fshh520/osio-iosched/iosched"
)

// Registry tracks the elevators of attached devices.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]*Elevator
	maxMerge uint32
	stat     stats.StatsReceiver
}

func NewRegistry(maxMerge uint32, stat stats.StatsReceiver) *Registry {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Registry{devices: map[string]*Elevator{}, maxMerge: maxMerge, stat: stat}
}

// Attach creates an elevator for name with the given (clamped) tunables.
func (r *Registry) Attach(name string, tunables iosched.Tunables) (*Elevator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[name]; ok {
		return nil, ErrDeviceExists
	}
	e := NewElevator(name, tunables, r.maxMerge, r.stat)
	r.devices[name] = e
	log.Infof("Attached device %s with tunables %+v", name, e.Tunables())
	return e, nil
}

func (r *Registry) Get(name string) (*Elevator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.devices[name]
	if !ok {
		return nil, ErrUnknownDevice
	}
	return e, nil
}

// Detach closes and forgets name. A device with queued requests stays attached.
func (r *Registry) Detach(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.devices[name]
	if !ok {
		return ErrUnknownDevice
	}
	if err := e.Close(); err != nil {
		log.Warnf("Refusing to detach %s: %v (%d queued)", name, err, e.Len())
		return err
	}
	delete(r.devices, name)
	log.Infof("Detached device %s", name)
	return nil
}

// Devices returns the attached device names, sorted.
func (r *Registry) Devices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the current tunables of every attached device.
func (r *Registry) Snapshot() map[string]iosched.Tunables {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]iosched.Tunables, len(r.devices))
	for name, e := range r.devices {
		out[name] = e.Tunables()
	}
	return out
}
