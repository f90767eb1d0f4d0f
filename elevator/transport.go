package elevator

//go:generate mockgen -source=transport.go -package=elevator -destination=transport_mock.go

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/iosched"
)

// Transport carries dispatched requests to the device.
type Transport interface {
	Submit(ctx context.Context, req *iosched.Request) error
}

// NullTransport completes every request immediately.
type NullTransport struct{}

func (NullTransport) Submit(ctx context.Context, req *iosched.Request) error {
	return nil
}

// LogTransport logs one line per request.
type LogTransport struct {
	Device string
}

func (t LogTransport) Submit(ctx context.Context, req *iosched.Request) error {
	log.WithFields(log.Fields{
		"device":  t.Device,
		"class":   req.Class().String(),
		"sector":  req.Sector,
		"sectors": req.Sectors,
		"merged":  len(req.Merged),
	}).Info("submit")
	return nil
}

// RecordingTransport keeps submitted requests in order.
type RecordingTransport struct {
	mu   sync.Mutex
	reqs []*iosched.Request
}

func (t *RecordingTransport) Submit(ctx context.Context, req *iosched.Request) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reqs = append(t.reqs, req)
	return nil
}

// Requests returns a copy of everything submitted so far.
func (t *RecordingTransport) Requests() []*iosched.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*iosched.Request(nil), t.reqs...)
}

func (t *RecordingTransport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.reqs)
}
