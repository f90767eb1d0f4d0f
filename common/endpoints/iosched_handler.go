package endpoints

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/common/stats"
	"github.com/fshh520/osio-iosched/config/schedconfig"
	"github.com/fshh520/osio-iosched/elevator"
	"github.com/fshh520/osio-iosched/sim"
)

// IOSchedPath is where IOSchedHandler is mounted.
const IOSchedPath = "/iosched"

// RequestsPath is the last path element of the admission route.
const RequestsPath = "requests"

const (
	// maxBodyBytes bounds a tunable write; the value is a single integer.
	maxBodyBytes  = 64
	maxTraceBytes = 1 << 20
)

// IOSchedHandler exposes the tunables of every attached device and admits requests to them:
//
//	GET  /iosched                    device names, json
//	GET  /iosched/{device}           all tunables of a device, json
//	GET  /iosched/{device}/{tunable} one tunable, decimal text
//	PUT  /iosched/{device}/{tunable} set from a decimal text body; replies with the stored value
//	POST /iosched/{device}/requests  queue the adds and merges of a trace body; replies with
//	                                 the admissions, json
//
// POST to a tunable is accepted as PUT. Writes are persisted after they are applied.
type IOSchedHandler struct {
	registry  *elevator.Registry
	persistor schedconfig.Persistor
	stat      stats.StatsReceiver

	// Held across set and persist so the file never lags behind a later write.
	persistMu sync.Mutex
}

func NewIOSchedHandler(registry *elevator.Registry, persistor schedconfig.Persistor, stat stats.StatsReceiver) *IOSchedHandler {
	if persistor == nil {
		persistor = schedconfig.NewPersistor("")
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &IOSchedHandler{registry: registry, persistor: persistor, stat: stat}
}

// Routes returns the handler keyed by the patterns it needs, for NewTwitterServer.
func (h *IOSchedHandler) Routes() map[string]http.Handler {
	return map[string]http.Handler{
		IOSchedPath:       h,
		IOSchedPath + "/": h,
	}
}

func (h *IOSchedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, IOSchedPath), "/")
	var parts []string
	if rest != "" {
		parts = strings.Split(rest, "/")
	}

	switch len(parts) {
	case 0:
		if !h.allow(w, r, http.MethodGet) {
			return
		}
		h.writeJSON(w, h.registry.Devices())
	case 1:
		if !h.allow(w, r, http.MethodGet) {
			return
		}
		e, ok := h.device(w, parts[0])
		if !ok {
			return
		}
		h.writeJSON(w, e.Tunables().Map())
	case 2:
		e, ok := h.device(w, parts[0])
		if !ok {
			return
		}
		if parts[1] == RequestsPath {
			if h.allow(w, r, http.MethodPost) {
				h.admit(w, r, e)
			}
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.getTunable(w, e, parts[1])
		case http.MethodPut, http.MethodPost:
			h.setTunable(w, r, e, parts[1])
		default:
			h.badRequest(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		}
	default:
		h.badRequest(w, http.StatusNotFound, "no such path %s", r.URL.Path)
	}
}

func (h *IOSchedHandler) getTunable(w http.ResponseWriter, e *elevator.Elevator, name string) {
	v, err := e.Tunable(name)
	if err != nil {
		h.badRequest(w, http.StatusNotFound, "%s: %v", name, err)
		return
	}
	h.stat.Counter(stats.AdminTunableGetCounter).Inc(1)
	fmt.Fprintf(w, "%d\n", v)
}

func (h *IOSchedHandler) setTunable(w http.ResponseWriter, r *http.Request, e *elevator.Elevator, name string) {
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.badRequest(w, http.StatusRequestEntityTooLarge, "%s: %v", name, err)
		return
	}
	h.persistMu.Lock()
	v, err := e.SetTunable(name, string(body))
	if err != nil {
		h.persistMu.Unlock()
		h.badRequest(w, http.StatusNotFound, "%s: %v", name, err)
		return
	}
	h.stat.Counter(stats.AdminTunableSetCounter).Inc(1)
	log.Infof("Admin set %s/%s=%d", e.Name(), name, v)

	if err := h.persistor.PersistSettings(&schedconfig.PersistedSettings{Devices: h.registry.Snapshot()}); err != nil {
		// the value is applied either way; it just won't survive a restart
		log.Errorf("Settings were not persisted: %v", err)
	}
	h.persistMu.Unlock()
	fmt.Fprintf(w, "%d\n", v)
}

func (h *IOSchedHandler) admit(w http.ResponseWriter, r *http.Request, e *elevator.Elevator) {
	ops, err := sim.Parse(http.MaxBytesReader(w, r.Body, maxTraceBytes))
	if err != nil {
		h.badRequest(w, http.StatusBadRequest, "%s: %v", e.Name(), err)
		return
	}
	admitted, err := sim.Admit(e, ops)
	h.stat.Counter(stats.AdminAdmittedCounter).Inc(int64(len(admitted)))
	if err != nil {
		h.badRequest(w, http.StatusBadRequest, "%s: admitted %d of %d: %v", e.Name(), len(admitted), len(ops), err)
		return
	}
	log.Debugf("Admitted %d operations to %s", len(admitted), e.Name())
	h.writeJSON(w, admitted)
}

func (h *IOSchedHandler) device(w http.ResponseWriter, name string) (*elevator.Elevator, bool) {
	e, err := h.registry.Get(name)
	if err != nil {
		h.badRequest(w, http.StatusNotFound, "%s: %v", name, err)
		return nil, false
	}
	return e, true
}

func (h *IOSchedHandler) allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		h.badRequest(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return false
	}
	return true
}

func (h *IOSchedHandler) badRequest(w http.ResponseWriter, code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	h.stat.Counter(stats.AdminBadRequestCounter).Inc(1)
	log.Warnf("Rejected admin request: %s", msg)
	http.Error(w, msg, code)
}

func (h *IOSchedHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), 500)
	}
}
