package endpoints

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/common/stats"
)

// NewTwitterServer serves /health and /admin/metrics.json plus the given handlers,
// keyed by path pattern.
func NewTwitterServer(addr string, stats stats.StatsReceiver, handlers map[string]http.Handler) *TwitterServer {
	return &TwitterServer{
		Addr:     addr,
		Stats:    stats,
		Handlers: handlers,
	}
}

type TwitterServer struct {
	Addr     string
	Stats    stats.StatsReceiver
	Handlers map[string]http.Handler
}

// Handler builds the server's mux.
func (s *TwitterServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", helpHandler)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/admin/metrics.json", s.statsHandler)
	for pattern, h := range s.Handlers {
		mux.Handle(pattern, h)
	}
	return mux
}

// Serve blocks until the listener fails.
func (s *TwitterServer) Serve() error {
	log.Infof("Serving http & stats on %s", s.Addr)
	return http.ListenAndServe(s.Addr, s.Handler())
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Common paths: '/health', '/admin/metrics.json', '/iosched', '/iosched/{DEVICE}', '/iosched/{DEVICE}/{TUNABLE}'", 501)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ok")
}

func (s *TwitterServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	const contentTypeHdr = "Content-Type"
	const contentTypeVal = "application/json; charset=utf-8"
	w.Header().Set(contentTypeHdr, contentTypeVal)

	pretty := r.URL.Query().Get("pretty") == "true"
	str := s.Stats.Render(pretty)
	if _, err := io.Copy(w, bytes.NewBuffer(str)); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
}

type StatScope string

// MakeStatsReceiver returns a latched finagle receiver, the one the server renders.
func MakeStatsReceiver(scope StatScope) (stats.StatsReceiver, func()) {
	s, cancel := stats.NewCustomStatsReceiver(
		stats.NewFinagleStatsRegistry,
		15*time.Second)
	return s.Scope(string(scope)).Precision(time.Millisecond), cancel
}
