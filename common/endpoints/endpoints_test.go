package endpoints_test

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fshh520/osio-iosched/common/endpoints"
	"github.com/fshh520/osio-iosched/common/stats"
	"github.com/fshh520/osio-iosched/config/schedconfig"
	"github.com/fshh520/osio-iosched/elevator"
	"github.com/fshh520/osio-iosched/iosched"
	"github.com/fshh520/osio-iosched/sim"
)

type fixture struct {
	server    *httptest.Server
	registry  *elevator.Registry
	persistor schedconfig.Persistor
	reg       stats.StatsRegistry
	dir       string
}

func setup(t *testing.T) *fixture {
	dir, err := ioutil.TempDir("", "endpoints")
	require.NoError(t, err)

	reg := stats.NewFinagleStatsRegistry()
	stat, _ := stats.NewCustomStatsReceiver(func() stats.StatsRegistry { return reg }, 0)
	registry := elevator.NewRegistry(elevator.DefaultMaxMergeSectors, stat)
	registry.Attach("sda", iosched.DefaultTunables())
	registry.Attach("sdb", iosched.DefaultTunables())

	persistor := schedconfig.NewPersistor(filepath.Join(dir, "settings.json"))
	handler := endpoints.NewIOSchedHandler(registry, persistor, stat.Scope("admin"))
	ts := endpoints.NewTwitterServer("", stat, handler.Routes())
	return &fixture{
		server:    httptest.NewServer(ts.Handler()),
		registry:  registry,
		persistor: persistor,
		reg:       reg,
		dir:       dir,
	}
}

func (f *fixture) close() {
	f.server.Close()
	os.RemoveAll(f.dir)
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, string) {
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestHealthAndMetrics(t *testing.T) {
	f := setup(t)
	defer f.close()

	code, body := f.do(t, "GET", "/health", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, "ok", body)

	f.do(t, "GET", "/iosched/sda/read-batch-limit", "")
	code, body = f.do(t, "GET", "/admin/metrics.json", "")
	assert.Equal(t, 200, code)
	assert.Contains(t, body, `"admin/tunableGetCounter":1`)

	code, _ = f.do(t, "GET", "/nothing", "")
	assert.Equal(t, 501, code)
}

func TestListAndGet(t *testing.T) {
	f := setup(t)
	defer f.close()

	code, body := f.do(t, "GET", "/iosched", "")
	assert.Equal(t, 200, code)
	assert.JSONEq(t, `["sda","sdb"]`, body)

	code, body = f.do(t, "GET", "/iosched/sda", "")
	assert.Equal(t, 200, code)
	assert.JSONEq(t, `{
		"read-batch-limit": 8,
		"sync-write-batch-limit": 4,
		"async-write-batch-limit": 4,
		"sync-write-starved-threshold": 1,
		"async-write-starved-threshold": 5
	}`, body)

	code, body = f.do(t, "GET", "/iosched/sda/async-write-starved-threshold", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, "5\n", body)
}

func TestSetTunable(t *testing.T) {
	f := setup(t)
	defer f.close()

	code, body := f.do(t, "PUT", "/iosched/sda/read-batch-limit", "16\n")
	assert.Equal(t, 200, code)
	assert.Equal(t, "16\n", body)

	code, body = f.do(t, "POST", "/iosched/sda/sync-write-batch-limit", "0")
	assert.Equal(t, 200, code)
	assert.Equal(t, "1\n", body)

	code, body = f.do(t, "PUT", "/iosched/sda/async-write-batch-limit", "lots")
	assert.Equal(t, 200, code)
	assert.Equal(t, "1\n", body)

	sda, _ := f.registry.Get("sda")
	assert.Equal(t, 16, sda.Tunables().ReadBatchLimit)
	sdb, _ := f.registry.Get("sdb")
	assert.Equal(t, iosched.DefaultTunables(), sdb.Tunables())

	settings, err := f.persistor.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, sda.Tunables(), settings.Devices["sda"])
	assert.Equal(t, sdb.Tunables(), settings.Devices["sdb"])
}

func TestRejectedRequests(t *testing.T) {
	f := setup(t)
	defer f.close()

	tests := []struct {
		method, path, body string
		code               int
	}{
		{"GET", "/iosched/sdz", "", 404},
		{"GET", "/iosched/sdz/read-batch-limit", "", 404},
		{"GET", "/iosched/sda/fifo_batch", "", 404},
		{"PUT", "/iosched/sda/fifo_batch", "3", 404},
		{"DELETE", "/iosched/sda/read-batch-limit", "", 405},
		{"PUT", "/iosched/sda", "3", 405},
		{"PUT", "/iosched", "", 405},
		{"GET", "/iosched/sda/read-batch-limit/extra", "", 404},
		{"PUT", "/iosched/sda/read-batch-limit", strings.Repeat("1", 100), 413},
	}
	for _, test := range tests {
		code, _ := f.do(t, test.method, test.path, test.body)
		assert.Equal(t, test.code, code, "%s %s", test.method, test.path)
	}

	sda, _ := f.registry.Get("sda")
	assert.Equal(t, iosched.DefaultTunables(), sda.Tunables())
	stats.VerifyStats("rejected", f.reg, t, map[string]stats.Rule{
		"admin/badRequestCounter": {Checker: stats.Int64EqTest, Value: len(tests)},
		"admin/tunableSetCounter": {Checker: stats.DoesNotExistTest},
	})
}

func TestAdmitRequests(t *testing.T) {
	f := setup(t)
	defer f.close()

	code, body := f.do(t, "POST", "/iosched/sda/requests", "R 0 8\nR 8 8\nW 100 8\nW 500 8\n")
	require.Equal(t, 200, code, body)
	var admitted []sim.Admission
	require.NoError(t, json.Unmarshal([]byte(body), &admitted))
	require.Len(t, admitted, 4)
	assert.Equal(t, admitted[0].ID, admitted[1].Into)

	// fold the second write into the first by request ID
	code, body = f.do(t, "POST", "/iosched/sda/requests", "M "+admitted[2].ID+" "+admitted[3].ID+"\n")
	require.Equal(t, 200, code, body)
	assert.JSONEq(t, `[{"line":1,"id":"`+admitted[3].ID+`","into":"`+admitted[2].ID+`"}]`, body)

	sda, _ := f.registry.Get("sda")
	assert.Equal(t, 2, sda.Len())
	transport := &elevator.RecordingTransport{}
	driver := elevator.NewDriver(sda, transport, elevator.DriverConfig{}, nil)
	assert.Equal(t, 0, driver.Flush(context.Background()))
	reqs := transport.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, admitted[0].ID, reqs[0].ID)
	assert.Equal(t, uint32(16), reqs[0].Sectors)
	assert.Equal(t, admitted[2].ID, reqs[1].ID)
	assert.Equal(t, uint32(16), reqs[1].Sectors)

	stats.VerifyStats("admitted", f.reg, t, map[string]stats.Rule{
		"admin/admittedCounter": {Checker: stats.Int64EqTest, Value: 5},
	})
}

func TestAdmitRunningDriver(t *testing.T) {
	f := setup(t)
	defer f.close()

	sdb, _ := f.registry.Get("sdb")
	transport := &elevator.RecordingTransport{}
	driver := elevator.NewDriver(sdb, transport, elevator.DriverConfig{IdleMaxWait: time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	code, body := f.do(t, "POST", "/iosched/sdb/requests", "WS 0 8\nR 64 8\n")
	require.Equal(t, 200, code, body)

	deadline := time.Now().Add(5 * time.Second)
	for transport.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, transport.Len())
	assert.Equal(t, 0, sdb.Len())
}

func TestAdmitRejected(t *testing.T) {
	f := setup(t)
	defer f.close()

	tests := []struct {
		method, path, body string
		code               int
	}{
		{"GET", "/iosched/sda/requests", "", 405},
		{"PUT", "/iosched/sda/requests", "R 0 8", 405},
		{"POST", "/iosched/sdz/requests", "R 0 8", 404},
		{"POST", "/iosched/sda/requests", "R 0", 400},
		{"POST", "/iosched/sda/requests", "R 0 8\nD\n", 400},
		{"POST", "/iosched/sda/requests", "R 0 8\nM 1 nosuchid\n", 400},
	}
	for _, test := range tests {
		code, _ := f.do(t, test.method, test.path, test.body)
		assert.Equal(t, test.code, code, "%s %s %q", test.method, test.path, test.body)
	}
	// only the add ahead of the failed merge was queued
	sda, _ := f.registry.Get("sda")
	assert.Equal(t, 1, sda.Len())
}

func TestConcurrentSetsPersistLastValue(t *testing.T) {
	f := setup(t)
	defer f.close()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			f.do(t, "PUT", "/iosched/sda/read-batch-limit", strconv.Itoa(v))
		}(i)
	}
	wg.Wait()

	sda, _ := f.registry.Get("sda")
	settings, err := f.persistor.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, sda.Tunables(), settings.Devices["sda"])
}
