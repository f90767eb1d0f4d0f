package cli

import (
	"bytes"
	"io/ioutil"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fshh520/osio-iosched/common/endpoints"
	"github.com/fshh520/osio-iosched/elevator"
	"github.com/fshh520/osio-iosched/iosched"
)

func run(t *testing.T, addr string, args ...string) (string, error) {
	c := NewCLIClient()
	var out bytes.Buffer
	c.RootCmd.SetOutput(&out)
	c.RootCmd.SetArgs(append([]string{"--addr", addr, "--log_level", "error"}, args...))
	err := c.Exec()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	registry := elevator.NewRegistry(elevator.DefaultMaxMergeSectors, nil)
	registry.Attach("sda", iosched.DefaultTunables())
	handler := endpoints.NewIOSchedHandler(registry, nil, nil)
	server := httptest.NewServer(endpoints.NewTwitterServer("", nil, handler.Routes()).Handler())
	defer server.Close()
	addr := server.Listener.Addr().String()

	out, err := run(t, addr, "list_devices")
	require.NoError(t, err)
	assert.Equal(t, "sda\n", out)

	out, err = run(t, addr, "set_tunable", "sda", "sync-write-starved-threshold", "-5")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	out, err = run(t, addr, "get_tunable", "sda", "sync-write-starved-threshold")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	out, err = run(t, addr, "get_tunables", "sda")
	require.NoError(t, err)
	assert.Equal(t, "async-write-batch-limit: 4\n"+
		"async-write-starved-threshold: 5\n"+
		"read-batch-limit: 8\n"+
		"sync-write-batch-limit: 4\n"+
		"sync-write-starved-threshold: 0\n", out)

	out, err = run(t, addr, "get_tunables", "--json", "sda")
	require.NoError(t, err)
	assert.JSONEq(t, `{"async-write-batch-limit":4,"async-write-starved-threshold":5,"read-batch-limit":8,
		"sync-write-batch-limit":4,"sync-write-starved-threshold":0}`, out)

	_, err = run(t, addr, "get_tunable", "sdz", "read-batch-limit")
	assert.Error(t, err)

	_, err = run(t, addr, "get_tunable", "sda")
	assert.Error(t, err)

	_, err = run(t, addr, "--log_level", "loud", "list_devices")
	assert.Error(t, err)
}

func TestSetNegativeTunable(t *testing.T) {
	registry := elevator.NewRegistry(elevator.DefaultMaxMergeSectors, nil)
	registry.Attach("sda", iosched.DefaultTunables())
	handler := endpoints.NewIOSchedHandler(registry, nil, nil)
	server := httptest.NewServer(endpoints.NewTwitterServer("", nil, handler.Routes()).Handler())
	defer server.Close()
	addr := server.Listener.Addr().String()

	out, err := run(t, addr, "set_tunable", "sda", "read-batch-limit", "-1")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = run(t, addr, "set_tunable", "sda", "async-write-batch-limit", "-65536")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	// flags after DEVICE are taken as positional arguments
	_, err = run(t, addr, "set_tunable", "sda", "read-batch-limit", "4", "--json")
	assert.Error(t, err)
}

func TestSubmit(t *testing.T) {
	registry := elevator.NewRegistry(elevator.DefaultMaxMergeSectors, nil)
	registry.Attach("sda", iosched.DefaultTunables())
	handler := endpoints.NewIOSchedHandler(registry, nil, nil)
	server := httptest.NewServer(endpoints.NewTwitterServer("", nil, handler.Routes()).Handler())
	defer server.Close()
	addr := server.Listener.Addr().String()

	path := filepath.Join(t.TempDir(), "trace")
	require.NoError(t, ioutil.WriteFile(path, []byte("R 0 8\nR 8 8\nW 64 8\n"), 0644))

	out, err := run(t, addr, "submit", "sda", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^1 \S+$`, lines[0])
	assert.Regexp(t, `^2 \S+ into \S+$`, lines[1])
	assert.Equal(t, strings.Fields(lines[0])[1], strings.Fields(lines[1])[3])

	sda, _ := registry.Get("sda")
	assert.Equal(t, 2, sda.Len())

	_, err = run(t, addr, "submit", "sda", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
