package client

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fshh520/osio-iosched/common/endpoints"
	"github.com/fshh520/osio-iosched/elevator"
	"github.com/fshh520/osio-iosched/iosched"
)

func setupServer() (*httptest.Server, *elevator.Registry) {
	registry := elevator.NewRegistry(elevator.DefaultMaxMergeSectors, nil)
	registry.Attach("sdb", iosched.DefaultTunables())
	registry.Attach("sda", iosched.DefaultTunables())
	handler := endpoints.NewIOSchedHandler(registry, nil, nil)
	return httptest.NewServer(endpoints.NewTwitterServer("", nil, handler.Routes()).Handler()), registry
}

func TestAdminClient(t *testing.T) {
	server, registry := setupServer()
	defer server.Close()
	c := NewCustomAdminClient(server.URL+"/", http.DefaultClient)

	devices, err := c.ListDevices()
	require.NoError(t, err)
	assert.Equal(t, []string{"sda", "sdb"}, devices)

	tunables, err := c.GetTunables("sda")
	require.NoError(t, err)
	assert.Equal(t, iosched.DefaultTunables().Map(), tunables)

	v, err := c.SetTunable("sda", iosched.ReadBatchLimitName, "99999")
	require.NoError(t, err)
	assert.Equal(t, iosched.MaxTunable, v)

	v, err = c.GetTunable("sda", iosched.ReadBatchLimitName)
	require.NoError(t, err)
	assert.Equal(t, iosched.MaxTunable, v)

	sda, _ := registry.Get("sda")
	assert.Equal(t, iosched.MaxTunable, sda.Tunables().ReadBatchLimit)
}

func TestAdminClientAdmitRequests(t *testing.T) {
	server, registry := setupServer()
	defer server.Close()
	c := NewCustomAdminClient(server.URL, http.DefaultClient)

	admitted, err := c.AdmitRequests("sda", "WS 0 8\nWS 8 8\n")
	require.NoError(t, err)
	require.Len(t, admitted, 2)
	assert.Equal(t, admitted[0].ID, admitted[1].Into)
	sda, _ := registry.Get("sda")
	assert.Equal(t, 1, sda.Pending(iosched.ClassSyncWrite))

	_, err = c.AdmitRequests("sda", "D\n")
	assert.Error(t, err)
	_, err = c.AdmitRequests("sdz", "R 0 8\n")
	assert.Error(t, err)
}

func TestAdminClientErrors(t *testing.T) {
	server, _ := setupServer()
	defer server.Close()
	c := NewAdminClient(server.Listener.Addr().String())

	_, err := c.GetTunable("sdz", iosched.ReadBatchLimitName)
	assert.Error(t, err)
	_, err = c.SetTunable("sda", "fifo_batch", "1")
	assert.Error(t, err)
	_, err = c.GetTunables("sdz")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	v, err := parseValue([]byte("12\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, v)
	_, err = parseValue([]byte("twelve"))
	assert.Error(t, err)
}
