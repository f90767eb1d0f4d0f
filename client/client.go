// Package client talks to the iosched admin endpoints of an osiosched server.
package client

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/sim"
)

const DefaultHttpTries = 5

// Client is the subset of *http.Client (and *pester.Client) used here.
type Client interface {
	Do(req *http.Request) (resp *http.Response, err error)
}

func MakePesterClient() *pester.Client {
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = DefaultHttpTries
	client.LogHook = func(e pester.ErrEntry) {
		log.Errorf("Retrying after failed attempt: %+v", e)
	}
	return client
}

type AdminClient struct {
	rootURI string
	client  Client
}

// NewAdminClient makes a retrying client for the server at addr (host:port or a URL).
func NewAdminClient(addr string) *AdminClient {
	return NewCustomAdminClient(addr, MakePesterClient())
}

func NewCustomAdminClient(addr string, client Client) *AdminClient {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &AdminClient{rootURI: strings.TrimSuffix(addr, "/") + "/iosched", client: client}
}

// ListDevices returns the names of the attached devices.
func (c *AdminClient) ListDevices() ([]string, error) {
	var devices []string
	if err := c.getJSON(c.rootURI, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetTunables returns every tunable of a device by name.
func (c *AdminClient) GetTunables(device string) (map[string]int, error) {
	tunables := map[string]int{}
	if err := c.getJSON(c.rootURI+"/"+device, &tunables); err != nil {
		return nil, err
	}
	return tunables, nil
}

func (c *AdminClient) GetTunable(device, name string) (int, error) {
	body, err := c.do("GET", c.rootURI+"/"+device+"/"+name, "")
	if err != nil {
		return 0, err
	}
	return parseValue(body)
}

// SetTunable sends value as is; the server parses and clamps it and the stored value is
// returned.
func (c *AdminClient) SetTunable(device, name, value string) (int, error) {
	body, err := c.do("PUT", c.rootURI+"/"+device+"/"+name, value)
	if err != nil {
		return 0, err
	}
	return parseValue(body)
}

// AdmitRequests posts a trace of adds and merges to a device and returns where each
// operation ended up.
func (c *AdminClient) AdmitRequests(device, trace string) ([]sim.Admission, error) {
	uri := c.rootURI + "/" + device + "/requests"
	body, err := c.do("POST", uri, trace)
	if err != nil {
		return nil, err
	}
	var admitted []sim.Admission
	if err := json.Unmarshal(body, &admitted); err != nil {
		return nil, errors.Wrapf(err, "couldn't decode response from %s", uri)
	}
	return admitted, nil
}

func parseValue(body []byte) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected tunable value %q", body)
	}
	return v, nil
}

func (c *AdminClient) getJSON(uri string, v interface{}) error {
	body, err := c.do("GET", uri, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(err, "couldn't decode response from %s", uri)
	}
	return nil
}

func (c *AdminClient) do(method, uri, body string) ([]byte, error) {
	log.Debugf("%s %s", method, uri)
	req, err := http.NewRequest(method, uri, strings.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "bad request %s %s", method, uri)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s failed", method, uri)
	}
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read response from %s", uri)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s %s: %s: %s", method, uri, resp.Status, strings.TrimSpace(string(data)))
	}
	return data, nil
}
