package schedconfig

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"regexp"
	"sort"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/elevator"
	"github.com/fshh520/osio-iosched/iosched"
)

const (
	DefaultAdminAddr    = "localhost:9091"
	DefaultTransport    = "log"
	DefaultSettingsFile = ""
)

// Transport names accepted in Config.Transport.
var Transports = []string{"null", "log"}

// TunableOverrides are per-device tunables; nil fields inherit from Config.Defaults.
type TunableOverrides struct {
	ReadBatchLimit             *int `json:",omitempty"`
	SyncWriteBatchLimit        *int `json:",omitempty"`
	AsyncWriteBatchLimit       *int `json:",omitempty"`
	SyncWriteStarvedThreshold  *int `json:",omitempty"`
	AsyncWriteStarvedThreshold *int `json:",omitempty"`
}

// Apply returns base with the set overrides written over it.
func (o TunableOverrides) Apply(base iosched.Tunables) iosched.Tunables {
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	set(&base.ReadBatchLimit, o.ReadBatchLimit)
	set(&base.SyncWriteBatchLimit, o.SyncWriteBatchLimit)
	set(&base.AsyncWriteBatchLimit, o.AsyncWriteBatchLimit)
	set(&base.SyncWriteStarvedThreshold, o.SyncWriteStarvedThreshold)
	set(&base.AsyncWriteStarvedThreshold, o.AsyncWriteStarvedThreshold)
	return base
}

// DriverConfig is the JSON form of elevator.DriverConfig.
type DriverConfig struct {
	MaxIOPS       int
	Burst         int
	IdleMaxWaitMs int
}

func (c DriverConfig) Create() elevator.DriverConfig {
	return elevator.DriverConfig{
		MaxIOPS:     c.MaxIOPS,
		Burst:       c.Burst,
		IdleMaxWait: time.Duration(c.IdleMaxWaitMs) * time.Millisecond,
	}
}

// Config is the complete server configuration.
type Config struct {
	Defaults        iosched.Tunables
	Devices         map[string]TunableOverrides
	Driver          DriverConfig
	Transport       string
	MaxMergeSectors uint32
	AdminAddr       string
	SettingsFile    string
}

func DefaultConfig() *Config {
	return &Config{
		Defaults: iosched.DefaultTunables(),
		Devices:  map[string]TunableOverrides{},
		Driver: DriverConfig{
			Burst:         1,
			IdleMaxWaitMs: int(elevator.DefaultIdleMaxWait / time.Millisecond),
		},
		Transport:       DefaultTransport,
		MaxMergeSectors: elevator.DefaultMaxMergeSectors,
		AdminAddr:       DefaultAdminAddr,
		SettingsFile:    DefaultSettingsFile,
	}
}

// Parse overlays text on DefaultConfig. Empty text yields the defaults.
func Parse(text []byte) (*Config, error) {
	c := DefaultConfig()
	if len(text) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(text, c); err != nil {
		return nil, errors.Wrap(err, "couldn't parse iosched config")
	}
	if c.Devices == nil {
		c.Devices = map[string]TunableOverrides{}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	for _, t := range Transports {
		if c.Transport == t {
			return nil
		}
	}
	return errors.Errorf("invalid Transport %q, must be one of %v", c.Transport, Transports)
}

var fileNameRe = regexp.MustCompile(`^[^{\s][^{]*\.json$`)

// GetConfigText resolves a --config flag value: something that looks like a .json file
// name is read from disk, anything else is taken as literal JSON.
func GetConfigText(configFlag string) ([]byte, error) {
	if fileNameRe.MatchString(configFlag) {
		log.Infof("Reading config file %s", configFlag)
		text, err := ioutil.ReadFile(configFlag)
		if err != nil {
			return nil, errors.Wrapf(err, "error loading config file %s", configFlag)
		}
		return text, nil
	}
	return []byte(configFlag), nil
}

// DeviceTunables resolves the clamped tunables for a device.
func (c *Config) DeviceTunables(name string) iosched.Tunables {
	return c.Devices[name].Apply(c.Defaults).Clamped()
}

// DeviceNames returns the configured devices, sorted.
func (c *Config) DeviceNames() []string {
	names := make([]string, 0, len(c.Devices))
	for name := range c.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) String() string {
	return fmt.Sprintf("Config: Defaults:%+v, Devices:%v, Driver:%+v, Transport:%s, MaxMergeSectors:%d, AdminAddr:%s, SettingsFile:%s",
		c.Defaults, c.DeviceNames(), c.Driver, c.Transport, c.MaxMergeSectors, c.AdminAddr, c.SettingsFile)
}

// JSON renders the config, indented.
func (c *Config) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
