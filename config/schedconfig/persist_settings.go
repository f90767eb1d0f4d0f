package schedconfig

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/iosched"
)

// Persistor saves tunables set at runtime so they survive a restart.
type Persistor interface {
	PersistSettings(settings *PersistedSettings) error
	LoadSettings() (*PersistedSettings, error)
}

// PersistedSettings is the persisted form, encoded as json.
type PersistedSettings struct {
	Devices map[string]iosched.Tunables `json:"devices"`
}

// NewPersistor returns a file persistor, or one that does nothing when path is empty.
func NewPersistor(path string) Persistor {
	if path == "" {
		return &nopPersistor{}
	}
	return &FilePersistor{Path: path}
}

// nopPersistor provides nop implementations of persist and load functions
type nopPersistor struct{}

func (p *nopPersistor) PersistSettings(settings *PersistedSettings) error {
	return nil
}

func (p *nopPersistor) LoadSettings() (*PersistedSettings, error) {
	return nil, nil
}

// FilePersistor keeps the settings in a json file, replaced atomically on every write.
type FilePersistor struct {
	Path string
}

func (p *FilePersistor) PersistSettings(settings *PersistedSettings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return errors.Wrap(err, "couldn't encode settings")
	}
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "couldn't create settings dir %s", dir)
	}
	tmp, err := ioutil.TempFile(dir, filepath.Base(p.Path)+".tmp")
	if err != nil {
		return errors.Wrap(err, "couldn't create temp settings file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "couldn't write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "couldn't close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), p.Path); err != nil {
		return errors.Wrapf(err, "couldn't replace %s", p.Path)
	}
	log.Debugf("Persisted settings for %d devices to %s", len(settings.Devices), p.Path)
	return nil
}

// LoadSettings returns nil settings, and no error, when nothing was persisted yet.
func (p *FilePersistor) LoadSettings() (*PersistedSettings, error) {
	data, err := ioutil.ReadFile(p.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read %s", p.Path)
	}
	settings := &PersistedSettings{}
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, errors.Wrapf(err, "couldn't parse %s", p.Path)
	}
	return settings, nil
}

// RestoreTunables merges persisted device tunables over the configured ones. Load
// failures are logged and the configured values used.
func RestoreTunables(p Persistor, configured map[string]iosched.Tunables) map[string]iosched.Tunables {
	settings, err := p.LoadSettings()
	if err != nil {
		log.Errorf("Error loading settings, using configured tunables: %v", err)
		return configured
	}
	if settings == nil {
		log.Info("No persisted settings found, using configured tunables")
		return configured
	}
	for name, t := range settings.Devices {
		if _, ok := configured[name]; !ok {
			log.Infof("Ignoring persisted tunables of unconfigured device %s", name)
			continue
		}
		configured[name] = t.Clamped()
	}
	log.Info("Loaded persisted settings")
	return configured
}
