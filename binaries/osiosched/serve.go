package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fshh520/osio-iosched/common/endpoints"
	osioerrors "github.com/fshh520/osio-iosched/common/errors"
	"github.com/fshh520/osio-iosched/config/schedconfig"
	"github.com/fshh520/osio-iosched/elevator"
	"github.com/fshh520/osio-iosched/iosched"
)

func serveCmd() *cobra.Command {
	var configFlag string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Attach the configured devices, run their drivers and serve the admin and request admission endpoints",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			config, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			if err := serve(config); err != nil {
				return osioerrors.NewError(err, osioerrors.ServeFailureExitCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configFlag, "config", "", "JSON config, or the name of a .json file holding it")
	return cmd
}

func loadConfig(configFlag string) (*schedconfig.Config, error) {
	text, err := schedconfig.GetConfigText(configFlag)
	if err != nil {
		return nil, osioerrors.NewError(err, osioerrors.ConfigExitCode)
	}
	config, err := schedconfig.Parse(text)
	if err != nil {
		return nil, osioerrors.NewError(err, osioerrors.ConfigExitCode)
	}
	return config, nil
}

func makeTransport(config *schedconfig.Config, device string) elevator.Transport {
	if config.Transport == "null" {
		return elevator.NullTransport{}
	}
	return elevator.LogTransport{Device: device}
}

func serve(config *schedconfig.Config) error {
	log.Info("Starting osiosched with ", config)
	stat, cancelStats := endpoints.MakeStatsReceiver("osiosched")
	defer cancelStats()

	persistor := schedconfig.NewPersistor(config.SettingsFile)
	tunables := map[string]iosched.Tunables{}
	for _, name := range config.DeviceNames() {
		tunables[name] = config.DeviceTunables(name)
	}
	tunables = schedconfig.RestoreTunables(persistor, tunables)

	registry := elevator.NewRegistry(config.MaxMergeSectors, stat)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	var drivers []*elevator.Driver
	for _, name := range config.DeviceNames() {
		e, err := registry.Attach(name, tunables[name])
		if err != nil {
			return errors.Wrapf(err, "couldn't attach %s", name)
		}
		d := elevator.NewDriver(e, makeTransport(config, name), config.Driver.Create(), stat)
		drivers = append(drivers, d)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Run(ctx); err != nil {
				log.Errorf("driver exited: %v", err)
			}
		}()
	}

	handler := endpoints.NewIOSchedHandler(registry, persistor, stat.Scope("admin"))
	server := endpoints.NewTwitterServer(config.AdminAddr, stat, handler.Routes())
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve() }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	var err error
	select {
	case sig := <-sigs:
		log.Infof("Got %v, shutting down", sig)
	case err = <-serveErr:
		log.Errorf("Admin server failed: %v", err)
	}

	cancel()
	wg.Wait()
	for _, d := range drivers {
		if failed := d.Flush(context.Background()); failed > 0 {
			log.Errorf("%d requests failed during shutdown flush", failed)
		}
	}
	for _, name := range registry.Devices() {
		if derr := registry.Detach(name); derr != nil {
			log.Errorf("couldn't detach %s: %v", name, derr)
		}
	}
	return err
}
