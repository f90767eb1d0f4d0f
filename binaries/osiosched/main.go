package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	osioerrors "github.com/fshh520/osio-iosched/common/errors"
	"github.com/fshh520/osio-iosched/common/log/hooks"
)

var logLevel string

func main() {
	log.AddHook(hooks.NewContextHook())

	root := &cobra.Command{
		Use:   "osiosched",
		Short: "osiosched runs the read-preferring, batched iosched elevator for a set of devices",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log_level", "info", "Log everything at this level and above (error|info|debug)")
	root.AddCommand(serveCmd(), simCmd(), defaultsCmd())

	if err := root.Execute(); err != nil {
		log.Error("error running osiosched ", err)
		os.Exit(int(osioerrors.ExitCodeOf(err)))
	}
}
