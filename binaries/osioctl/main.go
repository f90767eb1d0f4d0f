package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/client/cli"
	osioerrors "github.com/fshh520/osio-iosched/common/errors"
	"github.com/fshh520/osio-iosched/common/log/hooks"
)

// A command-line client for the osiosched admin endpoints.
func main() {
	log.AddHook(hooks.NewContextHook())
	if err := cli.NewCLIClient().Exec(); err != nil {
		log.Error("error running osioctl ", err)
		os.Exit(int(osioerrors.ExitCodeOf(err)))
	}
}
