package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	osioerrors "github.com/fshh520/osio-iosched/common/errors"
	"github.com/fshh520/osio-iosched/common/stats"
	"github.com/fshh520/osio-iosched/config/schedconfig"
	"github.com/fshh520/osio-iosched/sim"
)

func simCmd() *cobra.Command {
	var configFlag string
	var printStats bool
	cmd := &cobra.Command{
		Use:   "sim [TRACE]",
		Short: "Replay a request trace (stdin when no file is given) and print the dispatch order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(configFlag)
			if err != nil {
				return err
			}

			var in io.Reader = os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return osioerrors.NewError(errors.Wrap(err, "couldn't open trace"), osioerrors.TraceDataExitCode)
				}
				defer f.Close()
				in = f
			}

			stat, _ := stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry, 0)
			stat = stat.Precision(time.Microsecond)
			res, err := sim.Replay(context.Background(), in, config.Defaults.Clamped(), config.MaxMergeSectors, stat)
			if err != nil {
				return osioerrors.NewError(err, osioerrors.TraceDataExitCode)
			}
			res.Format(cmd.OutOrStdout())
			if printStats {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", stat.Render(true))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configFlag, "config", "", "JSON config (only Defaults and MaxMergeSectors are used), or a .json file name")
	cmd.Flags().BoolVar(&printStats, "stats", false, "Print the stats registry after the replay")
	return cmd
}

func defaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := schedconfig.DefaultConfig().JSON()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", text)
			return nil
		},
	}
}
