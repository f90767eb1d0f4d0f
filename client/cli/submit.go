package cli

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type submitCmd struct{}

func (s *submitCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "submit DEVICE [TRACE]",
		Short: "Queue the adds and merges of a trace file (or stdin) on a device",
		Long: "Queue the adds and merges of a trace file (or stdin) on a device.\n" +
			"Prints one line per operation: the trace line, the request ID and, when it was\n" +
			"merged, the ID of the request that carries it.",
		Args: cobra.RangeArgs(1, 2),
	}
}

func (s *submitCmd) Run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 2 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return errors.Wrap(err, "couldn't open trace")
		}
		defer f.Close()
		in = f
	}
	trace, err := ioutil.ReadAll(in)
	if err != nil {
		return errors.Wrap(err, "couldn't read trace")
	}
	log.Infof("Submitting %d bytes of trace to %s", len(trace), args[0])
	admitted, err := cl.Admin.AdmitRequests(args[0], string(trace))
	if err != nil {
		return errors.Wrapf(err, "error submitting to %s", args[0])
	}
	for _, a := range admitted {
		if a.Into != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s into %s\n", a.Line, a.ID, a.Into)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", a.Line, a.ID)
		}
	}
	return nil
}
