package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type listDevicesCmd struct{}

func (l *listDevicesCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "list_devices",
		Short: "List the devices the server schedules",
		Args:  cobra.NoArgs,
	}
}

func (l *listDevicesCmd) Run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	devices, err := cl.Admin.ListDevices()
	if err != nil {
		return errors.Wrap(err, "error listing devices")
	}
	for _, d := range devices {
		fmt.Fprintln(cmd.OutOrStdout(), d)
	}
	return nil
}

type getTunablesCmd struct {
	printAsJSON bool
}

func (g *getTunablesCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "get_tunables DEVICE",
		Short: "Print every tunable of a device",
		Args:  cobra.ExactArgs(1),
	}
	r.Flags().BoolVar(&g.printAsJSON, "json", false, "Print the tunables as JSON")
	return r
}

func (g *getTunablesCmd) Run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	log.Info("Getting tunables ", args)
	tunables, err := cl.Admin.GetTunables(args[0])
	if err != nil {
		return errors.Wrapf(err, "error getting tunables of %s", args[0])
	}
	if g.printAsJSON {
		asJSON, err := json.Marshal(tunables)
		if err != nil {
			return errors.Wrap(err, "error converting tunables to JSON")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", asJSON)
		return nil
	}
	names := make([]string, 0, len(tunables))
	for name := range tunables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", name, tunables[name])
	}
	return nil
}

type getTunableCmd struct{}

func (g *getTunableCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "get_tunable DEVICE TUNABLE",
		Short: "Print one tunable of a device",
		Args:  cobra.ExactArgs(2),
	}
}

func (g *getTunableCmd) Run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	v, err := cl.Admin.GetTunable(args[0], args[1])
	if err != nil {
		return errors.Wrapf(err, "error getting %s of %s", args[1], args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

type setTunableCmd struct{}

func (s *setTunableCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "set_tunable [flags] DEVICE TUNABLE VALUE",
		Short: "Set a tunable; prints the value actually stored after clamping",
		Args:  cobra.ExactArgs(3),
	}
	// VALUE may be negative ("-5"); flags must come before DEVICE.
	r.Flags().SetInterspersed(false)
	return r
}

func (s *setTunableCmd) Run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	log.Infof("Setting %s/%s to %s", args[0], args[1], args[2])
	v, err := cl.Admin.SetTunable(args[0], args[1], args[2])
	if err != nil {
		return errors.Wrapf(err, "error setting %s of %s", args[1], args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}
