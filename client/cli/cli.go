package cli

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fshh520/osio-iosched/client"
	osioerrors "github.com/fshh520/osio-iosched/common/errors"
	"github.com/fshh520/osio-iosched/config/schedconfig"
)

// CLIClient runs osioctl commands against one server.
type CLIClient struct {
	RootCmd  *cobra.Command
	Addr     string
	LogLevel string
	Admin    *client.AdminClient
}

// Cmd is one osioctl subcommand.
type Cmd interface {
	RegisterFlags() *cobra.Command
	Run(cl *CLIClient, cmd *cobra.Command, args []string) error
}

func NewCLIClient() *CLIClient {
	c := &CLIClient{}
	c.RootCmd = &cobra.Command{
		Use:               "osioctl",
		Short:             "osioctl reads and sets iosched tunables of a running osiosched and queues requests on it",
		PersistentPreRunE: c.Init,
		Run:               func(*cobra.Command, []string) {},
		SilenceUsage:      true,
	}
	c.RootCmd.PersistentFlags().StringVar(&c.Addr, "addr", schedconfig.DefaultAdminAddr, "osiosched admin address")
	c.RootCmd.PersistentFlags().StringVar(&c.LogLevel, "log_level", "info", "Log everything at this level and above (error|info|debug)")

	c.addCmd(&listDevicesCmd{})
	c.addCmd(&getTunablesCmd{})
	c.addCmd(&getTunableCmd{})
	c.addCmd(&setTunableCmd{})
	c.addCmd(&submitCmd{})
	return c
}

func (c *CLIClient) Exec() error {
	return c.RootCmd.Execute()
}

// Can only be called from cobra command run or hook
func (c *CLIClient) Init(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Error(err)
		return err
	}
	log.SetLevel(level)
	if c.Admin == nil {
		c.Admin = client.NewAdminClient(c.Addr)
	}
	return nil
}

func (c *CLIClient) addCmd(cmd Cmd) {
	cobraCmd := cmd.RegisterFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		if err := cmd.Run(c, innerCmd, args); err != nil {
			return osioerrors.NewError(err, osioerrors.UnavailableExitCode)
		}
		return nil
	}
	c.RootCmd.AddCommand(cobraCmd)
}
