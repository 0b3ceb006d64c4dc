package cmd

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/binrts/binrts/internal/config"
	"github.com/binrts/binrts/internal/errs"
	"github.com/binrts/binrts/internal/logging"
)

var cfgDir string

var errInvalidArgs = errs.ErrInvalidArgs

// RootCmd is the base command when binrts is called without a subcommand.
var RootCmd = &cobra.Command{
	Use:   "binrts",
	Short: "Binary regression test selection coverage pipeline",

	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() int {
	err := RootCmd.Execute()
	switch err {
	case nil:
		return 0
	case errInvalidArgs:
		return 64 // EX_USAGE
	default:
		logging.Errorf("%v", err)
		return 1
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "config dir (default is ./.binrts)")
}

func initConfig() {
	viper.AutomaticEnv()
}

type CobraHandler func(cmd *cobra.Command, args []string) error
type Handler func(conf *config.Config, cmd *cobra.Command, args []string) error

func wrap(fn Handler) CobraHandler {
	return func(cmd *cobra.Command, args []string) error {
		c, err := getConfig()
		if err != nil {
			return err
		}
		if err := fn(c, cmd, args); err != nil {
			return err
		}
		return c.SaveIfWant()
	}
}

func getConfig() (*config.Config, error) {
	c := config.NewConfig(cfgDir)
	if err := c.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

func defaultTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.SetCenterSeparator(" ")
	table.SetRowSeparator("-")
	table.SetColWidth(120)
	return table
}
