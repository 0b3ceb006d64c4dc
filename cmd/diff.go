package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/binrts/binrts/internal/config"
	"github.com/binrts/binrts/internal/covset"
)

var diffCmd = &cobra.Command{
	Use:   "diff <left.log> <right.log>",
	Short: "Compare the BB offset sets of two dump files, module by module",
	RunE: wrap(func(conf *config.Config, cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return errInvalidArgs
		}

		left, err := covset.LoadDumpFile(args[0])
		if err != nil {
			return err
		}
		right, err := covset.LoadDumpFile(args[1])
		if err != nil {
			return err
		}

		table := defaultTable(cmd.OutOrStdout())
		table.SetHeader([]string{"Module", "Only left", "Only right", "Shared"})
		for _, d := range covset.Diff(left, right) {
			table.Append([]string{
				d.Module,
				strconv.Itoa(len(d.OnlyLeft)),
				strconv.Itoa(len(d.OnlyRight)),
				strconv.Itoa(len(d.Shared)),
			})
		}
		table.Render()
		return nil
	}),
}

func init() {
	RootCmd.AddCommand(diffCmd)
}
