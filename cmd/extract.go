package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/binrts/binrts/internal/config"
	"github.com/binrts/binrts/internal/extractor"
	"github.com/binrts/binrts/internal/resolver"
)

var extractCmd = &cobra.Command{
	Use:   "extract <module> [module...]",
	Short: "Pre-extract (offset, file, line) records from modules into .binaryrts files",
	RunE: wrap(func(conf *config.Config, cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errInvalidArgs
		}

		symbolsOnly, err := cmd.Flags().GetBool("symbols")
		if err != nil {
			return err
		}
		pattern, err := cmd.Flags().GetString("regex")
		if err != nil {
			return err
		}

		mode := extractor.All
		if symbolsOnly {
			mode = extractor.SymbolsOnly
		}

		var sourceRegex *regexp.Regexp
		if pattern != "" {
			sourceRegex, err = regexp.Compile(pattern)
			if err != nil {
				return err
			}
		}

		e := extractor.New(extractor.Options{Mode: mode, SourceRegex: sourceRegex}, resolver.NewELFBackend())
		for _, modulePath := range args {
			out, err := e.Extract(modulePath)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStderr(), "skipping %s: %v\n", modulePath, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", modulePath, out)
		}
		return nil
	}),
}

func init() {
	RootCmd.AddCommand(extractCmd)
	extractCmd.Flags().Bool("symbols", false, "extract only symbol-start lines instead of every source line")
	extractCmd.Flags().String("regex", "", "only extract lines whose source file matches this regex")
}
