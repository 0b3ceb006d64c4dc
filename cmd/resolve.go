package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/binrts/binrts/internal/config"
	"github.com/binrts/binrts/internal/resolver"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Rewrite dump files in place, replacing BB offsets with symbols",
	RunE: wrap(func(conf *config.Config, cmd *cobra.Command, args []string) error {
		root, err := cmd.Flags().GetString("root")
		if err != nil {
			return err
		}
		ext, err := cmd.Flags().GetString("ext")
		if err != nil {
			return err
		}
		extracted, err := cmd.Flags().GetBool("extracted")
		if err != nil {
			return err
		}
		debug, err := cmd.Flags().GetBool("debug")
		if err != nil {
			return err
		}
		pattern, err := cmd.Flags().GetString("regex")
		if err != nil {
			return err
		}

		if root == "" {
			return errInvalidArgs
		}
		conf.Options.Root = root
		conf.Options.Ext = ext
		conf.Options.Extracted = extracted
		conf.Options.Debug = debug
		conf.WantSave()

		var sourceRegex *regexp.Regexp
		if pattern != "" {
			sourceRegex, err = regexp.Compile(pattern)
			if err != nil {
				return err
			}
		}

		r := resolver.New(resolver.Options{
			Root:        root,
			Ext:         ext,
			Extracted:   extracted,
			Debug:       debug,
			SourceRegex: sourceRegex,
			CachePath:   filepath.Join(conf.Dir(), "cache.gob"),
		}, resolver.NewELFBackend())

		if err := r.Run(context.Background()); err != nil {
			return err
		}

		queries, hits := r.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "resolved %d queries (%d cache hits) under %s\n", queries, hits, root)
		return nil
	}),
}

func init() {
	RootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().String("root", "", "directory tree of dump files to rewrite")
	resolveCmd.Flags().String("ext", ".log", "dump file extension")
	resolveCmd.Flags().Bool("extracted", false, "resolve from pre-extracted .binaryrts files instead of querying module debug info")
	resolveCmd.Flags().Bool("debug", false, "verbose logging")
	resolveCmd.Flags().String("regex", "", "only keep symbols whose source file matches this regex")
}
