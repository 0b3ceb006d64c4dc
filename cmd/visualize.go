package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/binrts/binrts/internal/config"
	"github.com/binrts/binrts/internal/resolver"
	"github.com/binrts/binrts/internal/visualiser"
)

var visualizeCmd = &cobra.Command{
	Use:   "visualize",
	Short: "Emit an LCOV line-coverage report from a directory of dump files",
	RunE: wrap(func(conf *config.Config, cmd *cobra.Command, args []string) error {
		root, err := cmd.Flags().GetString("root")
		if err != nil {
			return err
		}
		ext, err := cmd.Flags().GetString("ext")
		if err != nil {
			return err
		}
		out, err := cmd.Flags().GetString("out")
		if err != nil {
			return err
		}
		accurate, err := cmd.Flags().GetBool("accurate")
		if err != nil {
			return err
		}
		pattern, err := cmd.Flags().GetString("regex")
		if err != nil {
			return err
		}
		svgOut, err := cmd.Flags().GetString("svg")
		if err != nil {
			return err
		}

		if root == "" {
			return errInvalidArgs
		}
		conf.Options.Root = root
		conf.Options.Accurate = accurate
		conf.WantSave()

		var sourceRegex *regexp.Regexp
		if pattern != "" {
			sourceRegex, err = regexp.Compile(pattern)
			if err != nil {
				return err
			}
		}

		v := visualiser.New(resolver.NewELFBackend(), accurate, sourceRegex)

		var dumpFiles []string
		err = filepath.Walk(root, func(path string, info os.FileInfo, werr error) error {
			if werr != nil {
				return werr
			}
			if !info.IsDir() && filepath.Ext(path) == ext {
				dumpFiles = append(dumpFiles, path)
			}
			return nil
		})
		if err != nil {
			return err
		}

		// Walk dump files concurrently, one goroutine per file, mirroring
		// the resolver's per-file errgroup fan-out: Visualiser's state
		// is mutex-protected, so ProcessBB is safe to call from every
		// file's goroutine at once.
		g := new(errgroup.Group)
		for _, path := range dumpFiles {
			path := path
			g.Go(func() error {
				mods, err := visualiser.LoadDumpFile(path)
				if err != nil {
					// Batch tools continue past per-file failures.
					return nil
				}
				for _, m := range mods {
					for _, offset := range m.Offsets {
						v.ProcessBB(m.Path, offset, 0)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if svgOut != "" {
			sf, err := os.Create(svgOut)
			if err != nil {
				return err
			}
			defer sf.Close()
			if err := v.EmitSVG(sf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote SVG strip to %s\n", svgOut)
		}

		w := os.Stdout
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := v.EmitLCOV(f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote LCOV report to %s\n", out)
			return nil
		}
		return v.EmitLCOV(w)
	}),
}

func init() {
	RootCmd.AddCommand(visualizeCmd)
	visualizeCmd.Flags().String("root", "", "directory tree of dump files to read")
	visualizeCmd.Flags().String("ext", ".log", "dump file extension")
	visualizeCmd.Flags().String("out", "", "write LCOV output to this file instead of stdout")
	visualizeCmd.Flags().Bool("accurate", false, "query the debug backend per offset instead of using the predecessor/successor trick")
	visualizeCmd.Flags().String("regex", "", "only emit records for source files matching this regex")
	visualizeCmd.Flags().String("svg", "", "also write a colored line-coverage strip per file to this path")
}
