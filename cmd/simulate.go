package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/binrts/binrts/internal/config"
	"github.com/binrts/binrts/internal/coverage"
	"github.com/binrts/binrts/internal/host"
	"github.com/binrts/binrts/internal/listener"
	"github.com/binrts/binrts/internal/moduletracker"
)

// simulateCmd drives CoverageEngine end to end against an in-memory
// host.Fake instead of a live DBI process, the way the teacher exercises
// its own tracer protocol with a simulator rather than a traced target.
// It's meant for smoke-testing a log directory layout and dump-id
// sequence without needing an instrumented binary.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive the coverage engine through a one-suite, one-case test run against a fake host",
	RunE: wrap(func(conf *config.Config, cmd *cobra.Command, args []string) error {
		logDir, err := cmd.Flags().GetString("logdir")
		if err != nil {
			return err
		}
		if logDir == "" {
			return errInvalidArgs
		}
		countMode, err := cmd.Flags().GetBool("count")
		if err != nil {
			return err
		}

		fake := host.NewFake()
		engine := coverage.New(fake)
		if err := engine.Init(coverage.Options{LogDir: logDir, RuntimeDump: countMode}); err != nil {
			return err
		}

		engine.OnModuleLoad(moduletracker.Descriptor{Name: "app", Path: "/path/app", Start: 0x1000, End: 0x2000})
		entry, err := engine.OnBBEmit(0x1000, 4)
		if err != nil {
			return err
		}
		engine.OnBBExecute(entry)

		l := listener.New(fake.Annotate)
		l.TestProgramStart()
		l.TestSuiteStart("FooSuite")
		l.TestStart("Case1")
		l.TestEnd("PASSED")
		l.TestSuiteEnd("PASSED")
		l.TestProgramEnd()

		if err := engine.Exit(fmt.Sprintf("%s/final.log", logDir)); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "simulated run written to %s\n", logDir)
		return nil
	}),
}

func init() {
	RootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("logdir", "", "directory to write simulated dump files into")
	simulateCmd.Flags().Bool("count", false, "use counting mode instead of snapshot mode")
}
