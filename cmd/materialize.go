package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
	"github.com/conneroisu/sgmdse/internal/logging"
	"github.com/conneroisu/sgmdse/internal/synth"
	"github.com/conneroisu/sgmdse/internal/workspace"
)

var materializeCmd = &cobra.Command{
	Use:     "materialize " + strings.ToUpper(strings.Join(grid.ArgNames[:], " ")),
	Aliases: []string{"m"},
	Short:   "Prepare and build a single configuration",
	Long: `Create the workspace of one configuration from thirteen integers, rewrite
its parameter and architecture headers and run the build tool in it.

This is the per-configuration entry point a sweep worker performs for
each of its configurations. Malformed arguments exit with status 2.

Examples:
  sgmdse materialize 374 1242 2 7 128 16 4 1 2 5 3 80 3200
  sgmdse materialize --prepare-only 374 1242 2 7 128 16 4 1 2 5 3 80 3200`,
	RunE: runMaterialize,
}

var materializePrepareOnly bool

func init() {
	rootCmd.AddCommand(materializeCmd)

	materializeCmd.Flags().BoolVar(&materializePrepareOnly, "prepare-only", false, "Create the workspace without running the build tool")
	materializeCmd.Flags().String("template-root", "", "Accelerator template directory")
	materializeCmd.Flags().String("root", "", "Directory the workspace is created in")

	materializeCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	c, err := grid.ParseArgs(args)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	cfg, err := loadConfig(cmd, changedBindings(cmd, map[string]string{
		"template-root": "workspace.template_root",
		"root":          "workspace.root",
	}))
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	materializer := workspace.NewMaterializer(appFs, cfg.Workspace, logger)
	if err := materializer.Check(); err != nil {
		return err
	}

	paths, err := materializer.Prepare(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Workspace ready: %s\n", paths.Root)
	if materializePrepareOnly {
		return nil
	}

	runner, err := newRunner(cfg.Tool.ExecOptions())
	if err != nil {
		return err
	}

	perf := logging.StartOperation(logger.With("key", c.Key()), "materialize")
	result := runner.Run(ctx, paths.Build, synth.MakeArgs(c, cfg.Workspace.BuildFile))
	fmt.Fprint(out, result.Output)

	if !result.Success() {
		err := result.Err
		if err == nil {
			err = dseerrors.NewToolError(dseerrors.ErrCodeToolFailed,
				fmt.Sprintf("build exited with status %d", result.ExitCode), nil)
		}
		perf.EndWithError(ctx, err, "exit_code", result.ExitCode)
		return &ExitError{Code: 1, Err: err}
	}
	perf.End(ctx, "exit_code", result.ExitCode)
	fmt.Fprintf(out, "Build of %s succeeded in %s\n", c.Key(), result.Duration)
	return nil
}
