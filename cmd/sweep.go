package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sgmdse/internal/config"
	"github.com/conneroisu/sgmdse/internal/dispatch"
	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
	"github.com/conneroisu/sgmdse/internal/logging"
	"github.com/conneroisu/sgmdse/internal/resultlog"
	"github.com/conneroisu/sgmdse/internal/workspace"
)

var sweepCmd = &cobra.Command{
	Use:     "sweep",
	Aliases: []string{"s"},
	Short:   "Materialize and build every configuration of the design space",
	Long: `Generate the configuration set, split it across the worker pool and
build every configuration in its own workspace. Each worker handles its
share strictly in order; a failed configuration never stops its worker.

Outcomes are appended to the result log as they complete and the final
report is written next to it.

Examples:
  sgmdse sweep                    # Sweep the configured design space
  sgmdse sweep -w 4               # Use four workers
  sgmdse sweep --verbose          # List every configuration per worker`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

var sweepVerbose bool

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().IntP("workers", "w", dispatch.DefaultWorkers, "Number of parallel workers")
	sweepCmd.Flags().String("template-root", "", "Accelerator template directory")
	sweepCmd.Flags().String("root", "", "Directory the workspaces are created in")
	sweepCmd.Flags().BoolVarP(&sweepVerbose, "verbose", "v", false, "List every configuration per worker")

	AddFlagValidation(sweepCmd, "workers", ValidateWorkers)
}

// sweepBindings maps flags shared by sweep, plan and watch to config keys.
var sweepBindings = map[string]string{
	"workers":       "dispatch.workers",
	"template-root": "workspace.template_root",
	"root":          "workspace.root",
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, changedBindings(cmd, sweepBindings))
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

	report, err := executeSweep(ctx, cfg, logger, cmd.OutOrStdout(), sweepVerbose)
	if err != nil {
		return err
	}
	if !report.OK() {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d of %d configurations did not succeed",
			report.Failed+report.Skipped, report.Total)}
	}
	return nil
}

// changedBindings keeps only the bindings whose flag was given, so an
// unset flag default never hides a config file or environment value.
func changedBindings(cmd *cobra.Command, bindings map[string]string) map[string]string {
	out := make(map[string]string, len(bindings))
	for flag, key := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			out[flag] = key
		}
	}
	return out
}

// executeSweep runs one complete sweep and returns its report. The error
// is non-nil only when the sweep could not start or its report could not
// be written.
func executeSweep(ctx context.Context, cfg *config.Config, logger logging.Logger, out io.Writer, verbose bool) (dispatch.Report, error) {
	set, err := generateConfigurations(cfg)
	if err != nil {
		return dispatch.Report{}, err
	}

	partitions, err := dispatch.Partition(set, cfg.Dispatch.Workers)
	if err != nil {
		return dispatch.Report{}, err
	}
	printPlan(out, len(set), partitions, verbose)

	materializer := workspace.NewMaterializer(appFs, cfg.Workspace, logger)
	if err := materializer.Check(); err != nil {
		return dispatch.Report{}, err
	}

	runner, err := newRunner(cfg.Tool.ExecOptions())
	if err != nil {
		return dispatch.Report{}, err
	}
	if _, err := runner.LookPath(cfg.Tool.Command); err != nil {
		return dispatch.Report{}, dseerrors.NewToolError(dseerrors.ErrCodeToolNotFound,
			fmt.Sprintf("build tool %q not found", cfg.Tool.Command), err)
	}

	d, err := dispatch.New(materializer, runner, dispatch.Options{
		Workers:    cfg.Dispatch.Workers,
		BuildFile:  cfg.Workspace.BuildFile,
		OutputTail: cfg.Dispatch.OutputTail,
		Logger:     logger,
	})
	if err != nil {
		return dispatch.Report{}, err
	}

	logPath, reportPath := resultPaths(cfg)
	if logPath != "" {
		log, err := resultlog.Open(appFs, logPath)
		if err != nil {
			return dispatch.Report{}, err
		}
		defer log.Close()
		d.OnOutcome(func(o dispatch.Outcome) {
			if err := log.Append(o); err != nil {
				logger.Error(ctx, err, "Failed to append outcome", "key", o.Key)
			}
		})
	}
	d.OnOutcome(progressPrinter(out, len(set)))

	run, err := d.Launch(ctx, set)
	if err != nil {
		return dispatch.Report{}, err
	}
	report := run.Wait()
	if err := run.Err(); err != nil {
		logger.Debug(ctx, "Sweep errors", "errors", len(dseerrors.Errors(err)))
	}

	printReport(out, report, d.Metrics().SuccessRate())

	if reportPath != "" {
		if err := resultlog.WriteReport(appFs, reportPath, report); err != nil {
			return report, err
		}
		fmt.Fprintf(out, "Report written to %s\n", reportPath)
	}
	return report, nil
}

// printPlan prints the configuration count and each worker's subset.
func printPlan(out io.Writer, total int, partitions [][]grid.Configuration, verbose bool) {
	fmt.Fprintf(out, "%d configurations across %d workers\n", total, len(partitions))
	for w, part := range partitions {
		switch {
		case len(part) == 0:
			fmt.Fprintf(out, "  worker %d: idle\n", w)
		case verbose:
			fmt.Fprintf(out, "  worker %d: %d configurations\n", w, len(part))
			for _, c := range part {
				fmt.Fprintf(out, "    %s\n", c.Key())
			}
		default:
			fmt.Fprintf(out, "  worker %d: %d configurations (%s .. %s)\n",
				w, len(part), part[0].Key(), part[len(part)-1].Key())
		}
	}
}

// progressPrinter returns a callback printing one line per finished
// configuration. Workers call it concurrently.
func progressPrinter(out io.Writer, total int) dispatch.OutcomeCallback {
	var (
		mu   sync.Mutex
		done int
	)
	return func(o dispatch.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		done++
		fmt.Fprintf(out, "[%d/%d] %-9s %s (worker %d, %s)\n",
			done, total, o.Status(), o.Key, o.Worker, o.Duration.Round(time.Millisecond))
	}
}

// printReport prints the aggregate report, the failure causes and one line
// per failure. successRate counts finished configurations only.
func printReport(out io.Writer, report dispatch.Report, successRate float64) {
	fmt.Fprintf(out, "Sweep finished in %s: %d configurations, %d succeeded, %d failed, %d skipped (%.1f%% success)\n",
		report.Duration.Round(time.Millisecond), report.Total, report.Succeeded, report.Failed, report.Skipped, successRate)
	if len(report.Failures) == 0 {
		return
	}
	fmt.Fprintf(out, "Failure causes: %s\n", failureCauses(report.Failures))
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  FAILED %s at %s (exit %d): %s\n", f.Key, f.Stage, f.ExitCode, firstLine(f.Error))
	}
}

// failureCauses counts failures by error category, e.g. "12 tool, 4 workspace".
func failureCauses(failures []dispatch.Outcome) string {
	var tool, ws, cfg, other int
	for _, f := range failures {
		switch {
		case dseerrors.IsToolError(f.Err):
			tool++
		case dseerrors.IsIOError(f.Err):
			ws++
		case dseerrors.IsConfigError(f.Err):
			cfg++
		default:
			other++
		}
	}

	var parts []string
	for _, c := range []struct {
		n    int
		name string
	}{{tool, "tool"}, {ws, "workspace"}, {cfg, "config"}, {other, "other"}} {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.name))
		}
	}
	return strings.Join(parts, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
