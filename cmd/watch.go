package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sgmdse/internal/config"
	"github.com/conneroisu/sgmdse/internal/dispatch"
	"github.com/conneroisu/sgmdse/internal/logging"
	"github.com/conneroisu/sgmdse/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Re-run the sweep whenever the accelerator templates change",
	Long: `Watch the template directory and re-run the sweep after changes to
headers, sources or the build file. Changes arriving while a sweep runs
are coalesced into a single follow-up sweep; two sweeps never overlap.

Examples:
  sgmdse watch                    # Wait for the first change
  sgmdse watch --initial          # Sweep once right away, then watch
  sgmdse watch -w 4               # Use four workers per sweep`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchInitial bool
	watchVerbose bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().IntP("workers", "w", dispatch.DefaultWorkers, "Number of parallel workers")
	watchCmd.Flags().String("template-root", "", "Accelerator template directory")
	watchCmd.Flags().String("root", "", "Directory the workspaces are created in")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "Run a sweep before waiting for changes")
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "List changed files and every configuration per worker")

	AddFlagValidation(watchCmd, "workers", ValidateWorkers)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, changedBindings(cmd, sweepBindings))
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	fileWatcher, err := newTemplateWatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer fileWatcher.Stop()

	out := cmd.OutOrStdout()

	// one pending sweep at most; further changes fold into it
	trigger := make(chan struct{}, 1)
	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		if watchVerbose {
			fmt.Fprintf(out, "File changes detected:\n")
			for _, event := range events {
				fmt.Fprintf(out, "   %s: %s\n", event.Type, event.Path)
			}
		} else {
			fmt.Fprintf(out, "%d template file(s) changed\n", len(events))
		}
		select {
		case trigger <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	if watchInitial {
		trigger <- struct{}{}
	}

	fmt.Fprintf(out, "Watching %s for changes... (Press Ctrl+C to stop)\n", cfg.Workspace.TemplateRoot)
	return watchLoop(ctx, trigger, func(ctx context.Context) {
		// executeSweep waits for every worker before returning
		report, err := executeSweep(ctx, cfg, logger, out, watchVerbose)
		if err != nil {
			logger.Error(ctx, err, "Sweep could not run")
			return
		}
		if !report.OK() {
			logger.Warn(ctx, nil, "Sweep finished with failures", "failed", report.Failed, "skipped", report.Skipped)
		}
	})
}

// watchLoop runs sweep once per trigger until ctx is done. Sweeps run on
// this goroutine, one after the other.
func watchLoop(ctx context.Context, trigger <-chan struct{}, sweep func(context.Context)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			sweep(ctx)
		}
	}
}

// newTemplateWatcher watches the template tree for source, header and
// build file changes, ignoring the workspace root and editor leftovers.
func newTemplateWatcher(cfg *config.Config, logger logging.Logger) (*watcher.FileWatcher, error) {
	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fileWatcher.AddFilter(watcher.NoEditorFilter)
	fileWatcher.AddFilter(watcher.NoGitFilter)
	fileWatcher.AddFilter(watcher.AnyFilter(
		watcher.ExtensionFilter(cfg.Watch.Extensions...),
		watcher.BuildFileFilter(cfg.Workspace.BuildFile),
	))

	templateRoot, err := filepath.Abs(cfg.Workspace.TemplateRoot)
	if err != nil {
		fileWatcher.Stop()
		return nil, err
	}
	workspaceRoot, err := filepath.Abs(cfg.Workspace.Root)
	if err != nil {
		fileWatcher.Stop()
		return nil, err
	}
	if err := fileWatcher.AddRecursive(templateRoot, workspaceRoot); err != nil {
		fileWatcher.Stop()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Workspace.TemplateRoot, err)
	}
	return fileWatcher, nil
}
