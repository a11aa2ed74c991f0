package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/sgmdse/internal/config"
	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
	"github.com/conneroisu/sgmdse/internal/logging"
	"github.com/conneroisu/sgmdse/internal/synth"
)

// appFs is the filesystem every command works on.
var appFs afero.Fs = afero.NewOsFs()

// newRunner builds the runner that invokes the build tool.
var newRunner = func(opts synth.Options) (synth.Runner, error) {
	return synth.NewExecRunner(opts)
}

// loadConfig binds the command's flags to their config keys and loads the
// validated configuration.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	if err := SetViperBindings(cmd, bindings); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// generateConfigurations expands the configured grid and rejects sets in
// which two configurations would share a workspace directory.
func generateConfigurations(cfg *config.Config) ([]grid.Configuration, error) {
	set := grid.Generate(cfg.Grid)
	if dups := grid.DuplicateKeys(set); len(dups) > 0 {
		return nil, dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig,
			fmt.Sprintf("configurations share workspace keys: %s", strings.Join(dups, ", ")))
	}
	return set, nil
}

// newLogger builds the console logger and, when log.dir is set, tees it
// into a dated JSON log file. The returned func closes the file.
func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	console := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: out,
	})
	if cfg.Log.Dir == "" {
		return console, func() {}, nil
	}

	fileLogger, err := logging.NewFileLogger(&logging.LoggerConfig{Level: level}, cfg.Log.Dir)
	if err != nil {
		return nil, nil, err
	}
	return logging.NewMultiLogger(console, fileLogger), func() { _ = fileLogger.Close() }, nil
}

// resultPaths resolves the result log and report against the workspace
// root. An empty name disables that file.
func resultPaths(cfg *config.Config) (logPath, reportPath string) {
	resolve := func(name string) string {
		if name == "" || filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(cfg.Workspace.Root, name)
	}
	return resolve(cfg.Dispatch.ResultLog), resolve(cfg.Dispatch.Report)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
