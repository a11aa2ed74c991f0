package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sgmdse/internal/config"
)

var cfgFile string

// configErr holds the error from reading a config file that exists or was
// named explicitly.
var configErr error

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sgmdse",
	Short: "Design-space exploration driver for the SGM stereo accelerator",
	Long: `sgmdse enumerates accelerator configurations, gives each one its own
workspace with rewritten #define headers, and runs the hardware build for
every configuration on a fixed pool of workers.

Quick Start:
  sgmdse init                     Write a .sgmdse.yml with the production design space
  sgmdse plan                     Show the configurations and their worker assignment
  sgmdse sweep                    Materialize and build every configuration
  sgmdse status                   Show the outcome of the last sweep
  sgmdse materialize H W ...      Build a single configuration

Command Aliases:
  sweep (s), plan (p), status (st), materialize (m), watch (w)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sgmdse.yml, can also use SGMDSE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig points the global Viper at the config file and enables
// environment overrides.
//
// Config file priority (highest to lowest):
//  1. --config flag
//  2. SGMDSE_CONFIG_FILE environment variable
//  3. .sgmdse.yml in the current directory
//
// Only a missing default file falls back to defaults. A named file that
// cannot be read or parsed is kept in configErr and returned when a command
// loads the configuration.
func initConfig() {
	configErr = nil
	explicit := ""
	if cfgFile != "" {
		explicit = cfgFile
	} else if envConfigFile := os.Getenv(config.ConfigFileEnv); envConfigFile != "" {
		explicit = envConfigFile
	}

	if explicit != "" {
		viper.SetConfigFile(explicit)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sgmdse")
	}

	if err := config.BindEnv(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: failed to bind environment:", err)
	}

	err := viper.ReadInConfig()
	if err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		return
	}
	var notFound viper.ConfigFileNotFoundError
	if explicit == "" && errors.As(err, &notFound) {
		return
	}
	configErr = fmt.Errorf("failed to read config file %s: %w", viper.ConfigFileUsed(), err)
}
