// Package config loads sweep configuration with Viper from a YAML file,
// SGMDSE_ environment variables and command line flags.
//
// Every value has a default equal to the production design space, so an
// empty configuration reproduces the reference sweep.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sgmdse/internal/dispatch"
	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
	"github.com/conneroisu/sgmdse/internal/resultlog"
	"github.com/conneroisu/sgmdse/internal/synth"
	"github.com/conneroisu/sgmdse/internal/workspace"
)

// EnvPrefix prefixes every configuration environment variable.
const EnvPrefix = "SGMDSE"

// ConfigFileEnv names a config file to load instead of the default.
const ConfigFileEnv = "SGMDSE_CONFIG_FILE"

// DefaultFileName is the config file searched for in the working directory.
const DefaultFileName = ".sgmdse.yml"

type Config struct {
	Grid      grid.Axes        `mapstructure:"grid" yaml:"grid"`
	Workspace workspace.Layout `mapstructure:"workspace" yaml:"workspace"`
	Tool      ToolConfig       `mapstructure:"tool" yaml:"tool"`
	Dispatch  DispatchConfig   `mapstructure:"dispatch" yaml:"dispatch"`
	Log       LogConfig        `mapstructure:"log" yaml:"log"`
	Watch     WatchConfig      `mapstructure:"watch" yaml:"watch"`
}

type ToolConfig struct {
	Command         string        `mapstructure:"command" yaml:"command"`
	Sysroot         string        `mapstructure:"sysroot" yaml:"sysroot"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Env             []string      `mapstructure:"env" yaml:"env"`
	AllowedCommands []string      `mapstructure:"allowed_commands" yaml:"allowed_commands"`
}

type DispatchConfig struct {
	Workers    int    `mapstructure:"workers" yaml:"workers"`
	OutputTail int    `mapstructure:"output_tail" yaml:"output_tail"`
	ResultLog  string `mapstructure:"result_log" yaml:"result_log"`
	Report     string `mapstructure:"report" yaml:"report"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir"`
}

type WatchConfig struct {
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Extensions []string      `mapstructure:"extensions" yaml:"extensions"`
}

// Default returns the configuration an empty config file produces.
func Default() *Config {
	return &Config{
		Grid:      grid.DefaultAxes(),
		Workspace: workspace.DefaultLayout(),
		Tool: ToolConfig{
			Command:         synth.DefaultCommand,
			Env:             []string{},
			AllowedCommands: append([]string(nil), synth.DefaultAllowedCommands...),
		},
		Dispatch: DispatchConfig{
			Workers:    dispatch.DefaultWorkers,
			OutputTail: dispatch.DefaultOutputTail,
			ResultLog:  resultlog.DefaultLogFile,
			Report:     resultlog.DefaultReportFile,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Watch: WatchConfig{
			Debounce:   500 * time.Millisecond,
			Extensions: []string{".h", ".hpp", ".cpp", ".c"},
		},
	}
}

// SetDefaults registers every default with v so environment variables can
// override keys that no config file mentions.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("grid.height", d.Grid.Height)
	v.SetDefault("grid.width", d.Grid.Width)
	v.SetDefault("grid.cost_functions", d.Grid.CostFunctions)
	v.SetDefault("grid.window_sizes", d.Grid.WindowSizes)
	v.SetDefault("grid.path_counts", d.Grid.PathCounts)
	v.SetDefault("grid.supported_path_count", d.Grid.SupportedPathCount)
	v.SetDefault("grid.disparities", d.Grid.Disparities)
	v.SetDefault("grid.uniqueness", d.Grid.Uniqueness)
	v.SetDefault("grid.lr_checks", d.Grid.LRChecks)
	v.SetDefault("grid.filter_win", d.Grid.FilterWin)
	v.SetDefault("grid.shd_window", d.Grid.ShdWindow)
	v.SetDefault("grid.penalties", d.Grid.Penalties)

	v.SetDefault("workspace.template_root", d.Workspace.TemplateRoot)
	v.SetDefault("workspace.root", d.Workspace.Root)
	v.SetDefault("workspace.source_files", d.Workspace.SourceFiles)
	v.SetDefault("workspace.library_files", d.Workspace.LibraryFiles)
	v.SetDefault("workspace.library_dir", d.Workspace.LibraryDir)
	v.SetDefault("workspace.build_file", d.Workspace.BuildFile)
	v.SetDefault("workspace.params_file", d.Workspace.ParamsFile)
	v.SetDefault("workspace.arch_file", d.Workspace.ArchFile)
	v.SetDefault("workspace.max_port_bw", d.Workspace.MaxPortBW)

	v.SetDefault("tool.command", d.Tool.Command)
	v.SetDefault("tool.sysroot", d.Tool.Sysroot)
	v.SetDefault("tool.timeout", d.Tool.Timeout)
	v.SetDefault("tool.env", []string{})
	v.SetDefault("tool.allowed_commands", d.Tool.AllowedCommands)

	v.SetDefault("dispatch.workers", d.Dispatch.Workers)
	v.SetDefault("dispatch.output_tail", d.Dispatch.OutputTail)
	v.SetDefault("dispatch.result_log", d.Dispatch.ResultLog)
	v.SetDefault("dispatch.report", d.Dispatch.Report)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.dir", d.Log.Dir)

	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.extensions", d.Watch.Extensions)
}

// BindEnv enables SGMDSE_<SECTION>_<KEY> overrides and lets the plain
// SYSROOT variable of the cross-compilation flow fill tool.sysroot.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v.BindEnv("tool.sysroot", EnvPrefix+"_TOOL_SYSROOT", synth.SysrootEnv)
}

// Load decodes the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes v, applies defaults for values v does not know and
// validates the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Decode is LoadFrom without validation.
func Decode(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, dseerrors.WrapConfig(err, dseerrors.ErrCodeInvalidConfig, "failed to decode configuration")
	}

	// a log level given with --log-level wins over the config file
	if v.IsSet("log-level") {
		config.Log.Level = v.GetString("log-level")
	}
	return &config, nil
}

// Write stores config as YAML at path.
func Write(fs afero.Fs, path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return dseerrors.WrapConfig(err, dseerrors.ErrCodeInvalidConfig, "failed to encode configuration")
	}
	header := fmt.Sprintf("# sgmdse configuration. Override any key with %s_<SECTION>_<KEY>.\n", EnvPrefix)
	if err := afero.WriteFile(fs, path, append([]byte(header), data...), 0o644); err != nil {
		return dseerrors.WrapIO(err, dseerrors.ErrCodeInvalidConfig, "failed to write configuration").WithPath(path)
	}
	return nil
}

// ExecOptions converts the tool section for synth.NewExecRunner.
func (c ToolConfig) ExecOptions() synth.Options {
	return synth.Options{
		Command:         c.Command,
		Sysroot:         c.Sysroot,
		Timeout:         c.Timeout,
		Env:             c.Env,
		AllowedCommands: c.AllowedCommands,
	}
}
