package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, grid.DefaultAxes(), cfg.Grid)
	assert.Len(t, grid.Generate(cfg.Grid), 288)
	assert.Equal(t, 10, cfg.Dispatch.Workers)
	assert.Equal(t, "make", cfg.Tool.Command)
	assert.Equal(t, "sdx_workspace", cfg.Workspace.Root)
	assert.Equal(t, 128, cfg.Workspace.MaxPortBW)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoadFromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
grid:
  disparities:
    - {range: 64, parallel: 16}
  cost_functions: [0, 1]
workspace:
  template_root: /src/fp-stereo
  root: /results/sdx_workspace
tool:
  sysroot: /opt/zcu102/sysroot
  timeout: 2h
dispatch:
  workers: 4
log:
  level: debug
  format: json
`)))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, []grid.DisparityPair{{Range: 64, Parallel: 16}}, cfg.Grid.Disparities)
	assert.Equal(t, []int{0, 1}, cfg.Grid.CostFunctions)
	assert.Equal(t, grid.DefaultPenaltyTable(), cfg.Grid.Penalties)
	assert.Len(t, grid.Generate(cfg.Grid), 24)
	assert.Equal(t, "/src/fp-stereo", cfg.Workspace.TemplateRoot)
	assert.Equal(t, "/results/sdx_workspace", cfg.Workspace.Root)
	assert.Len(t, cfg.Workspace.SourceFiles, 6)
	assert.Equal(t, "/opt/zcu102/sysroot", cfg.Tool.Sysroot)
	assert.Equal(t, 2*time.Hour, cfg.Tool.Timeout)
	assert.Equal(t, 4, cfg.Dispatch.Workers)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SGMDSE_DISPATCH_WORKERS", "3")
	t.Setenv("SGMDSE_GRID_HEIGHT", "720")
	t.Setenv("SYSROOT", "/opt/sysroot")

	v := viper.New()
	require.NoError(t, BindEnv(v))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Dispatch.Workers)
	assert.Equal(t, 720, cfg.Grid.Height)
	assert.Equal(t, "/opt/sysroot", cfg.Tool.Sysroot)

	t.Run("prefixed sysroot wins", func(t *testing.T) {
		t.Setenv("SGMDSE_TOOL_SYSROOT", "/opt/other")
		v := viper.New()
		require.NoError(t, BindEnv(v))
		cfg, err := LoadFrom(v)
		require.NoError(t, err)
		assert.Equal(t, "/opt/other", cfg.Tool.Sysroot)
	})
}

func TestLoadLogLevelFlag(t *testing.T) {
	v := viper.New()
	v.Set("log.level", "warn")
	v.Set("log-level", "debug")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"zero workers", "dispatch.workers", 0},
		{"unknown log level", "log.level", "loud"},
		{"unknown log format", "log.format", "xml"},
		{"command not allowed", "tool.command", "bash"},
		{"bad env", "tool.env", []string{"A=$(x)"}},
		{"negative timeout", "tool.timeout", "-1s"},
		{"traversal in template root", "workspace.template_root", "../../etc"},
		{"missing penalties", "grid.penalties", []grid.PenaltyEntry{}},
		{"undecodable workers", "dispatch.workers", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)

			_, err := LoadFrom(v)
			require.Error(t, err)
			assert.True(t, dseerrors.IsConfigError(err))
		})
	}
}

func TestValidateConfigWithDetails(t *testing.T) {
	t.Run("defaults only warn about the sysroot", func(t *testing.T) {
		result := ValidateConfigWithDetails(Default())
		assert.True(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "tool.sysroot", result.Warnings[0].Field)
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := Default()
		cfg.Dispatch.Workers = 0
		cfg.Log.Format = "xml"
		cfg.Grid.PathCounts = []int{4, 8}

		result := ValidateConfigWithDetails(cfg)
		assert.False(t, result.Valid)
		assert.Len(t, result.Errors, 2)
		assert.True(t, result.HasWarnings())
		assert.Contains(t, result.String(), "dispatch.workers")
		assert.Contains(t, result.String(), "grid.path_counts")
	})

	t.Run("idle workers warn", func(t *testing.T) {
		cfg := Default()
		cfg.Tool.Sysroot = "/opt/sysroot"
		cfg.Dispatch.Workers = 500

		result := ValidateConfigWithDetails(cfg)
		assert.True(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "dispatch.workers", result.Warnings[0].Field)
	})
}

func TestWriteRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := Default()
	cfg.Tool.Timeout = 90 * time.Minute
	cfg.Dispatch.Workers = 6
	require.NoError(t, Write(fs, "/.sgmdse.yml", cfg))

	data, err := afero.ReadFile(fs, "/.sgmdse.yml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# sgmdse configuration"))

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(string(data))))

	loaded, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestExecOptions(t *testing.T) {
	tc := ToolConfig{Command: "make", Sysroot: "/s", Timeout: time.Minute, Env: []string{"A=1"}}
	opts := tc.ExecOptions()
	assert.Equal(t, "make", opts.Command)
	assert.Equal(t, "/s", opts.Sysroot)
	assert.Equal(t, time.Minute, opts.Timeout)
	assert.Equal(t, []string{"A=1"}, opts.Env)
}
