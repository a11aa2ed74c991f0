package config

import (
	"fmt"
	"strings"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
	"github.com/conneroisu/sgmdse/internal/logging"
	"github.com/conneroisu/sgmdse/internal/validation"
)

// ValidationError is one configuration problem with hints for fixing it.
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails checks every section and collects errors and
// warnings instead of stopping at the first problem.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{Valid: true}

	validateGridConfig(config.Grid, result)
	validateWorkspaceConfig(config, result)
	validateToolConfig(&config.Tool, result)
	validateDispatchConfig(config, result)
	validateLogConfig(&config.Log, result)
	validateWatchConfig(&config.Watch, result)

	result.Valid = !result.HasErrors()
	return result
}

// validateConfig returns every error of ValidateConfigWithDetails combined.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if !result.HasErrors() {
		return nil
	}

	var errs error
	for i := range result.Errors {
		ve := result.Errors[i]
		errs = dseerrors.Append(errs, dseerrors.WrapConfig(&ve, dseerrors.ErrCodeInvalidConfig, "invalid configuration").
			WithContext("field", ve.Field))
	}
	return errs
}

func validateGridConfig(axes grid.Axes, result *ValidationResult) {
	if err := axes.Validate(); err != nil {
		result.addError("grid", nil, dseerrors.ExtractCause(err).Error(),
			"Every (cost function, window size) pair needs a penalties entry",
			"Each disparity range must be a multiple of its parallelism")
	}

	supported := axes.SupportedPathCount
	if supported == 0 {
		supported = grid.DefaultSupportedPathCount
	}
	for _, n := range axes.PathCounts {
		if n != supported {
			result.addWarning("grid.path_counts", n,
				fmt.Sprintf("path count %d is filtered out; only %d is supported", n, supported),
				"Remove unsupported path counts to keep the plan readable")
		}
	}
}

func validateWorkspaceConfig(config *Config, result *ValidationResult) {
	if err := config.Workspace.Validate(); err != nil {
		result.addError("workspace", nil, dseerrors.ExtractCause(err).Error(),
			"Template file names are relative to workspace.template_root",
			"Avoid parent directory references (..)")
	}
}

func validateToolConfig(config *ToolConfig, result *ValidationResult) {
	allowed := make(map[string]bool, len(config.AllowedCommands))
	for _, c := range config.AllowedCommands {
		allowed[c] = true
	}
	if len(allowed) == 0 {
		result.addError("tool.allowed_commands", config.AllowedCommands, "allowlist cannot be empty",
			"Use [make] for the default build flow")
	} else if err := validation.ValidateCommand(config.Command, allowed); err != nil {
		result.addError("tool.command", config.Command, err.Error(),
			"Add the tool to tool.allowed_commands",
			"Avoid shell metacharacters in the command")
	}

	for _, kv := range config.Env {
		if err := validation.ValidateAssignment(kv); err != nil {
			result.addError("tool.env", kv, err.Error(), "Use NAME=value entries")
		}
	}

	if config.Timeout < 0 {
		result.addError("tool.timeout", config.Timeout, "timeout cannot be negative", "Use 0 for no timeout")
	}

	if config.Sysroot == "" {
		result.addWarning("tool.sysroot", config.Sysroot, "no sysroot configured",
			"Set SYSROOT or tool.sysroot when the flow cross-compiles")
	}
}

func validateDispatchConfig(config *Config, result *ValidationResult) {
	d := config.Dispatch
	if d.Workers < 1 {
		result.addError("dispatch.workers", d.Workers, fmt.Sprintf("worker count must be at least 1, got %d", d.Workers),
			"Each worker runs one synthesis at a time; size the pool to the licenses and cores available")
	} else if n := len(grid.Generate(config.Grid)); n > 0 && d.Workers > n {
		result.addWarning("dispatch.workers", d.Workers,
			fmt.Sprintf("%d workers for %d configurations leaves %d idle", d.Workers, n, d.Workers-n))
	}

	if d.OutputTail < 0 {
		result.addError("dispatch.output_tail", d.OutputTail, "output tail cannot be negative")
	}

	for field, name := range map[string]string{"dispatch.result_log": d.ResultLog, "dispatch.report": d.Report} {
		if name == "" {
			continue
		}
		if err := validation.ValidatePath(name); err != nil {
			result.addError(field, name, err.Error())
		}
	}
}

func validateLogConfig(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(), "Use debug, info, warn or error")
	}
	if config.Format != "text" && config.Format != "json" {
		result.addError("log.format", config.Format, fmt.Sprintf("unknown log format %q", config.Format),
			"Use text or json")
	}
	if config.Dir != "" {
		if err := validation.ValidatePath(config.Dir); err != nil {
			result.addError("log.dir", config.Dir, err.Error())
		}
	}
}

func validateWatchConfig(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.addError("watch.debounce", config.Debounce, "debounce cannot be negative")
	}
	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") {
			result.addWarning("watch.extensions", ext, fmt.Sprintf("extension %q does not start with a dot", ext))
		}
	}
}
