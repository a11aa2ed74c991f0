package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Output formats accepted by --format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatText  = "text"
)

// formatValue is a pflag.Value that only accepts one of a fixed set of
// output formats, so a typo fails during flag parsing.
type formatValue struct {
	value   string
	allowed []string
}

var _ pflag.Value = (*formatValue)(nil)

func newFormatValue(def string, allowed ...string) *formatValue {
	return &formatValue{value: def, allowed: allowed}
}

func (f *formatValue) String() string { return f.value }

func (f *formatValue) Type() string { return "format" }

func (f *formatValue) Set(s string) error {
	if err := ValidateFormat(s, f.allowed); err != nil {
		return err
	}
	f.value = strings.ToLower(s)
	return nil
}

// ValidateFormat accepts s when it is one of allowed, ignoring case.
func ValidateFormat(s string, allowed []string) error {
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return nil
		}
	}
	msg := fmt.Sprintf("invalid format %q, must be one of: %s", s, strings.Join(allowed, ", "))
	if suggestion := closestFormat(s, allowed); suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return fmt.Errorf("%s", msg)
}

// closestFormat returns the allowed format sharing the longest prefix with s.
func closestFormat(s string, allowed []string) string {
	s = strings.ToLower(s)
	best, bestLen := "", 0
	for _, a := range allowed {
		n := 0
		for n < len(s) && n < len(a) && s[n] == a[n] {
			n++
		}
		if n > bestLen {
			best, bestLen = a, n
		}
	}
	return best
}

// AddFormatFlag registers --format/-f restricted to allowed.
func AddFormatFlag(cmd *cobra.Command, def string, allowed ...string) *formatValue {
	value := newFormatValue(def, allowed...)
	cmd.Flags().VarP(value, "format", "f",
		fmt.Sprintf("Output format (%s)", strings.Join(allowed, "|")))
	return value
}

// SetViperBindings binds flags to viper configuration keys. It runs when a
// command executes so commands sharing a flag name do not steal each
// other's binding on the global viper.
func SetViperBindings(cmd *cobra.Command, bindings map[string]string) error {
	for flagName, configKey := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("failed to bind --%s to %s: %w", flagName, configKey, err)
		}
	}
	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateWorkers rejects worker counts below one at flag parse time.
func ValidateWorkers(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid worker count: %s", s)
	}
	if n < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", n)
	}
	return nil
}
