package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sgmdse/internal/config"
	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
	"github.com/conneroisu/sgmdse/internal/logging"
	"github.com/conneroisu/sgmdse/internal/workspace"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the accelerator template tree",
	Long: `Validate every configuration section and report all problems at once,
then check that each template file the workspaces copy is present.

Examples:
  sgmdse validate                 # Human-readable report
  sgmdse validate -f json         # Report as JSON
  sgmdse validate --no-templates  # Skip the template tree check`,
	Args: cobra.NoArgs,
	RunE: runValidateCommand,
}

var (
	validateFormat      *formatValue
	validateNoTemplates bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateNoTemplates, "no-templates", false, "Do not check the template tree")
	validateFormat = AddFormatFlag(validateCmd, FormatText, FormatText, FormatJSON)
}

// ValidationSummary is the result of `sgmdse validate`.
type ValidationSummary struct {
	Valid          bool                     `json:"valid"`
	Configurations int                      `json:"configurations"`
	Errors         []config.ValidationError `json:"errors,omitempty"`
	Warnings       []config.ValidationError `json:"warnings,omitempty"`
	Templates      []string                 `json:"template_errors,omitempty"`

	result *config.ValidationResult
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return &ExitError{Code: 1, Err: configErr}
	}
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return err
	}

	result := config.ValidateConfigWithDetails(cfg)
	summary := ValidationSummary{
		Valid:    result.Valid,
		Errors:   result.Errors,
		Warnings: result.Warnings,
		result:   result,
	}
	if result.Valid {
		summary.Configurations = len(grid.Generate(cfg.Grid))
	}

	if !validateNoTemplates {
		m := workspace.NewMaterializer(appFs, cfg.Workspace, logging.NewNopLogger())
		if err := m.Check(); err != nil {
			for _, e := range dseerrors.Errors(err) {
				summary.Templates = append(summary.Templates, e.Error())
			}
			summary.Valid = false
		}
	}

	out := cmd.OutOrStdout()
	if validateFormat.String() == FormatJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(summary); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, summary.result.String())
		for _, t := range summary.Templates {
			fmt.Fprintf(out, "  - template: %s\n", t)
		}
		if summary.Valid {
			fmt.Fprintf(out, "Configuration is valid: %d configurations\n", summary.Configurations)
		}
	}

	if !summary.Valid {
		return &ExitError{Code: 1, Err: fmt.Errorf("configuration is invalid")}
	}
	return nil
}
