package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sgmdse/internal/dispatch"
	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/resultlog"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Show the latest outcome of every configuration",
	Long: `Read the result log and show the most recent outcome per configuration.
A log spanning several sweeps reads as the current state of every workspace.

Examples:
  sgmdse status                   # Table of every configuration
  sgmdse status --failed          # Only configurations that did not succeed
  sgmdse status -f json           # Latest outcomes as JSON`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var (
	statusFormat *formatValue
	statusFailed bool
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusFailed, "failed", false, "Show only configurations that did not succeed")
	statusCmd.Flags().String("root", "", "Directory the workspaces were created in")
	statusFormat = AddFormatFlag(statusCmd, FormatTable, FormatTable, FormatJSON, FormatYAML)
}

// StatusOutput is the machine-readable form of the status listing.
type StatusOutput struct {
	Log      string             `json:"log" yaml:"log"`
	Summary  dispatch.Report    `json:"summary" yaml:"summary"`
	Outcomes []dispatch.Outcome `json:"outcomes" yaml:"outcomes"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, changedBindings(cmd, map[string]string{"root": "workspace.root"}))
	if err != nil {
		return err
	}

	logPath, _ := resultPaths(cfg)
	if logPath == "" {
		return dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig, "dispatch.result_log is empty; no outcomes are recorded")
	}
	if exists, _ := afero.Exists(appFs, logPath); !exists {
		return fmt.Errorf("no result log at %s; run `sgmdse sweep` first", logPath)
	}

	outcomes, err := resultlog.Read(appFs, logPath)
	if err != nil {
		return err
	}
	latest := resultlog.Latest(outcomes)

	status := StatusOutput{Log: logPath, Summary: dispatch.Summarize(latest)}
	status.Summary.Failures = nil
	for _, o := range latest {
		if statusFailed && o.Success {
			continue
		}
		status.Outcomes = append(status.Outcomes, o)
	}

	out := cmd.OutOrStdout()
	switch statusFormat.String() {
	case FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(status)
	case FormatYAML:
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(status)
	default:
		return outputStatusTable(out, status)
	}
}

func outputStatusTable(out io.Writer, status StatusOutput) error {
	s := status.Summary
	fmt.Fprintf(out, "%s: %d configurations, %d succeeded, %d failed, %d skipped\n\n",
		status.Log, s.Total, s.Succeeded, s.Failed, s.Skipped)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSTATUS\tSTAGE\tEXIT\tWORKER\tDURATION\tFINISHED")
	for _, o := range status.Outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			o.Key, o.Status(), o.Stage, o.ExitCode, o.Worker,
			o.Duration.Round(time.Millisecond), o.Start.Add(o.Duration).Format(time.RFC3339))
	}
	return w.Flush()
}
