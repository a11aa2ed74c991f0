package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sgmdse/internal/config"
	"github.com/conneroisu/sgmdse/internal/dispatch"
	"github.com/conneroisu/sgmdse/internal/grid"
)

var planCmd = &cobra.Command{
	Use:     "plan",
	Aliases: []string{"p"},
	Short:   "Show the configurations a sweep would build",
	Long: `Generate the configuration set and its worker assignment without touching
any workspace or running the build tool.

Examples:
  sgmdse plan                     # Table of worker, index and key
  sgmdse plan -w 4 -f json        # Four-worker assignment as JSON
  sgmdse plan -f yaml --full      # Every configuration value as YAML`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

var (
	planFormat *formatValue
	planFull   bool
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().IntP("workers", "w", dispatch.DefaultWorkers, "Number of parallel workers")
	planCmd.Flags().BoolVar(&planFull, "full", false, "Include every configuration value, not just the key")
	planFormat = AddFormatFlag(planCmd, FormatTable, FormatTable, FormatJSON, FormatYAML)

	AddFlagValidation(planCmd, "workers", ValidateWorkers)
}

// PlanOutput is the machine-readable form of a plan.
type PlanOutput struct {
	Total      int             `json:"total" yaml:"total"`
	Workers    int             `json:"workers" yaml:"workers"`
	Partitions []PlanPartition `json:"partitions" yaml:"partitions"`
}

// PlanPartition is the ordered share of one worker.
type PlanPartition struct {
	Worker         int                  `json:"worker" yaml:"worker"`
	Keys           []string             `json:"keys" yaml:"keys"`
	Configurations []grid.Configuration `json:"configurations,omitempty" yaml:"configurations,omitempty"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, changedBindings(cmd, map[string]string{"workers": "dispatch.workers"}))
	if err != nil {
		return err
	}

	plan, err := buildPlan(cfg, planFull)
	if err != nil {
		return err
	}

	if result := config.ValidateConfigWithDetails(cfg); result.HasWarnings() {
		fmt.Fprint(cmd.ErrOrStderr(), result.String())
	}

	out := cmd.OutOrStdout()
	switch planFormat.String() {
	case FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(plan)
	case FormatYAML:
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(plan)
	default:
		return outputPlanTable(out, plan)
	}
}

func buildPlan(cfg *config.Config, full bool) (PlanOutput, error) {
	set, err := generateConfigurations(cfg)
	if err != nil {
		return PlanOutput{}, err
	}
	partitions, err := dispatch.Partition(set, cfg.Dispatch.Workers)
	if err != nil {
		return PlanOutput{}, err
	}

	plan := PlanOutput{Total: len(set), Workers: len(partitions)}
	for w, part := range partitions {
		p := PlanPartition{Worker: w, Keys: make([]string, len(part))}
		for i, c := range part {
			p.Keys[i] = c.Key()
		}
		if full {
			p.Configurations = part
		}
		plan.Partitions = append(plan.Partitions, p)
	}
	return plan, nil
}

func outputPlanTable(out io.Writer, plan PlanOutput) error {
	fmt.Fprintf(out, "%d configurations across %d workers\n\n", plan.Total, plan.Workers)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKER\tINDEX\tKEY")
	for _, p := range plan.Partitions {
		for i, key := range p.Keys {
			fmt.Fprintf(w, "%d\t%d\t%s\n", p.Worker, i, key)
		}
	}
	return w.Flush()
}
