package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/sgmdse/internal/config"
)

var initCmd = &cobra.Command{
	Use:     "init [path]",
	Aliases: []string{"i"},
	Short:   "Write a configuration file with the production design space",
	Long: `Write a configuration file holding every default: the production grid,
penalty table, workspace layout, build tool and worker count. Edit it to
narrow or widen the sweep.

Examples:
  sgmdse init                     # Write .sgmdse.yml
  sgmdse init configs/small.yml   # Write to another path
  sgmdse init --force             # Overwrite an existing file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultFileName
	switch {
	case len(args) == 1:
		path = args[0]
	case cfgFile != "":
		path = cfgFile
	}

	exists, err := afero.Exists(appFs, path)
	if err != nil {
		return err
	}
	if exists && !initForce {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	}

	if err := config.Write(appFs, path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
