// Package workspace materializes one isolated build directory per
// configuration: the accelerator sources with their parameter headers
// rewritten, the shared library headers, and a build directory holding the
// build-control file.
package workspace

import (
	"fmt"
	"path/filepath"
	"strconv"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
	"github.com/conneroisu/sgmdse/internal/validation"
)

// DefaultMaxPortBW is the memory port width written to the architecture header.
const DefaultMaxPortBW = 128

// Layout names the template files and the directories they are copied into.
type Layout struct {
	TemplateRoot string   `mapstructure:"template_root" json:"template_root" yaml:"template_root"`
	Root         string   `mapstructure:"root" json:"root" yaml:"root"`
	SourceFiles  []string `mapstructure:"source_files" json:"source_files" yaml:"source_files"`
	LibraryFiles []string `mapstructure:"library_files" json:"library_files" yaml:"library_files"`
	LibraryDir   string   `mapstructure:"library_dir" json:"library_dir" yaml:"library_dir"`
	BuildFile    string   `mapstructure:"build_file" json:"build_file" yaml:"build_file"`
	ParamsFile   string   `mapstructure:"params_file" json:"params_file" yaml:"params_file"`
	ArchFile     string   `mapstructure:"arch_file" json:"arch_file" yaml:"arch_file"`
	MaxPortBW    int      `mapstructure:"max_port_bw" json:"max_port_bw" yaml:"max_port_bw"`
}

// DefaultLayout returns the FP-Stereo source tree layout.
func DefaultLayout() Layout {
	return Layout{
		TemplateRoot: ".",
		Root:         "sdx_workspace",
		SourceFiles: []string{
			"fp_headers.h",
			"fp_sgbm_accel.h",
			"fp_sgbm_accel.cpp",
			"fp_sgbm_tb.cpp",
			"fp_config_params.h",
			"fp_config_arch.h",
		},
		LibraryFiles: []string{
			"fp_AggregateCost.hpp",
			"fp_common.h",
			"fp_ComputeCost.hpp",
			"fp_ComputeDisparity.hpp",
			"fp_PostProcessing.hpp",
			"fp_sgbm.hpp",
		},
		LibraryDir: "lib_accel",
		BuildFile:  "Makefile",
		ParamsFile: "fp_config_params.h",
		ArchFile:   "fp_config_arch.h",
		MaxPortBW:  DefaultMaxPortBW,
	}
}

// TemplateFiles returns every template path, relative to the template root,
// that a workspace needs.
func (l Layout) TemplateFiles() []string {
	files := make([]string, 0, len(l.SourceFiles)+len(l.LibraryFiles)+1)
	files = append(files, l.SourceFiles...)
	for _, f := range l.LibraryFiles {
		files = append(files, filepath.Join(l.LibraryDir, f))
	}
	return append(files, l.BuildFile)
}

// Validate checks that every configured name stays inside its root and that
// the rewritten headers are among the copied sources.
func (l Layout) Validate() error {
	for _, p := range []string{l.TemplateRoot, l.Root} {
		if err := validation.ValidatePath(p); err != nil {
			return dseerrors.WrapConfig(err, dseerrors.ErrCodeInvalidConfig, "invalid workspace directory")
		}
	}

	// entries are checked before joining, which would hide "/" and ".."
	names := []string{l.LibraryDir, l.BuildFile, l.ParamsFile, l.ArchFile}
	names = append(names, l.SourceFiles...)
	names = append(names, l.LibraryFiles...)
	for _, name := range names {
		if err := validation.ValidateFileName(name); err != nil {
			return dseerrors.WrapConfig(err, dseerrors.ErrCodeInvalidConfig, "invalid template file name")
		}
	}

	if len(l.SourceFiles) == 0 {
		return dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig, "no source files configured")
	}
	for _, header := range []string{l.ParamsFile, l.ArchFile} {
		if !contains(l.SourceFiles, header) {
			return dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig,
				fmt.Sprintf("header %s is rewritten but not listed in source_files", header))
		}
	}

	if l.MaxPortBW <= 0 {
		return dseerrors.NewConfigError(dseerrors.ErrCodeInvalidConfig,
			fmt.Sprintf("max_port_bw must be positive, got %d", l.MaxPortBW))
	}
	return nil
}

// ParamsDirectives maps the algorithm parameter header names to their values.
func ParamsDirectives(c grid.Configuration) map[string]string {
	return map[string]string{
		"HEIGHT":               strconv.Itoa(c.Height),
		"WIDTH":                strconv.Itoa(c.Width),
		"NUM_DISPARITY":        strconv.Itoa(c.MaxDisparity),
		"SMALL_PENALTY":        strconv.Itoa(c.P1),
		"LARGE_PENALTY":        strconv.Itoa(c.P2),
		"WINDOW_SIZE":          strconv.Itoa(c.WindowSize),
		"SHD_WINDOW":           strconv.Itoa(c.ShdWindow),
		"FilterWin":            strconv.Itoa(c.FilterWin),
		"PARALLEL_DISPARITIES": strconv.Itoa(c.ParallelDisparity),
	}
}

// ArchDirectives maps the architecture header names to their values.
func ArchDirectives(c grid.Configuration, maxPortBW int) map[string]string {
	return map[string]string{
		"NUM_DIR":       strconv.Itoa(c.NumDir),
		"COST_FUNCTION": strconv.Itoa(c.CostFunction),
		"UNIQ":          strconv.Itoa(c.Uniqueness),
		"LR_CHECK":      strconv.Itoa(c.LRCheck),
		"MAX_PORT_BW":   strconv.Itoa(maxPortBW),
		"PARALLELISM":   strconv.Itoa(c.ParallelDisparity),
		"PENALTY2":      strconv.Itoa(c.P2),
		"COST_WIN":      strconv.Itoa(c.WindowSize),
		"SHD_WIN":       strconv.Itoa(c.ShdWindow),
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
