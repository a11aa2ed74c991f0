// Package testutils builds template trees and configurations for tests.
package testutils

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sgmdse/internal/workspace"
)

// ParamsHeader is a parameter header carrying every directive the
// materializer rewrites, plus lines it must leave alone.
const ParamsHeader = `#ifndef FP_CONFIG_PARAMS_H
#define FP_CONFIG_PARAMS_H

#define HEIGHT 100
#define WIDTH 200
#define NUM_DISPARITY 32
#define SMALL_PENALTY 1
#define LARGE_PENALTY 2
#define WINDOW_SIZE 3
#define SHD_WINDOW 3
#define FilterWin 3
#define PARALLEL_DISPARITIES 2
#define IMG_TYPE unsigned char

#endif
`

// ArchHeader is an architecture header carrying every rewritten directive.
const ArchHeader = `#ifndef FP_CONFIG_ARCH_H
#define FP_CONFIG_ARCH_H
#define NUM_DIR 8
#define COST_FUNCTION 0
#define UNIQ 0
#define LR_CHECK 0
#define MAX_PORT_BW 64
#define PARALLELISM 2
#define PENALTY2 2
#define COST_WIN 3
#define SHD_WIN 3
#endif
`

// CreateTemplateTree writes every file the layout references below its
// template root and returns the layout with Root set to root.
func CreateTemplateTree(t *testing.T, fs afero.Fs, templateRoot, root string) workspace.Layout {
	t.Helper()

	layout := workspace.DefaultLayout()
	layout.TemplateRoot = templateRoot
	layout.Root = root

	for _, name := range layout.TemplateFiles() {
		content := "// " + name + "\n"
		switch name {
		case layout.ParamsFile:
			content = ParamsHeader
		case layout.ArchFile:
			content = ArchHeader
		case layout.BuildFile:
			content = "all:\n\t@echo $(HEIGHT)\n"
		}

		path := filepath.Join(templateRoot, name)
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}

	return layout
}
