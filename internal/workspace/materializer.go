package workspace

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/conneroisu/sgmdse/internal/directive"
	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
	"github.com/conneroisu/sgmdse/internal/grid"
	"github.com/conneroisu/sgmdse/internal/logging"
)

// Materialization stages, in execution order. A failed Prepare reports the
// stage it stopped at.
const (
	StageCreate   = "create"
	StageSources  = "copy-sources"
	StageParams   = "rewrite-params"
	StageArch     = "rewrite-arch"
	StageLibrary  = "copy-library"
	StageBuildDir = "build-dir"
)

const (
	srcDir   = "src"
	buildDir = "build"
	dirPerm  = 0o755
)

// Paths are the directories of one materialized workspace.
type Paths struct {
	Root  string `json:"root" yaml:"root"`
	Src   string `json:"src" yaml:"src"`
	Lib   string `json:"lib" yaml:"lib"`
	Build string `json:"build" yaml:"build"`
}

// Materializer builds workspaces from a template tree.
type Materializer struct {
	fs     afero.Fs
	layout Layout
	engine *directive.Engine
	logger logging.Logger
}

// NewMaterializer returns a Materializer over fs. A nil fs means the host
// filesystem.
func NewMaterializer(fs afero.Fs, layout Layout, logger logging.Logger) *Materializer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Materializer{
		fs:     fs,
		layout: layout,
		engine: directive.NewEngine(fs),
		logger: logger.WithComponent("workspace"),
	}
}

// Layout returns the layout the materializer copies from.
func (m *Materializer) Layout() Layout {
	return m.layout
}

// PathFor returns the workspace directories for c without touching disk.
func (m *Materializer) PathFor(c grid.Configuration) Paths {
	root := filepath.Join(m.layout.Root, c.Key())
	src := filepath.Join(root, srcDir)
	return Paths{
		Root:  root,
		Src:   src,
		Lib:   filepath.Join(src, m.layout.LibraryDir),
		Build: filepath.Join(root, buildDir),
	}
}

// Check verifies that every template file exists before a sweep starts.
func (m *Materializer) Check() error {
	var errs error
	for _, name := range m.layout.TemplateFiles() {
		path := filepath.Join(m.layout.TemplateRoot, name)
		info, err := m.fs.Stat(path)
		switch {
		case err != nil:
			errs = dseerrors.Append(errs, dseerrors.WrapIO(err, dseerrors.ErrCodeMissingTemplate,
				"template file missing").WithPath(path))
		case info.IsDir():
			errs = dseerrors.Append(errs, dseerrors.NewIOError(dseerrors.ErrCodeMissingTemplate,
				"template path is a directory", nil).WithPath(path))
		}
	}
	return errs
}

// Prepare materializes the workspace for c. Directory creation is idempotent;
// template copies overwrite what a previous run left behind. Nothing outside
// the workspace is modified.
func (m *Materializer) Prepare(ctx context.Context, c grid.Configuration) (Paths, error) {
	paths := m.PathFor(c)
	key := c.Key()

	steps := []struct {
		stage string
		run   func() error
	}{
		{StageCreate, func() error { return m.fs.MkdirAll(paths.Src, dirPerm) }},
		{StageSources, func() error { return m.copyFiles(m.layout.TemplateRoot, paths.Src, m.layout.SourceFiles) }},
		{StageParams, func() error {
			return m.rewrite(ctx, filepath.Join(paths.Src, m.layout.ParamsFile), ParamsDirectives(c))
		}},
		{StageArch, func() error {
			return m.rewrite(ctx, filepath.Join(paths.Src, m.layout.ArchFile), ArchDirectives(c, m.layout.MaxPortBW))
		}},
		{StageLibrary, func() error {
			if err := m.fs.MkdirAll(paths.Lib, dirPerm); err != nil {
				return err
			}
			return m.copyFiles(filepath.Join(m.layout.TemplateRoot, m.layout.LibraryDir), paths.Lib, m.layout.LibraryFiles)
		}},
		{StageBuildDir, func() error {
			if err := m.fs.MkdirAll(paths.Build, dirPerm); err != nil {
				return err
			}
			return m.copyFiles(m.layout.TemplateRoot, paths.Build, []string{m.layout.BuildFile})
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return paths, dseerrors.WrapIO(err, dseerrors.ErrCodeCancelled, "materialization cancelled").
				WithKey(key).WithStage(step.stage)
		}
		if err := step.run(); err != nil {
			return paths, dseerrors.WrapIO(err, dseerrors.ErrCodeWorkspace, "failed to materialize workspace").
				WithKey(key).WithStage(step.stage).WithPath(paths.Root)
		}
	}

	m.logger.Debug(ctx, "Workspace ready", "key", key, "root", paths.Root)
	return paths, nil
}

func (m *Materializer) rewrite(ctx context.Context, path string, values map[string]string) error {
	n, err := m.engine.Rewrite(path, values)
	if err != nil {
		return err
	}
	m.logger.Debug(ctx, "Rewrote directives", "file", path, "lines", n)
	return nil
}

func (m *Materializer) copyFiles(fromDir, toDir string, names []string) error {
	for _, name := range names {
		if err := m.copyFile(filepath.Join(fromDir, name), filepath.Join(toDir, filepath.Base(name))); err != nil {
			return err
		}
	}
	return nil
}

func (m *Materializer) copyFile(from, to string) error {
	in, err := m.fs.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := m.fs.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
