package directive

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
)

// Engine applies substitutions to files on an afero filesystem.
type Engine struct {
	fs afero.Fs
}

// NewEngine returns an Engine over fs. A nil fs means the host filesystem.
func NewEngine(fs afero.Fs) *Engine {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Engine{fs: fs}
}

// Rewrite substitutes values into the file at path in place. The new content
// is written to a temporary file in the same directory and renamed over the
// original, so readers see either the old or the new file.
func (e *Engine) Rewrite(path string, values map[string]string) (int, error) {
	info, err := e.fs.Stat(path)
	if err != nil {
		return 0, dseerrors.WrapIO(err, dseerrors.ErrCodeSubstitution, "template file unavailable").
			WithPath(path)
	}

	src, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return 0, dseerrors.WrapIO(err, dseerrors.ErrCodeSubstitution, "failed to read template").
			WithPath(path)
	}

	var buf bytes.Buffer
	n, err := Substitute(bytes.NewReader(src), &buf, values)
	if err != nil {
		return 0, dseerrors.WrapIO(err, dseerrors.ErrCodeSubstitution, "failed to substitute directives").
			WithPath(path)
	}

	if err := e.writeAtomic(path, buf.Bytes(), info.Mode().Perm()); err != nil {
		return 0, dseerrors.WrapIO(err, dseerrors.ErrCodeSubstitution, "failed to replace template").
			WithPath(path)
	}
	return n, nil
}

// Scan returns the directive values currently defined in the file at path.
func (e *Engine) Scan(path string) (map[string]string, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return nil, dseerrors.WrapIO(err, dseerrors.ErrCodeSubstitution, "failed to open template").
			WithPath(path)
	}
	defer f.Close()

	values, err := Collect(f)
	if err != nil {
		return nil, dseerrors.WrapIO(err, dseerrors.ErrCodeSubstitution, "failed to read template").
			WithPath(path)
	}
	return values, nil
}

func (e *Engine) writeAtomic(path string, content []byte, perm os.FileMode) error {
	f, err := afero.TempFile(e.fs, filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = e.fs.Remove(f.Name())
		}
	}()

	if _, err = f.Write(content); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = e.fs.Chmod(f.Name(), perm); err != nil {
		return err
	}
	if err = e.fs.Rename(f.Name(), path); err != nil {
		return err
	}

	success = true
	return nil
}
