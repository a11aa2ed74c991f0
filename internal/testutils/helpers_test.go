package testutils

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTemplateTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	layout := CreateTemplateTree(t, fs, "/tpl", "/ws")

	assert.Equal(t, "/ws", layout.Root)
	for _, name := range layout.TemplateFiles() {
		exists, err := afero.Exists(fs, filepath.Join("/tpl", name))
		require.NoError(t, err)
		assert.True(t, exists, name)
	}

	params, err := afero.ReadFile(fs, "/tpl/fp_config_params.h")
	require.NoError(t, err)
	assert.Equal(t, ParamsHeader, string(params))
}

func TestFaultFs(t *testing.T) {
	fs := NewFaultFs(afero.NewMemMapFs())
	fs.Inject(OpCreate, "build", nil).Times(1)
	fs.Inject(OpRename, "params", assert.AnError)

	_, err := fs.Create("/ws/build/Makefile")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInjected)

	_, err = fs.Create("/ws/build/Makefile")
	require.NoError(t, err, "fault was limited to one injection")

	require.NoError(t, afero.WriteFile(fs, "/ws/src/tmp", []byte("x"), 0o644))
	err = fs.Rename("/ws/src/tmp", "/ws/src/fp_config_params.h")
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, fs.Rename("/ws/src/tmp", "/ws/src/fp_config_arch.h"))

	assert.Equal(t, int64(1), fs.Injected(OpCreate))
	assert.Equal(t, int64(1), fs.Injected(OpRename))
	assert.Zero(t, fs.Injected(OpMkdir))

	fs.Clear()
	require.NoError(t, afero.WriteFile(fs, "/ws/src/tmp", []byte("x"), 0o644))
	assert.NoError(t, fs.Rename("/ws/src/tmp", "/ws/src/fp_config_params.h"))
}
