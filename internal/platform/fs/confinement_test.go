// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfineRelPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "dl-abc"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dl-abc", "clip.mp4"), []byte("x"), 0o600))
	require.NoError(t, os.Symlink("..", filepath.Join(root, "escape")))

	tests := []struct {
		name    string
		target  string
		wantErr bool
		suffix  string
	}{
		{name: "file in slot", target: "dl-abc/clip.mp4", suffix: filepath.Join("dl-abc", "clip.mp4")},
		{name: "missing file in existing dir", target: "dl-abc/other.mp4", suffix: filepath.Join("dl-abc", "other.mp4")},
		{name: "dot dot", target: "../outside.mp4", wantErr: true},
		{name: "absolute", target: "/etc/passwd", wantErr: true},
		{name: "symlink escape", target: "escape/foo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfineRelPath(root, tt.target)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(got))
			assert.Equal(t, tt.suffix, got[len(got)-len(tt.suffix):])
		})
	}
}

func TestConfineAbsPath(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "clip.mp4")
	require.NoError(t, os.WriteFile(inside, []byte("ok"), 0o600))
	outside := filepath.Join(t.TempDir(), "secret.mp4")

	_, err := ConfineAbsPath(root, inside)
	require.NoError(t, err)

	_, err = ConfineAbsPath(root, outside)
	require.ErrorIs(t, err, ErrEscapesRoot)

	_, err = ConfineAbsPath(root, "clip.mp4")
	require.Error(t, err)
}

func TestIsRegularFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.mp4")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o600))

	assert.NoError(t, IsRegularFile(file))
	assert.Error(t, IsRegularFile(root))
	assert.Error(t, IsRegularFile(filepath.Join(root, "missing")))
}
