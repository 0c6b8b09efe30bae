package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "My Video", want: "My Video"},
		{in: `a/b\c:d*e?f"g<h>i|j`, want: "a_b_c_d_e_f_g_h_i_j"},
		{in: "  ..hidden.. ", want: "hidden"},
		{in: "", want: "untitled"},
		{in: "???", want: "untitled"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}

	long := strings.Repeat("é", 300)
	assert.Equal(t, 180, len([]rune(SanitizeFilename(long))))
}

func TestMakeTempWorkdir(t *testing.T) {
	root := t.TempDir()
	a, err := MakeTempWorkdir(root)
	require.NoError(t, err)
	b, err := MakeTempWorkdir(root)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, root, filepath.Dir(a))
	info, err := os.Stat(a)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileMD5(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o644))
	sum, err := FileMD5(p)
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", sum)
}

func TestRemoveIfExists(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x")
	require.NoError(t, RemoveIfExists(p))
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	require.NoError(t, RemoveIfExists(p))
	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err))
}
