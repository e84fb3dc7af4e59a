package pathsafe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeybbq/uciconfig/pkg/nxerrors"
)

func TestCheckWithinRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "network"), []byte("x"), 0o644))

	v, err := New(root)
	require.NoError(t, err)

	got, err := v.Check(filepath.Join(root, "network"))
	require.NoError(t, err)
	assert.Equal(t, "network", filepath.Base(got))

	// missing files are resolved through their parent
	_, err = v.Check(filepath.Join(root, "missing", "firewall"))
	assert.NoError(t, err)
}

func TestCheckRejects(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	v, err := New(root)
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
	}{
		{name: "empty", path: ""},
		{name: "dot dot segment", path: filepath.Join(root, "a") + "/../../etc/passwd"},
		{name: "outside root", path: filepath.Join(outside, "network")},
		{name: "symlink escape", path: filepath.Join(root, "escape", "network")},
		{name: "nul byte", path: root + "/net\x00work"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := v.Check(tt.path)
			require.Error(t, err)
			assert.True(t, nxerrors.Is(err, nxerrors.KindPathSafety))
		})
	}
}

func TestCheckWithoutRoots(t *testing.T) {
	t.Parallel()

	v, err := New()
	require.NoError(t, err)

	_, err = v.Check(t.TempDir())
	assert.NoError(t, err)
	_, err = v.Check("configs/../../secret")
	assert.Error(t, err)
}

func TestNewRejectsDotDotRoot(t *testing.T) {
	t.Parallel()

	_, err := New("/etc/config/../..")
	assert.True(t, nxerrors.Is(err, nxerrors.KindValidation))
}

func TestExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ok, err := Exists(dir)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Exists(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.False(t, ok)
}
