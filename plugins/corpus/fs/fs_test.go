package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsim/pkg/contract"
)

// suffixRouter: .txt 返回内容，其余不支持。
type suffixRouter struct{}

func (suffixRouter) ExtractText(_ context.Context, name string, b []byte) (string, error) {
	if strings.HasSuffix(name, ".txt") {
		return string(b), nil
	}
	return "", contract.ErrUnsupportedType
}

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte{0, 1}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("gamma"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "x.txt"), []byte("skip"), 0o644))
	return dir
}

func TestLoadKeepsIndexAlignment(t *testing.T) {
	dir := writeTree(t)
	c, err := New(&Options{Roots: []string{dir}, ExcludeDirNames: []string{"node_modules"}}, suffixRouter{})
	require.NoError(t, err)
	texts, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "", "gamma"}, texts)

	names := c.Names()
	require.Len(t, names, 3)
	assert.True(t, strings.HasSuffix(names[1], "b.bin"))
}

func TestLoadSkipUnreadable(t *testing.T) {
	dir := writeTree(t)
	c, err := New(&Options{Roots: []string{dir}, ExcludeDirNames: []string{"node_modules"}, SkipUnreadable: true}, suffixRouter{})
	require.NoError(t, err)
	texts, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "gamma"}, texts)
	assert.Len(t, c.Names(), 2)
}

func TestLoadTooLarge(t *testing.T) {
	dir := writeTree(t)
	c, err := New(&Options{Roots: []string{filepath.Join(dir, "a.txt")}, MaxFileBytes: 2}, suffixRouter{})
	require.NoError(t, err)
	texts, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{""}, texts)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, suffixRouter{})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = New(&Options{Roots: []string{"-"}}, suffixRouter{})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = New(&Options{Roots: []string{"."}}, nil)
	assert.ErrorIs(t, err, contract.ErrInvariantViolation)
}

func TestLoadMissingRoot(t *testing.T) {
	c, err := New(&Options{Roots: []string{filepath.Join(t.TempDir(), "nope")}}, suffixRouter{})
	require.NoError(t, err)
	_, err = c.Load(context.Background())
	assert.Error(t, err)
}
