package index

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frederic-klein/glmod/internal/diag"
	"github.com/frederic-klein/glmod/internal/module"
)

type recordingPatcher struct {
	calls [][]string
	fail  bool
}

func (p *recordingPatcher) Apply(name string, original []byte, diffs [][]byte) ([]byte, error) {
	if p.fail {
		return nil, errors.New("hunk FAILED")
	}
	var applied []string
	out := string(original)
	for _, d := range diffs {
		applied = append(applied, string(d))
		out += string(d)
	}
	p.calls = append(p.calls, applied)
	return []byte(out), nil
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
}

// newTree lays out a primary tree at /gnulib and two override dirs,
// /local1 (higher priority) and /local2.
func newTree(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/gnulib/modules/alloca", "Files:\nlib/alloca.c\n\nDepends-on:\nstdbool\n")
	writeFile(t, fs, "/gnulib/modules/alloca-tests", "Files:\ntests/test-alloca.c\n")
	writeFile(t, fs, "/gnulib/modules/stdbool", "Files:\nlib/stdbool.in.h\n")
	writeFile(t, fs, "/gnulib/modules/strstr", "Files:\nlib/strstr.c\n")
	writeFile(t, fs, "/gnulib/modules/unictype/pr-bidi", "Files:\nlib/unictype/pr_bidi.c\n")
	writeFile(t, fs, "/gnulib/modules/ChangeLog", "2024-01-01\n")
	writeFile(t, fs, "/gnulib/modules/README", "readme\n")
	writeFile(t, fs, "/gnulib/modules/TEMPLATE", "Description:\n")
	writeFile(t, fs, "/gnulib/modules/.hidden", "x\n")
	writeFile(t, fs, "/gnulib/modules/alloca~", "x\n")
	writeFile(t, fs, "/gnulib/modules/strstr.orig", "x\n")

	writeFile(t, fs, "/local1/modules/stdbool", "Files:\nlib/stdbool-local.h\n")
	writeFile(t, fs, "/local1/modules/strstr.diff", "\n# local1\n")
	writeFile(t, fs, "/local2/modules/strstr.diff", "\n# local2\n")
	writeFile(t, fs, "/local2/modules/mymod", "Files:\nlib/mymod.c\n")
	return fs
}

func newIndex(t *testing.T, strict bool) (*ModuleIndex, *recordingPatcher, *diag.Recorder) {
	t.Helper()
	p := &recordingPatcher{}
	rec := &diag.Recorder{}
	idx := New(newTree(t), "/gnulib", []string{"/local1", "/local2"}, Options{
		Strict:  strict,
		Sink:    rec,
		Patcher: p,
		Workers: 2,
	})
	return idx, p, rec
}

func TestFileIsModule(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"alloca", true},
		{"unictype/pr-bidi", true},
		{"ChangeLog", false},
		{"unictype/ChangeLog", false},
		{"COPYING", false},
		{"sub/README", false},
		{"TEMPLATE", false},
		{"TEMPLATE-EXTENDED", false},
		{"TEMPLATE-TESTS", false},
		{"sub/TEMPLATE", true},
		{".gitignore", false},
		{"alloca.orig", false},
		{"alloca.rej", false},
		{"alloca~", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileIsModule(tt.name))
		})
	}
}

func TestModuleIndex_List(t *testing.T) {
	idx, _, _ := newIndex(t, false)

	names, err := idx.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alloca", "mymod", "stdbool", "strstr", "unictype/pr-bidi"}, names)
}

func TestModuleIndex_ListMissingRoot(t *testing.T) {
	idx := New(afero.NewMemMapFs(), "/nowhere", nil, Options{})
	_, err := idx.List()
	assert.Error(t, err)
}

func TestModuleIndex_ListRootDiff(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/gnulib/modules/foo", "Files:\nlib/foo.c\n")
	writeFile(t, fs, "/gnulib/modules/bar.diff", "\n")

	names, err := New(fs, "/gnulib", nil, Options{}).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"bar.diff", "foo"}, names)

	names, err = New(fs, "/gnulib", []string{"/local"}, Options{}).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "foo"}, names)
}

func TestModuleIndex_TreeBelowModulesDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/src/node_modules/gnulib/modules/foo", "Files:\nlib/foo.c\n")
	writeFile(t, fs, "/src/node_modules/gnulib/modules/foo-tests", "Files:\ntests/test-foo.c\n")
	writeFile(t, fs, "/work/modules/local/modules/bar", "Files:\nlib/bar.c\n")
	idx := New(fs, "/src/node_modules/gnulib", []string{"/work/modules/local"}, Options{MacroPrefix: "gl"})
	assert.Equal(t, "/src/node_modules/gnulib", idx.Root())
	require.Len(t, idx.LocalDirs(), 1)
	assert.Equal(t, "/work/modules/local", idx.LocalDirs()[0].Dir())

	foo, err := idx.Find("foo")
	require.NoError(t, err)
	assert.Equal(t, "foo", foo.Name())
	assert.Equal(t, "modules/foo", foo.Path())
	assert.Equal(t, "gl_gnulib_enabled_foo", foo.ShellVar())

	tests, err := idx.Find("foo-tests")
	require.NoError(t, err)
	assert.Equal(t, "foo-tests", tests.Name())
	assert.Equal(t, "foo\n", tests.DependenciesRaw())

	bar, err := idx.Find("bar")
	require.NoError(t, err)
	assert.Equal(t, "bar", bar.Name())
	assert.Equal(t, "modules/bar", bar.Path())
}

func TestModuleIndex_Exists(t *testing.T) {
	idx, _, _ := newIndex(t, false)

	assert.True(t, idx.Exists("alloca"))
	assert.True(t, idx.Exists("alloca-tests"))
	assert.True(t, idx.Exists("unictype/pr-bidi"))
	assert.True(t, idx.Exists("mymod"))
	assert.False(t, idx.Exists("ChangeLog"))
	assert.False(t, idx.Exists("README"))
	assert.False(t, idx.Exists("TEMPLATE"))
	assert.False(t, idx.Exists("unictype"))
	assert.False(t, idx.Exists("nonexistent"))
}

func TestModuleIndex_FindPrecedence(t *testing.T) {
	idx, p, _ := newIndex(t, true)

	stdbool, err := idx.Find("stdbool")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/stdbool-local.h"}, stdbool.Files()[:1])
	assert.False(t, stdbool.Patched())

	strstr, err := idx.Find("strstr")
	require.NoError(t, err)
	assert.True(t, strstr.Patched())
	assert.Equal(t, "modules/strstr", strstr.Path())
	require.Len(t, p.calls, 1)
	assert.Equal(t, []string{"\n# local2\n", "\n# local1\n"}, p.calls[0])
	assert.True(t, strings.HasSuffix(strstr.Content(), "# local2\n\n# local1\n"))

	alloca, err := idx.Find("alloca")
	require.NoError(t, err)
	assert.False(t, alloca.Patched())
	assert.Equal(t, "alloca", alloca.Name())
}

func TestModuleIndex_FindCachesInstances(t *testing.T) {
	idx, p, _ := newIndex(t, true)

	a, err := idx.Find("strstr")
	require.NoError(t, err)
	b, err := idx.Find("strstr")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Len(t, p.calls, 1)
}

func TestModuleIndex_FindMissingStrict(t *testing.T) {
	idx, _, _ := newIndex(t, true)

	m, err := idx.Find("nonexistent")
	assert.Nil(t, m)
	assert.ErrorIs(t, err, module.ErrModuleNotFound)
	assert.EqualError(t, err, "module nonexistent does not exist")
}

func TestModuleIndex_FindMissingLenient(t *testing.T) {
	idx, _, rec := newIndex(t, false)

	m, err := idx.Find("nonexistent")
	assert.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, []string{"file nonexistent does not exist"}, rec.Messages())
}

func TestModuleIndex_FindPatchFailure(t *testing.T) {
	fs := newTree(t)
	idx := New(fs, "/gnulib", []string{"/local1"}, Options{Patcher: &recordingPatcher{fail: true}})

	_, err := idx.Find("strstr")
	assert.ErrorContains(t, err, "hunk FAILED")
}

func TestModuleIndex_FindDiffWithoutPatcher(t *testing.T) {
	idx := New(newTree(t), "/gnulib", []string{"/local1"}, Options{})

	_, err := idx.Find("strstr")
	assert.ErrorContains(t, err, "no patcher")
}

func TestModuleIndex_DependenciesThroughIndex(t *testing.T) {
	idx, _, _ := newIndex(t, true)

	alloca, err := idx.Find("alloca")
	require.NoError(t, err)
	deps, err := alloca.DependenciesWithoutConditions()
	require.NoError(t, err)
	require.Len(t, deps, 1)

	stdbool, err := idx.Find("stdbool")
	require.NoError(t, err)
	assert.Same(t, stdbool, deps[0])
}

func TestModuleIndex_Preload(t *testing.T) {
	idx, p, _ := newIndex(t, false)

	err := idx.Preload(context.Background(), []string{"alloca", "stdbool", "strstr", "nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Cached())
	assert.Len(t, p.calls, 1)

	before, err := idx.Find("strstr")
	require.NoError(t, err)
	require.NoError(t, idx.Preload(context.Background(), []string{"strstr"}))
	after, err := idx.Find("strstr")
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Len(t, p.calls, 1)
}

func TestModuleIndex_PreloadReportsFailures(t *testing.T) {
	idx := New(newTree(t), "/gnulib", []string{"/local1"}, Options{Patcher: &recordingPatcher{fail: true}})

	err := idx.Preload(context.Background(), []string{"alloca", "strstr"})
	assert.ErrorContains(t, err, "hunk FAILED")
	assert.Equal(t, 1, idx.Cached())
}

func TestLocalDir(t *testing.T) {
	fs := newTree(t)
	d := NewLocalDir(fs, "/local1")

	assert.True(t, d.HasModules())
	assert.True(t, d.HasModule("stdbool"))
	assert.False(t, d.HasModule("strstr"))
	assert.True(t, d.HasDiff("strstr"))
	assert.Equal(t, filepath.Join("/local1", "modules", "strstr.diff"), d.DiffPath("strstr"))

	diff, err := d.ReadDiff("strstr")
	require.NoError(t, err)
	assert.Equal(t, "\n# local1\n", string(diff))

	assert.False(t, NewLocalDir(fs, "/empty").HasModules())
}
