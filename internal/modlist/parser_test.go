package modlist

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantModules []string
		wantAvoids  []string
	}{
		{
			name:        "single module",
			content:     "module getopt-gnu\n",
			wantModules: []string{"getopt-gnu"},
		},
		{
			name:        "comments and blank lines",
			content:     "# modules for the library\n\nmodule stdbool   # trailing comment\n   \nmodule alloca\n",
			wantModules: []string{"stdbool", "alloca"},
		},
		{
			name:        "avoids",
			content:     "module getopt-gnu\navoid  malloc-gnu\navoid\tfree-posix\n",
			wantModules: []string{"getopt-gnu"},
			wantAvoids:  []string{"malloc-gnu", "free-posix"},
		},
		{
			name:        "duplicates kept once",
			content:     "module alloca\nmodule alloca\navoid x\navoid x\n",
			wantModules: []string{"alloca"},
			wantAvoids:  []string{"x"},
		},
		{
			name:        "names with slashes and plus",
			content:     "module unictype/pr-bidi\nmodule c++defs\n",
			wantModules: []string{"unictype/pr-bidi", "c++defs"},
		},
		{
			name:    "empty",
			content: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := Parse(strings.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.wantModules, list.Modules)
			assert.Equal(t, tt.wantAvoids, list.Avoids)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown directive", "require alloca\n", "line 1"},
		{"missing name", "module\n", "line 1"},
		{"two names", "module\nmodule a b\n", "line 1"},
		{"later line", "module a\n\nmodule a b\n", "line 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParser_ParseFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/modules.list", []byte("module alloca\navoid dummy\n"), 0644))

	list, err := NewParser(fs).ParseFile("/proj/modules.list")
	require.NoError(t, err)
	assert.Equal(t, []string{"alloca"}, list.Modules)
	assert.Equal(t, []string{"dummy"}, list.Avoids)

	_, err = NewParser(fs).ParseFile("/proj/missing.list")
	assert.ErrorContains(t, err, "opening module list")

	require.NoError(t, afero.WriteFile(fs, "/proj/bad.list", []byte("bogus\n"), 0644))
	_, err = NewParser(fs).ParseFile("/proj/bad.list")
	assert.ErrorContains(t, err, "/proj/bad.list: line 1")
}
