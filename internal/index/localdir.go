package index

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	modulesSubdir = "modules"
	diffSuffix    = ".diff"
)

// LocalDir is an override directory. A file modules/<name> in it replaces
// the primary descriptor, and modules/<name>.diff patches it.
type LocalDir struct {
	fs  afero.Fs
	dir string
}

// NewLocalDir creates a LocalDir rooted at dir.
func NewLocalDir(fs afero.Fs, dir string) *LocalDir {
	return &LocalDir{fs: fs, dir: dir}
}

// Dir returns the directory path.
func (d *LocalDir) Dir() string {
	return d.dir
}

// ModulePath returns the path an override descriptor for name would have.
func (d *LocalDir) ModulePath(name string) string {
	return filepath.Join(d.dir, modulesSubdir, filepath.FromSlash(name))
}

// DiffPath returns the path a diff for name would have.
func (d *LocalDir) DiffPath(name string) string {
	return d.ModulePath(name) + diffSuffix
}

// HasModules reports whether the directory has a modules subdirectory.
func (d *LocalDir) HasModules() bool {
	ok, err := afero.DirExists(d.fs, filepath.Join(d.dir, modulesSubdir))
	return err == nil && ok
}

// HasModule reports whether the directory overrides name.
func (d *LocalDir) HasModule(name string) bool {
	return isFile(d.fs, d.ModulePath(name))
}

// HasDiff reports whether the directory carries a diff for name.
func (d *LocalDir) HasDiff(name string) bool {
	return isFile(d.fs, d.DiffPath(name))
}

// ReadModule returns the override descriptor for name.
func (d *LocalDir) ReadModule(name string) ([]byte, error) {
	return afero.ReadFile(d.fs, d.ModulePath(name))
}

// ReadDiff returns the diff for name.
func (d *LocalDir) ReadDiff(name string) ([]byte, error) {
	return afero.ReadFile(d.fs, d.DiffPath(name))
}

func isFile(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// walkFiles returns the slash-separated paths, relative to dir, of every
// regular file below dir.
func walkFiles(fs afero.Fs, dir string) ([]string, error) {
	var files []string
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}
