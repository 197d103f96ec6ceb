// Package index locates module descriptors in a primary module tree and
// in ordered local override directories.
package index

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/frederic-klein/glmod/internal/diag"
	"github.com/frederic-klein/glmod/internal/loader"
	"github.com/frederic-klein/glmod/internal/module"
)

// Names that live in modules/ but are not descriptors.
var badNames = map[string]bool{
	"ChangeLog":         true,
	"COPYING":           true,
	"README":            true,
	"TEMPLATE":          true,
	"TEMPLATE-EXTENDED": true,
	"TEMPLATE-TESTS":    true,
}

// Patcher applies diffs to a descriptor.
type Patcher interface {
	Apply(name string, original []byte, diffs [][]byte) ([]byte, error)
}

// Options configures a ModuleIndex.
type Options struct {
	Strict      bool
	MacroPrefix string
	AuxDir      string
	Sink        diag.Sink
	Patcher     Patcher
	Workers     int
}

// ModuleIndex finds module descriptors and caches the parsed result, so
// the same name always yields the same *module.Module.
type ModuleIndex struct {
	fs     afero.Fs
	root   string
	locals []*LocalDir
	opts   Options

	mu    sync.Mutex
	cache map[string]*module.Module
}

// New creates an index over root and localDirs. localDirs are listed from
// highest to lowest priority.
func New(fs afero.Fs, root string, localDirs []string, opts Options) *ModuleIndex {
	if opts.Sink == nil {
		opts.Sink = diag.Discard
	}
	locals := make([]*LocalDir, len(localDirs))
	for i, dir := range localDirs {
		locals[i] = NewLocalDir(fs, dir)
	}
	return &ModuleIndex{
		fs:     fs,
		root:   root,
		locals: locals,
		opts:   opts,
		cache:  make(map[string]*module.Module),
	}
}

// Root returns the primary tree.
func (idx *ModuleIndex) Root() string {
	return idx.root
}

// LocalDirs returns the override directories in priority order.
func (idx *ModuleIndex) LocalDirs() []*LocalDir {
	return idx.locals
}

func (idx *ModuleIndex) rootPath(name string) string {
	return filepath.Join(idx.root, modulesSubdir, filepath.FromSlash(name))
}

// FileIsModule reports whether a file name found below modules/ should be
// viewed as a module descriptor.
func FileIsModule(filename string) bool {
	for _, bad := range []string{"ChangeLog", "COPYING", "README"} {
		if filename == bad || strings.HasSuffix(filename, "/"+bad) {
			return false
		}
	}
	switch filename {
	case "TEMPLATE", "TEMPLATE-EXTENDED", "TEMPLATE-TESTS":
		return false
	}
	return !(strings.HasPrefix(filename, ".") ||
		strings.HasSuffix(filename, ".orig") ||
		strings.HasSuffix(filename, ".rej") ||
		strings.HasSuffix(filename, "~"))
}

// List returns the sorted names of all available non-tests modules.
func (idx *ModuleIndex) List() ([]string, error) {
	rootModules := filepath.Join(idx.root, modulesSubdir)
	files, err := walkFiles(idx.fs, rootModules)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", rootModules, err)
	}

	for _, local := range idx.locals {
		if !local.HasModules() {
			continue
		}
		dir := filepath.Join(local.Dir(), modulesSubdir)
		localFiles, err := walkFiles(idx.fs, dir)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
		files = append(files, localFiles...)
	}

	seen := make(map[string]bool)
	var names []string
	for _, f := range files {
		// With override dirs configured, foo.diff stands for foo everywhere.
		if len(idx.locals) > 0 {
			f = strings.TrimSuffix(f, diffSuffix)
		}
		if !FileIsModule(f) || strings.HasSuffix(f, "-tests") || seen[f] {
			continue
		}
		seen[f] = true
		names = append(names, f)
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a descriptor file for name is present in the
// primary tree or in any override directory.
func (idx *ModuleIndex) Exists(name string) bool {
	if badNames[name] {
		return false
	}
	if isFile(idx.fs, idx.rootPath(name)) {
		return true
	}
	for _, local := range idx.locals {
		if local.HasModule(name) {
			return true
		}
	}
	return false
}

// Find returns the descriptor for name. A missing module is an error in
// strict mode; otherwise it is reported as a warning and Find returns
// (nil, nil).
func (idx *ModuleIndex) Find(name string) (*module.Module, error) {
	if m := idx.cached(name); m != nil {
		return m, nil
	}
	if !idx.Exists(name) {
		if idx.opts.Strict {
			return nil, &module.NotFoundError{Name: name}
		}
		idx.opts.Sink.Warn(fmt.Sprintf("file %s does not exist", name))
		return nil, nil
	}

	desc, err := idx.Fetch(name)
	if err != nil {
		return nil, err
	}
	return idx.store(name, desc), nil
}

func (idx *ModuleIndex) cached(name string) *module.Module {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.cache[name]
}

// store parses desc and caches it unless another goroutine got there first.
// The module is named after its path below the tree, never its disk path.
func (idx *ModuleIndex) store(name string, desc loader.Descriptor) *module.Module {
	m := module.Parse(path.Join(modulesSubdir, name), desc.Content, module.Options{
		Patched:     desc.Patched,
		Finder:      idx,
		MacroPrefix: idx.opts.MacroPrefix,
		AuxDir:      idx.opts.AuxDir,
		Strict:      idx.opts.Strict,
		Sink:        idx.opts.Sink,
	})

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if existing, ok := idx.cache[name]; ok {
		return existing
	}
	idx.cache[name] = m
	return m
}

// Fetch reads the descriptor text for name, honouring override
// directories and applying diffs. It implements loader.Fetcher.
func (idx *ModuleIndex) Fetch(name string) (loader.Descriptor, error) {
	for _, local := range idx.locals {
		if local.HasModule(name) {
			content, err := local.ReadModule(name)
			if err != nil {
				return loader.Descriptor{}, fmt.Errorf("reading module %s: %w", name, err)
			}
			return loader.Descriptor{Path: local.ModulePath(name), Content: content}, nil
		}
	}

	file := idx.rootPath(name)
	content, err := afero.ReadFile(idx.fs, file)
	if err != nil {
		return loader.Descriptor{}, fmt.Errorf("reading module %s: %w", name, err)
	}

	// Lowest priority diff first so higher priority dirs patch last.
	var diffs [][]byte
	for i := len(idx.locals) - 1; i >= 0; i-- {
		local := idx.locals[i]
		if !local.HasDiff(name) {
			continue
		}
		diff, err := local.ReadDiff(name)
		if err != nil {
			return loader.Descriptor{}, fmt.Errorf("reading diff for %s: %w", name, err)
		}
		diffs = append(diffs, diff)
	}
	if len(diffs) == 0 {
		return loader.Descriptor{Path: file, Content: content}, nil
	}
	if idx.opts.Patcher == nil {
		return loader.Descriptor{}, fmt.Errorf("module %s has local diffs but no patcher is configured", name)
	}

	patched, err := idx.opts.Patcher.Apply(name, content, diffs)
	if err != nil {
		return loader.Descriptor{}, err
	}
	return loader.Descriptor{Path: file, Content: patched, Patched: true}, nil
}

// Preload reads the descriptors of names concurrently and caches them.
// Unknown names are skipped; they are reported when Find is called.
func (idx *ModuleIndex) Preload(ctx context.Context, names []string) error {
	var jobs []loader.Job
	queued := make(map[string]bool)
	for _, name := range names {
		if queued[name] || idx.cached(name) != nil || !idx.Exists(name) {
			continue
		}
		queued[name] = true
		jobs = append(jobs, loader.Job{Name: name})
	}
	if len(jobs) == 0 {
		return nil
	}

	results, err := loader.New(idx, idx.opts.Workers).Load(ctx, jobs)
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range results {
		if r.Error != nil {
			errs = append(errs, r.Error)
			continue
		}
		idx.store(r.Job.Name, r.Descriptor)
	}
	return errors.Join(errs...)
}

// Cached returns the number of parsed descriptors held by the index.
func (idx *ModuleIndex) Cached() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.cache)
}
