package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/frederic-klein/glmod/internal/module"
)

// Preloader reads descriptors ahead of their first lookup.
type Preloader interface {
	Preload(ctx context.Context, names []string) error
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Base       []*module.Module
	Final      []*module.Module
	Main       []*module.Module
	Tests      []*module.Module
	MainFiles  []string
	TestsFiles []string
	Licenses   []string
	Edges      []Edge

	table *Table
}

// IsConditional reports whether m ended up as a conditional module.
func (r *Resolution) IsConditional(m *module.Module) bool {
	return r.table.IsConditional(m)
}

// Resolve runs a complete resolution for the requested module names: the
// full closure, its split into main and tests modules, the dummy module,
// the file lists and the license summary.
//
// If the finder is also a Preloader, descriptors are read ahead one
// closure round at a time.
func (t *Table) Resolve(ctx context.Context, names []string) (*Resolution, error) {
	if p, ok := t.finder.(Preloader); ok {
		t.preload = func(names []string) error { return p.Preload(ctx, names) }
		defer func() { t.preload = nil }()
		if err := p.Preload(ctx, names); err != nil && ctx.Err() != nil {
			return nil, err
		}
	}

	var base []*module.Module
	for _, name := range names {
		m, err := t.finder.Find(name)
		if err != nil {
			return nil, err
		}
		if m != nil {
			base = append(base, m)
		}
	}
	t.SetBaseModules(base)
	t.logFn("resolving %d requested modules", len(t.base))

	final, err := t.TransitiveClosure(t.base)
	if err != nil {
		return nil, fmt.Errorf("resolving dependencies: %w", err)
	}
	t.SetFinalModules(final)

	main, tests, err := t.TransitiveClosureSeparately(t.base, t.final)
	if err != nil {
		return nil, fmt.Errorf("resolving main modules: %w", err)
	}

	main, err = t.AddDummy(main)
	if err != nil {
		return nil, fmt.Errorf("adding %s module: %w", DummyModule, err)
	}
	// AddDummy appends after the sorted modules; keep that order.
	t.main = main
	t.SetTestsModules(tests)
	t.logFn("%d modules, %d main, %d tests", len(t.final), len(t.main), len(t.tests))

	licenses, err := Licenses(t.main)
	if err != nil {
		return nil, err
	}

	mainFiles, testsFiles := t.FilelistSeparately(t.main, t.tests)
	return &Resolution{
		Base:       t.BaseModules(),
		Final:      t.FinalModules(),
		Main:       t.MainModules(),
		Tests:      t.TestsModules(),
		MainFiles:  mainFiles,
		TestsFiles: testsFiles,
		Licenses:   licenses,
		Edges:      t.ConditionalEdges(),
		table:      t,
	}, nil
}

// Licenses returns the distinct licenses of the non-tests modules in
// mods, sorted.
func Licenses(mods []*module.Module) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, m := range mods {
		if !m.IsNonTests() {
			continue
		}
		license, err := m.License()
		if err != nil {
			return nil, err
		}
		if !seen[license] {
			seen[license] = true
			out = append(out, license)
		}
	}
	sort.Strings(out)
	return out, nil
}
