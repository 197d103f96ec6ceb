package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/frederic-klein/glmod/internal/condition"
	"github.com/frederic-klein/glmod/internal/config"
	"github.com/frederic-klein/glmod/internal/module"
)

// DummyModule is added when no module contributes a compiled source, so
// the library is never empty.
const DummyModule = "dummy"

const (
	libPrefix   = "lib/"
	testsPrefix = "tests=lib/"
)

var libSourcesRe = regexp.MustCompile(`(?m)^lib_SOURCES[\t ]*\+=([^#\n]*).*$`)

// TransitiveClosure returns mods together with everything they depend on,
// filtered by the test category toggles and the avoided modules. The
// result is sorted and free of duplicates.
//
// Modules are processed in rounds. Each round handles the modules queued by
// the previous one, so every module is visited once. The direct test flag
// applies to the first round and the indirect one to all later rounds.
func (t *Table) TransitiveClosure(mods []*module.Module) ([]*module.Module, error) {
	condDeps := t.cfg.CondDeps
	if condDeps {
		for _, m := range mods {
			if !t.avoided(m) {
				t.AddUnconditional(m)
			}
		}
	}

	incAllTests := t.cfg.IncAllDirectTests
	handled := make(map[module.Key]bool)
	in := mods
	var out []*module.Module

	for round := 1; len(in) > 0; round++ {
		t.logFn("closure round %d: %d modules", round, len(in))
		if err := t.preloadRound(in); err != nil {
			return nil, err
		}

		thisRound := in
		in = nil
		for _, m := range thisRound {
			if t.avoided(m) {
				continue
			}
			out = append(out, m)
			conditional := condDeps && t.IsConditional(m)

			deps, err := m.DependenciesWithConditions()
			if err != nil {
				return nil, err
			}
			t.warnDuplicates(m, deps)

			if t.cfg.InclTestCategory(config.CategoryTests) {
				testsName := m.TestsName()
				if t.finder.Exists(testsName) {
					testsModule, err := t.finder.Find(testsName)
					if err != nil {
						return nil, err
					}
					if testsModule != nil {
						deps = append(deps, module.Dependency{Module: testsModule, Condition: condition.Always})
					}
				}
			}

			for _, dep := range deps {
				if !t.includeDependency(dep.Module, incAllTests) || t.avoided(dep.Module) {
					continue
				}
				in = append(in, dep.Module)
				if !condDeps {
					continue
				}
				cond := firstCondition(deps, dep.Module)
				switch {
				case cond.Kind == condition.Expr:
					t.AddConditional(m, dep.Module, cond)
				case conditional:
					t.AddConditional(m, dep.Module, condition.ParentEnabled)
				default:
					t.AddUnconditional(dep.Module)
				}
			}
		}

		for _, m := range thisRound {
			handled[m.Key()] = true
		}
		var next []*module.Module
		for _, m := range in {
			if !handled[m.Key()] {
				next = append(next, m)
			}
		}
		in = uniqueSorted(next)
		incAllTests = t.cfg.IncAllIndirectTests
	}

	return uniqueSorted(out), nil
}

// firstCondition returns the condition of the first edge to target. When
// a module lists the same dependency twice with different conditions,
// the first one is recorded.
func firstCondition(deps []module.Dependency, target *module.Module) condition.Condition {
	for _, d := range deps {
		if d.Module.Key() == target.Key() {
			return d.Condition
		}
	}
	return condition.Always
}

func (t *Table) warnDuplicates(m *module.Module, deps []module.Dependency) {
	count := make(map[string]int, len(deps))
	for _, d := range deps {
		count[d.Module.Name()]++
	}
	var dups []string
	for name, n := range count {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	if len(dups) == 0 {
		return
	}
	sort.Strings(dups)
	t.sink.Warn(fmt.Sprintf("module %s has duplicated dependencies: %v", m.Name(), dups))
}

// includeDependency applies the test category toggles to the status
// words of dep. An excluded category always wins over an include.
func (t *Table) includeDependency(dep *module.Module, incAllTests bool) bool {
	include := true
	for _, word := range dep.Statuses() {
		switch cat := config.TestCategory(word); cat {
		case config.CategoryObsolete:
			if !t.cfg.InclTestCategory(cat) {
				include = false
			}
		case config.CategoryCXXTest, config.CategoryLongrunning,
			config.CategoryPrivileged, config.CategoryUnportable:
			if t.cfg.ExclTestCategory(cat) {
				include = false
			}
			if !(incAllTests || t.cfg.InclTestCategory(cat)) {
				include = false
			}
		default:
			if strings.HasSuffix(word, "-test") && !incAllTests {
				include = false
			}
		}
	}
	return include
}

// preloadRound hands the dependency names of a round to the preload hook.
// Only cancellation is fatal; other failures resurface when the module is
// looked up.
func (t *Table) preloadRound(mods []*module.Module) error {
	if t.preload == nil {
		return nil
	}
	withTests := t.cfg.InclTestCategory(config.CategoryTests)
	var names []string
	for _, m := range mods {
		for _, line := range strings.Split(m.DependenciesRaw(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				names = append(names, condition.StripSuffix(line))
			}
		}
		if withTests {
			names = append(names, m.TestsName())
		}
	}
	err := t.preload(names)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err != nil {
		t.logFn("preload: %v", err)
	}
	return nil
}

// TransitiveClosureSeparately splits a resolution into the modules that
// go into the library and the modules needed only by the tests. base are
// the requested modules and final is their full closure.
func (t *Table) TransitiveClosureSeparately(base, final []*module.Module) (main, tests []*module.Module, err error) {
	saved := t.cfg.InclTestCategory(config.CategoryTests)
	t.cfg.DisableInclTestCategory(config.CategoryTests)
	main, err = t.TransitiveClosure(base)
	t.cfg.SetInclTestCategory(config.CategoryTests, saved)
	if err != nil {
		return nil, nil, err
	}

	var candidates []*module.Module
	for _, m := range final {
		if contains(main, m) && m.Applicability() == module.ApplicabilityMain {
			continue
		}
		candidates = append(candidates, m)
	}
	candidates = uniqueSorted(candidates)

	// Modules of applicability "all" are helpers; on their own they do
	// not make a test suite.
	for _, m := range candidates {
		if m.Applicability() != module.ApplicabilityAll {
			return main, candidates, nil
		}
	}
	return main, nil, nil
}

// removeIfBlocks drops the lines inside if ... endif blocks of an
// automake snippet.
func removeIfBlocks(snippet string) string {
	var kept []string
	depth := 0
	for _, line := range strings.Split(snippet, "\n") {
		switch {
		case strings.HasPrefix(line, "if "):
			depth++
		case strings.HasPrefix(line, "endif"):
			depth--
			kept = append(kept, line[len("endif"):])
		case depth == 0:
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// hasLibSources reports whether m adds a compiled file to lib_SOURCES
// outside any automake conditional.
func hasLibSources(m *module.Module) bool {
	snippet := removeIfBlocks(module.RemoveBackslashNewline(m.AutomakeSnippet()))
	for _, match := range libSourcesRe.FindAllStringSubmatch(snippet, -1) {
		for _, file := range strings.Fields(match[1]) {
			if !strings.HasSuffix(file, ".h") {
				return true
			}
		}
	}
	return false
}

// AddDummy appends the dummy module to mods when none of the non-tests
// modules compiles a source file into the library. Conditional modules do
// not count when conditional dependencies are tracked.
func (t *Table) AddDummy(mods []*module.Module) ([]*module.Module, error) {
	for _, m := range mods {
		if !m.IsNonTests() {
			continue
		}
		if t.cfg.CondDeps && t.IsConditional(m) {
			continue
		}
		if hasLibSources(m) {
			return clone(mods), nil
		}
	}

	dummy, err := t.finder.Find(DummyModule)
	if err != nil {
		return nil, err
	}
	if dummy == nil || t.avoided(dummy) || contains(mods, dummy) {
		return clone(mods), nil
	}
	return append(uniqueSorted(mods), dummy), nil
}

// Filelist returns the files of mods in first-seen order without
// duplicates.
func (t *Table) Filelist(mods []*module.Module) []string {
	seen := make(map[string]bool)
	var files []string
	for _, m := range mods {
		for _, f := range m.Files() {
			if seen[f] {
				continue
			}
			seen[f] = true
			files = append(files, f)
		}
	}
	return files
}

// FilelistSeparately returns the file lists of the main and the tests
// modules. Library sources of the tests modules are moved below
// "tests=lib/" so they do not collide with the main copies.
func (t *Table) FilelistSeparately(main, tests []*module.Module) (mainFiles, testsFiles []string) {
	mainFiles = t.Filelist(main)
	for _, f := range t.Filelist(tests) {
		if strings.HasPrefix(f, libPrefix) {
			f = strings.Replace(f, libPrefix, testsPrefix, 1)
		}
		testsFiles = append(testsFiles, f)
	}
	return mainFiles, testsFiles
}
