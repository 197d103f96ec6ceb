// Package resolver computes the set of modules an import needs: the
// transitive closure over Depends-on edges, its split into library and
// test modules, and the files those modules bring in.
package resolver

import (
	"fmt"
	"sort"

	"github.com/frederic-klein/glmod/internal/condition"
	"github.com/frederic-klein/glmod/internal/config"
	"github.com/frederic-klein/glmod/internal/diag"
	"github.com/frederic-klein/glmod/internal/module"
)

// Finder looks modules up by name.
type Finder interface {
	Exists(name string) bool
	Find(name string) (*module.Module, error)
}

type debugLogger interface {
	Debugf(format string, args ...interface{})
}

// Table holds the state of one resolution. It is not safe for concurrent
// use; parallel resolutions need their own tables.
type Table struct {
	cfg    *config.Config
	finder Finder
	sink   diag.Sink
	logFn  func(string, ...interface{})

	// dependers maps a conditional module to the modules that pull it in.
	dependers      map[string][]string
	conditionals   map[edgeKey]condition.Condition
	unconditionals map[string]bool

	// preload, when set, is given the dependency names of every round
	// before the round is processed.
	preload func(names []string) error

	base   []*module.Module
	main   []*module.Module
	tests  []*module.Module
	final  []*module.Module
	avoids []*module.Module
}

type edgeKey struct {
	parent string
	child  string
}

// NewTable creates a table for cfg. The avoided modules named in cfg are
// looked up right away; unknown ones are dropped unless cfg is strict.
func NewTable(cfg *config.Config, finder Finder, sink diag.Sink) (*Table, error) {
	if sink == nil {
		sink = diag.Discard
	}
	t := &Table{
		cfg:            cfg,
		finder:         finder,
		sink:           sink,
		logFn:          func(string, ...interface{}) {},
		dependers:      make(map[string][]string),
		conditionals:   make(map[edgeKey]condition.Condition),
		unconditionals: make(map[string]bool),
	}
	if dl, ok := sink.(debugLogger); ok {
		t.logFn = dl.Debugf
	}

	for _, name := range cfg.Avoids {
		m, err := finder.Find(name)
		if err != nil {
			return nil, fmt.Errorf("avoided module: %w", err)
		}
		if m != nil {
			t.avoids = append(t.avoids, m)
		}
	}
	return t, nil
}

// AddUnconditional marks m as unconditional. Later conditional edges into
// m have no effect.
func (t *Table) AddUnconditional(m *module.Module) {
	t.unconditionals[m.Name()] = true
	delete(t.dependers, m.Name())
}

// AddConditional records that parent pulls in m under cond. It does
// nothing when m is already unconditional.
func (t *Table) AddConditional(parent, m *module.Module, cond condition.Condition) {
	if t.unconditionals[m.Name()] {
		return
	}
	parents := t.dependers[m.Name()]
	found := false
	for _, p := range parents {
		if p == parent.Name() {
			found = true
			break
		}
	}
	if !found {
		t.dependers[m.Name()] = append(parents, parent.Name())
	}
	t.conditionals[edgeKey{parent: parent.Name(), child: m.Name()}] = cond
}

// IsConditional reports whether m has at least one conditional depender.
func (t *Table) IsConditional(m *module.Module) bool {
	_, ok := t.dependers[m.Name()]
	return ok
}

// Condition returns the condition recorded for the edge parent -> m.
func (t *Table) Condition(parent, m *module.Module) (condition.Condition, bool) {
	c, ok := t.conditionals[edgeKey{parent: parent.Name(), child: m.Name()}]
	return c, ok
}

// Dependers returns the modules that conditionally depend on m, in the
// order they were recorded.
func (t *Table) Dependers(m *module.Module) []string {
	return append([]string(nil), t.dependers[m.Name()]...)
}

// Edge is one recorded conditional dependency.
type Edge struct {
	Parent    string
	Child     string
	Condition condition.Condition
}

// ConditionalEdges lists the edges into modules that are still
// conditional, ordered by child name and then by recording order.
func (t *Table) ConditionalEdges() []Edge {
	children := make([]string, 0, len(t.dependers))
	for child := range t.dependers {
		children = append(children, child)
	}
	sort.Strings(children)

	var edges []Edge
	for _, child := range children {
		for _, parent := range t.dependers[child] {
			edges = append(edges, Edge{
				Parent:    parent,
				Child:     child,
				Condition: t.conditionals[edgeKey{parent: parent, child: child}],
			})
		}
	}
	return edges
}

func (t *Table) avoided(m *module.Module) bool {
	return contains(t.avoids, m)
}

func contains(mods []*module.Module, m *module.Module) bool {
	key := m.Key()
	for _, other := range mods {
		if other.Key() == key {
			return true
		}
	}
	return false
}

// uniqueSorted returns mods without duplicates, ordered by path.
func uniqueSorted(mods []*module.Module) []*module.Module {
	seen := make(map[module.Key]bool, len(mods))
	out := make([]*module.Module, 0, len(mods))
	for _, m := range mods {
		if seen[m.Key()] {
			continue
		}
		seen[m.Key()] = true
		out = append(out, m)
	}
	module.Sort(out)
	return out
}

// Avoids returns the avoided modules.
func (t *Table) Avoids() []*module.Module { return clone(t.avoids) }

// SetAvoids replaces the avoided modules.
func (t *Table) SetAvoids(mods []*module.Module) { t.avoids = uniqueSorted(mods) }

// BaseModules returns the modules requested by the user.
func (t *Table) BaseModules() []*module.Module { return clone(t.base) }

// SetBaseModules replaces the requested modules.
func (t *Table) SetBaseModules(mods []*module.Module) { t.base = uniqueSorted(mods) }

// MainModules returns the modules whose sources go into the library.
func (t *Table) MainModules() []*module.Module { return clone(t.main) }

// SetMainModules replaces the main modules.
func (t *Table) SetMainModules(mods []*module.Module) { t.main = uniqueSorted(mods) }

// TestsModules returns the test-related modules.
func (t *Table) TestsModules() []*module.Module { return clone(t.tests) }

// SetTestsModules replaces the test-related modules.
func (t *Table) SetTestsModules(mods []*module.Module) { t.tests = uniqueSorted(mods) }

// FinalModules returns the full closure.
func (t *Table) FinalModules() []*module.Module { return clone(t.final) }

// SetFinalModules replaces the full closure.
func (t *Table) SetFinalModules(mods []*module.Module) { t.final = uniqueSorted(mods) }

func clone(mods []*module.Module) []*module.Module {
	return append([]*module.Module(nil), mods...)
}
