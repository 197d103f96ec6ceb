// Package snapshot records the outcome of a resolution in a line-based
// text format that can be diffed and read back, and exports it as YAML.
package snapshot

import (
	"github.com/frederic-klein/glmod/internal/module"
	"github.com/frederic-klein/glmod/internal/resolver"
)

// Snapshot is the persisted form of a resolution.
type Snapshot struct {
	Modules    []Entry  `yaml:"modules"`
	Main       []string `yaml:"main"`
	Tests      []string `yaml:"tests,omitempty"`
	Files      []string `yaml:"files"`
	TestsFiles []string `yaml:"tests_files,omitempty"`
}

// Entry describes one resolved module.
type Entry struct {
	Name          string     `yaml:"name"`
	License       string     `yaml:"license"`
	Applicability string     `yaml:"applicability"`
	Conditional   bool       `yaml:"conditional,omitempty"`
	Depends       []Depender `yaml:"depends,omitempty"`
}

// Depender is a module that pulls the entry in conditionally. Condition is
// "true" when the edge is active whenever the parent is.
type Depender struct {
	Parent    string `yaml:"parent"`
	Condition string `yaml:"condition"`
}

// FromResolution builds a snapshot from res. Entries cover the full
// closure plus anything added to the main modules afterwards, such as the
// dummy module.
func FromResolution(res *resolver.Resolution) (*Snapshot, error) {
	var all []*module.Module
	seen := make(map[module.Key]bool)
	for _, group := range [][]*module.Module{res.Final, res.Main, res.Tests} {
		for _, m := range group {
			if !seen[m.Key()] {
				seen[m.Key()] = true
				all = append(all, m)
			}
		}
	}
	module.Sort(all)

	dependers := make(map[string][]Depender)
	for _, e := range res.Edges {
		cond := e.Condition.String()
		if cond == "" {
			cond = "true"
		}
		dependers[e.Child] = append(dependers[e.Child], Depender{Parent: e.Parent, Condition: cond})
	}

	s := &Snapshot{
		Main:       module.Names(res.Main),
		Tests:      module.Names(res.Tests),
		Files:      res.MainFiles,
		TestsFiles: res.TestsFiles,
	}
	for _, m := range all {
		license, err := m.License()
		if err != nil {
			return nil, err
		}
		s.Modules = append(s.Modules, Entry{
			Name:          m.Name(),
			License:       license,
			Applicability: string(m.Applicability()),
			Conditional:   res.IsConditional(m),
			Depends:       dependers[m.Name()],
		})
	}
	return s, nil
}
