// Package report renders resolutions and module descriptors as tables
// for terminal output.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/frederic-klein/glmod/internal/module"
	"github.com/frederic-klein/glmod/internal/snapshot"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

// Resolution writes one row per resolved module: where it goes, its
// license and the conditions it is enabled under.
func Resolution(w io.Writer, s *snapshot.Snapshot) error {
	inMain := toSet(s.Main)
	inTests := toSet(s.Tests)

	t := newTable()
	t.AppendHeader(table.Row{"MODULE", "SCOPE", "LICENSE", "APPLICABILITY", "CONDITION"})
	for _, e := range s.Modules {
		t.AppendRow(table.Row{e.Name, scope(inMain[e.Name], inTests[e.Name]), e.License, e.Applicability, conditions(e)})
	}
	t.AppendFooter(table.Row{"TOTAL", len(s.Modules), "", "", ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignCenter},
	})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func scope(main, tests bool) string {
	switch {
	case main && tests:
		return "both"
	case main:
		return "main"
	case tests:
		return "tests"
	default:
		return "-"
	}
}

func conditions(e snapshot.Entry) string {
	if !e.Conditional {
		return ""
	}
	parts := make([]string, len(e.Depends))
	for i, d := range e.Depends {
		parts[i] = fmt.Sprintf("%s: %s", d.Parent, d.Condition)
	}
	return strings.Join(parts, "\n")
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// ModuleInfo writes the main fields of a descriptor as key/value rows.
func ModuleInfo(w io.Writer, m *module.Module) error {
	license, err := m.License()
	if err != nil {
		return err
	}
	deps, err := m.DependenciesRecursively()
	if err != nil {
		return err
	}
	links, err := m.LinkDirectiveRecursively()
	if err != nil {
		return err
	}

	t := newTable()
	t.AppendHeader(table.Row{"FIELD", "VALUE"})
	t.AppendRows([]table.Row{
		{"Name", m.Name()},
		{"Description", strings.TrimSpace(m.Description())},
		{"Applicability", string(m.Applicability())},
		{"Status", strings.Join(m.Statuses(), "\n")},
		{"License", license},
		{"Depends-on", strings.TrimSpace(m.DependenciesRaw())},
		{"Files", strings.Join(m.Files(), "\n")},
		{"Include", strings.TrimSpace(m.Include())},
		{"Link", strings.TrimSpace(m.Link())},
		{"Shell function", m.ShellFunc()},
		{"Shell variable", m.ShellVar()},
		{"Conditional", m.ConditionalName()},
		{"Maintainer", strings.TrimSpace(m.Maintainer())},
		{"Closure", strings.Join(deps, "\n")},
		{"Link (recursive)", strings.Join(links, "\n")},
		{"Repeat in tests", m.RepeatModuleInTests()},
	})

	_, err = fmt.Fprintln(w, t.Render())
	return err
}

// Problem is a finding reported by lint.
type Problem struct {
	Module  string
	Message string
}

// Problems writes lint findings, or a short notice when there are none.
func Problems(w io.Writer, problems []Problem) error {
	if len(problems) == 0 {
		_, err := fmt.Fprintln(w, "no problems found")
		return err
	}

	t := newTable()
	t.AppendHeader(table.Row{"MODULE", "PROBLEM"})
	for _, p := range problems {
		t.AppendRow(table.Row{p.Module, p.Message})
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
