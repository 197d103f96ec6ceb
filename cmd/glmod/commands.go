package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/glmod/internal/condition"
	"github.com/frederic-klein/glmod/internal/index"
	"github.com/frederic-klein/glmod/internal/modlist"
	"github.com/frederic-klein/glmod/internal/module"
	"github.com/frederic-klein/glmod/internal/report"
	"github.com/frederic-klein/glmod/internal/resolver"
	"github.com/frederic-klein/glmod/internal/snapshot"
)

func newResolveCmd(a *app) *cobra.Command {
	var listFile, format, output string

	cmd := &cobra.Command{
		Use:   "resolve [modules...]",
		Short: "Resolve modules and their dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runResolve(cmd.Context(), args, listFile, format, output)
		},
	}
	cmd.Flags().StringVarP(&listFile, "file", "f", "", "Read module and avoid directives from a file")
	cmd.Flags().StringVar(&format, "format", "snapshot", "Output format: snapshot, yaml or table")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func (a *app) runResolve(ctx context.Context, args []string, listFile, format, output string) error {
	names := append([]string(nil), args...)
	if listFile != "" {
		list, err := modlist.NewParser(a.fs).ParseFile(listFile)
		if err != nil {
			return err
		}
		names = append(names, list.Modules...)
		a.cfg.Avoids = append(a.cfg.Avoids, list.Avoids...)
	}
	if len(names) == 0 {
		return fmt.Errorf("no modules requested")
	}

	write, err := formatter(format)
	if err != nil {
		return err
	}

	table, err := resolver.NewTable(a.cfg, a.newIndex(), a.sink)
	if err != nil {
		return err
	}
	res, err := table.Resolve(ctx, names)
	if err != nil {
		return err
	}
	snap, err := snapshot.FromResolution(res)
	if err != nil {
		return err
	}

	if output == "" {
		return write(a.out, snap)
	}

	f, err := a.fs.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	defer f.Close()
	if err := write(f, snap); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Generated %s with %d modules\n", output, len(snap.Modules))
	return nil
}

func formatter(format string) (func(io.Writer, *snapshot.Snapshot) error, error) {
	switch format {
	case "snapshot":
		return func(w io.Writer, s *snapshot.Snapshot) error {
			return snapshot.NewEmitter(w).Emit(s)
		}, nil
	case "yaml":
		return snapshot.WriteYAML, nil
	case "table":
		return report.Resolution, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx := a.newIndex()
			a.sink.Debugf("listing %s and %d override dirs", idx.Root(), len(idx.LocalDirs()))
			names, err := idx.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info MODULE",
		Short: "Show the descriptor of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.newIndex().Find(args[0])
			if err != nil {
				return err
			}
			if m == nil {
				return &module.NotFoundError{Name: args[0]}
			}
			return report.ModuleInfo(a.out, m)
		},
	}
}

func newLintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [modules...]",
		Short: "Check module descriptors for unknown dependencies and malformed conditions",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx := a.newIndex()
			names := args
			if len(names) == 0 {
				var err error
				if names, err = idx.List(); err != nil {
					return err
				}
			}
			if err := idx.Preload(cmd.Context(), names); err != nil {
				a.sink.Debugf("preload: %v", err)
			}

			var problems []report.Problem
			for _, name := range names {
				m, err := idx.Find(name)
				switch {
				case err != nil:
					problems = append(problems, report.Problem{Module: name, Message: err.Error()})
				case m == nil:
					problems = append(problems, report.Problem{Module: name, Message: "module does not exist"})
				default:
					problems = append(problems, lintModule(idx, m)...)
				}
			}

			if err := report.Problems(a.out, problems); err != nil {
				return err
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d problems found", len(problems))
			}
			return nil
		},
	}
}

func lintModule(idx *index.ModuleIndex, m *module.Module) []report.Problem {
	var problems []report.Problem
	add := func(format string, args ...interface{}) {
		problems = append(problems, report.Problem{Module: m.Name(), Message: fmt.Sprintf(format, args...)})
	}

	for _, line := range strings.Split(m.DependenciesRaw(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, cond := condition.Split(line)
		if !idx.Exists(name) {
			add("depends on unknown module %s", name)
		}
		if err := condition.Validate(cond); err != nil {
			add("%v", err)
		}
	}

	switch m.Applicability() {
	case module.ApplicabilityMain, module.ApplicabilityTests, module.ApplicabilityAll:
	default:
		add("unknown applicability %q", m.Applicability())
	}

	if m.IsNonTests() && strings.TrimSpace(m.LicenseRaw()) == "" {
		add("lacks a License")
	}
	return problems
}
