package module

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/frederic-klein/glmod/internal/condition"
)

// Files every module implicitly carries.
var bootstrapFiles = []string{
	"m4/00gnulib.m4",
	"m4/zzgnulib.m4",
	"m4/gnulib-common.m4",
}

var (
	commentLineRe = regexp.MustCompile(`(?m)^#.*(\n|$)`)
	includeLineRe = regexp.MustCompile(`(?m)^(["<])`)
	shellIDRe     = regexp.MustCompile(`^[A-Za-z0-9_]*$`)
)

// Statuses returns the non-empty, trimmed lines of the Status section.
func (m *Module) Statuses() []string {
	return m.statuses()
}

func (m *Module) computeStatuses() []string {
	return nonEmptyLines(m.Status())
}

// Applicability returns the explicit Applicability value, or the default:
// "tests" for *-tests modules, "main" otherwise.
func (m *Module) Applicability() Applicability {
	return m.applicability()
}

func (m *Module) computeApplicability() Applicability {
	value := strings.TrimSpace(m.sections[SectionApplicability])
	if value != "" {
		return Applicability(value)
	}
	if strings.HasSuffix(m.name, testsSuffix) {
		return ApplicabilityTests
	}
	return ApplicabilityMain
}

// Files returns the Files section as a list, followed by the bootstrap m4
// files every module carries.
func (m *Module) Files() []string {
	return m.files()
}

func (m *Module) computeFiles() []string {
	files := nonEmptyLines(m.FilesRaw())
	return append(files, bootstrapFiles...)
}

// DependenciesRaw returns the dependency snippet: the implicit dependency
// of a *-tests module on its base module, followed by the Depends-on
// section without comment lines.
func (m *Module) DependenciesRaw() string {
	return m.dependencies()
}

func (m *Module) computeDependencies() string {
	var b strings.Builder
	if strings.HasSuffix(m.name, testsSuffix) {
		base := strings.TrimSuffix(m.name, testsSuffix)
		if m.opts.Finder != nil && m.opts.Finder.Exists(base) {
			b.WriteString(base)
			b.WriteString("\n")
		}
	}
	b.WriteString(commentLineRe.ReplaceAllString(m.sections[SectionDependsOn], ""))
	return b.String()
}

// DependenciesWithoutConditions resolves every dependency, ignoring
// conditions. Modules the finder cannot resolve are omitted; in strict
// mode the finder's error is returned instead.
func (m *Module) DependenciesWithoutConditions() ([]*Module, error) {
	return m.depsPlain()
}

func (m *Module) computeDependenciesWithoutConditions() ([]*Module, error) {
	var deps []*Module
	for _, line := range nonEmptyLines(m.DependenciesRaw()) {
		name := condition.StripSuffix(line)
		if name == "" {
			continue
		}
		dep, err := m.find(name)
		if err != nil {
			return nil, err
		}
		if dep != nil {
			deps = append(deps, dep)
		}
	}
	return deps, nil
}

// DependenciesWithConditions resolves every dependency together with its
// condition. A bracketed "[true]" reads as no condition.
func (m *Module) DependenciesWithConditions() ([]Dependency, error) {
	return m.depsCond()
}

func (m *Module) computeDependenciesWithConditions() ([]Dependency, error) {
	var deps []Dependency
	for _, line := range nonEmptyLines(m.DependenciesRaw()) {
		name, cond := condition.Split(line)
		if name == "" {
			continue
		}
		dep, err := m.find(name)
		if err != nil {
			return nil, err
		}
		if dep != nil {
			deps = append(deps, Dependency{Module: dep, Condition: cond})
		}
	}
	return deps, nil
}

func (m *Module) find(name string) (*Module, error) {
	if m.opts.Finder == nil {
		return nil, fmt.Errorf("resolving %s: no module finder", name)
	}
	dep, err := m.opts.Finder.Find(name)
	if err != nil {
		return nil, fmt.Errorf("dependency of %s: %w", m.name, err)
	}
	return dep, nil
}

// Include returns the Include section with "#include " in front of every
// line that starts with a quote or an angle bracket.
func (m *Module) Include() string {
	return m.include()
}

func (m *Module) computeInclude() string {
	return includeLineRe.ReplaceAllString(m.sections[SectionInclude], "#include $1")
}

// License returns the module license. A missing License section on a
// non-tests module is reported as a warning, or as an error in strict
// mode, and the license defaults to GPL.
func (m *Module) License() (string, error) {
	return m.license()
}

func (m *Module) computeLicense() (string, error) {
	license := strings.TrimSpace(m.LicenseRaw())
	if m.IsNonTests() && license == "" {
		err := &MissingLicenseError{Name: m.name}
		if m.opts.Strict {
			return "", err
		}
		m.opts.Sink.Warn(err.Error())
	}
	// parse-datetime is under a weaker license only for users who hand-edit
	// it without gnulib-tool; regular users get it under GPL.
	if strings.HasPrefix(m.name, "parse-datetime") {
		return "GPL", nil
	}
	if license == "" {
		return "GPL", nil
	}
	return license, nil
}

// ShellIdentifier returns the module name when it is a valid shell
// identifier fragment, otherwise the MD5 hex digest of the name plus a
// newline.
func (m *Module) ShellIdentifier() string {
	if shellIDRe.MatchString(m.name) {
		return m.name
	}
	sum := md5.Sum([]byte(m.name + "\n"))
	return hex.EncodeToString(sum[:])
}

// ShellFunc returns the name of the shell function that holds the m4 code
// of the module.
func (m *Module) ShellFunc() string {
	return fmt.Sprintf("func_%s_gnulib_m4code_%s", m.opts.MacroPrefix, m.ShellIdentifier())
}

// ShellVar returns the shell variable set to true once the m4 code of the
// module has run.
func (m *Module) ShellVar() string {
	return fmt.Sprintf("%s_gnulib_enabled_%s", m.opts.MacroPrefix, m.ShellIdentifier())
}

// ConditionalName returns the automake conditional of the module.
func (m *Module) ConditionalName() string {
	return fmt.Sprintf("%s_GNULIB_ENABLED_%s", m.opts.MacroPrefix, m.ShellIdentifier())
}

// DependenciesRecursively returns the sorted names of the module and
// everything it depends on, conditions ignored.
func (m *Module) DependenciesRecursively() ([]string, error) {
	out := make(map[string]*Module)
	handled := make(map[string]bool)
	in := []*Module{m}
	for len(in) > 0 {
		var next []*Module
		for _, cur := range in {
			out[cur.Name()] = cur
			deps, err := cur.DependenciesWithoutConditions()
			if err != nil {
				return nil, err
			}
			next = append(next, deps...)
		}
		for _, cur := range in {
			handled[cur.Name()] = true
		}
		in = unhandled(next, handled)
	}
	names := make([]string, 0, len(out))
	for name := range out {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LinkDirectiveRecursively collects the Link lines of the module and its
// dependencies. The walk stops at modules that carry their own Link
// section. The result is sorted and free of duplicates.
func (m *Module) LinkDirectiveRecursively() ([]string, error) {
	var linked []*Module
	handled := make(map[string]bool)
	in := []*Module{m}
	for len(in) > 0 {
		var next []*Module
		for _, cur := range in {
			if cur.Link() != "" {
				linked = append(linked, cur)
				continue
			}
			deps, err := cur.DependenciesWithoutConditions()
			if err != nil {
				return nil, err
			}
			next = append(next, deps...)
		}
		for _, cur := range in {
			handled[cur.Name()] = true
		}
		in = unhandled(next, handled)
	}
	seen := make(map[string]bool)
	var directives []string
	for _, cur := range linked {
		for _, line := range strings.Split(strings.TrimSpace(cur.Link()), "\n") {
			if line != "" && !seen[line] {
				seen[line] = true
				directives = append(directives, line)
			}
		}
	}
	sort.Strings(directives)
	return directives, nil
}

func unhandled(mods []*Module, handled map[string]bool) []*Module {
	seen := make(map[string]bool)
	var out []*Module
	for _, mod := range mods {
		if handled[mod.Name()] || seen[mod.Name()] {
			continue
		}
		seen[mod.Name()] = true
		out = append(out, mod)
	}
	return out
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
