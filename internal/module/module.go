// Package module parses module descriptor files and derives the values
// the resolver needs from them: dependencies, applicability, statuses,
// file lists, license terms and build-system snippets.
//
// A descriptor is a plain text file split into sections by label lines
// such as "Files:" or "Depends-on:". Everything between one label line
// and the next is the body of the first label. Text before the first
// label is ignored.
package module

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/frederic-klein/glmod/internal/condition"
	"github.com/frederic-klein/glmod/internal/diag"
)

// Section labels recognised in descriptor files.
const (
	SectionDescription   = "Description"
	SectionComment       = "Comment"
	SectionStatus        = "Status"
	SectionNotice        = "Notice"
	SectionApplicability = "Applicability"
	SectionFiles         = "Files"
	SectionDependsOn     = "Depends-on"
	SectionAutoconfEarly = "configure.ac-early"
	SectionAutoconf      = "configure.ac"
	SectionAutomake      = "Makefile.am"
	SectionInclude       = "Include"
	SectionLink          = "Link"
	SectionLicense       = "License"
	SectionMaintainer    = "Maintainer"
)

const (
	modulesDir  = "modules/"
	testsSuffix = "-tests"
)

var sectionLabelRe = regexp.MustCompile(`(?m)^(Description|Comment|Status|Notice|Applicability|Files|Depends-on|configure\.ac-early|configure\.ac|Makefile\.am|Include|Link|License|Maintainer):$`)

// Applicability tells whether a module belongs to the library, to the
// tests, or to both.
type Applicability string

const (
	ApplicabilityMain  Applicability = "main"
	ApplicabilityTests Applicability = "tests"
	ApplicabilityAll   Applicability = "all"
)

// Finder resolves module names. It is implemented by the module index.
type Finder interface {
	Exists(name string) bool
	Find(name string) (*Module, error)
}

// Options carries the collaborators and settings a descriptor needs for
// its derived fields.
type Options struct {
	Patched     bool
	Finder      Finder
	MacroPrefix string
	AuxDir      string
	Strict      bool
	Sink        diag.Sink
}

// Key identifies a descriptor for equality and hashing.
type Key struct {
	Path    string
	Patched bool
}

// Dependency is one entry of a Depends-on section.
type Dependency struct {
	Module    *Module
	Condition condition.Condition
}

// Module is a parsed module descriptor.
type Module struct {
	name     string
	patched  bool
	content  string
	sections map[string]string
	opts     Options

	statuses      func() []string
	applicability func() Applicability
	files         func() []string
	dependencies  func() string
	depsPlain     func() ([]*Module, error)
	depsCond      func() ([]Dependency, error)
	include       func() string
	license       func() (string, error)
	unconditional func() string
}

// Parse builds a Module from the descriptor text found at path. The name
// is the part of path after "modules/".
func Parse(path string, content []byte, opts Options) *Module {
	if opts.Sink == nil {
		opts.Sink = diag.Discard
	}
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	m := &Module{
		name:     nameFromPath(path),
		patched:  opts.Patched,
		content:  text,
		sections: parseSections(text),
		opts:     opts,
	}
	m.statuses = sync.OnceValue(m.computeStatuses)
	m.applicability = sync.OnceValue(m.computeApplicability)
	m.files = sync.OnceValue(m.computeFiles)
	m.dependencies = sync.OnceValue(m.computeDependencies)
	m.depsPlain = sync.OnceValues(m.computeDependenciesWithoutConditions)
	m.depsCond = sync.OnceValues(m.computeDependenciesWithConditions)
	m.include = sync.OnceValue(m.computeInclude)
	m.license = sync.OnceValues(m.computeLicense)
	m.unconditional = sync.OnceValue(m.computeAutomakeUnconditional)
	return m
}

func nameFromPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if idx := strings.Index(path, modulesDir); idx != -1 {
		return path[idx+len(modulesDir):]
	}
	return path
}

func parseSections(text string) map[string]string {
	sections := make(map[string]string)
	lastLabel := ""
	lastStart := 0
	for _, loc := range sectionLabelRe.FindAllStringSubmatchIndex(text, -1) {
		if lastLabel != "" {
			sections[lastLabel] = text[lastStart:loc[0]]
		}
		lastLabel = text[loc[2]:loc[3]]
		// The body starts after the newline that ends the label line.
		lastStart = min(loc[1]+1, len(text))
	}
	if lastLabel != "" {
		sections[lastLabel] = text[lastStart:]
	}
	return sections
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// String implements fmt.Stringer.
func (m *Module) String() string {
	return m.name
}

// Path returns the normalised descriptor path, "modules/<name>". It is the
// sort key of modules.
func (m *Module) Path() string {
	return modulesDir + m.name
}

// Patched reports whether the descriptor was produced by applying a local
// diff to the primary copy.
func (m *Module) Patched() bool {
	return m.patched
}

// Key returns the identity of the descriptor.
func (m *Module) Key() Key {
	return Key{Path: m.Path(), Patched: m.patched}
}

// Content returns the raw descriptor text.
func (m *Module) Content() string {
	return m.content
}

// Section returns the body of a section, or "" when absent.
func (m *Module) Section(label string) string {
	return m.sections[label]
}

// IsNonTests reports whether the module is not a *-tests module.
func (m *Module) IsNonTests() bool {
	return !strings.HasSuffix(m.name, testsSuffix)
}

// IsTests reports whether the module is a *-tests module or has
// applicability "all".
func (m *Module) IsTests() bool {
	return m.Applicability() != ApplicabilityMain
}

// TestsName returns the name of the module's *-tests companion.
func (m *Module) TestsName() string {
	if strings.HasSuffix(m.name, testsSuffix) {
		return m.name
	}
	return m.name + testsSuffix
}

// RepeatModuleInTests reports whether the module must be repeated among
// the tests modules when the tests have their own configure.ac.
// libtextstyle-optional relies on a gl_LIBTEXTSTYLE_OPTIONAL invocation it
// does not do itself, so its AC_SUBSTed values differ between the two.
func (m *Module) RepeatModuleInTests() bool {
	return m.name == "libtextstyle-optional"
}

// Description returns the Description section.
func (m *Module) Description() string { return m.sections[SectionDescription] }

// Comment returns the Comment section.
func (m *Module) Comment() string { return m.sections[SectionComment] }

// Status returns the raw Status section.
func (m *Module) Status() string { return m.sections[SectionStatus] }

// Notice returns the Notice section.
func (m *Module) Notice() string { return m.sections[SectionNotice] }

// FilesRaw returns the unmodified Files section.
func (m *Module) FilesRaw() string { return m.sections[SectionFiles] }

// AutoconfEarlySnippet returns the configure.ac-early section.
func (m *Module) AutoconfEarlySnippet() string { return m.sections[SectionAutoconfEarly] }

// AutoconfSnippet returns the configure.ac section.
func (m *Module) AutoconfSnippet() string { return m.sections[SectionAutoconf] }

// AutomakeSnippetConditional returns the Makefile.am section.
func (m *Module) AutomakeSnippetConditional() string { return m.sections[SectionAutomake] }

// Link returns the Link section.
func (m *Module) Link() string { return m.sections[SectionLink] }

// LicenseRaw returns the unmodified License section.
func (m *Module) LicenseRaw() string { return m.sections[SectionLicense] }

// Maintainer returns the Maintainer section.
func (m *Module) Maintainer() string { return m.sections[SectionMaintainer] }

// Sort orders modules by path, in place.
func Sort(mods []*Module) {
	sort.Slice(mods, func(i, j int) bool {
		return mods[i].Path() < mods[j].Path()
	})
}

// Names returns the names of mods in order.
func Names(mods []*Module) []string {
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.Name()
	}
	return names
}
