package module

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

var libSourcesRe = regexp.MustCompile(`(?m)^lib_SOURCES[\t ]*\+=[\t ]*(.*)$`)

// Modules whose .c files must not be listed in EXTRA_lib_SOURCES:
// relocatable-prog-wrapper and pt_chown build standalone programs, not
// library members.
var noExtraLibSources = map[string]bool{
	"relocatable-prog-wrapper": true,
	"pt_chown":                 true,
}

// AutomakeSnippet returns the conditional Makefile.am snippet (a single
// newline when it is blank) followed by the synthesized unconditional part.
func (m *Module) AutomakeSnippet() string {
	conditional := m.AutomakeSnippetConditional()
	if strings.TrimSpace(conditional) == "" {
		conditional = "\n"
	}
	return conditional + m.AutomakeSnippetUnconditional()
}

// AutomakeSnippetUnconditional synthesizes EXTRA_DIST and
// EXTRA_lib_SOURCES augmentations from the file list.
//
// *-tests modules live in tests/, so only an EXTRA_DIST line for their
// tests/ files is produced. Other modules get an EXTRA_DIST line for the
// lib/ files not already mentioned in a "lib_SOURCES +=" line of the
// Makefile.am section, an EXTRA_lib_SOURCES line for the .c files among
// them, and an EXTRA_DIST line for their build-aux/ files.
func (m *Module) AutomakeSnippetUnconditional() string {
	return m.unconditional()
}

func (m *Module) computeAutomakeUnconditional() string {
	var b strings.Builder
	files := m.Files()

	if !m.IsNonTests() {
		extra := filterFiles(files, "tests/", "", "tests/", "")
		if len(extra) > 0 {
			b.WriteString("EXTRA_DIST += " + strings.Join(extra, " ") + "\n\n")
		}
		return b.String()
	}

	mentioned := make(map[string]bool)
	snippet := CombineLines(m.AutomakeSnippetConditional())
	for _, match := range libSourcesRe.FindAllStringSubmatch(snippet, -1) {
		for _, file := range strings.Fields(match[1]) {
			mentioned[file] = true
		}
	}

	var extra []string
	seen := make(map[string]bool)
	for _, file := range filterFiles(files, "lib/", "", "lib/", "") {
		if !mentioned[file] && !seen[file] {
			seen[file] = true
			extra = append(extra, file)
		}
	}
	sort.Strings(extra)
	if len(extra) > 0 {
		b.WriteString("EXTRA_DIST += " + strings.Join(extra, " ") + "\n\n")
	}

	// automake needs EXTRA_lib_SOURCES to generate the dependency rules
	// of sources compiled through AC_LIBOBJ.
	if !noExtraLibSources[m.name] {
		sources := filterFiles(extra, "", ".c", "", "")
		if len(sources) > 0 {
			b.WriteString("EXTRA_lib_SOURCES += " + strings.Join(sources, " ") + "\n\n")
		}
	}

	auxFiles := filterFiles(files, "build-aux/", "", "build-aux/", "")
	if len(auxFiles) > 0 {
		for i, file := range auxFiles {
			auxFiles[i] = path.Join("$(top_srcdir)", m.opts.AuxDir, file)
		}
		b.WriteString("EXTRA_DIST += " + strings.Join(auxFiles, " ") + "\n\n")
	}
	return b.String()
}

// filterFiles keeps the files that start with prefix and end with suffix,
// then removes removedPrefix and removedSuffix from them.
func filterFiles(files []string, prefix, suffix, removedPrefix, removedSuffix string) []string {
	var out []string
	for _, file := range files {
		if strings.HasPrefix(file, prefix) && strings.HasSuffix(file, suffix) {
			file = strings.TrimPrefix(file, removedPrefix)
			file = strings.TrimSuffix(file, removedSuffix)
			out = append(out, file)
		}
	}
	return out
}

// CombineLines joins every line ending in a backslash with the next one,
// separated by a space.
func CombineLines(s string) string {
	return strings.ReplaceAll(s, "\\\n", " ")
}

// RemoveBackslashNewline deletes backslash-newline sequences.
func RemoveBackslashNewline(s string) string {
	return strings.ReplaceAll(s, "\\\n", "")
}
