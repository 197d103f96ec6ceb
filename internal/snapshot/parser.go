package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	itemRe          = regexp.MustCompile(`^  (\S+)$`)
	licenseRe       = regexp.MustCompile(`^    license: (.*)$`)
	applicabilityRe = regexp.MustCompile(`^    applicability: (\S*)$`)
	conditionalRe   = regexp.MustCompile(`^    conditional: (true|false)$`)
	dependsRe       = regexp.MustCompile(`^    depends:$`)
	dependerRe      = regexp.MustCompile(`^      (\S+) (.+)$`)
)

// Parser reads snapshots in the text format.
type Parser struct {
	r io.Reader
}

// NewParser creates a new snapshot parser.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: r}
}

// Parse reads a snapshot.
func (p *Parser) Parse() (*Snapshot, error) {
	s := &Snapshot{}
	section := ""
	var current *Entry
	inDepends := false

	flush := func() {
		if current != nil {
			s.Modules = append(s.Modules, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(p.r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		switch line {
		case sectionModules, sectionMain, sectionTests, sectionFiles, sectionTestsFiles:
			flush()
			section = line
			continue
		}

		if section != sectionModules {
			matches := itemRe.FindStringSubmatch(line)
			if matches == nil || section == "" {
				return nil, fmt.Errorf("snapshot line %d: unexpected %q", lineNo, line)
			}
			switch section {
			case sectionMain:
				s.Main = append(s.Main, matches[1])
			case sectionTests:
				s.Tests = append(s.Tests, matches[1])
			case sectionFiles:
				s.Files = append(s.Files, matches[1])
			case sectionTestsFiles:
				s.TestsFiles = append(s.TestsFiles, matches[1])
			}
			continue
		}

		if matches := itemRe.FindStringSubmatch(line); matches != nil {
			flush()
			current = &Entry{Name: matches[1]}
			inDepends = false
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("snapshot line %d: field outside of a module entry", lineNo)
		}

		switch {
		case licenseRe.MatchString(line):
			current.License = licenseRe.FindStringSubmatch(line)[1]
			inDepends = false
		case applicabilityRe.MatchString(line):
			current.Applicability = applicabilityRe.FindStringSubmatch(line)[1]
			inDepends = false
		case conditionalRe.MatchString(line):
			current.Conditional = conditionalRe.FindStringSubmatch(line)[1] == "true"
			inDepends = false
		case dependsRe.MatchString(line):
			inDepends = true
		case inDepends && dependerRe.MatchString(line):
			matches := dependerRe.FindStringSubmatch(line)
			current.Depends = append(current.Depends, Depender{Parent: matches[1], Condition: matches[2]})
		default:
			return nil, fmt.Errorf("snapshot line %d: unexpected %q", lineNo, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return s, nil
}
