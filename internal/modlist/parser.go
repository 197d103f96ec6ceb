// Package modlist reads files that list the modules to import and the
// modules to avoid, one directive per line:
//
//	# comment
//	module getopt-gnu
//	avoid  malloc-gnu   # trailing comment
package modlist

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// List is the parsed content of a module list file.
type List struct {
	Modules []string
	Avoids  []string
}

var directiveRe = regexp.MustCompile(`^(module|avoid)\s+(\S+)$`)

// Parser parses module list files.
type Parser struct {
	fs afero.Fs
}

// NewParser creates a parser that opens files on fs.
func NewParser(fs afero.Fs) *Parser {
	return &Parser{fs: fs}
}

// ParseFile parses the file at path.
func (p *Parser) ParseFile(path string) (*List, error) {
	file, err := p.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening module list: %w", err)
	}
	defer file.Close()

	list, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

// Parse reads a module list. Names are kept in file order; repeated
// names are kept once.
func Parse(r io.Reader) (*List, error) {
	list := &List{}
	seenModules := make(map[string]bool)
	seenAvoids := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx != -1 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		matches := directiveRe.FindStringSubmatch(line)
		if matches == nil {
			return nil, fmt.Errorf("line %d: expected \"module NAME\" or \"avoid NAME\", got %q", lineNo, line)
		}
		name := matches[2]
		switch matches[1] {
		case "module":
			if !seenModules[name] {
				seenModules[name] = true
				list.Modules = append(list.Modules, name)
			}
		case "avoid":
			if !seenAvoids[name] {
				seenAvoids[name] = true
				list.Avoids = append(list.Avoids, name)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading module list: %w", err)
	}
	return list, nil
}
