package snapshot

import (
	"bufio"
	"fmt"
	"io"
)

const header = "# glmod snapshot format: version 1.0\n"

// Section headers of the text format.
const (
	sectionModules    = "MODULES"
	sectionMain       = "MAIN"
	sectionTests      = "TESTS"
	sectionFiles      = "FILES"
	sectionTestsFiles = "TESTS_FILES"
)

// Emitter writes snapshots in the text format.
type Emitter struct {
	w io.Writer
}

// NewEmitter creates a new snapshot emitter.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes s. Module entries are written in the order given; the
// lists keep their order too, so the dummy module stays last in MAIN.
func (e *Emitter) Emit(s *Snapshot) error {
	bw := bufio.NewWriter(e.w)

	fmt.Fprint(bw, header)
	fmt.Fprintln(bw, sectionModules)
	for _, entry := range s.Modules {
		emitEntry(bw, entry)
	}

	emitList(bw, sectionMain, s.Main)
	emitList(bw, sectionTests, s.Tests)
	emitList(bw, sectionFiles, s.Files)
	emitList(bw, sectionTestsFiles, s.TestsFiles)

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

func emitEntry(w io.Writer, entry Entry) {
	fmt.Fprintf(w, "  %s\n", entry.Name)
	fmt.Fprintf(w, "    license: %s\n", entry.License)
	fmt.Fprintf(w, "    applicability: %s\n", entry.Applicability)
	if entry.Conditional {
		fmt.Fprint(w, "    conditional: true\n")
	}
	if len(entry.Depends) > 0 {
		fmt.Fprint(w, "    depends:\n")
		for _, d := range entry.Depends {
			fmt.Fprintf(w, "      %s %s\n", d.Parent, d.Condition)
		}
	}
}

func emitList(w io.Writer, section string, items []string) {
	fmt.Fprintln(w, section)
	for _, item := range items {
		fmt.Fprintf(w, "  %s\n", item)
	}
}
