// Package patcher applies the *.diff overlays found in local module
// directories to the primary copy of a file.
package patcher

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Patcher runs patch(1) on a scratch copy of the file.
type Patcher struct {
	command string
}

// New creates a patcher that uses the patch program found in PATH.
func New() *Patcher {
	return &Patcher{command: "patch"}
}

// NewWithCommand creates a patcher that runs the given program instead of
// patch. The program is invoked as "<command> -s <file> <diff>".
func NewWithCommand(command string) *Patcher {
	return &Patcher{command: command}
}

// Available reports whether the patch program can be found.
func (p *Patcher) Available() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

// Apply applies diffs, in order, to original and returns the result.
// name only labels the scratch file and error messages.
func (p *Patcher) Apply(name string, original []byte, diffs [][]byte) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "glmod-patch-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	target := filepath.Join(tmpDir, scratchName(name))
	if err := os.WriteFile(target, original, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}

	for i, diff := range diffs {
		diffPath := filepath.Join(tmpDir, fmt.Sprintf("%d.diff", i))
		if err := os.WriteFile(diffPath, diff, 0644); err != nil {
			return nil, fmt.Errorf("writing diff for %s: %w", name, err)
		}

		var stderr bytes.Buffer
		cmd := exec.Command(p.command, "-s", target, diffPath)
		cmd.Dir = tmpDir
		cmd.Stdout = &stderr
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return nil, fmt.Errorf("patching %s: %w: %s", name, err, msg)
			}
			return nil, fmt.Errorf("patching %s: %w", name, err)
		}
	}

	patched, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("reading patched %s: %w", name, err)
	}
	return patched, nil
}

func scratchName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" || strings.HasPrefix(name, ".") {
		name = "module" + name
	}
	return name
}
