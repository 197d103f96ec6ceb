package snapshot

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// WriteYAML writes s as a YAML document.
func WriteYAML(w io.Writer, s *Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return enc.Close()
}

// ReadYAML reads a snapshot written by WriteYAML.
func ReadYAML(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}
