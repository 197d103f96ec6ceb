package diag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogSink_Warn(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(&buf, false)

	sink.Warn("module foo lacks a License")
	sink.Debugf("resolving %s", "foo")

	out := buf.String()
	assert.Contains(t, out, "glmod")
	assert.Contains(t, out, "module foo lacks a License")
	assert.NotContains(t, out, "resolving foo")
}

func TestLogSink_Verbose(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(&buf, true)

	sink.Debugf("resolving %s", "foo")

	assert.Contains(t, buf.String(), "resolving foo")
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Warn("a")
	r.Warn("b")

	got := r.Messages()
	assert.Equal(t, []string{"a", "b"}, got)

	got[0] = "changed"
	assert.Equal(t, "a", r.Messages()[0])
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard.Warn("ignored") })
}
