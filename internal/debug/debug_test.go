package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogfRespectsEnabled(t *testing.T) {
	oldEnabled, oldSink := enabled, sink
	defer func() { enabled, sink = oldEnabled, oldSink }()

	var buf bytes.Buffer
	sink = &buf

	enabled = false
	Logf("hidden %s", "message")
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}

	enabled = true
	Logf("visible %s", "message")
	out := buf.String()
	if !strings.Contains(out, "visible message") {
		t.Errorf("output = %q", out)
	}
	if !strings.HasPrefix(out, "[") {
		t.Errorf("missing timestamp prefix: %q", out)
	}
}

func TestSinkDefaultsToStderr(t *testing.T) {
	t.Setenv("RECMIG_DEBUG_FILE", "")
	if w := newSink(); w == nil {
		t.Fatal("nil sink")
	}
}

func TestSinkRotatingFile(t *testing.T) {
	t.Setenv("RECMIG_DEBUG_FILE", t.TempDir()+"/debug.log")
	t.Setenv("RECMIG_DEBUG_LOG_MAX_SIZE", "5")
	if w := newSink(); w == nil {
		t.Fatal("nil sink")
	}
}
