package msg

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevNoColor, prevVerbose, prevQuiet := Out, color.NoColor, Verbose, Quiet
	Out, color.NoColor = &buf, true
	t.Cleanup(func() {
		Out, color.NoColor, Verbose, Quiet = prevOut, prevNoColor, prevVerbose, prevQuiet
	})
	return &buf
}

func TestLevels(t *testing.T) {
	buf := capture(t)

	Info("generated %d files", 3)
	Warn("dependency %q not found", "zlib")
	Error("boom")

	assert.Equal(t, "info: generated 3 files\nwarn: dependency \"zlib\" not found\nerror: boom\n", buf.String())
}

func TestDebugRequiresVerbose(t *testing.T) {
	buf := capture(t)

	Verbose = false
	Debug("hidden")
	assert.Empty(t, buf.String())

	Verbose = true
	Debug("shown %s", "now")
	assert.Equal(t, "debug: shown now\n", buf.String())
}

func TestQuietSuppressesInfo(t *testing.T) {
	buf := capture(t)

	Quiet = true
	Info("hidden")
	Warn("still shown")
	assert.Equal(t, "warn: still shown\n", buf.String())
}

func TestIndentWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &IndentWriter{Indent: "  ", W: &buf}

	_, err := w.Write([]byte("Counting objects\nDone\n"))
	assert.NoError(t, err)
	assert.Equal(t, "  Counting objects\n  Done\n", buf.String())
}
