package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewWithWriter(buf, false)
	l.Info("copying %d files", 3)
	l.Warn("asset %q shares a path", "a")
	l.Debug("hidden")
	out := buf.String()
	assert.Contains(t, out, "copying 3 files")
	assert.Contains(t, out, `asset "a" shares a path`)
	assert.NotContains(t, out, "hidden")

	buf.Reset()
	l.SetVerbose(true)
	l.Debug("shown <b>raw</b>")
	assert.Contains(t, buf.String(), "shown <b>raw</b>")
}

func TestConsoleLoggerQuiet(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewWithWriter(buf, true)
	l.SetVerbose(true)
	l.Info("info")
	l.Debug("debug")
	assert.Empty(t, buf.String())

	l.Error("boom")
	assert.Contains(t, buf.String(), "boom")
}
