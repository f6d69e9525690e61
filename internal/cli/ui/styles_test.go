package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2<<20))
}

func TestFormatHelpersKeepMessage(t *testing.T) {
	assert.Contains(t, FormatSuccess("uploaded"), "uploaded")
	assert.Contains(t, FormatError("failed"), "failed")
	assert.Contains(t, FormatInfo("note"), "note")
	assert.Contains(t, FormatWarning("careful"), "careful")
}

func TestTable(t *testing.T) {
	out := Table([]string{"NAME", "SIZE"}, [][]string{{"a-long-name.png", "1 B"}, {"b.png"}})
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "a-long-name.png")
	assert.Contains(t, lines[2], "b.png")
}

func TestProgressBarLine(t *testing.T) {
	bar := NewProgressBar(20)
	assert.True(t, strings.HasPrefix(bar.Line(50), "\r"))
	assert.Contains(t, bar.Line(150), "100%")
	assert.Contains(t, bar.Line(-1), "0%")
}
