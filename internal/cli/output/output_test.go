package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{"auto on tty", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"empty is auto", "", true, ModeText},
		{"explicit json", ModeJSON, true, ModeJSON},
		{"explicit text piped", ModeText, false, ModeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
			assert.Equal(t, tt.isTTY, r.IsTTY())
		})
	}
}

func TestNewRenderer_BufferIsNotTerminal(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestRenderer_Writes(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	r := NewRendererWithTTY(out, errOut, false, ModeMarkdown)

	r.Header(2, "Import")
	r.Printf("%d elements\n", 3)
	r.Success("done")
	r.Muted("hidden")
	r.Warning("careful")
	r.Error("broken")

	assert.Equal(t, "## Import\n3 elements\n✓ done\n", out.String())
	assert.Equal(t, "Warning: careful\nError: broken\n", errOut.String())
}

func TestRenderer_TextHeader(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, true, ModeAuto)
	r.Header(1, "Tables")
	r.Muted("shown")
	assert.Equal(t, "Tables\n──────\nshown\n", out.String())
}

func TestRenderer_JSON(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"elements": 2}))
	assert.Equal(t, "{\n  \"elements\": 2\n}\n", out.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Title", FormatHeader(3, "Title"))
	assert.Equal(t, "- **Elements:** 12", FormatKeyValue("Elements", "12"))
	assert.Equal(t, "```sql\nSELECT 1;\n```", FormatCodeBlock("sql", "SELECT 1;\n"))
	assert.Equal(t, []string{"auto", "text", "markdown", "json"}, Modes())
}
