// Package output renders command results for terminals, markdown consumers
// and machines.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/term"
)

// Mode selects how a Renderer formats its output.
type Mode string

// Output modes.
const (
	// ModeAuto renders text on a terminal and markdown otherwise.
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Modes lists the accepted values of the --output flag.
func Modes() []string {
	return []string{string(ModeAuto), string(ModeText), string(ModeMarkdown), string(ModeJSON)}
}

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	mode   Mode
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	return &Renderer{out: out, errOut: errOut, isTTY: isTTY, mode: mode}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}

// EffectiveMode resolves ModeAuto against the terminal state.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool {
	return r.isTTY
}

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// ErrWriter returns the diagnostic output writer.
func (r *Renderer) ErrWriter() io.Writer {
	return r.errOut
}

// Println writes a line to standard output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output to standard output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a header at the given level.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeText {
		r.Println(text)
		r.Println(strings.Repeat("─", len([]rune(text))))
		return
	}
	r.Println(FormatHeader(level, text))
}

// Success writes a completion message.
func (r *Renderer) Success(msg string) {
	r.Println("✓ " + msg)
}

// Warning writes a warning to diagnostic output.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, "Warning: "+msg)
}

// Error writes an error to diagnostic output.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, "Error: "+msg)
}

// Muted writes secondary information. It is omitted outside of text mode.
func (r *Renderer) Muted(msg string) {
	if r.EffectiveMode() == ModeText {
		r.Println(msg)
	}
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatHeader formats a markdown header.
func FormatHeader(level int, text string) string {
	return strings.Repeat("#", max(level, 1)) + " " + text
}

// FormatKeyValue formats a markdown list item.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}

// FormatCodeBlock wraps content in a fenced code block.
func FormatCodeBlock(lang, content string) string {
	return "```" + lang + "\n" + strings.TrimRight(content, "\n") + "\n```"
}
