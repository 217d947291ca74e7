package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/Vantio-Games/lingual/internal/position"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// Formatter renders diagnostics for terminal output. File is optional;
// when present each diagnostic with a location gets a source snippet
// with a caret underline below its header line.
type Formatter struct {
	Filename string
	File     *position.SourceFile
	Color    bool
}

// NewFormatter creates a formatter over the given source file. A nil
// file disables snippets but keeps the header lines.
func NewFormatter(file *position.SourceFile, color bool) *Formatter {
	f := &Formatter{File: file, Color: color}
	if file != nil {
		f.Filename = file.Filename
	}
	return f
}

func (f *Formatter) paint(code, text string) string {
	if !f.Color {
		return text
	}
	return code + text + ansiReset
}

func (f *Formatter) severityLabel(s Severity) string {
	switch s {
	case SeverityWarning:
		return f.paint(ansiBold+ansiYellow, s.String())
	default:
		return f.paint(ansiBold+ansiRed, s.String())
	}
}

// Line renders the one-line header: file:line:col: severity[CODE]: message.
// The location prefix is dropped when the diagnostic has none.
func (f *Formatter) Line(d Diagnostic) string {
	label := fmt.Sprintf("%s[%s]", f.severityLabel(d.Severity), d.Code)

	if !d.Span.IsValid() {
		if f.Filename != "" {
			return fmt.Sprintf("%s: %s: %s", f.Filename, label, d.Message)
		}
		return fmt.Sprintf("%s: %s", label, d.Message)
	}

	loc := d.Span.Start.String()
	if f.Filename != "" {
		loc = f.Filename + ":" + loc
	}
	return fmt.Sprintf("%s: %s: %s", f.paint(ansiBold, loc), label, d.Message)
}

// Format renders a single diagnostic header line without a snippet.
// Callers gate color on cli.ColorEnabled so piped output stays plain.
func Format(file string, d Diagnostic, color bool) string {
	f := &Formatter{Filename: file, Color: color}
	return f.Line(d)
}

// Snippet renders the source line the diagnostic points at with a caret
// underline. Returns "" when no source is attached or the location falls
// outside it.
func (f *Formatter) Snippet(d Diagnostic) string {
	if f.File == nil || !d.Span.IsValid() {
		return ""
	}
	line := f.File.GetLine(d.Span.Start.Line)
	if line == "" && d.Span.Start.Line > len(f.File.Lines) {
		return ""
	}

	gutter := fmt.Sprintf("%d", d.Span.Start.Line)
	pad := strings.Repeat(" ", len(gutter))

	width := 1
	if d.Span.End.Line == d.Span.Start.Line && d.Span.End.Column > d.Span.Start.Column {
		width = d.Span.End.Column - d.Span.Start.Column
	} else if d.Span.End.Line > d.Span.Start.Line {
		// Multi-line span: underline to the end of the first line.
		if rest := len(line) - (d.Span.Start.Column - 1); rest > width {
			width = rest
		}
	}

	// Tabs in the source line keep their width in the caret row.
	indent := make([]byte, 0, d.Span.Start.Column-1)
	for i := 0; i < d.Span.Start.Column-1 && i < len(line); i++ {
		if line[i] == '\t' {
			indent = append(indent, '\t')
		} else {
			indent = append(indent, ' ')
		}
	}

	carets := f.paint(ansiBold+ansiBlue, strings.Repeat("^", width))
	var b strings.Builder
	fmt.Fprintf(&b, " %s | %s\n", gutter, line)
	fmt.Fprintf(&b, " %s | %s%s", pad, indent, carets)
	return b.String()
}

// Write renders every diagnostic to w, header line plus snippet.
func (f *Formatter) Write(w io.Writer, diags []Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(w, f.Line(d))
		if snippet := f.Snippet(d); snippet != "" {
			fmt.Fprintln(w, snippet)
		}
	}
}
