// Package position provides source code position tracking for the
// lingual compiler. Lexer tokens, AST nodes and diagnostics all carry
// positions from this package so error reporting stays consistent
// across the pipeline.
package position

import (
	"fmt"
	"strings"
)

// Position represents a single point in source code.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
}

// IsValid returns true if the position is valid.
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0
}

// String returns a string representation of the position.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before returns true if this position comes before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Column < other.Column
}

// After returns true if this position comes after other.
func (p Position) After(other Position) bool {
	if p.Line != other.Line {
		return p.Line > other.Line
	}
	return p.Column > other.Column
}

// Span represents a range of source code between two positions.
type Span struct {
	Start Position // Starting position (inclusive)
	End   Position // Ending position (exclusive)
}

// IsValid returns true if the span is valid.
func (s Span) IsValid() bool {
	return s.Start.IsValid() && s.End.IsValid() && !s.End.Before(s.Start)
}

// String returns a string representation of the span.
func (s Span) String() string {
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("%d:%d-%d", s.Start.Line, s.Start.Column, s.End.Column)
	}
	return fmt.Sprintf("%d:%d-%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// Contains returns true if the span contains the given position.
func (s Span) Contains(pos Position) bool {
	if !s.IsValid() || !pos.IsValid() {
		return false
	}
	return !pos.Before(s.Start) && pos.Before(s.End)
}

// Union returns a span that encompasses both this span and other.
func (s Span) Union(other Span) Span {
	if !s.IsValid() {
		return other
	}
	if !other.IsValid() {
		return s
	}

	start := s.Start
	if other.Start.Before(start) {
		start = other.Start
	}

	end := s.End
	if other.End.After(end) {
		end = other.End
	}

	return Span{Start: start, End: end}
}

// SourceFile represents a source file with content and line access for
// diagnostic rendering.
type SourceFile struct {
	Filename string   // File path
	Content  string   // Source code content
	Lines    []string // Lines of source code for efficient access
}

// NewSourceFile creates a new source file from content.
func NewSourceFile(filename, content string) *SourceFile {
	return &SourceFile{
		Filename: filename,
		Content:  content,
		Lines:    strings.Split(content, "\n"),
	}
}

// GetLine returns the specified line (1-based) or empty string if invalid.
func (sf *SourceFile) GetLine(lineNum int) string {
	if lineNum < 1 || lineNum > len(sf.Lines) {
		return ""
	}
	return sf.Lines[lineNum-1]
}

// GetSpanText returns the text covered by the span. Spans crossing
// lines are returned with their original newlines intact.
func (sf *SourceFile) GetSpanText(span Span) string {
	if !span.IsValid() {
		return ""
	}
	if span.Start.Line == span.End.Line {
		line := sf.GetLine(span.Start.Line)
		lo := span.Start.Column - 1
		hi := span.End.Column - 1
		if lo < 0 || hi > len(line) || lo > hi {
			return ""
		}
		return line[lo:hi]
	}

	var b strings.Builder
	for ln := span.Start.Line; ln <= span.End.Line; ln++ {
		line := sf.GetLine(ln)
		switch ln {
		case span.Start.Line:
			if span.Start.Column-1 <= len(line) {
				b.WriteString(line[span.Start.Column-1:])
			}
		case span.End.Line:
			b.WriteString("\n")
			if span.End.Column-1 <= len(line) {
				b.WriteString(line[:span.End.Column-1])
			}
		default:
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	return b.String()
}
