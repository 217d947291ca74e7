package position

import (
	"testing"
)

func TestPosition(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		pos      Position
		isValid  bool
	}{
		{
			name:     "Valid position",
			pos:      Position{Line: 10, Column: 5},
			isValid:  true,
			expected: "10:5",
		},
		{
			name:     "Start of file",
			pos:      Position{Line: 1, Column: 1},
			isValid:  true,
			expected: "1:1",
		},
		{
			name:    "Invalid position - zero line",
			pos:     Position{Line: 0, Column: 1},
			isValid: false,
		},
		{
			name:    "Invalid position - zero column",
			pos:     Position{Line: 1, Column: 0},
			isValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.IsValid(); got != tt.isValid {
				t.Errorf("Position.IsValid() = %v, want %v", got, tt.isValid)
			}

			if tt.isValid {
				if got := tt.pos.String(); got != tt.expected {
					t.Errorf("Position.String() = %v, want %v", got, tt.expected)
				}
			}
		})
	}
}

func TestPositionComparison(t *testing.T) {
	pos1 := Position{Line: 1, Column: 5}
	pos2 := Position{Line: 1, Column: 10}
	pos3 := Position{Line: 3, Column: 1}

	if !pos1.Before(pos2) {
		t.Error("pos1 should be before pos2")
	}

	if !pos2.After(pos1) {
		t.Error("pos2 should be after pos1")
	}

	if !pos2.Before(pos3) {
		t.Error("pos2 should be before pos3 (earlier line)")
	}

	if pos1.Before(pos1) {
		t.Error("a position should not be before itself")
	}
}

func TestSpan(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		span     Span
		isValid  bool
	}{
		{
			name: "Valid span same line",
			span: Span{
				Start: Position{Line: 1, Column: 5},
				End:   Position{Line: 1, Column: 10},
			},
			isValid:  true,
			expected: "1:5-10",
		},
		{
			name: "Valid span multiple lines",
			span: Span{
				Start: Position{Line: 1, Column: 5},
				End:   Position{Line: 3, Column: 2},
			},
			isValid:  true,
			expected: "1:5-3:2",
		},
		{
			name: "Invalid span - end before start",
			span: Span{
				Start: Position{Line: 2, Column: 1},
				End:   Position{Line: 1, Column: 1},
			},
			isValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.span.IsValid(); got != tt.isValid {
				t.Errorf("Span.IsValid() = %v, want %v", got, tt.isValid)
			}

			if tt.isValid {
				if got := tt.span.String(); got != tt.expected {
					t.Errorf("Span.String() = %v, want %v", got, tt.expected)
				}
			}
		})
	}
}

func TestSpanContains(t *testing.T) {
	span := Span{
		Start: Position{Line: 2, Column: 3},
		End:   Position{Line: 4, Column: 1},
	}

	tests := []struct {
		name     string
		pos      Position
		expected bool
	}{
		{"At start", Position{Line: 2, Column: 3}, true},
		{"Middle line", Position{Line: 3, Column: 50}, true},
		{"At end (exclusive)", Position{Line: 4, Column: 1}, false},
		{"Before start", Position{Line: 2, Column: 2}, false},
		{"After end", Position{Line: 5, Column: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := span.Contains(tt.pos); got != tt.expected {
				t.Errorf("Span.Contains(%v) = %v, want %v", tt.pos, got, tt.expected)
			}
		})
	}
}

func TestSpanUnion(t *testing.T) {
	a := Span{Start: Position{Line: 1, Column: 1}, End: Position{Line: 1, Column: 5}}
	b := Span{Start: Position{Line: 1, Column: 3}, End: Position{Line: 2, Column: 4}}

	u := a.Union(b)
	if u.Start != a.Start {
		t.Errorf("Union start = %v, want %v", u.Start, a.Start)
	}
	if u.End != b.End {
		t.Errorf("Union end = %v, want %v", u.End, b.End)
	}

	var invalid Span
	if got := a.Union(invalid); got != a {
		t.Errorf("Union with invalid span = %v, want %v", got, a)
	}
}

func TestSourceFile(t *testing.T) {
	sf := NewSourceFile("demo.lin", "let x = 1;\nlet y = 2;\nprint(x);")

	if got := sf.GetLine(2); got != "let y = 2;" {
		t.Errorf("GetLine(2) = %q, want %q", got, "let y = 2;")
	}

	if got := sf.GetLine(10); got != "" {
		t.Errorf("GetLine out of range = %q, want empty", got)
	}

	span := Span{Start: Position{Line: 1, Column: 5}, End: Position{Line: 1, Column: 6}}
	if got := sf.GetSpanText(span); got != "x" {
		t.Errorf("GetSpanText = %q, want %q", got, "x")
	}

	multi := Span{Start: Position{Line: 1, Column: 1}, End: Position{Line: 2, Column: 4}}
	if got := sf.GetSpanText(multi); got != "let x = 1;\nlet" {
		t.Errorf("GetSpanText multiline = %q, want %q", got, "let x = 1;\nlet")
	}
}
