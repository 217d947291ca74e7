package cli

import "os"

// ColorEnabled reports whether output written to f should carry ANSI
// escape sequences. Color is disabled when the NO_COLOR convention is
// in effect or when f is not a terminal, so redirected and piped
// output stays plain text.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if f == nil {
		return false
	}
	return IsTerminal(f.Fd())
}
