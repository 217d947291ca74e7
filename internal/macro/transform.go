package macro

import (
	"fmt"
	"strings"
	"unicode"
)

// InlineFunc is a pure text transform behind an inline macro. It receives
// the literal argument texts and returns the replacement text.
type InlineFunc func(args []string) (string, error)

// registerBuiltins installs the fixed transform table. The names are the
// identifier forms callable as @name(...) in source.
func (e *Expander) registerBuiltins() {
	e.inline["uppercase"] = oneArg("uppercase", strings.ToUpper)
	e.inline["lowercase"] = oneArg("lowercase", strings.ToLower)
	e.inline["camelCase"] = oneArg("camelCase", CamelCase)
	e.inline["PascalCase"] = oneArg("PascalCase", PascalCase)
	e.inline["snake_case"] = oneArg("snake_case", SnakeCase)
	e.inline["kebab_case"] = oneArg("kebab_case", KebabCase)
}

func oneArg(name string, transform func(string) string) InlineFunc {
	return func(args []string) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("expects exactly 1 argument, got %d", len(args))
		}
		return transform(args[0]), nil
	}
}

// splitWords breaks an identifier-ish string into its words: separators
// are underscores, hyphens and spaces, plus lower-to-upper camel
// boundaries. An acronym run keeps together until its last capital
// starts a new word (HTTPServer -> HTTP, Server).
func splitWords(s string) []string {
	var words []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = nil
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '\t':
			flush()

		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				if unicode.IsLower(prev) || unicode.IsDigit(prev) {
					flush()
				} else if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
					flush()
				}
			}
			current = append(current, r)

		default:
			current = append(current, r)
		}
	}
	flush()
	return words
}

func titleWord(word string) string {
	runes := []rune(strings.ToLower(word))
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}

// CamelCase converts to camelCase: first word lowered, the rest title
// cased, no separators.
func CamelCase(s string) string {
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(words[0]))
	for _, w := range words[1:] {
		b.WriteString(titleWord(w))
	}
	return b.String()
}

// PascalCase converts to PascalCase: every word title cased.
func PascalCase(s string) string {
	var b strings.Builder
	for _, w := range splitWords(s) {
		b.WriteString(titleWord(w))
	}
	return b.String()
}

// SnakeCase converts to snake_case: lowered words joined by underscores.
func SnakeCase(s string) string {
	return joinLower(s, "_")
}

// KebabCase converts to kebab-case: lowered words joined by hyphens.
func KebabCase(s string) string {
	return joinLower(s, "-")
}

func joinLower(s, sep string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, sep)
}
