// Package lexer implements the lingual lexical analyzer.
// Tokenization is total: unrecognized characters become Error tokens and
// every scan ends with exactly one EOF token, so later stages can always
// report precise diagnostics instead of aborting.
package lexer

import (
	"fmt"

	"github.com/Vantio-Games/lingual/internal/position"
)

// TokenKind represents the kind of a token
type TokenKind int

// Token kinds - the closed classification the parser dispatches on
const (
	TokenEOF TokenKind = iota
	TokenError
	TokenKeyword
	TokenIdentifier
	TokenNumber
	TokenString
	TokenBool
	TokenOperator
	TokenPunct
)

// tokenNames provides string representations for token kinds
var tokenNames = map[TokenKind]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenKeyword:    "KEYWORD",
	TokenIdentifier: "IDENTIFIER",
	TokenNumber:     "NUMBER",
	TokenString:     "STRING",
	TokenBool:       "BOOL",
	TokenOperator:   "OPERATOR",
	TokenPunct:      "PUNCT",
}

// String returns a string representation of the token kind
func (tk TokenKind) String() string {
	if name, ok := tokenNames[tk]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(tk))
}

// Token represents a lexical token with position information.
// Tokens are immutable values produced in source order.
type Token struct {
	Kind   TokenKind
	Text   string
	Line   int // 1-based line of the first character
	Column int // 1-based column of the first character
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Kind: %s, Text: %q, Line: %d, Column: %d}",
		t.Kind, t.Text, t.Line, t.Column)
}

// Pos returns the position of the token's first character.
func (t Token) Pos() position.Position {
	return position.Position{Line: t.Line, Column: t.Column}
}

// End returns the position one past the token's last character. Newlines
// inside the text (unterminated strings) advance the line counter.
func (t Token) End() position.Position {
	line, col := t.Line, t.Column
	for i := 0; i < len(t.Text); i++ {
		if t.Text[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return position.Position{Line: line, Column: col}
}

// Span returns the source span covered by the token.
func (t Token) Span() position.Span {
	return position.Span{Start: t.Pos(), End: t.End()}
}

// keywords maps reserved words to their token kinds. Boolean literals
// re-classify to TokenBool; everything else here is TokenKeyword.
var keywords = map[string]TokenKind{
	"function": TokenKeyword,
	"fn":       TokenKeyword,
	"return":   TokenKeyword,
	"if":       TokenKeyword,
	"else":     TokenKeyword,
	"while":    TokenKeyword,
	"for":      TokenKeyword,
	"var":      TokenKeyword,
	"let":      TokenKeyword,
	"const":    TokenKeyword,
	"macro":    TokenKeyword,
	"end":      TokenKeyword,
	"type":     TokenKeyword,
	"module":   TokenKeyword,
	"import":   TokenKeyword,
	"export":   TokenKeyword,
	"from":     TokenKeyword,
	"api":      TokenKeyword,
	"null":     TokenKeyword,
	"string":   TokenKeyword,
	"number":   TokenKeyword,
	"boolean":  TokenKeyword,
	"void":     TokenKeyword,
	"object":   TokenKeyword,
	"array":    TokenKeyword,
	"true":     TokenBool,
	"false":    TokenBool,
}

// operators is the fixed operator table. Matching is greedy: NextToken
// tries a three-character slice first, then two, then one, so `==` never
// splits into two `=` tokens and `+=` is recognized whole.
var operators = map[string]bool{
	"==": true,
	"!=": true,
	"<=": true,
	">=": true,
	"+=": true,
	"-=": true,
	"*=": true,
	"/=": true,
	"%=": true,
	"&&": true,
	"||": true,
	"->": true,
	"=":  true,
	"<":  true,
	">":  true,
	"+":  true,
	"-":  true,
	"*":  true,
	"/":  true,
	"%":  true,
	"!":  true,
	":":  true,
	"@":  true,
}

// maxOperatorLen bounds the greedy operator match
const maxOperatorLen = 3

// punctuation is the single-character structural token set
var punctuation = map[byte]bool{
	'(': true,
	')': true,
	'{': true,
	'}': true,
	'[': true,
	']': true,
	';': true,
	',': true,
	'.': true,
}

// Lexer represents the lexical analyzer
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int  // current line number
	column       int  // current column number
}

// New creates a new lexer instance
func New(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// Tokenize scans the whole input and returns every token in source
// order. The result always ends with exactly one EOF token.
func Tokenize(input string) []Token {
	l := New(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens
		}
	}
}

// readChar reads the next character and advances position
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0 // ASCII NUL character represents "EOF"
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

// peekChar returns the next character without advancing position
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// skipWhitespace skips whitespace characters including newlines
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}

// skipLineComment consumes `//` through end of line
func (l *Lexer) skipLineComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

// skipBlockComment consumes `/*` through the matching `*/`. An
// unterminated block comment consumes to end of input silently.
func (l *Lexer) skipBlockComment() {
	l.readChar() // consume '/'
	l.readChar() // consume '*'
	for {
		if l.ch == 0 {
			return
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // consume '*'
			l.readChar() // consume '/'
			return
		}
		l.readChar()
	}
}

// readIdentifier reads an identifier starting at the current character
func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readNumber reads a number literal: an integer part with at most one
// fraction part. No exponents, no separators; a second `.` ends the token.
func (l *Lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.position]
}

// readString reads a string literal delimited by quote, preserving
// backslash escape sequences verbatim. The returned text excludes the
// delimiters. An unterminated string consumes to end of input and
// returns whatever was collected.
func (l *Lexer) readString(quote byte) string {
	start := l.position + 1 // skip the opening quote
	for {
		l.readChar()
		if l.ch == quote || l.ch == 0 {
			break
		}
		if l.ch == '\\' {
			l.readChar() // keep the escaped character as-is
		}
	}
	text := l.input[start:l.position]
	if l.ch == quote {
		l.readChar() // consume the closing quote
	}
	return text
}

// isLetter checks if character is ASCII letter
func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

// isDigit checks if character is ASCII digit
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// lookupIdent checks if identifier is a reserved word
func lookupIdent(ident string) TokenKind {
	if kind, ok := keywords[ident]; ok {
		return kind
	}
	return TokenIdentifier
}

// NextToken scans the input and returns the next token. It never fails;
// at end of input it returns EOF tokens indefinitely.
func (l *Lexer) NextToken() Token {
	for {
		l.skipWhitespace()
		if l.ch == '/' && l.peekChar() == '/' {
			l.skipLineComment()
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.skipBlockComment()
			continue
		}
		break
	}

	startLine, startColumn := l.line, l.column

	switch {
	case l.ch == 0:
		return Token{Kind: TokenEOF, Text: "", Line: l.line, Column: l.column}

	case isDigit(l.ch):
		text := l.readNumber()
		return Token{Kind: TokenNumber, Text: text, Line: startLine, Column: startColumn}

	case isLetter(l.ch) || l.ch == '_':
		text := l.readIdentifier()
		return Token{Kind: lookupIdent(text), Text: text, Line: startLine, Column: startColumn}

	case l.ch == '"' || l.ch == '\'':
		text := l.readString(l.ch)
		return Token{Kind: TokenString, Text: text, Line: startLine, Column: startColumn}
	}

	// Greedy operator match: longest candidate first.
	for n := maxOperatorLen; n >= 1; n-- {
		if l.position+n > len(l.input) {
			continue
		}
		candidate := l.input[l.position : l.position+n]
		if !operators[candidate] {
			continue
		}
		for i := 0; i < n; i++ {
			l.readChar()
		}
		return Token{Kind: TokenOperator, Text: candidate, Line: startLine, Column: startColumn}
	}

	if punctuation[l.ch] {
		text := string(l.ch)
		l.readChar()
		return Token{Kind: TokenPunct, Text: text, Line: startLine, Column: startColumn}
	}

	text := string(l.ch)
	l.readChar()
	return Token{Kind: TokenError, Text: text, Line: startLine, Column: startColumn}
}
