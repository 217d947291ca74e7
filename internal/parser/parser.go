// Package parser implements the lingual recursive descent parser.
//
// The grammar is backtrack-free: every production is chosen by inspecting
// the current token only. Expressions are parsed through an explicit
// precedence cascade, tightest-bound to loosest; each binary level folds
// left-to-right, assignment associates to the right. The parser does not
// recover: the first grammar violation aborts the parse of that file with
// a single ParseError.
package parser

import (
	"fmt"
	"strconv"

	"github.com/Vantio-Games/lingual/internal/ast"
	"github.com/Vantio-Games/lingual/internal/lexer"
	"github.com/Vantio-Games/lingual/internal/position"
)

// ParseError reports the first grammar violation in a file. It carries
// the offending token, its position, and the expectation that failed.
type ParseError struct {
	Pos      position.Position
	Got      lexer.Token
	Expected string
}

func (e *ParseError) Error() string {
	if e.Got.Kind == lexer.TokenEOF {
		return fmt.Sprintf("parse error at %s: expected %s, got end of input", e.Pos, e.Expected)
	}
	return fmt.Sprintf("parse error at %s: expected %s, got %s %q", e.Pos, e.Expected, e.Got.Kind, e.Got.Text)
}

// Parser represents the recursive descent parser
type Parser struct {
	tokens  []lexer.Token
	pos     int
	current lexer.Token
	peek    lexer.Token
	prev    lexer.Token
}

// New creates a parser over a token sequence. A missing terminal EOF
// token is tolerated and appended.
func New(tokens []lexer.Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != lexer.TokenEOF {
		tokens = append(tokens, lexer.Token{Kind: lexer.TokenEOF, Line: 1, Column: 1})
	}
	p := &Parser{tokens: tokens}
	p.current = p.tokens[0]
	if len(p.tokens) > 1 {
		p.peek = p.tokens[1]
	} else {
		p.peek = p.current
	}
	return p
}

// Parse parses a token sequence into a Program. The error, when non-nil,
// is always a *ParseError describing the first violation.
func Parse(tokens []lexer.Token) (prog *ast.Program, err error) {
	p := New(tokens)
	defer func() {
		if r := recover(); r != nil {
			if parseErr, ok := r.(*ParseError); ok {
				prog = nil
				err = parseErr
				return
			}
			panic(r)
		}
	}()
	return p.parseProgram(), nil
}

// ParseSource tokenizes and parses source text in one step.
func ParseSource(source string) (*ast.Program, error) {
	return Parse(lexer.Tokenize(source))
}

// nextToken advances the parser to the next token
func (p *Parser) nextToken() {
	p.prev = p.current
	p.pos++
	if p.pos < len(p.tokens) {
		p.current = p.tokens[p.pos]
	} else {
		p.current = p.tokens[len(p.tokens)-1]
	}
	if p.pos+1 < len(p.tokens) {
		p.peek = p.tokens[p.pos+1]
	} else {
		p.peek = p.tokens[len(p.tokens)-1]
	}
}

// fail aborts the parse with a ParseError at the current token
func (p *Parser) fail(expected string) {
	panic(&ParseError{Pos: p.current.Pos(), Got: p.current, Expected: expected})
}

func (p *Parser) currentIs(kind lexer.TokenKind) bool {
	return p.current.Kind == kind
}

func (p *Parser) atKeyword(names ...string) bool {
	if p.current.Kind != lexer.TokenKeyword {
		return false
	}
	for _, name := range names {
		if p.current.Text == name {
			return true
		}
	}
	return false
}

func (p *Parser) atOperator(ops ...string) bool {
	if p.current.Kind != lexer.TokenOperator {
		return false
	}
	for _, op := range ops {
		if p.current.Text == op {
			return true
		}
	}
	return false
}

func (p *Parser) atPunct(text string) bool {
	return p.current.Kind == lexer.TokenPunct && p.current.Text == text
}

// consume advances past the current token and returns it
func (p *Parser) consume() lexer.Token {
	tok := p.current
	p.nextToken()
	return tok
}

func (p *Parser) expectKeyword(name string) lexer.Token {
	if !p.atKeyword(name) {
		p.fail(fmt.Sprintf("keyword %q", name))
	}
	return p.consume()
}

func (p *Parser) expectOperator(op string) lexer.Token {
	if !p.atOperator(op) {
		p.fail(fmt.Sprintf("%q", op))
	}
	return p.consume()
}

func (p *Parser) expectPunct(text string) lexer.Token {
	if !p.atPunct(text) {
		p.fail(fmt.Sprintf("%q", text))
	}
	return p.consume()
}

func (p *Parser) expectIdentifier(what string) *ast.Identifier {
	if !p.currentIs(lexer.TokenIdentifier) {
		p.fail(what)
	}
	tok := p.consume()
	return ast.NewIdentifier(tok.Span(), tok.Text)
}

func (p *Parser) expectString(what string) lexer.Token {
	if !p.currentIs(lexer.TokenString) {
		p.fail(what)
	}
	return p.consume()
}

// spanFrom builds a span from a start position to the end of the most
// recently consumed token.
func (p *Parser) spanFrom(start position.Position) position.Span {
	return position.Span{Start: start, End: p.prev.End()}
}

// ====== Program and statements ======

func (p *Parser) parseProgram() *ast.Program {
	start := p.current.Pos()
	prog := &ast.Program{}
	for !p.currentIs(lexer.TokenEOF) {
		prog.Body = append(prog.Body, p.parseStatement())
	}
	end := p.prev.End()
	if len(prog.Body) == 0 {
		end = start
	}
	prog.Span = position.Span{Start: start, End: end}
	return prog
}

// parseStatement dispatches on the first token of a statement.
func (p *Parser) parseStatement() ast.Statement {
	if p.current.Kind == lexer.TokenKeyword {
		switch p.current.Text {
		case "function", "fn":
			return p.parseFunctionDeclaration()
		case "var", "let", "const":
			return p.parseVariableDeclaration()
		case "if":
			return p.parseIfStatement()
		case "while":
			return p.parseWhileStatement()
		case "for":
			return p.parseForStatement()
		case "return":
			return p.parseReturnStatement()
		case "macro":
			return p.parseMacroDefinition()
		case "type":
			return p.parseTypeDeclaration()
		case "import":
			return p.parseImportStatement()
		case "export":
			return p.parseExportStatement()
		case "api":
			return p.parseApiDefinition()
		case "module":
			return p.parseModuleDefinition()
		}
	}
	if p.atPunct("{") {
		return p.parseBlockStatement()
	}
	if p.atOperator("@") {
		start := p.current.Pos()
		expr := p.parseExpression()
		p.expectPunct(";")
		// A bare macro call keeps its statement form so expansion can
		// splice the macro body into the surrounding list.
		if call, ok := expr.(*ast.MacroCall); ok {
			return call
		}
		return &ast.ExpressionStatement{Span: p.spanFrom(start), Expression: expr}
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseFunctionDeclaration() *ast.FunctionDeclaration {
	start := p.consume().Pos() // function or fn
	name := p.expectIdentifier("function name")

	p.expectPunct("(")
	var params []*ast.Parameter
	for !p.atPunct(")") {
		if len(params) > 0 {
			p.expectPunct(",")
		}
		params = append(params, p.parseParameter())
	}
	p.expectPunct(")")

	var returnType *ast.TypeAnnotation
	if p.atOperator(":") {
		p.consume()
		returnType = p.parseTypeAnnotation()
	}

	body := p.parseBlockStatement()

	return &ast.FunctionDeclaration{
		Span:       p.spanFrom(start),
		Name:       name,
		Params:     params,
		ReturnType: returnType,
		Body:       body,
	}
}

func (p *Parser) parseParameter() *ast.Parameter {
	name := p.expectIdentifier("parameter name")
	param := &ast.Parameter{Span: name.Span, Name: name}
	if p.atOperator(":") {
		p.consume()
		param.TypeAnnotation = p.parseTypeAnnotation()
		param.Span = position.Span{Start: name.Span.Start, End: param.TypeAnnotation.Span.End}
	}
	return param
}

// parseTypeAnnotation accepts a type name: either an identifier or one of
// the reserved primitive type keywords.
func (p *Parser) parseTypeAnnotation() *ast.TypeAnnotation {
	if !p.currentIs(lexer.TokenIdentifier) && !p.currentIs(lexer.TokenKeyword) {
		p.fail("type name")
	}
	tok := p.consume()
	return &ast.TypeAnnotation{Span: tok.Span(), Name: tok.Text}
}

func (p *Parser) parseVariableDeclaration() *ast.VariableDeclaration {
	tok := p.consume() // var, let, or const
	start := tok.Pos()

	var binding ast.BindingKind
	switch tok.Text {
	case "var":
		binding = ast.BindVar
	case "let":
		binding = ast.BindLet
	case "const":
		binding = ast.BindConst
	}

	name := p.expectIdentifier("variable name")

	decl := &ast.VariableDeclaration{BindingKind: binding, Name: name}
	if p.atOperator(":") {
		p.consume()
		decl.TypeAnnotation = p.parseTypeAnnotation()
	}
	if p.atOperator("=") {
		p.consume()
		decl.Initializer = p.parseExpression()
	}
	p.expectPunct(";")

	decl.Span = p.spanFrom(start)
	return decl
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	start := p.current.Pos()
	expr := p.parseExpression()
	p.expectPunct(";")
	return &ast.ExpressionStatement{Span: p.spanFrom(start), Expression: expr}
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	start := p.consume().Pos() // if
	p.expectPunct("(")
	test := p.parseExpression()
	p.expectPunct(")")
	then := p.parseBlockStatement()

	stmt := &ast.IfStatement{Test: test, Then: then}
	if p.atKeyword("else") {
		p.consume()
		if p.atKeyword("if") {
			stmt.Else = p.parseIfStatement()
		} else {
			stmt.Else = p.parseBlockStatement()
		}
	}
	stmt.Span = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	start := p.consume().Pos() // while
	p.expectPunct("(")
	test := p.parseExpression()
	p.expectPunct(")")
	body := p.parseBlockStatement()
	return &ast.WhileStatement{Span: p.spanFrom(start), Test: test, Body: body}
}

func (p *Parser) parseForStatement() *ast.ForStatement {
	start := p.consume().Pos() // for
	p.expectPunct("(")

	stmt := &ast.ForStatement{}

	// Init clause: a variable declaration, an expression statement, or
	// empty. The declaration and expression forms consume their own `;`.
	if p.atKeyword("var", "let", "const") {
		stmt.Init = p.parseVariableDeclaration()
	} else if p.atPunct(";") {
		p.consume()
	} else {
		init := p.parseExpression()
		initStmt := &ast.ExpressionStatement{Span: init.GetSpan(), Expression: init}
		p.expectPunct(";")
		stmt.Init = initStmt
	}

	if !p.atPunct(";") {
		stmt.Test = p.parseExpression()
	}
	p.expectPunct(";")

	if !p.atPunct(")") {
		stmt.Update = p.parseExpression()
	}
	p.expectPunct(")")

	stmt.Body = p.parseBlockStatement()
	stmt.Span = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	start := p.consume().Pos() // return
	stmt := &ast.ReturnStatement{}
	if !p.atPunct(";") {
		stmt.Value = p.parseExpression()
	}
	p.expectPunct(";")
	stmt.Span = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	start := p.expectPunct("{").Pos()
	block := &ast.BlockStatement{}
	for !p.atPunct("}") {
		if p.currentIs(lexer.TokenEOF) {
			p.fail(`"}"`)
		}
		block.Statements = append(block.Statements, p.parseStatement())
	}
	p.expectPunct("}")
	block.Span = p.spanFrom(start)
	return block
}

func (p *Parser) parseMacroDefinition() *ast.MacroDefinition {
	start := p.consume().Pos() // macro
	name := p.expectIdentifier("macro name")

	p.expectPunct("(")
	var params []*ast.Identifier
	for !p.atPunct(")") {
		if len(params) > 0 {
			p.expectPunct(",")
		}
		params = append(params, p.expectIdentifier("macro parameter"))
	}
	p.expectPunct(")")

	var body []ast.Statement
	for !p.atKeyword("end") {
		if p.currentIs(lexer.TokenEOF) {
			p.fail(`keyword "end"`)
		}
		body = append(body, p.parseStatement())
	}
	p.expectKeyword("end")

	return &ast.MacroDefinition{Span: p.spanFrom(start), Name: name, Params: params, Body: body}
}

func (p *Parser) parseTypeDeclaration() *ast.TypeDeclaration {
	start := p.consume().Pos() // type
	name := p.expectIdentifier("type name")

	p.expectPunct("{")
	var fields []*ast.TypeField
	for !p.atPunct("}") {
		if p.currentIs(lexer.TokenEOF) {
			p.fail(`"}"`)
		}
		fieldName := p.expectIdentifier("field name")
		p.expectOperator(":")
		valueType := p.parseTypeAnnotation()
		// Field separators are optional.
		if p.atPunct(";") {
			p.consume()
		}
		fields = append(fields, &ast.TypeField{
			Span:      position.Span{Start: fieldName.Span.Start, End: valueType.Span.End},
			Name:      fieldName,
			ValueType: valueType,
		})
	}
	p.expectPunct("}")

	return &ast.TypeDeclaration{Span: p.spanFrom(start), Name: name, Fields: fields}
}

func (p *Parser) parseImportStatement() *ast.ImportStatement {
	start := p.consume().Pos() // import

	var names []*ast.Identifier
	names = append(names, p.expectIdentifier("import name"))
	for p.atPunct(",") {
		p.consume()
		names = append(names, p.expectIdentifier("import name"))
	}

	p.expectKeyword("from")
	from := p.expectString("module path string")
	p.expectPunct(";")

	return &ast.ImportStatement{Span: p.spanFrom(start), Names: names, From: from.Text}
}

func (p *Parser) parseExportStatement() *ast.ExportStatement {
	start := p.consume().Pos() // export

	// `export name;` re-exports an existing binding; any other form wraps
	// the declaration that follows.
	if p.currentIs(lexer.TokenIdentifier) {
		name := p.expectIdentifier("export name")
		p.expectPunct(";")
		return &ast.ExportStatement{Span: p.spanFrom(start), Name: name}
	}

	decl := p.parseStatement()
	return &ast.ExportStatement{Span: p.spanFrom(start), Declaration: decl}
}

func (p *Parser) parseApiDefinition() *ast.ApiDefinition {
	start := p.consume().Pos() // api
	name := p.expectIdentifier("api name")

	p.expectPunct("{")
	var routes []*ast.ApiRoute
	for !p.atPunct("}") {
		if p.currentIs(lexer.TokenEOF) {
			p.fail(`"}"`)
		}
		routes = append(routes, p.parseApiRoute())
	}
	p.expectPunct("}")

	return &ast.ApiDefinition{Span: p.spanFrom(start), Name: name, Routes: routes}
}

func (p *Parser) parseApiRoute() *ast.ApiRoute {
	method := p.expectIdentifier("route method")
	path := p.expectString("route path string")
	p.expectOperator("->")
	handler := p.expectIdentifier("route handler")
	p.expectPunct(";")

	return &ast.ApiRoute{
		Span:    position.Span{Start: method.Span.Start, End: p.prev.End()},
		Method:  method.Name,
		Path:    path.Text,
		Handler: handler,
	}
}

func (p *Parser) parseModuleDefinition() *ast.ModuleDefinition {
	start := p.consume().Pos() // module

	name := p.expectIdentifier("module name").Name
	for p.atPunct(".") {
		p.consume()
		name += "." + p.expectIdentifier("module name segment").Name
	}
	p.expectPunct(";")

	return &ast.ModuleDefinition{Span: p.spanFrom(start), Name: name}
}

// ====== Expressions ======
//
// The precedence cascade, tightest-bound to loosest:
// assignment -> logicalOr -> logicalAnd -> equality -> relational ->
// additive -> multiplicative -> unary -> postfix -> primary.

func (p *Parser) parseExpression() ast.Expression {
	return p.parseAssignment()
}

// parseAssignment is right-associative: one optional recursive call on
// the right-hand side. Assignment keeps the BinaryExpression shape with
// its operator text preserved.
func (p *Parser) parseAssignment() ast.Expression {
	left := p.parseLogicalOr()

	if p.atOperator("=", "+=", "-=", "*=", "/=", "%=") {
		op := p.consume().Text
		right := p.parseAssignment()
		return &ast.BinaryExpression{
			Span:     position.Span{Start: left.GetSpan().Start, End: right.GetSpan().End},
			Operator: op,
			Left:     left,
			Right:    right,
		}
	}
	return left
}

// binaryLeft folds a left-associative level: parse one operand at the
// tighter level, then loop consuming (operator, operand) pairs.
func (p *Parser) binaryLeft(next func() ast.Expression, ops ...string) ast.Expression {
	left := next()
	for p.atOperator(ops...) {
		op := p.consume().Text
		right := next()
		left = &ast.BinaryExpression{
			Span:     position.Span{Start: left.GetSpan().Start, End: right.GetSpan().End},
			Operator: op,
			Left:     left,
			Right:    right,
		}
	}
	return left
}

func (p *Parser) parseLogicalOr() ast.Expression {
	return p.binaryLeft(p.parseLogicalAnd, "||")
}

func (p *Parser) parseLogicalAnd() ast.Expression {
	return p.binaryLeft(p.parseEquality, "&&")
}

func (p *Parser) parseEquality() ast.Expression {
	return p.binaryLeft(p.parseRelational, "==", "!=")
}

func (p *Parser) parseRelational() ast.Expression {
	return p.binaryLeft(p.parseAdditive, "<", "<=", ">", ">=")
}

func (p *Parser) parseAdditive() ast.Expression {
	return p.binaryLeft(p.parseMultiplicative, "+", "-")
}

func (p *Parser) parseMultiplicative() ast.Expression {
	return p.binaryLeft(p.parseUnary, "*", "/", "%")
}

// parseUnary recurses into itself so prefixes stack.
func (p *Parser) parseUnary() ast.Expression {
	if p.atOperator("+", "-", "!") {
		tok := p.consume()
		operand := p.parseUnary()
		return &ast.UnaryExpression{
			Span:     position.Span{Start: tok.Pos(), End: operand.GetSpan().End},
			Operator: tok.Text,
			Operand:  operand,
		}
	}
	return p.parsePostfix()
}

// parsePostfix loops greedily over call, member and index suffixes,
// threading the growing expression as the new base.
func (p *Parser) parsePostfix() ast.Expression {
	expr := p.parsePrimary()

	for {
		switch {
		case p.atPunct("("):
			p.consume()
			var args []ast.Expression
			for !p.atPunct(")") {
				if len(args) > 0 {
					p.expectPunct(",")
				}
				args = append(args, p.parseExpression())
			}
			p.expectPunct(")")
			expr = &ast.CallExpression{
				Span:   position.Span{Start: expr.GetSpan().Start, End: p.prev.End()},
				Callee: expr,
				Args:   args,
			}

		case p.atPunct("."):
			p.consume()
			property := p.expectIdentifier("property name")
			expr = &ast.MemberExpression{
				Span:     position.Span{Start: expr.GetSpan().Start, End: property.Span.End},
				Object:   expr,
				Property: property,
			}

		case p.atPunct("["):
			p.consume()
			index := p.parseExpression()
			p.expectPunct("]")
			expr = &ast.MemberExpression{
				Span:     position.Span{Start: expr.GetSpan().Start, End: p.prev.End()},
				Object:   expr,
				Property: index,
				Computed: true,
			}

		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() ast.Expression {
	switch {
	case p.currentIs(lexer.TokenNumber):
		tok := p.consume()
		value, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			panic(&ParseError{Pos: tok.Pos(), Got: tok, Expected: "number literal"})
		}
		return ast.NewLiteral(tok.Span(), value)

	case p.currentIs(lexer.TokenString):
		tok := p.consume()
		return ast.NewLiteral(tok.Span(), tok.Text)

	case p.currentIs(lexer.TokenBool):
		tok := p.consume()
		return ast.NewLiteral(tok.Span(), tok.Text == "true")

	case p.atKeyword("null"):
		tok := p.consume()
		return ast.NewLiteral(tok.Span(), nil)

	case p.currentIs(lexer.TokenIdentifier):
		tok := p.consume()
		return ast.NewIdentifier(tok.Span(), tok.Text)

	case p.atPunct("("):
		p.consume()
		expr := p.parseExpression()
		p.expectPunct(")")
		return expr

	case p.atPunct("["):
		start := p.consume().Pos()
		var elements []ast.Expression
		for !p.atPunct("]") {
			if len(elements) > 0 {
				p.expectPunct(",")
			}
			elements = append(elements, p.parseExpression())
		}
		p.expectPunct("]")
		return &ast.ArrayLiteral{Span: p.spanFrom(start), Elements: elements}

	case p.atOperator("@"):
		return p.parseMacroCall()
	}

	p.fail("expression")
	return nil
}

func (p *Parser) parseMacroCall() *ast.MacroCall {
	start := p.expectOperator("@").Pos()
	name := p.expectIdentifier("macro name")

	p.expectPunct("(")
	var args []ast.Expression
	for !p.atPunct(")") {
		if len(args) > 0 {
			p.expectPunct(",")
		}
		args = append(args, p.parseExpression())
	}
	p.expectPunct(")")

	return &ast.MacroCall{Span: p.spanFrom(start), Name: name, Args: args}
}
