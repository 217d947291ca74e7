package ast

// This file provides the one traversal shared by every pass: a read-only
// Walk and a bottom-up copying Rewrite. Passes never re-derive their own
// node dispatch; macro substitution, renaming and type annotation are all
// clients of these two functions.

// RewriteFunc transforms a single node whose children have already been
// rewritten. Returning the node unchanged keeps it; returning a different
// node replaces it. For statement positions a nil result drops the
// statement from its containing list. Expression positions must produce a
// non-nil Expression.
type RewriteFunc func(Node) Node

// RewriteProgram rebuilds a whole program bottom-up through fn. The input
// program is never mutated.
func RewriteProgram(prog *Program, fn RewriteFunc) *Program {
	out := &Program{Span: prog.Span, Body: make([]Statement, 0, len(prog.Body))}
	for _, stmt := range prog.Body {
		if rewritten := RewriteStmt(stmt, fn); rewritten != nil {
			out.Body = append(out.Body, rewritten)
		}
	}
	return out
}

// RewriteStmt rebuilds one statement bottom-up through fn. A nil result
// means the statement was dropped.
func RewriteStmt(stmt Statement, fn RewriteFunc) Statement {
	if stmt == nil {
		return nil
	}

	var rebuilt Statement
	switch s := stmt.(type) {
	case *FunctionDeclaration:
		rebuilt = &FunctionDeclaration{
			Span:       s.Span,
			Name:       cloneIdent(s.Name),
			Params:     cloneParams(s.Params),
			ReturnType: cloneAnnotation(s.ReturnType),
			Body:       rewriteBlock(s.Body, fn),
		}

	case *VariableDeclaration:
		n := &VariableDeclaration{
			Span:           s.Span,
			BindingKind:    s.BindingKind,
			Name:           cloneIdent(s.Name),
			TypeAnnotation: cloneAnnotation(s.TypeAnnotation),
		}
		if s.Initializer != nil {
			n.Initializer = RewriteExpr(s.Initializer, fn)
		}
		rebuilt = n

	case *ExpressionStatement:
		rebuilt = &ExpressionStatement{
			Span:       s.Span,
			Expression: RewriteExpr(s.Expression, fn),
		}

	case *IfStatement:
		n := &IfStatement{
			Span: s.Span,
			Test: RewriteExpr(s.Test, fn),
			Then: rewriteBlock(s.Then, fn),
		}
		if s.Else != nil {
			n.Else = RewriteStmt(s.Else, fn)
		}
		rebuilt = n

	case *WhileStatement:
		rebuilt = &WhileStatement{
			Span: s.Span,
			Test: RewriteExpr(s.Test, fn),
			Body: rewriteBlock(s.Body, fn),
		}

	case *ForStatement:
		n := &ForStatement{Span: s.Span, Body: rewriteBlock(s.Body, fn)}
		if s.Init != nil {
			n.Init = RewriteStmt(s.Init, fn)
		}
		if s.Test != nil {
			n.Test = RewriteExpr(s.Test, fn)
		}
		if s.Update != nil {
			n.Update = RewriteExpr(s.Update, fn)
		}
		rebuilt = n

	case *ReturnStatement:
		n := &ReturnStatement{Span: s.Span}
		if s.Value != nil {
			n.Value = RewriteExpr(s.Value, fn)
		}
		rebuilt = n

	case *BlockStatement:
		// rewriteBlock already offers the rebuilt block to fn.
		return rewriteBlock(s, fn)

	case *TypeDeclaration:
		fields := make([]*TypeField, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = &TypeField{
				Span:      f.Span,
				Name:      cloneIdent(f.Name),
				ValueType: cloneAnnotation(f.ValueType),
			}
		}
		rebuilt = &TypeDeclaration{Span: s.Span, Name: cloneIdent(s.Name), Fields: fields}

	case *MacroDefinition:
		params := make([]*Identifier, len(s.Params))
		for i, p := range s.Params {
			params[i] = cloneIdent(p)
		}
		body := make([]Statement, 0, len(s.Body))
		for _, bodyStmt := range s.Body {
			if rewritten := RewriteStmt(bodyStmt, fn); rewritten != nil {
				body = append(body, rewritten)
			}
		}
		rebuilt = &MacroDefinition{Span: s.Span, Name: cloneIdent(s.Name), Params: params, Body: body}

	case *MacroCall:
		rebuilt = rewriteMacroCall(s, fn)

	case *ApiDefinition:
		routes := make([]*ApiRoute, len(s.Routes))
		for i, r := range s.Routes {
			routes[i] = &ApiRoute{Span: r.Span, Method: r.Method, Path: r.Path, Handler: cloneIdent(r.Handler)}
		}
		rebuilt = &ApiDefinition{Span: s.Span, Name: cloneIdent(s.Name), Routes: routes}

	case *ModuleDefinition:
		rebuilt = &ModuleDefinition{Span: s.Span, Name: s.Name}

	case *ImportStatement:
		names := make([]*Identifier, len(s.Names))
		for i, n := range s.Names {
			names[i] = cloneIdent(n)
		}
		rebuilt = &ImportStatement{Span: s.Span, Names: names, From: s.From}

	case *ExportStatement:
		n := &ExportStatement{Span: s.Span, Name: cloneIdent(s.Name)}
		if s.Declaration != nil {
			n.Declaration = RewriteStmt(s.Declaration, fn)
		}
		rebuilt = n

	default:
		rebuilt = stmt
	}

	result := fn(rebuilt)
	if result == nil {
		return nil
	}
	return result.(Statement)
}

// RewriteExpr rebuilds one expression bottom-up through fn.
func RewriteExpr(expr Expression, fn RewriteFunc) Expression {
	if expr == nil {
		return nil
	}

	var rebuilt Expression
	switch e := expr.(type) {
	case *Identifier:
		rebuilt = &Identifier{Span: e.Span, Name: e.Name, InferredType: e.InferredType}

	case *Literal:
		rebuilt = &Literal{Span: e.Span, Value: e.Value, InferredType: e.InferredType}

	case *BinaryExpression:
		rebuilt = &BinaryExpression{
			Span:         e.Span,
			Operator:     e.Operator,
			Left:         RewriteExpr(e.Left, fn),
			Right:        RewriteExpr(e.Right, fn),
			InferredType: e.InferredType,
		}

	case *UnaryExpression:
		rebuilt = &UnaryExpression{
			Span:         e.Span,
			Operator:     e.Operator,
			Operand:      RewriteExpr(e.Operand, fn),
			InferredType: e.InferredType,
		}

	case *CallExpression:
		args := make([]Expression, len(e.Args))
		for i, a := range e.Args {
			args[i] = RewriteExpr(a, fn)
		}
		rebuilt = &CallExpression{
			Span:         e.Span,
			Callee:       RewriteExpr(e.Callee, fn),
			Args:         args,
			InferredType: e.InferredType,
		}

	case *MemberExpression:
		n := &MemberExpression{
			Span:         e.Span,
			Object:       RewriteExpr(e.Object, fn),
			Computed:     e.Computed,
			InferredType: e.InferredType,
		}
		// Non-computed property names are not references; they are
		// copied untouched so passes never rename or substitute them.
		if e.Computed {
			n.Property = RewriteExpr(e.Property, fn)
		} else if prop, ok := e.Property.(*Identifier); ok {
			n.Property = cloneIdent(prop)
		} else {
			n.Property = e.Property
		}
		rebuilt = n

	case *ArrayLiteral:
		elems := make([]Expression, len(e.Elements))
		for i, el := range e.Elements {
			elems[i] = RewriteExpr(el, fn)
		}
		rebuilt = &ArrayLiteral{Span: e.Span, Elements: elems, InferredType: e.InferredType}

	case *MacroCall:
		rebuilt = rewriteMacroCall(e, fn)

	default:
		rebuilt = expr
	}

	return fn(rebuilt).(Expression)
}

// rewriteBlock rebuilds a block, dropping statements fn removed and then
// offering the block itself to fn.
func rewriteBlock(block *BlockStatement, fn RewriteFunc) *BlockStatement {
	if block == nil {
		return nil
	}
	out := &BlockStatement{Span: block.Span, Statements: make([]Statement, 0, len(block.Statements))}
	for _, stmt := range block.Statements {
		if rewritten := RewriteStmt(stmt, fn); rewritten != nil {
			out.Statements = append(out.Statements, rewritten)
		}
	}
	if result, ok := fn(out).(*BlockStatement); ok {
		return result
	}
	return out
}

// rewriteMacroCall rebuilds a macro call's arguments. The macro name is a
// definition reference, not a value reference, so fn never sees it.
func rewriteMacroCall(call *MacroCall, fn RewriteFunc) *MacroCall {
	args := make([]Expression, len(call.Args))
	for i, a := range call.Args {
		args[i] = RewriteExpr(a, fn)
	}
	return &MacroCall{Span: call.Span, Name: cloneIdent(call.Name), Args: args, InferredType: call.InferredType}
}

func cloneIdent(id *Identifier) *Identifier {
	if id == nil {
		return nil
	}
	return &Identifier{Span: id.Span, Name: id.Name, InferredType: id.InferredType}
}

func cloneAnnotation(t *TypeAnnotation) *TypeAnnotation {
	if t == nil {
		return nil
	}
	return &TypeAnnotation{Span: t.Span, Name: t.Name}
}

func cloneParams(params []*Parameter) []*Parameter {
	out := make([]*Parameter, len(params))
	for i, p := range params {
		out[i] = &Parameter{
			Span:           p.Span,
			Name:           cloneIdent(p.Name),
			TypeAnnotation: cloneAnnotation(p.TypeAnnotation),
		}
	}
	return out
}

// identity is the no-op rewrite
func identity(n Node) Node { return n }

// CloneStmt returns a deep copy of a statement.
func CloneStmt(stmt Statement) Statement {
	return RewriteStmt(stmt, identity)
}

// CloneExpr returns a deep copy of an expression.
func CloneExpr(expr Expression) Expression {
	return RewriteExpr(expr, identity)
}

// CloneStmts returns a deep copy of a statement list.
func CloneStmts(stmts []Statement) []Statement {
	out := make([]Statement, 0, len(stmts))
	for _, stmt := range stmts {
		if cloned := CloneStmt(stmt); cloned != nil {
			out = append(out, cloned)
		}
	}
	return out
}

// Walk visits node and all of its descendants in depth-first pre-order.
// Returning false from fn skips the node's children.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}

	switch n := node.(type) {
	case *Program:
		for _, stmt := range n.Body {
			Walk(stmt, fn)
		}

	case *FunctionDeclaration:
		Walk(n.Name, fn)
		for _, p := range n.Params {
			Walk(p, fn)
		}
		if n.ReturnType != nil {
			Walk(n.ReturnType, fn)
		}
		if n.Body != nil {
			Walk(n.Body, fn)
		}

	case *Parameter:
		Walk(n.Name, fn)
		if n.TypeAnnotation != nil {
			Walk(n.TypeAnnotation, fn)
		}

	case *VariableDeclaration:
		Walk(n.Name, fn)
		if n.TypeAnnotation != nil {
			Walk(n.TypeAnnotation, fn)
		}
		if n.Initializer != nil {
			Walk(n.Initializer, fn)
		}

	case *ExpressionStatement:
		Walk(n.Expression, fn)

	case *IfStatement:
		Walk(n.Test, fn)
		Walk(n.Then, fn)
		if n.Else != nil {
			Walk(n.Else, fn)
		}

	case *WhileStatement:
		Walk(n.Test, fn)
		Walk(n.Body, fn)

	case *ForStatement:
		if n.Init != nil {
			Walk(n.Init, fn)
		}
		if n.Test != nil {
			Walk(n.Test, fn)
		}
		if n.Update != nil {
			Walk(n.Update, fn)
		}
		Walk(n.Body, fn)

	case *ReturnStatement:
		if n.Value != nil {
			Walk(n.Value, fn)
		}

	case *BlockStatement:
		for _, stmt := range n.Statements {
			Walk(stmt, fn)
		}

	case *TypeDeclaration:
		Walk(n.Name, fn)
		for _, f := range n.Fields {
			Walk(f, fn)
		}

	case *TypeField:
		Walk(n.Name, fn)
		Walk(n.ValueType, fn)

	case *MacroDefinition:
		Walk(n.Name, fn)
		for _, p := range n.Params {
			Walk(p, fn)
		}
		for _, stmt := range n.Body {
			Walk(stmt, fn)
		}

	case *MacroCall:
		Walk(n.Name, fn)
		for _, a := range n.Args {
			Walk(a, fn)
		}

	case *ApiDefinition:
		Walk(n.Name, fn)
		for _, r := range n.Routes {
			Walk(r, fn)
		}

	case *ApiRoute:
		Walk(n.Handler, fn)

	case *ImportStatement:
		for _, name := range n.Names {
			Walk(name, fn)
		}

	case *ExportStatement:
		if n.Declaration != nil {
			Walk(n.Declaration, fn)
		}
		if n.Name != nil {
			Walk(n.Name, fn)
		}

	case *BinaryExpression:
		Walk(n.Left, fn)
		Walk(n.Right, fn)

	case *UnaryExpression:
		Walk(n.Operand, fn)

	case *CallExpression:
		Walk(n.Callee, fn)
		for _, a := range n.Args {
			Walk(a, fn)
		}

	case *MemberExpression:
		Walk(n.Object, fn)
		Walk(n.Property, fn)

	case *ArrayLiteral:
		for _, el := range n.Elements {
			Walk(el, fn)
		}
	}
}

// Count returns how many reachable nodes satisfy pred.
func Count(node Node, pred func(Node) bool) int {
	count := 0
	Walk(node, func(n Node) bool {
		if pred(n) {
			count++
		}
		return true
	})
	return count
}
