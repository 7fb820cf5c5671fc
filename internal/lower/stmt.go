package lower

import (
	goast "go/ast"
	"go/token"
	"go/types"
	"strings"

	"github.com/gnolang/cflow/ast"
)

// block lowers b, opening a scope for it when scoped is set.
func (l *lowerer) block(b *goast.BlockStmt, scoped bool) *ast.Block {
	if scoped {
		l.push()
		defer l.pop()
	}
	out := at(l, &ast.Block{}, b.Lbrace)
	out.Stmts = l.stmts(b.List)
	return out
}

// stmts lowers a statement list. A defer wraps the rest of the list in a
// try whose finally block runs the deferred call.
func (l *lowerer) stmts(list []goast.Stmt) []ast.Stmt {
	var out []ast.Stmt
	for i, s := range list {
		d, ok := s.(*goast.DeferStmt)
		if !ok {
			out = append(out, l.stmt(s)...)
			continue
		}
		try := at(l, &ast.Try{
			Body:    ast.Seq(l.stmts(list[i+1:])...),
			Finally: at(l, l.deferred(d.Call), d.Call.Pos()),
		}, d.Defer)
		return append(out, try)
	}
	return out
}

// deferred returns the code a deferred call runs at exit. The body of a
// deferred closure without parameters is inlined.
func (l *lowerer) deferred(call *goast.CallExpr) *ast.Block {
	if lit, ok := call.Fun.(*goast.FuncLit); ok && lit.Type.Params.NumFields() == 0 {
		return l.block(lit.Body, true)
	}
	return ast.Seq(l.exprStmt(call)...)
}

// single returns stmts as one statement.
func single(stmts []ast.Stmt) ast.Stmt {
	switch len(stmts) {
	case 0:
		return nil
	case 1:
		return stmts[0]
	}
	return ast.Seq(stmts...)
}

func (l *lowerer) stmt(s goast.Stmt) []ast.Stmt {
	switch s := s.(type) {
	case nil:
		return nil
	case *goast.ExprStmt:
		return l.exprStmt(s.X)
	case *goast.AssignStmt:
		return l.assign(s)
	case *goast.IncDecStmt:
		return []ast.Stmt{l.eval(at(l, &ast.IncDec{
			Target:  l.expr(s.X),
			Inc:     s.Tok == token.INC,
			Postfix: true,
		}, s.Pos()))}
	case *goast.DeclStmt:
		return l.genDecl(s.Decl)
	case *goast.ReturnStmt:
		return l.ret(s)
	case *goast.BlockStmt:
		return []ast.Stmt{l.block(s, true)}
	case *goast.IfStmt:
		return []ast.Stmt{l.ifStmt(s)}
	case *goast.ForStmt:
		return []ast.Stmt{l.forStmt(s)}
	case *goast.RangeStmt:
		return []ast.Stmt{l.rangeStmt(s)}
	case *goast.SwitchStmt:
		return []ast.Stmt{l.switchStmt(s)}
	case *goast.TypeSwitchStmt:
		return []ast.Stmt{l.typeSwitch(s)}
	case *goast.SelectStmt:
		return []ast.Stmt{l.selectStmt(s)}
	case *goast.LabeledStmt:
		body := single(l.stmt(s.Stmt))
		if body == nil {
			body = at(l, &ast.EmptyStmt{}, s.Colon)
		}
		return []ast.Stmt{at(l, &ast.Labeled{Label: s.Label.Name, Body: body}, s.Pos())}
	case *goast.BranchStmt:
		return l.branch(s)
	case *goast.GoStmt:
		return []ast.Stmt{l.eval(l.expr(s.Call))}
	case *goast.DeferStmt:
		return l.exprStmt(s.Call)
	case *goast.SendStmt:
		call := at(l, &ast.Call{Func: "send", Args: []ast.Expr{l.expr(s.Chan), l.expr(s.Value)}}, s.Arrow)
		return []ast.Stmt{l.eval(call)}
	case *goast.EmptyStmt:
		return []ast.Stmt{at(l, &ast.EmptyStmt{}, s.Pos())}
	default:
		return []ast.Stmt{at(l, &ast.Bad{Message: "unsupported statement"}, s.Pos())}
	}
}

func (l *lowerer) eval(e ast.Expr) *ast.ExprStmt {
	s := &ast.ExprStmt{X: e}
	s.Pos = e.Meta().Pos
	return s
}

// exprStmt lowers an expression evaluated for its effects. A call of the
// panic builtin throws.
func (l *lowerer) exprStmt(e goast.Expr) []ast.Stmt {
	if call, ok := e.(*goast.CallExpr); ok {
		if id, ok := call.Fun.(*goast.Ident); ok && id.Name == "panic" {
			value := at(l, &ast.New{Type: PanicType, Args: l.exprs(call.Args)}, call.Pos())
			return []ast.Stmt{at(l, &ast.Throw{X: value}, call.Pos())}
		}
	}
	return []ast.Stmt{at(l, &ast.ExprStmt{X: l.expr(e)}, e.Pos())}
}

// values returns the expressions assigned to n targets. A single call
// assigned to several targets yields its results: the call itself, then
// placeholders for the other results.
func (l *lowerer) values(rhs []goast.Expr, n int) []ast.Expr {
	if len(rhs) == n {
		return l.exprs(rhs)
	}
	out := make([]ast.Expr, n)
	if len(rhs) > 0 {
		out[0] = l.expr(rhs[0])
	}
	for i := 1; i < n; i++ {
		out[i] = &ast.Literal{}
	}
	return out
}

func (l *lowerer) assign(s *goast.AssignStmt) []ast.Stmt {
	if s.Tok != token.DEFINE && s.Tok != token.ASSIGN {
		op := ast.Op(strings.TrimSuffix(s.Tok.String(), "="))
		a := at(l, &ast.Assign{Op: op, Target: l.expr(s.Lhs[0]), Value: l.expr(s.Rhs[0])}, s.TokPos)
		return []ast.Stmt{at(l, &ast.ExprStmt{X: a}, s.Pos())}
	}

	values := l.values(s.Rhs, len(s.Lhs))
	var out []ast.Stmt
	var declared []string
	for i, lhs := range s.Lhs {
		value := values[i]
		id, isIdent := lhs.(*goast.Ident)
		switch {
		case isIdent && id.Name == "_":
			if _, placeholder := value.(*ast.Literal); !placeholder {
				out = append(out, at(l, &ast.ExprStmt{X: value}, s.Pos()))
			}
		case isIdent && s.Tok == token.DEFINE && !l.declaredHere(id.Name):
			v := &ast.Variable{Name: id.Name, Kind: ast.KindLocal}
			out = append(out, l.let(v, value, id.Pos()))
			declared = append(declared, id.Name)
		default:
			a := at(l, &ast.Assign{Target: l.expr(lhs), Value: value}, s.TokPos)
			out = append(out, at(l, &ast.ExprStmt{X: a}, lhs.Pos()))
		}
	}
	// the new names are in scope after the statement
	for _, name := range declared {
		l.declare(name)
	}
	return out
}

func (l *lowerer) genDecl(d goast.Decl) []ast.Stmt {
	gd, ok := d.(*goast.GenDecl)
	if !ok || (gd.Tok != token.VAR && gd.Tok != token.CONST) {
		return nil
	}
	var out []ast.Stmt
	for _, spec := range gd.Specs {
		vs, ok := spec.(*goast.ValueSpec)
		if !ok {
			continue
		}
		var values []ast.Expr
		if len(vs.Values) > 0 {
			values = l.values(vs.Values, len(vs.Names))
		}
		decl := at(l, &ast.DeclStmt{}, vs.Pos())
		for i, name := range vs.Names {
			var init ast.Expr
			switch {
			case values != nil:
				init = values[i]
			case gd.Tok == token.CONST:
				// implicit repetition of the previous expression
				init = &ast.Literal{}
			default:
				init = zero(vs.Type)
			}
			if name.Name == "_" {
				if _, placeholder := init.(*ast.Literal); !placeholder {
					out = append(out, at(l, &ast.ExprStmt{X: init}, name.Pos()))
				}
				continue
			}
			v := &ast.Variable{Name: name.Name, Kind: ast.KindLocal, Final: gd.Tok == token.CONST}
			if vs.Type != nil {
				v.Type = &ast.Type{Name: types.ExprString(vs.Type)}
			}
			vd := at(l, &ast.VarDecl{Var: v, Init: init}, name.Pos())
			v.Decl = vd
			decl.Vars = append(decl.Vars, vd)
		}
		if len(decl.Vars) > 0 {
			out = append(out, decl)
		}
		for _, name := range vs.Names {
			l.declare(name.Name)
		}
	}
	return out
}

func (l *lowerer) ret(s *goast.ReturnStmt) []ast.Stmt {
	ret := at(l, &ast.Return{}, s.Pos())
	if len(s.Results) == 0 {
		return []ast.Stmt{ret}
	}
	var out []ast.Stmt
	last := len(s.Results) - 1
	for _, r := range s.Results[:last] {
		out = append(out, at(l, &ast.ExprStmt{X: l.expr(r)}, r.Pos()))
	}
	ret.Value = l.expr(s.Results[last])
	return append(out, ret)
}

// withInit runs the init statement of an if or switch before s, in a block
// that scopes the names it declares.
func withInit(init []ast.Stmt, s ast.Stmt) ast.Stmt {
	if len(init) == 0 {
		return s
	}
	b := ast.Seq(append(init, s)...)
	b.Pos = s.Meta().Pos
	return b
}

func (l *lowerer) ifStmt(s *goast.IfStmt) ast.Stmt {
	l.push()
	defer l.pop()

	init := l.stmt(s.Init)
	out := at(l, &ast.If{Cond: l.expr(s.Cond), Then: l.block(s.Body, true)}, s.If)
	switch els := s.Else.(type) {
	case *goast.BlockStmt:
		out.Else = l.block(els, true)
	case *goast.IfStmt:
		out.Else = l.ifStmt(els)
	}
	return withInit(init, out)
}

func (l *lowerer) forStmt(s *goast.ForStmt) ast.Stmt {
	l.push()
	defer l.pop()

	out := at(l, &ast.For{}, s.For)
	out.Init = single(l.stmt(s.Init))
	if s.Cond != nil {
		out.Cond = l.expr(s.Cond)
	}
	out.Update = single(l.stmt(s.Post))
	out.Body = l.block(s.Body, true)
	return out
}

func (l *lowerer) rangeStmt(s *goast.RangeStmt) ast.Stmt {
	l.push()
	defer l.pop()

	out := at(l, &ast.ForEach{Iter: l.expr(s.X)}, s.For)
	var prologue []ast.Stmt
	targets := []goast.Expr{s.Key, s.Value}
	for _, t := range targets {
		if t == nil {
			continue
		}
		id, isIdent := t.(*goast.Ident)
		if isIdent && id.Name == "_" {
			continue
		}
		if s.Tok == token.DEFINE && isIdent {
			v := &ast.Variable{Name: id.Name, Kind: ast.KindLoopParam}
			l.declare(id.Name)
			if out.Param == nil {
				out.Param = v
				continue
			}
			prologue = append(prologue, l.let(v, &ast.Literal{}, id.Pos()))
			continue
		}
		a := at(l, &ast.Assign{Target: l.expr(t), Value: &ast.Literal{}}, t.Pos())
		prologue = append(prologue, at(l, &ast.ExprStmt{X: a}, t.Pos()))
	}
	body := l.block(s.Body, true)
	body.Stmts = append(prologue, body.Stmts...)
	out.Body = body
	return out
}

// clause lowers the statements of a switch or select clause into a scoped
// block. Control leaves the switch at the end of the clause unless it ends
// with fallthrough.
func (l *lowerer) clause(pos token.Pos, prologue []ast.Stmt, body []goast.Stmt) *ast.Block {
	l.push()
	defer l.pop()

	fallsThrough := false
	if n := len(body); n > 0 {
		if br, ok := body[n-1].(*goast.BranchStmt); ok && br.Tok == token.FALLTHROUGH {
			fallsThrough = true
			body = body[:n-1]
		}
	}
	out := at(l, &ast.Block{Stmts: prologue}, pos)
	out.Stmts = append(out.Stmts, l.stmts(body)...)
	if !fallsThrough && !terminates(body) {
		out.Stmts = append(out.Stmts, &ast.Break{})
	}
	return out
}

func (l *lowerer) switchStmt(s *goast.SwitchStmt) ast.Stmt {
	l.push()
	defer l.pop()

	init := l.stmt(s.Init)
	var tag ast.Expr = ast.BoolLit(true)
	if s.Tag != nil {
		tag = l.expr(s.Tag)
	}
	body := at(l, &ast.Block{}, s.Body.Lbrace)
	for _, st := range s.Body.List {
		cc := st.(*goast.CaseClause)
		body.Stmts = append(body.Stmts, l.labels(cc.Case, l.exprs(cc.List))...)
		body.Stmts = append(body.Stmts, l.clause(cc.Colon, nil, cc.Body))
	}
	return withInit(init, at(l, &ast.Switch{Tag: tag, Body: body}, s.Switch))
}

// labels returns one case label per value, or the default label.
func (l *lowerer) labels(pos token.Pos, values []ast.Expr) []ast.Stmt {
	if len(values) == 0 {
		return []ast.Stmt{at(l, &ast.Case{}, pos)}
	}
	out := make([]ast.Stmt, 0, len(values))
	for _, v := range values {
		out = append(out, at(l, &ast.Case{Value: v}, pos))
	}
	return out
}

func (l *lowerer) typeSwitch(s *goast.TypeSwitchStmt) ast.Stmt {
	l.push()
	defer l.pop()

	init := l.stmt(s.Init)
	var subject goast.Expr
	bound := ""
	switch a := s.Assign.(type) {
	case *goast.AssignStmt:
		subject = a.Rhs[0].(*goast.TypeAssertExpr).X
		bound = a.Lhs[0].(*goast.Ident).Name
	case *goast.ExprStmt:
		subject = a.X.(*goast.TypeAssertExpr).X
	}

	body := at(l, &ast.Block{}, s.Body.Lbrace)
	for _, st := range s.Body.List {
		cc := st.(*goast.CaseClause)
		values := make([]ast.Expr, 0, len(cc.List))
		for _, t := range cc.List {
			values = append(values, at(l, ast.StrLit(types.ExprString(t)), t.Pos()))
		}
		body.Stmts = append(body.Stmts, l.labels(cc.Case, values)...)

		var prologue []ast.Stmt
		if bound != "" && bound != "_" {
			v := &ast.Variable{Name: bound, Kind: ast.KindLocal}
			prologue = append(prologue, l.let(v, l.expr(subject), cc.Colon))
		}
		l.push()
		l.declare(bound)
		body.Stmts = append(body.Stmts, l.clause(cc.Colon, prologue, cc.Body))
		l.pop()
	}
	return withInit(init, at(l, &ast.Switch{Tag: l.expr(subject), Body: body}, s.Switch))
}

func (l *lowerer) selectStmt(s *goast.SelectStmt) ast.Stmt {
	if len(s.Body.List) == 0 {
		// select {} blocks forever
		return at(l, &ast.For{Body: at(l, &ast.Block{}, s.Body.Lbrace)}, s.Select)
	}
	body := at(l, &ast.Block{}, s.Body.Lbrace)
	for _, st := range s.Body.List {
		cc := st.(*goast.CommClause)
		if cc.Comm == nil {
			body.Stmts = append(body.Stmts, at(l, &ast.Case{}, cc.Case))
			body.Stmts = append(body.Stmts, l.clause(cc.Colon, nil, cc.Body))
			continue
		}
		ready := at(l, &ast.Call{Func: "ready"}, cc.Case)
		body.Stmts = append(body.Stmts, at(l, &ast.Case{Value: ready}, cc.Case))

		l.push()
		comm := l.stmt(cc.Comm)
		body.Stmts = append(body.Stmts, l.clause(cc.Colon, comm, cc.Body))
		l.pop()
	}
	tag := at(l, &ast.Call{Func: "select"}, s.Select)
	return at(l, &ast.Switch{Tag: tag, Body: body}, s.Select)
}

func (l *lowerer) branch(s *goast.BranchStmt) []ast.Stmt {
	label := ""
	if s.Label != nil {
		label = s.Label.Name
	}
	switch s.Tok {
	case token.BREAK:
		return []ast.Stmt{at(l, &ast.Break{Label: label}, s.Pos())}
	case token.CONTINUE:
		return []ast.Stmt{at(l, &ast.Continue{Label: label}, s.Pos())}
	case token.FALLTHROUGH:
		return nil
	}
	return []ast.Stmt{at(l, &ast.Bad{Message: s.Tok.String() + " is not supported"}, s.Pos())}
}
