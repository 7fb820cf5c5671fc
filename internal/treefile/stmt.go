package treefile

import (
	"gopkg.in/yaml.v3"

	"github.com/gnolang/cflow/ast"
)

// block reads a statement list. A single statement stands for a list of one.
func (d *decoder) block(n *yaml.Node) (*ast.Block, error) {
	b := at(d, &ast.Block{}, n)
	if n.Kind != yaml.SequenceNode {
		s, err := d.stmt(n)
		if err != nil {
			return nil, err
		}
		b.Stmts = []ast.Stmt{s}
		return b, nil
	}
	for _, c := range n.Content {
		s, err := d.stmt(c)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	return b, nil
}

// body reads the statement under key, or nil when the key is missing.
func (d *decoder) body(f fields, key string) (ast.Stmt, error) {
	n, ok := f[key]
	if !ok || n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind == yaml.SequenceNode {
		return d.block(n)
	}
	return d.stmt(n)
}

// blockOf reads the statement list under key, or nil when it is missing.
func (d *decoder) blockOf(f fields, key string) (*ast.Block, error) {
	n, ok := f[key]
	if !ok {
		return nil, nil
	}
	if n.Tag == "!!null" {
		return at(d, &ast.Block{}, n), nil
	}
	return d.block(n)
}

// optExpr reads the expression under key, or nil when it is missing.
func (d *decoder) optExpr(f fields, key string) (ast.Expr, error) {
	n, ok := f[key]
	if !ok || n.Tag == "!!null" {
		return nil, nil
	}
	return d.expr(n)
}

func (d *decoder) stmt(n *yaml.Node) (ast.Stmt, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.Value {
		case "break":
			return at(d, &ast.Break{}, n), nil
		case "continue":
			return at(d, &ast.Continue{}, n), nil
		case "return":
			return at(d, &ast.Return{}, n), nil
		case "empty":
			return at(d, &ast.EmptyStmt{}, n), nil
		}
		return nil, d.errorf(n, "%w: %q", ErrUnknownStatement, n.Value)
	case yaml.SequenceNode:
		return d.block(n)
	case yaml.MappingNode:
	default:
		return nil, d.errorf(n, "%w", ErrUnknownStatement)
	}

	f, err := d.fields(n)
	if err != nil {
		return nil, err
	}
	switch {
	case f.has("let"):
		return d.let(n, f)
	case f.has("set"):
		return d.set(n, f)
	case f.has("eval"):
		x, err := d.expr(f["eval"])
		if err != nil {
			return nil, err
		}
		return at(d, &ast.ExprStmt{X: x}, n), nil
	case f.has("if"):
		return d.ifStmt(n, f)
	case f.has("repeat"):
		return d.doWhile(n, f)
	case f.has("while"):
		return d.while(n, f)
	case f.has("foreach"):
		return d.forEach(n, f)
	case f.has("for"):
		return d.forStmt(n, f)
	case f.has("switch"):
		return d.switchStmt(n, f)
	case f.has("case"):
		v, err := d.expr(f["case"])
		if err != nil {
			return nil, err
		}
		return at(d, &ast.Case{Value: v}, n), nil
	case f.has("default"):
		return at(d, &ast.Case{}, n), nil
	case f.has("label"):
		body, err := d.body(f, "body")
		if err != nil {
			return nil, err
		}
		if body == nil {
			body = at(d, &ast.EmptyStmt{}, n)
		}
		return at(d, &ast.Labeled{Label: f.str("label"), Body: body}, n), nil
	case f.has("break"):
		return at(d, &ast.Break{Label: f.str("break")}, n), nil
	case f.has("continue"):
		return at(d, &ast.Continue{Label: f.str("continue")}, n), nil
	case f.has("return"):
		v, err := d.optExpr(f, "return")
		if err != nil {
			return nil, err
		}
		return at(d, &ast.Return{Value: v}, n), nil
	case f.has("throw"):
		x, err := d.expr(f["throw"])
		if err != nil {
			return nil, err
		}
		return at(d, &ast.Throw{X: x}, n), nil
	case f.has("try"):
		return d.try(n, f)
	case f.has("assert"):
		return d.assert(n, f)
	case f.has("sync"):
		return d.sync(n, f)
	case f.has("block"):
		b, err := d.blockOf(f, "block")
		if err != nil {
			return nil, err
		}
		return at(d, b, n), nil
	case f.has("bad"):
		return at(d, &ast.Bad{Message: f.str("bad")}, n), nil
	}
	return nil, d.errorf(n, "%w: no known key", ErrUnknownStatement)
}

// variable reads the declaration of name from f: its type and finality.
func (d *decoder) variable(name string, kind ast.VarKind, f fields) *ast.Variable {
	v := &ast.Variable{Name: name, Kind: kind, Final: f.flag("final")}
	if t := f.str("type"); t != "" {
		v.Type = d.typ(t)
	}
	return v
}

func (d *decoder) varDecl(n *yaml.Node, f fields) (*ast.VarDecl, error) {
	name := f.str("let")
	if name == "" {
		return nil, d.errorf(n, "let without a name")
	}
	init, err := d.optExpr(f, "value")
	if err != nil {
		return nil, err
	}
	v := d.variable(name, ast.KindLocal, f)
	vd := at(d, &ast.VarDecl{Var: v, Init: init}, n)
	v.Decl = vd
	return vd, nil
}

func (d *decoder) let(n *yaml.Node, f fields) (ast.Stmt, error) {
	vd, err := d.varDecl(n, f)
	if err != nil {
		return nil, err
	}
	return at(d, &ast.DeclStmt{Vars: []*ast.VarDecl{vd}}, n), nil
}

func (d *decoder) set(n *yaml.Node, f fields) (ast.Stmt, error) {
	target, err := d.expr(f["set"])
	if err != nil {
		return nil, err
	}
	value, err := d.expr(f["value"])
	if err != nil {
		return nil, err
	}
	a := at(d, &ast.Assign{Op: ast.Op(f.str("op")), Target: target, Value: value}, n)
	return at(d, &ast.ExprStmt{X: a}, n), nil
}

func (d *decoder) ifStmt(n *yaml.Node, f fields) (ast.Stmt, error) {
	cond, err := d.expr(f["if"])
	if err != nil {
		return nil, err
	}
	then, err := d.body(f, "then")
	if err != nil {
		return nil, err
	}
	if then == nil {
		then = at(d, &ast.Block{}, n)
	}
	els, err := d.body(f, "else")
	if err != nil {
		return nil, err
	}
	return at(d, &ast.If{Cond: cond, Then: then, Else: els}, n), nil
}

func (d *decoder) loopBody(n *yaml.Node, f fields, key string) (ast.Stmt, error) {
	body, err := d.body(f, key)
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = at(d, &ast.Block{}, n)
	}
	return body, nil
}

func (d *decoder) while(n *yaml.Node, f fields) (ast.Stmt, error) {
	cond, err := d.expr(f["while"])
	if err != nil {
		return nil, err
	}
	body, err := d.loopBody(n, f, "body")
	if err != nil {
		return nil, err
	}
	return at(d, &ast.While{Cond: cond, Body: body}, n), nil
}

func (d *decoder) doWhile(n *yaml.Node, f fields) (ast.Stmt, error) {
	body, err := d.loopBody(n, f, "repeat")
	if err != nil {
		return nil, err
	}
	if !f.has("while") {
		return nil, d.errorf(n, "repeat without while")
	}
	cond, err := d.expr(f["while"])
	if err != nil {
		return nil, err
	}
	return at(d, &ast.DoWhile{Body: body, Cond: cond}, n), nil
}

// forStmt reads {for: cond, init: stmt, update: stmt, body: [...]}. A null
// condition loops forever.
func (d *decoder) forStmt(n *yaml.Node, f fields) (ast.Stmt, error) {
	out := at(d, &ast.For{}, n)
	var err error
	if out.Init, err = d.body(f, "init"); err != nil {
		return nil, err
	}
	if out.Cond, err = d.optExpr(f, "for"); err != nil {
		return nil, err
	}
	if out.Update, err = d.body(f, "update"); err != nil {
		return nil, err
	}
	if out.Body, err = d.loopBody(n, f, "body"); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *decoder) forEach(n *yaml.Node, f fields) (ast.Stmt, error) {
	iter, err := d.expr(f["in"])
	if err != nil {
		return nil, err
	}
	body, err := d.loopBody(n, f, "body")
	if err != nil {
		return nil, err
	}
	out := at(d, &ast.ForEach{Iter: iter, Body: body}, n)
	if name := f.str("foreach"); name != "" {
		out.Param = d.variable(name, ast.KindLoopParam, f)
		out.Param.Decl = out
	}
	return out, nil
}

func (d *decoder) switchStmt(n *yaml.Node, f fields) (ast.Stmt, error) {
	tag, err := d.expr(f["switch"])
	if err != nil {
		return nil, err
	}
	body, err := d.blockOf(f, "body")
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = at(d, &ast.Block{}, n)
	}
	return at(d, &ast.Switch{Tag: tag, Body: body}, n), nil
}

func (d *decoder) try(n *yaml.Node, f fields) (ast.Stmt, error) {
	out := at(d, &ast.Try{}, n)
	var err error
	if out.Body, err = d.blockOf(f, "try"); err != nil {
		return nil, err
	}
	if res, ok := f["resources"]; ok {
		for _, r := range res.Content {
			rf, err := d.fields(r)
			if err != nil {
				return nil, err
			}
			vd, err := d.varDecl(r, rf)
			if err != nil {
				return nil, err
			}
			out.Resources = append(out.Resources, vd)
		}
	}
	if catches, ok := f["catch"]; ok {
		for _, c := range catches.Content {
			catch, err := d.catch(c)
			if err != nil {
				return nil, err
			}
			out.Catches = append(out.Catches, catch)
		}
	}
	if out.Finally, err = d.blockOf(f, "finally"); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *decoder) catch(n *yaml.Node) (*ast.Catch, error) {
	f, err := d.fields(n)
	if err != nil {
		return nil, err
	}
	types, err := d.typeList(f["types"])
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, d.errorf(n, "catch without types")
	}
	body, err := d.blockOf(f, "body")
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = at(d, &ast.Block{}, n)
	}
	name := f.str("param")
	if name == "" {
		name = "_"
	}
	c := at(d, &ast.Catch{Types: types, Body: body}, n)
	c.Param = &ast.Variable{Name: name, Kind: ast.KindCatchParam, Type: types[0], Decl: c}
	return c, nil
}

func (d *decoder) assert(n *yaml.Node, f fields) (ast.Stmt, error) {
	cond, err := d.expr(f["assert"])
	if err != nil {
		return nil, err
	}
	msg, err := d.optExpr(f, "message")
	if err != nil {
		return nil, err
	}
	return at(d, &ast.Assert{Cond: cond, Message: msg}, n), nil
}

func (d *decoder) sync(n *yaml.Node, f fields) (ast.Stmt, error) {
	lock, err := d.expr(f["sync"])
	if err != nil {
		return nil, err
	}
	body, err := d.blockOf(f, "body")
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = at(d, &ast.Block{}, n)
	}
	return at(d, &ast.Sync{Lock: lock, Body: body}, n), nil
}
