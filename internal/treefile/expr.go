package treefile

import (
	"gopkg.in/yaml.v3"

	"github.com/gnolang/cflow/ast"
)

func (d *decoder) exprs(n *yaml.Node) ([]ast.Expr, error) {
	if n == nil || n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		x, err := d.expr(n)
		if err != nil {
			return nil, err
		}
		return []ast.Expr{x}, nil
	}
	out := make([]ast.Expr, 0, len(n.Content))
	for _, c := range n.Content {
		x, err := d.expr(c)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// pair reads a two element list.
func (d *decoder) pair(n *yaml.Node) (ast.Expr, ast.Expr, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 2 {
		return nil, nil, d.errorf(n, "expected two operands")
	}
	x, err := d.expr(n.Content[0])
	if err != nil {
		return nil, nil, err
	}
	y, err := d.expr(n.Content[1])
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

func (d *decoder) expr(n *yaml.Node) (ast.Expr, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.MappingNode:
	default:
		return nil, d.errorf(n, "%w", ErrUnknownExpression)
	}

	f, err := d.fields(n)
	if err != nil {
		return nil, err
	}
	switch {
	case f.has("str"):
		return at(d, ast.StrLit(f["str"].Value), n), nil
	case f.has("call"):
		return d.call(n, f)
	case f.has("new"):
		args, err := d.exprs(f["args"])
		if err != nil {
			return nil, err
		}
		throws, err := d.typeList(f["throws"])
		if err != nil {
			return nil, err
		}
		return at(d, &ast.New{Type: d.typ(f.str("new")), Args: args, Throws: throws}, n), nil
	case f.has("and"), f.has("or"):
		op, key := ast.OpAnd, "and"
		if f.has("or") {
			op, key = ast.OpOr, "or"
		}
		return d.chain(n, op, f[key])
	case f.has("not"):
		x, err := d.expr(f["not"])
		if err != nil {
			return nil, err
		}
		return at(d, ast.Not(x), n), nil
	case f.has("op"):
		return d.operator(n, f)
	case f.has("assign"):
		target, err := d.expr(f["assign"])
		if err != nil {
			return nil, err
		}
		value, err := d.expr(f["value"])
		if err != nil {
			return nil, err
		}
		return at(d, &ast.Assign{Op: ast.Op(f.str("with")), Target: target, Value: value}, n), nil
	case f.has("inc"), f.has("dec"):
		key := "inc"
		if f.has("dec") {
			key = "dec"
		}
		target, err := d.expr(f[key])
		if err != nil {
			return nil, err
		}
		return at(d, &ast.IncDec{Target: target, Inc: key == "inc", Postfix: f.flag("postfix")}, n), nil
	case f.has("cond"):
		return d.conditional(n, f)
	case f.has("index"):
		x, err := d.expr(f["index"])
		if err != nil {
			return nil, err
		}
		i, err := d.expr(f["at"])
		if err != nil {
			return nil, err
		}
		return at(d, &ast.Index{X: x, Index: i}, n), nil
	case f.has("field"):
		x, err := d.optExpr(f, "of")
		if err != nil {
			return nil, err
		}
		return at(d, &ast.Selector{X: x, Name: f.str("field")}, n), nil
	case f.has("paren"):
		x, err := d.expr(f["paren"])
		if err != nil {
			return nil, err
		}
		return at(d, &ast.Paren{X: x}, n), nil
	case f.has("lambda"):
		return d.lambda(n, f)
	}
	return nil, d.errorf(n, "%w: no known key", ErrUnknownExpression)
}

// scalar reads a literal or, for plain words, an identifier.
func (d *decoder) scalar(n *yaml.Node) (ast.Expr, error) {
	lit := at(d, &ast.Literal{}, n)
	switch n.ShortTag() {
	case "!!null":
		return lit, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, d.errorf(n, "bad bool: %w", err)
		}
		lit.Value = b
		return lit, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, d.errorf(n, "bad int: %w", err)
		}
		lit.Value = i
		return lit, nil
	case "!!float":
		var x float64
		if err := n.Decode(&x); err != nil {
			return nil, d.errorf(n, "bad float: %w", err)
		}
		lit.Value = x
		return lit, nil
	}
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		lit.Value = n.Value
		return lit, nil
	}
	return at(d, ast.Name(n.Value), n), nil
}

func (d *decoder) call(n *yaml.Node, f fields) (ast.Expr, error) {
	args, err := d.exprs(f["args"])
	if err != nil {
		return nil, err
	}
	recv, err := d.optExpr(f, "recv")
	if err != nil {
		return nil, err
	}
	throws, err := d.typeList(f["throws"])
	if err != nil {
		return nil, err
	}
	return at(d, &ast.Call{Recv: recv, Func: f.str("call"), Args: args, Throws: throws}, n), nil
}

// chain folds {and: [a, b, c]} into a left associative chain.
func (d *decoder) chain(n *yaml.Node, op ast.Op, list *yaml.Node) (ast.Expr, error) {
	if list.Kind != yaml.SequenceNode || len(list.Content) < 2 {
		return nil, d.errorf(n, "%s needs at least two operands", op)
	}
	x, err := d.expr(list.Content[0])
	if err != nil {
		return nil, err
	}
	for _, c := range list.Content[1:] {
		y, err := d.expr(c)
		if err != nil {
			return nil, err
		}
		x = at(d, &ast.Binary{Op: op, X: x, Y: y}, n)
	}
	return x, nil
}

// operator reads {op: "+", args: [x, y]} and the unary {op: "-", args: [x]}.
func (d *decoder) operator(n *yaml.Node, f fields) (ast.Expr, error) {
	op := ast.Op(f.str("op"))
	args := f["args"]
	if args == nil || args.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "operator %s without args", op)
	}
	if len(args.Content) == 1 {
		x, err := d.expr(args.Content[0])
		if err != nil {
			return nil, err
		}
		return at(d, &ast.Unary{Op: op, X: x}, n), nil
	}
	x, y, err := d.pair(args)
	if err != nil {
		return nil, err
	}
	return at(d, &ast.Binary{Op: op, X: x, Y: y}, n), nil
}

func (d *decoder) conditional(n *yaml.Node, f fields) (ast.Expr, error) {
	cond, err := d.expr(f["cond"])
	if err != nil {
		return nil, err
	}
	then, err := d.expr(f["then"])
	if err != nil {
		return nil, err
	}
	els, err := d.expr(f["else"])
	if err != nil {
		return nil, err
	}
	if then == nil || els == nil {
		return nil, d.errorf(n, "conditional needs then and else")
	}
	return at(d, &ast.Conditional{Cond: cond, Then: then, Else: els}, n), nil
}

// lambda reads {lambda: [params], body: [...]}.
func (d *decoder) lambda(n *yaml.Node, f fields) (ast.Expr, error) {
	var params []string
	if p := f["lambda"]; p.Tag != "!!null" {
		if err := p.Decode(&params); err != nil {
			return nil, d.errorf(p, "expected a list of parameter names")
		}
	}
	lam := at(d, &ast.Lambda{}, n)
	for _, p := range params {
		v := ast.NewParam(p)
		v.Decl = lam
		lam.Params = append(lam.Params, v)
	}
	body, err := d.blockOf(f, "body")
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = at(d, &ast.Block{}, n)
	}
	lam.Body = body
	return lam, nil
}
