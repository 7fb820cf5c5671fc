package lower

import (
	goast "go/ast"
	"go/constant"
	"go/token"
	"go/types"

	"github.com/gnolang/cflow/ast"
)

func (l *lowerer) exprs(es []goast.Expr) []ast.Expr {
	out := make([]ast.Expr, 0, len(es))
	for _, e := range es {
		out = append(out, l.expr(e))
	}
	return out
}

func (l *lowerer) expr(e goast.Expr) ast.Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *goast.Ident:
		switch e.Name {
		case "true", "false":
			return at(l, ast.BoolLit(e.Name == "true"), e.Pos())
		case "nil":
			return at(l, &ast.Literal{}, e.Pos())
		}
		return at(l, ast.Name(e.Name), e.Pos())
	case *goast.BasicLit:
		return at(l, &ast.Literal{Value: literal(e)}, e.Pos())
	case *goast.BinaryExpr:
		return at(l, &ast.Binary{Op: ast.Op(e.Op.String()), X: l.expr(e.X), Y: l.expr(e.Y)}, e.OpPos)
	case *goast.UnaryExpr:
		return at(l, &ast.Unary{Op: ast.Op(e.Op.String()), X: l.expr(e.X)}, e.OpPos)
	case *goast.StarExpr:
		return at(l, &ast.Unary{Op: ast.OpMul, X: l.expr(e.X)}, e.Star)
	case *goast.ParenExpr:
		return at(l, &ast.Paren{X: l.expr(e.X)}, e.Lparen)
	case *goast.CallExpr:
		return l.call(e)
	case *goast.SelectorExpr:
		return at(l, &ast.Selector{X: l.expr(e.X), Name: e.Sel.Name}, e.Sel.Pos())
	case *goast.IndexExpr:
		return at(l, &ast.Index{X: l.expr(e.X), Index: l.expr(e.Index)}, e.Lbrack)
	case *goast.IndexListExpr:
		return at(l, &ast.Index{X: l.expr(e.X), Index: l.expr(e.Indices[0])}, e.Lbrack)
	case *goast.SliceExpr:
		args := []ast.Expr{l.expr(e.X)}
		for _, bound := range []goast.Expr{e.Low, e.High, e.Max} {
			if bound != nil {
				args = append(args, l.expr(bound))
			}
		}
		return at(l, &ast.Call{Func: "slice", Args: args}, e.Lbrack)
	case *goast.TypeAssertExpr:
		return at(l, &ast.Call{Func: "typeassert", Args: []ast.Expr{l.expr(e.X)}}, e.Lparen)
	case *goast.CompositeLit:
		name := "composite"
		if e.Type != nil {
			name = types.ExprString(e.Type)
		}
		return at(l, &ast.New{Type: &ast.Type{Name: name}, Args: l.elements(e.Elts)}, e.Lbrace)
	case *goast.KeyValueExpr:
		return l.expr(e.Value)
	case *goast.FuncLit:
		return l.lambda(e)
	default:
		// types and other operands without run time effect
		return at(l, ast.StrLit(types.ExprString(e)), e.Pos())
	}
}

// elements lowers the elements of a composite literal. Keys are field
// names or constants and never read variables.
func (l *lowerer) elements(elts []goast.Expr) []ast.Expr {
	out := make([]ast.Expr, 0, len(elts))
	for _, e := range elts {
		if kv, ok := e.(*goast.KeyValueExpr); ok {
			e = kv.Value
		}
		out = append(out, l.expr(e))
	}
	return out
}

func (l *lowerer) call(e *goast.CallExpr) ast.Expr {
	call := at(l, &ast.Call{Args: l.exprs(e.Args)}, e.Lparen)
	switch fun := e.Fun.(type) {
	case *goast.Ident:
		call.Func = fun.Name
	case *goast.SelectorExpr:
		call.Recv = l.expr(fun.X)
		call.Func = fun.Sel.Name
	case *goast.FuncLit:
		call.Recv = l.lambda(fun)
		call.Func = "func"
	case *goast.ArrayType, *goast.MapType, *goast.ChanType, *goast.FuncType, *goast.InterfaceType, *goast.StructType:
		// conversion
		call.Func = types.ExprString(fun)
	default:
		call.Recv = l.expr(fun)
		call.Func = "call"
	}
	return call
}

func (l *lowerer) lambda(e *goast.FuncLit) *ast.Lambda {
	l.push()
	defer l.pop()

	lam := at(l, &ast.Lambda{Params: l.params(e.Type.Params)}, e.Type.Func)
	for _, p := range lam.Params {
		p.Decl = lam
	}
	if res := e.Type.Results; res != nil {
		for _, field := range res.List {
			for _, name := range field.Names {
				l.declare(name.Name)
			}
		}
	}
	lam.Body = l.block(e.Body, false)
	return lam
}

// literal returns the value of a basic literal: int64, float64 or string.
func literal(e *goast.BasicLit) any {
	v := constant.MakeFromLiteral(e.Value, e.Kind, 0)
	switch e.Kind {
	case token.INT, token.CHAR:
		if n, ok := constant.Int64Val(v); ok {
			return n
		}
	case token.FLOAT:
		f, _ := constant.Float64Val(v)
		return f
	case token.STRING:
		if v.Kind() == constant.String {
			return constant.StringVal(v)
		}
	}
	return nil
}
