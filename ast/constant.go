package ast

const maxConstantDepth = 64

// evalConstant folds literals, operators and final variables with constant
// initializers. Integers are int64.
func evalConstant(o Oracle, e Expr, depth int) (any, bool) {
	if IsNil(e) || depth > maxConstantDepth {
		return nil, false
	}
	switch e := e.(type) {
	case *Literal:
		return normalize(e.Value)
	case *Paren:
		return evalConstant(o, e.X, depth+1)
	case *Ident:
		v := o.Resolve(e)
		if v == nil || !v.Final {
			return nil, false
		}
		decl, ok := v.Decl.(*VarDecl)
		if !ok || decl.Init == nil {
			return nil, false
		}
		return evalConstant(o, decl.Init, depth+1)
	case *Unary:
		x, ok := evalConstant(o, e.X, depth+1)
		if !ok {
			return nil, false
		}
		switch e.Op {
		case OpNot:
			b, ok := x.(bool)
			return !b, ok
		case OpNeg:
			i, ok := x.(int64)
			return -i, ok
		}
	case *Binary:
		x, ok := evalConstant(o, e.X, depth+1)
		if !ok {
			return nil, false
		}
		y, ok := evalConstant(o, e.Y, depth+1)
		if !ok {
			return nil, false
		}
		return foldBinary(e.Op, x, y)
	case *Conditional:
		c, ok := evalConstant(o, e.Cond, depth+1)
		b, isBool := c.(bool)
		if !ok || !isBool {
			return nil, false
		}
		if b {
			return evalConstant(o, e.Then, depth+1)
		}
		return evalConstant(o, e.Else, depth+1)
	}
	return nil, false
}

func normalize(v any) (any, bool) {
	switch v := v.(type) {
	case bool, int64, string:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	}
	return nil, false
}

func foldBinary(op Op, x, y any) (any, bool) {
	switch x := x.(type) {
	case bool:
		y, ok := y.(bool)
		if !ok {
			return nil, false
		}
		switch op {
		case OpAnd:
			return x && y, true
		case OpOr:
			return x || y, true
		case OpEq:
			return x == y, true
		case OpNe:
			return x != y, true
		case OpXor:
			return x != y, true
		}
	case int64:
		y, ok := y.(int64)
		if !ok {
			return nil, false
		}
		switch op {
		case OpAdd:
			return x + y, true
		case OpSub:
			return x - y, true
		case OpMul:
			return x * y, true
		case OpDiv:
			if y == 0 {
				return nil, false
			}
			return x / y, true
		case OpRem:
			if y == 0 {
				return nil, false
			}
			return x % y, true
		case OpEq:
			return x == y, true
		case OpNe:
			return x != y, true
		case OpLt:
			return x < y, true
		case OpLe:
			return x <= y, true
		case OpGt:
			return x > y, true
		case OpGe:
			return x >= y, true
		}
	case string:
		y, ok := y.(string)
		if !ok {
			return nil, false
		}
		switch op {
		case OpAdd:
			return x + y, true
		case OpEq:
			return x == y, true
		case OpNe:
			return x != y, true
		}
	}
	return nil, false
}
