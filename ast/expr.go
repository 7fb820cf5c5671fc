package ast

// Op is an operator token.
type Op string

const (
	OpAnd    Op = "&&"
	OpOr     Op = "||"
	OpNot    Op = "!"
	OpNeg    Op = "-"
	OpAdd    Op = "+"
	OpSub    Op = "-"
	OpMul    Op = "*"
	OpDiv    Op = "/"
	OpRem    Op = "%"
	OpEq     Op = "=="
	OpNe     Op = "!="
	OpLt     Op = "<"
	OpLe     Op = "<="
	OpGt     Op = ">"
	OpGe     Op = ">="
	OpBitAnd Op = "&"
	OpBitOr  Op = "|"
	OpXor    Op = "^"
	OpShl    Op = "<<"
	OpShr    Op = ">>"
)

// Logical reports whether op is a short-circuit operator.
func (op Op) Logical() bool { return op == OpAnd || op == OpOr }

type (
	// Ident references a variable by name. Decl is filled by Resolve or by
	// the frontend; it stays nil for names declared outside the tree.
	Ident struct {
		Header
		Name string
		Decl *Variable
	}

	// Literal is a constant: bool, int64, float64, string or nil.
	Literal struct {
		Header
		Value any
	}

	Binary struct {
		Header
		Op Op
		X  Expr
		Y  Expr
	}

	Unary struct {
		Header
		Op Op
		X  Expr
	}

	// Assign stores Value into Target. An empty Op is a plain assignment;
	// otherwise Op is the binary operator of a compound assignment.
	Assign struct {
		Header
		Op     Op
		Target Expr
		Value  Expr
	}

	// IncDec increments or decrements Target in place.
	IncDec struct {
		Header
		Target  Expr
		Inc     bool
		Postfix bool
	}

	// Call invokes Func on the optional receiver Recv. Throws lists the
	// exception types the callee declares.
	Call struct {
		Header
		Recv   Expr
		Func   string
		Args   []Expr
		Throws []*Type
	}

	// New constructs a value of Type.
	New struct {
		Header
		Type   *Type
		Args   []Expr
		Throws []*Type
	}

	// Conditional is the ternary operator.
	Conditional struct {
		Header
		Cond Expr
		Then Expr
		Else Expr
	}

	Index struct {
		Header
		X     Expr
		Index Expr
	}

	// Selector reads field Name of X.
	Selector struct {
		Header
		X    Expr
		Name string
	}

	Paren struct {
		Header
		X Expr
	}

	// Lambda is a nested function value. Its body is not part of the
	// enclosing graph; only the variables it captures are.
	Lambda struct {
		Header
		Params []*Variable
		Body   Node
	}
)

func (*Ident) exprNode()       {}
func (*Literal) exprNode()     {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Assign) exprNode()      {}
func (*IncDec) exprNode()      {}
func (*Call) exprNode()        {}
func (*New) exprNode()         {}
func (*Conditional) exprNode() {}
func (*Index) exprNode()       {}
func (*Selector) exprNode()    {}
func (*Paren) exprNode()       {}
func (*Lambda) exprNode()      {}

func (*Ident) Children() []Node     { return nil }
func (*Literal) Children() []Node   { return nil }
func (e *Binary) Children() []Node  { return appendNode(appendNode(nil, e.X), e.Y) }
func (e *Unary) Children() []Node   { return appendNode(nil, e.X) }
func (e *Assign) Children() []Node  { return appendNode(appendNode(nil, e.Target), e.Value) }
func (e *IncDec) Children() []Node  { return appendNode(nil, e.Target) }
func (e *Index) Children() []Node   { return appendNode(appendNode(nil, e.X), e.Index) }
func (e *Selector) Children() []Node { return appendNode(nil, e.X) }
func (e *Paren) Children() []Node   { return appendNode(nil, e.X) }
func (e *Lambda) Children() []Node  { return appendNode(nil, e.Body) }

func (e *Call) Children() []Node {
	out := appendNode(nil, e.Recv)
	for _, a := range e.Args {
		out = appendNode(out, a)
	}
	return out
}

func (e *New) Children() []Node {
	var out []Node
	for _, a := range e.Args {
		out = appendNode(out, a)
	}
	return out
}

func (e *Conditional) Children() []Node {
	return appendNode(appendNode(appendNode(nil, e.Cond), e.Then), e.Else)
}

// Unparen strips any number of enclosing parentheses.
func Unparen(e Expr) Expr {
	for {
		p, ok := e.(*Paren)
		if !ok || p == nil {
			return e
		}
		e = p.X
	}
}
