package ast

// Helper constructors for building trees in code.

func NewLocal(name string) *Variable { return &Variable{Name: name, Kind: KindLocal} }
func NewParam(name string) *Variable { return &Variable{Name: name, Kind: KindParam} }

// NewFunction returns a resolved function with the given body.
func NewFunction(name string, params []*Variable, stmts ...Stmt) *Function {
	fn := &Function{Name: name, Params: params, Body: Seq(stmts...)}
	for _, p := range params {
		p.Decl = fn
	}
	Resolve(fn)
	return fn
}

func Ref(v *Variable) *Ident   { return &Ident{Name: v.Name, Decl: v} }
func Name(name string) *Ident  { return &Ident{Name: name} }
func IntLit(v int64) *Literal  { return &Literal{Value: v} }
func BoolLit(v bool) *Literal  { return &Literal{Value: v} }
func StrLit(v string) *Literal { return &Literal{Value: v} }

func And(x, y Expr) *Binary { return &Binary{Op: OpAnd, X: x, Y: y} }
func Or(x, y Expr) *Binary  { return &Binary{Op: OpOr, X: x, Y: y} }
func Not(x Expr) *Unary     { return &Unary{Op: OpNot, X: x} }

func Seq(stmts ...Stmt) *Block { return &Block{Stmts: stmts} }

// Let declares v, initialized to init when it is not nil.
func Let(v *Variable, init Expr) *DeclStmt {
	d := &VarDecl{Var: v, Init: init}
	v.Decl = d
	return &DeclStmt{Vars: []*VarDecl{d}}
}

func Set(v *Variable, value Expr) *ExprStmt {
	return &ExprStmt{X: &Assign{Target: Ref(v), Value: value}}
}

func Eval(e Expr) *ExprStmt { return &ExprStmt{X: e} }

func Invoke(name string, args ...Expr) *Call { return &Call{Func: name, Args: args} }
