package ast

import "reflect"

// MissingTerminator is the message of a tolerated Bad node: a statement
// whose only defect is a missing terminator still has a well-formed shape.
const MissingTerminator = "missing terminator"

type (
	// Block is a braced statement list.
	Block struct {
		Header
		Stmts []Stmt
	}

	// EmptyStmt is a lone terminator.
	EmptyStmt struct {
		Header
	}

	// ExprStmt evaluates X for its effects.
	ExprStmt struct {
		Header
		X Expr
	}

	// DeclStmt declares one or more local variables.
	DeclStmt struct {
		Header
		Vars []*VarDecl
	}

	// VarDecl declares Var with an optional initializer.
	VarDecl struct {
		Header
		Var  *Variable
		Init Expr
	}

	If struct {
		Header
		Cond Expr
		Then Stmt
		Else Stmt
	}

	While struct {
		Header
		Cond Expr
		Body Stmt
	}

	DoWhile struct {
		Header
		Body Stmt
		Cond Expr
	}

	// For is a three-clause loop. A nil Cond loops forever.
	For struct {
		Header
		Init   Stmt
		Cond   Expr
		Update Stmt
		Body   Stmt
	}

	// ForEach iterates Iter, writing Param on every iteration.
	ForEach struct {
		Header
		Param *Variable
		Iter  Expr
		Body  Stmt
	}

	// Switch dispatches on Tag to the Case labels of Body. Control falls
	// through labels, so clauses end with an explicit Break.
	Switch struct {
		Header
		Tag  Expr
		Body *Block
	}

	// Case is a label inside a switch body. A nil Value is the default label.
	Case struct {
		Header
		Value Expr
	}

	Labeled struct {
		Header
		Label string
		Body  Stmt
	}

	Break struct {
		Header
		Label string
	}

	Continue struct {
		Header
		Label string
	}

	Return struct {
		Header
		Value Expr
	}

	Throw struct {
		Header
		X Expr
	}

	// Try is a protected region. Resources are declared inside the region.
	Try struct {
		Header
		Resources []*VarDecl
		Body      *Block
		Catches   []*Catch
		Finally   *Block
	}

	// Catch is a handler clause. Types holds the alternatives of a
	// multi-type clause; Param.Type is the first of them.
	Catch struct {
		Header
		Param *Variable
		Types []*Type
		Body  *Block
	}

	// Assert checks Cond; Message is evaluated only on failure.
	Assert struct {
		Header
		Cond    Expr
		Message Expr
	}

	// Sync runs Body while holding Lock.
	Sync struct {
		Header
		Lock Expr
		Body *Block
	}

	// Bad marks a structurally broken region of the tree.
	Bad struct {
		Header
		Message string
	}
)

func (*Block) stmtNode()     {}
func (*EmptyStmt) stmtNode() {}
func (*ExprStmt) stmtNode()  {}
func (*DeclStmt) stmtNode()  {}
func (*If) stmtNode()        {}
func (*While) stmtNode()     {}
func (*DoWhile) stmtNode()   {}
func (*For) stmtNode()       {}
func (*ForEach) stmtNode()   {}
func (*Switch) stmtNode()    {}
func (*Case) stmtNode()      {}
func (*Labeled) stmtNode()   {}
func (*Break) stmtNode()     {}
func (*Continue) stmtNode()  {}
func (*Return) stmtNode()    {}
func (*Throw) stmtNode()     {}
func (*Try) stmtNode()       {}
func (*Assert) stmtNode()    {}
func (*Sync) stmtNode()      {}
func (*Bad) stmtNode()       {}
func (*Bad) exprNode()       {}

// Tolerated reports whether the builder may ignore b.
func (b *Bad) Tolerated() bool { return b.Message == MissingTerminator }

// Default reports whether c is the default label.
func (c *Case) Default() bool { return c.Value == nil }

func (b *Block) Children() []Node {
	out := make([]Node, 0, len(b.Stmts))
	for _, s := range b.Stmts {
		out = appendNode(out, s)
	}
	return out
}

func (*EmptyStmt) Children() []Node { return nil }
func (s *ExprStmt) Children() []Node { return appendNode(nil, s.X) }

func (s *DeclStmt) Children() []Node {
	out := make([]Node, 0, len(s.Vars))
	for _, v := range s.Vars {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func (d *VarDecl) Children() []Node { return appendNode(nil, d.Init) }

func (s *If) Children() []Node {
	return appendNode(appendNode(appendNode(nil, s.Cond), s.Then), s.Else)
}

func (s *While) Children() []Node   { return appendNode(appendNode(nil, s.Cond), s.Body) }
func (s *DoWhile) Children() []Node { return appendNode(appendNode(nil, s.Body), s.Cond) }

func (s *For) Children() []Node {
	out := appendNode(nil, s.Init)
	out = appendNode(out, s.Cond)
	out = appendNode(out, s.Update)
	return appendNode(out, s.Body)
}

func (s *ForEach) Children() []Node { return appendNode(appendNode(nil, s.Iter), s.Body) }

func (s *Switch) Children() []Node {
	out := appendNode(nil, s.Tag)
	if s.Body != nil {
		out = append(out, s.Body)
	}
	return out
}

func (c *Case) Children() []Node     { return appendNode(nil, c.Value) }
func (s *Labeled) Children() []Node  { return appendNode(nil, s.Body) }
func (*Break) Children() []Node      { return nil }
func (*Continue) Children() []Node   { return nil }
func (s *Return) Children() []Node   { return appendNode(nil, s.Value) }
func (s *Throw) Children() []Node    { return appendNode(nil, s.X) }
func (s *Assert) Children() []Node   { return appendNode(appendNode(nil, s.Cond), s.Message) }
func (*Bad) Children() []Node        { return nil }

func (s *Try) Children() []Node {
	var out []Node
	for _, r := range s.Resources {
		if r != nil {
			out = append(out, r)
		}
	}
	if s.Body != nil {
		out = append(out, s.Body)
	}
	for _, c := range s.Catches {
		if c != nil {
			out = append(out, c)
		}
	}
	if s.Finally != nil {
		out = append(out, s.Finally)
	}
	return out
}

func (c *Catch) Children() []Node {
	if c.Body == nil {
		return nil
	}
	return []Node{c.Body}
}

func (s *Sync) Children() []Node {
	out := appendNode(nil, s.Lock)
	if s.Body != nil {
		out = append(out, s.Body)
	}
	return out
}

// appendNode appends n unless it is nil, including a typed nil pointer
// stored in an interface.
func appendNode(list []Node, n Node) []Node {
	if IsNil(n) {
		return list
	}
	return append(list, n)
}

// IsNil reports whether n is nil or a typed nil pointer.
func IsNil(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
