package ast

// Position locates a node in its source.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) IsValid() bool { return p.Line > 0 }

// Header is embedded as the first field of every node.
// It holds the parent link set by Link and the source position.
// Keeping it first makes a pointer to it a pointer to the node itself,
// which the result cache relies on for weak references.
type Header struct {
	parent Node
	Pos    Position
}

// Meta returns the header of the node.
func (h *Header) Meta() *Header { return h }

// Parent returns the enclosing node, or nil for a root or an unlinked node.
func (h *Header) Parent() Node { return h.parent }

// Node is a tree element visited by the graph builder.
type Node interface {
	Meta() *Header
	Parent() Node
	// Children returns the direct children in source order. Absent optional
	// children are omitted.
	Children() []Node
	String() string
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// VarKind classifies a variable by where it is declared.
type VarKind int

const (
	KindLocal VarKind = iota
	KindParam
	KindLoopParam
	KindCatchParam
	KindField
)

func (k VarKind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindParam:
		return "param"
	case KindLoopParam:
		return "loop-param"
	case KindCatchParam:
		return "catch-param"
	case KindField:
		return "field"
	default:
		return "unknown"
	}
}

// Variable is a declared variable. Identity is pointer identity.
type Variable struct {
	Name  string
	Kind  VarKind
	Type  *Type
	Final bool
	// Decl is the declaring node: a *VarDecl, *Function, *ForEach, *Catch
	// or *Lambda. Nil for fields.
	Decl Node
}

func (v *Variable) String() string {
	if v == nil {
		return "<nil>"
	}
	return v.Name
}

// IsParameter reports whether v is a function or lambda parameter.
func (v *Variable) IsParameter() bool { return v.Kind == KindParam }

// Type is a named type used for exceptions and thrown values.
type Type struct {
	Name      string
	Super     *Type
	Unchecked bool
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// Function is a root of analysis.
type Function struct {
	Header
	Name   string
	Params []*Variable
	// Results reports whether the function returns a value.
	Results bool
	Throws  []*Type
	Body    *Block
}

func (f *Function) Children() []Node {
	if f.Body == nil {
		return nil
	}
	return []Node{f.Body}
}

// Unit is the result of a frontend: the functions of one source plus its
// declared types.
type Unit struct {
	Filename  string
	Functions []*Function
	Types     map[string]*Type
}

// Function returns the function named name, or nil.
func (u *Unit) Function(name string) *Function {
	for _, fn := range u.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}
