package ast

import (
	"fmt"
	"strings"
)

// String methods render expressions in full and statements as a one-line
// header. They are used by graph listings.

func (e *Ident) String() string { return e.Name }

func (e *Literal) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}

func (e *Binary) String() string {
	return str(e.X) + " " + string(e.Op) + " " + str(e.Y)
}

func (e *Unary) String() string { return string(e.Op) + str(e.X) }

func (e *Assign) String() string {
	return str(e.Target) + " " + string(e.Op) + "= " + str(e.Value)
}

func (e *IncDec) String() string {
	op := "--"
	if e.Inc {
		op = "++"
	}
	if e.Postfix {
		return str(e.Target) + op
	}
	return op + str(e.Target)
}

func (e *Call) String() string {
	name := e.Func
	if e.Recv != nil {
		name = str(e.Recv) + "." + name
	}
	return name + "(" + list(e.Args) + ")"
}

func (e *New) String() string { return "new " + e.Type.String() + "(" + list(e.Args) + ")" }

func (e *Conditional) String() string {
	return str(e.Cond) + " ? " + str(e.Then) + " : " + str(e.Else)
}

func (e *Index) String() string    { return str(e.X) + "[" + str(e.Index) + "]" }
func (e *Selector) String() string { return str(e.X) + "." + e.Name }
func (e *Paren) String() string    { return "(" + str(e.X) + ")" }
func (e *Lambda) String() string   { return "func(" + vars(e.Params) + ") {...}" }

func (f *Function) String() string { return "func " + f.Name + "(" + vars(f.Params) + ")" }

func (*Block) String() string     { return "{...}" }
func (*EmptyStmt) String() string { return ";" }
func (s *ExprStmt) String() string { return str(s.X) }

func (s *DeclStmt) String() string {
	parts := make([]string, 0, len(s.Vars))
	for _, v := range s.Vars {
		parts = append(parts, v.String())
	}
	return "var " + strings.Join(parts, ", ")
}

func (d *VarDecl) String() string {
	if d.Init == nil {
		return d.Var.String()
	}
	return d.Var.String() + " = " + str(d.Init)
}

func (s *If) String() string      { return "if " + str(s.Cond) }
func (s *While) String() string   { return "while " + str(s.Cond) }
func (s *DoWhile) String() string { return "do while " + str(s.Cond) }
func (s *For) String() string     { return "for " + str(s.Cond) }
func (s *ForEach) String() string { return "for " + s.Param.String() + " : " + str(s.Iter) }
func (s *Switch) String() string  { return "switch " + str(s.Tag) }

func (c *Case) String() string {
	if c.Default() {
		return "default:"
	}
	return "case " + str(c.Value) + ":"
}

func (s *Labeled) String() string { return s.Label + ":" }

func (s *Break) String() string    { return withLabel("break", s.Label) }
func (s *Continue) String() string { return withLabel("continue", s.Label) }

func (s *Return) String() string {
	if s.Value == nil {
		return "return"
	}
	return "return " + str(s.Value)
}

func (s *Throw) String() string  { return "throw " + str(s.X) }
func (*Try) String() string      { return "try" }
func (c *Catch) String() string  { return "catch " + c.Param.String() }
func (s *Assert) String() string { return "assert " + str(s.Cond) }
func (s *Sync) String() string   { return "sync " + str(s.Lock) }
func (b *Bad) String() string    { return "<bad: " + b.Message + ">" }

func str(n Node) string {
	if IsNil(n) {
		return ""
	}
	return n.String()
}

func list(es []Expr) string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, str(e))
	}
	return strings.Join(parts, ", ")
}

func vars(vs []*Variable) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, ", ")
}

func withLabel(kw, label string) string {
	if label == "" {
		return kw
	}
	return kw + " " + label
}
