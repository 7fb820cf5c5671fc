package ast

// Link sets the parent of every node below root. It must be called once a
// tree is complete and again after any structural change.
func Link(root Node) {
	root.Meta().parent = nil
	link(root)
}

func link(n Node) {
	for _, c := range n.Children() {
		c.Meta().parent = n
		link(c)
	}
}

// Inspect traverses the tree rooted at n in depth-first order. If f returns
// false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if IsNil(n) || !f(n) {
		return
	}
	for _, c := range n.Children() {
		Inspect(c, f)
	}
}

// IsAncestor reports whether anc encloses n. With strict unset a node is
// its own ancestor.
func IsAncestor(anc, n Node, strict bool) bool {
	if IsNil(anc) || IsNil(n) {
		return false
	}
	if strict {
		n = n.Parent()
	}
	for ; !IsNil(n); n = n.Parent() {
		if n == anc {
			return true
		}
	}
	return false
}

// PrevStmt returns the nearest statement before s among its parent's
// children, or nil. Case labels are skipped.
func PrevStmt(s Node) Stmt {
	parent := s.Parent()
	if IsNil(parent) {
		return nil
	}
	var prev Stmt
	for _, c := range parent.Children() {
		if c == s {
			return prev
		}
		if _, label := c.(*Case); label {
			continue
		}
		if st, ok := c.(Stmt); ok {
			prev = st
		}
	}
	return nil
}

// IsLoop reports whether s is a loop statement.
func IsLoop(s Node) bool {
	switch s.(type) {
	case *While, *DoWhile, *For, *ForEach:
		return true
	}
	return false
}

// LoopBody returns the body of loop s, or nil when s is not a loop.
func LoopBody(s Node) Stmt {
	switch s := s.(type) {
	case *While:
		return s.Body
	case *DoWhile:
		return s.Body
	case *For:
		return s.Body
	case *ForEach:
		return s.Body
	}
	return nil
}

// boundary reports whether n ends the search for jump targets.
func boundary(n Node) bool {
	switch n.(type) {
	case *Function, *Lambda:
		return true
	}
	return false
}

// ExitedStatement returns the statement a break leaves: the labeled
// statement named by its label, else the innermost loop or switch.
func ExitedStatement(b *Break) Stmt {
	for n := b.Parent(); !IsNil(n) && !boundary(n); n = n.Parent() {
		if b.Label != "" {
			if l, ok := n.(*Labeled); ok && l.Label == b.Label {
				return l
			}
			continue
		}
		if _, ok := n.(*Switch); ok || IsLoop(n) {
			return n.(Stmt)
		}
	}
	return nil
}

// ContinuedStatement returns the loop a continue restarts.
func ContinuedStatement(c *Continue) Stmt {
	for n := c.Parent(); !IsNil(n) && !boundary(n); n = n.Parent() {
		if c.Label != "" {
			if l, ok := n.(*Labeled); ok && l.Label == c.Label {
				if IsLoop(l.Body) {
					return l.Body
				}
				return nil
			}
			continue
		}
		if IsLoop(n) {
			return n.(Stmt)
		}
	}
	return nil
}

// EnclosingFunction returns the function that contains n.
func EnclosingFunction(n Node) *Function {
	for ; !IsNil(n); n = n.Parent() {
		if fn, ok := n.(*Function); ok {
			return fn
		}
	}
	return nil
}

// InsideIfCondition reports whether e is part of the condition of an if
// statement, looking through enclosing expressions only.
func InsideIfCondition(e Expr) bool {
	var n Node = e
	for {
		x, ok := n.(Expr)
		if !ok {
			return false
		}
		parent := x.Parent()
		if s, ok := parent.(*If); ok {
			return s.Cond == x
		}
		if IsNil(parent) {
			return false
		}
		n = parent
	}
}
