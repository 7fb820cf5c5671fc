package ast

// Resolve links root and binds every unresolved identifier to the nearest
// declaration in lexical scope. Names without a declaration stay unbound.
func Resolve(root Node) {
	Link(root)
	r := &resolver{}
	r.push()
	r.node(root)
}

type resolver struct {
	scopes []map[string]*Variable
}

func (r *resolver) push() { r.scopes = append(r.scopes, map[string]*Variable{}) }
func (r *resolver) pop()  { r.scopes = r.scopes[:len(r.scopes)-1] }

func (r *resolver) declare(v *Variable, decl Node) {
	if v == nil {
		return
	}
	if v.Decl == nil {
		v.Decl = decl
	}
	r.scopes[len(r.scopes)-1][v.Name] = v
}

func (r *resolver) lookup(name string) *Variable {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if v, ok := r.scopes[i][name]; ok {
			return v
		}
	}
	return nil
}

func (r *resolver) node(n Node) {
	if IsNil(n) {
		return
	}
	switch n := n.(type) {
	case *Function:
		r.push()
		for _, p := range n.Params {
			r.declare(p, n)
		}
		r.node(n.Body)
		r.pop()
	case *Lambda:
		r.push()
		for _, p := range n.Params {
			r.declare(p, n)
		}
		r.node(n.Body)
		r.pop()
	case *Block:
		r.push()
		for _, s := range n.Stmts {
			r.node(s)
		}
		r.pop()
	case *VarDecl:
		// the initializer does not see the variable it initializes
		r.node(n.Init)
		r.declare(n.Var, n)
	case *For:
		r.push()
		r.node(n.Init)
		r.node(n.Cond)
		r.node(n.Update)
		r.node(n.Body)
		r.pop()
	case *ForEach:
		r.node(n.Iter)
		r.push()
		r.declare(n.Param, n)
		r.node(n.Body)
		r.pop()
	case *Try:
		r.push()
		for _, res := range n.Resources {
			r.node(res)
		}
		r.node(n.Body)
		r.pop()
		for _, c := range n.Catches {
			r.node(c)
		}
		r.node(n.Finally)
	case *Catch:
		r.push()
		r.declare(n.Param, n)
		r.node(n.Body)
		r.pop()
	case *Ident:
		if n.Decl == nil {
			n.Decl = r.lookup(n.Name)
		}
	default:
		for _, c := range n.Children() {
			r.node(c)
		}
	}
}
