package ast

// Oracle answers the semantic questions the graph builder cannot derive from
// tree shape alone.
type Oracle interface {
	// Resolve returns the variable ref refers to, or nil.
	Resolve(ref *Ident) *Variable
	// TypeOf returns the static type of e when it is known.
	TypeOf(e Expr) *Type
	IsSubtype(sub, super *Type) bool
	IsUnchecked(t *Type) bool
	// CatchesUnchecked reports whether a handler for t may receive an
	// unchecked exception.
	CatchesUnchecked(t *Type) bool
	// Constant evaluates e at build time.
	Constant(e Expr) (any, bool)
	// UnhandledExceptions returns the checked exception types thrown inside
	// n that no try between n and scope handles.
	UnhandledExceptions(n, scope Node) []*Type
}

// BasicOracle implements Oracle over resolved trees: identifiers carry their
// declarations and types form a single-inheritance hierarchy.
type BasicOracle struct {
	unchecked []*Type
}

var _ Oracle = (*BasicOracle)(nil)

// NewBasicOracle returns an oracle that knows the given types. Known
// unchecked types make CatchesUnchecked precise for their supertypes.
func NewBasicOracle(types ...*Type) *BasicOracle {
	o := &BasicOracle{}
	for _, t := range types {
		if t != nil && o.IsUnchecked(t) {
			o.unchecked = append(o.unchecked, t)
		}
	}
	return o
}

func (*BasicOracle) Resolve(ref *Ident) *Variable {
	if ref == nil {
		return nil
	}
	return ref.Decl
}

func (o *BasicOracle) TypeOf(e Expr) *Type {
	switch e := Unparen(e).(type) {
	case *New:
		return e.Type
	case *Ident:
		if v := o.Resolve(e); v != nil {
			return v.Type
		}
	case *Conditional:
		if t := o.TypeOf(e.Then); t != nil {
			return t
		}
		return o.TypeOf(e.Else)
	case *Assign:
		return o.TypeOf(e.Value)
	}
	return nil
}

func (*BasicOracle) IsSubtype(sub, super *Type) bool {
	if super == nil {
		return false
	}
	for t := sub; t != nil; t = t.Super {
		if t == super || t.Name == super.Name {
			return true
		}
	}
	return false
}

func (*BasicOracle) IsUnchecked(t *Type) bool {
	for ; t != nil; t = t.Super {
		if t.Unchecked {
			return true
		}
	}
	return false
}

func (o *BasicOracle) CatchesUnchecked(t *Type) bool {
	if t == nil {
		return false
	}
	if o.IsUnchecked(t) || t.Super == nil {
		return true
	}
	for _, u := range o.unchecked {
		if o.IsSubtype(u, t) {
			return true
		}
	}
	return false
}

func (o *BasicOracle) Constant(e Expr) (any, bool) {
	return evalConstant(o, e, 0)
}

func (o *BasicOracle) UnhandledExceptions(n, scope Node) []*Type {
	if IsNil(scope) {
		scope = n
	}
	var out []*Type
	add := func(thrower Node, types []*Type) {
		for _, t := range types {
			if t == nil || o.IsUnchecked(t) || o.handled(thrower, scope, t) || containsType(out, t) {
				continue
			}
			out = append(out, t)
		}
	}
	Inspect(n, func(x Node) bool {
		switch x := x.(type) {
		case *Lambda:
			return false
		case *Call:
			add(x, x.Throws)
		case *New:
			add(x, x.Throws)
		case *Throw:
			if t := o.TypeOf(x.X); t != nil {
				add(x, []*Type{t})
			}
		}
		return true
	})
	return out
}

// handled reports whether a try between thrower and scope catches t.
func (o *BasicOracle) handled(thrower, scope Node, t *Type) bool {
	for child := thrower; child != scope && !IsNil(child.Parent()); child = child.Parent() {
		try, ok := child.Parent().(*Try)
		if !ok || try.Body != child {
			continue
		}
		for _, c := range try.Catches {
			for _, ct := range c.Types {
				if o.IsSubtype(t, ct) {
					return true
				}
			}
		}
	}
	return false
}

func containsType(list []*Type, t *Type) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}
