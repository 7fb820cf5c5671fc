package cfg

import "github.com/gnolang/cflow/ast"

// Policy selects the variables a graph tracks. Implementations must be
// comparable; the result cache uses them as part of its key.
type Policy interface {
	// VariableForReference returns the tracked variable ref reads or
	// writes, or nil.
	VariableForReference(ref *ast.Ident) *ast.Variable
	ParameterAccepted(p *ast.Variable) bool
	LocalAccepted(v *ast.Variable) bool
}

// Options tune graph construction.
type Options struct {
	// ShortCircuitJumps lets each && and || operand jump straight to the
	// branch it decides.
	ShortCircuitJumps bool
	// EvaluateConstantConditions folds constant if conditions. Leave it off
	// for unreachable-statement analysis.
	EvaluateConstantConditions bool
	// ExceptionAfterAssignment adds a jump to every enclosing catch clause
	// after each expression statement.
	ExceptionAfterAssignment bool
}

// DefaultOptions enables every option.
func DefaultOptions() Options {
	return Options{
		ShortCircuitJumps:          true,
		EvaluateConstantConditions: true,
		ExceptionAfterAssignment:   true,
	}
}

func (o Options) String() string {
	b := func(v bool) byte {
		if v {
			return '1'
		}
		return '0'
	}
	return string([]byte{b(o.ShortCircuitJumps), b(o.EvaluateConstantConditions), b(o.ExceptionAfterAssignment)})
}

// VariablePolicy tracks variables by kind.
type VariablePolicy struct {
	oracle ast.Oracle
	fields bool
	params bool
}

// LocalsPolicy tracks locals and every kind of parameter.
func LocalsPolicy(o ast.Oracle) *VariablePolicy {
	return &VariablePolicy{oracle: o, params: true}
}

// AllVariablesPolicy also tracks fields.
func AllVariablesPolicy(o ast.Oracle) *VariablePolicy {
	return &VariablePolicy{oracle: o, params: true, fields: true}
}

// LocalsOnlyPolicy tracks locals, loop and catch parameters but not function
// parameters.
func LocalsOnlyPolicy(o ast.Oracle) *VariablePolicy {
	return &VariablePolicy{oracle: o}
}

func (p *VariablePolicy) VariableForReference(ref *ast.Ident) *ast.Variable {
	v := p.oracle.Resolve(ref)
	if v == nil {
		return nil
	}
	switch v.Kind {
	case ast.KindField:
		if !p.fields {
			return nil
		}
	case ast.KindParam:
		if !p.params {
			return nil
		}
	}
	return v
}

func (p *VariablePolicy) ParameterAccepted(v *ast.Variable) bool {
	return v != nil && (v.Kind != ast.KindParam || p.params)
}

func (p *VariablePolicy) LocalAccepted(v *ast.Variable) bool {
	return v != nil
}
