package cfg

import (
	"fmt"

	"github.com/gnolang/cflow/ast"
)

// Instruction is one element of a graph. The set of kinds is closed; use a
// type switch to dispatch. Every instruction may also fall through to the
// next offset unless its kind says otherwise.
type Instruction interface {
	isInstruction()
	String() string
}

// Role tags the purpose of a branch target.
type Role uint8

const (
	RoleEnd Role = iota
	RoleThen
	RoleElse
)

func (r Role) String() string {
	switch r {
	case RoleThen:
		return "THEN"
	case RoleElse:
		return "ELSE"
	default:
		return "END"
	}
}

// Completion is the reason control enters a finally block. It doubles as
// the index of the matching dispatch Return after the block.
type Completion int

const (
	Normal Completion = iota
	ReturnStatement
	UncheckedThrow
	checkedBase
)

// CheckedThrow is the completion of a checked exception thrown towards the
// i-th distinct catch clause recorded for a finally block.
func CheckedThrow(i int) Completion { return checkedBase + Completion(i) }

// Catch returns the catch index of a CheckedThrow completion.
func (c Completion) Catch() (int, bool) {
	if c < checkedBase {
		return 0, false
	}
	return int(c - checkedBase), true
}

func (c Completion) String() string {
	switch c {
	case Normal:
		return "normal"
	case ReturnStatement:
		return "return"
	case UncheckedThrow:
		return "unchecked"
	}
	i, _ := c.Catch()
	return fmt.Sprintf("checked#%d", i)
}

type (
	// Empty stands for executable code with no data effect.
	Empty struct{}

	Comment struct {
		Text string
	}

	ReadVariable struct {
		Var *ast.Variable
	}

	WriteVariable struct {
		Var *ast.Variable
	}

	// Goto jumps to Target. IsReturn marks jumps leaving the function.
	Goto struct {
		Target   int
		Role     Role
		IsReturn bool
	}

	// ConditionalGoto jumps to Target or falls through.
	ConditionalGoto struct {
		Target int
		Role   Role
		Cond   ast.Expr
	}

	// Call enters the finally block [ProcBegin, ProcEnd). Control resumes at
	// the following offset when the block returns normally.
	Call struct {
		ProcBegin int
		ProcEnd   int
		Reason    Completion
	}

	// Return leaves the finally block starting at Proc. With Override >= 0
	// control continues there; otherwise it resumes after the Call on top of
	// the call stack.
	Return struct {
		Override int
		CallSite int
		Proc     int
		Reason   Completion
	}

	ThrowTo struct {
		Target int
	}

	// ConditionalThrowTo jumps to Target or falls through.
	ConditionalThrowTo struct {
		Target int
		Cond   ast.Expr
	}
)

func (Empty) isInstruction()              {}
func (Comment) isInstruction()            {}
func (ReadVariable) isInstruction()       {}
func (WriteVariable) isInstruction()      {}
func (Goto) isInstruction()               {}
func (ConditionalGoto) isInstruction()    {}
func (Call) isInstruction()               {}
func (Return) isInstruction()             {}
func (ThrowTo) isInstruction()            {}
func (ConditionalThrowTo) isInstruction() {}

func (Empty) String() string           { return "EMPTY" }
func (i Comment) String() string       { return "COMMENT " + i.Text }
func (i ReadVariable) String() string  { return "READ " + i.Var.String() }
func (i WriteVariable) String() string { return "WRITE " + i.Var.String() }

func (i Goto) String() string {
	if i.IsReturn {
		return fmt.Sprintf("GOTO [%s] %d RETURN", i.Role, i.Target)
	}
	return fmt.Sprintf("GOTO [%s] %d", i.Role, i.Target)
}

func (i ConditionalGoto) String() string {
	return fmt.Sprintf("COND_GOTO [%s] %d", i.Role, i.Target)
}

func (i Call) String() string {
	return fmt.Sprintf("CALL %d-%d %s", i.ProcBegin, i.ProcEnd, i.Reason)
}

func (i Return) String() string {
	if i.Override >= 0 {
		return fmt.Sprintf("RETURN %s TO %d", i.Reason, i.Override)
	}
	return fmt.Sprintf("RETURN %s FROM %d", i.Reason, i.CallSite)
}

func (i ThrowTo) String() string            { return fmt.Sprintf("THROW_TO %d", i.Target) }
func (i ConditionalThrowTo) String() string { return fmt.Sprintf("COND_THROW_TO %d", i.Target) }

// Target returns the explicit branch target of a branching instruction.
// For a Return it is the override.
func Target(ins Instruction) (int, bool) {
	switch i := ins.(type) {
	case Goto:
		return i.Target, true
	case ConditionalGoto:
		return i.Target, true
	case ThrowTo:
		return i.Target, true
	case ConditionalThrowTo:
		return i.Target, true
	case Call:
		return i.ProcBegin, true
	case Return:
		return i.Override, i.Override >= 0
	}
	return 0, false
}

// withTarget returns ins with its branch target replaced by fn(target).
// Calls are rebased as a whole.
func withTarget(ins Instruction, fn func(int) int) Instruction {
	switch i := ins.(type) {
	case Goto:
		i.Target = fn(i.Target)
		return i
	case ConditionalGoto:
		i.Target = fn(i.Target)
		return i
	case ThrowTo:
		i.Target = fn(i.Target)
		return i
	case ConditionalThrowTo:
		i.Target = fn(i.Target)
		return i
	case Call:
		i.ProcBegin = fn(i.ProcBegin)
		i.ProcEnd = fn(i.ProcEnd)
		return i
	case Return:
		if i.Override >= 0 {
			i.Override = fn(i.Override)
		}
		if i.CallSite >= 0 {
			i.CallSite = fn(i.CallSite)
		}
		i.Proc = fn(i.Proc)
		return i
	}
	return ins
}
