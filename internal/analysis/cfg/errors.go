package cfg

import (
	"fmt"

	"github.com/gnolang/cflow/ast"
)

// CanceledError reports a build aborted at Node, either because the tree is
// structurally broken there or because the context was canceled.
type CanceledError struct {
	Node  ast.Node
	Cause error
}

func (e *CanceledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("analysis canceled at %s: %v", describe(e.Node), e.Cause)
	}
	return fmt.Sprintf("analysis canceled at %s: malformed tree", describe(e.Node))
}

func (e *CanceledError) Unwrap() error { return e.Cause }

// DefectError reports a violated builder invariant. It means the builder is
// wrong, not the input.
type DefectError struct {
	Node   ast.Node
	Reason string
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("control flow builder defect at %s: %s", describe(e.Node), e.Reason)
}

func describe(n ast.Node) string {
	if ast.IsNil(n) {
		return "<root>"
	}
	if pos := n.Meta().Pos; pos.IsValid() {
		return fmt.Sprintf("%s (%s:%d:%d)", n, pos.Filename, pos.Line, pos.Column)
	}
	return n.String()
}

// panic payloads used to unwind a build
type (
	canceled struct{ err *CanceledError }
	defect   struct{ err *DefectError }
)
