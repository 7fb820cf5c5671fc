package lower

import (
	goast "go/ast"
	"go/token"
)

// terminates reports whether control cannot leave list through its end. It
// follows Go's terminating statements, and also counts a trailing break or
// continue since those leave the list too.
func terminates(list []goast.Stmt) bool {
	if len(list) == 0 {
		return false
	}
	return terminating(list[len(list)-1])
}

func terminating(s goast.Stmt) bool {
	switch s := s.(type) {
	case *goast.ReturnStmt:
		return true
	case *goast.BranchStmt:
		return s.Tok == token.GOTO || s.Tok == token.BREAK || s.Tok == token.CONTINUE
	case *goast.ExprStmt:
		call, ok := s.X.(*goast.CallExpr)
		if !ok {
			return false
		}
		id, ok := call.Fun.(*goast.Ident)
		return ok && id.Name == "panic"
	case *goast.BlockStmt:
		return terminates(s.List)
	case *goast.IfStmt:
		if s.Else == nil {
			return false
		}
		var els bool
		switch e := s.Else.(type) {
		case *goast.BlockStmt:
			els = terminates(e.List)
		case *goast.IfStmt:
			els = terminating(e)
		}
		return els && terminates(s.Body.List)
	case *goast.ForStmt:
		return s.Cond == nil && !hasBreak(s.Body, "", true)
	case *goast.LabeledStmt:
		if !terminating(s.Stmt) {
			return false
		}
		// a labeled break leaves the statement
		return !hasBreak(s.Stmt, s.Label.Name, false)
	case *goast.SwitchStmt:
		return clausesTerminate(s.Body, true)
	case *goast.TypeSwitchStmt:
		return clausesTerminate(s.Body, true)
	case *goast.SelectStmt:
		return clausesTerminate(s.Body, false)
	}
	return false
}

// clausesTerminate reports whether every clause of body terminates or falls
// through and none breaks out. Switches also need a default clause.
func clausesTerminate(body *goast.BlockStmt, needDefault bool) bool {
	hasDefault := !needDefault
	for _, st := range body.List {
		var stmts []goast.Stmt
		switch c := st.(type) {
		case *goast.CaseClause:
			if c.List == nil {
				hasDefault = true
			}
			stmts = c.Body
		case *goast.CommClause:
			stmts = c.Body
		}
		for _, s := range stmts {
			if hasBreak(s, "", true) {
				return false
			}
		}
		if n := len(stmts); n > 0 {
			if br, ok := stmts[n-1].(*goast.BranchStmt); ok && br.Tok == token.FALLTHROUGH {
				continue
			}
		}
		if !terminates(stmts) {
			return false
		}
	}
	return hasDefault
}

// hasBreak reports whether n contains a break that leaves the statement
// being checked: an unlabeled one outside nested breakable statements when
// unlabeled is set, or one naming label.
func hasBreak(n goast.Node, label string, unlabeled bool) bool {
	found := false
	goast.Inspect(n, func(n goast.Node) bool {
		if found {
			return false
		}
		switch n := n.(type) {
		case *goast.FuncLit:
			return false
		case *goast.ForStmt, *goast.RangeStmt, *goast.SwitchStmt, *goast.TypeSwitchStmt, *goast.SelectStmt:
			if label == "" {
				// unlabeled breaks inside leave the nested statement
				return false
			}
		case *goast.BranchStmt:
			if n.Tok != token.BREAK {
				return true
			}
			if n.Label == nil && unlabeled {
				found = true
			}
			if n.Label != nil && n.Label.Name == label {
				found = true
			}
		}
		return true
	})
	return found
}
