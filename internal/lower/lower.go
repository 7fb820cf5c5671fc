// Package lower turns Go source into trees the graph builder understands.
//
// Go constructs map onto the tree model as follows:
//
//   - defer runs the deferred call in a finally block around the rest of the
//     enclosing block
//   - panic throws an unchecked exception of type panic
//   - switch clauses end with an explicit break unless they fall through
//   - a select statement becomes a switch over its communication clauses
//   - variables declared without a value hold their zero value
//
// goto has no counterpart; a function that uses it lowers to a tree the
// builder rejects.
package lower

import (
	"errors"
	"fmt"
	goast "go/ast"
	"go/parser"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/gnolang/cflow/ast"
)

// ErrNoFunctions is returned for sources without a function body.
var ErrNoFunctions = errors.New("no functions with a body")

// PanicType is the type of every value thrown by panic.
var PanicType = &ast.Type{Name: "panic", Unchecked: true}

// Source parses and lowers a Go file.
func Source(filename string, src []byte) (*ast.Unit, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("error parsing file: %w", err)
	}
	return File(fset, f)
}

// File lowers every function declaration of f that has a body.
func File(fset *token.FileSet, f *goast.File) (*ast.Unit, error) {
	unit := &ast.Unit{
		Filename: fset.Position(f.Pos()).Filename,
		Types:    map[string]*ast.Type{PanicType.Name: PanicType},
	}
	for _, decl := range f.Decls {
		fd, ok := decl.(*goast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		l := &lowerer{fset: fset}
		unit.Functions = append(unit.Functions, l.function(fd))
	}
	if len(unit.Functions) == 0 {
		return nil, ErrNoFunctions
	}
	return unit, nil
}

// normalize drops parentheses and empty statements.
func normalize(body *goast.BlockStmt) {
	astutil.Apply(body, func(c *astutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *goast.ParenExpr:
			c.Replace(astutil.Unparen(n))
		case *goast.EmptyStmt:
			if c.Index() >= 0 {
				c.Delete()
			}
		}
		return true
	}, nil)
}

type lowerer struct {
	fset *token.FileSet
	// scopes mirrors Go's block scopes. It decides whether := declares
	// a name or assigns it.
	scopes []map[string]bool
}

func (l *lowerer) push() { l.scopes = append(l.scopes, map[string]bool{}) }
func (l *lowerer) pop()  { l.scopes = l.scopes[:len(l.scopes)-1] }

func (l *lowerer) declare(name string) {
	if name != "_" {
		l.scopes[len(l.scopes)-1][name] = true
	}
}

func (l *lowerer) declaredHere(name string) bool {
	return l.scopes[len(l.scopes)-1][name]
}

// at stamps n with the source position of pos.
func at[N ast.Node](l *lowerer, n N, pos token.Pos) N {
	if pos.IsValid() {
		p := l.fset.Position(pos)
		n.Meta().Pos = ast.Position{Filename: p.Filename, Line: p.Line, Column: p.Column}
	}
	return n
}

func (l *lowerer) function(fd *goast.FuncDecl) *ast.Function {
	normalize(fd.Body)

	fn := at(l, &ast.Function{Name: funcName(fd)}, fd.Name.Pos())
	l.push()
	if fd.Recv != nil {
		fn.Params = append(fn.Params, l.params(fd.Recv)...)
	}
	fn.Params = append(fn.Params, l.params(fd.Type.Params)...)
	for _, p := range fn.Params {
		p.Decl = fn
	}

	var prologue []ast.Stmt
	if res := fd.Type.Results; res != nil && res.NumFields() > 0 {
		fn.Results = true
		// named results start at their zero value
		for _, field := range res.List {
			for _, name := range field.Names {
				if name.Name == "_" {
					continue
				}
				v := &ast.Variable{Name: name.Name, Kind: ast.KindLocal}
				l.declare(name.Name)
				prologue = append(prologue, l.let(v, zero(field.Type), name.Pos()))
			}
		}
	}

	body := l.block(fd.Body, false)
	body.Stmts = append(prologue, body.Stmts...)
	fn.Body = body
	l.pop()

	ast.Resolve(fn)
	return fn
}

func funcName(fd *goast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return fd.Name.Name
	}
	recv := fd.Recv.List[0].Type
	if star, ok := recv.(*goast.StarExpr); ok {
		recv = star.X
	}
	if idx, ok := recv.(*goast.IndexExpr); ok {
		recv = idx.X
	}
	if idx, ok := recv.(*goast.IndexListExpr); ok {
		recv = idx.X
	}
	return types.ExprString(recv) + "." + fd.Name.Name
}

// params declares the named parameters of fields in the current scope.
func (l *lowerer) params(fields *goast.FieldList) []*ast.Variable {
	if fields == nil {
		return nil
	}
	var out []*ast.Variable
	for _, field := range fields.List {
		for _, name := range field.Names {
			if name.Name == "_" {
				continue
			}
			l.declare(name.Name)
			out = append(out, &ast.Variable{
				Name: name.Name,
				Kind: ast.KindParam,
				Type: &ast.Type{Name: types.ExprString(field.Type)},
			})
		}
	}
	return out
}

// zero returns the zero value literal written by a declaration of type t.
func zero(t goast.Expr) ast.Expr {
	if id, ok := t.(*goast.Ident); ok {
		switch id.Name {
		case "bool":
			return ast.BoolLit(false)
		case "string":
			return ast.StrLit("")
		case "int", "int8", "int16", "int32", "int64",
			"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
			"byte", "rune":
			return ast.IntLit(0)
		case "float32", "float64":
			return &ast.Literal{Value: float64(0)}
		}
	}
	return &ast.Literal{}
}

// let declares v with init at pos.
func (l *lowerer) let(v *ast.Variable, init ast.Expr, pos token.Pos) *ast.DeclStmt {
	d := ast.Let(v, init)
	at(l, d.Vars[0], pos)
	return at(l, d, pos)
}
