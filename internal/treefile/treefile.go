// Package treefile reads trees written as YAML.
//
// A tree file declares exception types and functions:
//
//	types:
//	  - {name: Exception}
//	  - {name: IOError, super: Exception}
//	  - {name: RuntimeError, super: Exception, unchecked: true}
//	functions:
//	  - name: read
//	    params: [path]
//	    results: true
//	    body:
//	      - let: n
//	      - try:
//	          - set: n
//	            value: {call: open, args: [path], throws: [IOError]}
//	        catch:
//	          - {param: e, types: [IOError], body: [{set: n, value: -1}]}
//	        finally:
//	          - eval: {call: close}
//	      - return: n
//
// Statements are mappings keyed by their kind; break, continue, return and
// empty may also be written as bare words. Expressions are scalars or
// mappings keyed by their operator. Plain words are identifiers and quoted
// scalars are string literals. Identifiers bind lexically once the function
// is read.
package treefile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/cflow/ast"
)

var (
	ErrUnknownStatement  = errors.New("unknown statement")
	ErrUnknownExpression = errors.New("unknown expression")
)

type file struct {
	Types     []typeDecl `yaml:"types"`
	Functions []funcDecl `yaml:"functions"`
}

type typeDecl struct {
	Name      string `yaml:"name"`
	Super     string `yaml:"super"`
	Unchecked bool   `yaml:"unchecked"`
}

type funcDecl struct {
	Name    string    `yaml:"name"`
	Params  []string  `yaml:"params"`
	Results bool      `yaml:"results"`
	Throws  []string  `yaml:"throws"`
	Body    yaml.Node `yaml:"body"`
}

// Load reads and parses the tree file at path.
func Load(path string) (*ast.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading tree file: %w", err)
	}
	return Parse(path, data)
}

// Parse reads a tree file. Every function of the result is linked and its
// identifiers are resolved.
func Parse(filename string, data []byte) (*ast.Unit, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", filename, err)
	}
	if len(f.Functions) == 0 {
		return nil, fmt.Errorf("%s: no functions", filename)
	}

	d := &decoder{filename: filename, types: make(map[string]*ast.Type)}
	if err := d.declareTypes(f.Types); err != nil {
		return nil, err
	}

	unit := &ast.Unit{Filename: filename, Types: d.types}
	for i := range f.Functions {
		fn, err := d.function(&f.Functions[i])
		if err != nil {
			return nil, err
		}
		unit.Functions = append(unit.Functions, fn)
	}
	return unit, nil
}

type decoder struct {
	filename string
	types    map[string]*ast.Type
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%s:%d:%d: %w", d.filename, n.Line, n.Column, fmt.Errorf(format, args...))
}

func (d *decoder) declareTypes(decls []typeDecl) error {
	for _, td := range decls {
		if td.Name == "" {
			return fmt.Errorf("%s: type without a name", d.filename)
		}
		if _, dup := d.types[td.Name]; dup {
			return fmt.Errorf("%s: type %s declared twice", d.filename, td.Name)
		}
		d.types[td.Name] = &ast.Type{Name: td.Name, Unchecked: td.Unchecked}
	}
	for _, td := range decls {
		if td.Super == "" {
			continue
		}
		super, ok := d.types[td.Super]
		if !ok {
			return fmt.Errorf("%s: type %s extends undeclared type %s", d.filename, td.Name, td.Super)
		}
		d.types[td.Name].Super = super
	}
	// a cycle would make subtype walks loop forever
	for _, t := range d.types {
		seen := map[*ast.Type]bool{}
		for s := t; s != nil; s = s.Super {
			if seen[s] {
				return fmt.Errorf("%s: type %s extends itself", d.filename, t.Name)
			}
			seen[s] = true
		}
	}
	return nil
}

// typ returns the type named name, declaring an undeclared one as a root
// checked type.
func (d *decoder) typ(name string) *ast.Type {
	if t, ok := d.types[name]; ok {
		return t
	}
	t := &ast.Type{Name: name}
	d.types[name] = t
	return t
}

func (d *decoder) typeList(n *yaml.Node) ([]*ast.Type, error) {
	if n == nil {
		return nil, nil
	}
	var names []string
	if n.Kind == yaml.ScalarNode {
		names = []string{n.Value}
	} else if err := n.Decode(&names); err != nil {
		return nil, d.errorf(n, "expected a list of type names")
	}
	out := make([]*ast.Type, 0, len(names))
	for _, name := range names {
		out = append(out, d.typ(name))
	}
	return out, nil
}

func (d *decoder) function(fd *funcDecl) (*ast.Function, error) {
	if fd.Name == "" {
		return nil, fmt.Errorf("%s: function without a name", d.filename)
	}
	fn := &ast.Function{Name: fd.Name, Results: fd.Results}
	fn.Pos = d.position(&fd.Body)
	for _, p := range fd.Params {
		v := ast.NewParam(p)
		v.Decl = fn
		fn.Params = append(fn.Params, v)
	}
	for _, t := range fd.Throws {
		fn.Throws = append(fn.Throws, d.typ(t))
	}

	body := &ast.Block{}
	if fd.Body.Kind != 0 {
		b, err := d.block(&fd.Body)
		if err != nil {
			return nil, fmt.Errorf("error reading function %s: %w", fd.Name, err)
		}
		body = b
	}
	fn.Body = body
	ast.Resolve(fn)
	return fn, nil
}

func (d *decoder) position(n *yaml.Node) ast.Position {
	if n == nil || n.Line == 0 {
		return ast.Position{}
	}
	return ast.Position{Filename: d.filename, Line: n.Line, Column: n.Column}
}

// at stamps node with the position of n.
func at[N ast.Node](d *decoder, node N, n *yaml.Node) N {
	node.Meta().Pos = d.position(n)
	return node
}

// fields maps the keys of a mapping node to their values.
type fields map[string]*yaml.Node

func (d *decoder) fields(n *yaml.Node) (fields, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "expected a mapping")
	}
	out := make(fields, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out[n.Content[i].Value] = n.Content[i+1]
	}
	return out, nil
}

func (f fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

// str returns the scalar under key, or "".
func (f fields) str(key string) string {
	if n, ok := f[key]; ok && n.Kind == yaml.ScalarNode && n.Tag != "!!null" {
		return n.Value
	}
	return ""
}

func (f fields) flag(key string) bool {
	n, ok := f[key]
	if !ok {
		return false
	}
	var b bool
	return n.Decode(&b) == nil && b
}
