// Package nolint reads suppression directives from source comments.
//
// A directive names the rules it silences, or silences every rule when it
// names none:
//
//	//nolint
//	//nolint:missing-return,unreachable-code
//	//cflow:ignore unreachable-code
//
// In Go sources a directive before the package clause covers the file, one
// that trails code covers that statement, and one alone on a line covers the
// statement or function starting on the next line. Tree files use YAML
// comments (# nolint:rule) that cover the node they are attached to.
package nolint

import (
	"errors"
	"go/ast"
	"go/token"
	"strings"

	"gopkg.in/yaml.v3"
)

var errNotDirective = errors.New("not a suppression directive")

// Manager answers whether an issue is suppressed.
type Manager struct {
	// scopes maps filename to the suppressions declared in it.
	scopes map[string][]scope
}

// scope is a line range where some rules are silenced. A nil rule set
// silences every rule.
type scope struct {
	rules      map[string]bool
	start, end int
}

func (s scope) covers(line int, rule string) bool {
	if line < s.start || line > s.end {
		return false
	}
	return s.rules == nil || s.rules[rule]
}

func (m *Manager) add(filename string, rules map[string]bool, start, end int) {
	if m.scopes == nil {
		m.scopes = make(map[string][]scope)
	}
	m.scopes[filename] = append(m.scopes[filename], scope{rules: rules, start: start, end: end})
}

// Len returns the number of directives read.
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	n := 0
	for _, s := range m.scopes {
		n += len(s)
	}
	return n
}

// IsNolint reports whether rule is silenced at pos. A nil manager silences
// nothing.
func (m *Manager) IsNolint(pos token.Position, rule string) bool {
	if m == nil {
		return false
	}
	for _, s := range m.scopes[pos.Filename] {
		if s.covers(pos.Line, rule) {
			return true
		}
	}
	return false
}

// parseDirective returns the rules named by a comment. The text is the
// comment without its marker (// or #).
func parseDirective(text string) (map[string]bool, error) {
	text = strings.TrimSpace(text)
	var rest string
	switch {
	case strings.HasPrefix(text, "nolint"):
		rest = strings.TrimPrefix(text, "nolint")
		if rest == "" {
			return nil, nil
		}
		if rest[0] != ':' {
			return nil, errNotDirective
		}
		rest = rest[1:]
		if strings.TrimSpace(rest) == "" {
			return nil, errNotDirective
		}
	case strings.HasPrefix(text, "cflow:ignore"):
		rest = strings.TrimPrefix(text, "cflow:ignore")
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			return nil, errNotDirective
		}
	default:
		return nil, errNotDirective
	}

	// a trailing explanation after // is allowed
	if i := strings.Index(rest, "//"); i >= 0 {
		rest = rest[:i]
	}
	var rules map[string]bool
	for _, r := range strings.FieldsFunc(rest, func(c rune) bool { return c == ',' || c == ' ' || c == '\t' }) {
		if rules == nil {
			rules = make(map[string]bool)
		}
		rules[r] = true
	}
	return rules, nil
}

// ParseComments reads the directives of a Go file.
func ParseComments(f *ast.File, fset *token.FileSet) *Manager {
	m := &Manager{}
	lines := indexLines(f, fset)
	packageLine := fset.Position(f.Package).Line
	fileEnd := fset.Position(f.End()).Line

	for _, cg := range f.Comments {
		for _, c := range cg.List {
			if !strings.HasPrefix(c.Text, "//") {
				continue
			}
			rules, err := parseDirective(c.Text[2:])
			if err != nil {
				continue
			}
			pos := fset.Position(c.Slash)
			start, end := pos.Line, pos.Line
			switch {
			case pos.Line < packageLine:
				start, end = 1, fileEnd
			case lines.trailing(pos):
				end = lines.at[pos.Line].end
			default:
				if next, ok := lines.at[pos.Line+1]; ok {
					end = next.end
				}
			}
			m.add(pos.Filename, rules, start, end)
		}
	}
	return m
}

// span is the line range of the first statement or declaration on a line.
type span struct {
	offset int
	end    int
}

type lineIndex struct {
	at map[int]span
}

func indexLines(f *ast.File, fset *token.FileSet) lineIndex {
	idx := lineIndex{at: make(map[int]span)}
	ast.Inspect(f, func(n ast.Node) bool {
		switch n.(type) {
		case ast.Stmt, *ast.FuncDecl, *ast.GenDecl:
		default:
			return n != nil
		}
		p := fset.Position(n.Pos())
		if _, seen := idx.at[p.Line]; !seen {
			idx.at[p.Line] = span{offset: p.Offset, end: fset.Position(n.End()).Line}
		}
		return true
	})
	return idx
}

// trailing reports whether a comment at pos follows code on its line.
func (idx lineIndex) trailing(pos token.Position) bool {
	s, ok := idx.at[pos.Line]
	return ok && pos.Offset > s.offset
}

// ParseYAML reads the directives of a tree file. A directive in the head or
// line comment of a node covers the lines of that node; on a mapping key or
// scalar value it covers the whole mapping.
func ParseYAML(filename string, data []byte) (*Manager, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	m := &Manager{}
	var visit func(n, cover *yaml.Node)
	visit = func(n, cover *yaml.Node) {
		for _, comment := range []string{n.HeadComment, n.LineComment} {
			for _, line := range strings.Split(comment, "\n") {
				line = strings.TrimSpace(line)
				if !strings.HasPrefix(line, "#") {
					continue
				}
				rules, err := parseDirective(line[1:])
				if err != nil {
					continue
				}
				m.add(filename, rules, cover.Line, lastLine(cover))
			}
		}
		for i, c := range n.Content {
			inner := c
			if n.Kind == yaml.MappingNode && (i%2 == 0 || c.Kind == yaml.ScalarNode) {
				inner = n
			}
			visit(c, inner)
		}
	}
	visit(&doc, &doc)
	return m, nil
}

func lastLine(n *yaml.Node) int {
	last := n.Line
	for _, c := range n.Content {
		if l := lastLine(c); l > last {
			last = l
		}
	}
	return last
}
