package nolint

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirective(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text    string
		rules   map[string]bool
		invalid bool
	}{
		{text: "nolint"},
		{text: "nolint:missing-return", rules: map[string]bool{"missing-return": true}},
		{text: "nolint:a, b", rules: map[string]bool{"a": true, "b": true}},
		{text: "nolint:a // generated", rules: map[string]bool{"a": true}},
		{text: " cflow:ignore a b", rules: map[string]bool{"a": true, "b": true}},
		{text: "cflow:ignore"},
		{text: "nolint:", invalid: true},
		{text: "nolintx", invalid: true},
		{text: "cflow:ignored", invalid: true},
		{text: "some comment", invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			rules, err := parseDirective(tt.text)
			if tt.invalid {
				assert.ErrorIs(t, err, errNotDirective)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rules, rules)
		})
	}
}

func TestParseComments(t *testing.T) {
	t.Parallel()

	src := `package main

func main() {
	//nolint
	work(5)
	work(6)
	work(7) //nolint:rule1
	//cflow:ignore rule2
	if c {
		work(10)
	}
	/* nolint */
	work(13)
}

//nolint:missing-return
func other() int {
	work(18)
}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	require.NoError(t, err)

	m := ParseComments(f, fset)
	assert.Equal(t, 4, m.Len())

	tests := []struct {
		rule string
		line int
		want bool
	}{
		{"anyrule", 5, true},
		{"anyrule", 6, false},
		{"rule1", 7, true},
		{"rule2", 7, false},
		{"rule2", 9, true},
		{"rule2", 10, true},
		{"rule2", 11, true},
		{"rule3", 10, false},
		{"anyrule", 13, false},
		{"missing-return", 17, true},
		{"missing-return", 18, true},
		{"unreachable-code", 18, false},
	}
	for _, tt := range tests {
		pos := token.Position{Filename: "test.go", Line: tt.line, Column: 1}
		assert.Equal(t, tt.want, m.IsNolint(pos, tt.rule), "%s at line %d", tt.rule, tt.line)
	}

	other := token.Position{Filename: "other.go", Line: 5, Column: 1}
	assert.False(t, m.IsNolint(other, "anyrule"))
}

func TestFileLevelDirective(t *testing.T) {
	t.Parallel()

	src := `//nolint:single-assignment

package main

func a() { work() }

func b() { work() }
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	require.NoError(t, err)

	m := ParseComments(f, fset)
	for _, line := range []int{5, 7} {
		pos := token.Position{Filename: "test.go", Line: line}
		assert.True(t, m.IsNolint(pos, "single-assignment"))
		assert.False(t, m.IsNolint(pos, "missing-return"))
	}
}

func TestNilManager(t *testing.T) {
	t.Parallel()

	var m *Manager
	assert.False(t, m.IsNolint(token.Position{Filename: "x.go", Line: 1}, "rule"))
	assert.Zero(t, m.Len())
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	src := `functions:
  - name: f
    body:
      - let: x # nolint:uninitialized-read
      - try:
          - eval: {call: a}
        finally:
          - eval: {call: b}
      # cflow:ignore unreachable-code
      - eval: {call: c}
      - eval: {call: d}
`
	m, err := ParseYAML("f.yaml", []byte(src))
	require.NoError(t, err)

	at := func(line int) token.Position { return token.Position{Filename: "f.yaml", Line: line} }
	assert.True(t, m.IsNolint(at(4), "uninitialized-read"))
	assert.False(t, m.IsNolint(at(5), "uninitialized-read"))
	assert.True(t, m.IsNolint(at(10), "unreachable-code"))
	assert.False(t, m.IsNolint(at(11), "unreachable-code"))

	_, err = ParseYAML("bad.yaml", []byte("a: [\n"))
	assert.Error(t, err)
}
