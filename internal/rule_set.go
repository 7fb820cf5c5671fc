package internal

import (
	"context"
	"fmt"
	"go/token"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/internal/analysis/cfg"
	"github.com/gnolang/cflow/internal/analysis/dataflow"
	tt "github.com/gnolang/cflow/internal/types"
)

// Rule inspects one function at a time.
type Rule interface {
	// Check runs the rule on the function of pass and returns its issues.
	Check(pass *Pass) ([]tt.Issue, error)

	// Name returns the name of the rule.
	Name() string

	Severity() tt.Severity
	SetSeverity(tt.Severity)
}

type ruleConstructor func() Rule

var allRuleConstructors = map[string]ruleConstructor{
	"unreachable-code":   func() Rule { return &UnreachableCodeRule{ruleSeverity{tt.SeverityError}} },
	"uninitialized-read": func() Rule { return &UninitializedReadRule{ruleSeverity{tt.SeverityError}} },
	"final-reassigned":   func() Rule { return &FinalReassignedRule{ruleSeverity{tt.SeverityWarning}} },
	"missing-return":     func() Rule { return &MissingReturnRule{ruleSeverity{tt.SeverityError}} },
	"single-assignment":  func() Rule { return &SingleAssignmentRule{ruleSeverity{tt.SeverityInfo}} },
}

// RuleNames lists every known rule.
func RuleNames() []string {
	return []string{"unreachable-code", "uninitialized-read", "final-reassigned", "missing-return", "single-assignment"}
}

// DefaultRules returns the configuration of every rule at its default
// severity.
func DefaultRules() map[string]tt.ConfigRule {
	out := make(map[string]tt.ConfigRule, len(allRuleConstructors))
	for name, newRule := range allRuleConstructors {
		out[name] = tt.ConfigRule{Severity: newRule().Severity()}
	}
	return out
}

// Pass is what a rule sees of one function.
type Pass struct {
	ctx      context.Context
	engine   *Engine
	Filename string
	Function *ast.Function
}

func (p *Pass) Context() context.Context { return p.ctx }

func (p *Pass) Analyzer() *dataflow.Analyzer { return p.engine.analyzer }

// Graph returns the function's graph under the session options.
func (p *Pass) Graph() (*cfg.Graph, error) {
	return p.GraphWith(p.engine.options)
}

func (p *Pass) GraphWith(opts cfg.Options) (*cfg.Graph, error) {
	return p.engine.Graph(p.ctx, p.Function, opts)
}

// trace wraps a rule run in a span.
func (p *Pass) trace(rule string) (end func()) {
	_, span := p.engine.tracer.Start(p.ctx, "rule."+rule,
		trace.WithAttributes(
			attribute.String("file", p.Filename),
			attribute.String("function", p.Function.Name),
		),
	)
	return func() { span.End() }
}

func (p *Pass) issue(r Rule, n ast.Node, format string, args ...any) tt.Issue {
	pos := p.Function.Pos
	if !ast.IsNil(n) && n.Meta().Pos.IsValid() {
		pos = n.Meta().Pos
	}
	filename := pos.Filename
	if filename == "" {
		filename = p.Filename
	}
	return tt.Issue{
		Rule:     r.Name(),
		Category: "flow",
		Filename: filename,
		Function: p.Function.Name,
		Message:  fmt.Sprintf(format, args...),
		Start:    token.Position{Filename: filename, Line: pos.Line, Column: pos.Column},
		End:      token.Position{Filename: filename, Line: pos.Line, Column: pos.Column},
		Severity: r.Severity(),
	}
}

type ruleSeverity struct {
	level tt.Severity
}

func (s *ruleSeverity) Severity() tt.Severity     { return s.level }
func (s *ruleSeverity) SetSeverity(v tt.Severity) { s.level = v }

type UnreachableCodeRule struct{ ruleSeverity }

func (r *UnreachableCodeRule) Name() string { return "unreachable-code" }

func (r *UnreachableCodeRule) Check(p *Pass) ([]tt.Issue, error) {
	defer p.trace(r.Name())()

	// folded conditions would hide the code they guard
	opts := p.engine.options
	opts.EvaluateConstantConditions = false
	g, err := p.GraphWith(opts)
	if err != nil {
		return nil, err
	}
	s := p.Analyzer().UnreachableStatement(g)
	if s == nil {
		return nil, nil
	}
	return []tt.Issue{p.issue(r, s, "unreachable statement: %s", s)}, nil
}

type UninitializedReadRule struct{ ruleSeverity }

func (r *UninitializedReadRule) Name() string { return "uninitialized-read" }

func (r *UninitializedReadRule) Check(p *Pass) ([]tt.Issue, error) {
	defer p.trace(r.Name())()

	g, err := p.Graph()
	if err != nil {
		return nil, err
	}
	var issues []tt.Issue
	for _, site := range p.Analyzer().ReadBeforeWrite(g) {
		issues = append(issues, p.issue(r, site.Node, "variable %s might not have been initialized", site.Var))
	}
	return issues, nil
}

type FinalReassignedRule struct{ ruleSeverity }

func (r *FinalReassignedRule) Name() string { return "final-reassigned" }

func (r *FinalReassignedRule) Check(p *Pass) ([]tt.Issue, error) {
	defer p.trace(r.Name())()

	g, err := p.Graph()
	if err != nil {
		return nil, err
	}
	var issues []tt.Issue
	for _, w := range p.Analyzer().InitializedTwice(g) {
		if !w.Var.Final {
			continue
		}
		msg := "final variable %s might already have been assigned"
		if w.Loop {
			msg = "final variable %s might be assigned in loop"
		}
		issues = append(issues, p.issue(r, w.Node, msg, w.Var))
	}
	return issues, nil
}

type MissingReturnRule struct{ ruleSeverity }

func (r *MissingReturnRule) Name() string { return "missing-return" }

func (r *MissingReturnRule) Check(p *Pass) ([]tt.Issue, error) {
	defer p.trace(r.Name())()

	if !p.Function.Results {
		return nil, nil
	}
	g, err := p.Graph()
	if err != nil {
		return nil, err
	}
	if !p.Analyzer().CanCompleteNormally(g, 0, g.Size()) {
		return nil, nil
	}
	return []tt.Issue{p.issue(r, p.Function, "missing return at end of %s", p.Function.Name)}, nil
}

type SingleAssignmentRule struct{ ruleSeverity }

func (r *SingleAssignmentRule) Name() string { return "single-assignment" }

func (r *SingleAssignmentRule) Check(p *Pass) ([]tt.Issue, error) {
	defer p.trace(r.Name())()

	g, err := p.Graph()
	if err != nil {
		return nil, err
	}
	var candidates []*ast.Variable
	for _, v := range p.Analyzer().WrittenVariables(g, 0, g.Size()) {
		if v.Kind == ast.KindLocal && !v.Final {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	var issues []tt.Issue
	for _, v := range p.Analyzer().SingleStaticAssignment(g, candidates...) {
		issues = append(issues, p.issue(r, v.Decl, "variable %s is assigned exactly once", v))
	}
	return issues, nil
}
