package internal

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/internal/analysis/cfg"
	"github.com/gnolang/cflow/internal/analysis/dataflow"
	"github.com/gnolang/cflow/internal/lower"
	"github.com/gnolang/cflow/internal/nolint"
	"github.com/gnolang/cflow/internal/treefile"
	tt "github.com/gnolang/cflow/internal/types"
)

var engineTracer = otel.Tracer("cflow/engine")

// Policy names accepted in configuration.
const (
	PolicyLocals          = "locals"
	PolicyLocalsAndParams = "locals-and-params"
	PolicyAll             = "all"
)

// EngineConfig selects how graphs are built and which rules run.
type EngineConfig struct {
	Options      cfg.Options
	Policy       string
	MaxCallDepth int
	Rules        map[string]tt.ConfigRule
}

// DefaultEngineConfig builds with every option on and tracks locals.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{Options: cfg.DefaultOptions(), Policy: PolicyLocals}
}

// Engine is an analysis session. It owns the graph cache, so graphs built
// for one check are reused by every rule and by later checks until the
// clock advances.
type Engine struct {
	oracle   ast.Oracle
	policy   cfg.Policy
	options  cfg.Options
	clock    *VersionClock
	cache    *ResultCache
	analyzer *dataflow.Analyzer
	logger   *zap.Logger
	tracer   trace.Tracer

	rules        map[string]Rule
	ignoredRules map[string]bool
	mu           sync.RWMutex
}

type EngineOption func(*Engine)

func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithOracle(o ast.Oracle) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.oracle = o
		}
	}
}

func WithClock(c *VersionClock) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewEngine creates an analysis session.
func NewEngine(conf EngineConfig, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		oracle:  ast.NewBasicOracle(),
		options: conf.Options,
		clock:   &VersionClock{},
		logger:  zap.NewNop(),
		tracer:  engineTracer,
	}
	for _, opt := range opts {
		opt(e)
	}

	policy, err := newPolicy(conf.Policy, e.oracle)
	if err != nil {
		return nil, err
	}
	e.policy = policy
	e.cache = NewResultCache(e.clock, e.logger.Named("cache"))

	aopts := []dataflow.Option{dataflow.WithLogger(e.logger.Named("dataflow"))}
	if conf.MaxCallDepth > 0 {
		aopts = append(aopts, dataflow.WithMaxDepth(conf.MaxCallDepth))
	}
	e.analyzer = dataflow.New(aopts...)

	e.applyRules(conf.Rules)
	return e, nil
}

func newPolicy(name string, o ast.Oracle) (cfg.Policy, error) {
	switch name {
	case "", PolicyLocals:
		return cfg.LocalsOnlyPolicy(o), nil
	case PolicyLocalsAndParams:
		return cfg.LocalsPolicy(o), nil
	case PolicyAll:
		return cfg.AllVariablesPolicy(o), nil
	}
	return nil, fmt.Errorf("unknown variable policy %q", name)
}

func (e *Engine) applyRules(rules map[string]tt.ConfigRule) {
	e.rules = make(map[string]Rule, len(allRuleConstructors))
	for name, newRule := range allRuleConstructors {
		e.rules[name] = newRule()
	}
	for name, conf := range rules {
		r, ok := e.rules[name]
		if !ok {
			e.logger.Warn("unknown rule in configuration", zap.String("rule", name))
			continue
		}
		r.SetSeverity(conf.Severity)
	}
}

func (e *Engine) Analyzer() *dataflow.Analyzer { return e.analyzer }
func (e *Engine) Cache() *ResultCache           { return e.cache }
func (e *Engine) Clock() *VersionClock          { return e.clock }
func (e *Engine) Options() cfg.Options          { return e.options }
func (e *Engine) Logger() *zap.Logger           { return e.logger }

// Rules returns the names of the rules that run, sorted.
func (e *Engine) Rules() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var names []string
	for name, r := range e.rules {
		if r.Severity() != tt.SeverityOff && !e.ignoredRules[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (e *Engine) IgnoreRule(rule string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ignoredRules == nil {
		e.ignoredRules = make(map[string]bool)
	}
	e.ignoredRules[rule] = true
}

func (e *Engine) activeRules() []Rule {
	var out []Rule
	for _, name := range e.Rules() {
		out = append(out, e.rules[name])
	}
	return out
}

// Graph returns the graph of root built with opts under the session policy.
// A fresh build also caches the sub-range of every nested block, so a later
// request for one of them is answered without building.
func (e *Engine) Graph(ctx context.Context, root ast.Node, opts cfg.Options) (*cfg.Graph, error) {
	return e.cache.GetOrBuild(ctx, root, e.policy, opts, func(ctx context.Context) (*cfg.Graph, error) {
		ctx, span := e.tracer.Start(ctx, "cfg.Build",
			trace.WithAttributes(
				attribute.String("root", root.String()),
				attribute.String("options", opts.String()),
			),
		)
		defer span.End()

		g, err := cfg.Build(ctx, root, e.oracle, e.policy, opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.logger.Debug("graph build failed", zap.String("root", root.String()), zap.Error(err))
			return nil, err
		}
		span.SetAttributes(attribute.Int("size", g.Size()))
		for block, r := range g.BlockRanges() {
			e.cache.Put(block, e.policy, opts, g.SubRange(r[0], r[1]))
		}
		return g, nil
	})
}

// Load reads a source file into a unit. Go files are lowered; YAML files
// are read as tree files.
func (e *Engine) Load(filename string, src []byte) (*ast.Unit, *nolint.Manager, error) {
	if src == nil {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, nil, fmt.Errorf("error reading %s: %w", filename, err)
		}
		src = data
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		unit, err := treefile.Parse(filename, src)
		if err != nil {
			return nil, nil, fmt.Errorf("error parsing tree file: %w", err)
		}
		mgr, err := nolint.ParseYAML(filename, src)
		if err != nil {
			return nil, nil, fmt.Errorf("error reading directives: %w", err)
		}
		return unit, mgr, nil
	default:
		fset := token.NewFileSet()
		f, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
		if err != nil {
			return nil, nil, fmt.Errorf("error parsing file: %w", err)
		}
		unit, err := lower.File(fset, f)
		if err != nil {
			return nil, nil, fmt.Errorf("error lowering %s: %w", filename, err)
		}
		return unit, nolint.ParseComments(f, fset), nil
	}
}

// Run checks every function of filename.
func (e *Engine) Run(ctx context.Context, filename string) ([]tt.Issue, error) {
	return e.RunSource(ctx, filename, nil)
}

// RunSource checks src as if it were the content of filename.
func (e *Engine) RunSource(ctx context.Context, filename string, src []byte) ([]tt.Issue, error) {
	unit, mgr, err := e.Load(filename, src)
	if err != nil {
		return nil, err
	}
	issues, err := e.Check(ctx, unit)
	if err != nil {
		return nil, err
	}
	return filterNolintIssues(mgr, issues), nil
}

// Check runs every active rule over every function of unit. Functions are
// checked concurrently; rules of one function share its graphs.
func (e *Engine) Check(ctx context.Context, unit *ast.Unit) ([]tt.Issue, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Check",
		trace.WithAttributes(
			attribute.String("file", unit.Filename),
			attribute.Int("functions", len(unit.Functions)),
		),
	)
	defer span.End()

	rules := e.activeRules()
	results := make([][]tt.Issue, len(unit.Functions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, fn := range unit.Functions {
		g.Go(func() error {
			pass := &Pass{ctx: ctx, engine: e, Filename: unit.Filename, Function: fn}
			for _, r := range rules {
				issues, err := r.Check(pass)
				if err != nil {
					if ctx.Err() != nil {
						return fmt.Errorf("rule %s canceled on %s: %w", r.Name(), fn.Name, err)
					}
					// a malformed function fails every rule the same way
					e.logger.Warn("skipping function",
						zap.String("function", fn.Name),
						zap.String("rule", r.Name()),
						zap.Error(err),
					)
					results[i] = nil
					return nil
				}
				results[i] = append(results[i], issues...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var all []tt.Issue
	for _, issues := range results {
		all = append(all, issues...)
	}
	SortIssues(all)
	span.SetAttributes(attribute.Int("issues", len(all)))
	e.logger.Debug("checked unit",
		zap.String("file", unit.Filename),
		zap.Int("functions", len(unit.Functions)),
		zap.Int("issues", len(all)),
	)
	return all, nil
}

// SortIssues orders issues by file, position and rule.
func SortIssues(issues []tt.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Start.Line != b.Start.Line {
			return a.Start.Line < b.Start.Line
		}
		if a.Start.Column != b.Start.Column {
			return a.Start.Column < b.Start.Column
		}
		return a.Rule < b.Rule
	})
}

// filterNolintIssues drops issues silenced by nolint comments.
func filterNolintIssues(mgr *nolint.Manager, issues []tt.Issue) []tt.Issue {
	if mgr == nil {
		return issues
	}
	filtered := make([]tt.Issue, 0, len(issues))
	for _, issue := range issues {
		pos := token.Position{
			Filename: issue.Filename,
			Line:     issue.Start.Line,
		}
		if !mgr.IsNolint(pos, issue.Rule) {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}

// SourceCode stores the content of a source code file.
type SourceCode struct {
	Lines []string
}

// ReadSourceCode reads the content of a file and returns it as a `SourceCode` struct.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(content), "\n")
	return &SourceCode{Lines: lines}, nil
}
