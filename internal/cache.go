package internal

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/internal/analysis/cfg"
)

// Clock reports the modification version of the sources a cache serves.
// Entries built under an older version are never returned.
type Clock interface {
	Version() uint64
}

// VersionClock is a Clock advanced by hand, typically by a file watcher.
type VersionClock struct {
	v atomic.Uint64
}

func (c *VersionClock) Version() uint64 { return c.v.Load() }

// Advance moves the clock forward and returns the new version.
func (c *VersionClock) Advance() uint64 { return c.v.Add(1) }

// CacheStats counts cache traffic since creation.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Builds uint64
}

type cacheEntry struct {
	policy cfg.Policy
	opts   cfg.Options
	graph  *cfg.Graph
}

// generation is an immutable snapshot of the graphs of one owner built
// under one clock version.
type generation struct {
	version uint64
	entries []*cacheEntry
}

type ownerSlot struct {
	list atomic.Pointer[generation]
}

// ResultCache keeps built graphs per owner node. Reads never lock; inserts
// append to a copy of the owner's list and publish it atomically, so the
// first matching entry always wins.
//
// Owners are held weakly. A graph references the tree it was built from, so
// entries themselves keep their owner alive until they are invalidated or
// the clock advances.
type ResultCache struct {
	clock  Clock
	logger *zap.Logger

	owners sync.Map // weak.Pointer[ast.Header] -> *ownerSlot
	seen   atomic.Uint64

	group    singleflight.Group
	policies sync.Map // cfg.Policy -> uint64
	nextID   atomic.Uint64

	hits, misses, builds atomic.Uint64
}

// NewResultCache returns an empty cache stamped by clock. A nil clock never
// advances.
func NewResultCache(clock Clock, logger *zap.Logger) *ResultCache {
	if clock == nil {
		clock = &VersionClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{clock: clock, logger: logger}
}

func ownerKey(owner ast.Node) weak.Pointer[ast.Header] {
	return weak.Make(owner.Meta())
}

// current returns the clock version, dropping every owner when it moved
// since the last call.
func (c *ResultCache) current() uint64 {
	v := c.clock.Version()
	for {
		seen := c.seen.Load()
		if seen >= v {
			return v
		}
		if c.seen.CompareAndSwap(seen, v) {
			c.owners.Clear()
			c.logger.Debug("graph cache reset", zap.Uint64("version", v))
			return v
		}
	}
}

// optionsMatch reports whether a graph built with have answers a request
// for want. A graph that folded no constant condition is the same graph
// that would be built without folding.
func optionsMatch(want, have cfg.Options, g *cfg.Graph) bool {
	if want == have {
		return true
	}
	if want.EvaluateConstantConditions || !have.EvaluateConstantConditions || g.ConstantConditionOccurred() {
		return false
	}
	have.EvaluateConstantConditions = false
	return want == have
}

// Get returns a graph of owner built with policy under options compatible
// with opts.
func (c *ResultCache) Get(owner ast.Node, policy cfg.Policy, opts cfg.Options) (*cfg.Graph, bool) {
	if g, ok := c.lookup(owner, policy, opts, c.current()); ok {
		c.hits.Add(1)
		return g, true
	}
	c.misses.Add(1)
	return nil, false
}

func (c *ResultCache) lookup(owner ast.Node, policy cfg.Policy, opts cfg.Options, version uint64) (*cfg.Graph, bool) {
	if ast.IsNil(owner) {
		return nil, false
	}
	v, ok := c.owners.Load(ownerKey(owner))
	if !ok {
		return nil, false
	}
	gen := v.(*ownerSlot).list.Load()
	if gen == nil || gen.version != version {
		return nil, false
	}
	for _, e := range gen.entries {
		if e.policy == policy && optionsMatch(opts, e.opts, e.graph) {
			return e.graph, true
		}
	}
	return nil, false
}

// Put records g as the graph of owner for policy and opts. An entry that
// already answers the same request is kept and g is discarded.
func (c *ResultCache) Put(owner ast.Node, policy cfg.Policy, opts cfg.Options, g *cfg.Graph) {
	if ast.IsNil(owner) || g == nil {
		return
	}
	version := c.current()
	slot := c.slot(owner)
	entry := &cacheEntry{policy: policy, opts: opts, graph: g}
	for {
		old := slot.list.Load()
		next := &generation{version: version}
		if old != nil && old.version == version {
			for _, e := range old.entries {
				if e.policy == policy && e.opts == opts {
					return
				}
			}
			next.entries = append(make([]*cacheEntry, 0, len(old.entries)+1), old.entries...)
		} else if old != nil && old.version > version {
			return
		}
		next.entries = append(next.entries, entry)
		if slot.list.CompareAndSwap(old, next) {
			return
		}
	}
}

func (c *ResultCache) slot(owner ast.Node) *ownerSlot {
	key := ownerKey(owner)
	if v, ok := c.owners.Load(key); ok {
		return v.(*ownerSlot)
	}
	v, loaded := c.owners.LoadOrStore(key, &ownerSlot{})
	if !loaded {
		runtime.AddCleanup(owner.Meta(), func(k weak.Pointer[ast.Header]) {
			c.owners.Delete(k)
		}, key)
	}
	return v.(*ownerSlot)
}

// GetOrBuild returns the cached graph of owner or builds it. Concurrent
// calls for the same request share one build. Failed builds are not cached.
func (c *ResultCache) GetOrBuild(
	ctx context.Context,
	owner ast.Node,
	policy cfg.Policy,
	opts cfg.Options,
	build func(context.Context) (*cfg.Graph, error),
) (*cfg.Graph, error) {
	if g, ok := c.Get(owner, policy, opts); ok {
		return g, nil
	}
	if ast.IsNil(owner) {
		return nil, fmt.Errorf("failed to build control flow: nil owner")
	}
	version := c.current()
	key := fmt.Sprintf("%p/%d/%s/%d", owner.Meta(), c.policyID(policy), opts, version)
	v, err, shared := c.group.Do(key, func() (any, error) {
		if g, ok := c.lookup(owner, policy, opts, version); ok {
			return g, nil
		}
		c.builds.Add(1)
		g, err := build(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(owner, policy, opts, g)
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("graph build shared", zap.String("owner", owner.String()))
	}
	return v.(*cfg.Graph), nil
}

func (c *ResultCache) policyID(p cfg.Policy) uint64 {
	if v, ok := c.policies.Load(p); ok {
		return v.(uint64)
	}
	v, _ := c.policies.LoadOrStore(p, c.nextID.Add(1))
	return v.(uint64)
}

// Invalidate drops every graph of owner.
func (c *ResultCache) Invalidate(owner ast.Node) {
	if ast.IsNil(owner) {
		return
	}
	c.owners.Delete(ownerKey(owner))
}

// Len returns the number of graphs held for the current version.
func (c *ResultCache) Len() int {
	version := c.current()
	n := 0
	c.owners.Range(func(_, v any) bool {
		if gen := v.(*ownerSlot).list.Load(); gen != nil && gen.version == version {
			n += len(gen.entries)
		}
		return true
	})
	return n
}

func (c *ResultCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Builds: c.builds.Load(),
	}
}
