// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package rewrite implements a generic subgraph pattern rewriter over the
// jit/ir graphs.
//
// Patterns are structural: both the match side and the replacement side are
// ordinary ir.Graph values whose graph inputs act as named placeholders that
// bind to arbitrary values of the target graph. There is no textual pattern
// language; passes build their pattern graphs with the regular ir API.
//
// A Rewriter holds one or more (match, replacement) pairs. RunOnGraph finds
// all non-overlapping occurrences of each match graph, asks the optional
// filters to confirm each occurrence, splices in a copy of the replacement
// graph, rewires the uses of the matched output, and destroys the matched
// nodes that became dead.
package rewrite

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/wqfish/pytorch/jit/ir"
)

// Match describes one occurrence of a match pattern inside a target graph.
type Match struct {
	// Anchor is the target node matched by the producer of the pattern's
	// output value.
	Anchor *ir.Node

	// Values maps every pattern value (placeholders and internal values) to
	// the target value it bound to.
	Values map[*ir.Value]*ir.Value

	// Nodes maps every pattern node to the target node it matched.
	Nodes map[*ir.Node]*ir.Node
}

// Bound returns the target value a pattern value bound to, nil if unbound.
func (m *Match) Bound(patternValue *ir.Value) *ir.Value {
	return m.Values[patternValue]
}

// BoundByName returns the target value bound to the pattern value with the
// given name. Pattern value names must be unique for this to be meaningful.
func (m *Match) BoundByName(name string) *ir.Value {
	for pv, gv := range m.Values {
		if pv.Name() == name {
			return gv
		}
	}
	return nil
}

// Filter decides whether a structural match should actually be rewritten.
// This is where commutative-operand disambiguation lives: a filter can
// inspect the producer of a bound value, which pure graph-shape matching
// cannot express.
type Filter func(*Match) bool

type pattern struct {
	match *ir.Graph
	repl  *ir.Graph
}

// Rewriter applies registered (match, replacement) pattern pairs to graphs.
type Rewriter struct {
	patterns []pattern
}

// RegisterRewritePattern registers a pattern pair. Both graphs must have
// exactly one output, and they must declare the same number of inputs
// (placeholders), positionally identified. A mismatch is a pattern-authoring
// bug and panics immediately.
func (r *Rewriter) RegisterRewritePattern(match, repl *ir.Graph) {
	if len(match.Outputs()) != 1 || len(repl.Outputs()) != 1 {
		exceptions.Panicf("rewrite patterns must have exactly one output (match %q has %d, replacement %q has %d)",
			match.Name(), len(match.Outputs()), repl.Name(), len(repl.Outputs()))
	}
	if len(match.Inputs()) != len(repl.Inputs()) {
		exceptions.Panicf("match pattern %q has %d placeholders but replacement %q has %d: the free-parameter arity must be identical",
			match.Name(), len(match.Inputs()), repl.Name(), len(repl.Inputs()))
	}
	if match.Outputs()[0].Node() == nil {
		exceptions.Panicf("match pattern %q returns a placeholder directly, nothing to match", match.Name())
	}
	r.patterns = append(r.patterns, pattern{match: match, repl: repl})
}

// RunOnGraph applies every registered pattern to g. Matches are
// non-overlapping: a target node claimed by one rewrite is not considered by
// later matches in the same run. All filters must accept a match for it to
// be rewritten.
func (r *Rewriter) RunOnGraph(g *ir.Graph, filters ...Filter) {
	for _, p := range r.patterns {
		r.runPattern(g, p, filters)
	}
}

func (r *Rewriter) runPattern(g *ir.Graph, p pattern, filters []Filter) {
	matches := findMatches(g, p.match)
	claimed := make(map[*ir.Node]bool)
	// Values replaced by earlier rewrites in this run: bindings recorded
	// before those rewrites must be chased to the live value.
	replaced := make(map[*ir.Value]*ir.Value)
nextMatch:
	for _, m := range matches {
		for _, gn := range m.Nodes {
			if claimed[gn] || gn.Destroyed() {
				continue nextMatch
			}
		}
		for pv, gv := range m.Values {
			for {
				next, ok := replaced[gv]
				if !ok {
					break
				}
				gv = next
			}
			m.Values[pv] = gv
		}
		for _, filter := range filters {
			if !filter(m) {
				klog.V(2).Infof("rewrite: filter rejected match of %q at node %s", p.match.Name(), m.Anchor.Kind())
				continue nextMatch
			}
		}
		oldOut, newOut := applyRewrite(g, p, m)
		replaced[oldOut] = newOut
		for _, gn := range m.Nodes {
			claimed[gn] = true
		}
	}
}

// applyRewrite splices a copy of the replacement graph right before the
// anchor, rewires the matched output's uses to the replacement output, and
// destroys the matched nodes that became dead. It returns the matched output
// and the value now standing in for it.
func applyRewrite(g *ir.Graph, p pattern, m *Match) (oldOut, newOut *ir.Value) {
	valueMap := make(map[*ir.Value]*ir.Value)
	matchInputs := p.match.Inputs()
	for ii, rin := range p.repl.Inputs() {
		valueMap[rin] = m.Values[matchInputs[ii]]
	}

	restore := g.SetInsertBefore(m.Anchor)
	for _, rn := range p.repl.Block().Nodes() {
		var nn *ir.Node
		if rn.IsConstant() {
			nn = g.InsertConstant(rn.Attr()).Node()
		} else {
			nn = g.Create(rn.Kind(), rn.NumOutputs())
			for _, rin := range rn.Inputs() {
				bound, ok := valueMap[rin]
				if !ok {
					exceptions.Panicf("replacement pattern %q uses value %q that is neither a placeholder nor produced by an earlier replacement node",
						p.repl.Name(), rin.Name())
				}
				nn.AddInput(bound)
			}
			g.InsertNode(nn)
		}
		for ii, rout := range rn.Outputs() {
			out := nn.Outputs()[ii]
			out.SetType(rout.Type())
			valueMap[rout] = out
		}
	}
	restore()

	oldOut = m.Values[p.match.Outputs()[0]]
	newOut = valueMap[p.repl.Outputs()[0]]
	// The spliced result stands in for the matched output, so it keeps the
	// matched output's inferred type.
	newOut.SetType(oldOut.Type())
	oldOut.ReplaceAllUsesWith(newOut)

	// Destroy the matched nodes, consumers before producers. Nodes whose
	// outputs still have uses (shared constants, for instance) are left in
	// place for dead-code elimination to deal with.
	patternNodes := p.match.Block().Nodes()
	for ii := len(patternNodes) - 1; ii >= 0; ii-- {
		gn := m.Nodes[patternNodes[ii]]
		if gn == nil || gn.Destroyed() {
			continue
		}
		live := false
		for _, out := range gn.Outputs() {
			if out.HasUses() {
				live = true
				break
			}
		}
		if live {
			continue
		}
		gn.Destroy()
	}
	return oldOut, newOut
}
