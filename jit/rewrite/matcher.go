// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"github.com/wqfish/pytorch/jit/ir"
)

// findMatches returns every occurrence of the match pattern in g, anchored
// at the producer of the pattern's single output. Matching is positional and
// deterministic: operand order matters, so commutative variants need their
// own pattern (plus a disambiguation filter).
func findMatches(g *ir.Graph, pat *ir.Graph) []*Match {
	anchor := pat.Outputs()[0].Node()
	var matches []*Match
	ir.WalkBlocks(g.Block(), func(n *ir.Node) {
		m := &Match{
			Anchor: n,
			Values: make(map[*ir.Value]*ir.Value),
			Nodes:  make(map[*ir.Node]*ir.Node),
		}
		if !m.matchNode(anchor, n) {
			return
		}
		if !m.internalUsesContained(pat) {
			return
		}
		matches = append(matches, m)
	}, nil)
	return matches
}

func (m *Match) matchNode(pn, gn *ir.Node) bool {
	if bound, ok := m.Nodes[pn]; ok {
		return bound == gn
	}
	if pn.Kind() != gn.Kind() ||
		pn.NumInputs() != gn.NumInputs() ||
		pn.NumOutputs() != gn.NumOutputs() {
		return false
	}
	if pn.IsConstant() && !pn.Attr().Equal(gn.Attr()) {
		return false
	}
	m.Nodes[pn] = gn
	for ii := 0; ii < pn.NumInputs(); ii++ {
		if !m.matchValue(pn.Input(ii), gn.Input(ii)) {
			return false
		}
	}
	gnOuts := gn.Outputs()
	for ii, pout := range pn.Outputs() {
		m.Values[pout] = gnOuts[ii]
	}
	return true
}

func (m *Match) matchValue(pv, gv *ir.Value) bool {
	if bound, ok := m.Values[pv]; ok {
		return bound == gv
	}
	if pv.Node() == nil {
		// Placeholder: binds to anything, but consistently.
		m.Values[pv] = gv
		return true
	}
	if gv.Node() == nil {
		return false
	}
	if pv.Offset() != gv.Offset() {
		return false
	}
	return m.matchNode(pv.Node(), gv.Node())
}

// internalUsesContained verifies that every value produced inside the match
// (other than the anchor's own output) is consumed only by matched nodes.
// Rewriting a match whose intermediate results escape would orphan the
// external consumers. Constants are exempt: they survive the rewrite when
// still referenced.
func (m *Match) internalUsesContained(pat *ir.Graph) bool {
	matched := make(map[*ir.Node]bool, len(m.Nodes))
	for _, gn := range m.Nodes {
		matched[gn] = true
	}
	anchorOut := m.Values[pat.Outputs()[0]]
	for pn, gn := range m.Nodes {
		if pn == pat.Outputs()[0].Node() || gn.IsConstant() {
			continue
		}
		for _, out := range gn.Outputs() {
			if out == anchorOut {
				continue
			}
			for _, use := range out.Uses() {
				if use.User == nil || !matched[use.User] {
					return false
				}
			}
		}
	}
	return true
}
