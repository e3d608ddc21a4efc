// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strings"
)

// String prints the graph in a stable textual form:
//
//	graph(%input : Tensor(1x3x16x16, channels_last, cpu), %w : ...):
//	  %0 : int[] = prim::Constant[value=[1, 1]]()
//	  %1 : Tensor(...) = aten::conv2d(%input, %w, ...)
//	  return (%1)
//
// Value numbering is assigned in print order, so two isomorphic graphs print
// identically regardless of the mutation history that produced them; tests
// rely on this for graph comparison.
func (g *Graph) String() string {
	p := &printer{names: make(map[*Value]string), used: make(map[string]bool)}
	header := make([]string, 0, len(g.block.inputs))
	for _, in := range g.block.inputs {
		header = append(header, fmt.Sprintf("%s : %s", p.nameFor(in), in.Type()))
	}
	fmt.Fprintf(&p.sb, "graph(%s):\n", strings.Join(header, ", "))
	p.printBlockBody(g.block, 1, "return")
	return p.sb.String()
}

type printer struct {
	sb    strings.Builder
	names map[*Value]string
	used  map[string]bool
	next  int
}

func (p *printer) nameFor(v *Value) string {
	if name, ok := p.names[v]; ok {
		return name
	}
	name := v.Name()
	if name == "" || p.used[name] {
		name = fmt.Sprintf("%d", p.next)
		p.next++
	}
	p.used[name] = true
	name = "%" + name
	p.names[v] = name
	return name
}

func (p *printer) printBlockBody(b *Block, indent int, returnKeyword string) {
	prefix := strings.Repeat("  ", indent)
	for _, n := range b.nodes {
		outs := make([]string, 0, len(n.outputs))
		for _, out := range n.outputs {
			outs = append(outs, fmt.Sprintf("%s : %s", p.nameFor(out), out.Type()))
		}
		ins := make([]string, 0, len(n.inputs))
		for _, in := range n.inputs {
			ins = append(ins, p.nameFor(in))
		}
		kind := string(n.kind)
		if n.attr != nil {
			kind = fmt.Sprintf("%s[value=%s]", kind, n.attr)
		}
		fmt.Fprintf(&p.sb, "%s%s = %s(%s)\n", prefix, strings.Join(outs, ", "), kind, strings.Join(ins, ", "))
		for _, nested := range n.blocks {
			blockIns := make([]string, 0, len(nested.inputs))
			for _, in := range nested.inputs {
				blockIns = append(blockIns, fmt.Sprintf("%s : %s", p.nameFor(in), in.Type()))
			}
			fmt.Fprintf(&p.sb, "%s  block(%s):\n", prefix, strings.Join(blockIns, ", "))
			p.printBlockBody(nested, indent+2, "->")
		}
	}
	rets := make([]string, 0, len(b.outputs))
	for _, out := range b.outputs {
		rets = append(rets, p.nameFor(out))
	}
	fmt.Fprintf(&p.sb, "%s%s (%s)\n", prefix, returnKeyword, strings.Join(rets, ", "))
}
