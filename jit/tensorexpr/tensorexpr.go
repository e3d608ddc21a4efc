// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensorexpr answers which convolutions the lower-level vectorized
// kernel path already handles, so that graph rewrites can leave those alone.
package tensorexpr

import (
	"github.com/wqfish/pytorch/jit/ir"
)

// Conv2dIsSupported reports whether the vectorized kernel path owns this
// conv2d node: depthwise convolutions, where groups equals the input channel
// count and the weight has a single channel per group. The decision is
// fail-open towards the caller: when shapes or groups are not concrete the
// answer is false and the caller remains free to rewrite the node.
func Conv2dIsSupported(n *ir.Node) bool {
	if n.Kind() != ir.KindConv2d || n.NumInputs() < 7 {
		return false
	}
	input, ok := n.Input(0).TensorType()
	if !ok {
		return false
	}
	weight, ok := n.Input(1).TensorType()
	if !ok {
		return false
	}
	inputSizes, ok := input.ConcreteSizes()
	if !ok || len(inputSizes) != 4 {
		return false
	}
	weightSizes, ok := weight.ConcreteSizes()
	if !ok || len(weightSizes) != 4 {
		return false
	}
	groupsLit, ok := ir.AsLiteral(n.Input(6))
	if !ok || groupsLit.Kind() != ir.LiteralInt {
		return false
	}
	groups := groupsLit.Int()
	return groups > 1 && int64(inputSizes[1]) == groups && weightSizes[1] == 1
}
