// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mkldnn

import (
	"k8s.io/klog/v2"

	"github.com/wqfish/pytorch/backends/onednn"
	"github.com/wqfish/pytorch/jit/ir"
	"github.com/wqfish/pytorch/jit/rewrite"
)

// PostOp describes one elementwise operator the packed convolution can
// absorb: the operator kind, the names of its trailing scalar operands, the
// name of its algorithm-selector operand if it has one, and extra match
// filters beyond graph shape.
type PostOp struct {
	Kind             ir.Symbol
	ScalarOperands   []string
	AlgorithmOperand string
	Filters          []rewrite.Filter
}

// fusionRewriteMap is the rule table of elementwise fusions, keyed by the
// fusion attribute the packed kernel understands. The "none" entry is the
// identity sentinel the synthesizer starts from; pattern generation skips it.
func fusionRewriteMap() map[string]PostOp {
	return map[string]PostOp{
		onednn.AttrNone: {},
		onednn.AttrRelu: {
			Kind: ir.KindRelu,
		},
		onednn.AttrLeakyRelu: {
			Kind:           ir.KindLeakyRelu,
			ScalarOperands: []string{"alpha"},
			// The packed kernel bakes the slope in at pack time.
			Filters: []rewrite.Filter{scalarOperandIsConstant("alpha")},
		},
		onednn.AttrHardTanh: {
			Kind:           ir.KindHardTanh,
			ScalarOperands: []string{"min_val", "max_val"},
		},
		onednn.AttrGelu: {
			Kind:             ir.KindGelu,
			AlgorithmOperand: "approximate",
			Filters:          []rewrite.Filter{geluAlgorithmIsSupported},
		},
	}
}

// scalarOperandIsConstant accepts the match only when the named operand is a
// constant numeric scalar.
func scalarOperandIsConstant(name string) rewrite.Filter {
	return func(m *rewrite.Match) bool {
		bound := m.BoundByName(name)
		if bound == nil {
			return false
		}
		lit, ok := ir.AsLiteral(bound)
		if !ok {
			klog.V(2).Infof("fusion rejected: operand %q is not a constant", name)
			return false
		}
		return lit.Kind() == ir.LiteralInt || lit.Kind() == ir.LiteralScalar
	}
}

// geluAlgorithmIsSupported accepts the match only when the approximate
// operand is a constant string the packed kernel implements.
func geluAlgorithmIsSupported(m *rewrite.Match) bool {
	bound := m.BoundByName("approximate")
	if bound == nil {
		return false
	}
	lit, ok := ir.AsLiteral(bound)
	if !ok || lit.Kind() != ir.LiteralString {
		klog.V(2).Infof("gelu fusion rejected: approximate operand is not a constant string")
		return false
	}
	return lit.Str() == onednn.GeluErf || lit.Str() == onednn.GeluTanh
}
