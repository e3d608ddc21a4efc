// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mkldnn

import (
	"github.com/wqfish/pytorch/backends/onednn"
	"github.com/wqfish/pytorch/jit/ir"
	"github.com/wqfish/pytorch/jit/rewrite"
)

// FuseAddReluWithPackedOps fuses residual adds into the packed convolution:
// add(conv_out, accumu, alpha) and its mirrored form become conv2d_sum_run
// with the "sum" attribute, and a relu consuming a conv2d_sum_run upgrades
// the attribute to "sum_relu".
//
// The two add forms need filters, not just graph shape: when both operands
// are packed convolution outputs the match is ambiguous, and the mirrored
// form is only sound for alpha == 1 since the fused kernel always scales the
// accumulator, never the convolution.
func FuseAddReluWithPackedOps(g *ir.Graph) {
	for _, rule := range []struct {
		accumuFirst bool
		filter      rewrite.Filter
	}{
		{accumuFirst: false, filter: accumuOnRight},
		{accumuFirst: true, filter: accumuOnLeft},
	} {
		match, repl := buildConvAddPatterns(rule.accumuFirst)
		var r rewrite.Rewriter
		r.RegisterRewritePattern(match, repl)
		r.RunOnGraph(g, rule.filter)
	}

	match, repl := buildSumReluPatterns()
	var r rewrite.Rewriter
	r.RegisterRewritePattern(match, repl)
	r.RunOnGraph(g)
}

// buildConvAddPatterns instantiates the (match, replacement) pair for the
// residual add. With accumuFirst the match side is add(accumu, conv, alpha),
// otherwise add(conv, accumu, alpha); the replacement is the same either
// way: a "sum" prepack carrying alpha as its scalar operand, run through
// conv2d_sum_run.
func buildConvAddPatterns(accumuFirst bool) (match, repl *ir.Graph) {
	name := "conv2d_add"
	if accumuFirst {
		name += "_mirrored"
	}

	match = ir.New(name)
	mo := addConvPlaceholders(match)
	mAccumu := match.AddInput("accumu", ir.AnyType{})
	mAlpha := match.AddInput("alpha", ir.AnyType{})
	packed := insertPrepack(match, mo, mo.attr, mo.scalars, mo.algorithm)
	run := match.Create(onednn.KindConv2dRun, 1)
	run.AddInput(mo.input).AddInput(packed.Output())
	run.Output().SetName("conv_out")
	match.InsertNode(run)
	add := match.Create(ir.KindAdd, 1)
	if accumuFirst {
		add.AddInput(mAccumu).AddInput(run.Output())
	} else {
		add.AddInput(run.Output()).AddInput(mAccumu)
	}
	add.AddInput(mAlpha)
	match.InsertNode(add)
	match.RegisterOutput(add.Output())

	repl = ir.New(name + "_fused")
	ro := addConvPlaceholders(repl)
	rAccumu := repl.AddInput("accumu", ir.AnyType{})
	rAlpha := repl.AddInput("alpha", ir.AnyType{})
	attrValue := repl.InsertConstant(ir.NewString(onednn.AttrSum))
	scalarList := repl.Create(ir.KindListConstruct, 1)
	scalarList.AddInput(rAlpha)
	scalarList.Output().SetType(ir.ScalarListType{})
	repl.InsertNode(scalarList)
	packed = insertPrepack(repl, ro, attrValue, scalarList.Output(), ro.algorithm)
	sumRun := repl.Create(onednn.KindConv2dSumRun, 1)
	sumRun.AddInput(ro.input).AddInput(rAccumu).AddInput(packed.Output())
	repl.InsertNode(sumRun)
	repl.RegisterOutput(sumRun.Output())
	return match, repl
}

// buildSumReluPatterns instantiates the (match, replacement) pair upgrading
// relu(conv2d_sum_run(...)) to a single "sum_relu" conv2d_sum_run. The alpha
// already fused into the scalar list passes through unchanged.
func buildSumReluPatterns() (match, repl *ir.Graph) {
	match = ir.New("conv2d_sum_relu")
	mo := addConvPlaceholders(match)
	mAccumu := match.AddInput("accumu", ir.AnyType{})
	packed := insertPrepack(match, mo, mo.attr, mo.scalars, mo.algorithm)
	sumRun := match.Create(onednn.KindConv2dSumRun, 1)
	sumRun.AddInput(mo.input).AddInput(mAccumu).AddInput(packed.Output())
	match.InsertNode(sumRun)
	relu := match.Create(ir.KindRelu, 1)
	relu.AddInput(sumRun.Output())
	match.InsertNode(relu)
	match.RegisterOutput(relu.Output())

	repl = ir.New("conv2d_sum_relu_fused")
	ro := addConvPlaceholders(repl)
	rAccumu := repl.AddInput("accumu", ir.AnyType{})
	attrValue := repl.InsertConstant(ir.NewString(onednn.AttrSumRelu))
	packed = insertPrepack(repl, ro, attrValue, ro.scalars, ro.algorithm)
	fused := repl.Create(onednn.KindConv2dSumRun, 1)
	fused.AddInput(ro.input).AddInput(rAccumu).AddInput(packed.Output())
	repl.InsertNode(fused)
	repl.RegisterOutput(fused.Output())
	return match, repl
}

// accumuOnRight accepts add(conv_out, accumu, alpha) matches where the right
// operand really is a residual input: not the convolution output itself, so
// add(x, x) never fuses.
func accumuOnRight(m *rewrite.Match) bool {
	convOut := m.BoundByName("conv_out")
	accumu := m.BoundByName("accumu")
	if convOut == nil || accumu == nil || accumu == convOut {
		return false
	}
	return convOut.Node() != nil && convOut.Node().Kind() == onednn.KindConv2dRun
}

// accumuOnLeft accepts add(accumu, conv_out, alpha) matches. The fused
// kernel computes conv + alpha*accumu, while this form means
// accumu + alpha*conv, so alpha must be the constant one.
func accumuOnLeft(m *rewrite.Match) bool {
	convOut := m.BoundByName("conv_out")
	accumu := m.BoundByName("accumu")
	if convOut == nil || accumu == nil || accumu == convOut {
		return false
	}
	if convOut.Node() == nil || convOut.Node().Kind() != onednn.KindConv2dRun {
		return false
	}
	alpha, ok := ir.AsLiteral(m.BoundByName("alpha"))
	if !ok {
		return false
	}
	switch alpha.Kind() {
	case ir.LiteralInt, ir.LiteralScalar:
		return alpha.Scalar() == 1
	}
	return false
}
