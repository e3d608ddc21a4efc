// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mkldnn

import (
	"maps"
	"slices"

	"github.com/wqfish/pytorch/backends/onednn"
	"github.com/wqfish/pytorch/jit/ir"
	"github.com/wqfish/pytorch/jit/rewrite"
)

// convOperands are the placeholders every prepack/run pattern shares. The
// attr, scalars and algorithm placeholders are free: the match side accepts
// whatever recipe the prepack currently carries.
type convOperands struct {
	input, weight, bias                          *ir.Value
	stride, padding, dilation, groups, inputSize *ir.Value
	attr, scalars, algorithm                     *ir.Value
}

// addConvPlaceholders declares the shared placeholders, in a fixed order so
// that match and replacement graphs line up positionally.
func addConvPlaceholders(g *ir.Graph) convOperands {
	return convOperands{
		input:     g.AddInput("input", ir.AnyType{}),
		weight:    g.AddInput("weight", ir.AnyType{}),
		bias:      g.AddInput("bias", ir.AnyType{}),
		stride:    g.AddInput("stride", ir.AnyType{}),
		padding:   g.AddInput("padding", ir.AnyType{}),
		dilation:  g.AddInput("dilation", ir.AnyType{}),
		groups:    g.AddInput("groups", ir.AnyType{}),
		inputSize: g.AddInput("input_size", ir.AnyType{}),
		attr:      g.AddInput("dummy_attr", ir.AnyType{}),
		scalars:   g.AddInput("dummy_scalars", ir.AnyType{}),
		algorithm: g.AddInput("dummy_algorithm", ir.AnyType{}),
	}
}

// insertPrepack appends a conv2d_prepack node wired to the shared operands
// and the given fusion recipe.
func insertPrepack(g *ir.Graph, ops convOperands, attr, scalars, algorithm *ir.Value) *ir.Node {
	n := g.Create(onednn.KindConv2dPrepack, 1)
	n.AddInput(ops.weight).AddInput(ops.bias)
	n.AddInput(ops.stride).AddInput(ops.padding).AddInput(ops.dilation).AddInput(ops.groups)
	n.AddInput(ops.inputSize)
	n.AddInput(attr).AddInput(scalars).AddInput(algorithm)
	n.Output().SetType(onednn.ConvOpContextType)
	g.InsertNode(n)
	return n
}

// FuseEltwiseWithPackedOps folds elementwise consumers of conv2d_run into
// the prepack's fusion attribute, one rule-table entry at a time.
func FuseEltwiseWithPackedOps(g *ir.Graph) {
	table := fusionRewriteMap()
	for _, attr := range slices.Sorted(maps.Keys(table)) {
		if attr == onednn.AttrNone {
			continue
		}
		op := table[attr]
		match, repl := buildEltwisePatterns(attr, op)
		var r rewrite.Rewriter
		r.RegisterRewritePattern(match, repl)
		r.RunOnGraph(g, op.Filters...)
	}
}

// buildEltwisePatterns instantiates the (match, replacement) pair for one
// rule-table entry.
//
// The match side is prepack -> run -> elementwise op; the replacement
// rebuilds the prepack with the entry's attribute, the op's scalar operands
// gathered into a list, and the op's algorithm operand (or the one the
// prepack already had), then runs it. The rebuilt scalar list is a
// ListConstruct node so that constant propagation folds it once the operands
// are literals.
func buildEltwisePatterns(attr string, op PostOp) (match, repl *ir.Graph) {
	match = ir.New("conv2d_" + attr)
	mo := addConvPlaceholders(match)
	mScalars := make([]*ir.Value, len(op.ScalarOperands))
	for ii, name := range op.ScalarOperands {
		mScalars[ii] = match.AddInput(name, ir.AnyType{})
	}
	var mAlgorithm *ir.Value
	if op.AlgorithmOperand != "" {
		mAlgorithm = match.AddInput(op.AlgorithmOperand, ir.AnyType{})
	}
	packed := insertPrepack(match, mo, mo.attr, mo.scalars, mo.algorithm)
	run := match.Create(onednn.KindConv2dRun, 1)
	run.AddInput(mo.input).AddInput(packed.Output())
	match.InsertNode(run)
	elt := match.Create(op.Kind, 1)
	elt.AddInput(run.Output())
	for _, scalar := range mScalars {
		elt.AddInput(scalar)
	}
	if mAlgorithm != nil {
		elt.AddInput(mAlgorithm)
	}
	match.InsertNode(elt)
	match.RegisterOutput(elt.Output())

	repl = ir.New("conv2d_" + attr + "_fused")
	ro := addConvPlaceholders(repl)
	rScalars := make([]*ir.Value, len(op.ScalarOperands))
	for ii, name := range op.ScalarOperands {
		rScalars[ii] = repl.AddInput(name, ir.AnyType{})
	}
	algorithm := ro.algorithm
	if op.AlgorithmOperand != "" {
		algorithm = repl.AddInput(op.AlgorithmOperand, ir.AnyType{})
	}
	attrValue := repl.InsertConstant(ir.NewString(attr))
	scalarList := repl.Create(ir.KindListConstruct, 1)
	for _, scalar := range rScalars {
		scalarList.AddInput(scalar)
	}
	scalarList.Output().SetType(ir.ScalarListType{})
	repl.InsertNode(scalarList)
	packed = insertPrepack(repl, ro, attrValue, scalarList.Output(), algorithm)
	fusedRun := repl.Create(onednn.KindConv2dRun, 1)
	fusedRun.AddInput(ro.input).AddInput(packed.Output())
	repl.InsertNode(fusedRun)
	repl.RegisterOutput(fusedRun.Output())
	return match, repl
}
