// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir implements a small block-structured, mutable dataflow IR for
// JIT graph passes.
//
// The main elements of the package are:
//
//   - Graph: owns a tree of blocks and an insert-point cursor. Created with
//     New, mutated in place by passes.
//
//   - Block: an ordered sequence of nodes. The top-level block belongs to the
//     Graph; further blocks are nested under nodes (control constructs) and
//     are processed recursively by passes (see WalkBlocks).
//
//   - Node: one operation instance, identified by a Symbol kind (e.g.
//     "aten::conv2d"), with ordered input and output values. Constant nodes
//     additionally carry a Literal attribute.
//
//   - Value: a typed edge of the use-def graph, owned by the node that
//     produces it (or by a block, for block inputs) and referenced by its
//     uses.
//
// Mutation keeps use-def bookkeeping consistent: adding an input records a
// use, Value.ReplaceAllUsesWith rewires every use, and Node.Destroy panics
// (github.com/gomlx/exceptions) while any output still has uses. Passes that
// delete several interdependent nodes must therefore clear inputs on all of
// them first and only then destroy them, which is exactly the discipline the
// prepack constant folder follows.
//
// The package also hosts a per-kind constant evaluator registry (see
// RegisterEvaluator and RunNodeIfInputsAreConstant) used by constant
// propagation and by the prepack folder; backends register their evaluators
// at init time, mirroring the backend registration pattern used elsewhere.
package ir

// Symbol identifies the operation kind of a Node, in "namespace::name" form.
type Symbol string

// NodeID is the unique id of a node within its Graph.
type NodeID int

// Operator vocabulary used by the passes in this repository. Backend-defined
// operators (the mkldnn_prepacked ops) live with their backend.
const (
	// KindConstant produces a single literal value, held in Node.Attr.
	KindConstant Symbol = "prim::Constant"

	// KindListConstruct builds a list value out of its inputs.
	KindListConstruct Symbol = "prim::ListConstruct"

	KindConv2d      Symbol = "aten::conv2d"
	KindConvolution Symbol = "aten::_convolution"
	KindRelu        Symbol = "aten::relu"
	KindAdd         Symbol = "aten::add"
	KindLeakyRelu   Symbol = "aten::leaky_relu"
	KindHardTanh    Symbol = "aten::hardtanh"
	KindGelu        Symbol = "aten::gelu"
)
