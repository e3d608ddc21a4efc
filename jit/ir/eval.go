// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/pkg/errors"
)

// Evaluator computes the compile-time outputs of a node given the literal
// values of all its inputs. An error means the evaluation failed; callers
// treat that as "not foldable", not as a fatal condition.
type Evaluator func(n *Node, inputs []*Literal) ([]*Literal, error)

var evaluators = make(map[Symbol]Evaluator)

// RegisterEvaluator registers the constant evaluator for an operation kind.
// Backends call this from init(); registering twice for the same kind
// replaces the previous evaluator.
func RegisterEvaluator(kind Symbol, ev Evaluator) {
	evaluators[kind] = ev
}

// HasEvaluator reports whether a constant evaluator is registered for kind.
func HasEvaluator(kind Symbol) bool {
	_, ok := evaluators[kind]
	return ok
}

// AsLiteral returns the literal a value resolves to at compile time: the
// attribute of its producing constant node, if that is what produces it.
func AsLiteral(v *Value) (*Literal, bool) {
	if v.Node() == nil || !v.Node().IsConstant() {
		return nil, false
	}
	return v.Node().Attr(), true
}

// RunNodeIfInputsAreConstant evaluates n assuming all its inputs resolve to
// literals. It returns (nil, nil) when the node is not evaluable: it is
// itself a constant, some input is not a literal, or no evaluator is
// registered for its kind. A non-nil error means the evaluator was invoked
// and failed.
func RunNodeIfInputsAreConstant(n *Node) ([]*Literal, error) {
	if n.IsConstant() {
		return nil, nil
	}
	ev, ok := evaluators[n.Kind()]
	if !ok {
		return nil, nil
	}
	inputs := make([]*Literal, n.NumInputs())
	for ii, v := range n.Inputs() {
		lit, ok := AsLiteral(v)
		if !ok {
			return nil, nil
		}
		inputs[ii] = lit
	}
	outputs, err := ev(n, inputs)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluating node %s with constant inputs", n.Kind())
	}
	return outputs, nil
}

func init() {
	RegisterEvaluator(KindListConstruct, evalListConstruct)
}

// evalListConstruct folds a prim::ListConstruct of literal elements into a
// list literal. The list flavor follows the node's output type; with an
// untyped output it is an int list when all elements are ints.
func evalListConstruct(n *Node, inputs []*Literal) ([]*Literal, error) {
	wantInts := false
	switch n.Output().Type().(type) {
	case IntListType:
		wantInts = true
	case ScalarListType:
		wantInts = false
	default:
		wantInts = true
		for _, lit := range inputs {
			if lit.Kind() != LiteralInt {
				wantInts = false
				break
			}
		}
	}
	if wantInts {
		values := make([]int64, len(inputs))
		for ii, lit := range inputs {
			if lit.Kind() != LiteralInt {
				return nil, errors.Errorf("ListConstruct element %d is %s, expected int", ii, lit.Kind())
			}
			values[ii] = lit.Int()
		}
		return []*Literal{NewIntList(values...)}, nil
	}
	values := make([]float64, len(inputs))
	for ii, lit := range inputs {
		switch lit.Kind() {
		case LiteralInt, LiteralScalar:
			values[ii] = lit.Scalar()
		default:
			return nil, errors.Errorf("ListConstruct element %d is %s, expected a scalar", ii, lit.Kind())
		}
	}
	return []*Literal{NewScalarList(values...)}, nil
}
