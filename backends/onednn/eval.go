// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package onednn

import (
	"github.com/pkg/errors"

	"github.com/wqfish/pytorch/jit/ir"
	"github.com/wqfish/pytorch/types/tensors"
	"github.com/wqfish/pytorch/types/xslices"
)

func init() {
	ir.RegisterEvaluator(KindConv2dPrepack, evalPrepack)
	ir.RegisterEvaluator(KindConv2dRun, evalRun)
	ir.RegisterEvaluator(KindConv2dSumRun, evalSumRun)
}

// evalPrepack is the compile-time evaluator of conv2d_prepack: it builds the
// PackedConv from literal operands. Folding passes call it through
// ir.RunNodeIfInputsAreConstant; an error means the node stays for runtime.
func evalPrepack(n *ir.Node, inputs []*ir.Literal) ([]*ir.Literal, error) {
	if len(inputs) != 10 {
		return nil, errors.Errorf("conv2d_prepack takes 10 operands, got %d", len(inputs))
	}
	weight, err := tensorOperand(inputs[0], "weight", false)
	if err != nil {
		return nil, err
	}
	bias, err := tensorOperand(inputs[1], "bias", true)
	if err != nil {
		return nil, err
	}
	stride, err := intsOperand(inputs[2], "stride")
	if err != nil {
		return nil, err
	}
	padding, err := intsOperand(inputs[3], "padding")
	if err != nil {
		return nil, err
	}
	dilation, err := intsOperand(inputs[4], "dilation")
	if err != nil {
		return nil, err
	}
	if inputs[5].Kind() != ir.LiteralInt {
		return nil, errors.Errorf("conv2d_prepack groups operand is %s, expected int", inputs[5].Kind())
	}
	groups := int(inputs[5].Int())
	inputSize, err := intsOperand(inputs[6], "input_size")
	if err != nil {
		return nil, err
	}
	if inputs[7].Kind() != ir.LiteralString {
		return nil, errors.Errorf("conv2d_prepack attr operand is %s, expected str", inputs[7].Kind())
	}
	attr := inputs[7].Str()
	if inputs[8].Kind() != ir.LiteralScalarList {
		return nil, errors.Errorf("conv2d_prepack scalars operand is %s, expected Scalar?[]", inputs[8].Kind())
	}
	scalars := inputs[8].Scalars()
	algorithm := ""
	switch inputs[9].Kind() {
	case ir.LiteralNone:
	case ir.LiteralString:
		algorithm = inputs[9].Str()
	default:
		return nil, errors.Errorf("conv2d_prepack algorithm operand is %s, expected str or None", inputs[9].Kind())
	}

	packed, err := Prepack(weight, bias, stride, padding, dilation, groups, inputSize, attr, scalars, algorithm)
	if err != nil {
		return nil, err
	}
	return []*ir.Literal{ir.NewObject(packed)}, nil
}

func evalRun(n *ir.Node, inputs []*ir.Literal) ([]*ir.Literal, error) {
	if len(inputs) != 2 {
		return nil, errors.Errorf("conv2d_run takes 2 operands, got %d", len(inputs))
	}
	input, err := tensorOperand(inputs[0], "input", false)
	if err != nil {
		return nil, err
	}
	packed, err := contextOperand(inputs[1])
	if err != nil {
		return nil, err
	}
	out, err := packed.Run(input)
	if err != nil {
		return nil, err
	}
	return []*ir.Literal{ir.NewTensor(out)}, nil
}

func evalSumRun(n *ir.Node, inputs []*ir.Literal) ([]*ir.Literal, error) {
	if len(inputs) != 3 {
		return nil, errors.Errorf("conv2d_sum_run takes 3 operands, got %d", len(inputs))
	}
	input, err := tensorOperand(inputs[0], "input", false)
	if err != nil {
		return nil, err
	}
	accumu, err := tensorOperand(inputs[1], "accumu", false)
	if err != nil {
		return nil, err
	}
	packed, err := contextOperand(inputs[2])
	if err != nil {
		return nil, err
	}
	out, err := packed.RunSum(input, accumu)
	if err != nil {
		return nil, err
	}
	return []*ir.Literal{ir.NewTensor(out)}, nil
}

func tensorOperand(lit *ir.Literal, name string, optional bool) (*tensors.Tensor, error) {
	if optional && lit.IsNone() {
		return nil, nil
	}
	if lit.Kind() != ir.LiteralTensor {
		return nil, errors.Errorf("%s operand is %s, expected Tensor", name, lit.Kind())
	}
	return lit.Tensor(), nil
}

func intsOperand(lit *ir.Literal, name string) ([]int, error) {
	if lit.Kind() != ir.LiteralIntList {
		return nil, errors.Errorf("%s operand is %s, expected int[]", name, lit.Kind())
	}
	return xslices.Map(lit.Ints(), func(v int64) int { return int(v) }), nil
}

func contextOperand(lit *ir.Literal) (*PackedConv, error) {
	if lit.Kind() != ir.LiteralObject {
		return nil, errors.Errorf("context operand is %s, expected ConvOpContext", lit.Kind())
	}
	packed, ok := lit.Obj().(*PackedConv)
	if !ok {
		return nil, errors.Errorf("context operand is %s, expected ConvOpContext", lit.Obj().TypeName())
	}
	return packed, nil
}
