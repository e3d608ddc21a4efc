// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package onednn provides the packed convolution backend targeted by the
// fusion passes in jit/passes/mkldnn.
//
// It defines the prepacked operator kinds, the ConvOpContext object type that
// flows between them, and PackedConv, the context itself: weights reordered
// at pack time for a fixed activation shape, plus the fused post-op recipe
// (attribute, scalar operands and algorithm selector). Reference kernels in
// this package execute the packed convolution so that prepack nodes can be
// folded at compile time and tested numerically.
package onednn

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wqfish/pytorch/jit/ir"
	"github.com/wqfish/pytorch/types/tensors"
)

// Operator kinds of the prepacked convolution namespace.
const (
	// KindConv2dPrepack packs (weight, bias, stride, padding, dilation,
	// groups, input_size, attr, scalars, algorithm) into a ConvOpContext.
	KindConv2dPrepack ir.Symbol = "mkldnn_prepacked::conv2d_prepack"

	// KindConv2dRun applies a ConvOpContext to (input, context).
	KindConv2dRun ir.Symbol = "mkldnn_prepacked::conv2d_run"

	// KindConv2dSumRun applies a ConvOpContext to (input, accumu, context),
	// accumulating into accumu's values.
	KindConv2dSumRun ir.Symbol = "mkldnn_prepacked::conv2d_sum_run"
)

// ConvOpContextType is the IR type of the value produced by conv2d_prepack.
var ConvOpContextType = ir.ObjectType{Name: "__torch__.torch.classes.mkldnn.ConvOpContext"}

// Fusion attributes understood by the packed kernels. The first five are the
// elementwise post-ops; the sum variants fold a residual add (and an optional
// trailing relu) into the convolution.
const (
	AttrNone      = "none"
	AttrRelu      = "relu"
	AttrLeakyRelu = "leaky_relu"
	AttrHardTanh  = "hardtanh"
	AttrGelu      = "gelu"
	AttrSum       = "sum"
	AttrSumRelu   = "sum_relu"
)

// Gelu algorithm selectors, matching aten::gelu's approximate operand.
const (
	GeluErf  = "none"
	GeluTanh = "tanh"
)

// scalarArity maps each attribute to the number of scalar operands its
// kernel consumes.
var scalarArity = map[string]int{
	AttrNone:      0,
	AttrRelu:      0,
	AttrLeakyRelu: 1, // negative-slope alpha
	AttrHardTanh:  2, // min_val, max_val
	AttrGelu:      0,
	AttrSum:       1, // accumulation alpha
	AttrSumRelu:   1, // accumulation alpha
}

// PackedConv is the convolution op context: the weight reordered into the
// packed layout for one fixed activation shape, the convolution geometry,
// and the fused post-op recipe. Contexts are immutable after Prepack.
type PackedConv struct {
	id     string
	frozen bool

	// Geometry, from the OIHW weight and the pack-time activation shape.
	outChannels, inChannelsPerGroup int
	kernelH, kernelW                int
	stride, padding, dilation       [2]int
	groups                          int
	inputSize                       [4]int

	// packed holds the weight reordered per output channel into
	// kh-kw-channel patch order, the order the inner kernel loop reads it.
	packed []float32
	bias   []float32 // always len outChannels, zeros when absent

	attr      string
	scalars   []float64
	algorithm string
}

// Prepack validates the convolution configuration and reorders the weight
// into the packed layout. The bias may be nil. inputSize is the NCHW
// activation shape the context is specialized for; running with any other
// input shape is an error.
//
// attr, scalars and algorithm describe the fused post-op: scalars must match
// the attribute's arity and algorithm is only meaningful for gelu, where it
// must be one of "none" (erf) or "tanh".
func Prepack(weight, bias *tensors.Tensor, stride, padding, dilation []int,
	groups int, inputSize []int, attr string, scalars []float64, algorithm string) (*PackedConv, error) {
	if weight == nil || weight.Rank() != 4 {
		return nil, errors.Errorf("prepack: weight must be a rank-4 OIHW tensor, got %s", weight)
	}
	wdims := weight.Shape().Dimensions
	outChannels, inChannelsPerGroup, kernelH, kernelW := wdims[0], wdims[1], wdims[2], wdims[3]

	if len(stride) != 2 || len(padding) != 2 || len(dilation) != 2 {
		return nil, errors.Errorf("prepack: stride, padding and dilation must have 2 elements, got %d, %d, %d",
			len(stride), len(padding), len(dilation))
	}
	for dim := 0; dim < 2; dim++ {
		if stride[dim] < 1 || dilation[dim] < 1 || padding[dim] < 0 {
			return nil, errors.Errorf("prepack: invalid geometry stride=%v padding=%v dilation=%v",
				stride, padding, dilation)
		}
	}
	if groups < 1 || outChannels%groups != 0 {
		return nil, errors.Errorf("prepack: groups=%d must divide the %d output channels", groups, outChannels)
	}
	if len(inputSize) != 4 {
		return nil, errors.Errorf("prepack: input size must be NCHW, got %v", inputSize)
	}
	for _, size := range inputSize {
		if size < 1 {
			return nil, errors.Errorf("prepack: input size must be positive, got %v", inputSize)
		}
	}
	if inputSize[1] != inChannelsPerGroup*groups {
		return nil, errors.Errorf("prepack: weight %s with groups=%d expects %d input channels, input size %v has %d",
			weight, groups, inChannelsPerGroup*groups, inputSize, inputSize[1])
	}
	for dim := 0; dim < 2; dim++ {
		kernel := []int{kernelH, kernelW}[dim]
		extent := inputSize[2+dim] + 2*padding[dim] - dilation[dim]*(kernel-1) - 1
		if extent < 0 || extent/stride[dim]+1 < 1 {
			return nil, errors.Errorf("prepack: kernel %dx%d does not fit input size %v with padding=%v dilation=%v",
				kernelH, kernelW, inputSize, padding, dilation)
		}
	}
	if bias != nil && (bias.Rank() != 1 || bias.Shape().Dimensions[0] != outChannels) {
		return nil, errors.Errorf("prepack: bias must be rank-1 with %d elements, got %s", outChannels, bias)
	}

	arity, known := scalarArity[attr]
	if !known {
		return nil, errors.Errorf("prepack: unknown fusion attribute %q", attr)
	}
	if len(scalars) != arity {
		return nil, errors.Errorf("prepack: attribute %q takes %d scalar operands, got %d", attr, arity, len(scalars))
	}
	switch {
	case attr == AttrGelu:
		if algorithm != GeluErf && algorithm != GeluTanh {
			return nil, errors.Errorf("prepack: gelu algorithm must be %q or %q, got %q", GeluErf, GeluTanh, algorithm)
		}
	case algorithm != "":
		return nil, errors.Errorf("prepack: attribute %q takes no algorithm, got %q", attr, algorithm)
	}

	p := &PackedConv{
		id:                 uuid.NewString(),
		outChannels:        outChannels,
		inChannelsPerGroup: inChannelsPerGroup,
		kernelH:            kernelH,
		kernelW:            kernelW,
		stride:             [2]int{stride[0], stride[1]},
		padding:            [2]int{padding[0], padding[1]},
		dilation:           [2]int{dilation[0], dilation[1]},
		groups:             groups,
		inputSize:          [4]int{inputSize[0], inputSize[1], inputSize[2], inputSize[3]},
		attr:               attr,
		scalars:            slices.Clone(scalars),
		algorithm:          algorithm,
	}

	// Reorder OIHW -> per output channel, patch order (kh, kw, channel).
	patch := inChannelsPerGroup * kernelH * kernelW
	p.packed = make([]float32, outChannels*patch)
	for oc := 0; oc < outChannels; oc++ {
		for icp := 0; icp < inChannelsPerGroup; icp++ {
			for kh := 0; kh < kernelH; kh++ {
				for kw := 0; kw < kernelW; kw++ {
					src := ((oc*inChannelsPerGroup+icp)*kernelH+kh)*kernelW + kw
					dst := oc*patch + (kh*kernelW+kw)*inChannelsPerGroup + icp
					p.packed[dst] = weight.At(src)
				}
			}
		}
	}

	p.bias = make([]float32, outChannels)
	if bias != nil {
		copy(p.bias, bias.Flat())
	}
	return p, nil
}

// TypeName implements ir.Object.
func (p *PackedConv) TypeName() string { return ConvOpContextType.Name }

// ID is the unique identity of this context, stable across Freeze.
func (p *PackedConv) ID() string { return p.id }

// Frozen reports whether this is the compile-time (folded) form.
func (p *PackedConv) Frozen() bool { return p.frozen }

// Freeze returns the compile-time form of the context, the value embedded in
// the graph as a constant when the prepack node is folded. The frozen copy
// shares the packed buffers with the original.
func (p *PackedConv) Freeze() *PackedConv {
	if p.frozen {
		return p
	}
	frozen := *p
	frozen.frozen = true
	return &frozen
}

// Attr is the fused post-op attribute.
func (p *PackedConv) Attr() string { return p.attr }

// Scalars are the post-op scalar operands.
func (p *PackedConv) Scalars() []float64 { return slices.Clone(p.scalars) }

// Algorithm is the post-op algorithm selector, empty unless the attribute
// uses one.
func (p *PackedConv) Algorithm() string { return p.algorithm }

// InputSize is the NCHW activation shape the context was packed for.
func (p *PackedConv) InputSize() []int { return p.inputSize[:] }

// OutputSize is the NCHW shape Run produces.
func (p *PackedConv) OutputSize() []int {
	out := []int{p.inputSize[0], p.outChannels, 0, 0}
	for dim := 0; dim < 2; dim++ {
		kernel := []int{p.kernelH, p.kernelW}[dim]
		out[2+dim] = (p.inputSize[2+dim]+2*p.padding[dim]-p.dilation[dim]*(kernel-1)-1)/p.stride[dim] + 1
	}
	return out
}

// String implements fmt.Stringer.
func (p *PackedConv) String() string {
	var sb strings.Builder
	sb.WriteString("ConvOpContext(")
	if p.frozen {
		sb.WriteString("frozen, ")
	}
	fmt.Fprintf(&sb, "attr=%s", p.attr)
	if p.algorithm != "" {
		fmt.Fprintf(&sb, "/%s", p.algorithm)
	}
	fmt.Fprintf(&sb, ", %s packed, id=%s)", humanize.Bytes(uint64(len(p.packed)*4)), p.id[:8])
	return sb.String()
}
