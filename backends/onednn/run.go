// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package onednn

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/wqfish/pytorch/types/shapes"
	"github.com/wqfish/pytorch/types/tensors"
)

// Run executes the packed convolution and its fused elementwise post-op on
// an NCHW input. The input shape must be the one the context was packed for.
// Contexts packed with a sum attribute need RunSum instead.
func (p *PackedConv) Run(input *tensors.Tensor) (*tensors.Tensor, error) {
	if p.attr == AttrSum || p.attr == AttrSumRelu {
		return nil, errors.Errorf("run: context %s fuses an accumulation, use RunSum", p)
	}
	out, err := p.convolve(input)
	if err != nil {
		return nil, err
	}
	flat := out.Flat()
	switch p.attr {
	case AttrNone:
	case AttrRelu:
		for ii, x := range flat {
			if x < 0 {
				flat[ii] = 0
			}
		}
	case AttrLeakyRelu:
		alpha := float32(p.scalars[0])
		for ii, x := range flat {
			if x < 0 {
				flat[ii] = alpha * x
			}
		}
	case AttrHardTanh:
		minVal, maxVal := float32(p.scalars[0]), float32(p.scalars[1])
		for ii, x := range flat {
			if x < minVal {
				flat[ii] = minVal
			} else if x > maxVal {
				flat[ii] = maxVal
			}
		}
	case AttrGelu:
		for ii, x := range flat {
			flat[ii] = gelu(x, p.algorithm)
		}
	default:
		return nil, errors.Errorf("run: unknown fusion attribute %q", p.attr)
	}
	return out, nil
}

// RunSum executes the packed convolution and accumulates into accumu:
// out = conv(input) + alpha*accumu, followed by relu for sum_relu. The
// accumu shape must equal the convolution output shape.
func (p *PackedConv) RunSum(input, accumu *tensors.Tensor) (*tensors.Tensor, error) {
	if p.attr != AttrSum && p.attr != AttrSumRelu {
		return nil, errors.Errorf("run: context %s fuses no accumulation, use Run", p)
	}
	out, err := p.convolve(input)
	if err != nil {
		return nil, err
	}
	if accumu == nil || !accumu.Shape().Equal(out.Shape()) {
		return nil, errors.Errorf("run: accumulator %s does not match the output shape %s", accumu, out.Shape())
	}
	alpha := float32(p.scalars[0])
	flat := out.Flat()
	for ii := range flat {
		flat[ii] += alpha * accumu.At(ii)
		if p.attr == AttrSumRelu && flat[ii] < 0 {
			flat[ii] = 0
		}
	}
	return out, nil
}

// convolve is the direct reference kernel: grouped 2D convolution of an NCHW
// float input against the packed weight, bias included, always producing
// Float32.
func (p *PackedConv) convolve(input *tensors.Tensor) (*tensors.Tensor, error) {
	if input == nil || input.Rank() != 4 {
		return nil, errors.Errorf("run: input must be a rank-4 NCHW tensor, got %s", input)
	}
	dims := input.Shape().Dimensions
	for dim := 0; dim < 4; dim++ {
		if dims[dim] != p.inputSize[dim] {
			return nil, errors.Errorf("run: context packed for input size %v, got %v", p.inputSize, dims)
		}
	}
	batch, height, width := dims[0], dims[2], dims[3]
	outSize := p.OutputSize()
	outHeight, outWidth := outSize[2], outSize[3]
	out := tensors.Zeros(shapes.Make(dtypes.Float32, outSize...))
	outFlat := out.Flat()

	inChannels := p.inChannelsPerGroup * p.groups
	outChannelsPerGroup := p.outChannels / p.groups
	patch := p.inChannelsPerGroup * p.kernelH * p.kernelW
	for n := 0; n < batch; n++ {
		for group := 0; group < p.groups; group++ {
			for ocp := 0; ocp < outChannelsPerGroup; ocp++ {
				oc := group*outChannelsPerGroup + ocp
				weight := p.packed[oc*patch : (oc+1)*patch]
				for oh := 0; oh < outHeight; oh++ {
					for ow := 0; ow < outWidth; ow++ {
						acc := p.bias[oc]
						for kh := 0; kh < p.kernelH; kh++ {
							ih := oh*p.stride[0] - p.padding[0] + kh*p.dilation[0]
							if ih < 0 || ih >= height {
								continue
							}
							for kw := 0; kw < p.kernelW; kw++ {
								iw := ow*p.stride[1] - p.padding[1] + kw*p.dilation[1]
								if iw < 0 || iw >= width {
									continue
								}
								wBase := (kh*p.kernelW + kw) * p.inChannelsPerGroup
								for icp := 0; icp < p.inChannelsPerGroup; icp++ {
									ic := group*p.inChannelsPerGroup + icp
									inIdx := ((n*inChannels+ic)*height+ih)*width + iw
									acc += input.At(inIdx) * weight[wBase+icp]
								}
							}
						}
						outFlat[((n*p.outChannels+oc)*outHeight+oh)*outWidth+ow] = acc
					}
				}
			}
		}
	}
	return out, nil
}

// gelu computes the exact (erf) or tanh-approximated gelu of x.
func gelu(x float32, algorithm string) float32 {
	x64 := float64(x)
	if algorithm == GeluTanh {
		inner := math.Sqrt(2/math.Pi) * (x64 + 0.044715*x64*x64*x64)
		return float32(0.5 * x64 * (1 + math.Tanh(inner)))
	}
	return float32(0.5 * x64 * (1 + math.Erf(x64/math.Sqrt2)))
}
