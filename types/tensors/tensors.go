// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a minimal dense tensor: a shapes.Shape plus a
// flat data slice.
//
// It exists so that weights, biases and activations can be carried as graph
// literals (jit/ir) and evaluated by the reference kernels in
// backends/onednn. Only Float32 and Float16 are supported: Float32 is the
// computation dtype, Float16 is storage-only and converted on access using
// github.com/x448/float16.
package tensors

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"

	"github.com/wqfish/pytorch/types/shapes"
)

// Tensor is an immutable dense value. Create one with FromFlat or Zeros.
type Tensor struct {
	shape shapes.Shape

	// Exactly one of these is set, according to shape.DType.
	flat32 []float32
	flat16 []float16.Float16
}

// Zeros returns a zero-initialized tensor of the given shape.
func Zeros(shape shapes.Shape) *Tensor {
	t := &Tensor{shape: shape.Clone()}
	switch shape.DType {
	case dtypes.Float32:
		t.flat32 = make([]float32, shape.Size())
	case dtypes.Float16:
		t.flat16 = make([]float16.Float16, shape.Size())
	default:
		exceptions.Panicf("tensors: dtype %s not supported, only Float32 and Float16", shape.DType)
	}
	return t
}

// FromFlat creates a tensor of the given shape from a flat float32 slice, in
// row-major order. The data is copied (converted, if shape is Float16).
func FromFlat(shape shapes.Shape, flat []float32) *Tensor {
	if len(flat) != shape.Size() {
		exceptions.Panicf("tensors.FromFlat: shape %s needs %d elements, got %d", shape, shape.Size(), len(flat))
	}
	t := Zeros(shape)
	switch shape.DType {
	case dtypes.Float32:
		copy(t.flat32, flat)
	case dtypes.Float16:
		for ii, value := range flat {
			t.flat16[ii] = float16.Fromfloat32(value)
		}
	}
	return t
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements.
func (t *Tensor) Size() int { return t.shape.Size() }

// Flat returns the elements as float32, in row-major order. For a Float16
// tensor this converts a fresh copy; for Float32 it returns the backing
// slice, which must not be mutated.
func (t *Tensor) Flat() []float32 {
	if t.flat32 != nil {
		return t.flat32
	}
	flat := make([]float32, len(t.flat16))
	for ii, value := range t.flat16 {
		flat[ii] = value.Float32()
	}
	return flat
}

// At returns the element at the given row-major flat index, as float32.
func (t *Tensor) At(flatIdx int) float32 {
	if t.flat32 != nil {
		return t.flat32[flatIdx]
	}
	return t.flat16[flatIdx].Float32()
}

// Equal reports whether two tensors have the same shape and elements.
// Elements are compared exactly, after conversion to float32.
func (t *Tensor) Equal(other *Tensor) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	for ii := 0; ii < t.Size(); ii++ {
		if t.At(ii) != other.At(ii) {
			return false
		}
	}
	return true
}

// InDelta reports whether all elements of t are within delta of other's.
// Shapes must match.
func (t *Tensor) InDelta(other *Tensor, delta float64) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for ii := 0; ii < t.Size(); ii++ {
		diff := float64(t.At(ii) - other.At(ii))
		if diff < -delta || diff > delta {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer; it prints the shape only, not the data.
func (t *Tensor) String() string {
	if t == nil {
		return "Tensor(nil)"
	}
	return fmt.Sprintf("Tensor%s", t.shape)
}
