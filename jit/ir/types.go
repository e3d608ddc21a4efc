// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
)

// Type describes the value carried by an edge of the graph.
type Type interface {
	fmt.Stringer
}

// AnyType matches any value; it is the type given to pattern placeholders.
type AnyType struct{}

func (AnyType) String() string { return "*" }

// MemoryFormat is the memory layout a tensor value is contiguous in.
type MemoryFormat int

const (
	FormatUnknown MemoryFormat = iota
	FormatContiguous
	FormatChannelsLast
)

func (f MemoryFormat) String() string {
	switch f {
	case FormatContiguous:
		return "contiguous"
	case FormatChannelsLast:
		return "channels_last"
	default:
		return "unknown_format"
	}
}

// Device is the device class a tensor value lives on.
type Device int

const (
	DeviceUnknown Device = iota
	DeviceCPU
	DeviceCUDA
)

func (d Device) String() string {
	switch d {
	case DeviceCPU:
		return "cpu"
	case DeviceCUDA:
		return "cuda"
	default:
		return "unknown_device"
	}
}

// TensorType is the inferred type of a tensor-valued edge. Unlike a concrete
// shapes.Shape, its sizes may be partially unknown: a -1 entry means the
// dimension is not known at compile time, and a nil Sizes slice means even
// the rank is unknown.
type TensorType struct {
	DType  dtypes.DType
	Sizes  []int
	Format MemoryFormat
	Device Device
}

// MakeTensorType returns a TensorType with fully concrete sizes, on the CPU,
// contiguous in the given format.
func MakeTensorType(dtype dtypes.DType, sizes []int, format MemoryFormat) TensorType {
	return TensorType{DType: dtype, Sizes: slices.Clone(sizes), Format: format, Device: DeviceCPU}
}

// ConcreteSizes returns the sizes if they are fully known.
func (t TensorType) ConcreteSizes() ([]int, bool) {
	if t.Sizes == nil {
		return nil, false
	}
	for _, size := range t.Sizes {
		if size < 0 {
			return nil, false
		}
	}
	return slices.Clone(t.Sizes), true
}

// IsContiguousIn reports whether the value is known to be contiguous in the
// given memory format. Unknown layout fails closed.
func (t TensorType) IsContiguousIn(format MemoryFormat) bool {
	return t.Format != FormatUnknown && t.Format == format
}

func (t TensorType) String() string {
	var sb strings.Builder
	sb.WriteString("Tensor(")
	if t.Sizes == nil {
		sb.WriteString("*")
	} else {
		for ii, size := range t.Sizes {
			if ii > 0 {
				sb.WriteString("x")
			}
			if size < 0 {
				sb.WriteString("?")
			} else {
				fmt.Fprintf(&sb, "%d", size)
			}
		}
	}
	if t.Format != FormatUnknown {
		fmt.Fprintf(&sb, ", %s", t.Format)
	}
	if t.Device != DeviceUnknown {
		fmt.Fprintf(&sb, ", %s", t.Device)
	}
	sb.WriteString(")")
	return sb.String()
}

// IntType is a single integer.
type IntType struct{}

func (IntType) String() string { return "int" }

// ScalarType is a single numeric scalar.
type ScalarType struct{}

func (ScalarType) String() string { return "Scalar" }

// IntListType is a list of integers (strides, paddings, sizes, ...).
type IntListType struct{}

func (IntListType) String() string { return "int[]" }

// ScalarListType is a list of optional scalars, the operand list carried by
// the prepack operator.
type ScalarListType struct{}

func (ScalarListType) String() string { return "Scalar?[]" }

// StringType is a string (e.g. the fusion attribute).
type StringType struct{}

func (StringType) String() string { return "str" }

// OptionalStringType is a string or none (e.g. the algorithm selector).
type OptionalStringType struct{}

func (OptionalStringType) String() string { return "str?" }

// ObjectType is an opaque, backend-defined class type, such as the packed
// convolution context. Constant propagation never folds nodes producing an
// ObjectType: those are left to dedicated folding passes that know how to
// convert the object into its literal (frozen) form.
type ObjectType struct {
	Name string
}

func (t ObjectType) String() string { return t.Name }
