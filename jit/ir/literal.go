// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"

	"github.com/wqfish/pytorch/types/tensors"
)

// LiteralKind discriminates the variants of a Literal.
type LiteralKind int

const (
	LiteralInt LiteralKind = iota
	LiteralScalar
	LiteralIntList
	LiteralScalarList
	LiteralString
	LiteralNone
	LiteralTensor
	LiteralObject
)

func (k LiteralKind) String() string {
	switch k {
	case LiteralInt:
		return "int"
	case LiteralScalar:
		return "Scalar"
	case LiteralIntList:
		return "int[]"
	case LiteralScalarList:
		return "Scalar?[]"
	case LiteralString:
		return "str"
	case LiteralNone:
		return "None"
	case LiteralTensor:
		return "Tensor"
	case LiteralObject:
		return "Object"
	default:
		return "invalid"
	}
}

// Object is an opaque backend value that can be carried by a Literal, such
// as a packed convolution context after folding.
type Object interface {
	// TypeName is the fully qualified class name, used as the ObjectType name.
	TypeName() string
}

// Literal is the compile-time value of a constant node: a tagged union over
// the kinds a graph constant can hold.
type Literal struct {
	kind    LiteralKind
	i       int64
	f       float64
	ints    []int64
	scalars []float64
	str     string
	tensor  *tensors.Tensor
	obj     Object
}

// NewInt returns an integer literal.
func NewInt(value int64) *Literal { return &Literal{kind: LiteralInt, i: value} }

// NewScalar returns a numeric scalar literal.
func NewScalar(value float64) *Literal { return &Literal{kind: LiteralScalar, f: value} }

// NewIntList returns an integer list literal.
func NewIntList(values ...int64) *Literal {
	return &Literal{kind: LiteralIntList, ints: slices.Clone(values)}
}

// NewScalarList returns a scalar list literal. An empty list is valid and is
// what an unfused prepack carries.
func NewScalarList(values ...float64) *Literal {
	return &Literal{kind: LiteralScalarList, scalars: slices.Clone(values)}
}

// NewString returns a string literal.
func NewString(value string) *Literal { return &Literal{kind: LiteralString, str: value} }

// NewNone returns the none literal (e.g. an unset algorithm selector or a
// missing bias).
func NewNone() *Literal { return &Literal{kind: LiteralNone} }

// NewTensor returns a tensor literal.
func NewTensor(value *tensors.Tensor) *Literal { return &Literal{kind: LiteralTensor, tensor: value} }

// NewObject returns an opaque object literal.
func NewObject(value Object) *Literal { return &Literal{kind: LiteralObject, obj: value} }

// Kind of the literal.
func (l *Literal) Kind() LiteralKind { return l.kind }

// IsNone reports whether this is the none literal.
func (l *Literal) IsNone() bool { return l.kind == LiteralNone }

func (l *Literal) assertKind(kind LiteralKind) {
	if l.kind != kind {
		exceptions.Panicf("literal is %s, not %s", l.kind, kind)
	}
}

// Int returns the integer payload; panics on other kinds.
func (l *Literal) Int() int64 {
	l.assertKind(LiteralInt)
	return l.i
}

// Scalar returns the scalar payload; an integer literal converts. Panics on
// other kinds.
func (l *Literal) Scalar() float64 {
	if l.kind == LiteralInt {
		return float64(l.i)
	}
	l.assertKind(LiteralScalar)
	return l.f
}

// Ints returns the integer list payload; panics on other kinds.
func (l *Literal) Ints() []int64 {
	l.assertKind(LiteralIntList)
	return slices.Clone(l.ints)
}

// Scalars returns the scalar list payload; panics on other kinds.
func (l *Literal) Scalars() []float64 {
	l.assertKind(LiteralScalarList)
	return slices.Clone(l.scalars)
}

// Str returns the string payload; panics on other kinds.
func (l *Literal) Str() string {
	l.assertKind(LiteralString)
	return l.str
}

// Tensor returns the tensor payload; panics on other kinds.
func (l *Literal) Tensor() *tensors.Tensor {
	l.assertKind(LiteralTensor)
	return l.tensor
}

// Obj returns the object payload; panics on other kinds.
func (l *Literal) Obj() Object {
	l.assertKind(LiteralObject)
	return l.obj
}

// Equal compares two literals. Tensors compare element-wise; objects compare
// by identity.
func (l *Literal) Equal(other *Literal) bool {
	if l == nil || other == nil {
		return l == other
	}
	if l.kind != other.kind {
		return false
	}
	switch l.kind {
	case LiteralInt:
		return l.i == other.i
	case LiteralScalar:
		return l.f == other.f
	case LiteralIntList:
		return slices.Equal(l.ints, other.ints)
	case LiteralScalarList:
		return slices.Equal(l.scalars, other.scalars)
	case LiteralString:
		return l.str == other.str
	case LiteralNone:
		return true
	case LiteralTensor:
		return l.tensor.Equal(other.tensor)
	case LiteralObject:
		return l.obj == other.obj
	}
	return false
}

// DefaultType returns the Type a constant of this literal naturally carries.
// Tensor constants get a contiguous CPU TensorType; callers that need a
// different layout must set it explicitly.
func (l *Literal) DefaultType() Type {
	switch l.kind {
	case LiteralInt:
		return IntType{}
	case LiteralScalar:
		return ScalarType{}
	case LiteralIntList:
		return IntListType{}
	case LiteralScalarList:
		return ScalarListType{}
	case LiteralString:
		return StringType{}
	case LiteralNone:
		return OptionalStringType{}
	case LiteralTensor:
		shape := l.tensor.Shape()
		return MakeTensorType(shape.DType, shape.Dimensions, FormatContiguous)
	case LiteralObject:
		return ObjectType{Name: l.obj.TypeName()}
	}
	return AnyType{}
}

// String implements fmt.Stringer, in the form used by the graph printer.
func (l *Literal) String() string {
	switch l.kind {
	case LiteralInt:
		return fmt.Sprintf("%d", l.i)
	case LiteralScalar:
		return fmt.Sprintf("%g", l.f)
	case LiteralIntList:
		parts := make([]string, len(l.ints))
		for ii, v := range l.ints {
			parts[ii] = fmt.Sprintf("%d", v)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case LiteralScalarList:
		parts := make([]string, len(l.scalars))
		for ii, v := range l.scalars {
			parts[ii] = fmt.Sprintf("%g", v)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case LiteralString:
		return fmt.Sprintf("%q", l.str)
	case LiteralNone:
		return "None"
	case LiteralTensor:
		return fmt.Sprintf("<%s>", l.tensor)
	case LiteralObject:
		return fmt.Sprintf("<Object %s>", l.obj.TypeName())
	}
	return "<invalid>"
}
