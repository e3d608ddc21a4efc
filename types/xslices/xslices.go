// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provides missing functionality to the standard slices
// package.
package xslices

import (
	"golang.org/x/exp/constraints"
)

// Map applies fn to each element of the slice, returning a new slice of the
// results.
func Map[In, Out any](slice []In, fn func(In) Out) []Out {
	result := make([]Out, len(slice))
	for ii, value := range slice {
		result[ii] = fn(value)
	}
	return result
}

// Prod returns the product of all elements (1 for an empty slice).
func Prod[T constraints.Integer | constraints.Float](slice []T) T {
	var product T = 1
	for _, value := range slice {
		product *= value
	}
	return product
}
