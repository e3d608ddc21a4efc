// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	in := []int{0, 1, 2}
	out := Map(in, func(v int) int32 { return int32(v + 1) })
	assert.Equal(t, []int32{1, 2, 3}, out)
}

func TestProd(t *testing.T) {
	assert.Equal(t, 24, Prod([]int{2, 3, 4}))
	assert.Equal(t, 1, Prod([]int(nil)))
}
