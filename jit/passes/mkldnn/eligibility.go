// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mkldnn

import (
	"k8s.io/klog/v2"

	"github.com/wqfish/pytorch/jit/ir"
	"github.com/wqfish/pytorch/jit/tensorexpr"
)

// isTensorTypeCPU reports whether every tensor-typed operand of the node is
// known to live on the CPU. Unknown device fails closed: the rewrite only
// fires on nodes it can prove eligible.
func isTensorTypeCPU(n *ir.Node) bool {
	for _, v := range n.Inputs() {
		tt, ok := v.TensorType()
		if !ok {
			continue
		}
		if tt.Device != ir.DeviceCPU {
			klog.V(2).Infof("conv2d not prepacked: operand %q is on %s", v.Name(), tt.Device)
			return false
		}
	}
	return true
}

// eligibleActivationSizes returns the concrete NCHW activation shape a
// conv2d can be prepacked for, or false when the node is not eligible:
// activation or weight not known contiguous in channels-last, the
// convolution owned by the vectorized kernel path, or sizes not fully known.
func eligibleActivationSizes(n *ir.Node) ([]int, bool) {
	for _, operand := range []struct {
		name  string
		value *ir.Value
	}{{"activation", n.Input(0)}, {"weight", n.Input(1)}} {
		tt, ok := operand.value.TensorType()
		if !ok || !tt.IsContiguousIn(ir.FormatChannelsLast) {
			klog.V(2).Infof("conv2d not prepacked: %s is not known channels-last contiguous", operand.name)
			return nil, false
		}
	}
	if tensorexpr.Conv2dIsSupported(n) {
		klog.V(2).Infof("conv2d not prepacked: left to the vectorized kernel path")
		return nil, false
	}
	tt, _ := n.Input(0).TensorType()
	sizes, ok := tt.ConcreteSizes()
	if !ok || len(sizes) != 4 {
		klog.V(2).Infof("conv2d not prepacked: activation sizes %v not fully known", tt.Sizes)
		return nil, false
	}
	return sizes, true
}
