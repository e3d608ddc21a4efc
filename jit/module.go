// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package jit ties together the graph IR and the passes that rewrite it. It
// defines Module, a named collection of method graphs with child submodules,
// the unit that whole-program passes are applied to.
package jit

import (
	"github.com/wqfish/pytorch/jit/ir"
)

// Method is one named graph of a Module.
type Method struct {
	Name  string
	Graph *ir.Graph
}

// Module groups method graphs and child submodules. Iteration order is the
// insertion order; passes apply to methods strictly sequentially, since a
// later method's graph may share state established by rewriting an earlier
// one.
type Module struct {
	name     string
	methods  []Method
	children []*Module
}

// NewModule creates an empty module with the given name.
func NewModule(name string) *Module {
	return &Module{name: name}
}

// Name of the module.
func (m *Module) Name() string { return m.name }

// AddMethod appends a named method graph.
func (m *Module) AddMethod(name string, g *ir.Graph) {
	m.methods = append(m.methods, Method{Name: name, Graph: g})
}

// Methods returns the methods in insertion order.
func (m *Module) Methods() []Method {
	methods := make([]Method, len(m.methods))
	copy(methods, m.methods)
	return methods
}

// AddChild appends a child submodule.
func (m *Module) AddChild(child *Module) {
	m.children = append(m.children, child)
}

// Children returns the child submodules in insertion order.
func (m *Module) Children() []*Module {
	children := make([]*Module, len(m.children))
	copy(children, m.children)
	return children
}
