// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"

	"github.com/gogpu/naga/ir"
)

// FunctionInfo is the derived information for one function.
type FunctionInfo struct {
	Name string
	// Types holds the resolved type of every expression, indexed by handle.
	Types []ir.TypeResolution
	// Uses counts the readers of every expression, indexed by handle.
	Uses []int
}

// ValidatedModule pairs a module with the information derived while
// validating it. It is immutable. Lowering checks that the module has not
// been modified since validation and fails with ErrStaleModule if it has.
type ValidatedModule struct {
	module      *ir.Module
	functions   []FunctionInfo
	entryPoints []FunctionInfo
	revision    uint64
}

// Module returns the validated module. Do not modify it.
func (v *ValidatedModule) Module() *ir.Module { return v.module }

// Functions returns the per-function info, indexed like Module().Functions.
func (v *ValidatedModule) Functions() []FunctionInfo { return v.functions }

// EntryPoints returns the info for entry point bodies, indexed like
// Module().EntryPoints.
func (v *ValidatedModule) EntryPoints() []FunctionInfo { return v.entryPoints }

// EntryPoint returns the entry point named name.
func (v *ValidatedModule) EntryPoint(name string) (ir.EntryPoint, bool) {
	for _, ep := range v.module.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return ir.EntryPoint{}, false
}

// HasEntryPoint reports whether the module has an entry point named name
// for the given stage.
func (v *ValidatedModule) HasEntryPoint(name string, stage ir.ShaderStage) bool {
	ep, ok := v.EntryPoint(name)
	return ok && ep.Stage == stage
}

func (v *ValidatedModule) checkRevision() error {
	if fingerprint(v.module) != v.revision {
		return ErrStaleModule
	}
	return nil
}

// Validate checks a module: handle and type consistency and control flow
// (delegated to naga), the expression scope rule (an expression may only
// read arguments and expressions defined before it in its own function, and
// a statement only expressions already emitted), and resolvable expression
// types. Functions and entry point bodies are both checked. It returns every
// problem found as one *ValidationError.
func Validate(module *ir.Module) (*ValidatedModule, error) {
	if module == nil {
		return nil, &ValidationError{Problems: []Problem{{Expression: -1, Message: "module is nil"}}}
	}

	var problems []Problem
	nagaErrs, err := ir.Validate(module)
	if err != nil {
		return nil, &ValidationError{Problems: []Problem{{Expression: -1, Message: err.Error()}}}
	}
	for _, ve := range nagaErrs {
		p := Problem{Function: ve.Function, Expression: -1, Message: ve.Message}
		if ve.Expression != nil {
			p.Expression = int(*ve.Expression)
		}
		problems = append(problems, p)
	}

	infos := make([]FunctionInfo, len(module.Functions))
	for i := range module.Functions {
		fn := &module.Functions[i]
		info, fnProblems := checkFunction(module, functionLabel(fn, i), fn)
		infos[i] = info
		problems = append(problems, fnProblems...)
	}

	// Entry point bodies live inline in EntryPoints, not in Functions.
	epInfos := make([]FunctionInfo, len(module.EntryPoints))
	for i := range module.EntryPoints {
		ep := &module.EntryPoints[i]
		label := ep.Name
		if label == "" {
			label = fmt.Sprintf("entry point #%d", i)
		}
		info, epProblems := checkFunction(module, label, &ep.Function)
		epInfos[i] = info
		problems = append(problems, epProblems...)
	}

	if len(problems) > 0 {
		slogger().Debug("shader: validation failed", "problems", len(problems))
		return nil, &ValidationError{Problems: problems}
	}

	return &ValidatedModule{
		module:      module,
		functions:   infos,
		entryPoints: epInfos,
		revision:    fingerprint(module),
	}, nil
}

// checkFunction runs the scope pass over one function body and, when the
// arena is well scoped, resolves its types and counts uses.
func checkFunction(module *ir.Module, label string, fn *ir.Function) (FunctionInfo, []Problem) {
	info := FunctionInfo{Name: label}
	problems := checkScope(module, label, fn)
	// Type resolution walks operands; only safe on well-scoped arenas.
	if len(problems) > 0 {
		return info, problems
	}
	types, typeProblems := resolveTypes(module, label, fn)
	info.Types = types
	info.Uses = useCounts(fn)
	return info, typeProblems
}

// resolveTypes reuses the types the front end recorded when they cover the
// whole arena and resolves them otherwise.
func resolveTypes(module *ir.Module, label string, fn *ir.Function) ([]ir.TypeResolution, []Problem) {
	if len(fn.ExpressionTypes) == len(fn.Expressions) {
		return fn.ExpressionTypes, nil
	}
	types := make([]ir.TypeResolution, len(fn.Expressions))
	var problems []Problem
	for i := range fn.Expressions {
		t, err := ir.ResolveExpressionType(module, fn, ir.ExpressionHandle(i))
		if err != nil {
			problems = append(problems, Problem{
				Function:   label,
				Expression: i,
				Message:    fmt.Sprintf("cannot resolve type: %v", err),
			})
			continue
		}
		types[i] = t
	}
	return types, problems
}
