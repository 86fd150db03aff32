// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"

	"github.com/gogpu/naga/ir"
)

// operands returns the expression handles kind reads.
//
//nolint:gocyclo,cyclop // one case per expression kind
func operands(kind ir.ExpressionKind) []ir.ExpressionHandle {
	var out []ir.ExpressionHandle
	opt := func(h *ir.ExpressionHandle) {
		if h != nil {
			out = append(out, *h)
		}
	}
	switch k := kind.(type) {
	case ir.ExprCompose:
		out = append(out, k.Components...)
	case ir.ExprAccess:
		out = append(out, k.Base, k.Index)
	case ir.ExprAccessIndex:
		out = append(out, k.Base)
	case ir.ExprSplat:
		out = append(out, k.Value)
	case ir.ExprSwizzle:
		out = append(out, k.Vector)
	case ir.ExprLoad:
		out = append(out, k.Pointer)
	case ir.ExprImageSample:
		out = append(out, k.Image, k.Sampler, k.Coordinate)
		opt(k.ArrayIndex)
		opt(k.Offset)
		opt(k.DepthRef)
		switch lvl := k.Level.(type) {
		case ir.SampleLevelExact:
			out = append(out, lvl.Level)
		case ir.SampleLevelBias:
			out = append(out, lvl.Bias)
		case ir.SampleLevelGradient:
			out = append(out, lvl.X, lvl.Y)
		}
	case ir.ExprImageLoad:
		out = append(out, k.Image, k.Coordinate)
		opt(k.ArrayIndex)
		opt(k.Sample)
		opt(k.Level)
	case ir.ExprImageQuery:
		out = append(out, k.Image)
		if q, ok := k.Query.(ir.ImageQuerySize); ok {
			opt(q.Level)
		}
	case ir.ExprUnary:
		out = append(out, k.Expr)
	case ir.ExprBinary:
		out = append(out, k.Left, k.Right)
	case ir.ExprSelect:
		out = append(out, k.Condition, k.Accept, k.Reject)
	case ir.ExprDerivative:
		out = append(out, k.Expr)
	case ir.ExprRelational:
		out = append(out, k.Argument)
	case ir.ExprMath:
		out = append(out, k.Arg)
		opt(k.Arg1)
		opt(k.Arg2)
		opt(k.Arg3)
	case ir.ExprAs:
		out = append(out, k.Expr)
	case ir.ExprArrayLength:
		out = append(out, k.Array)
	}
	return out
}

// blockVisitor receives the expression traffic of a statement tree in
// program order.
type blockVisitor struct {
	// use is called for every expression a statement reads.
	use func(stmt int, h ir.ExpressionHandle)
	// emit is called for every Emit statement.
	emit func(stmt int, r ir.Range)
	// define is called for expressions a statement produces (call and
	// atomic results).
	define func(stmt int, h ir.ExpressionHandle)
}

// walkBlock feeds every statement of block to v, recursing into nested
// blocks.
//
//nolint:gocyclo,cyclop // one case per statement kind
func walkBlock(block ir.Block, v blockVisitor) {
	for i := range block {
		opt := func(h *ir.ExpressionHandle) {
			if h != nil {
				v.use(i, *h)
			}
		}
		switch s := block[i].Kind.(type) {
		case ir.StmtEmit:
			v.emit(i, s.Range)
		case ir.StmtBlock:
			walkBlock(s.Block, v)
		case ir.StmtIf:
			v.use(i, s.Condition)
			walkBlock(s.Accept, v)
			walkBlock(s.Reject, v)
		case ir.StmtSwitch:
			v.use(i, s.Selector)
			for _, c := range s.Cases {
				walkBlock(c.Body, v)
			}
		case ir.StmtLoop:
			walkBlock(s.Body, v)
			walkBlock(s.Continuing, v)
			opt(s.BreakIf)
		case ir.StmtReturn:
			opt(s.Value)
		case ir.StmtStore:
			v.use(i, s.Pointer)
			v.use(i, s.Value)
		case ir.StmtImageStore:
			v.use(i, s.Image)
			v.use(i, s.Coordinate)
			opt(s.ArrayIndex)
			v.use(i, s.Value)
		case ir.StmtAtomic:
			v.use(i, s.Pointer)
			v.use(i, s.Value)
			if s.Result != nil {
				v.define(i, *s.Result)
			}
		case ir.StmtWorkGroupUniformLoad:
			v.use(i, s.Pointer)
			v.define(i, s.Result)
		case ir.StmtCall:
			for _, a := range s.Arguments {
				v.use(i, a)
			}
			if s.Result != nil {
				v.define(i, *s.Result)
			}
		case ir.StmtRayQuery:
			v.use(i, s.Query)
		}
	}
}

// checkScope enforces the expression arena ordering of one function:
// an expression may read only arguments, its own function's locals and
// expressions with a smaller handle. Statements must refer to existing
// expressions, emit ranges must be well formed, and nothing may read an
// expression before the statement that emits or produces it.
//
//nolint:gocyclo,cyclop // one check per rule
func checkScope(module *ir.Module, label string, fn *ir.Function) []Problem {
	var problems []Problem
	add := func(expr int, format string, args ...any) {
		problems = append(problems, Problem{Function: label, Expression: expr, Message: fmt.Sprintf(format, args...)})
	}

	n := len(fn.Expressions)
	for i := range fn.Expressions {
		kind := fn.Expressions[i].Kind
		for _, h := range operands(kind) {
			if int(h) >= i {
				if int(h) >= n {
					add(i, "references undefined expression %d", h)
				} else {
					add(i, "references expression %d before it is defined", h)
				}
			}
		}
		switch k := kind.(type) {
		case ir.ExprFunctionArgument:
			if int(k.Index) >= len(fn.Arguments) {
				add(i, "argument %d out of range (function has %d)", k.Index, len(fn.Arguments))
			}
		case ir.ExprLocalVariable:
			if int(k.Variable) >= len(fn.LocalVars) {
				add(i, "local variable %d out of range (function has %d)", k.Variable, len(fn.LocalVars))
			}
		case ir.ExprGlobalVariable:
			if int(k.Variable) >= len(module.GlobalVariables) {
				add(i, "global variable %d does not exist", k.Variable)
			}
		case ir.ExprCallResult:
			if int(k.Function) >= len(module.Functions) {
				add(i, "call result of undefined function %d", k.Function)
			}
		}
	}

	for li, lv := range fn.LocalVars {
		if lv.Init != nil && int(*lv.Init) >= n {
			add(-1, "local variable %d (%s) initialised from undefined expression %d", li, lv.Name, *lv.Init)
		}
	}

	// Program-order position of the first emit or producing statement of
	// each expression; -1 for expressions that are never emitted.
	definedAt := make([]int, n)
	for i := range definedAt {
		definedAt[i] = -1
	}
	type read struct {
		stmt, seq int
		h         ir.ExpressionHandle
	}
	var reads []read
	seq := 0
	define := func(h ir.ExpressionHandle) {
		if int(h) < n && definedAt[h] < 0 {
			definedAt[h] = seq
		}
	}
	walkBlock(fn.Body, blockVisitor{
		use: func(stmt int, h ir.ExpressionHandle) {
			seq++
			if int(h) >= n {
				add(-1, "statement %d references undefined expression %d", stmt, h)
				return
			}
			reads = append(reads, read{stmt: stmt, seq: seq, h: h})
		},
		emit: func(stmt int, r ir.Range) {
			seq++
			if r.Start > r.End || int(r.End) > n {
				add(-1, "statement %d emits invalid range [%d, %d)", stmt, r.Start, r.End)
				return
			}
			for h := r.Start; h < r.End; h++ {
				define(h)
			}
		},
		define: func(stmt int, h ir.ExpressionHandle) {
			seq++
			if int(h) >= n {
				add(-1, "statement %d produces undefined expression %d", stmt, h)
				return
			}
			define(h)
		},
	})

	for _, r := range reads {
		if at := definedAt[r.h]; at > r.seq {
			add(int(r.h), "read by statement %d before it is emitted", r.stmt)
		}
	}
	for i := range fn.Expressions {
		at := definedAt[i]
		if at < 0 {
			continue
		}
		for _, h := range operands(fn.Expressions[i].Kind) {
			if int(h) < n && definedAt[h] > at {
				add(i, "reads expression %d before it is emitted", h)
			}
		}
	}
	return problems
}

// useCounts returns how often each expression is read by other expressions
// and statements.
func useCounts(fn *ir.Function) []int {
	counts := make([]int, len(fn.Expressions))
	bump := func(_ int, h ir.ExpressionHandle) {
		if int(h) < len(counts) {
			counts[h]++
		}
	}
	for i := range fn.Expressions {
		for _, h := range operands(fn.Expressions[i].Kind) {
			bump(0, h)
		}
	}
	walkBlock(fn.Body, blockVisitor{use: bump, emit: func(int, ir.Range) {}, define: func(int, ir.ExpressionHandle) {}})
	return counts
}

func functionLabel(fn *ir.Function, index int) string {
	if fn.Name != "" {
		return fn.Name
	}
	return fmt.Sprintf("#%d", index)
}
