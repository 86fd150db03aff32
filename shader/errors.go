// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStaleModule is returned when a ValidatedModule is lowered after its
	// module was modified.
	ErrStaleModule = errors.New("shader: module changed since validation")

	// ErrUnknownTarget is returned for a Target value Compile does not know.
	ErrUnknownTarget = errors.New("shader: unknown lowering target")

	// ErrEntryPointNotFound is returned when a named entry point is absent.
	ErrEntryPointNotFound = errors.New("shader: entry point not found")
)

// ParseError reports malformed shader source.
type ParseError struct {
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return "shader: parse: " + e.Message
	}
	return fmt.Sprintf("shader: parse %d:%d: %s", e.Line, e.Column, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Problem is one offending construct found by validation.
type Problem struct {
	// Function is the function name, empty for module-level problems.
	Function string
	// Expression is the expression handle, or -1 when not tied to one.
	Expression int
	Message    string
}

func (p Problem) String() string {
	var b strings.Builder
	if p.Function != "" {
		b.WriteString("fn ")
		b.WriteString(p.Function)
		if p.Expression >= 0 {
			fmt.Fprintf(&b, " expr[%d]", p.Expression)
		}
		b.WriteString(": ")
	}
	b.WriteString(p.Message)
	return b.String()
}

// ValidationError lists every problem found in a module.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	switch len(e.Problems) {
	case 0:
		return "shader: validation failed"
	case 1:
		return "shader: validation: " + e.Problems[0].String()
	}
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("shader: validation: %d problems: %s", len(e.Problems), strings.Join(parts, "; "))
}

// LoweringError reports a construct the target back end cannot represent.
type LoweringError struct {
	Target Target
	Err    error
}

func (e *LoweringError) Error() string {
	return fmt.Sprintf("shader: lower to %s: %v", e.Target, e.Err)
}

func (e *LoweringError) Unwrap() error { return e.Err }

// IsCompileError reports whether err came from parsing, validating or
// lowering a shader. Callers embedding the pipeline use it to fall back to
// another shader instead of aborting.
func IsCompileError(err error) bool {
	var pe *ParseError
	var ve *ValidationError
	var le *LoweringError
	return errors.As(err, &pe) || errors.As(err, &ve) || errors.As(err, &le)
}
