// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader compiles WGSL source into a form a GPU device accepts.
//
// Compilation has three stages, each with its own error type:
//
//	module, err := shader.Parse(src)         // *ParseError
//	validated, err := shader.Validate(module) // *ValidationError
//	words, err := validated.SPIRV(opts)       // *LoweringError
//
// Validate is the only place structural problems are reported. Lowering a
// ValidatedModule never re-validates it, so a back end can assume every
// expression reads only arguments and expressions defined earlier in the
// same function.
//
// Compile runs all three stages and optionally writes debug artifacts
// (the IR dump and the lowered output) to a Sink. Artifact failures are
// reported in Compiled.ArtifactErrors and never fail the compile.
package shader
