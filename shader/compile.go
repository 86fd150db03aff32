// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"

	"github.com/gogpu/naga/glsl"
)

// CompileOption configures Compile.
type CompileOption func(*compileOptions)

type compileOptions struct {
	target      Target
	sink        Sink
	glslEntry   string
	glslVersion glsl.Version
	spirvDebug  bool
}

// WithTarget selects the lowering back end. The default is TargetSPIRV.
func WithTarget(t Target) CompileOption {
	return func(o *compileOptions) { o.target = t }
}

// WithSink sets where debug artifacts are written. Without a sink no
// artifacts are produced.
func WithSink(s Sink) CompileOption {
	return func(o *compileOptions) { o.sink = s }
}

// WithGLSLEntryPoint selects the entry point lowered for TargetGLSL.
func WithGLSLEntryPoint(name string) CompileOption {
	return func(o *compileOptions) { o.glslEntry = name }
}

// WithGLSLVersion selects the GLSL language version for TargetGLSL.
func WithGLSLVersion(v glsl.Version) CompileOption {
	return func(o *compileOptions) { o.glslVersion = v }
}

// WithSPIRVDebug emits debug names into SPIR-V output.
func WithSPIRVDebug(enabled bool) CompileOption {
	return func(o *compileOptions) { o.spirvDebug = enabled }
}

// Compiled is the result of Compile.
type Compiled struct {
	Validated *ValidatedModule
	Target    Target

	// Words is set for TargetSPIRV.
	Words Words
	// Text is set for the textual targets.
	Text string

	// ArtifactErrors collects sink failures. They never fail the compile.
	ArtifactErrors []error
}

// Bytes returns the lowered output as bytes: SPIR-V words in host byte
// order, or the source text.
func (c *Compiled) Bytes() []byte {
	if c.Target == TargetSPIRV {
		return c.Words.NativeBytes()
	}
	return []byte(c.Text)
}

// Compile runs the whole pipeline on WGSL source: parse, validate, lower.
// When a sink is configured it receives the module dump and the lowered
// output; a sink failure is logged and recorded in ArtifactErrors.
func Compile(source string, opts ...CompileOption) (*Compiled, error) {
	o := compileOptions{target: TargetSPIRV}
	for _, opt := range opts {
		opt(&o)
	}

	module, err := Parse(source)
	if err != nil {
		return nil, err
	}
	validated, err := Validate(module)
	if err != nil {
		return nil, err
	}

	out := &Compiled{Validated: validated, Target: o.target}
	out.writeArtifact(o.sink, ArtifactDump, []byte(Dump(module)))

	switch o.target {
	case TargetSPIRV:
		out.Words, err = validated.SPIRV(SPIRVOptions{Debug: o.spirvDebug})
	case TargetGLSL:
		out.Text, err = validated.GLSL(o.glslEntry, o.glslVersion)
	case TargetMSL:
		out.Text, err = validated.MSL()
	case TargetHLSL:
		out.Text, err = validated.HLSL()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, o.target)
	}
	if err != nil {
		return nil, err
	}

	if o.target == TargetSPIRV {
		out.writeArtifact(o.sink, ArtifactSPIRV, out.Words.NativeBytes())
	} else {
		out.writeArtifact(o.sink, o.target.artifactName(), []byte(out.Text))
	}
	return out, nil
}

func (c *Compiled) writeArtifact(sink Sink, name string, data []byte) {
	if sink == nil {
		return
	}
	if err := sink.WriteArtifact(name, data); err != nil {
		err = fmt.Errorf("shader: write artifact %s: %w", name, err)
		slogger().Warn("shader: artifact not written", "name", name, "err", err)
		c.ArtifactErrors = append(c.ArtifactErrors, err)
	}
}
