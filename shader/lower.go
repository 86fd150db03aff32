// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
	"github.com/gogpu/naga/spirv"
)

// Target selects a lowering back end.
type Target int

const (
	// TargetSPIRV lowers to a SPIR-V word stream.
	TargetSPIRV Target = iota
	// TargetGLSL lowers to GLSL source.
	TargetGLSL
	// TargetMSL lowers to Metal Shading Language source.
	TargetMSL
	// TargetHLSL lowers to HLSL source.
	TargetHLSL
)

// String returns the target name.
func (t Target) String() string {
	switch t {
	case TargetSPIRV:
		return "spirv"
	case TargetGLSL:
		return "glsl"
	case TargetMSL:
		return "msl"
	case TargetHLSL:
		return "hlsl"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// ParseTarget maps a name accepted on the command line to a Target.
func ParseTarget(name string) (Target, error) {
	switch name {
	case "spirv", "spv", "":
		return TargetSPIRV, nil
	case "glsl":
		return TargetGLSL, nil
	case "msl", "metal":
		return TargetMSL, nil
	case "hlsl":
		return TargetHLSL, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
}

// Textual reports whether the target produces source text.
func (t Target) Textual() bool { return t != TargetSPIRV }

// artifactName returns the debug artifact name for the target's output.
func (t Target) artifactName() string {
	switch t {
	case TargetGLSL:
		return ArtifactGLSL
	case TargetMSL:
		return ArtifactMSL
	case TargetHLSL:
		return ArtifactHLSL
	default:
		return ArtifactSPIRV
	}
}

// SPIRVOptions configures SPIR-V lowering.
type SPIRVOptions struct {
	// Debug emits OpName/OpLine debug instructions.
	Debug bool
}

// SPIRV lowers the module to SPIR-V words. It does not re-validate.
func (v *ValidatedModule) SPIRV(opts SPIRVOptions) (Words, error) {
	if err := v.checkRevision(); err != nil {
		return nil, &LoweringError{Target: TargetSPIRV, Err: err}
	}
	backend := spirv.NewBackend(spirv.Options{
		Version:    spirv.Version1_3,
		Debug:      opts.Debug,
		Validation: true,
	})
	raw, err := backend.Compile(v.module)
	if err != nil {
		return nil, &LoweringError{Target: TargetSPIRV, Err: err}
	}
	// The back end always emits little-endian words.
	words, err := WordsFromBytes(raw, binary.LittleEndian)
	if err != nil {
		return nil, &LoweringError{Target: TargetSPIRV, Err: err}
	}
	if len(words) == 0 || words[0] != spirvMagic {
		return nil, &LoweringError{Target: TargetSPIRV, Err: fmt.Errorf("missing SPIR-V magic")}
	}
	slogger().Debug("shader: lowered", "target", TargetSPIRV, "words", len(words))
	return words, nil
}

// GLSL lowers one entry point to GLSL of the given version. An empty entry
// selects the first entry point; a zero version selects GLSL 3.30. Compute
// entry points require a version with compute support.
func (v *ValidatedModule) GLSL(entry string, version glsl.Version) (string, error) {
	if err := v.checkRevision(); err != nil {
		return "", &LoweringError{Target: TargetGLSL, Err: err}
	}
	if version.Major == 0 {
		version = glsl.Version330
	}

	var ep ir.EntryPoint
	switch {
	case entry != "":
		var ok bool
		if ep, ok = v.EntryPoint(entry); !ok {
			return "", &LoweringError{Target: TargetGLSL, Err: fmt.Errorf("%w: %q", ErrEntryPointNotFound, entry)}
		}
	case len(v.module.EntryPoints) > 0:
		ep = v.module.EntryPoints[0]
	default:
		return "", &LoweringError{Target: TargetGLSL, Err: fmt.Errorf("%w: module has none", ErrEntryPointNotFound)}
	}
	if ep.Stage == ir.StageCompute && !version.SupportsCompute() {
		return "", &LoweringError{Target: TargetGLSL,
			Err: fmt.Errorf("compute entry point %q needs GLSL 4.30, have %s", ep.Name, version)}
	}

	opts := glsl.DefaultOptions()
	opts.LangVersion = version
	opts.EntryPoint = ep.Name
	src, _, err := glsl.Compile(v.module, opts)
	if err != nil {
		return "", &LoweringError{Target: TargetGLSL, Err: err}
	}
	slogger().Debug("shader: lowered", "target", TargetGLSL, "entry_point", ep.Name, "bytes", len(src))
	return src, nil
}

// MSL lowers every entry point to Metal Shading Language.
func (v *ValidatedModule) MSL() (string, error) {
	if err := v.checkRevision(); err != nil {
		return "", &LoweringError{Target: TargetMSL, Err: err}
	}
	src, _, err := msl.Compile(v.module, msl.DefaultOptions())
	if err != nil {
		return "", &LoweringError{Target: TargetMSL, Err: err}
	}
	slogger().Debug("shader: lowered", "target", TargetMSL, "bytes", len(src))
	return src, nil
}

// HLSL lowers every entry point to HLSL (shader model 5.1).
func (v *ValidatedModule) HLSL() (string, error) {
	if err := v.checkRevision(); err != nil {
		return "", &LoweringError{Target: TargetHLSL, Err: err}
	}
	src, _, err := hlsl.Compile(v.module, hlsl.DefaultOptions())
	if err != nil {
		return "", &LoweringError{Target: TargetHLSL, Err: err}
	}
	slogger().Debug("shader: lowered", "target", TargetHLSL, "bytes", len(src))
	return src, nil
}
