package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTarget is returned by ParseTarget for a name that is not a supported target.
var ErrUnknownTarget = errors.New("unknown target")

// Target is the output language a Program is generated for.
type Target int

const (
	// TargetSPIRV generates a SPIR-V binary for Vulkan consumers.
	TargetSPIRV Target = iota

	// TargetGLSL generates GLSL 3.30 source.
	TargetGLSL

	// TargetMSL generates Metal Shading Language source.
	TargetMSL
)

// String returns the lowercase target name used in manifests and logs.
func (t Target) String() string {
	switch t {
	case TargetSPIRV:
		return "spirv"
	case TargetGLSL:
		return "glsl"
	case TargetMSL:
		return "msl"
	default:
		return "unknown"
	}
}

// Extension returns the file extension conventionally used for the target's output.
func (t Target) Extension() string {
	switch t {
	case TargetGLSL:
		return ".glsl"
	case TargetMSL:
		return ".metal"
	default:
		return ".spv"
	}
}

// ParseTarget maps a target name to its Target, ignoring case.
//
// Parameters:
//   - name: one of "spirv", "glsl" or "msl"
//
// Returns:
//   - Target: the parsed target
//   - error: wraps ErrUnknownTarget if name is not recognized
func ParseTarget(name string) (Target, error) {
	for _, t := range Targets() {
		if strings.EqualFold(name, t.String()) {
			return t, nil
		}
	}
	return TargetSPIRV, fmt.Errorf("%w %q", ErrUnknownTarget, name)
}

// Targets lists every supported target.
func Targets() []Target {
	return []Target{TargetSPIRV, TargetGLSL, TargetMSL}
}
