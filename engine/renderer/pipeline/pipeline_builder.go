package pipeline

import (
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/compiler"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithVertexProgram attaches the compiled vertex stage.
//
// Parameters:
//   - p: a program compiled from a vertex shader
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex program
func WithVertexProgram(p *compiler.Program) PipelineBuilderOption {
	return func(pl *pipeline) {
		pl.vertexProgram = p
	}
}

// WithFragmentProgram attaches the compiled fragment stage.
//
// Parameters:
//   - p: a program compiled from a fragment shader
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment program
func WithFragmentProgram(p *compiler.Program) PipelineBuilderOption {
	return func(pl *pipeline) {
		pl.fragmentProgram = p
	}
}

// WithComputeProgram attaches the compiled compute stage.
//
// Parameters:
//   - p: a program compiled from a compute shader
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compute program
func WithComputeProgram(p *compiler.Program) PipelineBuilderOption {
	return func(pl *pipeline) {
		pl.computeProgram = p
	}
}

// WithTopology sets the primitive topology. Defaults to triangle lists.
func WithTopology(t wgpu.PrimitiveTopology) PipelineBuilderOption {
	return func(pl *pipeline) {
		pl.topology = t
	}
}

// WithFrontFace sets the winding order of front faces. Defaults to counter-clockwise.
func WithFrontFace(f wgpu.FrontFace) PipelineBuilderOption {
	return func(pl *pipeline) {
		pl.frontFace = f
	}
}

// WithCullMode sets face culling. Defaults to back-face culling.
func WithCullMode(c wgpu.CullMode) PipelineBuilderOption {
	return func(pl *pipeline) {
		pl.cullMode = c
	}
}
