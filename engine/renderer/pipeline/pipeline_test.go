package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/compiler"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vertexSource = `
struct Camera { viewProj: mat4x4<f32>, }
@group(0) @binding(0) var<uniform> camera: Camera;

@vertex
fn vs_main(@location(0) pos: vec3<f32>) -> @builtin(position) vec4<f32> {
    return camera.viewProj * vec4<f32>(pos, 1.0);
}
`

const fragmentSource = `
struct Camera { viewProj: mat4x4<f32>, }
@group(0) @binding(0) var<uniform> camera: Camera;
@group(1) @binding(0) var albedoSampler: sampler;
@group(1) @binding(1) var albedo: texture_2d<f32>;

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return textureSample(albedo, albedoSampler, vec2<f32>(0.5, 0.5)) * camera.viewProj[0][0];
}
`

const conflictingFragment = `
@group(0) @binding(0) var<storage, read> camera: array<f32>;

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(camera[0]);
}
`

const computeSource = `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = data[id.x] * 2.0;
}
`

func program(name, src string) *compiler.Program {
	p := &compiler.Program{Name: name, Source: src, Stages: make(map[shader.ShaderType]shader.Reflection)}
	for _, st := range shader.DetectShaderTypes(src) {
		p.Stages[st] = shader.Reflect(src, st)
	}
	if st, ok := shader.DetectShaderType(src); ok {
		p.Reflection = p.Stages[st]
	}
	return p
}

func TestRenderPipelineMergesLayouts(t *testing.T) {
	p, err := NewPipeline("mesh", PipelineTypeRender,
		WithVertexProgram(program("meshVS", vertexSource)),
		WithFragmentProgram(program("meshFS", fragmentSource)),
		WithCullMode(wgpu.CullModeNone),
	)
	require.NoError(t, err)

	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.Equal(t, "mesh", p.PipelineKey())
	assert.Equal(t, "vs_main", p.EntryPoint(shader.ShaderTypeVertex))
	assert.Equal(t, "fs_main", p.EntryPoint(shader.ShaderTypeFragment))
	assert.Empty(t, p.EntryPoint(shader.ShaderTypeCompute))
	assert.Equal(t, []int{0, 1}, p.Groups())

	layouts := p.BindGroupLayouts()
	require.Len(t, layouts[0].Entries, 1)
	assert.Equal(t, "mesh/group0", layouts[0].Label)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, layouts[0].Entries[0].Visibility)

	require.Len(t, layouts[1].Entries, 2)
	assert.Equal(t, uint32(0), layouts[1].Entries[0].Binding)
	assert.Equal(t, uint32(1), layouts[1].Entries[1].Binding)
	assert.Equal(t, wgpu.ShaderStageFragment, layouts[1].Entries[1].Visibility)

	ps := p.PrimitiveState()
	assert.Equal(t, wgpu.CullModeNone, ps.CullMode)
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, ps.Topology)
	assert.Equal(t, wgpu.FrontFaceCCW, ps.FrontFace)
}

const combinedSource = `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@group(0) @binding(0) var<uniform> transform: mat4x4<f32>;
@group(0) @binding(1) var tintSampler: sampler;
@group(0) @binding(2) var tint: texture_2d<f32>;

@vertex
fn vs_main(@location(0) pos: vec2<f32>) -> VertexOutput {
    var result: VertexOutput;
    result.position = transform * vec4<f32>(pos, 0.0, 1.0);
    result.uv = pos;
    return result;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(tint, tintSampler, in.uv);
}
`

func TestRenderPipelineFromOneModule(t *testing.T) {
	tri := program("tri", combinedSource)
	p, err := NewPipeline("tri", PipelineTypeRender, WithVertexProgram(tri), WithFragmentProgram(tri))
	require.NoError(t, err)

	assert.Same(t, tri, p.Program(shader.ShaderTypeVertex))
	assert.Equal(t, "vs_main", p.EntryPoint(shader.ShaderTypeVertex))
	assert.Equal(t, "fs_main", p.EntryPoint(shader.ShaderTypeFragment))

	entries := p.BindGroupLayouts()[0].Entries
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, e.Visibility)
	}
}

func TestBindGroupLayoutsReturnsCopy(t *testing.T) {
	p, err := NewPipeline("c", PipelineTypeCompute,
		WithComputeProgram(program("double", computeSource)))
	require.NoError(t, err)

	l := p.BindGroupLayouts()
	l[0].Entries[0].Binding = 9
	assert.Equal(t, uint32(0), p.BindGroupLayouts()[0].Entries[0].Binding)
	assert.Equal(t, wgpu.ShaderStageCompute, p.BindGroupLayouts()[0].Entries[0].Visibility)
}

func TestNewPipelineErrors(t *testing.T) {
	vs := program("meshVS", vertexSource)
	fs := program("meshFS", fragmentSource)

	tests := []struct {
		name    string
		typ     PipelineType
		options []PipelineBuilderOption
		want    error
	}{
		{"render without fragment", PipelineTypeRender, []PipelineBuilderOption{WithVertexProgram(vs)}, ErrMissingStage},
		{"compute without program", PipelineTypeCompute, nil, ErrMissingStage},
		{"swapped stages", PipelineTypeRender, []PipelineBuilderOption{WithVertexProgram(fs), WithFragmentProgram(vs)}, ErrStageMismatch},
		{
			"conflicting binding",
			PipelineTypeRender,
			[]PipelineBuilderOption{
				WithVertexProgram(vs),
				WithFragmentProgram(program("bad", conflictingFragment)),
			},
			ErrBindingConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPipeline("k", tt.typ, tt.options...)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewPipelinePanicsOnEmptyKey(t *testing.T) {
	assert.Panics(t, func() { _, _ = NewPipeline("", PipelineTypeCompute) })
}
