package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filteringSource = `#include<helperFunctions>
#include<hdrFilteringFunctions>

@group(0) @binding(0) var inputSampler: sampler;
@group(0) @binding(1) var inputTexture: texture_cube<f32>;
#ifdef IBL_CDF_FILTERING
@group(0) @binding(2) var icdfSampler: sampler;
@group(0) @binding(3) var icdfTexture: texture_2d<f32>;
#endif

struct Uniforms {
    vFilteringInfo: vec2<f32>,
    hdrScale: f32,
}
@group(0) @binding(4) var<uniform> uniforms: Uniforms;

struct FragmentInput {
    @location(0) direction: vec3<f32>,
}

@fragment
fn main(input: FragmentInput) -> @location(0) vec4<f32> {
    var c = textureSampleLevel(inputTexture, inputSampler, input.direction, 0.0).rgb;
#ifdef IBL_CDF_FILTERING
    c = c * textureSampleLevel(icdfTexture, icdfSampler, vec2<f32>(0.5, 0.5), 0.0).r;
#endif
    // hdrScale scales the result
    return vec4<f32>(c * uniforms.hdrScale * uniforms.vFilteringInfo.x, 1.0);
}
`

func TestReflect(t *testing.T) {
	r := Reflect(filteringSource, ShaderTypeFragment)

	assert.Equal(t, "main", r.EntryPoint)
	assert.Equal(t, 21, r.EntryLine)
	assert.Contains(t, r.EntryBody, "textureSampleLevel(inputTexture")
	assert.NotContains(t, r.EntryBody, "hdrScale scales", "comments are stripped")

	require.Len(t, r.Bindings, 5)
	assert.Equal(t, Binding{Group: 0, Binding: 3, Name: "icdfTexture", Type: "texture_2d<f32>", Line: 8}, r.Bindings[3])
	assert.Equal(t, "uniform", r.Bindings[4].AddressSpace)
	assert.Equal(t, "inputTexture", r.VarName(0, 1))
	assert.Empty(t, r.VarName(1, 0))

	b, ok := r.Lookup("uniforms")
	require.True(t, ok)
	assert.Equal(t, 4, b.Binding)

	layout, ok := r.BindGroupLayouts[0]
	require.True(t, ok)
	require.Len(t, layout.Entries, 5)

	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, layout.Entries[0].Sampler.Type)
	assert.Equal(t, wgpu.TextureViewDimensionCube, layout.Entries[1].Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, layout.Entries[1].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, layout.Entries[3].Texture.ViewDimension)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, layout.Entries[4].Buffer.Type)
	assert.Equal(t, uint64(16), layout.Entries[4].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.ShaderStageFragment, layout.Entries[4].Visibility)
}

func TestReflectCompute(t *testing.T) {
	src := `
struct Params { count: u32, scale: vec3<f32>, }
@group(1) @binding(0) var<storage, read_write> data: array<vec4<f32>>;
@group(1) @binding(1) var<uniform> params: Params;
@group(1) @binding(2) var out_tex: texture_storage_2d<rgba8unorm, write>;

@compute @workgroup_size(8, 4)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = vec4<f32>(params.scale, f32(params.count));
    textureStore(out_tex, vec2<i32>(0, 0), data[0]);
}
`
	r := Reflect(src, ShaderTypeCompute)
	assert.Equal(t, "cs_main", r.EntryPoint)
	assert.Equal(t, [3]uint32{8, 4, 1}, r.WorkgroupSize)

	entries := r.BindGroupLayouts[1].Entries
	require.Len(t, entries, 3)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[0].Buffer.Type)
	assert.Equal(t, uint64(16), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, uint64(32), entries[1].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, entries[2].StorageTexture.Access)

	assert.Empty(t, CheckComposition(src, ShaderTypeCompute, true))
}

func TestTypeLayouts(t *testing.T) {
	tests := []struct {
		typeName string
		size     uint64
		align    uint64
	}{
		{"f32", 4, 4},
		{"vec2<f32>", 8, 8},
		{"vec3f", 12, 16},
		{"vec4<u32>", 16, 16},
		{"vec3h", 6, 8},
		{"mat4x4<f32>", 64, 16},
		{"mat3x2f", 24, 8},
		{"mat2x3<f32>", 32, 16},
		{"array<vec3<f32>, 4>", 64, 16},
		{"array<f32>", 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			l, ok := resolveTypeLayout(tt.typeName, nil)
			require.True(t, ok)
			assert.Equal(t, tt.size, l.size)
			assert.Equal(t, tt.align, l.align)
		})
	}

	_, ok := resolveTypeLayout("Unknown", nil)
	assert.False(t, ok)
}

func TestCheckCompositionClean(t *testing.T) {
	assert.Empty(t, CheckComposition(filteringSource, ShaderTypeFragment, true))
	assert.NoError(t, ViolationsError(nil))
}

func TestCheckCompositionViolations(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		kind    ViolationKind
		line    int
		subject string
	}{
		{
			name:    "duplicate include",
			source:  "#include<a>\n#include<a>\n",
			kind:    ViolationDuplicateInclude,
			line:    2,
			subject: "a",
		},
		{
			name:    "include after entry",
			source:  "@fragment\nfn main() -> @location(0) vec4<f32> {\n  return vec4<f32>(1.0);\n}\n#include<late>\n",
			kind:    ViolationIncludeAfterEntry,
			line:    5,
			subject: "late",
		},
		{
			name:    "nested guard",
			source:  "#ifdef A\n#ifdef B\n#endif\n",
			kind:    ViolationNestedConditional,
			line:    2,
			subject: "B",
		},
		{
			name:   "stray endif",
			source: "x\n#endif\n",
			kind:   ViolationUnbalancedConditional,
			line:   2,
		},
		{
			name:   "double else",
			source: "#ifdef A\n#else\n#else\n#endif\n",
			kind:   ViolationUnbalancedConditional,
			line:   3,
		},
		{
			name:    "unclosed guard",
			source:  "#ifdef A\nx\n",
			kind:    ViolationUnbalancedConditional,
			line:    1,
			subject: "A",
		},
		{
			name:   "malformed directive",
			source: "#include helperFunctions\n",
			kind:   ViolationMalformedDirective,
			line:   1,
		},
		{
			name:    "unused input",
			source:  "@group(0) @binding(0) var unusedTex: texture_2d<f32>;\n@fragment\nfn main() -> @location(0) vec4<f32> {\n  return vec4<f32>(1.0);\n}\n",
			kind:    ViolationUnusedInput,
			line:    1,
			subject: "unusedTex",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := CheckComposition(tt.source, ShaderTypeFragment, false)
			require.Len(t, vs, 1, "%v", vs)
			assert.Equal(t, tt.kind, vs[0].Kind)
			assert.Equal(t, tt.line, vs[0].Line)
			assert.Equal(t, tt.subject, vs[0].Subject)
			assert.Error(t, ViolationsError(vs))
		})
	}
}

func TestCheckCompositionMissingEntry(t *testing.T) {
	fragment := "fn helper(x: f32) -> f32 { return x; }\n"
	assert.Empty(t, CheckComposition(fragment, ShaderTypeFragment, false))

	vs := CheckComposition(fragment, ShaderTypeFragment, true)
	require.Len(t, vs, 1)
	assert.Equal(t, ViolationMissingEntry, vs[0].Kind)
}

func TestStripCommentsKeepsLines(t *testing.T) {
	src := "a // one\n/* two\nthree */ b\n/* outer /* inner */ still */ c"
	got := stripComments(src)
	assert.Equal(t, "a \n\n b\n c", got)
}

func TestDetectShaderType(t *testing.T) {
	st, ok := DetectShaderType(filteringSource)
	require.True(t, ok)
	assert.Equal(t, ShaderTypeFragment, st)

	st, ok = DetectShaderType("@compute @workgroup_size(1)\nfn cs() {}")
	require.True(t, ok)
	assert.Equal(t, ShaderTypeCompute, st)

	_, ok = DetectShaderType("// @vertex fn commented() {}\nfn helper() {}")
	assert.False(t, ok)
}

func TestReflectBranchesShareBinding(t *testing.T) {
	src := `#ifdef HALF
@group(0) @binding(0) var<uniform> scale: vec2<f32>;
#else
@group(0) @binding(0) var<uniform> scale: vec4<f32>;
#endif
@group(0) @binding(1) var<uniform> offset: f32;

@fragment
fn main() -> @location(0) vec4<f32> {
    return vec4<f32>(scale.x + offset);
}
`
	r := Reflect(src, ShaderTypeFragment)
	assert.Len(t, r.Bindings, 3)

	entries := r.BindGroupLayouts[0].Entries
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(0), entries[0].Binding)
	assert.Equal(t, uint64(8), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, uint32(1), entries[1].Binding)
}

func TestDetectShaderTypes(t *testing.T) {
	src := "@fragment\nfn fs() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }\n" +
		"@vertex\nfn vs() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }\n"
	assert.Equal(t, []ShaderType{ShaderTypeVertex, ShaderTypeFragment}, DetectShaderTypes(src))
	assert.Nil(t, DetectShaderTypes("fn helper() {}"))

	r := Reflect(src, ShaderTypeVertex)
	assert.Equal(t, "vs", r.EntryPoint)
}
