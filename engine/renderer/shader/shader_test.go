package shader

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader_store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnitPanicsOnEmptyName(t *testing.T) {
	assert.Panics(t, func() { NewUnit("") })
}

func TestUnitAssembly(t *testing.T) {
	u := NewUnit("composed",
		WithInclude("helperFunctions"),
		WithInclude("importanceSampling"),
		WithSource("@group(0) @binding(0) var inputTexture: texture_cube<f32>;"),
		WithFeature("IBL_CDF_FILTERING", "@group(0) @binding(1) var icdfTexture: texture_2d<f32>;\n"),
		WithFeatureElse("USE_LOD", "let lod = 1.0;", "let lod = 0.0;"),
	)

	want := strings.Join([]string{
		"#include<helperFunctions>",
		"#include<importanceSampling>",
		"@group(0) @binding(0) var inputTexture: texture_cube<f32>;",
		"#ifdef IBL_CDF_FILTERING",
		"@group(0) @binding(1) var icdfTexture: texture_2d<f32>;",
		"#endif",
		"#ifdef USE_LOD",
		"let lod = 1.0;",
		"#else",
		"let lod = 0.0;",
		"#endif",
		"",
	}, "\n")
	assert.Equal(t, want, u.Source())
	assert.Equal(t, []string{"helperFunctions", "importanceSampling"}, u.Includes())
	assert.Equal(t, []string{"IBL_CDF_FILTERING", "USE_LOD"}, u.Features())
	assert.Equal(t, ShaderTypeFragment, u.ShaderType())
}

func TestUnitRawSource(t *testing.T) {
	src := "#include<a>\n#ifdef F\nB\n#endif\nC"
	u := NewUnit("raw", WithRawSource(src), WithShaderType(ShaderTypeCompute))
	assert.Equal(t, src, u.Source())
	assert.Equal(t, []string{"a"}, u.Includes())
	assert.Equal(t, []string{"F"}, u.Features())
	assert.Equal(t, ShaderTypeCompute, u.ShaderType())
}

func TestUnitScansDirectivesInSections(t *testing.T) {
	sectioned := NewUnit("s",
		WithInclude("a"),
		WithSource("#include<b>\n#ifdef F\nx\n#endif"),
		WithFeature("F", "y"),
		WithFeature("G", "z"),
	)
	assert.Equal(t, []string{"a", "b"}, sectioned.Includes())
	assert.Equal(t, []string{"F", "G"}, sectioned.Features(), "a symbol guarding two blocks is listed once")

	raw := NewUnit("r", WithRawSource(sectioned.Source()))
	assert.Equal(t, sectioned.Includes(), raw.Includes())
	assert.Equal(t, sectioned.Features(), raw.Features())
}

func TestParseShaderType(t *testing.T) {
	for _, st := range []ShaderType{ShaderTypeVertex, ShaderTypeFragment, ShaderTypeCompute} {
		got, err := ParseShaderType(strings.ToUpper(st.String()))
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	_, err := ParseShaderType("geometry")
	assert.ErrorIs(t, err, ErrUnknownShaderType)
}

func TestUnitRegister(t *testing.T) {
	const src = "A#ifdef F\nB\n#endif\nC"
	store := shader_store.NewShaderStore()

	u := NewUnit("testShader", WithRawSource(src))
	d := u.Register(store)
	assert.Equal(t, Descriptor{Name: "testShader", Shader: src}, d)

	got, ok := store.Get(d.Name)
	require.True(t, ok)
	assert.Equal(t, d.Shader, got, "descriptor and store agree after first registration")

	dup := NewUnit("testShader", WithRawSource("Z"))
	dd := dup.Register(store)
	assert.Equal(t, "Z", dd.Shader, "descriptor reflects the unit, not the store")

	got, _ = store.Get("testShader")
	assert.Equal(t, src, got)

	_, ok = store.Get("other")
	assert.False(t, ok)
}

func TestUnitRegisterRepeatedly(t *testing.T) {
	store := shader_store.NewShaderStore()
	u := NewUnit("n", WithSource("s"))
	for i := 0; i < 3; i++ {
		u.Register(store)
	}
	assert.Equal(t, 1, store.Len())
}

func TestGuardMarkersPreserved(t *testing.T) {
	u := NewUnit("guarded", WithSource("A"), WithFeature("F", "B"), WithSource("C"))
	store := shader_store.NewShaderStore()
	u.Register(store)

	got, _ := store.Get("guarded")
	assert.Equal(t, 1, strings.Count(got, GuardOpen("F")))
	assert.Equal(t, 1, strings.Count(got, GuardClose))
	assert.Contains(t, got, "B")
}

func TestUnitModule(t *testing.T) {
	u := NewUnit("mod", WithSource("@fragment fn main() {}"))
	m := u.Module()
	require.NotNil(t, m)
	assert.Equal(t, "mod", m.Label)
	require.NotNil(t, m.WGSLDescriptor)
	assert.Equal(t, u.Source(), m.WGSLDescriptor.Code)
}

func TestShaderTypeString(t *testing.T) {
	assert.Equal(t, "vertex", ShaderTypeVertex.String())
	assert.Equal(t, "fragment", ShaderTypeFragment.String())
	assert.Equal(t, "compute", ShaderTypeCompute.String())
}
