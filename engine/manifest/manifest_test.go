package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/compiler"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
output_dir = "build/shaders"

variant "irradiance" {
  shader = "hdrIrradianceFilteringPixelShader"
}

variant "irradiance_cdf" {
  shader  = "hdrIrradianceFilteringPixelShader"
  defines = ["IBL_CDF_FILTERING", "IBL_CDF_FILTERING"]
  target  = msl
}

variant "irradiance_gl" {
  shader = "hdrIrradianceFilteringPixelShader"
  target = "glsl"
}
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shaders.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "build/shaders", m.OutputDir)
	require.Len(t, m.Variants, 3)

	assert.Equal(t, Variant{
		Label:   "irradiance",
		Shader:  "hdrIrradianceFilteringPixelShader",
		Defines: []string{},
		Target:  compiler.TargetSPIRV,
	}, m.Variants[0])
	assert.Equal(t, []string{"IBL_CDF_FILTERING"}, m.Variants[1].Defines)
	assert.Equal(t, compiler.TargetMSL, m.Variants[1].Target)
	assert.Equal(t, compiler.TargetGLSL, m.Variants[2].Target)

	assert.Equal(t, filepath.Join("build/shaders", "irradiance_cdf.metal"), m.OutputPath(m.Variants[1]))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.hcl"))
	assert.Error(t, err)
}

func TestParseDefaults(t *testing.T) {
	m, err := Parse([]byte("default_target = glsl\nvariant \"a\" {\n  shader = \"s\"\n}\n"), "inline.hcl")
	require.NoError(t, err)
	assert.Equal(t, ".", m.OutputDir)
	require.Len(t, m.Variants, 1)
	assert.Equal(t, compiler.TargetGLSL, m.Variants[0].Target)
	assert.Equal(t, "a.glsl", m.OutputPath(m.Variants[0]))
}

func TestParseStage(t *testing.T) {
	m, err := Parse([]byte("variant \"vs\" {\n  shader = \"tri\"\n  stage = \"Vertex\"\n}\nvariant \"any\" {\n  shader = \"tri\"\n}\n"), "stage.hcl")
	require.NoError(t, err)
	require.Len(t, m.Variants, 2)
	assert.Equal(t, "vertex", m.Variants[0].Stage)
	assert.Empty(t, m.Variants[1].Stage)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{
			name:    "unknown target",
			src:     "variant \"a\" {\n  shader = \"s\"\n  target = \"hlsl\"\n}\n",
			wantErr: compiler.ErrUnknownTarget,
		},
		{
			name:    "unknown default target",
			src:     `default_target = "dxil"`,
			wantErr: compiler.ErrUnknownTarget,
		},
		{
			name:    "unknown stage",
			src:     "variant \"a\" {\n  shader = \"s\"\n  stage = \"geometry\"\n}\n",
			wantErr: shader.ErrUnknownShaderType,
		},
		{
			name:    "empty shader",
			src:     `variant "a" { shader = "" }`,
			wantErr: ErrMissingShader,
		},
		{
			name: "duplicate label",
			src: `variant "a" { shader = "s" }` + "\n" +
				`variant "a" { shader = "t" }`,
			wantErr: ErrDuplicateVariant,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "test.hcl")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseDiagnostics(t *testing.T) {
	tests := map[string]string{
		"missing shader attribute": `variant "a" { defines = [] }`,
		"unknown variable":         "variant \"a\" {\n  shader = \"s\"\n  target = hlsl\n}\n",
		"syntax":                   `variant "a" {`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), "test.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "test.hcl")
		})
	}
}
