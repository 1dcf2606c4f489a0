// Package shaders is the built-in shader library: the include fragments shared by the engine's
// image based lighting shaders and the units composed from them. Nothing is registered at
// import time; the host publishes the library through RegisterAll.
package shaders

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader_store"
)

// Include fragment names, as referenced by #include<name> markers.
const (
	HelperFunctionsName       = "helperFunctions"
	ImportanceSamplingName    = "importanceSampling"
	PBRBRDFFunctionsName      = "pbrBRDFFunctions"
	HDRFilteringFunctionsName = "hdrFilteringFunctions"
)

// HDRIrradianceFilteringName is the registry key of the irradiance filtering pixel shader.
const HDRIrradianceFilteringName = "hdrIrradianceFilteringPixelShader"

// FeatureCDFFiltering switches irradiance filtering from uniform hammersley points to
// importance sampling through an inverse CDF texture.
const FeatureCDFFiltering = "IBL_CDF_FILTERING"

//go:embed assets/helper_functions.wgsl
var helperFunctionsSource string

//go:embed assets/importance_sampling.wgsl
var importanceSamplingSource string

//go:embed assets/pbr_brdf_functions.wgsl
var pbrBRDFFunctionsSource string

//go:embed assets/hdr_filtering_functions.wgsl
var hdrFilteringFunctionsSource string

//go:embed assets/hdr_irradiance_filtering.wgsl
var hdrIrradianceFilteringSource string

var (
	// HelperFunctions holds math constants and scalar helpers.
	HelperFunctions = shader.NewUnit(HelperFunctionsName, shader.WithRawSource(helperFunctionsSource))

	// ImportanceSampling holds low discrepancy sequences and hemisphere sampling.
	ImportanceSampling = shader.NewUnit(ImportanceSamplingName, shader.WithRawSource(importanceSamplingSource))

	// PBRBRDFFunctions holds the BRDF terms used by physically based materials.
	PBRBRDFFunctions = shader.NewUnit(PBRBRDFFunctionsName, shader.WithRawSource(pbrBRDFFunctionsSource))

	// HDRFilteringFunctions holds the tangent frame and sample level helpers of cube map filtering.
	HDRFilteringFunctions = shader.NewUnit(HDRFilteringFunctionsName, shader.WithRawSource(hdrFilteringFunctionsSource))
)

// HDRIrradianceFiltering convolves an HDR environment cube map into diffuse irradiance.
// With FeatureCDFFiltering defined, sample directions are drawn through the icdf texture.
var HDRIrradianceFiltering = shader.NewUnit(HDRIrradianceFilteringName,
	shader.WithShaderType(shader.ShaderTypeFragment),
	shader.WithInclude(HelperFunctionsName),
	shader.WithInclude(ImportanceSamplingName),
	shader.WithInclude(PBRBRDFFunctionsName),
	shader.WithInclude(HDRFilteringFunctionsName),
	shader.WithSource("@group(0) @binding(0) var inputSampler: sampler;\n"+
		"@group(0) @binding(1) var inputTexture: texture_cube<f32>;"),
	shader.WithFeature(FeatureCDFFiltering,
		"@group(0) @binding(2) var icdfSampler: sampler;\n"+
			"@group(0) @binding(3) var icdfTexture: texture_2d<f32>;"),
	shader.WithSource(hdrIrradianceFilteringSource),
)

// Units returns every complete shader in the library.
//
// Returns:
//   - []shader.Unit: the shader units, in registration order
func Units() []shader.Unit {
	return []shader.Unit{HDRIrradianceFiltering}
}

// Includes returns every include fragment in the library.
//
// Returns:
//   - []shader.Unit: the fragment units, in registration order
func Includes() []shader.Unit {
	return []shader.Unit{HelperFunctions, ImportanceSampling, PBRBRDFFunctions, HDRFilteringFunctions}
}

// RegisterAll publishes the library: every fragment into includes, then every unit into shaders.
// Calling it again is harmless since each unit registers at most once per store.
//
// Parameters:
//   - shaders: the store receiving complete shaders
//   - includes: the store receiving include fragments
//
// Returns:
//   - []shader.Descriptor: one descriptor per fragment and unit, in registration order
func RegisterAll(shaders, includes shader_store.ShaderStore) []shader.Descriptor {
	descriptors := make([]shader.Descriptor, 0, len(Includes())+len(Units()))
	for _, u := range Includes() {
		descriptors = append(descriptors, u.Register(includes))
	}
	for _, u := range Units() {
		descriptors = append(descriptors, u.Register(shaders))
	}
	return descriptors
}
