// Package manifest loads variant manifests: HCL files listing which shader variants an offline
// build compiles, and for which target.
//
//	output_dir = "build/shaders"
//
//	variant "irradiance_cdf" {
//	  shader  = "hdrIrradianceFilteringPixelShader"
//	  defines = ["IBL_CDF_FILTERING"]
//	  target  = spirv
//	}
//
// The target names spirv, glsl and msl are predeclared variables, so they may be written bare
// or quoted. A variant without a target uses default_target, which itself defaults to spirv.
// The optional stage attribute pins the pipeline stage a variant fills when linked.
package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-shader/common"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/compiler"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrMissingShader is returned for a variant whose shader attribute is empty.
	ErrMissingShader = errors.New("variant has no shader")

	// ErrDuplicateVariant is returned when two variants share a label.
	ErrDuplicateVariant = errors.New("duplicate variant label")
)

// Variant is one shader compiled with one define set for one target.
type Variant struct {
	Label   string
	Shader  string
	Defines []string
	Target  compiler.Target

	// Stage names the pipeline stage the variant fills when it is linked: "vertex",
	// "fragment" or "compute". Empty lets the variant fill every stage it has an entry for.
	Stage string
}

// Manifest is a decoded variant manifest.
type Manifest struct {
	// OutputDir is where compiled variants are written, relative to the working directory.
	OutputDir string

	// Variants lists the variants in file order.
	Variants []Variant
}

// OutputPath returns the file a compiled variant is written to.
//
// Parameters:
//   - v: the variant
//
// Returns:
//   - string: OutputDir joined with the label and the target's extension
func (m *Manifest) OutputPath(v Variant) string {
	return filepath.Join(m.OutputDir, v.Label+v.Target.Extension())
}

// hclManifestFile is the top-level structure of a manifest file for decoding.
type hclManifestFile struct {
	OutputDir     string        `hcl:"output_dir,optional"`
	DefaultTarget string        `hcl:"default_target,optional"`
	Variants      []*hclVariant `hcl:"variant,block"`
}

type hclVariant struct {
	Label   string   `hcl:"label,label"`
	Shader  string   `hcl:"shader"`
	Defines []string `hcl:"defines,optional"`
	Target  string   `hcl:"target,optional"`
	Stage   string   `hcl:"stage,optional"`
}

// Load reads and decodes the manifest at path.
//
// Parameters:
//   - path: the manifest file
//
// Returns:
//   - *Manifest: the decoded manifest
//   - error: HCL diagnostics, or a wrapped ErrMissingShader, ErrDuplicateVariant or
//     compiler.ErrUnknownTarget
func Load(path string) (*Manifest, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("manifest: failed to parse %s: %w", path, diags)
	}
	return decode(file, path)
}

// Parse decodes a manifest held in memory. filename is only used in diagnostics.
//
// Parameters:
//   - src: the manifest text
//   - filename: the name reported in errors
//
// Returns:
//   - *Manifest: the decoded manifest
//   - error: as for Load
func Parse(src []byte, filename string) (*Manifest, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("manifest: failed to parse %s: %w", filename, diags)
	}
	return decode(file, filename)
}

func decode(file *hcl.File, filename string) (*Manifest, error) {
	var parsed hclManifestFile
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("manifest: failed to decode %s: %w", filename, diags)
	}

	defaultTarget, err := compiler.ParseTarget(common.Coalesce(parsed.DefaultTarget, compiler.TargetSPIRV.String()))
	if err != nil {
		return nil, fmt.Errorf("manifest: %s: default_target: %w", filename, err)
	}

	m := &Manifest{
		OutputDir: common.Coalesce(parsed.OutputDir, "."),
		Variants:  make([]Variant, 0, len(parsed.Variants)),
	}
	seen := make(map[string]bool, len(parsed.Variants))
	for _, pv := range parsed.Variants {
		if seen[pv.Label] {
			return nil, fmt.Errorf("manifest: %s: %w %q", filename, ErrDuplicateVariant, pv.Label)
		}
		seen[pv.Label] = true

		if pv.Shader == "" {
			return nil, fmt.Errorf("manifest: %s: variant %q: %w", filename, pv.Label, ErrMissingShader)
		}

		target := defaultTarget
		if pv.Target != "" {
			if target, err = compiler.ParseTarget(pv.Target); err != nil {
				return nil, fmt.Errorf("manifest: %s: variant %q: %w", filename, pv.Label, err)
			}
		}

		if pv.Stage != "" {
			if _, err := shader.ParseShaderType(pv.Stage); err != nil {
				return nil, fmt.Errorf("manifest: %s: variant %q: %w", filename, pv.Label, err)
			}
		}

		m.Variants = append(m.Variants, Variant{
			Label:   pv.Label,
			Shader:  pv.Shader,
			Defines: common.SortedUnique(pv.Defines),
			Target:  target,
			Stage:   strings.ToLower(pv.Stage),
		})
	}
	return m, nil
}

// evalContext declares one string variable per compile target.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(compiler.Targets()))
	for _, t := range compiler.Targets() {
		vars[t.String()] = cty.StringVal(t.String())
	}
	return &hcl.EvalContext{Variables: vars}
}
