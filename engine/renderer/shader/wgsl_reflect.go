package shader

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Binding is one @group/@binding resource declaration found in a shader source.
type Binding struct {
	Group        int
	Binding      int
	Name         string
	AddressSpace string
	Type         string

	// Line is the 1-based line of the declaration in the reflected source.
	Line int
}

// Reflection is the interface a shader source exposes to the pipeline: its entry point,
// declared resources and, for compute shaders, its workgroup size.
type Reflection struct {
	ShaderType ShaderType

	// EntryPoint is the name of the stage's entry function, empty if none was found.
	EntryPoint string

	// EntryBody is the comment-free text between the entry function's braces.
	EntryBody string

	// EntryLine is the 1-based line of the entry function's stage attribute, 0 if absent.
	EntryLine int

	// Bindings lists resource declarations in source order.
	Bindings []Binding

	// BindGroupLayouts holds one layout descriptor per group index, entries sorted by binding.
	BindGroupLayouts map[int]wgpu.BindGroupLayoutDescriptor

	// WorkgroupSize is [x, y, z] for compute shaders and zero otherwise.
	WorkgroupSize [3]uint32
}

var (
	// entryRegexes match a stage attribute followed by its function and capture the name.
	entryRegexes = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderTypeCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name and type
	// from declarations like: @group(0) @binding(4) var<uniform> uniforms: Uniforms;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// wgslSampledTextures maps sampled and depth texture base names to view dimension and
// multisampling.
var wgslSampledTextures = map[string]struct {
	dim          wgpu.TextureViewDimension
	multisampled bool
}{
	"texture_1d":                    {wgpu.TextureViewDimension1D, false},
	"texture_2d":                    {wgpu.TextureViewDimension2D, false},
	"texture_2d_array":              {wgpu.TextureViewDimension2DArray, false},
	"texture_3d":                    {wgpu.TextureViewDimension3D, false},
	"texture_cube":                  {wgpu.TextureViewDimensionCube, false},
	"texture_cube_array":            {wgpu.TextureViewDimensionCubeArray, false},
	"texture_multisampled_2d":       {wgpu.TextureViewDimension2D, true},
	"texture_depth_2d":              {wgpu.TextureViewDimension2D, false},
	"texture_depth_2d_array":        {wgpu.TextureViewDimension2DArray, false},
	"texture_depth_cube":            {wgpu.TextureViewDimensionCube, false},
	"texture_depth_cube_array":      {wgpu.TextureViewDimensionCubeArray, false},
	"texture_depth_multisampled_2d": {wgpu.TextureViewDimension2D, true},
}

// wgslSampleTypes maps texture scalar parameters to sample types.
var wgslSampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

// stageVisibility maps a shader type to the visibility flag put on its layout entries.
var stageVisibility = map[ShaderType]wgpu.ShaderStage{
	ShaderTypeVertex:   wgpu.ShaderStageVertex,
	ShaderTypeFragment: wgpu.ShaderStageFragment,
	ShaderTypeCompute:  wgpu.ShaderStageCompute,
}

// Reflect extracts the entry point, resource declarations and workgroup size from source.
// Directive lines are ignored, so every branch of a conditional block contributes its
// declarations. Bindings keeps every declaration, while each layout holds one entry per
// binding, taken from the first declaration of that slot. Line numbers refer to source as given.
//
// Parameters:
//   - source: WGSL source, optionally containing directives
//   - shaderType: the stage whose entry point is looked up
//
// Returns:
//   - Reflection: the reflected interface
func Reflect(source string, shaderType ShaderType) Reflection {
	cleaned := stripComments(blankDirectives(source))
	r := Reflection{
		ShaderType:       shaderType,
		BindGroupLayouts: make(map[int]wgpu.BindGroupLayoutDescriptor),
	}

	if re, ok := entryRegexes[shaderType]; ok {
		if loc := re.FindStringSubmatchIndex(cleaned); loc != nil {
			r.EntryPoint = cleaned[loc[2]:loc[3]]
			r.EntryLine = lineAt(cleaned, loc[0])
			r.EntryBody = bracedBody(cleaned, loc[1])
		}
	}
	if shaderType == ShaderTypeCompute {
		r.WorkgroupSize = parseWorkgroupSize(cleaned)
	}

	structSizes := computeStructSizes(parseStructBlocks(cleaned))
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	for _, m := range bindGroupDeclRegex.FindAllStringSubmatchIndex(cleaned, -1) {
		group, _ := strconv.Atoi(cleaned[m[2]:m[3]])
		binding, _ := strconv.Atoi(cleaned[m[4]:m[5]])
		b := Binding{
			Group:   group,
			Binding: binding,
			Name:    cleaned[m[8]:m[9]],
			Type:    strings.TrimSpace(cleaned[m[10]:m[11]]),
			Line:    lineAt(cleaned, m[0]),
		}
		if m[6] >= 0 {
			b.AddressSpace = strings.TrimSpace(cleaned[m[6]:m[7]])
		}
		r.Bindings = append(r.Bindings, b)

		// #ifdef/#else branches may declare the same slot; the first declaration describes it
		if slices.ContainsFunc(groups[group], func(e wgpu.BindGroupLayoutEntry) bool { return int(e.Binding) == binding }) {
			continue
		}
		entry := classifyBinding(b, stageVisibility[shaderType])
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if l, ok := resolveTypeLayout(b.Type, structSizes); ok {
				entry.Buffer.MinBindingSize = l.size
			}
		}
		groups[group] = append(groups[group], entry)
	}
	for g, entries := range groups {
		slices.SortFunc(entries, func(a, b wgpu.BindGroupLayoutEntry) int {
			return int(a.Binding) - int(b.Binding)
		})
		r.BindGroupLayouts[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return r
}

// DetectShaderType returns the stage of the first entry function in source. Fragment
// entry points are checked first, then vertex, then compute.
//
// Parameters:
//   - source: WGSL source, optionally containing directives
//
// Returns:
//   - ShaderType: the detected stage
//   - bool: false if source has no entry function
func DetectShaderType(source string) (ShaderType, bool) {
	cleaned := stripComments(blankDirectives(source))
	for _, st := range []ShaderType{ShaderTypeFragment, ShaderTypeVertex, ShaderTypeCompute} {
		if entryRegexes[st].MatchString(cleaned) {
			return st, true
		}
	}
	return ShaderTypeFragment, false
}

// DetectShaderTypes returns every stage that has an entry function in source, in vertex,
// fragment, compute order. A module pairing @vertex and @fragment entries reports both.
//
// Parameters:
//   - source: WGSL source, optionally containing directives
//
// Returns:
//   - []ShaderType: the stages found, nil if source has no entry function
func DetectShaderTypes(source string) []ShaderType {
	cleaned := stripComments(blankDirectives(source))
	var stages []ShaderType
	for _, st := range []ShaderType{ShaderTypeVertex, ShaderTypeFragment, ShaderTypeCompute} {
		if entryRegexes[st].MatchString(cleaned) {
			stages = append(stages, st)
		}
	}
	return stages
}

// VarName returns the variable declared at group/binding, or an empty string.
//
// Parameters:
//   - group: the bind group index
//   - binding: the binding index within the group
//
// Returns:
//   - string: the declared variable name, or empty if nothing is bound there
func (r Reflection) VarName(group, binding int) string {
	for _, b := range r.Bindings {
		if b.Group == group && b.Binding == binding {
			return b.Name
		}
	}
	return ""
}

// Lookup returns the binding declared under name.
//
// Parameters:
//   - name: the declared variable name
//
// Returns:
//   - Binding: the declaration
//   - bool: false if no declaration uses name
func (r Reflection) Lookup(name string) (Binding, bool) {
	for _, b := range r.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// classifyBinding builds the wgpu layout entry for a declaration from its address space
// (buffers) or its type (samplers, sampled, depth and storage textures).
func classifyBinding(b Binding, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    uint32(b.Binding),
		Visibility: visibility,
	}

	switch {
	case b.AddressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case strings.HasPrefix(b.AddressSpace, "storage"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(b.AddressSpace, "read_write") {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	case b.Type == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case b.Type == "sampler_comparison":
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(b.Type, "texture_storage_"):
		// Storage texture formats are resolved by the pipeline owner; only the access is
		// known statically.
		_, params := splitTypeParams(b.Type)
		entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
		if strings.HasSuffix(params, "read_write") {
			entry.StorageTexture.Access = wgpu.StorageTextureAccessReadWrite
		} else if strings.HasSuffix(params, "read") {
			entry.StorageTexture.Access = wgpu.StorageTextureAccessReadOnly
		}
	case strings.HasPrefix(b.Type, "texture_"):
		base, param := splitTypeParams(b.Type)
		if info, ok := wgslSampledTextures[base]; ok {
			entry.Texture.ViewDimension = info.dim
			entry.Texture.Multisampled = info.multisampled
		}
		if strings.HasPrefix(base, "texture_depth_") {
			entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		} else if st, ok := wgslSampleTypes[param]; ok {
			entry.Texture.SampleType = st
		}
	}
	return entry
}

// parseWorkgroupSize returns the @workgroup_size dimensions, defaulting omitted ones to 1.
func parseWorkgroupSize(source string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupSizeRegex.FindStringSubmatch(source)
	if m == nil {
		return size
	}
	for i := 0; i < 3; i++ {
		if v, err := strconv.ParseUint(m[i+1], 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}

// splitTypeParams splits "texture_2d<f32>" into ("texture_2d", "f32").
func splitTypeParams(typeName string) (string, string) {
	base, params, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return base, strings.TrimSpace(strings.TrimSuffix(params, ">"))
}

// bracedBody returns the text inside the first balanced {...} block starting at or after
// from, or an empty string if there is none.
func bracedBody(source string, from int) string {
	open := strings.IndexByte(source[from:], '{')
	if open < 0 {
		return ""
	}
	start := from + open + 1
	depth := 1
	for i := start; i < len(source); i++ {
		switch source[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return source[start:i]
			}
		}
	}
	return source[start:]
}

// lineAt returns the 1-based line number of byte offset idx.
func lineAt(source string, idx int) int {
	return strings.Count(source[:idx], "\n") + 1
}

// stripComments removes line (//) and nested block (/* */) comments. Newlines inside block
// comments are kept so offsets still map to the original line numbers.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		c := source[i]
		if i+1 < len(source) {
			next := source[i+1]
			switch {
			case c == '/' && next == '*':
				depth++
				i++
				continue
			case c == '*' && next == '/' && depth > 0:
				depth--
				i++
				continue
			case c == '/' && next == '/' && depth == 0:
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 || c == '\n' {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
