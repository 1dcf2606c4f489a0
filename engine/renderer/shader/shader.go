package shader

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader_store"
	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a shader unit targets.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// String returns the lowercase stage name.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// ErrUnknownShaderType is returned by ParseShaderType for an unrecognized stage name.
var ErrUnknownShaderType = errors.New("unknown shader type")

// ParseShaderType parses a stage name as returned by ShaderType.String.
//
// Parameters:
//   - name: "vertex", "fragment" or "compute", case-insensitive
//
// Returns:
//   - ShaderType: the parsed stage
//   - error: wraps ErrUnknownShaderType for any other name
func ParseShaderType(name string) (ShaderType, error) {
	for _, st := range []ShaderType{ShaderTypeVertex, ShaderTypeFragment, ShaderTypeCompute} {
		if strings.EqualFold(name, st.String()) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownShaderType, name)
}

// Descriptor is the externally consumable handle a Unit returns when it registers.
// It is built from the unit's own source, independent of whatever the store holds.
type Descriptor struct {
	Name   string
	Shader string
}

// sectionKind identifies how a section contributes to the assembled source.
type sectionKind int

const (
	sectionInclude sectionKind = iota
	sectionSource
	sectionFeature
)

// section is one piece of a unit's source template, assembled in declaration order.
type section struct {
	kind   sectionKind
	text   string
	symbol string
	alt    *string
}

// unit is the implementation of the Unit interface.
type unit struct {
	name       string
	shaderType ShaderType
	sections   []section
	raw        *string

	source   string
	includes []string
	features []string
}

// Unit describes exactly one shader: a constant name, a constant source template assembled
// from include markers, conditional blocks, declarations and an entry computation, and the
// publish-once operation that puts the source into a ShaderStore.
type Unit interface {
	// Name retrieves the unique shader name used as the store key.
	//
	// Returns:
	//   - string: the shader name
	Name() string

	// Source retrieves the assembled source text. Include markers and conditional guards
	// are left untouched; they are resolved downstream.
	//
	// Returns:
	//   - string: the assembled source
	Source() string

	// ShaderType returns the pipeline stage the unit targets.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// Includes returns the fragment names of every include marker in the source, in order.
	// Markers written inside WithSource or WithRawSource text are reported like include
	// sections; a repeated marker is reported each time.
	//
	// Returns:
	//   - []string: the referenced fragment names
	Includes() []string

	// Features returns the distinct symbols of every #ifdef and #ifndef guard in the source,
	// in order of first appearance. A symbol guarding several blocks is reported once.
	//
	// Returns:
	//   - []string: the guard symbols
	Features() []string

	// Descriptor returns the {name, shader} value for this unit.
	//
	// Returns:
	//   - Descriptor: the unit's descriptor
	Descriptor() Descriptor

	// Register publishes the unit's source into store if the name is not registered yet.
	// A name already present is left untouched, even when its text differs. No error is
	// ever raised; malformed source surfaces later at compile time.
	//
	// Parameters:
	//   - store: the store to publish into
	//
	// Returns:
	//   - Descriptor: the unit's descriptor, regardless of whether this call inserted
	Register(store shader_store.ShaderStore) Descriptor

	// Module returns a wgpu shader module descriptor labelled with the unit name and carrying
	// the unexpanded source.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the module descriptor
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Unit = &unit{}

// NewUnit creates a Unit named name and assembles its source from the provided options in
// the order they are given. Panics if name is empty.
//
// Parameters:
//   - name: the unique shader name
//   - options: functional options contributing sections, stage, or a raw template
//
// Returns:
//   - Unit: the assembled unit
func NewUnit(name string, options ...UnitBuilderOption) Unit {
	if name == "" {
		panic("shader: unit must have a non-empty name")
	}
	u := &unit{
		name:       name,
		shaderType: ShaderTypeFragment,
	}
	for _, opt := range options {
		opt(u)
	}
	u.assemble()
	return u
}

func (u *unit) Name() string {
	return u.name
}

func (u *unit) Source() string {
	return u.source
}

func (u *unit) ShaderType() ShaderType {
	return u.shaderType
}

func (u *unit) Includes() []string {
	return append([]string(nil), u.includes...)
}

func (u *unit) Features() []string {
	return append([]string(nil), u.features...)
}

func (u *unit) Descriptor() Descriptor {
	return Descriptor{Name: u.name, Shader: u.source}
}

func (u *unit) Register(store shader_store.ShaderStore) Descriptor {
	if !store.Has(u.name) {
		store.Register(u.name, u.source)
	}
	return u.Descriptor()
}

func (u *unit) Module() *wgpu.ShaderModuleDescriptor {
	return &wgpu.ShaderModuleDescriptor{
		Label: u.name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: u.source,
		},
	}
}

// assemble concatenates the unit's sections into its final source. A raw template wins over
// sections and is used verbatim. Includes and features are scanned from the final source
// either way, so directives written inside WithSource text count too.
func (u *unit) assemble() {
	if u.raw != nil {
		u.source = *u.raw
	} else {
		u.source = u.concatenate()
	}

	directives, _ := ScanDirectives(u.source)
	for _, d := range directives {
		switch d.Type {
		case DirectiveInclude:
			u.includes = append(u.includes, d.Arg)
		case DirectiveIfdef, DirectiveIfndef:
			if !slices.Contains(u.features, d.Arg) {
				u.features = append(u.features, d.Arg)
			}
		}
	}
}

// concatenate renders the sections in declaration order.
func (u *unit) concatenate() string {
	var sb strings.Builder
	for _, s := range u.sections {
		switch s.kind {
		case sectionInclude:
			writeLine(&sb, IncludeMarker(s.text))
		case sectionSource:
			writeLine(&sb, s.text)
		case sectionFeature:
			writeLine(&sb, GuardOpen(s.symbol))
			writeLine(&sb, s.text)
			if s.alt != nil {
				writeLine(&sb, GuardElse)
				writeLine(&sb, *s.alt)
			}
			writeLine(&sb, GuardClose)
		}
	}
	return sb.String()
}

// writeLine appends text and terminates it with a newline unless it already ends in one.
// Empty text contributes nothing.
func writeLine(sb *strings.Builder, text string) {
	if text == "" {
		return
	}
	sb.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		sb.WriteByte('\n')
	}
}
