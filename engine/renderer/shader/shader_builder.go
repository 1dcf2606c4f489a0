package shader

// UnitBuilderOption is a functional option applied to a unit during construction via NewUnit.
// Section options (WithInclude, WithSource, WithFeature, WithFeatureElse) append to the
// template in the order they are passed.
type UnitBuilderOption func(*unit)

// WithShaderType sets the pipeline stage of the unit. Defaults to ShaderTypeFragment.
//
// Parameters:
//   - shaderType: the stage the unit targets
//
// Returns:
//   - UnitBuilderOption: a function that applies the stage option to a unit
func WithShaderType(shaderType ShaderType) UnitBuilderOption {
	return func(u *unit) {
		u.shaderType = shaderType
	}
}

// WithInclude appends an #include<name> marker line.
//
// Parameters:
//   - name: the fragment name the marker references
//
// Returns:
//   - UnitBuilderOption: a function that appends the include section to a unit
func WithInclude(name string) UnitBuilderOption {
	return func(u *unit) {
		u.sections = append(u.sections, section{kind: sectionInclude, text: name})
	}
}

// WithSource appends verbatim source text, typically declarations or the entry computation.
//
// Parameters:
//   - text: the source text
//
// Returns:
//   - UnitBuilderOption: a function that appends the source section to a unit
func WithSource(text string) UnitBuilderOption {
	return func(u *unit) {
		u.sections = append(u.sections, section{kind: sectionSource, text: text})
	}
}

// WithFeature appends a block kept by the compiler only when symbol is defined.
// The text is wrapped in #ifdef symbol / #endif.
//
// Parameters:
//   - symbol: the feature symbol guarding the block
//   - text: the guarded source text
//
// Returns:
//   - UnitBuilderOption: a function that appends the conditional section to a unit
func WithFeature(symbol, text string) UnitBuilderOption {
	return func(u *unit) {
		u.sections = append(u.sections, section{kind: sectionFeature, symbol: symbol, text: text})
	}
}

// WithFeatureElse appends a two-branch block: then is kept when symbol is defined,
// otherwise is kept when it is not.
//
// Parameters:
//   - symbol: the feature symbol guarding the block
//   - then: the source used when symbol is defined
//   - otherwise: the source used when symbol is not defined
//
// Returns:
//   - UnitBuilderOption: a function that appends the conditional section to a unit
func WithFeatureElse(symbol, then, otherwise string) UnitBuilderOption {
	return func(u *unit) {
		u.sections = append(u.sections, section{kind: sectionFeature, symbol: symbol, text: then, alt: &otherwise})
	}
}

// WithRawSource replaces section assembly with a prebuilt template used byte for byte.
//
// Parameters:
//   - source: the complete source template
//
// Returns:
//   - UnitBuilderOption: a function that applies the raw template to a unit
func WithRawSource(source string) UnitBuilderOption {
	return func(u *unit) {
		u.raw = &source
	}
}
