package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// wgslTypeLayout holds the byte size and alignment of a WGSL type.
// Used to compute MinBindingSize for buffer bindings.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField is a single member of a WGSL struct.
type parsedField struct {
	name      string
	typeName  string
	isBuiltin bool
}

// parsedStruct is a WGSL struct block extracted from source.
type parsedStruct struct {
	name   string
	fields []parsedField
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// fieldRegex matches a struct member: optional attributes, name, colon, type.
	fieldRegex = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)
)

// wgslPrimitiveLayouts maps scalar, vector, matrix and atomic type names to their size and
// alignment per https://www.w3.org/TR/WGSL/#alignment-and-size.
var wgslPrimitiveLayouts = buildPrimitiveLayouts()

// buildPrimitiveLayouts derives every vector and matrix layout from its scalar width, under
// both the long (vec3<f32>) and the shorthand (vec3f) spelling.
func buildPrimitiveLayouts() map[string]wgslTypeLayout {
	layouts := map[string]wgslTypeLayout{
		"bool":        {4, 4},
		"atomic<u32>": {4, 4},
		"atomic<i32>": {4, 4},
	}
	scalars := []struct {
		name   string
		suffix string
		size   uint64
	}{
		{"f32", "f", 4},
		{"i32", "i", 4},
		{"u32", "u", 4},
		{"f16", "h", 2},
	}
	for _, s := range scalars {
		layouts[s.name] = wgslTypeLayout{s.size, s.size}
		for n := uint64(2); n <= 4; n++ {
			l := vectorLayout(n, s.size)
			layouts[fmt.Sprintf("vec%d<%s>", n, s.name)] = l
			layouts[fmt.Sprintf("vec%d%s", n, s.suffix)] = l
		}
	}
	for cols := uint64(2); cols <= 4; cols++ {
		for rows := uint64(2); rows <= 4; rows++ {
			col := vectorLayout(rows, 4)
			l := wgslTypeLayout{cols * roundUpAlign(col.align, col.size), col.align}
			layouts[fmt.Sprintf("mat%dx%d<f32>", cols, rows)] = l
			layouts[fmt.Sprintf("mat%dx%df", cols, rows)] = l
		}
	}
	return layouts
}

// vectorLayout returns the layout of an n-component vector of scalars of the given width.
// vec3 aligns like vec4.
func vectorLayout(n, scalar uint64) wgslTypeLayout {
	align := scalar * 4
	if n == 2 {
		align = scalar * 2
	}
	return wgslTypeLayout{n * scalar, align}
}

// roundUpAlign rounds value up to the next multiple of alignment, a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout resolves a WGSL type name to its layout using primitives, already
// computed structs, and array<T, N> / array<T>. Runtime-sized arrays resolve to one element
// stride, the minimum useful binding size.
//
// Parameters:
//   - typeName: the WGSL type name, e.g. "f32", "Uniforms", "array<Light, 4>"
//   - knownTypes: layouts of structs resolved so far
//
// Returns:
//   - wgslTypeLayout: the resolved layout
//   - bool: false for unknown types
func resolveTypeLayout(typeName string, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if l, ok := wgslPrimitiveLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := knownTypes[typeName]; ok {
		return l, true
	}

	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return wgslTypeLayout{}, false
	}
	elemType, count, sized := strings.Cut(strings.TrimSuffix(inner, ">"), ",")
	elem, ok := resolveTypeLayout(strings.TrimSpace(elemType), knownTypes)
	if !ok {
		return wgslTypeLayout{}, false
	}
	stride := roundUpAlign(elem.align, elem.size)
	if !sized {
		return wgslTypeLayout{stride, elem.align}, true
	}
	n, err := strconv.ParseUint(strings.TrimSpace(count), 10, 64)
	if err != nil {
		return wgslTypeLayout{}, false
	}
	return wgslTypeLayout{n * stride, elem.align}, true
}

// computeStructLayout lays out a struct member by member and rounds the size up to the
// largest member alignment. A trailing runtime-sized array contributes its element stride
// when it is the only member, and nothing otherwise. @builtin members are skipped.
func computeStructLayout(ps parsedStruct, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	offset := uint64(0)
	maxAlign := uint64(1)

	for i, field := range ps.fields {
		if field.isBuiltin {
			continue
		}
		fl, ok := resolveTypeLayout(field.typeName, knownTypes)
		if !ok {
			return wgslTypeLayout{}, false
		}
		runtimeArray := strings.HasPrefix(field.typeName, "array<") && !strings.Contains(field.typeName, ",")
		if runtimeArray && i == len(ps.fields)-1 && offset > 0 {
			offset = roundUpAlign(maxAlign, offset)
			return wgslTypeLayout{offset, max(maxAlign, fl.align)}, true
		}
		offset = roundUpAlign(fl.align, offset) + fl.size
		maxAlign = max(maxAlign, fl.align)
	}

	return wgslTypeLayout{roundUpAlign(maxAlign, offset), maxAlign}, true
}

// computeStructSizes resolves all struct layouts, iterating until no more progress is made
// so structs may reference structs declared later in the source.
func computeStructSizes(structs []parsedStruct) map[string]wgslTypeLayout {
	resolved := make(map[string]wgslTypeLayout, len(structs))
	remaining := append([]parsedStruct(nil), structs...)

	for len(remaining) > 0 {
		next := remaining[:0]
		for _, ps := range remaining {
			if l, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = l
			} else {
				next = append(next, ps)
			}
		}
		if len(next) == len(remaining) {
			break
		}
		remaining = next
	}
	return resolved
}

// parseStructBlocks finds all struct blocks in comment-free source.
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		structs = append(structs, parsedStruct{name: m[1], fields: parseStructFields(m[2])})
	}
	return structs
}

// parseStructFields splits a struct body at top-level commas and parses each member.
func parseStructFields(body string) []parsedField {
	parts := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		m := fieldRegex.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		fields = append(fields, parsedField{
			name:      m[1],
			typeName:  strings.TrimSpace(m[2]),
			isBuiltin: strings.Contains(part, "@builtin("),
		})
	}
	return fields
}

// splitAtTopLevelCommas splits s at commas not nested inside angle brackets, so
// array<Light, 4> stays one piece.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
