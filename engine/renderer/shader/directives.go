// directives.go defines the textual directive syntax layered on top of WGSL sources.
// Directives occupy a whole line (leading whitespace allowed) and start with '#':
//
//	#include<helperFunctions>
//	#ifdef IBL_CDF_FILTERING
//	#ifndef IBL_CDF_FILTERING
//	#else
//	#endif
//	#define IBL_CDF_FILTERING
//
// Registration treats directives as opaque payload. They are only interpreted by the
// composition checker and by the pre_processor package, which resolves includes and
// selects conditional branches before the source reaches a compiler.
package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// DirectiveType identifies the kind of directive parsed from a source line.
type DirectiveType string

const (
	// DirectiveInclude stands in for the source of a named fragment.
	DirectiveInclude DirectiveType = "include"

	// DirectiveIfdef opens a block kept only when its symbol is defined.
	DirectiveIfdef DirectiveType = "ifdef"

	// DirectiveIfndef opens a block kept only when its symbol is not defined.
	DirectiveIfndef DirectiveType = "ifndef"

	// DirectiveElse switches to the alternate branch of the open block.
	DirectiveElse DirectiveType = "else"

	// DirectiveEndif closes the open block.
	DirectiveEndif DirectiveType = "endif"

	// DirectiveDefine defines a feature symbol for the rest of the source.
	DirectiveDefine DirectiveType = "define"
)

// GuardElse and GuardClose are the literal tokens emitted for conditional blocks.
const (
	GuardElse  = "#else"
	GuardClose = "#endif"
)

// DirectiveError reports a malformed directive line.
type DirectiveError struct {
	Line int
	Msg  string
}

// Error formats the error as "line N: message".
func (e *DirectiveError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func directiveErrorf(line int, format string, args ...any) error {
	return &DirectiveError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Directive is a single parsed directive line.
type Directive struct {
	// Type identifies which directive was parsed.
	Type DirectiveType

	// Arg is the fragment name for include, the feature symbol for ifdef/ifndef/define,
	// and empty for else/endif.
	Arg string

	// Line is the 1-based line number of the directive in the scanned source.
	Line int
}

var (
	// includeRegex matches #include<name> and captures the fragment name.
	includeRegex = regexp.MustCompile(`^#include\s*<\s*([A-Za-z_][A-Za-z0-9_]*)\s*>$`)

	// symbolRegex matches a valid feature symbol.
	symbolRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// IncludeMarker returns the include directive for the named fragment.
//
// Parameters:
//   - name: the fragment name
//
// Returns:
//   - string: the marker text, e.g. "#include<helperFunctions>"
func IncludeMarker(name string) string {
	return "#include<" + name + ">"
}

// GuardOpen returns the #ifdef token opening a block guarded by symbol.
//
// Parameters:
//   - symbol: the feature symbol
//
// Returns:
//   - string: the guard text, e.g. "#ifdef IBL_CDF_FILTERING"
func GuardOpen(symbol string) string {
	return "#ifdef " + symbol
}

// ParseDirective attempts to parse a single source line as a directive.
// Returns nil with no error for lines that are not directives.
//
// Parameters:
//   - line: the raw source line
//   - lineNum: the 1-based line number used in errors
//
// Returns:
//   - *Directive: the parsed directive, or nil if the line is not a directive
//   - error: a descriptive error if the line starts with '#' but is malformed
func ParseDirective(line string, lineNum int) (*Directive, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "#include") {
		m := includeRegex.FindStringSubmatch(trimmed)
		if m == nil {
			return nil, directiveErrorf(lineNum, "malformed include directive %q", trimmed)
		}
		return &Directive{Type: DirectiveInclude, Arg: m[1], Line: lineNum}, nil
	}

	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return nil, directiveErrorf(lineNum, "empty directive")
	}

	kind := DirectiveType(fields[0])
	switch kind {
	case DirectiveIfdef, DirectiveIfndef, DirectiveDefine:
		if len(fields) != 2 {
			return nil, directiveErrorf(lineNum, "#%s requires exactly one symbol", kind)
		}
		if !symbolRegex.MatchString(fields[1]) {
			return nil, directiveErrorf(lineNum, "invalid symbol %q in #%s", fields[1], kind)
		}
		return &Directive{Type: kind, Arg: fields[1], Line: lineNum}, nil
	case DirectiveElse, DirectiveEndif:
		if len(fields) != 1 {
			return nil, directiveErrorf(lineNum, "#%s takes no arguments", kind)
		}
		return &Directive{Type: kind, Line: lineNum}, nil
	default:
		return nil, directiveErrorf(lineNum, "unknown directive %q", "#"+fields[0])
	}
}

// ScanDirectives parses every directive in source, in order. Malformed directives do not
// stop the scan; their errors are returned alongside the directives that did parse.
//
// Parameters:
//   - source: the shader source text
//
// Returns:
//   - []Directive: the directives found, in source order
//   - []error: one error per malformed directive line
func ScanDirectives(source string) ([]Directive, []error) {
	var (
		directives []Directive
		errs       []error
	)
	for i, line := range strings.Split(source, "\n") {
		d, err := ParseDirective(line, i+1)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if d != nil {
			directives = append(directives, *d)
		}
	}
	return directives, errs
}

// blankDirectives replaces every directive line with an empty line, keeping line numbers
// intact so reflection results can be reported against the original source.
func blankDirectives(source string) string {
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}
