package shader

import (
	"errors"
	"fmt"
	"regexp"
)

// ViolationKind identifies which composition rule a source breaks.
type ViolationKind string

const (
	// ViolationMalformedDirective marks a line that starts with '#' but is not a valid directive.
	ViolationMalformedDirective ViolationKind = "malformed_directive"

	// ViolationDuplicateInclude marks a fragment included more than once.
	ViolationDuplicateInclude ViolationKind = "duplicate_include"

	// ViolationIncludeAfterEntry marks an include placed after the entry function, where its
	// declarations can no longer precede their use.
	ViolationIncludeAfterEntry ViolationKind = "include_after_entry"

	// ViolationNestedConditional marks a guard opened while another is still open.
	ViolationNestedConditional ViolationKind = "nested_conditional"

	// ViolationUnbalancedConditional marks an #else or #endif without an open guard, a second
	// #else, or a guard left open at the end of the source.
	ViolationUnbalancedConditional ViolationKind = "unbalanced_conditional"

	// ViolationUnusedInput marks a declared resource the entry function never references.
	ViolationUnusedInput ViolationKind = "unused_input"

	// ViolationMissingEntry marks a source without an entry function for its stage.
	ViolationMissingEntry ViolationKind = "missing_entry"
)

// Violation is one broken composition rule.
type Violation struct {
	Kind ViolationKind

	// Line is the 1-based source line the violation points at.
	Line int

	// Subject is the fragment, symbol or variable concerned.
	Subject string

	Message string
}

// Error formats the violation as "line N: kind: message".
func (v Violation) Error() string {
	return fmt.Sprintf("line %d: %s: %s", v.Line, v.Kind, v.Message)
}

// CheckComposition verifies the textual composition rules of a unit's source:
//  1. every include marker is well formed, appears once, and precedes the entry function;
//  2. every guard is closed around the same symbol, with no nesting;
//  3. every declared resource is referenced by the entry function body.
//
// Sources without an entry function (include fragments) skip rule 3 and the placement part
// of rule 1. Registration never calls this; it exists for tests and strict host loading.
//
// Parameters:
//   - source: the unit source
//   - shaderType: the stage whose entry function is checked
//   - requireEntry: when true, a missing entry function is itself a violation
//
// Returns:
//   - []Violation: the broken rules in source order, nil when the source complies
func CheckComposition(source string, shaderType ShaderType, requireEntry bool) []Violation {
	var violations []Violation
	refl := Reflect(source, shaderType)

	directives, errs := ScanDirectives(source)
	for _, err := range errs {
		v := Violation{Kind: ViolationMalformedDirective, Message: err.Error()}
		var de *DirectiveError
		if errors.As(err, &de) {
			v.Line, v.Message = de.Line, de.Msg
		}
		violations = append(violations, v)
	}

	seen := make(map[string]int)
	var open *Directive
	elseSeen := false
	for i := range directives {
		d := directives[i]
		switch d.Type {
		case DirectiveInclude:
			if first, dup := seen[d.Arg]; dup {
				violations = append(violations, Violation{
					Kind:    ViolationDuplicateInclude,
					Line:    d.Line,
					Subject: d.Arg,
					Message: fmt.Sprintf("fragment %q already included on line %d", d.Arg, first),
				})
				continue
			}
			seen[d.Arg] = d.Line
			if refl.EntryLine > 0 && d.Line > refl.EntryLine {
				violations = append(violations, Violation{
					Kind:    ViolationIncludeAfterEntry,
					Line:    d.Line,
					Subject: d.Arg,
					Message: fmt.Sprintf("fragment %q included after entry point %q", d.Arg, refl.EntryPoint),
				})
			}
		case DirectiveIfdef, DirectiveIfndef:
			if open != nil {
				violations = append(violations, Violation{
					Kind:    ViolationNestedConditional,
					Line:    d.Line,
					Subject: d.Arg,
					Message: fmt.Sprintf("guard %q opened inside guard %q from line %d", d.Arg, open.Arg, open.Line),
				})
				continue
			}
			open = &directives[i]
			elseSeen = false
		case DirectiveElse:
			if open == nil || elseSeen {
				violations = append(violations, Violation{
					Kind:    ViolationUnbalancedConditional,
					Line:    d.Line,
					Message: "#else without a matching open guard",
				})
				continue
			}
			elseSeen = true
		case DirectiveEndif:
			if open == nil {
				violations = append(violations, Violation{
					Kind:    ViolationUnbalancedConditional,
					Line:    d.Line,
					Message: "#endif without a matching open guard",
				})
				continue
			}
			open = nil
		}
	}
	if open != nil {
		violations = append(violations, Violation{
			Kind:    ViolationUnbalancedConditional,
			Line:    open.Line,
			Subject: open.Arg,
			Message: fmt.Sprintf("guard %q is never closed", open.Arg),
		})
	}

	if refl.EntryPoint == "" {
		if requireEntry {
			violations = append(violations, Violation{
				Kind:    ViolationMissingEntry,
				Line:    1,
				Message: fmt.Sprintf("no @%s entry function", shaderType),
			})
		}
		return violations
	}
	for _, b := range refl.Bindings {
		if !referencesIdentifier(refl.EntryBody, b.Name) {
			violations = append(violations, Violation{
				Kind:    ViolationUnusedInput,
				Line:    b.Line,
				Subject: b.Name,
				Message: fmt.Sprintf("input %q is never referenced by entry point %q", b.Name, refl.EntryPoint),
			})
		}
	}
	return violations
}

// ViolationsError joins violations into a single error, or returns nil when there are none.
//
// Parameters:
//   - violations: the violations to join
//
// Returns:
//   - error: an errors.Join of every violation, or nil
func ViolationsError(violations []Violation) error {
	errs := make([]error, 0, len(violations))
	for _, v := range violations {
		errs = append(errs, v)
	}
	return errors.Join(errs...)
}

// referencesIdentifier reports whether ident appears as a whole word in body.
func referencesIdentifier(body, ident string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(ident) + `\b`)
	return re.MatchString(body)
}
