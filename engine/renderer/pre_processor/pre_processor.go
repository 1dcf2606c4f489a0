// pre_processor.go resolves the textual directives of a shader source into plain WGSL.
// It makes one pass over the source lines:
//   - conditional evaluation: #ifdef, #ifndef, #else and #endif blocks are kept or dropped
//     against the define set. #define lines add to the set from that point on.
//   - include expansion: every #include<name> marker in a kept line is replaced with the
//     fragment registered under name in the include store. Fragments may include other
//     fragments; each fragment is emitted at most once per output, the first time a kept
//     marker reaches it. Markers in dropped branches are never resolved.
//
// Directive lines never reach the output.
package pre_processor

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-shader/common"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader_store"
)

var (
	// ErrUnknownInclude is returned when an include marker names a fragment the include store does not hold.
	ErrUnknownInclude = errors.New("unknown include")

	// ErrIncludeCycle is returned when a fragment includes itself, directly or through other fragments.
	ErrIncludeCycle = errors.New("include cycle")

	// ErrIncludeDepth is returned when fragments nest deeper than the configured maximum.
	ErrIncludeDepth = errors.New("include depth exceeded")

	// ErrUnbalancedConditional is returned for #else or #endif without an open block, a second
	// #else, or a block left open at the end of the source.
	ErrUnbalancedConditional = errors.New("unbalanced conditional")

	// ErrNestedConditional is returned when a conditional block opens inside another one.
	ErrNestedConditional = errors.New("nested conditional")
)

const defaultMaxDepth = 16

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// includes is the store fragments are resolved from.
	includes shader_store.ShaderStore

	// maxDepth bounds how deeply fragments may include other fragments.
	maxDepth int

	logger *slog.Logger

	mu       sync.Mutex
	expanded []string
}

// PreProcessor turns a shader source carrying include markers and conditional blocks into
// plain WGSL ready for a compiler.
type PreProcessor interface {
	// Process expands every include marker in source and evaluates its conditional blocks
	// against defines. Errors carry a "line N:" prefix pointing at the line in the source
	// being expanded; errors inside a fragment are wrapped with the line of its marker.
	//
	// Parameters:
	//   - source: the shader source, as stored in a ShaderStore
	//   - defines: the feature symbols considered defined
	//
	// Returns:
	//   - string: the resolved WGSL source
	//   - error: wraps ErrUnknownInclude, ErrIncludeCycle, ErrIncludeDepth,
	//     ErrUnbalancedConditional or ErrNestedConditional, or a *shader.DirectiveError
	//     for a malformed directive line
	Process(source string, defines ...string) (string, error)

	// Includes returns the fragment names emitted during the most recent call to Process,
	// in the order they were first reached. Returns nil if Process has not been called.
	//
	// Returns:
	//   - []string: the expanded fragment names
	Includes() []string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor resolving fragments from includes.
//
// Parameters:
//   - includes: the store holding include fragments
//   - options: functional options for depth limit and logger
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(includes shader_store.ShaderStore, options ...PreProcessorBuilderOption) PreProcessor {
	if includes == nil {
		panic("pre_processor: include store must not be nil")
	}
	p := &preProcessor{
		includes: includes,
		maxDepth: defaultMaxDepth,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.logger == nil {
		p.logger = common.Logger()
	}
	return p
}

func (p *preProcessor) Process(source string, defines ...string) (string, error) {
	x := &expansion{
		includes: p.includes,
		maxDepth: p.maxDepth,
		defined:  make(map[string]bool, len(defines)),
		seen:     make(map[string]bool),
	}
	for _, d := range defines {
		if d != "" {
			x.defined[d] = true
		}
	}
	out, err := x.expand(source)

	p.mu.Lock()
	p.expanded = x.order
	p.mu.Unlock()

	if err != nil {
		return "", err
	}
	p.logger.Debug("pre-processed source", "includes", len(x.order), "defines", len(defines), "lines", len(out))
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Includes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.expanded)
}

// expansion holds the state of one Process call.
type expansion struct {
	includes shader_store.ShaderStore
	maxDepth int

	// defined is the define set, grown by #define lines in selected branches.
	defined map[string]bool

	// seen marks every fragment already emitted into the output.
	seen map[string]bool

	// order lists emitted fragments in the order they were reached.
	order []string

	// stack holds the chain of fragments currently being expanded.
	stack []string
}

// block is the conditional block open in one source.
type block struct {
	open     *shader.Directive
	active   bool
	elseSeen bool
}

// selected reports whether lines at the current position reach the output.
func (b *block) selected() bool {
	return b.open == nil || b.active
}

// expand resolves one source: conditional blocks are evaluated line by line, and include
// markers in selected lines are replaced with their fragment, itself expanded recursively.
// Every source keeps its own block state, so a fragment's guards may sit inside a guard of
// the source including it.
func (x *expansion) expand(source string) ([]string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	var b block
	for i, line := range lines {
		d, err := shader.ParseDirective(line, i+1)
		if err != nil {
			return nil, err
		}
		if d == nil {
			if b.selected() {
				out = append(out, line)
			}
			continue
		}

		switch d.Type {
		case shader.DirectiveIfdef, shader.DirectiveIfndef:
			if b.open != nil {
				return nil, fmt.Errorf("line %d: %w: %q opened inside %q from line %d", d.Line, ErrNestedConditional, d.Arg, b.open.Arg, b.open.Line)
			}
			b = block{open: d, active: x.defined[d.Arg] == (d.Type == shader.DirectiveIfdef)}
		case shader.DirectiveElse:
			if b.open == nil || b.elseSeen {
				return nil, fmt.Errorf("line %d: %w: #else without a matching open block", d.Line, ErrUnbalancedConditional)
			}
			b.elseSeen = true
			b.active = !b.active
		case shader.DirectiveEndif:
			if b.open == nil {
				return nil, fmt.Errorf("line %d: %w: #endif without a matching open block", d.Line, ErrUnbalancedConditional)
			}
			b = block{}
		case shader.DirectiveDefine:
			if b.selected() {
				x.defined[d.Arg] = true
			}
		case shader.DirectiveInclude:
			if !b.selected() {
				continue
			}
			inner, err := x.include(d.Arg, d.Line)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
		}
	}
	if b.open != nil {
		return nil, fmt.Errorf("line %d: %w: %q is never closed", b.open.Line, ErrUnbalancedConditional, b.open.Arg)
	}
	return out, nil
}

// include expands the named fragment, or returns nothing if it was already emitted.
func (x *expansion) include(name string, line int) ([]string, error) {
	if slices.Contains(x.stack, name) {
		return nil, fmt.Errorf("line %d: %w: %s -> %s", line, ErrIncludeCycle, strings.Join(x.stack, " -> "), name)
	}
	if x.seen[name] {
		return nil, nil
	}
	if len(x.stack) >= x.maxDepth {
		return nil, fmt.Errorf("line %d: %w: %q nests deeper than %d", line, ErrIncludeDepth, name, x.maxDepth)
	}
	fragment, ok := x.includes.Get(name)
	if !ok {
		return nil, fmt.Errorf("line %d: %w %q", line, ErrUnknownInclude, name)
	}

	x.seen[name] = true
	x.order = append(x.order, name)
	x.stack = append(x.stack, name)
	inner, err := x.expand(strings.TrimSuffix(fragment, "\n"))
	x.stack = x.stack[:len(x.stack)-1]
	if err != nil {
		return nil, fmt.Errorf("line %d: in include %q: %w", line, name, err)
	}
	return inner, nil
}
