package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/compiler"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType distinguishes render pipelines (vertex + fragment) from compute pipelines.
type PipelineType int

const (
	PipelineTypeRender PipelineType = iota
	PipelineTypeCompute
)

var (
	// ErrMissingStage is returned when a pipeline lacks a program its type requires.
	ErrMissingStage = errors.New("pipeline: missing stage program")

	// ErrStageMismatch is returned when a program is attached to a stage it was not compiled for.
	ErrStageMismatch = errors.New("pipeline: program stage mismatch")

	// ErrBindingConflict is returned when two stages declare the same group and binding with
	// different resource types.
	ErrBindingConflict = errors.New("pipeline: conflicting binding")
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineType PipelineType
	pipelineKey  string

	vertexProgram   *compiler.Program
	fragmentProgram *compiler.Program
	computeProgram  *compiler.Program

	topology  wgpu.PrimitiveTopology
	frontFace wgpu.FrontFace
	cullMode  wgpu.CullMode

	layouts map[int]wgpu.BindGroupLayoutDescriptor
}

// Pipeline links compiled stage programs into one pipeline description. The bind group layouts
// of every stage are merged so a single set of layouts can back the whole pipeline.
type Pipeline interface {
	// Type returns whether this is a render or compute pipeline.
	Type() PipelineType

	// PipelineKey returns the key the pipeline was created with.
	PipelineKey() string

	// Program returns the program attached to the given stage, or nil.
	//
	// Parameters:
	//   - stage: the stage to look up
	//
	// Returns:
	//   - *compiler.Program: the stage program, nil when the stage is not used
	Program(stage shader.ShaderType) *compiler.Program

	// EntryPoint returns the entry function name of the given stage, empty when unused.
	EntryPoint(stage shader.ShaderType) string

	// BindGroupLayouts returns the merged layout descriptors keyed by group index. Entries are
	// sorted by binding and carry the union of the visibility flags of every stage using them.
	BindGroupLayouts() map[int]wgpu.BindGroupLayoutDescriptor

	// Groups returns the group indices in ascending order.
	Groups() []int

	// PrimitiveState returns the primitive assembly settings for render pipelines.
	PrimitiveState() wgpu.PrimitiveState
}

var _ Pipeline = &pipeline{}

// NewPipeline links the stage programs given through options into a Pipeline.
//
// Parameters:
//   - key: a unique key for the pipeline, used as the label of every merged layout
//   - pipelineType: render or compute
//   - options: PipelineBuilderOption values attaching programs and primitive settings
//
// Returns:
//   - Pipeline: the linked pipeline
//   - error: ErrMissingStage, ErrStageMismatch or ErrBindingConflict
func NewPipeline(key string, pipelineType PipelineType, options ...PipelineBuilderOption) (Pipeline, error) {
	if key == "" {
		panic("pipeline: key must not be empty")
	}
	p := &pipeline{
		pipelineType: pipelineType,
		pipelineKey:  key,
		topology:     wgpu.PrimitiveTopologyTriangleList,
		frontFace:    wgpu.FrontFaceCCW,
		cullMode:     wgpu.CullModeBack,
	}
	for _, opt := range options {
		opt(p)
	}

	stages, err := p.stages()
	if err != nil {
		return nil, err
	}
	p.layouts, err = mergeLayouts(key, stages)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Program(stage shader.ShaderType) *compiler.Program {
	switch stage {
	case shader.ShaderTypeVertex:
		return p.vertexProgram
	case shader.ShaderTypeFragment:
		return p.fragmentProgram
	case shader.ShaderTypeCompute:
		return p.computeProgram
	}
	return nil
}

func (p *pipeline) EntryPoint(stage shader.ShaderType) string {
	if prog := p.Program(stage); prog != nil {
		r, _ := prog.StageReflection(stage)
		return r.EntryPoint
	}
	return ""
}

func (p *pipeline) BindGroupLayouts() map[int]wgpu.BindGroupLayoutDescriptor {
	out := make(map[int]wgpu.BindGroupLayoutDescriptor, len(p.layouts))
	for g, l := range p.layouts {
		out[g] = wgpu.BindGroupLayoutDescriptor{Label: l.Label, Entries: slices.Clone(l.Entries)}
	}
	return out
}

func (p *pipeline) Groups() []int {
	return slices.Sorted(maps.Keys(p.layouts))
}

func (p *pipeline) PrimitiveState() wgpu.PrimitiveState {
	return wgpu.PrimitiveState{
		Topology:  p.topology,
		FrontFace: p.frontFace,
		CullMode:  p.cullMode,
	}
}

// slot is one stage of a pipeline and the program filling it.
type slot struct {
	stage shader.ShaderType
	prog  *compiler.Program
}

// stages returns the slots in stage order after checking that the pipeline type has every
// program it needs and that each program has an entry function for its slot. One program
// may fill several slots.
func (p *pipeline) stages() ([]slot, error) {
	var slots []slot
	switch p.pipelineType {
	case PipelineTypeRender:
		slots = []slot{{shader.ShaderTypeVertex, p.vertexProgram}, {shader.ShaderTypeFragment, p.fragmentProgram}}
	case PipelineTypeCompute:
		slots = []slot{{shader.ShaderTypeCompute, p.computeProgram}}
	default:
		panic(fmt.Sprintf("pipeline: unknown pipeline type %d", p.pipelineType))
	}

	for _, s := range slots {
		if s.prog == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingStage, s.stage)
		}
		if r, ok := s.prog.StageReflection(s.stage); !ok || r.EntryPoint == "" {
			return nil, fmt.Errorf("%w: %q has no @%s entry point", ErrStageMismatch, s.prog.Name, s.stage)
		}
	}
	return slots, nil
}

// mergeLayouts unions the per-stage layouts. A binding shared by two stages must describe the
// same resource; only its visibility flags are combined.
func mergeLayouts(label string, slots []slot) (map[int]wgpu.BindGroupLayoutDescriptor, error) {
	type key struct{ group, binding int }
	merged := make(map[key]wgpu.BindGroupLayoutEntry)
	owner := make(map[key]string)

	for _, s := range slots {
		prog := s.prog
		r, _ := prog.StageReflection(s.stage)
		for group, layout := range r.BindGroupLayouts {
			for _, e := range layout.Entries {
				k := key{group, int(e.Binding)}
				prev, ok := merged[k]
				if !ok {
					merged[k] = e
					owner[k] = prog.Name
					continue
				}
				if !sameResource(prev, e) {
					return nil, fmt.Errorf("%w: @group(%d) @binding(%d) differs between %q and %q",
						ErrBindingConflict, group, e.Binding, owner[k], prog.Name)
				}
				prev.Visibility |= e.Visibility
				merged[k] = prev
			}
		}
	}

	out := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for k, e := range merged {
		l := out[k.group]
		l.Label = fmt.Sprintf("%s/group%d", label, k.group)
		l.Entries = append(l.Entries, e)
		out[k.group] = l
	}
	for g, l := range out {
		slices.SortFunc(l.Entries, func(a, b wgpu.BindGroupLayoutEntry) int {
			return int(a.Binding) - int(b.Binding)
		})
		out[g] = l
	}
	return out, nil
}

func sameResource(a, b wgpu.BindGroupLayoutEntry) bool {
	a.Visibility, b.Visibility = 0, 0
	return a == b
}
