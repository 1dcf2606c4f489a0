// compiler.go turns a named shader from a ShaderStore into a GPU program. Each compile runs
// the source through the pre-processor, then through naga's parse, lower and validate stages,
// and finally through the backend of the requested target.
package compiler

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-shader/common"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/pre_processor"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader_store"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/msl"
	"github.com/gogpu/naga/spirv"
)

// ErrShaderNotFound is returned when the requested name is not registered in the shader store.
var ErrShaderNotFound = errors.New("shader not found")

// Stage names reported by StageError.
const (
	StagePreProcess = "preprocess"
	StageParse      = "parse"
	StageLower      = "lower"
	StageValidate   = "validate"
	StageGenerate   = "generate"
)

// StageError reports which compile stage failed for which shader.
type StageError struct {
	Shader string
	Stage  string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("compiler: shader %q: %s: %v", e.Shader, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Program is one compiled variant of a shader.
type Program struct {
	// Name is the shader name the program was compiled from.
	Name string

	// Defines is the sorted, de-duplicated define set the variant was compiled with.
	Defines []string

	// Includes lists the fragments expanded into Source, in expansion order.
	Includes []string

	// Source is the resolved WGSL, free of directives.
	Source string

	Target Target

	// SPIRV holds the SPIR-V words for TargetSPIRV and is nil otherwise.
	SPIRV []uint32

	// Code holds the generated source for TargetGLSL and TargetMSL and is empty otherwise.
	Code string

	// Module is a WGSL module descriptor ready for wgpu.Device.CreateShaderModule.
	Module *wgpu.ShaderModuleDescriptor

	// Reflection describes the entry point and resource layout of Source for its primary
	// stage, the one shader.DetectShaderType reports.
	Reflection shader.Reflection

	// Stages holds one reflection per stage Source has an entry function for.
	Stages map[shader.ShaderType]shader.Reflection
}

// StageReflection returns the reflection of the entry function for stage.
//
// Parameters:
//   - stage: the pipeline stage
//
// Returns:
//   - shader.Reflection: the stage reflection
//   - bool: false if Source has no entry function for stage
func (p *Program) StageReflection(stage shader.ShaderType) (shader.Reflection, bool) {
	r, ok := p.Stages[stage]
	return r, ok
}

// EntryStages returns the stages Source has entry functions for, in vertex, fragment,
// compute order.
//
// Returns:
//   - []shader.ShaderType: the stages
func (p *Program) EntryStages() []shader.ShaderType {
	var stages []shader.ShaderType
	for _, st := range []shader.ShaderType{shader.ShaderTypeVertex, shader.ShaderTypeFragment, shader.ShaderTypeCompute} {
		if _, ok := p.Stages[st]; ok {
			stages = append(stages, st)
		}
	}
	return stages
}

// Bytes returns the program output as it would be written to disk: little-endian SPIR-V words
// for TargetSPIRV and the generated text otherwise.
//
// Returns:
//   - []byte: the serialized program
func (p *Program) Bytes() []byte {
	if p.Target != TargetSPIRV {
		return []byte(p.Code)
	}
	out := make([]byte, 0, len(p.SPIRV)*4)
	for _, w := range p.SPIRV {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}

type cacheKey struct {
	name    string
	defines string
	target  Target
}

// compiler is the implementation of the Compiler interface.
type compiler struct {
	shaders  shader_store.ShaderStore
	includes shader_store.ShaderStore

	target   Target
	validate bool
	debug    bool
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[cacheKey]*Program
}

// Compiler compiles shaders registered in a ShaderStore into GPU programs, caching every
// variant it produces. Like the store, the cache only grows: the first program compiled for
// a variant is the one every later call receives.
type Compiler interface {
	// Compile compiles the named shader for the compiler's default target.
	//
	// Parameters:
	//   - ctx: checked for cancellation before each stage
	//   - name: the shader name in the shader store
	//   - defines: the feature symbols to compile with, in any order
	//
	// Returns:
	//   - *Program: the compiled program, shared with the cache
	//   - error: wraps ErrShaderNotFound, a *StageError, or the context's error
	Compile(ctx context.Context, name string, defines ...string) (*Program, error)

	// CompileTarget compiles the named shader for target.
	//
	// Parameters:
	//   - ctx: checked for cancellation before each stage
	//   - name: the shader name in the shader store
	//   - target: the output language
	//   - defines: the feature symbols to compile with, in any order
	//
	// Returns:
	//   - *Program: the compiled program, shared with the cache
	//   - error: wraps ErrShaderNotFound, a *StageError, or the context's error
	CompileTarget(ctx context.Context, name string, target Target, defines ...string) (*Program, error)

	// Target returns the default target used by Compile.
	//
	// Returns:
	//   - Target: the default target
	Target() Target

	// CacheLen returns the number of cached programs.
	//
	// Returns:
	//   - int: the cache entry count
	CacheLen() int
}

var _ Compiler = &compiler{}

// NewCompiler creates a new Compiler reading shaders and include fragments from the given stores.
// Defaults to TargetSPIRV with validation enabled and no debug info.
//
// Parameters:
//   - shaders: the store holding complete shader sources
//   - includes: the store holding include fragments
//   - options: functional options for target, validation, debug info and logger
//
// Returns:
//   - Compiler: a ready-to-use compiler instance
func NewCompiler(shaders, includes shader_store.ShaderStore, options ...CompilerBuilderOption) Compiler {
	if shaders == nil || includes == nil {
		panic("compiler: shader and include stores must not be nil")
	}
	c := &compiler{
		shaders:  shaders,
		includes: includes,
		target:   TargetSPIRV,
		validate: true,
		cache:    make(map[cacheKey]*Program),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.logger == nil {
		c.logger = common.Logger()
	}
	return c
}

func (c *compiler) Compile(ctx context.Context, name string, defines ...string) (*Program, error) {
	return c.CompileTarget(ctx, name, c.target, defines...)
}

func (c *compiler) CompileTarget(ctx context.Context, name string, target Target, defines ...string) (*Program, error) {
	defines = common.SortedUnique(defines)
	key := cacheKey{name: name, defines: strings.Join(defines, ","), target: target}

	c.mu.Lock()
	cached, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		c.logger.Debug("program cache hit", "shader", name, "target", target.String())
		return cached, nil
	}

	source, ok := c.shaders.Get(name)
	if !ok {
		return nil, fmt.Errorf("compiler: %w: %q", ErrShaderNotFound, name)
	}

	program, err := c.build(ctx, name, source, target, defines)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.cache[key]; ok {
		program = existing
	} else {
		c.cache[key] = program
	}
	c.mu.Unlock()

	c.logger.Info("compiled shader", "shader", name, "target", target.String(), "defines", defines, "includes", len(program.Includes))
	return program, nil
}

func (c *compiler) Target() Target {
	return c.target
}

func (c *compiler) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// build runs every compile stage for one variant.
func (c *compiler) build(ctx context.Context, name, source string, target Target, defines []string) (*Program, error) {
	stageErr := func(stage string, err error) error {
		return &StageError{Shader: name, Stage: stage, Err: err}
	}

	pp := pre_processor.NewPreProcessor(c.includes, pre_processor.WithLogger(c.logger))
	expanded, err := pp.Process(source, defines...)
	if err != nil {
		return nil, stageErr(StagePreProcess, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ast, err := naga.Parse(expanded)
	if err != nil {
		return nil, stageErr(StageParse, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	module, err := naga.LowerWithSource(ast, expanded)
	if err != nil {
		return nil, stageErr(StageLower, err)
	}

	if c.validate {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		issues, err := naga.Validate(module)
		if err != nil {
			return nil, stageErr(StageValidate, err)
		}
		if len(issues) > 0 {
			errs := make([]error, 0, len(issues))
			for _, issue := range issues {
				errs = append(errs, issue)
			}
			return nil, stageErr(StageValidate, errors.Join(errs...))
		}
	}

	stage, _ := shader.DetectShaderType(expanded)
	p := &Program{
		Name:     name,
		Defines:  defines,
		Includes: pp.Includes(),
		Source:   expanded,
		Target:   target,
		Module: &wgpu.ShaderModuleDescriptor{
			Label:          name,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: expanded},
		},
		Reflection: shader.Reflect(expanded, stage),
		Stages:     make(map[shader.ShaderType]shader.Reflection),
	}
	for _, st := range shader.DetectShaderTypes(expanded) {
		p.Stages[st] = shader.Reflect(expanded, st)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch target {
	case TargetSPIRV:
		raw, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3, Debug: c.debug})
		if err != nil {
			return nil, stageErr(StageGenerate, err)
		}
		if p.SPIRV, err = spirvWords(raw); err != nil {
			return nil, stageErr(StageGenerate, err)
		}
	case TargetGLSL:
		opts := glsl.DefaultOptions()
		opts.EntryPoint = p.Reflection.EntryPoint
		if p.Code, _, err = glsl.Compile(module, opts); err != nil {
			return nil, stageErr(StageGenerate, err)
		}
	case TargetMSL:
		if p.Code, _, err = msl.Compile(module, msl.DefaultOptions()); err != nil {
			return nil, stageErr(StageGenerate, err)
		}
	default:
		return nil, stageErr(StageGenerate, fmt.Errorf("%w %d", ErrUnknownTarget, int(target)))
	}
	return p, nil
}

// spirvWords converts a SPIR-V binary into its little-endian 32-bit words.
func spirvWords(raw []byte) ([]uint32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("spir-v binary length %d is not a multiple of 4", len(raw))
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return words, nil
}
