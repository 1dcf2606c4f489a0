package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-shader/common"
	"github.com/Carmen-Shannon/oxy-shader/engine/manifest"
	"github.com/Carmen-Shannon/oxy-shader/engine/profiler"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/compiler"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader_store"
	"github.com/Carmen-Shannon/oxy-shader/engine/shaders"
)

// engine implements the Engine interface.
// Owns the shader and include stores and everything that reads from them.
type engine struct {
	shaders  shader_store.ShaderStore
	includes shader_store.ShaderStore
	compiler compiler.Compiler

	// units and fragments are registered by LoadShaders after the built-in library.
	units     []shader.Unit
	fragments []shader.Unit

	strictComposition bool

	// loadPool registers units in parallel when loadWorkers > 1; nil otherwise.
	loadPool    worker.DynamicWorkerPool
	loadWorkers int

	compilerOptions []compiler.CompilerBuilderOption

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	logger *slog.Logger
}

// Engine is the main entry point for the engine.
// It publishes shader units into its stores and compiles programs from them.
type Engine interface {
	// LoadShaders registers the built-in shader library followed by every unit added through
	// WithUnits and WithIncludeUnits. Include fragments go to the include store, complete
	// shaders to the shader store. Calling it again registers nothing new.
	//
	// With WithStrictComposition enabled, every unit is also run through
	// shader.CheckComposition. Violations are returned as an error, but never stop a unit
	// from being registered.
	//
	// Returns:
	//   - []shader.Descriptor: one descriptor per unit, sorted by name
	//   - error: composition violations in strict mode, nil otherwise
	LoadShaders() ([]shader.Descriptor, error)

	// Shaders returns the store holding complete shader sources.
	//
	// Returns:
	//   - shader_store.ShaderStore: the shader store
	Shaders() shader_store.ShaderStore

	// Includes returns the store holding include fragments.
	//
	// Returns:
	//   - shader_store.ShaderStore: the include store
	Includes() shader_store.ShaderStore

	// Shader retrieves the source registered under name in the shader store.
	//
	// Parameters:
	//   - name: the shader name
	//
	// Returns:
	//   - string: the stored source, or an empty string when absent
	//   - bool: true if the name is registered
	Shader(name string) (string, bool)

	// Compiler returns the compiler reading from the engine's stores.
	//
	// Returns:
	//   - compiler.Compiler: the compiler
	Compiler() compiler.Compiler

	// Compile compiles the named shader for the compiler's default target.
	//
	// Parameters:
	//   - ctx: checked for cancellation between compile stages
	//   - name: the shader name
	//   - defines: the feature symbols to compile with
	//
	// Returns:
	//   - *compiler.Program: the compiled program
	//   - error: any error from the compiler
	Compile(ctx context.Context, name string, defines ...string) (*compiler.Program, error)

	// CompileVariant compiles one manifest variant for its own target.
	//
	// Parameters:
	//   - ctx: checked for cancellation between compile stages
	//   - v: the variant to compile
	//
	// Returns:
	//   - *compiler.Program: the compiled program
	//   - error: any error from the compiler, prefixed with the variant label
	CompileVariant(ctx context.Context, v manifest.Variant) (*compiler.Program, error)

	// CompileManifest compiles every variant of m in order, stopping at the first failure.
	//
	// Parameters:
	//   - ctx: checked before each variant and between compile stages
	//   - m: the manifest to compile
	//
	// Returns:
	//   - []*compiler.Program: one program per variant, in manifest order
	//   - error: the first failure, if any
	CompileManifest(ctx context.Context, m *manifest.Manifest) ([]*compiler.Program, error)

	// LinkPipeline compiles each variant and links the programs into one pipeline. A variant
	// with a Stage fills that stage. A variant without one fills every stage its program has
	// an entry function for, unless an earlier variant already filled it, so one module with
	// @vertex and @fragment entries can back a whole render pipeline. A compute program makes
	// a compute pipeline.
	//
	// Parameters:
	//   - ctx: checked between compile stages
	//   - key: the pipeline key
	//   - variants: one variant per stage
	//
	// Returns:
	//   - pipeline.Pipeline: the linked pipeline with merged bind group layouts
	//   - error: any compile error, or a linking error from the pipeline package
	LinkPipeline(ctx context.Context, key string, variants ...manifest.Variant) (pipeline.Pipeline, error)

	// EnableProfiler enables compile timing collection.
	EnableProfiler()

	// DisableProfiler disables compile timing collection. Samples already recorded are kept.
	DisableProfiler()

	// ReportProfile logs the collected compile timings and memory statistics.
	ReportProfile()

	// Close stops the load worker pool, if any. The stores stay readable.
	Close()
}

// NewEngine creates a new Engine instance with the provided options.
// Creates empty shader and include stores and a compiler over them. Nothing is registered
// until LoadShaders is called.
//
// Parameters:
//   - options: functional options for engine configuration (units, workers, profiling, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		loadWorkers: 1,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.logger == nil {
		e.logger = common.Logger()
	}

	e.shaders = shader_store.NewShaderStore(
		shader_store.WithKind(shader_store.StoreKindShader),
		shader_store.WithLogger(e.logger),
	)
	e.includes = shader_store.NewShaderStore(
		shader_store.WithKind(shader_store.StoreKindInclude),
		shader_store.WithLogger(e.logger),
	)
	e.compiler = compiler.NewCompiler(e.shaders, e.includes,
		append([]compiler.CompilerBuilderOption{compiler.WithLogger(e.logger)}, e.compilerOptions...)...)
	e.profiler = profiler.NewProfiler(e.logger)

	if e.loadWorkers > 1 {
		// Queue size of 256 accommodates the library with room for user units.
		e.loadPool = worker.NewDynamicWorkerPool(e.loadWorkers, 256, 1*time.Second)
	}
	return e
}

// registration pairs a unit with the store it publishes into.
type registration struct {
	unit  shader.Unit
	store shader_store.ShaderStore
	entry bool
}

// registrationGroups splits regs by target store and name. Groups run in parallel; the
// registrations inside one group keep their order, so the first unit listed for a name wins
// exactly as it does in a sequential load.
func registrationGroups(regs []registration) [][]int {
	type key struct {
		store shader_store.ShaderStore
		name  string
	}
	index := make(map[key]int)
	var groups [][]int
	for i, r := range regs {
		k := key{r.store, r.unit.Name()}
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (e *engine) LoadShaders() ([]shader.Descriptor, error) {
	var regs []registration
	for _, u := range append(shaders.Includes(), e.fragments...) {
		regs = append(regs, registration{unit: u, store: e.includes})
	}
	for _, u := range append(shaders.Units(), e.units...) {
		regs = append(regs, registration{unit: u, store: e.shaders, entry: true})
	}

	start := time.Now()
	var descriptors []shader.Descriptor
	if e.loadPool == nil {
		descriptors = shaders.RegisterAll(e.shaders, e.includes)
		for _, u := range e.fragments {
			descriptors = append(descriptors, u.Register(e.includes))
		}
		for _, u := range e.units {
			descriptors = append(descriptors, u.Register(e.shaders))
		}
	} else {
		descriptors = make([]shader.Descriptor, len(regs))
		var wg sync.WaitGroup
		for id, indexes := range registrationGroups(regs) {
			wg.Add(1)
			e.loadPool.SubmitTask(worker.Task{
				ID: id,
				Do: func() (any, error) {
					defer wg.Done()
					for _, i := range indexes {
						descriptors[i] = regs[i].unit.Register(regs[i].store)
					}
					return nil, nil
				},
			})
		}
		wg.Wait()
	}

	slices.SortStableFunc(descriptors, func(a, b shader.Descriptor) int {
		return strings.Compare(a.Name, b.Name)
	})
	e.logger.Info("loaded shaders",
		"shaders", e.shaders.Len(),
		"includes", e.includes.Len(),
		"workers", e.loadWorkers,
		"elapsed", time.Since(start),
	)

	if !e.strictComposition {
		return descriptors, nil
	}
	var errs []error
	for _, r := range regs {
		violations := shader.CheckComposition(r.unit.Source(), r.unit.ShaderType(), r.entry)
		for _, v := range violations {
			e.logger.Warn("composition violation", "shader", r.unit.Name(), "kind", string(v.Kind), "line", v.Line)
		}
		if len(violations) > 0 {
			errs = append(errs, fmt.Errorf("engine: unit %q: %w", r.unit.Name(), shader.ViolationsError(violations)))
		}
	}
	return descriptors, errors.Join(errs...)
}

func (e *engine) Shaders() shader_store.ShaderStore {
	return e.shaders
}

func (e *engine) Includes() shader_store.ShaderStore {
	return e.includes
}

func (e *engine) Shader(name string) (string, bool) {
	return e.shaders.Get(name)
}

func (e *engine) Compiler() compiler.Compiler {
	return e.compiler
}

func (e *engine) Compile(ctx context.Context, name string, defines ...string) (*compiler.Program, error) {
	start := time.Now()
	p, err := e.compiler.Compile(ctx, name, defines...)
	e.record(name, start, err)
	return p, err
}

func (e *engine) CompileVariant(ctx context.Context, v manifest.Variant) (*compiler.Program, error) {
	start := time.Now()
	p, err := e.compiler.CompileTarget(ctx, v.Shader, v.Target, v.Defines...)
	e.record(v.Label, start, err)
	if err != nil {
		return nil, fmt.Errorf("engine: variant %q: %w", v.Label, err)
	}
	return p, nil
}

func (e *engine) CompileManifest(ctx context.Context, m *manifest.Manifest) ([]*compiler.Program, error) {
	programs := make([]*compiler.Program, 0, len(m.Variants))
	for _, v := range m.Variants {
		if err := ctx.Err(); err != nil {
			return programs, err
		}
		p, err := e.CompileVariant(ctx, v)
		if err != nil {
			return programs, err
		}
		programs = append(programs, p)
	}
	return programs, nil
}

func (e *engine) LinkPipeline(ctx context.Context, key string, variants ...manifest.Variant) (pipeline.Pipeline, error) {
	pipelineType := pipeline.PipelineTypeRender
	filled := make(map[shader.ShaderType]bool)
	options := make([]pipeline.PipelineBuilderOption, 0, len(variants))
	for _, v := range variants {
		prog, err := e.CompileVariant(ctx, v)
		if err != nil {
			return nil, err
		}

		stages := prog.EntryStages()
		if v.Stage != "" {
			st, err := shader.ParseShaderType(v.Stage)
			if err != nil {
				return nil, fmt.Errorf("engine: variant %q: %w", v.Label, err)
			}
			stages = []shader.ShaderType{st}
		}
		for _, st := range stages {
			// an unpinned variant never takes a slot an earlier variant already filled
			if v.Stage == "" && filled[st] {
				continue
			}
			filled[st] = true
			switch st {
			case shader.ShaderTypeVertex:
				options = append(options, pipeline.WithVertexProgram(prog))
			case shader.ShaderTypeFragment:
				options = append(options, pipeline.WithFragmentProgram(prog))
			case shader.ShaderTypeCompute:
				pipelineType = pipeline.PipelineTypeCompute
				options = append(options, pipeline.WithComputeProgram(prog))
			}
		}
	}

	p, err := pipeline.NewPipeline(key, pipelineType, options...)
	if err != nil {
		return nil, fmt.Errorf("engine: pipeline %q: %w", key, err)
	}
	e.logger.Debug("linked pipeline", "pipeline", key, "groups", len(p.Groups()))
	return p, nil
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

func (e *engine) ReportProfile() {
	e.profiler.Report()
}

func (e *engine) Close() {
	if e.loadPool != nil {
		e.loadPool.Stop()
	}
}

// record adds a compile timing to the profiler when profiling is enabled.
func (e *engine) record(label string, start time.Time, err error) {
	if !e.profilingEnabled.Load() {
		return
	}
	e.profiler.Record(label, time.Since(start), err == nil)
}
