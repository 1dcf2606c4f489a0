package engine

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/compiler"
	"github.com/Carmen-Shannon/oxy-shader/engine/renderer/shader"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables compile timing collection.
//
// Parameters:
//   - enabled: if true, enables profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithLoadWorkers sets how many workers LoadShaders registers units with.
// Values <= 1 register sequentially on the calling goroutine (default).
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLoadWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.loadWorkers = max(n, 1)
	}
}

// WithUnits adds complete shader units that LoadShaders registers into the shader store after
// the built-in library.
//
// Parameters:
//   - units: the units to add
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithUnits(units ...shader.Unit) EngineBuilderOption {
	return func(e *engine) {
		e.units = append(e.units, units...)
	}
}

// WithIncludeUnits adds fragment units that LoadShaders registers into the include store after
// the built-in library.
//
// Parameters:
//   - units: the fragment units to add
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithIncludeUnits(units ...shader.Unit) EngineBuilderOption {
	return func(e *engine) {
		e.fragments = append(e.fragments, units...)
	}
}

// WithStrictComposition makes LoadShaders check every unit against the composition rules
// and report violations as an error.
//
// Parameters:
//   - enabled: if true, violations are returned from LoadShaders
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithStrictComposition(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.strictComposition = enabled
	}
}

// WithCompilerOptions passes options through to the engine's compiler.
//
// Parameters:
//   - options: the compiler options, applied after the engine's logger
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCompilerOptions(options ...compiler.CompilerBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.compilerOptions = append(e.compilerOptions, options...)
	}
}

// WithLogger sets the logger shared by the engine's stores, compiler and profiler.
// When not specified, common.Logger is used.
//
// Parameters:
//   - l: the logger to use
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(l *slog.Logger) EngineBuilderOption {
	return func(e *engine) {
		e.logger = l
	}
}
