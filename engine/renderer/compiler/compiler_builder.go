package compiler

import "log/slog"

// CompilerBuilderOption is a functional option applied to a compiler during construction via NewCompiler.
type CompilerBuilderOption func(*compiler)

// WithTarget sets the default target used by Compile. Defaults to TargetSPIRV.
//
// Parameters:
//   - target: the default output language
//
// Returns:
//   - CompilerBuilderOption: a function that applies the target option to a compiler
func WithTarget(target Target) CompilerBuilderOption {
	return func(c *compiler) {
		c.target = target
	}
}

// WithValidation enables or disables IR validation before code generation. Enabled by default.
//
// Parameters:
//   - enabled: whether to validate
//
// Returns:
//   - CompilerBuilderOption: a function that applies the validation option to a compiler
func WithValidation(enabled bool) CompilerBuilderOption {
	return func(c *compiler) {
		c.validate = enabled
	}
}

// WithDebugInfo enables debug names and line info in SPIR-V output.
//
// Parameters:
//   - enabled: whether to emit debug info
//
// Returns:
//   - CompilerBuilderOption: a function that applies the debug option to a compiler
func WithDebugInfo(enabled bool) CompilerBuilderOption {
	return func(c *compiler) {
		c.debug = enabled
	}
}

// WithLogger sets the logger used for compile diagnostics.
//
// Parameters:
//   - l: the logger to use
//
// Returns:
//   - CompilerBuilderOption: a function that applies the logger option to a compiler
func WithLogger(l *slog.Logger) CompilerBuilderOption {
	return func(c *compiler) {
		c.logger = l
	}
}
