package pre_processor

import "log/slog"

// PreProcessorBuilderOption is a functional option applied to a pre-processor during construction via NewPreProcessor.
type PreProcessorBuilderOption func(*preProcessor)

// WithMaxDepth sets how deeply fragments may include other fragments. Defaults to 16.
// Panics if depth is less than 1.
//
// Parameters:
//   - depth: the maximum include nesting depth
//
// Returns:
//   - PreProcessorBuilderOption: a function that applies the depth option to a pre-processor
func WithMaxDepth(depth int) PreProcessorBuilderOption {
	if depth < 1 {
		panic("pre_processor: max depth must be at least 1")
	}
	return func(p *preProcessor) {
		p.maxDepth = depth
	}
}

// WithLogger sets the logger used for expansion diagnostics.
//
// Parameters:
//   - l: the logger to use
//
// Returns:
//   - PreProcessorBuilderOption: a function that applies the logger option to a pre-processor
func WithLogger(l *slog.Logger) PreProcessorBuilderOption {
	return func(p *preProcessor) {
		p.logger = l
	}
}
