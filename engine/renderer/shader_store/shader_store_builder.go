package shader_store

import "log/slog"

// ShaderStoreBuilderOption is a functional option applied to a store during construction via NewShaderStore.
type ShaderStoreBuilderOption func(*shaderStore)

// WithKind sets what the store holds. Defaults to StoreKindShader.
//
// Parameters:
//   - kind: StoreKindShader or StoreKindInclude
//
// Returns:
//   - ShaderStoreBuilderOption: a function that applies the kind option to a store
func WithKind(kind StoreKind) ShaderStoreBuilderOption {
	return func(s *shaderStore) {
		s.kind = kind
	}
}

// WithLogger sets the logger used for registration diagnostics.
// When not specified, the shared logger from common.Logger is used.
//
// Parameters:
//   - l: the logger to use
//
// Returns:
//   - ShaderStoreBuilderOption: a function that applies the logger option to a store
func WithLogger(l *slog.Logger) ShaderStoreBuilderOption {
	return func(s *shaderStore) {
		s.logger = l
	}
}

// WithEntries seeds the store with the provided sources. Entries go through Register in
// ascending name order after all options are applied, so first-wins semantics hold across
// repeated WithEntries options as well.
//
// Parameters:
//   - entries: a map of shader names to source text
//
// Returns:
//   - ShaderStoreBuilderOption: a function that applies the seed entries to a store
func WithEntries(entries map[string]string) ShaderStoreBuilderOption {
	return func(s *shaderStore) {
		if s.seed == nil {
			s.seed = make(map[string]string, len(entries))
		}
		for name, src := range entries {
			if _, ok := s.seed[name]; !ok {
				s.seed[name] = src
			}
		}
	}
}
