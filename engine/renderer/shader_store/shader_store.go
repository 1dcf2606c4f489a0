package shader_store

import (
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-shader/common"
)

// StoreKind identifies what a ShaderStore holds. It only affects logging; the storage
// semantics are identical for every kind.
type StoreKind int

const (
	// StoreKindShader holds complete shader sources, keyed by shader name.
	StoreKindShader StoreKind = iota

	// StoreKindInclude holds reusable source fragments referenced by #include<name> markers.
	StoreKindInclude
)

// String returns the lowercase name of the kind.
func (k StoreKind) String() string {
	switch k {
	case StoreKindShader:
		return "shader"
	case StoreKindInclude:
		return "include"
	default:
		return "unknown"
	}
}

// shaderStore is the implementation of the ShaderStore interface.
type shaderStore struct {
	mu      sync.RWMutex
	sources map[string]string
	kind    StoreKind
	logger  *slog.Logger

	// seed holds WithEntries values until construction finishes.
	seed map[string]string
}

// ShaderStore is an append-only mapping from shader name to shader source text.
// The first registration of a name wins; every later registration of the same name is a
// no-op, whether or not its text matches. Entries are never updated or removed, so readers
// may query the store concurrently with writers.
type ShaderStore interface {
	// Has reports whether a source is registered under name.
	//
	// Parameters:
	//   - name: the shader name to look up
	//
	// Returns:
	//   - bool: true if the name is registered
	Has(name string) bool

	// Register stores source under name if, and only if, name is not registered yet.
	// The check and the insert happen atomically, so concurrent registrations of the same
	// name leave exactly one entry. A divergent duplicate is discarded without error.
	//
	// Parameters:
	//   - name: the shader name used as the key
	//   - source: the shader source text, stored verbatim
	//
	// Returns:
	//   - bool: true if this call inserted the entry, false if the name was already taken
	Register(name, source string) bool

	// Get retrieves the source registered under name.
	// Absence is not an error at this layer; callers decide how to handle a missing shader.
	//
	// Parameters:
	//   - name: the shader name to look up
	//
	// Returns:
	//   - string: the stored source, or an empty string when absent
	//   - bool: true if the name is registered
	Get(name string) (string, bool)

	// Names returns a sorted snapshot of every registered name.
	//
	// Returns:
	//   - []string: the registered names in ascending order
	Names() []string

	// Len returns the number of registered entries.
	//
	// Returns:
	//   - int: the entry count
	Len() int

	// Kind returns what this store holds.
	//
	// Returns:
	//   - StoreKind: StoreKindShader or StoreKindInclude
	Kind() StoreKind
}

var _ ShaderStore = &shaderStore{}

// NewShaderStore creates an empty ShaderStore with all specified options applied.
//
// Parameters:
//   - options: functional options for kind, logger and seed entries
//
// Returns:
//   - ShaderStore: a new, ready-to-use store
func NewShaderStore(options ...ShaderStoreBuilderOption) ShaderStore {
	s := &shaderStore{
		sources: make(map[string]string),
		kind:    StoreKindShader,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.logger == nil {
		s.logger = common.Logger()
	}
	s.logger = s.logger.With("kind", s.kind.String())

	seed := s.seed
	s.seed = nil
	for _, name := range common.SortedKeys(seed) {
		s.Register(name, seed[name])
	}
	return s
}

func (s *shaderStore) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sources[name]
	return ok
}

func (s *shaderStore) Register(name, source string) bool {
	s.mu.Lock()
	existing, ok := s.sources[name]
	if !ok {
		s.sources[name] = source
	}
	s.mu.Unlock()

	if ok {
		if existing != source {
			s.logger.Debug("discarded divergent registration", "shader", name)
		}
		return false
	}
	s.logger.Debug("registered", "shader", name, "bytes", len(source))
	return true
}

func (s *shaderStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[name]
	return src, ok
}

func (s *shaderStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return common.SortedKeys(s.sources)
}

func (s *shaderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources)
}

func (s *shaderStore) Kind() StoreKind {
	return s.kind
}
