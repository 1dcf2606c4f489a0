package shader_store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShaderSource = "A#ifdef F\nB\n#endif\nC"

func TestNewShaderStore(t *testing.T) {
	s := NewShaderStore()
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Names())
	assert.Equal(t, StoreKindShader, s.Kind())

	inc := NewShaderStore(WithKind(StoreKindInclude))
	assert.Equal(t, StoreKindInclude, inc.Kind())
	assert.Equal(t, "include", inc.Kind().String())
}

func TestRegisterFirstWriteWins(t *testing.T) {
	s := NewShaderStore()

	assert.False(t, s.Has("testShader"))
	assert.True(t, s.Register("testShader", testShaderSource))
	assert.True(t, s.Has("testShader"))

	assert.False(t, s.Register("testShader", "Z"), "divergent duplicate must be a no-op")
	got, ok := s.Get("testShader")
	require.True(t, ok)
	assert.Equal(t, testShaderSource, got)
}

func TestRegisterSamePairRepeatedly(t *testing.T) {
	s := NewShaderStore()
	for i := 0; i < 5; i++ {
		s.Register("n", "s")
	}
	assert.Equal(t, 1, s.Len())
	got, ok := s.Get("n")
	require.True(t, ok)
	assert.Equal(t, "s", got)
}

func TestGetAbsent(t *testing.T) {
	s := NewShaderStore()
	s.Register("testShader", testShaderSource)

	got, ok := s.Get("other")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestRegisterEmptySource(t *testing.T) {
	s := NewShaderStore()
	assert.True(t, s.Register("empty", ""))

	got, ok := s.Get("empty")
	assert.True(t, ok, "an empty source is still a registered entry")
	assert.Empty(t, got)
	assert.False(t, s.Register("empty", "late"))
}

func TestMarkersStoredVerbatim(t *testing.T) {
	src := "#include<helperFunctions>\n#ifdef IBL_CDF_FILTERING\nx\n#endif\n"
	s := NewShaderStore()
	s.Register("m", src)
	got, _ := s.Get("m")
	assert.Equal(t, src, got)
}

func TestNames(t *testing.T) {
	s := NewShaderStore()
	s.Register("zeta", "1")
	s.Register("alpha", "2")
	s.Register("alpha", "3")
	assert.Equal(t, []string{"alpha", "zeta"}, s.Names())
	assert.Equal(t, 2, s.Len())
}

func TestWithEntries(t *testing.T) {
	s := NewShaderStore(
		WithEntries(map[string]string{"a": "first", "b": "b"}),
		WithEntries(map[string]string{"a": "second", "c": "c"}),
	)
	assert.Equal(t, []string{"a", "b", "c"}, s.Names())
	got, _ := s.Get("a")
	assert.Equal(t, "first", got)
}

func TestConcurrentRegistration(t *testing.T) {
	s := NewShaderStore()

	const writers = 64
	var wg sync.WaitGroup
	inserted := make(chan string, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := fmt.Sprintf("source-%d", i)
			if s.Register("shared", src) {
				inserted <- src
			}
			s.Has("shared")
			s.Get("shared")
		}(i)
	}
	wg.Wait()
	close(inserted)

	var winners []string
	for src := range inserted {
		winners = append(winners, src)
	}
	require.Len(t, winners, 1, "exactly one registration may win")

	got, ok := s.Get("shared")
	require.True(t, ok)
	assert.Equal(t, winners[0], got)
	assert.Equal(t, 1, s.Len())
}
