package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCounter skips when the encoding vocabulary cannot be loaded,
// which needs network access on a cold cache.
func newTestCounter(t *testing.T) *Counter {
	t.Helper()

	counter, err := NewCounter()
	if err != nil {
		t.Skipf("cl100k_base encoding unavailable: %v", err)
	}
	return counter
}

func TestCounter_CountTokens(t *testing.T) {
	counter := newTestCounter(t)

	t.Run("empty text has no tokens", func(t *testing.T) {
		assert.Zero(t, counter.CountTokens(""))
	})

	t.Run("counts are deterministic", func(t *testing.T) {
		text := "The quick brown fox jumps over the lazy dog."
		first := counter.CountTokens(text)
		require.Positive(t, first)
		assert.Equal(t, first, counter.CountTokens(text))
	})

	t.Run("longer text has more tokens", func(t *testing.T) {
		short := counter.CountTokens("hello world")
		long := counter.CountTokens(strings.Repeat("hello world ", 50))
		assert.Greater(t, long, short)
	})
}
