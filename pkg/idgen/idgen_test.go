package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator(t *testing.T) {
	t.Parallel()

	gen := New()

	t.Run("GenerateFlavorID has prefix and is unique", func(t *testing.T) {
		seen := make(map[string]struct{})
		for i := 0; i < 100; i++ {
			id, err := gen.GenerateFlavorID()
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(id, "f-"))

			_, dup := seen[id]
			assert.False(t, dup, "duplicate id %s", id)
			seen[id] = struct{}{}
		}
	})

	t.Run("GenerateRequestID", func(t *testing.T) {
		id, err := gen.GenerateRequestID()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(id, "req-"))
	})

	t.Run("Default generator is a singleton", func(t *testing.T) {
		assert.Same(t, DefaultGenerator(), DefaultGenerator())
	})
}
