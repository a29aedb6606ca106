package apikey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		key, err := New()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(key, "sx-"))
		assert.Len(t, key, len("sx-")+entropyBytes*2)
		assert.False(t, seen[key], "keys must never repeat")
		seen[key] = true
	}
}
