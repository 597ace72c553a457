package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)

	_, err = RandomToken(0)
	assert.Error(t, err)
}

func TestNumericCode(t *testing.T) {
	for _, length := range []int{4, 6, 10} {
		code, err := NumericCode(length)
		require.NoError(t, err)
		assert.Len(t, code, length)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "non-digit %q in %s", r, code)
		}
	}

	_, err := NumericCode(0)
	assert.Error(t, err)
}

func TestHashesAndEqual(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))

	assert.Equal(t, KeyedHash("k", "123456"), KeyedHash("k", "123456"))
	assert.NotEqual(t, KeyedHash("k1", "123456"), KeyedHash("k2", "123456"))

	assert.True(t, Equal("x", "x"))
	assert.False(t, Equal("x", "y"))
	assert.False(t, Equal("x", "xx"))
}
