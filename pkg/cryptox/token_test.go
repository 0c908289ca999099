package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	for _, size := range []int{TokenSize128, TokenSize256, 24} {
		token, err := GenerateToken(size)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		other, err := GenerateToken(size)
		require.NoError(t, err)
		require.NotEqual(t, token, other, "tokens should be unique")
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestGenerateNumericCode(t *testing.T) {
	t.Run("fixed length digits only", func(t *testing.T) {
		for range 50 {
			code, err := GenerateNumericCode(6)
			require.NoError(t, err)
			require.Len(t, code, 6)
			for _, c := range code {
				require.True(t, c >= '0' && c <= '9', "unexpected rune %q", c)
			}
		}
	})

	t.Run("rejects silly lengths", func(t *testing.T) {
		_, err := GenerateNumericCode(0)
		require.Error(t, err)
		_, err = GenerateNumericCode(19)
		require.Error(t, err)
	})
}

func TestFingerprint(t *testing.T) {
	fp := FingerprintToken("123456")
	require.Equal(t, fp, FingerprintToken("123456"))
	require.NotEqual(t, fp, FingerprintToken("123457"))
	require.Len(t, fp, 43)

	require.True(t, EqualFingerprint("123456", fp))
	require.False(t, EqualFingerprint("654321", fp))
}
