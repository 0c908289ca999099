package cryptox_test

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseEd25519Key(t *testing.T) {
	pemBytes, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	key, err := cryptox.ParseEd25519Key(pemBytes)
	require.NoError(t, err)
	require.Len(t, key, ed25519.PrivateKeySize)

	_, err = cryptox.ParseEd25519Key([]byte("not pem"))
	require.Error(t, err)
}

func TestLoadOrCreateEd25519Key(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "session.pem")

	first, err := cryptox.LoadOrCreateEd25519Key(path)
	require.NoError(t, err)

	second, err := cryptox.LoadOrCreateEd25519Key(path)
	require.NoError(t, err)
	require.True(t, first.Equal(second), "key should be persisted and reloaded")

	ephemeral, err := cryptox.LoadOrCreateEd25519Key("")
	require.NoError(t, err)
	require.False(t, first.Equal(ephemeral))
}
