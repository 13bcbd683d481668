package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"keyward/internal/store"
)

// testKDF keeps scrypt fast in tests.
var testKDF = store.KDFParams{N: 1 << 10, R: 8, P: 1}

func openStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "db", "keyward.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func openCipher(t *testing.T, root string) *store.Cipher {
	t.Helper()
	c, err := store.OpenCipher(root, "correct horse", testKDF)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}
