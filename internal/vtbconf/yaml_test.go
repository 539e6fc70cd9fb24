package vtbconf

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtbond/vtbond/internal/vtberr"
)

func TestLoadMissingFileReturnsNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, vtberr.ErrNotFound)
}

func TestGenerateDefaultThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, GenerateDefault(path))

	// The generated file's placeholder keys aren't valid, but it should
	// parse and fail validation specifically on the keys, not structurally.
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "private_key")
}

func TestGenerateDefaultRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, GenerateDefault(path))
	require.Error(t, GenerateDefault(path))
}
