package dotenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsFile(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	err := os.WriteFile(envFile, []byte("KNOWLEDGE_DOTENV_TEST_KEY=from-file\n"), 0600)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = os.Unsetenv("KNOWLEDGE_DOTENV_TEST_KEY")
	})

	err = Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-file", os.Getenv("KNOWLEDGE_DOTENV_TEST_KEY"))
}

func TestLoad_MissingFileTolerated(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.NoError(t, err)
}

func TestLoad_DoesNotOverrideEnvironment(t *testing.T) {
	t.Setenv("KNOWLEDGE_DOTENV_TEST_KEY", "from-env")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	err := os.WriteFile(envFile, []byte("KNOWLEDGE_DOTENV_TEST_KEY=from-file\n"), 0600)
	require.NoError(t, err)

	err = Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-env", os.Getenv("KNOWLEDGE_DOTENV_TEST_KEY"))
}

func TestLoad_UnreadablePath(t *testing.T) {
	// A directory opens but cannot be parsed as an env file.
	err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestGetenv(t *testing.T) {
	t.Setenv("KNOWLEDGE_DOTENV_GETENV_KEY", "direct")
	assert.Equal(t, "direct", Getenv("KNOWLEDGE_DOTENV_GETENV_KEY"))
	assert.Equal(t, "", Getenv("KNOWLEDGE_DOTENV_ABSENT_KEY"))
}
