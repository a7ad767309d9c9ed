package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, loadDotEnv(filepath.Join(dir, "absent.env")))
	})

	t.Run("unreadable file is reported", func(t *testing.T) {
		// a directory exists but cannot be read as a file
		err := loadDotEnv(dir)
		assert.Error(t, err)
	})

	t.Run("values are loaded", func(t *testing.T) {
		path := filepath.Join(dir, "app.env")
		require.NoError(t, os.WriteFile(path, []byte("SHORTREG_DOTENV_TEST=loaded\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("SHORTREG_DOTENV_TEST") })

		require.NoError(t, loadDotEnv(path))
		assert.Equal(t, "loaded", os.Getenv("SHORTREG_DOTENV_TEST"))
	})
}
