package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateFile(t *testing.T) {
	t.Run("ValidPartialOverride", func(t *testing.T) {
		path := writeConfigFile(t, `
checker:
  batch_size: 5
  interval: 2m
render:
  behavior: on_block
budget:
  limits:
    target: 10
`)
		problems, err := ValidateFile(path)
		require.NoError(t, err)
		assert.Empty(t, problems)
	})

	t.Run("CommentOnlyFile", func(t *testing.T) {
		path := writeConfigFile(t, "# nothing overridden yet\n")
		problems, err := ValidateFile(path)
		require.NoError(t, err)
		assert.Empty(t, problems)
	})

	t.Run("BadEnumValue", func(t *testing.T) {
		path := writeConfigFile(t, `
render:
  behavior: sometimes
`)
		problems, err := ValidateFile(path)
		require.NoError(t, err)
		require.NotEmpty(t, problems)
	})

	t.Run("PortOutOfRange", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  port: 99999
`)
		problems, err := ValidateFile(path)
		require.NoError(t, err)
		require.NotEmpty(t, problems)
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		path := writeConfigFile(t, "checker: [unclosed\n")
		_, err := ValidateFile(path)
		require.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := ValidateFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}
