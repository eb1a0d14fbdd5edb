package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, "db/pg", cfg.DatabaseMigrationFolderPath)
		assert.Equal(t, 4, cfg.ProcessorWorkerCount)
		assert.False(t, cfg.AuthEnabled)
	})

	t.Run("should read the environment", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
		t.Setenv("AUTH_ENABLED", "true")

		cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
		assert.True(t, cfg.AuthEnabled)
	})

	t.Run("should read a .env file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("MODEL_FILE_PATH=/etc/clover/model.hjson\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("MODEL_FILE_PATH") })

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/etc/clover/model.hjson", cfg.ModelFilePath)
	})
}
