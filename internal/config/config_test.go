package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ragcore/ragcore/internal/obslog"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	require.Equal(t, "INFO", cfg.LogLevel)
	require.Equal(t, "console", cfg.LogFormat)
	require.Nil(t, cfg.CORSOrigins)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: DEBUG
log_format: json
cors_origins:
  - https://example.com
embedding_provider:
  api_key: secret
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "DEBUG", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, []string{"https://example.com"}, cfg.CORSOrigins)
	require.Equal(t, "secret", cfg.EmbeddingProvider.APIKey)
}

func TestStoreGetSet(t *testing.T) {
	s := NewStore(Default())
	require.Equal(t, "INFO", s.Get().LogLevel)

	s.Set(Config{LogLevel: "ERROR", LogFormat: "json"})
	require.Equal(t, "ERROR", s.Get().LogLevel)
	require.Equal(t, obslog.LevelError, s.LogLevel())
	require.Equal(t, obslog.FormatJSON, s.LogFormat())
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: INFO\n"), 0o644))

	store := NewStore(Default())
	w, err := NewWatcher(path, store, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("log_level: DEBUG\n"), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Get().LogLevel == "DEBUG" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("config was not reloaded after file write")
}
