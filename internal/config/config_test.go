package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("PORT", "9090")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 30, cfg.ExpiryNoticeWindowDays)
	assert.Equal(t, "5067", cfg.CardNumberPrefix)
}

func TestNewConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\nSTORAGE_DRIVER=memory\n"), 0o600))
	chdir(t, dir)

	// t.Setenv restores the original values after godotenv writes them
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STORAGE_DRIVER", "")
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))
	require.NoError(t, os.Unsetenv("STORAGE_DRIVER"))

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
}

func TestNewConfig_EnvOverridesDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\n"), 0o600))
	chdir(t, dir)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestNewConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{name: "empty jwt secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "empty encryption key", env: map[string]string{"ENCRYPTION_KEY": ""}},
		{name: "empty db conn", env: map[string]string{"STORAGE_DRIVER": "postgres", "DB_CONN": ""}},
		{name: "non numeric window", env: map[string]string{"EXPIRY_NOTICE_WINDOW_DAYS": "soon"}},
		{name: "zero window", env: map[string]string{"EXPIRY_NOTICE_WINDOW_DAYS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}

func TestSMTPEnabled(t *testing.T) {
	assert.False(t, (&Config{}).SMTPEnabled())
	assert.True(t, (&Config{SMTPHost: "smtp.example.com"}).SMTPEnabled())
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent to testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(wd))
	})
}
