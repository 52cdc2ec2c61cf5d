package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/asterism-build/asterism"
	"github.com/asterism-build/asterism/internal/config"
	"github.com/asterism-build/asterism/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvRemoteURL, config.EnvGit, config.EnvMSBuild,
		config.EnvLogLevel, config.EnvCopyConcurrency} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, asterism.DefaultRemoteURL, cfg.RemoteURL)
	assert.Equal(t, "git", cfg.Git)
	assert.Empty(t, cfg.MSBuild)
	assert.Nil(t, cfg.LogLevel)
	assert.Equal(t, config.DefaultCopyConcurrency, cfg.CopyConcurrency)
	assert.Equal(t, filepath.Join(dir, ".asterism", "checkout"), cfg.CheckoutDir())
	assert.Equal(t, filepath.Join(dir, ".asterism", "artifacts"), cfg.ArtifactsDir())

	opts := cfg.RegistryOptions(true)
	assert.Equal(t, dir, opts.RootDir)
	assert.True(t, opts.LockMode)
}

func TestLoadDotenv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"ASTERISM_REMOTE_URL=git@example.com:%s.git\n"+
			"ASTERISM_LOG_LEVEL=debug\n"+
			"ASTERISM_COPY_CONCURRENCY=8\n"+
			"ASTERISM_GIT=/opt/git/bin/git\n"), 0o666))
	t.Setenv(config.EnvGit, "/usr/bin/git")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "git@example.com:%s.git", cfg.RemoteURL)
	require.NotNil(t, cfg.LogLevel)
	assert.Equal(t, logging.LevelDebug, *cfg.LogLevel)
	assert.Equal(t, 8, cfg.CopyConcurrency)
	// The process environment wins over .env.
	assert.Equal(t, "/usr/bin/git", cfg.Git)
}

func TestLoadInvalid(t *testing.T) {
	for _, tc := range []struct {
		key, value string
	}{
		{config.EnvRemoteURL, "https://example.com/fixed.git"},
		{config.EnvLogLevel, "loud"},
		{config.EnvCopyConcurrency, "0"},
		{config.EnvCopyConcurrency, "many"},
	} {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := config.Load(t.TempDir())
			assert.Error(t, err)
		})
	}
}
