// Package config gathers the settings of a single asterism invocation from the environment and an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/asterism-build/asterism"
	"github.com/asterism-build/asterism/internal/logging"
	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvRemoteURL       = "ASTERISM_REMOTE_URL"
	EnvGit             = "ASTERISM_GIT"
	EnvMSBuild         = "ASTERISM_MSBUILD"
	EnvLogLevel        = "ASTERISM_LOG_LEVEL"
	EnvCopyConcurrency = "ASTERISM_COPY_CONCURRENCY"
)

// DirName is the name of the per-module directory holding asterism's state.
const DirName = ".asterism"

// DefaultCopyConcurrency is the default number of artifact files copied at once.
const DefaultCopyConcurrency = 4

// Config holds the settings of one invocation.
type Config struct {
	// WorkDir is the root module's working tree.
	WorkDir string
	// RemoteURL is the format string turning project references into clone URLs.
	RemoteURL string
	// Git is the git executable.
	Git string
	// MSBuild is an explicit MSBuild path.  Empty means detect it.
	MSBuild string
	// LogLevel is the initial log level, if one was configured.
	LogLevel *slog.Level
	// CopyConcurrency bounds concurrent artifact file copies.
	CopyConcurrency int
}

// Load reads <workDir>/.env (if present) and the process environment, in increasing order of
// precedence.
func Load(workDir string) (*Config, error) {
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, err
	}
	dotenv, err := godotenv.Read(filepath.Join(workDir, ".env"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: %w", err)
		}
		dotenv = map[string]string{}
	}
	get := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(dotenv[key])
	}

	cfg := &Config{
		WorkDir:         workDir,
		RemoteURL:       asterism.DefaultRemoteURL,
		Git:             "git",
		MSBuild:         get(EnvMSBuild),
		CopyConcurrency: DefaultCopyConcurrency,
	}
	if v := get(EnvRemoteURL); v != "" {
		if strings.Count(v, "%s") != 1 {
			return nil, fmt.Errorf("config: %s must contain exactly one %%s: %q", EnvRemoteURL, v)
		}
		cfg.RemoteURL = v
	}
	if v := get(EnvGit); v != "" {
		cfg.Git = v
	}
	if v := get(EnvLogLevel); v != "" {
		lvl, err := logging.StringToLevel(v)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = &lvl
	}
	if v := get(EnvCopyConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("config: %s must be a positive integer: %q", EnvCopyConcurrency, v)
		}
		cfg.CopyConcurrency = n
	}
	return cfg, nil
}

// Dir is the root module's state directory.
func (c *Config) Dir() string { return filepath.Join(c.WorkDir, DirName) }

// CheckoutDir holds the working trees of non-root modules.
func (c *Config) CheckoutDir() string { return filepath.Join(c.Dir(), "checkout") }

// ArtifactsDir holds the headers and libraries exported by dependencies.
func (c *Config) ArtifactsDir() string { return filepath.Join(c.Dir(), "artifacts") }

// PropertySheetPath is the location of a module's generated MSBuild property sheet.
func PropertySheetPath(moduleDir string) string {
	return filepath.Join(moduleDir, DirName, "vsprops", "Asterism.props")
}

// RegistryOptions returns the [asterism.RegistryOptions] for this configuration.
func (c *Config) RegistryOptions(lockMode bool) asterism.RegistryOptions {
	return asterism.RegistryOptions{
		RootDir:     c.WorkDir,
		CheckoutDir: c.CheckoutDir(),
		RemoteURL:   c.RemoteURL,
		LockMode:    lockMode,
	}
}
