package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/kaorin/bilisync/internal/log"
)

// envLookupFunc matches os.LookupEnv's shape, injectable for tests.
type envLookupFunc func(key string) (string, bool)

// Loader loads bilisyncd's config document with ENV > File > Defaults
// precedence, modeled on the teacher's internal/config.Loader.
type Loader struct {
	path            string
	lookupEnvFn     envLookupFunc
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader builds a Loader reading path, creating it with Default() on
// first run.
func NewLoader(path string) *Loader {
	return NewLoaderWithEnv(path, os.LookupEnv)
}

// NewLoaderWithEnv builds a Loader with an injected environment source,
// for tests that don't want to touch process-global env vars.
func NewLoaderWithEnv(path string, lookup envLookupFunc) *Loader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Loader{path: path, lookupEnvFn: lookup, ConsumedEnvKeys: make(map[string]struct{})}
}

// Load reads the document (creating it with defaults if absent), applies
// env-var overrides, validates, and returns the result.
func (l *Loader) Load() (FileConfig, error) {
	cfg, err := l.loadFile()
	if err != nil {
		return FileConfig{}, err
	}

	l.applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

func (l *Loader) loadFile() (FileConfig, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		cfg := Default()
		if werr := writeDefault(l.path, cfg); werr != nil {
			return FileConfig{}, fmt.Errorf("config: write default document: %w", werr)
		}
		return cfg, nil
	}
	if err != nil {
		return FileConfig{}, fmt.Errorf("config: read %s: %w", l.path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("config: parse %s: %w", l.path, err)
	}
	return cfg, nil
}

// writeDefault persists cfg to path atomically, matching
// internal/artifact's renameio-backed write pattern
// (_examples/ManuGH-xg2g/internal/jobs/write_unix.go).
func writeDefault(path string, cfg FileConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return err
	}
	defer func() { _ = pendingFile.Cleanup() }()
	if _, err := pendingFile.Write(data); err != nil {
		return err
	}
	return pendingFile.CloseAtomicallyReplace()
}

// applyEnv overrides the small set of secret/operational fields that make
// sense to inject via environment rather than the document (spec.md §6's
// credential block and the admin bearer token chief among them).
func (l *Loader) applyEnv(cfg *FileConfig) {
	logger := log.WithComponent("config")

	if v, ok := l.lookupEnv("BILISYNC_AUTH_TOKEN"); ok {
		cfg.AuthToken = v
	}
	if v, ok := l.lookupEnv("BILISYNC_BIND_ADDRESS"); ok {
		cfg.BindAddress = v
	}
	if v, ok := l.lookupEnv("BILISYNC_INTERVAL"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Interval = n
		} else {
			logger.Warn().Str("value", v).Msg("BILISYNC_INTERVAL is not an integer, ignoring")
		}
	}
	if v, ok := l.lookupEnv("BILISYNC_SESSDATA"); ok {
		cfg.Credential.SESSDATA = v
	}
	if v, ok := l.lookupEnv("BILISYNC_BILI_JCT"); ok {
		cfg.Credential.BiliJCT = v
	}
	if v, ok := l.lookupEnv("BILISYNC_DEDE_USER_ID"); ok {
		cfg.Credential.DedeUserID = v
	}
	if v, ok := l.lookupEnv("BILISYNC_ACCESS_KEY"); ok {
		cfg.Credential.AccessKey = v
	}
	if v, ok := l.lookupEnv("BILISYNC_REFRESH_TOKEN"); ok {
		cfg.Credential.RefreshTok = v
	}
	if v, ok := l.lookupEnv("BILISYNC_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := l.lookupEnv("BILISYNC_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}

func (l *Loader) lookupEnv(key string) (string, bool) {
	l.ConsumedEnvKeys[key] = struct{}{}
	return l.lookupEnvFn(key)
}
