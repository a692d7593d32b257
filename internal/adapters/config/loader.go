// Package config loads the host configuration from dslhost.yaml.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
	Files  Files
}

// NewLoader creates a new Loader reading from the local file system.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, Files: osFiles{}}
}

// Load walks up from cwd to the first dslhost.yaml and resolves it.
// Relative directories in the file are resolved against the file's
// directory.
func (l *Loader) Load(cwd string) (*domain.Config, error) {
	configPath, data, err := l.findConfiguration(cwd)
	if err != nil {
		return nil, err
	}
	if configPath == "" {
		l.Logger.Debug("no " + domain.ConfigFileName + " found, using defaults")
		return domain.DefaultConfig(cwd), nil
	}

	var file Hostfile
	if err := decode(data, &file); err != nil {
		return nil, zerr.With(err, "path", configPath)
	}

	cfg, err := resolve(configPath, &file)
	if err != nil {
		return nil, zerr.With(err, "path", configPath)
	}
	l.Logger.Debug("loaded configuration from " + configPath)
	return cfg, nil
}

// findConfiguration returns the path and content of the nearest
// dslhost.yaml at or above cwd, or an empty path when there is none.
func (l *Loader) findConfiguration(cwd string) (string, []byte, error) {
	for dir := filepath.Clean(cwd); ; {
		candidate := filepath.Join(dir, domain.ConfigFileName)
		data, err := l.Files.ReadFile(candidate)
		switch {
		case err == nil:
			return candidate, data, nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, nil
		}
		dir = parent
	}
}

// decode is strict: unknown keys are errors.
func decode(data []byte, target *Hostfile) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
	}
	return nil
}

func resolve(configPath string, file *Hostfile) (*domain.Config, error) {
	root := filepath.Dir(configPath)
	cfg := domain.DefaultConfig(root)

	if file.BaseDirectory != "" {
		cfg.BaseDirectory = resolvePath(root, file.BaseDirectory)
	}
	if file.CacheDirectory != "" {
		cfg.CacheDirectory = resolvePath(root, file.CacheDirectory)
	}
	if file.Pattern != "" {
		if _, err := filepath.Match(file.Pattern, ""); err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfiguration, "invalid pattern"), "pattern", file.Pattern)
		}
		cfg.Pattern = file.Pattern
	}
	if file.Debounce != "" {
		d, err := time.ParseDuration(file.Debounce)
		if err != nil || d < 0 {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfiguration, "invalid debounce"), "debounce", file.Debounce)
		}
		cfg.Debounce = d
	}
	if file.PersistentCache != nil {
		cfg.PersistentCache = *file.PersistentCache
	}
	if file.ForwardConstructors != nil {
		cfg.ForwardConstructors = *file.ForwardConstructors
	}
	return cfg, nil
}

// resolvePath returns p when absolute and p joined to dir otherwise.
func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(dir, p))
}
