package configstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ParseError represents a TOML decode failure.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads the persisted config from disk. A missing file yields the
// built-in defaults.
func Load() (Config, error) {
	cfg := New()
	_, file, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}
	return loadFrom(cfg, file)
}

// LoadFile reads the config from an explicit path, still defaulting missing
// fields.
func LoadFile(path string) (Config, error) {
	return loadFrom(New(), path)
}

func loadFrom(cfg Config, file string) (Config, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			return cfg, &ParseError{Path: file, Err: decodeErr}
		}
		return cfg, &ParseError{Path: file, Err: err}
	}
	return cfg, nil
}

// Save writes the config atomically to the resolved config path.
func Save(cfg Config) error {
	dir, file, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleaned := false
	defer func() {
		if !cleaned {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, file); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	cleaned = true
	return nil
}
