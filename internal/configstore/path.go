package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const configFileName = "config.toml"

// GetConfigPath resolves the policyprobe configuration directory and file path
// using XDG rules with a fallback to ~/.config/policyprobe/config.toml. The
// POLICYPROBE_HOME environment variable overrides both.
func GetConfigPath() (string, string, error) {
	if override := strings.TrimSpace(os.Getenv("POLICYPROBE_HOME")); override != "" {
		dir := filepath.Clean(override)
		if !filepath.IsAbs(dir) {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return "", "", fmt.Errorf("resolve POLICYPROBE_HOME %q: %w", override, err)
			}
			dir = abs
		}
		return dir, filepath.Join(dir, configFileName), nil
	}

	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base != "" {
		dir := filepath.Join(base, "policyprobe")
		return dir, filepath.Join(dir, configFileName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		if err == nil {
			err = fmt.Errorf("home directory not found")
		}
		return "", "", fmt.Errorf("resolve home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "policyprobe")
	return dir, filepath.Join(dir, configFileName), nil
}
