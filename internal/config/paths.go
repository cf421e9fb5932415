package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names a config file explicitly
	EnvConfigPath = "ECHELON_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "echelon.yaml"
	// ConfigDirName is the per-user and system directory name
	ConfigDirName = "echelon"
)

// searchPaths lists config candidates, highest priority first. Entries
// whose environment variable is unset are left out.
func searchPaths() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	if abs, err := filepath.Abs(ConfigFileName); err == nil {
		paths = append(paths, abs)
	} else {
		paths = append(paths, ConfigFileName)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigDirName, "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// FindConfigPath returns the first existing candidate from searchPaths, or
// "" when there is none
func FindConfigPath() string {
	for _, p := range searchPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// EnsureConfigDir creates the parent directory of configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0o755)
}
