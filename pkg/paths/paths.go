// Package paths resolves the platform directories agentdeps reads and writes:
// the repository cache, the configuration directory and the log directory.
// Locations follow the XDG base directory conventions on Linux and the native
// conventions on macOS and Windows, with environment overrides for each.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// Environment variables overriding the default locations
const (
	EnvCacheDir  = "AGENTDEPS_CACHE_DIR"
	EnvConfigDir = "AGENTDEPS_CONFIG_DIR"
	EnvLogDir    = "AGENTDEPS_LOG_DIR"
)

const (
	// AppDirName is the directory name used under every base directory
	AppDirName = "agentdeps"

	// ConfigFileName is the global configuration file
	ConfigFileName = "config.yaml"

	// DependenciesFileName is the dependency list, both global and per project
	DependenciesFileName = "agents.yaml"

	// LogFileName is the durable error log
	LogFileName = "agentdeps.log"

	reposSubdir = "repos"
	logsSubdir  = "logs"
)

// CacheDir returns the root directory holding one working copy per cache key
func CacheDir() string {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		return ExpandHome(dir)
	}
	return filepath.Join(xdg.CacheHome, AppDirName, reposSubdir)
}

// ConfigDir returns the directory holding config.yaml and the global agents.yaml
func ConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return ExpandHome(dir)
	}
	return filepath.Join(xdg.ConfigHome, AppDirName)
}

// ConfigFile returns the path of the global configuration file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// GlobalDependenciesFile returns the path of the global agents.yaml
func GlobalDependenciesFile() string {
	return filepath.Join(ConfigDir(), DependenciesFileName)
}

// ProjectDependenciesFile returns the agents.yaml path inside projectDir
func ProjectDependenciesFile(projectDir string) string {
	return filepath.Join(projectDir, DependenciesFileName)
}

// LogDir returns the directory of the durable log
func LogDir() string {
	if dir := os.Getenv(EnvLogDir); dir != "" {
		return ExpandHome(dir)
	}
	return filepath.Join(xdg.StateHome, AppDirName, logsSubdir)
}

// LogFile returns the path of the durable log file
func LogFile() string {
	return filepath.Join(LogDir(), LogFileName)
}

// ExpandHome expands a leading "~" to the user's home directory.
// Paths without the prefix, and "~user" forms, are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return ExpandHomeWith(path, home)
}

// ExpandHomeWith expands a leading "~" against an explicit home directory
func ExpandHomeWith(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(home, path[2:])
	}
	return path
}
