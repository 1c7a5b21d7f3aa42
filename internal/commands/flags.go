package commands

import (
	"os"
	"path/filepath"

	"github.com/colonyops/cadence/internal/core/config"
)

// LogFileDefault is the --log-file value that selects DefaultLogFile.
const LogFileDefault = "default"

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// ActorID overrides the configured actor for this invocation.
	ActorID string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// LogPath is the file the logger writes to, empty for stderr.
func (f *Flags) LogPath() string {
	if f.LogFile == LogFileDefault {
		return DefaultLogFile()
	}
	return f.LogFile
}

// DefaultConfigPath is config.yaml under $XDG_CONFIG_HOME/cadence.
func DefaultConfigPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.yaml")
}

// DefaultDataDir is $XDG_DATA_HOME/cadence. It holds cadence.db.
func DefaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

// DefaultLogFile is cadence.log under $XDG_STATE_HOME/cadence, where
// long-running watch processes usually send their logs.
func DefaultLogFile() string {
	return filepath.Join(xdgDir("XDG_STATE_HOME", ".local", "state"), "cadence.log")
}

// xdgDir returns the cadence directory under the base named by env, or under
// home/fallback when env is unset.
func xdgDir(env string, fallback ...string) string {
	base := os.Getenv(env)
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(append([]string{home}, fallback...)...)
	}
	return filepath.Join(base, "cadence")
}
