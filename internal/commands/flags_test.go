package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPaths_FollowXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")

	assert.Equal(t, filepath.Join("/xdg/config", "cadence", "config.yaml"), DefaultConfigPath())
	assert.Equal(t, filepath.Join("/xdg/data", "cadence"), DefaultDataDir())
	assert.Equal(t, filepath.Join("/xdg/state", "cadence", "cadence.log"), DefaultLogFile())
}

func TestDefaultPaths_HomeFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")

	assert.Equal(t, filepath.Join(home, ".local", "share", "cadence"), DefaultDataDir())
	assert.Equal(t, filepath.Join(home, ".local", "state", "cadence", "cadence.log"), DefaultLogFile())
}

func TestFlags_LogPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/xdg/state")

	assert.Empty(t, (&Flags{}).LogPath())
	assert.Equal(t, "/tmp/cadence.log", (&Flags{LogFile: "/tmp/cadence.log"}).LogPath())
	assert.Equal(t, DefaultLogFile(), (&Flags{LogFile: LogFileDefault}).LogPath())
}
