// Package home manages the on-disk layout under the SoulScribe home
// directory.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the soulscribe home directory.
	DefaultDirName = ".soulscribe"

	// DataDirName is the subdirectory for document store data.
	DataDirName = "data"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the soulscribe home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.soulscribe).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the document store data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// PidFilePath returns the path to the server pid file.
func (d *Dir) PidFilePath() string {
	return filepath.Join(d.path, "soulscribe.pid")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create data directory (this also creates the parent)
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// ExportsDir returns the directory for exported story files.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, "exports")
}

// StoryExportPath returns the path for an exported story file.
func (d *Dir) StoryExportPath(storyID, ext string) string {
	return filepath.Join(d.ExportsDir(), fmt.Sprintf("%s.%s", storyID, ext))
}

// AudioDir returns the directory for generated narration audio.
func (d *Dir) AudioDir() string {
	return filepath.Join(d.path, "audio")
}

// StoryAudioDir returns the audio directory for a specific story.
func (d *Dir) StoryAudioDir(storyID string) string {
	return filepath.Join(d.AudioDir(), storyID)
}

// ChapterAudioPath returns the path for a chapter narration file.
func (d *Dir) ChapterAudioPath(storyID string, chapterNumber int, format string) string {
	return filepath.Join(
		d.StoryAudioDir(storyID),
		fmt.Sprintf("chapter_%04d.%s", chapterNumber, format),
	)
}

// EnsureStoryAudioDir creates the audio directory for a story.
func (d *Dir) EnsureStoryAudioDir(storyID string) error {
	return os.MkdirAll(d.StoryAudioDir(storyID), 0o755)
}

// EnsureExportsDir creates the exports directory.
func (d *Dir) EnsureExportsDir() error {
	return os.MkdirAll(d.ExportsDir(), 0o755)
}
