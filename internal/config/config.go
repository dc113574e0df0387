package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kennyg/folio/internal/artifact"
)

// Following the dot-config specification: https://dot-config.github.io/
// User config:    ~/.config/folio/ (or $XDG_CONFIG_HOME/folio/)
// Project config: .config/folio/ (in workspace root)

const (
	// ConfigDir is the subdirectory name under .config
	ConfigDir = "folio"
	// StateFile is the filename of a scope's key-value state
	StateFile = "state.json"
	// ConfigFile is the filename of the YAML settings
	ConfigFile = "config.yaml"
)

// Paths holds the various paths folio uses
type Paths struct {
	// Home is the user's home directory
	Home string

	// UserConfigDir is ~/.config/folio (or $XDG_CONFIG_HOME/folio)
	UserConfigDir string
	// GlobalStateFile is ~/.config/folio/state.json
	GlobalStateFile string

	// Workspace is the project root templates are installed into
	Workspace string
	// ProjectConfigDir is <workspace>/.config/folio
	ProjectConfigDir string
	// WorkspaceStateFile is <workspace>/.config/folio/state.json
	WorkspaceStateFile string

	// InstallRoot is <workspace>/.github
	InstallRoot string
}

// GetPaths returns paths for the workspace containing the current directory.
// Without a marker (.config/folio or .git) the current directory is used.
func GetPaths() (*Paths, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root := findProjectRoot(cwd)
	if root == "" {
		root = cwd
	}
	return GetPathsForWorkspace(root)
}

// GetPathsForWorkspace returns paths rooted at an explicit workspace
func GetPathsForWorkspace(workspace string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}

	// Follow XDG Base Directory spec
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}
	userConfigDir := filepath.Join(configHome, ConfigDir)
	projectConfigDir := filepath.Join(abs, ".config", ConfigDir)

	return &Paths{
		Home:               home,
		UserConfigDir:      userConfigDir,
		GlobalStateFile:    filepath.Join(userConfigDir, StateFile),
		Workspace:          abs,
		ProjectConfigDir:   projectConfigDir,
		WorkspaceStateFile: filepath.Join(projectConfigDir, StateFile),
		InstallRoot:        filepath.Join(abs, artifact.InstallRootDir),
	}, nil
}

// UserConfigFile returns the user-level config.yaml path
func (p *Paths) UserConfigFile() string {
	return filepath.Join(p.UserConfigDir, ConfigFile)
}

// ProjectConfigFile returns the workspace-level config.yaml path
func (p *Paths) ProjectConfigFile() string {
	return filepath.Join(p.ProjectConfigDir, ConfigFile)
}

// InstallDir returns the directory holding installed artifacts of a kind
func (p *Paths) InstallDir(kind artifact.Kind) string {
	return filepath.Join(p.InstallRoot, KindDir(kind))
}

// InstallPath returns the expected on-disk location of an artifact
func (p *Paths) InstallPath(kind artifact.Kind, name string) string {
	return filepath.Join(p.InstallDir(kind), name)
}

// EnsureDirs creates the config directories
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.UserConfigDir, p.ProjectConfigDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// findProjectRoot walks up from dir looking for .config/folio or .git
func findProjectRoot(dir string) string {
	for {
		candidate := filepath.Join(dir, ".config", ConfigDir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return dir
		}

		// Also check for .git to stop at repo root
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}

	return ""
}
