package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kennyg/folio/internal/artifact"
)

// SourceKind selects the provider implementation for a source
type SourceKind string

const (
	SourceRemote SourceKind = "remote"
	SourceLocal  SourceKind = "local"
)

// SourceConfig describes one configured template source
type SourceConfig struct {
	Name     string                   `koanf:"name" json:"name"`
	Kind     SourceKind               `koanf:"kind" json:"kind"`
	Location string                   `koanf:"location" json:"location"`
	Branch   string                   `koanf:"branch" json:"branch,omitempty"`
	Paths    map[artifact.Kind]string `koanf:"paths" json:"paths"`
	Enabled  bool                     `koanf:"enabled" json:"enabled"`

	// Builtin sources cannot be removed and always win conflicts
	Builtin bool `koanf:"-" json:"builtin,omitempty"`
}

// Kinds returns the kinds this source scans, in display order
func (c SourceConfig) Kinds() []artifact.Kind {
	var kinds []artifact.Kind
	for _, k := range artifact.AllKinds() {
		if _, ok := c.Paths[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Built-in source names
const (
	BuiltinAwesomeCopilot = "awesome-copilot"
	BuiltinAnthropic      = "anthropic-skills"
)

// BuiltinSources returns the two sources that always exist
func BuiltinSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:     BuiltinAwesomeCopilot,
			Kind:     SourceRemote,
			Location: "github/awesome-copilot",
			Branch:   "main",
			Paths:    DefaultPaths(),
			Enabled:  true,
			Builtin:  true,
		},
		{
			Name:     BuiltinAnthropic,
			Kind:     SourceRemote,
			Location: "anthropics/skills",
			Branch:   "main",
			Paths:    map[artifact.Kind]string{artifact.KindSkill: "skills"},
			Enabled:  true,
			Builtin:  true,
		},
	}
}

// ErrDuplicateSource marks a source whose name or location is already taken
var ErrDuplicateSource = errors.New("duplicate source")

// SourceConfigError reports a rejected source entry
type SourceConfigError struct {
	Name     string
	Location string
	Err      error
}

func (e *SourceConfigError) Error() string {
	id := e.Name
	if id == "" {
		id = e.Location
	}
	return fmt.Sprintf("source %q: %v", id, e.Err)
}

func (e *SourceConfigError) Unwrap() error {
	return e.Err
}

// Validate checks a single source entry for structural problems
func (c SourceConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(c.Location) == "" {
		return fmt.Errorf("location is required")
	}
	switch c.Kind {
	case SourceRemote, SourceLocal:
	default:
		return fmt.Errorf("unknown source kind %q (want remote or local)", c.Kind)
	}
	for k, p := range c.Paths {
		if _, err := artifact.ParseKind(string(k)); err != nil {
			return err
		}
		if strings.Contains(filepath.ToSlash(p), "..") {
			return fmt.Errorf("path for %s escapes the source: %s", k, p)
		}
	}
	return nil
}

// MergeSources merges user sources into the built-in set. Malformed entries
// and entries duplicating an earlier name or location are rejected; the
// rejections are returned alongside the accepted list and are never fatal.
func MergeSources(builtin, user []SourceConfig) ([]SourceConfig, []*SourceConfigError) {
	var (
		merged    []SourceConfig
		rejected  []*SourceConfigError
		names     = make(map[string]bool)
		locations = make(map[string]bool)
	)

	accept := func(c SourceConfig) {
		if len(c.Paths) == 0 {
			c.Paths = DefaultPaths()
		}
		merged = append(merged, c)
		names[strings.ToLower(c.Name)] = true
		locations[normalizeLocation(c.Location)] = true
	}

	for _, c := range builtin {
		accept(c)
	}

	for _, c := range user {
		c.Builtin = false
		if err := c.Validate(); err != nil {
			rejected = append(rejected, &SourceConfigError{Name: c.Name, Location: c.Location, Err: err})
			continue
		}
		if names[strings.ToLower(c.Name)] {
			rejected = append(rejected, &SourceConfigError{
				Name: c.Name, Location: c.Location,
				Err: fmt.Errorf("%w: name already in use", ErrDuplicateSource),
			})
			continue
		}
		if locations[normalizeLocation(c.Location)] {
			rejected = append(rejected, &SourceConfigError{
				Name: c.Name, Location: c.Location,
				Err: fmt.Errorf("%w: location already configured", ErrDuplicateSource),
			})
			continue
		}
		accept(c)
	}

	return merged, rejected
}

// normalizeLocation makes equivalent spellings of one location compare equal
func normalizeLocation(loc string) string {
	loc = strings.ToLower(strings.TrimSpace(loc))
	loc = strings.TrimPrefix(loc, "https://")
	loc = strings.TrimPrefix(loc, "http://")
	loc = strings.TrimPrefix(loc, "github.com/")
	loc = strings.TrimSuffix(loc, ".git")
	return strings.TrimRight(loc, "/")
}
