package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kennyg/folio/internal/artifact"
)

// EnvPrefix is the prefix of environment overrides, e.g. FOLIO_FETCH_TIMEOUT
const EnvPrefix = "FOLIO_"

// Settings is the merged configuration surface
type Settings struct {
	// Sources holds the built-in sources followed by accepted user sources
	Sources []SourceConfig
	// Rejected holds user sources that failed validation or were duplicates
	Rejected []*SourceConfigError

	ConfirmProfileSwitch bool
	BackupRetentionDays  int
	WatchDebounce        time.Duration
	FetchTimeout         time.Duration
}

// rawSettings mirrors the YAML document before sources are normalized
type rawSettings struct {
	Sources              []rawSource   `koanf:"sources"`
	ConfirmProfileSwitch bool          `koanf:"confirm_profile_switch"`
	BackupRetentionDays  int           `koanf:"backup_retention_days"`
	WatchDebounce        time.Duration `koanf:"watch_debounce"`
	FetchTimeout         time.Duration `koanf:"fetch_timeout"`
}

type rawSource struct {
	Name     string            `koanf:"name"`
	Kind     string            `koanf:"kind"`
	Location string            `koanf:"location"`
	Branch   string            `koanf:"branch"`
	Paths    map[string]string `koanf:"paths"`
	Enabled  *bool             `koanf:"enabled"`
}

// LoadOptions overrides config file locations (for testing)
type LoadOptions struct {
	UserConfigPath    string
	ProjectConfigPath string
}

// GetDefaults returns the default value of every scalar key
func GetDefaults() map[string]any {
	return map[string]any{
		"confirm_profile_switch": true,
		"backup_retention_days":  7,
		"watch_debounce":         500 * time.Millisecond,
		"fetch_timeout":          30 * time.Second,
	}
}

// Load reads settings for the given paths.
// Priority: env (FOLIO_*) > project config.yaml > user config.yaml > defaults.
func Load(p *Paths) (*Settings, error) {
	return LoadWithOptions(LoadOptions{
		UserConfigPath:    p.UserConfigFile(),
		ProjectConfigPath: p.ProjectConfigFile(),
	})
}

// LoadWithOptions loads settings with explicit config file locations
func LoadWithOptions(opts LoadOptions) (*Settings, error) {
	k := koanf.New(".")

	for key, value := range GetDefaults() {
		k.Set(key, value)
	}

	if err := loadYAMLConfig(k, opts.UserConfigPath, "user"); err != nil {
		return nil, err
	}
	if err := loadYAMLConfig(k, opts.ProjectConfigPath, "project"); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	var raw rawSettings
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return finalize(raw), nil
}

// loadYAMLConfig loads a config file if it exists
func loadYAMLConfig(k *koanf.Koanf, path, configType string) error {
	if !fileExists(path) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s config %s: %w", configType, path, err)
	}
	return nil
}

// finalize normalizes user sources and merges them with the built-ins
func finalize(raw rawSettings) *Settings {
	var (
		user     []SourceConfig
		rejected []*SourceConfigError
	)
	for _, rs := range raw.Sources {
		sc, err := rs.toConfig()
		if err != nil {
			rejected = append(rejected, &SourceConfigError{Name: rs.Name, Location: rs.Location, Err: err})
			continue
		}
		user = append(user, sc)
	}

	merged, dupes := MergeSources(BuiltinSources(), user)

	s := &Settings{
		Sources:              merged,
		Rejected:             append(rejected, dupes...),
		ConfirmProfileSwitch: raw.ConfirmProfileSwitch,
		BackupRetentionDays:  raw.BackupRetentionDays,
		WatchDebounce:        raw.WatchDebounce,
		FetchTimeout:         raw.FetchTimeout,
	}
	if s.BackupRetentionDays < 0 {
		s.BackupRetentionDays = 0
	}
	if s.WatchDebounce <= 0 {
		s.WatchDebounce = 500 * time.Millisecond
	}
	return s
}

func (rs rawSource) toConfig() (SourceConfig, error) {
	sc := SourceConfig{
		Name:     strings.TrimSpace(rs.Name),
		Kind:     SourceKind(strings.ToLower(strings.TrimSpace(rs.Kind))),
		Location: strings.TrimSpace(rs.Location),
		Branch:   rs.Branch,
		Enabled:  rs.Enabled == nil || *rs.Enabled,
	}
	if len(rs.Paths) > 0 {
		sc.Paths = make(map[artifact.Kind]string, len(rs.Paths))
		for name, p := range rs.Paths {
			kind, err := artifact.ParseKind(name)
			if err != nil {
				return SourceConfig{}, err
			}
			sc.Paths[kind] = strings.Trim(p, "/")
		}
	}
	return sc, nil
}

// fileExists returns true if the file exists and is readable
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// envTransform converts environment variable names to config keys
// Example: FOLIO_FETCH_TIMEOUT -> fetch_timeout
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}
