package ghclient

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Tier identifies where a credential came from
type Tier int

const (
	// TierNone means requests go out unauthenticated (60 req/hr)
	TierNone Tier = iota
	// TierEnv is GITHUB_TOKEN or GH_TOKEN
	TierEnv
	// TierSession is the gh CLI's stored session
	TierSession
)

func (t Tier) String() string {
	switch t {
	case TierEnv:
		return "environment"
	case TierSession:
		return "gh session"
	default:
		return "none"
	}
}

// Credentials is a resolved token and its origin
type Credentials struct {
	Token string
	Tier  Tier
}

// ResolveCredentials returns the first available credential for host.
// It never prompts and never fails; absence yields TierNone.
func ResolveCredentials(host string) Credentials {
	// 1. GITHUB_TOKEN env var
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return Credentials{Token: token, Tier: TierEnv}
	}

	// 2. GH_TOKEN env var (gh CLI compat)
	if token := os.Getenv("GH_TOKEN"); token != "" {
		return Credentials{Token: token, Tier: TierEnv}
	}

	// 3. Try gh CLI config
	if token := readGhToken(ghConfigDir(), host); token != "" {
		return Credentials{Token: token, Tier: TierSession}
	}

	return Credentials{Tier: TierNone}
}

// ghHostsConfig represents the gh CLI hosts.yml config
type ghHostsConfig map[string]struct {
	OAuthToken string `yaml:"oauth_token"`
}

// ghConfigDir returns the gh CLI config directory
func ghConfigDir() string {
	if dir := os.Getenv("GH_CONFIG_DIR"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "gh")
}

// readGhToken reads the token for host from gh CLI hosts.yml
func readGhToken(dir, host string) string {
	if dir == "" {
		return ""
	}
	if host == "" || host == "api.github.com" {
		host = "github.com"
	}

	data, err := os.ReadFile(filepath.Join(dir, "hosts.yml"))
	if err != nil {
		return ""
	}
	var hosts ghHostsConfig
	if err := yaml.Unmarshal(data, &hosts); err != nil {
		return ""
	}
	if h, ok := hosts[host]; ok {
		return h.OAuthToken
	}
	return ""
}
