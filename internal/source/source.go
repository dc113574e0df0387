// Package source parses the location strings of configured template sources
package source

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultRef is used when a remote location names no branch
const DefaultRef = "main"

// Repository is a parsed remote repository location
type Repository struct {
	Host     string // github.com or a GitHub Enterprise hostname
	Owner    string
	Repo     string
	Ref      string // branch, tag or commit
	Original string
}

var (
	// owner/repo
	shorthand = regexp.MustCompile(`^([a-zA-Z0-9_-]+)/([a-zA-Z0-9_.-]+)$`)

	// owner/repo@ref
	shorthandWithRef = regexp.MustCompile(`^([a-zA-Z0-9_-]+)/([a-zA-Z0-9_.-]+)@(.+)$`)
)

// ParseRepository parses a remote location. Supported forms are owner/repo,
// owner/repo@ref, https://github.com/owner/repo[/tree/ref] and the same URL
// on a GitHub Enterprise host. A non-empty branch overrides any ref found in
// the location.
func ParseRepository(location, branch string) (*Repository, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("empty repository location")
	}

	var repo *Repository
	switch {
	case strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://"):
		r, err := parseRepositoryURL(location)
		if err != nil {
			return nil, err
		}
		repo = r
	case shorthandWithRef.MatchString(location):
		m := shorthandWithRef.FindStringSubmatch(location)
		repo = &Repository{Host: "github.com", Owner: m[1], Repo: m[2], Ref: m[3]}
	case shorthand.MatchString(location):
		m := shorthand.FindStringSubmatch(location)
		repo = &Repository{Host: "github.com", Owner: m[1], Repo: m[2], Ref: DefaultRef}
	default:
		return nil, fmt.Errorf("unable to parse repository location: %s", location)
	}

	repo.Repo = strings.TrimSuffix(repo.Repo, ".git")
	repo.Original = location
	if branch != "" {
		repo.Ref = branch
	}
	return repo, nil
}

// parseRepositoryURL handles github.com and enterprise web URLs
func parseRepositoryURL(input string) (*Repository, error) {
	u, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL: %s", input)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid repository URL: %s", input)
	}

	host := strings.ToLower(u.Host)
	if host == "www.github.com" {
		host = "github.com"
	}

	repo := &Repository{
		Host:  host,
		Owner: parts[0],
		Repo:  parts[1],
		Ref:   DefaultRef,
	}

	// github.com/owner/repo/tree/ref
	if len(parts) >= 4 && (parts[2] == "tree" || parts[2] == "blob") {
		repo.Ref = parts[3]
	}

	return repo, nil
}

// IsEnterprise returns true if this is a GitHub Enterprise repository
func (r *Repository) IsEnterprise() bool {
	return r.Host != "" && r.Host != "github.com"
}

// String returns owner/repo, with @ref when the ref is not the default
func (r *Repository) String() string {
	s := r.Owner + "/" + r.Repo
	if r.IsEnterprise() {
		s = r.Host + "/" + s
	}
	if r.Ref != "" && r.Ref != DefaultRef {
		s += "@" + r.Ref
	}
	return s
}

// WebURL returns the browser URL of the repository
func (r *Repository) WebURL() string {
	host := r.Host
	if host == "" {
		host = "github.com"
	}
	return fmt.Sprintf("https://%s/%s/%s", host, r.Owner, r.Repo)
}

// IsLocalLocation reports whether a location string names a filesystem path
func IsLocalLocation(input string) bool {
	return strings.HasPrefix(input, ".") ||
		strings.HasPrefix(input, "/") ||
		strings.HasPrefix(input, "~") ||
		(len(input) >= 2 && input[1] == ':')
}

// ResolveLocal turns a local location into an absolute path. "~" expands to
// the home directory and relative paths resolve against workspaceRoot.
func ResolveLocal(location, workspaceRoot string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("empty local location")
	}

	if location == "~" || strings.HasPrefix(location, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(location, "~")), nil
	}

	if filepath.IsAbs(location) {
		return filepath.Clean(location), nil
	}

	if workspaceRoot == "" {
		abs, err := filepath.Abs(location)
		if err != nil {
			return "", fmt.Errorf("invalid local path: %w", err)
		}
		return abs, nil
	}
	return filepath.Join(workspaceRoot, location), nil
}
