// Package ghclient provides a GitHub API client using go-github
package ghclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v67/github"
	"golang.org/x/oauth2"
)

// Client wraps the go-github client
type Client struct {
	gh            *github.Client
	authenticated bool
	tier          Tier
}

// Entry is one item of a contents listing
type Entry struct {
	Name        string
	Path        string
	Type        string // "file" or "dir"
	DownloadURL string
}

// IsDir reports whether the entry is a directory
func (e Entry) IsDir() bool {
	return e.Type == "dir"
}

// Options configures a client explicitly
type Options struct {
	// Host is github.com or a GitHub Enterprise hostname
	Host string
	// BaseURL overrides the API root (for testing)
	BaseURL string
	// Token authenticates requests; empty means unauthenticated
	Token string
	Tier  Tier
}

// New creates a client for github.com with resolved credentials
func New() *Client {
	return NewForHost("github.com")
}

// NewForHost creates a client for a host (GitHub Enterprise when not github.com).
// Credential resolution order: GITHUB_TOKEN, GH_TOKEN, gh CLI session, none.
func NewForHost(host string) *Client {
	creds := ResolveCredentials(host)
	c, _ := NewWithOptions(Options{Host: host, Token: creds.Token, Tier: creds.Tier})
	return c
}

// NewWithOptions creates a client from explicit options
func NewWithOptions(opts Options) (*Client, error) {
	var httpClient *http.Client
	authenticated := false

	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: opts.Token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
		authenticated = true
	}

	gh := github.NewClient(httpClient)
	tier := opts.Tier
	if !authenticated {
		tier = TierNone
	} else if tier == TierNone {
		tier = TierEnv
	}
	c := &Client{gh: gh, authenticated: authenticated, tier: tier}

	switch {
	case opts.BaseURL != "":
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		gh.BaseURL = u
	case opts.Host != "" && opts.Host != "github.com" && opts.Host != "api.github.com":
		// Configure for GHE
		gh.BaseURL, _ = url.Parse(fmt.Sprintf("https://%s/api/v3/", opts.Host))
		gh.UploadURL, _ = url.Parse(fmt.Sprintf("https://%s/api/uploads/", opts.Host))
	}

	return c, nil
}

// IsAuthenticated returns true if the client has a token
func (c *Client) IsAuthenticated() bool {
	return c.authenticated
}

// Tier returns where the client's credentials came from
func (c *Client) Tier() Tier {
	return c.tier
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.gh.BaseURL.String()
}

// ListContents lists directory contents in a repository
func (c *Client) ListContents(ctx context.Context, owner, repo, path, ref string) ([]Entry, error) {
	_, dirContents, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, refOpts(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to list contents: %w", err)
	}
	if dirContents == nil {
		return nil, fmt.Errorf("path is a file, not a directory: %s", path)
	}

	entries := make([]Entry, 0, len(dirContents))
	for _, item := range dirContents {
		entries = append(entries, Entry{
			Name:        item.GetName(),
			Path:        item.GetPath(),
			Type:        item.GetType(),
			DownloadURL: item.GetDownloadURL(),
		})
	}
	return entries, nil
}

// GetContents fetches a file's content from a repository
func (c *Client) GetContents(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	fileContent, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, refOpts(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to get contents: %w", err)
	}

	if fileContent == nil {
		return nil, fmt.Errorf("path is a directory, not a file")
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}

	return []byte(content), nil
}

// Download fetches a raw download URL through the authenticated transport
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid download URL: %w", err)
	}

	resp, err := c.gh.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

// RepositoryExists reports whether the repository is visible to the client
func (c *Client) RepositoryExists(ctx context.Context, owner, repo string) (bool, error) {
	_, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	return existence(err)
}

// OwnerExists reports whether a user or organization exists
func (c *Client) OwnerExists(ctx context.Context, owner string) (bool, error) {
	_, _, err := c.gh.Users.Get(ctx, owner)
	return existence(err)
}

func existence(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if StatusCode(err) == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func refOpts(ref string) *github.RepositoryContentGetOptions {
	if ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: ref}
}

// StatusError is a non-200 response to a raw download
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// StatusCode extracts the HTTP status from an API or download error, or 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var rle *github.RateLimitError
	if errors.As(err, &rle) && rle.Response != nil {
		return rle.Response.StatusCode
	}
	var are *github.AbuseRateLimitError
	if errors.As(err, &are) && are.Response != nil {
		return are.Response.StatusCode
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode
	}
	return 0
}

// IsRateLimited reports whether the API refused the request for rate limiting
func IsRateLimited(err error) bool {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	var are *github.AbuseRateLimitError
	return errors.As(err, &are)
}
