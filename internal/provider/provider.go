// Package provider lists and downloads template artifacts from one source.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/config"
	"github.com/kennyg/folio/internal/ghclient"
)

// Provider is the uniform contract every source kind implements
type Provider interface {
	// FetchAll lists every artifact of every configured kind
	FetchAll(ctx context.Context) ([]artifact.Descriptor, error)
	// Download returns the content of a file artifact
	Download(ctx context.Context, d artifact.Descriptor) ([]byte, error)
	// DownloadDirectory returns a directory artifact's files keyed by
	// slash-separated relative path
	DownloadDirectory(ctx context.Context, d artifact.Descriptor) (map[string][]byte, error)
	// DownloadMetadata returns the SKILL.md of a directory artifact; absence
	// reports false with no error
	DownloadMetadata(ctx context.Context, d artifact.Descriptor) ([]byte, bool, error)
}

var (
	// ErrSourceDisabled is returned when constructing a provider for a disabled source
	ErrSourceDisabled = errors.New("source is disabled")
	// ErrNotDirectory is returned by DownloadDirectory for file artifacts
	ErrNotDirectory = errors.New("template is not a directory")
	// ErrContentGone marks a content ref that no longer resolves
	ErrContentGone = errors.New("content no longer exists")
)

// FetchError is a failed listing or download
type FetchError struct {
	Source      string
	Op          string
	Path        string
	Status      int
	RateLimited bool
	Err         error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Source, e.Op)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.RateLimited {
		msg += ": rate limited"
	} else if e.Status != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// AuthRequiredError means a remote repository is hidden from an
// unauthenticated client while its owner exists
type AuthRequiredError struct {
	Source string
	Owner  string
	Repo   string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("%s: %s/%s is not visible without authentication (likely needs sign-in)", e.Source, e.Owner, e.Repo)
}

// IsAuthRequired reports whether err is or wraps an AuthRequiredError
func IsAuthRequired(err error) bool {
	var ae *AuthRequiredError
	return errors.As(err, &ae)
}

// Factory builds the provider for a source config
type Factory func(cfg config.SourceConfig) (Provider, error)

// FactoryOptions configures NewFactory
type FactoryOptions struct {
	// Workspace resolves relative local locations
	Workspace string
	// ClientFor returns the GitHub client for a host; defaults to ghclient.NewForHost
	ClientFor func(host string) *ghclient.Client
	Logger    *slog.Logger
}

// NewFactory returns a Factory dispatching on the config's kind
func NewFactory(opts FactoryOptions) Factory {
	clientFor := opts.ClientFor
	if clientFor == nil {
		clientFor = ghclient.NewForHost
	}
	return func(cfg config.SourceConfig) (Provider, error) {
		switch cfg.Kind {
		case config.SourceRemote:
			return NewRemote(cfg, clientFor, opts.Logger)
		case config.SourceLocal:
			return NewLocal(cfg, opts.Workspace, opts.Logger)
		default:
			return nil, fmt.Errorf("source %q: unknown kind %q", cfg.Name, cfg.Kind)
		}
	}
}

// sortDescriptors orders descriptors by kind, then name
func sortDescriptors(ds []artifact.Descriptor) {
	order := make(map[artifact.Kind]int)
	for i, k := range artifact.AllKinds() {
		order[k] = i
	}
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Kind != ds[j].Kind {
			return order[ds[i].Kind] < order[ds[j].Kind]
		}
		return ds[i].Name < ds[j].Name
	})
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
