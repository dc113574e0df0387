package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/config"
	"github.com/kennyg/folio/internal/ghclient"
	"github.com/kennyg/folio/internal/source"
)

// Remote reads a GitHub repository through the contents API
type Remote struct {
	cfg    config.SourceConfig
	repo   *source.Repository
	client *ghclient.Client
	logger *slog.Logger
}

// NewRemote creates a provider for a remote source
func NewRemote(cfg config.SourceConfig, clientFor func(host string) *ghclient.Client, logger *slog.Logger) (*Remote, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("%s: %w", cfg.Name, ErrSourceDisabled)
	}
	repo, err := source.ParseRepository(cfg.Location, cfg.Branch)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", cfg.Name, err)
	}
	return &Remote{
		cfg:    cfg,
		repo:   repo,
		client: clientFor(repo.Host),
		logger: loggerOrDefault(logger).With("source", cfg.Name),
	}, nil
}

// Repository returns the parsed location
func (r *Remote) Repository() *source.Repository {
	return r.repo
}

// FetchAll implements Provider
func (r *Remote) FetchAll(ctx context.Context) ([]artifact.Descriptor, error) {
	var (
		out    []artifact.Descriptor
		probed bool
	)

	for _, kind := range r.cfg.Kinds() {
		dir := r.cfg.Paths[kind]
		entries, err := r.client.ListContents(ctx, r.repo.Owner, r.repo.Repo, dir, r.repo.Ref)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &FetchError{Source: r.cfg.Name, Op: "list", Path: dir, Err: ctx.Err()}
			}
			if ghclient.StatusCode(err) == http.StatusNotFound {
				if !r.client.IsAuthenticated() && !probed {
					if perr := r.probe(ctx); perr != nil {
						return nil, perr
					}
					probed = true
				}
				r.logger.Debug("path not present", "kind", kind, "path", dir)
				continue
			}
			return nil, r.fetchError("list", dir, err)
		}

		for _, e := range entries {
			if strings.HasPrefix(e.Name, ".") {
				continue
			}
			if kind.IsDirectory() {
				if !e.IsDir() {
					continue
				}
				out = append(out, artifact.Descriptor{
					Name:               e.Name,
					Kind:               kind,
					SourceName:         r.cfg.Name,
					SourceLocation:     r.cfg.Location,
					ContentRef:         e.Path,
					IsDirectory:        true,
					RelativeSourcePath: e.Path,
				})
				continue
			}
			if e.IsDir() || !artifact.IsTemplateFile(e.Name) {
				continue
			}
			ref := e.DownloadURL
			if ref == "" {
				ref = e.Path
			}
			out = append(out, artifact.Descriptor{
				Name:           e.Name,
				Kind:           kind,
				SourceName:     r.cfg.Name,
				SourceLocation: r.cfg.Location,
				ContentRef:     ref,
			})
		}
	}

	sortDescriptors(out)
	return out, nil
}

// probe decides what a 404 on an unauthenticated listing means
func (r *Remote) probe(ctx context.Context) error {
	visible, err := r.client.RepositoryExists(ctx, r.repo.Owner, r.repo.Repo)
	if err != nil {
		return r.fetchError("probe", "", err)
	}
	if visible {
		return nil
	}

	ownerExists, err := r.client.OwnerExists(ctx, r.repo.Owner)
	if err != nil {
		return r.fetchError("probe", "", err)
	}
	if ownerExists {
		return &AuthRequiredError{Source: r.cfg.Name, Owner: r.repo.Owner, Repo: r.repo.Repo}
	}
	return &FetchError{
		Source: r.cfg.Name,
		Op:     "probe",
		Status: http.StatusNotFound,
		Err:    fmt.Errorf("repository %s not found", r.repo),
	}
}

// Download implements Provider
func (r *Remote) Download(ctx context.Context, d artifact.Descriptor) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(d.ContentRef, "http://") || strings.HasPrefix(d.ContentRef, "https://") {
		data, err = r.client.Download(ctx, d.ContentRef)
	} else {
		data, err = r.client.GetContents(ctx, r.repo.Owner, r.repo.Repo, d.ContentRef, r.repo.Ref)
	}
	if err != nil {
		return nil, r.fetchError("download", d.Name, err)
	}
	return data, nil
}

// DownloadDirectory implements Provider
func (r *Remote) DownloadDirectory(ctx context.Context, d artifact.Descriptor) (map[string][]byte, error) {
	if !d.IsDirectory {
		return nil, fmt.Errorf("%s: %w", d.Name, ErrNotDirectory)
	}
	root := strings.Trim(d.RelativeSourcePath, "/")
	files := make(map[string][]byte)
	if err := r.walk(ctx, root, root, files); err != nil {
		return nil, err
	}
	return files, nil
}

func (r *Remote) walk(ctx context.Context, root, dir string, files map[string][]byte) error {
	entries, err := r.client.ListContents(ctx, r.repo.Owner, r.repo.Repo, dir, r.repo.Ref)
	if err != nil {
		return r.fetchError("list", dir, err)
	}

	for _, e := range entries {
		rel := strings.TrimPrefix(strings.TrimPrefix(e.Path, root), "/")
		if err := artifact.ValidateRelativePath(rel); err != nil {
			return r.fetchError("list", e.Path, err)
		}
		if e.IsDir() {
			if err := r.walk(ctx, root, e.Path, files); err != nil {
				return err
			}
			continue
		}
		if e.Type != "file" {
			continue
		}

		var data []byte
		if e.DownloadURL != "" {
			data, err = r.client.Download(ctx, e.DownloadURL)
		} else {
			data, err = r.client.GetContents(ctx, r.repo.Owner, r.repo.Repo, e.Path, r.repo.Ref)
		}
		if err != nil {
			return r.fetchError("download", e.Path, err)
		}
		files[rel] = data
	}
	return nil
}

// DownloadMetadata implements Provider
func (r *Remote) DownloadMetadata(ctx context.Context, d artifact.Descriptor) ([]byte, bool, error) {
	if !d.IsDirectory {
		return nil, false, nil
	}
	p := path.Join(d.RelativeSourcePath, artifact.MetadataFilename)
	data, err := r.client.GetContents(ctx, r.repo.Owner, r.repo.Repo, p, r.repo.Ref)
	if err != nil {
		if ghclient.StatusCode(err) == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, r.fetchError("metadata", p, err)
	}
	return data, true, nil
}

// fetchError classifies an API error for this source
func (r *Remote) fetchError(op, p string, err error) *FetchError {
	fe := &FetchError{
		Source:      r.cfg.Name,
		Op:          op,
		Path:        p,
		Status:      ghclient.StatusCode(err),
		RateLimited: ghclient.IsRateLimited(err),
		Err:         err,
	}
	if fe.Status == http.StatusNotFound && op == "download" {
		fe.Err = fmt.Errorf("%w: %v", ErrContentGone, err)
	}
	return fe
}
