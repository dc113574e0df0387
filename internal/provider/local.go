package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/config"
	"github.com/kennyg/folio/internal/source"
)

// Local reads a folder on disk laid out like a remote repository
type Local struct {
	cfg       config.SourceConfig
	workspace string
	logger    *slog.Logger

	once    sync.Once
	root    string
	rootErr error
}

// NewLocal creates a provider for a local source
func NewLocal(cfg config.SourceConfig, workspace string, logger *slog.Logger) (*Local, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("%s: %w", cfg.Name, ErrSourceDisabled)
	}
	if strings.TrimSpace(cfg.Location) == "" {
		return nil, fmt.Errorf("source %q: empty location", cfg.Name)
	}
	return &Local{
		cfg:       cfg,
		workspace: workspace,
		logger:    loggerOrDefault(logger).With("source", cfg.Name),
	}, nil
}

// Root resolves the source folder once and caches the result
func (l *Local) Root() (string, error) {
	l.once.Do(func() {
		l.root, l.rootErr = source.ResolveLocal(l.cfg.Location, l.workspace)
	})
	return l.root, l.rootErr
}

// FetchAll implements Provider
func (l *Local) FetchAll(ctx context.Context) ([]artifact.Descriptor, error) {
	root, err := l.Root()
	if err != nil {
		return nil, &FetchError{Source: l.cfg.Name, Op: "resolve", Err: err}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, &FetchError{Source: l.cfg.Name, Op: "list", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &FetchError{Source: l.cfg.Name, Op: "list", Path: root, Err: fmt.Errorf("not a directory")}
	}

	var out []artifact.Descriptor
	for _, kind := range l.cfg.Kinds() {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Source: l.cfg.Name, Op: "list", Err: err}
		}

		dir := filepath.Join(root, filepath.FromSlash(l.cfg.Paths[kind]))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				l.logger.Debug("path not present", "kind", kind, "path", dir)
				continue
			}
			return nil, &FetchError{Source: l.cfg.Name, Op: "list", Path: dir, Err: err}
		}

		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			full := filepath.Join(dir, name)
			isDir := e.IsDir()
			if e.Type()&fs.ModeSymlink != 0 {
				if fi, err := os.Stat(full); err == nil {
					isDir = fi.IsDir()
				}
			}

			if kind.IsDirectory() {
				if !isDir {
					continue
				}
				rel, _ := filepath.Rel(root, full)
				out = append(out, artifact.Descriptor{
					Name:               name,
					Kind:               kind,
					SourceName:         l.cfg.Name,
					SourceLocation:     l.cfg.Location,
					ContentRef:         full,
					IsDirectory:        true,
					RelativeSourcePath: filepath.ToSlash(rel),
				})
				continue
			}
			if isDir || !artifact.IsTemplateFile(name) {
				continue
			}
			out = append(out, artifact.Descriptor{
				Name:           name,
				Kind:           kind,
				SourceName:     l.cfg.Name,
				SourceLocation: l.cfg.Location,
				ContentRef:     full,
			})
		}
	}

	sortDescriptors(out)
	return out, nil
}

// Download implements Provider
func (l *Local) Download(ctx context.Context, d artifact.Descriptor) ([]byte, error) {
	data, err := os.ReadFile(d.ContentRef)
	if err != nil {
		return nil, l.readError("download", d.ContentRef, err)
	}
	return data, nil
}

// DownloadDirectory implements Provider
func (l *Local) DownloadDirectory(ctx context.Context, d artifact.Descriptor) (map[string][]byte, error) {
	if !d.IsDirectory {
		return nil, fmt.Errorf("%s: %w", d.Name, ErrNotDirectory)
	}

	files := make(map[string][]byte)
	err := filepath.WalkDir(d.ContentRef, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == d.ContentRef {
			return nil
		}
		if strings.HasPrefix(e.Name(), ".") {
			if e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if e.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.ContentRef, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, l.readError("download", d.ContentRef, err)
	}
	return files, nil
}

// DownloadMetadata implements Provider
func (l *Local) DownloadMetadata(ctx context.Context, d artifact.Descriptor) ([]byte, bool, error) {
	if !d.IsDirectory {
		return nil, false, nil
	}
	p := filepath.Join(d.ContentRef, artifact.MetadataFilename)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, l.readError("metadata", p, err)
	}
	return data, true, nil
}

func (l *Local) readError(op, p string, err error) *FetchError {
	if errors.Is(err, fs.ErrNotExist) {
		err = fmt.Errorf("%w: %v", ErrContentGone, err)
	}
	return &FetchError{Source: l.cfg.Name, Op: op, Path: p, Err: err}
}
