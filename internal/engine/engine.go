// Package engine wires sources, the catalog and the workspace write path
// into one object the CLI drives.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kennyg/folio/internal/aggregate"
	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/backup"
	"github.com/kennyg/folio/internal/config"
	"github.com/kennyg/folio/internal/index"
	"github.com/kennyg/folio/internal/installer"
	"github.com/kennyg/folio/internal/ledger"
	"github.com/kennyg/folio/internal/profile"
	"github.com/kennyg/folio/internal/provider"
	"github.com/kennyg/folio/internal/registry"
	"github.com/kennyg/folio/internal/source"
	"github.com/kennyg/folio/internal/store"
	"github.com/kennyg/folio/internal/watch"
)

// Options configures New. Stores default to JSON files at the state paths,
// Factory defaults to provider.NewFactory.
type Options struct {
	Paths          *config.Paths
	Settings       *config.Settings
	Factory        provider.Factory
	WorkspaceStore store.Store
	GlobalStore    store.Store
	Logger         *slog.Logger
}

// Engine is the composition root
type Engine struct {
	Paths    *config.Paths
	Settings *config.Settings

	Registry  *registry.Registry
	Fetcher   *aggregate.Fetcher
	Index     *index.Index
	Ledger    *ledger.Ledger
	Installer *installer.Installer
	Backup    *backup.Coordinator
	Profiles  *profile.Manager

	logger *slog.Logger
}

// Open loads paths and settings for the current directory and builds an
// Engine with default stores
func Open(logger *slog.Logger) (*Engine, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	settings, err := config.Load(paths)
	if err != nil {
		return nil, err
	}
	return New(Options{Paths: paths, Settings: settings, Logger: logger})
}

// New wires every component. Rejected source configs are logged.
func New(opts Options) (*Engine, error) {
	if opts.Paths == nil || opts.Settings == nil {
		return nil, fmt.Errorf("engine requires paths and settings")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for _, rej := range opts.Settings.Rejected {
		logger.Warn("ignoring source config", "source", rej.Name, "location", rej.Location, "error", rej.Err)
	}

	factory := opts.Factory
	if factory == nil {
		factory = provider.NewFactory(provider.FactoryOptions{
			Workspace: opts.Paths.Workspace,
			Logger:    logger,
		})
	}

	workspaceStore := opts.WorkspaceStore
	if workspaceStore == nil {
		workspaceStore = store.NewJSONFile(opts.Paths.WorkspaceStateFile)
	}
	globalStore := opts.GlobalStore
	if globalStore == nil {
		globalStore = store.NewJSONFile(opts.Paths.GlobalStateFile)
	}

	reg := registry.New(factory, logger)
	reg.Refresh(opts.Settings.Sources)

	fetcher := aggregate.New(reg,
		aggregate.WithTimeout(opts.Settings.FetchTimeout),
		aggregate.WithLogger(logger),
	)
	idx := index.New()
	l := ledger.New(workspaceStore, opts.Paths, logger)
	inst := installer.New(fetcher, l, opts.Paths, logger)
	bk := backup.New(logger)

	profiles := profile.New(profile.Config{
		Store:         globalStore,
		Ledger:        l,
		Backup:        bk,
		Installer:     inst,
		Catalog:       idx,
		Dirs:          opts.Paths,
		Logger:        logger,
		ConfirmSwitch: opts.Settings.ConfirmProfileSwitch,
	})

	return &Engine{
		Paths:     opts.Paths,
		Settings:  opts.Settings,
		Registry:  reg,
		Fetcher:   fetcher,
		Index:     idx,
		Ledger:    l,
		Installer: inst,
		Backup:    bk,
		Profiles:  profiles,
		logger:    logger,
	}, nil
}

// Refresh fetches every source and replaces the catalog with the
// successful results
func (e *Engine) Refresh(ctx context.Context) *aggregate.Results {
	results := e.Fetcher.FetchFromAll(ctx)
	e.Index.Update(results.AllDescriptors())
	for _, name := range results.AuthRequired() {
		e.logger.Warn("source needs authentication; set GITHUB_TOKEN or run gh auth login", "source", name)
	}
	return results
}

// RefreshSource re-fetches one source and replaces only its slice of the
// catalog. A failed fetch leaves the catalog unchanged.
func (e *Engine) RefreshSource(ctx context.Context, name string) aggregate.SourceResult {
	res := e.Fetcher.FetchFromOne(ctx, name)
	if res.Success {
		e.Index.ReplaceSource(name, res.Descriptors)
	}
	return res
}

// Resolve looks up a source/kind/name key in the catalog
func (e *Engine) Resolve(key string) (artifact.Descriptor, error) {
	id, err := artifact.ParseIdentity(key)
	if err != nil {
		return artifact.Descriptor{}, err
	}
	d, ok := e.Index.Lookup(id)
	if !ok {
		return artifact.Descriptor{}, fmt.Errorf("template not found: %s", key)
	}
	return d, nil
}

// Metadata returns the frontmatter of a template. Skills read SKILL.md;
// files read the template itself.
func (e *Engine) Metadata(ctx context.Context, d artifact.Descriptor) (*artifact.Metadata, error) {
	var data []byte
	if d.IsDirectory {
		content, ok, err := e.Fetcher.DownloadMetadata(ctx, d)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &artifact.Metadata{Name: d.DisplayName()}, nil
		}
		data = content
	} else {
		content, err := e.Fetcher.DownloadTemplate(ctx, d)
		if err != nil {
			return nil, err
		}
		data = content
	}

	meta, err := artifact.ParseFrontmatter(data)
	if err != nil {
		return nil, err
	}
	if meta.Name == "" {
		meta.Name = d.DisplayName()
	}
	return meta, nil
}

// WatchTargets returns one target per registered local source
func (e *Engine) WatchTargets() []watch.Target {
	var targets []watch.Target
	for _, name := range e.Registry.Names() {
		cfg, ok := e.Registry.Config(name)
		if !ok || cfg.Kind != config.SourceLocal {
			continue
		}
		root, err := source.ResolveLocal(cfg.Location, e.Paths.Workspace)
		if err != nil {
			e.logger.Warn("cannot resolve local source", "source", name, "error", err)
			continue
		}
		t := watch.Target{Source: name, Root: root}
		if rel, ok := cfg.Paths[artifact.KindSkill]; ok {
			t.SkillsDir = filepath.Join(root, filepath.FromSlash(rel))
		}
		targets = append(targets, t)
	}
	return targets
}

// NewWatcher returns a watcher over the local sources whose refreshes feed
// RefreshSource
func (e *Engine) NewWatcher() *watch.Watcher {
	return watch.New(e.WatchTargets(), e.Settings.WatchDebounce, func(ctx context.Context, source string) {
		res := e.RefreshSource(ctx, source)
		if res.Success {
			e.logger.Info("source refreshed", "source", source, "templates", len(res.Descriptors))
		}
	}, e.logger)
}

// CleanupBackups prunes old backups of every kind directory
func (e *Engine) CleanupBackups() (map[artifact.Kind][]string, error) {
	out := make(map[artifact.Kind][]string)
	for _, kind := range artifact.AllKinds() {
		removed, err := e.Backup.Cleanup(e.Paths.InstallRoot, config.KindDir(kind), e.Settings.BackupRetentionDays)
		if err != nil {
			return out, err
		}
		if len(removed) > 0 {
			out[kind] = removed
		}
	}
	return out, nil
}

// ListBackups returns the backups of every kind directory, newest first
func (e *Engine) ListBackups() (map[artifact.Kind][]backup.Info, error) {
	out := make(map[artifact.Kind][]backup.Info)
	for _, kind := range artifact.AllKinds() {
		infos, err := e.Backup.List(e.Paths.InstallRoot, config.KindDir(kind))
		if err != nil {
			return out, err
		}
		if len(infos) > 0 {
			out[kind] = infos
		}
	}
	return out, nil
}

// Installed reconciles the ledger against the workspace and returns the
// identities still on disk
func (e *Engine) Installed() (map[artifact.Identity]bool, error) {
	if _, err := e.Ledger.Reconcile(); err != nil {
		return nil, err
	}
	return e.Ledger.Identities()
}

// RestoreBackup puts a backup of a kind directory back in place and drops
// ledger records whose files did not survive the restore
func (e *Engine) RestoreBackup(kind artifact.Kind, backupName string) ([]artifact.InstalledRecord, error) {
	dir := config.KindDir(kind)
	if strings.ContainsAny(backupName, `/\`) || !strings.HasPrefix(backupName, dir+artifact.BackupInfix) {
		return nil, fmt.Errorf("%q is not a backup of %s", backupName, dir)
	}
	if err := e.Backup.Restore(e.Paths.InstallRoot, dir, backupName); err != nil {
		return nil, err
	}
	return e.Ledger.Reconcile()
}
