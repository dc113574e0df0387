// Package profile saves the installed set as a named snapshot and reapplies
// it later.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/backup"
	"github.com/kennyg/folio/internal/installer"
	"github.com/kennyg/folio/internal/ledger"
	"github.com/kennyg/folio/internal/store"
)

// Store keys in the global scope
const (
	KeyProfiles    = "profiles"
	KeyLastApplied = "lastAppliedProfile"
)

var (
	// ErrEmptyLedger is returned when saving with nothing installed
	ErrEmptyLedger = errors.New("no templates installed")
	// ErrProfileNotFound is returned for an unknown profile name
	ErrProfileNotFound = errors.New("profile not found")
)

// Catalog resolves identities against the current merged catalog
type Catalog interface {
	Lookup(id artifact.Identity) (artifact.Descriptor, bool)
}

// Installer is the write path used by Apply
type Installer interface {
	Install(ctx context.Context, d artifact.Descriptor, opts installer.Options) (installer.Result, error)
	Uninstall(ctx context.Context, d artifact.Descriptor, opts installer.Options) (installer.Result, error)
}

// Dirs maps a kind to its install directory
type Dirs interface {
	InstallDir(kind artifact.Kind) string
}

// Config wires a Manager
type Config struct {
	Store     store.Store
	Ledger    *ledger.Ledger
	Backup    *backup.Coordinator
	Installer Installer
	Catalog   Catalog
	Dirs      Dirs
	Logger    *slog.Logger

	// ConfirmSwitch enables the prompt-before-switch check
	ConfirmSwitch bool
}

// SaveResult reports the outcome of Save
type SaveResult struct {
	Profile           artifact.Profile
	NeedsConfirmation bool
	Overwritten       bool
}

// ApplyResult reports the outcome of Apply
type ApplyResult struct {
	Installed    int
	Skipped      int
	SkippedNames []string
	BackupPaths  map[artifact.Kind]string
}

// Diff lists identities that differ between the ledger and a profile
type Diff struct {
	// Added are installed but not in the profile
	Added []artifact.Identity
	// Removed are in the profile but not installed
	Removed []artifact.Identity
}

// Empty reports whether the two sets match
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Manager owns profile definitions
type Manager struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// New creates a Manager
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, logger: logger, now: time.Now}
}

func (m *Manager) load() ([]artifact.Profile, error) {
	var profiles []artifact.Profile
	if _, err := m.cfg.Store.Get(KeyProfiles, &profiles); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return profiles, nil
}

func (m *Manager) save(profiles []artifact.Profile) error {
	if profiles == nil {
		profiles = []artifact.Profile{}
	}
	if err := m.cfg.Store.Set(KeyProfiles, profiles); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}
	return nil
}

// List returns all profiles sorted by name
func (m *Manager) List() ([]artifact.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profiles, err := m.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// Get returns the named profile
func (m *Manager) Get(name string) (artifact.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(name)
}

func (m *Manager) get(name string) (artifact.Profile, error) {
	profiles, err := m.load()
	if err != nil {
		return artifact.Profile{}, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return artifact.Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// Save snapshots the reconciled ledger under name. An existing profile is
// only replaced when overwriteAllowed is set; otherwise the result asks for
// confirmation and nothing is written.
func (m *Manager) Save(name string, overwriteAllowed bool) (SaveResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SaveResult{}, errors.New("profile name is required")
	}

	if _, err := m.cfg.Ledger.Reconcile(); err != nil {
		return SaveResult{}, err
	}
	records, err := m.cfg.Ledger.List()
	if err != nil {
		return SaveResult{}, err
	}
	if len(records) == 0 {
		return SaveResult{}, ErrEmptyLedger
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	profiles, err := m.load()
	if err != nil {
		return SaveResult{}, err
	}

	now := m.now().UTC()
	p := artifact.Profile{Name: name, Templates: records, CreatedAt: now, UpdatedAt: now}

	idx := -1
	for i := range profiles {
		if profiles[i].Name == name {
			idx = i
			break
		}
	}
	if idx >= 0 {
		if !overwriteAllowed {
			return SaveResult{Profile: profiles[idx], NeedsConfirmation: true}, nil
		}
		p.CreatedAt = profiles[idx].CreatedAt
		profiles[idx] = p
	} else {
		profiles = append(profiles, p)
	}

	if err := m.save(profiles); err != nil {
		return SaveResult{}, err
	}

	m.logger.Info("saved profile", "profile", name, "templates", len(records), "overwritten", idx >= 0)
	return SaveResult{Profile: p, Overwritten: idx >= 0}, nil
}

// Delete removes the named profiles and returns how many were removed.
// Unknown names are ignored.
func (m *Manager) Delete(names []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profiles, err := m.load()
	if err != nil {
		return 0, err
	}

	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	kept := make([]artifact.Profile, 0, len(profiles))
	for _, p := range profiles {
		if !drop[p.Name] {
			kept = append(kept, p)
		}
	}
	removed := len(profiles) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := m.save(kept); err != nil {
		return 0, err
	}
	m.logger.Info("deleted profiles", "count", removed)
	return removed, nil
}

// Apply replaces the installed set with the named profile. Existing kind
// directories are backed up first. Records that no longer resolve in the
// catalog, or fail to download, are skipped.
func (m *Manager) Apply(ctx context.Context, name string) (ApplyResult, error) {
	p, err := m.Get(name)
	if err != nil {
		return ApplyResult{}, err
	}

	res := ApplyResult{BackupPaths: make(map[artifact.Kind]string)}

	for _, kind := range artifact.AllKinds() {
		path, err := m.cfg.Backup.Backup(m.cfg.Dirs.InstallDir(kind))
		if err != nil {
			return res, fmt.Errorf("failed to back up %s before applying profile: %w", kind, err)
		}
		if path != "" {
			res.BackupPaths[kind] = path
		}
	}

	if err := m.clearInstalled(ctx); err != nil {
		return res, err
	}

	silent := installer.Options{Silent: true, Overwrite: true}
	for _, r := range p.Templates {
		id := r.Identity()
		d, ok := m.cfg.Catalog.Lookup(id)
		if !ok {
			m.logger.Debug("profile template no longer in catalog", "profile", name, "template", id.String())
			res.Skipped++
			res.SkippedNames = append(res.SkippedNames, r.Name)
			continue
		}
		if _, err := m.cfg.Installer.Install(ctx, d, silent); err != nil {
			m.logger.Warn("failed to install profile template", "profile", name, "template", id.String(), "error", err)
			res.Skipped++
			res.SkippedNames = append(res.SkippedNames, r.Name)
			continue
		}
		res.Installed++
	}

	if err := m.cfg.Store.Set(KeyLastApplied, name); err != nil {
		return res, fmt.Errorf("failed to record last applied profile: %w", err)
	}

	m.logger.Info("applied profile",
		"profile", name,
		"installed", res.Installed,
		"skipped", res.Skipped,
	)
	return res, nil
}

// clearInstalled removes every ledger-tracked artifact from disk, then
// empties the ledger
func (m *Manager) clearInstalled(ctx context.Context) error {
	records, err := m.cfg.Ledger.List()
	if err != nil {
		return err
	}
	silent := installer.Options{Silent: true}
	for _, r := range records {
		if _, err := m.cfg.Installer.Uninstall(ctx, r.Descriptor(), silent); err != nil {
			return fmt.Errorf("failed to remove %s before applying profile: %w", r.Identity(), err)
		}
	}
	return m.cfg.Ledger.Clear()
}

// HasChanges reports whether the reconciled ledger differs from the named
// profile by identity. Content refs are ignored.
func (m *Manager) HasChanges(name string) (bool, error) {
	d, err := m.Diff(name)
	if err != nil {
		return false, err
	}
	return !d.Empty(), nil
}

// Diff compares the reconciled ledger with the named profile
func (m *Manager) Diff(name string) (Diff, error) {
	p, err := m.Get(name)
	if err != nil {
		return Diff{}, err
	}
	if _, err := m.cfg.Ledger.Reconcile(); err != nil {
		return Diff{}, err
	}
	installed, err := m.cfg.Ledger.Identities()
	if err != nil {
		return Diff{}, err
	}
	saved := p.Identities()

	var d Diff
	for id := range installed {
		if !saved[id] {
			d.Added = append(d.Added, id)
		}
	}
	for id := range saved {
		if !installed[id] {
			d.Removed = append(d.Removed, id)
		}
	}
	sortIdentities(d.Added)
	sortIdentities(d.Removed)
	return d, nil
}

// LastApplied returns the name of the last applied profile, or ""
func (m *Manager) LastApplied() string {
	var name string
	if _, err := m.cfg.Store.Get(KeyLastApplied, &name); err != nil {
		return ""
	}
	return name
}

// ShouldConfirmSwitch reports whether switching profiles would discard
// unsaved changes relative to the last applied profile
func (m *Manager) ShouldConfirmSwitch() (bool, error) {
	if !m.cfg.ConfirmSwitch {
		return false, nil
	}
	last := m.LastApplied()
	if last != "" {
		changed, err := m.HasChanges(last)
		if err == nil {
			return changed, nil
		}
		if !errors.Is(err, ErrProfileNotFound) {
			return false, err
		}
	}
	if _, err := m.cfg.Ledger.Reconcile(); err != nil {
		return false, err
	}
	return m.cfg.Ledger.Count() > 0, nil
}

func sortIdentities(ids []artifact.Identity) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
