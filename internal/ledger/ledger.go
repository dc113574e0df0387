// Package ledger records which templates are installed in a workspace.
package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/store"
)

// Store keys
const (
	KeyInstalled  = "installedTemplates"
	KeyLastSynced = "lastSyncedAt"
)

// Locator maps an artifact to its expected install path
type Locator interface {
	InstallPath(kind artifact.Kind, name string) string
}

// Ledger is the durable list of installed records, one per identity
type Ledger struct {
	store   store.Store
	locator Locator
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex
}

// New creates a ledger persisted in s
func New(s store.Store, locator Locator, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: s, locator: locator, logger: logger, now: time.Now}
}

func (l *Ledger) load() ([]artifact.InstalledRecord, error) {
	var records []artifact.InstalledRecord
	if _, err := l.store.Get(KeyInstalled, &records); err != nil {
		return nil, fmt.Errorf("failed to load installed templates: %w", err)
	}
	return records, nil
}

func (l *Ledger) save(records []artifact.InstalledRecord) error {
	if records == nil {
		records = []artifact.InstalledRecord{}
	}
	if err := l.store.Set(KeyInstalled, records); err != nil {
		return fmt.Errorf("failed to save installed templates: %w", err)
	}
	return nil
}

// Add upserts the record for d, refreshing its content ref and timestamp
func (l *Ledger) Add(d artifact.Descriptor) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}
	records = without(records, d.Identity())
	records = append(records, artifact.NewInstalledRecord(d, l.now()))
	return l.save(records)
}

// Remove deletes the record for d; a missing record is a no-op
func (l *Ledger) Remove(d artifact.Descriptor) error {
	return l.RemoveIdentity(d.Identity())
}

// RemoveIdentity deletes the record with the given identity
func (l *Ledger) RemoveIdentity(id artifact.Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}
	next := without(records, id)
	if len(next) == len(records) {
		return nil
	}
	return l.save(next)
}

// Reconcile drops records whose artifact is gone from disk and returns them.
// Files that exist without a record are never added.
func (l *Ledger) Reconcile() ([]artifact.InstalledRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return nil, err
	}

	var kept, dropped []artifact.InstalledRecord
	for _, r := range records {
		p := l.locator.InstallPath(r.Kind, r.Name)
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				dropped = append(dropped, r)
				continue
			}
			l.logger.Warn("failed to check installed template", "template", r.Identity().String(), "error", err)
		}
		kept = append(kept, r)
	}

	if len(dropped) > 0 {
		if err := l.save(kept); err != nil {
			return nil, err
		}
		l.logger.Debug("reconciled ledger", "dropped", len(dropped))
	}
	if err := l.store.Set(KeyLastSynced, l.now()); err != nil {
		return dropped, fmt.Errorf("failed to save sync time: %w", err)
	}
	return dropped, nil
}

// List returns every record sorted by identity
func (l *Ledger) List() ([]artifact.InstalledRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Identity().String() < records[j].Identity().String()
	})
	return records, nil
}

// Get returns the record for an identity
func (l *Ledger) Get(id artifact.Identity) (artifact.InstalledRecord, bool, error) {
	records, err := l.List()
	if err != nil {
		return artifact.InstalledRecord{}, false, err
	}
	for _, r := range records {
		if r.Identity() == id {
			return r, true, nil
		}
	}
	return artifact.InstalledRecord{}, false, nil
}

// Contains reports whether an identity is recorded
func (l *Ledger) Contains(id artifact.Identity) bool {
	_, ok, err := l.Get(id)
	return err == nil && ok
}

// Identities returns the set of recorded identities
func (l *Ledger) Identities() (map[artifact.Identity]bool, error) {
	records, err := l.List()
	if err != nil {
		return nil, err
	}
	set := make(map[artifact.Identity]bool, len(records))
	for _, r := range records {
		set[r.Identity()] = true
	}
	return set, nil
}

// Count returns the number of records
func (l *Ledger) Count() int {
	records, err := l.List()
	if err != nil {
		return 0
	}
	return len(records)
}

// Clear removes every record
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(nil)
}

// LastSyncedAt returns the time of the last reconcile, or zero
func (l *Ledger) LastSyncedAt() time.Time {
	var t time.Time
	if _, err := l.store.Get(KeyLastSynced, &t); err != nil {
		return time.Time{}
	}
	return t
}

func without(records []artifact.InstalledRecord, id artifact.Identity) []artifact.InstalledRecord {
	filtered := make([]artifact.InstalledRecord, 0, len(records))
	for _, r := range records {
		if r.Identity() != id {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
