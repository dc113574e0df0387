// Package backup copies directories aside before destructive operations and
// restores them on request.
package backup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kennyg/folio/internal/artifact"
)

// TimestampFormat is embedded in backup directory names
const TimestampFormat = "2006-01-02T15-04-05.000"

// RestoreError reports a failed restore; the original directory has been
// put back when RolledBack is true
type RestoreError struct {
	Path       string
	Backup     string
	RolledBack bool
	Err        error
}

func (e *RestoreError) Error() string {
	msg := fmt.Sprintf("failed to restore %s from %s: %v", e.Path, e.Backup, e.Err)
	if !e.RolledBack {
		msg += " (rollback failed)"
	}
	return msg
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}

// Info describes one backup directory
type Info struct {
	Name    string
	Path    string
	ModTime time.Time
}

// Coordinator creates, restores and prunes backups
type Coordinator struct {
	logger *slog.Logger
	now    func() time.Time
	copy   func(src, dst string) error
}

// New creates a Coordinator
func New(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{logger: logger, now: time.Now, copy: copyTree}
}

// BackupName returns the backup directory name for name at t
func BackupName(name string, t time.Time) string {
	return name + artifact.BackupInfix + t.Format(TimestampFormat)
}

// Backup copies path to a timestamped sibling and returns the copy's path.
// A missing path yields "" and no error.
func (c *Coordinator) Backup(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	dst := filepath.Join(filepath.Dir(path), BackupName(filepath.Base(path), c.now()))
	if err := c.copy(path, dst); err != nil {
		os.RemoveAll(dst)
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}

	c.logger.Info("created backup", "path", path, "backup", dst)
	return dst, nil
}

// Restore replaces root/name with root/backupName. The current directory is
// saved to a temporary sibling first and put back if the copy fails.
func (c *Coordinator) Restore(root, name, backupName string) error {
	current := filepath.Join(root, name)
	backupPath := filepath.Join(root, backupName)

	if _, err := os.Stat(backupPath); err != nil {
		return &RestoreError{Path: current, Backup: backupPath, RolledBack: true, Err: err}
	}

	var tmp string
	if _, err := os.Stat(current); err == nil {
		tmp = filepath.Join(root, fmt.Sprintf(".%s.restore-%d", name, c.now().UnixNano()))
		if err := c.copy(current, tmp); err != nil {
			os.RemoveAll(tmp)
			return &RestoreError{Path: current, Backup: backupPath, RolledBack: true, Err: err}
		}
		if err := os.RemoveAll(current); err != nil {
			c.rollback(current, tmp)
			return &RestoreError{Path: current, Backup: backupPath, RolledBack: true, Err: err}
		}
	}

	if err := c.copy(backupPath, current); err != nil {
		rolledBack := c.rollback(current, tmp)
		return &RestoreError{Path: current, Backup: backupPath, RolledBack: rolledBack, Err: err}
	}

	if tmp != "" {
		if err := os.RemoveAll(tmp); err != nil {
			c.logger.Warn("failed to remove restore temp", "path", tmp, "error", err)
		}
	}
	c.logger.Info("restored backup", "path", current, "backup", backupPath)
	return nil
}

// rollback puts the temp copy back at current
func (c *Coordinator) rollback(current, tmp string) bool {
	os.RemoveAll(current)
	if tmp == "" {
		return true
	}
	if err := copyTree(tmp, current); err != nil {
		c.logger.Error("rollback failed", "path", current, "temp", tmp, "error", err)
		return false
	}
	os.RemoveAll(tmp)
	return true
}

// List returns the backups of root/name, newest first
func (c *Coordinator) List(root, name string) ([]Info, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	prefix := name + artifact.BackupInfix
	var out []Info
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{Name: e.Name(), Path: filepath.Join(root, e.Name()), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// Cleanup deletes backups of root/name older than retentionDays and returns
// the removed paths. Individual failures are logged and skipped.
func (c *Coordinator) Cleanup(root, name string, retentionDays int) ([]string, error) {
	backups, err := c.List(root, name)
	if err != nil {
		return nil, err
	}

	cutoff := c.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	var removed []string
	for _, b := range backups {
		if !b.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(b.Path); err != nil {
			c.logger.Warn("failed to remove backup", "path", b.Path, "error", err)
			continue
		}
		removed = append(removed, b.Path)
	}
	if len(removed) > 0 {
		c.logger.Info("removed old backups", "dir", filepath.Join(root, name), "count", len(removed))
	}
	return removed, nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if info.IsDir() {
		return copyDir(src, dst)
	}
	return copyFileItem(src, dst)
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
		} else {
			if err := copyFileItem(srcPath, dstPath); err != nil {
				return err
			}
		}
	}

	return nil
}

func copyFileItem(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
