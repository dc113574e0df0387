// Package installer materializes templates into the workspace and keeps the
// ledger in step with the filesystem.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kennyg/folio/internal/artifact"
)

// Downloader fetches template content by descriptor
type Downloader interface {
	DownloadTemplate(ctx context.Context, d artifact.Descriptor) ([]byte, error)
	DownloadDirectoryContents(ctx context.Context, d artifact.Descriptor) (map[string][]byte, error)
}

// Recorder is the ledger surface the installer writes to
type Recorder interface {
	Add(d artifact.Descriptor) error
	Remove(d artifact.Descriptor) error
}

// Locator maps an artifact to its install path
type Locator interface {
	InstallPath(kind artifact.Kind, name string) string
}

// Options controls a single install or uninstall
type Options struct {
	// Silent logs at debug instead of info
	Silent bool
	// Overwrite replaces an existing target instead of skipping it
	Overwrite bool
}

// Result is the outcome of one install or uninstall
type Result struct {
	Path    string
	Skipped bool
}

// InstallError is a failed filesystem or download step for one template
type InstallError struct {
	Op       string
	Identity artifact.Identity
	Err      error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Identity, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// Failure pairs a template with the error that stopped it
type Failure struct {
	Descriptor artifact.Descriptor
	Err        error
}

// Outcome is a template InstallBatch wrote or left in place
type Outcome struct {
	Descriptor artifact.Descriptor
	Result
}

// BatchSummary aggregates an InstallBatch run
type BatchSummary struct {
	Installed int
	Failed    int
	Skipped   int
	ByKind    map[artifact.Kind]int
	Failures  []Failure
	// Outcomes holds the installed and skipped templates in input order
	Outcomes []Outcome
}

// Installer writes templates under the workspace install root
type Installer struct {
	downloader Downloader
	recorder   Recorder
	locator    Locator
	logger     *slog.Logger
}

// New creates an Installer
func New(downloader Downloader, recorder Recorder, locator Locator, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{downloader: downloader, recorder: recorder, locator: locator, logger: logger}
}

// Path returns where d is (or would be) installed
func (i *Installer) Path(d artifact.Descriptor) string {
	return i.locator.InstallPath(d.Kind, d.TargetName())
}

// IsInstalled reports whether d's target exists on disk
func (i *Installer) IsInstalled(d artifact.Descriptor) bool {
	_, err := os.Stat(i.Path(d))
	return err == nil
}

// Install downloads d and writes it to its target. Without Overwrite an
// existing target is left alone and reported as skipped.
func (i *Installer) Install(ctx context.Context, d artifact.Descriptor, opts Options) (Result, error) {
	if err := validateName(d.TargetName()); err != nil {
		return Result{}, &InstallError{Op: "install", Identity: d.Identity(), Err: err}
	}
	target := i.Path(d)

	if !opts.Overwrite {
		if _, err := os.Stat(target); err == nil {
			i.log(opts, "template already installed", "template", d.Key(), "path", target)
			return Result{Path: target, Skipped: true}, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return Result{}, &InstallError{Op: "create directory for", Identity: d.Identity(), Err: err}
	}

	if d.IsDirectory {
		if err := i.writeDirectory(ctx, d, target); err != nil {
			return Result{}, err
		}
	} else {
		data, err := i.downloader.DownloadTemplate(ctx, d)
		if err != nil {
			return Result{}, &InstallError{Op: "download", Identity: d.Identity(), Err: err}
		}
		if err := writeFileAtomic(target, data); err != nil {
			return Result{}, &InstallError{Op: "write", Identity: d.Identity(), Err: err}
		}
	}

	if err := i.recorder.Add(d); err != nil {
		return Result{}, &InstallError{Op: "record", Identity: d.Identity(), Err: err}
	}

	i.log(opts, "installed template", "template", d.Key(), "path", target)
	return Result{Path: target}, nil
}

// writeDirectory stages the whole tree beside target, then swaps it in
func (i *Installer) writeDirectory(ctx context.Context, d artifact.Descriptor, target string) error {
	files, err := i.downloader.DownloadDirectoryContents(ctx, d)
	if err != nil {
		return &InstallError{Op: "download", Identity: d.Identity(), Err: err}
	}
	for rel := range files {
		if err := artifact.ValidateRelativePath(rel); err != nil {
			return &InstallError{Op: "install", Identity: d.Identity(), Err: err}
		}
	}

	staging := filepath.Join(filepath.Dir(target), fmt.Sprintf(".%s.staging-%d", filepath.Base(target), time.Now().UnixNano()))
	cleanup := func() { os.RemoveAll(staging) }

	if err := os.MkdirAll(staging, 0755); err != nil {
		return &InstallError{Op: "write", Identity: d.Identity(), Err: err}
	}
	for rel, data := range files {
		p := filepath.Join(staging, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			cleanup()
			return &InstallError{Op: "write", Identity: d.Identity(), Err: err}
		}
		if err := os.WriteFile(p, data, 0644); err != nil {
			cleanup()
			return &InstallError{Op: "write", Identity: d.Identity(), Err: err}
		}
	}

	if err := os.RemoveAll(target); err != nil {
		cleanup()
		return &InstallError{Op: "replace", Identity: d.Identity(), Err: err}
	}
	if err := os.Rename(staging, target); err != nil {
		cleanup()
		return &InstallError{Op: "replace", Identity: d.Identity(), Err: err}
	}
	return nil
}

// Uninstall deletes d's target and ledger entry. An absent target is a
// no-op on disk but still drops a stale ledger entry.
func (i *Installer) Uninstall(ctx context.Context, d artifact.Descriptor, opts Options) (Result, error) {
	if err := validateName(d.TargetName()); err != nil {
		return Result{}, &InstallError{Op: "uninstall", Identity: d.Identity(), Err: err}
	}
	target := i.Path(d)

	if _, err := os.Stat(target); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Result{}, &InstallError{Op: "uninstall", Identity: d.Identity(), Err: err}
		}
		if err := i.recorder.Remove(d); err != nil {
			return Result{}, &InstallError{Op: "record", Identity: d.Identity(), Err: err}
		}
		i.log(opts, "template not installed", "template", d.Key())
		return Result{Path: target, Skipped: true}, nil
	}

	if err := os.RemoveAll(target); err != nil {
		return Result{}, &InstallError{Op: "uninstall", Identity: d.Identity(), Err: err}
	}
	if err := i.recorder.Remove(d); err != nil {
		return Result{}, &InstallError{Op: "record", Identity: d.Identity(), Err: err}
	}

	i.log(opts, "uninstalled template", "template", d.Key(), "path", target)
	return Result{Path: target}, nil
}

// InstallBatch attempts every descriptor independently; failures are
// counted and logged, never returned
func (i *Installer) InstallBatch(ctx context.Context, ds []artifact.Descriptor, opts Options) BatchSummary {
	summary := BatchSummary{ByKind: make(map[artifact.Kind]int)}

	for _, d := range ds {
		res, err := i.Install(ctx, d, opts)
		switch {
		case err != nil:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Descriptor: d, Err: err})
			if opts.Silent {
				i.logger.Debug("failed to install template", "template", d.Key(), "error", err)
			} else {
				i.logger.Warn("failed to install template", "template", d.Key(), "error", err)
			}
		case res.Skipped:
			summary.Skipped++
			summary.Outcomes = append(summary.Outcomes, Outcome{Descriptor: d, Result: res})
		default:
			summary.Installed++
			summary.ByKind[d.Kind]++
			summary.Outcomes = append(summary.Outcomes, Outcome{Descriptor: d, Result: res})
		}
	}

	i.log(opts, "batch install finished",
		"installed", summary.Installed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary
}

func (i *Installer) log(opts Options, msg string, args ...any) {
	if opts.Silent {
		i.logger.Debug(msg, args...)
		return
	}
	i.logger.Info(msg, args...)
}

// validateName rejects names that would land outside the kind directory
func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid template name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("template name contains a path separator: %q", name)
	}
	return nil
}

// writeFileAtomic writes data to a temp file and renames it over path
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
