// Package aggregate fetches every registered source concurrently and isolates
// per-source failures.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/provider"
)

// ErrUnknownSource is returned when a source name has no provider
var ErrUnknownSource = errors.New("unknown source")

// DefaultTimeout bounds one source's listing
const DefaultTimeout = 30 * time.Second

// Sources looks up providers by source name
type Sources interface {
	Get(name string) (provider.Provider, bool)
	All() map[string]provider.Provider
}

// RoutingError is a download addressed to a source that is not registered
type RoutingError struct {
	Source string
	Op     string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("%s: no provider for source %q", e.Op, e.Source)
}

func (e *RoutingError) Unwrap() error {
	return ErrUnknownSource
}

// SourceResult is the outcome of listing one source
type SourceResult struct {
	Name        string
	Descriptors []artifact.Descriptor
	Success     bool
	Err         error
	Duration    time.Duration
}

// Results is the outcome of a fan-out fetch
type Results struct {
	Sources map[string]SourceResult
}

// Names returns the fetched source names, sorted
func (r *Results) Names() []string {
	names := make([]string, 0, len(r.Sources))
	for name := range r.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllDescriptors concatenates the descriptors of successful sources in
// source-name order
func (r *Results) AllDescriptors() []artifact.Descriptor {
	var out []artifact.Descriptor
	for _, name := range r.Names() {
		if res := r.Sources[name]; res.Success {
			out = append(out, res.Descriptors...)
		}
	}
	return out
}

// SuccessCount returns the number of sources that listed successfully
func (r *Results) SuccessCount() int {
	n := 0
	for _, res := range r.Sources {
		if res.Success {
			n++
		}
	}
	return n
}

// FailureCount returns the number of sources that failed
func (r *Results) FailureCount() int {
	return len(r.Sources) - r.SuccessCount()
}

// Failures returns the failed results in source-name order
func (r *Results) Failures() []SourceResult {
	var out []SourceResult
	for _, name := range r.Names() {
		if res := r.Sources[name]; !res.Success {
			out = append(out, res)
		}
	}
	return out
}

// AuthRequired returns the sources that need sign-in, sorted
func (r *Results) AuthRequired() []string {
	var out []string
	for _, name := range r.Names() {
		if res := r.Sources[name]; !res.Success && provider.IsAuthRequired(res.Err) {
			out = append(out, name)
		}
	}
	return out
}

// Fetcher fans listing out over every source and routes downloads
type Fetcher struct {
	sources Sources
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithTimeout sets the per-source deadline; zero disables it
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Fetcher over sources
func New(sources Sources, opts ...Option) *Fetcher {
	f := &Fetcher{
		sources: sources,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchFromAll lists every source concurrently. One source failing never
// affects another; the call itself never fails.
func (f *Fetcher) FetchFromAll(ctx context.Context) *Results {
	providers := f.sources.All()
	results := &Results{Sources: make(map[string]SourceResult, len(providers))}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, p := range providers {
		g.Go(func() error {
			res := f.fetch(ctx, name, p)
			mu.Lock()
			results.Sources[name] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	f.logger.Info("fetched sources",
		"sources", len(results.Sources),
		"succeeded", results.SuccessCount(),
		"failed", results.FailureCount(),
	)
	return results
}

// FetchFromOne lists a single source with the same contract as FetchFromAll
func (f *Fetcher) FetchFromOne(ctx context.Context, name string) SourceResult {
	p, ok := f.sources.Get(name)
	if !ok {
		return SourceResult{Name: name, Err: fmt.Errorf("%w: %s", ErrUnknownSource, name)}
	}
	return f.fetch(ctx, name, p)
}

// fetch runs one provider under the source deadline and recovers panics
func (f *Fetcher) fetch(ctx context.Context, name string, p provider.Provider) (res SourceResult) {
	start := time.Now()
	res.Name = name

	defer func() {
		if r := recover(); r != nil {
			res.Descriptors = nil
			res.Success = false
			res.Err = fmt.Errorf("source %s panicked: %v", name, r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			f.logger.Warn("source fetch failed", "source", name, "error", res.Err)
		} else {
			f.logger.Debug("source fetched", "source", name, "templates", len(res.Descriptors), "duration", res.Duration)
		}
	}()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	ds, err := p.FetchAll(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &provider.FetchError{Source: name, Op: "list", Err: err}
		}
		res.Err = err
		return res
	}

	res.Descriptors = ds
	res.Success = true
	return res
}

// DownloadTemplate downloads a file artifact through its source's provider
func (f *Fetcher) DownloadTemplate(ctx context.Context, d artifact.Descriptor) ([]byte, error) {
	p, ok := f.sources.Get(d.SourceName)
	if !ok {
		return nil, &RoutingError{Source: d.SourceName, Op: "download"}
	}
	return p.Download(ctx, d)
}

// DownloadDirectoryContents downloads a directory artifact's files
func (f *Fetcher) DownloadDirectoryContents(ctx context.Context, d artifact.Descriptor) (map[string][]byte, error) {
	p, ok := f.sources.Get(d.SourceName)
	if !ok {
		return nil, &RoutingError{Source: d.SourceName, Op: "download directory"}
	}
	return p.DownloadDirectory(ctx, d)
}

// DownloadMetadata fetches a directory artifact's SKILL.md
func (f *Fetcher) DownloadMetadata(ctx context.Context, d artifact.Descriptor) ([]byte, bool, error) {
	p, ok := f.sources.Get(d.SourceName)
	if !ok {
		return nil, false, &RoutingError{Source: d.SourceName, Op: "download metadata"}
	}
	return p.DownloadMetadata(ctx, d)
}
