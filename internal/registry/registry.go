// Package registry keeps one provider per enabled source.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/kennyg/folio/internal/config"
	"github.com/kennyg/folio/internal/provider"
)

// Registry maps source names to live providers
type Registry struct {
	factory provider.Factory
	logger  *slog.Logger

	mu        sync.RWMutex
	providers map[string]provider.Provider
	configs   map[string]config.SourceConfig
}

// New creates an empty registry
func New(factory provider.Factory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factory:   factory,
		logger:    logger,
		providers: make(map[string]provider.Provider),
		configs:   make(map[string]config.SourceConfig),
	}
}

// Refresh discards every provider and builds one per enabled config.
// A config whose provider cannot be built is logged and left out.
func (r *Registry) Refresh(sources []config.SourceConfig) {
	providers := make(map[string]provider.Provider, len(sources))
	configs := make(map[string]config.SourceConfig, len(sources))

	for _, cfg := range sources {
		if !cfg.Enabled {
			r.logger.Debug("source disabled", "source", cfg.Name)
			continue
		}
		p, err := r.factory(cfg)
		if err != nil {
			r.logger.Warn("failed to initialize source", "source", cfg.Name, "error", err)
			continue
		}
		providers[cfg.Name] = p
		configs[cfg.Name] = cfg
	}

	r.mu.Lock()
	r.providers = providers
	r.configs = configs
	r.mu.Unlock()

	r.logger.Debug("registry refreshed", "sources", len(providers))
}

// Get returns the provider for a source
func (r *Registry) Get(name string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Config returns the config a provider was built from
func (r *Registry) Config(name string) (config.SourceConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[name]
	return c, ok
}

// All returns a copy of the provider map
func (r *Registry) All() map[string]provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]provider.Provider, len(r.providers))
	for k, v := range r.providers {
		out[k] = v
	}
	return out
}

// Names returns registered source names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered sources
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
