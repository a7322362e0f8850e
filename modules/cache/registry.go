package cache

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/GoCodeAlone/baseapp/config"
)

// FrontendFactory builds a frontend from its options.
type FrontendFactory func(opts Options) (Frontend, error)

// BackendFactory builds a backend from its options.
type BackendFactory func(opts Options) (Backend, error)

// Registry maps adapter names to factories. Names are matched
// case-insensitively, so "Data", "data" and "DATA" are the same adapter.
type Registry struct {
	mu        sync.RWMutex
	frontends map[string]FrontendFactory
	backends  map[string]BackendFactory
}

// NewRegistry returns a registry holding the built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{
		frontends: make(map[string]FrontendFactory),
		backends:  make(map[string]BackendFactory),
	}
	r.RegisterFrontend("data", NewDataFrontend)
	r.RegisterFrontend("json", NewJSONFrontend)
	r.RegisterFrontend("msgpack", NewMsgpackFrontend)
	r.RegisterFrontend("base64", NewBase64Frontend)
	r.RegisterFrontend("output", NewOutputFrontend)
	r.RegisterFrontend("none", NewOutputFrontend)

	r.RegisterBackend("memory", NewMemoryBackend)
	r.RegisterBackend("file", NewFileBackend)
	r.RegisterBackend("redis", NewRedisBackend)
	return r
}

func adapterKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// RegisterFrontend adds or replaces a frontend adapter.
func (r *Registry) RegisterFrontend(name string, f FrontendFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frontends[adapterKey(name)] = f
}

// RegisterBackend adds or replaces a backend adapter.
func (r *Registry) RegisterBackend(name string, f BackendFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[adapterKey(name)] = f
}

// Frontends lists the registered frontend adapter names.
func (r *Registry) Frontends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.frontends)
}

// Backends lists the registered backend adapter names.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.backends)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (r *Registry) frontend(name string) (FrontendFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.frontends[adapterKey(name)]
	if !ok {
		return nil, fmt.Errorf("%w: frontend %q", ErrUnknownAdapter, name)
	}
	return f, nil
}

func (r *Registry) backend(name string) (BackendFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.backends[adapterKey(name)]
	if !ok {
		return nil, fmt.Errorf("%w: backend %q", ErrUnknownAdapter, name)
	}
	return f, nil
}

// Plan is a validated recipe for one cache service.
type Plan struct {
	Service         string
	FrontendSection string
	FrontendAdapter string
	FrontendOptions Options
	BackendSection  string
	BackendAdapter  string
	BackendOptions  Options
}

// Plan reads the frontend section, follows its "backend" key to the backend
// section, and checks that both adapters are registered. A frontend section
// looks like:
//
//	cache:
//	  models:
//	    adapter: Data
//	    backend: cache.backends.models
//	    options: {lifetime: 86400}
//	  backends:
//	    models:
//	      adapter: File
//	      options: {cacheDir: var/cache/models/}
func (r *Registry) Plan(cfg *config.Config, service, section string) (Plan, error) {
	front, err := cfg.Section(section)
	if err != nil {
		return Plan{}, fmt.Errorf("cache service %s: %w", service, err)
	}
	backSection := front.String("backend")
	if backSection == "" {
		return Plan{}, fmt.Errorf("%w: %s has no backend", ErrSectionInvalid, section)
	}
	back, err := cfg.Section(backSection)
	if err != nil {
		return Plan{}, fmt.Errorf("cache service %s: %w", service, err)
	}
	p := Plan{
		Service:         service,
		FrontendSection: section,
		FrontendAdapter: front.String("adapter"),
		FrontendOptions: front.Map("options"),
		BackendSection:  backSection,
		BackendAdapter:  back.String("adapter"),
		BackendOptions:  back.Map("options"),
	}
	if _, err := r.frontend(p.FrontendAdapter); err != nil {
		return Plan{}, fmt.Errorf("cache service %s: %w", service, err)
	}
	if _, err := r.backend(p.BackendAdapter); err != nil {
		return Plan{}, fmt.Errorf("cache service %s: %w", service, err)
	}
	return p, nil
}

// Build constructs backend(frontend(FrontendOptions), BackendOptions).
func (r *Registry) Build(p Plan) (*Cache, error) {
	newFront, err := r.frontend(p.FrontendAdapter)
	if err != nil {
		return nil, err
	}
	newBack, err := r.backend(p.BackendAdapter)
	if err != nil {
		return nil, err
	}
	front, err := newFront(p.FrontendOptions)
	if err != nil {
		return nil, fmt.Errorf("cache service %s: frontend: %w", p.Service, err)
	}
	back, err := newBack(p.BackendOptions)
	if err != nil {
		return nil, fmt.Errorf("cache service %s: backend: %w", p.Service, err)
	}
	return New(front, back).Named(p.Service), nil
}
