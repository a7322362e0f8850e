// Package baseapp is the bootstrap core of a multi-module web application:
// a lazy service container, an ordered bootstrap registrar, a module registry,
// a first-match URL router, an HMVC dispatcher and an environment-aware error
// escalator.
//
// A module groups controllers under a name (the public "frontend", the
// "backend" administration). Requests are matched by the Router to a Target,
// and the Dispatcher runs the target's action inside its module. The same
// dispatch path serves internal requests, where one action embeds another
// module's output:
//
//	content, err := app.Request(ctx, baseapp.Location{
//		Module:     "frontend",
//		Controller: "widgets",
//		Action:     "latest",
//	})
package baseapp

import (
	"fmt"
	"sort"
	"sync"
)

// Module is a deployable grouping of controllers sharing a namespace.
type Module interface {
	// Name returns the module name used in routes and internal requests.
	Name() string

	// Init registers module-level services. It runs once, when the module
	// is first loaded.
	Init(c *Container) error

	// Controller returns the named controller.
	Controller(name string) (Controller, bool)
}

// ModuleDescriptor identifies where a module lives.
type ModuleDescriptor struct {
	Name      string
	EntryPath string
	ClassName string
}

// ModuleLoader loads the module described by desc.
type ModuleLoader func(desc ModuleDescriptor) (Module, error)

type moduleEntry struct {
	desc   ModuleDescriptor
	loader ModuleLoader

	once   sync.Once
	module Module
	err    error
}

// ModuleRegistry maps module names to lazily loaded modules.
// Each module is loaded and initialized at most once.
type ModuleRegistry struct {
	mu        sync.RWMutex
	entries   map[string]*moduleEntry
	container *Container
	logger    Logger
}

// NewModuleRegistry creates a registry whose modules initialize against c.
func NewModuleRegistry(c *Container, logger Logger) *ModuleRegistry {
	if logger == nil {
		logger = NopLogger{}
	}
	return &ModuleRegistry{
		entries:   make(map[string]*moduleEntry),
		container: c,
		logger:    logger,
	}
}

// Register adds a module descriptor and its loader.
func (m *ModuleRegistry) Register(desc ModuleDescriptor, loader ModuleLoader) error {
	if loader == nil {
		return fmt.Errorf("%w: %s", ErrModuleLoaderNil, desc.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[desc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrModuleRegistered, desc.Name)
	}
	m.entries[desc.Name] = &moduleEntry{desc: desc, loader: loader}
	m.logger.Debug("Registered module", "name", desc.Name, "entry", desc.EntryPath, "class", desc.ClassName)
	return nil
}

// Load returns the named module, loading and initializing it on first use.
// A failed load is remembered and returned on later calls.
func (m *ModuleRegistry) Load(name string) (Module, error) {
	m.mu.RLock()
	entry, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}

	entry.once.Do(func() {
		module, err := entry.loader(entry.desc)
		if err != nil {
			entry.err = fmt.Errorf("failed to load module '%s': %w", name, err)
			return
		}
		if err = module.Init(m.container); err != nil {
			entry.err = fmt.Errorf("failed to initialize module '%s': %w", name, err)
			return
		}
		entry.module = module
		m.logger.Info(fmt.Sprintf("Loaded module %s of type %T", name, module))
	})
	return entry.module, entry.err
}

// Descriptors lists registered modules sorted by name.
func (m *ModuleRegistry) Descriptors() []ModuleDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ModuleDescriptor, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Loader maps namespaces to directories (library code, views, logs).
type Loader struct {
	mu    sync.RWMutex
	paths map[string]string
}

// NewLoader creates an empty namespace loader.
func NewLoader() *Loader {
	return &Loader{paths: make(map[string]string)}
}

// Register maps namespace to dir, replacing any previous mapping.
func (l *Loader) Register(namespace, dir string) *Loader {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths[namespace] = dir
	return l
}

// Path returns the directory registered for namespace.
func (l *Loader) Path(namespace string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	dir, ok := l.paths[namespace]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNamespaceNotFound, namespace)
	}
	return dir, nil
}

// Namespaces returns the registered namespaces, sorted.
func (l *Loader) Namespaces() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.paths))
	for ns := range l.paths {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
